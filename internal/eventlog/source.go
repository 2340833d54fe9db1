package eventlog

import (
	"context"
	"time"

	"funnel-mcp/internal/funnel"
)

// DatasetSource adapts one dataset of an EventStore to the funnel engine's
// EventSource interface. It performs the "fetch candidate events" role: all
// events in the date range, grouped by actor and sorted by timestamp.
type DatasetSource struct {
	store   *EventStore
	dataset string
}

// NewDatasetSource binds a store and a dataset id.
func NewDatasetSource(store *EventStore, dataset string) *DatasetSource {
	return &DatasetSource{store: store, dataset: dataset}
}

// CandidateEvents implements funnel.EventSource. The store keeps events
// sorted by timestamp then actor then event id, so each actor's slice comes
// out in non-decreasing timestamp order with a stable tie-break.
func (s *DatasetSource) CandidateEvents(ctx context.Context, from, to time.Time) (map[string][]funnel.RawEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	events := s.store.GetEventsInRange(s.dataset, from, to)
	byActor := make(map[string][]funnel.RawEvent)
	for _, e := range events {
		byActor[e.ActorID] = append(byActor[e.ActorID], funnel.RawEvent{
			ActorID:         e.ActorID,
			EventID:         e.EventID,
			Name:            e.Name,
			ActionIDs:       e.ActionIDs,
			Timestamp:       time.UnixMicro(e.Timestamp),
			Properties:      e.Properties,
			ActorProperties: e.ActorProperties,
		})
	}
	return byActor, nil
}
