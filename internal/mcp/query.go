package mcp

import (
	"fmt"
	"time"

	"funnel-mcp/internal/funnel"
)

// StepRequest is the wire form of one funnel step.
type StepRequest struct {
	Event    string                  `json:"event,omitempty"`
	ActionID string                  `json:"actionId,omitempty"`
	AnyEvent bool                    `json:"anyEvent,omitempty"`
	Filters  []funnel.PropertyFilter `json:"filters,omitempty"`
}

// ExclusionRequest is the wire form of one exclusion definition.
type ExclusionRequest struct {
	Event    string                  `json:"event,omitempty"`
	ActionID string                  `json:"actionId,omitempty"`
	Filters  []funnel.PropertyFilter `json:"filters,omitempty"`
	FromStep int                     `json:"fromStep"`
	ToStep   int                     `json:"toStep"`
}

// QueryRequest is the wire form of a full funnel query. Step order follows
// array position.
type QueryRequest struct {
	Steps           []StepRequest           `json:"steps"`
	Exclusions      []ExclusionRequest      `json:"exclusions,omitempty"`
	Window          funnel.ConversionWindow `json:"window"`
	Ordering        string                  `json:"ordering,omitempty"`
	Breakdown       *funnel.BreakdownSpec   `json:"breakdown,omitempty"`
	Attribution     string                  `json:"attribution,omitempty"`
	AttributionStep int                     `json:"attributionStep,omitempty"`
	BreakdownLimit  int                     `json:"breakdownLimit,omitempty"`
	From            string                  `json:"from,omitempty"`
	To              string                  `json:"to,omitempty"`
}

// BuildQuery translates the wire form into the engine's validated
// configuration value. Validation proper happens in funnel.New; this only
// rejects strings that do not name a known policy.
func BuildQuery(req QueryRequest, defaultWorkers, defaultLimit int) (funnel.Query, error) {
	q := funnel.Query{
		Window:         req.Window,
		Breakdown:      req.Breakdown,
		BreakdownLimit: req.BreakdownLimit,
		Workers:        defaultWorkers,
	}
	if q.BreakdownLimit <= 0 {
		q.BreakdownLimit = defaultLimit
	}

	for i, s := range req.Steps {
		q.Steps = append(q.Steps, funnel.StepDefinition{
			Order:   i,
			Match:   funnel.EventMatch{Name: s.Event, ActionID: s.ActionID, AnyEvent: s.AnyEvent},
			Filters: s.Filters,
		})
	}
	for _, x := range req.Exclusions {
		q.Exclusions = append(q.Exclusions, funnel.ExclusionDefinition{
			Match:    funnel.EventMatch{Name: x.Event, ActionID: x.ActionID},
			Filters:  x.Filters,
			FromStep: x.FromStep,
			ToStep:   x.ToStep,
		})
	}

	switch req.Ordering {
	case "", "ordered":
		q.Order = funnel.Ordered
	case "strict":
		q.Order = funnel.Strict
	case "unordered":
		q.Order = funnel.Unordered
	default:
		return funnel.Query{}, fmt.Errorf("unknown ordering %q", req.Ordering)
	}

	switch req.Attribution {
	case "", "first_touch":
		q.Attribution = funnel.Attribution{Kind: funnel.FirstTouch}
	case "last_touch":
		q.Attribution = funnel.Attribution{Kind: funnel.LastTouch}
	case "step":
		q.Attribution = funnel.Attribution{Kind: funnel.StepTouch, Step: req.AttributionStep}
	case "all_events":
		q.Attribution = funnel.Attribution{Kind: funnel.AllEvents}
	default:
		return funnel.Query{}, fmt.Errorf("unknown attribution %q", req.Attribution)
	}

	return q, nil
}

// DateRange parses the optional from/to boundaries of a query request.
// Zero times leave the range unbounded.
func (req QueryRequest) DateRange() (from, to time.Time, err error) {
	if req.From != "" {
		if from, err = parseTime(req.From); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid 'from': %w", err)
		}
	}
	if req.To != "" {
		if to, err = parseTime(req.To); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid 'to': %w", err)
		}
	}
	return from, to, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
