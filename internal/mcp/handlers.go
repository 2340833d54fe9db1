package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"funnel-mcp/internal/eventlog"
	"funnel-mcp/internal/funnel"

	"github.com/rs/zerolog/log"
)

func (s *Server) handleLoadEvents(args json.RawMessage) (interface{}, error) {
	var p struct {
		Path    string `json:"path"`
		Dataset string `json:"dataset"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if p.Path == "" || p.Dataset == "" {
		return nil, fmt.Errorf("both 'path' and 'dataset' are required")
	}

	count, err := s.store.LoadFile(p.Path, p.Dataset)
	if err != nil {
		return nil, err
	}

	if s.cfg.CacheDir != "" {
		if err := s.store.Save(s.cfg.CacheDir, p.Dataset); err != nil {
			log.Warn().Err(err).Str("dataset", p.Dataset).Msg("Failed to save dataset cache")
		}
	}

	return map[string]interface{}{
		"dataset": p.Dataset,
		"loaded":  count,
		"total":   s.store.Count(p.Dataset),
	}, nil
}

func (s *Server) handleDatasetInfo(args json.RawMessage) (interface{}, error) {
	var p struct {
		Dataset string `json:"dataset"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if err := s.ensureLoaded(p.Dataset); err != nil {
		return nil, err
	}

	events := s.store.GetEventsInRange(p.Dataset, time.Time{}, time.Time{})
	info := map[string]interface{}{
		"dataset": p.Dataset,
		"events":  len(events),
	}
	if len(events) > 0 {
		actors := make(map[string]bool)
		for _, e := range events {
			actors[e.ActorID] = true
		}
		info["actors"] = len(actors)
		info["firstEventAt"] = time.UnixMicro(events[0].Timestamp).UTC()
		info["lastEventAt"] = time.UnixMicro(events[len(events)-1].Timestamp).UTC()
	}
	return info, nil
}

func (s *Server) handleRunFunnel(args json.RawMessage) (interface{}, error) {
	var p struct {
		Dataset string       `json:"dataset"`
		Query   QueryRequest `json:"query"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	res, _, err := s.runFunnel(p.Dataset, p.Query)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"runId":       res.RunID,
		"steps":       res.Steps,
		"diagnostics": res.Diagnostics,
	}, nil
}

func (s *Server) handleListActors(args json.RawMessage) (interface{}, error) {
	var p struct {
		Dataset   string       `json:"dataset"`
		Query     QueryRequest `json:"query"`
		Step      int          `json:"step"`
		Breakdown *string      `json:"breakdown,omitempty"`
		Offset    int          `json:"offset,omitempty"`
		Limit     int          `json:"limit,omitempty"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	res, engine, err := s.runFunnel(p.Dataset, p.Query)
	if err != nil {
		return nil, err
	}

	var breakdown *funnel.BreakdownKey
	if p.Breakdown != nil {
		key := funnel.BreakdownKey(*p.Breakdown)
		breakdown = &key
	}

	actors, err := engine.ActorsAtStep(res, p.Step, breakdown, funnel.Pagination{Offset: p.Offset, Limit: p.Limit})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"step":   p.Step,
		"count":  len(actors),
		"actors": actors,
	}, nil
}

// runFunnel is the shared path behind run_funnel and list_actors_at_step:
// the engine is stateless, so listings recompute from the same query.
func (s *Server) runFunnel(dataset string, req QueryRequest) (*funnel.Result, *funnel.Engine, error) {
	if dataset == "" {
		return nil, nil, fmt.Errorf("'dataset' is required")
	}
	if err := s.ensureLoaded(dataset); err != nil {
		return nil, nil, err
	}
	if s.store.Count(dataset) == 0 {
		return nil, nil, fmt.Errorf("dataset %q is empty; call load_events first", dataset)
	}

	q, err := BuildQuery(req, s.cfg.Workers, s.cfg.BreakdownLimit)
	if err != nil {
		return nil, nil, err
	}
	engine, err := funnel.New(q, nil)
	if err != nil {
		return nil, nil, err
	}

	from, to, err := req.DateRange()
	if err != nil {
		return nil, nil, err
	}

	src := eventlog.NewDatasetSource(s.store, dataset)
	res, err := engine.Run(context.Background(), src, from, to)
	if err != nil {
		return nil, nil, err
	}
	return res, engine, nil
}

func (s *Server) ensureLoaded(dataset string) error {
	if dataset == "" {
		return fmt.Errorf("'dataset' is required")
	}
	if s.store.Count(dataset) > 0 || s.cfg.CacheDir == "" {
		return nil
	}
	return s.store.Load(s.cfg.CacheDir, dataset)
}
