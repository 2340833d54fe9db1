package funnel

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultBreakdownLimit is used when the caller does not supply one.
const DefaultBreakdownLimit = 10

// EventSource is the upstream storage collaborator. It returns candidate
// events for the query date range, grouped by actor id and sorted by
// timestamp (ties by event id).
type EventSource interface {
	CandidateEvents(ctx context.Context, from, to time.Time) (map[string][]RawEvent, error)
}

// Engine computes funnel conversion analysis for one validated query. It is
// stateless across runs and safe for concurrent use.
type Engine struct {
	q       Query
	cohorts CohortResolver
}

// New validates the query and builds an engine. Configuration errors are
// fatal and reported here, before any event is scanned. The cohort resolver
// may be nil unless the query uses a cohort breakdown.
func New(q Query, cohorts CohortResolver) (*Engine, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.Breakdown != nil && q.Breakdown.Source == BreakdownCohort && cohorts == nil {
		return nil, configErrorf("cohort breakdown requires a cohort resolver")
	}
	if q.BreakdownLimit <= 0 {
		q.BreakdownLimit = DefaultBreakdownLimit
	}
	if q.Workers <= 0 {
		q.Workers = runtime.NumCPU()
	}
	return &Engine{q: q, cohorts: cohorts}, nil
}

// Query returns a copy of the engine's effective configuration.
func (e *Engine) Query() Query { return e.q }

type accumulator struct {
	runs          []FunnelRun
	breakdownRuns []FunnelRun
	diag          Diagnostics
}

// Run fetches candidate events, sequences every actor and folds the
// results. Actors are independent, so sequencing fans out over a worker
// pool with per-worker accumulators merged once at the end. Cancellation is
// observed between actors and surfaces as ErrCancelled.
func (e *Engine) Run(ctx context.Context, src EventSource, from, to time.Time) (*Result, error) {
	runID := uuid.NewString()
	started := time.Now()

	byActor, err := src.CandidateEvents(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch candidate events: %w", err)
	}

	actors := make([]string, 0, len(byActor))
	for id := range byActor {
		actors = append(actors, id)
	}
	sort.Strings(actors)

	workers := e.q.Workers
	if workers > len(actors) {
		workers = len(actors)
	}
	if workers < 1 {
		workers = 1
	}

	accs := make([]accumulator, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			matcher := NewMatcher(&e.q, e.cohorts)
			seq := newSequencer(&e.q)
			for i := w; i < len(actors); i += workers {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				e.processActor(actors[i], byActor[actors[i]], matcher, seq, &accs[w])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		return nil, err
	}

	res := &Result{RunID: runID}
	for _, acc := range accs {
		res.Runs = append(res.Runs, acc.runs...)
		res.BreakdownRuns = append(res.BreakdownRuns, acc.breakdownRuns...)
		res.Diagnostics.merge(acc.diag)
	}
	// Interleaved worker output; restore the deterministic actor order.
	sort.SliceStable(res.Runs, func(i, j int) bool { return res.Runs[i].ActorID < res.Runs[j].ActorID })
	sort.SliceStable(res.BreakdownRuns, func(i, j int) bool {
		if res.BreakdownRuns[i].ActorID != res.BreakdownRuns[j].ActorID {
			return res.BreakdownRuns[i].ActorID < res.BreakdownRuns[j].ActorID
		}
		return res.BreakdownRuns[i].Breakdown < res.BreakdownRuns[j].Breakdown
	})

	if e.q.Breakdown != nil {
		res.Steps = aggregateBreakdown(&e.q, res.BreakdownRuns)
	} else {
		res.Steps = aggregateSteps(&e.q, res.Runs)
	}

	log.Info().
		Str("runId", runID).
		Str("order", e.q.Order.String()).
		Int("actors", res.Diagnostics.ActorsSeen).
		Int("runsKept", res.Diagnostics.RunsKept).
		Int("lineagesExcluded", res.Diagnostics.LineagesExcluded).
		Dur("elapsed", time.Since(started)).
		Msg("Funnel run complete")
	return res, nil
}

func (e *Engine) processActor(actor string, raws []RawEvent, matcher *Matcher, seq *sequencer, acc *accumulator) {
	acc.diag.ActorsSeen++

	if !sortedByTime(raws) {
		// Upstream contract violation; sort defensively but surface it.
		acc.diag.OutOfOrderActors++
		log.Warn().Str("actor", actor).Msg("Events arrived out of timestamp order, sorting defensively")
		sort.SliceStable(raws, func(i, j int) bool {
			if !raws[i].Timestamp.Equal(raws[j].Timestamp) {
				return raws[i].Timestamp.Before(raws[j].Timestamp)
			}
			return raws[i].EventID < raws[j].EventID
		})
	}

	events := make([]ActorEvent, 0, len(raws))
	for _, raw := range raws {
		if ae, ok := matcher.Match(raw); ok {
			events = append(events, ae)
		}
	}
	if len(events) == 0 {
		return
	}

	chain, discarded := seq.bestChain(events)
	acc.diag.LineagesExcluded += discarded
	if len(chain) == 0 {
		return
	}

	base, partitioned, anomaly := seq.attribute(actor, events, chain)
	acc.runs = append(acc.runs, base)
	acc.breakdownRuns = append(acc.breakdownRuns, partitioned...)
	acc.diag.RunsKept++
	if anomaly {
		acc.diag.BreakdownAnomalies++
	}
}

func sortedByTime(raws []RawEvent) bool {
	for i := 1; i < len(raws); i++ {
		prev, cur := raws[i-1], raws[i]
		if cur.Timestamp.Before(prev.Timestamp) {
			return false
		}
		if cur.Timestamp.Equal(prev.Timestamp) && cur.EventID < prev.EventID {
			return false
		}
	}
	return true
}
