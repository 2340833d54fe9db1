package funnel

import "time"

func runFromChain(actor string, chain []ActorEvent, key BreakdownKey) FunnelRun {
	times := make([]time.Time, len(chain))
	for i, e := range chain {
		times[i] = e.Timestamp
	}
	return FunnelRun{
		ActorID:        actor,
		StepsCompleted: len(chain),
		StepTimes:      times,
		Breakdown:      key,
	}
}

// attribute turns one surviving chain into the actor's base run plus the
// breakdown-attributed runs used for partitioned output. anomaly is true
// when a malformed breakdown property kept the run out of partitioned
// output; the base run survives regardless.
func (s *sequencer) attribute(actor string, events, chain []ActorEvent) (base FunnelRun, partitioned []FunnelRun, anomaly bool) {
	base = runFromChain(actor, chain, BreakdownMissing)
	if s.q.Breakdown == nil {
		return base, []FunnelRun{base}, false
	}

	switch s.q.Attribution.Kind {
	case AllEvents:
		partitioned, anomaly = s.attributeAllEvents(actor, events, chain)
		return base, partitioned, anomaly

	case StepTouch:
		k := s.q.Attribution.Step
		if len(chain) <= k {
			// The lineage never reached the attribution step; it is folded
			// into the reserved empty-value bucket so partition sums still
			// match the unpartitioned totals.
			return base, []FunnelRun{runFromChain(actor, chain, BreakdownMissing)}, false
		}
		return s.attributeSingle(actor, chain, chain[k])

	case LastTouch:
		return s.attributeSingle(actor, chain, chain[len(chain)-1])

	default: // FirstTouch
		return s.attributeSingle(actor, chain, chain[0])
	}
}

func (s *sequencer) attributeSingle(actor string, chain []ActorEvent, at ActorEvent) (FunnelRun, []FunnelRun, bool) {
	base := runFromChain(actor, chain, BreakdownMissing)
	if !at.BreakdownValid {
		return base, nil, true
	}
	return base, []FunnelRun{runFromChain(actor, chain, at.Breakdown)}, false
}

// attributeAllEvents duplicates the run once per distinct breakdown value
// seen across the chain's step events. Each duplicate is re-sequenced over
// that value's events only, so it progresses exactly as far as that value's
// evidence carries it. This is the one policy under which an actor can sit
// in several buckets at the same step.
func (s *sequencer) attributeAllEvents(actor string, events, chain []ActorEvent) ([]FunnelRun, bool) {
	var values []BreakdownKey
	seen := make(map[BreakdownKey]bool)
	anomaly := false
	for _, e := range chain {
		if !e.BreakdownValid {
			anomaly = true
			continue
		}
		if !seen[e.Breakdown] {
			seen[e.Breakdown] = true
			values = append(values, e.Breakdown)
		}
	}

	var runs []FunnelRun
	for _, v := range values {
		filtered := make([]ActorEvent, 0, len(events))
		for _, e := range events {
			// Exclusion-only events stay in scope for every value.
			if len(e.Steps) == 0 || (e.BreakdownValid && e.Breakdown == v) {
				filtered = append(filtered, e)
			}
		}
		sub, _ := s.bestChain(filtered)
		if len(sub) == 0 {
			continue
		}
		runs = append(runs, runFromChain(actor, sub, v))
	}
	return runs, anomaly
}
