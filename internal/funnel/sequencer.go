package funnel

import "time"

// sequencer computes, per actor, the best surviving lineage under the active
// ordering discipline. A lineage is represented as the chain of attributed
// step events; chain[i] is the event credited with completing step i.
type sequencer struct {
	q      *Query
	window time.Duration
}

func newSequencer(q *Query) *sequencer {
	return &sequencer{q: q, window: q.Window.Duration()}
}

// bestChain evaluates every candidate lineage start and keeps the single
// lineage reaching the most steps. Ties break by earliest completion, then
// earliest start. Lineages invalidated by an exclusion are discarded whole
// and counted in discarded; a nil chain means the actor never entered the
// funnel (or every lineage was excluded).
func (s *sequencer) bestChain(events []ActorEvent) (chain []ActorEvent, discarded int) {
	for k, e := range events {
		if !s.isStart(e) {
			continue
		}
		c := s.chainFrom(events, k)
		if len(c) == 0 {
			continue
		}
		if s.excluded(events, c) {
			discarded++
			continue
		}
		if betterChain(c, chain) {
			chain = c
		}
	}
	return chain, discarded
}

func (s *sequencer) isStart(e ActorEvent) bool {
	// Unordered matching has no privileged first step; any step evidence
	// anchors a fresh window.
	if s.q.Order == Unordered {
		return len(e.Steps) > 0
	}
	return e.hasStep(0)
}

func (s *sequencer) chainFrom(events []ActorEvent, k int) []ActorEvent {
	switch s.q.Order {
	case Strict:
		return s.strictChain(events, k)
	case Unordered:
		return s.unorderedChain(events, k)
	default:
		return s.orderedChain(events, k)
	}
}

// orderedChain advances through the steps in order, ignoring unrelated
// events in between. For every reached step it keeps the latest qualifying
// timestamp that leaves the chain valid, so conversion times reflect the
// most recent way the actor performed each transition.
func (s *sequencer) orderedChain(events []ActorEvent, k int) []ActorEvent {
	n := len(s.q.Steps)
	start := events[k].Timestamp
	chain := make([]ActorEvent, 1, n)
	chain[0] = events[k]

	for _, e := range events[k+1:] {
		if len(chain) == n {
			break
		}
		// Window truncation: keep the steps reached so far, stop advancing.
		if e.Timestamp.Sub(start) > s.window {
			break
		}

		cur := len(chain) - 1
		if e.hasStep(cur+1) && e.Timestamp.After(chain[cur].Timestamp) {
			chain = append(chain, e)
			continue
		}

		// Refresh an already-reached step with a more recent occurrence, as
		// long as the chain stays strictly ordered around it.
		for j := cur; j >= 1; j-- {
			if !e.hasStep(j) || !e.Timestamp.After(chain[j-1].Timestamp) {
				continue
			}
			if j == cur || e.Timestamp.Before(chain[j+1].Timestamp) {
				chain[j] = e
			}
			break
		}
	}
	return chain
}

// betterChain reports whether c should replace best as the actor's kept
// lineage.
func betterChain(c, best []ActorEvent) bool {
	if len(best) == 0 {
		return true
	}
	if len(c) != len(best) {
		return len(c) > len(best)
	}
	cEnd, bEnd := c[len(c)-1].Timestamp, best[len(best)-1].Timestamp
	if !cEnd.Equal(bEnd) {
		return cEnd.Before(bEnd)
	}
	return c[0].Timestamp.Before(best[0].Timestamp)
}
