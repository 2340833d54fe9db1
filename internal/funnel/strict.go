package funnel

// strictChain is orderedChain with adjacency: every step-matching event seen
// after the lineage start must be the expected next step. The first foreign
// step event freezes the chain at whatever it reached; exclusion-only events
// are not part of the step stream and do not break adjacency.
func (s *sequencer) strictChain(events []ActorEvent, k int) []ActorEvent {
	n := len(s.q.Steps)
	start := events[k].Timestamp
	chain := make([]ActorEvent, 1, n)
	chain[0] = events[k]

	for _, e := range events[k+1:] {
		if len(chain) == n {
			break
		}
		if len(e.Steps) == 0 {
			continue
		}
		if e.Timestamp.Sub(start) > s.window {
			break
		}

		cur := len(chain) - 1
		if e.hasStep(cur+1) && e.Timestamp.After(chain[cur].Timestamp) {
			chain = append(chain, e)
			continue
		}
		break
	}
	return chain
}
