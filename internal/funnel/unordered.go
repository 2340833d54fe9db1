package funnel

// unorderedChain counts presence rather than order: anchored at events[k],
// it collects the first evidence of every distinct step inside the window.
// chain[i] is the i-th earliest distinct-step event observed, which is what
// conversion-time statistics are measured against.
func (s *sequencer) unorderedChain(events []ActorEvent, k int) []ActorEvent {
	n := len(s.q.Steps)
	anchor := events[k].Timestamp
	seen := make([]bool, n)
	chain := make([]ActorEvent, 0, n)

	for _, e := range events[k:] {
		if len(chain) == n {
			break
		}
		if e.Timestamp.Sub(anchor) > s.window {
			break
		}
		for _, step := range e.Steps {
			if !seen[step] {
				seen[step] = true
				chain = append(chain, e)
			}
		}
	}
	return chain
}
