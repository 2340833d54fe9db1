package funnel

// excluded reports whether a qualifying exclusion event falls inside one of
// the chain's guarded step ranges. A hit discards the entire lineage, not
// just the affected transition: an excluded run contributes to no step
// count at all.
func (s *sequencer) excluded(events []ActorEvent, chain []ActorEvent) bool {
	windowClose := chain[0].Timestamp.Add(s.window)

	for xi, x := range s.q.Exclusions {
		if len(chain) <= x.FromStep {
			continue
		}
		from := chain[x.FromStep].Timestamp

		// When the lineage never reaches ToStep there is no later step
		// boundary to bound the check against; the exclusion applies until
		// the conversion window closes.
		to := windowClose
		if len(chain) > x.ToStep {
			to = chain[x.ToStep].Timestamp
		}

		for _, e := range events {
			if !e.hasExclusion(xi) {
				continue
			}
			if e.Timestamp.After(from) && e.Timestamp.Before(to) {
				return true
			}
		}
	}
	return false
}
