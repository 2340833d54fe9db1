package funnel

import "sort"

// Pagination bounds an actor listing. A non-positive Limit returns the
// whole remainder.
type Pagination struct {
	Offset int
	Limit  int
}

// ActorsAtStep projects the actor ids out of an already-computed result.
// step is 1-indexed from the caller's perspective: a positive step S selects
// actors who reached step S, a negative S selects actors who reached step
// |S|-1 but dropped off immediately before step |S|. An optional breakdown
// key narrows the listing to one bucket. Output is ordered by actor id and
// paginated by the caller-provided offset/limit.
func (e *Engine) ActorsAtStep(res *Result, step int, breakdown *BreakdownKey, p Pagination) ([]string, error) {
	n := len(e.q.Steps)
	if step == 0 || step > n || step < -n {
		return nil, configErrorf("actor step filter %d is out of range for a %d-step funnel", step, n)
	}

	runs := res.Runs
	if breakdown != nil {
		runs = res.BreakdownRuns
	}

	matched := make(map[string]bool)
	for _, r := range runs {
		if breakdown != nil && r.Breakdown != *breakdown {
			continue
		}
		if step > 0 {
			if r.StepsCompleted >= step {
				matched[r.ActorID] = true
			}
		} else if r.StepsCompleted == -step-1 {
			matched[r.ActorID] = true
		}
	}

	actors := make([]string, 0, len(matched))
	for id := range matched {
		actors = append(actors, id)
	}
	sort.Strings(actors)

	if p.Offset >= len(actors) {
		return []string{}, nil
	}
	actors = actors[p.Offset:]
	if p.Limit > 0 && p.Limit < len(actors) {
		actors = actors[:p.Limit]
	}
	return actors, nil
}
