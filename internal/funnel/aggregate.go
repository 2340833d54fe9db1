package funnel

import (
	"sort"

	"github.com/montanaflynn/stats"
)

// aggregateSteps collapses runs into one StepResult per step: how many runs
// got at least that far, and the mean/exact-median seconds for the
// transition into the step. A transition with no completed samples reports
// nil statistics; a single sample is its own mean and median.
func aggregateSteps(q *Query, runs []FunnelRun) []StepResult {
	results := make([]StepResult, 0, len(q.Steps))
	for i := range q.Steps {
		row := StepResult{StepIndex: i}
		var samples []float64
		for _, r := range runs {
			if r.StepsCompleted < i+1 {
				continue
			}
			row.Count++
			if i > 0 {
				samples = append(samples, r.ConversionSeconds(i))
			}
		}
		row.AverageSeconds, row.MedianSeconds = conversionStats(samples)
		results = append(results, row)
	}
	return results
}

func conversionStats(samples []float64) (avg, med *float64) {
	if len(samples) == 0 {
		return nil, nil
	}
	mean, err := stats.Mean(samples)
	if err != nil {
		return nil, nil
	}
	median, err := stats.Median(samples)
	if err != nil {
		return nil, nil
	}
	return &mean, &median
}

type breakdownBucket struct {
	key  BreakdownKey
	runs []FunnelRun
}

// aggregateBreakdown partitions runs by their attributed breakdown value.
// Buckets are ranked by step-0 count; everything past the configured limit
// is folded into the reserved "Other" bucket, whose statistics are
// recomputed over the union of the folded runs rather than averaged.
func aggregateBreakdown(q *Query, runs []FunnelRun) []StepResult {
	grouped := make(map[BreakdownKey][]FunnelRun)
	var order []BreakdownKey
	for _, r := range runs {
		if _, ok := grouped[r.Breakdown]; !ok {
			order = append(order, r.Breakdown)
		}
		grouped[r.Breakdown] = append(grouped[r.Breakdown], r)
	}

	buckets := make([]breakdownBucket, 0, len(order))
	for _, key := range order {
		buckets = append(buckets, breakdownBucket{key: key, runs: grouped[key]})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if len(buckets[i].runs) != len(buckets[j].runs) {
			return len(buckets[i].runs) > len(buckets[j].runs)
		}
		return buckets[i].key < buckets[j].key
	})

	if q.BreakdownLimit > 0 && len(buckets) > q.BreakdownLimit {
		other := breakdownBucket{key: BreakdownOther}
		for _, b := range buckets[q.BreakdownLimit:] {
			other.runs = append(other.runs, b.runs...)
		}
		buckets = append(buckets[:q.BreakdownLimit], other)
	}

	partials := make([][]StepResult, len(buckets))
	for bi, b := range buckets {
		partials[bi] = aggregateSteps(q, b.runs)
	}

	var results []StepResult
	for i := range q.Steps {
		rows := make([]StepResult, 0, len(buckets))
		for bi, b := range buckets {
			row := partials[bi][i]
			key := b.key
			row.Breakdown = &key
			rows = append(rows, row)
		}
		// Within a step: descending count, "Other" sorted last.
		sort.SliceStable(rows, func(a, b int) bool {
			ra, rb := rows[a], rows[b]
			if (*ra.Breakdown == BreakdownOther) != (*rb.Breakdown == BreakdownOther) {
				return *rb.Breakdown == BreakdownOther
			}
			if ra.Count != rb.Count {
				return ra.Count > rb.Count
			}
			return *ra.Breakdown < *rb.Breakdown
		})
		results = append(results, rows...)
	}
	return results
}
