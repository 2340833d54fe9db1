package funnel

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks a configuration rejected before any event is scanned.
	ErrConfig = errors.New("invalid funnel configuration")
	// ErrUnsupported marks a policy combination with no defined semantics.
	ErrUnsupported = errors.New("unsupported funnel configuration")
	// ErrCancelled is returned when the caller's context ends a run early.
	// It is distinct from window truncation, which is expected behavior.
	ErrCancelled = errors.New("funnel computation cancelled")
)

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

func unsupportedErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}

// Validate rejects invalid queries synchronously, so a caller never receives
// partial results for a configuration the engine cannot honor.
func (q *Query) Validate() error {
	if len(q.Steps) < 2 {
		return configErrorf("a funnel needs at least 2 steps, got %d", len(q.Steps))
	}
	for i, s := range q.Steps {
		if s.Order != i {
			return configErrorf("step orders must be contiguous from 0: step at position %d has order %d", i, s.Order)
		}
		if !s.Match.AnyEvent && s.Match.Name == "" && s.Match.ActionID == "" {
			return configErrorf("step %d has an empty matcher", i)
		}
	}

	if q.Window.Value <= 0 {
		return configErrorf("conversion window value must be positive, got %d", q.Window.Value)
	}
	switch q.Window.Unit {
	case UnitSecond, UnitMinute, UnitHour, UnitDay, UnitWeek:
	default:
		return configErrorf("unknown conversion window unit %q", q.Window.Unit)
	}

	last := len(q.Steps) - 1
	for i, x := range q.Exclusions {
		if x.FromStep < 0 || x.FromStep >= x.ToStep || x.ToStep > last {
			return configErrorf("exclusion %d has invalid range [%d, %d] for a %d-step funnel", i, x.FromStep, x.ToStep, len(q.Steps))
		}
		// Strict and unordered matching have no per-transition semantics, so
		// exclusions must span the whole funnel.
		if q.Order != Ordered && (x.FromStep != 0 || x.ToStep != last) {
			return configErrorf("exclusion %d must span the full funnel for %s matching", i, q.Order)
		}
	}

	switch q.Attribution.Kind {
	case FirstTouch, LastTouch, AllEvents:
	case StepTouch:
		if q.Attribution.Step < 0 || q.Attribution.Step > last {
			return unsupportedErrorf("step attribution references step %d of a %d-step funnel", q.Attribution.Step, len(q.Steps))
		}
	default:
		return unsupportedErrorf("unknown attribution policy %d", q.Attribution.Kind)
	}

	if q.Breakdown != nil {
		switch q.Breakdown.Source {
		case BreakdownEvent, BreakdownActor:
			if len(q.Breakdown.Keys) == 0 {
				return configErrorf("%s breakdown needs at least one property key", q.Breakdown.Source)
			}
		case BreakdownCohort:
			if len(q.Breakdown.Cohorts) == 0 {
				return configErrorf("cohort breakdown needs at least one cohort id")
			}
		default:
			return configErrorf("unknown breakdown source %q", q.Breakdown.Source)
		}
	}

	return nil
}
