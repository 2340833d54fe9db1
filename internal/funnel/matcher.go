package funnel

import (
	"fmt"
	"strings"
)

// Matcher classifies raw events against the query's step and exclusion
// definitions and resolves their breakdown key.
type Matcher struct {
	q       *Query
	cohorts CohortResolver
}

// NewMatcher builds a matcher for one query. The cohort resolver may be nil
// when the query has no cohort breakdown.
func NewMatcher(q *Query, cohorts CohortResolver) *Matcher {
	return &Matcher{q: q, cohorts: cohorts}
}

// Match classifies one raw event. The second return value is false when the
// event is relevant to neither a step nor an exclusion and should be
// discarded.
func (m *Matcher) Match(e RawEvent) (ActorEvent, bool) {
	ae := ActorEvent{
		ActorID:        e.ActorID,
		EventID:        e.EventID,
		Timestamp:      e.Timestamp,
		BreakdownValid: true,
	}

	for _, s := range m.q.Steps {
		if matchesEvent(s.Match, e) && matchesFilters(s.Filters, e) {
			ae.Steps = append(ae.Steps, s.Order)
		}
	}

	// An event never serves as both a step and an exclusion for the same
	// funnel configuration; the step role wins.
	if len(ae.Steps) == 0 {
		for i, x := range m.q.Exclusions {
			if matchesEvent(x.Match, e) && matchesFilters(x.Filters, e) {
				ae.Exclusions = append(ae.Exclusions, i)
			}
		}
	}

	if len(ae.Steps) == 0 && len(ae.Exclusions) == 0 {
		return ActorEvent{}, false
	}

	if m.q.Breakdown != nil && len(ae.Steps) > 0 {
		ae.Breakdown, ae.BreakdownValid = m.resolveBreakdown(e)
	}

	return ae, true
}

func matchesEvent(match EventMatch, e RawEvent) bool {
	if match.AnyEvent {
		return true
	}
	if match.Name != "" {
		return e.Name == match.Name
	}
	if match.ActionID != "" {
		for _, id := range e.ActionIDs {
			if id == match.ActionID {
				return true
			}
		}
	}
	return false
}

func matchesFilters(filters []PropertyFilter, e RawEvent) bool {
	for _, f := range filters {
		if !matchesFilter(f, e) {
			return false
		}
	}
	return true
}

func matchesFilter(f PropertyFilter, e RawEvent) bool {
	props := e.Properties
	if f.Scope == ScopeActor {
		props = e.ActorProperties
	}
	raw, present := props[f.Key]

	switch f.Op {
	case OpIsSet:
		return present && raw != nil
	case OpIsNotSet:
		return !present || raw == nil
	}

	value, ok := scalarString(raw)
	if !present || !ok {
		// A missing or malformed value only satisfies negative operators.
		return f.Op == OpIsNot
	}

	switch f.Op {
	case OpExact:
		for _, v := range f.Values {
			if value == v {
				return true
			}
		}
		return false
	case OpIsNot:
		for _, v := range f.Values {
			if value == v {
				return false
			}
		}
		return true
	case OpIContains:
		for _, v := range f.Values {
			if strings.Contains(strings.ToLower(value), strings.ToLower(v)) {
				return true
			}
		}
		return false
	}
	return false
}

// resolveBreakdown projects the configured breakdown onto one event. The
// second return value is false when a property is present but not scalar;
// such runs stay in the unpartitioned totals only.
func (m *Matcher) resolveBreakdown(e RawEvent) (BreakdownKey, bool) {
	spec := m.q.Breakdown

	if spec.Source == BreakdownCohort {
		if m.cohorts == nil {
			return BreakdownMissing, true
		}
		for _, id := range spec.Cohorts {
			if m.cohorts.IsMember(e.ActorID, id) {
				return BreakdownKey(id), true
			}
		}
		return BreakdownMissing, true
	}

	props := e.Properties
	if spec.Source == BreakdownActor {
		props = e.ActorProperties
	}

	parts := make([]string, 0, len(spec.Keys))
	for _, key := range spec.Keys {
		raw, present := props[key]
		if !present || raw == nil {
			parts = append(parts, "")
			continue
		}
		value, ok := scalarString(raw)
		if !ok {
			return BreakdownMissing, false
		}
		parts = append(parts, value)
	}
	return CombineBreakdown(parts), true
}

// scalarString normalizes a scalar property value to its string form.
// Composite values (maps, slices) are rejected.
func scalarString(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case bool:
		return fmt.Sprintf("%t", v), true
	case float64:
		// JSON numbers decode as float64; render integers without a dot.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v)), true
		}
		return fmt.Sprintf("%v", v), true
	case int, int32, int64:
		return fmt.Sprintf("%d", v), true
	default:
		return "", false
	}
}
