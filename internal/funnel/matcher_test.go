package funnel

import (
	"testing"
	"time"
)

// memberships maps actorID → cohortID set.
type memberships map[string]map[string]bool

func (m memberships) IsMember(actorID, cohortID string) bool {
	return m[actorID][cohortID]
}

func matchQuery(mutate func(*Query)) *Query {
	q := &Query{
		Steps:  threeSteps(),
		Window: ConversionWindow{Value: 1, Unit: UnitDay},
	}
	if mutate != nil {
		mutate(q)
	}
	return q
}

func TestMatchClassifiesSteps(t *testing.T) {
	m := NewMatcher(matchQuery(nil), nil)

	ae, ok := m.Match(evt("a1", "activate", 0, nil))
	if !ok {
		t.Fatal("activate should match")
	}
	if len(ae.Steps) != 1 || ae.Steps[0] != 1 {
		t.Errorf("Steps = %v, want [1]", ae.Steps)
	}

	if _, ok := m.Match(evt("a1", "pageview", 0, nil)); ok {
		t.Error("unrelated event should be discarded")
	}
}

func TestMatchEventByActionID(t *testing.T) {
	q := matchQuery(func(q *Query) {
		q.Steps[1].Match = EventMatch{ActionID: "act-7"}
	})
	m := NewMatcher(q, nil)

	e := evt("a1", "whatever", 0, nil)
	e.ActionIDs = []string{"act-3", "act-7"}
	ae, ok := m.Match(e)
	if !ok || !ae.hasStep(1) {
		t.Errorf("action-id matcher missed: %v %v", ae.Steps, ok)
	}
}

func TestMatchAnyEvent(t *testing.T) {
	q := matchQuery(func(q *Query) {
		q.Steps[2].Match = EventMatch{AnyEvent: true}
	})
	m := NewMatcher(q, nil)

	ae, ok := m.Match(evt("a1", "pageview", 0, nil))
	if !ok || !ae.hasStep(2) {
		t.Errorf("any-event step should match everything: %v %v", ae.Steps, ok)
	}
}

func TestMatchEventMatchingSeveralSteps(t *testing.T) {
	q := matchQuery(func(q *Query) {
		q.Steps[2].Match = EventMatch{Name: "signup"}
	})
	m := NewMatcher(q, nil)

	ae, _ := m.Match(evt("a1", "signup", 0, nil))
	if !ae.hasStep(0) || !ae.hasStep(2) {
		t.Errorf("Steps = %v, want both 0 and 2", ae.Steps)
	}
}

func TestMatchStepRoleWinsOverExclusion(t *testing.T) {
	q := matchQuery(func(q *Query) {
		q.Exclusions = []ExclusionDefinition{
			{Match: EventMatch{Name: "signup"}, FromStep: 0, ToStep: 2},
		}
	})
	m := NewMatcher(q, nil)

	ae, _ := m.Match(evt("a1", "signup", 0, nil))
	if !ae.hasStep(0) {
		t.Error("signup should classify as step 0")
	}
	if len(ae.Exclusions) != 0 {
		t.Errorf("Exclusions = %v, want none; the step role wins", ae.Exclusions)
	}
}

func TestMatchPropertyFilters(t *testing.T) {
	cases := []struct {
		name   string
		filter PropertyFilter
		props  map[string]any
		want   bool
	}{
		{"exact hit", PropertyFilter{Key: "plan", Op: OpExact, Values: []string{"pro", "team"}}, map[string]any{"plan": "pro"}, true},
		{"exact miss", PropertyFilter{Key: "plan", Op: OpExact, Values: []string{"pro"}}, map[string]any{"plan": "free"}, false},
		{"exact missing prop", PropertyFilter{Key: "plan", Op: OpExact, Values: []string{"pro"}}, nil, false},
		{"is_not hit", PropertyFilter{Key: "plan", Op: OpIsNot, Values: []string{"free"}}, map[string]any{"plan": "pro"}, true},
		{"is_not missing prop satisfies", PropertyFilter{Key: "plan", Op: OpIsNot, Values: []string{"free"}}, nil, true},
		{"icontains case-insensitive", PropertyFilter{Key: "url", Op: OpIContains, Values: []string{"CHECKOUT"}}, map[string]any{"url": "/shop/checkout/done"}, true},
		{"icontains miss", PropertyFilter{Key: "url", Op: OpIContains, Values: []string{"cart"}}, map[string]any{"url": "/shop/checkout"}, false},
		{"is_set", PropertyFilter{Key: "plan", Op: OpIsSet}, map[string]any{"plan": "x"}, true},
		{"is_set nil value", PropertyFilter{Key: "plan", Op: OpIsSet}, map[string]any{"plan": nil}, false},
		{"is_not_set", PropertyFilter{Key: "plan", Op: OpIsNotSet}, nil, true},
		{"numeric rendered without dot", PropertyFilter{Key: "tier", Op: OpExact, Values: []string{"3"}}, map[string]any{"tier": float64(3)}, true},
		{"bool rendered", PropertyFilter{Key: "active", Op: OpExact, Values: []string{"true"}}, map[string]any{"active": true}, true},
		{"composite value only satisfies is_not", PropertyFilter{Key: "tags", Op: OpExact, Values: []string{"x"}}, map[string]any{"tags": []any{"x"}}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := matchQuery(func(q *Query) {
				q.Steps[0].Filters = []PropertyFilter{tc.filter}
			})
			m := NewMatcher(q, nil)
			e := evt("a1", "signup", 0, tc.props)
			ae, ok := m.Match(e)
			got := ok && ae.hasStep(0)
			if got != tc.want {
				t.Errorf("filter %+v over %v = %v, want %v", tc.filter, tc.props, got, tc.want)
			}
		})
	}
}

func TestMatchActorScopedFilter(t *testing.T) {
	q := matchQuery(func(q *Query) {
		q.Steps[0].Filters = []PropertyFilter{
			{Key: "country", Op: OpExact, Values: []string{"DE"}, Scope: ScopeActor},
		}
	})
	m := NewMatcher(q, nil)

	e := evt("a1", "signup", 0, map[string]any{"country": "FR"})
	e.ActorProperties = map[string]any{"country": "DE"}
	if ae, ok := m.Match(e); !ok || !ae.hasStep(0) {
		t.Error("actor-scoped filter should read ActorProperties, not Properties")
	}
}

func TestResolveBreakdownEventProperty(t *testing.T) {
	q := matchQuery(func(q *Query) {
		q.Breakdown = &BreakdownSpec{Source: BreakdownEvent, Keys: []string{"src"}}
	})
	m := NewMatcher(q, nil)

	ae, _ := m.Match(evt("a1", "signup", 0, map[string]any{"src": "google"}))
	if ae.Breakdown != "google" || !ae.BreakdownValid {
		t.Errorf("Breakdown = %q valid=%v, want google/true", ae.Breakdown, ae.BreakdownValid)
	}

	// Missing property participates as the reserved empty value.
	ae, _ = m.Match(evt("a1", "signup", time.Second, nil))
	if ae.Breakdown != BreakdownMissing || !ae.BreakdownValid {
		t.Errorf("missing property: Breakdown = %q valid=%v, want empty/true", ae.Breakdown, ae.BreakdownValid)
	}

	// Non-scalar property is an anomaly, not a bucket.
	ae, _ = m.Match(evt("a1", "signup", 2*time.Second, map[string]any{"src": map[string]any{"x": 1}}))
	if ae.BreakdownValid {
		t.Error("composite breakdown value should be flagged invalid")
	}
}

func TestResolveBreakdownTuple(t *testing.T) {
	q := matchQuery(func(q *Query) {
		q.Breakdown = &BreakdownSpec{Source: BreakdownEvent, Keys: []string{"src", "medium"}}
	})
	m := NewMatcher(q, nil)

	ae, _ := m.Match(evt("a1", "signup", 0, map[string]any{"src": "google", "medium": "cpc"}))
	if ae.Breakdown != CombineBreakdown([]string{"google", "cpc"}) {
		t.Errorf("tuple Breakdown = %q", ae.Breakdown)
	}

	// One missing component leaves an empty slot, still a valid tuple.
	ae, _ = m.Match(evt("a1", "signup", time.Second, map[string]any{"src": "google"}))
	if ae.Breakdown != CombineBreakdown([]string{"google", ""}) || !ae.BreakdownValid {
		t.Errorf("partial tuple = %q valid=%v", ae.Breakdown, ae.BreakdownValid)
	}
}

func TestResolveBreakdownCohort(t *testing.T) {
	q := matchQuery(func(q *Query) {
		q.Breakdown = &BreakdownSpec{Source: BreakdownCohort, Cohorts: []string{"beta", "paying"}}
	})
	m := NewMatcher(q, memberships{
		"a1": {"paying": true},
		"a2": {"beta": true, "paying": true},
	})

	ae, _ := m.Match(evt("a1", "signup", 0, nil))
	if ae.Breakdown != "paying" {
		t.Errorf("a1 cohort = %q, want paying", ae.Breakdown)
	}

	// First listed cohort wins when the actor belongs to several.
	ae, _ = m.Match(evt("a2", "signup", 0, nil))
	if ae.Breakdown != "beta" {
		t.Errorf("a2 cohort = %q, want beta", ae.Breakdown)
	}

	ae, _ = m.Match(evt("a3", "signup", 0, nil))
	if ae.Breakdown != BreakdownMissing {
		t.Errorf("non-member cohort = %q, want empty", ae.Breakdown)
	}
}
