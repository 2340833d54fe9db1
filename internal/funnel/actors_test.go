package funnel

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func actorFixture(t *testing.T) (*Engine, *Result) {
	t.Helper()
	src := memSource{
		"amy": {
			evt("amy", "signup", 0, map[string]any{"src": "google"}),
			evt("amy", "activate", time.Minute, nil),
			evt("amy", "purchase", 2*time.Minute, nil),
		},
		"bob": {
			evt("bob", "signup", 0, map[string]any{"src": "bing"}),
			evt("bob", "activate", time.Minute, nil),
		},
		"cas": {
			evt("cas", "signup", 0, map[string]any{"src": "google"}),
		},
		"dee": {
			evt("dee", "signup", 0, map[string]any{"src": "google"}),
			evt("dee", "activate", time.Minute, nil),
		},
	}
	e := mustEngine(t, Query{
		Steps:       threeSteps(),
		Window:      ConversionWindow{Value: 1, Unit: UnitDay},
		Breakdown:   &BreakdownSpec{Source: BreakdownEvent, Keys: []string{"src"}},
		Attribution: Attribution{Kind: FirstTouch},
	})
	return e, mustRun(t, e, src)
}

func TestActorsAtStepReached(t *testing.T) {
	e, res := actorFixture(t)

	actors, err := e.ActorsAtStep(res, 2, nil, Pagination{})
	if err != nil {
		t.Fatalf("ActorsAtStep failed: %v", err)
	}
	if want := []string{"amy", "bob", "dee"}; !reflect.DeepEqual(actors, want) {
		t.Errorf("step-2 actors = %v, want %v", actors, want)
	}
}

func TestActorsAtStepDropOff(t *testing.T) {
	e, res := actorFixture(t)

	// -3 selects actors who reached step 2 (1-indexed) and then stopped.
	actors, err := e.ActorsAtStep(res, -3, nil, Pagination{})
	if err != nil {
		t.Fatalf("ActorsAtStep failed: %v", err)
	}
	if want := []string{"bob", "dee"}; !reflect.DeepEqual(actors, want) {
		t.Errorf("dropped-before-step-3 actors = %v, want %v", actors, want)
	}
}

func TestActorsAtStepBreakdownFilter(t *testing.T) {
	e, res := actorFixture(t)

	key := BreakdownKey("google")
	actors, err := e.ActorsAtStep(res, 2, &key, Pagination{})
	if err != nil {
		t.Fatalf("ActorsAtStep failed: %v", err)
	}
	if want := []string{"amy", "dee"}; !reflect.DeepEqual(actors, want) {
		t.Errorf("google step-2 actors = %v, want %v", actors, want)
	}
}

func TestActorsAtStepPagination(t *testing.T) {
	e, res := actorFixture(t)

	actors, err := e.ActorsAtStep(res, 1, nil, Pagination{Offset: 1, Limit: 2})
	if err != nil {
		t.Fatalf("ActorsAtStep failed: %v", err)
	}
	if want := []string{"bob", "cas"}; !reflect.DeepEqual(actors, want) {
		t.Errorf("page = %v, want %v", actors, want)
	}

	actors, err = e.ActorsAtStep(res, 1, nil, Pagination{Offset: 10})
	if err != nil {
		t.Fatalf("ActorsAtStep failed: %v", err)
	}
	if len(actors) != 0 {
		t.Errorf("offset past the end = %v, want empty", actors)
	}
}

func TestActorsAtStepRejectsOutOfRange(t *testing.T) {
	e, res := actorFixture(t)

	for _, step := range []int{0, 4, -4} {
		if _, err := e.ActorsAtStep(res, step, nil, Pagination{}); !errors.Is(err, ErrConfig) {
			t.Errorf("step %d: expected ErrConfig, got %v", step, err)
		}
	}
}
