package funnel

import (
	"strings"
	"time"
)

// OrderingDiscipline selects how strictly step adjacency and ordering are
// enforced when matching an actor's events against the funnel.
type OrderingDiscipline int

const (
	// Ordered requires steps in order but tolerates unrelated events in between.
	Ordered OrderingDiscipline = iota
	// Strict requires each step to be the immediately next step-matching event.
	Strict
	// Unordered only requires presence of every step inside the window.
	Unordered
)

func (d OrderingDiscipline) String() string {
	switch d {
	case Strict:
		return "strict"
	case Unordered:
		return "unordered"
	default:
		return "ordered"
	}
}

// WindowUnit is the unit of a conversion window duration.
type WindowUnit string

const (
	UnitSecond WindowUnit = "second"
	UnitMinute WindowUnit = "minute"
	UnitHour   WindowUnit = "hour"
	UnitDay    WindowUnit = "day"
	UnitWeek   WindowUnit = "week"
)

// ConversionWindow bounds the elapsed time between the first matched step
// and the last step an actor ultimately reaches.
type ConversionWindow struct {
	Value int        `json:"value"`
	Unit  WindowUnit `json:"unit"`
}

// Duration converts the window into a time.Duration.
func (w ConversionWindow) Duration() time.Duration {
	base := map[WindowUnit]time.Duration{
		UnitSecond: time.Second,
		UnitMinute: time.Minute,
		UnitHour:   time.Hour,
		UnitDay:    24 * time.Hour,
		UnitWeek:   7 * 24 * time.Hour,
	}[w.Unit]
	return time.Duration(w.Value) * base
}

// EventMatch identifies the events a step or exclusion applies to.
// Exactly one of Name, ActionID or AnyEvent should be set.
type EventMatch struct {
	Name     string `json:"event,omitempty"`
	ActionID string `json:"actionId,omitempty"`
	AnyEvent bool   `json:"anyEvent,omitempty"`
}

// FilterOp is a property filter operator.
type FilterOp string

const (
	OpExact     FilterOp = "exact"
	OpIsNot     FilterOp = "is_not"
	OpIContains FilterOp = "icontains"
	OpIsSet     FilterOp = "is_set"
	OpIsNotSet  FilterOp = "is_not_set"
)

// FilterScope selects which property bag a filter reads from.
type FilterScope string

const (
	ScopeEvent FilterScope = "event"
	ScopeActor FilterScope = "actor"
)

// PropertyFilter narrows an EventMatch by event or actor properties.
type PropertyFilter struct {
	Key    string      `json:"key"`
	Op     FilterOp    `json:"operator"`
	Values []string    `json:"values,omitempty"`
	Scope  FilterScope `json:"scope,omitempty"`
}

// StepDefinition is one ordered stage of the funnel.
type StepDefinition struct {
	Order   int              `json:"order"`
	Match   EventMatch       `json:"match"`
	Filters []PropertyFilter `json:"filters,omitempty"`
}

// ExclusionDefinition disqualifies lineages that trigger its matcher between
// FromStep and ToStep (0-indexed, ToStep > FromStep).
type ExclusionDefinition struct {
	Match    EventMatch       `json:"match"`
	Filters  []PropertyFilter `json:"filters,omitempty"`
	FromStep int              `json:"fromStep"`
	ToStep   int              `json:"toStep"`
}

// BreakdownSource selects where breakdown values are read from.
type BreakdownSource string

const (
	BreakdownEvent  BreakdownSource = "event"
	BreakdownActor  BreakdownSource = "actor"
	BreakdownCohort BreakdownSource = "cohort"
)

// BreakdownSpec configures result partitioning by a property projection.
// Multiple Keys form a tuple breakdown; Cohorts lists cohort identifiers
// when Source is BreakdownCohort.
type BreakdownSpec struct {
	Source  BreakdownSource `json:"source"`
	Keys    []string        `json:"keys,omitempty"`
	Cohorts []string        `json:"cohorts,omitempty"`
}

// BreakdownKey is the structural identity of one breakdown bucket. Tuple
// breakdowns are encoded by joining their components, so equality stays
// a plain string comparison.
type BreakdownKey string

const (
	// BreakdownMissing is the reserved key for an absent breakdown property.
	// It participates in grouping and displays as an empty string.
	BreakdownMissing BreakdownKey = ""
	// BreakdownOther is the fold bucket for values beyond the breakdown limit.
	BreakdownOther BreakdownKey = "Other"
)

const tupleSeparator = "::"

// CombineBreakdown builds a tuple BreakdownKey from its parts.
func CombineBreakdown(parts []string) BreakdownKey {
	return BreakdownKey(strings.Join(parts, tupleSeparator))
}

// AttributionKind enumerates the breakdown attribution policies.
type AttributionKind int

const (
	// FirstTouch attributes the breakdown value of the step-0 event.
	FirstTouch AttributionKind = iota
	// LastTouch attributes the value of the highest step actually reached.
	LastTouch
	// StepTouch attributes the value observed at one specific step.
	StepTouch
	// AllEvents duplicates the run once per distinct value seen across its
	// step events, each duplicate progressing only on that value's events.
	AllEvents
)

// Attribution is the closed policy union; Step is only read for StepTouch.
type Attribution struct {
	Kind AttributionKind `json:"kind"`
	Step int             `json:"step,omitempty"`
}

func (a Attribution) String() string {
	switch a.Kind {
	case LastTouch:
		return "last_touch"
	case StepTouch:
		return "step"
	case AllEvents:
		return "all_events"
	default:
		return "first_touch"
	}
}

// Query is the complete immutable configuration for one funnel computation.
type Query struct {
	Steps          []StepDefinition
	Exclusions     []ExclusionDefinition
	Window         ConversionWindow
	Order          OrderingDiscipline
	Breakdown      *BreakdownSpec
	Attribution    Attribution
	BreakdownLimit int
	Workers        int
}

// RawEvent is one event as delivered by the upstream event source, before
// step/exclusion classification.
type RawEvent struct {
	ActorID         string
	EventID         string
	Name            string
	ActionIDs       []string
	Timestamp       time.Time
	Properties      map[string]any
	ActorProperties map[string]any
}

// ActorEvent is a classified event: the steps and exclusions it matches for
// the active query, plus its resolved breakdown key.
type ActorEvent struct {
	ActorID    string
	EventID    string
	Timestamp  time.Time
	Steps      []int
	Exclusions []int
	Breakdown  BreakdownKey
	// BreakdownValid is false when the breakdown property was present but
	// malformed; such runs are kept in totals but left out of breakdown output.
	BreakdownValid bool
}

func (e ActorEvent) hasStep(i int) bool {
	for _, s := range e.Steps {
		if s == i {
			return true
		}
	}
	return false
}

func (e ActorEvent) hasExclusion(i int) bool {
	for _, x := range e.Exclusions {
		if x == i {
			return true
		}
	}
	return false
}

// FunnelRun is the outcome of sequencing one actor: how many steps were
// completed and the attributed timestamp of each. StepsCompleted is a count,
// so a value of len(Steps) means full conversion.
type FunnelRun struct {
	ActorID        string
	StepsCompleted int
	StepTimes      []time.Time
	Breakdown      BreakdownKey
}

// ConversionSeconds returns the elapsed seconds for the transition into step
// index i (1-based transition target, 0-indexed steps).
func (r FunnelRun) ConversionSeconds(i int) float64 {
	return r.StepTimes[i].Sub(r.StepTimes[i-1]).Seconds()
}

// StepResult is one row of the aggregate output. Breakdown is nil for
// unpartitioned results. Average/Median are nil when no actor completed the
// transition into the step.
type StepResult struct {
	StepIndex      int           `json:"stepIndex"`
	Count          int           `json:"count"`
	AverageSeconds *float64      `json:"averageConversionSeconds,omitempty"`
	MedianSeconds  *float64      `json:"medianConversionSeconds,omitempty"`
	Breakdown      *BreakdownKey `json:"breakdown,omitempty"`
}

// Diagnostics tallies non-fatal anomalies observed during a run.
type Diagnostics struct {
	ActorsSeen         int `json:"actorsSeen"`
	RunsKept           int `json:"runsKept"`
	LineagesExcluded   int `json:"lineagesExcluded"`
	OutOfOrderActors   int `json:"outOfOrderActors"`
	BreakdownAnomalies int `json:"breakdownAnomalies"`
}

func (d *Diagnostics) merge(o Diagnostics) {
	d.ActorsSeen += o.ActorsSeen
	d.RunsKept += o.RunsKept
	d.LineagesExcluded += o.LineagesExcluded
	d.OutOfOrderActors += o.OutOfOrderActors
	d.BreakdownAnomalies += o.BreakdownAnomalies
}

// Result is the full outcome of one engine run. Runs holds one base run per
// surviving actor; BreakdownRuns holds the attribution-policy view used for
// partitioned output (identical to Runs except under AllEvents, where one
// actor may appear once per breakdown value).
type Result struct {
	RunID         string       `json:"runId"`
	Steps         []StepResult `json:"steps"`
	Runs          []FunnelRun  `json:"-"`
	BreakdownRuns []FunnelRun  `json:"-"`
	Diagnostics   Diagnostics  `json:"diagnostics"`
}

// CohortResolver is the external identity collaborator used for cohort
// breakdowns.
type CohortResolver interface {
	IsMember(actorID, cohortID string) bool
}
