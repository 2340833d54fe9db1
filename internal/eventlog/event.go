package eventlog

import "fmt"

// Event is one raw actor event as ingested into the log. It is the unit the
// funnel engine's matcher classifies; the log itself attaches no step or
// funnel semantics.
type Event struct {
	// ActorID identifies the person or group performing the event.
	ActorID string `json:"actorId"`
	// EventID is a stable secondary key used to break timestamp ties.
	EventID string `json:"eventId,omitempty"`
	// Name is the event name (e.g. "signup", "$pageview").
	Name string `json:"event"`
	// ActionIDs lists the action definitions this event belongs to.
	ActionIDs []string `json:"actionIds,omitempty"`
	// Timestamp is the physical time the event occurred (Unix microseconds).
	Timestamp int64 `json:"ts"`

	// Properties holds the event-scoped property bag.
	Properties map[string]any `json:"properties,omitempty"`
	// ActorProperties holds the actor-scoped property bag as of this event.
	ActorProperties map[string]any `json:"actorProperties,omitempty"`
}

// identity computes a unique string identifier for an event to aid
// deduplication.
func (e Event) identity() string {
	return fmt.Sprintf("%s|%s|%d|%s", e.ActorID, e.EventID, e.Timestamp, e.Name)
}
