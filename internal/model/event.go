package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind is the severity of an emitted event.
type EventKind string

const (
	EventNormal  EventKind = "Normal"
	EventWarning EventKind = "Warning"
	EventError   EventKind = "Error"
)

// NativeAction is the closed set of lifecycle actions an event can report.
// Reconcilers and the lifecycle engine only ever emit one of these.
type NativeAction string

const (
	ActionCreate    NativeAction = "Create"
	ActionStarting  NativeAction = "Starting"
	ActionStart     NativeAction = "Start"
	ActionStop      NativeAction = "Stop"
	ActionStopping  NativeAction = "Stopping"
	ActionDestroying NativeAction = "Destroying"
	ActionDestroy   NativeAction = "Destroy"
	ActionRestart   NativeAction = "Restart"
	ActionUpdate    NativeAction = "Update"
	ActionPatch     NativeAction = "Patch"
	ActionRevert    NativeAction = "Revert"
	ActionUpdating  NativeAction = "Updating"
	ActionFinish    NativeAction = "Finish"
	ActionFail      NativeAction = "Fail"
	ActionKill      NativeAction = "Kill"
	ActionCancelled NativeAction = "Cancelled"
)

// EventActor is a weak reference to the object an event is about: a key
// lookup, never a pointer into the object graph, so a deleted actor never
// dangles a live reference.
type EventActor struct {
	Kind       Kind              `json:"kind"`
	Key        string            `json:"key"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Value and Scan store EventActor as a single jsonb column, since events
// only ever reference an actor by value, never by a joined foreign key. A
// zero-value EventActor (empty Kind and Key) marshals to SQL NULL, used to
// represent an absent "related" actor.
func (a EventActor) Value() (driver.Value, error) {
	if a.Kind == "" && a.Key == "" {
		return nil, nil
	}
	return json.Marshal(a)
}

func (a *EventActor) Scan(src any) error {
	if src == nil {
		*a = EventActor{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("EventActor.Scan: unsupported type %T", src)
	}
	return json.Unmarshal(b, a)
}

// IsZero reports whether a carries no actor reference.
func (a EventActor) IsZero() bool { return a.Kind == "" && a.Key == "" }

// Event is one row of the durable, append-only event log. It is persisted
// before it is fanned out to any subscriber (invariant I4).
type Event struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	Kind               EventKind       `json:"kind" db:"kind"`
	Action              NativeAction   `json:"action" db:"action"`
	Reason              string         `json:"reason,omitempty" db:"reason"`
	Note                string         `json:"note,omitempty" db:"note"`
	Metadata            json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	Actor               EventActor      `json:"actor" db:"actor"`
	Related             EventActor      `json:"related,omitempty" db:"related"`
	ReportingController string         `json:"reporting_controller" db:"reporting_controller"`
	ReportingNode       string         `json:"reporting_node" db:"reporting_node"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
}

// EventPartial is the set of fields a caller supplies when asking the event
// bus to emit a new event; ID and CreatedAt are assigned on persistence.
type EventPartial struct {
	Kind                 EventKind
	Action               NativeAction
	Reason               string
	Note                 string
	Metadata             json.RawMessage
	Actor                *EventActor
	Related              *EventActor
	ReportingController  string
	ReportingNode        string
}

// EventCondition filters which events a subscriber wants delivered.
type EventCondition struct {
	ActorKind Kind           `json:"actor_kind,omitempty"`
	ActorKey  string         `json:"actor_key,omitempty"`
	Actions   []NativeAction `json:"actions,omitempty"`
	Kind      EventKind      `json:"kind,omitempty"`
}

// Match reports whether ev satisfies every non-zero field of the condition.
func (c *EventCondition) Match(ev *Event) bool {
	if c == nil {
		return true
	}
	if c.ActorKind != "" && ev.Actor.Kind != c.ActorKind {
		return false
	}
	if c.ActorKey != "" && ev.Actor.Key != c.ActorKey {
		return false
	}
	if c.Kind != "" && ev.Kind != c.Kind {
		return false
	}
	if len(c.Actions) > 0 {
		found := false
		for _, a := range c.Actions {
			if a == ev.Action {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
