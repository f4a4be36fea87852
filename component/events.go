package component

import (
	"context"
	"encoding/json"
	"time"
)

// EventKind classifies registry events.
type EventKind string

const (
	EventRegistered   EventKind = "registered"
	EventDeregistered EventKind = "deregistered"
	EventTransition   EventKind = "transition"
	EventHookFailed   EventKind = "hook_failed"
)

// Event describes something the registry did. From and To are set for
// transitions; Err for hook failures; Duration is the hook's run time when a
// hook ran.
type Event struct {
	Kind      EventKind
	Component string
	ID        string
	Op        Operation
	From      State
	To        State
	Err       error
	Duration  time.Duration
	Time      time.Time
}

type eventJSON struct {
	Kind       EventKind `json:"kind"`
	Component  string    `json:"component"`
	ID         string    `json:"id"`
	Op         Operation `json:"op,omitempty"`
	From       *State    `json:"from,omitempty"`
	To         *State    `json:"to,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs float64   `json:"duration_ms,omitempty"`
	Time       time.Time `json:"time"`
}

// MarshalJSON encodes the event for the event stream.
func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		Kind:       e.Kind,
		Component:  e.Component,
		ID:         e.ID,
		Op:         e.Op,
		DurationMs: float64(e.Duration.Microseconds()) / 1000,
		Time:       e.Time,
	}
	if e.Kind == EventTransition {
		from, to := e.From, e.To
		out.From, out.To = &from, &to
	}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	return json.Marshal(out)
}

// Observer receives registry events. OnEvent runs synchronously on the
// goroutine that caused the event, with no registry lock held; slow observers
// slow the registry down.
type Observer interface {
	OnEvent(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) OnEvent(ctx context.Context, e Event) { f(ctx, e) }
