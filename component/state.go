package component

import (
	"fmt"
	"strings"
)

// State is the lifecycle state of a registered component.
type State int

const (
	Stopped State = iota
	Started
	Paused
)

var stateNames = [...]string{
	Stopped: "Stopped",
	Started: "Started",
	Paused:  "Paused",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseState parses a state name, ignoring case.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if strings.EqualFold(n, name) {
			return State(i), nil
		}
	}
	return Stopped, fmt.Errorf("unknown component state %q", name)
}

// Operation is something the registry does to a component.
type Operation string

const (
	OpStart    Operation = "start"
	OpStop     Operation = "stop"
	OpPause    Operation = "pause"
	OpResume   Operation = "resume"
	OpUpdate   Operation = "update"
	OpShutdown Operation = "shutdown"
)

// Transitions lists the state-changing operations in the order the admin API
// documents them.
var Transitions = []Operation{OpStart, OpStop, OpPause, OpResume}

func (op Operation) String() string { return string(op) }

// next returns the state op leads to from s, and false when op does not
// apply to s.
func (s State) next(op Operation) (State, bool) {
	switch {
	case s == Stopped && op == OpStart:
		return Started, true
	case (s == Started || s == Paused) && op == OpStop:
		return Stopped, true
	case s == Started && op == OpPause:
		return Paused, true
	case s == Paused && op == OpResume:
		return Started, true
	}
	return s, false
}

// hook names the user hook op runs, or "" when it runs none.
func (op Operation) hook() string {
	switch op {
	case OpStart, OpResume:
		return "start"
	case OpStop:
		return "stop"
	case OpUpdate:
		return "update"
	case OpShutdown:
		return "shutdown"
	}
	return ""
}
