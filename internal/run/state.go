package run

import (
	"errors"
	"fmt"

	"cardsorter/internal/services"
)

// State is the lifecycle state of a run.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateEnded   State = "ended"
)

// Event names a requested transition.
type Event string

const (
	EventStart  Event = "start"
	EventPause  Event = "pause"
	EventResume Event = "resume"
	EventEnd    Event = "end"
)

// ErrInvalidTransition matches every TransitionError.
var ErrInvalidTransition = fmt.Errorf("%w: invalid run transition", services.ErrConflict)

// TransitionError reports an event that is not defined for the current state.
type TransitionError struct {
	From  State
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s run while %s", e.Event, e.From)
}

// Is lets errors.Is match ErrInvalidTransition and its conflict marker.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition || errors.Is(ErrInvalidTransition, target)
}

var transitions = map[Event]map[State]State{
	EventStart:  {StateIdle: StateRunning, StateEnded: StateRunning},
	EventPause:  {StateRunning: StatePaused},
	EventResume: {StatePaused: StateRunning},
	EventEnd:    {StateRunning: StateEnded, StatePaused: StateEnded},
}

// Next returns the state reached by applying event to from.
func Next(from State, event Event) (State, error) {
	if to, ok := transitions[event][from]; ok {
		return to, nil
	}
	return from, &TransitionError{From: from, Event: event}
}

// ParseEvent maps a textual event name to an Event.
func ParseEvent(name string) (Event, error) {
	switch Event(name) {
	case EventStart, EventPause, EventResume, EventEnd:
		return Event(name), nil
	default:
		return "", services.Wrap(services.ErrValidation, "run", "parse event", fmt.Sprintf("unknown event %q", name), nil)
	}
}
