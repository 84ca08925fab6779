package narration

import (
	"errors"
	"fmt"
)

// State is the lifecycle of the current narration.
type State int

const (
	StateIdle State = iota
	StateStarting
	StatePlaying
	StatePaused
	StateDone
)

var ErrInvalidTransition = errors.New("invalid narration state transition")

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// transitions lists the allowed moves besides the reset to Idle, which is
// always allowed.
var transitions = map[State][]State{
	StateIdle:     {StateStarting},
	StateStarting: {StatePlaying},
	StatePlaying:  {StatePaused, StateDone},
	StatePaused:   {StatePlaying, StateDone},
	StateDone:     {StateStarting},
}

func (s State) canTransition(to State) bool {
	if to == StateIdle {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

func transition(from, to State) (State, error) {
	if !from.canTransition(to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}
