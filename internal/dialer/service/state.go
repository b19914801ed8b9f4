package service

import (
	"sync"

	"ampdialer_backend/platform/apperr"
)

// State is the coordinator's position in the call lifecycle. Exactly one
// state holds at a time; transitions are driven only by operation outcomes,
// never by direct external mutation.
type State int

const (
	// StateIdle is the initial state and the universal error-recovery state;
	// any collaborator 401/403 forces re-entry here.
	StateIdle State = iota
	// StateReady means a lead can be dialed.
	StateReady
	// StateDialing means a place-call request is in flight.
	StateDialing
	// StateConnected means the gateway accepted the dial and an ActiveCall exists.
	StateConnected
	// StateDispositioning means hang-up is confirmed and disposition writes run.
	StateDispositioning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReady:
		return "ready"
	case StateDialing:
		return "dialing"
	case StateConnected:
		return "connected"
	case StateDispositioning:
		return "dispositioning"
	default:
		return "unknown"
	}
}

var allowedTransitions = map[State][]State{
	StateIdle:           {StateReady},
	StateReady:          {StateDialing},
	StateDialing:        {StateConnected, StateReady},
	StateConnected:      {StateDispositioning},
	StateDispositioning: {StateReady},
}

// Machine guards the session state. ForceIdle is the only transition allowed
// from every state.
type Machine struct {
	mu    sync.Mutex
	state State
}

// NewMachine creates a machine in the idle state.
func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition moves to the target state, rejecting edges the lifecycle does
// not define. A rejected transition is a programming error on the caller's
// side, surfaced as a conflict.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, next := range allowedTransitions[m.state] {
		if next == to {
			m.state = to
			return nil
		}
	}
	return apperr.Conflict("invalid state transition from " + m.state.String() + " to " + to.String())
}

// ForceIdle drops back to idle from any state. Used on session invalidation.
func (m *Machine) ForceIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateIdle
}
