package service

import (
	"testing"

	"ampdialer_backend/platform/apperr"
)

func TestLifecycleHappyPath(t *testing.T) {
	m := NewMachine()

	path := []State{StateReady, StateDialing, StateConnected, StateDispositioning, StateReady}
	for _, next := range path {
		if err := m.Transition(next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
	if m.State() != StateReady {
		t.Fatalf("expected ready at loop end, got %s", m.State())
	}
}

func TestFailedDialReturnsToReady(t *testing.T) {
	m := NewMachine()
	mustTransition(t, m, StateReady, StateDialing)

	if err := m.Transition(StateReady); err != nil {
		t.Fatalf("dialing must be able to fall back to ready: %v", err)
	}
}

func TestInvalidTransitionsRejected(t *testing.T) {
	cases := []struct {
		name string
		walk []State
		to   State
	}{
		{"idle cannot dial", nil, StateDialing},
		{"idle cannot connect", nil, StateConnected},
		{"ready cannot connect", []State{StateReady}, StateConnected},
		{"connected cannot redial", []State{StateReady, StateDialing, StateConnected}, StateDialing},
		{"dispositioning cannot connect", []State{StateReady, StateDialing, StateConnected, StateDispositioning}, StateConnected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMachine()
			mustTransition(t, m, tc.walk...)

			before := m.State()
			err := m.Transition(tc.to)
			if !apperr.Is(err, apperr.KindConflict) {
				t.Fatalf("expected conflict, got %v", err)
			}
			if m.State() != before {
				t.Fatalf("rejected transition mutated state: %s -> %s", before, m.State())
			}
		})
	}
}

func TestForceIdleFromAnyState(t *testing.T) {
	walks := [][]State{
		nil,
		{StateReady},
		{StateReady, StateDialing},
		{StateReady, StateDialing, StateConnected},
		{StateReady, StateDialing, StateConnected, StateDispositioning},
	}
	for _, walk := range walks {
		m := NewMachine()
		mustTransition(t, m, walk...)
		m.ForceIdle()
		if m.State() != StateIdle {
			t.Fatalf("expected idle after force from %v, got %s", walk, m.State())
		}
		// Recovery from forced idle goes through ready again.
		if err := m.Transition(StateReady); err != nil {
			t.Fatalf("idle must allow ready: %v", err)
		}
	}
}

func mustTransition(t *testing.T, m *Machine, states ...State) {
	t.Helper()
	for _, s := range states {
		if err := m.Transition(s); err != nil {
			t.Fatalf("setup transition to %s: %v", s, err)
		}
	}
}
