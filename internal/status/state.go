// Package status tracks the sync engine's runtime state: whether the
// console is foregrounded and refreshing, suspended in the background, or
// degraded after transient fetch failures.
package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/pedrosland/textdeck/internal/bus"
)

// State represents an engine runtime state.
type State string

const (
	Starting  State = "STARTING"
	Active    State = "ACTIVE"
	Suspended State = "SUSPENDED"
	Degraded  State = "DEGRADED"
	Stopped   State = "STOPPED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Starting:  {Active, Suspended, Stopped},
	Active:    {Suspended, Degraded, Stopped},
	Suspended: {Active, Degraded, Stopped},
	Degraded:  {Active, Suspended, Stopped},
	Stopped:   {},
}

// Machine tracks and enforces engine state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Starting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Starting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Moving to the current state
// is a no-op; anything else not in the transition table is an error.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if to == m.current {
		return nil
	}
	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind: bus.KindEngineStatus,
			Payload: Change{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// Change is the payload for engine status events.
type Change struct {
	From State
	To   State
}
