package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/orderbot/internal/bus"
)

// State is whether the bot is taking orders.
type State string

const (
	Inactive State = "INACTIVE"
	Active   State = "ACTIVE"
)

var validTransitions = map[State][]State{
	Inactive: {Active},
	Active:   {Inactive},
}

// Machine holds the bot's activity state. It is in-memory only and starts
// Inactive on every process start.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a machine in the Inactive state. b may be nil.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{current: Inactive, bus: b}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Active reports whether the bot is accepting orders.
func (m *Machine) Active() bool {
	return m.Current() == Active
}

// Transition moves to the given state. Moving to the current state is a
// no-op and reports changed=false.
func (m *Machine) Transition(to State, by string) (changed bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if to == m.current {
		return false, nil
	}
	if !slices.Contains(validTransitions[m.current], to) {
		return false, fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.bus.Publish(bus.Event{
		Kind:      bus.KindStateChanged,
		Timestamp: time.Now(),
		Payload:   StatusChange{From: from, To: to, By: by},
	})
	return true, nil
}

// StatusChange is the payload of bot.state_changed events.
type StatusChange struct {
	From State
	To   State
	By   string
}
