package status

import (
	"testing"
	"time"

	"github.com/pedrosland/textdeck/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if got := m.Current(); got != Starting {
		t.Errorf("Current() = %s, want STARTING", got)
	}
}

func TestValidTransitions(t *testing.T) {
	m := NewMachine(nil)
	steps := []State{Active, Suspended, Active, Degraded, Active, Stopped}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition(%s) error = %v", s, err)
		}
	}
	if m.Current() != Stopped {
		t.Errorf("Current() = %s, want STOPPED", m.Current())
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Active); err != nil {
		t.Fatal(err)
	}
	if err := m.Transition(Stopped); err != nil {
		t.Fatal(err)
	}
	if err := m.Transition(Active); err == nil {
		t.Error("Transition(STOPPED -> ACTIVE) should fail")
	}
}

func TestSelfTransitionIsNoOp(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Active); err != nil {
		t.Fatal(err)
	}
	if err := m.Transition(Active); err != nil {
		t.Errorf("self transition error = %v, want nil", err)
	}
}

func TestTransitionPublishesEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("engine.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Active); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		change, ok := evt.Payload.(Change)
		if !ok {
			t.Fatalf("payload type %T, want Change", evt.Payload)
		}
		if change.From != Starting || change.To != Active {
			t.Errorf("change = %+v, want STARTING -> ACTIVE", change)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for status event")
	}
}
