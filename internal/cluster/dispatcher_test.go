package cluster

import (
	"errors"
	"sync"
	"testing"

	"github.com/concave-dev/lattice/internal/wire"
)

// TestDispatcher_Dispatch tests delivery to every subscriber of a subject
func TestDispatcher_Dispatch(t *testing.T) {
	d := NewDispatcher(nil)
	subject := wire.NewSubject("topology-event")
	other := wire.NewSubject("flow-event")

	var mu sync.Mutex
	var calls []string
	record := func(name string) Handler {
		return func(msg wire.Message, from NodeID) {
			mu.Lock()
			calls = append(calls, name+":"+string(from)+":"+string(msg.Payload))
			mu.Unlock()
		}
	}

	if _, err := d.Subscribe(subject, record("a")); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if _, err := d.Subscribe(subject, record("b")); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if _, err := d.Subscribe(other, record("c")); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	n := d.Dispatch(wire.NewMessage(subject, []byte("x")), "node-1")
	if n != 2 {
		t.Errorf("Dispatch() = %d, want 2", n)
	}
	if len(calls) != 2 {
		t.Fatalf("handlers called %d times, want 2: %v", len(calls), calls)
	}
	for _, c := range calls {
		if c != "a:node-1:x" && c != "b:node-1:x" {
			t.Errorf("unexpected handler call %q", c)
		}
	}

	if n := d.Dispatch(wire.NewMessage(wire.NewSubject("nobody"), nil), "node-1"); n != 0 {
		t.Errorf("Dispatch() with no subscribers = %d, want 0", n)
	}
}

// TestDispatcher_Unsubscribe tests both removal paths
func TestDispatcher_Unsubscribe(t *testing.T) {
	d := NewDispatcher(nil)
	subject := wire.NewSubject("topology-event")
	noop := func(wire.Message, NodeID) {}

	remove, err := d.Subscribe(subject, noop)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if _, err := d.Subscribe(subject, noop); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	remove()
	remove()
	if got := d.SubscriberCount(subject); got != 1 {
		t.Errorf("SubscriberCount() after remove = %d, want 1", got)
	}

	if err := d.Unsubscribe(subject); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if got := d.SubscriberCount(subject); got != 0 {
		t.Errorf("SubscriberCount() after Unsubscribe = %d, want 0", got)
	}
}

// TestDispatcher_UnsubscribeReserved tests built-in handlers survive a bulk
// removal of their subject
func TestDispatcher_UnsubscribeReserved(t *testing.T) {
	m, err := NewConnectionManager(DefaultConfig())
	if err != nil {
		t.Fatalf("NewConnectionManager() error = %v", err)
	}
	d := m.Dispatcher()

	for _, subject := range []wire.Subject{wire.Hello, wire.Goodbye, wire.LeadershipEvent} {
		if err := d.Unsubscribe(subject); !errors.Is(err, ErrReservedSubject) {
			t.Errorf("Unsubscribe(%s) error = %v, want %v", subject, err, ErrReservedSubject)
		}
	}
	if got := d.SubscriberCount(wire.Goodbye); got != 1 {
		t.Errorf("GOODBYE SubscriberCount() = %d, want 1", got)
	}
}

// TestDispatcher_SnapshotDuringDispatch tests that a handler registering
// another handler does not affect the delivery in progress
func TestDispatcher_SnapshotDuringDispatch(t *testing.T) {
	d := NewDispatcher(nil)
	subject := wire.NewSubject("topology-event")

	late := 0
	_, err := d.Subscribe(subject, func(wire.Message, NodeID) {
		d.Subscribe(subject, func(wire.Message, NodeID) { late++ })
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if n := d.Dispatch(wire.NewMessage(subject, nil), "node-1"); n != 1 {
		t.Errorf("Dispatch() = %d, want 1", n)
	}
	if late != 0 {
		t.Errorf("handler added during dispatch ran %d times, want 0", late)
	}
	if got := d.SubscriberCount(subject); got != 2 {
		t.Errorf("SubscriberCount() = %d, want 2", got)
	}
}

// TestDispatcher_PanicRecovery tests a panicking handler does not stop the others
func TestDispatcher_PanicRecovery(t *testing.T) {
	d := NewDispatcher(nil)
	subject := wire.NewSubject("topology-event")

	ran := false
	d.Subscribe(subject, func(wire.Message, NodeID) { panic("boom") })
	d.Subscribe(subject, func(wire.Message, NodeID) { ran = true })

	d.Dispatch(wire.NewMessage(subject, nil), "node-1")
	if !ran {
		t.Error("second handler did not run after the first panicked")
	}
}

// TestDispatcher_SubscribeCollision tests ordinal collisions are refused
func TestDispatcher_SubscribeCollision(t *testing.T) {
	d := NewDispatcher(nil)
	impostor := wire.Subject{Name: "not-hello", Ordinal: wire.HelloOrdinal}

	_, err := d.Subscribe(impostor, func(wire.Message, NodeID) {})
	if !errors.Is(err, wire.ErrSubjectCollision) {
		t.Errorf("Subscribe() error = %v, want ErrSubjectCollision", err)
	}
	if got := d.SubscriberCount(impostor); got != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", got)
	}
}
