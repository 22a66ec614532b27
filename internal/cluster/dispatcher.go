package cluster

import (
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/concave-dev/lattice/internal/logging"
	"github.com/concave-dev/lattice/internal/wire"
)

// ErrReservedSubject is returned when bulk removal targets a built-in subject.
var ErrReservedSubject = errors.New("cannot unsubscribe a reserved subject")

// Handler receives a message together with the node it arrived from.
// Handlers run on IO worker goroutines and must not block.
type Handler func(msg wire.Message, from NodeID)

type subscription struct {
	id      uint64
	handler Handler
}

// subscriberTable is immutable once published.
type subscriberTable map[uint32][]subscription

// Dispatcher fans inbound messages out to subscribers keyed by subject.
//
// Registration is rare and serialized by a mutex; each change publishes a
// fresh table. Dispatch only loads the current table, so it never waits on
// registration.
type Dispatcher struct {
	registry *wire.Registry

	mu     sync.Mutex
	nextID uint64
	table  atomic.Pointer[subscriberTable]
}

// NewDispatcher creates a dispatcher that interns subjects in registry.
func NewDispatcher(registry *wire.Registry) *Dispatcher {
	if registry == nil {
		registry = wire.NewRegistry()
	}
	d := &Dispatcher{registry: registry}
	empty := subscriberTable{}
	d.table.Store(&empty)
	return d
}

// Registry returns the subject registry used for decoding.
func (d *Dispatcher) Registry() *wire.Registry {
	return d.registry
}

// Subscribe adds handler for subject and returns a function that removes it.
// Subscribing to a subject whose ordinal collides with another name fails.
func (d *Dispatcher) Subscribe(subject wire.Subject, handler Handler) (func(), error) {
	if err := d.registry.Register(subject); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.nextID++
	id := d.nextID
	next := d.copyTable()
	next[subject.Ordinal] = append(next[subject.Ordinal], subscription{id: id, handler: handler})
	d.table.Store(&next)
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { d.remove(subject.Ordinal, id) })
	}, nil
}

// Unsubscribe removes every handler for subject. Reserved subjects carry the
// transport's own handlers and can only be released through the function
// Subscribe returned.
func (d *Dispatcher) Unsubscribe(subject wire.Subject) error {
	if subject.IsReserved() {
		return ErrReservedSubject
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	next := d.copyTable()
	delete(next, subject.Ordinal)
	d.table.Store(&next)
	return nil
}

func (d *Dispatcher) remove(ordinal uint32, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := d.copyTable()
	subs := next[ordinal]
	kept := make([]subscription, 0, len(subs))
	for _, sub := range subs {
		if sub.id != id {
			kept = append(kept, sub)
		}
	}
	if len(kept) == 0 {
		delete(next, ordinal)
	} else {
		next[ordinal] = kept
	}
	d.table.Store(&next)
}

// copyTable must be called with mu held.
func (d *Dispatcher) copyTable() subscriberTable {
	cur := *d.table.Load()
	next := make(subscriberTable, len(cur)+1)
	for ord, subs := range cur {
		next[ord] = append([]subscription(nil), subs...)
	}
	return next
}

// Dispatch delivers msg to every subscriber of its subject and returns how
// many handlers ran. A panicking handler is logged and skipped.
func (d *Dispatcher) Dispatch(msg wire.Message, from NodeID) int {
	subs := (*d.table.Load())[msg.Subject.Ordinal]
	if len(subs) == 0 {
		logging.Debug("No subscribers for %s from %s", msg.Subject, from)
		return 0
	}
	for _, sub := range subs {
		d.invoke(sub.handler, msg, from)
	}
	return len(subs)
}

func (d *Dispatcher) invoke(h Handler, msg wire.Message, from NodeID) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Subscriber for %s panicked: %v\n%s", msg.Subject, r, debug.Stack())
		}
	}()
	h(msg, from)
}

// SubscriberCount returns the number of handlers registered for subject.
func (d *Dispatcher) SubscriberCount(subject wire.Subject) int {
	return len((*d.table.Load())[subject.Ordinal])
}
