package wire

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Reserved ordinals. Application subjects never hash into this range.
const (
	HelloOrdinal           uint32 = 1
	GoodbyeOrdinal         uint32 = 2
	LeadershipEventOrdinal uint32 = 3

	reservedCeiling uint32 = 1024
)

// Built-in subjects understood by every node.
var (
	Hello           = Subject{Name: "hello", Ordinal: HelloOrdinal}
	Goodbye         = Subject{Name: "goodbye", Ordinal: GoodbyeOrdinal}
	LeadershipEvent = Subject{Name: "leadership-events", Ordinal: LeadershipEventOrdinal}
)

// ErrSubjectCollision is returned when two distinct names map to one ordinal.
var ErrSubjectCollision = errors.New("wire: subject ordinal collision")

// Subject identifies a message topic. The ordinal travels on the wire, the
// name is kept for logs and the API.
type Subject struct {
	Name    string
	Ordinal uint32
}

// String returns the subject name, or the ordinal for unknown subjects.
func (s Subject) String() string {
	if s.Name == "" {
		return fmt.Sprintf("subject(%d)", s.Ordinal)
	}
	return s.Name
}

// IsReserved reports whether s uses a built-in ordinal.
func (s Subject) IsReserved() bool {
	return s.Ordinal < reservedCeiling
}

// NewSubject derives a stable subject from its name. Every node computes the
// same ordinal for the same name, so no coordination is needed.
func NewSubject(name string) Subject {
	ord := uint32(xxhash.Sum64String(name))
	if ord < reservedCeiling {
		ord += reservedCeiling
	}
	return Subject{Name: name, Ordinal: ord}
}

func reservedByOrdinal(ordinal uint32) (Subject, bool) {
	switch ordinal {
	case HelloOrdinal:
		return Hello, true
	case GoodbyeOrdinal:
		return Goodbye, true
	case LeadershipEventOrdinal:
		return LeadershipEvent, true
	}
	return Subject{}, false
}

// Registry interns subjects for one node. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	byOrdinal map[uint32]Subject
	byName    map[string]Subject
}

// NewRegistry returns a registry pre-populated with the built-in subjects.
func NewRegistry() *Registry {
	r := &Registry{
		byOrdinal: make(map[uint32]Subject),
		byName:    make(map[string]Subject),
	}
	for _, s := range []Subject{Hello, Goodbye, LeadershipEvent} {
		r.byOrdinal[s.Ordinal] = s
		r.byName[s.Name] = s
	}
	return r
}

// Register interns s. Registering the same subject twice is a no-op.
func (r *Registry) Register(s Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byOrdinal[s.Ordinal]; ok {
		if existing.Name != s.Name {
			return fmt.Errorf("%w: %q and %q share ordinal %d",
				ErrSubjectCollision, existing.Name, s.Name, s.Ordinal)
		}
		return nil
	}
	if existing, ok := r.byName[s.Name]; ok && existing.Ordinal != s.Ordinal {
		return fmt.Errorf("%w: %q registered as %d and %d",
			ErrSubjectCollision, s.Name, existing.Ordinal, s.Ordinal)
	}

	r.byOrdinal[s.Ordinal] = s
	r.byName[s.Name] = s
	return nil
}

// Intern derives and registers the subject for name.
func (r *Registry) Intern(name string) (Subject, error) {
	s := NewSubject(name)
	if err := r.Register(s); err != nil {
		return Subject{}, err
	}
	return s, nil
}

// Lookup resolves an ordinal read off the wire.
func (r *Registry) Lookup(ordinal uint32) (Subject, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byOrdinal[ordinal]
	return s, ok
}

// Subjects returns all interned subjects ordered by name.
func (r *Registry) Subjects() []Subject {
	r.mu.RLock()
	out := make([]Subject, 0, len(r.byOrdinal))
	for _, s := range r.byOrdinal {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
