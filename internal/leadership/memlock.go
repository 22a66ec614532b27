package leadership

import (
	"context"
	"sync"
	"time"
)

// MemoryLockService is a process-local LockService. Several managers in one
// process can share it to contend for the same paths, which makes it the
// backend for single-host clusters and tests.
type MemoryLockService struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	holder  *memoryLock
	expires time.Time
	term    uint64
	changed chan struct{} // closed and replaced whenever the holder is released
}

// NewMemoryLockService returns an empty lock table.
func NewMemoryLockService() *MemoryLockService {
	return &MemoryLockService{entries: make(map[string]*memoryEntry)}
}

// Create implements LockService.
func (s *MemoryLockService) Create(path string) Lock {
	return &memoryLock{service: s, path: path}
}

// Holder returns the term of the current live lease on path, if any.
func (s *MemoryLockService) Holder(path string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[path]
	if !ok || !e.liveLocked(time.Now()) {
		return 0, false
	}
	return e.term, true
}

// Expire drops the lease on path as if it had timed out. The holder finds
// out on its next renewal.
func (s *MemoryLockService) Expire(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[path]; ok && e.holder != nil {
		e.release()
	}
}

// entryLocked must be called with mu held.
func (s *MemoryLockService) entryLocked(path string) *memoryEntry {
	e, ok := s.entries[path]
	if !ok {
		e = &memoryEntry{changed: make(chan struct{})}
		s.entries[path] = e
	}
	return e
}

func (e *memoryEntry) liveLocked(now time.Time) bool {
	return e.holder != nil && now.Before(e.expires)
}

func (e *memoryEntry) release() {
	e.holder = nil
	close(e.changed)
	e.changed = make(chan struct{})
}

type memoryLock struct {
	service *MemoryLockService
	path    string
	term    uint64
}

func (l *memoryLock) Path() string {
	return l.path
}

func (l *memoryLock) LockAsync(ctx context.Context, ttl time.Duration) <-chan LockResult {
	ch := make(chan LockResult, 1)
	go func() {
		for {
			if err := ctx.Err(); err != nil {
				resolve(ch, 0, err)
				return
			}
			s := l.service
			s.mu.Lock()
			e := s.entryLocked(l.path)
			now := time.Now()
			live := e.liveLocked(now)
			if !live || e.holder == l {
				if !live {
					e.term++
					l.term = e.term
				}
				e.holder = l
				e.expires = now.Add(ttl)
				term := l.term
				s.mu.Unlock()
				resolve(ch, term, nil)
				return
			}
			changed := e.changed
			wait := e.expires.Sub(now)
			s.mu.Unlock()

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				resolve(ch, 0, ctx.Err())
				return
			case <-changed:
				timer.Stop()
			case <-timer.C:
			}
		}
	}()
	return ch
}

func (l *memoryLock) ExtendExpiration(_ context.Context, ttl time.Duration) bool {
	s := l.service
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entryLocked(l.path)
	now := time.Now()
	if e.holder != l || !e.liveLocked(now) {
		return false
	}
	e.expires = now.Add(ttl)
	return true
}

func (l *memoryLock) Unlock(_ context.Context) error {
	s := l.service
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[l.path]; ok && e.holder == l {
		e.release()
	}
	return nil
}

func (l *memoryLock) IsLocked() bool {
	s := l.service
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[l.path]
	return ok && e.holder == l && e.liveLocked(time.Now())
}

func (l *memoryLock) Term() uint64 {
	l.service.mu.Lock()
	defer l.service.mu.Unlock()
	return l.term
}
