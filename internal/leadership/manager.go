// Package leadership elects a single leader per named path across the
// cluster, using leased locks from an external LockService.
//
// CANDIDATES:
// Every node running for a path is a candidate for it. Candidacies are
// shared the same way leaderships are, and a node's entries are dropped
// when it leaves the cluster.
//
// TERM MODEL:
// A contestant that acquires the lock for a path becomes leader for one term
// and extends its lease every half term. A failed extension means the lease
// may already belong to someone else, so the node steps down immediately and
// contests again. Terms are issued by the lock service and increase on every
// acquisition, which lets every node order leadership claims it hears about.
//
// CONCURRENCY:
// Lock callbacks and renewals run on a bounded goroutine pool and are chained
// with timers, one chain per path. Every callback re-checks that its contest
// is still open before acting, so a Withdraw never has to interrupt an
// in-flight lock call.
package leadership

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/concave-dev/lattice/internal/cluster"
	"github.com/concave-dev/lattice/internal/logging"
	"github.com/panjf2000/ants/v2"
)

// releaseTimeout bounds how long Stop waits for pool workers to finish
const releaseTimeout = 2 * time.Second

var (
	// ErrStopped is returned when running for leadership on a stopped manager.
	ErrStopped = errors.New("leadership manager stopped")

	// ErrInvalidPath is returned for empty leadership paths.
	ErrInvalidPath = errors.New("invalid leadership path")
)

// contest is the local node's candidacy for one path. A withdrawn contest is
// never reused; running again creates a new one with a new generation.
type contest struct {
	gen    uint64
	path   string
	since  time.Time
	lock   Lock
	leader bool
	term   uint64
	timer  *time.Timer
	cancel context.CancelFunc
}

type listenerEntry struct {
	id        uint64
	fn        Listener
	candidacy bool
}

// Manager runs the local node's leadership contests and keeps the cluster
// wide leader board.
type Manager struct {
	config  *Config
	local   cluster.NodeID
	locks   LockService
	pool    *ants.Pool
	metrics *leadershipMetrics

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	contests     map[string]*contest
	board        map[string]Leadership
	candidates   map[string]map[cluster.NodeID]time.Time
	listeners    []listenerEntry
	nextGen      uint64
	nextListener uint64
	pending      []Event
	flushing     bool
	stopped      bool
}

type leadershipMetrics struct {
	set          *metrics.Set
	elected      *metrics.Counter
	reelected    *metrics.Counter
	booted       *metrics.Counter
	stepdowns    *metrics.Counter
	lockFailures *metrics.Counter
}

// NewManager creates a manager contesting on behalf of local.
func NewManager(cfg *Config, local cluster.NodeID, locks LockService) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid leadership config: %w", err)
	}
	if local == "" {
		return nil, fmt.Errorf("local node id is required")
	}
	if locks == nil {
		return nil, fmt.Errorf("lock service is required")
	}

	pool, err := ants.NewPool(cfg.PoolSize,
		ants.WithPreAlloc(true),
		ants.WithNonblocking(false),
		ants.WithPanicHandler(func(p any) {
			logging.Error("Leadership task panicked: %v\n%s", p, debug.Stack())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create leadership pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:   cfg,
		local:    local,
		locks:    locks,
		pool:     pool,
		ctx:      ctx,
		cancel:   cancel,
		contests:   make(map[string]*contest),
		board:      make(map[string]Leadership),
		candidates: make(map[string]map[cluster.NodeID]time.Time),
	}

	set := metrics.NewSet()
	m.metrics = &leadershipMetrics{
		set:          set,
		elected:      set.NewCounter("lattice_leadership_elected_total"),
		reelected:    set.NewCounter("lattice_leadership_reelected_total"),
		booted:       set.NewCounter("lattice_leadership_booted_total"),
		stepdowns:    set.NewCounter("lattice_leadership_stepdowns_total"),
		lockFailures: set.NewCounter("lattice_leadership_lock_failures_total"),
	}
	set.NewGauge("lattice_leadership_owned_paths", func() float64 {
		return float64(len(m.OwnedPaths()))
	})

	return m, nil
}

// LocalNode returns the node this manager contests for.
func (m *Manager) LocalNode() cluster.NodeID {
	return m.local
}

// RunForLeadership starts contesting path. Calling it for a path already
// being contested does nothing.
func (m *Manager) RunForLeadership(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrInvalidPath
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	if _, ok := m.contests[path]; ok {
		m.mu.Unlock()
		return nil
	}
	m.nextGen++
	c := &contest{gen: m.nextGen, path: path, lock: m.locks.Create(path), since: time.Now()}
	m.contests[path] = c
	m.enqueueLocked(CandidateJoined, c)
	m.mu.Unlock()

	logging.Info("Running for leadership of %s", path)
	m.flush()
	m.submit(func() { m.acquire(c) })
	return nil
}

// Withdraw stops contesting path. If this node holds the path the lock is
// released and LEADER_BOOTED is emitted. Withdrawing a path that is not
// being contested does nothing.
func (m *Manager) Withdraw(path string) error {
	m.mu.Lock()
	c, ok := m.contests[path]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.contests, path)
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.cancel != nil {
		c.cancel()
	}
	wasLeader := c.leader
	c.leader = false
	if wasLeader {
		m.dropOwnLocked(path)
		m.enqueueLocked(LeaderBooted, c)
	}
	m.enqueueLocked(CandidateLeft, c)
	m.mu.Unlock()

	var err error
	if wasLeader {
		err = m.unlock(c)
		m.metrics.booted.Inc()
		logging.Info("Withdrew from leadership of %s (term %d)", path, c.term)
	} else {
		logging.Info("Withdrew candidacy for %s", path)
	}
	m.flush()
	return err
}

// Stepdown gives up leadership of path without withdrawing: the lock is
// released, LEADER_BOOTED is emitted and the node contests again half a term
// later. It reports false unless this node currently leads path.
func (m *Manager) Stepdown(path string) bool {
	m.mu.Lock()
	c, ok := m.contests[path]
	if !ok || !c.leader {
		m.mu.Unlock()
		return false
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.leader = false
	m.dropOwnLocked(path)
	m.enqueueLocked(LeaderBooted, c)
	m.mu.Unlock()

	m.unlock(c)
	m.metrics.booted.Inc()
	m.metrics.stepdowns.Inc()
	logging.Info("Stepped down from leadership of %s (term %d)", path, c.term)
	m.flush()

	m.mu.Lock()
	if m.isOpenLocked(c) && !c.leader {
		m.scheduleLocked(c, m.config.renewInterval(), m.acquire)
	}
	m.mu.Unlock()
	return true
}

// Stop withdraws from every path and releases the worker pool.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	paths := make([]string, 0, len(m.contests))
	for path := range m.contests {
		paths = append(paths, path)
	}
	m.mu.Unlock()

	for _, path := range paths {
		if err := m.Withdraw(path); err != nil {
			logging.Warn("Failed to release %s: %v", path, err)
		}
	}

	m.cancel()
	if err := m.pool.ReleaseTimeout(releaseTimeout); err != nil {
		logging.Warn("Leadership pool did not drain: %v", err)
	}
}

// AddListener registers l for local leadership events and returns a function
// that removes it. Listeners run in registration order.
func (m *Manager) AddListener(l Listener) func() {
	return m.addListener(l, false)
}

// AddCandidacyListener registers l for CANDIDATE_JOINED and CANDIDATE_LEFT
// events of the local node.
func (m *Manager) AddCandidacyListener(l Listener) func() {
	return m.addListener(l, true)
}

func (m *Manager) addListener(l Listener, candidacy bool) func() {
	m.mu.Lock()
	m.nextListener++
	id := m.nextListener
	m.listeners = append(m.listeners, listenerEntry{id: id, fn: l, candidacy: candidacy})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, entry := range m.listeners {
				if entry.id == id {
					m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// ============================================================================
// CONTEST STATE MACHINE
// ============================================================================

// isOpenLocked reports whether c is still the live contest for its path.
// Must be called with mu held.
func (m *Manager) isOpenLocked(c *contest) bool {
	cur, ok := m.contests[c.path]
	return ok && cur.gen == c.gen
}

// acquire starts a lock attempt for c. The result is handled on the pool.
func (m *Manager) acquire(c *contest) {
	m.mu.Lock()
	if !m.isOpenLocked(c) {
		m.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(m.ctx)
	c.cancel = cancel
	m.mu.Unlock()

	results := c.lock.LockAsync(ctx, m.config.ttl())
	go func() {
		res := <-results
		if !m.submit(func() { m.onLocked(c, res) }) && res.Err == nil {
			m.unlock(c)
		}
	}()
}

func (m *Manager) onLocked(c *contest, res LockResult) {
	m.mu.Lock()
	if !m.isOpenLocked(c) {
		m.mu.Unlock()
		if res.Err == nil {
			// Withdrawn while the attempt was in flight
			m.unlock(c)
		}
		return
	}

	if res.Err != nil {
		m.scheduleLocked(c, m.config.RetryDelay, m.acquire)
		m.mu.Unlock()
		m.metrics.lockFailures.Inc()
		logging.Debug("Lock attempt for %s failed, retrying: %v", c.path, res.Err)
		return
	}

	now := time.Now()
	c.leader = true
	c.term = res.Term
	m.board[c.path] = Leadership{Path: c.path, Leader: m.local, Term: res.Term, Elected: now, Renewed: now}
	m.enqueueLocked(LeaderElected, c)
	m.scheduleLocked(c, m.config.renewInterval(), m.renew)
	m.mu.Unlock()

	m.metrics.elected.Inc()
	logging.Success("Elected leader of %s (term %d)", c.path, res.Term)
	m.flush()
}

// renew extends the lease for c, stepping down if the extension fails.
func (m *Manager) renew(c *contest) {
	m.mu.Lock()
	if !m.isOpenLocked(c) || !c.leader {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(m.ctx, m.config.renewInterval())
	extended := c.lock.ExtendExpiration(ctx, m.config.ttl())
	cancel()

	m.mu.Lock()
	if !m.isOpenLocked(c) || !c.leader {
		m.mu.Unlock()
		return
	}

	if extended {
		now := time.Now()
		lead, ok := m.board[c.path]
		if !ok || lead.Leader != m.local || lead.Term != c.term {
			lead = Leadership{Path: c.path, Leader: m.local, Term: c.term, Elected: now}
		}
		lead.Renewed = now
		m.board[c.path] = lead
		m.enqueueLocked(LeaderReelected, c)
		m.scheduleLocked(c, m.config.renewInterval(), m.renew)
		m.mu.Unlock()

		m.metrics.reelected.Inc()
		logging.Debug("Renewed leadership of %s (term %d)", c.path, c.term)
		m.flush()
		return
	}

	c.leader = false
	m.dropOwnLocked(c.path)
	m.enqueueLocked(LeaderBooted, c)
	m.mu.Unlock()

	m.metrics.booted.Inc()
	logging.Warn("Lost leadership of %s (term %d), contesting again", c.path, c.term)
	m.flush()
	m.acquire(c)
}

// scheduleLocked replaces c's pending timer with fn after delay. Must be
// called with mu held.
func (m *Manager) scheduleLocked(c *contest, delay time.Duration, fn func(*contest)) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(delay, func() {
		m.submit(func() { fn(c) })
	})
}

// submit runs task on the pool and reports whether it was accepted.
func (m *Manager) submit(task func()) bool {
	if err := m.pool.Submit(task); err != nil {
		if !errors.Is(err, ants.ErrPoolClosed) {
			logging.Error("Failed to schedule leadership task: %v", err)
		}
		return false
	}
	return true
}

func (m *Manager) unlock(c *contest) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.renewInterval())
	defer cancel()
	if err := c.lock.Unlock(ctx); err != nil {
		logging.Warn("Failed to unlock %s: %v", c.path, err)
		return err
	}
	return nil
}

// dropOwnLocked removes the board entry for path if it names this node.
func (m *Manager) dropOwnLocked(path string) {
	if lead, ok := m.board[path]; ok && lead.Leader == m.local {
		delete(m.board, path)
	}
}

// ============================================================================
// EVENT DELIVERY
// ============================================================================

// enqueueLocked records an event in state-change order. Must be called with
// mu held; delivery happens in flush.
func (m *Manager) enqueueLocked(t EventType, c *contest) {
	m.pending = append(m.pending, m.eventLocked(t, c))
}

func (m *Manager) eventLocked(t EventType, c *contest) Event {
	ev := Event{
		Type: t,
		Path: c.path,
		Node: m.local,
		Term: c.term,
		Time: time.Now(),
	}
	if t == CandidateJoined {
		ev.Time = c.since
	}
	return ev
}

// flush delivers queued events. Only one goroutine delivers at a time, so
// listeners see events in the order the state changed; a listener that
// triggers another change has its event delivered after it returns.
func (m *Manager) flush() {
	m.mu.Lock()
	if m.flushing {
		m.mu.Unlock()
		return
	}
	m.flushing = true

	for len(m.pending) > 0 {
		ev := m.pending[0]
		m.pending = m.pending[1:]
		listeners := make([]listenerEntry, len(m.listeners))
		copy(listeners, m.listeners)
		m.mu.Unlock()

		for _, l := range listeners {
			if l.candidacy == ev.Type.Candidacy() {
				m.notify(l.fn, ev)
			}
		}

		m.mu.Lock()
	}

	m.flushing = false
	m.mu.Unlock()
}

func (m *Manager) notify(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Leadership listener panicked on %s %s: %v", ev.Type, ev.Path, r)
		}
	}()
	l(ev)
}

// ============================================================================
// LEADER BOARD
// ============================================================================

// Observe merges a leadership event reported by another node into the
// board. Events older than what the board already knows for the path are
// ignored. It reports whether the board changed.
func (m *Manager) Observe(ev Event) bool {
	if ev.Node == m.local || ev.Path == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Type {
	case CandidateJoined:
		return m.addCandidateLocked(ev.Path, ev.Node, ev.Time)
	case CandidateLeft:
		return m.removeCandidateLocked(ev.Path, ev.Node)
	}

	cur, known := m.board[ev.Path]
	if known && ev.Term < cur.Term {
		return false
	}

	switch ev.Type {
	case LeaderElected, LeaderReelected:
		m.addCandidateLocked(ev.Path, ev.Node, ev.Time)
		if known && cur.Term == ev.Term {
			if cur.Leader != ev.Node {
				return false
			}
			cur.Renewed = ev.Time
			m.board[ev.Path] = cur
			return true
		}
		m.board[ev.Path] = Leadership{Path: ev.Path, Leader: ev.Node, Term: ev.Term, Elected: ev.Time, Renewed: ev.Time}
		return true
	case LeaderBooted:
		if !known || cur.Leader != ev.Node {
			return false
		}
		delete(m.board, ev.Path)
		return true
	}
	return false
}

// addCandidateLocked records a remote candidacy. A known candidate keeps
// its original join time. Must be called with mu held.
func (m *Manager) addCandidateLocked(path string, id cluster.NodeID, since time.Time) bool {
	nodes, ok := m.candidates[path]
	if !ok {
		nodes = make(map[cluster.NodeID]time.Time)
		m.candidates[path] = nodes
	}
	if _, ok := nodes[id]; ok {
		return false
	}
	nodes[id] = since
	return true
}

func (m *Manager) removeCandidateLocked(path string, id cluster.NodeID) bool {
	nodes, ok := m.candidates[path]
	if !ok {
		return false
	}
	if _, ok := nodes[id]; !ok {
		return false
	}
	delete(nodes, id)
	if len(nodes) == 0 {
		delete(m.candidates, path)
	}
	return true
}

// ForgetNode drops every leadership and candidacy held by a remote node,
// used when the node leaves the cluster or its streams are lost. It returns
// the number of leaderships dropped.
func (m *Manager) ForgetNode(id cluster.NodeID) int {
	if id == m.local {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for path, lead := range m.board {
		if lead.Leader == id {
			delete(m.board, path)
			n++
		}
	}
	for path := range m.candidates {
		m.removeCandidateLocked(path, id)
	}
	return n
}

// GetLeader returns the known leader of path.
func (m *Manager) GetLeader(path string) (Leadership, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.board[path]
	return lead, ok
}

// LeaderBoard returns a copy of every known leadership.
func (m *Manager) LeaderBoard() map[string]Leadership {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Leadership, len(m.board))
	for path, lead := range m.board {
		out[path] = lead
	}
	return out
}

// Candidates returns the nodes running for path, oldest candidacy first.
func (m *Manager) Candidates(path string) []Candidate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.candidatesLocked(path)
}

// CandidateBoard returns the candidates of every path with at least one.
func (m *Manager) CandidateBoard() map[string][]Candidate {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]Candidate, len(m.candidates)+len(m.contests))
	for path := range m.candidates {
		out[path] = m.candidatesLocked(path)
	}
	for path := range m.contests {
		if _, ok := out[path]; !ok {
			out[path] = m.candidatesLocked(path)
		}
	}
	return out
}

func (m *Manager) candidatesLocked(path string) []Candidate {
	var out []Candidate
	if c, ok := m.contests[path]; ok {
		out = append(out, Candidate{Node: m.local, Since: c.since})
	}
	for id, since := range m.candidates[path] {
		out = append(out, Candidate{Node: id, Since: since})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Since.Equal(out[j].Since) {
			return out[i].Since.Before(out[j].Since)
		}
		return out[i].Node < out[j].Node
	})
	return out
}

// candidacies returns a fresh CANDIDATE_JOINED event for every local contest.
func (m *Manager) candidacies() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, 0, len(m.contests))
	for _, c := range m.contests {
		out = append(out, m.eventLocked(CandidateJoined, c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// OwnedPaths returns the paths this node currently leads, sorted.
func (m *Manager) OwnedPaths() []string {
	m.mu.Lock()
	var out []string
	for path, c := range m.contests {
		if c.leader {
			out = append(out, path)
		}
	}
	m.mu.Unlock()
	sort.Strings(out)
	return out
}

// Contests returns every path this node is running for, sorted.
func (m *Manager) Contests() []string {
	m.mu.Lock()
	out := make([]string, 0, len(m.contests))
	for path := range m.contests {
		out = append(out, path)
	}
	m.mu.Unlock()
	sort.Strings(out)
	return out
}

// IsContesting reports whether this node is running for path.
func (m *Manager) IsContesting(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.contests[path]
	return ok
}

// Metrics returns the manager's metric set for exposition.
func (m *Manager) Metrics() *metrics.Set {
	return m.metrics.set
}
