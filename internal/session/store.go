package session

import (
	"log"
	"time"

	"github.com/samber/lo"

	"github.com/myrison/agent-peek/internal/mainloop"
)

// Observer receives store change notifications on the main context.
type Observer interface {
	// SessionsChanged fires with the new ordered view whenever it differs
	// from the previous one.
	SessionsChanged(view []AgentSession)
	// NeedsAttention fires when a session transitions into WaitingInput.
	NeedsAttention(s AgentSession)
	// Finished fires when a session transitions from Running or
	// WaitingInput into Idle.
	Finished(s AgentSession)
}

// ObserverFuncs adapts plain funcs to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnSessionsChanged func(view []AgentSession)
	OnNeedsAttention  func(s AgentSession)
	OnFinished        func(s AgentSession)
}

func (o ObserverFuncs) SessionsChanged(view []AgentSession) {
	if o.OnSessionsChanged != nil {
		o.OnSessionsChanged(view)
	}
}

func (o ObserverFuncs) NeedsAttention(s AgentSession) {
	if o.OnNeedsAttention != nil {
		o.OnNeedsAttention(s)
	}
}

func (o ObserverFuncs) Finished(s AgentSession) {
	if o.OnFinished != nil {
		o.OnFinished(s)
	}
}

// Pauser is implemented by the file watcher so demo mode can suspend it.
type Pauser interface {
	Pause()
	Resume()
}

// StoreOptions configures staleness filtering.
type StoreOptions struct {
	// Retention drops sessions whose last update is older than this.
	Retention time.Duration
	// InstalledAt drops sessions started before monitoring was installed.
	// Zero disables the filter.
	InstalledAt time.Time
}

// Store is the authoritative in-memory session collection. Every method
// must be called on the main context.
type Store struct {
	storage *Storage
	sched   mainloop.Scheduler
	opts    StoreOptions

	sessions   map[string]AgentSession
	lastStatus map[string]Status
	lastView   []AgentSession
	viewDirty  bool

	lastHash [32]byte
	hasHash  bool

	// async runs blocking disk work off the main context.
	async      func(func())
	pruning    bool
	pruneAgain bool

	observers []*observerEntry
	watcher   Pauser

	demo      bool
	realState map[string]AgentSession
}

type observerEntry struct {
	o Observer
}

// NewStore creates an empty store backed by storage.
func NewStore(storage *Storage, sched mainloop.Scheduler, opts StoreOptions) *Store {
	if opts.Retention <= 0 {
		opts.Retention = 24 * time.Hour
	}
	return &Store{
		storage:    storage,
		sched:      sched,
		opts:       opts,
		sessions:   make(map[string]AgentSession),
		lastStatus: make(map[string]Status),
		async:      func(fn func()) { go fn() },
	}
}

// AddObserver registers o and returns a func that unregisters it.
func (s *Store) AddObserver(o Observer) (remove func()) {
	entry := &observerEntry{o: o}
	s.observers = append(s.observers, entry)
	return func() {
		s.observers = lo.Without(s.observers, entry)
	}
}

// AttachWatcher lets demo mode pause and resume the file watcher.
func (s *Store) AttachWatcher(w Pauser) {
	s.watcher = w
}

// Reload synchronously re-reads the backing file. Transient read errors
// keep the current collection; the next watch or poll cycle retries.
func (s *Store) Reload() {
	data, err := s.storage.ReadRaw()
	if err != nil {
		log.Printf("[session-store] Reload skipped: %v", err)
		return
	}
	s.Apply(data)
}

// Apply ingests bytes read from the backing file. Byte-identical input is a
// no-op unless some held session has aged past the retention window since.
func (s *Store) Apply(data []byte) {
	if s.demo {
		return
	}
	now := s.sched.Now()

	hash := contentHash(data)
	if s.hasHash && hash == s.lastHash && !s.anyStale(now) {
		return
	}
	s.lastHash, s.hasHash = hash, true

	records := ParseRecords(data)
	fresh, stale := lo.FilterReject(records, func(r AgentSession, _ int) bool {
		return !s.isStale(r, now)
	})
	if len(stale) > 0 {
		s.writeBackPruned(now, hash)
	}

	next := make(map[string]AgentSession, len(fresh))
	for _, rec := range fresh {
		if prev, ok := s.sessions[rec.ID]; ok && rec.UpdatedAt.Before(prev.UpdatedAt) {
			log.Printf("[session-store] Ignoring out-of-order update for %s (%s < %s)",
				rec.ID, rec.UpdatedAt.Format(time.RFC3339Nano), prev.UpdatedAt.Format(time.RFC3339Nano))
			next[rec.ID] = prev
			continue
		}
		next[rec.ID] = rec
	}
	s.commit(next, true)
}

// writeBackPruned removes stale records from disk on a background
// goroutine; the writer lock may be held by a hook process for seconds.
// The result is posted back so the watcher event our own rename triggers is
// a no-op, and a failure clears the hash so the next poll retries.
func (s *Store) writeBackPruned(now time.Time, seen [32]byte) {
	if s.pruning {
		s.pruneAgain = true
		return
	}
	s.pruning = true
	retention, installedAt := s.opts.Retention, s.opts.InstalledAt
	s.async(func() {
		written, removed, err := s.storage.Prune(func(r AgentSession) bool {
			return IsStale(r, now, retention, installedAt)
		})
		s.sched.Post(func() { s.pruneDone(seen, written, removed, err) })
	})
}

func (s *Store) pruneDone(seen [32]byte, written []byte, removed int, err error) {
	s.pruning = false
	// Only touch the hash if no newer file was applied meanwhile.
	current := s.hasHash && s.lastHash == seen
	if s.pruneAgain {
		// Stale records seen while this prune ran may postdate it.
		s.pruneAgain = false
		s.hasHash = false
		current = false
	}
	if err != nil {
		log.Printf("[session-store] Failed to prune stale sessions: %v", err)
		if current {
			s.hasHash = false
		}
		return
	}
	if removed > 0 {
		log.Printf("[session-store] Pruned %d stale session(s) from %s", removed, s.storage.Path())
	}
	if written != nil && current {
		s.lastHash = contentHash(written)
	}
}

func (s *Store) isStale(r AgentSession, now time.Time) bool {
	return IsStale(r, now, s.opts.Retention, s.opts.InstalledAt)
}

// IsStale reports whether r is older than retention or started before
// installedAt. A zero installedAt disables the second check.
func IsStale(r AgentSession, now time.Time, retention time.Duration, installedAt time.Time) bool {
	if now.Sub(r.UpdatedAt) > retention {
		return true
	}
	return !installedAt.IsZero() && r.StartedAt.Before(installedAt)
}

func (s *Store) anyStale(now time.Time) bool {
	for _, sess := range s.sessions {
		if s.isStale(sess, now) {
			return true
		}
	}
	return false
}

// commit swaps in the new collection and notifies observers. Status
// transition events are only computed for real (non-demo) data.
func (s *Store) commit(next map[string]AgentSession, detectTransitions bool) {
	s.sessions = next
	view := s.OrderedView()

	var attention, finished []AgentSession
	if detectTransitions {
		for _, sess := range view {
			prev, seen := s.lastStatus[sess.ID]
			s.lastStatus[sess.ID] = sess.Status
			if !seen {
				log.Printf("[session-store] New session %s (%s) in %s", sess.ID, sess.Status, sess.Cwd)
				continue
			}
			if prev == sess.Status {
				continue
			}
			log.Printf("[session-store] %s: status %s -> %s", sess.ID, prev, sess.Status)
			switch {
			case sess.Status == StatusWaitingInput:
				attention = append(attention, sess)
			case sess.Status == StatusIdle && (prev == StatusRunning || prev == StatusWaitingInput):
				finished = append(finished, sess)
			}
		}
		for id := range s.lastStatus {
			if _, ok := next[id]; !ok {
				delete(s.lastStatus, id)
			}
		}
	}

	if s.viewDirty || !sameView(view, s.lastView) {
		s.lastView = view
		s.viewDirty = false
		for _, e := range s.snapshotObservers() {
			e.o.SessionsChanged(cloneView(view))
		}
	}
	for _, sess := range attention {
		for _, e := range s.snapshotObservers() {
			e.o.NeedsAttention(sess)
		}
	}
	for _, sess := range finished {
		for _, e := range s.snapshotObservers() {
			e.o.Finished(sess)
		}
	}
}

// snapshotObservers lets observers unregister themselves mid-notification.
func (s *Store) snapshotObservers() []*observerEntry {
	return append([]*observerEntry(nil), s.observers...)
}

// OrderedView returns the sessions sorted for display. It has no side effects.
func (s *Store) OrderedView() []AgentSession {
	view := lo.Values(s.sessions)
	SortForDisplay(view)
	return view
}

// Len returns the number of sessions currently held.
func (s *Store) Len() int {
	return len(s.sessions)
}

// Get returns the session with id, if held.
func (s *Store) Get(id string) (AgentSession, bool) {
	sess, ok := s.sessions[id]
	return sess, ok
}

// InDemo reports whether a demo override is active.
func (s *Store) InDemo() bool {
	return s.demo
}

// SetDemoOverride replaces the collection with synthetic records and
// suspends file watching until ClearDemoOverride.
func (s *Store) SetDemoOverride(records []AgentSession) {
	if !s.demo {
		s.realState = s.sessions
		s.demo = true
		if s.watcher != nil {
			s.watcher.Pause()
		}
	}
	next := lo.SliceToMap(records, func(r AgentSession) (string, AgentSession) {
		return r.ID, r
	})
	s.commit(next, false)
}

// ClearDemoOverride restores real data with a full reload and resumes the
// watcher. It is a no-op when no override is active.
func (s *Store) ClearDemoOverride() {
	if !s.demo {
		return
	}
	s.demo = false
	s.sessions = s.realState
	s.realState = nil
	s.hasHash = false
	// Observers last saw the demo list, so the real one is always re-sent.
	s.viewDirty = true
	s.Reload()
	if s.viewDirty {
		s.commit(s.sessions, false)
	}
	if s.watcher != nil {
		s.watcher.Resume()
	}
}

func sameView(a, b []AgentSession) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameSession(a[i], b[i]) {
			return false
		}
	}
	return true
}

func sameSession(a, b AgentSession) bool {
	return a.ID == b.ID &&
		a.Status == b.Status &&
		a.Cwd == b.Cwd &&
		a.TTY == b.TTY &&
		a.Terminal == b.Terminal &&
		a.StartedAt.Equal(b.StartedAt) &&
		a.UpdatedAt.Equal(b.UpdatedAt) &&
		a.ToolName == b.ToolName &&
		a.Activity == b.Activity &&
		a.NotificationMessage == b.NotificationMessage
}

func cloneView(v []AgentSession) []AgentSession {
	return append([]AgentSession(nil), v...)
}
