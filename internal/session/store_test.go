package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myrison/agent-peek/internal/mainloop"
)

type recordingObserver struct {
	views     [][]AgentSession
	attention []string
	finished  []string
}

func (r *recordingObserver) SessionsChanged(view []AgentSession) {
	r.views = append(r.views, view)
}

func (r *recordingObserver) NeedsAttention(s AgentSession) {
	r.attention = append(r.attention, s.ID)
}

func (r *recordingObserver) Finished(s AgentSession) {
	r.finished = append(r.finished, s.ID)
}

func (r *recordingObserver) lastIDs() []string {
	if len(r.views) == 0 {
		return nil
	}
	return ids(r.views[len(r.views)-1])
}

type fakePauser struct {
	paused  int
	resumed int
}

func (p *fakePauser) Pause()  { p.paused++ }
func (p *fakePauser) Resume() { p.resumed++ }

var storeNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

type storeFixture struct {
	t       *testing.T
	storage *Storage
	sched   *mainloop.Manual
	store   *Store
	obs     *recordingObserver
}

func newStoreFixture(t *testing.T, opts StoreOptions) *storeFixture {
	t.Helper()
	storage, err := NewStorage(filepath.Join(t.TempDir(), "sessions.json"))
	require.NoError(t, err)
	sched := mainloop.NewManual(storeNow)
	store := NewStore(storage, sched, opts)
	store.async = func(fn func()) { fn() }
	obs := &recordingObserver{}
	store.AddObserver(obs)
	return &storeFixture{t: t, storage: storage, sched: sched, store: store, obs: obs}
}

// write replaces the backing file the way a hook process would.
func (f *storeFixture) write(sessions ...AgentSession) {
	f.t.Helper()
	data, err := EncodeRecords(sessions)
	require.NoError(f.t, err)
	require.NoError(f.t, os.WriteFile(f.storage.Path(), data, 0600))
}

func ids(view []AgentSession) []string {
	out := make([]string, 0, len(view))
	for _, s := range view {
		out = append(out, s.ID)
	}
	return out
}

func TestStore_InitialLoadOrdersView(t *testing.T) {
	f := newStoreFixture(t, StoreOptions{})
	f.write(
		testSession("idle", StatusIdle, storeNow.Add(-time.Minute)),
		testSession("run", StatusRunning, storeNow.Add(-2*time.Minute)),
		testSession("wait", StatusWaitingInput, storeNow.Add(-3*time.Minute)),
	)

	f.store.Reload()

	require.Len(t, f.obs.views, 1)
	assert.Equal(t, []string{"wait", "run", "idle"}, f.obs.lastIDs())
	assert.Empty(t, f.obs.attention, "first sighting never raises attention")
	assert.Empty(t, f.obs.finished)
	assert.Equal(t, 3, f.store.Len())
}

func TestStore_ReloadIsIdempotent(t *testing.T) {
	f := newStoreFixture(t, StoreOptions{})
	f.write(testSession("a", StatusRunning, storeNow))

	f.store.Reload()
	f.store.Reload()
	f.store.Reload()

	assert.Len(t, f.obs.views, 1)
}

func TestStore_RewriteWithSameContentEmitsNothing(t *testing.T) {
	f := newStoreFixture(t, StoreOptions{})
	sess := testSession("a", StatusRunning, storeNow)
	f.write(sess)
	f.store.Reload()

	// Different bytes, same records.
	data, err := EncodeRecords([]AgentSession{sess})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.storage.Path(), append(data, '\n'), 0600))
	f.store.Reload()

	assert.Len(t, f.obs.views, 1)
}

func TestStore_AttentionAndFinishedTransitions(t *testing.T) {
	f := newStoreFixture(t, StoreOptions{})
	f.write(
		testSession("a", StatusRunning, storeNow.Add(-time.Minute)),
		testSession("b", StatusWaitingInput, storeNow.Add(-time.Minute)),
		testSession("c", StatusIdle, storeNow.Add(-time.Minute)),
	)
	f.store.Reload()

	f.write(
		testSession("a", StatusWaitingInput, storeNow),
		testSession("b", StatusIdle, storeNow),
		testSession("c", StatusIdle, storeNow),
	)
	f.store.Reload()

	assert.Equal(t, []string{"a"}, f.obs.attention)
	assert.Equal(t, []string{"b"}, f.obs.finished, "idle to idle is not a finish")
	assert.Len(t, f.obs.views, 2)

	// Repeating the same state raises nothing new.
	f.store.Reload()
	assert.Equal(t, []string{"a"}, f.obs.attention)
	assert.Equal(t, []string{"b"}, f.obs.finished)
}

func TestStore_ErrorToIdleIsNotFinished(t *testing.T) {
	f := newStoreFixture(t, StoreOptions{})
	f.write(testSession("a", StatusError, storeNow.Add(-time.Minute)))
	f.store.Reload()
	f.write(testSession("a", StatusIdle, storeNow))
	f.store.Reload()

	assert.Empty(t, f.obs.finished)
}

func TestStore_ViewChangedEmittedBeforeTransitionEvents(t *testing.T) {
	f := newStoreFixture(t, StoreOptions{})
	var order []string
	f.store.AddObserver(ObserverFuncs{
		OnSessionsChanged: func([]AgentSession) { order = append(order, "view") },
		OnNeedsAttention:  func(AgentSession) { order = append(order, "attention") },
	})
	f.write(testSession("a", StatusRunning, storeNow.Add(-time.Minute)))
	f.store.Reload()
	order = nil

	f.write(testSession("a", StatusWaitingInput, storeNow))
	f.store.Reload()

	assert.Equal(t, []string{"view", "attention"}, order)
}

func TestStore_StaleSessionExcludedAndPruned(t *testing.T) {
	f := newStoreFixture(t, StoreOptions{Retention: 24 * time.Hour})
	f.write(
		testSession("old", StatusIdle, storeNow.Add(-25*time.Hour)),
		testSession("fresh", StatusRunning, storeNow.Add(-time.Minute)),
	)

	f.store.Reload()

	assert.Equal(t, []string{"fresh"}, f.obs.lastIDs())
	onDisk, err := f.storage.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, ids(onDisk))

	// Our own write-back must not produce another notification.
	f.store.Reload()
	assert.Len(t, f.obs.views, 1)
}

func TestStore_PruneDoesNotBlockWhileLockHeld(t *testing.T) {
	f := newStoreFixture(t, StoreOptions{Retention: 24 * time.Hour})
	var jobs []func()
	f.store.async = func(fn func()) { jobs = append(jobs, fn) }
	f.write(
		testSession("old", StatusIdle, storeNow.Add(-25*time.Hour)),
		testSession("fresh", StatusRunning, storeNow.Add(-time.Minute)),
	)
	lockDir := f.storage.Path() + ".lock.d"
	require.NoError(t, os.Mkdir(lockDir, 0700))

	start := time.Now()
	f.store.Reload()
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, []string{"fresh"}, f.obs.lastIDs())
	require.Len(t, jobs, 1, "prune is handed to the background")

	// Another Reload while the prune is in flight does not start a second one.
	f.store.hasHash = false
	f.store.Reload()
	assert.Len(t, jobs, 1)

	require.NoError(t, os.Remove(lockDir))
	jobs[0]()

	onDisk, err := f.storage.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, ids(onDisk))
	assert.False(t, f.store.pruning)
	assert.False(t, f.store.hasHash, "stale data seen mid-prune is checked again")
}

func TestStore_FailedPruneIsRetried(t *testing.T) {
	f := newStoreFixture(t, StoreOptions{Retention: 24 * time.Hour})
	f.storage.lock.timeout = 50 * time.Millisecond
	f.write(
		testSession("old", StatusIdle, storeNow.Add(-25*time.Hour)),
		testSession("fresh", StatusRunning, storeNow.Add(-time.Minute)),
	)
	lockDir := f.storage.Path() + ".lock.d"
	require.NoError(t, os.Mkdir(lockDir, 0700))

	f.store.Reload()

	assert.Equal(t, []string{"fresh"}, f.obs.lastIDs())
	assert.False(t, f.store.hasHash, "failed prune forces the next read to be processed")
	onDisk, err := f.storage.Load()
	require.NoError(t, err)
	assert.Len(t, onDisk, 2)

	require.NoError(t, os.Remove(lockDir))
	f.store.Reload()

	onDisk, err = f.storage.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, ids(onDisk))
	assert.Len(t, f.obs.views, 1)
}

func TestStore_SessionAgesOutWithoutFileChange(t *testing.T) {
	f := newStoreFixture(t, StoreOptions{Retention: 24 * time.Hour})
	f.write(testSession("a", StatusIdle, storeNow.Add(-23*time.Hour)))
	f.store.Reload()
	require.Equal(t, []string{"a"}, f.obs.lastIDs())

	f.sched.Advance(2 * time.Hour)
	f.store.Reload()

	assert.Empty(t, f.obs.lastIDs())
	assert.Zero(t, f.store.Len())
}

func TestStore_SessionsStartedBeforeInstallAreIgnored(t *testing.T) {
	installed := storeNow.Add(-time.Hour)
	f := newStoreFixture(t, StoreOptions{InstalledAt: installed})

	before := testSession("before", StatusRunning, storeNow)
	before.StartedAt = installed.Add(-time.Minute)
	after := testSession("after", StatusRunning, storeNow)
	after.StartedAt = installed.Add(time.Minute)
	f.write(before, after)

	f.store.Reload()

	assert.Equal(t, []string{"after"}, f.obs.lastIDs())
}

func TestStore_OutOfOrderUpdateDiscarded(t *testing.T) {
	f := newStoreFixture(t, StoreOptions{})
	f.write(testSession("a", StatusWaitingInput, storeNow))
	f.store.Reload()

	f.write(testSession("a", StatusRunning, storeNow.Add(-time.Second)))
	f.store.Reload()

	got, ok := f.store.Get("a")
	require.True(t, ok)
	assert.Equal(t, StatusWaitingInput, got.Status)
}

func TestStore_RemovedSessionDisappears(t *testing.T) {
	f := newStoreFixture(t, StoreOptions{})
	f.write(testSession("a", StatusRunning, storeNow), testSession("b", StatusIdle, storeNow))
	f.store.Reload()

	f.write(testSession("b", StatusIdle, storeNow))
	f.store.Reload()

	assert.Equal(t, []string{"b"}, f.obs.lastIDs())
	_, ok := f.store.Get("a")
	assert.False(t, ok)
}

func TestStore_MalformedFileYieldsEmpty(t *testing.T) {
	f := newStoreFixture(t, StoreOptions{})
	f.write(testSession("a", StatusRunning, storeNow))
	f.store.Reload()

	require.NoError(t, os.WriteFile(f.storage.Path(), []byte("{not json"), 0600))
	f.store.Reload()

	assert.Empty(t, f.obs.lastIDs())
}

func TestStore_RemoveObserver(t *testing.T) {
	f := newStoreFixture(t, StoreOptions{})
	extra := &recordingObserver{}
	remove := f.store.AddObserver(extra)
	remove()

	f.write(testSession("a", StatusRunning, storeNow))
	f.store.Reload()

	assert.Empty(t, extra.views)
	assert.Len(t, f.obs.views, 1)
}

func TestStore_DemoOverride(t *testing.T) {
	f := newStoreFixture(t, StoreOptions{})
	pauser := &fakePauser{}
	f.store.AttachWatcher(pauser)
	f.write(testSession("real", StatusRunning, storeNow))
	f.store.Reload()

	f.store.SetDemoOverride([]AgentSession{
		testSession("demo1", StatusWaitingInput, storeNow),
		testSession("demo2", StatusIdle, storeNow),
	})
	assert.True(t, f.store.InDemo())
	assert.Equal(t, 1, pauser.paused)
	assert.Equal(t, []string{"demo1", "demo2"}, f.obs.lastIDs())
	assert.Empty(t, f.obs.attention, "demo data never raises attention")

	// File changes are ignored while demo data is shown.
	f.write(testSession("real", StatusWaitingInput, storeNow.Add(time.Second)))
	f.store.Apply([]byte("[]"))
	f.store.Reload()
	assert.Equal(t, []string{"demo1", "demo2"}, f.obs.lastIDs())

	f.store.ClearDemoOverride()
	assert.False(t, f.store.InDemo())
	assert.Equal(t, 1, pauser.resumed)
	assert.Equal(t, []string{"real"}, f.obs.lastIDs())
	assert.Equal(t, []string{"real"}, f.obs.attention, "change made during demo is still detected")

	f.store.ClearDemoOverride()
	assert.Equal(t, 1, pauser.resumed, "second clear is a no-op")
}

func TestStore_ClearDemoOverrideResendsEmptyRealList(t *testing.T) {
	f := newStoreFixture(t, StoreOptions{})
	f.store.Reload()

	f.store.SetDemoOverride([]AgentSession{testSession("demo", StatusIdle, storeNow)})
	n := len(f.obs.views)

	f.store.ClearDemoOverride()

	require.Len(t, f.obs.views, n+1)
	assert.Empty(t, f.obs.lastIDs())
}
