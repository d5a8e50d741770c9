package tutorial

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/myrison/agent-peek/internal/gesture"
	"github.com/myrison/agent-peek/internal/session"
)

// Rewirable is the part of the gesture machine the tutorial takes over.
type Rewirable interface {
	Swap(sink gesture.Sink) gesture.Sink
	AddRawObserver(o gesture.RawObserver) (remove func())
	Abort()
}

// DemoStore swaps the session store to synthetic data.
type DemoStore interface {
	SetDemoOverride(records []session.AgentSession)
	ClearDemoOverride()
}

// Tutorial installs a Tracker in place of the machine's sink for the
// duration of a run and restores the original wiring afterwards.
type Tutorial struct {
	machine Rewirable
	store   DemoStore
	inner   gesture.Sink
	onPhase func(Phase)
	now     func() time.Time

	tracker   *Tracker
	saved     gesture.Sink
	removeRaw func()
	runID     string
}

// New creates an idle tutorial. inner drives the demo panel; onPhase, if
// non-nil, is told about every phase change.
func New(machine Rewirable, store DemoStore, inner gesture.Sink, onPhase func(Phase)) *Tutorial {
	return &Tutorial{
		machine: machine,
		store:   store,
		inner:   inner,
		onPhase: onPhase,
		now:     time.Now,
	}
}

// Running reports whether a run is in progress.
func (t *Tutorial) Running() bool {
	return t.tracker != nil
}

// Phase returns the current phase, or WaitingForHold when not running.
func (t *Tutorial) Phase() Phase {
	if t.tracker == nil {
		return WaitingForHold
	}
	return t.tracker.Phase()
}

// RunID identifies the current run, empty when not running.
func (t *Tutorial) RunID() string {
	return t.runID
}

// Start begins a run. Starting while running is a no-op.
func (t *Tutorial) Start() {
	if t.tracker != nil {
		return
	}
	t.runID = uuid.NewString()
	log.Printf("[tutorial] Starting run %s", t.runID)

	// A gesture in flight belongs to the real panel; drop it before rewiring.
	t.machine.Abort()
	t.store.SetDemoOverride(DemoSessions(t.now()))

	t.tracker = NewTracker(t.inner, t.phaseChanged)
	t.saved = t.machine.Swap(t.tracker)
	t.removeRaw = t.machine.AddRawObserver(t.tracker)
	t.phaseChanged(WaitingForHold)
}

// Stop ends the run and restores the original wiring. It is safe to call
// mid-gesture and more than once.
func (t *Tutorial) Stop() {
	if t.tracker == nil {
		return
	}
	log.Printf("[tutorial] Stopping run %s in phase %s", t.runID, t.tracker.Phase())

	t.machine.Abort()
	if t.removeRaw != nil {
		t.removeRaw()
		t.removeRaw = nil
	}
	// A demo commit may still be waiting for its hide to finish.
	if r, ok := t.inner.(interface{ Reset() }); ok {
		r.Reset()
	}
	t.inner.EscapePressed()
	t.store.ClearDemoOverride()
	t.machine.Swap(t.saved)

	t.saved = nil
	t.tracker = nil
	t.runID = ""
}

func (t *Tutorial) phaseChanged(p Phase) {
	if t.onPhase != nil {
		t.onPhase(p)
	}
}

// DemoSessions returns the synthetic sessions shown during a run.
func DemoSessions(now time.Time) []session.AgentSession {
	mk := func(id string, status session.Status, cwd string, age time.Duration) session.AgentSession {
		return session.AgentSession{
			ID:        "tutorial-" + id,
			Status:    status,
			Cwd:       cwd,
			TTY:       session.UnknownTTY,
			Terminal:  "tutorial",
			StartedAt: now.Add(-age - 10*time.Minute),
			UpdatedAt: now.Add(-age),
		}
	}

	waiting := mk("1", session.StatusWaitingInput, "~/projects/api-server", time.Minute)
	waiting.NotificationMessage = "Claude needs your permission to use Bash"
	running := mk("2", session.StatusRunning, "~/projects/web-app", 30*time.Second)
	running.ToolName = "Edit"
	idle := mk("3", session.StatusIdle, "~/projects/docs", 5*time.Minute)
	idle.Activity = "Updated the README"
	older := mk("4", session.StatusIdle, "~/projects/infra", 20*time.Minute)

	return []session.AgentSession{waiting, running, idle, older}
}
