package tutorial

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myrison/agent-peek/internal/gesture"
	"github.com/myrison/agent-peek/internal/mainloop"
	"github.com/myrison/agent-peek/internal/session"
)

type recordingSink struct {
	events []string
}

func (r *recordingSink) StartPreview()        { r.events = append(r.events, "preview") }
func (r *recordingSink) Cycle(taps int)       { r.events = append(r.events, fmt.Sprintf("cycle:%d", taps)) }
func (r *recordingSink) Commit(taps int)      { r.events = append(r.events, fmt.Sprintf("commit:%d", taps)) }
func (r *recordingSink) Cancelled()           { r.events = append(r.events, "cancel") }
func (r *recordingSink) EnterPersistentMode() { r.events = append(r.events, "persist") }
func (r *recordingSink) NumberSelected(n int) { r.events = append(r.events, fmt.Sprintf("number:%d", n)) }
func (r *recordingSink) EscapePressed()       { r.events = append(r.events, "escape") }
func (r *recordingSink) Reset()               { r.events = append(r.events, "reset") }

type fakeStore struct {
	demo   []session.AgentSession
	sets   int
	clears int
	inDemo bool
}

func (s *fakeStore) SetDemoOverride(records []session.AgentSession) {
	s.sets++
	s.demo = records
	s.inDemo = true
}

func (s *fakeStore) ClearDemoOverride() {
	if !s.inDemo {
		return
	}
	s.clears++
	s.inDemo = false
	s.demo = nil
}

const (
	opt  = gesture.FlagOption
	cmd  = gesture.FlagCommand
	both = opt | cmd
	none = gesture.Flags(0)
)

type fixture struct {
	sched  *mainloop.Manual
	real   *recordingSink
	inner  *recordingSink
	store  *fakeStore
	m      *gesture.Machine
	tut    *Tutorial
	phases []Phase
}

func newFixture() *fixture {
	f := &fixture{
		sched: mainloop.NewManual(time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)),
		real:  &recordingSink{},
		inner: &recordingSink{},
		store: &fakeStore{},
	}
	f.m = gesture.New(gesture.DefaultConfig(), f.sched, nil, f.real)
	f.tut = New(f.m, f.store, f.inner, func(p Phase) { f.phases = append(f.phases, p) })
	f.tut.now = f.sched.Now
	return f
}

// gesture plays a full hold with taps cycles, held for hold before release.
func (f *fixture) gesture(taps int, hold time.Duration) {
	f.m.FlagsChanged(both)
	for i := 0; i < taps; i++ {
		f.m.FlagsChanged(opt)
		f.m.FlagsChanged(both)
	}
	f.sched.Advance(hold)
	f.m.FlagsChanged(cmd)
	f.m.FlagsChanged(none)
}

func TestTutorial_FullWalkthrough(t *testing.T) {
	f := newFixture()
	f.tut.Start()
	require.True(t, f.tut.Running())
	assert.Equal(t, 1, f.store.sets)
	assert.Len(t, f.store.demo, 4)

	f.gesture(0, 200*time.Millisecond)
	assert.Equal(t, ReleasedOnce, f.tut.Phase())

	f.gesture(3, 200*time.Millisecond)
	assert.Equal(t, OpenedOnce, f.tut.Phase())

	f.gesture(1, 200*time.Millisecond)
	assert.Equal(t, OpenedTwice, f.tut.Phase())

	f.gesture(0, 1500*time.Millisecond)
	assert.Equal(t, Pinned, f.tut.Phase())

	f.m.SetPinnedPredicate(func() bool { return true })
	f.m.KeyDown(19, "2")
	assert.Equal(t, Complete, f.tut.Phase())

	assert.Equal(t, []Phase{
		WaitingForHold, HeldOnce, ReleasedOnce, Cycling, CycledEnough,
		OpenedOnce, OpenedTwice, Pinned, Complete,
	}, f.phases)
	assert.Empty(t, f.real.events, "real panel sees nothing during a run")
}

func TestTutorial_HeldOnceSwallowsCancelAndPersist(t *testing.T) {
	f := newFixture()
	f.tut.Start()

	f.gesture(0, 1500*time.Millisecond)

	assert.Equal(t, ReleasedOnce, f.tut.Phase())
	assert.NotContains(t, f.inner.events, "persist")
	assert.NotContains(t, f.inner.events, "cancel")
	assert.Contains(t, f.inner.events, "escape", "raw release hides the preview")
}

func TestTutorial_ReleaseOfOneKeyStaysHeld(t *testing.T) {
	f := newFixture()
	f.tut.Start()

	f.m.FlagsChanged(both)
	f.m.FlagsChanged(opt)
	assert.Equal(t, HeldOnce, f.tut.Phase())

	f.m.FlagsChanged(none)
	assert.Equal(t, ReleasedOnce, f.tut.Phase())
}

func TestTutorial_CancelDuringCyclingGoesBack(t *testing.T) {
	f := newFixture()
	f.tut.Start()
	f.gesture(0, 0)

	f.m.FlagsChanged(both)
	f.m.FlagsChanged(opt)
	f.m.FlagsChanged(both)
	assert.Equal(t, Cycling, f.tut.Phase())
	f.m.KeyDown(gesture.KeyEscape, "\x1b")
	f.m.FlagsChanged(none)

	assert.Equal(t, ReleasedOnce, f.tut.Phase())
}

func TestTutorial_StopMidGestureRestoresWiring(t *testing.T) {
	f := newFixture()
	f.tut.Start()
	f.m.FlagsChanged(both)
	require.True(t, f.m.Active())

	f.tut.Stop()

	assert.False(t, f.tut.Running())
	assert.False(t, f.m.Active(), "gesture aborted")
	assert.Zero(t, f.sched.Pending(), "safety timer cancelled")
	assert.Equal(t, 1, f.store.clears)

	// Stale release from the aborted gesture goes nowhere.
	f.m.FlagsChanged(none)
	assert.Empty(t, f.real.events)

	// The original sink receives intents again and the tracker does not.
	phases := len(f.phases)
	f.m.FlagsChanged(both)
	f.m.FlagsChanged(none)
	assert.Equal(t, []string{"preview", "cancel"}, f.real.events)
	assert.Len(t, f.phases, phases)

	f.tut.Stop()
	assert.Equal(t, 1, f.store.clears, "second stop is a no-op")
}

func TestTutorial_StopResetsDemoPanelBeforeHiding(t *testing.T) {
	f := newFixture()
	f.tut.Start()
	f.inner.events = nil

	f.tut.Stop()

	assert.Equal(t, []string{"reset", "escape"}, f.inner.events)
}

func TestTutorial_StartAbortsRealGesture(t *testing.T) {
	f := newFixture()
	f.m.FlagsChanged(both)
	require.Equal(t, []string{"preview"}, f.real.events)

	f.tut.Start()
	f.m.FlagsChanged(none)

	assert.Equal(t, []string{"preview"}, f.real.events)
	assert.Equal(t, WaitingForHold, f.tut.Phase())
}

func TestTutorial_StartTwiceIsNoop(t *testing.T) {
	f := newFixture()
	f.tut.Start()
	id := f.tut.RunID()
	f.tut.Start()

	assert.Equal(t, 1, f.store.sets)
	assert.Equal(t, id, f.tut.RunID())
	assert.NotEmpty(t, id)
}

func TestDemoSessions(t *testing.T) {
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	demo := DemoSessions(now)
	require.NotEmpty(t, demo)

	seen := map[string]bool{}
	for _, s := range demo {
		assert.False(t, seen[s.ID], "ids unique")
		seen[s.ID] = true
		assert.False(t, s.UpdatedAt.After(now))
		assert.False(t, s.HasTTY())
	}
}
