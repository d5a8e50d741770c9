// Package tutorial runs the guided gesture walkthrough over demo sessions.
package tutorial

import (
	"log"

	"github.com/myrison/agent-peek/internal/gesture"
)

// Phase is the learner's progress through the walkthrough.
type Phase int

const (
	WaitingForHold Phase = iota
	HeldOnce
	ReleasedOnce
	Cycling
	CycledEnough
	OpenedOnce
	OpenedTwice
	Pinned
	Complete
)

var phaseNames = [...]string{
	WaitingForHold: "waiting_for_hold",
	HeldOnce:       "held_once",
	ReleasedOnce:   "released_once",
	Cycling:        "cycling",
	CycledEnough:   "cycled_enough",
	OpenedOnce:     "opened_once",
	OpenedTwice:    "opened_twice",
	Pinned:         "pinned",
	Complete:       "complete",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// DefaultCycleTarget is how many taps count as having cycled enough.
const DefaultCycleTarget = 3

// Tracker advances tutorial phases from gesture intents and raw modifier
// state, forwarding intents to an inner sink that drives the demo panel.
//
// Every edge is owned by exactly one input: HeldOnce -> ReleasedOnce by
// the raw observer, everything else by the intent sink.
type Tracker struct {
	inner       gesture.Sink
	onPhase     func(Phase)
	cycleTarget int
	phase       Phase
}

// NewTracker creates a tracker in WaitingForHold. onPhase may be nil.
func NewTracker(inner gesture.Sink, onPhase func(Phase)) *Tracker {
	return &Tracker{inner: inner, onPhase: onPhase, cycleTarget: DefaultCycleTarget}
}

// Phase returns the current phase.
func (t *Tracker) Phase() Phase {
	return t.phase
}

func (t *Tracker) advance(to Phase) {
	if to == t.phase {
		return
	}
	log.Printf("[tutorial] %s -> %s", t.phase, to)
	t.phase = to
	if t.onPhase != nil {
		t.onPhase(to)
	}
}

func (t *Tracker) StartPreview() {
	t.inner.StartPreview()
	if t.phase == WaitingForHold {
		t.advance(HeldOnce)
	}
}

func (t *Tracker) Cycle(taps int) {
	t.inner.Cycle(taps)
	switch t.phase {
	case ReleasedOnce, Cycling:
		if taps >= t.cycleTarget {
			t.advance(CycledEnough)
		} else {
			t.advance(Cycling)
		}
	}
}

func (t *Tracker) Commit(taps int) {
	t.inner.Commit(taps)
	switch t.phase {
	case CycledEnough:
		t.advance(OpenedOnce)
	case OpenedOnce:
		t.advance(OpenedTwice)
	case Pinned:
		t.advance(Complete)
	}
}

func (t *Tracker) Cancelled() {
	if t.phase == HeldOnce {
		return
	}
	t.inner.Cancelled()
	switch t.phase {
	case Cycling, CycledEnough:
		// The hold ended without opening anything; try again.
		t.advance(ReleasedOnce)
	}
}

func (t *Tracker) EnterPersistentMode() {
	if t.phase == HeldOnce {
		return
	}
	t.inner.EnterPersistentMode()
	if t.phase == OpenedTwice {
		t.advance(Pinned)
	}
}

func (t *Tracker) NumberSelected(n int) {
	t.inner.NumberSelected(n)
	if t.phase == Pinned {
		t.advance(Complete)
	}
}

func (t *Tracker) EscapePressed() {
	t.inner.EscapePressed()
}

// RawModifiers owns the first release: the machine may have emitted
// nothing for it, since Cancelled and EnterPersistentMode are swallowed
// in HeldOnce.
func (t *Tracker) RawModifiers(primaryHeld, secondaryHeld bool) {
	if t.phase != HeldOnce || primaryHeld || secondaryHeld {
		return
	}
	// Nothing else will hide the preview the swallowed intent left up.
	t.inner.EscapePressed()
	t.advance(ReleasedOnce)
}
