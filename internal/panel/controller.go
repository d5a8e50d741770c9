// Package panel owns the switcher surface's visibility and selection and
// turns gesture intents into session activations.
package panel

import (
	"log"
	"time"

	"github.com/myrison/agent-peek/internal/mainloop"
	"github.com/myrison/agent-peek/internal/session"
)

// Mode is the surface visibility mode.
type Mode int

const (
	Hidden Mode = iota
	Peek
	Persistent
)

func (m Mode) String() string {
	switch m {
	case Peek:
		return "peek"
	case Persistent:
		return "persistent"
	default:
		return "hidden"
	}
}

// Surface is the visual switcher. Hide must eventually call done (if
// non-nil) on the main context once the surface is fully hidden.
type Surface interface {
	Show(mode Mode)
	Hide(animated bool, done func())
	Render(view []session.AgentSession, selected int)
}

// Activator brings a session's terminal to the front. Calls are
// fire-and-forget.
type Activator interface {
	Activate(s session.AgentSession)
}

// Source provides the live ordered session list.
type Source interface {
	OrderedView() []session.AgentSession
}

// Options tunes the controller.
type Options struct {
	// HideTimeout bounds how long an activation waits for the surface's
	// hide completion before firing anyway.
	HideTimeout time.Duration
}

// Controller implements gesture.Sink and session.Observer. All methods must
// be called on the main context.
type Controller struct {
	surface   Surface
	activator Activator
	source    Source
	sched     mainloop.Scheduler
	opts      Options

	mode     Mode
	selected int

	token    uint64
	pending  bool
	fallback mainloop.Timer
}

// NewController creates a hidden controller.
func NewController(surface Surface, activator Activator, source Source, sched mainloop.Scheduler, opts Options) *Controller {
	if opts.HideTimeout <= 0 {
		opts.HideTimeout = 500 * time.Millisecond
	}
	return &Controller{
		surface:   surface,
		activator: activator,
		source:    source,
		sched:     sched,
		opts:      opts,
	}
}

// Mode returns the current visibility mode.
func (c *Controller) Mode() Mode {
	return c.mode
}

// Selected returns the 1-based selected index, 0 when nothing is selected.
func (c *Controller) Selected() int {
	return c.selected
}

// Pinned reports whether the surface is shown in persistent mode. It gates
// number-key shortcuts.
func (c *Controller) Pinned() bool {
	return c.mode == Persistent
}

// ActivationPending reports whether a commit is waiting for the hide to finish.
func (c *Controller) ActivationPending() bool {
	return c.pending
}

func (c *Controller) StartPreview() {
	if c.pending || c.mode == Persistent {
		return
	}
	c.mode = Peek
	c.selected = 0
	c.surface.Show(Peek)
	c.surface.Render(c.source.OrderedView(), 0)
}

func (c *Controller) Cycle(taps int) {
	if c.pending || c.mode == Hidden {
		return
	}
	view := c.source.OrderedView()
	idx := resolve(taps, len(view))
	if idx == 0 {
		return
	}
	c.selected = idx
	c.surface.Render(view, idx)
}

func (c *Controller) Commit(taps int) {
	if c.pending {
		return
	}
	// A preview refused while an activation was pending never showed a
	// selection, so there is nothing to commit.
	if c.mode == Hidden {
		c.dismiss()
		return
	}
	view := c.source.OrderedView()
	idx := resolve(taps, len(view))
	if idx == 0 {
		c.dismiss()
		return
	}
	c.hideThenActivate(view[idx-1])
}

func (c *Controller) Cancelled() {
	c.dismiss()
}

func (c *Controller) EnterPersistentMode() {
	if c.pending {
		return
	}
	c.mode = Persistent
	c.surface.Show(Persistent)
	c.surface.Render(c.source.OrderedView(), c.selected)
}

func (c *Controller) NumberSelected(n int) {
	if c.pending || c.mode != Persistent {
		return
	}
	view := c.source.OrderedView()
	if n < 1 || n > len(view) {
		return
	}
	c.hideThenActivate(view[n-1])
}

func (c *Controller) EscapePressed() {
	c.dismiss()
}

// ClickOutside dismisses a pinned surface.
func (c *Controller) ClickOutside() {
	if c.mode == Persistent {
		c.dismiss()
	}
}

// SessionsChanged re-renders a visible surface against the new list and
// clamps the selection to it.
func (c *Controller) SessionsChanged(view []session.AgentSession) {
	if c.selected > len(view) {
		c.selected = len(view)
	}
	if c.mode != Hidden {
		c.surface.Render(view, c.selected)
	}
}

func (c *Controller) NeedsAttention(session.AgentSession) {}

func (c *Controller) Finished(session.AgentSession) {}

// Reset drops a deferred activation without firing it. The surface is
// left as is.
func (c *Controller) Reset() {
	c.token++
	c.pending = false
	if c.fallback != nil {
		c.fallback.Stop()
		c.fallback = nil
	}
}

func (c *Controller) dismiss() {
	c.selected = 0
	if c.mode == Hidden {
		return
	}
	c.mode = Hidden
	c.surface.Hide(true, nil)
}

// hideThenActivate hides the surface and activates s once the hide is done,
// so the OS does not hand focus back to the surface afterwards. The token
// makes sure exactly one of the completion and the fallback activates.
func (c *Controller) hideThenActivate(s session.AgentSession) {
	c.token++
	token := c.token
	c.pending = true
	c.mode = Hidden
	c.selected = 0

	c.fallback = c.sched.AfterFunc(c.opts.HideTimeout, func() {
		if c.pending && c.token == token {
			log.Printf("[panel] Hide completion not reported; activating %s anyway", s.ID)
		}
		c.activate(token, s)
	})
	c.surface.Hide(true, func() {
		c.activate(token, s)
	})
}

func (c *Controller) activate(token uint64, s session.AgentSession) {
	if !c.pending || token != c.token {
		return
	}
	c.pending = false
	if c.fallback != nil {
		c.fallback.Stop()
		c.fallback = nil
	}
	c.activator.Activate(s)
}

// resolve maps a 1-based tap count onto a list of count entries, wrapping.
func resolve(taps, count int) int {
	if count <= 0 || taps <= 0 {
		return 0
	}
	return (taps-1)%count + 1
}
