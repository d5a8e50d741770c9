package desktop

import (
	"context"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/myrison/agent-peek/internal/mainloop"
	"github.com/myrison/agent-peek/internal/panel"
	"github.com/myrison/agent-peek/internal/session"
)

// Frontend events.
const (
	EventPanelShow        = "panel:show"
	EventPanelHide        = "panel:hide"
	EventPanelRender      = "panel:render"
	EventTutorialPhase    = "tutorial:phase"
	EventTutorialOpened   = "tutorial:opened"
	EventHotkeyPermission = "hotkey:permission"
)

// window is the native window plus the frontend event bus.
type window interface {
	Show()
	Hide()
	Emit(event string, data ...interface{})
}

type wailsWindow struct {
	ctx context.Context
}

func (w wailsWindow) Show() {
	runtime.WindowShow(w.ctx)
	runtime.WindowSetAlwaysOnTop(w.ctx, true)
}

func (w wailsWindow) Hide() {
	runtime.WindowHide(w.ctx)
}

func (w wailsWindow) Emit(event string, data ...interface{}) {
	runtime.EventsEmit(w.ctx, event, data...)
}

// surface implements panel.Surface on the Wails window. An animated hide
// is finished by the frontend calling PanelHidden; a timer covers a
// frontend that never does.
type surface struct {
	win   window
	sched mainloop.Scheduler

	hiding      bool
	done        []func()
	hideTimeout time.Duration
	timer       mainloop.Timer
	// hideGen invalidates a timeout callback that was already queued when
	// its hide finished.
	hideGen uint64
}

func newSurface(win window, sched mainloop.Scheduler) *surface {
	return &surface{win: win, sched: sched, hideTimeout: 400 * time.Millisecond}
}

func (s *surface) Show(mode panel.Mode) {
	if s.hiding {
		s.finishHide(false)
	}
	s.win.Show()
	s.win.Emit(EventPanelShow, mode.String())
}

func (s *surface) Hide(animated bool, done func()) {
	if done != nil {
		s.done = append(s.done, done)
	}
	if !animated {
		s.finishHide(true)
		return
	}
	s.win.Emit(EventPanelHide, true)
	if s.hiding {
		return
	}
	s.hiding = true
	s.hideGen++
	gen := s.hideGen
	s.timer = s.sched.AfterFunc(s.hideTimeout, func() {
		if gen == s.hideGen {
			s.hidden()
		}
	})
}

func (s *surface) Render(view []session.AgentSession, selected int) {
	s.win.Emit(EventPanelRender, PanelState{Sessions: toViews(view), Selected: selected})
}

// hidden is called when the frontend reports its hide animation done.
func (s *surface) hidden() {
	if !s.hiding {
		return
	}
	s.finishHide(true)
}

func (s *surface) finishHide(hideWindow bool) {
	s.hiding = false
	s.hideGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if hideWindow {
		s.win.Hide()
	}
	done := s.done
	s.done = nil
	for _, fn := range done {
		fn()
	}
}
