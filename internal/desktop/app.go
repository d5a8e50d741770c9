// Package desktop provides the native desktop app functionality for agent-peek.
package desktop

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/myrison/agent-peek/internal/config"
	"github.com/myrison/agent-peek/internal/focus"
	"github.com/myrison/agent-peek/internal/hotkey"
	"github.com/myrison/agent-peek/internal/mainloop"
	"github.com/myrison/agent-peek/internal/notify"
	"github.com/myrison/agent-peek/internal/session"
	"github.com/myrison/agent-peek/internal/tutorial"
)

// Version is set at build time via ldflags
var Version = "0.1.0-dev"

// App struct holds the application state
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	settings *config.Manager
	cfg      config.Config

	loop     *mainloop.Loop
	win      window
	surface  *surface
	notifier *notify.Notifier
	core     *Core
}

// NewApp creates a new App application struct
func NewApp() *App {
	return &App{settings: config.NewManager()}
}

// Startup is called when the app starts. It wires every component and
// starts the main loop, the file watcher and the hotkey source.
func (a *App) Startup(ctx context.Context) {
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.win = wailsWindow{ctx: ctx}
	if err := a.start(); err != nil {
		log.Printf("[desktop] Startup failed: %v", err)
	}
}

func (a *App) start() error {
	cfg, err := a.settings.Load()
	if err != nil {
		log.Printf("[desktop] Warning: %v", err)
	}
	a.cfg = cfg

	storage, err := session.NewStorage(config.SessionsPath())
	if err != nil {
		return err
	}

	a.loop = mainloop.New()
	a.surface = newSurface(a.win, a.loop)
	a.notifier = notify.New(notify.NewCommandBackend(), cfg.Notifications.Debounce,
		cfg.Notifications.Sound, cfg.Notifications.IsEnabled())
	focuser := focus.New(focus.ExecRunner{}, a.loop, focus.DefaultStrategies(), cfg.Focus.FollowUpDelay)

	a.core = NewCore(Deps{
		Config:      cfg,
		Sched:       a.loop,
		Storage:     storage,
		Surface:     a.surface,
		Activator:   focuser,
		Keys:        hotkey.SystemKeyState(),
		InstalledAt: config.ReadInstalledAt(),
		Observers:   []session.Observer{a.notifier},
		OnTutorialPhase: func(p tutorial.Phase) {
			a.win.Emit(EventTutorialPhase, p.String())
		},
		OnDemoActivate: func(s session.AgentSession) {
			a.win.Emit(EventTutorialOpened, s.ID)
		},
	})

	watcher := session.NewWatcher(storage, a.core.Store, a.loop, session.WatcherConfig{
		PollInterval: cfg.Sessions.PollInterval,
		Debounce:     cfg.Sessions.WatchDebounce,
		SettleDelay:  cfg.Sessions.SettleDelay,
	})
	a.core.Store.AttachWatcher(watcher)

	go func() {
		if err := a.loop.Run(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[desktop] Main loop stopped: %v", err)
		}
	}()
	go func() {
		if err := watcher.Run(a.ctx); err != nil {
			log.Printf("[desktop] Session watcher stopped: %v", err)
		}
	}()

	source := hotkey.NewSource(keyForwarder{sched: a.loop, machine: a.core.Machine})
	go func() {
		err := source.Run(a.ctx)
		if err == nil {
			return
		}
		log.Printf("[desktop] Hotkey source unavailable: %v", err)
		if errors.Is(err, hotkey.ErrNotTrusted) {
			a.loop.Post(func() { a.win.Emit(EventHotkeyPermission, false) })
		}
	}()
	return nil
}

// Shutdown is called when the app is closing.
func (a *App) Shutdown(ctx context.Context) {
	if a.core != nil {
		a.call(a.core.StopTutorial)
	}
	if a.cancel != nil {
		a.cancel()
	}
}

// call runs fn on the main loop and waits for it.
func (a *App) call(fn func()) bool {
	if a.loop == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(a.ctx, 2*time.Second)
	defer cancel()
	return a.loop.Call(ctx, fn)
}

// GetVersion returns the application version
func (a *App) GetVersion() string {
	return Version
}

// GetSessions returns the ordered session list.
func (a *App) GetSessions() []SessionView {
	var views []SessionView
	if a.core == nil {
		return views
	}
	a.call(func() { views = toViews(a.core.Store.OrderedView()) })
	return views
}

// PanelHidden is called by the frontend once its hide animation finished.
func (a *App) PanelHidden() {
	if a.loop != nil {
		a.loop.Post(a.surface.hidden)
	}
}

// ClickOutside is called by the frontend for clicks outside the panel.
func (a *App) ClickOutside() {
	if a.core != nil {
		a.loop.Post(func() { a.core.Active().ClickOutside() })
	}
}

// SelectSession activates the n-th listed session of a pinned panel.
func (a *App) SelectSession(n int) {
	if a.core != nil {
		a.loop.Post(func() { a.core.Machine.SelectNumber(n) })
	}
}

// DismissPanel hides the panel, as Escape does.
func (a *App) DismissPanel() {
	if a.core != nil {
		a.loop.Post(func() { a.core.Active().EscapePressed() })
	}
}

// StartTutorial begins the guided walkthrough.
func (a *App) StartTutorial() {
	if a.core != nil {
		a.call(a.core.StartTutorial)
	}
}

// StopTutorial ends the walkthrough.
func (a *App) StopTutorial() {
	if a.core != nil {
		a.call(a.core.StopTutorial)
	}
}

// GetTutorialPhase returns the current walkthrough phase.
func (a *App) GetTutorialPhase() string {
	phase := tutorial.WaitingForHold
	if a.core != nil {
		a.call(func() { phase = a.core.Tutorial.Phase() })
	}
	return phase.String()
}

// GetSettings returns the effective configuration.
func (a *App) GetSettings() config.Config {
	return a.cfg
}

// SetNotificationsEnabled toggles notifications and persists the choice.
func (a *App) SetNotificationsEnabled(enabled bool) error {
	if a.notifier != nil {
		a.notifier.SetEnabled(enabled)
	}
	a.cfg.Notifications.Enabled = &enabled
	return a.settings.SetNotificationsEnabled(enabled)
}

// HotkeyTrusted reports whether the accessibility permission is granted.
func (a *App) HotkeyTrusted() bool {
	return hotkey.Trusted(false)
}
