package desktop

import (
	"log"
	"time"

	"github.com/myrison/agent-peek/internal/config"
	"github.com/myrison/agent-peek/internal/gesture"
	"github.com/myrison/agent-peek/internal/mainloop"
	"github.com/myrison/agent-peek/internal/panel"
	"github.com/myrison/agent-peek/internal/session"
	"github.com/myrison/agent-peek/internal/tutorial"
)

// Deps are the collaborators the core is assembled from.
type Deps struct {
	Config      config.Config
	Sched       mainloop.Scheduler
	Storage     *session.Storage
	Surface     panel.Surface
	Activator   panel.Activator
	Keys        gesture.KeyState
	InstalledAt time.Time
	// Observers are additionally subscribed to the store.
	Observers []session.Observer
	// OnTutorialPhase and OnDemoActivate report tutorial progress.
	OnTutorialPhase func(tutorial.Phase)
	OnDemoActivate  func(s session.AgentSession)
}

// Core is the wired component graph. Everything in it lives on the main
// context.
type Core struct {
	Store      *session.Store
	Machine    *gesture.Machine
	Controller *panel.Controller
	Demo       *panel.Controller
	Tutorial   *tutorial.Tutorial
}

type activatorFunc func(s session.AgentSession)

func (f activatorFunc) Activate(s session.AgentSession) { f(s) }

// NewCore assembles the store, gesture machine, panel controllers and
// tutorial.
func NewCore(d Deps) *Core {
	store := session.NewStore(d.Storage, d.Sched, session.StoreOptions{
		Retention:   d.Config.Sessions.Retention,
		InstalledAt: d.InstalledAt,
	})

	controller := panel.NewController(d.Surface, d.Activator, store, d.Sched, panel.Options{})
	store.AddObserver(controller)
	for _, o := range d.Observers {
		store.AddObserver(o)
	}

	demo := panel.NewController(d.Surface, activatorFunc(func(s session.AgentSession) {
		if d.OnDemoActivate != nil {
			d.OnDemoActivate(s)
		}
	}), store, d.Sched, panel.Options{})
	store.AddObserver(demo)

	machine := gesture.New(GestureConfig(d.Config.Gesture), d.Sched, d.Keys, controller)
	c := &Core{
		Store:      store,
		Machine:    machine,
		Controller: controller,
		Demo:       demo,
		Tutorial:   tutorial.New(machine, store, demo, d.OnTutorialPhase),
	}
	machine.SetPinnedPredicate(func() bool { return c.Active().Pinned() })
	return c
}

// Active returns the controller currently driving the surface.
func (c *Core) Active() *panel.Controller {
	if c.Tutorial.Running() {
		return c.Demo
	}
	return c.Controller
}

// GestureConfig converts the TOML gesture section. Invalid modifier names
// fall back to the defaults.
func GestureConfig(g config.GestureConfig) gesture.Config {
	cfg := gesture.DefaultConfig()
	primary, perr := gesture.ParseModifier(g.Primary)
	secondary, serr := gesture.ParseModifier(g.Secondary)
	switch {
	case perr != nil || serr != nil:
		log.Printf("[desktop] Warning: invalid gesture modifiers %q/%q, using %s/%s",
			g.Primary, g.Secondary, cfg.Primary, cfg.Secondary)
	case primary == secondary:
		log.Printf("[desktop] Warning: primary and secondary are both %s, using defaults", primary)
	default:
		cfg.Primary, cfg.Secondary = primary, secondary
	}
	if g.HoldThreshold > 0 {
		cfg.HoldThreshold = g.HoldThreshold
	}
	if g.SafetyTimeout > 0 {
		cfg.SafetyTimeout = g.SafetyTimeout
	}
	if g.KeyDebounce > 0 {
		cfg.KeyDebounce = g.KeyDebounce
	}
	return cfg
}

// keyForwarder moves hotkey events from the tap thread onto the main
// context, preserving their order.
type keyForwarder struct {
	sched   mainloop.Scheduler
	machine *gesture.Machine
}

func (k keyForwarder) FlagsChanged(flags gesture.Flags) {
	k.sched.Post(func() { k.machine.FlagsChanged(flags) })
}

func (k keyForwarder) KeyDown(code uint16, chars string) {
	k.sched.Post(func() { k.machine.KeyDown(code, chars) })
}

// StartTutorial dismisses the real panel and starts a walkthrough.
func (c *Core) StartTutorial() {
	if c.Tutorial.Running() {
		return
	}
	c.Controller.EscapePressed()
	c.Tutorial.Start()
}

// StopTutorial ends a walkthrough, restoring live sessions.
func (c *Core) StopTutorial() {
	c.Tutorial.Stop()
}
