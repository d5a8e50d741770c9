// Package focus activates the terminal that hosts an agent session.
package focus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/myrison/agent-peek/internal/mainloop"
	"github.com/myrison/agent-peek/internal/session"
)

// ErrNoStrategy is returned when a session's terminal is unknown.
var ErrNoStrategy = errors.New("no focus strategy for terminal")

const commandTimeout = 5 * time.Second

// Focuser activates sessions asynchronously. Activate must be called on the
// main context; the external commands run on background goroutines.
//
// After a successful activation one delayed follow-up re-activates the
// app, since a tab switch can leave another window in front. A newer
// Activate supersedes any follow-up not yet fired.
type Focuser struct {
	runner        Runner
	sched         mainloop.Scheduler
	strategies    []Strategy
	followUpDelay time.Duration

	gen   uint64
	timer mainloop.Timer

	// async runs blocking work off the main context.
	async func(func())
	// OnResult, if set, observes each activation outcome on the main context.
	OnResult func(s session.AgentSession, err error)
}

// New creates a focuser. A zero followUpDelay disables the follow-up.
func New(runner Runner, sched mainloop.Scheduler, strategies []Strategy, followUpDelay time.Duration) *Focuser {
	return &Focuser{
		runner:        runner,
		sched:         sched,
		strategies:    strategies,
		followUpDelay: followUpDelay,
		async:         func(fn func()) { go fn() },
	}
}

// StrategyFor picks the strategy for a TERM_PROGRAM value. Unknown but
// named terminals fall back to activating an app of the same name.
func (f *Focuser) StrategyFor(terminal string) (Strategy, error) {
	terminal = strings.TrimSpace(terminal)
	if st, ok := lo.Find(f.strategies, func(st Strategy) bool { return st.matches(terminal) }); ok {
		return st, nil
	}
	if terminal == "" || terminal == session.UnknownTTY {
		return Strategy{}, ErrNoStrategy
	}
	return Strategy{Name: "generic", App: terminal}, nil
}

// Activate brings s's terminal forward. Failures are logged, never returned.
func (f *Focuser) Activate(s session.AgentSession) {
	f.gen++
	gen := f.gen
	f.cancelFollowUp()

	st, err := f.StrategyFor(s.Terminal)
	if err != nil {
		f.report(s, fmt.Errorf("%w %q", err, s.Terminal))
		return
	}

	f.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		err := st.Focus(ctx, f.runner, s)
		f.sched.Post(func() {
			f.focused(gen, st, s, err)
		})
	})
}

func (f *Focuser) focused(gen uint64, st Strategy, s session.AgentSession, err error) {
	f.report(s, err)
	if err != nil || gen != f.gen || f.followUpDelay <= 0 {
		return
	}
	f.timer = f.sched.AfterFunc(f.followUpDelay, func() {
		if gen != f.gen {
			return
		}
		f.timer = nil
		f.async(func() {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()
			if err := st.ActivateApp(ctx, f.runner); err != nil {
				log.Printf("[focus] Follow-up activation failed: %v", err)
			}
		})
	})
}

func (f *Focuser) cancelFollowUp() {
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *Focuser) report(s session.AgentSession, err error) {
	if err != nil {
		log.Printf("[focus] Failed to focus session %s: %v", s.ID, err)
	}
	if f.OnResult != nil {
		f.OnResult(s, err)
	}
}
