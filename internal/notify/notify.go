// Package notify raises desktop notifications for session transitions.
package notify

import (
	"log"
	"sync"
	"time"

	"github.com/bep/debounce"

	"github.com/myrison/agent-peek/internal/session"
)

// Kind distinguishes notification types for debouncing.
type Kind string

const (
	KindAttention Kind = "attention"
	KindFinished  Kind = "finished"
)

// DefaultDebounce coalesces repeats of the same notification.
const DefaultDebounce = 500 * time.Millisecond

type key struct {
	id   string
	kind Kind
}

// Notifier implements session.Observer. Repeats of the same (session, kind)
// inside the debounce window collapse into one notification carrying the
// latest state. Delivery happens on the debouncer's goroutine.
type Notifier struct {
	backend Backend
	delay   time.Duration
	sound   string

	mu         sync.Mutex
	enabled    bool
	debouncers map[key]func(func())
}

// New creates a notifier. A non-positive delay uses DefaultDebounce.
func New(backend Backend, delay time.Duration, sound string, enabled bool) *Notifier {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Notifier{
		backend:    backend,
		delay:      delay,
		sound:      sound,
		enabled:    enabled,
		debouncers: make(map[key]func(func())),
	}
}

// SetEnabled turns delivery on or off.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// Enabled reports whether delivery is on.
func (n *Notifier) Enabled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.enabled
}

func (n *Notifier) NeedsAttention(s session.AgentSession) {
	body := s.NotificationMessage
	if body == "" {
		body = "Waiting for your input"
	}
	n.schedule(s, KindAttention, s.ProjectName()+" needs attention", body)
}

func (n *Notifier) Finished(s session.AgentSession) {
	body := s.Activity
	if body == "" {
		body = "Finished"
	}
	n.schedule(s, KindFinished, s.ProjectName()+" is done", body)
}

// SessionsChanged forgets debouncers of sessions that are gone.
func (n *Notifier) SessionsChanged(view []session.AgentSession) {
	live := make(map[string]bool, len(view))
	for _, s := range view {
		live[s.ID] = true
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for k := range n.debouncers {
		if !live[k.id] {
			delete(n.debouncers, k)
		}
	}
}

func (n *Notifier) schedule(s session.AgentSession, kind Kind, title, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.enabled {
		return
	}
	k := key{id: s.ID, kind: kind}
	d, ok := n.debouncers[k]
	if !ok {
		d = debounce.New(n.delay)
		n.debouncers[k] = d
	}
	d(func() {
		if !n.Enabled() {
			return
		}
		if err := n.backend.Send(title, body, n.sound); err != nil {
			log.Printf("[notify] Failed to send %s notification for %s: %v", kind, s.ID, err)
		}
	})
}
