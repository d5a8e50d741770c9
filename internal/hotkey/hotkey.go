// Package hotkey delivers global modifier and key events from the OS.
package hotkey

import (
	"errors"
	"sync"

	"github.com/myrison/agent-peek/internal/gesture"
)

var (
	// ErrUnsupported is returned on platforms without a global event tap.
	ErrUnsupported = errors.New("global hotkeys are not supported on this platform")
	// ErrNotTrusted is returned when the accessibility permission is missing.
	ErrNotTrusted = errors.New("accessibility permission not granted")
)

// Handler receives raw events on the event-tap thread. Implementations
// must hand them to the main context themselves.
type Handler interface {
	FlagsChanged(flags gesture.Flags)
	KeyDown(code uint16, chars string)
}

// Source owns the OS event tap. Only one Source can run at a time.
type Source struct {
	handler Handler
}

// NewSource creates a source delivering to h.
func NewSource(h Handler) *Source {
	return &Source{handler: h}
}

var (
	activeMu sync.RWMutex
	active   *Source
)

func setActive(s *Source) {
	activeMu.Lock()
	defer activeMu.Unlock()
	active = s
}

func current() *Source {
	activeMu.RLock()
	defer activeMu.RUnlock()
	return active
}

func dispatchFlags(flags uint64) {
	if s := current(); s != nil {
		s.handler.FlagsChanged(gesture.Flags(flags))
	}
}

func dispatchKeyDown(code uint16, chars string) {
	if s := current(); s != nil {
		s.handler.KeyDown(code, chars)
	}
}
