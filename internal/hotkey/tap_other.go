//go:build !darwin

package hotkey

import (
	"context"

	"github.com/myrison/agent-peek/internal/gesture"
)

// Trusted always reports false without an event tap.
func Trusted(prompt bool) bool {
	return false
}

// Run returns ErrUnsupported.
func (s *Source) Run(ctx context.Context) error {
	return ErrUnsupported
}

// SystemKeyState returns nil; the gesture machine then trusts the event
// stream alone.
func SystemKeyState() gesture.KeyState {
	return nil
}
