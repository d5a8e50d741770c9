//go:build darwin

package hotkey

/*
#cgo LDFLAGS: -framework ApplicationServices -framework CoreFoundation

#include <stdint.h>

int peekStartTap(void);
void peekRunTap(void);
void peekStopTap(void);
void peekCleanupTap(void);
int peekIsTrusted(int prompt);
uint64_t peekCurrentFlags(void);
*/
import "C"

import (
	"context"
	"errors"
	"log"
	"runtime"

	"github.com/myrison/agent-peek/internal/gesture"
)

//export goFlagsChanged
func goFlagsChanged(flags C.uint64_t) {
	dispatchFlags(uint64(flags))
}

//export goKeyDown
func goKeyDown(code C.uint16_t, chars *C.char) {
	dispatchKeyDown(uint16(code), C.GoString(chars))
}

// Trusted reports whether the process may observe global key events.
// With prompt set, macOS shows its permission dialog if needed.
func Trusted(prompt bool) bool {
	p := C.int(0)
	if prompt {
		p = 1
	}
	return C.peekIsTrusted(p) == 1
}

// Run installs the event tap and delivers events until ctx is done.
func (s *Source) Run(ctx context.Context) error {
	if !Trusted(true) {
		return ErrNotTrusted
	}

	started := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		// The tap's run loop belongs to this thread.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		setActive(s)
		defer setActive(nil)
		if C.peekStartTap() != 0 {
			started <- errors.New("failed to create event tap")
			return
		}
		started <- nil
		C.peekRunTap()
		C.peekCleanupTap()
	}()

	if err := <-started; err != nil {
		<-done
		return err
	}
	log.Printf("[hotkey] Event tap installed")

	<-ctx.Done()
	C.peekStopTap()
	<-done
	return nil
}

// SystemKeyState reads the hardware modifier state, bypassing the event
// stream.
func SystemKeyState() gesture.KeyState {
	return systemKeyState{}
}

type systemKeyState struct{}

func (systemKeyState) ModifierDown(flag gesture.Flags) bool {
	return gesture.Flags(C.peekCurrentFlags())&flag != 0
}
