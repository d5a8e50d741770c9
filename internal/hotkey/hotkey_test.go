package hotkey

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/myrison/agent-peek/internal/gesture"
)

type recordingHandler struct {
	flags []gesture.Flags
	keys  []string
}

func (h *recordingHandler) FlagsChanged(flags gesture.Flags) { h.flags = append(h.flags, flags) }
func (h *recordingHandler) KeyDown(code uint16, chars string) {
	h.keys = append(h.keys, chars)
}

func TestDispatchRoutesToActiveSource(t *testing.T) {
	h := &recordingHandler{}
	setActive(NewSource(h))
	defer setActive(nil)

	dispatchFlags(uint64(gesture.FlagOption | gesture.FlagCommand))
	dispatchKeyDown(18, "1")

	assert.Equal(t, []gesture.Flags{gesture.FlagOption | gesture.FlagCommand}, h.flags)
	assert.Equal(t, []string{"1"}, h.keys)
}

func TestDispatchWithoutSourceIsDropped(t *testing.T) {
	setActive(nil)
	dispatchFlags(uint64(gesture.FlagOption))
	dispatchKeyDown(53, "")
}
