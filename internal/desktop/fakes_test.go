package desktop

import (
	"github.com/myrison/agent-peek/internal/session"
)

type emitted struct {
	event string
	data  []interface{}
}

type fakeWindow struct {
	visible bool
	shows   int
	hides   int
	events  []emitted
}

func (w *fakeWindow) Show() {
	w.visible = true
	w.shows++
}

func (w *fakeWindow) Hide() {
	w.visible = false
	w.hides++
}

func (w *fakeWindow) Emit(event string, data ...interface{}) {
	w.events = append(w.events, emitted{event: event, data: data})
}

func (w *fakeWindow) named(event string) []emitted {
	var out []emitted
	for _, e := range w.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

type recordingActivator struct {
	ids []string
}

func (r *recordingActivator) Activate(s session.AgentSession) {
	r.ids = append(r.ids, s.ID)
}
