// Package gesture turns raw modifier and key events into switcher intents.
//
// A gesture starts when the primary and secondary modifiers are both held.
// Each further press of the secondary while the primary stays down cycles
// the selection. Releasing the primary ends the gesture and decides the
// outcome.
package gesture

import (
	"log"
	"time"

	"github.com/samber/lo"

	"github.com/myrison/agent-peek/internal/mainloop"
)

// Sink consumes the intents the machine emits.
type Sink interface {
	StartPreview()
	Cycle(taps int)
	Commit(taps int)
	Cancelled()
	EnterPersistentMode()
	NumberSelected(n int)
	EscapePressed()
}

// RawObserver sees the tracked modifier state after every flags event,
// including releases the machine turns into no intent at all.
type RawObserver interface {
	RawModifiers(primaryHeld, secondaryHeld bool)
}

// KeyState reports whether a modifier is physically down right now,
// independent of the event stream.
type KeyState interface {
	ModifierDown(flag Flags) bool
}

// Config holds the machine's keys and timings.
type Config struct {
	Primary       Flags
	Secondary     Flags
	HoldThreshold time.Duration
	SafetyTimeout time.Duration
	KeyDebounce   time.Duration
}

// DefaultConfig returns Option+Command with the standard timings.
func DefaultConfig() Config {
	return Config{
		Primary:       FlagOption,
		Secondary:     FlagCommand,
		HoldThreshold: time.Second,
		SafetyTimeout: 3 * time.Second,
		KeyDebounce:   16 * time.Millisecond,
	}
}

// Machine is the gesture state machine. It must only be driven from the
// main context; its timers are scheduled there too.
type Machine struct {
	cfg    Config
	sched  mainloop.Scheduler
	keys   KeyState
	sink   Sink
	pinned func() bool

	observers []*rawEntry

	primaryHeld   bool
	secondaryHeld bool

	active    bool
	startedAt time.Time
	taps      int
	cancel    bool
	gen       uint64
	safety    mainloop.Timer

	lastKey     uint16
	lastKeyAt   time.Time
	haveLastKey bool
}

type rawEntry struct {
	o RawObserver
}

// New creates a machine emitting into sink. keys may be nil, in which case
// the safety check assumes the primary is still held.
func New(cfg Config, sched mainloop.Scheduler, keys KeyState, sink Sink) *Machine {
	def := DefaultConfig()
	if cfg.Primary == 0 {
		cfg.Primary = def.Primary
	}
	if cfg.Secondary == 0 {
		cfg.Secondary = def.Secondary
	}
	if cfg.HoldThreshold <= 0 {
		cfg.HoldThreshold = def.HoldThreshold
	}
	if cfg.SafetyTimeout <= 0 {
		cfg.SafetyTimeout = def.SafetyTimeout
	}
	if cfg.KeyDebounce < 0 {
		cfg.KeyDebounce = 0
	}
	return &Machine{cfg: cfg, sched: sched, keys: keys, sink: sink}
}

// SetPinnedPredicate installs the check gating number-key shortcuts.
func (m *Machine) SetPinnedPredicate(fn func() bool) {
	m.pinned = fn
}

// Swap replaces the intent sink and returns the previous one.
func (m *Machine) Swap(sink Sink) Sink {
	prev := m.sink
	m.sink = sink
	return prev
}

// AddRawObserver registers o and returns a func that unregisters it.
func (m *Machine) AddRawObserver(o RawObserver) (remove func()) {
	entry := &rawEntry{o: o}
	m.observers = append(m.observers, entry)
	return func() {
		m.observers = lo.Without(m.observers, entry)
	}
}

// Active reports whether a gesture is in progress.
func (m *Machine) Active() bool {
	return m.active
}

// Abort drops the active gesture without emitting an intent.
func (m *Machine) Abort() {
	if !m.active {
		return
	}
	log.Printf("[gesture] Aborted gesture (taps=%d)", m.taps)
	m.reset()
}

// FlagsChanged processes the full current modifier set. Flag changes are
// never debounced: a dropped one would break both-held detection.
func (m *Machine) FlagsChanged(flags Flags) {
	primary := flags&m.cfg.Primary != 0
	secondary := flags&m.cfg.Secondary != 0
	wasPrimary, wasSecondary := m.primaryHeld, m.secondaryHeld
	m.primaryHeld, m.secondaryHeld = primary, secondary

	switch {
	case m.active && wasPrimary && !primary:
		m.finish()
	case m.active && primary && secondary && !wasSecondary:
		m.taps++
		m.emit(func(s Sink) { s.Cycle(m.taps) })
	case !m.active && primary && secondary && !(wasPrimary && wasSecondary):
		m.begin()
	}

	m.notifyRaw()
}

// KeyDown processes a discrete key press.
func (m *Machine) KeyDown(code uint16, chars string) {
	now := m.sched.Now()
	if m.haveLastKey && code == m.lastKey && now.Sub(m.lastKeyAt) < m.cfg.KeyDebounce {
		return
	}
	m.lastKey, m.lastKeyAt, m.haveLastKey = code, now, true

	if code == KeyEscape {
		if m.active {
			m.cancel = true
		}
		m.emit(func(s Sink) { s.EscapePressed() })
		return
	}

	if n := digitFor(code, chars); n > 0 {
		m.SelectNumber(n)
	}
}

// SelectNumber is the pointer equivalent of pressing digit n, with the
// same gating as the key path.
func (m *Machine) SelectNumber(n int) {
	if n < 1 || m.active || m.pinned == nil || !m.pinned() {
		return
	}
	m.emit(func(s Sink) { s.NumberSelected(n) })
}

func (m *Machine) begin() {
	m.active = true
	m.startedAt = m.sched.Now()
	m.taps = 0
	m.cancel = false
	m.gen++
	m.armSafety()
	m.emit(func(s Sink) { s.StartPreview() })
}

func (m *Machine) armSafety() {
	gen := m.gen
	m.safety = m.sched.AfterFunc(m.cfg.SafetyTimeout, func() {
		m.safetyCheck(gen)
	})
}

// safetyCheck recovers from a primary release the event stream never
// delivered. A still-held primary re-arms the check.
func (m *Machine) safetyCheck(gen uint64) {
	if !m.active || gen != m.gen {
		return
	}
	if m.keys == nil || m.keys.ModifierDown(m.cfg.Primary) {
		m.armSafety()
		return
	}
	log.Printf("[gesture] Primary %s is up but no release arrived; ending gesture", m.cfg.Primary)
	m.primaryHeld = false
	m.secondaryHeld = m.keys.ModifierDown(m.cfg.Secondary)
	m.finish()
	m.notifyRaw()
}

func (m *Machine) finish() {
	held := m.sched.Now().Sub(m.startedAt)
	taps, cancel := m.taps, m.cancel
	m.reset()

	switch {
	case cancel:
		m.emit(func(s Sink) { s.Cancelled() })
	case taps > 0:
		m.emit(func(s Sink) { s.Commit(taps) })
	case held > m.cfg.HoldThreshold:
		m.emit(func(s Sink) { s.EnterPersistentMode() })
	default:
		m.emit(func(s Sink) { s.Cancelled() })
	}
}

func (m *Machine) reset() {
	m.active = false
	m.taps = 0
	m.cancel = false
	m.gen++
	if m.safety != nil {
		m.safety.Stop()
		m.safety = nil
	}
}

func (m *Machine) emit(fn func(Sink)) {
	if m.sink != nil {
		fn(m.sink)
	}
}

func (m *Machine) notifyRaw() {
	primary, secondary := m.primaryHeld, m.secondaryHeld
	for _, e := range append([]*rawEntry(nil), m.observers...) {
		e.o.RawModifiers(primary, secondary)
	}
}
