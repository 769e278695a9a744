// Package state holds the process-wide live state shared by the Keyer
// Engine and the WinKey Protocol Engine (spec §3 "Live state"). It is a
// single owned aggregate, passed by exclusive borrow to each tick, the way
// the teacher's device structs own their registers outright and hand a
// pointer receiver to HandleIO rather than reaching through a global.
package state

// PaddleMode selects the paddle behavior (spec §3 mode_register bits 4..5).
type PaddleMode byte

const (
	IambicB PaddleMode = iota
	IambicA
	Ultimatic
	Bug
)

// Live is the process-wide live state singleton (spec §3).
type Live struct {
	Status *Status

	CWStat  bool
	PTTStat bool

	HostMode  bool
	HostSpeed byte // nonzero overrides pot and Settings.Speed

	Pausing bool
	Tuning  bool
	Breakin bool

	SpeedPot byte // 0..31, clamped

	// Paddle inputs.
	KDot, KDash         bool // raw debounced contact state
	MemDot, MemDash     bool // latched memory
	LastPressedDot      bool // true if dot was the most recently pressed (Ultimatic)
	EffKDot, EffKDash   bool // mode-adjusted effective contact state
	DashHeld, DotHeld   bool // sampled at element start (Iambic-A release rule)
	StraightKey         bool // raw debounced straight-key contact
	EffStraight         bool // mode-adjusted effective straight-key state (Bug ORs in raw dash)

	// Collector: partial pattern being entered via paddle/straight key,
	// for echoing decoded ASCII back to the host (spec §4.4).
	Collector     byte
	CollPos       int
	LastSpaceSent bool
	SilenceSince  uint32

	// Protocol admin one-shot flags (spec §4.5 Admin sub-commands).
	EchoNextByte      bool
	CalibratePending  bool
	WK2Mode           bool

	// Prosign threading: set by ring buffer dequeue of 0x1B, cleared by
	// the Keyer Engine at the end of the next character sent, whose
	// inter-character gap it suppresses (spec §4.4).
	Prosign bool
}

// New returns a freshly initialized Live state.
func New() *Live {
	return &Live{Status: NewStatus()}
}

// ResetCollector clears the partial-pattern collector (spec §4.4: after a
// match is found or on a reset).
func (l *Live) ResetCollector() {
	l.Collector = 0
	l.CollPos = 0
}

// AppendElement shifts a dot(0) or dash(1) bit into the collector at
// CollPos (spec §4.4 Collector & echo).
func (l *Live) AppendElement(dash bool) {
	if l.CollPos >= 7 {
		return
	}
	if dash {
		l.Collector |= 1 << uint(l.CollPos)
	}
	l.CollPos++
}

// MarkSilence restarts the collector/word-space silence window from now;
// called whenever paddle/straight-key activity appends an element (spec
// §4.4 Collector & echo).
func (l *Live) MarkSilence(now uint32) {
	l.SilenceSince = now
}
