// Package scheduler implements the eight-slot cooperative round-robin loop
// that drives the Keyer Engine, the WinKey Protocol Engine, and the
// debouncers (spec §5). Modeled on the source's tick-driven run loop
// (core_engine/vcpu.go, deleted: see DESIGN.md), reduced from a guest-CPU
// instruction loop to a plain slot dispatcher: there is no guest here,
// only our own two state machines and housekeeping.
package scheduler

import (
	"github.com/dl1ycf/winkeyer/internal/debounce"
	"github.com/dl1ycf/winkeyer/internal/hw"
	"github.com/dl1ycf/winkeyer/internal/keyer"
	"github.com/dl1ycf/winkeyer/internal/settings"
	"github.com/dl1ycf/winkeyer/internal/state"
	"github.com/dl1ycf/winkeyer/internal/winkey"
)

// numSlots is the Scheduler's round-robin period (spec §5: "eight slot
// behaviors").
const numSlots = 8

// Scheduler owns the debouncers and ticks the Keyer Engine and Protocol
// Engine forward. It holds no engine logic of its own beyond slot
// dispatch and the two housekeeping computations (speed-pot derivation,
// sidetone-enable edge reporting).
type Scheduler struct {
	clock hw.Clock

	dotDeb      *debounce.Digital
	dashDeb     *debounce.Digital
	straightDeb *debounce.Digital
	potDeb      *debounce.Analog

	store *settings.Store
	live  *state.Live

	keyerEng *keyer.Engine
	proto    *winkey.Engine
	sink     hw.EventSink

	slot             int
	lastSidetoneOn   bool
	sidetoneReported bool
}

// New wires a Scheduler over already-constructed collaborators; debounced
// inputs are read directly from the raw hw interfaces so this package
// owns the only Digital/Analog debounce instances in the process.
func New(clock hw.Clock, dotIn, dashIn, straightIn hw.DigitalIn, potIn hw.AnalogIn,
	store *settings.Store, live *state.Live, keyerEng *keyer.Engine, proto *winkey.Engine, sink hw.EventSink) *Scheduler {
	return &Scheduler{
		clock:       clock,
		dotDeb:      debounce.NewDigital(dotIn),
		dashDeb:     debounce.NewDigital(dashIn),
		straightDeb: debounce.NewDigital(straightIn),
		potDeb:      debounce.NewAnalog(potIn),
		store:       store,
		live:        live,
		keyerEng:    keyerEng,
		proto:       proto,
		sink:        sink,
	}
}

// Run loops forever, sampling inputs once per outer iteration and
// dispatching exactly one of the eight slot behaviors per invocation
// (spec §5).
func (s *Scheduler) Run() {
	for {
		s.Tick()
	}
}

// Tick performs exactly one outer iteration: sample inputs against a
// single `actual` timestamp snapshot, then dispatch one slot (spec §5:
// "all deadlines are compared against this snapshot so that a single
// pass sees a consistent time").
func (s *Scheduler) Tick() {
	now := s.clock.NowMillis()
	s.sampleInputs(now)

	switch s.slot {
	case 0:
		s.recomputeSpeedPot(now)
	case 2:
		s.reportSidetoneState()
	case 4:
		s.proto.Step(now)
	case 6:
		s.sink.DrainMIDI()
	case 1, 3, 5, 7:
		s.keyerEng.Step(now)
	}

	s.slot++
	if s.slot >= numSlots {
		s.slot = 0
	}
}

// sampleInputs polls the three digital debouncers, latching dot/dash
// memory and last_pressed on open->closed edges (spec §3, §4.3: "Paddle
// transitions from open->closed additionally set the corresponding
// dot/dash memory and record last_pressed").
func (s *Scheduler) sampleInputs(now uint32) {
	dot, dotEdge := s.dotDeb.Poll(now)
	dash, dashEdge := s.dashDeb.Poll(now)
	straight, _ := s.straightDeb.Poll(now)

	s.live.KDot = dot
	s.live.KDash = dash
	s.live.StraightKey = straight

	if dotEdge {
		s.live.MemDot = true
		s.live.LastPressedDot = true
	}
	if dashEdge {
		s.live.MemDash = true
		s.live.LastPressedDot = false
	}
}

// recomputeSpeedPot derives live.SpeedPot (0..31) from the filtered
// analog reading, per the clamp formula spec §8 scenario 1 gives for the
// GetPot reply: `clamp((pot*range + 8180)/16368, 0, range)`.
func (s *Scheduler) recomputeSpeedPot(now uint32) {
	raw := s.potDeb.Poll(now)
	rng := int(s.store.Current.WPMRange)
	if rng == 0 {
		s.live.SpeedPot = 0
		return
	}
	v := (int(raw)*rng + 8180) / 16368
	if v < 0 {
		v = 0
	}
	if v > rng {
		v = rng
	}
	s.live.SpeedPot = byte(v)
}

// reportSidetoneState reports pin_config's sidetone-enable bit to the
// EventSink on its first call and after that only on change (spec §5
// "slot 2: side-tone enable-state report").
func (s *Scheduler) reportSidetoneState() {
	on := s.store.Current.SidetoneEnabled()
	if !s.sidetoneReported || on != s.lastSidetoneOn {
		s.sidetoneReported = true
		s.lastSidetoneOn = on
		s.sink.SidetoneState(on)
	}
}
