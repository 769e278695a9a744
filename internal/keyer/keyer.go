// Package keyer implements the 12-state Keyer Engine (spec §4.4): paddle
// and straight-key reading, Iambic-A/B/Ultimatic/Bug mode arbitration,
// buffered-character transmission drained from the ring buffer, and the
// collector/echo path that decodes paddle input back to ASCII. Modeled as
// a single owned struct ticked forward by a non-blocking Step, the way the
// source's PIT counter (core_engine/devices/pit.go) is a command-register
// -driven state machine advanced one HandleIO/tick at a time rather than
// run on its own goroutine.
package keyer

import (
	"log"
	"time"

	"github.com/dl1ycf/winkeyer/internal/hw"
	"github.com/dl1ycf/winkeyer/internal/morse"
	"github.com/dl1ycf/winkeyer/internal/ring"
	"github.com/dl1ycf/winkeyer/internal/settings"
	"github.com/dl1ycf/winkeyer/internal/state"
)

// State is one of the 12 states spec §4.4 names.
type State int

const (
	StateCheck State = iota
	StateStartDot
	StateStartDash
	StateStartStraight
	StateSendDot
	StateSendDash
	StateSendStraight
	StateDotDelay
	StateDashDelay
	StateSndPTT
	StateSndEle
	StateSndDelay
)

// sendComplete is the shift-register sentinel meaning "every element of
// the current character has been sent" (spec §9: same 0x01 convention the
// Morse table itself uses).
const sendComplete = 0x01

// relatchRun is how many elements may be sent within one run before speed
// is recomputed mid-run, permitting live pot adjustment (spec §4.4
// "Current WPM is latched on entering CHECK or while sending more than 5
// elements in a run").
const relatchRun = 5

// Engine is the Keyer Engine. It owns no hardware directly; the Scheduler
// polls paddle/straight-key debouncers and writes edges into state.Live,
// and Engine works only on Live plus the shared Settings/ring Buffer.
type Engine struct {
	store *settings.Store
	ring  *ring.Buffer
	live  *state.Live
	sink  hw.EventSink
	log   *log.Logger

	state    State
	deadline uint32

	t             timing
	elementsInRun int

	sending byte // shift register for the char currently being sent

	straightDownAt uint32

	pendingEcho       []byte
	pendingSerialEcho []byte
}

// New constructs a Keyer Engine over the shared settings, ring buffer,
// live state, and keying/tone collaborator. logger may be nil, in which
// case the standard logger is used.
func New(store *settings.Store, rb *ring.Buffer, live *state.Live, sink hw.EventSink, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	e := &Engine{store: store, ring: rb, live: live, sink: sink, log: logger}
	e.relatch(0)
	return e
}

// State reports the current FSM state, for tests and diagnostics.
func (e *Engine) State() State { return e.state }

func (e *Engine) relatch(now uint32) {
	wpm := effectiveWPM(e.store.Current, e.live.HostSpeed, e.live.SpeedPot)
	e.t = computeTiming(e.store.Current, wpm)
	e.elementsInRun = 0
}

// countElement bumps the in-run element counter, relatching speed once the
// run exceeds relatchRun elements so a live pot turn takes effect without
// waiting for the run to finish.
func (e *Engine) countElement(now uint32) {
	e.elementsInRun++
	if e.elementsInRun > relatchRun {
		e.relatch(now)
	}
}

// updateEffective derives eff_kdot/eff_kdash/eff_straight from the raw
// debounced contacts per the active paddle mode (spec §3/§4.4).
func (e *Engine) updateEffective() {
	kdot, kdash := e.live.KDot, e.live.KDash
	if e.store.Current.SwapPaddles() {
		kdot, kdash = kdash, kdot
	}

	switch state.PaddleMode(e.store.Current.PaddleMode()) {
	case state.Bug:
		e.live.EffKDot = kdot
		e.live.EffKDash = false
		e.live.MemDash = false
		e.live.EffStraight = e.live.StraightKey || kdash
	case state.Ultimatic:
		if kdot && kdash {
			e.live.EffKDot = e.live.LastPressedDot
			e.live.EffKDash = !e.live.LastPressedDot
		} else {
			e.live.EffKDot = kdot
			e.live.EffKDash = kdash
		}
		e.live.EffStraight = e.live.StraightKey
	default: // IambicA, IambicB
		e.live.EffKDot = kdot
		e.live.EffKDash = kdash
		e.live.EffStraight = e.live.StraightKey
	}
}

// Step advances the engine by one non-blocking tick. now is milliseconds
// since process start (hw.Clock.NowMillis).
func (e *Engine) Step(now uint32) {
	e.updateEffective()

	if e.live.Tuning {
		if e.live.EffKDot || e.live.EffKDash || e.live.EffStraight {
			e.abortTune()
		}
		return
	}

	switch e.state {
	case StateCheck:
		e.stepCheck(now)
	case StateStartDot:
		e.stepStart(now, StateSendDot)
	case StateStartDash:
		e.stepStart(now, StateSendDash)
	case StateStartStraight:
		e.stepStartStraight(now)
	case StateSendDot:
		e.stepSendElement(now, false)
	case StateSendDash:
		e.stepSendElement(now, true)
	case StateSendStraight:
		e.stepSendStraight(now)
	case StateDotDelay:
		e.stepElementDelay(now, true)
	case StateDashDelay:
		e.stepElementDelay(now, false)
	case StateSndPTT:
		e.stepBreakInGuard(now)
		e.stepSndPTT(now)
	case StateSndEle:
		e.stepBreakInGuard(now)
		e.stepSndEle(now)
	case StateSndDelay:
		e.stepBreakInGuard(now)
		e.stepSndDelay(now)
	}
}

// stepBreakInGuard implements the break-in rule: any paddle or straight
// key activity during buffered sending clears the ring buffer and returns
// to CHECK with a hang countdown before PTT releases (spec §4.4).
func (e *Engine) stepBreakInGuard(now uint32) {
	if !(e.live.EffKDot || e.live.EffKDash || e.live.EffStraight) {
		return
	}
	e.ring.Clear()
	e.live.Breakin = true
	e.keyUp()
	e.state = StateCheck
	e.deadline = now + uint32(e.t.hang)
	e.elementsInRun = relatchRun + 1 // force relatch on next CHECK
}

func (e *Engine) assertPTT() {
	if e.live.PTTStat {
		return
	}
	e.sink.PTTOn()
	e.live.PTTStat = true
}

func (e *Engine) releasePTT() {
	if !e.live.PTTStat {
		return
	}
	e.sink.PTTOff()
	e.live.PTTStat = false
}

func (e *Engine) keyDown() {
	if e.live.CWStat {
		return
	}
	e.sink.KeyOn()
	e.live.CWStat = true
}

func (e *Engine) keyUp() {
	if !e.live.CWStat {
		return
	}
	e.sink.KeyOff()
	e.live.CWStat = false
}

// stepCheck implements CHECK-state priority: straight > dot > dash >
// buffered send, falling back to releasing PTT once the hang has elapsed
// with nothing left to do (spec §4.4).
func (e *Engine) stepCheck(now uint32) {
	e.relatch(now)

	switch {
	case e.live.EffStraight:
		e.enterStart(now, StateStartStraight)
		return
	case e.live.EffKDot:
		e.enterStart(now, StateStartDot)
		return
	case e.live.EffKDash:
		e.enterStart(now, StateStartDash)
		return
	}

	e.maybeDecodeCollector(now)

	// Pausing stops buffer drain only (spec §5); paddle and straight-key
	// keying above are unaffected.
	if !e.live.Pausing && e.trySendBuffered(now) {
		return
	}

	e.maybeReleaseHang(now)
}

func (e *Engine) maybeReleaseHang(now uint32) {
	if e.live.PTTStat && now-e.deadline < 1<<31 { // now >= deadline, wrap-safe
		e.releasePTT()
		e.live.Breakin = false
	}
}

// enterStart begins the PTT lead-in wait (if PTT is enabled and not
// already asserted) before transitioning into target's SEND_/element
// state (spec §4.4 "On entering any of START_DOT/START_DASH/
// START_STRAIGHT...").
func (e *Engine) enterStart(now uint32, target State) {
	e.state = target
	if e.store.Current.PTTEnabled() && !e.live.PTTStat {
		e.assertPTT()
		e.deadline = now + uint32(e.store.Current.LeadIn)*10
	} else {
		e.deadline = now
	}
}

func (e *Engine) stepStart(now uint32, next State) {
	if now-e.deadline >= 1<<31 {
		return
	}
	dash := next == StateSendDash
	if dash {
		e.live.MemDash = false
		e.live.DotHeld = e.live.EffKDot
		e.keyDown()
		e.deadline = now + uint32(e.t.dash)
	} else {
		e.live.MemDot = false
		e.live.DashHeld = e.live.EffKDash
		e.keyDown()
		e.deadline = now + uint32(e.t.dot)
	}
	e.live.AppendElement(dash)
	e.live.LastSpaceSent = false
	e.live.MarkSilence(now)
	e.countElement(now)
	e.state = next
}

func (e *Engine) stepStartStraight(now uint32) {
	if now-e.deadline >= 1<<31 {
		return
	}
	if !e.live.EffStraight {
		e.state = StateCheck
		e.deadline = now + uint32(e.t.hang)
		return
	}
	e.keyDown()
	e.straightDownAt = now
	e.state = StateSendStraight
}

func (e *Engine) stepSendElement(now uint32, dash bool) {
	if now-e.deadline >= 1<<31 {
		return
	}
	e.keyUp()
	if dash {
		e.state = StateDashDelay
	} else {
		e.state = StateDotDelay
	}
	e.deadline = now + uint32(e.t.elePause)
}

func (e *Engine) stepSendStraight(now uint32) {
	if e.live.EffStraight {
		return
	}
	e.keyUp()
	held := now - e.straightDownAt
	dash := int(held) > 2*e.t.elePause
	e.live.AppendElement(dash)
	e.live.LastSpaceSent = false
	e.live.MarkSilence(now)
	e.countElement(now)
	e.state = StateCheck
	e.deadline = now + uint32(e.t.hang)
}

// stepElementDelay implements the symmetric Iambic decision at the end of
// DOT_DELAY/DASH_DELAY (spec §4.4): the opposite element's memory/live
// contact/held flag is checked first, then the same element repeats from
// memory, else CHECK with hang.
func (e *Engine) stepElementDelay(now uint32, afterDot bool) {
	if now-e.deadline >= 1<<31 {
		return
	}

	mode := state.PaddleMode(e.store.Current.PaddleMode())
	if mode == state.IambicA {
		if !e.live.EffKDot && !e.live.EffKDash {
			if afterDot {
				e.live.DashHeld = false
			} else {
				e.live.DotHeld = false
			}
		}
	}

	if afterDot {
		if e.live.MemDash || e.live.EffKDash || e.live.DashHeld {
			e.enterStart(now, StateStartDash)
			return
		}
		if e.live.EffKDot || e.live.MemDot {
			e.enterStart(now, StateStartDot)
			return
		}
	} else {
		if e.live.MemDot || e.live.EffKDot || e.live.DotHeld {
			e.enterStart(now, StateStartDot)
			return
		}
		if e.live.EffKDash || e.live.MemDash {
			e.enterStart(now, StateStartDash)
			return
		}
	}

	e.state = StateCheck
	e.deadline = now + uint32(e.t.hang)
}

// abortTune ends tuning immediately without the normal 150/50ms delays:
// "a paddle press while tuning aborts it" (spec §4.4 error handling).
func (e *Engine) abortTune() {
	e.keyUp()
	e.releasePTT()
	e.live.Tuning = false
	e.state = StateCheck
}

// Tune drives the TUNE admin command. These are the two deliberate
// blocking exceptions spec §4.4 carves out of an otherwise non-blocking
// engine.
func (e *Engine) Tune(on bool) {
	e.log.Printf("keyer: tune %v", on)
	if on {
		e.ring.Clear()
		e.live.Tuning = true
		if e.store.Current.PTTEnabled() {
			e.assertPTT()
		}
		time.Sleep(150 * time.Millisecond)
		e.keyDown()
		return
	}
	e.keyUp()
	time.Sleep(50 * time.Millisecond)
	e.releasePTT()
	e.live.Tuning = false
}

// trySendBuffered dequeues and advances exactly one step of buffered
// transmission; it reports whether it consumed the tick (so CHECK's hang
// release is skipped) (spec §4.1, §4.4).
func (e *Engine) trySendBuffered(now uint32) bool {
	if e.ring.Count() == 0 {
		return false
	}
	b, ok := e.ring.Dequeue()
	if !ok {
		return false
	}

	switch {
	case b == ring.Prosign:
		e.live.Prosign = true
		return true
	case b == ring.NoOp:
		return true
	case b == ' ':
		e.sending = sendComplete
		e.state = StateSndDelay
		e.deadline = now + uint32(e.t.wordPause)
		return true
	}

	upper := b
	if upper >= 'a' && upper <= 'z' {
		upper -= 'a' - 'A'
	}
	pattern, ok := morse.Lookup(upper)
	if !ok || pattern == morse.NoCode {
		return true
	}
	e.serialEcho(upper)

	e.sending = pattern
	e.state = StateSndPTT
	if e.store.Current.PTTEnabled() && !e.live.PTTStat {
		e.assertPTT()
		e.deadline = now + uint32(e.store.Current.LeadIn)*10
	} else {
		e.deadline = now
	}
	return true
}

func (e *Engine) stepSndPTT(now uint32) {
	if now-e.deadline >= 1<<31 {
		return
	}
	dash := e.sending&1 == 1
	e.sending >>= 1
	e.keyDown()
	if dash {
		e.deadline = now + uint32(e.t.dash)
	} else {
		e.deadline = now + uint32(e.t.dot)
	}
	e.countElement(now)
	e.state = StateSndEle
}

func (e *Engine) stepSndEle(now uint32) {
	if now-e.deadline >= 1<<31 {
		return
	}
	e.keyUp()
	e.deadline = now + uint32(e.t.elePause)
	if e.sending == sendComplete {
		if e.live.Prosign {
			e.live.Prosign = false
		} else {
			e.deadline += uint32(e.t.charPause)
		}
	}
	e.state = StateSndDelay
}

func (e *Engine) stepSndDelay(now uint32) {
	if now-e.deadline >= 1<<31 {
		return
	}
	if e.sending == sendComplete {
		e.state = StateCheck
		e.deadline = now
		return
	}
	dash := e.sending&1 == 1
	e.sending >>= 1
	e.keyDown()
	if dash {
		e.deadline = now + uint32(e.t.dash)
	} else {
		e.deadline = now + uint32(e.t.dot)
	}
	e.countElement(now)
	e.state = StateSndEle
}

// maybeDecodeCollector implements the silence-triggered collector decode
// and word-space emission (spec §4.4 "Collector & echo"): 2*dot of
// silence with a nonempty collector decodes and echoes a character; 6*dot
// of silence with an empty collector and no recent space emits a single
// space. Both only produce host-visible output when paddle echo is on.
func (e *Engine) maybeDecodeCollector(now uint32) {
	elapsed := now - e.live.SilenceSince

	if e.live.CollPos > 0 {
		if int(elapsed) < 2*e.t.dot {
			return
		}
		pattern := e.collectorPattern()
		if ch, ok := morse.ReverseLookup(pattern); ok {
			e.echo(ch)
		}
		e.live.ResetCollector()
		e.live.MarkSilence(now)
		return
	}

	if !e.live.LastSpaceSent && int(elapsed) >= 6*e.t.dot {
		e.echo(' ')
		e.live.LastSpaceSent = true
	}
}

// collectorPattern converts the bit-indexed Collector/CollPos pair into
// the same sentinel-terminated shift-register form morse.Table uses.
func (e *Engine) collectorPattern() byte {
	var reg byte = 1
	for i := e.live.CollPos - 1; i >= 0; i-- {
		bit := (e.live.Collector >> uint(i)) & 1
		reg = (reg << 1) | bit
	}
	return reg
}

// echo pushes a decoded character toward the host if paddle echo is
// enabled and the host has an open session (spec §4.4, §6 "Paddle echo").
func (e *Engine) echo(ch byte) {
	if !e.store.Current.PaddleEcho() || !e.live.HostMode {
		return
	}
	e.pendingEcho = append(e.pendingEcho, ch)
}

// serialEcho pushes a character taken from the ring buffer for
// transmission toward the host if serial echo is enabled (spec §6
// "Serial echo").
func (e *Engine) serialEcho(ch byte) {
	if !e.store.Current.SerialEcho() || !e.live.HostMode {
		return
	}
	e.pendingSerialEcho = append(e.pendingSerialEcho, ch)
}

// TakeEcho drains any bytes the collector has decoded since the last
// call, for the WinKey Protocol Engine to forward to the host.
func (e *Engine) TakeEcho() []byte {
	if len(e.pendingEcho) == 0 {
		return nil
	}
	out := e.pendingEcho
	e.pendingEcho = nil
	return out
}

// TakeSerialEcho drains any ring-buffer characters taken for transmission
// since the last call, for the WinKey Protocol Engine to forward to the
// host.
func (e *Engine) TakeSerialEcho() []byte {
	if len(e.pendingSerialEcho) == 0 {
		return nil
	}
	out := e.pendingSerialEcho
	e.pendingSerialEcho = nil
	return out
}
