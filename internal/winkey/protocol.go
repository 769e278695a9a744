// Package winkey implements the WinKey (K1EL v2.3-subset) Protocol
// Engine: a byte-oriented command/response state machine over a 1200
// baud 8N1 serial link (spec §4.5). Modeled the way the source's 16550
// UART/serial device dispatches register writes through one HandleIO
// entrypoint (core_engine/devices/serial.go), generalized from a
// port-address table to a command-byte table (core_engine/devices/iobus.go).
package winkey

import (
	"log"
	"time"

	"github.com/dl1ycf/winkeyer/internal/hw"
	"github.com/dl1ycf/winkeyer/internal/keyer"
	"github.com/dl1ycf/winkeyer/internal/ring"
	"github.com/dl1ycf/winkeyer/internal/settings"
	"github.com/dl1ycf/winkeyer/internal/state"
)

// dispatchState is the engine's own parse state, distinct from the Keyer
// Engine's 12 states.
type dispatchState int

const (
	stateFree dispatchState = iota
	stateAwaitAdminSub
	stateAwaitAdminEchoByte
	stateAwaitAdminCalibrateByte
	stateAwaitData
	stateAwaitPointerSub
	stateAwaitPointerData
)

// Engine is the WinKey Protocol Engine.
type Engine struct {
	store     *settings.Store
	nv        hw.NVStore
	ring      *ring.Buffer
	live      *state.Live
	keyerEng  *keyer.Engine
	transport hw.Transport
	sink      hw.EventSink
	log       *log.Logger

	state     dispatchState
	activeCmd byte
	need      int
	got       int
	data      [settings.NumFields]byte

	pointerSub byte

	lastStatus byte
	lastPot    byte
	firstPot   bool
}

// New constructs a Protocol Engine over the shared settings, ring buffer,
// live state, NV store, transport, the Keyer Engine it drives (for TUNE
// and buffer mutation side effects), and the EventSink used only for the
// MIDI-drain yield point during EEPROM I/O.
func New(store *settings.Store, nv hw.NVStore, rb *ring.Buffer, live *state.Live, ke *keyer.Engine, transport hw.Transport, sink hw.EventSink, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		store:     store,
		nv:        nv,
		ring:      rb,
		live:      live,
		keyerEng:  ke,
		transport: transport,
		sink:      sink,
		log:       logger,
		firstPot:  true,
	}
}

// Step consumes at most one host byte and advances the dispatch state,
// then drains any pending paddle/serial echo and recomputes the status
// mirror (spec §4.5, §5 "slot 4: one protocol step").
func (e *Engine) Step(now uint32) {
	if b, ok := e.transport.ReadByte(); ok {
		e.consume(b, now)
	}
	e.drainEcho()
	e.updateStatusMirror()
	e.updateSpeedPotMirror()
}

func (e *Engine) drainEcho() {
	for _, b := range e.keyerEng.TakeEcho() {
		e.transport.WriteByte(b)
	}
	for _, b := range e.keyerEng.TakeSerialEcho() {
		e.transport.WriteByte(b)
	}
}

// consume routes one incoming byte according to the current dispatch
// state (spec §4.5 "Idle/command dispatch").
func (e *Engine) consume(b byte, now uint32) {
	switch e.state {
	case stateFree:
		e.consumeFree(b, now)
	case stateAwaitAdminSub:
		e.dispatchAdmin(b, now)
	case stateAwaitAdminEchoByte:
		e.transport.WriteByte(b)
		e.state = stateFree
	case stateAwaitAdminCalibrateByte:
		e.state = stateFree // byte swallowed (spec §4.5 "Calibrate: swallow next byte")
	case stateAwaitData:
		e.data[e.got] = b
		e.got++
		if e.got >= e.need {
			e.dispatch(e.activeCmd, e.data[:e.need], now)
			e.state = stateFree
		}
	case stateAwaitPointerSub:
		e.pointerSub = b
		switch b {
		case PointerClear:
			e.ring.SetWritePos(0)
			e.state = stateFree
		case PointerSetLo, PointerSetHi, PointerZeroFill:
			e.state = stateAwaitPointerData
		default:
			e.state = stateFree
		}
	case stateAwaitPointerData:
		switch e.pointerSub {
		case PointerSetLo, PointerSetHi:
			e.ring.SetWritePos(b)
		case PointerZeroFill:
			e.ring.ZeroFill(int(b))
		}
		e.state = stateFree
	}
}

// consumeFree implements host-mode-gated top-level dispatch: outside
// host-mode only Admin is parsed (spec §4.5 "Idle/command dispatch").
func (e *Engine) consumeFree(b byte, now uint32) {
	if !e.live.HostMode {
		if b == CmdAdmin {
			e.state = stateAwaitAdminSub
		}
		return
	}

	if b >= 0x20 {
		e.ring.Enqueue(b)
		return
	}

	if b == CmdAdmin {
		e.state = stateAwaitAdminSub
		return
	}
	if b == CmdPointer {
		e.state = stateAwaitPointerSub
		return
	}

	if n, ok := dataLen[b]; ok {
		if n == 0 {
			e.dispatch(b, nil, now)
			return
		}
		e.activeCmd = b
		e.need = n
		e.got = 0
		e.state = stateAwaitData
		return
	}

	// Commands with no data bytes dispatched immediately (spec §7:
	// unknown command bytes are skipped and return to FREE, which this
	// default branch also satisfies for any byte not named above).
	e.dispatch(b, nil, now)
}

// updateStatusMirror recomputes wk_status, clearing break-in after
// reporting it, and transmits on change while host-mode is open (spec
// §4.5 "Status mirror").
func (e *Engine) updateStatusMirror() {
	if e.live.Breakin {
		e.live.Status.SetBreakIn()
	} else {
		e.live.Status.ClearBreakIn()
	}
	e.live.Breakin = false
	e.live.Status.SetBusy(e.keyerEng.State() != keyer.StateCheck)
	e.live.Status.SetNearFull(e.ring.Count() > ring.NearFullThreshold)

	cur := e.live.Status.Byte()
	if cur != e.lastStatus {
		e.lastStatus = cur
		if e.live.HostMode {
			e.transport.WriteByte(cur)
		}
	}
}

// updateSpeedPotMirror transmits 128|speed_pot on change while host-mode
// is open (spec §4.5, §6).
func (e *Engine) updateSpeedPotMirror() {
	cur := e.live.SpeedPot
	if e.firstPot {
		e.firstPot = false
		e.lastPot = cur
		return
	}
	if cur != e.lastPot {
		e.lastPot = cur
		if e.live.HostMode {
			e.transport.WriteByte(0x80 | cur)
		}
	}
}

// dispatchAdmin handles the Admin sub-command byte (spec §4.5 "Admin
// sub-commands").
func (e *Engine) dispatchAdmin(sub byte, now uint32) {
	switch sub {
	case AdminCalibrate:
		e.state = stateAwaitAdminCalibrateByte
	case AdminReset:
		e.log.Printf("winkey: admin reset, reloading settings from NV")
		e.store.Reload(e.nv)
		e.live.HostMode = false
		e.live.HostSpeed = 0
		e.state = stateFree
	case AdminOpen:
		e.log.Printf("winkey: admin open, entering host mode")
		e.live.HostMode = true
		e.transport.WriteByte(WKVersion)
		e.state = stateFree
	case AdminClose:
		e.log.Printf("winkey: admin close, leaving host mode")
		e.live.HostMode = false
		e.live.HostSpeed = 0
		e.store.Reload(e.nv)
		e.state = stateFree
	case AdminEcho:
		e.state = stateAwaitAdminEchoByte
	case AdminMsgEnable, AdminMsgDisable, AdminUnusedA, AdminUnusedB:
		e.transport.WriteByte(0x00)
		e.state = stateFree
	case AdminDumpDefault:
		e.adminDumpDefault()
		e.state = stateFree
	case AdminWK1Mode:
		e.live.WK2Mode = false
		e.state = stateFree
	case AdminWK2Mode:
		e.live.WK2Mode = true
		e.state = stateFree
	case AdminReadEEPROM:
		e.adminReadEEPROM()
		e.state = stateFree
	case AdminWriteEEPROM:
		e.adminWriteEEPROM()
		e.state = stateFree
	case AdminMessage:
		e.state = stateFree // accepted, no playback (Non-goal)
	default:
		e.state = stateFree
	}
	_ = now
}

// adminDumpDefault replies with the 15 current setting bytes plus a
// trailing 0x00 (spec §4.5 "07 DumpDefault").
func (e *Engine) adminDumpDefault() {
	b := e.store.Current.AsBytes()
	for _, v := range b {
		e.transport.WriteByte(v)
	}
	e.transport.WriteByte(0x00)
}

// eepromPace is the inter-byte pacing spec §4.5/§5 mandates during
// ReadEEPROM, one of the two deliberate blocking exceptions besides
// tuning.
const eepromPace = 12 * time.Millisecond

// adminReadEEPROM streams all 256 NV offsets (0..15 real, 16..255 zero),
// yielding to the MIDI drain hook between bytes so a slow external
// collaborator cannot stall (spec §4.5, §5).
func (e *Engine) adminReadEEPROM() {
	e.log.Printf("winkey: admin read eeprom, streaming 256 bytes")
	for i := 0; i < 256; i++ {
		var v byte
		if i < 16 {
			v = e.nv.ReadByte(i)
		}
		e.transport.WriteByte(v)
		if i != 255 {
			time.Sleep(eepromPace)
			e.sink.DrainMIDI()
		}
	}
}

// adminWriteEEPROM consumes 256 bytes from the host, writing the first 16
// back to NV and discarding the rest (spec §4.5 "0D WriteEEPROM").
// Receiving blocks on the non-blocking transport the same way the
// tuning/EEPROM-dump exceptions already depart from the non-blocking
// rule; this is the one place the engine busy-waits for host input.
func (e *Engine) adminWriteEEPROM() {
	e.log.Printf("winkey: admin write eeprom, awaiting 256 bytes")
	var buf [256]byte
	for i := 0; i < 256; {
		b, ok := e.transport.ReadByte()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		buf[i] = b
		i++
	}
	for i := 0; i < 16; i++ {
		e.nv.WriteByte(i, buf[i])
	}
	e.nv.Flush()
	e.store.Reload(e.nv)
	e.log.Printf("winkey: admin write eeprom complete, settings reloaded")
}

// dispatch handles every non-Admin, non-Pointer command once its data
// bytes (if any) have been collected (spec §4.5 "Commands").
func (e *Engine) dispatch(cmd byte, d []byte, now uint32) {
	switch cmd {
	case CmdSidetone:
		e.store.Current.Sidetone = settings.ClampSidetone(d[0])
	case CmdSpeed:
		e.live.HostSpeed = d[0]
	case CmdWeight:
		e.store.Current.Weight = settings.ClampWeight(d[0])
	case CmdPTT:
		e.store.Current.LeadIn = d[0]
		e.store.Current.Tail = d[1]
	case CmdPotset:
		e.store.Current.MinWPM = d[0]
		e.store.Current.WPMRange = settings.ClampWPMRange(d[1])
		// d[2] (max) accepted and ignored, per spec's "ignored".
	case CmdPause:
		e.live.Pausing = d[0] != 0
	case CmdGetPot:
		e.transport.WriteByte(0x80 | e.live.SpeedPot)
	case CmdBackspace:
		e.ring.Backspace()
	case CmdPinConfig:
		e.store.Current.PinConfig = d[0]
	case CmdClear:
		e.ring.Clear()
	case CmdTune:
		e.keyerEng.Tune(d[0] != 0)
	case CmdFarns:
		e.store.Current.Farnsworth = settings.ClampFarnsworth(d[0])
	case CmdWK2Mode:
		e.store.Current.ModeRegister = d[0]
	case CmdLoadDef:
		var wire [settings.NumFields]byte
		copy(wire[:], d)
		e.store.Current = settings.FromBytes(wire)
		e.log.Printf("winkey: load defaults, settings replaced from host")
	case CmdExtension:
		e.store.Current.Extension = d[0]
	case CmdKeyComp:
		e.store.Current.Compensation = d[0]
	case CmdWKStat:
		e.transport.WriteByte(e.live.Status.Byte())
	case CmdRatio:
		e.store.Current.Ratio = settings.ClampRatio(d[0])
	case CmdProsign:
		e.ring.Enqueue(ring.Prosign, d[0], d[1])
	case CmdBufNop:
		e.ring.Enqueue(ring.NoOp)
	case CmdPadsw, CmdNullCmd, CmdSoftPad, CmdSetPTT, CmdKeyBuf,
		CmdWait, CmdBufSpd, CmdHSCWSpd, CmdCancelSpd:
		// Accepted and acknowledged, intentionally no-ops (spec §1
		// Non-goals).
	default:
		// Unknown command byte: skip, return to FREE (spec §7).
	}
	_ = now
}
