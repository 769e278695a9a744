package keyer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dl1ycf/winkeyer/internal/keyer"
	"github.com/dl1ycf/winkeyer/internal/ring"
	"github.com/dl1ycf/winkeyer/internal/settings"
	"github.com/dl1ycf/winkeyer/internal/state"
)

// recorder is a minimal hw.EventSink recording every edge with the
// millisecond timestamp supplied by the test driver loop, in the style of
// core_engine/devices' small mock collaborators (MockInterruptRaiser).
type recorder struct {
	now    uint32
	events []string
	times  []uint32
}

func (r *recorder) record(kind string) {
	r.events = append(r.events, kind)
	r.times = append(r.times, r.now)
}

func (r *recorder) KeyOn()                  { r.record("key_on") }
func (r *recorder) KeyOff()                 { r.record("key_off") }
func (r *recorder) PTTOn()                  { r.record("ptt_on") }
func (r *recorder) PTTOff()                 { r.record("ptt_off") }
func (r *recorder) SidetoneState(bool)      {}
func (r *recorder) DrainMIDI()              {}

// keyOnOffDurations pairs up consecutive key_on/key_off events and returns
// each pair's duration, in event order.
func (r *recorder) keyOnOffDurations() []uint32 {
	var out []uint32
	for i := 0; i+1 < len(r.events); i++ {
		if r.events[i] == "key_on" && r.events[i+1] == "key_off" {
			out = append(out, r.times[i+1]-r.times[i])
		}
	}
	return out
}

// newTestEngine builds a Keyer Engine at 60 WPM (20ms dot) with PTT
// disabled, so element timing is exercised without lead-in/hang noise.
func newTestEngine(t *testing.T) (*keyer.Engine, *recorder, *state.Live) {
	t.Helper()
	cfg := settings.Defaults()
	cfg.Speed = 60
	cfg.WPMRange = 0
	cfg.PinConfig = 0 // PTT disabled, sidetone disabled
	store := &settings.Store{Current: cfg}
	rb := ring.New()
	live := state.New()
	rec := &recorder{}
	e := keyer.New(store, rb, live, rec, nil)
	return e, rec, live
}

// run steps the engine once per millisecond from *now up to (not including)
// limit, keeping the recorder's clock in sync.
func run(e *keyer.Engine, rec *recorder, now *uint32, limit uint32) {
	for *now < limit {
		rec.now = *now
		e.Step(*now)
		*now++
	}
}

func TestDotPaddleSingleTapSendsOneDot(t *testing.T) {
	e, rec, live := newTestEngine(t)
	var now uint32

	live.KDot = true
	run(e, rec, &now, 2) // press registers, element starts
	live.KDot = false     // release well before the 20ms dot completes
	run(e, rec, &now, 300)

	durations := rec.keyOnOffDurations()
	require.Len(t, durations, 1, "a quick single tap should send exactly one element")
	require.Equal(t, uint32(20), durations[0], "dot duration should match 60 WPM's 1200/60=20ms")
}

func TestDotPaddleHeldRepeatsContinuously(t *testing.T) {
	e, rec, live := newTestEngine(t)
	var now uint32

	live.KDot = true
	run(e, rec, &now, 200)

	durations := rec.keyOnOffDurations()
	require.GreaterOrEqual(t, len(durations), 3, "holding the dot paddle should send a steady run of dots")
	for _, d := range durations {
		require.Equal(t, uint32(20), d, "every repeated dot should keep the same 20ms duration")
	}
}

func TestIambicSqueezeAlternatesDotAndDash(t *testing.T) {
	e, rec, live := newTestEngine(t)
	var now uint32

	live.KDot = true
	live.KDash = true
	run(e, rec, &now, 300)

	durations := rec.keyOnOffDurations()
	require.GreaterOrEqual(t, len(durations), 4, "squeezing both paddles should send several alternating elements")
	for i, d := range durations {
		if i%2 == 0 {
			require.Equal(t, uint32(20), d, "element %d should be a dot", i)
		} else {
			require.Equal(t, uint32(60), d, "element %d should be a dash", i)
		}
	}
}

func TestUltimaticLastPressedWinsOverSqueeze(t *testing.T) {
	// Ultimatic is paddle mode 2, mode_register bits 4..5.
	cfg := settings.Defaults()
	cfg.Speed = 60
	cfg.WPMRange = 0
	cfg.PinConfig = 0
	cfg.ModeRegister = byte(state.Ultimatic) << 4
	store := &settings.Store{Current: cfg}
	rb := ring.New()
	live := state.New()
	live.LastPressedDot = true
	rec := &recorder{}
	e := keyer.New(store, rb, live, rec, nil)

	var now uint32
	live.KDot = true
	live.KDash = true
	run(e, rec, &now, 200)

	durations := rec.keyOnOffDurations()
	require.NotEmpty(t, durations)
	for _, d := range durations {
		require.Equal(t, uint32(20), d, "Ultimatic with dot last-pressed should never switch to dash while both are held")
	}
}

func TestBreakInDuringBufferedSendClearsRingAndKeysOff(t *testing.T) {
	e, rec, live := newTestEngine(t)
	var now uint32

	ringBuf := ring.New()
	cfg := settings.Defaults()
	cfg.Speed = 60
	cfg.WPMRange = 0
	cfg.PinConfig = 0
	store := &settings.Store{Current: cfg}
	e = keyer.New(store, ringBuf, live, rec, nil)
	ringBuf.Enqueue('A')

	// Run until the engine is actively sending the buffered character.
	for now = 0; now < 500; now++ {
		rec.now = now
		e.Step(now)
		if e.State() == keyer.StateSndEle || e.State() == keyer.StateSndPTT {
			break
		}
	}
	require.Contains(t, []keyer.State{keyer.StateSndEle, keyer.StateSndPTT}, e.State(), "engine should have started sending the buffered character")

	live.KDot = true
	rec.now = now
	e.Step(now)

	require.Equal(t, 0, ringBuf.Count(), "break-in must clear the ring buffer")
	require.True(t, live.Breakin, "break-in flag should be set")
	require.Equal(t, keyer.StateCheck, e.State(), "break-in returns to CHECK immediately")
}

func TestPTTAssertsBeforeKeyingAndReleasesAfterHang(t *testing.T) {
	cfg := settings.Defaults()
	cfg.Speed = 60
	cfg.WPMRange = 0
	cfg.LeadIn = 1 // x10ms => 10ms lead-in
	cfg.PinConfig = settings.PinPTTEnable
	store := &settings.Store{Current: cfg}
	rb := ring.New()
	live := state.New()
	rec := &recorder{}
	e := keyer.New(store, rb, live, rec, nil)

	var now uint32
	live.KDot = true
	run(e, rec, &now, 2)
	live.KDot = false
	run(e, rec, &now, 400)

	require.Contains(t, rec.events, "ptt_on")
	require.Contains(t, rec.events, "ptt_off")

	var pttOnAt, keyOnAt uint32
	for i, ev := range rec.events {
		if ev == "ptt_on" {
			pttOnAt = rec.times[i]
		}
		if ev == "key_on" && keyOnAt == 0 {
			keyOnAt = rec.times[i]
		}
	}
	require.Less(t, pttOnAt, keyOnAt, "PTT must assert before the element keys down")
}

func TestPausingBlocksBufferedSendButNotPaddle(t *testing.T) {
	cfg := settings.Defaults()
	cfg.Speed = 60
	cfg.WPMRange = 0
	cfg.PinConfig = 0
	store := &settings.Store{Current: cfg}
	rb := ring.New()
	live := state.New()
	rec := &recorder{}
	e := keyer.New(store, rb, live, rec, nil)

	rb.Enqueue('E') // a single dot, which would otherwise drain right away
	live.Pausing = true

	var now uint32
	for ; now < 50; now++ {
		rec.now = now
		e.Step(now)
	}
	require.Equal(t, 1, rb.Count(), "PAUSE must stop the buffer from draining")
	require.Empty(t, rec.events, "nothing should key while paused with no paddle input")

	live.KDot = true
	run(e, rec, &now, 150)

	durations := rec.keyOnOffDurations()
	require.NotEmpty(t, durations, "paddle keying must still work while PAUSE is active")
	require.Equal(t, uint32(20), durations[0])
}
