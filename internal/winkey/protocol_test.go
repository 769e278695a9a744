package winkey_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dl1ycf/winkeyer/internal/hw"
	"github.com/dl1ycf/winkeyer/internal/keyer"
	"github.com/dl1ycf/winkeyer/internal/ring"
	"github.com/dl1ycf/winkeyer/internal/settings"
	"github.com/dl1ycf/winkeyer/internal/state"
	"github.com/dl1ycf/winkeyer/internal/winkey"
)

// harness bundles one Protocol Engine over the fakes the hw package already
// exports for this purpose (SWTransport, MemNVStore, RecordingSink),
// mirroring ne2000_test.go's small mock collaborators.
type harness struct {
	store     *settings.Store
	nv        *hw.MemNVStore
	ring      *ring.Buffer
	live      *state.Live
	keyerEng  *keyer.Engine
	transport *hw.SWTransport
	sink      *hw.RecordingSink
	proto     *winkey.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	nv := hw.NewMemNVStore()
	store := settings.Load(nv)
	rb := ring.New()
	live := state.New()
	sink := hw.NewRecordingSink()
	keyerEng := keyer.New(store, rb, live, sink, nil)
	transport := hw.NewSWTransport()
	proto := winkey.New(store, nv, rb, live, keyerEng, transport, sink, nil)
	return &harness{
		store: store, nv: nv, ring: rb, live: live,
		keyerEng: keyerEng, transport: transport, sink: sink, proto: proto,
	}
}

// feedAndStep writes bytes into the transport and processes exactly one of
// them per Step call, matching the real engine's one-byte-per-tick
// dispatch (spec §4.5, §5 "slot 4: one protocol step").
func (h *harness) feedAndStep(bytes ...byte) {
	h.transport.Feed(bytes...)
	for range bytes {
		h.proto.Step(0)
	}
}

func TestAdminOpenEntersHostModeAndRepliesVersion(t *testing.T) {
	h := newHarness(t)
	require.False(t, h.live.HostMode)

	h.feedAndStep(winkey.CmdAdmin, winkey.AdminOpen)

	require.True(t, h.live.HostMode)
	require.Contains(t, h.transport.Written, byte(winkey.WKVersion))
}

func TestAdminCloseLeavesHostModeAndReloadsSettings(t *testing.T) {
	h := newHarness(t)
	h.feedAndStep(winkey.CmdAdmin, winkey.AdminOpen)
	require.True(t, h.live.HostMode)

	h.store.Current.Speed = 33 // a live change Close should discard

	h.feedAndStep(winkey.CmdAdmin, winkey.AdminClose)

	require.False(t, h.live.HostMode)
	require.Equal(t, settings.Defaults().Speed, h.store.Current.Speed)
}

func TestAdminDumpDefaultWritesFifteenBytesPlusZero(t *testing.T) {
	h := newHarness(t)

	h.feedAndStep(winkey.CmdAdmin, winkey.AdminDumpDefault)

	want := h.store.Current.AsBytes()
	got := h.transport.Written
	require.Len(t, got, len(want)+1)
	require.Equal(t, want[:], got[:len(want)])
	require.Equal(t, byte(0x00), got[len(want)])
}

func TestLoadDefReplacesCurrentSettings(t *testing.T) {
	h := newHarness(t)
	h.feedAndStep(winkey.CmdAdmin, winkey.AdminOpen)

	cfg := settings.Defaults()
	cfg.Speed = 28
	cfg.Ratio = 60
	wire := cfg.AsBytes()

	h.feedAndStep(append([]byte{winkey.CmdLoadDef}, wire[:]...)...)

	require.Equal(t, byte(28), h.store.Current.Speed)
	require.Equal(t, byte(60), h.store.Current.Ratio)
}

func TestGetPotRepliesWithHighBitSet(t *testing.T) {
	h := newHarness(t)
	h.feedAndStep(winkey.CmdAdmin, winkey.AdminOpen)
	h.live.SpeedPot = 12

	h.feedAndStep(winkey.CmdGetPot)

	require.Contains(t, h.transport.Written, byte(0x80|12))
}

func TestBusyBitTracksKeyerState(t *testing.T) {
	h := newHarness(t)
	h.feedAndStep(winkey.CmdAdmin, winkey.AdminOpen)

	h.proto.Step(0)
	require.False(t, h.live.Status.Busy(), "keyer idle in CHECK should report not busy")

	h.live.KDot = true
	h.keyerEng.Step(0)
	h.proto.Step(1)
	require.True(t, h.live.Status.Busy(), "keyer mid-element should report busy")
}

func TestUnknownCommandByteReturnsToFree(t *testing.T) {
	h := newHarness(t)
	h.feedAndStep(winkey.CmdAdmin, winkey.AdminOpen)

	// 0x0C is below 0x20 but unused by dataLen/Admin/Pointer: it should be
	// skipped and leave the engine able to process the very next command
	// normally (spec §7 "unknown command bytes are skipped").
	h.feedAndStep(0x0C, winkey.CmdWeight, 30)
	require.True(t, h.live.HostMode)
	require.Equal(t, byte(30), h.store.Current.Weight)
}

func TestAdminReadEEPROMStreamsAllOffsetsWithMIDIDrainYield(t *testing.T) {
	if testing.Short() {
		t.Skip("EEPROM pacing test takes ~3s (12ms x 255 inter-byte delays)")
	}
	h := newHarness(t)
	h.store.Current.Speed = 30
	require.NoError(t, h.store.Save(h.nv))

	h.feedAndStep(winkey.CmdAdmin, winkey.AdminReadEEPROM)

	require.Len(t, h.transport.Written, 256)
	for i := 0; i < 16; i++ {
		require.Equal(t, h.nv.ReadByte(i), h.transport.Written[i], "offset %d", i)
	}
	for i := 16; i < 256; i++ {
		require.Equal(t, byte(0), h.transport.Written[i], "offset %d beyond NV should read zero", i)
	}

	drains := 0
	for _, ev := range h.sink.Events {
		if ev == "midi_drain" {
			drains++
		}
	}
	require.Equal(t, 255, drains, "should yield to MIDI drain between every pair of the 256 bytes")
}

func TestAdminWriteEEPROMPersistsFirstSixteenBytes(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Save(h.nv)) // establish valid magic framing

	payload := make([]byte, 256)
	for i := 0; i < 16; i++ {
		payload[i] = h.nv.ReadByte(i)
	}
	payload[2] = 30 // NV offset 0 is magic, 1 is ModeRegister, 2 is Speed

	h.transport.Feed(winkey.CmdAdmin, winkey.AdminWriteEEPROM)
	h.transport.Feed(payload...)

	// Admin byte, sub-command byte, then the 256-byte payload consumed by
	// the blocking receive loop inside adminWriteEEPROM itself.
	h.proto.Step(0)
	h.proto.Step(0)

	require.Equal(t, byte(30), h.store.Current.Speed)
}
