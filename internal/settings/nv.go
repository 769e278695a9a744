package settings

import "github.com/dl1ycf/winkeyer/internal/hw"

// NV layout offsets (spec §3): offset 0 and offset 14+1=15 hold the two
// magic bytes framing the 14 field bytes at offsets 1..14. Modeled as an
// indexed register file the way the teacher's RTCDevice treats its CMOS
// registers array (core_engine/devices/rtc.go), rather than ad hoc byte
// arithmetic scattered through the engine.
const (
	nvMagicOffset    = 0
	nvFieldsOffset   = 1
	nvEndMagicOffset = 15
	nvMagicByte      = 0xA5
	nvEndMagicByte   = 0x00
)

// Store owns the live Settings plus NV persistence against an hw.NVStore.
type Store struct {
	Current Settings
}

// IsProgrammed reports whether nv already carries a valid magic-framed
// settings record, letting a caller distinguish "loaded existing settings"
// from "Load just initialized first-run defaults" (spec §4.2, §7).
func IsProgrammed(nv hw.NVStore) bool {
	return nv.ReadByte(nvMagicOffset) == nvMagicByte && nv.ReadByte(nvEndMagicOffset) == nvEndMagicByte
}

// Load reads offsets 0 and 15; if the magic bytes match, loads all 14
// fields and additionally clamps Speed to [5,40]. Otherwise it writes the
// compile-time defaults plus both magic bytes (spec §4.2, §7: corrupt or
// unprogrammed NV is treated as first-run, never an error).
func Load(nv hw.NVStore) *Store {
	s := &Store{}
	if nv.ReadByte(nvMagicOffset) == nvMagicByte && nv.ReadByte(nvEndMagicOffset) == nvEndMagicByte {
		var b [NVFields]byte
		for i := range b {
			b[i] = nv.ReadByte(nvFieldsOffset + i)
		}
		s.Current = fromNVBytes(b)
		s.Current.Speed = ClampSpeed(s.Current.Speed)
		return s
	}
	s.Current = Defaults()
	s.Save(nv)
	return s
}

// Save persists Current to NV, writing both magic bytes.
func (s *Store) Save(nv hw.NVStore) error {
	nv.WriteByte(nvMagicOffset, nvMagicByte)
	b := s.Current.toNVBytes()
	for i, v := range b {
		nv.WriteByte(nvFieldsOffset+i, v)
	}
	nv.WriteByte(nvEndMagicOffset, nvEndMagicByte)
	return nv.Flush()
}

// Reload restores Current from NV, discarding any live changes (spec §4.2:
// used on Admin Reset and Admin Close to restore "standalone" values). If
// NV is unprogrammed, it falls back to compile-time defaults exactly like
// Load.
func (s *Store) Reload(nv hw.NVStore) {
	*s = *Load(nv)
}

// toNVBytes / fromNVBytes convert between Settings and the 14-byte NV
// field order (spec §3 table order), distinct from the 15-byte
// LOADDEF/DumpDefault wire frame in settings.go.
func (s Settings) toNVBytes() [NVFields]byte {
	return [NVFields]byte{
		s.ModeRegister, s.Speed, s.Sidetone, s.Weight, s.LeadIn,
		s.Tail, s.MinWPM, s.WPMRange, s.Extension, s.Compensation,
		s.Farnsworth, s.PaddlePoint, s.Ratio, s.PinConfig,
	}
}

// fromNVBytes stores fields as given; range clamps belong at command
// ingestion (spec §7), not at this NV-load boundary, so Load/Save/Reload
// stays idempotent (spec §8 invariant 6). Speed is the sole exception,
// clamped by the caller after this returns (spec §4.2).
func fromNVBytes(b [NVFields]byte) Settings {
	return Settings{
		ModeRegister: b[0],
		Speed:        b[1],
		Sidetone:     b[2],
		Weight:       b[3],
		LeadIn:       b[4],
		Tail:         b[5],
		MinWPM:       b[6],
		WPMRange:     b[7],
		Extension:    b[8],
		Compensation: b[9],
		Farnsworth:   b[10],
		PaddlePoint:  b[11],
		Ratio:        b[12],
		PinConfig:    b[13],
	}
}
