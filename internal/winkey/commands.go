package winkey

import "github.com/dl1ycf/winkeyer/internal/settings"

// Top-level command bytes (spec §4.5). The command byte doubles as the
// dispatch state number for the single-byte-entry commands, the same way
// the source's 16550 register offsets double as both address and meaning
// (core_engine/devices/serial.go).
const (
	CmdAdmin      = 0x00
	CmdSidetone   = 0x01
	CmdSpeed      = 0x02
	CmdWeight     = 0x03
	CmdPTT        = 0x04
	CmdPotset     = 0x05
	CmdPause      = 0x06
	CmdGetPot     = 0x07
	CmdBackspace  = 0x08
	CmdPinConfig  = 0x09
	CmdClear      = 0x0A
	CmdTune       = 0x0B
	CmdFarns      = 0x0D
	CmdWK2Mode    = 0x0E
	CmdLoadDef    = 0x0F
	CmdExtension  = 0x10
	CmdKeyComp    = 0x11
	CmdPadsw      = 0x12
	CmdNullCmd    = 0x13
	CmdSoftPad    = 0x14
	CmdWKStat     = 0x15
	CmdPointer    = 0x16
	CmdRatio      = 0x17
	CmdSetPTT     = 0x18
	CmdKeyBuf     = 0x19
	CmdWait       = 0x1A
	CmdProsign    = 0x1B
	CmdBufSpd     = 0x1C
	CmdHSCWSpd    = 0x1D
	CmdCancelSpd  = 0x1E
	CmdBufNop     = 0x1F
)

// dataLen gives the number of data bytes each command consumes after its
// command byte, for the generic byte-counting collector. Commands not
// listed here either take no data (handled as an immediate dispatch) or
// are handled by a dedicated sub-state (Admin, Pointer). Byte counts for
// the explicitly no-op commands (§1 Non-goals: "accepted and
// acknowledged but intentionally no-ops") follow the widely documented
// K1EL WinKey v2.3 datasheet framing, since spec.md only names the
// commands without their wire shape.
var dataLen = map[byte]int{
	CmdSidetone:  1,
	CmdSpeed:     1,
	CmdWeight:    1,
	CmdPTT:       2,
	CmdPotset:    3,
	CmdPause:     1,
	CmdPinConfig: 1,
	CmdTune:      1,
	CmdFarns:     1,
	CmdWK2Mode:   1,
	CmdLoadDef:   settings.NumFields,
	CmdExtension: 1,
	CmdKeyComp:   1,
	CmdRatio:     1,
	CmdProsign:   2,
	CmdSoftPad:   1,
	CmdSetPTT:    1,
	CmdKeyBuf:    1,
	CmdWait:      1,
	CmdBufSpd:    1,
	CmdHSCWSpd:   1,
	CmdPadsw:     0,
	CmdNullCmd:   0,
	CmdCancelSpd: 0,
}

// Admin sub-commands (spec §4.5).
const (
	AdminCalibrate    = 0x00
	AdminReset        = 0x01
	AdminOpen         = 0x02
	AdminClose        = 0x03
	AdminEcho         = 0x04
	AdminMsgEnable    = 0x05
	AdminMsgDisable   = 0x06
	AdminDumpDefault  = 0x07
	AdminUnusedA      = 0x08
	AdminUnusedB      = 0x09
	AdminWK1Mode      = 0x0A
	AdminWK2Mode      = 0x0B
	AdminReadEEPROM   = 0x0C
	AdminWriteEEPROM  = 0x0D
	AdminMessage      = 0x0E
)

// WKVersion is the byte Admin-Open replies with (spec §6).
const WKVersion = 23

// Pointer sub-commands (spec §4.5 "16 POINTER").
const (
	PointerClear   = 0x00
	PointerSetLo   = 0x01
	PointerSetHi   = 0x02
	PointerZeroFill = 0x03
)
