package hw

import "sync"

// MIDI channel-message status bytes, from the MIDI 1.0 spec
// (grounded on other_examples/winlinvip-audio's eventMap: 0x9 = NoteOn,
// 0x8 = NoteOff).
const (
	midiNoteOff uint8 = 0x8
	midiNoteOn  uint8 = 0x9
)

// MIDIEvent is a single outgoing channel-voice message, shaped after the
// winlinvip/audio Event type (TimeDelta/MsgType/MsgChan/Note/Velocity)
// but trimmed to the fields a key-down/key-up edge actually needs.
type MIDIEvent struct {
	MsgType  uint8
	Channel  uint8
	Note     uint8
	Velocity uint8
}

// MIDIWriter accepts framed MIDI events; a real implementation would hand
// these to a synthesizer or a MIDI transport, which is out of scope here.
type MIDIWriter interface {
	WriteMIDI(MIDIEvent)
}

// MIDISink turns key/PTT edges into synthetic MIDI note events on a fixed
// channel/note pair, queued for DrainMIDI to flush. PTT and sidetone edges
// are not given MIDI shape; they pass straight to the underlying
// DigitalOut-driven sink.
type MIDISink struct {
	EventSink
	w       MIDIWriter
	channel uint8
	note    uint8

	mu     sync.Mutex
	queued []MIDIEvent
}

// NewMIDISink wraps base (a GPIOSink or similar) so cw_out/ptt_out keying
// still happens, while additionally emitting MIDI note on/off for an
// external synthesizer on channel/note.
func NewMIDISink(base EventSink, w MIDIWriter, channel, note uint8) *MIDISink {
	return &MIDISink{EventSink: base, w: w, channel: channel, note: note}
}

func (s *MIDISink) KeyOn() {
	s.EventSink.KeyOn()
	s.enqueue(MIDIEvent{MsgType: midiNoteOn, Channel: s.channel, Note: s.note, Velocity: 127})
}

func (s *MIDISink) KeyOff() {
	s.EventSink.KeyOff()
	s.enqueue(MIDIEvent{MsgType: midiNoteOff, Channel: s.channel, Note: s.note})
}

func (s *MIDISink) enqueue(e MIDIEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued = append(s.queued, e)
}

// DrainMIDI flushes any queued note events to the writer. Called in
// Scheduler slot 6 (once per eight ticks) and between bytes of an EEPROM
// dump (spec §5).
func (s *MIDISink) DrainMIDI() {
	s.mu.Lock()
	pending := s.queued
	s.queued = nil
	s.mu.Unlock()

	for _, e := range pending {
		s.w.WriteMIDI(e)
	}
}
