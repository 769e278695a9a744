package hw

// EventSink is the external keying/tone/MIDI collaborator (spec §6): four
// level-triggered edges plus two housekeeping hooks the Scheduler fires on
// its own slots (spec §4.4 expansion, §5). The core issues each edge
// exactly once per state change; InterruptRaiser in the teacher's device
// models plays the same role (RaiseIRQ called once per edge, never
// polled).
type EventSink interface {
	KeyOn()
	KeyOff()
	PTTOn()
	PTTOff()

	// SidetoneState is called on the first Scheduler slot-2 report and
	// after that only when pin_config's sidetone-enable bit changes.
	SidetoneState(enabled bool)

	// DrainMIDI is called once per eight Scheduler ticks (slot 6), and
	// again between each byte emitted during Admin ReadEEPROM, so a slow
	// external collaborator cannot stall either loop.
	DrainMIDI()
}

// GPIOSink drives cw_out/ptt_out DigitalOut lines directly, guarding
// against redundant writes the way the teacher's devices guard against
// re-raising an already-pending IRQ.
type GPIOSink struct {
	cw, ptt    DigitalOut
	cwOn, pttOn bool
}

// NewGPIOSink returns an EventSink that asserts cw and ptt outputs on the
// matching edges. A nil sidetone/MIDI downstream is fine; those hooks are
// simply no-ops.
func NewGPIOSink(cw, ptt DigitalOut) *GPIOSink {
	return &GPIOSink{cw: cw, ptt: ptt}
}

func (s *GPIOSink) KeyOn() {
	if s.cwOn {
		return
	}
	s.cwOn = true
	s.cw.Write(true)
}

func (s *GPIOSink) KeyOff() {
	if !s.cwOn {
		return
	}
	s.cwOn = false
	s.cw.Write(false)
}

func (s *GPIOSink) PTTOn() {
	if s.pttOn {
		return
	}
	s.pttOn = true
	s.ptt.Write(true)
}

func (s *GPIOSink) PTTOff() {
	if !s.pttOn {
		return
	}
	s.pttOn = false
	s.ptt.Write(false)
}

func (s *GPIOSink) SidetoneState(enabled bool) {}
func (s *GPIOSink) DrainMIDI()                 {}

// RecordingSink is an EventSink that records every edge, for tests
// asserting invariant #2 ("cw_stat=1 iff most recent key event was
// key_on").
type RecordingSink struct {
	Events        []string
	CWStat        bool
	PTTStat       bool
	SidetoneOn    bool
}

func NewRecordingSink() *RecordingSink { return &RecordingSink{} }

func (s *RecordingSink) KeyOn()  { s.Events = append(s.Events, "key_on"); s.CWStat = true }
func (s *RecordingSink) KeyOff() { s.Events = append(s.Events, "key_off"); s.CWStat = false }
func (s *RecordingSink) PTTOn()  { s.Events = append(s.Events, "ptt_on"); s.PTTStat = true }
func (s *RecordingSink) PTTOff() { s.Events = append(s.Events, "ptt_off"); s.PTTStat = false }
func (s *RecordingSink) SidetoneState(enabled bool) {
	s.SidetoneOn = enabled
	s.Events = append(s.Events, "sidetone")
}
func (s *RecordingSink) DrainMIDI() { s.Events = append(s.Events, "midi_drain") }

// NullSink discards every event; the default when no external collaborator
// is wired in.
type NullSink struct{}

func (NullSink) KeyOn()                  {}
func (NullSink) KeyOff()                 {}
func (NullSink) PTTOn()                  {}
func (NullSink) PTTOff()                 {}
func (NullSink) SidetoneState(bool)      {}
func (NullSink) DrainMIDI()              {}
