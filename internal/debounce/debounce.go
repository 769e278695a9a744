// Package debounce stabilizes raw contact and analog-pot reads (spec §4.3).
package debounce

import "github.com/dl1ycf/winkeyer/internal/hw"

// holdOffMillis is the debounce hold-off: a raw transition is accepted only
// once this many milliseconds have elapsed since the last accepted change.
const holdOffMillis = 10

// Digital debounces a single hw.DigitalIn, recording the last accepted
// reading and the earliest time a new one may be accepted.
type Digital struct {
	in         hw.DigitalIn
	value      bool
	acceptAt   uint32
	everPolled bool
}

// NewDigital wraps in with a 10ms debounce hold-off.
func NewDigital(in hw.DigitalIn) *Digital {
	return &Digital{in: in}
}

// Poll samples the raw pin at monotonic time now and returns the debounced
// value. closedEdge reports whether this poll produced an open->closed
// transition (used by callers to latch memory/last_pressed, spec §4.3).
func (d *Digital) Poll(now uint32) (value bool, closedEdge bool) {
	raw := d.in.Read()
	if !d.everPolled {
		d.everPolled = true
		d.value = raw
		d.acceptAt = now + holdOffMillis
		return d.value, d.value
	}
	if now >= d.acceptAt && raw != d.value {
		wasOpen := !d.value
		d.value = raw
		d.acceptAt = now + holdOffMillis
		if wasOpen && raw {
			return d.value, true
		}
	}
	return d.value, false
}

// analogPollPeriod is the minimum interval between analog samples (spec
// §4.3: "sampled no more often than every 20 ms").
const analogPollPeriod = 20

// analogMax is the filtered-output ceiling: input range 0..1023 scaled by
// 16 (spec §4.3).
const analogMax = 1023 * 16

// Analog low-pass filters an hw.AnalogIn with the first-order IIR specified
// in spec §4.3: v <- (15*v + sample)/16, output scaled to 0..16368.
type Analog struct {
	in       hw.AnalogIn
	value    uint32
	lastPoll uint32
	polled   bool
}

// NewAnalog wraps in with the spec's IIR low-pass filter.
func NewAnalog(in hw.AnalogIn) *Analog {
	return &Analog{in: in}
}

// Poll samples at most once per 20ms and returns the current filtered
// value (0..16368).
func (a *Analog) Poll(now uint32) uint16 {
	if a.polled && now-a.lastPoll < analogPollPeriod {
		return uint16(a.value)
	}
	a.lastPoll = now
	sample := uint32(a.in.Read()) * 16
	if !a.polled {
		a.polled = true
		a.value = sample
		return uint16(a.value)
	}
	a.value = (15*a.value + sample) / 16
	if a.value > analogMax {
		a.value = analogMax
	}
	return uint16(a.value)
}
