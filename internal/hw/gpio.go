package hw

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/host/v3"
)

// DigitalIn reads a single boolean contact, already polarity-corrected so
// true always means "closed"/"asserted" regardless of the underlying pin's
// electrical sense.
type DigitalIn interface {
	Read() bool
}

// DigitalOut drives a single boolean output, already polarity-corrected so
// Write(true) always means "asserted".
type DigitalOut interface {
	Write(bool)
}

// Polarity selects how a DigitalOut's logical assertion maps to the
// physical pin level. It replaces the source's conditional compilation of
// PTT/CW output polarity (spec §9 Design Notes) with a constructor option.
type Polarity int

const (
	ActiveHigh Polarity = iota
	ActiveLow
	Disabled
)

// InitHost performs whatever one-time platform setup periph.io needs before
// pins can be opened. Safe to call more than once.
func InitHost() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("hw: periph host init: %w", err)
	}
	return nil
}

// PeriphIn wraps a periph.io input pin with an active-low or active-high
// sense and an internal pull-up, matching the paddle/straight-key wiring
// assumed by spec §6 ("active-low, internal pull-up assumed").
type PeriphIn struct {
	pin       gpio.PinIn
	activeLow bool
}

// NewPeriphIn configures pin as an input with a pull-up and returns a
// DigitalIn that reads true when the contact is closed.
func NewPeriphIn(pin gpio.PinIn, activeLow bool) (*PeriphIn, error) {
	if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("hw: configure input pin %s: %w", pin, err)
	}
	return &PeriphIn{pin: pin, activeLow: activeLow}, nil
}

func (p *PeriphIn) Read() bool {
	level := p.pin.Read()
	if p.activeLow {
		return level == gpio.Low
	}
	return level == gpio.High
}

// PeriphOut wraps a periph.io output pin behind a Polarity.
type PeriphOut struct {
	pin      gpio.PinOut
	polarity Polarity
}

// NewPeriphOut configures pin as an output and returns a DigitalOut whose
// Write(true) asserts the line according to polarity.
func NewPeriphOut(pin gpio.PinOut, polarity Polarity) (*PeriphOut, error) {
	o := &PeriphOut{pin: pin, polarity: polarity}
	o.Write(false)
	return o, nil
}

func (o *PeriphOut) Write(assert bool) {
	if o.polarity == Disabled {
		return
	}
	level := assert
	if o.polarity == ActiveLow {
		level = !level
	}
	// Errors writing a GPIO line are not actionable at this layer; the
	// teacher's own device models (core_engine/devices) likewise never
	// fail a register write back to the caller.
	_ = o.pin.Out(gpio.Level(level))
}

// SimIn is an in-memory DigitalIn for tests and non-hardware runs.
type SimIn struct{ asserted bool }

func NewSimIn() *SimIn            { return &SimIn{} }
func (s *SimIn) Set(asserted bool) { s.asserted = asserted }
func (s *SimIn) Read() bool        { return s.asserted }

// SimOut is an in-memory DigitalOut recording the last-written level, for
// tests asserting on cw_out/ptt_out behavior.
type SimOut struct{ asserted bool }

func NewSimOut() *SimOut         { return &SimOut{} }
func (s *SimOut) Write(v bool)   { s.asserted = v }
func (s *SimOut) Read() bool     { return s.asserted }
