package hw

import (
	"fmt"

	goserial "github.com/daedaluz/goserial"
)

// Transport is the byte-level serial channel the WinKey Protocol Engine
// reads host commands from and writes status/echo bytes to (spec §4.5,
// §6: "1200 baud 8N1"). ReadByte is non-blocking, matching the
// non-blocking Scheduler tick (spec §5).
type Transport interface {
	ReadByte() (b byte, ok bool)
	WriteByte(b byte) error
}

// TransportKind selects between a real termios-backed serial port and an
// in-memory loopback, replacing the source's {hw_serial | sw_serial}
// conditional compilation (spec §9 Design Notes) with a constructor option.
type TransportKind int

const (
	HWSerial TransportKind = iota
	SWSerial
)

// HWTransport is a Transport backed by a real serial port via
// github.com/daedaluz/goserial, configured 1200 baud 8N1 raw.
type HWTransport struct {
	port *goserial.Port
}

// OpenHWTransport opens device at 1200 baud 8N1 with no flow control,
// matching spec §4.5's transport requirement exactly.
func OpenHWTransport(device string) (*HWTransport, error) {
	port, err := goserial.Open(device, goserial.NewOptions().SetReadTimeout(0))
	if err != nil {
		return nil, fmt.Errorf("hw: open serial port %s: %w", device, err)
	}

	attrs := &goserial.Termios{}
	attrs.Cflag &= ^(goserial.CBAUD)
	attrs.Cflag |= goserial.B1200
	attrs.Cflag &^= goserial.CSTOPB // one stop bit
	attrs.Cflag &^= goserial.PARENB // no parity
	attrs.Cflag &^= goserial.CSIZE
	attrs.Cflag |= goserial.CS8 // 8 data bits
	attrs.Cflag |= goserial.CREAD | goserial.CLOCAL
	attrs.Cc[goserial.VMIN] = 0
	attrs.Cc[goserial.VTIME] = 0

	if err := port.SetAttr(goserial.TCSANOW, attrs); err != nil {
		port.Close()
		return nil, fmt.Errorf("hw: configure serial port %s: %w", device, err)
	}

	return &HWTransport{port: port}, nil
}

func (t *HWTransport) ReadByte() (byte, bool) {
	var buf [1]byte
	n, err := t.port.Read(buf[:])
	if err != nil || n != 1 {
		return 0, false
	}
	return buf[0], true
}

func (t *HWTransport) WriteByte(b byte) error {
	_, err := t.port.Write([]byte{b})
	return err
}

// Close releases the underlying port.
func (t *HWTransport) Close() error { return t.port.Close() }

// SWTransport is an in-memory Transport for tests and bench operation
// without real hardware: host bytes are pushed with Feed, device bytes are
// collected into Written.
type SWTransport struct {
	pending []byte
	Written []byte
}

func NewSWTransport() *SWTransport { return &SWTransport{} }

// Feed appends bytes as if the host had sent them.
func (t *SWTransport) Feed(b ...byte) { t.pending = append(t.pending, b...) }

func (t *SWTransport) ReadByte() (byte, bool) {
	if len(t.pending) == 0 {
		return 0, false
	}
	b := t.pending[0]
	t.pending = t.pending[1:]
	return b, true
}

func (t *SWTransport) WriteByte(b byte) error {
	t.Written = append(t.Written, b)
	return nil
}
