// Package ring implements the 128-byte character ring buffer shared by the
// Keyer Engine and the WinKey Protocol Engine (spec §3, §4.1).
package ring

// Capacity is the fixed ring buffer size.
const Capacity = 128

// NearFullThreshold raises the near-full status bit once count exceeds it.
const NearFullThreshold = 85

// Prosign is the sentinel byte: the next two bytes are concatenated with no
// inter-character gap.
const Prosign = 0x1B

// NoOp is consumed but produces no keyed element.
const NoOp = 0x1F

// Buffer is the fixed-capacity FIFO described in spec §4.1. It is also
// addressable as a planar 128-byte arena by write pointer for the WinKey
// "Pointer" command family (SetWritePos/ZeroFill), matching the source's
// treatment of the same memory for both roles.
type Buffer struct {
	data        [Capacity]byte
	head, tail  int
	count       int
	wasNearFull bool
	// onNearFullChange, if non-nil, is invoked whenever crossing
	// NearFullThreshold in either direction (spec §4.1: "update wk_status
	// bit 0").
	onNearFullChange func(nearFull bool)
}

// New returns an empty Buffer.
func New() *Buffer {
	return &Buffer{}
}

// OnNearFullChange installs the near-full status callback.
func (b *Buffer) OnNearFullChange(fn func(nearFull bool)) {
	b.onNearFullChange = fn
}

func (b *Buffer) checkNearFull() {
	nearFull := b.count > NearFullThreshold
	if nearFull != b.wasNearFull {
		b.wasNearFull = nearFull
		if b.onNearFullChange != nil {
			b.onNearFullChange(nearFull)
		}
	}
}

// Count returns the number of bytes currently queued.
func (b *Buffer) Count() int { return b.count }

// Enqueue appends all given bytes atomically; it is a silent no-op if
// doing so would overflow the buffer (spec §4.1, §7).
func (b *Buffer) Enqueue(bytes ...byte) {
	if b.count+len(bytes) > Capacity {
		return
	}
	for _, v := range bytes {
		b.data[b.tail] = v
		b.tail = (b.tail + 1) % Capacity
		b.count++
	}
	b.checkNearFull()
}

// Backspace removes the most recently enqueued byte, if any.
func (b *Buffer) Backspace() {
	if b.count == 0 {
		return
	}
	b.tail = (b.tail - 1 + Capacity) % Capacity
	b.count--
	b.checkNearFull()
}

// Clear empties the buffer immediately (used on break-in, Admin Clear, etc).
func (b *Buffer) Clear() {
	b.head, b.tail, b.count = 0, 0, 0
	b.checkNearFull()
}

// Dequeue removes and returns the oldest byte. ok is false if the buffer is
// empty.
func (b *Buffer) Dequeue() (v byte, ok bool) {
	if b.count == 0 {
		return 0, false
	}
	v = b.data[b.head]
	b.head = (b.head + 1) % Capacity
	b.count--
	b.checkNearFull()
	return v, true
}

// SetWritePos implements the WinKey Pointer "absolute set" sub-commands:
// the buffer is treated as a planar 128-byte arena indexed by the write
// pointer, which may be moved ahead of the read pointer without affecting
// count (spec §4.1).
func (b *Buffer) SetWritePos(absolute byte) {
	b.tail = int(absolute) % Capacity
}

// ZeroFill implements the Pointer "zero-fill n" sub-command: writes n zero
// bytes starting at the current write pointer, advancing it, and
// incrementing count for each byte written (spec §4.1: "count is
// incremented only when zero_fill runs").
func (b *Buffer) ZeroFill(n int) {
	for i := 0; i < n; i++ {
		b.data[b.tail] = 0
		b.tail = (b.tail + 1) % Capacity
		if b.count < Capacity {
			b.count++
		}
	}
	b.checkNearFull()
}
