package ring_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dl1ycf/winkeyer/internal/ring"
)

func TestBufferEnqueueDequeueOrder(t *testing.T) {
	b := ring.New()
	b.Enqueue('P', 'A', 'R', 'I', 'S')

	for _, want := range []byte{'P', 'A', 'R', 'I', 'S'} {
		got, ok := b.Dequeue()
		require.True(t, ok)
		require.Equal(t, want, got)
	}

	_, ok := b.Dequeue()
	require.False(t, ok, "buffer should be empty after draining everything enqueued")
}

func TestBufferOverflowIsSilentNoOp(t *testing.T) {
	b := ring.New()
	for i := 0; i < ring.Capacity; i++ {
		b.Enqueue('A')
	}
	require.Equal(t, ring.Capacity, b.Count())

	b.Enqueue('B')
	require.Equal(t, ring.Capacity, b.Count(), "enqueue past capacity must not grow the buffer")
}

func TestBufferNearFullCallback(t *testing.T) {
	b := ring.New()
	var transitions []bool
	b.OnNearFullChange(func(nearFull bool) {
		transitions = append(transitions, nearFull)
	})

	for i := 0; i <= ring.NearFullThreshold; i++ {
		b.Enqueue('A')
	}
	require.Equal(t, []bool{true}, transitions, "callback should fire exactly once crossing the threshold upward")

	for i := 0; i <= ring.NearFullThreshold; i++ {
		b.Dequeue()
	}
	require.Equal(t, []bool{true, false}, transitions, "callback should fire again crossing back down")
}

func TestBufferBackspaceRemovesMostRecent(t *testing.T) {
	b := ring.New()
	b.Enqueue('A', 'B', 'C')
	b.Backspace()

	got, ok := b.Dequeue()
	require.True(t, ok)
	require.Equal(t, byte('A'), got)
	got, ok = b.Dequeue()
	require.True(t, ok)
	require.Equal(t, byte('B'), got)
	_, ok = b.Dequeue()
	require.False(t, ok, "C should have been removed by Backspace")
}

func TestBufferClear(t *testing.T) {
	b := ring.New()
	b.Enqueue('A', 'B', 'C')
	b.Clear()
	require.Equal(t, 0, b.Count())
	_, ok := b.Dequeue()
	require.False(t, ok)
}

func TestBufferZeroFillIncrementsCount(t *testing.T) {
	b := ring.New()
	b.SetWritePos(0)
	b.ZeroFill(4)
	require.Equal(t, 4, b.Count())

	for i := 0; i < 4; i++ {
		got, ok := b.Dequeue()
		require.True(t, ok)
		require.Equal(t, byte(0), got)
	}
}

// TestBufferFIFOProperty checks, for arbitrary enqueue sequences that never
// exceed capacity, that dequeue order always matches enqueue order, the
// ring buffer's core contract (spec §4.1).
func TestBufferFIFOProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := rapid.SliceOfN(rapid.Byte(), 0, ring.Capacity).Draw(t, "in")

		b := ring.New()
		b.Enqueue(in...)

		for _, want := range in {
			got, ok := b.Dequeue()
			if !ok {
				t.Fatalf("buffer ran dry early, still expecting %v", want)
			}
			if got != want {
				t.Fatalf("dequeue order mismatch: want %v got %v", want, got)
			}
		}
		if _, ok := b.Dequeue(); ok {
			t.Fatalf("buffer should be empty after draining every enqueued byte")
		}
	})
}
