package morse_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dl1ycf/winkeyer/internal/morse"
)

func TestLookupKnownLetters(t *testing.T) {
	cases := []struct {
		ch      byte
		pattern byte
	}{
		// E is a single dot: sentinel 1, shift in bit 0 -> 0b10 = 2.
		{'E', 0b10},
		// T is a single dash: shift in bit 1 -> 0b11 = 3.
		{'T', 0b11},
	}
	for _, c := range cases {
		got, ok := morse.Lookup(c.ch)
		require.True(t, ok)
		require.Equal(t, c.pattern, got, "pattern for %q", c.ch)
	}
}

func TestLookupOutOfRange(t *testing.T) {
	_, ok := morse.Lookup(0)
	require.False(t, ok)
	_, ok = morse.Lookup(200)
	require.False(t, ok)
}

func TestReverseLookupRoundTrip(t *testing.T) {
	for ch := byte('A'); ch <= 'Z'; ch++ {
		pattern, ok := morse.Lookup(ch)
		require.True(t, ok)
		require.NotEqual(t, morse.NoCode, pattern, "letter %q should have a code", ch)

		back, ok := morse.ReverseLookup(pattern)
		require.True(t, ok)
		require.Equal(t, ch, back, "round trip through ReverseLookup for %q", ch)
	}
}

func TestReverseLookupRejectsNoCode(t *testing.T) {
	_, ok := morse.ReverseLookup(morse.NoCode)
	require.False(t, ok, "the sentinel NoCode pattern has no matching character")
}
