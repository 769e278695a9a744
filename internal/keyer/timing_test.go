package keyer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dl1ycf/winkeyer/internal/settings"
)

func TestComputeTimingDashIsThreeDotsAtDefaultRatio(t *testing.T) {
	cfg := settings.Defaults()
	cfg.Ratio = 50
	tm := computeTiming(cfg, 20)
	require.Equal(t, 60, tm.dot)
	require.Equal(t, 3*tm.dot, tm.dash)
	require.Equal(t, tm.dot, tm.elePause)
	require.Equal(t, 2*tm.dot, tm.charPause)
	require.Equal(t, 4*tm.dot, tm.wordPause)
}

func TestEffectiveWPMPrefersHostSpeed(t *testing.T) {
	cfg := settings.Defaults()
	cfg.Speed = 20
	cfg.WPMRange = 0
	require.Equal(t, 35, effectiveWPM(cfg, 35, 0))
}

func TestEffectiveWPMUsesPotWhenRangeConfigured(t *testing.T) {
	cfg := settings.Defaults()
	cfg.MinWPM = 10
	cfg.WPMRange = 20
	require.Equal(t, 18, effectiveWPM(cfg, 0, 8))
}

func TestEffectiveWPMFallsBackToStandaloneSpeed(t *testing.T) {
	cfg := settings.Defaults()
	cfg.Speed = 25
	cfg.WPMRange = 0
	require.Equal(t, 25, effectiveWPM(cfg, 0, 0))
}

// TestComputeTimingDotPositive checks that, across the entire legal WPM
// range, computeTiming never produces a non-positive dot or dash. The
// Keyer Engine sets element deadlines from these, and a zero or negative
// value would stall or invert element timing (spec §4.4 "Derived timing").
func TestComputeTimingDotPositive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		wpm := rapid.IntRange(1, 60).Draw(t, "wpm")
		weight := rapid.IntRange(10, 90).Draw(t, "weight")
		ratio := rapid.IntRange(33, 66).Draw(t, "ratio")

		cfg := settings.Defaults()
		cfg.Weight = byte(weight)
		cfg.Ratio = byte(ratio)

		tm := computeTiming(cfg, wpm)
		if tm.dot < 1 {
			t.Fatalf("dot duration must be positive, got %d for wpm=%d weight=%d", tm.dot, wpm, weight)
		}
		if tm.dash < 1 {
			t.Fatalf("dash duration must be positive, got %d for wpm=%d ratio=%d", tm.dash, wpm, ratio)
		}
	})
}
