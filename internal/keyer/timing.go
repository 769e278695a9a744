package keyer

import "github.com/dl1ycf/winkeyer/internal/settings"

// timing holds the derived, per-tick-recomputed element and spacing
// durations (spec §4.4 "Derived timing"). All values are milliseconds.
type timing struct {
	dot       int
	dash      int
	elePause  int
	charPause int
	wordPause int
	hang      int
}

// hangTable maps the 2-bit pin_config hang-bits selector to a dot-unit
// hang time (spec §4.4 Hang: "{8*dot, 9*dot, 11*dot, 15*dot}").
var hangTable = [4]int{8, 9, 11, 15}

// effectiveWPM resolves the active speed: host_speed overrides everything;
// otherwise the pot (min_wpm + speed_pot) overrides the standalone speed
// whenever a pot span is configured (spec §3 "speed: ... overridden by pot
// if enabled").
func effectiveWPM(s settings.Settings, hostSpeed, speedPot byte) int {
	if hostSpeed != 0 {
		return int(hostSpeed)
	}
	if s.WPMRange != 0 {
		return int(s.MinWPM) + int(speedPot)
	}
	if s.Speed == 0 {
		return 1
	}
	return int(s.Speed)
}

// computeTiming derives dot/dash/pause/hang values from settings and the
// resolved wpm, applying Farnsworth, weighting, and compensation in the
// order spec §4.4 describes.
func computeTiming(s settings.Settings, wpm int) timing {
	if wpm <= 0 {
		wpm = 1
	}
	dot := 1200 / wpm
	ratio := int(s.Ratio)
	if ratio == 0 {
		ratio = 50
	}
	dash := (3 * ratio * dot) / 50
	elePause := dot
	charPause := 2 * dot
	wordPause := 4 * dot

	farnsworth := int(s.Farnsworth)
	if farnsworth > 10 && farnsworth < wpm {
		u := 3158/farnsworth - 31*dot/19
		charPause = 3*u - dot
		wordPause = 7*u - charPause
	}

	if w := int(s.Weight); w != 50 {
		delta := (w - 50) * dot / 50
		dot += delta
		dash += delta
		elePause -= delta
	}

	if comp := int(s.Compensation); comp != 0 {
		dot += comp
		dash += comp
		elePause -= comp
	}

	var hang int
	if s.Tail != 0 && s.PTTEnabled() {
		hang = 10 * int(s.Tail)
	} else {
		hang = hangTable[s.HangBits()] * dot
	}

	if dot < 1 {
		dot = 1
	}
	if dash < 1 {
		dash = 1
	}
	if elePause < 0 {
		elePause = 0
	}

	return timing{
		dot:       dot,
		dash:      dash,
		elePause:  elePause,
		charPause: charPause,
		wordPause: wordPause,
		hang:      hang,
	}
}
