package calibrator

import "math"

// The learner level historically appeared on two incompatible scales: a
// fine-grained 0-100 percent and the coarse 1-5 used everywhere in this
// package. The 1-5 scale is canonical; these helpers are the only sanctioned
// conversion at the storage boundary.

// LevelFromPercent converts a legacy 0-100 level to the canonical 1-5 scale.
// Out-of-range input is clamped rather than rejected: stored percents predate
// validation.
func LevelFromPercent(percent int) float64 {
	p := float64(percent)
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return MinLevel + p/100*(MaxLevel-MinLevel)
}

// LevelToPercent converts a canonical 1-5 level to the legacy 0-100 scale,
// rounded to the nearest integer.
func LevelToPercent(level float64) int {
	l := ClampLevel(level)
	return int(math.Round((l - MinLevel) / (MaxLevel - MinLevel) * 100))
}
