// Package calibrator computes learner competence and i+1 target difficulty
// on the canonical 1-5 level scale. All functions are pure; they read only
// the aggregates passed in.
package calibrator

import (
	"fmt"
	"math"

	"linguaflow/internal/models"
)

const (
	// MinLevel and MaxLevel bound the canonical difficulty scale.
	MinLevel = 1.0
	MaxLevel = 5.0
)

// Config holds the calibrator's tunable constants. One canonical set is used
// everywhere; the historical per-call-site variants were consolidated (see
// DESIGN.md).
type Config struct {
	ConfidenceWeight float64 `yaml:"confidence_weight"` // scales (averageConfidence - 0.5) into the level
	RiskWeight       float64 `yaml:"risk_weight"`       // scales filterRiskScore out of the level

	// RiskEscalationThreshold suppresses i+1 escalation: while the learner's
	// filter risk exceeds it, the target level equals the current level.
	RiskEscalationThreshold float64 `yaml:"risk_escalation_threshold"`

	DropBackRiskThreshold       float64 `yaml:"drop_back_risk_threshold"`
	DropBackConfidenceThreshold float64 `yaml:"drop_back_confidence_threshold"`
	DropBackWrongCount          int     `yaml:"drop_back_wrong_count"` // wrong answers within the window that force a drop
	DropBackWindow              int     `yaml:"drop_back_window"`      // how many recent activities to inspect
}

// DefaultConfig returns the canonical calibration constants.
func DefaultConfig() Config {
	return Config{
		ConfidenceWeight:            0.3,
		RiskWeight:                  0.2,
		RiskEscalationThreshold:     0.7,
		DropBackRiskThreshold:       0.7,
		DropBackConfidenceThreshold: 0.4,
		DropBackWrongCount:          3,
		DropBackWindow:              5,
	}
}

// levelStep maps a chunks-acquired floor to a base competence level.
type levelStep struct {
	chunks int
	level  float64
}

// acquisitionLadder is the monotonic step function from vocabulary size to
// base level. Thresholds follow the rough "chunks to comfort" bands the
// product tuned against.
var acquisitionLadder = []levelStep{
	{0, 1.0},
	{50, 1.5},
	{150, 2.0},
	{300, 2.5},
	{500, 3.0},
	{800, 3.5},
	{1200, 4.0},
	{1700, 4.5},
	{2300, 5.0},
}

// CurrentLevel estimates the learner's present competence: a base level from
// acquired-chunk count, nudged up by above-average confidence and down by
// affective-filter risk, clamped to [1, 5].
func CurrentLevel(p *models.LearnerProfile, cfg Config) float64 {
	base := MinLevel
	for _, step := range acquisitionLadder {
		if p.ChunksAcquired >= step.chunks {
			base = step.level
		}
	}

	adjusted := base +
		(p.AverageConfidence-0.5)*cfg.ConfidenceWeight -
		p.FilterRiskScore*cfg.RiskWeight

	return ClampLevel(adjusted)
}

// TargetLevel is the i+1 target: one step above current competence, clamped
// to the scale ceiling — unless the learner's filter risk is elevated, in
// which case no escalation happens and the target equals the current level.
func TargetLevel(p *models.LearnerProfile, cfg Config) float64 {
	current := CurrentLevel(p, cfg)
	if p.FilterRiskScore > cfg.RiskEscalationThreshold {
		return current
	}
	return ClampLevel(current + 1)
}

// Performance summarizes one activity batch for difficulty adjustment.
type Performance struct {
	Correct       int
	Total         int
	HelpUsedCount int
}

// AdaptDifficulty nudges the target level after a set of activities. Rules
// are evaluated in order, first match wins; the result is clamped to [1, 5].
func AdaptDifficulty(currentTarget float64, perf Performance) (float64, error) {
	if perf.Total <= 0 {
		return 0, fmt.Errorf("calibrator: non-positive activity total %d", perf.Total)
	}
	if perf.Correct < 0 || perf.Correct > perf.Total {
		return 0, fmt.Errorf("calibrator: correct count %d out of range [0, %d]", perf.Correct, perf.Total)
	}
	if perf.HelpUsedCount < 0 {
		return 0, fmt.Errorf("calibrator: negative help count %d", perf.HelpUsedCount)
	}

	accuracy := float64(perf.Correct) / float64(perf.Total)
	helpRate := float64(perf.HelpUsedCount) / float64(perf.Total)

	var delta float64
	switch {
	case accuracy >= 0.9 && helpRate < 0.1:
		delta = 0.2
	case accuracy < 0.6 || helpRate > 0.3:
		delta = -0.3
	case accuracy >= 0.8 && helpRate <= 0.3:
		delta = 0.1
	case accuracy < 0.7:
		delta = -0.15
	}

	return ClampLevel(currentTarget + delta), nil
}

// ShouldDropBack reports whether the learner should be pulled back below the
// i+1 target entirely: a cluster of recent wrong answers, elevated filter
// risk, or collapsed confidence.
func ShouldDropBack(p *models.LearnerProfile, recent []models.ActivityResult, cfg Config) bool {
	if p.FilterRiskScore > cfg.DropBackRiskThreshold {
		return true
	}
	if p.AverageConfidence < cfg.DropBackConfidenceThreshold {
		return true
	}

	window := recent
	if len(window) > cfg.DropBackWindow {
		window = window[len(window)-cfg.DropBackWindow:]
	}
	wrong := 0
	for _, a := range window {
		if !a.Correct {
			wrong++
		}
	}
	return wrong >= cfg.DropBackWrongCount
}

// ClampLevel bounds a level to the canonical [1, 5] scale.
func ClampLevel(level float64) float64 {
	return math.Min(math.Max(level, MinLevel), MaxLevel)
}
