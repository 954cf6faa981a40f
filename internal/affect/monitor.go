// Package affect estimates the learner's affective-filter risk — the chance
// that frustration or disengagement is blocking acquisition — from recent
// behavioral signals plus profile aggregates, and selects the real-time
// adaptation to apply. Pure functions; independent of the scheduler and the
// calibrator.
package affect

import (
	"math"
	"time"

	"linguaflow/internal/models"
)

// Config holds the monitor's tunable weights and thresholds.
type Config struct {
	// Additive score components, each individually capped.
	WrongStreakWeight  float64 `yaml:"wrong_streak_weight"` // per trailing wrong signal
	WrongStreakCap     float64 `yaml:"wrong_streak_cap"`
	HelpRateWeight     float64 `yaml:"help_rate_weight"` // scales profile.HelpRequestRate
	HelpRateCap        float64 `yaml:"help_rate_cap"`
	ConfidenceWeight   float64 `yaml:"confidence_weight"` // scales (1 - averageConfidence)
	ConfidenceCap      float64 `yaml:"confidence_cap"`
	StruggleCap        float64 `yaml:"struggle_cap"` // recency contribution at zero days
	StruggleWindowDays float64 `yaml:"struggle_window_days"`

	// Per-signal additive contributions. Fast carries no weight: a quick
	// correct answer never raises the score, and never lowers it either.
	SignalWrongWeight float64 `yaml:"signal_wrong_weight"`
	SignalHelpWeight  float64 `yaml:"signal_help_weight"`
	SignalSlowWeight  float64 `yaml:"signal_slow_weight"`

	// Pattern detection.
	Window             int `yaml:"window"`               // how many recent signals to inspect
	RisingWrongStreak  int `yaml:"rising_wrong_streak"`  // trailing wrongs that mean "rising"
	RisingMixedWrong   int `yaml:"rising_mixed_wrong"`   // wrongs needed for the mixed pattern
	RisingMixedSupport int `yaml:"rising_mixed_support"` // help+slow needed for the mixed pattern

	// Adaptation thresholds.
	BreakThreshold     float64 `yaml:"break_threshold"`     // score above this → suggest a break
	SimplifyThreshold  float64 `yaml:"simplify_threshold"`  // rising filter plus score above this → simplify
	ChallengeThreshold float64 `yaml:"challenge_threshold"` // score below this may earn a challenge
	FastStreakLength   int     `yaml:"fast_streak_length"`  // trailing fast signals that earn a challenge
	SimplifyDrop       float64 `yaml:"simplify_drop"`       // level decrease applied by simplify
	ChallengeRaise     float64 `yaml:"challenge_raise"`     // level increase applied by challenge

	// Risk blending and decay across sessions.
	HistoricalRiskWeight float64 `yaml:"historical_risk_weight"` // share of the pre-session risk in the blend
	DecayFactor          float64 `yaml:"decay_factor"`           // per-day multiplier during inactivity
	DecayMaxDays         int     `yaml:"decay_max_days"`         // decay saturates here
}

// DefaultConfig returns the canonical monitor constants.
func DefaultConfig() Config {
	return Config{
		WrongStreakWeight:  0.1,
		WrongStreakCap:     0.3,
		HelpRateWeight:     0.4,
		HelpRateCap:        0.2,
		ConfidenceWeight:   0.3,
		ConfidenceCap:      0.2,
		StruggleCap:        0.2,
		StruggleWindowDays: 7,

		SignalWrongWeight: 0.05,
		SignalHelpWeight:  0.04,
		SignalSlowWeight:  0.03,

		Window:             10,
		RisingWrongStreak:  3,
		RisingMixedWrong:   2,
		RisingMixedSupport: 2,

		BreakThreshold:     0.8,
		SimplifyThreshold:  0.5,
		ChallengeThreshold: 0.3,
		FastStreakLength:   3,
		SimplifyDrop:       0.5,
		ChallengeRaise:     0.5,

		HistoricalRiskWeight: 0.8,
		DecayFactor:          0.9,
		DecayMaxDays:         10,
	}
}

// FilterScore computes the 0-1 affective-filter risk for the current moment.
// The model is additive: a trailing wrong streak, the learner's historical
// help usage, low confidence, a recent struggle event, and the session's
// struggle signals each contribute a capped amount. Fast signals contribute
// nothing; no component is ever negative.
func FilterScore(p *models.LearnerProfile, signals []models.FilterSignal, now time.Time, cfg Config) float64 {
	score := 0.0

	streak := trailingWrongStreak(signals)
	score += math.Min(cfg.WrongStreakCap, float64(streak)*cfg.WrongStreakWeight)

	score += math.Min(cfg.HelpRateCap, p.HelpRequestRate*cfg.HelpRateWeight)

	score += math.Min(cfg.ConfidenceCap, (1-p.AverageConfidence)*cfg.ConfidenceWeight)

	if p.LastStruggleDate != nil {
		days := now.Sub(*p.LastStruggleDate).Hours() / 24
		if days >= 0 && days < cfg.StruggleWindowDays {
			score += cfg.StruggleCap * (1 - days/cfg.StruggleWindowDays)
		}
	}

	for _, s := range signals {
		switch s.Type {
		case models.SignalWrong:
			score += cfg.SignalWrongWeight
		case models.SignalHelp:
			score += cfg.SignalHelpWeight
		case models.SignalSlow:
			score += cfg.SignalSlowWeight
		}
	}

	return clamp01(score)
}

// IsFilterRising reports whether the most recent signals show an escalating
// struggle pattern: a trailing run of wrong answers, wrong answers
// interleaved with help or slow responses beyond a count threshold, or a
// quit preceded by struggle. Only the last cfg.Window signals are examined.
// Unspecified combinations deliberately fail toward leniency.
func IsFilterRising(signals []models.FilterSignal, cfg Config) bool {
	recent := lastN(signals, cfg.Window)
	if len(recent) == 0 {
		return false
	}

	if trailingWrongStreak(recent) >= cfg.RisingWrongStreak {
		return true
	}

	wrong, support := 0, 0
	for _, s := range recent {
		switch s.Type {
		case models.SignalWrong:
			wrong++
		case models.SignalHelp, models.SignalSlow:
			support++
		}
	}
	if wrong >= cfg.RisingMixedWrong && support >= cfg.RisingMixedSupport {
		return true
	}

	// A quit after any struggle signal is a rising filter by definition.
	struggledBefore := false
	for _, s := range recent {
		switch s.Type {
		case models.SignalWrong, models.SignalHelp, models.SignalSlow:
			struggledBefore = true
		case models.SignalQuit:
			if struggledBefore {
				return true
			}
		}
	}

	return false
}

// Adaptation selects the action for the current score and signal window, in
// strict priority order: break out before simplifying, simplify before
// encouraging, and only challenge a learner who is demonstrably cruising.
func Adaptation(score float64, signals []models.FilterSignal, currentLevel float64, cfg Config) models.AdaptationAction {
	recent := lastN(signals, cfg.Window)

	if score > cfg.BreakThreshold {
		return models.AdaptationAction{
			Type:     models.AdaptSuggestBreak,
			Severity: models.SeverityCritical,
			Message:  "This is a lot of new material. A short break will help it stick.",
		}
	}

	if IsFilterRising(signals, cfg) && score > cfg.SimplifyThreshold {
		return models.AdaptationAction{
			Type:        models.AdaptSimplify,
			Severity:    models.SeverityWarning,
			Message:     "Let's step back to something more comfortable.",
			DropToLevel: clampLevel(currentLevel - cfg.SimplifyDrop),
		}
	}

	wrong, help, slow := 0, 0, 0
	for _, s := range recent {
		switch s.Type {
		case models.SignalWrong:
			wrong++
		case models.SignalHelp:
			help++
		case models.SignalSlow:
			slow++
		}
	}
	if wrong >= 1 && (help >= 1 || slow >= 1) {
		return models.AdaptationAction{
			Type:     models.AdaptEncourage,
			Severity: models.SeverityInfo,
			Message:  "You're working through the hard part. Keep going!",
		}
	}

	if score < cfg.ChallengeThreshold && trailingFastStreak(recent) >= cfg.FastStreakLength {
		return models.AdaptationAction{
			Type:            models.AdaptChallenge,
			Severity:        models.SeveritySuccess,
			Message:         "You're flying through these. Ready for something harder?",
			IncreaseToLevel: clampLevel(currentLevel + cfg.ChallengeRaise),
		}
	}

	return models.AdaptationAction{Type: models.AdaptNone, Severity: models.SeverityInfo}
}

// UpdatedFilterRisk blends the session's observed risk into the learner's
// historical risk. History dominates so one noisy session cannot overwhelm
// the trend.
func UpdatedFilterRisk(currentRisk, sessionRisk float64, cfg Config) float64 {
	blended := currentRisk*cfg.HistoricalRiskWeight + sessionRisk*(1-cfg.HistoricalRiskWeight)
	return clamp01(blended)
}

// DecayFilterRisk shrinks a stored risk score toward zero with inactivity.
// Decay saturates at DecayMaxDays so a long absence cannot erase the trend
// entirely.
func DecayFilterRisk(risk float64, daysSinceLastSession int, cfg Config) float64 {
	if daysSinceLastSession <= 0 {
		return clamp01(risk)
	}
	days := daysSinceLastSession
	if days > cfg.DecayMaxDays {
		days = cfg.DecayMaxDays
	}
	return clamp01(risk * math.Pow(cfg.DecayFactor, float64(days)))
}

// trailingWrongStreak counts consecutive wrong signals from the end. Help
// and slow signals are companions of the same struggle and do not break the
// streak; a fast signal does.
func trailingWrongStreak(signals []models.FilterSignal) int {
	streak := 0
	for i := len(signals) - 1; i >= 0; i-- {
		switch signals[i].Type {
		case models.SignalWrong:
			streak++
		case models.SignalHelp, models.SignalSlow, models.SignalQuit:
			continue
		default:
			return streak
		}
	}
	return streak
}

func trailingFastStreak(signals []models.FilterSignal) int {
	streak := 0
	for i := len(signals) - 1; i >= 0; i-- {
		if signals[i].Type != models.SignalFast {
			break
		}
		streak++
	}
	return streak
}

func lastN(signals []models.FilterSignal, n int) []models.FilterSignal {
	if n <= 0 || len(signals) <= n {
		return signals
	}
	return signals[len(signals)-n:]
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

func clampLevel(v float64) float64 {
	return math.Min(math.Max(v, 1), 5)
}
