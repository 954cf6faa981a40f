package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"linguaflow/internal/affect"
	"linguaflow/internal/calibrator"
	"linguaflow/internal/srs"
)

// Tuning is the single configuration surface for every pedagogy threshold.
// The historical code scattered slightly different magic numbers across call
// sites (two SM-2 constant sets, 0.6 vs 0.7 risk thresholds); every such
// knob now lives here under one name. Loaded from YAML, falling back to the
// component defaults.
type Tuning struct {
	SRS        srs.Config        `yaml:"srs"`
	Calibrator calibrator.Config `yaml:"calibrator"`
	Affect     affect.Config     `yaml:"affect"`
	Session    SessionTuning     `yaml:"session"`
}

// SessionTuning holds the orchestrator's thresholds.
type SessionTuning struct {
	SessionMinutes     int `yaml:"session_minutes"`      // target session length
	PerActivityMinutes int `yaml:"per_activity_minutes"` // elapsed-time estimate per activity

	MaxNewChunks     int `yaml:"max_new_chunks"`
	MaxReviewChunks  int `yaml:"max_review_chunks"`
	MaxContextChunks int `yaml:"max_context_chunks"`

	ReviewEveryN         int `yaml:"review_every_n"`          // interleave a review every Nth activity
	WrongStreakForReview int `yaml:"wrong_streak_for_review"` // streak that forces review material
	WrongStreakStruggle  int `yaml:"wrong_streak_struggle"`   // streak that flags a struggle event

	FatigueActivityCount int     `yaml:"fatigue_activity_count"`
	FatigueWrongRate     float64 `yaml:"fatigue_wrong_rate"`
	CriticalWrongSignals int     `yaml:"critical_wrong_signals"`

	SlowResponseFactor  float64 `yaml:"slow_response_factor"` // multiple of running average that counts as slow
	ConfidenceSmoothing float64 `yaml:"confidence_smoothing"` // weight of the old value in the rolling average
	SignalWindow        int     `yaml:"signal_window"`        // signals fed to the filter monitor
}

// DefaultSessionTuning returns the orchestrator's canonical thresholds.
func DefaultSessionTuning() SessionTuning {
	return SessionTuning{
		SessionMinutes:     15,
		PerActivityMinutes: 3,

		MaxNewChunks:     5,
		MaxReviewChunks:  10,
		MaxContextChunks: 5,

		ReviewEveryN:         3,
		WrongStreakForReview: 2,
		WrongStreakStruggle:  3,

		FatigueActivityCount: 10,
		FatigueWrongRate:     0.5,
		CriticalWrongSignals: 5,

		SlowResponseFactor:  2.0,
		ConfidenceSmoothing: 0.9,
		SignalWindow:        10,
	}
}

// DefaultTuning assembles the canonical constant set of all four components.
func DefaultTuning() Tuning {
	return Tuning{
		SRS:        srs.DefaultConfig(),
		Calibrator: calibrator.DefaultConfig(),
		Affect:     affect.DefaultConfig(),
		Session:    DefaultSessionTuning(),
	}
}

// LoadTuning reads a YAML tuning file over the defaults. An empty path means
// defaults only. Fields omitted from the file keep their default values.
func LoadTuning(path string) (Tuning, error) {
	tuning := DefaultTuning()
	if path == "" {
		return tuning, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("failed to read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return Tuning{}, fmt.Errorf("failed to parse tuning YAML: %w", err)
	}
	if err := tuning.Validate(); err != nil {
		return Tuning{}, err
	}
	return tuning, nil
}

// Validate rejects tuning values that would corrupt the control loop.
func (t Tuning) Validate() error {
	if t.SRS.MinEase <= 0 || t.SRS.MaxEase < t.SRS.MinEase {
		return fmt.Errorf("tuning: ease bounds [%f, %f] invalid", t.SRS.MinEase, t.SRS.MaxEase)
	}
	if t.SRS.MaxIntervalDays < 1 {
		return fmt.Errorf("tuning: max interval %d must be at least one day", t.SRS.MaxIntervalDays)
	}
	if t.Calibrator.RiskEscalationThreshold < 0 || t.Calibrator.RiskEscalationThreshold > 1 {
		return fmt.Errorf("tuning: risk escalation threshold %f out of [0,1]", t.Calibrator.RiskEscalationThreshold)
	}
	for name, v := range map[string]float64{
		"break_threshold":        t.Affect.BreakThreshold,
		"simplify_threshold":     t.Affect.SimplifyThreshold,
		"challenge_threshold":    t.Affect.ChallengeThreshold,
		"historical_risk_weight": t.Affect.HistoricalRiskWeight,
		"decay_factor":           t.Affect.DecayFactor,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("tuning: affect %s %f out of [0,1]", name, v)
		}
	}
	if t.Session.SessionMinutes <= 0 || t.Session.PerActivityMinutes <= 0 {
		return fmt.Errorf("tuning: session durations must be positive")
	}
	if t.Session.SignalWindow <= 0 {
		return fmt.Errorf("tuning: signal window must be positive")
	}
	if t.Session.ConfidenceSmoothing < 0 || t.Session.ConfidenceSmoothing > 1 {
		return fmt.Errorf("tuning: confidence smoothing %f out of [0,1]", t.Session.ConfidenceSmoothing)
	}
	return nil
}
