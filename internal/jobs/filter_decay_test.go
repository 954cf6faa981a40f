package jobs

import (
	"context"
	"testing"
	"time"

	"linguaflow/internal/affect"
	"linguaflow/internal/config"
	"linguaflow/internal/models"
)

func TestDaysSince(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		last *time.Time
		want int
	}{
		{"nil counts as one day away", nil, 1},
		{"same day", timePtr(now.Add(-6 * time.Hour)), 0},
		{"three days", timePtr(now.AddDate(0, 0, -3)), 3},
		{"future timestamp clamps to zero", timePtr(now.Add(24 * time.Hour)), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := daysSince(tt.last, now); got != tt.want {
				t.Errorf("daysSince() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDecayableDays(t *testing.T) {
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		lastAt    *time.Time
		decayedAt *time.Time
		want      int
	}{
		{"never decayed", timePtr(now.AddDate(0, 0, -3)), nil, 3},
		{"partially decayed", timePtr(now.AddDate(0, 0, -3)), timePtr(now.AddDate(0, 0, -2)), 2},
		{"one day remaining", timePtr(now.AddDate(0, 0, -3)), timePtr(now.AddDate(0, 0, -1)), 1},
		{"up to date", timePtr(now.AddDate(0, 0, -3)), timePtr(now), 0},
		{"saturates at cap", timePtr(now.AddDate(0, 0, -30)), nil, 10},
		{"cap already reached", timePtr(now.AddDate(0, 0, -30)), timePtr(now.AddDate(0, 0, -15)), 0},
		{"session after last decay restarts", timePtr(now.AddDate(0, 0, -2)), timePtr(now.AddDate(0, 0, -5)), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := &models.LearnerProfile{
				LastSessionAt: tt.lastAt,
				RiskDecayedAt: tt.decayedAt,
			}
			if got := decayableDays(profile, now, 10); got != tt.want {
				t.Errorf("decayableDays() = %d, want %d", got, tt.want)
			}
		})
	}
}

// Three nightly runs over a three-day absence must leave the same stored
// risk as one application of three days of decay.
func TestNightlyDecayDoesNotCompound(t *testing.T) {
	cfg := affect.DefaultConfig()
	lastSession := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	profile := &models.LearnerProfile{
		FilterRiskScore: 0.8,
		LastSessionAt:   &lastSession,
	}

	for night := 1; night <= 3; night++ {
		runAt := lastSession.AddDate(0, 0, night).Add(9 * time.Hour)
		days := decayableDays(profile, runAt, cfg.DecayMaxDays)
		if days != 1 {
			t.Fatalf("night %d: decayableDays = %d, want 1", night, days)
		}
		profile.FilterRiskScore = affect.DecayFilterRisk(profile.FilterRiskScore, days, cfg)
		profile.RiskDecayedAt = timePtr(runAt)
	}

	want := affect.DecayFilterRisk(0.8, 3, cfg)
	if diff := profile.FilterRiskScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("risk after three nightly runs = %f, want %f", profile.FilterRiskScore, want)
	}
}

func TestFilterDecayJobSkipsWithoutDatabase(t *testing.T) {
	job := NewFilterDecayJob(nil, config.NewTuningStore(config.DefaultTuning()))

	if job.Name() != "filter-risk-decay" {
		t.Errorf("Name() = %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Errorf("Run() without a database should be a no-op, got %v", err)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
