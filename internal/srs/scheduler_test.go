package srs

import (
	"math"
	"testing"
	"time"

	"linguaflow/internal/models"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestNextReview_IncorrectDemotesAcquired(t *testing.T) {
	cfg := DefaultConfig()
	item := ItemState{Status: models.StatusAcquired, EaseFactor: 2.5, Interval: 30, Repetitions: 5}

	res, err := NextReview(item, Outcome{Correct: false}, testNow, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != models.StatusFragile {
		t.Errorf("expected FRAGILE, got %s", res.Status)
	}
	if !res.BecameFragile {
		t.Error("expected BecameFragile flag")
	}
	if res.Interval != 1 {
		t.Errorf("expected interval reset to 1, got %d", res.Interval)
	}
	if res.Repetitions != 0 {
		t.Errorf("expected repetitions reset to 0, got %d", res.Repetitions)
	}
	if math.Abs(res.EaseFactor-2.2) > 1e-9 {
		t.Errorf("expected ease 2.2, got %f", res.EaseFactor)
	}
}

func TestNextReview_MissedFragileStaysFragile(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name   string
		status models.AcquisitionStatus
	}{
		{"fragile floor", models.StatusFragile},
		{"new unchanged", models.StatusNew},
		{"learning unchanged", models.StatusLearning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := ItemState{Status: tt.status, EaseFactor: 2.0, Interval: 3, Repetitions: 1}
			res, err := NextReview(item, Outcome{Correct: false}, testNow, cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Status != tt.status {
				t.Errorf("expected status %s unchanged, got %s", tt.status, res.Status)
			}
		})
	}
}

func TestNextReview_FragileRecoversInOneStep(t *testing.T) {
	cfg := DefaultConfig()
	item := ItemState{Status: models.StatusFragile, EaseFactor: 2.2, Interval: 1, Repetitions: 0}

	res, err := NextReview(item, Outcome{Correct: true}, testNow, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != models.StatusAcquired {
		t.Errorf("expected ACQUIRED after single recovery, got %s", res.Status)
	}
	if !res.Graduated {
		t.Error("expected Graduated flag on recovery")
	}

	// Idempotent under repeated correct answers: stays ACQUIRED.
	again, err := NextReview(ItemState{
		Status:      res.Status,
		EaseFactor:  res.EaseFactor,
		Interval:    res.Interval,
		Repetitions: res.Repetitions,
	}, Outcome{Correct: true}, testNow, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Status != models.StatusAcquired {
		t.Errorf("expected ACQUIRED to persist, got %s", again.Status)
	}
}

func TestNextReview_NewCannotSkipToAcquired(t *testing.T) {
	cfg := DefaultConfig()
	outcomes := []Outcome{
		{Correct: true},
		{Correct: true, UsedHelp: true},
		{Correct: false},
	}
	for _, out := range outcomes {
		item := ItemState{Status: models.StatusNew, EaseFactor: 2.5, Interval: 1, Repetitions: 0}
		res, err := NextReview(item, out, testNow, cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Status == models.StatusAcquired {
			t.Errorf("NEW item graduated in one encounter (outcome %+v)", out)
		}
	}
}

func TestNextReview_HelpedAnswerNeverGraduates(t *testing.T) {
	cfg := DefaultConfig()
	item := ItemState{Status: models.StatusLearning, EaseFactor: 2.9, Interval: 10, Repetitions: 5}

	res, err := NextReview(item, Outcome{Correct: true, UsedHelp: true}, testNow, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != models.StatusLearning {
		t.Errorf("expected LEARNING, got %s", res.Status)
	}
	if res.Interval != 12 { // round(10 * 1.2)
		t.Errorf("expected interval 12, got %d", res.Interval)
	}
	if math.Abs(res.EaseFactor-2.8) > 1e-9 {
		t.Errorf("expected ease 2.8, got %f", res.EaseFactor)
	}
}

// Three clean successes starting from a fresh item must walk the canonical
// 1 / 3 / round(3*ease) interval ladder and graduate.
func TestNextReview_GraduationLadder(t *testing.T) {
	cfg := DefaultConfig()
	item := NewItemState()

	wantIntervals := []int{1, 3, 8}
	for i, want := range wantIntervals {
		res, err := NextReview(item, Outcome{Correct: true}, testNow, cfg)
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i+1, err)
		}
		if res.Interval != want {
			t.Errorf("step %d: expected interval %d, got %d", i+1, want, res.Interval)
		}
		item = ItemState{
			Status:      res.Status,
			EaseFactor:  res.EaseFactor,
			Interval:    res.Interval,
			Repetitions: res.Repetitions,
		}
	}

	if item.Status != models.StatusAcquired {
		t.Errorf("expected ACQUIRED after ladder, got %s", item.Status)
	}
	if math.Abs(item.EaseFactor-2.8) > 1e-9 {
		t.Errorf("expected ease 2.8 after ladder, got %f", item.EaseFactor)
	}
}

// The ease factor must stay inside [MinEase, MaxEase] for any number of
// consecutive calls in either direction.
func TestNextReview_EaseFactorBounds(t *testing.T) {
	cfg := DefaultConfig()

	item := NewItemState()
	for i := 0; i < 50; i++ {
		res, err := NextReview(item, Outcome{Correct: false}, testNow, cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.EaseFactor < cfg.MinEase {
			t.Fatalf("ease %f fell below floor %f after %d misses", res.EaseFactor, cfg.MinEase, i+1)
		}
		item.EaseFactor = res.EaseFactor
		item.Status = res.Status
		item.Interval = res.Interval
		item.Repetitions = res.Repetitions
	}
	if math.Abs(item.EaseFactor-cfg.MinEase) > 1e-9 {
		t.Errorf("expected ease pinned at floor %f, got %f", cfg.MinEase, item.EaseFactor)
	}

	item = NewItemState()
	for i := 0; i < 50; i++ {
		res, err := NextReview(item, Outcome{Correct: true}, testNow, cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.EaseFactor > cfg.MaxEase {
			t.Fatalf("ease %f exceeded ceiling %f after %d successes", res.EaseFactor, cfg.MaxEase, i+1)
		}
		if res.Interval > cfg.MaxIntervalDays {
			t.Fatalf("interval %d exceeded cap %d", res.Interval, cfg.MaxIntervalDays)
		}
		item.EaseFactor = res.EaseFactor
		item.Status = res.Status
		item.Interval = res.Interval
		item.Repetitions = res.Repetitions
	}
}

func TestNextReview_NextReviewDate(t *testing.T) {
	cfg := DefaultConfig()
	item := ItemState{Status: models.StatusLearning, EaseFactor: 2.6, Interval: 3, Repetitions: 1}

	res, err := NextReview(item, Outcome{Correct: true}, testNow, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := testNow.AddDate(0, 0, res.Interval)
	if !res.NextReviewDate.Equal(want) {
		t.Errorf("expected due %v, got %v", want, res.NextReviewDate)
	}
}

func TestNextReview_ValidationFailsFast(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name string
		item ItemState
	}{
		{"bad status", ItemState{Status: "mystery", EaseFactor: 2.5, Interval: 1}},
		{"negative ease", ItemState{Status: models.StatusNew, EaseFactor: -1, Interval: 1}},
		{"negative interval", ItemState{Status: models.StatusNew, EaseFactor: 2.5, Interval: -1}},
		{"negative reps", ItemState{Status: models.StatusNew, EaseFactor: 2.5, Interval: 1, Repetitions: -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NextReview(tt.item, Outcome{Correct: true}, testNow, cfg); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestTopicHealth(t *testing.T) {
	tests := []struct {
		name     string
		statuses []models.AcquisitionStatus
		want     int
	}{
		{"empty is neutral", nil, 50},
		{"acquired and fragile", []models.AcquisitionStatus{models.StatusAcquired, models.StatusFragile}, 65},
		{"three statuses rounded", []models.AcquisitionStatus{models.StatusAcquired, models.StatusLearning, models.StatusFragile}, 67},
		{"all new", []models.AcquisitionStatus{models.StatusNew, models.StatusNew}, 50},
		{"all acquired", []models.AcquisitionStatus{models.StatusAcquired}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TopicHealth(tt.statuses); got != tt.want {
				t.Errorf("TopicHealth() = %d, want %d", got, tt.want)
			}
		})
	}
}
