// Package srs implements the spaced-repetition scheduler (an SM-2 variant)
// used by the pedagogy control loop. All functions are pure: given the same
// item state, outcome and clock they always produce the same result.
package srs

import (
	"fmt"
	"math"
	"time"

	"linguaflow/internal/models"
)

// Config holds the scheduler's tunable constants.
type Config struct {
	MinEase         float64 `yaml:"min_ease"`          // floor for the ease factor
	MaxEase         float64 `yaml:"max_ease"`          // ceiling for the ease factor
	MaxIntervalDays int     `yaml:"max_interval_days"` // hard cap on any computed interval
	GraduationReps  int     `yaml:"graduation_reps"`   // clean successes required to graduate to ACQUIRED
	GraduationEase  float64 `yaml:"graduation_ease"`   // minimum ease factor required to graduate
}

// DefaultConfig returns the canonical constant set.
//
// The product historically ran two SM-2 variants with different ceilings
// (2.5 in the data layer, 3.0 with an explicit interval cap in the
// algorithm layer). This is the single canonical set; see DESIGN.md.
func DefaultConfig() Config {
	return Config{
		MinEase:         1.3,
		MaxEase:         3.0,
		MaxIntervalDays: 180,
		GraduationReps:  3,
		GraduationEase:  2.0,
	}
}

// ItemState is the scheduling slice of one acquisition record.
type ItemState struct {
	Status      models.AcquisitionStatus
	EaseFactor  float64
	Interval    int // days
	Repetitions int // consecutive clean successes
}

// Outcome is one encounter result.
type Outcome struct {
	Correct  bool
	UsedHelp bool
}

// Result is the next scheduling state for an item.
type Result struct {
	Status         models.AcquisitionStatus
	EaseFactor     float64
	Interval       int
	Repetitions    int
	NextReviewDate time.Time
	Graduated      bool // newly reached ACQUIRED
	BecameFragile  bool // demoted ACQUIRED → FRAGILE
}

// NewItemState returns the state assigned to a chunk on first encounter.
func NewItemState() ItemState {
	return ItemState{
		Status:      models.StatusNew,
		EaseFactor:  2.5,
		Interval:    1,
		Repetitions: 0,
	}
}

// NextReview computes the next acquisition state for one item given one
// encounter outcome. Malformed item state is a programming error and fails
// fast rather than producing a silently corrupted schedule.
func NextReview(item ItemState, out Outcome, now time.Time, cfg Config) (Result, error) {
	if err := validate(item); err != nil {
		return Result{}, err
	}

	var res Result
	switch {
	case !out.Correct:
		res = applyIncorrect(item, cfg)
	case out.UsedHelp:
		res = applyCorrectWithHelp(item, cfg)
	default:
		res = applyCorrectClean(item, cfg)
	}

	res.NextReviewDate = now.AddDate(0, 0, res.Interval)
	return res, nil
}

// applyIncorrect handles a miss: the ease factor drops, the interval resets
// to one day, and an ACQUIRED item regresses to FRAGILE. NEW, LEARNING and
// FRAGILE never regress further on a single miss.
func applyIncorrect(item ItemState, cfg Config) Result {
	status := item.Status
	becameFragile := false
	if status == models.StatusAcquired {
		status = models.StatusFragile
		becameFragile = true
	}
	return Result{
		Status:        status,
		EaseFactor:    math.Max(cfg.MinEase, item.EaseFactor-0.3),
		Interval:      1,
		Repetitions:   0,
		BecameFragile: becameFragile,
	}
}

// applyCorrectWithHelp handles a correct answer that needed help: a small
// ease penalty, a modest interval bump, and at most a NEW → LEARNING
// promotion. A helped answer never graduates an item to ACQUIRED and does
// not count toward the clean-success streak.
func applyCorrectWithHelp(item ItemState, cfg Config) Result {
	status := item.Status
	if status == models.StatusNew {
		status = models.StatusLearning
	}
	interval := int(math.Round(float64(item.Interval) * 1.2))
	if interval < 1 {
		interval = 1
	}
	if interval > cfg.MaxIntervalDays {
		interval = cfg.MaxIntervalDays
	}
	return Result{
		Status:      status,
		EaseFactor:  math.Max(cfg.MinEase, item.EaseFactor-0.1),
		Interval:    interval,
		Repetitions: item.Repetitions,
	}
}

// applyCorrectClean handles an unaided correct answer: the streak and ease
// factor grow, the interval follows the 1 / 3 / interval×ease schedule, and
// the item graduates once it has enough clean successes at a high enough
// ease. FRAGILE recovers directly to ACQUIRED in a single step.
func applyCorrectClean(item ItemState, cfg Config) Result {
	reps := item.Repetitions + 1
	ease := math.Min(cfg.MaxEase, item.EaseFactor+0.1)

	var interval int
	switch {
	case reps == 1:
		interval = 1
	case reps == 2:
		interval = 3
	default:
		interval = int(math.Round(float64(item.Interval) * ease))
	}
	if interval > cfg.MaxIntervalDays {
		interval = cfg.MaxIntervalDays
	}

	status := item.Status
	graduated := false
	switch {
	case item.Status == models.StatusFragile:
		// Single-step recovery.
		status = models.StatusAcquired
		graduated = true
	case reps >= cfg.GraduationReps && ease >= cfg.GraduationEase:
		if item.Status != models.StatusAcquired {
			graduated = true
		}
		status = models.StatusAcquired
	case item.Status == models.StatusNew:
		status = models.StatusLearning
	}

	return Result{
		Status:      status,
		EaseFactor:  ease,
		Interval:    interval,
		Repetitions: reps,
		Graduated:   graduated,
	}
}

func validate(item ItemState) error {
	if !item.Status.Valid() {
		return fmt.Errorf("srs: invalid acquisition status %q", item.Status)
	}
	if item.EaseFactor < 0 {
		return fmt.Errorf("srs: negative ease factor %f", item.EaseFactor)
	}
	if item.Interval < 0 {
		return fmt.Errorf("srs: negative interval %d", item.Interval)
	}
	if item.Repetitions < 0 {
		return fmt.Errorf("srs: negative repetitions %d", item.Repetitions)
	}
	return nil
}
