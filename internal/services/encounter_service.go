package services

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"linguaflow/internal/config"
	"linguaflow/internal/models"
	"linguaflow/internal/srs"
)

// Encounter is one chunk outcome reported by a completed activity.
type Encounter struct {
	ChunkID  primitive.ObjectID
	Correct  bool
	FirstTry bool
	UsedHelp bool
}

// acquisitionStore is the slice of ChunkService the recorder needs.
type acquisitionStore interface {
	GetOrCreateAcquisitionRecord(ctx context.Context, learnerID string, chunkID primitive.ObjectID) (*models.UserChunk, error)
	ApplyReview(ctx context.Context, recordID string, res srs.Result, correct, firstTry, usedHelp bool, confidence float64, now time.Time) error
}

// profileCounters is the slice of ProfileService the recorder needs.
type profileCounters interface {
	ApplyStatusTransition(ctx context.Context, learnerID string, from, to models.AcquisitionStatus) error
}

// EncounterService applies SRS scheduling to batches of chunk encounters.
// The batch is partial-failure tolerant: one broken record never blocks the
// rest of the learner's progress from being saved.
type EncounterService struct {
	records  acquisitionStore
	profiles profileCounters
	tuning   *config.TuningStore
}

// NewEncounterService creates a new encounter service
func NewEncounterService(records acquisitionStore, profiles profileCounters, tuning *config.TuningStore) *EncounterService {
	return &EncounterService{
		records:  records,
		profiles: profiles,
		tuning:   tuning,
	}
}

// RecordBatch schedules every encounter in the batch and reports per-item
// outcomes. Items that fail to load or save are counted and logged, not
// propagated; the caller decides what to do with the counts.
func (s *EncounterService) RecordBatch(ctx context.Context, learnerID string, encounters []Encounter, now time.Time) models.EncounterBatchResult {
	result := models.EncounterBatchResult{}
	cfg := s.tuning.Current().SRS

	for _, enc := range encounters {
		outcome, err := s.recordOne(ctx, learnerID, enc, now, cfg)
		if err != nil {
			result.Failed++
			result.FailedIDs = append(result.FailedIDs, enc.ChunkID.Hex())
			log.Printf("⚠️  [ENCOUNTER] Failed to record chunk %s for learner %s: %v", enc.ChunkID.Hex(), learnerID, err)
			continue
		}
		result.Updated++
		if outcome.Graduated {
			result.Graduated++
		}
		if outcome.BecameFragile {
			result.BecameFragile++
		}
	}

	if result.Failed > 0 {
		log.Printf("⚠️  [ENCOUNTER] Batch for learner %s: %d updated, %d failed", learnerID, result.Updated, result.Failed)
	}
	return result
}

func (s *EncounterService) recordOne(ctx context.Context, learnerID string, enc Encounter, now time.Time, cfg srs.Config) (srs.Result, error) {
	record, err := s.records.GetOrCreateAcquisitionRecord(ctx, learnerID, enc.ChunkID)
	if err != nil {
		return srs.Result{}, err
	}

	// ApplyReview may write through the same record the store handed back,
	// so snapshot the status before it runs.
	prevStatus := record.Status

	item := srs.ItemState{
		Status:      record.Status,
		EaseFactor:  record.EaseFactor,
		Interval:    record.Interval,
		Repetitions: record.Repetitions,
	}
	res, err := srs.NextReview(item, srs.Outcome{Correct: enc.Correct, UsedHelp: enc.UsedHelp}, now, cfg)
	if err != nil {
		return srs.Result{}, err
	}

	confidence := record.ConfidenceScore*0.7 + observedConfidence(enc)*0.3
	if err := s.records.ApplyReview(ctx, record.RecordID, res, enc.Correct, enc.FirstTry, enc.UsedHelp, confidence, now); err != nil {
		return srs.Result{}, err
	}

	if prevStatus != res.Status {
		if err := s.profiles.ApplyStatusTransition(ctx, learnerID, prevStatus, res.Status); err != nil {
			// The record itself saved; a stale counter is self-healing on the
			// next transition, so log and keep going.
			log.Printf("⚠️  [ENCOUNTER] Counter update failed for learner %s: %v", learnerID, err)
		}
		if res.Graduated {
			log.Printf("✅ [ENCOUNTER] Learner %s graduated chunk %s", learnerID, enc.ChunkID.Hex())
		}
	}
	return res, nil
}

// observedConfidence maps a single encounter to a confidence sample.
func observedConfidence(enc Encounter) float64 {
	switch {
	case enc.Correct && enc.FirstTry && !enc.UsedHelp:
		return 1.0
	case enc.Correct && !enc.UsedHelp:
		return 0.7
	case enc.Correct:
		return 0.5
	default:
		return 0.2
	}
}
