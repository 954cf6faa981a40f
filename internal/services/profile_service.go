package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"linguaflow/internal/calibrator"
	"linguaflow/internal/database"
	"linguaflow/internal/models"
)

// ProfileService handles learner profile operations with MongoDB
type ProfileService struct {
	db         *database.MongoDB
	collection *mongo.Collection
}

// NewProfileService creates a new profile service
func NewProfileService(db *database.MongoDB) *ProfileService {
	return &ProfileService{
		db:         db,
		collection: db.Collection(database.CollectionLearnerProfiles),
	}
}

// GetProfile retrieves a learner profile by learner ID
func (s *ProfileService) GetProfile(ctx context.Context, learnerID string) (*models.LearnerProfile, error) {
	var profile models.LearnerProfile
	err := s.collection.FindOne(ctx, bson.M{"learnerId": learnerID}).Decode(&profile)
	if err == mongo.ErrNoDocuments {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

// GetOrCreate retrieves a learner profile, creating it with neutral defaults
// on first contact. Uses upsert so concurrent first sessions converge on one
// document.
func (s *ProfileService) GetOrCreate(ctx context.Context, learnerID string) (*models.LearnerProfile, error) {
	if learnerID == "" {
		return nil, fmt.Errorf("learner ID is required")
	}

	now := time.Now()
	filter := bson.M{"learnerId": learnerID}
	update := bson.M{
		"$set": bson.M{"updatedAt": now},
		"$setOnInsert": bson.M{
			"learnerId":             learnerID,
			"targetLanguage":        "es",
			"nativeLanguage":        "en",
			"currentLevel":          calibrator.MinLevel,
			"levelPercent":          calibrator.LevelToPercent(calibrator.MinLevel),
			"chunksAcquired":        0,
			"chunksLearning":        0,
			"chunksFragile":         0,
			"averageConfidence":     0.5,
			"helpRequestRate":       0.0,
			"wrongAnswerRate":       0.0,
			"filterRiskScore":       0.0,
			"interestTopics":        []string{},
			"preferredActivityType": "",
			"createdAt":             now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var profile models.LearnerProfile
	if err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to get or create profile: %w", err)
	}

	if profile.CreatedAt.After(now.Add(-2 * time.Second)) {
		log.Printf("✅ [PROFILE] Created new learner profile %s", learnerID)
	}
	return &profile, nil
}

// UpdateConfidence folds one observed confidence sample into the rolling
// average (new = old*smoothing + observed*(1-smoothing)) and returns the
// updated value.
func (s *ProfileService) UpdateConfidence(ctx context.Context, learnerID string, observed, smoothing float64) (float64, error) {
	profile, err := s.GetProfile(ctx, learnerID)
	if err != nil {
		return 0, err
	}

	updated := profile.AverageConfidence*smoothing + observed*(1-smoothing)
	if updated < 0 {
		updated = 0
	} else if updated > 1 {
		updated = 1
	}

	err = s.updateFields(ctx, learnerID, bson.M{"averageConfidence": updated})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// RecordStruggle marks the profile with a struggle timestamp. The affective
// filter weighs struggles by recency, so only the latest one is kept.
func (s *ProfileService) RecordStruggle(ctx context.Context, learnerID string, at time.Time) error {
	return s.updateFields(ctx, learnerID, bson.M{"lastStruggleDate": at})
}

// UpdateFilterRisk persists a recomputed filter risk score.
func (s *ProfileService) UpdateFilterRisk(ctx context.Context, learnerID string, risk float64) error {
	if risk < 0 {
		risk = 0
	} else if risk > 1 {
		risk = 1
	}
	return s.updateFields(ctx, learnerID, bson.M{"filterRiskScore": risk})
}

// SyncLevel persists a recalibrated proficiency level, keeping the legacy
// percent representation in step.
func (s *ProfileService) SyncLevel(ctx context.Context, learnerID string, level float64) error {
	level = calibrator.ClampLevel(level)
	return s.updateFields(ctx, learnerID, bson.M{
		"currentLevel": level,
		"levelPercent": calibrator.LevelToPercent(level),
	})
}

// UpdateSessionRates persists the per-session help and wrong-answer rates and
// stamps the session time.
func (s *ProfileService) UpdateSessionRates(ctx context.Context, learnerID string, helpRate, wrongRate float64, at time.Time) error {
	return s.updateFields(ctx, learnerID, bson.M{
		"helpRequestRate": clampRate(helpRate),
		"wrongAnswerRate": clampRate(wrongRate),
		"lastSessionAt":   at,
	})
}

// SetInterestTopics replaces the detected interest topics.
func (s *ProfileService) SetInterestTopics(ctx context.Context, learnerID string, topics []string) error {
	if topics == nil {
		topics = []string{}
	}
	return s.updateFields(ctx, learnerID, bson.M{"interestTopics": topics})
}

// ApplyStatusTransition adjusts the per-status chunk counters when an
// acquisition record moves between states (e.g. LEARNING -> ACQUIRED on
// graduation). Counters never go below zero.
func (s *ProfileService) ApplyStatusTransition(ctx context.Context, learnerID string, from, to models.AcquisitionStatus) error {
	if from == to {
		return nil
	}

	inc := bson.M{}
	if field, ok := statusCounterField(from); ok {
		inc[field] = -1
	}
	if field, ok := statusCounterField(to); ok {
		inc[field] = 1
	}
	if len(inc) == 0 {
		return nil
	}

	result, err := s.collection.UpdateOne(ctx,
		bson.M{"learnerId": learnerID},
		bson.M{"$inc": inc, "$set": bson.M{"updatedAt": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update chunk counters: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrProfileNotFound
	}

	// Clamp any counter that went negative (possible after manual data edits).
	_, err = s.collection.UpdateOne(ctx,
		bson.M{"learnerId": learnerID, "$or": []bson.M{
			{"chunksAcquired": bson.M{"$lt": 0}},
			{"chunksLearning": bson.M{"$lt": 0}},
			{"chunksFragile": bson.M{"$lt": 0}},
		}},
		bson.M{"$max": bson.M{"chunksAcquired": 0, "chunksLearning": 0, "chunksFragile": 0}},
	)
	if err != nil {
		log.Printf("⚠️  [PROFILE] Failed to clamp negative counters for %s: %v", learnerID, err)
	}
	return nil
}

func (s *ProfileService) updateFields(ctx context.Context, learnerID string, fields bson.M) error {
	fields["updatedAt"] = time.Now()
	result, err := s.collection.UpdateOne(ctx,
		bson.M{"learnerId": learnerID},
		bson.M{"$set": fields},
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func statusCounterField(status models.AcquisitionStatus) (string, bool) {
	switch status {
	case models.StatusAcquired:
		return "chunksAcquired", true
	case models.StatusLearning:
		return "chunksLearning", true
	case models.StatusFragile:
		return "chunksFragile", true
	default:
		return "", false
	}
}

func clampRate(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
