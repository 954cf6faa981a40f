package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"linguaflow/internal/affect"
	"linguaflow/internal/config"
	"linguaflow/internal/database"
	"linguaflow/internal/models"
	"linguaflow/internal/services"
)

// FilterDecayJob nightly relaxes every learner's affective filter risk based
// on how long they have been away. Time off is assumed restorative; a learner
// who stopped during a frustrating stretch should not come back to a system
// still treating them as at-risk.
type FilterDecayJob struct {
	mongoDB    *database.MongoDB
	collection *mongo.Collection
	tuning     *config.TuningStore
}

// NewFilterDecayJob creates the nightly filter-risk decay job.
func NewFilterDecayJob(mongoDB *database.MongoDB, tuning *config.TuningStore) *FilterDecayJob {
	var collection *mongo.Collection
	if mongoDB != nil {
		collection = mongoDB.Collection(database.CollectionLearnerProfiles)
	}
	return &FilterDecayJob{
		mongoDB:    mongoDB,
		collection: collection,
		tuning:     tuning,
	}
}

// Name implements Job.
func (j *FilterDecayJob) Name() string { return "filter-risk-decay" }

// Run walks all profiles with non-zero risk and applies the away-time decay.
// Per-profile failures are logged and skipped so one bad document never
// blocks the population.
func (j *FilterDecayJob) Run(ctx context.Context) error {
	if j.collection == nil {
		log.Println("⚠️  [FILTER-DECAY] Skipped: MongoDB not available")
		return nil
	}

	start := time.Now()
	cfg := j.tuning.Current().Affect

	cursor, err := j.collection.Find(ctx, bson.M{"filterRiskScore": bson.M{"$gt": 0}})
	if err != nil {
		return fmt.Errorf("failed to query profiles: %w", err)
	}
	defer cursor.Close(ctx)

	processed, decayed := 0, 0
	for cursor.Next(ctx) {
		var profile models.LearnerProfile
		if err := cursor.Decode(&profile); err != nil {
			log.Printf("⚠️  [FILTER-DECAY] Failed to decode profile: %v", err)
			continue
		}
		processed++

		days := decayableDays(&profile, start, cfg.DecayMaxDays)
		if days <= 0 {
			continue
		}

		newRisk := affect.DecayFilterRisk(profile.FilterRiskScore, days, cfg)
		if newRisk == profile.FilterRiskScore {
			continue
		}

		_, err := j.collection.UpdateOne(ctx,
			bson.M{"learnerId": profile.LearnerID},
			bson.M{"$set": bson.M{"filterRiskScore": newRisk, "riskDecayedAt": start, "updatedAt": time.Now()}},
		)
		if err != nil {
			log.Printf("⚠️  [FILTER-DECAY] Failed to update %s: %v", profile.LearnerID, err)
			continue
		}
		decayed++
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("cursor error walking profiles: %w", err)
	}

	if m := services.GetMetrics(); m != nil {
		m.DecayRunsTotal.Inc()
		m.DecayRunDuration.Observe(time.Since(start).Seconds())
		m.DecayedProfiles.Add(float64(decayed))
	}

	log.Printf("✅ [FILTER-DECAY] Processed %d profiles, decayed %d in %v", processed, decayed, time.Since(start))
	return nil
}

// decayableDays returns how many whole days of absence have not yet been
// decayed. The stored risk already reflects everything up to RiskDecayedAt,
// so only the delta since then applies; cumulative decay saturates at
// maxDays regardless of how long the learner stays away. A session after
// the last decay run restarts the count from the new LastSessionAt.
func decayableDays(profile *models.LearnerProfile, now time.Time, maxDays int) int {
	total := daysSince(profile.LastSessionAt, now)
	if total > maxDays {
		total = maxDays
	}
	applied := 0
	if profile.RiskDecayedAt != nil {
		applied = daysSince(profile.LastSessionAt, *profile.RiskDecayedAt)
		if applied > maxDays {
			applied = maxDays
		}
	}
	return total - applied
}

// daysSince returns whole days between the last session and now; learners
// with no session history decay from their profile update date implicitly,
// so a nil timestamp counts as one day away.
func daysSince(last *time.Time, now time.Time) int {
	if last == nil {
		return 1
	}
	days := int(now.Sub(*last).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
