package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"linguaflow/internal/affect"
	"linguaflow/internal/calibrator"
	"linguaflow/internal/logging"
	"linguaflow/internal/models"
)

// ReportActivityCompletion folds one completed activity into the session:
// derives behavioral signals, persists the chunk encounters, updates the
// learner's rolling confidence, and returns the filter monitor's real-time
// adaptation. Callers serialize calls per session.
func (s *SessionService) ReportActivityCompletion(ctx context.Context, sessionID string, activity models.ActivityResult) (models.AdaptationAction, error) {
	live, err := s.session(sessionID)
	if err != nil {
		return models.AdaptationAction{}, err
	}
	if live.ctx.State != models.SessionActive {
		return models.AdaptationAction{}, ErrSessionEnded
	}

	tuning := s.tuning.Current()
	now := activity.CompletedAt
	if now.IsZero() {
		now = time.Now()
		activity.CompletedAt = now
	}
	if activity.ActivityID == "" {
		activity.ActivityID = fmt.Sprintf("%s-%d", sessionID, len(live.ctx.Activities)+1)
	}

	signals := deriveSignals(live.ctx, activity, tuning.Session.SlowResponseFactor)
	live.ctx.Activities = append(live.ctx.Activities, activity)
	live.ctx.Signals = append(live.ctx.Signals, signals...)
	markSeen(live, activity)

	batch := s.recordEncounters(ctx, live, activity, now)
	live.graduated += batch.Graduated
	live.becameFragile += batch.BecameFragile
	live.failedWrites += batch.Failed

	observed := observedConfidence(Encounter{
		Correct:  activity.Correct,
		FirstTry: activity.FirstTry,
		UsedHelp: activity.UsedHelp,
	})
	if _, err := s.profiles.UpdateConfidence(ctx, live.ctx.LearnerID, observed, tuning.Session.ConfidenceSmoothing); err != nil {
		log.Printf("⚠️  [SESSION] Confidence update failed for %s: %v", live.ctx.LearnerID, err)
	}

	if !activity.Correct && !activity.UsedHelp && live.ctx.WrongStreak() >= tuning.Session.WrongStreakStruggle {
		if err := s.profiles.RecordStruggle(ctx, live.ctx.LearnerID, now); err != nil {
			log.Printf("⚠️  [SESSION] Struggle flag failed for %s: %v", live.ctx.LearnerID, err)
		} else {
			log.Printf("⚠️  [SESSION] Learner %s hit a wrong streak of %d", live.ctx.LearnerID, live.ctx.WrongStreak())
		}
	}

	action := s.computeAdaptation(ctx, live, now, tuning.Session.SignalWindow)
	switch action.Type {
	case models.AdaptSimplify:
		live.ctx.CurrentTargetLevel = action.DropToLevel
	case models.AdaptChallenge:
		live.ctx.CurrentTargetLevel = action.IncreaseToLevel
	}
	if action.Type != models.AdaptNone {
		live.ctx.Adaptations = append(live.ctx.Adaptations, action)
		recordAdaptation(action.Type)
	} else {
		// No affective intervention this round; let raw performance nudge the
		// target every few activities instead.
		s.recalibrateTarget(live, tuning.Session.ReviewEveryN)
	}
	recordActivity(activity.Type, activity.Correct)

	logger := logging.WithSession(sessionID, live.ctx.LearnerID)
	logging.WithActivity(logger, activity.ActivityID, string(activity.Type)).Debug("activity processed",
		"correct", activity.Correct,
		"signals", len(signals),
		"adaptation", string(action.Type),
		"target_level", live.ctx.CurrentTargetLevel,
	)

	return action, nil
}

// AbandonSession records a quit signal for a learner who left mid-session.
// The session stays summarizable.
func (s *SessionService) AbandonSession(ctx context.Context, sessionID string) error {
	live, err := s.session(sessionID)
	if err != nil {
		return err
	}
	if live.ctx.State == models.SessionSummarized {
		return ErrSessionEnded
	}

	live.ctx.Signals = append(live.ctx.Signals, models.FilterSignal{
		Type:      models.SignalQuit,
		Timestamp: time.Now(),
	})
	live.ctx.State = models.SessionEnding
	log.Printf("⚠️  [SESSION] Learner %s abandoned session %s", live.ctx.LearnerID, sessionID)
	return nil
}

// deriveSignals maps one activity outcome to behavioral signals. Slow means
// response time above a multiple of the session's running average; fast means
// a clean correct answer well under it.
func deriveSignals(sctx *models.SessionContext, activity models.ActivityResult, slowFactor float64) []models.FilterSignal {
	var signals []models.FilterSignal
	add := func(t models.SignalType) {
		signals = append(signals, models.FilterSignal{
			Type:       t,
			Timestamp:  activity.CompletedAt,
			ActivityID: activity.ActivityID,
		})
	}

	if !activity.Correct {
		add(models.SignalWrong)
	}
	if activity.UsedHelp {
		add(models.SignalHelp)
	}

	if avg := averageResponseMs(sctx.Activities); avg > 0 && activity.ResponseTimeMs > 0 {
		if float64(activity.ResponseTimeMs) > float64(avg)*slowFactor {
			add(models.SignalSlow)
		} else if activity.Correct && !activity.UsedHelp && float64(activity.ResponseTimeMs) < float64(avg)/slowFactor {
			add(models.SignalFast)
		}
	}
	return signals
}

func averageResponseMs(activities []models.ActivityResult) int64 {
	var sum, n int64
	for _, a := range activities {
		if a.ResponseTimeMs > 0 {
			sum += a.ResponseTimeMs
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

func markSeen(live *liveSession, activity models.ActivityResult) {
	for _, id := range activity.ChunkIDs {
		switch activity.Kind {
		case models.KindNew:
			live.ctx.IntroducedChunkIDs[id] = true
		default:
			live.ctx.ReviewedChunkIDs[id] = true
		}
	}
	live.newQueue = removeIDs(live.newQueue, activity.ChunkIDs)
	live.reviewQueue = removeIDs(live.reviewQueue, activity.ChunkIDs)
	live.contextQueue = removeIDs(live.contextQueue, activity.ChunkIDs)
}

func removeIDs(queue []string, ids []string) []string {
	if len(ids) == 0 || len(queue) == 0 {
		return queue
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := queue[:0]
	for _, id := range queue {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	return kept
}

// recordEncounters persists the SRS effect of every chunk the activity
// touched. Unparseable IDs count as failed items.
func (s *SessionService) recordEncounters(ctx context.Context, live *liveSession, activity models.ActivityResult, now time.Time) models.EncounterBatchResult {
	encounters := make([]Encounter, 0, len(activity.ChunkIDs))
	invalid := 0
	for _, hex := range activity.ChunkIDs {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			invalid++
			log.Printf("⚠️  [SESSION] Skipping malformed chunk ID %q: %v", hex, err)
			continue
		}
		encounters = append(encounters, Encounter{
			ChunkID:  id,
			Correct:  activity.Correct,
			FirstTry: activity.FirstTry,
			UsedHelp: activity.UsedHelp,
		})
	}

	batch := s.encounters.RecordBatch(ctx, live.ctx.LearnerID, encounters, now)
	batch.Failed += invalid
	recordBatchMetrics(batch)
	return batch
}

// recalibrateTarget applies performance-based difficulty adjustment over the
// last batch of activities, once per batch boundary.
func (s *SessionService) recalibrateTarget(live *liveSession, batchSize int) {
	if batchSize <= 0 || len(live.ctx.Activities) == 0 || len(live.ctx.Activities)%batchSize != 0 {
		return
	}

	recent := live.ctx.Activities[len(live.ctx.Activities)-batchSize:]
	perf := calibrator.Performance{Total: len(recent)}
	for _, a := range recent {
		if a.Correct {
			perf.Correct++
		}
		if a.UsedHelp {
			perf.HelpUsedCount++
		}
	}

	adjusted, err := calibrator.AdaptDifficulty(live.ctx.CurrentTargetLevel, perf)
	if err != nil {
		log.Printf("⚠️  [SESSION] Difficulty adjustment failed: %v", err)
		return
	}
	if adjusted != live.ctx.CurrentTargetLevel {
		log.Printf("🔄 [SESSION] Target level %.2f -> %.2f after %d activities", live.ctx.CurrentTargetLevel, adjusted, len(live.ctx.Activities))
		live.ctx.CurrentTargetLevel = adjusted
	}
}

// computeAdaptation runs the filter monitor over the recent signal window.
// A failed profile read skips the adaptation rather than blocking the
// activity report.
func (s *SessionService) computeAdaptation(ctx context.Context, live *liveSession, now time.Time, window int) models.AdaptationAction {
	profile, err := s.profiles.GetProfile(ctx, live.ctx.LearnerID)
	if err != nil {
		log.Printf("⚠️  [SESSION] Profile read failed for %s, skipping adaptation: %v", live.ctx.LearnerID, err)
		return models.AdaptationAction{Type: models.AdaptNone}
	}

	cfg := s.tuning.Current().Affect
	recent := live.ctx.Signals
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}
	score := affect.FilterScore(profile, recent, now, cfg)
	return affect.Adaptation(score, recent, live.ctx.CurrentTargetLevel, cfg)
}
