package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"linguaflow/internal/affect"
	"linguaflow/internal/calibrator"
	"linguaflow/internal/models"
	"linguaflow/internal/srs"
)

// GenerateSessionSummary closes a session: computes the learner-facing
// summary, folds the session's affective outcome back into the profile, and
// releases the session. Profile writes are best-effort; a failed write is
// logged and the summary is still returned.
func (s *SessionService) GenerateSessionSummary(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	live, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if live.ctx.State == models.SessionSummarized {
		return nil, ErrSessionEnded
	}
	live.ctx.State = models.SessionEnding

	now := time.Now()
	activities := live.ctx.Activities
	total := len(activities)

	accuracy := 0.0
	if total > 0 {
		accuracy = float64(live.ctx.CorrectCount()) / float64(total)
	}

	duration := int(now.Sub(live.ctx.StartedAt).Minutes())
	if duration < 1 && total > 0 {
		duration = 1
	}

	struggling, mastered := classifyChunks(activities)

	// Topic health reflects the learner's standing across the whole topic,
	// not just this session. A learner with no records scores the neutral 50.
	statuses, err := s.chunks.StatusBreakdown(ctx, live.ctx.LearnerID, live.plan.Topic)
	if err != nil {
		log.Printf("⚠️  [SESSION] Topic health lookup failed for %s: %v", live.ctx.LearnerID, err)
	}

	summary := &models.SessionSummary{
		SessionID:       sessionID,
		LearnerID:       live.ctx.LearnerID,
		Topic:           live.plan.Topic,
		DurationMinutes: duration,
		ActivitiesDone:  total,
		Accuracy:        accuracy,
		RewardPoints:    rewardPoints(activities, live.graduated),
		NewChunks:       len(live.ctx.IntroducedChunkIDs),
		ReviewedChunks:  len(live.ctx.ReviewedChunkIDs),
		TopicHealth:     srs.TopicHealth(statuses),
		Struggling:      struggling,
		Mastered:        mastered,
		Tips:            buildTips(accuracy, duration, len(struggling), live.graduated),
	}

	s.persistSessionOutcome(ctx, live, now)

	live.ctx.State = models.SessionSummarized
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if s.locker != nil {
		s.locker.Release(ctx, sessionID)
	}
	if m := GetMetrics(); m != nil {
		m.SessionsSummarized.Inc()
		m.ActiveSessions.Dec()
	}

	log.Printf("✅ [SESSION] Summarized session %s for learner %s: %d activities, %.0f%% accuracy, %d points",
		sessionID, live.ctx.LearnerID, total, accuracy*100, summary.RewardPoints)
	if live.failedWrites > 0 {
		log.Printf("⚠️  [SESSION] Session %s finished with %d failed encounter writes", sessionID, live.failedWrites)
	}
	return summary, nil
}

// persistSessionOutcome writes the session's lasting effects to the profile:
// blended filter risk, help/wrong rates, recalibrated level, and refreshed
// interest topics.
func (s *SessionService) persistSessionOutcome(ctx context.Context, live *liveSession, now time.Time) {
	learnerID := live.ctx.LearnerID

	profile, err := s.profiles.GetProfile(ctx, learnerID)
	if err != nil {
		log.Printf("⚠️  [SESSION] Profile read failed for %s, skipping outcome persistence: %v", learnerID, err)
		return
	}

	tuning := s.tuning.Current()
	window := live.ctx.Signals
	if len(window) > tuning.Session.SignalWindow {
		window = window[len(window)-tuning.Session.SignalWindow:]
	}
	sessionRisk := affect.FilterScore(profile, window, now, tuning.Affect)
	newRisk := affect.UpdatedFilterRisk(profile.FilterRiskScore, sessionRisk, tuning.Affect)
	if err := s.profiles.UpdateFilterRisk(ctx, learnerID, newRisk); err != nil {
		log.Printf("⚠️  [SESSION] Filter risk update failed for %s: %v", learnerID, err)
	}

	total := len(live.ctx.Activities)
	if total > 0 {
		help, wrong := 0, 0
		for _, a := range live.ctx.Activities {
			if a.UsedHelp {
				help++
			}
			if !a.Correct {
				wrong++
			}
		}
		helpRate := float64(help) / float64(total)
		wrongRate := float64(wrong) / float64(total)
		if err := s.profiles.UpdateSessionRates(ctx, learnerID, helpRate, wrongRate, now); err != nil {
			log.Printf("⚠️  [SESSION] Rate update failed for %s: %v", learnerID, err)
		}
	}

	// Recalibrate against the post-session counters.
	if fresh, err := s.profiles.GetProfile(ctx, learnerID); err == nil {
		level := calibrator.CurrentLevel(fresh, tuning.Calibrator)
		if err := s.profiles.SyncLevel(ctx, learnerID, level); err != nil {
			log.Printf("⚠️  [SESSION] Level sync failed for %s: %v", learnerID, err)
		}
	}

	if topic, err := s.chunks.DetectInterestTopic(ctx, learnerID); err == nil && topic != "" {
		if err := s.profiles.SetInterestTopics(ctx, learnerID, []string{topic}); err != nil {
			log.Printf("⚠️  [SESSION] Interest update failed for %s: %v", learnerID, err)
		}
	}
}

// rewardPoints scores a session: points per clean first-try answer, a bonus
// for the longest correct streak, and one for each graduation.
func rewardPoints(activities []models.ActivityResult, graduated int) int {
	points := 0
	streak, longest := 0, 0
	for _, a := range activities {
		if a.Correct {
			streak++
			if streak > longest {
				longest = streak
			}
			if a.FirstTry && !a.UsedHelp {
				points += 10
			} else {
				points += 5
			}
		} else {
			streak = 0
		}
	}
	if longest >= 3 {
		points += longest * 5
	}
	points += graduated * 25
	return points
}

// classifyChunks buckets per-chunk results: struggling (<50% correct) and
// mastered (100% correct over at least 2 attempts).
func classifyChunks(activities []models.ActivityResult) (struggling, mastered []models.ChunkOutcome) {
	type tally struct{ attempts, correct int }
	tallies := make(map[string]*tally)
	for _, a := range activities {
		for _, id := range a.ChunkIDs {
			t := tallies[id]
			if t == nil {
				t = &tally{}
				tallies[id] = t
			}
			t.attempts++
			if a.Correct {
				t.correct++
			}
		}
	}

	for id, t := range tallies {
		outcome := models.ChunkOutcome{
			ChunkID:  id,
			Attempts: t.attempts,
			Correct:  t.correct,
			Accuracy: float64(t.correct) / float64(t.attempts),
		}
		switch {
		case outcome.Accuracy < 0.5:
			struggling = append(struggling, outcome)
		case outcome.Accuracy == 1.0 && t.attempts >= 2:
			mastered = append(mastered, outcome)
		}
	}

	sort.Slice(struggling, func(i, j int) bool { return struggling[i].ChunkID < struggling[j].ChunkID })
	sort.Slice(mastered, func(i, j int) bool { return mastered[i].ChunkID < mastered[j].ChunkID })
	return struggling, mastered
}

// buildTips produces human-readable guidance keyed off accuracy, duration and
// struggle-count bands.
func buildTips(accuracy float64, durationMinutes, strugglingCount, graduated int) []string {
	var tips []string

	switch {
	case accuracy >= 0.9:
		tips = append(tips, "Excellent accuracy! Consider trying harder material next session.")
	case accuracy >= 0.7:
		tips = append(tips, "Solid session. Keep the daily rhythm going.")
	case accuracy >= 0.5:
		tips = append(tips, "Some phrases need more repetition. Short daily reviews work better than long cramming.")
	default:
		tips = append(tips, "Tough session. Try an easier topic or take a break before the next one.")
	}

	if strugglingCount >= 3 {
		tips = append(tips, fmt.Sprintf("%d phrases gave you trouble. They will come back for review tomorrow.", strugglingCount))
	}
	if graduated > 0 {
		tips = append(tips, fmt.Sprintf("You fully acquired %d new phrases this session. 🎉", graduated))
	}
	if durationMinutes >= 25 {
		tips = append(tips, "Long session! Shorter, more frequent sessions usually stick better.")
	}
	return tips
}
