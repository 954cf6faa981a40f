package services

import (
	"fmt"

	"linguaflow/internal/models"
)

// reviewBatchSize caps how many chunks one review activity covers.
const reviewBatchSize = 3

// GetNextActivity recommends what to present next. Priority: review when the
// learner is on a wrong streak, review on every Nth activity to interleave,
// then unseen new material, then leftover review, then scaffolding. When
// everything is exhausted the recommendation carries Done=true.
func (s *SessionService) GetNextActivity(sessionID string) (models.ActivityRecommendation, error) {
	live, err := s.session(sessionID)
	if err != nil {
		return models.ActivityRecommendation{}, err
	}
	if live.ctx.State != models.SessionActive {
		return models.ActivityRecommendation{}, ErrSessionEnded
	}

	tuning := s.tuning.Current().Session
	struggling := live.ctx.WrongStreak() >= tuning.WrongStreakForReview
	activityNum := len(live.ctx.Activities) + 1

	if struggling && len(live.reviewQueue) > 0 {
		return live.takeReview(struggling), nil
	}
	if tuning.ReviewEveryN > 0 && activityNum%tuning.ReviewEveryN == 0 && len(live.reviewQueue) > 0 {
		return live.takeReview(struggling), nil
	}
	if len(live.newQueue) > 0 {
		return live.takeNew(struggling), nil
	}
	if len(live.reviewQueue) > 0 {
		return live.takeReview(struggling), nil
	}
	if len(live.contextQueue) > 0 {
		return live.takeContext(), nil
	}

	return models.ActivityRecommendation{Done: true}, nil
}

// ShouldEndSession evaluates the session's end conditions in severity order:
// critical struggle, fatigue, then elapsed time.
func (s *SessionService) ShouldEndSession(sessionID string) (bool, string, error) {
	live, err := s.session(sessionID)
	if err != nil {
		return false, "", err
	}
	if live.ctx.State == models.SessionEnding || live.ctx.State == models.SessionSummarized {
		return true, "session already ended", nil
	}

	tuning := s.tuning.Current().Session
	activities := len(live.ctx.Activities)

	if live.ctx.SignalCount(models.SignalWrong) >= tuning.CriticalWrongSignals {
		live.ctx.State = models.SessionEnding
		return true, "critical struggle", nil
	}
	if activities >= tuning.FatigueActivityCount {
		wrongRate := float64(activities-live.ctx.CorrectCount()) / float64(activities)
		if wrongRate > tuning.FatigueWrongRate {
			live.ctx.State = models.SessionEnding
			return true, "fatigue", nil
		}
	}
	if activities*tuning.PerActivityMinutes >= live.durationMinutes {
		live.ctx.State = models.SessionEnding
		return true, fmt.Sprintf("time budget reached (%d min)", live.durationMinutes), nil
	}
	if len(live.newQueue) == 0 && len(live.reviewQueue) == 0 && len(live.contextQueue) == 0 {
		live.ctx.State = models.SessionEnding
		return true, "material exhausted", nil
	}

	return false, "", nil
}

// takeNew serves the next unseen new chunk. A struggling learner gets the
// easiest activity type; otherwise the plan's type rotation advances.
func (l *liveSession) takeNew(struggling bool) models.ActivityRecommendation {
	ids := l.newQueue[:1]
	return models.ActivityRecommendation{
		Kind:        models.KindNew,
		Type:        l.nextType(struggling),
		ChunkIDs:    append([]string(nil), ids...),
		TargetLevel: l.ctx.CurrentTargetLevel,
	}
}

// takeReview serves a small batch of review chunks with the easiest type.
func (l *liveSession) takeReview(struggling bool) models.ActivityRecommendation {
	n := reviewBatchSize
	if struggling {
		n = 1
	}
	if n > len(l.reviewQueue) {
		n = len(l.reviewQueue)
	}
	return models.ActivityRecommendation{
		Kind:        models.KindReview,
		Type:        models.ActivityFlashcard,
		ChunkIDs:    append([]string(nil), l.reviewQueue[:n]...),
		TargetLevel: l.ctx.CurrentTargetLevel,
	}
}

// takeContext serves scaffolding material at or below the current level.
func (l *liveSession) takeContext() models.ActivityRecommendation {
	return models.ActivityRecommendation{
		Kind:        models.KindReview,
		Type:        models.ActivityMatching,
		ChunkIDs:    append([]string(nil), l.contextQueue[:1]...),
		TargetLevel: l.ctx.CurrentTargetLevel,
	}
}

func (l *liveSession) nextType(struggling bool) models.ActivityType {
	if struggling {
		return models.ActivityFlashcard
	}
	seq := l.plan.ActivitySequence
	if len(seq) == 0 {
		seq = activityCycle
	}
	t := seq[l.typeCursor%len(seq)]
	l.typeCursor++
	return t
}
