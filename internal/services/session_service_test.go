package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"linguaflow/internal/models"
)

// fakeProfiles is an in-memory profileStore.
type fakeProfiles struct {
	profile     *models.LearnerProfile
	confidences []float64
	struggles   []time.Time
	risks       []float64
	levels      []float64
	topics      [][]string
	rateCalls   int
}

func newFakeProfiles(p *models.LearnerProfile) *fakeProfiles {
	return &fakeProfiles{profile: p}
}

func (f *fakeProfiles) GetOrCreate(_ context.Context, learnerID string) (*models.LearnerProfile, error) {
	if f.profile == nil {
		f.profile = &models.LearnerProfile{LearnerID: learnerID, AverageConfidence: 0.5, CurrentLevel: 1.0, TargetLanguage: "es"}
	}
	return f.profile, nil
}

func (f *fakeProfiles) GetProfile(_ context.Context, _ string) (*models.LearnerProfile, error) {
	if f.profile == nil {
		return nil, ErrProfileNotFound
	}
	return f.profile, nil
}

func (f *fakeProfiles) UpdateConfidence(_ context.Context, _ string, observed, smoothing float64) (float64, error) {
	updated := f.profile.AverageConfidence*smoothing + observed*(1-smoothing)
	f.profile.AverageConfidence = updated
	f.confidences = append(f.confidences, observed)
	return updated, nil
}

func (f *fakeProfiles) RecordStruggle(_ context.Context, _ string, at time.Time) error {
	f.struggles = append(f.struggles, at)
	f.profile.LastStruggleDate = &at
	return nil
}

func (f *fakeProfiles) UpdateFilterRisk(_ context.Context, _ string, risk float64) error {
	f.risks = append(f.risks, risk)
	f.profile.FilterRiskScore = risk
	return nil
}

func (f *fakeProfiles) SyncLevel(_ context.Context, _ string, level float64) error {
	f.levels = append(f.levels, level)
	f.profile.CurrentLevel = level
	return nil
}

func (f *fakeProfiles) UpdateSessionRates(_ context.Context, _ string, helpRate, wrongRate float64, at time.Time) error {
	f.rateCalls++
	f.profile.HelpRequestRate = helpRate
	f.profile.WrongAnswerRate = wrongRate
	f.profile.LastSessionAt = &at
	return nil
}

func (f *fakeProfiles) SetInterestTopics(_ context.Context, _ string, topics []string) error {
	f.topics = append(f.topics, topics)
	return nil
}

// fakeChunks is an in-memory chunkFinder. New-material queries carry a
// raised minimum level; scaffolding queries start at the scale floor.
type fakeChunks struct {
	newChunks     []models.Chunk
	contextChunks []models.Chunk
	due           []models.UserChunk
	fragile       []models.UserChunk
	interest      string
	statuses      []models.AcquisitionStatus
}

func (f *fakeChunks) FindDue(_ context.Context, _ string, _ time.Time, _ int) ([]models.UserChunk, error) {
	return f.due, nil
}

func (f *fakeChunks) FindByStatus(_ context.Context, _ string, status models.AcquisitionStatus, _ int) ([]models.UserChunk, error) {
	if status == models.StatusFragile {
		return f.fragile, nil
	}
	return nil, nil
}

func (f *fakeChunks) FindChunks(_ context.Context, _ string, minLevel, _ float64, _ string, _ int) ([]models.Chunk, error) {
	if minLevel > 1.0 {
		return f.newChunks, nil
	}
	return f.contextChunks, nil
}

func (f *fakeChunks) DetectInterestTopic(_ context.Context, _ string) (string, error) {
	return f.interest, nil
}

func (f *fakeChunks) StatusBreakdown(_ context.Context, _, _ string) ([]models.AcquisitionStatus, error) {
	return f.statuses, nil
}

// fakeContent is a contentGenerator that can be disabled or made to fail.
type fakeContent struct {
	enabled bool
	chunks  []models.Chunk
	err     error
}

func (f *fakeContent) Enabled() bool { return f.enabled }

func (f *fakeContent) GenerateChunks(_ context.Context, _ ContentRequest) ([]models.Chunk, error) {
	return f.chunks, f.err
}

// fakeRecorder is an encounterRecorder that records calls.
type fakeRecorder struct {
	batches [][]Encounter
}

func (f *fakeRecorder) RecordBatch(_ context.Context, _ string, encounters []Encounter, _ time.Time) models.EncounterBatchResult {
	f.batches = append(f.batches, encounters)
	return models.EncounterBatchResult{Updated: len(encounters)}
}

func makeChunks(n int) []models.Chunk {
	chunks := make([]models.Chunk, n)
	for i := range chunks {
		chunks[i] = models.Chunk{ID: primitive.NewObjectID()}
	}
	return chunks
}

func makeRecords(n int) []models.UserChunk {
	records := make([]models.UserChunk, n)
	for i := range records {
		records[i] = models.UserChunk{ChunkID: primitive.NewObjectID()}
	}
	return records
}

// calibratedProfile sits at base level 2.0 (150 chunks acquired, neutral
// confidence, zero risk), so target is 3.0.
func calibratedProfile() *models.LearnerProfile {
	return &models.LearnerProfile{
		LearnerID:         "learner-1",
		TargetLanguage:    "es",
		ChunksAcquired:    150,
		AverageConfidence: 0.5,
		CurrentLevel:      2.0,
	}
}

func newTestService(profiles *fakeProfiles, chunks *fakeChunks, content *fakeContent, recorder *fakeRecorder) *SessionService {
	return NewSessionService(profiles, chunks, content, recorder, nil, testTuningStore())
}

func TestPrepareSessionAssemblesPlan(t *testing.T) {
	profiles := newFakeProfiles(calibratedProfile())
	profiles.profile.InterestTopics = []string{"food"}
	chunks := &fakeChunks{
		newChunks:     makeChunks(3),
		contextChunks: makeChunks(2),
		due:           makeRecords(2),
		fragile:       makeRecords(1),
	}
	svc := newTestService(profiles, chunks, &fakeContent{}, &fakeRecorder{})

	plan, err := svc.PrepareSession(context.Background(), "learner-1", SessionOptions{})
	if err != nil {
		t.Fatalf("PrepareSession() error = %v", err)
	}

	if plan.Topic != "food" {
		t.Errorf("Topic = %q, want food", plan.Topic)
	}
	if plan.CurrentLevel != 2.0 || plan.TargetLevel != 3.0 {
		t.Errorf("levels = %.1f/%.1f, want 2.0/3.0", plan.CurrentLevel, plan.TargetLevel)
	}
	if len(plan.NewChunkIDs) != 3 {
		t.Errorf("NewChunkIDs = %d, want 3", len(plan.NewChunkIDs))
	}
	// 1 fragile + 2 due, fragile first
	if len(plan.ReviewChunkIDs) != 3 {
		t.Errorf("ReviewChunkIDs = %d, want 3", len(plan.ReviewChunkIDs))
	}
	if plan.ReviewChunkIDs[0] != chunks.fragile[0].ChunkID.Hex() {
		t.Errorf("fragile material should lead the review queue")
	}
	if len(plan.ContextChunkIDs) != 2 {
		t.Errorf("ContextChunkIDs = %d, want 2", len(plan.ContextChunkIDs))
	}
	if plan.SessionID == "" {
		t.Error("SessionID should be generated")
	}
}

func TestPrepareSessionDedupesReviewQueue(t *testing.T) {
	shared := makeRecords(1)
	chunks := &fakeChunks{due: shared, fragile: shared}
	svc := newTestService(newFakeProfiles(calibratedProfile()), chunks, &fakeContent{}, &fakeRecorder{})

	plan, err := svc.PrepareSession(context.Background(), "learner-1", SessionOptions{})
	if err != nil {
		t.Fatalf("PrepareSession() error = %v", err)
	}
	if len(plan.ReviewChunkIDs) != 1 {
		t.Errorf("ReviewChunkIDs = %v, want a single deduped entry", plan.ReviewChunkIDs)
	}
}

func TestPrepareSessionTopicFallback(t *testing.T) {
	svc := newTestService(newFakeProfiles(calibratedProfile()), &fakeChunks{}, &fakeContent{}, &fakeRecorder{})

	plan, err := svc.PrepareSession(context.Background(), "learner-1", SessionOptions{})
	if err != nil {
		t.Fatalf("PrepareSession() error = %v", err)
	}
	if plan.Topic != defaultTopic {
		t.Errorf("Topic = %q, want %q", plan.Topic, defaultTopic)
	}
}

func TestPrepareSessionGenerationFailureFallsBack(t *testing.T) {
	chunks := &fakeChunks{newChunks: makeChunks(2)}
	content := &fakeContent{enabled: true, err: errors.New("backend down")}
	svc := newTestService(newFakeProfiles(calibratedProfile()), chunks, content, &fakeRecorder{})

	plan, err := svc.PrepareSession(context.Background(), "learner-1", SessionOptions{})
	if err != nil {
		t.Fatalf("PrepareSession() error = %v", err)
	}
	if len(plan.NewChunkIDs) != 2 {
		t.Errorf("NewChunkIDs = %d, want 2 stored fallbacks", len(plan.NewChunkIDs))
	}
}

func TestReportActivityRecordsEncounters(t *testing.T) {
	profiles := newFakeProfiles(calibratedProfile())
	chunks := &fakeChunks{newChunks: makeChunks(2)}
	recorder := &fakeRecorder{}
	svc := newTestService(profiles, chunks, &fakeContent{}, recorder)

	plan, _ := svc.PrepareSession(context.Background(), "learner-1", SessionOptions{})

	_, err := svc.ReportActivityCompletion(context.Background(), plan.SessionID, models.ActivityResult{
		Type:     models.ActivityFlashcard,
		Kind:     models.KindNew,
		ChunkIDs: plan.NewChunkIDs[:1],
		Correct:  true,
		FirstTry: true,
	})
	if err != nil {
		t.Fatalf("ReportActivityCompletion() error = %v", err)
	}

	if len(recorder.batches) != 1 || len(recorder.batches[0]) != 1 {
		t.Fatalf("batches = %v, want one batch of one encounter", recorder.batches)
	}
	if len(profiles.confidences) != 1 || profiles.confidences[0] != 1.0 {
		t.Errorf("observed confidences = %v, want [1.0]", profiles.confidences)
	}
}

func TestReportActivityDerivesSlowSignal(t *testing.T) {
	profiles := newFakeProfiles(calibratedProfile())
	chunks := &fakeChunks{newChunks: makeChunks(3)}
	svc := newTestService(profiles, chunks, &fakeContent{}, &fakeRecorder{})

	plan, _ := svc.PrepareSession(context.Background(), "learner-1", SessionOptions{})

	// First activity establishes the running average at 1000ms.
	svc.ReportActivityCompletion(context.Background(), plan.SessionID, models.ActivityResult{
		Kind: models.KindNew, ChunkIDs: plan.NewChunkIDs[:1], Correct: true, FirstTry: true, ResponseTimeMs: 1000,
	})
	// 3000ms > 2x average -> slow.
	svc.ReportActivityCompletion(context.Background(), plan.SessionID, models.ActivityResult{
		Kind: models.KindNew, ChunkIDs: plan.NewChunkIDs[1:2], Correct: true, FirstTry: true, ResponseTimeMs: 3000,
	})

	live, err := svc.session(plan.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if got := live.ctx.SignalCount(models.SignalSlow); got != 1 {
		t.Errorf("slow signals = %d, want 1", got)
	}

	// 400ms < average/2 with a clean correct answer -> fast.
	svc.ReportActivityCompletion(context.Background(), plan.SessionID, models.ActivityResult{
		Kind: models.KindNew, ChunkIDs: plan.NewChunkIDs[2:3], Correct: true, FirstTry: true, ResponseTimeMs: 400,
	})
	if got := live.ctx.SignalCount(models.SignalFast); got != 1 {
		t.Errorf("fast signals = %d, want 1", got)
	}
}

func TestReportActivityFlagsStruggleOnUnaidedStreak(t *testing.T) {
	profiles := newFakeProfiles(calibratedProfile())
	chunks := &fakeChunks{newChunks: makeChunks(3)}
	svc := newTestService(profiles, chunks, &fakeContent{}, &fakeRecorder{})

	plan, _ := svc.PrepareSession(context.Background(), "learner-1", SessionOptions{})

	for i := 0; i < 3; i++ {
		svc.ReportActivityCompletion(context.Background(), plan.SessionID, models.ActivityResult{
			Kind: models.KindNew, ChunkIDs: plan.NewChunkIDs[i : i+1], Correct: false,
		})
	}

	if len(profiles.struggles) == 0 {
		t.Error("expected a struggle event after 3 unaided wrong answers")
	}
}

func TestReportActivitySimplifiesWhenFilterRises(t *testing.T) {
	// Confident profile with no history keeps the base score low; three wrong
	// answers with help push the score past the simplify threshold while the
	// help usage keeps the struggle flag (which needs unaided wrongs) off.
	profile := calibratedProfile()
	profile.AverageConfidence = 1.0
	profiles := newFakeProfiles(profile)
	chunks := &fakeChunks{newChunks: makeChunks(3)}
	svc := newTestService(profiles, chunks, &fakeContent{}, &fakeRecorder{})

	plan, _ := svc.PrepareSession(context.Background(), "learner-1", SessionOptions{})
	baseTarget := plan.TargetLevel

	var last models.AdaptationAction
	for i := 0; i < 3; i++ {
		last, _ = svc.ReportActivityCompletion(context.Background(), plan.SessionID, models.ActivityResult{
			Kind: models.KindNew, ChunkIDs: plan.NewChunkIDs[i : i+1], Correct: false, UsedHelp: true,
		})
	}

	if last.Type != models.AdaptSimplify {
		t.Fatalf("adaptation = %s, want %s", last.Type, models.AdaptSimplify)
	}
	if last.DropToLevel != baseTarget-0.5 {
		t.Errorf("DropToLevel = %.1f, want %.1f", last.DropToLevel, baseTarget-0.5)
	}

	live, _ := svc.session(plan.SessionID)
	if live.ctx.CurrentTargetLevel != baseTarget-0.5 {
		t.Errorf("CurrentTargetLevel = %.1f, want %.1f", live.ctx.CurrentTargetLevel, baseTarget-0.5)
	}
	if len(live.ctx.Adaptations) == 0 {
		t.Error("adaptation should be appended to the session context")
	}
}

func TestReportActivityRecalibratesTargetOnBatchBoundary(t *testing.T) {
	profiles := newFakeProfiles(calibratedProfile())
	chunks := &fakeChunks{newChunks: makeChunks(3)}
	svc := newTestService(profiles, chunks, &fakeContent{}, &fakeRecorder{})

	plan, _ := svc.PrepareSession(context.Background(), "learner-1", SessionOptions{})

	// Three clean correct answers with no signals: no affective adaptation
	// fires, so the batch boundary applies the 90%+ accuracy bump.
	for i := 0; i < 3; i++ {
		svc.ReportActivityCompletion(context.Background(), plan.SessionID, models.ActivityResult{
			Kind: models.KindNew, ChunkIDs: plan.NewChunkIDs[i : i+1], Correct: true, FirstTry: true,
		})
	}

	live, _ := svc.session(plan.SessionID)
	want := plan.TargetLevel + 0.2
	if live.ctx.CurrentTargetLevel != want {
		t.Errorf("CurrentTargetLevel = %.2f, want %.2f", live.ctx.CurrentTargetLevel, want)
	}
}

func TestGetNextActivityPriorities(t *testing.T) {
	profiles := newFakeProfiles(calibratedProfile())
	chunks := &fakeChunks{
		newChunks: makeChunks(4),
		due:       makeRecords(4),
	}
	svc := newTestService(profiles, chunks, &fakeContent{}, &fakeRecorder{})

	plan, _ := svc.PrepareSession(context.Background(), "learner-1", SessionOptions{})

	// Activity 1: new material.
	rec, err := svc.GetNextActivity(plan.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Kind != models.KindNew {
		t.Errorf("activity 1 kind = %s, want new", rec.Kind)
	}
	svc.ReportActivityCompletion(context.Background(), plan.SessionID, models.ActivityResult{
		Kind: rec.Kind, ChunkIDs: rec.ChunkIDs, Correct: true, FirstTry: true,
	})

	// Activity 2: still new.
	rec, _ = svc.GetNextActivity(plan.SessionID)
	if rec.Kind != models.KindNew {
		t.Errorf("activity 2 kind = %s, want new", rec.Kind)
	}
	svc.ReportActivityCompletion(context.Background(), plan.SessionID, models.ActivityResult{
		Kind: rec.Kind, ChunkIDs: rec.ChunkIDs, Correct: true, FirstTry: true,
	})

	// Activity 3: interleaved review on the 3rd slot.
	rec, _ = svc.GetNextActivity(plan.SessionID)
	if rec.Kind != models.KindReview {
		t.Errorf("activity 3 kind = %s, want review", rec.Kind)
	}
	if rec.Type != models.ActivityFlashcard {
		t.Errorf("review type = %s, want flashcard", rec.Type)
	}
}

func TestGetNextActivityWrongStreakForcesReview(t *testing.T) {
	profiles := newFakeProfiles(calibratedProfile())
	chunks := &fakeChunks{newChunks: makeChunks(4), due: makeRecords(2)}
	svc := newTestService(profiles, chunks, &fakeContent{}, &fakeRecorder{})

	plan, _ := svc.PrepareSession(context.Background(), "learner-1", SessionOptions{})

	for i := 0; i < 2; i++ {
		svc.ReportActivityCompletion(context.Background(), plan.SessionID, models.ActivityResult{
			Kind: models.KindNew, ChunkIDs: plan.NewChunkIDs[i : i+1], Correct: false,
		})
	}

	rec, err := svc.GetNextActivity(plan.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Kind != models.KindReview {
		t.Errorf("kind = %s, want review after a wrong streak", rec.Kind)
	}
	if rec.Type != models.ActivityFlashcard {
		t.Errorf("type = %s, want the easiest type", rec.Type)
	}
	if len(rec.ChunkIDs) != 1 {
		t.Errorf("struggling learner should get a single review chunk, got %d", len(rec.ChunkIDs))
	}
}

func TestGetNextActivityDoneWhenExhausted(t *testing.T) {
	svc := newTestService(newFakeProfiles(calibratedProfile()), &fakeChunks{}, &fakeContent{}, &fakeRecorder{})

	plan, _ := svc.PrepareSession(context.Background(), "learner-1", SessionOptions{})
	rec, err := svc.GetNextActivity(plan.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Done {
		t.Error("expected Done=true with no material")
	}
}

func TestShouldEndSessionConditions(t *testing.T) {
	t.Run("critical struggle", func(t *testing.T) {
		profiles := newFakeProfiles(calibratedProfile())
		chunks := &fakeChunks{newChunks: makeChunks(6)}
		svc := newTestService(profiles, chunks, &fakeContent{}, &fakeRecorder{})
		plan, _ := svc.PrepareSession(context.Background(), "learner-1", SessionOptions{DurationMinutes: 120})

		for i := 0; i < 5; i++ {
			svc.ReportActivityCompletion(context.Background(), plan.SessionID, models.ActivityResult{
				Kind: models.KindNew, ChunkIDs: plan.NewChunkIDs[:1], Correct: false,
			})
		}

		end, reason, err := svc.ShouldEndSession(plan.SessionID)
		if err != nil {
			t.Fatal(err)
		}
		if !end || reason != "critical struggle" {
			t.Errorf("end=%v reason=%q, want critical struggle", end, reason)
		}
	})

	t.Run("time budget", func(t *testing.T) {
		profiles := newFakeProfiles(calibratedProfile())
		chunks := &fakeChunks{newChunks: makeChunks(8)}
		svc := newTestService(profiles, chunks, &fakeContent{}, &fakeRecorder{})
		// 2 activities x 3 min/activity reaches a 6 minute budget.
		plan, _ := svc.PrepareSession(context.Background(), "learner-1", SessionOptions{DurationMinutes: 6})

		for i := 0; i < 2; i++ {
			svc.ReportActivityCompletion(context.Background(), plan.SessionID, models.ActivityResult{
				Kind: models.KindNew, ChunkIDs: plan.NewChunkIDs[i : i+1], Correct: true, FirstTry: true,
			})
		}

		end, reason, err := svc.ShouldEndSession(plan.SessionID)
		if err != nil {
			t.Fatal(err)
		}
		if !end || reason == "" {
			t.Errorf("end=%v reason=%q, want time budget end", end, reason)
		}
	})

	t.Run("continues while healthy", func(t *testing.T) {
		profiles := newFakeProfiles(calibratedProfile())
		chunks := &fakeChunks{newChunks: makeChunks(5)}
		svc := newTestService(profiles, chunks, &fakeContent{}, &fakeRecorder{})
		plan, _ := svc.PrepareSession(context.Background(), "learner-1", SessionOptions{DurationMinutes: 120})

		svc.ReportActivityCompletion(context.Background(), plan.SessionID, models.ActivityResult{
			Kind: models.KindNew, ChunkIDs: plan.NewChunkIDs[:1], Correct: true, FirstTry: true,
		})

		end, _, err := svc.ShouldEndSession(plan.SessionID)
		if err != nil {
			t.Fatal(err)
		}
		if end {
			t.Error("healthy session should continue")
		}
	})
}

func TestGenerateSessionSummary(t *testing.T) {
	profiles := newFakeProfiles(calibratedProfile())
	chunks := &fakeChunks{
		newChunks: makeChunks(3),
		interest:  "travel",
		statuses: []models.AcquisitionStatus{
			models.StatusAcquired, models.StatusAcquired,
			models.StatusLearning, models.StatusFragile,
		},
	}
	svc := newTestService(profiles, chunks, &fakeContent{}, &fakeRecorder{})

	plan, _ := svc.PrepareSession(context.Background(), "learner-1", SessionOptions{})

	mastered := plan.NewChunkIDs[0]
	struggling := plan.NewChunkIDs[1]
	reports := []models.ActivityResult{
		{Kind: models.KindNew, ChunkIDs: []string{mastered}, Correct: true, FirstTry: true},
		{Kind: models.KindReview, ChunkIDs: []string{mastered}, Correct: true, FirstTry: true},
		{Kind: models.KindNew, ChunkIDs: []string{struggling}, Correct: false},
		{Kind: models.KindReview, ChunkIDs: []string{struggling}, Correct: false},
	}
	for _, r := range reports {
		svc.ReportActivityCompletion(context.Background(), plan.SessionID, r)
	}

	summary, err := svc.GenerateSessionSummary(context.Background(), plan.SessionID)
	if err != nil {
		t.Fatalf("GenerateSessionSummary() error = %v", err)
	}

	if summary.ActivitiesDone != 4 {
		t.Errorf("ActivitiesDone = %d, want 4", summary.ActivitiesDone)
	}
	if summary.Accuracy != 0.5 {
		t.Errorf("Accuracy = %v, want 0.5", summary.Accuracy)
	}
	if len(summary.Mastered) != 1 || summary.Mastered[0].ChunkID != mastered {
		t.Errorf("Mastered = %v, want [%s]", summary.Mastered, mastered)
	}
	if len(summary.Struggling) != 1 || summary.Struggling[0].ChunkID != struggling {
		t.Errorf("Struggling = %v, want [%s]", summary.Struggling, struggling)
	}
	// Two clean first-try answers at 10 points each, no streak bonus.
	if summary.RewardPoints != 20 {
		t.Errorf("RewardPoints = %d, want 20", summary.RewardPoints)
	}
	if len(summary.Tips) == 0 {
		t.Error("summary should carry at least one tip")
	}
	// (100 + 100 + 70 + 30) / 4 across the topic's records.
	if summary.TopicHealth != 75 {
		t.Errorf("TopicHealth = %d, want 75", summary.TopicHealth)
	}

	// Lasting profile effects.
	if len(profiles.risks) != 1 {
		t.Errorf("filter risk writes = %d, want 1", len(profiles.risks))
	}
	if profiles.rateCalls != 1 {
		t.Errorf("rate writes = %d, want 1", profiles.rateCalls)
	}
	if len(profiles.topics) != 1 || profiles.topics[0][0] != "travel" {
		t.Errorf("interest topics = %v, want [[travel]]", profiles.topics)
	}

	// The session is gone afterwards.
	if _, err := svc.GenerateSessionSummary(context.Background(), plan.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second summary error = %v, want ErrSessionNotFound", err)
	}
}

func TestAbandonSessionAppendsQuitSignal(t *testing.T) {
	profiles := newFakeProfiles(calibratedProfile())
	chunks := &fakeChunks{newChunks: makeChunks(1)}
	svc := newTestService(profiles, chunks, &fakeContent{}, &fakeRecorder{})

	plan, _ := svc.PrepareSession(context.Background(), "learner-1", SessionOptions{})
	if err := svc.AbandonSession(context.Background(), plan.SessionID); err != nil {
		t.Fatalf("AbandonSession() error = %v", err)
	}

	live, _ := svc.session(plan.SessionID)
	if live.ctx.SignalCount(models.SignalQuit) != 1 {
		t.Error("expected a quit signal")
	}
	if live.ctx.State != models.SessionEnding {
		t.Errorf("state = %s, want ending", live.ctx.State)
	}

	// An ended session hands out no more recommendations.
	if _, err := svc.GetNextActivity(plan.SessionID); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("GetNextActivity() after abandon error = %v, want ErrSessionEnded", err)
	}

	// An abandoned session can still be summarized.
	if _, err := svc.GenerateSessionSummary(context.Background(), plan.SessionID); err != nil {
		t.Errorf("summary after abandon error = %v", err)
	}
}
