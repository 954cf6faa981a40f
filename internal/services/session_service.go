package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"linguaflow/internal/calibrator"
	"linguaflow/internal/config"
	"linguaflow/internal/models"
)

// profileStore is the slice of ProfileService the orchestrator needs.
type profileStore interface {
	GetOrCreate(ctx context.Context, learnerID string) (*models.LearnerProfile, error)
	GetProfile(ctx context.Context, learnerID string) (*models.LearnerProfile, error)
	UpdateConfidence(ctx context.Context, learnerID string, observed, smoothing float64) (float64, error)
	RecordStruggle(ctx context.Context, learnerID string, at time.Time) error
	UpdateFilterRisk(ctx context.Context, learnerID string, risk float64) error
	SyncLevel(ctx context.Context, learnerID string, level float64) error
	UpdateSessionRates(ctx context.Context, learnerID string, helpRate, wrongRate float64, at time.Time) error
	SetInterestTopics(ctx context.Context, learnerID string, topics []string) error
}

// chunkFinder is the slice of ChunkService the orchestrator needs.
type chunkFinder interface {
	FindDue(ctx context.Context, learnerID string, now time.Time, limit int) ([]models.UserChunk, error)
	FindByStatus(ctx context.Context, learnerID string, status models.AcquisitionStatus, limit int) ([]models.UserChunk, error)
	FindChunks(ctx context.Context, language string, minLevel, maxLevel float64, topic string, limit int) ([]models.Chunk, error)
	DetectInterestTopic(ctx context.Context, learnerID string) (string, error)
	StatusBreakdown(ctx context.Context, learnerID, topic string) ([]models.AcquisitionStatus, error)
}

// contentGenerator produces candidate new chunks; failure means "no new
// material" and the plan degrades to review and context items.
type contentGenerator interface {
	Enabled() bool
	GenerateChunks(ctx context.Context, req ContentRequest) ([]models.Chunk, error)
}

// encounterRecorder persists a batch of chunk encounters.
type encounterRecorder interface {
	RecordBatch(ctx context.Context, learnerID string, encounters []Encounter, now time.Time) models.EncounterBatchResult
}

// sessionLocker fences a session to one instance. May be nil (single node).
type sessionLocker interface {
	Acquire(ctx context.Context, sessionID, learnerID string) error
	Release(ctx context.Context, sessionID string)
}

// SessionOptions customizes PrepareSession.
type SessionOptions struct {
	Topic           string // empty = detect from interest history
	DurationMinutes int    // 0 = tuned default
}

// liveSession is the in-memory state of one running session.
type liveSession struct {
	plan *models.SessionPlan
	ctx  *models.SessionContext

	newQueue     []string // unseen new-chunk IDs, plan order
	reviewQueue  []string // unseen review-chunk IDs
	contextQueue []string // unseen scaffolding IDs

	durationMinutes int
	typeCursor      int // position in the activity type cycle

	graduated     int
	becameFragile int
	failedWrites  int
}

// SessionService is the pedagogy control loop: it assembles session plans,
// folds activity reports into the learner model, and decides what to present
// next. Callers must serialize calls per session; the internal lock only
// protects the session table.
type SessionService struct {
	profiles   profileStore
	chunks     chunkFinder
	content    contentGenerator
	encounters encounterRecorder
	locker     sessionLocker
	tuning     *config.TuningStore

	mu       sync.Mutex
	sessions map[string]*liveSession
}

// NewSessionService creates a new session orchestrator. locker may be nil.
func NewSessionService(profiles profileStore, chunks chunkFinder, content contentGenerator, encounters encounterRecorder, locker sessionLocker, tuning *config.TuningStore) *SessionService {
	return &SessionService{
		profiles:   profiles,
		chunks:     chunks,
		content:    content,
		encounters: encounters,
		locker:     locker,
		tuning:     tuning,
		sessions:   make(map[string]*liveSession),
	}
}

// activityCycle is the fixed order activity types rotate through for new
// material, easiest to hardest.
var activityCycle = []models.ActivityType{
	models.ActivityFlashcard,
	models.ActivityMatching,
	models.ActivityFillBlank,
	models.ActivityListening,
	models.ActivityProduction,
}

// PrepareSession builds a SessionPlan for a learner: current and target
// levels from the calibrator, a topic from options or interest history, and
// new/review/context material fetched concurrently.
func (s *SessionService) PrepareSession(ctx context.Context, learnerID string, opts SessionOptions) (*models.SessionPlan, error) {
	profile, err := s.profiles.GetOrCreate(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	tuning := s.tuning.Current()
	current := calibrator.CurrentLevel(profile, tuning.Calibrator)
	target := calibrator.TargetLevel(profile, tuning.Calibrator)
	if calibrator.ShouldDropBack(profile, nil, tuning.Calibrator) {
		// No i+1 push for a learner arriving shaky; stay at competence level.
		target = current
	}

	topic := opts.Topic
	if topic == "" {
		topic = s.pickTopic(ctx, profile)
	}

	now := time.Now()
	sessionID := uuid.New().String()

	if s.locker != nil {
		if err := s.locker.Acquire(ctx, sessionID, learnerID); err != nil {
			return nil, fmt.Errorf("failed to lock session: %w", err)
		}
	}

	// The three material queries are independent reads; fan out.
	var (
		wg            sync.WaitGroup
		newChunks     []models.Chunk
		reviewRecords []models.UserChunk
		contextChunks []models.Chunk
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		newChunks = s.fetchNewChunks(ctx, profile, topic, target, tuning.Session.MaxNewChunks)
	}()
	go func() {
		defer wg.Done()
		reviewRecords = s.fetchReviewRecords(ctx, learnerID, now, tuning.Session.MaxReviewChunks)
	}()
	go func() {
		defer wg.Done()
		var cerr error
		contextChunks, cerr = s.chunks.FindChunks(ctx, profile.TargetLanguage, calibrator.MinLevel, current, topic, tuning.Session.MaxContextChunks)
		if cerr != nil {
			log.Printf("⚠️  [SESSION] Context chunk query failed for %s: %v", learnerID, cerr)
			contextChunks = nil
		}
	}()
	wg.Wait()

	plan := &models.SessionPlan{
		SessionID:        sessionID,
		LearnerID:        learnerID,
		Topic:            topic,
		CreatedAt:        now,
		NewChunkIDs:      chunkIDs(newChunks),
		ReviewChunkIDs:   recordChunkIDs(reviewRecords),
		ContextChunkIDs:  chunkIDs(contextChunks),
		ActivitySequence: sequenceFor(profile, len(newChunks)+len(reviewRecords)),
		CurrentLevel:     current,
		TargetLevel:      target,
	}

	duration := opts.DurationMinutes
	if duration <= 0 {
		duration = tuning.Session.SessionMinutes
	}
	plan.EstimatedMinutes = estimateMinutes(plan, tuning.Session.PerActivityMinutes, duration)

	live := &liveSession{
		plan: plan,
		ctx: &models.SessionContext{
			SessionID:          sessionID,
			LearnerID:          learnerID,
			State:              models.SessionActive,
			StartedAt:          now,
			BaseTargetLevel:    target,
			CurrentTargetLevel: target,
			IntroducedChunkIDs: make(map[string]bool),
			ReviewedChunkIDs:   make(map[string]bool),
		},
		newQueue:        append([]string(nil), plan.NewChunkIDs...),
		reviewQueue:     append([]string(nil), plan.ReviewChunkIDs...),
		contextQueue:    append([]string(nil), plan.ContextChunkIDs...),
		durationMinutes: duration,
	}

	s.mu.Lock()
	s.sessions[sessionID] = live
	s.mu.Unlock()

	if m := GetMetrics(); m != nil {
		m.SessionsPrepared.Inc()
		m.ActiveSessions.Inc()
	}

	log.Printf("🔄 [SESSION] Prepared session %s for learner %s: topic=%s target=%.1f new=%d review=%d context=%d",
		sessionID, learnerID, topic, target, len(plan.NewChunkIDs), len(plan.ReviewChunkIDs), len(plan.ContextChunkIDs))
	return plan, nil
}

// pickTopic chooses a topic: profile interests first, then engagement
// history, then the catch-all default.
func (s *SessionService) pickTopic(ctx context.Context, profile *models.LearnerProfile) string {
	if len(profile.InterestTopics) > 0 {
		return profile.InterestTopics[0]
	}
	topic, err := s.chunks.DetectInterestTopic(ctx, profile.LearnerID)
	if err != nil {
		log.Printf("⚠️  [SESSION] Interest detection failed for %s: %v", profile.LearnerID, err)
		return defaultTopic
	}
	if topic == "" {
		return defaultTopic
	}
	return topic
}

const defaultTopic = "everyday"

// fetchNewChunks asks the generator for i+1 material, falling back to stored
// chunks at the target level. Any failure degrades to no new material.
func (s *SessionService) fetchNewChunks(ctx context.Context, profile *models.LearnerProfile, topic string, target float64, limit int) []models.Chunk {
	if s.content != nil && s.content.Enabled() {
		generated, err := s.content.GenerateChunks(ctx, ContentRequest{
			Language: profile.TargetLanguage,
			Topic:    topic,
			Level:    target,
			Count:    limit,
		})
		if err == nil && len(generated) > 0 {
			return generated
		}
		if err != nil {
			log.Printf("⚠️  [SESSION] Content generation failed for %s, falling back to stored chunks: %v", profile.LearnerID, err)
		}
	}

	stored, err := s.chunks.FindChunks(ctx, profile.TargetLanguage, target-0.5, target, topic, limit)
	if err != nil {
		log.Printf("⚠️  [SESSION] New chunk query failed for %s: %v", profile.LearnerID, err)
		return nil
	}
	return stored
}

// fetchReviewRecords merges due items with fragile ones, fragile first, and
// dedupes. Failures degrade to an empty review queue.
func (s *SessionService) fetchReviewRecords(ctx context.Context, learnerID string, now time.Time, limit int) []models.UserChunk {
	fragile, err := s.chunks.FindByStatus(ctx, learnerID, models.StatusFragile, limit)
	if err != nil {
		log.Printf("⚠️  [SESSION] Fragile query failed for %s: %v", learnerID, err)
		fragile = nil
	}
	due, err := s.chunks.FindDue(ctx, learnerID, now, limit)
	if err != nil {
		log.Printf("⚠️  [SESSION] Due query failed for %s: %v", learnerID, err)
		due = nil
	}

	seen := make(map[string]bool, len(fragile))
	merged := make([]models.UserChunk, 0, len(fragile)+len(due))
	for _, r := range append(fragile, due...) {
		key := r.ChunkID.Hex()
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, r)
		if len(merged) >= limit {
			break
		}
	}
	return merged
}

// sequenceFor derives the recommended activity-type rotation from material
// volume and the learner's stated preference.
func sequenceFor(profile *models.LearnerProfile, materialCount int) []models.ActivityType {
	seq := append([]models.ActivityType(nil), activityCycle...)
	if pref := models.ActivityType(profile.PreferredActivityType); pref != "" {
		for i, t := range seq {
			if t == pref && i != 0 {
				seq[0], seq[i] = seq[i], seq[0]
				break
			}
		}
	}
	if materialCount < len(seq) && materialCount > 0 {
		seq = seq[:materialCount]
	}
	return seq
}

func estimateMinutes(plan *models.SessionPlan, perActivity, sessionMinutes int) int {
	activities := len(plan.NewChunkIDs) + len(plan.ReviewChunkIDs)
	estimate := activities * perActivity
	if estimate > sessionMinutes {
		return sessionMinutes
	}
	if estimate == 0 {
		return perActivity
	}
	return estimate
}

// session looks up a live session by ID.
func (s *SessionService) session(sessionID string) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return live, nil
}

func chunkIDs(chunks []models.Chunk) []string {
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.ID.Hex())
	}
	return ids
}

func recordChunkIDs(records []models.UserChunk) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ChunkID.Hex())
	}
	return ids
}
