package models

import "time"

// SessionState is the orchestrator's lifecycle over one SessionContext.
type SessionState string

const (
	SessionBuilding   SessionState = "building"
	SessionActive     SessionState = "active"
	SessionEnding     SessionState = "ending"
	SessionSummarized SessionState = "summarized"
)

// SignalType tags one behavioral signal observed during a session.
type SignalType string

const (
	SignalWrong SignalType = "wrong"
	SignalHelp  SignalType = "help"
	SignalSlow  SignalType = "slow"
	SignalFast  SignalType = "fast"
	SignalQuit  SignalType = "quit"
)

// FilterSignal is an append-only behavioral event; never mutated.
type FilterSignal struct {
	Type       SignalType `json:"type"`
	Timestamp  time.Time  `json:"timestamp"`
	ActivityID string     `json:"activity_id"`
}

// AdaptationType names the real-time reaction chosen by the filter monitor.
type AdaptationType string

const (
	AdaptNone         AdaptationType = "none"
	AdaptEncourage    AdaptationType = "encourage"
	AdaptSimplify     AdaptationType = "simplify"
	AdaptChallenge    AdaptationType = "challenge"
	AdaptSuggestBreak AdaptationType = "suggest_break"
)

// AdaptationSeverity classifies how urgently the caller should surface an
// adaptation to the learner.
type AdaptationSeverity string

const (
	SeverityInfo     AdaptationSeverity = "info"
	SeveritySuccess  AdaptationSeverity = "success"
	SeverityWarning  AdaptationSeverity = "warning"
	SeverityCritical AdaptationSeverity = "critical"
)

// AdaptationAction is an immutable decision produced by the filter monitor.
type AdaptationAction struct {
	Type            AdaptationType     `json:"type"`
	Severity        AdaptationSeverity `json:"severity"`
	Message         string             `json:"message"`
	DropToLevel     float64            `json:"drop_to_level,omitempty"`     // set for simplify
	IncreaseToLevel float64            `json:"increase_to_level,omitempty"` // set for challenge
}

// ActivityType is a kind of exercise the caller can render.
type ActivityType string

const (
	ActivityFlashcard  ActivityType = "flashcard" // easiest, default for review
	ActivityMatching   ActivityType = "matching"
	ActivityFillBlank  ActivityType = "fill_blank"
	ActivityListening  ActivityType = "listening"
	ActivityProduction ActivityType = "production" // hardest
)

// ActivityKind distinguishes what a recommended activity is for.
type ActivityKind string

const (
	KindNew    ActivityKind = "new"
	KindReview ActivityKind = "review"
)

// ActivityResult is the caller's report of one completed activity.
type ActivityResult struct {
	ActivityID     string       `json:"activity_id"`
	Type           ActivityType `json:"type"`
	Kind           ActivityKind `json:"kind"`
	ChunkIDs       []string     `json:"chunk_ids"` // chunks touched by this activity
	Correct        bool         `json:"correct"`
	FirstTry       bool         `json:"first_try"`
	UsedHelp       bool         `json:"used_help"`
	ResponseTimeMs int64        `json:"response_time_ms"`
	CompletedAt    time.Time    `json:"completed_at"`
}

// ActivityRecommendation tells the caller what to present next.
type ActivityRecommendation struct {
	Kind        ActivityKind `json:"kind"`
	Type        ActivityType `json:"type"`
	ChunkIDs    []string     `json:"chunk_ids"`
	TargetLevel float64      `json:"target_level"`
	Done        bool         `json:"done"` // no material left; caller should end the session
}

// SessionPlan is the immutable per-session snapshot produced by PrepareSession.
type SessionPlan struct {
	SessionID string    `json:"session_id"`
	LearnerID string    `json:"learner_id"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"created_at"`

	NewChunkIDs     []string `json:"new_chunk_ids"`     // i+1 material
	ReviewChunkIDs  []string `json:"review_chunk_ids"`  // due + fragile
	ContextChunkIDs []string `json:"context_chunk_ids"` // scaffolding at/below current level

	ActivitySequence []ActivityType `json:"activity_sequence"`
	EstimatedMinutes int            `json:"estimated_minutes"`
	CurrentLevel     float64        `json:"current_level"`
	TargetLevel      float64        `json:"target_level"`
}

// SessionContext is the orchestrator-owned mutable record of one running
// session. Activities, signals and adaptations are append-only. Nothing in
// here is persisted directly; persisted effects happen as each activity is
// processed.
type SessionContext struct {
	SessionID string       `json:"session_id"`
	LearnerID string       `json:"learner_id"`
	State     SessionState `json:"state"`
	StartedAt time.Time    `json:"started_at"`

	Activities  []ActivityResult   `json:"activities"`
	Signals     []FilterSignal     `json:"signals"`
	Adaptations []AdaptationAction `json:"adaptations"`

	BaseTargetLevel    float64 `json:"base_target_level"`
	CurrentTargetLevel float64 `json:"current_target_level"`

	IntroducedChunkIDs map[string]bool `json:"introduced_chunk_ids"`
	ReviewedChunkIDs   map[string]bool `json:"reviewed_chunk_ids"`
}

// WrongStreak returns the number of consecutive wrong activities counting
// back from the most recent one.
func (c *SessionContext) WrongStreak() int {
	streak := 0
	for i := len(c.Activities) - 1; i >= 0; i-- {
		if c.Activities[i].Correct {
			break
		}
		streak++
	}
	return streak
}

// CorrectCount returns how many reported activities were answered correctly.
func (c *SessionContext) CorrectCount() int {
	n := 0
	for _, a := range c.Activities {
		if a.Correct {
			n++
		}
	}
	return n
}

// SignalCount returns how many appended signals have the given type.
func (c *SessionContext) SignalCount(t SignalType) int {
	n := 0
	for _, s := range c.Signals {
		if s.Type == t {
			n++
		}
	}
	return n
}

// EncounterBatchResult reports the outcome of persisting one activity's
// encounters. A failed item never aborts the batch.
type EncounterBatchResult struct {
	Updated       int      `json:"updated"`
	Failed        int      `json:"failed"`
	Graduated     int      `json:"graduated"`      // items newly ACQUIRED
	BecameFragile int      `json:"became_fragile"` // items demoted to FRAGILE
	FailedIDs     []string `json:"failed_ids,omitempty"`
}

// ChunkOutcome describes one per-chunk result bucket in the session summary.
type ChunkOutcome struct {
	ChunkID  string  `json:"chunk_id"`
	Attempts int     `json:"attempts"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// SessionSummary is the terminal artifact of a session.
type SessionSummary struct {
	SessionID       string         `json:"session_id"`
	LearnerID       string         `json:"learner_id"`
	Topic           string         `json:"topic"`
	DurationMinutes int            `json:"duration_minutes"`
	ActivitiesDone  int            `json:"activities_done"`
	Accuracy        float64        `json:"accuracy"`
	RewardPoints    int            `json:"reward_points"`
	NewChunks       int            `json:"new_chunks"`
	ReviewedChunks  int            `json:"reviewed_chunks"`
	TopicHealth     int            `json:"topic_health"`
	Struggling      []ChunkOutcome `json:"struggling"`
	Mastered        []ChunkOutcome `json:"mastered"`
	Tips            []string       `json:"tips"`
}
