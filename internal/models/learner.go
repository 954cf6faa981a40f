package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LearnerProfile holds per-learner aggregates the pedagogy loop reads and
// updates. All rate/score fields are kept within [0,1] by the profile service.
type LearnerProfile struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	LearnerID      string             `bson:"learnerId" json:"learner_id"`
	NativeLanguage string             `bson:"nativeLanguage" json:"native_language"`
	TargetLanguage string             `bson:"targetLanguage" json:"target_language"`

	// CurrentLevel is the canonical 1-5 competence scale. LevelPercent is the
	// legacy 0-100 view, kept in sync by the profile service on every write.
	CurrentLevel float64 `bson:"currentLevel" json:"current_level"`
	LevelPercent int     `bson:"levelPercent" json:"level_percent"`

	ChunksAcquired int `bson:"chunksAcquired" json:"chunks_acquired"`
	ChunksLearning int `bson:"chunksLearning" json:"chunks_learning"`
	ChunksFragile  int `bson:"chunksFragile" json:"chunks_fragile"`

	AverageConfidence float64 `bson:"averageConfidence" json:"average_confidence"`
	HelpRequestRate   float64 `bson:"helpRequestRate" json:"help_request_rate"`
	WrongAnswerRate   float64 `bson:"wrongAnswerRate" json:"wrong_answer_rate"`
	FilterRiskScore   float64 `bson:"filterRiskScore" json:"filter_risk_score"`

	LastStruggleDate *time.Time `bson:"lastStruggleDate,omitempty" json:"last_struggle_date,omitempty"`
	LastSessionAt    *time.Time `bson:"lastSessionAt,omitempty" json:"last_session_at,omitempty"`

	// RiskDecayedAt marks how far the nightly decay has already been applied,
	// so repeated runs never compound the same days of absence twice.
	RiskDecayedAt *time.Time `bson:"riskDecayedAt,omitempty" json:"risk_decayed_at,omitempty"`

	// Learner preferences read by session planning
	InterestTopics        []string `bson:"interestTopics,omitempty" json:"interest_topics,omitempty"`
	PreferredActivityType string   `bson:"preferredActivityType,omitempty" json:"preferred_activity_type,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updated_at"`
}
