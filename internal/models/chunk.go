package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AcquisitionStatus tracks where a chunk sits in the learner's acquisition
// state machine: NEW → LEARNING → ACQUIRED ⇄ FRAGILE.
type AcquisitionStatus string

const (
	StatusNew      AcquisitionStatus = "new"
	StatusLearning AcquisitionStatus = "learning"
	StatusAcquired AcquisitionStatus = "acquired"
	StatusFragile  AcquisitionStatus = "fragile"
)

// Valid reports whether s is one of the four known statuses.
func (s AcquisitionStatus) Valid() bool {
	switch s {
	case StatusNew, StatusLearning, StatusAcquired, StatusFragile:
		return true
	}
	return false
}

// Chunk is an atomic piece of learnable content (a phrase).
type Chunk struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Text        string             `bson:"text" json:"text"`
	Translation string             `bson:"translation" json:"translation"`
	Language    string             `bson:"language" json:"language"`
	Topic       string             `bson:"topic" json:"topic"`
	Level       float64            `bson:"level" json:"level"` // 1-5 difficulty
	CreatedAt   time.Time          `bson:"createdAt" json:"created_at"`
}

// UserChunk is the per-(learner, chunk) acquisition record. It is created on
// the first encounter and mutated only by applying SRS scheduler output.
type UserChunk struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RecordID  string             `bson:"recordId" json:"record_id"` // stable uuid, survives re-import
	LearnerID string             `bson:"learnerId" json:"learner_id"`
	ChunkID   primitive.ObjectID `bson:"chunkId" json:"chunk_id"`

	Status      AcquisitionStatus `bson:"status" json:"status"`
	EaseFactor  float64           `bson:"easeFactor" json:"ease_factor"`
	Interval    int               `bson:"interval" json:"interval"` // days, >= 1
	Repetitions int               `bson:"repetitions" json:"repetitions"`

	NextReviewDate time.Time  `bson:"nextReviewDate" json:"next_review_date"`
	LastReviewedAt *time.Time `bson:"lastReviewedAt,omitempty" json:"last_reviewed_at,omitempty"`

	TotalEncounters int `bson:"totalEncounters" json:"total_encounters"`
	CorrectFirstTry int `bson:"correctFirstTry" json:"correct_first_try"`
	WrongAttempts   int `bson:"wrongAttempts" json:"wrong_attempts"`
	HelpUsedCount   int `bson:"helpUsedCount" json:"help_used_count"`

	ConfidenceScore float64 `bson:"confidenceScore" json:"confidence_score"` // 0-1

	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updated_at"`
}
