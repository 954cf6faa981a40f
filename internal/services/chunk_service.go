package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"linguaflow/internal/database"
	"linguaflow/internal/models"
	"linguaflow/internal/srs"
)

// ChunkService handles chunk content and per-learner acquisition records
// with MongoDB
type ChunkService struct {
	db      *database.MongoDB
	content *mongo.Collection // chunks
	records *mongo.Collection // user_chunks

	// interestCache keeps detected interest topics for an hour; the
	// aggregation behind them is a $lookup over every record the learner has.
	interestCache *gocache.Cache
}

// NewChunkService creates a new chunk service
func NewChunkService(db *database.MongoDB) *ChunkService {
	return &ChunkService{
		db:            db,
		content:       db.Collection(database.CollectionChunks),
		records:       db.Collection(database.CollectionUserChunks),
		interestCache: gocache.New(time.Hour, 2*time.Hour),
	}
}

// GetChunk retrieves one chunk by its ID.
func (s *ChunkService) GetChunk(ctx context.Context, id primitive.ObjectID) (*models.Chunk, error) {
	var chunk models.Chunk
	err := s.content.FindOne(ctx, bson.M{"_id": id}).Decode(&chunk)
	if err == mongo.ErrNoDocuments {
		return nil, ErrChunkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	return &chunk, nil
}

// CreateChunks inserts freshly generated chunks and returns them with IDs
// assigned. A nil or empty slice is a no-op.
func (s *ChunkService) CreateChunks(ctx context.Context, chunks []models.Chunk) ([]models.Chunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	now := time.Now()
	docs := make([]interface{}, 0, len(chunks))
	for i := range chunks {
		chunks[i].ID = primitive.NewObjectID()
		if chunks[i].CreatedAt.IsZero() {
			chunks[i].CreatedAt = now
		}
		docs = append(docs, chunks[i])
	}

	if _, err := s.content.InsertMany(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to insert chunks: %w", err)
	}
	return chunks, nil
}

// FindChunks returns chunks in a language within a level band, optionally
// filtered by topic, ordered easiest first.
func (s *ChunkService) FindChunks(ctx context.Context, language string, minLevel, maxLevel float64, topic string, limit int) ([]models.Chunk, error) {
	filter := bson.M{
		"language": language,
		"level":    bson.M{"$gte": minLevel, "$lte": maxLevel},
	}
	if topic != "" {
		filter["topic"] = topic
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "level", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := s.content.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find chunks: %w", err)
	}
	defer cursor.Close(ctx)

	var chunks []models.Chunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode chunks: %w", err)
	}
	return chunks, nil
}

// GetAcquisitionRecord retrieves the per-learner record for one chunk.
func (s *ChunkService) GetAcquisitionRecord(ctx context.Context, learnerID string, chunkID primitive.ObjectID) (*models.UserChunk, error) {
	var record models.UserChunk
	err := s.records.FindOne(ctx, bson.M{"learnerId": learnerID, "chunkId": chunkID}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, ErrChunkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get acquisition record: %w", err)
	}
	return &record, nil
}

// GetOrCreateAcquisitionRecord retrieves the record for (learner, chunk),
// creating it in the NEW state on first encounter. The unique index on
// (learnerId, chunkId) makes concurrent first encounters converge.
func (s *ChunkService) GetOrCreateAcquisitionRecord(ctx context.Context, learnerID string, chunkID primitive.ObjectID) (*models.UserChunk, error) {
	now := time.Now()
	initial := srs.NewItemState()

	filter := bson.M{"learnerId": learnerID, "chunkId": chunkID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"recordId":        uuid.New().String(),
			"learnerId":       learnerID,
			"chunkId":         chunkID,
			"status":          initial.Status,
			"easeFactor":      initial.EaseFactor,
			"interval":        initial.Interval,
			"repetitions":     initial.Repetitions,
			"nextReviewDate":  now.AddDate(0, 0, initial.Interval),
			"totalEncounters": 0,
			"correctFirstTry": 0,
			"wrongAttempts":   0,
			"helpUsedCount":   0,
			"confidenceScore": 0.5,
			"createdAt":       now,
			"updatedAt":       now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var record models.UserChunk
	if err := s.records.FindOneAndUpdate(ctx, filter, update, opts).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to get or create acquisition record: %w", err)
	}
	return &record, nil
}

// ApplyReview persists the scheduler output for one record and bumps the
// encounter counters from the raw activity outcome.
func (s *ChunkService) ApplyReview(ctx context.Context, recordID string, res srs.Result, correct, firstTry, usedHelp bool, confidence float64, now time.Time) error {
	inc := bson.M{"totalEncounters": 1}
	if correct && firstTry && !usedHelp {
		inc["correctFirstTry"] = 1
	}
	if !correct {
		inc["wrongAttempts"] = 1
	}
	if usedHelp {
		inc["helpUsedCount"] = 1
	}

	set := bson.M{
		"status":         res.Status,
		"easeFactor":     res.EaseFactor,
		"interval":       res.Interval,
		"repetitions":    res.Repetitions,
		"nextReviewDate": res.NextReviewDate,
		"lastReviewedAt": now,
		"updatedAt":      now,
	}
	if confidence >= 0 {
		set["confidenceScore"] = confidence
	}

	result, err := s.records.UpdateOne(ctx,
		bson.M{"recordId": recordID},
		bson.M{"$set": set, "$inc": inc},
	)
	if err != nil {
		return fmt.Errorf("failed to apply review: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrChunkNotFound
	}
	return nil
}

// FindDue returns acquisition records whose review date has arrived, hardest
// (lowest ease) first so shaky material is reviewed before time runs out.
func (s *ChunkService) FindDue(ctx context.Context, learnerID string, now time.Time, limit int) ([]models.UserChunk, error) {
	filter := bson.M{
		"learnerId":      learnerID,
		"nextReviewDate": bson.M{"$lte": now},
		"status": bson.M{"$in": []models.AcquisitionStatus{
			models.StatusLearning, models.StatusAcquired, models.StatusFragile,
		}},
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "easeFactor", Value: 1}, {Key: "nextReviewDate", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := s.records.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find due records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.UserChunk
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode due records: %w", err)
	}
	return records, nil
}

// FindByStatus returns acquisition records in a given state, oldest review
// first.
func (s *ChunkService) FindByStatus(ctx context.Context, learnerID string, status models.AcquisitionStatus, limit int) ([]models.UserChunk, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid acquisition status %q", status)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "nextReviewDate", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := s.records.Find(ctx, bson.M{"learnerId": learnerID, "status": status}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find records by status: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.UserChunk
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	return records, nil
}

// StatusBreakdown returns the acquisition statuses of all records under a
// topic for one learner, for topic health scoring.
func (s *ChunkService) StatusBreakdown(ctx context.Context, learnerID, topic string) ([]models.AcquisitionStatus, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"learnerId": learnerID}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         database.CollectionChunks,
			"localField":   "chunkId",
			"foreignField": "_id",
			"as":           "chunk",
		}}},
		{{Key: "$unwind", Value: "$chunk"}},
		{{Key: "$match", Value: bson.M{"chunk.topic": topic}}},
		{{Key: "$project", Value: bson.M{"status": 1}}},
	}

	cursor, err := s.records.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate topic statuses: %w", err)
	}
	defer cursor.Close(ctx)

	var statuses []models.AcquisitionStatus
	for cursor.Next(ctx) {
		var doc struct {
			Status models.AcquisitionStatus `bson:"status"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode topic status: %w", err)
		}
		statuses = append(statuses, doc.Status)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error aggregating topic statuses: %w", err)
	}
	return statuses, nil
}

// DetectInterestTopic returns the topic the learner has engaged with most
// across material they are learning or have acquired. Returns an empty
// string when the learner has no records yet.
func (s *ChunkService) DetectInterestTopic(ctx context.Context, learnerID string) (string, error) {
	if cached, found := s.interestCache.Get(learnerID); found {
		return cached.(string), nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"learnerId": learnerID,
			"status":    bson.M{"$in": []models.AcquisitionStatus{models.StatusLearning, models.StatusAcquired}},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         database.CollectionChunks,
			"localField":   "chunkId",
			"foreignField": "_id",
			"as":           "chunk",
		}}},
		{{Key: "$unwind", Value: "$chunk"}},
		{{Key: "$group", Value: bson.M{
			"_id":        "$chunk.topic",
			"encounters": bson.M{"$sum": "$totalEncounters"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "encounters", Value: -1}}}},
		{{Key: "$limit", Value: 1}},
	}

	cursor, err := s.records.Aggregate(ctx, pipeline)
	if err != nil {
		return "", fmt.Errorf("failed to detect interest topic: %w", err)
	}
	defer cursor.Close(ctx)

	if cursor.Next(ctx) {
		var doc struct {
			Topic string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return "", fmt.Errorf("failed to decode interest topic: %w", err)
		}
		s.interestCache.Set(learnerID, doc.Topic, gocache.DefaultExpiration)
		return doc.Topic, nil
	}
	return "", cursor.Err()
}
