package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDB wraps the MongoDB client and database
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	dbName   string
}

// Collection names
const (
	CollectionLearnerProfiles = "learner_profiles"
	CollectionChunks          = "chunks"
	CollectionUserChunks      = "user_chunks"
)

// NewMongoDB creates a new MongoDB connection with connection pooling
func NewMongoDB(uri, dbName string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Printf("✅ Connected to MongoDB database %q", dbName)

	db := &MongoDB{
		client:   client,
		database: client.Database(dbName),
		dbName:   dbName,
	}

	if err := db.ensureIndexes(context.Background()); err != nil {
		log.Printf("⚠️  Failed to ensure indexes: %v", err)
	}

	return db, nil
}

// Collection returns a handle to the named collection
func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}

// Close disconnects the client
func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// ensureIndexes creates the indexes the pedagogy queries depend on.
func (m *MongoDB) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	profileIdx := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "learnerId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := m.Collection(CollectionLearnerProfiles).Indexes().CreateMany(ctx, profileIdx); err != nil {
		return fmt.Errorf("learner_profiles indexes: %w", err)
	}

	userChunkIdx := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "learnerId", Value: 1}, {Key: "chunkId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Due-item scans: learner + due date, hardest first within a day.
			Keys: bson.D{{Key: "learnerId", Value: 1}, {Key: "nextReviewDate", Value: 1}, {Key: "easeFactor", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "learnerId", Value: 1}, {Key: "status", Value: 1}},
		},
	}
	if _, err := m.Collection(CollectionUserChunks).Indexes().CreateMany(ctx, userChunkIdx); err != nil {
		return fmt.Errorf("user_chunks indexes: %w", err)
	}

	chunkIdx := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "language", Value: 1}, {Key: "level", Value: 1}, {Key: "topic", Value: 1}},
		},
	}
	if _, err := m.Collection(CollectionChunks).Indexes().CreateMany(ctx, chunkIdx); err != nil {
		return fmt.Errorf("chunks indexes: %w", err)
	}

	return nil
}
