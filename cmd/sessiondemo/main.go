package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/joho/godotenv"

	"linguaflow/internal/config"
	"linguaflow/internal/database"
	"linguaflow/internal/models"
	"linguaflow/internal/services"
)

// sessiondemo drives one complete simulated session against a real store:
// prepare, loop activities with randomized outcomes, summarize. Useful for
// exercising the full pedagogy loop against local MongoDB without a client
// application.
func main() {
	learnerID := flag.String("learner", "demo-learner", "learner ID to run the session for")
	topic := flag.String("topic", "", "topic override (empty = detected interest)")
	accuracy := flag.Float64("accuracy", 0.8, "probability the simulated learner answers correctly")
	flag.Parse()

	if err := godotenv.Load(); err == nil {
		log.Println("✅ .env file loaded")
	}

	cfg := config.Load()

	mongoDB, err := database.NewMongoDB(cfg.MongoURI, cfg.DatabaseName)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Close(context.Background())

	tuningStore := config.NewTuningStore(config.DefaultTuning())

	profileService := services.NewProfileService(mongoDB)
	chunkService := services.NewChunkService(mongoDB)
	contentService := services.NewContentService(
		cfg.ContentServiceURL,
		cfg.ContentRatePerSecond,
		cfg.ContentCacheTTL,
		cfg.ContentRequestTimeout,
		chunkService,
	)
	encounterService := services.NewEncounterService(chunkService, profileService, tuningStore)

	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Fatalf("❌ Failed to connect to Redis: %v", err)
		}
		defer redisService.Close()
	}

	var sessionService *services.SessionService
	if redisService != nil {
		sessionService = services.NewSessionService(profileService, chunkService, contentService, encounterService, redisService, tuningStore)
	} else {
		sessionService = services.NewSessionService(profileService, chunkService, contentService, encounterService, nil, tuningStore)
	}

	ctx := context.Background()
	plan, err := sessionService.PrepareSession(ctx, *learnerID, services.SessionOptions{Topic: *topic})
	if err != nil {
		log.Fatalf("❌ PrepareSession failed: %v", err)
	}
	fmt.Printf("Session %s: topic=%s level %.1f -> %.1f, %d new / %d review / %d context\n",
		plan.SessionID, plan.Topic, plan.CurrentLevel, plan.TargetLevel,
		len(plan.NewChunkIDs), len(plan.ReviewChunkIDs), len(plan.ContextChunkIDs))

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		rec, err := sessionService.GetNextActivity(plan.SessionID)
		if err != nil {
			log.Fatalf("❌ GetNextActivity failed: %v", err)
		}
		if rec.Done {
			fmt.Println("No material left.")
			break
		}

		correct := rng.Float64() < *accuracy
		result := models.ActivityResult{
			Type:           rec.Type,
			Kind:           rec.Kind,
			ChunkIDs:       rec.ChunkIDs,
			Correct:        correct,
			FirstTry:       correct,
			UsedHelp:       !correct && rng.Float64() < 0.5,
			ResponseTimeMs: 800 + rng.Int63n(2400),
		}
		action, err := sessionService.ReportActivityCompletion(ctx, plan.SessionID, result)
		if err != nil {
			log.Fatalf("❌ ReportActivityCompletion failed: %v", err)
		}

		outcome := "✗"
		if correct {
			outcome = "✓"
		}
		fmt.Printf("  %s %s (%s) on %d chunk(s)", outcome, rec.Type, rec.Kind, len(rec.ChunkIDs))
		if action.Type != models.AdaptNone {
			fmt.Printf("  -> %s: %s", action.Type, action.Message)
		}
		fmt.Println()

		if end, reason, _ := sessionService.ShouldEndSession(plan.SessionID); end {
			fmt.Printf("Session over: %s\n", reason)
			break
		}
	}

	summary, err := sessionService.GenerateSessionSummary(ctx, plan.SessionID)
	if err != nil {
		log.Fatalf("❌ GenerateSessionSummary failed: %v", err)
	}
	fmt.Printf("\nSummary: %d activities, %.0f%% accuracy, %d points, %d new, %d reviewed, topic health %d\n",
		summary.ActivitiesDone, summary.Accuracy*100, summary.RewardPoints,
		summary.NewChunks, summary.ReviewedChunks, summary.TopicHealth)
	for _, tip := range summary.Tips {
		fmt.Println("  💡 " + tip)
	}
}
