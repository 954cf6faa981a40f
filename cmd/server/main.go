package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"linguaflow/internal/config"
	"linguaflow/internal/database"
	"linguaflow/internal/jobs"
	"linguaflow/internal/logging"
	"linguaflow/internal/services"
)

// The pedagogy loop itself (session preparation, activity reporting,
// summaries) is a library surface consumed by the embedding application;
// this binary runs the shared infrastructure around it: the learner store,
// the nightly filter-risk decay, tuning hot-reload, and metrics.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting LinguaFlow pedagogy service...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()

	// Pedagogy tuning: built-in defaults, optionally overridden from YAML
	// with hot reload.
	tuning := config.DefaultTuning()
	if cfg.TuningPath != "" {
		loaded, err := config.LoadTuning(cfg.TuningPath)
		if err != nil {
			log.Fatalf("❌ Failed to load tuning file %s: %v", cfg.TuningPath, err)
		}
		tuning = loaded
		log.Printf("✅ Pedagogy tuning loaded from %s", cfg.TuningPath)
	}
	tuningStore := config.NewTuningStore(tuning)
	if cfg.TuningPath != "" {
		go config.WatchTuningFile(cfg.TuningPath, tuningStore)
	}

	// MongoDB
	mongoDB, err := database.NewMongoDB(cfg.MongoURI, cfg.DatabaseName)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Close(context.Background())

	// Metrics
	services.InitMetrics()

	// Nightly filter-risk decay
	if cfg.DecayJobEnabled {
		scheduler, err := jobs.NewScheduler()
		if err != nil {
			log.Fatalf("❌ Failed to create job scheduler: %v", err)
		}
		decayJob := jobs.NewFilterDecayJob(mongoDB, tuningStore)
		if err := scheduler.RegisterDaily(decayJob, cfg.DecayJobHourUTC); err != nil {
			log.Fatalf("❌ Failed to register decay job: %v", err)
		}
		scheduler.Start()
		defer func() {
			if err := scheduler.Stop(); err != nil {
				log.Printf("⚠️  Scheduler shutdown error: %v", err)
			}
		}()
	} else {
		log.Println("⚠️  Filter-risk decay job disabled")
	}

	// Prometheus metrics endpoint
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: promhttp.Handler(),
	}
	go func() {
		log.Printf("📊 Metrics listening on :%s/metrics", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("⚠️  Metrics server error: %v", err)
		}
	}()

	log.Println("✅ LinguaFlow ready")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Metrics server shutdown error: %v", err)
	}
	log.Println("✅ Shutdown complete")
}
