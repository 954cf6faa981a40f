package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Job is a unit of scheduled maintenance work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs registered maintenance jobs on a daily cadence.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// NewScheduler creates a new job scheduler pinned to UTC.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

// RegisterDaily schedules a job to run every day at the given UTC hour.
func (s *Scheduler) RegisterDaily(job Job, hourUTC int) error {
	_, err := s.scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(hourUTC), 0, 0))),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()

			log.Printf("▶️  [SCHEDULER] Running job: %s", job.Name())
			start := time.Now()
			if err := job.Run(ctx); err != nil {
				log.Printf("❌ [SCHEDULER] Job '%s' failed: %v", job.Name(), err)
				return
			}
			log.Printf("✅ [SCHEDULER] Job '%s' completed in %v", job.Name(), time.Since(start))
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", job.Name(), err)
	}

	log.Printf("⏰ [SCHEDULER] Registered daily job '%s' at %02d:00 UTC", job.Name(), hourUTC)
	return nil
}

// Start begins running registered jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
	log.Println("🚀 [SCHEDULER] Job scheduler started")
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() error {
	log.Println("🛑 [SCHEDULER] Stopping job scheduler...")
	return s.scheduler.Shutdown()
}
