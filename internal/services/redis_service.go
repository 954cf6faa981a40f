package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// sessionLockTTL bounds how long an abandoned session stays fenced before
// another instance may claim the learner again.
const sessionLockTTL = 2 * time.Hour

// RedisService provides Redis-backed session fencing so two instances never
// orchestrate the same session concurrently. Optional: when Redis is not
// configured, the orchestrator runs unfenced (single node).
type RedisService struct {
	client *redis.Client
}

// NewRedisService creates a new Redis service instance
func NewRedisService(redisURL string) (*RedisService, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Println("✅ Redis connection established")
	return &RedisService{client: client}, nil
}

// Acquire claims a session for this instance. Fails with ErrSessionLocked if
// another instance already holds it.
func (r *RedisService) Acquire(ctx context.Context, sessionID, learnerID string) error {
	ok, err := r.client.SetNX(ctx, sessionLockKey(sessionID), learnerID, sessionLockTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire session lock: %w", err)
	}
	if !ok {
		return ErrSessionLocked
	}
	return nil
}

// Release frees a session lock. Best-effort: the TTL cleans up after crashes.
func (r *RedisService) Release(ctx context.Context, sessionID string) {
	if err := r.client.Del(ctx, sessionLockKey(sessionID)).Err(); err != nil {
		log.Printf("⚠️  Failed to release session lock %s: %v", sessionID, err)
	}
}

// Close closes the Redis connection
func (r *RedisService) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func sessionLockKey(sessionID string) string {
	return "linguaflow:session:" + sessionID
}
