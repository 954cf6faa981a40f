package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"linguaflow/internal/models"
)

// ContentRequest asks the generation backend for new chunks.
type ContentRequest struct {
	Language string   `json:"language"`
	Topic    string   `json:"topic"`
	Level    float64  `json:"level"`
	Count    int      `json:"count"`
	Known    []string `json:"known_chunks,omitempty"` // texts to avoid repeating
}

type generateResponse struct {
	Chunks []struct {
		Text        string  `json:"text"`
		Translation string  `json:"translation"`
		Topic       string  `json:"topic"`
		Level       float64 `json:"level"`
	} `json:"chunks"`
}

// ContentService calls the external content-generation backend for new
// chunks at a target difficulty. Generation is best-effort: the session
// pipeline treats any failure here as "no new material this session", so
// errors are logged and surfaced but never fatal upstream.
type ContentService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *gocache.Cache
	chunks     *ChunkService
	logger     *logrus.Logger
}

// NewContentService creates a content generation client. baseURL may be
// empty, which disables generation entirely (review-only deployments).
func NewContentService(baseURL string, ratePerSecond float64, cacheTTL, requestTimeout time.Duration, chunks *ChunkService) *ContentService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &ContentService{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSecond), 1),
		cache:      gocache.New(cacheTTL, 2*cacheTTL),
		chunks:     chunks,
		logger:     logger,
	}
}

// Enabled reports whether a generation backend is configured.
func (s *ContentService) Enabled() bool {
	return s.baseURL != ""
}

// GenerateChunks requests new chunks, persists them, and returns them ready
// to introduce. Results are cached per (language, topic, level) so retried
// sessions don't hammer the backend.
func (s *ContentService) GenerateChunks(ctx context.Context, req ContentRequest) ([]models.Chunk, error) {
	if !s.Enabled() {
		return nil, nil
	}
	if req.Count <= 0 {
		return nil, nil
	}

	cacheKey := fmt.Sprintf("%s:%s:%.1f", req.Language, req.Topic, req.Level)
	if cached, found := s.cache.Get(cacheKey); found {
		chunks := cached.([]models.Chunk)
		if len(chunks) >= req.Count {
			return chunks[:req.Count], nil
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	generated, err := s.callGenerate(ctx, req)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"topic": req.Topic,
			"level": req.Level,
			"error": err.Error(),
		}).Warn("content generation failed")
		return nil, err
	}

	persisted, err := s.chunks.CreateChunks(ctx, generated)
	if err != nil {
		return nil, fmt.Errorf("failed to persist generated chunks: %w", err)
	}

	s.cache.Set(cacheKey, persisted, gocache.DefaultExpiration)

	s.logger.WithFields(logrus.Fields{
		"topic": req.Topic,
		"level": req.Level,
		"count": len(persisted),
	}).Info("generated chunks")

	return persisted, nil
}

func (s *ContentService) callGenerate(ctx context.Context, req ContentRequest) ([]models.Chunk, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generation backend returned %d", resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode generation response: %w", err)
	}

	chunks := make([]models.Chunk, 0, len(parsed.Chunks))
	for _, c := range parsed.Chunks {
		if c.Text == "" {
			continue
		}
		level := c.Level
		if level == 0 {
			level = req.Level
		}
		topic := c.Topic
		if topic == "" {
			topic = req.Topic
		}
		chunks = append(chunks, models.Chunk{
			Text:        c.Text,
			Translation: c.Translation,
			Language:    req.Language,
			Topic:       topic,
			Level:       level,
		})
	}
	return chunks, nil
}
