package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lessonforge/internal/lesson"
	"lessonforge/internal/text"
)

var ErrInvalidSettings = errors.New("invalid settings")

const keyMask = "****"

type Settings struct {
	ID              int     `json:"-"`
	GeminiAPIKey    string  `json:"gemini_api_key"`
	GeminiModel     string  `json:"gemini_model"`
	DefaultWorkflow string  `json:"default_workflow"`
	MaxChunkSize    int     `json:"max_chunk_size"`
	MinChunkSize    int     `json:"min_chunk_size"`
	SearchAlpha     float32 `json:"search_alpha"`
	SearchTopK      int     `json:"search_top_k"`
}

// ChunkParams returns the configured chunk bounds.
func (s *Settings) ChunkParams() text.Params {
	return text.Params{MaxChunkSize: s.MaxChunkSize, MinChunkSize: s.MinChunkSize}
}

// Redacted returns a copy safe to send to clients: only the last four
// characters of the API key survive.
func (s Settings) Redacted() Settings {
	if s.GeminiAPIKey == "" {
		return s
	}
	tail := s.GeminiAPIKey
	if len(tail) > 4 {
		tail = tail[len(tail)-4:]
	}
	s.GeminiAPIKey = keyMask + tail
	return s
}

func (s *Settings) Validate() error {
	if !lesson.ValidWorkflow(s.DefaultWorkflow) {
		return fmt.Errorf("%w: unknown workflow %q", ErrInvalidSettings, s.DefaultWorkflow)
	}
	if err := s.ChunkParams().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if s.SearchAlpha < 0 || s.SearchAlpha > 1 {
		return fmt.Errorf("%w: search_alpha must be within [0, 1]", ErrInvalidSettings)
	}
	if s.SearchTopK <= 0 {
		return fmt.Errorf("%w: search_top_k must be positive", ErrInvalidSettings)
	}
	return nil
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

// Update stores set. A blank or redacted API key keeps the stored one, so a
// client can round-trip what GET returned.
func (s *Service) Update(ctx context.Context, set *Settings) error {
	if err := set.Validate(); err != nil {
		return err
	}
	if set.GeminiAPIKey == "" || strings.HasPrefix(set.GeminiAPIKey, keyMask) {
		current, err := s.repo.Get(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch settings: %w", err)
		}
		set.GeminiAPIKey = current.GeminiAPIKey
	}
	return s.repo.Update(ctx, set)
}

// Seed fills blank Gemini fields from the environment so a fresh install
// works without a settings round-trip.
func (s *Service) Seed(ctx context.Context, apiKey, model string) error {
	set, err := s.repo.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch settings: %w", err)
	}

	changed := false
	if set.GeminiAPIKey == "" && apiKey != "" {
		set.GeminiAPIKey = apiKey
		changed = true
	}
	if set.GeminiModel == "" && model != "" {
		set.GeminiModel = model
		changed = true
	}
	if !changed {
		return nil
	}
	return s.repo.Update(ctx, set)
}
