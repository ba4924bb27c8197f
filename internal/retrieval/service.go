package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"lessonforge/internal/adapter/gemini"
	"lessonforge/internal/middleware"
	"lessonforge/internal/settings"
)

var ErrEmptyQuery = errors.New("query is required")

// SearchResult is one indexed lesson matching a query.
type SearchResult struct {
	CourseID    string  `json:"courseId"`
	LessonIndex int     `json:"lessonIndex"`
	Title       string  `json:"title"`
	Summary     string  `json:"summary,omitempty"`
	Content     string  `json:"content"`
	Topic       string  `json:"topic,omitempty"`
	Complexity  string  `json:"complexity,omitempty"`
	Score       float32 `json:"score"`
}

// Filters narrow a search. Zero values match everything.
type Filters struct {
	CourseID   string
	Complexity string
}

type SearchOptions struct {
	Alpha   *float32
	Limit   *int
	Filters Filters
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	Search(ctx context.Context, query string, vector []float32, alpha float32, limit int, filters Filters) ([]SearchResult, error)
}

type Service struct {
	embedder Embedder
	store    VectorStore
	settings *settings.Service
	logger   *QueryLogger
}

func NewService(e Embedder, s VectorStore, set *settings.Service, l *QueryLogger) *Service {
	return &Service{embedder: e, store: s, settings: set, logger: l}
}

func (s *Service) Search(ctx context.Context, query string, opts *SearchOptions) ([]SearchResult, error) {
	start := time.Now()
	var docs []SearchResult
	var courseID string
	var err error

	defer func() {
		if s.logger != nil && err == nil {
			s.logger.Log(QueryLogEntry{
				Query:         query,
				CourseID:      courseID,
				NumResults:    len(docs),
				Duration:      time.Since(start),
				CorrelationID: middleware.GetCorrelationID(ctx),
			})
		}
	}()

	query = strings.TrimSpace(query)
	if query == "" {
		err = ErrEmptyQuery
		return nil, err
	}

	alpha, limit := float32(0.5), 10
	if cfg, serr := s.settings.Get(ctx); serr == nil {
		alpha, limit = cfg.SearchAlpha, cfg.SearchTopK
	}

	var filters Filters
	if opts != nil {
		if opts.Alpha != nil {
			alpha = *opts.Alpha
		}
		if opts.Limit != nil {
			limit = *opts.Limit
		}
		filters = opts.Filters
	}
	courseID = filters.CourseID

	vec, err := s.embedder.Embed(ctx, query)
	switch {
	case errors.Is(err, gemini.ErrNoAPIKey):
		// Lessons were indexed without vectors too; BM25 alone still ranks them.
		slog.WarnContext(ctx, "no embedding key configured, falling back to keyword search")
		vec, alpha, err = nil, 0, nil
	case err != nil:
		return nil, err
	}

	// Hybrid: BM25 over lesson text blended with vector similarity by alpha.
	docs, err = s.store.Search(ctx, query, vec, alpha, limit, filters)
	if err != nil {
		return nil, err
	}
	return docs, nil
}
