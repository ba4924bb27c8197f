package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nsqio/go-nsq"

	"lessonforge/internal/adapter/gemini"
	"lessonforge/internal/middleware"
	"lessonforge/internal/vector"
)

const embedTimeout = 60 * time.Second

// IndexConsumer embeds generated lessons and stores them for search.
type IndexConsumer struct {
	embedder Embedder
	store    VectorStore
}

func NewIndexConsumer(e Embedder, s VectorStore) *IndexConsumer {
	return &IndexConsumer{embedder: e, store: s}
}

func (h *IndexConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IndexPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}
	ctx = middleware.WithCourseID(ctx, payload.CourseID)

	embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	vec, err := h.embedder.Embed(embedCtx, contextualText(payload))
	switch {
	case errors.Is(err, gemini.ErrNoAPIKey):
		// Keyword search still works on an object without a vector.
		slog.WarnContext(ctx, "no embedding key configured, indexing without vector", "lesson_index", payload.LessonIndex)
	case err != nil:
		slog.ErrorContext(ctx, "embedding failed", "error", err, "lesson_index", payload.LessonIndex)
		return err // Retry
	}

	doc := vector.LessonDocument{
		CourseID:    payload.CourseID,
		LessonIndex: payload.LessonIndex,
		Title:       payload.Title,
		Content:     payload.Content,
		Summary:     payload.Summary,
		Topic:       payload.Topic,
		Complexity:  payload.Complexity,
		Vector:      vec,
	}
	if err := h.store.StoreLesson(embedCtx, doc); err != nil {
		slog.ErrorContext(ctx, "store lesson failed", "error", err, "lesson_index", payload.LessonIndex)
		return err // Retry
	}

	slog.InfoContext(ctx, "lesson indexed", "lesson_index", payload.LessonIndex)
	return nil
}

// contextualText prefixes the lesson body with its metadata so the embedding
// carries the title and topic too.
func contextualText(p IndexPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\nTopic: %s\nComplexity: %s", p.Title, p.Topic, p.Complexity)
	if p.Summary != "" {
		fmt.Fprintf(&b, "\nSummary: %s", p.Summary)
	}
	fmt.Fprintf(&b, "\n---\n%s", p.Content)
	return b.String()
}
