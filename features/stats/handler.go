package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"lessonforge/internal/middleware"
)

type CourseRepo interface {
	Count(ctx context.Context) (int, error)
	CountLessons(ctx context.Context) (int, error)
}

type JobRepo interface {
	Count(ctx context.Context) (int, error)
}

type VectorStore interface {
	CountLessons(ctx context.Context) (int, error)
}

type Handler struct {
	courseRepo  CourseRepo
	jobRepo     JobRepo
	vectorStore VectorStore
}

func NewHandler(c CourseRepo, j JobRepo, v VectorStore) *Handler {
	return &Handler{courseRepo: c, jobRepo: j, vectorStore: v}
}

// StatsResponse compares stored lessons with indexed ones; a gap means
// indexing is behind or failed.
type StatsResponse struct {
	Courses        int `json:"courses"`
	Lessons        int `json:"lessons"`
	IndexedLessons int `json:"indexed_lessons"`
	FailedJobs     int `json:"failed_jobs"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	var resp StatsResponse
	counts := []struct {
		what string
		dst  *int
		fn   func(context.Context) (int, error)
	}{
		{"courses", &resp.Courses, h.courseRepo.Count},
		{"lessons", &resp.Lessons, h.courseRepo.CountLessons},
		{"jobs", &resp.FailedJobs, h.jobRepo.Count},
		{"indexed lessons", &resp.IndexedLessons, h.vectorStore.CountLessons},
	}
	for _, c := range counts {
		n, err := c.fn(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to count "+c.what, "error", err, "correlationId", correlationID)
			h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count "+c.what, http.StatusInternalServerError)
			return
		}
		*c.dst = n
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
