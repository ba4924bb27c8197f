package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"lessonforge/internal/middleware"
	"lessonforge/internal/text"
)

const maxSearchLimit = 50

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Search serves GET /lessons/search?q=&course_id=&complexity=&limit=&alpha=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	opts := &SearchOptions{Filters: Filters{CourseID: q.Get("course_id")}}

	if c := q.Get("complexity"); c != "" {
		if !text.Complexity(c).Valid() {
			h.writeError(ctx, w, "VALIDATION_ERROR", "complexity must be beginner, intermediate or advanced", http.StatusBadRequest)
			return
		}
		opts.Filters.Complexity = c
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSearchLimit {
			h.writeError(ctx, w, "VALIDATION_ERROR", "limit must be between 1 and 50", http.StatusBadRequest)
			return
		}
		opts.Limit = &n
	}
	if raw := q.Get("alpha"); raw != "" {
		f, err := strconv.ParseFloat(raw, 32)
		if err != nil || f < 0 || f > 1 {
			h.writeError(ctx, w, "VALIDATION_ERROR", "alpha must be between 0 and 1", http.StatusBadRequest)
			return
		}
		alpha := float32(f)
		opts.Alpha = &alpha
	}

	results, err := h.svc.Search(ctx, q.Get("q"), opts)
	if err != nil {
		if errors.Is(err, ErrEmptyQuery) {
			h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
			return
		}
		slog.ErrorContext(ctx, "search failed", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "search failed", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []SearchResult{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": results,
		"meta": map[string]int{"count": len(results)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
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
