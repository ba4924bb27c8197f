package course

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"lessonforge/internal/lesson"
	"lessonforge/internal/middleware"
	"lessonforge/internal/quota"
	"lessonforge/internal/text"
)

type Handler struct {
	service   *Service
	extractor *Extractor
	maxUpload int64
}

func NewHandler(service *Service, extractor *Extractor, maxUpload int64) *Handler {
	return &Handler{service: service, extractor: extractor, maxUpload: maxUpload}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	h.create(w, r, req)
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "File too large", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "Unable to retrieve file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, title, err := h.extractor.FromFile(header.Filename, file)
	if err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	req := CreateRequest{
		Title:     r.FormValue("title"),
		Content:   content,
		Origin:    text.OriginDocument,
		SourceRef: header.Filename,
		Workflow:  r.FormValue("workflow"),
	}
	if req.Title == "" {
		req.Title = title
	}
	h.create(w, r, req)
}

func (h *Handler) ImportURL(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL      string `json:"url"`
		Title    string `json:"title"`
		Workflow string `json:"workflow"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if body.URL == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "URL is required", http.StatusBadRequest)
		return
	}

	content, title, err := h.extractor.FromURL(r.Context(), body.URL)
	if err != nil {
		slog.WarnContext(r.Context(), "url import failed", "error", err, "url", body.URL)
		if errors.Is(err, ErrFetchFailed) {
			h.writeError(r.Context(), w, "FETCH_FAILED", err.Error(), http.StatusBadGateway)
			return
		}
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	req := CreateRequest{
		Title:     body.Title,
		Content:   content,
		Origin:    text.OriginURL,
		SourceRef: body.URL,
		Workflow:  body.Workflow,
	}
	if req.Title == "" {
		req.Title = title
	}
	h.create(w, r, req)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, req CreateRequest) {
	ctx := r.Context()
	c, err := h.service.Create(ctx, middleware.GetUserID(ctx), req)
	if err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": c}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	f := ListFilter{UserID: middleware.GetUserID(ctx), Status: q.Get("status")}
	var err error
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "limit must be a non-negative integer", http.StatusBadRequest)
		return
	}
	if f.Offset, err = intParam(q.Get("offset")); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "offset must be a non-negative integer", http.StatusBadRequest)
		return
	}

	courses, err := h.service.List(ctx, f)
	if err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}
	if courses == nil {
		courses = []Course{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": courses,
		"meta": map[string]int{"count": len(courses)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	detail, err := h.service.Get(ctx, middleware.GetUserID(ctx), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": detail}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Delete(ctx, middleware.GetUserID(ctx), r.PathValue("id")); err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Regenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body struct {
		Workflow string `json:"workflow"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := h.service.Regenerate(ctx, middleware.GetUserID(ctx), r.PathValue("id"), body.Workflow); err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": "course requeued"}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

type previewLine struct {
	Lesson *lesson.Lesson `json:"lesson,omitempty"`
	Error  *lineError     `json:"error,omitempty"`
}

type lineError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Preview streams generated lessons as NDJSON, flushing after each line.
// Generation stops when the client goes away.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	results, err := h.service.Preview(ctx, middleware.GetUserID(ctx), req)
	if err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	count := 0
	for res := range results {
		line := previewLine{Lesson: res.Lesson}
		if res.Err != nil {
			line = previewLine{Error: &lineError{Code: "VALIDATION_ERROR", Message: res.Err.Error()}}
		}
		if err := enc.Encode(line); err != nil {
			slog.WarnContext(ctx, "preview client gone", "error", err, "sent", count)
			return
		}
		if err := rc.Flush(); err != nil {
			slog.WarnContext(ctx, "flush failed", "error", err)
		}
		count++
	}
	slog.InfoContext(ctx, "preview streamed", "lines", count)
}

func (h *Handler) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var qe *QuotaError
	switch {
	case errors.As(err, &qe):
		retry := int(time.Until(qe.Decision.ResetAt).Seconds())
		if retry > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(retry))
		}
		h.writeError(ctx, w, "RATE_LIMITED", err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, ErrInvalidCourse), errors.Is(err, quota.ErrUnknownKind):
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrDuplicate):
		h.writeError(ctx, w, "CONFLICT", "Duplicate detected", http.StatusConflict)
	case errors.Is(err, ErrNotFound):
		h.writeError(ctx, w, "NOT_FOUND", "Course not found", http.StatusNotFound)
	default:
		slog.ErrorContext(ctx, "operation failed", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
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

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("invalid")
	}
	return n, nil
}
