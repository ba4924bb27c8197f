package course

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"lessonforge/internal/config"
	"lessonforge/internal/lesson"
	"lessonforge/internal/middleware"
	"lessonforge/internal/quota"
	"lessonforge/internal/settings"
	"lessonforge/internal/text"
	"lessonforge/internal/worker"
)

var (
	ErrDuplicate     = errors.New("duplicate detected")
	ErrNotFound      = errors.New("course not found")
	ErrInvalidCourse = errors.New("invalid course")
)

const StatusQueued = "queued"

const maxTitleLen = 80

type Course struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	Title        string      `json:"title"`
	Origin       text.Origin `json:"origin"`
	SourceRef    string      `json:"source_ref,omitempty"`
	Content      string      `json:"-"`
	ContentHash  string      `json:"-"`
	Workflow     string      `json:"workflow"`
	MaxChunkSize int         `json:"max_chunk_size"`
	MinChunkSize int         `json:"min_chunk_size"`
	Status       string      `json:"status"`
	Error        string      `json:"error,omitempty"`
	LessonCount  int         `json:"lesson_count"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (c *Course) Params() text.Params {
	return text.Params{MaxChunkSize: c.MaxChunkSize, MinChunkSize: c.MinChunkSize}
}

type Detail struct {
	Course
	Lessons []lesson.Lesson `json:"lessons"`
}

type ListFilter struct {
	UserID string
	Status string
	Limit  int
	Offset int
}

// CreateRequest is an import to turn into a course. Zero workflow and chunk
// sizes fall back to the stored settings.
type CreateRequest struct {
	Title        string      `json:"title"`
	Content      string      `json:"content"`
	Origin       text.Origin `json:"origin"`
	SourceRef    string      `json:"source_ref,omitempty"`
	Workflow     string      `json:"workflow"`
	MaxChunkSize int         `json:"max_chunk_size"`
	MinChunkSize int         `json:"min_chunk_size"`
}

// QuotaError reports a denied import together with when the allowance resets.
type QuotaError struct {
	Decision quota.Decision
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: %d of %d used", quota.ErrQuotaExceeded, e.Decision.Used, e.Decision.Limit)
}

func (e *QuotaError) Unwrap() error { return quota.ErrQuotaExceeded }

type Repository interface {
	Save(ctx context.Context, c *Course) error
	ExistsByHash(ctx context.Context, userID, hash string) (bool, error)
	Get(ctx context.Context, id string) (*Course, error)
	List(ctx context.Context, f ListFilter) ([]Course, error)
	Lessons(ctx context.Context, courseID string) ([]lesson.Lesson, error)
	UpdateStatus(ctx context.Context, id, status, errMsg string) error
	Requeue(ctx context.Context, id, workflow string) error
	SoftDelete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	CountLessons(ctx context.Context) (int, error)
}

type LessonIndex interface {
	DeleteLessonsByCourse(ctx context.Context, courseID string) error
}

type LessonGenerator interface {
	GenerateLessons(ctx context.Context, content, workflow string, params text.Params) iter.Seq[lesson.Result]
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type SettingsService interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

type Service struct {
	repo     Repository
	pub      EventPublisher
	index    LessonIndex
	limiter  quota.Limiter
	settings SettingsService
	lessons  LessonGenerator
}

func NewService(repo Repository, pub EventPublisher, index LessonIndex, limiter quota.Limiter, set SettingsService, lessons LessonGenerator) *Service {
	return &Service{repo: repo, pub: pub, index: index, limiter: limiter, settings: set, lessons: lessons}
}

// Create validates an import, charges it against the user's daily quota and
// queues it for generation.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (*Course, error) {
	c, err := s.prepare(ctx, userID, req, true)
	if err != nil {
		return nil, err
	}

	hash := sha256.Sum256([]byte(c.Content))
	c.ContentHash = fmt.Sprintf("%x", hash)

	exists, err := s.repo.ExistsByHash(ctx, userID, c.ContentHash)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicate
	}

	if err := s.charge(ctx, userID, c.Origin); err != nil {
		return nil, err
	}

	c.Status = StatusQueued
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, c.ID, ""); err != nil {
		if upErr := s.repo.UpdateStatus(ctx, c.ID, worker.StatusFailed, err.Error()); upErr != nil {
			slog.WarnContext(ctx, "failed to mark unqueued course as failed", "error", upErr, "course_id", c.ID)
		}
		return nil, fmt.Errorf("failed to enqueue course: %w", err)
	}
	return c, nil
}

// Preview runs the pipeline inline. The sequence stops as soon as ctx is
// cancelled or the caller stops ranging.
func (s *Service) Preview(ctx context.Context, userID string, req CreateRequest) (iter.Seq[lesson.Result], error) {
	c, err := s.prepare(ctx, userID, req, false)
	if err != nil {
		return nil, err
	}
	if c.Content == "" {
		// Nothing to chunk, so nothing to charge for.
		return func(func(lesson.Result) bool) {}, nil
	}
	if err := s.charge(ctx, userID, c.Origin); err != nil {
		return nil, err
	}
	return s.lessons.GenerateLessons(ctx, c.Content, c.Workflow, c.Params()), nil
}

// owned loads a course of userID. Another user's course reads as missing.
func (s *Service) owned(ctx context.Context, userID, id string) (*Course, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (*Detail, error) {
	c, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	lessons, err := s.repo.Lessons(ctx, id)
	if err != nil {
		return nil, err
	}
	if lessons == nil {
		lessons = []lesson.Lesson{}
	}
	return &Detail{Course: *c, Lessons: lessons}, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Course, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.index.DeleteLessonsByCourse(ctx, id); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, id)
}

// Regenerate drops a course's lessons and queues it again, optionally with a
// different workflow.
func (s *Service) Regenerate(ctx context.Context, userID, id, workflow string) error {
	c, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if workflow == "" {
		workflow = c.Workflow
	}
	if !lesson.ValidWorkflow(workflow) {
		return fmt.Errorf("%w: %w %q", ErrInvalidCourse, lesson.ErrUnknownWorkflow, workflow)
	}

	if err := s.index.DeleteLessonsByCourse(ctx, id); err != nil {
		slog.WarnContext(ctx, "failed to clear indexed lessons", "error", err, "course_id", id)
	}
	if err := s.repo.Requeue(ctx, id, workflow); err != nil {
		return err
	}
	return s.enqueue(ctx, id, workflow)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *Service) CountLessons(ctx context.Context) (int, error) {
	return s.repo.CountLessons(ctx)
}

// prepare validates req and fills defaults from settings.
func (s *Service) prepare(ctx context.Context, userID string, req CreateRequest, requireContent bool) (*Course, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" && requireContent {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidCourse)
	}

	origin := req.Origin
	if origin == "" {
		origin = text.OriginText
	}
	if !origin.Valid() {
		return nil, fmt.Errorf("%w: unknown origin %q", ErrInvalidCourse, origin)
	}

	c := &Course{
		UserID:       userID,
		Title:        strings.TrimSpace(req.Title),
		Origin:       origin,
		SourceRef:    req.SourceRef,
		Content:      content,
		Workflow:     req.Workflow,
		MaxChunkSize: req.MaxChunkSize,
		MinChunkSize: req.MinChunkSize,
	}

	if c.Workflow == "" || c.MaxChunkSize == 0 || c.MinChunkSize == 0 {
		set, err := s.settings.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load settings: %w", err)
		}
		if c.Workflow == "" {
			c.Workflow = set.DefaultWorkflow
		}
		if c.MaxChunkSize == 0 {
			c.MaxChunkSize = set.MaxChunkSize
		}
		if c.MinChunkSize == 0 {
			c.MinChunkSize = set.MinChunkSize
		}
	}

	if !lesson.ValidWorkflow(c.Workflow) {
		return nil, fmt.Errorf("%w: %w %q", ErrInvalidCourse, lesson.ErrUnknownWorkflow, c.Workflow)
	}
	if err := c.Params().Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCourse, err)
	}

	if c.Title == "" && content != "" {
		c.Title = deriveTitle(content)
	}
	return c, nil
}

func (s *Service) charge(ctx context.Context, userID string, origin text.Origin) error {
	decision, err := s.limiter.CheckQuota(ctx, userID, origin)
	if err != nil {
		return fmt.Errorf("quota check failed: %w", err)
	}
	if !decision.Allowed {
		return &QuotaError{Decision: decision}
	}
	if err := s.limiter.RecordUsage(ctx, userID, origin); err != nil {
		slog.WarnContext(ctx, "failed to record quota usage", "error", err, "user_id", userID)
	}
	return nil
}

func (s *Service) enqueue(ctx context.Context, courseID, workflow string) error {
	payload, _ := json.Marshal(worker.GeneratePayload{
		CourseID:      courseID,
		Workflow:      workflow,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err := s.pub.Publish(config.TopicCourseGenerate, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish course.generate event", "error", err, "course_id", courseID)
		return err
	}
	slog.InfoContext(ctx, "published course.generate event", "course_id", courseID)
	return nil
}

// deriveTitle uses the first line of content, cut at a word boundary.
func deriveTitle(content string) string {
	line, _, _ := strings.Cut(content, "\n")
	line = strings.TrimSpace(strings.TrimLeft(line, "#*- "))
	runes := []rune(line)
	if len(runes) <= maxTitleLen {
		return line
	}
	cut := string(runes[:maxTitleLen])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}
