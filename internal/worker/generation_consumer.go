package worker

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"lessonforge/features/job"
	"lessonforge/internal/config"
	"lessonforge/internal/lesson"
	"lessonforge/internal/middleware"
	"lessonforge/internal/text"
)

const generationHandler = "generation-worker"

type LessonGenerator interface {
	GenerateLessons(ctx context.Context, content, workflow string, params text.Params) iter.Seq[lesson.Result]
}

type JobSaver interface {
	Save(ctx context.Context, j *job.Job) error
}

// GenerationConsumer turns a queued course into persisted lessons.
type GenerationConsumer struct {
	courses     CourseStore
	lessons     LessonGenerator
	jobs        JobSaver
	publisher   TaskPublisher
	maxAttempts uint16
}

func NewGenerationConsumer(c CourseStore, g LessonGenerator, j JobSaver, p TaskPublisher, maxAttempts uint16) *GenerationConsumer {
	if maxAttempts == 0 {
		maxAttempts = 5
	}
	return &GenerationConsumer{courses: c, lessons: g, jobs: j, publisher: p, maxAttempts: maxAttempts}
}

// errInput marks failures that retrying cannot fix.
type errInput struct{ err error }

func (e errInput) Error() string { return e.err.Error() }
func (e errInput) Unwrap() error { return e.err }

func (h *GenerationConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload GeneratePayload
	err := json.Unmarshal(m.Body, &payload)

	correlationID := payload.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	ctx := middleware.WithCorrelationID(context.Background(), correlationID)

	if err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.ErrorContext(ctx, "poison pill: invalid json", "error", err)
		return nil
	}
	if payload.CourseID == "" {
		slog.ErrorContext(ctx, "missing course_id, dropping")
		return nil
	}
	ctx = middleware.WithCourseID(ctx, payload.CourseID)
	payload.CorrelationID = correlationID

	err = h.generate(ctx, m, payload)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCourseNotFound):
		slog.WarnContext(ctx, "course no longer exists, dropping")
		return nil
	case errors.As(err, new(errInput)):
		h.fail(ctx, payload.CourseID, m.Body, err)
		return nil
	case m.Attempts >= h.maxAttempts:
		slog.ErrorContext(ctx, "giving up after max attempts", "attempts", m.Attempts, "error", err)
		h.fail(ctx, payload.CourseID, m.Body, err)
		return nil
	default:
		slog.WarnContext(ctx, "generation failed, requeueing", "attempts", m.Attempts, "error", err)
		return err
	}
}

func (h *GenerationConsumer) generate(ctx context.Context, m *nsq.Message, payload GeneratePayload) error {
	input, err := h.courses.GetGenerationInput(ctx, payload.CourseID)
	if err != nil {
		return err
	}
	workflow := input.Workflow
	if payload.Workflow != "" {
		workflow = payload.Workflow
	}

	// Lessons of an interrupted earlier attempt are replaced, not appended to.
	if err := h.courses.DeleteLessons(ctx, payload.CourseID); err != nil {
		return err
	}
	if err := h.courses.UpdateStatus(ctx, payload.CourseID, StatusGenerating, ""); err != nil {
		return err
	}

	count := 0
	for res := range h.lessons.GenerateLessons(ctx, input.Content, workflow, input.Params) {
		if res.Err != nil {
			return errInput{res.Err}
		}
		if err := h.courses.SaveLesson(ctx, payload.CourseID, res.Lesson); err != nil {
			slog.ErrorContext(ctx, "failed to save lesson", "error", err, "lesson_index", res.Lesson.Index)
			return err
		}
		count++
		h.publishIndex(ctx, payload, res.Lesson)
		if m.Delegate != nil {
			m.Touch()
		}
	}

	if err := h.courses.UpdateStatus(ctx, payload.CourseID, StatusCompleted, ""); err != nil {
		return err
	}
	slog.InfoContext(ctx, "course generated", "lessons", count, "workflow", workflow)
	return nil
}

// publishIndex is best effort: a lesson missing from search must not undo
// the generation that produced it.
func (h *GenerationConsumer) publishIndex(ctx context.Context, payload GeneratePayload, l *lesson.Lesson) {
	body, err := json.Marshal(newIndexPayload(payload.CourseID, payload.CorrelationID, l))
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal index payload", "error", err)
		return
	}
	if err := h.publisher.Publish(config.TopicCourseIndex, body); err != nil {
		slog.WarnContext(ctx, "failed to publish to course.index", "error", err, "lesson_index", l.Index)
	}
}

func (h *GenerationConsumer) fail(ctx context.Context, courseID string, body []byte, cause error) {
	slog.ErrorContext(ctx, "course generation failed", "error", cause)

	if err := h.courses.UpdateStatus(ctx, courseID, StatusFailed, cause.Error()); err != nil {
		slog.WarnContext(ctx, "failed to update course status to failed", "error", err)
	}

	failedJob := &job.Job{
		CourseID: courseID,
		Handler:  generationHandler,
		Payload:  json.RawMessage(body),
		Error:    cause.Error(),
	}
	if err := h.jobs.Save(ctx, failedJob); err != nil {
		slog.ErrorContext(ctx, "failed to save failed job", "error", err)
		return
	}
	slog.InfoContext(ctx, "saved failed job for retry", "job_id", failedJob.ID)
}
