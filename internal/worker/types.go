package worker

import (
	"context"
	"errors"

	"lessonforge/internal/lesson"
	"lessonforge/internal/text"
	"lessonforge/internal/vector"
)

// ErrCourseNotFound is returned by a CourseStore when the course is gone,
// e.g. deleted while its message was queued.
var ErrCourseNotFound = errors.New("course not found")

const (
	StatusGenerating = "generating"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// GenerationInput is everything the generation consumer needs from a course.
type GenerationInput struct {
	UserID   string
	Content  string
	Workflow string
	Params   text.Params
}

type CourseStore interface {
	GetGenerationInput(ctx context.Context, courseID string) (*GenerationInput, error)
	UpdateStatus(ctx context.Context, courseID, status, errMsg string) error
	DeleteLessons(ctx context.Context, courseID string) error
	SaveLesson(ctx context.Context, courseID string, l *lesson.Lesson) error
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	StoreLesson(ctx context.Context, doc vector.LessonDocument) error
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}
