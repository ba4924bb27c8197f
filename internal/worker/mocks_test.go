package worker_test

import (
	"context"
	"iter"

	"github.com/stretchr/testify/mock"

	"lessonforge/features/job"
	"lessonforge/internal/lesson"
	"lessonforge/internal/text"
	"lessonforge/internal/vector"
	"lessonforge/internal/worker"
)

// Mocks

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockVectorStore struct{ mock.Mock }

func (m *MockVectorStore) StoreLesson(ctx context.Context, doc vector.LessonDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

type MockCourseStore struct{ mock.Mock }

func (m *MockCourseStore) GetGenerationInput(ctx context.Context, courseID string) (*worker.GenerationInput, error) {
	args := m.Called(ctx, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*worker.GenerationInput), args.Error(1)
}

func (m *MockCourseStore) UpdateStatus(ctx context.Context, courseID, status, errMsg string) error {
	args := m.Called(ctx, courseID, status, errMsg)
	return args.Error(0)
}

func (m *MockCourseStore) DeleteLessons(ctx context.Context, courseID string) error {
	args := m.Called(ctx, courseID)
	return args.Error(0)
}

func (m *MockCourseStore) SaveLesson(ctx context.Context, courseID string, l *lesson.Lesson) error {
	args := m.Called(ctx, courseID, l)
	return args.Error(0)
}

type MockJobRepo struct{ mock.Mock }

func (m *MockJobRepo) Save(ctx context.Context, j *job.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

type MockTaskPublisher struct{ mock.Mock }

func (m *MockTaskPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

// stubLessons replays fixed results and records what it was asked for.
type stubLessons struct {
	results  []lesson.Result
	workflow string
	params   text.Params
}

func (s *stubLessons) GenerateLessons(_ context.Context, _, workflow string, params text.Params) iter.Seq[lesson.Result] {
	s.workflow = workflow
	s.params = params
	return func(yield func(lesson.Result) bool) {
		for _, r := range s.results {
			if !yield(r) {
				return
			}
		}
	}
}

// objectStore keeps the last document per ObjectID, like the vector index.
type objectStore struct {
	objects map[string]vector.LessonDocument
}

func (s *objectStore) StoreLesson(_ context.Context, doc vector.LessonDocument) error {
	if s.objects == nil {
		s.objects = map[string]vector.LessonDocument{}
	}
	s.objects[doc.ObjectID()] = doc
	return nil
}
