package app

import (
	"context"

	"lessonforge/internal/quota"
	"lessonforge/internal/retrieval"
	"lessonforge/internal/text"
	"lessonforge/internal/vector"
)

// MockVectorStore is a no-op VectorStore whose schema check can be made to
// fail.
type MockVectorStore struct {
	EnsureSchemaErr error
	Stored          []vector.LessonDocument
}

func (m *MockVectorStore) EnsureSchema(ctx context.Context) error { return m.EnsureSchemaErr }

func (m *MockVectorStore) StoreLesson(ctx context.Context, doc vector.LessonDocument) error {
	m.Stored = append(m.Stored, doc)
	return nil
}

func (m *MockVectorStore) DeleteLessonsByCourse(ctx context.Context, courseID string) error {
	return nil
}

func (m *MockVectorStore) Search(ctx context.Context, query string, vec []float32, alpha float32, limit int, f retrieval.Filters) ([]retrieval.SearchResult, error) {
	return nil, nil
}

func (m *MockVectorStore) CountLessons(ctx context.Context) (int, error) { return len(m.Stored), nil }

type MockPublisher struct {
	Topics []string
}

func (m *MockPublisher) Publish(topic string, body []byte) error {
	m.Topics = append(m.Topics, topic)
	return nil
}

type allowAll struct{}

func (allowAll) CheckQuota(context.Context, string, text.Origin) (quota.Decision, error) {
	return quota.Decision{Allowed: true, Limit: -1}, nil
}

func (allowAll) RecordUsage(context.Context, string, text.Origin) error { return nil }
