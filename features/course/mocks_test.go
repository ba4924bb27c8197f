package course_test

import (
	"context"
	"iter"
	"sync"

	"github.com/stretchr/testify/mock"

	"lessonforge/features/course"
	"lessonforge/internal/lesson"
	"lessonforge/internal/quota"
	"lessonforge/internal/settings"
	"lessonforge/internal/text"
)

type MockRepo struct{ mock.Mock }

func (m *MockRepo) Save(ctx context.Context, c *course.Course) error {
	args := m.Called(ctx, c)
	if args.Error(0) == nil {
		c.ID = "course-1"
	}
	return args.Error(0)
}

func (m *MockRepo) ExistsByHash(ctx context.Context, userID, hash string) (bool, error) {
	args := m.Called(ctx, userID, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepo) Get(ctx context.Context, id string) (*course.Course, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*course.Course), args.Error(1)
}

func (m *MockRepo) List(ctx context.Context, f course.ListFilter) ([]course.Course, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]course.Course), args.Error(1)
}

func (m *MockRepo) Lessons(ctx context.Context, courseID string) ([]lesson.Lesson, error) {
	args := m.Called(ctx, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]lesson.Lesson), args.Error(1)
}

func (m *MockRepo) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	return m.Called(ctx, id, status, errMsg).Error(0)
}

func (m *MockRepo) Requeue(ctx context.Context, id, workflow string) error {
	return m.Called(ctx, id, workflow).Error(0)
}

func (m *MockRepo) SoftDelete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockRepo) CountLessons(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(topic string, body []byte) error {
	return m.Called(topic, body).Error(0)
}

type MockIndex struct{ mock.Mock }

func (m *MockIndex) DeleteLessonsByCourse(ctx context.Context, courseID string) error {
	return m.Called(ctx, courseID).Error(0)
}

type MockLimiter struct{ mock.Mock }

func (m *MockLimiter) CheckQuota(ctx context.Context, userID string, kind text.Origin) (quota.Decision, error) {
	args := m.Called(ctx, userID, kind)
	return args.Get(0).(quota.Decision), args.Error(1)
}

func (m *MockLimiter) RecordUsage(ctx context.Context, userID string, kind text.Origin) error {
	return m.Called(ctx, userID, kind).Error(0)
}

type staticSettings struct{ s settings.Settings }

func (f staticSettings) Get(context.Context) (*settings.Settings, error) {
	s := f.s
	return &s, nil
}

func defaultSettings() staticSettings {
	return staticSettings{settings.Settings{DefaultWorkflow: "hybrid", MaxChunkSize: 1500, MinChunkSize: 300, SearchAlpha: 0.5, SearchTopK: 10}}
}

// countingGenerator replays fixed results and counts how many the caller
// pulled.
type countingGenerator struct {
	mu      sync.Mutex
	results []lesson.Result
	pulled  int
	calls   int
}

func (g *countingGenerator) GenerateLessons(context.Context, string, string, text.Params) iter.Seq[lesson.Result] {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	return func(yield func(lesson.Result) bool) {
		for _, r := range g.results {
			g.mu.Lock()
			g.pulled++
			g.mu.Unlock()
			if !yield(r) {
				return
			}
		}
	}
}

type fixture struct {
	repo    *MockRepo
	pub     *MockPublisher
	index   *MockIndex
	limiter *MockLimiter
	gen     *countingGenerator
	svc     *course.Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:    new(MockRepo),
		pub:     new(MockPublisher),
		index:   new(MockIndex),
		limiter: new(MockLimiter),
		gen:     &countingGenerator{},
	}
	f.svc = course.NewService(f.repo, f.pub, f.index, f.limiter, defaultSettings(), f.gen)
	return f
}

func allowed() quota.Decision   { return quota.Decision{Allowed: true, Used: 1, Limit: 50} }
func exhausted() quota.Decision { return quota.Decision{Allowed: false, Used: 50, Limit: 50} }
