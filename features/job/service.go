package job

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lessonforge/internal/config"
)

var ErrPublishTimeout = errors.New("timeout waiting for NSQ publish")

const publishTimeout = 5 * time.Second

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo    Repository
	pub     EventPublisher
	logger  *slog.Logger
	timeout time.Duration
}

func NewService(repo Repository, pub EventPublisher, logger *slog.Logger) *Service {
	return &Service{repo: repo, pub: pub, logger: logger, timeout: publishTimeout}
}

func (s *Service) List(ctx context.Context, f Filter) ([]Job, error) {
	return s.repo.List(ctx, f)
}

// Retry republishes the job's original message to course.generate and
// removes the job once nsqd has accepted it. The requeued job is returned.
func (s *Service) Retry(ctx context.Context, id string) (*Job, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.publish(ctx, job.Payload); err != nil {
		if incErr := s.repo.IncrementRetries(ctx, id); incErr != nil {
			s.logger.WarnContext(ctx, "failed to bump retry counter", "job_id", id, "error", incErr)
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "job republished", "job_id", id, "course_id", job.CourseID)
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, err
	}
	return job, nil
}

// publish bounds the producer call, which blocks while nsqd is unreachable.
func (s *Service) publish(ctx context.Context, body []byte) error {
	done := make(chan error, 1)
	go func() {
		done <- s.pub.Publish(config.TopicCourseGenerate, body)
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(s.timeout):
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
