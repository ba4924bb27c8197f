package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"lessonforge/internal/lesson"
	"lessonforge/internal/text"
	"lessonforge/internal/worker"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const courseColumns = `c.id, c.user_id, c.title, c.origin, c.source_ref, c.workflow, c.max_chunk_size, c.min_chunk_size, c.status, c.error, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM lessons l WHERE l.course_id = c.id)`

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCourse(row scanner) (*Course, error) {
	c := &Course{}
	var origin string
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &origin, &c.SourceRef, &c.Workflow, &c.MaxChunkSize, &c.MinChunkSize,
		&c.Status, &c.Error, &c.CreatedAt, &c.UpdatedAt, &c.LessonCount)
	if err != nil {
		return nil, err
	}
	c.Origin = text.Origin(origin)
	return c, nil
}

func (r *PostgresRepo) ExistsByHash(ctx context.Context, userID, hash string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM courses WHERE user_id = $1 AND content_hash = $2 AND status <> 'failed' AND deleted_at IS NULL)`
	if err := r.db.QueryRowContext(ctx, query, userID, hash).Scan(&exists); err != nil {
		return false, fmt.Errorf("duplicate check: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepo) Save(ctx context.Context, c *Course) error {
	query := `INSERT INTO courses (user_id, title, origin, source_ref, content, content_hash, workflow, max_chunk_size, min_chunk_size, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, query, c.UserID, c.Title, string(c.Origin), c.SourceRef, c.Content, c.ContentHash,
		c.Workflow, c.MaxChunkSize, c.MinChunkSize, c.Status).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses c WHERE c.id = $1 AND c.deleted_at IS NULL`
	c, err := scanCourse(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (r *PostgresRepo) List(ctx context.Context, f ListFilter) ([]Course, error) {
	q := psql.Select(courseColumns).
		From("courses c").
		Where(sq.Eq{"c.deleted_at": nil}).
		OrderBy("c.created_at DESC")
	if f.UserID != "" {
		q = q.Where(sq.Eq{"c.user_id": f.UserID})
	}
	if f.Status != "" {
		q = q.Where(sq.Eq{"c.status": f.Status})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, *c)
	}
	return courses, rows.Err()
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	query := `UPDATE courses SET status = $1, error = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, status, errMsg, id)
	return err
}

func (r *PostgresRepo) Requeue(ctx context.Context, id, workflow string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM lessons WHERE course_id = $1`, id); err != nil {
		return err
	}
	query := `UPDATE courses SET status = $1, workflow = $2, error = '', updated_at = NOW() WHERE id = $3`
	if _, err := tx.ExecContext(ctx, query, StatusQueued, workflow, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PostgresRepo) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE courses SET deleted_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses WHERE deleted_at IS NULL`).Scan(&count)
	return count, err
}

func (r *PostgresRepo) CountLessons(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM lessons l JOIN courses c ON c.id = l.course_id WHERE c.deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

func (r *PostgresRepo) Lessons(ctx context.Context, courseID string) ([]lesson.Lesson, error) {
	query := `SELECT lesson_index, title, content, summary, objectives, resources, exercises, topic, complexity, outcome, fallback_fields
		FROM lessons WHERE course_id = $1 ORDER BY lesson_index`
	rows, err := r.db.QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lessons []lesson.Lesson
	for rows.Next() {
		var l lesson.Lesson
		var complexity, outcome string
		var fallback []string
		if err := rows.Scan(&l.Index, &l.Title, &l.Content, &l.Summary, pq.Array(&l.Objectives), pq.Array(&l.Resources),
			pq.Array(&l.Exercises), &l.Topic, &complexity, &outcome, pq.Array(&fallback)); err != nil {
			return nil, err
		}
		l.Complexity = text.Complexity(complexity)
		l.Outcome = lesson.Outcome(outcome)
		for _, f := range fallback {
			l.FallbackFields = append(l.FallbackFields, lesson.Field(f))
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

// The methods below serve the generation worker.

func (r *PostgresRepo) GetGenerationInput(ctx context.Context, courseID string) (*worker.GenerationInput, error) {
	in := &worker.GenerationInput{}
	query := `SELECT user_id, content, workflow, max_chunk_size, min_chunk_size FROM courses WHERE id = $1 AND deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query, courseID).
		Scan(&in.UserID, &in.Content, &in.Workflow, &in.Params.MaxChunkSize, &in.Params.MinChunkSize)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, worker.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	return in, nil
}

func (r *PostgresRepo) DeleteLessons(ctx context.Context, courseID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM lessons WHERE course_id = $1`, courseID)
	return err
}

func (r *PostgresRepo) SaveLesson(ctx context.Context, courseID string, l *lesson.Lesson) error {
	fallback := make([]string, len(l.FallbackFields))
	for i, f := range l.FallbackFields {
		fallback[i] = string(f)
	}
	query := `INSERT INTO lessons (course_id, lesson_index, title, content, summary, objectives, resources, exercises, topic, complexity, outcome, fallback_fields)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (course_id, lesson_index) DO UPDATE SET
			title = EXCLUDED.title, content = EXCLUDED.content, summary = EXCLUDED.summary,
			objectives = EXCLUDED.objectives, resources = EXCLUDED.resources, exercises = EXCLUDED.exercises,
			topic = EXCLUDED.topic, complexity = EXCLUDED.complexity, outcome = EXCLUDED.outcome,
			fallback_fields = EXCLUDED.fallback_fields`
	_, err := r.db.ExecContext(ctx, query, courseID, l.Index, l.Title, l.Content, l.Summary,
		pq.Array(nonNil(l.Objectives)), pq.Array(nonNil(l.Resources)), pq.Array(nonNil(l.Exercises)),
		l.Topic, string(l.Complexity), string(l.Outcome), pq.Array(fallback))
	return err
}

// nonNil keeps NOT NULL array columns satisfied; pq encodes a nil slice as NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
