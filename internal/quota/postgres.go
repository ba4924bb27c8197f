package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lessonforge/internal/text"
)

type PostgresLimiter struct {
	db     *sql.DB
	limits Limits
	now    func() time.Time
}

func NewPostgresLimiter(db *sql.DB, limits Limits) *PostgresLimiter {
	return &PostgresLimiter{db: db, limits: limits, now: time.Now}
}

func (l *PostgresLimiter) CheckQuota(ctx context.Context, userID string, kind text.Origin) (Decision, error) {
	limit, err := l.limits.limitFor(kind)
	if err != nil {
		return Decision{}, err
	}
	_, resetAt := day(l.now())
	today := resetAt.AddDate(0, 0, -1)

	var used int
	query := `SELECT count FROM usage_counters WHERE user_id = $1 AND kind = $2 AND day = $3`
	err = l.db.QueryRowContext(ctx, query, userID, string(kind), today).Scan(&used)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Decision{}, fmt.Errorf("failed to read usage: %w", err)
	}
	return decide(used, limit, resetAt), nil
}

func (l *PostgresLimiter) RecordUsage(ctx context.Context, userID string, kind text.Origin) error {
	if _, err := l.limits.limitFor(kind); err != nil {
		return err
	}
	_, resetAt := day(l.now())
	today := resetAt.AddDate(0, 0, -1)

	query := `
		INSERT INTO usage_counters (user_id, kind, day, count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (user_id, kind, day) DO UPDATE SET count = usage_counters.count + 1
	`
	if _, err := l.db.ExecContext(ctx, query, userID, string(kind), today); err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}
