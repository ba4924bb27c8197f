package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lessonforge/internal/text"
)

var (
	ErrQuotaExceeded = errors.New("daily quota exceeded")
	ErrUnknownKind   = errors.New("unknown quota kind")
)

// Decision is the outcome of a quota check. Used counts today's imports
// before the one being checked.
type Decision struct {
	Allowed bool      `json:"allowed"`
	Used    int       `json:"used"`
	Limit   int       `json:"limit"`
	ResetAt time.Time `json:"reset_at"`
}

// Limiter tracks per-user daily imports by origin. Counters reset at UTC
// midnight.
type Limiter interface {
	CheckQuota(ctx context.Context, userID string, kind text.Origin) (Decision, error)
	RecordUsage(ctx context.Context, userID string, kind text.Origin) error
}

// Limits holds the daily allowance per origin. A negative limit disables the
// check for that origin.
type Limits map[text.Origin]int

func (l Limits) limitFor(kind text.Origin) (int, error) {
	limit, ok := l[kind]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return limit, nil
}

func decide(used, limit int, resetAt time.Time) Decision {
	return Decision{
		Allowed: limit < 0 || used < limit,
		Used:    used,
		Limit:   limit,
		ResetAt: resetAt,
	}
}

// day returns the UTC day containing now and the instant it ends.
func day(now time.Time) (string, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start.Format("20060102"), start.AddDate(0, 0, 1)
}
