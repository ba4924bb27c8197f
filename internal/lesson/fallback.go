package lesson

import (
	"context"
	"errors"
	"log/slog"

	"lessonforge/internal/text"
)

// FallbackController guarantees one lesson per chunk. Whole-chunk failures
// get the heuristic lesson; partial failures are marked degraded.
type FallbackController struct {
	synth *Synthesizer
	plan  Plan
}

func NewFallbackController(synth *Synthesizer, plan Plan) *FallbackController {
	return &FallbackController{synth: synth, plan: plan}
}

func (f *FallbackController) Run(ctx context.Context, c text.Chunk) Lesson {
	l, err := f.synth.Synthesize(ctx, c, f.plan)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	switch {
	case err == nil && len(l.FallbackFields) == 0:
		l.Outcome = OutcomeSuccess
		return l
	case err == nil:
		l.Outcome = OutcomeDegraded
		return l
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrAllStepsFailed):
		slog.WarnContext(ctx, "chunk generation failed, using heuristic lesson", "chunk", c.Index, "error", err)
	default:
		slog.ErrorContext(ctx, "chunk synthesis error, using heuristic lesson", "chunk", c.Index, "error", err)
	}

	h := Heuristic(c)
	h.Outcome = OutcomeHeuristicFallback
	return h
}
