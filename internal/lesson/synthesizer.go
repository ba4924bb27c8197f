package lesson

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"lessonforge/internal/generation"
	"lessonforge/internal/text"
)

var ErrAllStepsFailed = errors.New("every enrichment step failed")

// Synthesizer runs an enrichment plan against one chunk. Steps run one after
// another; a failed step gets its fallback value and the rest still run.
type Synthesizer struct {
	gen generation.Generator
}

func NewSynthesizer(gen generation.Generator) *Synthesizer {
	return &Synthesizer{gen: gen}
}

// Synthesize returns the enriched lesson with FallbackFields listing every
// field that did not get a usable generated value. When no step produced
// anything usable it returns ErrAllStepsFailed wrapping each step's error.
func (s *Synthesizer) Synthesize(ctx context.Context, c text.Chunk, plan Plan) (Lesson, error) {
	if err := plan.Validate(); err != nil {
		return Lesson{}, err
	}

	l := Heuristic(c)
	l.Outcome = OutcomeAttempted
	if len(plan) == 0 {
		return l, nil
	}

	var errs []error
	for _, step := range plan {
		err := s.runStep(ctx, c, step, &l)
		if err == nil {
			continue
		}
		slog.WarnContext(ctx, "enrichment step fell back", "chunk", c.Index, "field", step.Field, "error", err)
		l.FallbackFields = append(l.FallbackFields, step.Field)
		errs = append(errs, fmt.Errorf("%s: %w", step.Field, err))
	}

	if len(errs) == len(plan) {
		return l, fmt.Errorf("%w: %w", ErrAllStepsFailed, errors.Join(errs...))
	}
	return l, nil
}

// runStep fills one field on l. A non-nil error means the field holds a
// fallback value.
func (s *Synthesizer) runStep(ctx context.Context, c text.Chunk, step Step, l *Lesson) error {
	data := promptData{
		Topic:         c.Topic,
		Complexity:    c.Complexity,
		Title:         l.Title,
		Content:       c.Text,
		ExerciseCount: exerciseCount(c.Complexity),
	}
	if step.dependsOn(FieldContent) {
		data.Content = l.Content
	}

	req, err := catalogue.request(step.Field, data)
	if err != nil {
		apply(l, step.Field, step.Fallback(c))
		return err
	}

	res := s.gen.Invoke(ctx, req)
	if !res.OK() {
		if step.Field.Shape() == generation.ShapeList && errors.Is(res.Err(), generation.ErrMalformedList) {
			apply(l, step.Field, generation.Payload{List: []string{}})
			return res.Err()
		}
		apply(l, step.Field, step.Fallback(c))
		return res.Err()
	}

	payload := res.Data()
	if step.Field.Shape() == generation.ShapeList {
		items, err := payload.Items()
		if err != nil {
			// Unparseable lists become empty rather than falling back.
			apply(l, step.Field, generation.Payload{List: []string{}})
			return err
		}
		apply(l, step.Field, generation.Payload{List: items})
		return nil
	}

	if strings.TrimSpace(payload.Text) == "" {
		apply(l, step.Field, step.Fallback(c))
		return errors.New("empty text payload")
	}
	apply(l, step.Field, generation.Payload{Text: strings.TrimSpace(payload.Text)})
	return nil
}

func apply(l *Lesson, f Field, p generation.Payload) {
	switch f {
	case FieldTitle:
		l.Title = p.Text
	case FieldContent:
		l.Content = p.Text
	case FieldSummary:
		l.Summary = p.Text
	case FieldObjectives:
		l.Objectives = p.List
	case FieldExercises:
		l.Exercises = p.List
	}
}
