package lesson

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"lessonforge/internal/generation"
	"lessonforge/internal/text"
)

var (
	ErrUnknownWorkflow = errors.New("unknown workflow")
	ErrNoGenerator     = errors.New("workflow needs a generator")
)

const (
	WorkflowCheap   = "cheap"
	WorkflowHybrid  = "hybrid"
	WorkflowPremium = "premium"
)

func ValidWorkflow(name string) bool {
	switch name {
	case WorkflowCheap, WorkflowHybrid, WorkflowPremium:
		return true
	}
	return false
}

// Workflow turns chunks into lessons, one per chunk and in chunk order. The
// returned sequence is lazy: a chunk is processed only when the consumer asks
// for the next lesson.
type Workflow interface {
	Name() string
	Run(ctx context.Context, chunks []text.Chunk) iter.Seq[Result]
}

// SelectWorkflow resolves a workflow by name. gen may be nil for cheap.
func SelectWorkflow(name string, gen generation.Generator) (Workflow, error) {
	switch name {
	case WorkflowCheap:
		return cheapWorkflow{}, nil
	case WorkflowHybrid:
		if gen == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoGenerator, name)
		}
		return newEnriched(name, gen, HybridPlan()), nil
	case WorkflowPremium:
		if gen == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoGenerator, name)
		}
		return newEnriched(name, gen, PremiumPlan()), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownWorkflow, name)
}

type cheapWorkflow struct{}

func (cheapWorkflow) Name() string { return WorkflowCheap }

func (cheapWorkflow) Run(ctx context.Context, chunks []text.Chunk) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		for _, c := range chunks {
			if ctx.Err() != nil {
				return
			}
			l := Heuristic(c)
			l.Outcome = OutcomeSuccess
			if !yield(Result{Lesson: &l}) {
				return
			}
		}
	}
}

type enrichedWorkflow struct {
	name       string
	controller *FallbackController
}

func newEnriched(name string, gen generation.Generator, plan Plan) *enrichedWorkflow {
	return &enrichedWorkflow{
		name:       name,
		controller: NewFallbackController(NewSynthesizer(gen), plan),
	}
}

func (w *enrichedWorkflow) Name() string { return w.name }

func (w *enrichedWorkflow) Run(ctx context.Context, chunks []text.Chunk) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		for _, c := range chunks {
			if ctx.Err() != nil {
				return
			}
			l := w.controller.Run(ctx, c)
			if !yield(Result{Lesson: &l}) {
				return
			}
		}
	}
}
