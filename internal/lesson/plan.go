package lesson

import (
	"errors"
	"fmt"
	"slices"

	"lessonforge/internal/generation"
	"lessonforge/internal/text"
)

var ErrInvalidPlan = errors.New("invalid enrichment plan")

type Field string

const (
	FieldTitle      Field = "title"
	FieldContent    Field = "content"
	FieldSummary    Field = "summary"
	FieldObjectives Field = "objectives"
	FieldExercises  Field = "exercises"
)

func (f Field) Shape() generation.Shape {
	if f == FieldObjectives || f == FieldExercises {
		return generation.ShapeList
	}
	return generation.ShapeText
}

// Step describes one enrichment call: which field it fills, which earlier
// fields its input depends on, and what to use when the call fails.
type Step struct {
	Field     Field
	DependsOn []Field
	Fallback  func(c text.Chunk) generation.Payload
}

type Plan []Step

// Validate checks that every dependency is produced by an earlier step and
// that no field is generated twice.
func (p Plan) Validate() error {
	seen := map[Field]bool{}
	for i, s := range p {
		if _, ok := catalogue.Fields[s.Field]; !ok {
			return fmt.Errorf("%w: step %d has no prompt for %q", ErrInvalidPlan, i, s.Field)
		}
		if seen[s.Field] {
			return fmt.Errorf("%w: field %q generated twice", ErrInvalidPlan, s.Field)
		}
		for _, d := range s.DependsOn {
			if !seen[d] {
				return fmt.Errorf("%w: %q depends on %q which is not produced earlier", ErrInvalidPlan, s.Field, d)
			}
		}
		if s.Fallback == nil {
			return fmt.Errorf("%w: %q has no fallback", ErrInvalidPlan, s.Field)
		}
		seen[s.Field] = true
	}
	return nil
}

func (p Plan) Fields() []Field {
	out := make([]Field, len(p))
	for i, s := range p {
		out[i] = s.Field
	}
	return out
}

func (s Step) dependsOn(f Field) bool { return slices.Contains(s.DependsOn, f) }

func fallbackTitle(c text.Chunk) generation.Payload   { return generation.Payload{Text: c.Topic} }
func fallbackContent(c text.Chunk) generation.Payload { return generation.Payload{Text: c.Text} }
func fallbackSummary(c text.Chunk) generation.Payload { return generation.Payload{Text: c.Summary} }

func fallbackObjectives(c text.Chunk) generation.Payload {
	return generation.Payload{List: []string{objectiveFor(c.Topic)}}
}

func fallbackExercises(text.Chunk) generation.Payload { return generation.Payload{} }

// HybridPlan generates the auxiliary fields straight from the chunk text and
// keeps the chunk's own title and content.
func HybridPlan() Plan {
	return Plan{
		{Field: FieldSummary, Fallback: fallbackSummary},
		{Field: FieldObjectives, Fallback: fallbackObjectives},
		{Field: FieldExercises, Fallback: fallbackExercises},
	}
}

// PremiumPlan rewrites title and content first and derives everything else
// from the rewritten content.
func PremiumPlan() Plan {
	fromContent := []Field{FieldContent}
	return Plan{
		{Field: FieldTitle, Fallback: fallbackTitle},
		{Field: FieldContent, Fallback: fallbackContent},
		{Field: FieldSummary, DependsOn: fromContent, Fallback: fallbackSummary},
		{Field: FieldObjectives, DependsOn: fromContent, Fallback: fallbackObjectives},
		{Field: FieldExercises, DependsOn: fromContent, Fallback: fallbackExercises},
	}
}
