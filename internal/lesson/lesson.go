package lesson

import (
	"fmt"

	"lessonforge/internal/text"
)

// Outcome tracks a chunk through generation. Every lesson leaves the pipeline
// in one of the three terminal states.
type Outcome string

const (
	OutcomePending           Outcome = "pending"
	OutcomeAttempted         Outcome = "generation_attempted"
	OutcomeSuccess           Outcome = "success"
	OutcomeDegraded          Outcome = "degraded"
	OutcomeHeuristicFallback Outcome = "heuristic_fallback"
)

func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeSuccess, OutcomeDegraded, OutcomeHeuristicFallback:
		return true
	}
	return false
}

type Lesson struct {
	Index      int             `json:"index"`
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	Summary    string          `json:"summary"`
	Objectives []string        `json:"objectives"`
	Resources  []string        `json:"resources"`
	Exercises  []string        `json:"exercises"`
	Topic      string          `json:"topic"`
	Complexity text.Complexity `json:"complexity"`
	Outcome    Outcome         `json:"outcome"`
	// Fields whose generated value was replaced by a fallback.
	FallbackFields []Field `json:"fallback_fields,omitempty"`
}

// Result carries either a lesson or an input-level error.
type Result struct {
	Lesson *Lesson `json:"lesson,omitempty"`
	Err    error   `json:"-"`
}

func (r Result) OK() bool { return r.Err == nil && r.Lesson != nil }

func objectiveFor(topic string) string {
	return fmt.Sprintf("Understand the key ideas of %s.", topic)
}

// Heuristic builds a lesson from the chunk alone, without any generation.
func Heuristic(c text.Chunk) Lesson {
	return Lesson{
		Index:      c.Index,
		Title:      c.Topic,
		Content:    c.Text,
		Summary:    c.Summary,
		Objectives: []string{objectiveFor(c.Topic)},
		Resources:  []string{},
		Topic:      c.Topic,
		Complexity: c.Complexity,
		Outcome:    OutcomePending,
	}
}
