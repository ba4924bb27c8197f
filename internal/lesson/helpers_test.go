package lesson

import (
	"context"
	"strings"
	"sync"

	"lessonforge/internal/generation"
	"lessonforge/internal/text"
)

const photosynthesis = "Photosynthesis is the process plants use to turn light into chemical energy. " +
	"Plants capture sunlight with chlorophyll inside the cells of their green leaves. " +
	"The captured energy powers the production of sugars that plants store and later use for growth." +
	"\n\n" +
	"Inside the chloroplast, the light reactions of photosynthesis split water molecules and release oxygen. " +
	"These reactions in plants also produce ATP and NADPH as short-term energy carriers. " +
	"Oxygen released by plants during this stage is what animals breathe." +
	"\n\n" +
	"The Calvin cycle of photosynthesis uses ATP and NADPH to fix carbon dioxide into sugar. " +
	"Plants run this cycle in the stroma of the chloroplast. " +
	"Because of this cycle, plants form the base of almost every food chain on Earth."

var smallParams = text.Params{MaxChunkSize: 300, MinChunkSize: 100}

// fieldOf recovers which field a request was rendered for.
func fieldOf(req generation.Request) Field {
	switch {
	case strings.Contains(req.User, "lesson title"):
		return FieldTitle
	case strings.Contains(req.User, "Rewrite the material"):
		return FieldContent
	case strings.Contains(req.User, "Summarize"):
		return FieldSummary
	case strings.Contains(req.User, "learning objectives"):
		return FieldObjectives
	case strings.Contains(req.User, "practice exercises"):
		return FieldExercises
	}
	return ""
}

// scriptedGenerator answers per field and records every request.
type scriptedGenerator struct {
	mu       sync.Mutex
	replies  map[Field]generation.Result
	requests []generation.Request
}

func newScripted(replies map[Field]generation.Result) *scriptedGenerator {
	return &scriptedGenerator{replies: replies}
}

func (g *scriptedGenerator) Invoke(_ context.Context, req generation.Request) generation.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if r, ok := g.replies[fieldOf(req)]; ok {
		return r
	}
	return generation.Fail(context.DeadlineExceeded)
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func healthyReplies() map[Field]generation.Result {
	return map[Field]generation.Result{
		FieldTitle:      generation.Ok(generation.Payload{Text: "How Plants Make Food"}),
		FieldContent:    generation.Ok(generation.Payload{Text: "REWRITTEN lesson body."}),
		FieldSummary:    generation.Ok(generation.Payload{Text: "Plants turn light into sugar."}),
		FieldObjectives: generation.Ok(generation.Payload{List: []string{"Explain photosynthesis", "Name its inputs"}}),
		FieldExercises:  generation.Ok(generation.Payload{Text: `["Draw a chloroplast", "List two products"]`}),
	}
}

func collect(seq func(func(Result) bool)) []Result {
	var out []Result
	for r := range seq {
		out = append(out, r)
	}
	return out
}
