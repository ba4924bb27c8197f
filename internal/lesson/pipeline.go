package lesson

import (
	"context"
	"iter"
	"log/slog"
	"strings"

	"lessonforge/internal/generation"
	"lessonforge/internal/text"
)

// Pipeline runs normalize, split, filter, chunk and a workflow over raw text.
// It keeps no state between calls.
type Pipeline struct {
	gen     generation.Generator
	chunker *text.Chunker

	// Strategy names the chunking strategy; empty means semantic.
	Strategy string
	// MinSentenceLength drops shorter sentences; zero uses the text default.
	MinSentenceLength int
}

// NewPipeline builds a pipeline. gen may be nil, which restricts it to the
// cheap workflow; chunker may be nil for the built-in strategies.
func NewPipeline(gen generation.Generator, chunker *text.Chunker) *Pipeline {
	if chunker == nil {
		chunker = text.NewChunker()
	}
	return &Pipeline{gen: gen, chunker: chunker}
}

// Chunk runs the text stages only.
func (p *Pipeline) Chunk(ctx context.Context, content string, params text.Params) (text.ChunkingResult, error) {
	if err := params.Validate(); err != nil {
		return text.ChunkingResult{}, err
	}
	sentences := text.FilterSentences(text.SplitSentences(text.Clean(content)), p.MinSentenceLength)
	return p.chunker.ChunkText(ctx, sentences, p.Strategy, params)
}

// GenerateLessons yields one result per chunk, in order, generating each
// lesson only when the consumer pulls it. Input errors (unknown workflow,
// invalid params) come back as a single failed result. Blank content yields
// nothing.
func (p *Pipeline) GenerateLessons(ctx context.Context, content, workflow string, params text.Params) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		wf, err := SelectWorkflow(workflow, p.gen)
		if err != nil {
			yield(Result{Err: err})
			return
		}
		if err := params.Validate(); err != nil {
			yield(Result{Err: err})
			return
		}
		if strings.TrimSpace(content) == "" {
			return
		}

		chunked, err := p.Chunk(ctx, content, params)
		if err != nil {
			yield(Result{Err: err})
			return
		}
		slog.InfoContext(ctx, "content chunked",
			"workflow", wf.Name(),
			"strategy", chunked.Strategy,
			"sentences", chunked.TotalSentences,
			"chunks", len(chunked.Chunks),
		)

		for res := range wf.Run(ctx, chunked.Chunks) {
			slog.InfoContext(ctx, "lesson generated",
				"index", res.Lesson.Index,
				"outcome", res.Lesson.Outcome,
				"fallback_fields", len(res.Lesson.FallbackFields),
			)
			if !yield(res) {
				return
			}
		}
	}
}
