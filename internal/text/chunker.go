package text

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrInvalidParams   = errors.New("invalid chunking parameters")
	ErrUnknownStrategy = errors.New("unknown chunking strategy")
)

const (
	StrategySemantic  = "semantic"
	StrategyEmbedding = "embedding"
)

// Params bounds chunk sizes, in characters.
type Params struct {
	MaxChunkSize int `json:"max_chunk_size"`
	MinChunkSize int `json:"min_chunk_size"`
}

func DefaultParams() Params {
	return Params{MaxChunkSize: 1500, MinChunkSize: 300}
}

func (p Params) Validate() error {
	if p.MaxChunkSize <= 0 || p.MinChunkSize <= 0 {
		return fmt.Errorf("%w: sizes must be positive (min=%d, max=%d)", ErrInvalidParams, p.MinChunkSize, p.MaxChunkSize)
	}
	if p.MinChunkSize > p.MaxChunkSize {
		return fmt.Errorf("%w: min %d exceeds max %d", ErrInvalidParams, p.MinChunkSize, p.MaxChunkSize)
	}
	return nil
}

// Chunk is an ordered run of consecutive sentences treated as one topic.
// Text is the sentences joined by single spaces; its rune count is the chunk size.
type Chunk struct {
	Index      int        `json:"index"`
	Sentences  []Sentence `json:"sentences"`
	Text       string     `json:"text"`
	Topic      string     `json:"topic"`
	Complexity Complexity `json:"complexity"`
	Summary    string     `json:"summary"`
}

func (c Chunk) Size() int { return utf8.RuneCountInString(c.Text) }

type ChunkingResult struct {
	Chunks         []Chunk `json:"chunks"`
	Strategy       string  `json:"strategy"`
	TotalSentences int     `json:"total_sentences"`
}

// Strategy partitions sentences into chunks.
type Strategy interface {
	Name() string
	Chunk(ctx context.Context, sentences []Sentence, params Params) ([]Chunk, error)
}

// Chunker resolves a strategy by name and runs it.
type Chunker struct {
	strategies map[string]Strategy
}

// NewChunker registers the semantic strategy plus any extra strategies given.
func NewChunker(extra ...Strategy) *Chunker {
	c := &Chunker{strategies: map[string]Strategy{}}
	c.Register(NewSemanticStrategy())
	for _, s := range extra {
		c.Register(s)
	}
	return c
}

func (c *Chunker) Register(s Strategy) {
	c.strategies[s.Name()] = s
}

func (c *Chunker) Strategies() []string {
	names := make([]string, 0, len(c.strategies))
	for name := range c.strategies {
		names = append(names, name)
	}
	return names
}

func (c *Chunker) ChunkText(ctx context.Context, sentences []Sentence, strategy string, params Params) (ChunkingResult, error) {
	if err := params.Validate(); err != nil {
		return ChunkingResult{}, err
	}
	if strategy == "" {
		strategy = StrategySemantic
	}
	s, ok := c.strategies[strategy]
	if !ok {
		return ChunkingResult{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	chunks, err := s.Chunk(ctx, sentences, params)
	if err != nil {
		return ChunkingResult{}, fmt.Errorf("chunk with %s: %w", strategy, err)
	}
	return ChunkingResult{Chunks: chunks, Strategy: strategy, TotalSentences: len(sentences)}, nil
}

var defaultChunker = NewChunker()

// ChunkText runs a built-in strategy with default heuristics.
func ChunkText(ctx context.Context, sentences []Sentence, strategy string, params Params) (ChunkingResult, error) {
	return defaultChunker.ChunkText(ctx, sentences, strategy, params)
}

// shiftFunc reports whether next starts a new topic relative to the chunk
// accumulated so far.
type shiftFunc func(current []Sentence, next Sentence) (bool, error)

// accumulate walks sentences in order. The max size is a hard ceiling; a topic
// shift closes a chunk only once it has reached the min size. A sentence is
// never split, so one longer than the max becomes a chunk of its own.
func accumulate(ctx context.Context, sentences []Sentence, params Params, shift shiftFunc) ([][]Sentence, error) {
	var groups [][]Sentence
	var current []Sentence
	size := 0

	for _, s := range sentences {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := utf8.RuneCountInString(s.Text)

		if len(current) > 0 {
			closeNow := size+1+n > params.MaxChunkSize
			if !closeNow && size >= params.MinChunkSize {
				shifted, err := shift(current, s)
				if err != nil {
					return nil, err
				}
				closeNow = shifted
			}
			if closeNow {
				groups = append(groups, current)
				current, size = nil, 0
			}
		}

		if len(current) == 0 {
			size = n
		} else {
			size += 1 + n
		}
		current = append(current, s)
	}

	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups, nil
}

// Annotator labels a sentence group with topic, complexity and summary.
type Annotator struct {
	Scorer     Scorer
	Labeler    Labeler
	Summarizer Summarizer
}

func DefaultAnnotator() Annotator {
	h := Heuristics{}
	return Annotator{Scorer: h, Labeler: h, Summarizer: h}
}

func (a Annotator) build(groups [][]Sentence) []Chunk {
	chunks := make([]Chunk, 0, len(groups))
	for i, g := range groups {
		texts := make([]string, len(g))
		for j, s := range g {
			texts[j] = s.Text
		}
		joined := strings.Join(texts, " ")
		chunks = append(chunks, Chunk{
			Index:      i,
			Sentences:  g,
			Text:       joined,
			Topic:      a.Labeler.DeriveTopic(g),
			Complexity: a.Scorer.ScoreComplexity(joined),
			Summary:    a.Summarizer.Summarize(g),
		})
	}
	return chunks
}

// SemanticStrategy detects topic shifts lexically: a new paragraph, or a
// sentence sharing no content term with the last few sentences of the chunk.
type SemanticStrategy struct {
	Annotator Annotator
	Window    int
}

func NewSemanticStrategy() *SemanticStrategy {
	return &SemanticStrategy{Annotator: DefaultAnnotator(), Window: 3}
}

func (s *SemanticStrategy) Name() string { return StrategySemantic }

func (s *SemanticStrategy) Chunk(ctx context.Context, sentences []Sentence, params Params) ([]Chunk, error) {
	if len(sentences) == 0 {
		return []Chunk{}, nil
	}
	groups, err := accumulate(ctx, sentences, params, s.shifted)
	if err != nil {
		return nil, err
	}
	return s.Annotator.build(groups), nil
}

func (s *SemanticStrategy) shifted(current []Sentence, next Sentence) (bool, error) {
	if next.ParagraphStart {
		return true, nil
	}

	nextTerms := termSet(next.Text)
	if len(nextTerms) < 3 {
		return false, nil
	}

	window := max(s.Window, 1)
	from := max(len(current)-window, 0)
	for _, prev := range current[from:] {
		for k := range termSet(prev.Text) {
			if nextTerms[k] {
				return false, nil
			}
		}
	}
	return true, nil
}
