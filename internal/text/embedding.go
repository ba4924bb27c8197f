package text

import (
	"context"
	"fmt"
	"math"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingStrategy detects topic shifts by comparing the embedding of the
// incoming sentence with the previous one.
type EmbeddingStrategy struct {
	embedder  Embedder
	Threshold float64
	Annotator Annotator
}

func NewEmbeddingStrategy(e Embedder) *EmbeddingStrategy {
	return &EmbeddingStrategy{embedder: e, Threshold: 0.75, Annotator: DefaultAnnotator()}
}

func (s *EmbeddingStrategy) Name() string { return StrategyEmbedding }

func (s *EmbeddingStrategy) Chunk(ctx context.Context, sentences []Sentence, params Params) ([]Chunk, error) {
	if len(sentences) == 0 {
		return []Chunk{}, nil
	}

	vectors := make(map[int][]float32, len(sentences))
	vectorFor := func(sen Sentence) ([]float32, error) {
		if v, ok := vectors[sen.Position]; ok {
			return v, nil
		}
		v, err := s.embedder.Embed(ctx, sen.Text)
		if err != nil {
			return nil, fmt.Errorf("embed sentence %d: %w", sen.Position, err)
		}
		vectors[sen.Position] = v
		return v, nil
	}

	shift := func(current []Sentence, next Sentence) (bool, error) {
		if next.ParagraphStart {
			return true, nil
		}
		a, err := vectorFor(current[len(current)-1])
		if err != nil {
			return false, err
		}
		b, err := vectorFor(next)
		if err != nil {
			return false, err
		}
		return Cosine(a, b) < s.Threshold, nil
	}

	groups, err := accumulate(ctx, sentences, params, shift)
	if err != nil {
		return nil, err
	}
	return s.Annotator.build(groups), nil
}

// Cosine returns the cosine similarity of two vectors, 0 when either is empty
// or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
