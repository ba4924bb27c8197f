package text

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func prepare(raw string) []Sentence {
	return FilterSentences(SplitSentences(Clean(raw)), DefaultMinSentenceLength)
}

// corpus builds a deterministic multi-paragraph text whose sentences are all
// well under the chunk ceilings used below.
func corpus(paragraphs, perParagraph int) string {
	subjects := []string{"volcanoes", "glaciers", "rivers", "deserts", "forests"}
	var b strings.Builder
	for p := 0; p < paragraphs; p++ {
		if p > 0 {
			b.WriteString("\n\n")
		}
		subject := subjects[p%len(subjects)]
		for s := 0; s < perParagraph; s++ {
			if s > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "Observation %d shows that %s shape the landscape over time.", p*perParagraph+s, subject)
		}
	}
	return b.String()
}

func flatten(chunks []Chunk) []Sentence {
	var out []Sentence
	for _, c := range chunks {
		out = append(out, c.Sentences...)
	}
	return out
}

func TestParams_Validate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())
	assert.ErrorIs(t, Params{MaxChunkSize: 0, MinChunkSize: 10}.Validate(), ErrInvalidParams)
	assert.ErrorIs(t, Params{MaxChunkSize: 100, MinChunkSize: -1}.Validate(), ErrInvalidParams)
	assert.ErrorIs(t, Params{MaxChunkSize: 100, MinChunkSize: 500}.Validate(), ErrInvalidParams)
}

func TestChunkText(t *testing.T) {
	ctx := context.Background()

	t.Run("Empty input yields no chunks", func(t *testing.T) {
		res, err := ChunkText(ctx, nil, StrategySemantic, DefaultParams())
		require.NoError(t, err)
		assert.Empty(t, res.Chunks)
		assert.Equal(t, 0, res.TotalSentences)
	})

	t.Run("Defaults to the semantic strategy", func(t *testing.T) {
		res, err := ChunkText(ctx, prepare(photosynthesis), "", DefaultParams())
		require.NoError(t, err)
		assert.Equal(t, StrategySemantic, res.Strategy)
	})

	t.Run("Unknown strategy", func(t *testing.T) {
		_, err := ChunkText(ctx, prepare(photosynthesis), "bogus", DefaultParams())
		assert.ErrorIs(t, err, ErrUnknownStrategy)
	})

	t.Run("Invalid params", func(t *testing.T) {
		_, err := ChunkText(ctx, prepare(photosynthesis), StrategySemantic, Params{MaxChunkSize: 50, MinChunkSize: 100})
		assert.ErrorIs(t, err, ErrInvalidParams)
	})

	t.Run("Input shorter than the minimum is a single chunk", func(t *testing.T) {
		sentences := prepare("Cells are the basic unit of life. Every organism is made of cells.")
		res, err := ChunkText(ctx, sentences, StrategySemantic, DefaultParams())
		require.NoError(t, err)
		require.Len(t, res.Chunks, 1)
		assert.Equal(t, "Cells are the basic unit of life. Every organism is made of cells.", res.Chunks[0].Text)
	})

	t.Run("One chunk per paragraph", func(t *testing.T) {
		res, err := ChunkText(ctx, prepare(photosynthesis), StrategySemantic, Params{MaxChunkSize: 300, MinChunkSize: 100})
		require.NoError(t, err)

		paragraphs := strings.Split(photosynthesis, "\n\n")
		require.Len(t, res.Chunks, len(paragraphs))
		for i, c := range res.Chunks {
			assert.Equal(t, i, c.Index)
			assert.Equal(t, paragraphs[i], c.Text)
			assert.NotEmpty(t, c.Topic)
			assert.True(t, c.Complexity.Valid())
			assert.NotEmpty(t, c.Summary)
		}
		assert.Equal(t, 9, res.TotalSentences)
	})

	t.Run("Chunks partition the input in order", func(t *testing.T) {
		sentences := prepare(corpus(6, 5))
		res, err := ChunkText(ctx, sentences, StrategySemantic, Params{MaxChunkSize: 300, MinChunkSize: 100})
		require.NoError(t, err)
		assert.Equal(t, sentences, flatten(res.Chunks))
	})

	t.Run("Chunk sizes stay within bounds", func(t *testing.T) {
		params := Params{MaxChunkSize: 300, MinChunkSize: 100}
		res, err := ChunkText(ctx, prepare(corpus(8, 7)), StrategySemantic, params)
		require.NoError(t, err)
		require.NotEmpty(t, res.Chunks)

		for i, c := range res.Chunks {
			assert.LessOrEqual(t, c.Size(), params.MaxChunkSize, "chunk %d", i)
			if i < len(res.Chunks)-1 {
				assert.GreaterOrEqual(t, c.Size(), params.MinChunkSize, "chunk %d", i)
			}
		}
	})

	t.Run("Text is the sentences joined by spaces", func(t *testing.T) {
		res, err := ChunkText(ctx, prepare(corpus(3, 4)), StrategySemantic, Params{MaxChunkSize: 300, MinChunkSize: 100})
		require.NoError(t, err)
		for _, c := range res.Chunks {
			parts := make([]string, len(c.Sentences))
			for i, s := range c.Sentences {
				parts[i] = s.Text
			}
			assert.Equal(t, strings.Join(parts, " "), c.Text)
		}
	})

	t.Run("Never splits an oversized sentence", func(t *testing.T) {
		long := Sentence{Text: strings.Repeat("word ", 30) + "end.", Position: 1}
		sentences := []Sentence{
			{Text: "A short opening sentence.", Position: 0},
			long,
			{Text: "A short closing sentence.", Position: 2},
		}
		res, err := ChunkText(ctx, sentences, StrategySemantic, Params{MaxChunkSize: 60, MinChunkSize: 20})
		require.NoError(t, err)
		require.Len(t, res.Chunks, 3)
		assert.Equal(t, long.Text, res.Chunks[1].Text)
		assert.Equal(t, sentences, flatten(res.Chunks))
	})

	t.Run("Ceiling closes a chunk below the minimum size", func(t *testing.T) {
		short := Sentence{Text: strings.Repeat("b", 49) + ".", Position: 0}
		long := Sentence{Text: strings.Repeat("c", 279) + ".", Position: 1}
		require.Equal(t, 50, utf8.RuneCountInString(short.Text))
		require.Equal(t, 280, utf8.RuneCountInString(long.Text))

		res, err := ChunkText(ctx, []Sentence{short, long}, StrategySemantic, Params{MaxChunkSize: 300, MinChunkSize: 100})
		require.NoError(t, err)
		require.Len(t, res.Chunks, 2)
		assert.Equal(t, 50, res.Chunks[0].Size(), "max is a hard ceiling even for a short chunk")
		assert.Equal(t, 280, res.Chunks[1].Size())
		for _, c := range res.Chunks {
			assert.LessOrEqual(t, c.Size(), 300)
		}
	})

	t.Run("Topic shifts below the minimum size are ignored", func(t *testing.T) {
		var sentences []Sentence
		for i := 0; i < 10; i++ {
			sentences = append(sentences, Sentence{
				Text:           strings.Repeat("a", 29) + ".",
				Position:       i,
				ParagraphStart: true,
			})
		}
		res, err := ChunkText(ctx, sentences, StrategySemantic, Params{MaxChunkSize: 1000, MinChunkSize: 100})
		require.NoError(t, err)
		require.Len(t, res.Chunks, 3)
		assert.Len(t, res.Chunks[0].Sentences, 4)
		assert.Len(t, res.Chunks[1].Sentences, 4)
		assert.Len(t, res.Chunks[2].Sentences, 2)
	})

	t.Run("Is deterministic", func(t *testing.T) {
		sentences := prepare(corpus(5, 6))
		params := Params{MaxChunkSize: 400, MinChunkSize: 150}
		first, err := ChunkText(ctx, sentences, StrategySemantic, params)
		require.NoError(t, err)
		second, err := ChunkText(ctx, sentences, StrategySemantic, params)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("Honors cancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := ChunkText(cancelled, prepare(photosynthesis), StrategySemantic, DefaultParams())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

type fixedLabeler string

func (f fixedLabeler) DeriveTopic([]Sentence) string { return string(f) }

func TestChunker_CustomAnnotator(t *testing.T) {
	semantic := NewSemanticStrategy()
	semantic.Annotator.Labeler = fixedLabeler("Botany")

	c := NewChunker()
	c.Register(semantic)

	res, err := c.ChunkText(context.Background(), prepare(photosynthesis), StrategySemantic, Params{MaxChunkSize: 300, MinChunkSize: 100})
	require.NoError(t, err)
	for _, chunk := range res.Chunks {
		assert.Equal(t, "Botany", chunk.Topic)
	}
	assert.ElementsMatch(t, []string{StrategySemantic}, c.Strategies())
}

func TestSemanticStrategy_Shifted(t *testing.T) {
	current := []Sentence{
		{Text: "Volcanoes erupt molten rock."},
		{Text: "Lava cools into basalt."},
		{Text: "Ash clouds drift east."},
		{Text: "Geologists measure tremors."},
	}
	s := NewSemanticStrategy()

	tests := []struct {
		name string
		next Sentence
		want bool
	}{
		{"New paragraph", Sentence{Text: "Basalt forms ocean floors.", ParagraphStart: true}, true},
		{"Shares a term with the window", Sentence{Text: "Basalt forms ocean floors."}, false},
		{"Shares a term only outside the window", Sentence{Text: "Volcanoes dominate island landscapes."}, true},
		{"No shared term", Sentence{Text: "Medieval castles guarded trade routes."}, true},
		{"Too few terms to judge", Sentence{Text: "Kings ruled."}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.shifted(current, tt.next)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
