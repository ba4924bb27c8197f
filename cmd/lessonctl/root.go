package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"lessonforge/internal/adapter/gemini"
	"lessonforge/internal/lesson"
	"lessonforge/internal/text"
)

type options struct {
	maxChunk int
	minChunk int
	strategy string
	model    string
	timeout  time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	defaults := text.DefaultParams()

	root := &cobra.Command{
		Use:          "lessonctl",
		Short:        "Chunk study text and generate lessons locally",
		Long:         "Runs the lesson pipeline on a local file. Gemini is used when GEMINI_API_KEY is set; otherwise only the cheap workflow is available.",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load(".env")
		},
	}
	root.PersistentFlags().IntVar(&opts.maxChunk, "max-chunk", defaults.MaxChunkSize, "Maximum chunk size in characters")
	root.PersistentFlags().IntVar(&opts.minChunk, "min-chunk", defaults.MinChunkSize, "Minimum chunk size in characters")
	root.PersistentFlags().StringVar(&opts.strategy, "strategy", text.StrategySemantic, "Chunking strategy: semantic or embedding")
	root.PersistentFlags().StringVar(&opts.model, "model", "gemini-2.0-flash", "Gemini model for generation")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "Per-call generation timeout")

	root.AddCommand(newChunkCmd(opts), newGenerateCmd(opts))
	return root
}

func (o *options) params() text.Params {
	return text.Params{MaxChunkSize: o.maxChunk, MinChunkSize: o.minChunk}
}

// pipeline builds a pipeline backed by Gemini when a key is configured. The
// returned cleanup func is always safe to call.
func (o *options) pipeline(ctx context.Context) (*lesson.Pipeline, func(), error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		if o.strategy == text.StrategyEmbedding {
			return nil, nil, fmt.Errorf("%s strategy needs GEMINI_API_KEY", text.StrategyEmbedding)
		}
		p := lesson.NewPipeline(nil, nil)
		p.Strategy = o.strategy
		return p, func() {}, nil
	}

	gen, err := gemini.NewGenerator(ctx, apiKey, o.model, o.timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("gemini generator: %w", err)
	}
	emb, err := gemini.NewEmbedder(ctx, apiKey)
	if err != nil {
		gen.Close()
		return nil, nil, fmt.Errorf("gemini embedder: %w", err)
	}
	cleanup := func() {
		gen.Close()
		emb.Close()
	}

	p := lesson.NewPipeline(gen, text.NewChunker(text.NewEmbeddingStrategy(emb)))
	p.Strategy = o.strategy
	return p, cleanup, nil
}

// readInput loads a file, stripping markup from HTML.
func readInput(path string) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is a CLI argument
	if err != nil {
		return "", err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return text.StripHTML(string(data)), nil
	default:
		return string(data), nil
	}
}
