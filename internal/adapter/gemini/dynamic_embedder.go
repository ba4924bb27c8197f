package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"lessonforge/internal/settings"
)

// DynamicEmbedder reads the API key from settings on every call so key
// rotation needs no restart.
type DynamicEmbedder struct {
	settingsSvc *settings.Service
	clients     *clientCache
	model       string
}

func NewDynamicEmbedder(svc *settings.Service, opts ...option.ClientOption) *DynamicEmbedder {
	return &DynamicEmbedder{
		settingsSvc: svc,
		clients:     &clientCache{clientOpts: opts},
		model:       DefaultEmbedModel,
	}
}

func (e *DynamicEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s, err := e.settingsSvc.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	if s.GeminiAPIKey == "" {
		return nil, ErrNoAPIKey
	}

	client, err := e.clients.get(ctx, s.GeminiAPIKey)
	if err != nil {
		return nil, err
	}

	return embed(ctx, client, e.model, text)
}

func (e *DynamicEmbedder) Close() error { return e.clients.close() }

func embed(ctx context.Context, client *genai.Client, model, text string) ([]float32, error) {
	res, err := client.EmbeddingModel(model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding received")
	}
	return res.Embedding.Values, nil
}
