package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"lessonforge/internal/generation"
	"lessonforge/internal/settings"
)

var (
	ErrNoAPIKey      = errors.New("gemini api key not configured")
	ErrEmptyResponse = errors.New("gemini returned no text")
	ErrBlocked       = errors.New("gemini blocked the request")
)

// Generator is bound to a single API key and model.
type Generator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGenerator(ctx context.Context, apiKey, model string, timeout time.Duration, opts ...option.ClientOption) (*Generator, error) {
	client, err := genai.NewClient(ctx, append(opts, option.WithAPIKey(apiKey))...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Generator{client: client, model: model, timeout: timeout}, nil
}

func (g *Generator) Invoke(ctx context.Context, req generation.Request) generation.Result {
	return invoke(ctx, g.client, g.model, g.timeout, req)
}

func (g *Generator) Close() error { return g.client.Close() }

// DynamicGenerator resolves key and model from settings per call.
type DynamicGenerator struct {
	settingsSvc *settings.Service
	clients     *clientCache
	timeout     time.Duration
}

func NewDynamicGenerator(svc *settings.Service, timeout time.Duration, opts ...option.ClientOption) *DynamicGenerator {
	return &DynamicGenerator{
		settingsSvc: svc,
		clients:     &clientCache{clientOpts: opts},
		timeout:     timeout,
	}
}

func (g *DynamicGenerator) Invoke(ctx context.Context, req generation.Request) generation.Result {
	s, err := g.settingsSvc.Get(ctx)
	if err != nil {
		return generation.Fail(fmt.Errorf("failed to get settings: %w", err))
	}
	if s.GeminiAPIKey == "" {
		return generation.Fail(ErrNoAPIKey)
	}

	client, err := g.clients.get(ctx, s.GeminiAPIKey)
	if err != nil {
		return generation.Fail(err)
	}

	model := s.GeminiModel
	if model == "" {
		model = DefaultModel
	}
	return invoke(ctx, client, model, g.timeout, req)
}

func (g *DynamicGenerator) Close() error { return g.clients.close() }

func invoke(ctx context.Context, client *genai.Client, modelName string, timeout time.Duration, req generation.Request) generation.Result {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(req.Temperature)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.Shape == generation.ShapeList {
		model.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		slog.WarnContext(ctx, "gemini call failed", "model", modelName, "shape", req.Shape.String(), "error", err)
		return generation.Fail(fmt.Errorf("gemini api error: %w", err))
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return generation.Fail(fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason))
	}
	for _, cand := range resp.Candidates {
		if cand.FinishReason == genai.FinishReasonSafety {
			return generation.Fail(fmt.Errorf("%w: %s", ErrBlocked, cand.FinishReason))
		}
	}

	raw := strings.TrimSpace(extractText(resp))
	if raw == "" {
		return generation.Fail(ErrEmptyResponse)
	}
	slog.DebugContext(ctx, "gemini call completed", "model", modelName, "duration_ms", time.Since(start).Milliseconds())

	if req.Shape != generation.ShapeList {
		return generation.Ok(generation.Payload{Text: generation.StripFences(raw)})
	}
	items, err := generation.ParseList(raw)
	if err != nil {
		return generation.Fail(err)
	}
	return generation.Ok(generation.Payload{Text: raw, List: items})
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
		// Only the first candidate with content is used.
		if text.Len() > 0 {
			break
		}
	}
	return text.String()
}
