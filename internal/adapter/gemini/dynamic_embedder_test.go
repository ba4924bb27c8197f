package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"lessonforge/internal/generation"
	"lessonforge/internal/settings"
)

// MockRepo implements settings.Repository
type MockRepo struct {
	Settings *settings.Settings
	Err      error
}

func (m *MockRepo) Get(ctx context.Context) (*settings.Settings, error) {
	return m.Settings, m.Err
}

func (m *MockRepo) Update(ctx context.Context, s *settings.Settings) error {
	return nil
}

func TestDynamicEmbedder_Embed_NoKey(t *testing.T) {
	svc := settings.NewService(&MockRepo{Settings: &settings.Settings{GeminiAPIKey: ""}})
	embedder := NewDynamicEmbedder(svc)

	_, err := embedder.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestDynamicEmbedder_Embed_SettingsError(t *testing.T) {
	svc := settings.NewService(&MockRepo{Err: errors.New("db fail")})
	embedder := NewDynamicEmbedder(svc)

	_, err := embedder.Embed(context.Background(), "hello")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get settings")
}

func TestDynamicGenerator_SettingsError(t *testing.T) {
	svc := settings.NewService(&MockRepo{Err: errors.New("db fail")})
	gen := NewDynamicGenerator(svc, time.Second)

	res := gen.Invoke(context.Background(), generation.Request{User: "hello"})
	assert.False(t, res.OK())
	assert.Contains(t, res.Err().Error(), "failed to get settings")
}

func TestClientCache_Switching(t *testing.T) {
	cache := &clientCache{}
	defer cache.close()

	ctx := context.Background()

	// First call - initializes client
	client1, err := cache.get(ctx, "key1")
	assert.NoError(t, err)
	assert.NotNil(t, client1)
	assert.Equal(t, "key1", cache.currentKey)

	// Same key - same client
	client2, err := cache.get(ctx, "key1")
	assert.NoError(t, err)
	assert.Same(t, client1, client2)

	// Different key - new client
	client3, err := cache.get(ctx, "key2")
	assert.NoError(t, err)
	assert.NotSame(t, client1, client3)
	assert.Equal(t, "key2", cache.currentKey)
}
