package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"lessonforge/internal/lesson"
	"lessonforge/internal/text"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidConfig   = errors.New("invalid configuration")
)

const (
	QuotaBackendRedis    = "redis"
	QuotaBackendPostgres = "postgres"
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"lessonforge"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"lessonforge"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	EnableAPI              bool   `envconfig:"ENABLE_API" default:"true"`
	EnableGenerationWorker bool   `envconfig:"ENABLE_GENERATION_WORKER" default:"true"`
	MigrationPath          string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Generation
	GeminiAPIKey             string `envconfig:"GEMINI_API_KEY"`
	GeminiModel              string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	GeminiEmbedModel         string `envconfig:"GEMINI_EMBED_MODEL" default:"gemini-embedding-001"`
	GenerationTimeoutSeconds int    `envconfig:"GENERATION_TIMEOUT_SECONDS" default:"60"`
	DefaultWorkflow          string `envconfig:"DEFAULT_WORKFLOW" default:"hybrid"`
	MaxChunkSize             int    `envconfig:"MAX_CHUNK_SIZE" default:"1500"`
	MinChunkSize             int    `envconfig:"MIN_CHUNK_SIZE" default:"300"`

	// Quota
	QuotaBackend       string `envconfig:"QUOTA_BACKEND" default:"postgres"`
	RedisURL           string `envconfig:"REDIS_URL" default:"redis://redis:6379/0"`
	QuotaDailyText     int    `envconfig:"QUOTA_DAILY_TEXT" default:"50"`
	QuotaDailyURL      int    `envconfig:"QUOTA_DAILY_URL" default:"20"`
	QuotaDailyTopic    int    `envconfig:"QUOTA_DAILY_TOPIC" default:"20"`
	QuotaDailyDocument int    `envconfig:"QUOTA_DAILY_DOCUMENT" default:"10"`
	QuotaDailyAudio    int    `envconfig:"QUOTA_DAILY_AUDIO" default:"5"`
	QuotaDailyVideo    int    `envconfig:"QUOTA_DAILY_VIDEO" default:"5"`

	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath    string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"20"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Ignore errors, as env vars might be set in the shell
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../../.env"))

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.DefaultWorkflow != "" && !lesson.ValidWorkflow(c.DefaultWorkflow) {
		return fmt.Errorf("%w: DEFAULT_WORKFLOW %q", ErrInvalidConfig, c.DefaultWorkflow)
	}
	if c.MaxChunkSize != 0 || c.MinChunkSize != 0 {
		if err := c.ChunkParams().Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	switch c.QuotaBackend {
	case "", QuotaBackendPostgres:
	case QuotaBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%w: REDIS_URL", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("%w: QUOTA_BACKEND %q", ErrInvalidConfig, c.QuotaBackend)
	}
	return nil
}

func (c *Config) ChunkParams() text.Params {
	return text.Params{MaxChunkSize: c.MaxChunkSize, MinChunkSize: c.MinChunkSize}
}

func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.GenerationTimeoutSeconds) * time.Second
}

// QuotaLimits maps each import origin to its daily allowance.
func (c *Config) QuotaLimits() map[text.Origin]int {
	return map[text.Origin]int{
		text.OriginText:     c.QuotaDailyText,
		text.OriginURL:      c.QuotaDailyURL,
		text.OriginTopic:    c.QuotaDailyTopic,
		text.OriginDocument: c.QuotaDailyDocument,
		text.OriginAudio:    c.QuotaDailyAudio,
		text.OriginVideo:    c.QuotaDailyVideo,
	}
}
