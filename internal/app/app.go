package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nsqio/go-nsq"

	"lessonforge/features/course"
	"lessonforge/features/job"
	"lessonforge/features/stats"
	"lessonforge/internal/adapter/gemini"
	"lessonforge/internal/config"
	"lessonforge/internal/generation"
	"lessonforge/internal/lesson"
	"lessonforge/internal/middleware"
	"lessonforge/internal/quota"
	"lessonforge/internal/retrieval"
	"lessonforge/internal/settings"
	"lessonforge/internal/vector"
	"lessonforge/internal/worker"
)

const (
	workerChannel       = "lessonforge"
	defaultMaxUploadMB  = 20
	maxGenerateAttempts = 5
)

// VectorStore is the lesson index as the app needs it.
type VectorStore interface {
	EnsureSchema(ctx context.Context) error
	StoreLesson(ctx context.Context, doc vector.LessonDocument) error
	DeleteLessonsByCourse(ctx context.Context, courseID string) error
	Search(ctx context.Context, query string, vec []float32, alpha float32, limit int, f retrieval.Filters) ([]retrieval.SearchResult, error)
	CountLessons(ctx context.Context) (int, error)
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

// Options overrides adapters New would otherwise build from settings.
type Options struct {
	Embedder  worker.Embedder
	Generator generation.Generator
}

type App struct {
	Handler            http.Handler
	CourseService      *course.Service
	GenerationConsumer *worker.GenerationConsumer
	IndexConsumer      *worker.IndexConsumer

	cfg       *config.Config
	closers   []func() error
	consumers []*nsq.Consumer
}

func New(
	cfg *config.Config,
	db *sql.DB,
	vecStore VectorStore,
	taskPub TaskPublisher,
	limiter quota.Limiter,
	logger *slog.Logger,
	opts *Options,
) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	// Feature: Settings
	settingsRepo := settings.NewPostgresRepo(db)
	settingsService := settings.NewService(settingsRepo)
	if err := settingsService.Seed(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel); err != nil {
		slog.Warn("failed to seed settings from environment", "error", err)
	}
	settingsHandler := settings.NewHandler(settingsService)

	// Adapters: Dynamic
	var closers []func() error
	generator := opts.Generator
	if generator == nil {
		g := gemini.NewDynamicGenerator(settingsService, cfg.GenerationTimeout())
		closers = append(closers, g.Close)
		generator = g
	}
	embedder := opts.Embedder
	if embedder == nil {
		e := gemini.NewDynamicEmbedder(settingsService)
		closers = append(closers, e.Close)
		embedder = e
	}
	pipeline := lesson.NewPipeline(generator, nil)

	// Feature: Course
	maxUpload := cfg.MaxUploadSizeMB
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadMB
	}
	maxUpload <<= 20

	courseRepo := course.NewPostgresRepo(db)
	courseService := course.NewService(courseRepo, taskPub, vecStore, limiter, settingsService, pipeline)
	courseHandler := course.NewHandler(courseService, course.NewExtractor(nil, maxUpload), maxUpload)

	// Feature: Job
	jobRepo := job.NewPostgresRepo(db)
	jobService := job.NewService(jobRepo, taskPub, logger)
	jobHandler := job.NewHandler(jobService)

	// Feature: Stats
	statsHandler := stats.NewHandler(courseRepo, jobRepo, vecStore)

	// Feature: Retrieval
	logPath := cfg.QueryLogPath
	if logPath == "" {
		logPath = "data/logs/query.log"
	}
	queryLogger, err := retrieval.NewFileQueryLogger(logPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	closers = append(closers, queryLogger.Close)
	retrievalService := retrieval.NewService(embedder, vecStore, settingsService, queryLogger)
	searchHandler := retrieval.NewHandler(retrievalService)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID, X-Correlation-ID")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}
	route := func(h http.HandlerFunc) http.Handler {
		return middleware.CorrelationID(middleware.UserID(enableCORS(h)))
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /courses", route(courseHandler.Create))
	mux.Handle("POST /courses/upload", route(courseHandler.Upload))
	mux.Handle("POST /courses/import-url", route(courseHandler.ImportURL))
	mux.Handle("GET /courses", route(courseHandler.List))
	mux.Handle("GET /courses/{id}", route(courseHandler.Get))
	mux.Handle("DELETE /courses/{id}", route(courseHandler.Delete))
	mux.Handle("POST /courses/{id}/regenerate", route(courseHandler.Regenerate))

	mux.Handle("POST /lessons/preview", route(courseHandler.Preview))
	mux.Handle("GET /lessons/search", route(searchHandler.Search))

	mux.Handle("GET /settings", route(settingsHandler.GetSettings))
	mux.Handle("PUT /settings", route(settingsHandler.UpdateSettings))

	mux.Handle("GET /jobs/failed", route(jobHandler.List))
	mux.Handle("POST /jobs/{id}/retry", route(jobHandler.Retry))

	mux.Handle("GET /stats", route(statsHandler.GetStats))

	// Preflight for every route; enableCORS answers it.
	mux.Handle("OPTIONS /", route(func(http.ResponseWriter, *http.Request) {}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Workers
	generationConsumer := worker.NewGenerationConsumer(courseRepo, pipeline, jobRepo, taskPub, maxGenerateAttempts)
	indexConsumer := worker.NewIndexConsumer(embedder, vecStore)

	return &App{
		Handler:            mux,
		CourseService:      courseService,
		GenerationConsumer: generationConsumer,
		IndexConsumer:      indexConsumer,
		cfg:                cfg,
		closers:            closers,
	}, nil
}

// Run starts the enabled parts of the app and blocks until ctx is done or the
// server fails.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	if a.cfg.EnableGenerationWorker {
		if err := a.startConsumers(); err != nil {
			return err
		}
	}

	if !a.cfg.EnableAPI {
		<-ctx.Done()
		return nil
	}

	port := a.cfg.ServerPort
	if port == 0 {
		port = 8081
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", port)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) startConsumers() error {
	subs := []struct {
		topic    string
		handler  nsq.Handler
		inFlight int
	}{
		{config.TopicCourseGenerate, a.GenerationConsumer, 2},
		{config.TopicCourseIndex, a.IndexConsumer, 8},
	}

	for _, sub := range subs {
		nsqCfg := nsq.NewConfig()
		nsqCfg.MaxAttempts = maxGenerateAttempts
		nsqCfg.MaxInFlight = sub.inFlight
		// Generation can take minutes; the consumer touches messages as lessons land.
		nsqCfg.MsgTimeout = 2 * time.Minute

		consumer, err := nsq.NewConsumer(sub.topic, workerChannel, nsqCfg)
		if err != nil {
			return fmt.Errorf("failed to create NSQ consumer for %s: %w", sub.topic, err)
		}
		consumer.SetLogger(nsqLogger{}, nsq.LogLevelWarning)
		consumer.AddConcurrentHandlers(sub.handler, sub.inFlight)

		if a.cfg.NSQLookupd != "" {
			err = consumer.ConnectToNSQLookupd(a.cfg.NSQLookupd)
		} else {
			err = consumer.ConnectToNSQD(a.cfg.NSQDHost)
		}
		if err != nil {
			return fmt.Errorf("failed to connect NSQ consumer for %s: %w", sub.topic, err)
		}
		slog.Info("NSQ consumer connected", "topic", sub.topic, "channel", workerChannel)
		a.consumers = append(a.consumers, consumer)
	}
	return nil
}

func (a *App) close() {
	for _, c := range a.consumers {
		c.Stop()
		<-c.StopChan
	}
	for _, fn := range a.closers {
		if err := fn(); err != nil {
			slog.Warn("failed to release resource", "error", err)
		}
	}
}

// nsqLogger routes go-nsq's own log lines into slog.
type nsqLogger struct{}

func (nsqLogger) Output(_ int, s string) error {
	slog.Warn(s, "component", "nsq")
	return nil
}
