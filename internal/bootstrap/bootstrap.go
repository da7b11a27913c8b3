package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cyberrag/advisory-search/internal/config"
	"github.com/cyberrag/advisory-search/internal/core/domain"
	"github.com/cyberrag/advisory-search/internal/core/ports"
	"github.com/cyberrag/advisory-search/internal/core/usecase"
	"github.com/cyberrag/advisory-search/internal/infrastructure/llm/gemini"
	"github.com/cyberrag/advisory-search/internal/infrastructure/llm/ollama"
	"github.com/cyberrag/advisory-search/internal/infrastructure/queue/nats"
	"github.com/cyberrag/advisory-search/internal/infrastructure/repository/postgres"
	"github.com/cyberrag/advisory-search/internal/infrastructure/resilience"
	"github.com/cyberrag/advisory-search/internal/infrastructure/vector/qdrant"
	"github.com/cyberrag/advisory-search/internal/observability/logging"
	"github.com/cyberrag/advisory-search/internal/observability/metrics"
)

type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Pipeline ports.QuestionAnswerer
	Runs     *postgres.RunRepository

	closeFn func()
}

// New wires the full application. The run store and run events are
// optional: an empty POSTGRES_DSN or NATS_URL disables them.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := logging.New("advisory-search", cfg.LogLevel)
	m := metrics.New("advisory-search")

	executor := resilience.NewExecutor(resilience.DefaultPolicy())

	embedder := ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, executor)
	generator := gemini.New(cfg.GeminiURL, cfg.GeminiModel, cfg.GeminiAPIKey, executor)
	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, executor)

	var (
		runs    *postgres.RunRepository
		store   ports.RunStore
		closers []func()
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })

		runs = postgres.NewRunRepository(db)
		if err := runs.EnsureSchema(ctx); err != nil {
			runClosers(closers)
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		store = runs
	}

	var events ports.RunEvents
	if cfg.NATSURL != "" {
		publisher, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			runClosers(closers)
			return nil, fmt.Errorf("init run events: %w", err)
		}
		closers = append(closers, publisher.Close)
		events = publisher
	}

	defaults := domain.Options{
		K:               cfg.RetrievalK,
		MaxResults:      cfg.MaxResults,
		MaxPerSource:    cfg.MaxPerSource,
		MaxDistance:     &cfg.MaxDistance,
		ScoreOrder:      domain.ScoreAscending,
		MaxContextChars: cfg.MaxContextChars,
		GatewayTimeout:  cfg.GatewayTimeout(),
	}

	pipeline := usecase.NewAnswerPipeline(embedder, index, generator, store, events, defaults, logger)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
		Pipeline: pipeline,
		Runs:     runs,
		closeFn:  func() { runClosers(closers) },
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func runClosers(closers []func()) {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

// ShutdownTimeout bounds graceful HTTP shutdown at process exit.
const ShutdownTimeout = 10 * time.Second
