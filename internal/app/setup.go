package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/firebase/genkit/go/plugins/postgresql"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	httpapi "github.com/atlasdesk/atlas/internal/api"
	"github.com/atlasdesk/atlas/internal/auth"
	"github.com/atlasdesk/atlas/internal/config"
	"github.com/atlasdesk/atlas/db"
	"github.com/atlasdesk/atlas/internal/history"
	"github.com/atlasdesk/atlas/internal/log"
	"github.com/atlasdesk/atlas/internal/model"
	"github.com/atlasdesk/atlas/internal/orchestrator"
	"github.com/atlasdesk/atlas/internal/rag"
	"github.com/atlasdesk/atlas/internal/tools"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = log.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	postgres, err := providePostgresPlugin(ctx, pool, cfg)
	if err != nil {
		return nil, err
	}

	g, err := provideGenkit(ctx, cfg, postgres, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	docStore, retriever, err := provideRAGComponents(ctx, g, postgres, embedder)
	if err != nil {
		return nil, err
	}
	a.DocStore = docStore
	a.Retriever = retriever

	a.History, err = provideHistory(pool, cfg, logger)
	if err != nil {
		return nil, err
	}

	registry, refs, err := provideTools(g, cfg, retriever, logger)
	if err != nil {
		return nil, err
	}
	a.Registry = registry

	a.Model, err = model.NewClient(g, model.Options{
		ModelName: cfg.FullModelName(),
		Tools:     refs,
		System:    orchestrator.SteeringInstruction,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	a.Orchestrator, err = orchestrator.New(a.Model, a.History, registry, orchestrator.Options{
		MaxRounds:   cfg.MaxToolRounds,
		ToolTimeout: cfg.ToolTimeout(),
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	a.Server, err = provideServer(cfg, a.Orchestrator, pool, logger)
	if err != nil {
		return nil, err
	}

	return a, nil
}

// provideOtelShutdown sets up OTLP trace export before Genkit initialization.
// Must be called before provideGenkit so the TracerProvider is ready.
//
// Traces are exported to a local collector agent via OTLP HTTP. The agent
// handles authentication, buffering, and forwarding to the backend.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	tc := cfg.Tracing
	if !tc.Enabled {
		return func() {}
	}

	agentHost := tc.AgentHost
	if agentHost == "" {
		agentHost = "localhost:4318"
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(agentHost),
		otlptracehttp.WithInsecure(), // localhost doesn't need TLS
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"agent", agentHost,
		"service", tc.ServiceName,
		"environment", tc.Environment,
	)

	shutdown := tracing.TracerProvider().Shutdown

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	cleanup := func() {
		pool.Close()
	}

	return pool, cleanup, nil
}

// providePostgresPlugin creates the Genkit PostgreSQL plugin.
// This wraps the existing connection pool for use with Genkit's DocStore.
func providePostgresPlugin(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config) (*postgresql.Postgres, error) {
	pEngine, err := postgresql.NewPostgresEngine(ctx, postgresql.WithPool(pool), postgresql.WithDatabase(cfg.PostgresDBName))
	if err != nil {
		return nil, fmt.Errorf("creating postgres engine: %w", err)
	}

	return &postgresql.Postgres{Engine: pEngine}, nil
}

// provideGenkit initializes Genkit with the configured AI provider and
// PostgreSQL plugins. Supports gemini (default), ollama, and openai.
// Call ordering in Setup ensures tracing is set up first.
func provideGenkit(ctx context.Context, cfg *config.Config, postgres *postgresql.Postgres, logger log.Logger) (*genkit.Genkit, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderGemini
	}

	var g *genkit.Genkit

	switch provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin, postgres))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		// Register embedder for RAG
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}, postgres))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // "gemini"
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}, postgres))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the AI provider plugin.
// Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init(), looked up by model name
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderGemini
	}

	switch provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default: // "gemini"
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideRAGComponents creates the Genkit PostgreSQL DocStore and Retriever.
// DocStore is used for indexing documents, Retriever for searching.
func provideRAGComponents(ctx context.Context, g *genkit.Genkit, postgres *postgresql.Postgres, embedder ai.Embedder) (*postgresql.DocStore, ai.Retriever, error) {
	docCfg := rag.NewDocStoreConfig(embedder)
	docStore, retriever, err := postgresql.DefineRetriever(ctx, g, postgres, docCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("defining retriever: %w", err)
	}

	return docStore, retriever, nil
}

// provideHistory creates the conversation history store.
func provideHistory(pool *pgxpool.Pool, cfg *config.Config, logger log.Logger) (*history.Store, error) {
	store, err := history.New(history.NewPGQuerier(pool), cfg.HistoryTTL(), cfg.MaxHistoryMessages, logger)
	if err != nil {
		return nil, fmt.Errorf("creating history store: %w", err)
	}
	return store, nil
}

// provideTools builds the tool registry and registers every adapter with
// Genkit so tool schemas are advertised to the model.
//
// The seat profile adapter is only wired when a base URL is configured;
// the model simply never sees the tool otherwise.
func provideTools(g *genkit.Genkit, cfg *config.Config, retriever ai.Retriever, logger log.Logger) (*tools.Registry, []ai.ToolRef, error) {
	var ts []tools.Tool

	docs, err := tools.NewDocs(retriever, cfg.RAGTopK, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating docs tool: %w", err)
	}
	ts = append(ts, docs)

	if cfg.Profile.BaseURL != "" {
		profile, err := tools.NewProfile(cfg.Profile.BaseURL,
			time.Duration(cfg.Profile.TimeoutMs)*time.Millisecond, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("creating seat profile tool: %w", err)
		}
		ts = append(ts, profile)
	} else {
		logger.Warn("seat profile base URL not configured, tool disabled")
	}

	ts = append(ts, tools.NewWeather())

	registry, err := tools.NewRegistry(ts...)
	if err != nil {
		return nil, nil, fmt.Errorf("building tool registry: %w", err)
	}

	refs := tools.Declare(g, registry)
	logger.Info("tools registered", "count", len(refs), "names", registry.Names())
	return registry, refs, nil
}

// provideServer builds the HTTP API server around the orchestrator.
func provideServer(cfg *config.Config, asker httpapi.Asker, pool *pgxpool.Pool, logger log.Logger) (*httpapi.Server, error) {
	var validator *auth.Validator
	if !cfg.AuthDisabled {
		v, err := auth.NewValidator(cfg.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("creating token validator: %w", err)
		}
		validator = v
	} else {
		logger.Warn("bearer token validation disabled, requests are anonymous")
	}

	srv, err := httpapi.NewServer(httpapi.ServerConfig{
		Logger:      logger,
		Asker:       asker,
		Validator:   validator,
		Pool:        pool,
		CORSOrigins: cfg.CORSOrigins,
		IsDev:       cfg.Tracing.Environment == "dev",
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   cfg.RateBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	return srv, nil
}
