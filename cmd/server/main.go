// Package main is the entry point for the research swarm service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-swarm-service/internal/agents"
	"github.com/helixir/research-swarm-service/internal/config"
	"github.com/helixir/research-swarm-service/internal/database"
	"github.com/helixir/research-swarm-service/internal/dedup"
	"github.com/helixir/research-swarm-service/internal/events"
	"github.com/helixir/research-swarm-service/internal/llm"
	"github.com/helixir/research-swarm-service/internal/observability"
	"github.com/helixir/research-swarm-service/internal/papersources/arxiv"
	"github.com/helixir/research-swarm-service/internal/papersources/semanticscholar"
	"github.com/helixir/research-swarm-service/internal/repository"
	httpserver "github.com/helixir/research-swarm-service/internal/server/http"
	"github.com/helixir/research-swarm-service/internal/session"
	"github.com/helixir/research-swarm-service/internal/tools"
)

// migrationLockKey guards schema migration against concurrent replicas.
const migrationLockKey int64 = 74218311

const metricsNamespace = "research_swarm"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.Database.MigrationAutoRun {
		if err := runMigrations(ctx, db, cfg.Database.MigrationPath, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(metricsNamespace)
	}

	// Event publishing.
	eventCfg := events.Config{Topic: cfg.Kafka.Topic, BatchSize: cfg.Kafka.BatchSize, BatchTimeout: cfg.Kafka.BatchTimeout}
	if cfg.Kafka.Enabled {
		eventCfg.Brokers = cfg.Kafka.Brokers
	}
	publisher := events.New(eventCfg, logger)
	defer publisher.Close()

	// LLM client shared by all agents.
	provider, err := llm.NewProvider(llm.FactoryConfig{
		Provider: strings.ToLower(cfg.LLM.Provider),
		Options: llm.ProviderOptions{
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.Timeout,
			MaxRetries:  cfg.LLM.MaxRetries,
			RetryDelay:  cfg.LLM.RetryDelay,
		},
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			Model:   cfg.LLM.OpenAI.Model,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  cfg.LLM.Anthropic.APIKey,
			Model:   cfg.LLM.Anthropic.Model,
			BaseURL: cfg.LLM.Anthropic.BaseURL,
		},
	})
	if err != nil {
		return fmt.Errorf("create LLM provider: %w", err)
	}
	llmClient := llm.NewClient(provider, llm.ClientConfig{
		RateLimitRPS:   cfg.LLM.RateLimitRPS,
		RateLimitBurst: cfg.LLM.RateLimitBurst,
		Metrics:        metrics,
	})

	// Paper search tooling.
	orchestrator := tools.NewOrchestrator(dedup.New(cfg.Pipeline.TitleSimilarityThreshold), metrics, logger)
	orchestrator.Register(arxiv.New(arxiv.Config{
		BaseURL:     cfg.PaperSources.ArXiv.BaseURL,
		Timeout:     cfg.PaperSources.ArXiv.Timeout,
		MaxRequests: cfg.PaperSources.ArXiv.RateLimitRequests,
		Window:      cfg.PaperSources.ArXiv.RateLimitWindow,
		MaxResults:  cfg.PaperSources.ArXiv.MaxResults,
		Enabled:     cfg.PaperSources.ArXiv.Enabled,
	}))
	orchestrator.Register(semanticscholar.New(semanticscholar.Config{
		BaseURL:     cfg.PaperSources.SemanticScholar.BaseURL,
		APIKey:      cfg.PaperSources.SemanticScholar.APIKey,
		Timeout:     cfg.PaperSources.SemanticScholar.Timeout,
		MaxRequests: cfg.PaperSources.SemanticScholar.RateLimitRequests,
		Window:      cfg.PaperSources.SemanticScholar.RateLimitWindow,
		MaxResults:  cfg.PaperSources.SemanticScholar.MaxResults,
		Enabled:     cfg.PaperSources.SemanticScholar.Enabled,
	}))

	// One pipeline per session; hooks are wired by the manager.
	pipelineCfg := cfg.Pipeline
	factory := func(hooks agents.Hooks) (session.PipelineRunner, error) {
		return agents.NewPipeline([]agents.Agent{
			agents.NewLiteratureAgent(llmClient, orchestrator, pipelineCfg.MaxPapersPerSource, pipelineCfg.MaxPapersRetained),
			agents.NewGapAnalysisAgent(llmClient),
			agents.NewHypothesisAgent(llmClient),
			agents.NewMethodologyAgent(llmClient),
			agents.NewWritingAgent(llmClient),
			agents.NewEthicsAgent(llmClient, pipelineCfg.EthicsPassThreshold),
		}, hooks, logger, pipelineCfg.StageTimeout)
	}

	repo := repository.NewPgSessionRepository(db)
	manager := session.NewManager(factory, repo, publisher, metrics, logger)

	// Sessions left running by a previous process can never resume.
	recovered, err := manager.RecoverOrphans(ctx)
	if err != nil {
		return fmt.Errorf("recover orphaned sessions: %w", err)
	}
	if recovered > 0 {
		logger.Warn().Int64("sessions", recovered).Msg("marked orphaned sessions as interrupted")
	}

	srv, err := httpserver.New(httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     httpserver.DefaultConfig().IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, manager, db, metrics, logger)
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("session manager shutdown incomplete")
	}
	return nil
}

// runMigrations applies pending migrations under an advisory lock so
// only one replica migrates at a time.
func runMigrations(ctx context.Context, db *database.DB, path string, logger zerolog.Logger) error {
	lockCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	acquired, err := db.AcquireAdvisoryLock(lockCtx, migrationLockKey)
	if err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("migration lock held by another instance")
	}
	defer func() {
		if err := db.ReleaseAdvisoryLock(context.Background(), migrationLockKey); err != nil {
			logger.Warn().Err(err).Msg("failed to release migration lock")
		}
	}()

	migrator, err := database.NewMigrator(db, path, logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migrator.Up()
}
