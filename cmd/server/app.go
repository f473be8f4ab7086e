package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/examhive/examhive-api/internal/artifact"
	"github.com/examhive/examhive-api/internal/config"
	"github.com/examhive/examhive-api/internal/dispatch"
	"github.com/examhive/examhive-api/internal/generation"
	"github.com/examhive/examhive-api/internal/job"
	"github.com/examhive/examhive-api/internal/platform/gemini"
	"github.com/examhive/examhive-api/internal/platform/genservice"
	"github.com/examhive/examhive-api/internal/platform/postgres"
	"github.com/examhive/examhive-api/internal/service/auth"
)

// application holds the wired dependencies of the server process.
type application struct {
	config     *config.Config
	logger     *slog.Logger
	db         *sql.DB
	registry   job.Registry
	artifacts  artifact.Store
	generator  generation.Generator
	dispatcher *dispatch.Dispatcher
	status     *job.StatusService
	sweeper    *artifact.Sweeper
	verifier   auth.TokenVerifier
}

// newApplication builds the dependency graph from configuration.
// Construction is fail-fast: any broken dependency aborts startup.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{config: cfg, logger: logger}

	registry, db, err := setupRegistry(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.registry = registry
	app.db = db

	store, err := artifact.NewFilesystemStore(cfg.Storage.ArtifactDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact store: %w", err)
	}
	app.artifacts = store

	generator, err := setupGenerator(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.generator = generator

	dispatcher, err := dispatch.NewDispatcher(app.registry, app.artifacts, app.generator, dispatch.Config{
		ExecutionCeiling: time.Duration(cfg.Generation.ExecutionCeilingMinutes) * time.Minute,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	app.dispatcher = dispatcher
	app.status = job.NewStatusService(app.registry)

	verifier, err := auth.NewTokenVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}
	app.verifier = verifier

	if cfg.Retention.JobTTLHours > 0 && cfg.Retention.ArtifactTTLHours > 0 {
		app.sweeper = artifact.NewSweeper(app.registry, app.artifacts, artifact.SweeperConfig{
			JobTTL:      time.Duration(cfg.Retention.JobTTLHours) * time.Hour,
			ArtifactTTL: time.Duration(cfg.Retention.ArtifactTTLHours) * time.Hour,
			Interval:    time.Duration(cfg.Retention.SweepIntervalMinutes) * time.Minute,
		}, logger)
		app.sweeper.Start()
	}

	return app, nil
}

// setupRegistry selects the job registry implementation. A configured
// database URL means Postgres with migrations applied; otherwise jobs
// live in memory and expire with the process.
func setupRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (job.Registry, *sql.DB, error) {
	if cfg.Database.URL == "" {
		logger.Info("no database configured, using in-memory job registry")
		return job.NewMemoryRegistry(), nil, nil
	}

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	logger.Info("using postgres job registry")
	return postgres.NewJobRegistry(db), db, nil
}

// setupGenerator selects the generation provider named by config.
func setupGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (generation.Generator, error) {
	switch cfg.Generation.Provider {
	case "gemini":
		gen, err := gemini.NewGenerator(ctx, gemini.Config{
			APIKey:            cfg.Generation.GeminiAPIKey,
			Model:             cfg.Generation.GeminiModel,
			MaxRetries:        cfg.Generation.MaxRetries,
			RetryDelaySeconds: cfg.Generation.RetryDelaySeconds,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini generator: %w", err)
		}
		logger.Info("using gemini generation provider", "model", cfg.Generation.GeminiModel)
		return gen, nil

	case "http":
		client, err := genservice.NewClient(genservice.Config{
			BaseURL: cfg.Generation.ServiceURL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create generation service client: %w", err)
		}
		logger.Info("using http generation provider", "service_url", cfg.Generation.ServiceURL)
		return client, nil

	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Generation.Provider)
	}
}

// cleanup releases resources after the HTTP server has drained. The
// dispatcher gets a bounded wait so in-flight jobs can record their
// terminal state.
func (app *application) cleanup() {
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(app.config.Server.ShutdownTimeout)*time.Second,
	)
	defer cancel()

	if err := app.dispatcher.Shutdown(shutdownCtx); err != nil {
		app.logger.Warn("dispatcher shutdown incomplete", "error", err)
	}
	if app.sweeper != nil {
		app.sweeper.Stop()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", "error", err)
		}
	}
}
