// Command server runs the ExamHive generation API: the asynchronous
// orchestration layer between the quiz platform and the AI content
// generation provider.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/examhive/examhive-api/internal/config"
	"github.com/examhive/examhive-api/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(cfg.Server.LogLevel)
	ctx := context.Background()

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.startHTTPServer(ctx, app.setupRouter())
}
