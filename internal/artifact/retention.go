package artifact

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/examhive/examhive-api/internal/job"
)

// SweeperConfig holds the retention policy.
type SweeperConfig struct {
	// JobTTL is how long terminal job records are kept for polling before
	// they expire. Processing jobs are never removed.
	JobTTL time.Duration

	// ArtifactTTL is how long artifacts are kept. It is deliberately
	// longer than JobTTL: artifacts may outlive the job that produced
	// them so admins can still download earlier runs.
	ArtifactTTL time.Duration

	// Interval is how often the sweep runs. If zero, defaults to 15m.
	Interval time.Duration
}

// Sweeper periodically expires terminal jobs and aged artifacts.
type Sweeper struct {
	registry job.Registry
	store    Store
	config   SweeperConfig
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a Sweeper. Start must be called to begin sweeping.
func NewSweeper(registry job.Registry, store Store, config SweeperConfig, logger *slog.Logger) *Sweeper {
	if config.Interval == 0 {
		config.Interval = 15 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		registry: registry,
		store:    store,
		config:   config,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.SweepOnce(s.ctx)
			}
		}
	}()
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.cancel()
	s.wg.Wait()
}

// SweepOnce runs a single retention pass. Exposed for tests and for
// operational one-shot invocation.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	now := time.Now().UTC()

	removed, err := s.registry.DeleteExpired(ctx, now.Add(-s.config.JobTTL))
	if err != nil {
		s.logger.Error("failed to expire job records", "error", err)
	} else if removed > 0 {
		s.logger.Info("expired job records", "count", removed)
	}

	infos, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("failed to list artifacts for retention", "error", err)
		return
	}

	cutoff := now.Add(-s.config.ArtifactTTL)
	swept := 0
	for _, info := range infos {
		if !info.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, info.Filename); err != nil {
			s.logger.Error("failed to delete expired artifact",
				"filename", info.Filename,
				"error", err)
			continue
		}
		swept++
	}
	if swept > 0 {
		s.logger.Info("expired artifacts", "count", swept)
	}
}
