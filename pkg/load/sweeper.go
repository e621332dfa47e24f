package load

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// SweepConfig configures the relaxation sweeper.
type SweepConfig struct {
	// Schedule is a cron expression for the sweep, e.g. "*/5 * * * *"
	// (every five minutes). Empty disables the sweeper.
	Schedule string
}

// DefaultSweepConfig returns the default sweep configuration.
func DefaultSweepConfig() *SweepConfig {
	return &SweepConfig{
		Schedule: "*/5 * * * *",
	}
}

// Sweeper periodically walks all tracked units and reports the ones whose
// utilization has dropped below the relax threshold. The estimator itself
// never schedules anything; the sweeper is the timer-driven caller that
// invokes AllFeatures and ShouldRelax on its behalf.
type Sweeper struct {
	estimator *Estimator
	config    *SweepConfig
	cron      *cron.Cron
	onRelax   func(Feature)
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewSweeper creates a sweeper over the given estimator. onRelax is invoked
// once per eligible unit on every sweep; nil means log-only.
func NewSweeper(estimator *Estimator, config *SweepConfig, onRelax func(Feature)) *Sweeper {
	if config == nil {
		config = DefaultSweepConfig()
	}

	return &Sweeper{
		estimator: estimator,
		config:    config,
		cron:      cron.New(),
		onRelax:   onRelax,
		logger:    slog.Default().With("component", "load.sweeper"),
	}
}

// Start begins scheduled sweeping and returns immediately. The sweeper
// stops when the context is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.Schedule == "" {
		s.logger.Info("sweep schedule not configured, skipping sweeper")
		return nil
	}
	if s.running {
		return fmt.Errorf("sweeper already running")
	}

	if _, err := cron.ParseStandard(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.config.Schedule, err)
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, s.Sweep); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("relaxation sweeper started", "schedule", s.config.Schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Sweep runs a single pass over all tracked units.
func (s *Sweeper) Sweep() {
	features := s.estimator.AllFeatures()

	relaxed := 0
	for _, f := range features {
		if !s.estimator.ShouldRelax(f.Unit) {
			continue
		}
		relaxed++

		s.logger.Info("unit eligible for relaxation",
			"unit", f.Unit,
			"rho", f.Rho,
		)

		if s.onRelax != nil {
			s.onRelax(f)
		}
	}

	s.logger.Debug("relaxation sweep complete",
		"units", len(features),
		"eligible", relaxed,
	)
}

// Stop halts scheduled sweeping. A sweep already in progress completes.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cron.Stop()
	s.running = false
	s.logger.Info("relaxation sweeper stopped")
}
