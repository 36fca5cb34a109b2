// Package scheduler triggers recurring ingestion batches on a cron
// schedule. Each enabled provider runs in its own goroutine; providers
// never block one another.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/chefstream/harvester/internal/domain"
	"github.com/chefstream/harvester/internal/logger"
	"github.com/chefstream/harvester/internal/saga"
)

// BatchRunner starts one batch for a provider and drives it to a
// terminal state.
type BatchRunner interface {
	Run(ctx context.Context, cfg *domain.ProviderConfig) (*domain.Batch, error)
}

// ProviderLister returns the currently enabled providers.
type ProviderLister interface {
	GetAllEnabled(ctx context.Context) ([]*domain.ProviderConfig, error)
}

// ActiveChecker reports whether a provider already has a batch in
// progress.
type ActiveChecker interface {
	GetActiveForProvider(ctx context.Context, providerID string) (*domain.Batch, error)
}

// Scheduler runs batches for all enabled providers on a cron schedule.
// A provider whose previous batch is still running is skipped for that
// tick, never queued.
type Scheduler struct {
	runner    BatchRunner
	providers ProviderLister
	batches   ActiveChecker
	log       logger.Interface

	cron *cron.Cron
	spec string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running map[string]struct{}
}

// New constructs a scheduler with the given cron expression.
func New(spec string, runner BatchRunner, providers ProviderLister, batches ActiveChecker, log logger.Interface) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner:    runner,
		providers: providers,
		batches:   batches,
		log:       log.WithComponent("scheduler"),
		cron:      cron.New(),
		spec:      spec,
		ctx:       ctx,
		cancel:    cancel,
		running:   make(map[string]struct{}),
	}
}

// Start validates the cron expression and begins scheduling. It returns
// immediately; ticks run on the cron goroutine.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.tick); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.log.Info("scheduler started", "cron", s.spec)
	return nil
}

// Stop halts scheduling and cancels in-flight batches, then waits for
// them to checkpoint and exit. Interrupted batches resume on the next
// startup.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// RunOnce triggers a single tick outside the cron schedule, useful for
// running immediately at startup.
func (s *Scheduler) RunOnce() {
	s.tick()
}

func (s *Scheduler) tick() {
	cfgs, err := s.providers.GetAllEnabled(s.ctx)
	if err != nil {
		s.log.WithError(err).Error("failed to list enabled providers")
		return
	}
	for _, cfg := range cfgs {
		s.launch(cfg)
	}
}

func (s *Scheduler) launch(cfg *domain.ProviderConfig) {
	s.mu.Lock()
	if _, busy := s.running[cfg.ID]; busy {
		s.mu.Unlock()
		s.log.WithProvider(cfg.ID).Debug("previous run still active, skipping tick")
		return
	}
	s.running[cfg.ID] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, cfg.ID)
			s.mu.Unlock()
		}()
		s.runProvider(cfg)
	}()
}

func (s *Scheduler) runProvider(cfg *domain.ProviderConfig) {
	plog := s.log.WithProvider(cfg.ID)

	active, err := s.batches.GetActiveForProvider(s.ctx, cfg.ID)
	if err != nil {
		plog.WithError(err).Error("failed to check for active batch")
		return
	}
	if active != nil {
		plog.Info("batch already in progress, skipping scheduled run", "batch_id", active.ID)
		return
	}

	if _, err := s.runner.Run(s.ctx, cfg); err != nil {
		if s.ctx.Err() != nil {
			return
		}
		var cfgErr *saga.ConfigurationError
		if errors.As(err, &cfgErr) {
			plog.WithError(err).Warn("provider misconfigured, run skipped")
			return
		}
		plog.WithError(err).Error("scheduled batch failed")
	}
}
