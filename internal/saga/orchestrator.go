// Package saga implements the batch ingestion orchestrator. A batch run
// is modeled as a persisted saga that moves through discovery,
// fingerprint filtering, item processing and persistence. State is
// checkpointed after every phase transition and after every processed
// item, so an interrupted run can resume forward from where it stopped.
// There are no compensating rollbacks: completed work is never undone.
package saga

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/chefstream/harvester/internal/discovery"
	"github.com/chefstream/harvester/internal/domain"
	"github.com/chefstream/harvester/internal/events"
	"github.com/chefstream/harvester/internal/fetcher"
	"github.com/chefstream/harvester/internal/logger"
	"github.com/chefstream/harvester/internal/metrics"
)

// BatchStore persists batch records.
type BatchStore interface {
	Create(ctx context.Context, batch *domain.Batch) error
	Save(ctx context.Context, batch *domain.Batch) error
	GetByID(ctx context.Context, id string) (*domain.Batch, error)
	GetActiveForProvider(ctx context.Context, providerID string) (*domain.Batch, error)
}

// SagaStore persists saga checkpoints.
type SagaStore interface {
	Save(ctx context.Context, state *domain.SagaState) error
}

// RecipeStore persists extracted recipes.
type RecipeStore interface {
	SaveBatch(ctx context.Context, recipes []*domain.Recipe) error
}

// FingerprintStore answers duplicate checks and records new fingerprints.
type FingerprintStore interface {
	IsDuplicate(ctx context.Context, providerID, hash string) (bool, error)
	RecordBatch(ctx context.Context, fps []*domain.Fingerprint) error
}

// IngredientNormalizer resolves provider ingredient codes to canonical forms.
type IngredientNormalizer interface {
	NormalizeBatch(ctx context.Context, providerID string, codes []string, recipeURL string) (map[string]*string, error)
}

// Fetcher retrieves raw page content.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// RateLimiter gates outbound requests per provider.
type RateLimiter interface {
	Configure(providerID string, perMinute int)
	TryAcquire(providerID string) bool
	Acquire(ctx context.Context, providerID string) error
}

// Publisher distributes batch lifecycle events.
type Publisher interface {
	PublishBatchStarted(ctx context.Context, event events.BatchStarted)
	PublishBatchCompleted(ctx context.Context, event events.BatchCompleted)
	PublishRecipeProcessed(ctx context.Context, event events.RecipeProcessed)
	PublishProcessingError(ctx context.Context, event events.ProcessingError)
}

// ProviderSource looks up provider configuration, used when resuming a
// saga whose originating configuration is no longer in memory.
type ProviderSource interface {
	GetByProviderID(ctx context.Context, id string) (*domain.ProviderConfig, error)
}

// StrategyFactory builds the discovery strategy for a provider.
type StrategyFactory func(cfg *domain.ProviderConfig) (discovery.Strategy, error)

// Deps bundles everything the orchestrator needs.
type Deps struct {
	Batches      BatchStore
	Sagas        SagaStore
	Recipes      RecipeStore
	Fingerprints FingerprintStore
	Normalizer   IngredientNormalizer
	Fetcher      Fetcher
	Extractor    fetcher.Extractor
	Limiter      RateLimiter
	Providers    ProviderSource
	Strategies   StrategyFactory
	Bus          Publisher
	Metrics      *metrics.Metrics
	Logger       logger.Interface
}

// Orchestrator runs bounded ingestion batches, one provider at a time per
// call. It is safe for concurrent use across distinct providers; the
// single-active-batch rule per provider is enforced against the store.
type Orchestrator struct {
	batches      BatchStore
	sagas        SagaStore
	recipes      RecipeStore
	fingerprints FingerprintStore
	normalizer   IngredientNormalizer
	fetch        Fetcher
	extractor    fetcher.Extractor
	limiter      RateLimiter
	providers    ProviderSource
	strategies   StrategyFactory
	bus          Publisher
	metrics      *metrics.Metrics
	log          logger.Interface

	// Overridable in tests.
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// NewOrchestrator constructs an orchestrator from its dependencies.
func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{
		batches:      deps.Batches,
		sagas:        deps.Sagas,
		recipes:      deps.Recipes,
		fingerprints: deps.Fingerprints,
		normalizer:   deps.Normalizer,
		fetch:        deps.Fetcher,
		extractor:    deps.Extractor,
		limiter:      deps.Limiter,
		providers:    deps.Providers,
		strategies:   deps.Strategies,
		bus:          deps.Bus,
		metrics:      deps.Metrics,
		log:          deps.Logger,
		now:          time.Now,
		sleep:        sleepCtx,
		jitter:       rand.Float64,
	}
}

// Run starts a new batch for the provider and drives it to a terminal
// state. Configuration problems are surfaced before any batch record is
// created. The returned batch is non-nil whenever a batch was created,
// including when the run failed.
func (o *Orchestrator) Run(ctx context.Context, cfg *domain.ProviderConfig) (*domain.Batch, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigurationError{ProviderID: cfg.ID, Err: err}
	}
	if !cfg.Enabled {
		return nil, &ConfigurationError{ProviderID: cfg.ID, Err: errors.New("provider is disabled")}
	}

	active, err := o.batches.GetActiveForProvider(ctx, cfg.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for active batch: %w", err)
	}
	if active != nil {
		return nil, fmt.Errorf("provider %s already has batch %s in progress", cfg.ID, active.ID)
	}

	o.limiter.Configure(cfg.ID, cfg.MaxRequestsPerMinute)

	now := o.now()
	batch := &domain.Batch{
		ID:            uuid.NewString(),
		ProviderID:    cfg.ID,
		MaxItemCount:  cfg.BatchSize,
		MaxDurationMs: cfg.MaxDuration().Milliseconds(),
		Status:        domain.BatchStatusInProgress,
		StartedAt:     now,
	}
	if err := o.batches.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	state := &domain.SagaState{
		CorrelationID: batch.ID,
		ProviderID:    cfg.ID,
		CurrentPhase:  domain.PhaseDiscovering,
		CreatedAt:     now,
		StartedAt:     now,
	}
	log := o.log.WithBatch(batch.ID).WithProvider(cfg.ID)
	if err := o.sagas.Save(ctx, state); err != nil {
		cause := fmt.Errorf("failed to create saga state: %w", err)
		return batch, o.failBatch(ctx, log, batch, state, cause)
	}

	o.bus.PublishBatchStarted(ctx, events.BatchStarted{
		BatchID:    batch.ID,
		ProviderID: cfg.ID,
		StartedAt:  now,
	})
	log.Info("batch started",
		"max_items", batch.MaxItemCount,
		"max_duration", batch.MaxDuration().String(),
		"strategy", string(cfg.DiscoveryStrategy),
	)

	return batch, o.runPhases(ctx, log, cfg, batch, state)
}

// Resume drives an interrupted saga forward to a terminal state. Work
// recorded below CurrentIndex is never repeated; at most the one item
// that was in flight when the process died is attempted again.
func (o *Orchestrator) Resume(ctx context.Context, state *domain.SagaState) error {
	if state.CurrentPhase.Terminal() {
		return nil
	}

	log := o.log.WithBatch(state.CorrelationID).WithProvider(state.ProviderID)

	batch, err := o.batches.GetByID(ctx, state.CorrelationID)
	if err != nil {
		return fmt.Errorf("failed to load batch for resume: %w", err)
	}
	if batch.Status.Terminal() {
		// The batch finished but the final saga checkpoint was lost.
		// Align the saga record and stop.
		return o.alignSaga(ctx, batch, state)
	}

	cfg, err := o.providers.GetByProviderID(ctx, state.ProviderID)
	if err != nil {
		if Classify(err) == ClassConfiguration {
			cause := &ConfigurationError{ProviderID: state.ProviderID, Err: err}
			return o.failBatch(ctx, log, batch, state, cause)
		}
		return fmt.Errorf("failed to load provider config for resume: %w", err)
	}
	if !cfg.Enabled {
		cause := &ConfigurationError{ProviderID: cfg.ID, Err: errors.New("provider is disabled")}
		return o.failBatch(ctx, log, batch, state, cause)
	}

	o.limiter.Configure(cfg.ID, cfg.MaxRequestsPerMinute)
	log.Info("resuming batch",
		"phase", string(state.CurrentPhase),
		"remaining", state.Remaining(),
	)

	return o.runPhases(ctx, log, cfg, batch, state)
}

// resultSet accumulates the recipes and fingerprints produced during the
// processing phase for the batch write in the persisting phase.
type resultSet struct {
	recipes      []*domain.Recipe
	fingerprints []*domain.Fingerprint
}

func (r *resultSet) add(recipe *domain.Recipe, fp *domain.Fingerprint) {
	r.recipes = append(r.recipes, recipe)
	r.fingerprints = append(r.fingerprints, fp)
}

func (o *Orchestrator) runPhases(ctx context.Context, log logger.Interface, cfg *domain.ProviderConfig, batch *domain.Batch, state *domain.SagaState) error {
	// Discovery metadata only exists while the discovering process is
	// alive. A resumed saga scans with bare URLs, which still yields
	// stable hashes within the run.
	meta := map[string]discovery.DiscoveredURL{}
	results := &resultSet{}

	for !state.CurrentPhase.Terminal() {
		var err error
		switch state.CurrentPhase {
		case domain.PhaseDiscovering:
			err = o.discover(ctx, log, cfg, state, meta)
		case domain.PhaseFingerprinting:
			err = o.fingerprintScan(ctx, log, cfg, batch, state, meta)
		case domain.PhaseProcessing:
			err = o.process(ctx, log, cfg, batch, state, results)
		case domain.PhasePersisting:
			err = o.persist(ctx, log, cfg, batch, state, results)
		default:
			err = fmt.Errorf("unknown saga phase %q", state.CurrentPhase)
		}
		if err != nil {
			if ctx.Err() != nil {
				// Shutdown, not failure. The saga stays at its last
				// checkpoint and is resumed on the next startup.
				log.Info("run interrupted, leaving saga resumable",
					"phase", string(state.CurrentPhase),
				)
				return err
			}
			return o.failBatch(ctx, log, batch, state, err)
		}
	}
	return nil
}

// failBatch moves both records to their failed terminal states. The saga
// keeps the cause so operators can inspect it later. Writes use a
// detached context so a canceled run still records its failure.
func (o *Orchestrator) failBatch(ctx context.Context, log logger.Interface, batch *domain.Batch, state *domain.SagaState, cause error) error {
	fctx := context.WithoutCancel(ctx)
	now := o.now()
	msg := cause.Error()
	failedPhase := state.CurrentPhase

	state.CurrentPhase = domain.PhaseFailed
	state.ErrorMessage = &msg
	state.CompletedAt = &now
	if err := o.sagas.Save(fctx, state); err != nil {
		log.WithError(err).Error("failed to record saga failure")
	}

	batch.Status = domain.BatchStatusFailed
	batch.CompletedAt = &now
	if err := o.batches.Save(fctx, batch); err != nil {
		log.WithError(err).Error("failed to record batch failure")
	}

	log.WithError(cause).Error("batch failed", "phase", string(failedPhase))
	return cause
}

// alignSaga closes out a saga whose batch already reached a terminal
// status, which can happen when the process died between the two final
// writes.
func (o *Orchestrator) alignSaga(ctx context.Context, batch *domain.Batch, state *domain.SagaState) error {
	now := o.now()
	if batch.Status == domain.BatchStatusCompleted {
		state.CurrentPhase = domain.PhaseCompleted
	} else {
		state.CurrentPhase = domain.PhaseFailed
		msg := "batch failed before saga checkpoint was written"
		state.ErrorMessage = &msg
	}
	state.CompletedAt = &now
	if err := o.sagas.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to align saga with terminal batch: %w", err)
	}
	return nil
}

// pace sleeps the provider's minimum inter-request delay, randomized to
// 0.8x..1.2x so request timing does not form a detectable pattern.
func (o *Orchestrator) pace(ctx context.Context, cfg *domain.ProviderConfig) error {
	if cfg.MinDelayMs <= 0 {
		return nil
	}
	factor := 0.8 + 0.4*o.jitter()
	return o.sleep(ctx, time.Duration(float64(cfg.MinDelay())*factor))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
