package saga

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/chefstream/harvester/internal/discovery"
	"github.com/chefstream/harvester/internal/domain"
	"github.com/chefstream/harvester/internal/events"
	"github.com/chefstream/harvester/internal/fetcher"
	"github.com/chefstream/harvester/internal/fingerprint"
	"github.com/chefstream/harvester/internal/logger"
)

// discoveryOverscan asks discovery for more candidates than the batch can
// process, because the fingerprint scan drops an unknown share of them as
// duplicates.
const discoveryOverscan = 2

func (o *Orchestrator) discover(ctx context.Context, log logger.Interface, cfg *domain.ProviderConfig, state *domain.SagaState, meta map[string]discovery.DiscoveredURL) error {
	plog := log.WithPhase(string(domain.PhaseDiscovering))

	strategy, err := o.strategies(cfg)
	if err != nil {
		return fmt.Errorf("failed to build discovery strategy: %w", err)
	}

	var found []discovery.DiscoveredURL
	attempts, err := retryTransient(ctx, plog, cfg.RetryCount, func() error {
		var derr error
		found, derr = strategy.Discover(ctx, discovery.Request{
			RootURL:    cfg.BaseURL,
			ProviderID: cfg.ID,
			MaxDepth:   cfg.MaxDepth,
			MaxCount:   cfg.BatchSize * discoveryOverscan,
		})
		return derr
	})
	if err != nil {
		return fmt.Errorf("discovery failed after %d attempts: %w", attempts, err)
	}

	urls := make(domain.StringSlice, 0, len(found))
	for _, d := range found {
		urls = append(urls, d.URL)
		meta[d.URL] = d
	}
	state.DiscoveredURLs = urls
	state.CurrentPhase = domain.PhaseFingerprinting
	if err := o.sagas.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to checkpoint discovery: %w", err)
	}

	plog.Info("discovery finished", "candidates", len(urls), "attempts", attempts)
	return nil
}

// fingerprintScan filters discovered URLs down to the ones whose content
// hash has not been ingested before. Survivors are appended to the
// fingerprinted list one by one, with a saga checkpoint after each, so a
// resumed scan re-examines only URLs it has not accepted yet. The
// surviving list is capped at the batch's item bound.
func (o *Orchestrator) fingerprintScan(ctx context.Context, log logger.Interface, cfg *domain.ProviderConfig, batch *domain.Batch, state *domain.SagaState, meta map[string]discovery.DiscoveredURL) error {
	plog := log.WithPhase(string(domain.PhaseFingerprinting))

	accepted := make(map[string]struct{}, len(state.FingerprintedURLs))
	seenHashes := make(map[string]struct{}, len(state.DiscoveredURLs))
	for _, u := range state.FingerprintedURLs {
		accepted[u] = struct{}{}
		m := meta[u]
		seenHashes[fingerprint.Generate(u, m.Title, m.Snippet)] = struct{}{}
	}

	skipped := 0
	for _, url := range state.DiscoveredURLs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(state.FingerprintedURLs) >= batch.MaxItemCount {
			plog.Debug("item bound reached, dropping remaining candidates")
			break
		}
		if _, ok := accepted[url]; ok {
			continue
		}

		m := meta[url]
		hash := fingerprint.Generate(url, m.Title, m.Snippet)
		if _, dup := seenHashes[hash]; dup {
			// Same content discovered twice in this run. First
			// occurrence wins.
			skipped++
			continue
		}

		var exists bool
		err := retryAny(ctx, plog.WithURL(url), cfg.RetryCount, func() error {
			var lerr error
			exists, lerr = o.fingerprints.IsDuplicate(ctx, cfg.ID, hash)
			return lerr
		})
		if err != nil {
			return fmt.Errorf("failed to check fingerprint for %s: %w", url, err)
		}
		seenHashes[hash] = struct{}{}
		if exists {
			skipped++
			continue
		}

		state.FingerprintedURLs = append(state.FingerprintedURLs, url)
		if err := o.sagas.Save(ctx, state); err != nil {
			return fmt.Errorf("failed to checkpoint fingerprint scan: %w", err)
		}
	}

	// The scan recounts every duplicate from the top of the discovered
	// list, so assignment keeps a replayed scan from double-counting.
	batch.SkippedCount = skipped
	if err := o.batches.Save(ctx, batch); err != nil {
		return fmt.Errorf("failed to record skip count: %w", err)
	}
	for i := 0; i < skipped; i++ {
		o.metrics.IncrSkipped()
	}

	state.CurrentPhase = domain.PhaseProcessing
	if err := o.sagas.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to checkpoint fingerprint scan: %w", err)
	}

	plog.Info("fingerprint scan finished",
		"candidates", len(state.DiscoveredURLs),
		"survivors", len(state.FingerprintedURLs),
		"skipped", skipped,
	)
	return nil
}

// process works through the fingerprinted URLs from CurrentIndex. Every
// item, whatever its outcome, advances the index and checkpoints the
// saga before the next one begins. The in-flight item always finishes;
// batch bounds are evaluated between items.
func (o *Orchestrator) process(ctx context.Context, log logger.Interface, cfg *domain.ProviderConfig, batch *domain.Batch, state *domain.SagaState, results *resultSet) error {
	plog := log.WithPhase(string(domain.PhaseProcessing))

	for state.CurrentIndex < len(state.FingerprintedURLs) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if batch.BoundsReached(o.now()) {
			plog.Info("batch bound reached",
				"processed", batch.ProcessedCount,
				"remaining", state.Remaining(),
			)
			break
		}

		url := state.FingerprintedURLs[state.CurrentIndex]
		ulog := plog.WithURL(url)

		if err := o.pace(ctx, cfg); err != nil {
			return err
		}
		if !o.limiter.TryAcquire(cfg.ID) {
			o.metrics.IncrRateLimitedWait()
			ulog.Debug("token bucket empty, waiting for refill")
			if err := o.limiter.Acquire(ctx, cfg.ID); err != nil {
				return err
			}
		}

		if err := o.processOne(ctx, ulog, cfg, batch, state, results, url); err != nil {
			return err
		}

		state.CurrentIndex++
		if err := o.sagas.Save(ctx, state); err != nil {
			return fmt.Errorf("failed to checkpoint item: %w", err)
		}
		if err := o.batches.Save(ctx, batch); err != nil {
			return fmt.Errorf("failed to save batch progress: %w", err)
		}
	}

	state.CurrentPhase = domain.PhasePersisting
	if err := o.sagas.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to checkpoint processing: %w", err)
	}
	return nil
}

// processOne handles a single URL. Item-scoped failures are recorded and
// swallowed so the batch keeps going; only infrastructure errors and
// cancellation propagate.
func (o *Orchestrator) processOne(ctx context.Context, log logger.Interface, cfg *domain.ProviderConfig, batch *domain.Batch, state *domain.SagaState, results *resultSet, url string) error {
	draft, attempts, err := o.fetchAndExtract(ctx, log, cfg, url)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.recordItemFailure(ctx, log, cfg, batch, state, url, attempts, err)
		return nil
	}

	// The stored hash uses the extracted title and description, which
	// may differ from what discovery saw. Re-check here so a survivor
	// whose scan-time hash missed is still not ingested twice.
	hash := fingerprint.Generate(url, draft.Title, draft.Description)
	dup, err := o.fingerprints.IsDuplicate(ctx, cfg.ID, hash)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.recordItemFailure(ctx, log, cfg, batch, state, url, attempts, err)
		return nil
	}
	if dup {
		batch.SkippedCount++
		o.metrics.IncrSkipped()
		log.Debug("duplicate content after extraction, skipping")
		return nil
	}

	recipe, err := o.buildRecipe(ctx, cfg, batch, url, draft)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.recordItemFailure(ctx, log, cfg, batch, state, url, attempts, err)
		return nil
	}

	results.add(recipe, &domain.Fingerprint{
		Hash:       hash,
		ProviderID: cfg.ID,
		SourceURL:  url,
		RecipeID:   recipe.ID,
	})
	state.ProcessedURLs = append(state.ProcessedURLs, url)
	batch.ProcessedCount++
	batch.ProcessedURLs = append(batch.ProcessedURLs, url)
	o.metrics.IncrProcessed()
	o.bus.PublishRecipeProcessed(ctx, events.RecipeProcessed{
		RecipeID:   recipe.ID,
		URL:        url,
		ProviderID: cfg.ID,
	})
	log.Debug("recipe processed", "recipe_id", recipe.ID, "title", recipe.Title)
	return nil
}

func (o *Orchestrator) fetchAndExtract(ctx context.Context, log logger.Interface, cfg *domain.ProviderConfig, url string) (*domain.RecipeDraft, int, error) {
	var draft *domain.RecipeDraft
	attempts, err := retryTransient(ctx, log, cfg.RetryCount, func() error {
		rctx := ctx
		if cfg.RequestTimeoutSec > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout())
			defer cancel()
		}

		raw, err := o.fetch.Fetch(rctx, url)
		if err != nil {
			o.metrics.IncrFetchFailure()
			return fmt.Errorf("failed to fetch %s: %w", url, err)
		}
		o.metrics.IncrFetchSuccess()

		d, err := o.extractor.Extract(ctx, raw, fetcher.ExtractContext{ProviderID: cfg.ID, URL: url})
		if err != nil {
			return fmt.Errorf("failed to extract recipe from %s: %w", url, err)
		}
		draft = d
		return nil
	})
	return draft, attempts, err
}

// buildRecipe normalizes the draft's ingredient codes and assembles the
// final record. Unmapped codes keep a nil canonical form; they never
// block the recipe.
func (o *Orchestrator) buildRecipe(ctx context.Context, cfg *domain.ProviderConfig, batch *domain.Batch, url string, draft *domain.RecipeDraft) (*domain.Recipe, error) {
	codes := make([]string, 0, len(draft.Ingredients))
	for _, ing := range draft.Ingredients {
		codes = append(codes, ing.Code)
	}

	mapped, err := o.normalizer.NormalizeBatch(ctx, cfg.ID, codes, url)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize ingredients: %w", err)
	}

	ingredients := make(domain.RecipeIngredientList, 0, len(draft.Ingredients))
	for _, ing := range draft.Ingredients {
		ingredients = append(ingredients, domain.RecipeIngredient{
			Code:          ing.Code,
			CanonicalForm: mapped[ing.Code],
			Quantity:      ing.Quantity,
		})
	}

	return &domain.Recipe{
		ID:          uuid.NewString(),
		ProviderID:  cfg.ID,
		BatchID:     batch.ID,
		URL:         url,
		Title:       draft.Title,
		Description: draft.Description,
		Ingredients: ingredients,
		Steps:       draft.Steps,
		CreatedAt:   o.now(),
	}, nil
}

func (o *Orchestrator) recordItemFailure(ctx context.Context, log logger.Interface, cfg *domain.ProviderConfig, batch *domain.Batch, state *domain.SagaState, url string, attempts int, cause error) {
	class := Classify(cause)
	state.FailedURLs = append(state.FailedURLs, domain.FailedURL{
		URL:        url,
		ErrorClass: string(class),
		Message:    cause.Error(),
		Attempts:   attempts,
		OccurredAt: o.now(),
	})
	batch.FailedCount++
	batch.FailedURLs = append(batch.FailedURLs, url)
	o.metrics.IncrFailed()
	o.bus.PublishProcessingError(ctx, events.ProcessingError{
		URL:          url,
		ProviderID:   cfg.ID,
		ErrorMessage: cause.Error(),
	})
	log.WithError(cause).Error("item failed", "class", string(class), "attempts", attempts)
}

// persist batch-writes the run's recipes together with their fingerprints
// and moves both records to completed. Fingerprints are written only here,
// after the recipes they point at, so a crash can never leave a
// fingerprint for an unsaved recipe.
func (o *Orchestrator) persist(ctx context.Context, log logger.Interface, cfg *domain.ProviderConfig, batch *domain.Batch, state *domain.SagaState, results *resultSet) error {
	plog := log.WithPhase(string(domain.PhasePersisting))

	if len(results.recipes) > 0 {
		err := retryAny(ctx, plog, cfg.RetryCount, func() error {
			if err := o.recipes.SaveBatch(ctx, results.recipes); err != nil {
				return err
			}
			return o.fingerprints.RecordBatch(ctx, results.fingerprints)
		})
		if err != nil {
			return fmt.Errorf("failed to persist batch results: %w", err)
		}
	}

	now := o.now()
	batch.Status = domain.BatchStatusCompleted
	batch.CompletedAt = &now
	if err := o.batches.Save(ctx, batch); err != nil {
		return fmt.Errorf("failed to complete batch: %w", err)
	}

	state.CurrentPhase = domain.PhaseCompleted
	state.CompletedAt = &now
	if err := o.sagas.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to complete saga: %w", err)
	}

	o.bus.PublishBatchCompleted(ctx, events.BatchCompleted{
		BatchID:     batch.ID,
		ProviderID:  cfg.ID,
		Processed:   batch.ProcessedCount,
		Skipped:     batch.SkippedCount,
		Failed:      batch.FailedCount,
		CompletedAt: now,
	})
	plog.WithDuration(batch.Elapsed(now)).Info("batch completed",
		"processed", batch.ProcessedCount,
		"skipped", batch.SkippedCount,
		"failed", batch.FailedCount,
	)
	return nil
}
