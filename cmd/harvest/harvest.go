// Package harvest implements the one-shot harvest command. It resumes any
// interrupted batches, then runs a single batch for the named providers,
// or for every enabled provider when none are named.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/chefstream/harvester/cmd/common"
	"github.com/chefstream/harvester/internal/domain"
	"github.com/chefstream/harvester/internal/saga"
)

// Command returns the harvest command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "harvest [provider-id...]",
		Short: "Run one ingestion batch per provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := common.Setup()
			if err != nil {
				return err
			}
			defer app.Close()

			return run(cmd.Context(), app, args)
		},
	}
}

func run(ctx context.Context, app *common.App, providerIDs []string) error {
	if err := app.Recovery.ResumeAll(ctx); err != nil {
		return err
	}

	cfgs, err := resolveProviders(ctx, app, providerIDs)
	if err != nil {
		return err
	}
	if len(cfgs) == 0 {
		app.Logger.Info("no enabled providers to harvest")
		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, len(cfgs))
	for i, cfg := range cfgs {
		wg.Add(1)
		go func(i int, cfg *domain.ProviderConfig) {
			defer wg.Done()
			errs[i] = runProvider(ctx, app, cfg)
		}(i, cfg)
	}
	wg.Wait()

	snap := app.Metrics.Snapshot()
	app.Logger.Info("harvest finished",
		"processed", snap.ProcessedCount,
		"skipped", snap.SkippedCount,
		"failed", snap.FailedCount,
	)
	return errors.Join(errs...)
}

func runProvider(ctx context.Context, app *common.App, cfg *domain.ProviderConfig) error {
	batch, err := app.Orchestrator.Run(ctx, cfg)
	if err != nil {
		if ctx.Err() != nil {
			// Interrupted runs are resumed on the next start.
			return nil
		}
		var cfgErr *saga.ConfigurationError
		if errors.As(err, &cfgErr) {
			app.Logger.WithProvider(cfg.ID).WithError(err).Warn("provider skipped")
			return nil
		}
		return fmt.Errorf("provider %s: %w", cfg.ID, err)
	}
	app.Logger.WithProvider(cfg.ID).WithBatch(batch.ID).Info("batch finished",
		"processed", batch.ProcessedCount,
		"skipped", batch.SkippedCount,
		"failed", batch.FailedCount,
	)
	return nil
}

func resolveProviders(ctx context.Context, app *common.App, providerIDs []string) ([]*domain.ProviderConfig, error) {
	if len(providerIDs) == 0 {
		cfgs, err := app.Providers.GetAllEnabled(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list enabled providers: %w", err)
		}
		return cfgs, nil
	}

	cfgs := make([]*domain.ProviderConfig, 0, len(providerIDs))
	for _, id := range providerIDs {
		cfg, err := app.Providers.GetByProviderID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load provider %s: %w", id, err)
		}
		cfgs = append(cfgs, cfg)
	}
	return cfgs, nil
}
