// Package schedule implements the long-running scheduler command.
package schedule

import (
	"github.com/spf13/cobra"

	"github.com/chefstream/harvester/cmd/common"
	"github.com/chefstream/harvester/internal/scheduler"
)

// Command returns the schedule command.
func Command() *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Harvest all enabled providers on a recurring schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := common.Setup()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			if err := app.Recovery.ResumeAll(ctx); err != nil {
				return err
			}

			sched := scheduler.New(
				app.Config.Schedule.Cron,
				app.Orchestrator,
				app.Providers,
				app.Batches,
				app.Logger,
			)
			if err := sched.Start(); err != nil {
				return err
			}
			if runNow {
				sched.RunOnce()
			}

			<-ctx.Done()
			app.Logger.Info("shutdown signal received")
			sched.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&runNow, "run-now", false, "run one tick immediately at startup")
	return cmd
}
