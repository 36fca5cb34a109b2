// Package cmd implements the harvester command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chefstream/harvester/cmd/harvest"
	"github.com/chefstream/harvester/cmd/providers"
	"github.com/chefstream/harvester/cmd/schedule"
	"github.com/chefstream/harvester/internal/config"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "harvester",
		Short: "Bounded recipe ingestion from partner providers",
		Long: `Harvester runs bounded ingestion batches against configured recipe
providers: discovering candidate URLs, filtering already-ingested content
by fingerprint, and extracting and persisting new recipes. Interrupted
batches resume from their last checkpoint on the next start.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command with signal-aware cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cobra.OnInitialize(func() {
		if err := config.InitializeViper(cfgFile); err != nil {
			fmt.Printf("failed to initialize configuration: %v\n", err)
		}
	})

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml, ./config/config.yaml, or /etc/harvester/config.yaml)",
	)

	rootCmd.AddCommand(harvest.Command())
	rootCmd.AddCommand(schedule.Command())
	rootCmd.AddCommand(providers.Command())
}
