// Package providers implements the providers command, which lists the
// currently enabled providers in a formatted table.
package providers

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/chefstream/harvester/cmd/common"
	"github.com/chefstream/harvester/internal/domain"
)

// Command returns the providers command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List enabled providers and their harvest settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := common.Setup()
			if err != nil {
				return err
			}
			defer app.Close()

			cfgs, err := app.Providers.GetAllEnabled(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list enabled providers: %w", err)
			}
			renderTable(cfgs)
			return nil
		},
	}
}

func renderTable(cfgs []*domain.ProviderConfig) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"ID", "Name", "Strategy", "Base URL", "Batch Size", "Window", "Req/Min"})
	for _, cfg := range cfgs {
		t.AppendRow(table.Row{
			cfg.ID,
			cfg.Name,
			string(cfg.DiscoveryStrategy),
			cfg.BaseURL,
			cfg.BatchSize,
			cfg.MaxDuration().String(),
			cfg.MaxRequestsPerMinute,
		})
	}
	t.Render()
}
