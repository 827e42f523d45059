package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/openrice-crawler/internal/app"
	"github.com/JakeFAU/openrice-crawler/internal/crawler"
)

// newStatusCmd creates the 'status' subcommand.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Shows the pending checkpoint and the stored landmark boundary",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, appInstance *app.App) error {
			pending, err := appInstance.Frontier().Read(cmd.Context())
			if err != nil {
				return err
			}
			boundary, ok, err := appInstance.Boundary().ReadBoundary(cmd.Context())
			if err != nil {
				return err
			}

			first, last := crawler.NotAvailable, crawler.NotAvailable
			if len(pending) > 0 {
				first, last = pending[0], pending[len(pending)-1]
			}
			next := any(crawler.NotAvailable)
			if ok {
				next = boundary
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Checkpoint", appInstance.Frontier().Path()})
			t.AppendRows([]table.Row{
				{"Pending URLs", len(pending)},
				{"First pending", first},
				{"Last pending", last},
				{"Next boundary", next},
			})
			t.Render()
			return nil
		}),
	}
}
