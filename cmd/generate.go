package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/openrice-crawler/internal/app"
)

// newGenerateCmd creates the 'generate' subcommand.
func newGenerateCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Writes a new frontier and landmark boundary without crawling",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, appInstance *app.App) error {
			ctrl, err := appInstance.Controller()
			if err != nil {
				return err
			}
			r, urls, err := ctrl.Generate(cmd.Context(), f.options(cmd))
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Checkpoint", appInstance.Frontier().Path()})
			t.AppendRows([]table.Row{
				{"Start landmark", r.Start},
				{"URLs", len(urls)},
				{"Next boundary", r.Next()},
			})
			t.Render()
			return nil
		}),
	}
	addRangeFlags(cmd, &f)
	return cmd
}
