package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/openrice-crawler/internal/app"
	"github.com/JakeFAU/openrice-crawler/internal/runner"
)

// runFlags are the inputs shared by crawl and generate.
type runFlags struct {
	start          int
	count          int
	resume         bool
	regenerate     bool
	nonInteractive bool
}

func (f runFlags) options(cmd *cobra.Command) runner.Options {
	opts := runner.Options{
		Start:       f.start,
		StartSet:    cmd.Flags().Changed("start"),
		Count:       f.count,
		CountSet:    cmd.Flags().Changed("count"),
		Interactive: !f.nonInteractive,
	}
	switch {
	case f.resume:
		opts.Mode = runner.ModeResume
	case f.regenerate:
		opts.Mode = runner.ModeRegenerate
	}
	return opts
}

func addRangeFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().IntVar(&f.start, "start", 0, "first landmark ID (default: stored boundary, else prompt)")
	cmd.Flags().IntVar(&f.count, "count", 0, "number of landmark IDs to generate (default: prompt)")
	cmd.Flags().BoolVar(&f.nonInteractive, "non-interactive", false, "fail instead of prompting for missing values")
}

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the pending frontier, generating one first if needed",
		Long: `Resumes the checkpoint if one exists (or regenerates it on request), then
fetches every listing URL in order, rewriting the checkpoint after each one.
Press q then Enter, or send SIGINT/SIGTERM, to stop after the current URL;
the records collected so far are still written.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, appInstance *app.App) error {
			return runCrawl(cmd, appInstance, f)
		}),
	}
	addRangeFlags(cmd, &f)
	cmd.Flags().BoolVar(&f.resume, "resume", false, "resume an existing checkpoint without asking")
	cmd.Flags().BoolVar(&f.regenerate, "regenerate", false, "discard an existing checkpoint and generate a new frontier")
	cmd.MarkFlagsMutuallyExclusive("resume", "regenerate")
	return cmd
}

func runCrawl(cmd *cobra.Command, appInstance *app.App, f runFlags) error {
	ctrl, err := appInstance.Controller()
	if err != nil {
		return err
	}
	appInstance.StartMetrics()

	ctx, stop := interruptContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := f.options(cmd)
	opts.Delay = appInstance.Config().Delay()
	summary, runErr := ctrl.Run(ctx, opts)
	if summary.Total > 0 {
		renderSummary(cmd, summary)
	}
	if runErr != nil {
		return fmt.Errorf("crawl: %w", runErr)
	}
	return nil
}

// interruptContext is canceled by the first of sigs. The handler is then
// released, so a second signal gets the default behavior and ends the
// process even while a fetch is still retrying.
func interruptContext(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	go func() {
		select {
		case <-ch:
		case <-ctx.Done():
		}
		signal.Stop(ch)
		cancel()
	}()
	return ctx, cancel
}

func renderSummary(cmd *cobra.Command, s runner.Summary) {
	start := "resume"
	if s.HasStart {
		start = fmt.Sprint(s.Start)
	}
	output := s.OutputURI
	if output == "" {
		output = "(no records)"
	}
	t := newTable(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Run", s.RunID})
	t.AppendRows([]table.Row{
		{"Start landmark", start},
		{"URLs in frontier", s.Total},
		{"Processed", s.Processed},
		{"Skipped", s.Skipped},
		{"Duplicates", s.Duplicates},
		{"Records", s.Records},
		{"Remaining", s.Remaining},
		{"Interrupted", s.Interrupted},
		{"Output", output},
	})
	t.Render()
	fmt.Fprintf(cmd.OutOrStdout(), "Total elapsed time: %.2f seconds\n", s.Elapsed.Seconds())
}
