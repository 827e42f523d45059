// Package cmd defines and implements the CLI commands for the crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/openrice-crawler/internal/app"
	"github.com/JakeFAU/openrice-crawler/internal/config"
	"github.com/JakeFAU/openrice-crawler/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It's a variable so tests can swap the
// storage client factory or the whole container.
var newApp = func(ctx context.Context, cfg config.Config, opts app.Options) (*app.App, error) {
	return app.NewApp(ctx, cfg, opts)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "openrice-crawler",
		Short: "A resumable crawler for the OpenRice restaurant catalog.",
		Long: `openrice-crawler turns a range of landmark IDs into listing URLs, crawls
each listing and its restaurant detail pages, and writes the records to a
timestamped CSV. Progress is checkpointed after every URL, so an interrupted
run resumes where it stopped.`,
		SilenceUsage: true,

		// Config and services are built here so every subcommand shares them.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Config{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, app.Options{
				In:     cmd.InOrStdin(),
				Out:    cmd.OutOrStdout(),
				Logger: logger,
			})
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// Execute is the main entry point.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// withApp adapts a subcommand body to cobra's RunE. The App is closed when
// the body returns, error or not; cobra skips post-run hooks after a failed
// RunE.
func withApp(run func(cmd *cobra.Command, a *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) (err error) {
		appInstance, err := resolveApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			_ = appInstance.Logger().Sync()
			if closeErr := appInstance.Close(context.WithoutCancel(cmd.Context())); closeErr != nil {
				err = errors.Join(err, closeErr)
			}
		}()
		return run(cmd, appInstance)
	}
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}
