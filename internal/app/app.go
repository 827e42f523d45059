// Package app builds the crawler's long-lived services from configuration
// and hands them to the CLI commands, acting as a dependency injection
// container.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/openrice-crawler/internal/clock/system"
	"github.com/JakeFAU/openrice-crawler/internal/config"
	"github.com/JakeFAU/openrice-crawler/internal/crawler"
	"github.com/JakeFAU/openrice-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/openrice-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/openrice-crawler/internal/frontier"
	"github.com/JakeFAU/openrice-crawler/internal/id/uuid"
	"github.com/JakeFAU/openrice-crawler/internal/metrics"
	"github.com/JakeFAU/openrice-crawler/internal/output"
	"github.com/JakeFAU/openrice-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/openrice-crawler/internal/prompt"
	"github.com/JakeFAU/openrice-crawler/internal/runner"
	"github.com/JakeFAU/openrice-crawler/internal/storage/gcs"
	"github.com/JakeFAU/openrice-crawler/internal/storage/local"
)

// StorageClientFactory opens the GCS client used for the artifact mirror.
type StorageClientFactory func(ctx context.Context) (*storage.Client, error)

// DefaultStorageClientFactory uses application default credentials.
func DefaultStorageClientFactory(ctx context.Context) (*storage.Client, error) {
	return storage.NewClient(ctx)
}

// Options carry the process-level inputs that do not come from Config.
type Options struct {
	In     io.Reader
	Out    io.Writer
	Logger *zap.Logger
	// NewStorageClient defaults to DefaultStorageClientFactory.
	NewStorageClient StorageClientFactory
}

// App holds the shared services for one CLI invocation.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	frontier *frontier.Store
	boundary *frontier.BoundaryStore
	fetcher  *collyfetcher.Fetcher
	extract  *extract.Pipeline
	writer   *output.Writer
	prompter *prompt.Console
	clock    crawler.Clock
	ids      crawler.IDGenerator

	gcsClient *storage.Client
	metrics   *metrics.Server
}

// NewApp creates and wires every service. It fails fast if any of them
// cannot be initialized.
func NewApp(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.NewStorageClient == nil {
		opts.NewStorageClient = DefaultStorageClientFactory
	}

	store, err := frontier.NewStore(frontier.Config{
		CheckpointPath:  cfg.Frontier.CheckpointPath,
		ListingTemplate: cfg.Crawler.ListingTemplate,
		RegionID:        cfg.Crawler.RegionID,
	}, logger.Named("frontier"))
	if err != nil {
		return nil, fmt.Errorf("init frontier store: %w", err)
	}
	boundary, err := frontier.NewBoundaryStore(cfg.Frontier.BoundaryPath)
	if err != nil {
		return nil, fmt.Errorf("init boundary store: %w", err)
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.Timeout(),
		Limiter: ratelimit.New(ratelimit.Config{
			RPS:   cfg.HTTP.RequestsPerSecond,
			Burst: cfg.HTTP.Burst,
		}),
	}, crawler.NewExponentialRetryPolicy(cfg.RetryConfig()), logger.Named("fetcher"))

	pipeline, err := extract.New(fetcher, extract.Config{BaseURL: cfg.Crawler.BaseURL}, logger)
	if err != nil {
		return nil, fmt.Errorf("init extractor: %w", err)
	}

	primary, err := local.New(local.Config{BaseDir: cfg.Output.Dir})
	if err != nil {
		return nil, fmt.Errorf("init output dir: %w", err)
	}
	a := &App{
		cfg:      cfg,
		logger:   logger,
		frontier: store,
		boundary: boundary,
		fetcher:  fetcher,
		extract:  pipeline,
		clock:    system.New(),
		ids:      uuid.NewUUIDGenerator(),
	}

	var mirror crawler.BlobStore
	if cfg.Output.GCSBucket != "" {
		client, err := opts.NewStorageClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.gcsClient = client
		blob, err := gcs.New(client, gcs.Config{Bucket: cfg.Output.GCSBucket, Prefix: cfg.Output.GCSPrefix})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("init gcs mirror: %w", err)
		}
		logger.Info("mirroring artifacts to gcs", zap.String("bucket", cfg.Output.GCSBucket))
		mirror = blob
	}
	a.writer, err = output.NewWriter(primary, mirror, logger)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("init output writer: %w", err)
	}

	if opts.In != nil && opts.Out != nil {
		a.prompter = prompt.NewConsole(opts.In, opts.Out, cfg.Crawler.StopKey, logger)
	}
	return a, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Frontier returns the checkpoint store.
func (a *App) Frontier() *frontier.Store {
	return a.frontier
}

// Boundary returns the landmark boundary store.
func (a *App) Boundary() *frontier.BoundaryStore {
	return a.boundary
}

// Controller builds a run controller over the app's services.
func (a *App) Controller() (*runner.Controller, error) {
	deps := runner.Deps{
		Frontier:  a.frontier,
		Boundary:  a.boundary,
		Extractor: a.extract,
		Writer:    a.writer,
		Clock:     a.clock,
		IDs:       a.ids,
		Logger:    a.logger,
	}
	if a.prompter != nil {
		deps.Prompter = a.prompter
	}
	return runner.New(deps)
}

// StartMetrics serves /metrics and /healthz when metrics.listen_addr is set.
func (a *App) StartMetrics() {
	if a.cfg.Metrics.ListenAddr == "" || a.metrics != nil {
		return
	}
	a.metrics = metrics.NewServer(a.cfg.Metrics.ListenAddr, a.logger.Named("metrics"))
	a.metrics.Start()
}

// Close shuts down the metrics listener and the GCS client.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
		}
		a.metrics = nil
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close gcs client: %w", err))
		}
		a.gcsClient = nil
	}
	return errors.Join(errs...)
}
