// Package runner drives one crawl run: it decides where the frontier comes
// from, consumes it one listing URL at a time while keeping the checkpoint
// current, and flushes the collected records when the frontier is exhausted
// or the operator asks to stop.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/openrice-crawler/internal/crawler"
	"github.com/JakeFAU/openrice-crawler/internal/metrics"
)

// ErrMissingInput is returned when a value is needed but neither a flag nor
// an operator prompt can supply it.
var ErrMissingInput = errors.New("missing run input")

// Prompt texts shown to the operator.
const (
	questionSource = "Checkpoint found. Do you want to (R)esume or (G)enerate new URLs? (R/G): "
	questionStart  = "Enter the start landmark ID: "
	questionCount  = "Enter the range of landmark IDs: "
)

// Mode selects what happens when a checkpoint already exists.
type Mode int

// Checkpoint modes.
const (
	// ModeAsk prompts the operator, resuming by default.
	ModeAsk Mode = iota
	ModeResume
	ModeRegenerate
)

// Options are the per-run inputs, usually from CLI flags.
type Options struct {
	Start    int
	StartSet bool
	Count    int
	CountSet bool
	Mode     Mode
	// Interactive allows prompting for values the flags left out.
	Interactive bool
	// Delay pauses between listing URLs; the stop signal cuts it short.
	Delay time.Duration
}

// Summary reports what a run did.
type Summary struct {
	RunID       string
	Start       int
	HasStart    bool
	Resumed     bool
	Total       int
	Processed   int
	Skipped     int
	Duplicates  int
	Records     int
	Remaining   int
	Interrupted bool
	OutputURI   string
	Elapsed     time.Duration
}

// Deps are the collaborators a Controller needs. Prompter may be nil, in
// which case only signals stop the run and nothing is ever prompted.
type Deps struct {
	Frontier  crawler.FrontierStore
	Boundary  crawler.BoundaryStore
	Extractor crawler.Extractor
	Writer    crawler.BatchWriter
	Prompter  crawler.Prompter
	Clock     crawler.Clock
	IDs       crawler.IDGenerator
	Logger    *zap.Logger
}

// Controller runs the decide-source, process and flush stages.
type Controller struct {
	deps   Deps
	logger *zap.Logger
}

// New validates deps and returns a Controller.
func New(deps Deps) (*Controller, error) {
	switch {
	case deps.Frontier == nil:
		return nil, fmt.Errorf("frontier store is required")
	case deps.Boundary == nil:
		return nil, fmt.Errorf("boundary store is required")
	case deps.Extractor == nil:
		return nil, fmt.Errorf("extractor is required")
	case deps.Writer == nil:
		return nil, fmt.Errorf("batch writer is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	case deps.IDs == nil:
		return nil, fmt.Errorf("id generator is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Controller{deps: deps, logger: logger.Named("runner")}, nil
}

// source is the outcome of the decide-source stage.
type source struct {
	urls     []string
	start    int
	hasStart bool
	resumed  bool
}

// Run executes one crawl. Cancelling ctx, or a stop request from the
// prompter, ends processing at the next URL boundary; the batch is still
// flushed and the summary marks the run interrupted.
func (c *Controller) Run(ctx context.Context, opts Options) (Summary, error) {
	runID, err := c.deps.IDs.NewID()
	if err != nil {
		return Summary{}, fmt.Errorf("run id: %w", err)
	}
	logger := c.logger.With(zap.String("run_id", runID))
	summary := Summary{RunID: runID}

	src, err := c.decideSource(ctx, opts, logger)
	if err != nil {
		return summary, err
	}
	summary.Start, summary.HasStart, summary.Resumed = src.start, src.hasStart, src.resumed
	summary.Total = len(src.urls)
	if len(src.urls) == 0 {
		return summary, crawler.ErrNoFrontier
	}

	var stop <-chan struct{}
	if c.deps.Prompter != nil && opts.Interactive {
		stop = c.deps.Prompter.StopRequests(ctx)
	}

	started := c.deps.Clock.Now()
	logger.Info("crawl started", zap.Int("urls", len(src.urls)), zap.Bool("resumed", src.resumed))

	p := &pass{
		Controller: c,
		logger:     logger,
		summary:    &summary,
		seen:       make(map[string]struct{}, len(src.urls)),
		seenDetail: make(map[string]int),
	}
	processErr := p.process(ctx, stop, src.urls, opts.Delay)

	// Flushing must survive the stop signal.
	flushCtx := context.WithoutCancel(ctx)
	uri, flushErr := c.deps.Writer.WriteBatch(flushCtx, crawler.Batch{
		RunID:     runID,
		Records:   p.records,
		Start:     src.start,
		HasStart:  src.hasStart,
		CreatedAt: c.deps.Clock.Now(),
	})
	if flushErr != nil {
		flushErr = fmt.Errorf("flush batch: %w", flushErr)
	}
	summary.OutputURI = uri
	summary.Records = len(p.records)
	summary.Elapsed = c.deps.Clock.Now().Sub(started)

	logger.Info("crawl finished",
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("records", summary.Records),
		zap.Int("remaining", summary.Remaining),
		zap.Bool("interrupted", summary.Interrupted),
		zap.String("output", summary.OutputURI),
		zap.Float64("elapsed_seconds", summary.Elapsed.Seconds()),
	)
	return summary, errors.Join(processErr, flushErr)
}

func (c *Controller) decideSource(ctx context.Context, opts Options, logger *zap.Logger) (source, error) {
	existing, err := c.deps.Frontier.Read(ctx)
	if err != nil {
		return source{}, fmt.Errorf("read checkpoint: %w", err)
	}

	if len(existing) > 0 {
		mode := opts.Mode
		if mode == ModeAsk {
			mode = ModeResume
			if c.canPrompt(opts) {
				answer, err := c.deps.Prompter.Ask(ctx, questionSource)
				if err != nil {
					return source{}, fmt.Errorf("ask resume or generate: %w", err)
				}
				if strings.EqualFold(answer, "g") {
					mode = ModeRegenerate
				}
			}
		}
		if mode == ModeResume {
			logger.Info("resuming from existing checkpoint", zap.Int("pending", len(existing)))
			return source{urls: existing, resumed: true}, nil
		}
		logger.Info("regenerating frontier, discarding checkpoint", zap.Int("discarded", len(existing)))
	}

	r, urls, err := c.generate(ctx, opts, logger)
	if err != nil {
		return source{}, err
	}
	return source{urls: urls, start: r.Start, hasStart: true}, nil
}

// Generate replaces the checkpoint with a fresh frontier and advances the
// landmark boundary, without crawling. The start comes from opts, then the
// stored boundary, then a prompt; the count from opts, then a prompt.
func (c *Controller) Generate(ctx context.Context, opts Options) (crawler.LandmarkRange, []string, error) {
	return c.generate(ctx, opts, c.logger)
}

func (c *Controller) generate(ctx context.Context, opts Options, logger *zap.Logger) (crawler.LandmarkRange, []string, error) {
	start, err := c.resolveStart(ctx, opts, logger)
	if err != nil {
		return crawler.LandmarkRange{}, nil, err
	}
	count, err := c.resolveCount(ctx, opts)
	if err != nil {
		return crawler.LandmarkRange{}, nil, err
	}
	r := crawler.LandmarkRange{Start: start, Count: count}
	if err := r.Validate(); err != nil {
		return crawler.LandmarkRange{}, nil, err
	}
	urls, err := c.deps.Frontier.Generate(ctx, r)
	if err != nil {
		return crawler.LandmarkRange{}, nil, fmt.Errorf("generate frontier: %w", err)
	}
	if err := c.deps.Boundary.WriteBoundary(ctx, r.Next()); err != nil {
		logger.Warn("could not persist landmark boundary", zap.Int("next", r.Next()), zap.Error(err))
	}
	return r, urls, nil
}

func (c *Controller) resolveStart(ctx context.Context, opts Options, logger *zap.Logger) (int, error) {
	if opts.StartSet {
		return opts.Start, nil
	}
	if id, ok, err := c.deps.Boundary.ReadBoundary(ctx); err != nil {
		logger.Warn("could not read landmark boundary", zap.Error(err))
	} else if ok {
		logger.Info("using previous run's ending landmark ID as the start", zap.Int("landmark_id", id))
		return id, nil
	}
	return c.askInt(ctx, opts, questionStart, "start landmark ID")
}

func (c *Controller) resolveCount(ctx context.Context, opts Options) (int, error) {
	if opts.CountSet {
		return opts.Count, nil
	}
	return c.askInt(ctx, opts, questionCount, "landmark count")
}

func (c *Controller) askInt(ctx context.Context, opts Options, question, what string) (int, error) {
	if !c.canPrompt(opts) {
		return 0, fmt.Errorf("%w: %s", ErrMissingInput, what)
	}
	answer, err := c.deps.Prompter.Ask(ctx, question)
	if err != nil {
		return 0, fmt.Errorf("ask %s: %w", what, err)
	}
	n, err := strconv.Atoi(answer)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not an integer", what, answer)
	}
	return n, nil
}

func (c *Controller) canPrompt(opts Options) bool {
	return opts.Interactive && c.deps.Prompter != nil
}
