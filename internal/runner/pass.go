package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/openrice-crawler/internal/crawler"
	"github.com/JakeFAU/openrice-crawler/internal/metrics"
)

// pass holds the state of one processing stage.
type pass struct {
	*Controller
	logger  *zap.Logger
	summary *Summary
	records []crawler.RestaurantRecord

	// seen holds normalized listing URLs consumed this run; seenDetail maps
	// detail URLs already in the batch to their index in records.
	seen       map[string]struct{}
	seenDetail map[string]int
}

// process consumes urls in order, rewriting the checkpoint to the
// unprocessed suffix after each one. It returns only checkpoint errors.
func (p *pass) process(ctx context.Context, stop <-chan struct{}, urls []string, delay time.Duration) error {
	// In-flight work completes even after a stop request.
	work := context.WithoutCancel(ctx)
	p.summary.Remaining = len(urls)
	metrics.SetFrontierRemaining(len(urls))

	for i, u := range urls {
		if stopRequested(ctx, stop) {
			p.summary.Interrupted = true
			p.logger.Info("stop requested, checkpoint saved", zap.Int("remaining", len(urls)-i))
			return nil
		}

		p.logger.Info("processing URL",
			zap.Int("index", i+1),
			zap.Int("total", len(urls)),
			zap.String("url", u),
		)
		p.consume(work, u)

		remaining := urls[i+1:]
		if err := p.deps.Frontier.Write(work, remaining); err != nil {
			return fmt.Errorf("write checkpoint: %w", err)
		}
		p.summary.Remaining = len(remaining)
		metrics.SetFrontierRemaining(len(remaining))

		if delay > 0 && len(remaining) > 0 {
			pause(ctx, stop, delay)
		}
	}
	return nil
}

// consume extracts one listing URL unless it was already consumed this run.
func (p *pass) consume(ctx context.Context, rawURL string) {
	p.summary.Processed++
	key := rawURL
	if norm, err := crawler.NormalizeURL(rawURL); err == nil {
		key = norm
	}
	if _, dup := p.seen[key]; dup {
		p.summary.Duplicates++
		metrics.ObserveListing("duplicate")
		p.logger.Warn("duplicate URL in checkpoint, skipping", zap.String("url", rawURL))
		return
	}
	p.seen[key] = struct{}{}

	records, err := p.deps.Extractor.Extract(ctx, rawURL, p.detailKnown)
	if err != nil {
		p.summary.Skipped++
		metrics.ObserveListing("skipped")
		p.logger.Warn("listing skipped",
			zap.String("url", rawURL),
			zap.String("kind", string(crawler.KindOf(err))),
			zap.Error(err),
		)
		return
	}
	metrics.ObserveListing("extracted")

	added := 0
	for _, rec := range records {
		if rec.HasDetailURL() {
			if idx, dup := p.seenDetail[rec.DetailURL]; dup {
				// A later listing may succeed where the first detail fetch failed.
				if !p.records[idx].HasDetailFields() && rec.HasDetailFields() {
					p.records[idx] = rec
					p.logger.Info("detail fields filled from a later listing", zap.String("detail_url", rec.DetailURL))
				}
				continue
			}
			p.seenDetail[rec.DetailURL] = len(p.records)
		}
		p.records = append(p.records, rec)
		added++
	}
	metrics.ObserveRecords(added)
	p.logger.Info("listing extracted",
		zap.String("url", rawURL),
		zap.Int("found", len(records)),
		zap.Int("added", added),
	)
}

// detailKnown reports whether the batch already holds filled-in detail
// fields for detailURL.
func (p *pass) detailKnown(detailURL string) bool {
	idx, ok := p.seenDetail[detailURL]
	return ok && p.records[idx].HasDetailFields()
}

func stopRequested(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stop:
		return true
	default:
		return false
	}
}

// pause waits for d or until a stop is requested.
func pause(ctx context.Context, stop <-chan struct{}, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-stop:
	}
}
