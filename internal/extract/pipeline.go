// Package extract turns catalog listing pages into restaurant records,
// fetching each record's detail page for contact and opening hours.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/openrice-crawler/internal/crawler"
	"github.com/JakeFAU/openrice-crawler/internal/metrics"
)

// DefaultBaseURL is the origin detail links are resolved against.
const DefaultBaseURL = "https://www.openrice.com"

// Config controls detail URL resolution.
type Config struct {
	BaseURL string
}

// Pipeline implements crawler.Extractor on top of a crawler.Fetcher.
type Pipeline struct {
	fetcher crawler.Fetcher
	base    *url.URL
	logger  *zap.Logger
}

var _ crawler.Extractor = (*Pipeline)(nil)

// New constructs a Pipeline.
func New(fetcher crawler.Fetcher, cfg Config, logger *zap.Logger) (*Pipeline, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Pipeline{
		fetcher: fetcher,
		base:    base,
		logger:  logger.Named("extract"),
	}, nil
}

// Extract fetches listingURL and returns one record per listing block. A
// failed listing fetch is returned as an error; a failed detail fetch only
// leaves that record's detail fields at their defaults. Detail pages that
// known reports are not fetched and keep the defaults too.
func (p *Pipeline) Extract(
	ctx context.Context,
	listingURL string,
	known crawler.DetailKnown,
) ([]crawler.RestaurantRecord, error) {
	logger := p.logger.With(zap.String("url", listingURL))

	page, err := p.fetcher.Fetch(ctx, listingURL)
	if err != nil {
		return nil, err
	}
	if !page.OK() {
		return nil, crawler.StatusError(page)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse listing %s: %w", listingURL, err)
	}

	records := ParseListing(doc, p.base)
	logger.Info("listing parsed", zap.Int("blocks", len(records)))

	for i := range records {
		if !records[i].HasDetailURL() {
			logger.Debug("record has no detail link", zap.String("name", records[i].Name))
			continue
		}
		if known != nil && known(records[i].DetailURL) {
			logger.Debug("detail already held, not refetched", zap.String("detail_url", records[i].DetailURL))
			continue
		}
		records[i].Contact, records[i].OpeningHours = p.detail(ctx, records[i].DetailURL)
	}
	return records, nil
}

func (p *Pipeline) detail(ctx context.Context, detailURL string) (string, string) {
	logger := p.logger.With(zap.String("detail_url", detailURL))

	page, err := p.fetcher.Fetch(ctx, detailURL)
	if err == nil && !page.OK() {
		err = crawler.StatusError(page)
	}
	if err != nil {
		metrics.ObserveDetail("failed")
		logger.Warn("detail fetch failed", zap.Error(err))
		return crawler.NotAvailable, crawler.NotAvailable
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		metrics.ObserveDetail("failed")
		logger.Warn("detail parse failed", zap.Error(err))
		return crawler.NotAvailable, crawler.NotAvailable
	}
	metrics.ObserveDetail("ok")
	return ParseDetail(doc)
}
