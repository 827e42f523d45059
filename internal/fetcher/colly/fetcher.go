// Package collyfetcher implements crawler.Fetcher using gocolly with bounded retries.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/openrice-crawler/internal/crawler"
	"github.com/JakeFAU/openrice-crawler/internal/metrics"
)

// DefaultUserAgent mimics a desktop Chrome browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/58.0.3029.110 Safari/537.3"

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	Headers   map[string]string
	// Limiter, when set, is waited on before every attempt.
	Limiter crawler.RateLimiter
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	retry         crawler.RetryPolicy
	baseCollector *colly.Collector
	logger        *zap.Logger
	pause         func(ctx context.Context, d time.Duration) error
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. A nil retry policy disables retries.
func New(cfg Config, retry crawler.RetryPolicy, logger *zap.Logger) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if retry == nil {
		retry = noRetry{crawler.NewExponentialRetryPolicy(crawler.RetryConfig{})}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	opts := []colly.CollectorOption{
		colly.Async(false),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, colly.Headers(cfg.Headers))
	}
	c := colly.NewCollector(opts...)
	// One transport for every clone keeps the connection pool warm.
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		retry:         retry,
		baseCollector: c,
		logger:        logger,
		pause:         sleepContext,
	}
}

// Fetch performs a GET with retries on transient failures. Non-transient
// statuses come back as a Page; exhausted retries come back as a
// *crawler.FetchError of kind crawler.KindTransient.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.Page, error) {
	if err := crawler.ValidateFetchURL(rawURL); err != nil {
		return crawler.Page{}, &crawler.FetchError{URL: rawURL, Kind: crawler.KindInvalidURL, Err: err}
	}

	start := time.Now()
	defer func() { metrics.ObserveFetch(rawURL, time.Since(start)) }()

	for attempt := 1; ; attempt++ {
		if f.cfg.Limiter != nil {
			if err := f.cfg.Limiter.Wait(ctx, rawURL); err != nil {
				return crawler.Page{}, &crawler.FetchError{
					URL:      rawURL,
					Kind:     crawler.KindTransient,
					Attempts: attempt - 1,
					Err:      err,
				}
			}
		}
		page, err := f.fetchOnce(ctx, rawURL)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return crawler.Page{}, &crawler.FetchError{
				URL:      rawURL,
				Kind:     crawler.KindTransient,
				Attempts: attempt,
				Err:      ctxErr,
			}
		}
		if err == nil && !f.retry.Retryable(page.StatusCode, nil) {
			page.Attempts = attempt
			page.Duration = time.Since(start)
			return page, nil
		}
		if !f.retry.ShouldRetry(page.StatusCode, err, attempt) {
			return crawler.Page{}, &crawler.FetchError{
				URL:        rawURL,
				Kind:       crawler.KindTransient,
				StatusCode: page.StatusCode,
				Attempts:   attempt,
				Err:        err,
			}
		}

		delay := f.retry.Backoff(attempt)
		f.logger.Warn("transient fetch failure, retrying",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Int("status_code", page.StatusCode),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		metrics.ObserveRetry(rawURL)
		if err := f.pause(ctx, delay); err != nil {
			return crawler.Page{}, &crawler.FetchError{
				URL:      rawURL,
				Kind:     crawler.KindTransient,
				Attempts: attempt,
				Err:      err,
			}
		}
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (crawler.Page, error) {
	var (
		page     crawler.Page
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	f.configureCollectorHooks(collector, rawURL, &page, &fetchErr)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return crawler.Page{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return page, fmt.Errorf("colly response failed: %w", fetchErr)
		}
		if err != nil {
			return page, fmt.Errorf("colly visit failed: %w", err)
		}
		return page, nil
	}
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	rawURL string,
	page *crawler.Page,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		f.logger.Debug("requesting", zap.String("url", r.URL.String()))
	})

	hooks.OnResponse(func(r *colly.Response) {
		*page = crawler.Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			page.URL = rawURL
			page.StatusCode = r.StatusCode
		}
		*fetchErr = err
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// noRetry keeps the transient classification but never schedules another attempt.
type noRetry struct {
	crawler.RetryPolicy
}

func (noRetry) ShouldRetry(int, error, int) bool { return false }

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
	}
}
