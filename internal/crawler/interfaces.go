package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher performs one logical GET, retries included.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// RetryPolicy decides which outcomes are retried and how long to wait.
type RetryPolicy interface {
	// Retryable reports whether the outcome of one attempt is transient.
	Retryable(statusCode int, err error) bool
	// ShouldRetry reports whether another attempt follows attempt number attempt.
	ShouldRetry(statusCode int, err error, attempt int) bool
	// Backoff returns the wait before the retry that follows attempt.
	Backoff(attempt int) time.Duration
}

// FrontierStore persists the listing URLs still to process.
type FrontierStore interface {
	Generate(ctx context.Context, r LandmarkRange) ([]string, error)
	Read(ctx context.Context) ([]string, error)
	Write(ctx context.Context, urls []string) error
}

// BoundaryStore persists the next landmark ID across runs.
type BoundaryStore interface {
	ReadBoundary(ctx context.Context) (int, bool, error)
	WriteBoundary(ctx context.Context, id int) error
}

// DetailKnown reports whether a detail URL's fields are already held, so
// the page need not be fetched again.
type DetailKnown func(detailURL string) bool

// Extractor turns one listing URL into zero or more records. known may be nil.
type Extractor interface {
	Extract(ctx context.Context, listingURL string, known DetailKnown) ([]RestaurantRecord, error)
}

// BatchWriter flushes the run's records and returns the artifact URI.
type BatchWriter interface {
	WriteBatch(ctx context.Context, batch Batch) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Prompter asks the operator for input and relays stop requests.
type Prompter interface {
	Ask(ctx context.Context, question string) (string, error)
	// StopRequests returns a channel closed when the operator asks to stop.
	StopRequests(ctx context.Context) <-chan struct{}
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator creates run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// RateLimiter paces requests per host.
type RateLimiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Hasher computes a content digest.
type Hasher interface {
	Hash(data []byte) (string, error)
}
