package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/openrice-crawler/internal/crawler"
)

func fastPolicy(maxRetries int) crawler.RetryPolicy {
	return crawler.NewExponentialRetryPolicy(crawler.RetryConfig{
		MaxRetries:    maxRetries,
		BackoffFactor: time.Millisecond,
		BackoffMax:    5 * time.Millisecond,
	})
}

func TestFetchRetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	f := New(Config{Timeout: time.Second}, fastPolicy(5), nil)
	page, err := f.Fetch(context.Background(), srv.URL+"/listing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, 3, page.Attempts)
	assert.Equal(t, "<html>ok</html>", string(page.Body))
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchDoesNotRetryNotFound(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	f := New(Config{Timeout: time.Second}, fastPolicy(5), nil)
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, page.StatusCode)
	assert.False(t, page.OK())
	assert.Equal(t, 1, page.Attempts)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchExhaustsRetries(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := New(Config{Timeout: time.Second}, fastPolicy(2), nil)
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var fe *crawler.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, crawler.KindTransient, fe.Kind)
	assert.Equal(t, http.StatusBadGateway, fe.StatusCode)
	assert.Equal(t, 3, fe.Attempts)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchTransportErrorBecomesFetchError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	f := New(Config{Timeout: time.Second}, fastPolicy(1), nil)
	_, err := f.Fetch(context.Background(), addr)
	require.Error(t, err)
	assert.Equal(t, crawler.KindTransient, crawler.KindOf(err))

	var fe *crawler.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 2, fe.Attempts)
	assert.Error(t, fe.Err)
}

func TestFetchRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	f := New(Config{}, fastPolicy(3), nil)
	_, err := f.Fetch(context.Background(), crawler.NotAvailable)
	assert.Equal(t, crawler.KindInvalidURL, crawler.KindOf(err))
}

func TestFetchSendsBrowserUserAgentAndHeaders(t *testing.T) {
	t.Parallel()

	var gotUA, gotLang atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.UserAgent())
		gotLang.Store(r.Header.Get("Accept-Language"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(Config{Headers: map[string]string{"Accept-Language": "en-US"}}, nil, nil)
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent, gotUA.Load())
	assert.Equal(t, "en-US", gotLang.Load())
}

func TestFetchStopsRetryingWhenContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	f := New(Config{Timeout: time.Second}, crawler.NewExponentialRetryPolicy(crawler.RetryConfig{
		MaxRetries:    5,
		BackoffFactor: time.Hour,
	}), nil)
	f.pause = func(ctx context.Context, _ time.Duration) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}

	_, err := f.Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, crawler.KindTransient, crawler.KindOf(err))
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil, nil)
	var page crawler.Page
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, "https://example.com/a", &page, &fetchErr)
	if hooks.onRequest == nil || hooks.onResponse == nil || hooks.onError == nil {
		t.Fatal("expected hooks to be registered")
	}

	hooks.onRequest(&colly.Request{URL: mustParseURL(t, "https://example.com/a"), Headers: &http.Header{}})

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers:    &http.Header{},
		Request: &colly.Request{
			URL: mustParseURL(t, "https://example.com/b"),
		},
	})
	assert.Equal(t, http.StatusCreated, page.StatusCode)
	assert.Equal(t, "body", string(page.Body))
	assert.Equal(t, "https://example.com/a", page.URL)
	assert.Equal(t, "https://example.com/b", page.FinalURL)

	hooks.onError(&colly.Response{StatusCode: 0}, errors.New("boom"))
	require.EqualError(t, fetchErr, "boom")
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}

type countingLimiter struct {
	calls atomic.Int32
	err   error
}

func (l *countingLimiter) Wait(context.Context, string) error {
	l.calls.Add(1)
	return l.err
}

func TestFetchWaitsOnLimiterEveryAttempt(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	limiter := &countingLimiter{}
	f := New(Config{Limiter: limiter}, fastPolicy(3), nil)
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, int32(2), limiter.calls.Load())
}

func TestFetchLimiterErrorIsTransient(t *testing.T) {
	t.Parallel()

	limiter := &countingLimiter{err: errors.New("limiter closed")}
	f := New(Config{Limiter: limiter}, fastPolicy(3), nil)
	_, err := f.Fetch(context.Background(), "https://www.openrice.com/x")

	var fe *crawler.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, crawler.KindTransient, fe.Kind)
	assert.Equal(t, int32(1), limiter.calls.Load())
}
