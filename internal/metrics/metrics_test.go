package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Www.OpenRice.com/en/hongkong", "www.openrice.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitAndObserve(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if crawlerListingsTotal == nil || crawlerRecordsTotal == nil || crawlerFrontierRemaining == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	before := testutil.ToFloat64(crawlerListingsTotal.WithLabelValues("skipped"))
	ObserveListing("skipped")
	if got := testutil.ToFloat64(crawlerListingsTotal.WithLabelValues("skipped")); got != before+1 {
		t.Errorf("expected skipped listings to be %f, got %f", before+1, got)
	}

	recordsBefore := testutil.ToFloat64(crawlerRecordsTotal)
	ObserveRecords(3)
	ObserveRecords(0)
	if got := testutil.ToFloat64(crawlerRecordsTotal); got != recordsBefore+3 {
		t.Errorf("expected records to grow by 3, got %f", got-recordsBefore)
	}

	SetFrontierRemaining(7)
	if got := testutil.ToFloat64(crawlerFrontierRemaining); got != 7 {
		t.Errorf("expected frontier remaining 7, got %f", got)
	}

	ObserveRetry("https://www.openrice.com/x")
	if got := testutil.ToFloat64(crawlerFetchRetriesTotal.WithLabelValues("www.openrice.com")); got < 1 {
		t.Errorf("expected a retry to be recorded, got %f", got)
	}
	ObserveFetch("https://www.openrice.com/x", 250*time.Millisecond)
	if got := testutil.CollectAndCount(crawlerFetchDurationSeconds); got <= 0 {
		t.Errorf("expected fetch duration to be observed, got %d", got)
	}
	ObserveRateLimitDelay("https://www.openrice.com/x", 50*time.Millisecond)
	if got := testutil.CollectAndCount(crawlerRateLimitDelay); got <= 0 {
		t.Errorf("expected rate limit delay to be observed, got %d", got)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://www.openrice.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
