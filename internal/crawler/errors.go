package crawler

import (
	"errors"
	"fmt"
)

// ErrorKind classifies fetch failures.
type ErrorKind string

// Fetch failure kinds.
const (
	// KindTransient covers timeouts, connection failures and 5xx responses
	// that persisted after every retry.
	KindTransient ErrorKind = "transient"
	// KindNonTransientHTTP covers non-200 statuses that are never retried.
	KindNonTransientHTTP ErrorKind = "non_transient_http"
	// KindInvalidURL is returned before any request is made.
	KindInvalidURL ErrorKind = "invalid_url"
)

// FetchError is the only error type a Fetcher returns for a failed URL.
type FetchError struct {
	URL        string
	Kind       ErrorKind
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StatusError builds the error reported for a non-200 page.
func StatusError(page Page) *FetchError {
	return &FetchError{
		URL:        page.URL,
		Kind:       KindNonTransientHTTP,
		StatusCode: page.StatusCode,
		Attempts:   page.Attempts,
	}
}

// KindOf returns the ErrorKind carried by err, or "" when err is not a FetchError.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
