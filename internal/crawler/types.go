// Package crawler defines core types shared across subsystems.
package crawler

import (
	"errors"
	"fmt"
	"time"
)

// Field defaults applied whenever a structural anchor is missing.
const (
	NotAvailable = "N/A"
	ZeroScore    = "0"
)

// ErrNoFrontier is returned when a run has nothing to process.
var ErrNoFrontier = errors.New("no frontier to process")

// LandmarkRange describes which landmark IDs were turned into a frontier.
type LandmarkRange struct {
	Start int
	Count int
}

// Validate checks the range bounds.
func (r LandmarkRange) Validate() error {
	if r.Start < 0 {
		return fmt.Errorf("landmark start must be >= 0, got %d", r.Start)
	}
	if r.Count < 1 {
		return fmt.Errorf("landmark count must be >= 1, got %d", r.Count)
	}
	return nil
}

// Next returns the first landmark ID after the range, persisted as the boundary.
func (r LandmarkRange) Next() int {
	return r.Start + r.Count
}

// RestaurantRecord is one extracted listing entry merged with its detail page.
// Every field is always populated; absence is NotAvailable (or ZeroScore for scores).
type RestaurantRecord struct {
	Name           string
	Address        string
	District       string
	CuisineType    string
	RestaurantType string
	PriceRange     string
	SmileScore     string
	CryScore       string
	Promotions     string
	Contact        string
	OpeningHours   string
	DetailURL      string
}

// NewRestaurantRecord returns a record with every field at its default.
func NewRestaurantRecord() RestaurantRecord {
	return RestaurantRecord{
		Name:           NotAvailable,
		Address:        NotAvailable,
		District:       NotAvailable,
		CuisineType:    NotAvailable,
		RestaurantType: NotAvailable,
		PriceRange:     NotAvailable,
		SmileScore:     ZeroScore,
		CryScore:       ZeroScore,
		Promotions:     NotAvailable,
		Contact:        NotAvailable,
		OpeningHours:   NotAvailable,
		DetailURL:      NotAvailable,
	}
}

// HasDetailURL reports whether the record links to a detail page.
func (r RestaurantRecord) HasDetailURL() bool {
	return r.DetailURL != "" && r.DetailURL != NotAvailable
}

// HasDetailFields reports whether contact or opening hours were filled in
// from a detail page.
func (r RestaurantRecord) HasDetailFields() bool {
	return r.Contact != NotAvailable || r.OpeningHours != NotAvailable
}

// Page is the result returned by a Fetcher implementation.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	Attempts   int
	Duration   time.Duration
}

// OK reports whether the page was served with HTTP 200.
func (p Page) OK() bool {
	return p.StatusCode == 200
}

// Batch is the set of records flushed at the end of a run.
type Batch struct {
	RunID     string
	Records   []RestaurantRecord
	Start     int
	HasStart  bool
	CreatedAt time.Time
}
