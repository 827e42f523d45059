package extract

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/openrice-crawler/internal/crawler"
)

const listingFixture = `<html><body>
<div class="poi-list-cell-desktop-container">
  <div class="poi-name"> Tasty <span>Noodle</span> </div>
  <section class="poi-list-cell-desktop-right-top-info-section">
    <div><div>Nested</div>Header</div>
    <div> 12 Main Street </div>
    <div>Third</div>
  </section>
  <div class="poi-list-cell-line-info">
    <span class="poi-list-cell-line-info-link">Mong Kok</span>
    <span class="poi-list-cell-line-info-link">Cantonese</span>
    <span class="poi-list-cell-line-info-link">Noodles</span>
    <span class="poi-list-cell-line-info-link">$51-100</span>
  </div>
  <div class="smile">120</div>
  <div class="cry">3</div>
  <img src="a.png" alt="10% Off">
  <img src="b.png">
  <img src="c.png" alt="Booking">
  <a class="poi-list-cell-desktop-right-link-overlay" href="/en/hongkong/r-tasty-noodle-r1"></a>
</div>
<div class="poi-list-cell-desktop-container">
  <div class="poi-name">Harbour Grill</div>
  <section class="poi-list-cell-desktop-right-top-info-section">
    <div>Header</div>
    <div>1 Nathan Road, Tsim Sha Tsui</div>
  </section>
  <div class="poi-list-cell-line-info">
    <span class="poi-list-cell-line-info-link">Tsim Sha Tsui</span>
    <span class="poi-list-cell-line-info-link">Western</span>
  </div>
  <a class="poi-list-cell-desktop-right-link-overlay" href="/en/hongkong/r-harbour-grill-r2"></a>
</div>
<div class="poi-list-cell-desktop-container">
  <div class="poi-name">   </div>
  <section class="poi-list-cell-desktop-right-top-info-section"><div>Only one</div></section>
</div>
</body></html>`

const detailFixture = `<html><body>
<section class="telephone-section"><div class="title">Phone</div><div class="content"> 2345 6789 </div></section>
<div class="opening-hours-list">
  <div class="opening-hours-day"><div class="opening-hours-time">11:00 - 22:00</div></div>
  <div class="opening-hours-day"><div class="opening-hours-time">12:00 - 21:00</div></div>
</div>
</body></html>`

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestParseListing(t *testing.T) {
	t.Parallel()
	records := ParseListing(mustDoc(t, listingFixture), mustURL(t, DefaultBaseURL))

	empty := crawler.NewRestaurantRecord()
	want := []crawler.RestaurantRecord{
		{
			Name:           "TastyNoodle",
			Address:        "12 Main Street, Mong Kok",
			District:       "Mong Kok",
			CuisineType:    "Cantonese",
			RestaurantType: "Noodles",
			PriceRange:     "$51-100",
			SmileScore:     "120",
			CryScore:       "3",
			Promotions:     "10% Off, Booking",
			Contact:        crawler.NotAvailable,
			OpeningHours:   crawler.NotAvailable,
			DetailURL:      "https://www.openrice.com/en/hongkong/r-tasty-noodle-r1",
		},
		{
			Name:           "Harbour Grill",
			Address:        "1 Nathan Road, Tsim Sha Tsui",
			District:       "Tsim Sha Tsui",
			CuisineType:    "Western",
			RestaurantType: crawler.NotAvailable,
			PriceRange:     crawler.NotAvailable,
			SmileScore:     crawler.ZeroScore,
			CryScore:       crawler.ZeroScore,
			Promotions:     crawler.NotAvailable,
			Contact:        crawler.NotAvailable,
			OpeningHours:   crawler.NotAvailable,
			DetailURL:      "https://www.openrice.com/en/hongkong/r-harbour-grill-r2",
		},
		empty,
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Fatalf("ParseListing mismatch (-want +got):\n%s", diff)
	}
}

func TestParseListingNoBlocks(t *testing.T) {
	t.Parallel()
	records := ParseListing(mustDoc(t, "<html><body><p>nothing</p></body></html>"), nil)
	assert.Empty(t, records)
}

func TestParseListingIsIdempotent(t *testing.T) {
	t.Parallel()
	base := mustURL(t, DefaultBaseURL)
	first := ParseListing(mustDoc(t, listingFixture), base)
	second := ParseListing(mustDoc(t, listingFixture), base)
	assert.Empty(t, cmp.Diff(first, second))
}

func TestPromotionsSkipEmptyAndRepeatedAlts(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		imgs string
		want string
	}{
		{"only empty alt", `<img alt="">`, crawler.NotAvailable},
		{"blank alt", `<img alt="   ">`, crawler.NotAvailable},
		{"empty alt after a label", `<img alt="Deal"><img alt="">`, "Deal"},
		{"repeated label", `<img alt="Deal"><img alt=" Deal "><img alt="Booking">`, "Deal, Booking"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			html := `<div class="poi-list-cell-desktop-container">` + tc.imgs + `</div>`
			records := ParseListing(mustDoc(t, html), nil)
			require.Len(t, records, 1)
			assert.Equal(t, tc.want, records[0].Promotions)
		})
	}
}

func TestDetailURLResolution(t *testing.T) {
	t.Parallel()
	html := `<div class="poi-list-cell-desktop-container">
<a class="poi-list-cell-desktop-right-link-overlay" href="https://cdn.example.com/r/1"></a></div>`
	records := ParseListing(mustDoc(t, html), mustURL(t, "https://www.openrice.com"))
	require.Len(t, records, 1)
	assert.Equal(t, "https://cdn.example.com/r/1", records[0].DetailURL)

	html = `<div class="poi-list-cell-desktop-container">
<a class="poi-list-cell-desktop-right-link-overlay" href=""></a></div>`
	records = ParseListing(mustDoc(t, html), mustURL(t, "https://www.openrice.com"))
	require.Len(t, records, 1)
	assert.False(t, records[0].HasDetailURL())
}

func TestParseDetail(t *testing.T) {
	t.Parallel()
	contact, hours := ParseDetail(mustDoc(t, detailFixture))
	assert.Equal(t, "2345 6789", contact)
	assert.Equal(t, "11:00 - 22:00", hours)

	contact, hours = ParseDetail(mustDoc(t, "<html><body></body></html>"))
	assert.Equal(t, crawler.NotAvailable, contact)
	assert.Equal(t, crawler.NotAvailable, hours)
}

func TestReconcileAddress(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		address  string
		district string
		want     string
	}{
		{"appends district", "12 Main Street", "Mong Kok", "12 Main Street, Mong Kok"},
		{"already contains district", "1 Nathan Road, Tsim Sha Tsui", "Tsim Sha Tsui", "1 Nathan Road, Tsim Sha Tsui"},
		{"address unknown", crawler.NotAvailable, "Mong Kok", crawler.NotAvailable},
		{"district unknown", "12 Main Street", crawler.NotAvailable, "12 Main Street"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ReconcileAddress(tc.address, tc.district))
		})
	}
}

func TestStrippedTextSkipsComments(t *testing.T) {
	t.Parallel()
	doc := mustDoc(t, `<div id="x"> a <!-- hidden --> <b> b </b></div>`)
	assert.Equal(t, "ab", strippedText(doc.Find("#x")))
}
