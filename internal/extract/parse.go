package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/openrice-crawler/internal/crawler"
)

// Selectors for the catalog markup.
const (
	blockSelector       = "div.poi-list-cell-desktop-container"
	nameSelector        = "div.poi-name"
	infoSectionSelector = "section.poi-list-cell-desktop-right-top-info-section"
	lineInfoSelector    = "div.poi-list-cell-line-info"
	lineInfoLinkClass   = "span.poi-list-cell-line-info-link"
	smileSelector       = "div.smile"
	crySelector         = "div.cry"
	promotionSelector   = "img[alt]"
	detailLinkSelector  = "a.poi-list-cell-desktop-right-link-overlay"
	telephoneSelector   = "section.telephone-section div.content"
	openingHoursList    = "div.opening-hours-list"
	openingHoursTime    = "div.opening-hours-time"
)

// ParseListing returns one record per listing block, detail fields unset.
func ParseListing(doc *goquery.Document, base *url.URL) []crawler.RestaurantRecord {
	blocks := doc.Find(blockSelector)
	records := make([]crawler.RestaurantRecord, 0, blocks.Length())
	blocks.Each(func(_ int, block *goquery.Selection) {
		records = append(records, parseBlock(block, base))
	})
	return records
}

func parseBlock(block *goquery.Selection, base *url.URL) crawler.RestaurantRecord {
	rec := crawler.NewRestaurantRecord()

	if name, ok := firstText(block, nameSelector); ok {
		rec.Name = name
	}
	if addr, ok := addressText(block); ok {
		rec.Address = addr
	}

	spans := block.Find(lineInfoSelector).First().Find(lineInfoLinkClass)
	for i, field := range []*string{&rec.District, &rec.CuisineType, &rec.RestaurantType, &rec.PriceRange} {
		if v, ok := nthText(spans, i); ok {
			*field = v
		}
	}
	rec.Address = ReconcileAddress(rec.Address, rec.District)

	if v, ok := firstText(block, smileSelector); ok {
		rec.SmileScore = v
	}
	if v, ok := firstText(block, crySelector); ok {
		rec.CryScore = v
	}
	if promos, ok := promotions(block); ok {
		rec.Promotions = promos
	}
	if link, ok := detailURL(block, base); ok {
		rec.DetailURL = link
	}
	return rec
}

// ParseDetail returns the contact and opening hours from a detail page,
// each crawler.NotAvailable when absent.
func ParseDetail(doc *goquery.Document) (contact, openingHours string) {
	contact, openingHours = crawler.NotAvailable, crawler.NotAvailable
	if v, ok := firstText(doc.Selection, telephoneSelector); ok {
		contact = v
	}
	hours := doc.Find(openingHoursList).First().Find(openingHoursTime)
	if v, ok := nthText(hours, 0); ok {
		openingHours = v
	}
	return contact, openingHours
}

// ReconcileAddress appends the district to a known address unless the
// address already mentions it.
func ReconcileAddress(address, district string) string {
	if address == crawler.NotAvailable || district == crawler.NotAvailable {
		return address
	}
	if strings.Contains(address, district) {
		return address
	}
	return address + ", " + district
}

// addressText reads the second direct div child of the info section.
func addressText(block *goquery.Selection) (string, bool) {
	section := block.Find(infoSectionSelector).First()
	if section.Length() == 0 {
		return "", false
	}
	return nthText(section.ChildrenFiltered("div"), 1)
}

func promotions(block *goquery.Selection) (string, bool) {
	var alts []string
	seen := make(map[string]struct{})
	block.Find(promotionSelector).Each(func(_ int, img *goquery.Selection) {
		alt := strings.TrimSpace(img.AttrOr("alt", ""))
		if alt == "" {
			return
		}
		if _, dup := seen[alt]; dup {
			return
		}
		seen[alt] = struct{}{}
		alts = append(alts, alt)
	})
	if len(alts) == 0 {
		return "", false
	}
	return strings.Join(alts, ", "), true
}

func detailURL(block *goquery.Selection, base *url.URL) (string, bool) {
	href, ok := block.Find(detailLinkSelector).First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base == nil {
		return ref.String(), ref.IsAbs()
	}
	return base.ResolveReference(ref).String(), true
}

func firstText(sel *goquery.Selection, selector string) (string, bool) {
	return nthText(sel.Find(selector), 0)
}

func nthText(sel *goquery.Selection, i int) (string, bool) {
	if i >= sel.Length() {
		return "", false
	}
	text := strippedText(sel.Eq(i))
	if text == "" {
		return "", false
	}
	return text, true
}

// strippedText concatenates every descendant text node with surrounding
// whitespace removed.
func strippedText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "#text":
				b.WriteString(strings.TrimSpace(c.Text()))
			case "#comment", "script", "style":
			default:
				walk(c)
			}
		})
	}
	walk(sel)
	return b.String()
}
