// Package output encodes a run's records as a CSV artifact and hands it to
// blob stores.
package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/openrice-crawler/internal/crawler"
)

// ContentType is the media type of the artifact.
const ContentType = "text/csv; charset=utf-8"

// timestampLayout renders YYYY-MM-DD_HH-MM-SS.
const timestampLayout = "2006-01-02_15-04-05"

// Header is the artifact's column order.
var Header = []string{
	"Name",
	"Address",
	"District",
	"Cuisine Type",
	"Restaurant Type",
	"Price Range",
	"Smile Score",
	"Cry Score",
	"Promotions",
	"Contact",
	"Opening Hours",
	"URL",
}

// Row returns rec's columns in Header order.
func Row(rec crawler.RestaurantRecord) []string {
	return []string{
		rec.Name,
		rec.Address,
		rec.District,
		rec.CuisineType,
		rec.RestaurantType,
		rec.PriceRange,
		rec.SmileScore,
		rec.CryScore,
		rec.Promotions,
		rec.Contact,
		rec.OpeningHours,
		rec.DetailURL,
	}
}

// Encode writes the header and one row per record.
func Encode(w io.Writer, records []crawler.RestaurantRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, rec := range records {
		if err := cw.Write(Row(rec)); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// EncodeBytes is Encode into a fresh buffer.
func EncodeBytes(records []crawler.RestaurantRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileName returns restaurants_{start}_{timestamp}.csv, using "resume" in
// place of the start when the run resumed without a known start.
func FileName(start int, hasStart bool, at time.Time) string {
	label := "resume"
	if hasStart {
		label = strconv.Itoa(start)
	}
	return fmt.Sprintf("restaurants_%s_%s.csv", label, at.Format(timestampLayout))
}

// SuffixedName inserts _n before the extension of name; n == 0 returns name.
func SuffixedName(name string, n int) string {
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n, ext)
}
