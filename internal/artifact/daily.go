// Package artifact builds the published slice documents and writes them to
// the output directory without clobbering earlier runs.
package artifact

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ghdsi/case-slicer/internal/aggregate"
)

// ErrMismatchedDates means a new-count row was paired with a cumulative row
// for a different date. It indicates a bug upstream and stops the run.
var ErrMismatchedDates = errors.New("mismatched slice rows")

// LatestFileName is the name the most recent daily slice is written under.
const LatestFileName = "latest.json"

// DailySlice is the per-date document read by the map front end.
type DailySlice struct {
	Date     string    `json:"date"`
	Features []Feature `json:"features"`
}

// Feature wraps one location's counts.
type Feature struct {
	Properties Properties `json:"properties"`
}

// Properties holds the counts at one location. New is omitted when zero.
type Properties struct {
	GeoID string `json:"geoid"`
	Total int    `json:"total"`
	New   int    `json:"new,omitempty"`
}

// BuildDaily assembles the slice for one date from that date's new counts and
// running totals. Locations with neither new cases nor a running total are
// left out.
func BuildDaily(geoIDs []string, newRow, totalRow aggregate.Row) (DailySlice, error) {
	if newRow.Date != totalRow.Date {
		return DailySlice{}, fmt.Errorf("%w: new counts for %s, totals for %s", ErrMismatchedDates, newRow.Date, totalRow.Date)
	}
	if len(newRow.Values) != len(geoIDs) || len(totalRow.Values) != len(geoIDs) {
		return DailySlice{}, fmt.Errorf("%w: %s has %d new and %d total values for %d locations",
			ErrMismatchedDates, newRow.Date, len(newRow.Values), len(totalRow.Values), len(geoIDs))
	}

	slice := DailySlice{Date: newRow.Date, Features: make([]Feature, 0)}
	for i, geoID := range geoIDs {
		n, total := newRow.Values[i], totalRow.Values[i]
		if n == 0 && total == 0 {
			continue
		}
		slice.Features = append(slice.Features, Feature{Properties: Properties{GeoID: geoID, Total: total, New: n}})
	}
	return slice, nil
}

// DailyFileName returns the file name for a date's slice: YYYY.MM.DD.json,
// or latest.json for the most recent date.
func DailyFileName(date string, latest bool) string {
	if latest {
		return LatestFileName
	}
	return strings.ReplaceAll(date, "-", ".") + ".json"
}
