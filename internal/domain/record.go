package domain

import "strings"

// RawCaseRecord is one line-list row as read from the feed, before any
// validation. Empty strings mean the cell was absent.
type RawCaseRecord struct {
	City             string
	Province         string
	Country          string
	Latitude         string
	Longitude        string
	DateConfirmation string
}

// CaseRecord is a validated case ready for aggregation.
type CaseRecord struct {
	City      string
	Province  string
	Country   string
	Latitude  float64
	Longitude float64
	Date      string // YYYY-MM-DD
	GeoID     string
}

// Place names a location key. Places come from both feeds and feed the
// location info table.
type Place struct {
	GeoID     string
	City      string
	Province  string
	Country   string
	Latitude  float64
	Longitude float64
}

// Place returns the place the record was observed at.
func (r CaseRecord) Place() Place {
	return Place{
		GeoID:     r.GeoID,
		City:      r.City,
		Province:  r.Province,
		Country:   r.Country,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
	}
}

// Blank returns s trimmed, or "" when s is a missing-value marker.
func Blank(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "nan", "none", "null":
		return ""
	}
	return s
}
