// Package linelist validates raw line-list rows and normalizes the survivors
// into case records.
package linelist

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/jonboulle/clockwork"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ghdsi/case-slicer/internal/domain"
)

// Reason identifies which check rejected a record. Values are used as metric
// labels.
type Reason string

const (
	RejectCoordinates     Reason = "coordinates"
	RejectExcludedCountry Reason = "excluded_country"
	RejectMissingDate     Reason = "missing_date"
	RejectInvalidDate     Reason = "invalid_date"
	RejectFutureDate      Reason = "future_date"
)

// Reasons lists every rejection reason in evaluation order.
var Reasons = []Reason{
	RejectCoordinates,
	RejectExcludedCountry,
	RejectMissingDate,
	RejectInvalidDate,
	RejectFutureDate,
}

// DefaultExcludedCountries are covered by the cumulative feed and dropped from
// the line list to avoid counting them twice.
var DefaultExcludedCountries = []string{"United States", "Virgin Islands, U.S.", "Puerto Rico"}

// Rejection is returned by Check when a record fails validation.
type Rejection struct {
	Reason Reason
	Value  string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("rejected (%s): %q", r.Reason, r.Value)
}

var confirmationDate = regexp.MustCompile(`\d{2}\.\d{2}\.\d{4}`)

const confirmationLayout = "02.01.2006"

// Cleaner applies the line-list admission checks. It is not safe for
// concurrent use.
type Cleaner struct {
	excluded map[string]struct{}
	clock    clockwork.Clock
	title    cases.Caser
}

// NewCleaner creates a Cleaner that drops the given countries and rejects
// confirmation dates later than the clock's current date in its own zone.
func NewCleaner(excludedCountries []string, clock clockwork.Clock) *Cleaner {
	excluded := make(map[string]struct{}, len(excludedCountries))
	for _, c := range excludedCountries {
		if c = normalizeSpace(c); c != "" {
			excluded[strings.ToLower(c)] = struct{}{}
		}
	}
	return &Cleaner{
		excluded: excluded,
		clock:    clock,
		title:    cases.Title(language.Und),
	}
}

// Check validates one raw row. Coordinates are checked first, then the
// country exclusion, then the confirmation date. A failing row yields a
// *Rejection.
func (c *Cleaner) Check(raw domain.RawCaseRecord) (domain.CaseRecord, error) {
	lat, err := parseCoordinate(raw.Latitude)
	if err != nil {
		return domain.CaseRecord{}, err
	}
	lng, err := parseCoordinate(raw.Longitude)
	if err != nil {
		return domain.CaseRecord{}, err
	}

	country := normalizeSpace(raw.Country)
	if _, ok := c.excluded[strings.ToLower(country)]; ok {
		return domain.CaseRecord{}, &Rejection{Reason: RejectExcludedCountry, Value: raw.Country}
	}

	date, err := c.confirmedOn(raw.DateConfirmation)
	if err != nil {
		return domain.CaseRecord{}, err
	}

	return domain.CaseRecord{
		City:      c.name(raw.City),
		Province:  c.name(raw.Province),
		Country:   c.countryName(country),
		Latitude:  lat,
		Longitude: lng,
		Date:      date,
		GeoID:     domain.MakeGeoID(lat, lng),
	}, nil
}

// Report summarizes a Clean pass.
type Report struct {
	Read     int
	Kept     int
	Rejected map[Reason]int
	// Samples holds the first rejection seen for each reason.
	Samples map[Reason]*Rejection
}

// RejectedTotal returns the number of dropped rows.
func (r Report) RejectedTotal() int {
	n := 0
	for _, v := range r.Rejected {
		n += v
	}
	return n
}

// Clean checks every row and returns the survivors in input order.
func (c *Cleaner) Clean(raws []domain.RawCaseRecord) ([]domain.CaseRecord, Report) {
	report := Report{
		Read:     len(raws),
		Rejected: make(map[Reason]int),
		Samples:  make(map[Reason]*Rejection),
	}
	kept := make([]domain.CaseRecord, 0, len(raws))
	for _, raw := range raws {
		rec, err := c.Check(raw)
		if err != nil {
			var rej *Rejection
			if errors.As(err, &rej) {
				report.Rejected[rej.Reason]++
				if _, ok := report.Samples[rej.Reason]; !ok {
					report.Samples[rej.Reason] = rej
				}
			}
			continue
		}
		kept = append(kept, rec)
	}
	report.Kept = len(kept)
	return kept, report
}

// confirmedOn extracts the last DD.MM.YYYY date in s, so a range yields its
// ending date.
func (c *Cleaner) confirmedOn(s string) (string, error) {
	matches := confirmationDate.FindAllString(s, -1)
	if len(matches) == 0 {
		return "", &Rejection{Reason: RejectMissingDate, Value: s}
	}
	last := matches[len(matches)-1]

	t, err := time.Parse(confirmationLayout, last)
	if err != nil {
		return "", &Rejection{Reason: RejectInvalidDate, Value: last}
	}
	// Calendar dates compare against today in the clock's own zone.
	if t.Format(time.DateOnly) > c.clock.Now().Format(time.DateOnly) {
		return "", &Rejection{Reason: RejectFutureDate, Value: last}
	}

	iso, err := domain.NormalizeDate(last)
	if err != nil {
		return "", &Rejection{Reason: RejectInvalidDate, Value: last}
	}
	return iso, nil
}

func (c *Cleaner) name(s string) string {
	s = normalizeSpace(s)
	if s == "" {
		return ""
	}
	return c.title.String(s)
}

// countryName title-cases a country name but keeps ISO codes such as "FR".
func (c *Cleaner) countryName(s string) string {
	if isCountryCode(s) {
		return s
	}
	return c.name(s)
}

func isCountryCode(s string) bool {
	return len(s) == 2 && s[0] >= 'A' && s[0] <= 'Z' && s[1] >= 'A' && s[1] <= 'Z'
}

func parseCoordinate(s string) (float64, error) {
	if s == "" || strings.IndexFunc(s, unicode.IsLetter) >= 0 {
		return 0, &Rejection{Reason: RejectCoordinates, Value: s}
	}
	v, err := domain.ParseCoordinate(s)
	if err != nil {
		return 0, &Rejection{Reason: RejectCoordinates, Value: s}
	}
	return v, nil
}

func normalizeSpace(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
}
