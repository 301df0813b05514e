package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ghdsi/case-slicer/internal/aggregate"
	"github.com/ghdsi/case-slicer/internal/domain"
)

var cumulativeColumns = []string{"Admin2", "Province_State", "Country_Region", "Lat", "Long_"}

// Header date layouts used by the cumulative feed, tried in order.
var cumulativeDateLayouts = []string{"1/2/06", "1/2/2006"}

// CumulativeSeries is the decoded wide-format cumulative feed: one running
// total per location per date.
type CumulativeSeries struct {
	dates  []string
	places []domain.Place
	totals [][]int
	// Dropped counts rows excluded by the location filters.
	Dropped int
}

// Dates returns the ISO dates of the series in ascending order.
func (s *CumulativeSeries) Dates() []string { return s.dates }

// Places returns one place per kept row, in feed order.
func (s *CumulativeSeries) Places() []domain.Place { return s.places }

// Matrix differences the running totals into new-case counts.
func (s *CumulativeSeries) Matrix() *aggregate.Matrix {
	geoIDs := make([]string, len(s.places))
	for i, p := range s.places {
		geoIDs[i] = p.GeoID
	}
	return aggregate.FromCumulative(s.dates, geoIDs, s.totals)
}

type dateColumn struct {
	index int
	date  string
}

// ReadCumulative decodes the wide cumulative layout: location columns
// followed by one column per date with an M/D/YY header. Rows with a blank
// location field, an "Unassigned" county, or coordinates at 0,0 are dropped.
func ReadCumulative(r io.Reader) (*CumulativeSeries, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read cumulative header: %w", err)
	}
	idx, err := columnIndex(header, cumulativeColumns)
	if err != nil {
		return nil, fmt.Errorf("cumulative feed: %w", err)
	}

	var cols []dateColumn
	for i, h := range header {
		if d, ok := parseHeaderDate(strings.TrimSpace(h)); ok {
			cols = append(cols, dateColumn{index: i, date: d})
		}
	}
	if len(cols) == 0 {
		return nil, errors.New("cumulative feed: no date columns in header")
	}
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].date < cols[j].date })

	s := &CumulativeSeries{dates: make([]string, len(cols))}
	for i, c := range cols {
		s.dates[i] = c.date
	}

	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read cumulative feed: %w", err)
		}
		line++

		cell := func(i int) string {
			if i >= len(row) {
				return ""
			}
			return domain.Blank(row[i])
		}

		place, ok, err := cumulativePlace(cell, idx)
		if err != nil {
			return nil, fmt.Errorf("cumulative feed line %d: %w", line, err)
		}
		if !ok {
			s.Dropped++
			continue
		}

		totals := make([]int, len(cols))
		for i, c := range cols {
			v := cell(c.index)
			if v == "" {
				continue
			}
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("cumulative feed line %d: count %q for %s: %w", line, v, c.date, err)
			}
			totals[i] = int(n)
		}

		s.places = append(s.places, place)
		s.totals = append(s.totals, totals)
	}
	return s, nil
}

func cumulativePlace(cell func(int) string, idx map[string]int) (domain.Place, bool, error) {
	city := cell(idx["Admin2"])
	province := cell(idx["Province_State"])
	country := cell(idx["Country_Region"])
	latText := cell(idx["Lat"])
	lngText := cell(idx["Long_"])
	if city == "" || province == "" || country == "" || latText == "" || lngText == "" {
		return domain.Place{}, false, nil
	}
	if city == "Unassigned" {
		return domain.Place{}, false, nil
	}

	lat, err := domain.ParseCoordinate(latText)
	if err != nil {
		return domain.Place{}, false, err
	}
	lng, err := domain.ParseCoordinate(lngText)
	if err != nil {
		return domain.Place{}, false, err
	}
	if lat == 0 && lng == 0 {
		return domain.Place{}, false, nil
	}

	return domain.Place{
		GeoID:     domain.MakeGeoID(lat, lng),
		City:      city,
		Province:  province,
		Country:   country,
		Latitude:  lat,
		Longitude: lng,
	}, true, nil
}

func parseHeaderDate(h string) (string, bool) {
	for _, layout := range cumulativeDateLayouts {
		if t, err := time.Parse(layout, h); err == nil {
			return t.Format(time.DateOnly), true
		}
	}
	return "", false
}
