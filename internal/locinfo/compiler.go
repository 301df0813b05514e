// Package locinfo compiles the location info table that maps each geo id to
// the place name and ISO country code of the first case seen there.
package locinfo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/ghdsi/case-slicer/internal/countries"
	"github.com/ghdsi/case-slicer/internal/domain"
)

// Entry is one line of the location info table.
type Entry struct {
	GeoID    string
	City     string
	Province string
	Code     string
}

// String renders the entry as "geoid:city,province,code".
func (e Entry) String() string {
	return e.GeoID + ":" + e.City + "," + e.Province + "," + e.Code
}

// Compiler collects the first place seen at each geo id. Entries are never
// updated once added. A Compiler is built fresh for every run.
type Compiler struct {
	table    *countries.Table
	geocoder domain.Geocoder
	logger   *slog.Logger

	entries []Entry
	seen    map[string]struct{}
	unknown map[string]struct{}
}

// NewCompiler creates a Compiler. geocoder may be nil; when set it fills in
// blank city names from the coordinates.
func NewCompiler(table *countries.Table, geocoder domain.Geocoder, logger *slog.Logger) *Compiler {
	return &Compiler{
		table:    table,
		geocoder: geocoder,
		logger:   logger,
		seen:     make(map[string]struct{}),
		unknown:  make(map[string]struct{}),
	}
}

// Add records p unless its geo id has already been seen. Unknown country names
// are logged once and recorded with an empty code.
func (c *Compiler) Add(ctx context.Context, p domain.Place) {
	if _, ok := c.seen[p.GeoID]; ok {
		return
	}
	c.seen[p.GeoID] = struct{}{}

	city := domain.Blank(p.City)
	if city == "" && c.geocoder != nil {
		city = c.lookupCity(ctx, p)
	}

	c.entries = append(c.entries, Entry{
		GeoID:    p.GeoID,
		City:     city,
		Province: domain.Blank(p.Province),
		Code:     c.resolve(domain.Blank(p.Country)),
	})
}

// AddRecords adds the place of every record in order.
func (c *Compiler) AddRecords(ctx context.Context, records []domain.CaseRecord) {
	for _, r := range records {
		c.Add(ctx, r.Place())
	}
}

// AddPlaces adds every place in order.
func (c *Compiler) AddPlaces(ctx context.Context, places []domain.Place) {
	for _, p := range places {
		c.Add(ctx, p)
	}
}

// Entries returns the table in first-seen order.
func (c *Compiler) Entries() []Entry { return c.entries }

// Len returns the number of distinct geo ids.
func (c *Compiler) Len() int { return len(c.entries) }

// UnknownCountries returns the country names that did not resolve, sorted.
func (c *Compiler) UnknownCountries() []string {
	out := make([]string, 0, len(c.unknown))
	for name := range c.unknown {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// WriteTo writes the table as newline-joined entries.
func (c *Compiler) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for i, e := range c.entries {
		if i > 0 {
			k, err := bw.WriteString("\n")
			n += int64(k)
			if err != nil {
				return n, err
			}
		}
		k, err := bw.WriteString(e.String())
		n += int64(k)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// WriteFile writes the table to path, replacing any existing file.
func (c *Compiler) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create location info: %w", err)
	}
	if _, err := c.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write location info %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close location info %s: %w", path, err)
	}
	c.logger.Info("location info written", "path", path, "locations", len(c.entries))
	return nil
}

func (c *Compiler) resolve(country string) string {
	if country == "" {
		return ""
	}
	code, err := c.table.ResolveCode(country)
	if err != nil {
		if errors.Is(err, countries.ErrUnknownCountry) {
			if _, logged := c.unknown[country]; !logged {
				c.logger.Warn("unknown country, using empty code", "country", country)
			}
			c.unknown[country] = struct{}{}
		}
		return ""
	}
	return code
}

func (c *Compiler) lookupCity(ctx context.Context, p domain.Place) string {
	result, err := c.geocoder.ReverseGeocode(ctx, p.Latitude, p.Longitude)
	if err != nil {
		c.logger.Warn("reverse geocode failed, leaving city blank",
			"geoid", p.GeoID,
			"error", err,
		)
		return ""
	}
	return result.PlaceName
}
