package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ghdsi/case-slicer/internal/artifact"
	"github.com/ghdsi/case-slicer/internal/domain"
	"github.com/ghdsi/case-slicer/internal/pipeline"
)

// output is a slicer output directory loaded into memory. Files that fail to
// parse are kept in the *Errs maps so the phases can report them.
type output struct {
	index      []string
	daily      map[string]artifact.DailySlice
	dailyErrs  map[string]error
	countries  map[string]artifact.CountrySlice
	countryErr map[string]error
	locations  []string
}

func loadOutput(dir string) (*output, error) {
	dailyDir := filepath.Join(dir, pipeline.DailyDir)
	index, err := artifact.ReadIndex(filepath.Join(dailyDir, artifact.IndexFileName))
	if err != nil {
		return nil, err
	}

	out := &output{
		index:      index,
		daily:      make(map[string]artifact.DailySlice),
		dailyErrs:  make(map[string]error),
		countries:  make(map[string]artifact.CountrySlice),
		countryErr: make(map[string]error),
	}

	names, err := jsonFiles(dailyDir)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		var s artifact.DailySlice
		if err := readJSON(filepath.Join(dailyDir, name), &s); err != nil {
			out.dailyErrs[name] = err
			continue
		}
		out.daily[name] = s
	}

	countryDir := filepath.Join(dir, pipeline.CountryDir)
	names, err = jsonFiles(countryDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, name := range names {
		var s artifact.CountrySlice
		if err := readJSON(filepath.Join(countryDir, name), &s); err != nil {
			out.countryErr[name] = err
			continue
		}
		out.countries[name] = s
	}

	out.locations, err = readLines(filepath.Join(dir, pipeline.LocationInfoFileName))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// checkIndex compares index.txt with the daily slice files on disk.
func checkIndex(out *output) *phase {
	p := &phase{name: "Index matches daily files"}

	listed := make(map[string]bool, len(out.index))
	for _, name := range out.index {
		if listed[name] {
			p.errorf("index lists %s twice", name)
		}
		listed[name] = true
	}
	onDisk := make(map[string]bool)
	for name := range out.daily {
		onDisk[name] = true
	}
	for name := range out.dailyErrs {
		onDisk[name] = true
	}

	for _, name := range sortedKeys(listed) {
		if !onDisk[name] {
			p.errorf("index lists %s but the file is missing", name)
		}
	}
	for _, name := range sortedKeys(onDisk) {
		if !listed[name] {
			p.errorf("%s is not listed in the index", name)
		}
	}

	if !sort.IsSorted(sort.Reverse(sort.StringSlice(out.index))) {
		p.errorf("index is not in reverse order")
	}
	return p
}

// checkDailySlices validates each daily slice on its own.
func checkDailySlices(out *output) *phase {
	p := &phase{name: "Daily slice structure"}

	for _, name := range sortedKeys(out.dailyErrs) {
		p.errorf("%s: %v", name, out.dailyErrs[name])
	}

	latest, hasLatest := out.daily[artifact.LatestFileName]
	for _, name := range sortedKeys(out.daily) {
		s := out.daily[name]
		if _, err := time.Parse(time.DateOnly, s.Date); err != nil {
			p.errorf("%s: invalid date %q", name, s.Date)
			continue
		}
		if name != artifact.LatestFileName {
			if want := artifact.DailyFileName(s.Date, false); name != want {
				p.errorf("%s: holds %s, expected file name %s", name, s.Date, want)
			}
			if hasLatest && s.Date >= latest.Date {
				p.errorf("%s: date %s is not older than latest.json (%s)", name, s.Date, latest.Date)
			}
		}

		seen := make(map[string]bool, len(s.Features))
		for _, f := range s.Features {
			props := f.Properties
			if seen[props.GeoID] {
				p.errorf("%s: geoid %s listed twice", name, props.GeoID)
			}
			seen[props.GeoID] = true
			if !validGeoID(props.GeoID) {
				p.errorf("%s: malformed geoid %q", name, props.GeoID)
			}
			if props.New == 0 && props.Total == 0 {
				p.errorf("%s: geoid %s has neither new cases nor a total", name, props.GeoID)
			}
			if props.New < 0 || props.Total < props.New {
				p.errorf("%s: geoid %s has new=%d total=%d", name, props.GeoID, props.New, props.Total)
			}
		}
	}
	return p
}

// checkRunningTotals walks the daily slices in date order and checks that
// each location's total never drops and grows by exactly its new count.
func checkRunningTotals(out *output) *phase {
	p := &phase{name: "Running totals are consistent"}

	slices := make([]artifact.DailySlice, 0, len(out.daily))
	for _, s := range out.daily {
		slices = append(slices, s)
	}
	sort.Slice(slices, func(i, j int) bool { return slices[i].Date < slices[j].Date })

	prev := make(map[string]int)
	for _, s := range slices {
		cur := make(map[string]int, len(s.Features))
		for _, f := range s.Features {
			props := f.Properties
			cur[props.GeoID] = props.Total
			before := prev[props.GeoID]
			if props.Total < before {
				p.errorf("%s: geoid %s total dropped from %d to %d", s.Date, props.GeoID, before, props.Total)
			} else if props.Total != before+props.New {
				p.errorf("%s: geoid %s total %d != previous %d + new %d", s.Date, props.GeoID, props.Total, before, props.New)
			}
		}
		for _, geoID := range sortedKeys(prev) {
			if _, ok := cur[geoID]; !ok && prev[geoID] > 0 {
				p.errorf("%s: geoid %s with total %d is missing", s.Date, geoID, prev[geoID])
				cur[geoID] = prev[geoID]
			}
		}
		prev = cur
	}
	return p
}

// checkCountrySlices validates the per-country files.
func checkCountrySlices(out *output) *phase {
	p := &phase{name: "Country slices"}

	for _, name := range sortedKeys(out.countryErr) {
		p.errorf("%s: %v", name, out.countryErr[name])
	}

	for _, name := range sortedKeys(out.countries) {
		if !isCountryCode(strings.TrimSuffix(name, ".json")) {
			p.errorf("%s: file name is not an ISO code", name)
		}
		s := out.countries[name]
		var geoIDs []string
		for _, date := range sortedKeys(s) {
			if _, err := time.Parse(time.DateOnly, date); err != nil {
				p.errorf("%s: invalid date %q", name, date)
			}
			counts := s[date]
			keys := sortedKeys(counts)
			if geoIDs == nil {
				geoIDs = keys
			} else if strings.Join(keys, ",") != strings.Join(geoIDs, ",") {
				p.errorf("%s: %s does not list the same locations as the other dates", name, date)
			}
			for _, geoID := range keys {
				if counts[geoID] < 0 {
					p.errorf("%s: %s geoid %s has negative count %d", name, date, geoID, counts[geoID])
				}
			}
		}
	}
	return p
}

// checkLocationInfo validates location_info.data and that it covers every
// location in latest.json.
func checkLocationInfo(out *output) *phase {
	p := &phase{name: "Location info"}

	known := make(map[string]bool, len(out.locations))
	for i, line := range out.locations {
		geoID, rest, ok := strings.Cut(line, ":")
		if !ok || !validGeoID(geoID) {
			p.errorf("line %d: malformed geoid in %q", i+1, line)
			continue
		}
		if known[geoID] {
			p.errorf("line %d: geoid %s listed twice", i+1, geoID)
		}
		known[geoID] = true

		fields := strings.Split(rest, ",")
		if len(fields) < 3 {
			p.errorf("line %d: expected city,province,code in %q", i+1, rest)
			continue
		}
		if code := fields[len(fields)-1]; code != "" && !isCountryCode(code) {
			p.errorf("line %d: invalid country code %q", i+1, code)
		}
	}

	if latest, ok := out.daily[artifact.LatestFileName]; ok {
		for _, f := range latest.Features {
			if !known[f.Properties.GeoID] {
				p.errorf("latest.json geoid %s has no location info", f.Properties.GeoID)
			}
		}
	}
	return p
}

// validGeoID reports whether s is a "lat|lng" key with canonical rounding.
func validGeoID(s string) bool {
	lat, lng, ok := strings.Cut(s, "|")
	if !ok {
		return false
	}
	for _, part := range []string{lat, lng} {
		v, err := domain.ParseCoordinate(part)
		if err != nil || domain.RoundCoordinate(v) != part {
			return false
		}
	}
	return true
}

func isCountryCode(s string) bool {
	return len(s) == 2 && s[0] >= 'A' && s[0] <= 'Z' && s[1] >= 'A' && s[1] <= 'Z'
}

func jsonFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
