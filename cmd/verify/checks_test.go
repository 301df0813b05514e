package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghdsi/case-slicer/internal/artifact"
	"github.com/ghdsi/case-slicer/internal/pipeline"
)

const (
	lyon  = "45.7640|4.8357"
	milan = "45.4642|9.1900"
)

func daily(date string, features ...artifact.Feature) artifact.DailySlice {
	return artifact.DailySlice{Date: date, Features: features}
}

func feature(geoID string, total, n int) artifact.Feature {
	return artifact.Feature{Properties: artifact.Properties{GeoID: geoID, Total: total, New: n}}
}

// writeOutput lays out a consistent two-day output directory.
func writeOutput(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dw, err := artifact.NewWriter(filepath.Join(dir, pipeline.DailyDir), false, logger)
	require.NoError(t, err)
	index := artifact.NewIndex(dw.Path(artifact.IndexFileName))
	for _, s := range []struct {
		name  string
		slice artifact.DailySlice
	}{
		{"2020.03.01.json", daily("2020-03-01", feature(milan, 1, 1), feature(lyon, 1, 1))},
		{"latest.json", daily("2020-03-02", feature(milan, 1, 0), feature(lyon, 3, 2))},
	} {
		_, err := dw.Write(s.name, s.slice)
		require.NoError(t, err)
		require.NoError(t, index.Add(s.name))
	}

	cw, err := artifact.NewWriter(filepath.Join(dir, pipeline.CountryDir), false, logger)
	require.NoError(t, err)
	_, err = cw.Write("FR.json", artifact.CountrySlice{"2020-03-01": {lyon: 1}, "2020-03-02": {lyon: 2}})
	require.NoError(t, err)
	_, err = cw.Write("IT.json", artifact.CountrySlice{"2020-03-01": {milan: 1}})
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, pipeline.LocationInfoFileName),
		lyon+":Lyon,Rhone,FR\n"+milan+":Milan,Lombardy,IT")
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func load(t *testing.T, dir string) *output {
	t.Helper()
	out, err := loadOutput(dir)
	require.NoError(t, err)
	return out
}

func TestRun_ConsistentOutput(t *testing.T) {
	dir := writeOutput(t)
	out := load(t, dir)

	for _, p := range []*phase{
		checkIndex(out),
		checkDailySlices(out),
		checkRunningTotals(out),
		checkCountrySlices(out),
		checkLocationInfo(out),
	} {
		assert.True(t, p.passed(), "%s: %v", p.name, p.errors)
	}
	assert.Equal(t, 0, run(dir))
}

func TestLoadOutput_MissingIndex(t *testing.T) {
	_, err := loadOutput(t.TempDir())
	require.Error(t, err)
	assert.Equal(t, 1, run(t.TempDir()))
}

func TestCheckIndex_Mismatch(t *testing.T) {
	dir := writeOutput(t)
	dailyDir := filepath.Join(dir, pipeline.DailyDir)
	require.NoError(t, os.Remove(filepath.Join(dailyDir, "2020.03.01.json")))
	writeFile(t, filepath.Join(dailyDir, "2020.02.29.json"), `{"date":"2020-02-29","features":[]}`)

	p := checkIndex(load(t, dir))
	require.False(t, p.passed())
	assert.Contains(t, p.errors, "index lists 2020.03.01.json but the file is missing")
	assert.Contains(t, p.errors, "2020.02.29.json is not listed in the index")
}

func TestCheckDailySlices(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"zero entry", "2020.02.28.json", `{"date":"2020-02-28","features":[{"properties":{"geoid":"45.7640|4.8357","total":0}}]}`, "neither new cases nor a total"},
		{"wrong file name", "2020.02.27.json", `{"date":"2020-02-28","features":[]}`, "expected file name 2020.02.28.json"},
		{"malformed geoid", "2020.02.28.json", `{"date":"2020-02-28","features":[{"properties":{"geoid":"45.764|4.8357","total":1,"new":1}}]}`, "malformed geoid"},
		{"newer than latest", "2020.03.05.json", `{"date":"2020-03-05","features":[]}`, "not older than latest.json"},
		{"bad json", "2020.02.28.json", `{"date":`, "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeOutput(t)
			writeFile(t, filepath.Join(dir, pipeline.DailyDir, tt.file), tt.content)

			p := checkDailySlices(load(t, dir))
			require.False(t, p.passed())
			assert.Contains(t, p.errors[0], tt.want)
		})
	}
}

func TestCheckRunningTotals(t *testing.T) {
	tests := []struct {
		name   string
		latest artifact.DailySlice
		want   string
	}{
		{"total dropped", daily("2020-03-02", feature(milan, 1, 0), feature(lyon, 0, 0)), "dropped from 1 to 0"},
		{"total does not add up", daily("2020-03-02", feature(milan, 1, 0), feature(lyon, 5, 2)), "total 5 != previous 1 + new 2"},
		{"location disappears", daily("2020-03-02", feature(lyon, 3, 2)), "geoid " + milan + " with total 1 is missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := load(t, writeOutput(t))
			out.daily[artifact.LatestFileName] = tt.latest

			p := checkRunningTotals(out)
			require.False(t, p.passed())
			assert.Contains(t, p.errors[0], tt.want)
		})
	}
}

func TestCheckCountrySlices(t *testing.T) {
	dir := writeOutput(t)
	countryDir := filepath.Join(dir, pipeline.CountryDir)
	writeFile(t, filepath.Join(countryDir, "france.json"), `{}`)
	writeFile(t, filepath.Join(countryDir, "DE.json"), `{"2020-03-01":{"52.5200|13.4050":1},"2020-03-02":{}}`)

	p := checkCountrySlices(load(t, dir))
	require.False(t, p.passed())
	assert.Contains(t, p.errors, "DE.json: 2020-03-02 does not list the same locations as the other dates")
	assert.Contains(t, p.errors, "france.json: file name is not an ISO code")
}

func TestCheckLocationInfo(t *testing.T) {
	dir := writeOutput(t)
	writeFile(t, filepath.Join(dir, pipeline.LocationInfoFileName),
		lyon+":Lyon,Rhone,FR\n"+lyon+":Lyon,Rhone,FR\nnowhere:x,y,\n1.0000|2.0000:Washington, D.C.,District Of Columbia,usa")

	p := checkLocationInfo(load(t, dir))
	require.False(t, p.passed())
	assert.Equal(t, []string{
		"line 2: geoid " + lyon + " listed twice",
		`line 3: malformed geoid in "nowhere:x,y,"`,
		`line 4: invalid country code "usa"`,
		"latest.json geoid " + milan + " has no location info",
	}, p.errors)
}

func TestValidGeoID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{lyon, true},
		{"-33.8688|151.2093", true},
		{"45.764|4.8357", false},
		{"45.7640", false},
		{"north|4.8357", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, validGeoID(tt.in), tt.in)
	}
}
