package aggregate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghdsi/case-slicer/internal/domain"
)

func rec(geoID, date string) domain.CaseRecord {
	return domain.CaseRecord{GeoID: geoID, Date: date}
}

// sampleRecords is the ten-record line list used across the aggregation tests.
func sampleRecords() []domain.CaseRecord {
	return []domain.CaseRecord{
		rec("3.00|3.00", "2020-04-02"),
		rec("3.00|3.00", "2020-04-01"),
		rec("2.00|2.00", "2020-04-03"),
		rec("4.00|4.00", "2020-04-02"),
		rec("2.00|2.00", "2020-04-04"),
		rec("1.00|1.00", "2020-04-03"),
		rec("4.00|4.00", "2020-04-01"),
		rec("2.00|2.00", "2020-04-01"),
		rec("1.00|1.00", "2020-04-03"),
		rec("1.00|1.00", "2020-04-03"),
	}
}

func mustAt(t *testing.T, m *Matrix, date, geoID string) int {
	t.Helper()
	v, ok := m.At(date, geoID)
	require.True(t, ok, "missing cell %s %s", date, geoID)
	return v
}

func rows(m *Matrix) [][]int {
	out := make([][]int, m.Len())
	for i := range out {
		out[i] = m.Row(i).Values
	}
	return out
}

func TestFromRecords(t *testing.T) {
	m := FromRecords(sampleRecords())

	assert.Equal(t, []string{"2020-04-01", "2020-04-02", "2020-04-03", "2020-04-04"}, m.Dates())
	assert.Equal(t, []string{"1.00|1.00", "2.00|2.00", "3.00|3.00", "4.00|4.00"}, m.GeoIDs())

	assert.Equal(t, 3, mustAt(t, m, "2020-04-03", "1.00|1.00"))
	assert.Equal(t, 1, mustAt(t, m, "2020-04-01", "4.00|4.00"))
	assert.Equal(t, 0, mustAt(t, m, "2020-04-01", "1.00|1.00"))

	want := [][]int{
		{0, 1, 1, 1},
		{0, 0, 1, 1},
		{3, 1, 0, 0},
		{0, 1, 0, 0},
	}
	if diff := cmp.Diff(want, rows(m)); diff != "" {
		t.Errorf("count matrix mismatch (-want +got):\n%s", diff)
	}
}

func TestFromRecords_NoMissingCells(t *testing.T) {
	m := FromRecords(sampleRecords())
	for _, d := range m.Dates() {
		for _, g := range m.GeoIDs() {
			v, ok := m.At(d, g)
			require.True(t, ok)
			assert.GreaterOrEqual(t, v, 0)
		}
	}
}

func TestFromRecords_Empty(t *testing.T) {
	m := FromRecords(nil)
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.GeoIDs())
	assert.Equal(t, 0, m.Cumulative().Len())
}

func TestAt_UnknownLabels(t *testing.T) {
	m := FromRecords(sampleRecords())

	_, ok := m.At("2019-01-01", "1.00|1.00")
	assert.False(t, ok)
	_, ok = m.At("2020-04-01", "9.00|9.00")
	assert.False(t, ok)
}

func TestCumulative(t *testing.T) {
	m := FromRecords(sampleRecords())
	c := m.Cumulative()

	want := [][]int{
		{0, 1, 1, 1},
		{0, 1, 2, 2},
		{3, 2, 2, 2},
		{3, 3, 2, 2},
	}
	if diff := cmp.Diff(want, rows(c)); diff != "" {
		t.Errorf("cumulative mismatch (-want +got):\n%s", diff)
	}

	// First row equals the new counts and each later row adds the new counts.
	assert.Equal(t, m.Row(0).Values, c.Row(0).Values)
	for i := 1; i < c.Len(); i++ {
		for j := range c.GeoIDs() {
			assert.Equal(t, c.Row(i-1).Values[j]+m.Row(i).Values[j], c.Row(i).Values[j])
			assert.GreaterOrEqual(t, c.Row(i).Values[j], c.Row(i-1).Values[j])
		}
	}
}

func TestFromCumulative(t *testing.T) {
	dates := []string{"2020-03-01", "2020-03-02", "2020-03-03", "2020-03-04"}
	geoIDs := []string{"5.0000|5.0000", "6.0000|6.0000"}
	series := [][]int{
		{1, 3, 3, 7},
		{2, 5, 4, 6}, // 5 -> 4 is an upstream correction
	}

	m := FromCumulative(dates, geoIDs, series)

	want := [][]int{
		{1, 2},
		{2, 3},
		{0, 0},
		{4, 2},
	}
	if diff := cmp.Diff(want, rows(m)); diff != "" {
		t.Errorf("differenced matrix mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, m.ClampedCells())
}

func TestFromCumulative_DuplicateGeoIDsSummed(t *testing.T) {
	dates := []string{"2020-03-01", "2020-03-02"}
	geoIDs := []string{"5.0000|5.0000", "5.0000|5.0000"}
	series := [][]int{{1, 2}, {10, 15}}

	m := FromCumulative(dates, geoIDs, series)

	assert.Equal(t, []string{"5.0000|5.0000"}, m.GeoIDs())
	assert.Equal(t, 11, mustAt(t, m, "2020-03-01", "5.0000|5.0000"))
	assert.Equal(t, 6, mustAt(t, m, "2020-03-02", "5.0000|5.0000"))
}

func TestMerge(t *testing.T) {
	lineList := FromRecords(sampleRecords())
	cumulative := FromCumulative(
		[]string{"2020-03-31", "2020-04-01"},
		[]string{"9.00|9.00", "1.00|1.00"},
		[][]int{{4, 6}, {0, 1}},
	)

	m := Merge(lineList, cumulative)

	assert.Equal(t, []string{"2020-03-31", "2020-04-01", "2020-04-02", "2020-04-03", "2020-04-04"}, m.Dates())
	assert.Equal(t, []string{"1.00|1.00", "2.00|2.00", "3.00|3.00", "4.00|4.00", "9.00|9.00"}, m.GeoIDs())

	assert.Equal(t, 4, mustAt(t, m, "2020-03-31", "9.00|9.00"))
	assert.Equal(t, 0, mustAt(t, m, "2020-03-31", "2.00|2.00"))
	assert.Equal(t, 2, mustAt(t, m, "2020-04-01", "9.00|9.00"))
	assert.Equal(t, 1, mustAt(t, m, "2020-04-01", "1.00|1.00"))
	assert.Equal(t, 3, mustAt(t, m, "2020-04-03", "1.00|1.00"))
	assert.Equal(t, 0, mustAt(t, m, "2020-04-04", "9.00|9.00"))
}
