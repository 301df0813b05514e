// Package aggregate builds dense date x location case-count matrices.
package aggregate

import (
	"sort"

	"github.com/ghdsi/case-slicer/internal/domain"
)

// Row is one date's counts, aligned with the matrix's geo ids.
type Row struct {
	Date   string
	Values []int
}

// Matrix is a dense table of case counts. Rows are ISO dates in ascending
// order, columns are geo ids in ascending order, and every cell is defined.
type Matrix struct {
	dates   []string
	geoIDs  []string
	cells   [][]int
	clamped int
}

// FromRecords counts cases per (date, geo id). Combinations with no records
// are zero.
func FromRecords(records []domain.CaseRecord) *Matrix {
	dateSet := make(map[string]struct{})
	geoSet := make(map[string]struct{})
	for _, r := range records {
		dateSet[r.Date] = struct{}{}
		geoSet[r.GeoID] = struct{}{}
	}

	m := newMatrix(sortedKeys(dateSet), sortedKeys(geoSet))
	dateIdx := indexOf(m.dates)
	geoIdx := indexOf(m.geoIDs)
	for _, r := range records {
		m.cells[dateIdx[r.Date]][geoIdx[r.GeoID]]++
	}
	return m
}

// FromCumulative converts running totals into new-case counts. series[g][d]
// is the cumulative total for geoIDs[g] at dates[d]; dates must be ascending.
// Repeated geo ids are summed. A total that drops from one date to the next
// yields a negative difference, which is clamped to zero and counted in
// ClampedCells. Corrections in the upstream series therefore undercount.
func FromCumulative(dates, geoIDs []string, series [][]int) *Matrix {
	geoSet := make(map[string]struct{}, len(geoIDs))
	for _, g := range geoIDs {
		geoSet[g] = struct{}{}
	}

	m := newMatrix(append([]string(nil), dates...), sortedKeys(geoSet))
	geoIdx := indexOf(m.geoIDs)
	for g, totals := range series {
		col := geoIdx[geoIDs[g]]
		prev := 0
		for d := range m.dates {
			cur := 0
			if d < len(totals) {
				cur = totals[d]
			}
			diff := cur - prev
			if diff < 0 {
				diff = 0
				m.clamped++
			}
			m.cells[d][col] += diff
			prev = cur
		}
	}
	return m
}

// Merge outer-joins two matrices on date and geo id and sums overlapping cells.
func Merge(a, b *Matrix) *Matrix {
	dateSet := make(map[string]struct{})
	geoSet := make(map[string]struct{})
	for _, src := range []*Matrix{a, b} {
		for _, d := range src.dates {
			dateSet[d] = struct{}{}
		}
		for _, g := range src.geoIDs {
			geoSet[g] = struct{}{}
		}
	}

	m := newMatrix(sortedKeys(dateSet), sortedKeys(geoSet))
	dateIdx := indexOf(m.dates)
	geoIdx := indexOf(m.geoIDs)
	for _, src := range []*Matrix{a, b} {
		for i, d := range src.dates {
			row := m.cells[dateIdx[d]]
			for j, g := range src.geoIDs {
				row[geoIdx[g]] += src.cells[i][j]
			}
		}
		m.clamped += src.clamped
	}
	return m
}

// Cumulative returns the running total of each column in date order.
func (m *Matrix) Cumulative() *Matrix {
	out := newMatrix(m.dates, m.geoIDs)
	for i := range m.cells {
		for j, v := range m.cells[i] {
			if i == 0 {
				out.cells[i][j] = v
				continue
			}
			out.cells[i][j] = out.cells[i-1][j] + v
		}
	}
	return out
}

// Dates returns the row labels in ascending order.
func (m *Matrix) Dates() []string { return m.dates }

// GeoIDs returns the column labels in ascending order.
func (m *Matrix) GeoIDs() []string { return m.geoIDs }

// Len returns the number of dates.
func (m *Matrix) Len() int { return len(m.dates) }

// Row returns the i-th date's counts.
func (m *Matrix) Row(i int) Row {
	return Row{Date: m.dates[i], Values: m.cells[i]}
}

// At returns the count for a date and geo id. ok is false when either label
// is not in the matrix.
func (m *Matrix) At(date, geoID string) (count int, ok bool) {
	i := sort.SearchStrings(m.dates, date)
	j := sort.SearchStrings(m.geoIDs, geoID)
	if i == len(m.dates) || m.dates[i] != date || j == len(m.geoIDs) || m.geoIDs[j] != geoID {
		return 0, false
	}
	return m.cells[i][j], true
}

// ClampedCells returns how many negative day-over-day differences were
// replaced by zero while building the matrix.
func (m *Matrix) ClampedCells() int { return m.clamped }

func newMatrix(dates, geoIDs []string) *Matrix {
	cells := make([][]int, len(dates))
	for i := range cells {
		cells[i] = make([]int, len(geoIDs))
	}
	return &Matrix{dates: dates, geoIDs: geoIDs, cells: cells}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func indexOf(labels []string) map[string]int {
	idx := make(map[string]int, len(labels))
	for i, l := range labels {
		idx[l] = i
	}
	return idx
}
