package artifact

import "github.com/ghdsi/case-slicer/internal/aggregate"

// CountrySlice maps date to geo id to new-case count for one country.
type CountrySlice map[string]map[string]int

// BuildCountry converts a country's count matrix into its slice. Every date
// and location in the matrix is present, zeros included.
func BuildCountry(m *aggregate.Matrix) CountrySlice {
	out := make(CountrySlice, m.Len())
	geoIDs := m.GeoIDs()
	for i := 0; i < m.Len(); i++ {
		row := m.Row(i)
		counts := make(map[string]int, len(geoIDs))
		for j, g := range geoIDs {
			counts[g] = row.Values[j]
		}
		out[row.Date] = counts
	}
	return out
}

// CountryFileName returns the file name for an ISO code's slice.
func CountryFileName(code string) string {
	return code + ".json"
}
