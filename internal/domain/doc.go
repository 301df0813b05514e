// Package domain models epidemiological line-list case records and the
// location keys used to aggregate them.
//
// # Data Sources
//
// Two independent feeds are combined. The line list has one row per observed
// case with free-text place names, coordinates and a confirmation date. The
// cumulative feed (county-level US counts) is a wide table with one column of
// running totals per date.
//
// # Date Conventions
//
// Line-list dates are written day first with dots:
//
//	"07.04.2020"                 →  2020-04-07
//	"01.04.2020 - 07.04.2020"    →  range, the trailing date wins
//	"07.04.2020 (reported late)" →  annotation text is ignored
//
// Every date leaving this package is ISO "YYYY-MM-DD" so that string order is
// chronological order. A date whose three parts all have one or two digits
// cannot be oriented and is rejected as ambiguous. See [NormalizeDate].
//
// # Location Keys
//
// A location is keyed by its coordinates rounded to [CoordinatePrecision]
// decimal places and rendered with a fixed number of decimals:
//
//	lat 43.65107, lng -79.347015  →  "43.6511|-79.3470"
//
// Rounding is the deduplication granularity. Keys are only ever built by
// [MakeGeoID], never from the raw text of a coordinate.
//
// # Missing Values
//
// Upstream tables render missing cells as "nan", "NaN" or "None". Those
// markers are read as empty strings at the edge (see [Blank]) and never
// reach artifacts.
package domain
