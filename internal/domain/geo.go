package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CoordinatePrecision is the number of decimal places kept in a location key.
const CoordinatePrecision = 4

var coordinateScale = math.Pow(10, CoordinatePrecision)

// RoundCoordinate rounds a latitude or longitude to CoordinatePrecision
// places and renders it with exactly that many decimals, so 1, 1.0 and
// 1.00001 all become "1.0000".
func RoundCoordinate(v float64) string {
	r := math.Round(v*coordinateScale) / coordinateScale
	if r == 0 {
		r = 0 // drop the sign of negative zero
	}
	return strconv.FormatFloat(r, 'f', CoordinatePrecision, 64)
}

// ParseCoordinate parses a decimal-degree coordinate.
func ParseCoordinate(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parse coordinate %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("parse coordinate %q: not a finite number", s)
	}
	return v, nil
}

// MakeGeoID builds the "{lat}|{lng}" location key from rounded coordinates.
func MakeGeoID(lat, lng float64) string {
	return RoundCoordinate(lat) + "|" + RoundCoordinate(lng)
}
