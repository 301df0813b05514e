package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedDate is returned for input that does not split into three
	// numeric parts of one, two or four digits.
	ErrMalformedDate = errors.New("malformed date")

	// ErrAmbiguousDate is returned when no part can be identified as a
	// four-digit year.
	ErrAmbiguousDate = errors.New("ambiguous date")
)

// FormatError reports a date string that could not be normalized.
type FormatError struct {
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("normalize date %q: %v", e.Value, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// NormalizeDate converts a single date written as D.M.Y, D/M/Y, Y.M.D or any
// mix of '.', '/' and '-' separators into "YYYY-MM-DD".
func NormalizeDate(s string) (string, error) {
	in := strings.TrimSpace(s)
	s = strings.NewReplacer(".", "-", "/", "-").Replace(in)

	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return "", &FormatError{Value: in, Err: ErrMalformedDate}
	}

	hasYear := false
	for _, p := range parts {
		if !isDigits(p) {
			return "", &FormatError{Value: in, Err: ErrMalformedDate}
		}
		switch len(p) {
		case 1, 2:
		case 4:
			hasYear = true
		default:
			return "", &FormatError{Value: in, Err: ErrMalformedDate}
		}
	}
	if !hasYear {
		return "", &FormatError{Value: in, Err: ErrAmbiguousDate}
	}

	if len(parts[0]) != 4 {
		parts[0], parts[2] = parts[2], parts[0]
	}
	if len(parts[0]) != 4 || len(parts[1]) > 2 || len(parts[2]) > 2 {
		return "", &FormatError{Value: in, Err: ErrMalformedDate}
	}

	return parts[0] + "-" + zeroPad(parts[1]) + "-" + zeroPad(parts[2]), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func zeroPad(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
