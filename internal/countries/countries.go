// Package countries holds the immutable country reference table that maps
// display names to 2-letter ISO codes.
package countries

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ErrUnknownCountry is returned when a name has no entry in the table.
var ErrUnknownCountry = errors.New("unknown country")

// Table is a read-only name <-> ISO code mapping. It is safe for concurrent use.
type Table struct {
	codeToName map[string]string
	nameToCode map[string]string
}

// LoadFile reads a reference table from path.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open country table: %w", err)
	}
	defer f.Close()

	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("load country table %s: %w", path, err)
	}
	return t, nil
}

// Load parses newline-separated records of ':'-separated fields. The code is
// whichever of the first two fields is a 2-letter uppercase token, so both
// "FR:France:bbox|bbox" and "France:FR" are accepted.
func Load(r io.Reader) (*Table, error) {
	t := &Table{
		codeToName: make(map[string]string),
		nameToCode: make(map[string]string),
	}

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		fields := strings.Split(text, ":")
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected code and name in %q", line, text)
		}

		code, name := strings.TrimSpace(fields[0]), strings.TrimSpace(fields[1])
		if !isCode(code) {
			code, name = name, code
		}
		if !isCode(code) || name == "" {
			return nil, fmt.Errorf("line %d: no ISO code in %q", line, text)
		}

		t.codeToName[code] = name
		t.nameToCode[strings.ToLower(name)] = code
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read country table: %w", err)
	}
	return t, nil
}

// ResolveCode returns the ISO code for a country name. A value that already
// looks like a code is returned unchanged.
func (t *Table) ResolveCode(name string) (string, error) {
	name = strings.TrimSpace(name)
	if isCode(name) {
		return name, nil
	}
	if code, ok := t.nameToCode[strings.ToLower(name)]; ok {
		return code, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCountry, name)
}

// Name returns the display name for an ISO code.
func (t *Table) Name(code string) (string, bool) {
	name, ok := t.codeToName[code]
	return name, ok
}

// Codes returns all ISO codes in sorted order.
func (t *Table) Codes() []string {
	codes := make([]string, 0, len(t.codeToName))
	for c := range t.codeToName {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Len returns the number of countries in the table.
func (t *Table) Len() int { return len(t.codeToName) }

func isCode(s string) bool {
	return len(s) == 2 && s[0] >= 'A' && s[0] <= 'Z' && s[1] >= 'A' && s[1] <= 'Z'
}
