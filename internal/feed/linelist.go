package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ghdsi/case-slicer/internal/domain"
)

var lineListColumns = []string{"city", "province", "country", "date_confirmation", "latitude", "longitude"}

// ReadLineList decodes a line-list CSV with a header row. Extra columns are
// ignored; rows shorter than the header are padded with empty cells.
func ReadLineList(r io.Reader) ([]domain.RawCaseRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read line list header: %w", err)
	}
	idx, err := columnIndex(header, lineListColumns)
	if err != nil {
		return nil, fmt.Errorf("line list: %w", err)
	}

	var records []domain.RawCaseRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line list: %w", err)
		}

		cell := func(col string) string {
			i := idx[col]
			if i >= len(row) {
				return ""
			}
			return domain.Blank(row[i])
		}
		records = append(records, domain.RawCaseRecord{
			City:             cell("city"),
			Province:         cell("province"),
			Country:          cell("country"),
			Latitude:         cell("latitude"),
			Longitude:        cell("longitude"),
			DateConfirmation: cell("date_confirmation"),
		})
	}
	return records, nil
}

// columnIndex maps each required column name to its position in header.
func columnIndex(header, required []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	var missing []string
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns %s", strings.Join(missing, ", "))
	}
	return idx, nil
}
