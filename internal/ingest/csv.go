package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV reads a CSV export as a single sheet. Windows exports often carry
// a BOM and stray Latin-1 bytes; both are handled before parsing.
func readCSV(name string, data []byte) ([]grid, error) {
	data = sanitizeUTF8(bytes.TrimPrefix(data, utf8BOM))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	if bytes.Count(firstLine(data), []byte{'\t'}) > bytes.Count(firstLine(data), []byte{','}) {
		r.Comma = '\t'
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return []grid{{name: name, cells: records}}, nil
}

// sanitizeUTF8 replaces invalid byte sequences with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}
	return bytes.ToValidUTF8(data, []byte("\uFFFD"))
}

func firstLine(data []byte) []byte {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return data[:i]
	}
	return data
}
