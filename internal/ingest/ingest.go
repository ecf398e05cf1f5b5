// Package ingest reads QA export files into sheets of rows.
//
// Workbooks (.xlsx, .xlsm) are read with excelize; every sheet is returned in
// workbook order with cell values formatted as the workbook displays them.
// CSV exports are read as a single sheet named after the file. The first row
// of every sheet is a header and is skipped.
//
// Rows without an identifier in the first column are kept as placeholders so
// that a report always accounts for every row of the source file.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/qareports/internal/core"
)

// DefaultMaxBytes is the default upload size limit.
const DefaultMaxBytes = 32 << 20

// Sheet and Row are the assembler's input types.
type (
	Sheet = core.SheetRows
	Row   = core.Row
)

// Format is the detected container format of an upload.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// Workbook is the parsed content of one file.
type Workbook struct {
	Filename string
	Format   Format
	Sheets   []Sheet
}

// RowCount returns the number of data rows, placeholders included.
func (w *Workbook) RowCount() int {
	n := 0
	for _, s := range w.Sheets {
		n += len(s.Rows)
	}
	return n
}

// Parser holds ingestion limits. The zero value uses defaults.
type Parser struct {
	// MaxBytes rejects larger inputs. Zero selects DefaultMaxBytes.
	MaxBytes int64
}

// Parse reads data with default limits.
func Parse(filename string, data []byte) (*Workbook, error) {
	return Parser{}.Parse(filename, data)
}

// Parse detects the format of data and reads every sheet. Any failure is a
// *core.FileParseError and no partial workbook is returned.
func (p Parser) Parse(filename string, data []byte) (*Workbook, error) {
	limit := p.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	if int64(len(data)) > limit {
		return nil, core.NewFileParseError(filename,
			fmt.Errorf("%w: %d bytes exceeds %d", core.ErrFileTooLarge, len(data), limit))
	}

	format, err := detect(filename, data)
	if err != nil {
		return nil, core.NewFileParseError(filename, err)
	}

	var grids []grid
	switch format {
	case FormatXLSX:
		grids, err = readXLSX(data, limit)
	case FormatCSV:
		grids, err = readCSV(stem(filename), data)
	}
	if err != nil {
		return nil, core.NewFileParseError(filename, err)
	}
	if len(grids) == 0 {
		return nil, core.NewFileParseError(filename, core.ErrNoSheets)
	}

	wb := &Workbook{Filename: filename, Format: format, Sheets: make([]Sheet, len(grids))}
	for i, g := range grids {
		wb.Sheets[i] = g.sheet()
	}
	return wb, nil
}

// Sheets satisfies core.Parser.
func (p Parser) Sheets(filename string, data []byte) ([]core.SheetRows, error) {
	wb, err := p.Parse(filename, data)
	if err != nil {
		return nil, err
	}
	return wb.Sheets, nil
}

var (
	zipMagic       = []byte("PK\x03\x04")
	errNotWorkbook = errors.New("not an Office Open XML workbook")
)

func detect(filename string, data []byte) (Format, error) {
	isZip := bytes.HasPrefix(data, zipMagic)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		if !isZip {
			return "", errNotWorkbook
		}
		return FormatXLSX, nil
	case ".csv", ".txt", ".tsv":
		return FormatCSV, nil
	case ".xls":
		return "", fmt.Errorf("%w: legacy .xls workbooks", core.ErrUnsupportedFile)
	}
	if isZip {
		return FormatXLSX, nil
	}
	if looksLikeText(data) {
		return FormatCSV, nil
	}
	return "", core.ErrUnsupportedFile
}

// looksLikeText accepts only NUL-free UTF-8. Content without a CSV
// extension gets no Latin-1 leniency.
func looksLikeText(data []byte) bool {
	data = bytes.TrimPrefix(data, utf8BOM)
	return bytes.IndexByte(data, 0) < 0 && utf8.Valid(data)
}

func stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// grid is a sheet's raw cell matrix, header included.
type grid struct {
	name  string
	cells [][]string
}

// sheet drops the header and classifies each remaining row.
func (g grid) sheet() Sheet {
	s := Sheet{Name: g.name}
	if len(g.cells) <= 1 {
		s.Rows = []Row{{Placeholder: core.IssueEmptySheet}}
		return s
	}
	s.Rows = make([]Row, 0, len(g.cells)-1)
	for _, cells := range g.cells[1:] {
		s.Rows = append(s.Rows, classifyRow(cells))
	}
	return s
}

func classifyRow(cells []string) Row {
	row := Row{Cells: cells}
	if core.CleanCell(row.Identifier()) != "" {
		return row
	}
	if core.IsBlankRow(cells) {
		row.Placeholder = core.IssueEmptyRow
	} else {
		row.Placeholder = core.IssueNoIdentifier
	}
	return row
}
