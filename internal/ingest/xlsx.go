package ingest

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// readXLSX returns every worksheet in workbook order. limit also caps the
// decompressed size so a small zip cannot expand without bound.
func readXLSX(data []byte, limit int64) ([]grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{
		UnzipSizeLimit:    limit * 16,
		UnzipXMLSizeLimit: limit * 4,
	})
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	grids := make([]grid, 0, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		grids = append(grids, grid{name: name, cells: rows})
	}
	return grids, nil
}
