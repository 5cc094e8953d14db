package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"catalog-importer/models"
)

// ReadSource opens path and reads its rows, choosing the format from the
// file extension (.xlsx for spreadsheets, anything else as CSV).
func ReadSource(path string) ([]models.ImportRow, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", models.ErrSourceNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("source: open %q: %w", path, err)
	}
	defer f.Close()

	return ReadRows(f, path)
}

// ReadRows reads rows from r. name is only used to pick the format.
func ReadRows(r io.Reader, name string) ([]models.ImportRow, error) {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return ReadXLSX(r)
	}
	return ReadCSV(r)
}

// headerIndex maps required column names to their positions and fails with
// a MissingColumnsError if any is absent. Header cells are trimmed and
// compared case-sensitively.
func headerIndex(header []string) (map[string]int, error) {
	found := make([]string, 0, len(header))
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		found = append(found, h)
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	for _, col := range models.RequiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, &models.MissingColumnsError{
				Found:    found,
				Required: append([]string(nil), models.RequiredColumns...),
			}
		}
	}
	return idx, nil
}

// rowFromRecord builds an ImportRow, treating short records and absent
// optional columns as empty cells.
func rowFromRecord(rowNum int, record []string, idx map[string]int) models.ImportRow {
	cell := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}
	return models.ImportRow{
		Row:          rowNum,
		CategoryName: cell(models.ColumnCategory),
		ProductName:  cell(models.ColumnProduct),
		PriceText:    cell(models.ColumnPrice),
		SKU:          cell(models.ColumnSKU),
	}
}
