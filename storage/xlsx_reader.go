package storage

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"catalog-importer/models"
)

const preferredSheet = "Products"

// ReadXLSX reads the "Products" sheet, or the first sheet if there is none.
// Row numbers are spreadsheet row numbers.
func ReadXLSX(r io.Reader) ([]models.ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("xlsx: open: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx: no sheets found")
	}
	sheet := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, preferredSheet) {
			sheet = name
			break
		}
	}

	excelRows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx: read sheet %q: %w", sheet, err)
	}
	if len(excelRows) == 0 {
		return nil, &models.MissingColumnsError{Required: append([]string(nil), models.RequiredColumns...)}
	}

	idx, err := headerIndex(excelRows[0])
	if err != nil {
		return nil, err
	}

	rows := make([]models.ImportRow, 0, len(excelRows)-1)
	for i, record := range excelRows[1:] {
		if isBlank(record) {
			continue
		}
		rows = append(rows, rowFromRecord(i+2, record, idx))
	}
	return rows, nil
}

func isBlank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
