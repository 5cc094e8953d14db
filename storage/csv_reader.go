package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"catalog-importer/models"
)

// ReadCSV reads a header row, validates it and returns the data rows. Row
// numbers are the source line each record starts on. Stray quotes inside
// unquoted cells are kept as text, and a record that still fails to parse
// comes back as a malformed row instead of failing the whole source.
func ReadCSV(r io.Reader) ([]models.ImportRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &models.MissingColumnsError{Required: append([]string(nil), models.RequiredColumns...)}
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	idx, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	var rows []models.ImportRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			rows = append(rows, malformedRow(parseErr))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read row: %w", err)
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, rowFromRecord(line, record, idx))
	}
	return rows, nil
}

func malformedRow(err *csv.ParseError) models.ImportRow {
	return models.ImportRow{Row: err.StartLine, Malformed: err.Err.Error()}
}
