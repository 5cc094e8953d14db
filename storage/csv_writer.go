package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"catalog-importer/models"
)

// CSVReportWriter writes one line per processed import row.
// It is safe for concurrent use.
type CSVReportWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVReportWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVReportWriter(path string) (*CSVReportWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create report dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"row", "category", "product", "price", "action", "detail"}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVReportWriter{file: f, writer: w}, nil
}

// WriteOutcomes appends a line per outcome.
func (c *CSVReportWriter) WriteOutcomes(outcomes []models.RowOutcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, o := range outcomes {
		action, detail := describeOutcome(o)
		price := ""
		if o.Err == nil {
			price = o.Price.StringFixed(2)
		}
		row := []string{
			strconv.Itoa(o.Row.Row),
			o.Row.CategoryName,
			o.Row.ProductName,
			price,
			string(action),
			detail,
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVReportWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func describeOutcome(o models.RowOutcome) (models.Action, string) {
	if o.Err != nil {
		return models.ActionError, o.Err.Error()
	}
	if o.CategoryAction == models.ActionCreated || o.CategoryAction == models.ActionWouldCreate {
		return o.ProductAction, fmt.Sprintf("category %s", o.CategoryAction)
	}
	return o.ProductAction, ""
}
