package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Column names every import source must carry.
const (
	ColumnCategory = "product_category"
	ColumnProduct  = "product"
	ColumnPrice    = "price"
)

// ColumnSKU is optional. When present it fills the SKU of newly created
// products.
const ColumnSKU = "sku"

// MaxSKULength matches the width of the sku column.
const MaxSKULength = 50

// RequiredColumns lists the header names an import source must contain.
var RequiredColumns = []string{ColumnCategory, ColumnProduct, ColumnPrice}

var (
	ErrSourceNotFound = errors.New("import source not found")
	ErrNoHomePage     = errors.New("home page must be created first")
)

// MissingColumnsError reports a header without all required columns.
type MissingColumnsError struct {
	Found    []string
	Required []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("source must have columns: %s. Found: %s",
		strings.Join(e.Required, ", "), strings.Join(e.Found, ", "))
}

// ImportRow is one record read from a source. Row is the 1-based source row
// number, counting the header as row 1. Malformed is set when the record
// itself could not be parsed; the other fields are then empty.
type ImportRow struct {
	Row          int
	CategoryName string
	ProductName  string
	PriceText    string
	SKU          string
	Malformed    string
}

// Action describes what an import did, or would do, to one entity.
type Action string

const (
	ActionNone        Action = ""
	ActionCreated     Action = "created"
	ActionUpdated     Action = "updated"
	ActionResolved    Action = "resolved"
	ActionWouldCreate Action = "would-create"
	ActionWouldUpdate Action = "would-update"
	ActionError       Action = "error"
)

// Row error reasons.
const (
	ReasonMissingField    = "missing required field"
	ReasonInvalidPrice    = "invalid price"
	ReasonMalformedRecord = "malformed record"
	ReasonSKUTooLong      = "sku longer than 50 characters"
)

// RowError is a non-fatal failure tied to one input row. Err holds the
// underlying cause for unexpected failures.
type RowError struct {
	Row    int
	Reason string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Reason)
}

func (e *RowError) Unwrap() error { return e.Err }

// RowOutcome records the per-row result of an import run.
type RowOutcome struct {
	Row            ImportRow
	Price          decimal.Decimal
	CategoryAction Action
	ProductAction  Action
	Err            *RowError
}

// Result summarises an import run. Errors holds every row error in input order.
type Result struct {
	DryRun            bool
	RootCreated       bool
	CategoriesCreated int
	ProductsCreated   int
	ProductsUpdated   int
	Errors            []*RowError
	Outcomes          []RowOutcome
}

// HasErrors reports whether any row failed.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// IsFatal reports whether err aborts a whole run rather than a single row.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var rowErr *RowError
	return !errors.As(err, &rowErr)
}
