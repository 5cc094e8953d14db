package services

import (
	"fmt"
	"io"
	"strings"

	"catalog-importer/models"
)

// Reporter renders import results for people.
type Reporter struct {
	maxErrors int
}

// NewReporter creates a Reporter that lists at most maxErrors row errors.
func NewReporter(maxErrors int) *Reporter {
	if maxErrors < 0 {
		maxErrors = 0
	}
	return &Reporter{maxErrors: maxErrors}
}

// Print writes the run summary followed by the (possibly truncated) error list.
func (r *Reporter) Print(w io.Writer, res *models.Result) {
	sep := strings.Repeat("=", 60)

	fmt.Fprintf(w, "\n%s\n", sep)
	if res.DryRun {
		fmt.Fprintf(w, "\033[1;33mDRY RUN - No changes made\033[0m\n")
		fmt.Fprintf(w, "Would create %d categories, %d products, update %d products\n",
			res.CategoriesCreated, res.ProductsCreated, res.ProductsUpdated)
	} else {
		fmt.Fprintf(w, "\033[1;32mImport complete! Created %d categories, %d products, updated %d products\033[0m\n",
			res.CategoriesCreated, res.ProductsCreated, res.ProductsUpdated)
	}

	if res.HasErrors() {
		fmt.Fprintf(w, "\n\033[1;31mErrors: %d\033[0m\n", len(res.Errors))
		shown, more := r.truncate(res.Errors)
		for _, e := range shown {
			fmt.Fprintf(w, "  - %s\n", e.Error())
		}
		if more > 0 {
			fmt.Fprintf(w, "  ... and %d more errors\n", more)
		}
	}
	fmt.Fprintf(w, "%s\n\n", sep)
}

// Messages returns the success and warning strings shown after an upload.
// Either may be empty.
func (r *Reporter) Messages(res *models.Result) (success, warning string) {
	switch {
	case res.DryRun:
		success = fmt.Sprintf("Dry run: would create %d categories and %d products, and update %d existing products",
			res.CategoriesCreated, res.ProductsCreated, res.ProductsUpdated)
	case res.ProductsCreated > 0 || res.ProductsUpdated > 0:
		success = fmt.Sprintf("Successfully imported %d products", res.ProductsCreated)
		if res.CategoriesCreated > 0 {
			success += fmt.Sprintf(" in %d new categories", res.CategoriesCreated)
		}
		if res.ProductsUpdated > 0 {
			success += fmt.Sprintf(" and updated %d existing products", res.ProductsUpdated)
		}
	}

	if res.HasErrors() {
		shown, more := r.truncate(res.Errors)
		parts := make([]string, len(shown))
		for i, e := range shown {
			parts[i] = e.Error()
		}
		warning = "Errors occurred: " + strings.Join(parts, "; ")
		if more > 0 {
			warning += fmt.Sprintf(" (and %d more errors)", more)
		}
	}
	return success, warning
}

func (r *Reporter) truncate(errs []*models.RowError) ([]*models.RowError, int) {
	if len(errs) <= r.maxErrors {
		return errs, 0
	}
	return errs[:r.maxErrors], len(errs) - r.maxErrors
}
