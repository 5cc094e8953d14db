package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"catalog-importer/models"
)

// priceRegexp accepts plain non-negative decimals with at most two fraction digits.
var priceRegexp = regexp.MustCompile(`^(\d+)(?:\.\d{1,2})?$`)

// maxPriceIntDigits matches a NUMERIC(10,2) column.
const maxPriceIntDigits = 8

var ErrInvalidPrice = errors.New(models.ReasonInvalidPrice)

// ParsePrice parses values like "19.99" or "100". Signs, exponents,
// thousands separators and currency symbols are rejected.
func ParsePrice(raw string) (decimal.Decimal, error) {
	m := priceRegexp.FindStringSubmatch(raw)
	if m == nil {
		return decimal.Zero, fmt.Errorf("%w '%s'", ErrInvalidPrice, raw)
	}
	if len(strings.TrimLeft(m[1], "0")) > maxPriceIntDigits {
		return decimal.Zero, fmt.Errorf("%w '%s': more than %d integer digits", ErrInvalidPrice, raw, maxPriceIntDigits)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w '%s': %v", ErrInvalidPrice, raw, err)
	}
	return d, nil
}

// CategorySlug lowercases name and turns spaces into hyphens.
func CategorySlug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

// ProductSlug is CategorySlug that also turns slashes into hyphens.
func ProductSlug(name string) string {
	return strings.ReplaceAll(CategorySlug(name), "/", "-")
}

// DefaultDescription is the description given to newly created products.
func DefaultDescription(productName string) string {
	return "Product: " + productName
}
