// Package unit converts stock quantities between storage units (how
// stock is counted on the shelf) and serving units (how recipes are
// written). Conversion is a closed table: only units of the same
// category can be paired, and the pairing is validated when a stock
// item is configured, never at ledger time.
package unit

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Category groups units that can be converted into each other.
type Category string

const (
	CategoryWeight Category = "weight"
	CategoryVolume Category = "volume"
	CategoryCount  Category = "count"
)

var (
	ErrUnknownUnit      = errors.New("unknown unit")
	ErrCategoryMismatch = errors.New("units belong to different categories")
)

// unitDef describes a unit as a factor relative to its category's base
// unit (gram, millilitre, piece).
type unitDef struct {
	category Category
	factor   decimal.Decimal
}

var units = map[string]unitDef{
	"mg":    {CategoryWeight, decimal.RequireFromString("0.001")},
	"g":     {CategoryWeight, decimal.NewFromInt(1)},
	"kg":    {CategoryWeight, decimal.NewFromInt(1000)},
	"ml":    {CategoryVolume, decimal.NewFromInt(1)},
	"l":     {CategoryVolume, decimal.NewFromInt(1000)},
	"pcs":   {CategoryCount, decimal.NewFromInt(1)},
	"dozen": {CategoryCount, decimal.NewFromInt(12)},
}

// CategoryOf returns the category of a known unit symbol.
func CategoryOf(u string) (Category, error) {
	def, ok := units[u]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownUnit, u)
	}
	return def.category, nil
}

// ValidatePair checks that a storage/serving unit pairing is usable.
// Called at stock item configuration time.
func ValidatePair(storage, serving string) error {
	sc, err := CategoryOf(storage)
	if err != nil {
		return err
	}
	vc, err := CategoryOf(serving)
	if err != nil {
		return err
	}
	if sc != vc {
		return fmt.Errorf("%w: %q is %s, %q is %s", ErrCategoryMismatch, storage, sc, serving, vc)
	}
	return nil
}

// Convert converts qty from one unit to another within the same
// category. Cross-category conversions are an error.
func Convert(qty decimal.Decimal, from, to string) (decimal.Decimal, error) {
	fd, ok := units[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownUnit, from)
	}
	td, ok := units[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownUnit, to)
	}
	if fd.category != td.category {
		return decimal.Zero, fmt.Errorf("%w: %q is %s, %q is %s", ErrCategoryMismatch, from, fd.category, to, td.category)
	}
	return qty.Mul(fd.factor).Div(td.factor), nil
}
