// Package recipe resolves the ingredient cost of selling one unit of a
// product, variant or extra modifier. Resolution is a pure read of the
// current recipe configuration; nothing here writes.
package recipe

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/sufra-pos/api/internal/database"
	"github.com/sufra-pos/api/internal/enum"
	"github.com/sufra-pos/api/internal/unit"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrVariantNotFound = errors.New("variant not found")
)

// Line is one ingredient deduction in the stock item's storage unit,
// per unit sold.
type Line struct {
	StockItemID int64
	Quantity    decimal.Decimal
}

// Store defines the DB reads the resolver needs.
// Satisfied by *database.Queries (and its WithTx variant).
type Store interface {
	ListProductIngredients(ctx context.Context, productID int64) ([]database.ProductIngredient, error)
	ListVariantIngredients(ctx context.Context, variantID int64) ([]database.VariantIngredient, error)
	GetVariantForOrder(ctx context.Context, id int64) (database.ProductVariant, error)
	GetStockItem(ctx context.Context, id int64) (database.StockItem, error)
}

// ResolveProduct returns the ordered ingredient lines consumed by one
// unit of the product. When a variant is given and has ingredient rows
// of its own, those rows fully override the product's.
func ResolveProduct(ctx context.Context, store Store, productID int64, variantID *int64) ([]Line, error) {
	if variantID != nil {
		variant, err := store.GetVariantForOrder(ctx, *variantID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrVariantNotFound
			}
			return nil, fmt.Errorf("get variant: %w", err)
		}
		overrides, err := store.ListVariantIngredients(ctx, variant.ID)
		if err != nil {
			return nil, fmt.Errorf("list variant ingredients: %w", err)
		}
		if len(overrides) > 0 {
			lines := make([]Line, 0, len(overrides))
			for _, vi := range overrides {
				line, err := toStorageLine(ctx, store, vi.StockItemID, vi.Quantity)
				if err != nil {
					return nil, err
				}
				lines = append(lines, line)
			}
			return lines, nil
		}
	}

	ingredients, err := store.ListProductIngredients(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list product ingredients: %w", err)
	}
	lines := make([]Line, 0, len(ingredients))
	for _, pi := range ingredients {
		line, err := toStorageLine(ctx, store, pi.StockItemID, pi.Quantity)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// ResolveModifier returns the ingredient lines consumed by one unit of
// an extra modifier. Removals and unlinked extras consume nothing.
func ResolveModifier(ctx context.Context, store Store, mod database.Modifier) ([]Line, error) {
	if mod.ModifierType != enum.ModifierTypeExtra || !mod.StockItemID.Valid {
		return nil, nil
	}
	line, err := toStorageLine(ctx, store, mod.StockItemID.Int64, mod.StockQuantity)
	if err != nil {
		return nil, err
	}
	return []Line{line}, nil
}

// Scale multiplies every line's quantity by n.
func Scale(lines []Line, n int32) []Line {
	factor := decimal.NewFromInt32(n)
	scaled := make([]Line, len(lines))
	for i, l := range lines {
		scaled[i] = Line{StockItemID: l.StockItemID, Quantity: l.Quantity.Mul(factor)}
	}
	return scaled
}

// toStorageLine converts a recipe quantity (serving unit) into the
// stock item's storage unit.
func toStorageLine(ctx context.Context, store Store, stockItemID int64, qty pgtype.Numeric) (Line, error) {
	item, err := store.GetStockItem(ctx, stockItemID)
	if err != nil {
		return Line{}, fmt.Errorf("get stock item %d: %w", stockItemID, err)
	}
	serving := numericToDecimal(qty)
	storage, err := unit.Convert(serving, item.ServingUnit, item.StorageUnit)
	if err != nil {
		return Line{}, fmt.Errorf("convert %s for stock item %d: %w", item.ServingUnit, stockItemID, err)
	}
	return Line{StockItemID: stockItemID, Quantity: storage}, nil
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}
