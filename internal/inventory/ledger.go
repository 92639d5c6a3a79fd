// Package inventory is the stock ledger: atomic multi-line reserve and
// release against per-item on-hand quantities. The ledger knows nothing
// about orders; callers own the surrounding transaction.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/sufra-pos/api/internal/database"
)

var ErrStockItemNotFound = errors.New("stock item not found")

// Line is one ledger movement in the stock item's storage unit.
type Line struct {
	StockItemID int64
	Quantity    decimal.Decimal
}

// InsufficientInventoryError reports the first line that could not be
// covered. Nothing is deducted when it is returned.
type InsufficientInventoryError struct {
	StockItemID int64
	Name        string
	Required    decimal.Decimal
	Available   decimal.Decimal
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for %q: required %s, available %s",
		e.Name, e.Required.String(), e.Available.String())
}

// Store defines the DB methods the ledger needs.
// Satisfied by *database.Queries (and its WithTx variant).
type Store interface {
	GetStockItemsForUpdate(ctx context.Context, ids []int64) ([]database.StockItem, error)
	AdjustStockQuantity(ctx context.Context, arg database.AdjustStockQuantityParams) (pgtype.Numeric, error)
}

// Reserve deducts every line or nothing. All items are locked (in id
// order) and every availability check passes before the first
// decrement, so a shortage on any line leaves the ledger untouched.
func Reserve(ctx context.Context, store Store, lines []Line) error {
	merged := mergeLines(lines)
	if len(merged) == 0 {
		return nil
	}

	ids := make([]int64, len(merged))
	for i, l := range merged {
		ids[i] = l.StockItemID
	}

	items, err := store.GetStockItemsForUpdate(ctx, ids)
	if err != nil {
		return fmt.Errorf("lock stock items: %w", err)
	}
	byID := make(map[int64]database.StockItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	// Check every line before touching anything.
	for _, l := range merged {
		item, ok := byID[l.StockItemID]
		if !ok {
			return fmt.Errorf("%w: %d", ErrStockItemNotFound, l.StockItemID)
		}
		available := numericToDecimal(item.Quantity)
		if available.LessThan(l.Quantity) {
			return &InsufficientInventoryError{
				StockItemID: item.ID,
				Name:        item.Name,
				Required:    l.Quantity,
				Available:   available,
			}
		}
	}

	for _, l := range merged {
		if _, err := store.AdjustStockQuantity(ctx, database.AdjustStockQuantityParams{
			ID:    l.StockItemID,
			Delta: decimalToNumeric(l.Quantity.Neg()),
		}); err != nil {
			return fmt.Errorf("deduct stock item %d: %w", l.StockItemID, err)
		}
	}
	return nil
}

// Release adds stock back. A line whose item no longer exists is logged
// and skipped; releasing must never block a cancellation decision.
func Release(ctx context.Context, store Store, lines []Line) error {
	for _, l := range mergeLines(lines) {
		_, err := store.AdjustStockQuantity(ctx, database.AdjustStockQuantityParams{
			ID:    l.StockItemID,
			Delta: decimalToNumeric(l.Quantity),
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				log.Printf("WARN: release skipped, stock item %d no longer exists", l.StockItemID)
				continue
			}
			return fmt.Errorf("release stock item %d: %w", l.StockItemID, err)
		}
	}
	return nil
}

// mergeLines sums quantities per stock item, drops zero lines, and
// returns the result sorted by item id for stable lock ordering.
func mergeLines(lines []Line) []Line {
	sums := make(map[int64]decimal.Decimal)
	for _, l := range lines {
		sums[l.StockItemID] = sums[l.StockItemID].Add(l.Quantity)
	}
	merged := make([]Line, 0, len(sums))
	for id, qty := range sums {
		if qty.IsZero() {
			continue
		}
		merged = append(merged, Line{StockItemID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].StockItemID < merged[j].StockItemID })
	return merged
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

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}
