package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/sufra-pos/api/internal/database"
	"github.com/sufra-pos/api/internal/enum"
	"github.com/sufra-pos/api/internal/inventory"
	"github.com/sufra-pos/api/internal/recipe"
)

// ErrEmptyEdit is returned when an edit request carries no operations.
var ErrEmptyEdit = errors.New("at least one of products_to_add, products_to_modify or products_to_remove is required")

// EditOrderRequest carries the three edit operation sets. All three
// apply in one transaction; any failure rolls the whole edit back.
type EditOrderRequest struct {
	BusinessID uuid.UUID
	OrderID    int64
	EditedBy   uuid.UUID
	Add        []CreateOrderItemRequest
	Modify     []ModifyOrderItemRequest
	Remove     []RemoveOrderItemRequest
}

// ModifyOrderItemRequest changes an existing order item. Nil fields
// are left unchanged; a non-nil Modifiers slice replaces the item's
// modifier set wholesale.
type ModifyOrderItemRequest struct {
	OrderItemID int64
	Quantity    *int32
	VariantID   *int64
	Modifiers   *[]ItemModifierRequest
}

// RemoveOrderItemRequest removes an item from the order.
type RemoveOrderItemRequest struct {
	OrderItemID int64
}

// EditOrder reconciles an order against the requested add, modify and
// remove sets atomically. The net inventory delta across all three
// sets is applied as one reserve plus one release; if the reserve
// fails the entire edit rolls back, including the releases.
//
// Removed items do not release inventory here. When the order is
// already in progress (or pending removals are tracked) the item goes
// to the kitchen as a pending waste/return decision; otherwise the
// ingredients are released immediately.
//
// References to order items that do not belong to the order are
// ignored rather than failing the edit, so a ticket edited twice in
// quick succession does not bounce.
func (s *OrderService) EditOrder(ctx context.Context, req EditOrderRequest) (*OrderResult, error) {
	if len(req.Add) == 0 && len(req.Modify) == 0 && len(req.Remove) == 0 {
		return nil, ErrEmptyEdit
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{ID: req.OrderID, BusinessID: req.BusinessID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotEditable
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if isTerminalStatus(order.Status) {
		return nil, ErrOrderNotEditable
	}

	existing, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	byID := make(map[int64]database.OrderItem, len(existing))
	for _, item := range existing {
		byID[item.ID] = item
	}

	// Accumulated signed inventory movement for the whole edit.
	// Positive = reserve, negative = release.
	var delta []signedLine

	// --- Adds: same path as order creation ---
	for i, add := range req.Add {
		prepared, err := s.prepareItem(ctx, store, req.BusinessID, add)
		if err != nil {
			return nil, fmt.Errorf("products_to_add[%d]: %w", i, err)
		}
		prepared.params.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, prepared.params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		delta = appendSigned(delta, prepared.lines, 1)
		for _, mod := range prepared.modifiers {
			mod.params.OrderItemID = item.ID
			if _, err := store.CreateOrderItemModifier(ctx, mod.params); err != nil {
				return nil, fmt.Errorf("create order item modifier: %w", err)
			}
			delta = appendSigned(delta, mod.lines, 1)
		}
	}

	// --- Modifies ---
	for i, mod := range req.Modify {
		item, ok := byID[mod.OrderItemID]
		if !ok {
			continue
		}
		moved, err := s.applyModify(ctx, store, req.BusinessID, item, mod)
		if err != nil {
			return nil, fmt.Errorf("products_to_modify[%d]: %w", i, err)
		}
		delta = append(delta, moved...)
	}

	// --- Removes ---
	for _, rm := range req.Remove {
		item, ok := byID[rm.OrderItemID]
		if !ok {
			continue
		}
		released, err := s.removeItem(ctx, store, req.BusinessID, order, item)
		if err != nil {
			return nil, fmt.Errorf("remove order item %d: %w", rm.OrderItemID, err)
		}
		delta = append(delta, released...)
		delete(byID, rm.OrderItemID)
	}

	// --- Apply the net inventory movement ---
	reserves, releases := splitSigned(delta)
	if err := inventory.Reserve(ctx, store, reserves); err != nil {
		return nil, err
	}
	if err := inventory.Release(ctx, store, releases); err != nil {
		return nil, err
	}

	updated, err := recomputeTotals(ctx, store, order, s.opts.TaxRate)
	if err != nil {
		return nil, err
	}

	items, err := loadItems(ctx, store, order.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &OrderResult{Order: updated, Items: items}, nil
}

// applyModify updates one order item's quantity, variant and modifier
// set, returning the signed inventory movement it caused.
func (s *OrderService) applyModify(ctx context.Context, store Store, businessID uuid.UUID, item database.OrderItem, mod ModifyOrderItemRequest) ([]signedLine, error) {
	var delta []signedLine

	oldQty := item.Quantity
	newQty := oldQty
	if mod.Quantity != nil {
		if *mod.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		newQty = *mod.Quantity
	}

	oldVariantID := int8ToPtr(item.VariantID)
	newVariantID := oldVariantID
	unitPrice := numericToDecimal(item.UnitPrice)

	if mod.VariantID != nil {
		variant, err := store.GetVariantForOrder(ctx, *mod.VariantID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrVariantNotFound
			}
			return nil, fmt.Errorf("get variant: %w", err)
		}
		if variant.ProductID != item.ProductID {
			return nil, ErrVariantMismatch
		}
		// A variant change re-snapshots the price from the catalog;
		// the old snapshot no longer describes what is being made.
		product, err := store.GetProductForOrder(ctx, database.GetProductForOrderParams{
			ID:         item.ProductID,
			BusinessID: businessID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrProductNotFound
			}
			return nil, fmt.Errorf("get product: %w", err)
		}
		newVariantID = mod.VariantID
		unitPrice = numericToDecimal(product.Price).Add(numericToDecimal(variant.PriceAdjustment))
	}

	// Recipe delta: old usage out, new usage in. A plain quantity
	// decrease therefore releases immediately.
	if newQty != oldQty || !int64PtrEqual(oldVariantID, newVariantID) {
		oldLines, err := recipe.ResolveProduct(ctx, store, item.ProductID, oldVariantID)
		if err != nil {
			return nil, err
		}
		newLines, err := recipe.ResolveProduct(ctx, store, item.ProductID, newVariantID)
		if err != nil {
			return nil, err
		}
		delta = appendSigned(delta, recipe.Scale(oldLines, oldQty), -1)
		delta = appendSigned(delta, recipe.Scale(newLines, newQty), 1)
	}

	// Modifier replacement: diff by modifier id, move inventory only
	// for the changed subset, keep original snapshots for survivors.
	modifiersTotal := decimal.Zero
	if mod.Modifiers != nil {
		oldMods, err := store.ListOrderItemModifiersByOrderItem(ctx, item.ID)
		if err != nil {
			return nil, fmt.Errorf("list order item modifiers: %w", err)
		}
		oldByID := make(map[int64]database.OrderItemModifier, len(oldMods))
		for _, m := range oldMods {
			oldByID[m.ModifierID] = m
		}
		newQtyByID := make(map[int64]int32, len(*mod.Modifiers))
		for _, m := range *mod.Modifiers {
			if m.Quantity <= 0 {
				return nil, ErrInvalidQuantity
			}
			newQtyByID[m.ModifierID] = newQtyByID[m.ModifierID] + m.Quantity
		}

		if err := store.DeleteOrderItemModifiers(ctx, item.ID); err != nil {
			return nil, fmt.Errorf("delete order item modifiers: %w", err)
		}

		for modifierID, qty := range newQtyByID {
			old, kept := oldByID[modifierID]
			params := database.CreateOrderItemModifierParams{
				OrderItemID: item.ID,
				ModifierID:  modifierID,
				Quantity:    qty,
			}
			var lines []recipe.Line
			if kept {
				params.ModifierName = old.ModifierName
				params.ModifierType = old.ModifierType
				params.UnitPrice = old.UnitPrice
				lines, err = modifierStockLines(ctx, store, modifierID)
				if err != nil {
					return nil, err
				}
			} else {
				modifier, err := store.GetModifierForOrder(ctx, modifierID)
				if err != nil {
					if errors.Is(err, pgx.ErrNoRows) {
						return nil, ErrModifierNotFound
					}
					return nil, fmt.Errorf("get modifier: %w", err)
				}
				if modifier.ProductID != item.ProductID {
					return nil, ErrModifierMismatch
				}
				params.ModifierName = modifier.Name
				params.ModifierType = modifier.ModifierType
				params.UnitPrice = modifier.Price
				lines, err = recipe.ResolveModifier(ctx, store, modifier)
				if err != nil {
					return nil, err
				}
			}

			oldCount := int32(0)
			if kept {
				oldCount = old.Quantity
			}
			if qty > oldCount {
				delta = appendSigned(delta, recipe.Scale(lines, qty-oldCount), 1)
			} else if qty < oldCount {
				delta = appendSigned(delta, recipe.Scale(lines, oldCount-qty), -1)
			}

			oim, err := store.CreateOrderItemModifier(ctx, params)
			if err != nil {
				return nil, fmt.Errorf("create order item modifier: %w", err)
			}
			modifiersTotal = modifiersTotal.Add(numericToDecimal(oim.UnitPrice).Mul(decimal.NewFromInt32(oim.Quantity)))
		}

		// Dropped modifiers release what they had reserved.
		for modifierID, old := range oldByID {
			if _, still := newQtyByID[modifierID]; still {
				continue
			}
			lines, err := modifierStockLines(ctx, store, modifierID)
			if err != nil {
				return nil, err
			}
			delta = appendSigned(delta, recipe.Scale(lines, old.Quantity), -1)
		}
	} else {
		mods, err := store.ListOrderItemModifiersByOrderItem(ctx, item.ID)
		if err != nil {
			return nil, fmt.Errorf("list order item modifiers: %w", err)
		}
		for _, m := range mods {
			modifiersTotal = modifiersTotal.Add(numericToDecimal(m.UnitPrice).Mul(decimal.NewFromInt32(m.Quantity)))
		}
	}

	variantID := pgtype.Int8{}
	if newVariantID != nil {
		variantID = pgtype.Int8{Int64: *newVariantID, Valid: true}
	}
	subtotal := unitPrice.Mul(decimal.NewFromInt32(newQty)).Add(modifiersTotal)

	if _, err := store.UpdateOrderItem(ctx, database.UpdateOrderItemParams{
		ID:        item.ID,
		VariantID: variantID,
		Quantity:  newQty,
		UnitPrice: decimalToNumeric(unitPrice),
		Subtotal:  decimalToNumeric(subtotal),
	}); err != nil {
		return nil, fmt.Errorf("update order item: %w", err)
	}
	return delta, nil
}

// removeItem deletes an order item. On an in-progress order the food
// may already be on the grill, so the ingredients stay deducted and a
// pending waste/return decision is recorded with the exact reserved
// quantities. On a pending order the ingredients are simply released.
func (s *OrderService) removeItem(ctx context.Context, store Store, businessID uuid.UUID, order database.Order, item database.OrderItem) ([]signedLine, error) {
	lines, err := reservedLinesFor(ctx, store, item)
	if err != nil {
		return nil, err
	}

	var delta []signedLine
	if order.Status == enum.OrderStatusInProgress || s.opts.TrackPendingRemovals {
		ci, err := store.CreateCancelledItem(ctx, database.CreateCancelledItemParams{
			BusinessID:         businessID,
			OrderID:            order.ID,
			OrderItemID:        item.ID,
			ProductID:          item.ProductID,
			ProductName:        item.ProductName,
			Quantity:           item.Quantity,
			CancellationSource: enum.CancellationSourceOrderEdited,
		})
		if err != nil {
			return nil, fmt.Errorf("create cancelled item: %w", err)
		}
		if err := snapshotIngredients(ctx, store, ci.ID, lines); err != nil {
			return nil, err
		}
	} else {
		delta = appendSigned(delta, lines, -1)
	}

	if err := store.DeleteOrderItemModifiers(ctx, item.ID); err != nil {
		return nil, fmt.Errorf("delete order item modifiers: %w", err)
	}
	if err := store.DeleteOrderItem(ctx, item.ID); err != nil {
		return nil, fmt.Errorf("delete order item: %w", err)
	}
	return delta, nil
}

// reservedLinesFor rebuilds the ingredient lines held by an order
// item: its recipe scaled by quantity plus any stock-linked extras.
// Modifiers since removed from the catalog contribute nothing.
func reservedLinesFor(ctx context.Context, store Store, item database.OrderItem) ([]recipe.Line, error) {
	lines, err := recipe.ResolveProduct(ctx, store, item.ProductID, int8ToPtr(item.VariantID))
	if err != nil {
		return nil, err
	}
	lines = recipe.Scale(lines, item.Quantity)

	mods, err := store.ListOrderItemModifiersByOrderItem(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("list order item modifiers: %w", err)
	}
	for _, m := range mods {
		modLines, err := modifierStockLines(ctx, store, m.ModifierID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, recipe.Scale(modLines, m.Quantity)...)
	}
	return lines, nil
}

// modifierStockLines resolves a modifier's stock usage by id. Gone
// from the catalog means no stock contribution.
func modifierStockLines(ctx context.Context, store Store, modifierID int64) ([]recipe.Line, error) {
	modifier, err := store.GetModifierForOrder(ctx, modifierID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get modifier: %w", err)
	}
	return recipe.ResolveModifier(ctx, store, modifier)
}

// snapshotIngredients persists the reserved lines for a cancelled
// item. These rows, not a fresh recipe resolution, are the release
// basis if the kitchen later decides "return".
func snapshotIngredients(ctx context.Context, store Store, cancelledItemID int64, lines []recipe.Line) error {
	for _, line := range lines {
		if _, err := store.CreateCancelledItemIngredient(ctx, database.CreateCancelledItemIngredientParams{
			CancelledItemID: cancelledItemID,
			StockItemID:     line.StockItemID,
			Quantity:        decimalToNumeric(line.Quantity),
		}); err != nil {
			return fmt.Errorf("create cancelled item ingredient: %w", err)
		}
	}
	return nil
}

// --- Signed line bookkeeping ---

type signedLine struct {
	stockItemID int64
	quantity    decimal.Decimal // signed
}

func appendSigned(delta []signedLine, lines []recipe.Line, sign int) []signedLine {
	for _, l := range lines {
		q := l.Quantity
		if sign < 0 {
			q = q.Neg()
		}
		delta = append(delta, signedLine{stockItemID: l.StockItemID, quantity: q})
	}
	return delta
}

// splitSigned nets the movement per stock item, then splits it into a
// reserve set and a release set. Netting first means an edit that
// swaps equal amounts of the same ingredient touches nothing.
func splitSigned(delta []signedLine) (reserves, releases []inventory.Line) {
	net := make(map[int64]decimal.Decimal)
	order := make([]int64, 0, len(delta))
	for _, l := range delta {
		if _, seen := net[l.stockItemID]; !seen {
			order = append(order, l.stockItemID)
		}
		net[l.stockItemID] = net[l.stockItemID].Add(l.quantity)
	}
	for _, id := range order {
		q := net[id]
		switch {
		case q.IsPositive():
			reserves = append(reserves, inventory.Line{StockItemID: id, Quantity: q})
		case q.IsNegative():
			releases = append(releases, inventory.Line{StockItemID: id, Quantity: q.Neg()})
		}
	}
	return reserves, releases
}

func int8ToPtr(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
