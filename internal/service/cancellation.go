package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sufra-pos/api/internal/database"
	"github.com/sufra-pos/api/internal/enum"
	"github.com/sufra-pos/api/internal/inventory"
)

// Errors returned by the cancellation workflow.
var (
	ErrInvalidDecision       = errors.New("decision must be waste or return")
	ErrEmptyDecisions        = errors.New("decisions are required")
	ErrCancelledItemNotFound = errors.New("cancelled item not found")
	ErrAlreadyDecided        = errors.New("cancelled item already decided")
)

// Cancel cancels a whole order with a reason.
//
// A pending order was never sent to the kitchen, so its ingredients
// are released on the spot and no decisions are created. An
// in-progress order instead queues every item as a pending
// waste/return decision; the stock stays deducted until the kitchen
// decides.
func (s *OrderService) Cancel(ctx context.Context, businessID uuid.UUID, orderID int64, reason string) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{ID: orderID, BusinessID: businessID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotEditable
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if isTerminalStatus(order.Status) {
		return nil, ErrOrderNotEditable
	}

	items, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	track := order.Status == enum.OrderStatusInProgress || s.opts.TrackPendingRemovals
	var releases []inventory.Line
	for _, item := range items {
		lines, err := reservedLinesFor(ctx, store, item)
		if err != nil {
			return nil, err
		}
		if track {
			ci, err := store.CreateCancelledItem(ctx, database.CreateCancelledItemParams{
				BusinessID:         businessID,
				OrderID:            order.ID,
				OrderItemID:        item.ID,
				ProductID:          item.ProductID,
				ProductName:        item.ProductName,
				Quantity:           item.Quantity,
				CancellationSource: enum.CancellationSourceOrderCancelled,
			})
			if err != nil {
				return nil, fmt.Errorf("create cancelled item: %w", err)
			}
			if err := snapshotIngredients(ctx, store, ci.ID, lines); err != nil {
				return nil, err
			}
		} else {
			for _, l := range lines {
				releases = append(releases, inventory.Line{StockItemID: l.StockItemID, Quantity: l.Quantity})
			}
		}
	}

	if err := inventory.Release(ctx, store, releases); err != nil {
		return nil, err
	}

	cancelReason := pgtype.Text{}
	if reason != "" {
		cancelReason = pgtype.Text{String: reason, Valid: true}
	}
	cancelled, err := store.CancelOrder(ctx, database.CancelOrderParams{
		ID:           orderID,
		BusinessID:   businessID,
		CancelReason: cancelReason,
	})
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &cancelled, nil
}

// Decision is one kitchen verdict on a cancelled item.
type Decision struct {
	CancelledItemID int64
	Decision        string // waste or return
}

// DecisionResult reports the outcome for one entry of a batch.
type DecisionResult struct {
	CancelledItemID int64                   `json:"cancelled_item_id"`
	Status          string                  `json:"status"` // ok or failed
	Error           string                  `json:"error,omitempty"`
	Item            *database.CancelledItem `json:"item,omitempty"`
}

// ProcessDecisions applies a batch of kitchen decisions. Malformed
// decision values fail the whole batch up front; after that each entry
// runs in its own transaction, so one already-decided or missing item
// does not block the rest.
//
// "return" puts the snapshotted ingredient quantities back on the
// shelf; "waste" leaves the ledger as is.
func (s *OrderService) ProcessDecisions(ctx context.Context, businessID, decidedBy uuid.UUID, decisions []Decision) ([]DecisionResult, error) {
	if len(decisions) == 0 {
		return nil, ErrEmptyDecisions
	}
	for _, d := range decisions {
		if d.Decision != enum.CancelDecisionWaste && d.Decision != "return" {
			return nil, ErrInvalidDecision
		}
	}

	results := make([]DecisionResult, 0, len(decisions))
	for _, d := range decisions {
		item, err := s.decideOne(ctx, businessID, decidedBy, d)
		if err != nil {
			results = append(results, DecisionResult{
				CancelledItemID: d.CancelledItemID,
				Status:          "failed",
				Error:           err.Error(),
			})
			continue
		}
		results = append(results, DecisionResult{
			CancelledItemID: d.CancelledItemID,
			Status:          "ok",
			Item:            item,
		})
	}
	return results, nil
}

func (s *OrderService) decideOne(ctx context.Context, businessID, decidedBy uuid.UUID, d Decision) (*database.CancelledItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	item, err := store.GetCancelledItemForUpdate(ctx, database.GetCancelledItemParams{
		ID:         d.CancelledItemID,
		BusinessID: businessID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCancelledItemNotFound
		}
		return nil, fmt.Errorf("get cancelled item: %w", err)
	}
	if item.Decision != enum.CancelDecisionPending {
		return nil, ErrAlreadyDecided
	}

	decision := enum.CancelDecisionWaste
	if d.Decision == "return" {
		decision = enum.CancelDecisionReturned

		snapshot, err := store.ListCancelledItemIngredients(ctx, item.ID)
		if err != nil {
			return nil, fmt.Errorf("list cancelled item ingredients: %w", err)
		}
		releases := make([]inventory.Line, 0, len(snapshot))
		for _, ing := range snapshot {
			releases = append(releases, inventory.Line{
				StockItemID: ing.StockItemID,
				Quantity:    numericToDecimal(ing.Quantity),
			})
		}
		if err := inventory.Release(ctx, store, releases); err != nil {
			return nil, err
		}
	}

	decided, err := store.DecideCancelledItem(ctx, database.DecideCancelledItemParams{
		ID:         item.ID,
		BusinessID: businessID,
		Decision:   decision,
		DecidedBy:  pgtype.UUID{Bytes: decidedBy, Valid: true},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Raced with another decision between read and update.
			return nil, ErrAlreadyDecided
		}
		return nil, fmt.Errorf("decide cancelled item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &decided, nil
}

// AutoExpire force-wastes pending decisions older than ttl. Wasting
// touches no stock, so the sweep is safe to run repeatedly.
func (s *OrderService) AutoExpire(ctx context.Context, businessID uuid.UUID, ttl time.Duration) ([]database.CancelledItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	expired, err := store.ExpirePendingCancelledItems(ctx, database.ExpirePendingCancelledItemsParams{
		BusinessID: businessID,
		Cutoff:     time.Now().Add(-ttl),
	})
	if err != nil {
		return nil, fmt.Errorf("expire pending cancelled items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return expired, nil
}
