package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const cancelledItemColumns = `id, business_id, order_id, order_item_id, product_id, product_name, quantity,
cancellation_source, decision, created_at, decided_at, decided_by`

func scanCancelledItem(row interface{ Scan(dest ...any) error }) (CancelledItem, error) {
	var c CancelledItem
	err := row.Scan(
		&c.ID, &c.BusinessID, &c.OrderID, &c.OrderItemID, &c.ProductID, &c.ProductName, &c.Quantity,
		&c.CancellationSource, &c.Decision, &c.CreatedAt, &c.DecidedAt, &c.DecidedBy,
	)
	return c, err
}

const createCancelledItem = `-- name: CreateCancelledItem :one
INSERT INTO cancelled_items (business_id, order_id, order_item_id, product_id, product_name, quantity, cancellation_source)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + cancelledItemColumns

type CreateCancelledItemParams struct {
	BusinessID         uuid.UUID
	OrderID            int64
	OrderItemID        int64
	ProductID          int64
	ProductName        string
	Quantity           int32
	CancellationSource string
}

func (q *Queries) CreateCancelledItem(ctx context.Context, arg CreateCancelledItemParams) (CancelledItem, error) {
	row := q.db.QueryRow(ctx, createCancelledItem,
		arg.BusinessID,
		arg.OrderID,
		arg.OrderItemID,
		arg.ProductID,
		arg.ProductName,
		arg.Quantity,
		arg.CancellationSource,
	)
	return scanCancelledItem(row)
}

const getCancelledItemForUpdate = `-- name: GetCancelledItemForUpdate :one
SELECT ` + cancelledItemColumns + `
FROM cancelled_items
WHERE id = $1 AND business_id = $2
FOR UPDATE
`

type GetCancelledItemParams struct {
	ID         int64
	BusinessID uuid.UUID
}

// GetCancelledItemForUpdate locks the row so only one concurrent
// decision on the same cancelled item can stick.
func (q *Queries) GetCancelledItemForUpdate(ctx context.Context, arg GetCancelledItemParams) (CancelledItem, error) {
	return scanCancelledItem(q.db.QueryRow(ctx, getCancelledItemForUpdate, arg.ID, arg.BusinessID))
}

const listCancelledItems = `-- name: ListCancelledItems :many
SELECT ` + cancelledItemColumns + `
FROM cancelled_items
WHERE business_id = $1
  AND ($2::text = '' OR cancellation_source = $2)
  AND ($3::text = '' OR decision = $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5
`

type ListCancelledItemsParams struct {
	BusinessID         uuid.UUID
	CancellationSource string
	Decision           string
	Limit              int32
	Offset             int32
}

func (q *Queries) ListCancelledItems(ctx context.Context, arg ListCancelledItemsParams) ([]CancelledItem, error) {
	rows, err := q.db.Query(ctx, listCancelledItems,
		arg.BusinessID, arg.CancellationSource, arg.Decision, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CancelledItem
	for rows.Next() {
		c, err := scanCancelledItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const decideCancelledItem = `-- name: DecideCancelledItem :one
UPDATE cancelled_items
SET decision = $3, decided_at = now(), decided_by = $4
WHERE id = $1 AND business_id = $2 AND decision = 'pending'
RETURNING ` + cancelledItemColumns

type DecideCancelledItemParams struct {
	ID         int64
	BusinessID uuid.UUID
	Decision   string
	DecidedBy  pgtype.UUID
}

func (q *Queries) DecideCancelledItem(ctx context.Context, arg DecideCancelledItemParams) (CancelledItem, error) {
	return scanCancelledItem(q.db.QueryRow(ctx, decideCancelledItem,
		arg.ID, arg.BusinessID, arg.Decision, arg.DecidedBy))
}

const expirePendingCancelledItems = `-- name: ExpirePendingCancelledItems :many
UPDATE cancelled_items
SET decision = 'waste', decided_at = now()
WHERE business_id = $1 AND decision = 'pending' AND created_at < $2
RETURNING ` + cancelledItemColumns

type ExpirePendingCancelledItemsParams struct {
	BusinessID uuid.UUID
	Cutoff     time.Time
}

// ExpirePendingCancelledItems force-wastes stale pending decisions.
// The decision = 'pending' guard makes the sweep idempotent: decided
// rows are never touched.
func (q *Queries) ExpirePendingCancelledItems(ctx context.Context, arg ExpirePendingCancelledItemsParams) ([]CancelledItem, error) {
	rows, err := q.db.Query(ctx, expirePendingCancelledItems, arg.BusinessID, arg.Cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CancelledItem
	for rows.Next() {
		c, err := scanCancelledItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const createCancelledItemIngredient = `-- name: CreateCancelledItemIngredient :one
INSERT INTO cancelled_item_ingredients (cancelled_item_id, stock_item_id, quantity)
VALUES ($1, $2, $3)
RETURNING id, cancelled_item_id, stock_item_id, quantity
`

type CreateCancelledItemIngredientParams struct {
	CancelledItemID int64
	StockItemID     int64
	Quantity        pgtype.Numeric
}

func (q *Queries) CreateCancelledItemIngredient(ctx context.Context, arg CreateCancelledItemIngredientParams) (CancelledItemIngredient, error) {
	row := q.db.QueryRow(ctx, createCancelledItemIngredient, arg.CancelledItemID, arg.StockItemID, arg.Quantity)
	var ci CancelledItemIngredient
	err := row.Scan(&ci.ID, &ci.CancelledItemID, &ci.StockItemID, &ci.Quantity)
	return ci, err
}

const listCancelledItemIngredients = `-- name: ListCancelledItemIngredients :many
SELECT id, cancelled_item_id, stock_item_id, quantity
FROM cancelled_item_ingredients
WHERE cancelled_item_id = $1
ORDER BY id
`

func (q *Queries) ListCancelledItemIngredients(ctx context.Context, cancelledItemID int64) ([]CancelledItemIngredient, error) {
	rows, err := q.db.Query(ctx, listCancelledItemIngredients, cancelledItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CancelledItemIngredient
	for rows.Next() {
		var ci CancelledItemIngredient
		if err := rows.Scan(&ci.ID, &ci.CancelledItemID, &ci.StockItemID, &ci.Quantity); err != nil {
			return nil, err
		}
		items = append(items, ci)
	}
	return items, rows.Err()
}
