package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createStockItem = `-- name: CreateStockItem :one
INSERT INTO stock_items (business_id, name, storage_unit, serving_unit, quantity)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, business_id, name, storage_unit, serving_unit, quantity, created_at, updated_at
`

type CreateStockItemParams struct {
	BusinessID  uuid.UUID
	Name        string
	StorageUnit string
	ServingUnit string
	Quantity    pgtype.Numeric
}

func (q *Queries) CreateStockItem(ctx context.Context, arg CreateStockItemParams) (StockItem, error) {
	row := q.db.QueryRow(ctx, createStockItem,
		arg.BusinessID,
		arg.Name,
		arg.StorageUnit,
		arg.ServingUnit,
		arg.Quantity,
	)
	var i StockItem
	err := row.Scan(&i.ID, &i.BusinessID, &i.Name, &i.StorageUnit, &i.ServingUnit, &i.Quantity, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const getStockItem = `-- name: GetStockItem :one
SELECT id, business_id, name, storage_unit, serving_unit, quantity, created_at, updated_at
FROM stock_items
WHERE id = $1
`

func (q *Queries) GetStockItem(ctx context.Context, id int64) (StockItem, error) {
	row := q.db.QueryRow(ctx, getStockItem, id)
	var i StockItem
	err := row.Scan(&i.ID, &i.BusinessID, &i.Name, &i.StorageUnit, &i.ServingUnit, &i.Quantity, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const listStockItems = `-- name: ListStockItems :many
SELECT id, business_id, name, storage_unit, serving_unit, quantity, created_at, updated_at
FROM stock_items
WHERE business_id = $1
ORDER BY name
`

func (q *Queries) ListStockItems(ctx context.Context, businessID uuid.UUID) ([]StockItem, error) {
	rows, err := q.db.Query(ctx, listStockItems, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StockItem
	for rows.Next() {
		var i StockItem
		if err := rows.Scan(&i.ID, &i.BusinessID, &i.Name, &i.StorageUnit, &i.ServingUnit, &i.Quantity, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getStockItemsForUpdate = `-- name: GetStockItemsForUpdate :many
SELECT id, business_id, name, storage_unit, serving_unit, quantity, created_at, updated_at
FROM stock_items
WHERE id = ANY($1::bigint[])
ORDER BY id
FOR UPDATE
`

// GetStockItemsForUpdate locks the requested ledger rows in id order.
// Consistent lock ordering keeps concurrent reservations touching the
// same items from deadlocking.
func (q *Queries) GetStockItemsForUpdate(ctx context.Context, ids []int64) ([]StockItem, error) {
	rows, err := q.db.Query(ctx, getStockItemsForUpdate, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StockItem
	for rows.Next() {
		var i StockItem
		if err := rows.Scan(&i.ID, &i.BusinessID, &i.Name, &i.StorageUnit, &i.ServingUnit, &i.Quantity, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const adjustStockQuantity = `-- name: AdjustStockQuantity :one
UPDATE stock_items
SET quantity = quantity + $2, updated_at = now()
WHERE id = $1
RETURNING quantity
`

type AdjustStockQuantityParams struct {
	ID    int64
	Delta pgtype.Numeric
}

func (q *Queries) AdjustStockQuantity(ctx context.Context, arg AdjustStockQuantityParams) (pgtype.Numeric, error) {
	row := q.db.QueryRow(ctx, adjustStockQuantity, arg.ID, arg.Delta)
	var quantity pgtype.Numeric
	err := row.Scan(&quantity)
	return quantity, err
}
