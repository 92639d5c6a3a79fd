package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, business_id, order_number, status, order_type, order_source, table_number, customer_name,
subtotal, discount_type, discount_value, discount_amount, tax_amount, delivery_fee, total_amount,
cancel_reason, created_by, created_at, updated_at, status_changed_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.BusinessID, &o.OrderNumber, &o.Status, &o.OrderType, &o.OrderSource,
		&o.TableNumber, &o.CustomerName,
		&o.Subtotal, &o.DiscountType, &o.DiscountValue, &o.DiscountAmount,
		&o.TaxAmount, &o.DeliveryFee, &o.TotalAmount,
		&o.CancelReason, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt, &o.StatusChangedAt,
	)
	return o, err
}

const getNextOrderNumber = `-- name: GetNextOrderNumber :one
SELECT COUNT(*) + 1
FROM orders
WHERE business_id = $1
`

func (q *Queries) GetNextOrderNumber(ctx context.Context, businessID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, getNextOrderNumber, businessID)
	var n int64
	err := row.Scan(&n)
	return n, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
	business_id, order_number, status, order_type, order_source, table_number, customer_name,
	subtotal, discount_type, discount_value, discount_amount, tax_amount, delivery_fee, total_amount,
	created_by
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	BusinessID     uuid.UUID
	OrderNumber    string
	Status         string
	OrderType      string
	OrderSource    string
	TableNumber    pgtype.Text
	CustomerName   pgtype.Text
	Subtotal       pgtype.Numeric
	DiscountType   pgtype.Text
	DiscountValue  pgtype.Numeric
	DiscountAmount pgtype.Numeric
	TaxAmount      pgtype.Numeric
	DeliveryFee    pgtype.Numeric
	TotalAmount    pgtype.Numeric
	CreatedBy      uuid.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.BusinessID,
		arg.OrderNumber,
		arg.Status,
		arg.OrderType,
		arg.OrderSource,
		arg.TableNumber,
		arg.CustomerName,
		arg.Subtotal,
		arg.DiscountType,
		arg.DiscountValue,
		arg.DiscountAmount,
		arg.TaxAmount,
		arg.DeliveryFee,
		arg.TotalAmount,
		arg.CreatedBy,
	)
	return scanOrder(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND business_id = $2
`

type GetOrderParams struct {
	ID         int64
	BusinessID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, arg.ID, arg.BusinessID))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND business_id = $2
FOR UPDATE
`

// GetOrderForUpdate locks the order row, serializing concurrent edits,
// cancellations and status changes against the same order.
func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, arg.ID, arg.BusinessID))
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + `
FROM orders
WHERE business_id = $1
  AND ($2::text = '' OR status = $2)
  AND ($3::text = '' OR order_type = $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5
`

type ListOrdersParams struct {
	BusinessID uuid.UUID
	Status     string
	OrderType  string
	Limit      int32
	Offset     int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.BusinessID, arg.Status, arg.OrderType, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders
SET status = $3, updated_at = now(), status_changed_at = now()
WHERE id = $1 AND business_id = $2
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID         int64
	BusinessID uuid.UUID
	Status     string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.BusinessID, arg.Status))
}

const cancelOrder = `-- name: CancelOrder :one
UPDATE orders
SET status = 'cancelled', cancel_reason = $3, updated_at = now(), status_changed_at = now()
WHERE id = $1 AND business_id = $2
RETURNING ` + orderColumns

type CancelOrderParams struct {
	ID           int64
	BusinessID   uuid.UUID
	CancelReason pgtype.Text
}

func (q *Queries) CancelOrder(ctx context.Context, arg CancelOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, cancelOrder, arg.ID, arg.BusinessID, arg.CancelReason))
}

const updateOrderTotals = `-- name: UpdateOrderTotals :one
UPDATE orders
SET subtotal = $2, discount_amount = $3, tax_amount = $4, total_amount = $5, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderTotalsParams struct {
	ID             int64
	Subtotal       pgtype.Numeric
	DiscountAmount pgtype.Numeric
	TaxAmount      pgtype.Numeric
	TotalAmount    pgtype.Numeric
}

func (q *Queries) UpdateOrderTotals(ctx context.Context, arg UpdateOrderTotalsParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderTotals,
		arg.ID, arg.Subtotal, arg.DiscountAmount, arg.TaxAmount, arg.TotalAmount))
}

// --- Order items ---

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, product_id, variant_id, product_name, product_name_ar, quantity, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, order_id, product_id, variant_id, product_name, product_name_ar, quantity, unit_price, subtotal
`

type CreateOrderItemParams struct {
	OrderID       int64
	ProductID     int64
	VariantID     pgtype.Int8
	ProductName   string
	ProductNameAr pgtype.Text
	Quantity      int32
	UnitPrice     pgtype.Numeric
	Subtotal      pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.VariantID,
		arg.ProductName,
		arg.ProductNameAr,
		arg.Quantity,
		arg.UnitPrice,
		arg.Subtotal,
	)
	var i OrderItem
	err := row.Scan(&i.ID, &i.OrderID, &i.ProductID, &i.VariantID, &i.ProductName, &i.ProductNameAr, &i.Quantity, &i.UnitPrice, &i.Subtotal)
	return i, err
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT id, order_id, product_id, variant_id, product_name, product_name_ar, quantity, unit_price, subtotal
FROM order_items
WHERE order_id = $1
ORDER BY id
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(&i.ID, &i.OrderID, &i.ProductID, &i.VariantID, &i.ProductName, &i.ProductNameAr, &i.Quantity, &i.UnitPrice, &i.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updateOrderItem = `-- name: UpdateOrderItem :one
UPDATE order_items
SET variant_id = $2, quantity = $3, unit_price = $4, subtotal = $5
WHERE id = $1
RETURNING id, order_id, product_id, variant_id, product_name, product_name_ar, quantity, unit_price, subtotal
`

type UpdateOrderItemParams struct {
	ID        int64
	VariantID pgtype.Int8
	Quantity  int32
	UnitPrice pgtype.Numeric
	Subtotal  pgtype.Numeric
}

func (q *Queries) UpdateOrderItem(ctx context.Context, arg UpdateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, updateOrderItem, arg.ID, arg.VariantID, arg.Quantity, arg.UnitPrice, arg.Subtotal)
	var i OrderItem
	err := row.Scan(&i.ID, &i.OrderID, &i.ProductID, &i.VariantID, &i.ProductName, &i.ProductNameAr, &i.Quantity, &i.UnitPrice, &i.Subtotal)
	return i, err
}

const deleteOrderItem = `-- name: DeleteOrderItem :exec
DELETE FROM order_items
WHERE id = $1
`

func (q *Queries) DeleteOrderItem(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, deleteOrderItem, id)
	return err
}

// --- Order item modifiers ---

const createOrderItemModifier = `-- name: CreateOrderItemModifier :one
INSERT INTO order_item_modifiers (order_item_id, modifier_id, modifier_name, modifier_type, quantity, unit_price)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_item_id, modifier_id, modifier_name, modifier_type, quantity, unit_price
`

type CreateOrderItemModifierParams struct {
	OrderItemID  int64
	ModifierID   int64
	ModifierName string
	ModifierType string
	Quantity     int32
	UnitPrice    pgtype.Numeric
}

func (q *Queries) CreateOrderItemModifier(ctx context.Context, arg CreateOrderItemModifierParams) (OrderItemModifier, error) {
	row := q.db.QueryRow(ctx, createOrderItemModifier,
		arg.OrderItemID,
		arg.ModifierID,
		arg.ModifierName,
		arg.ModifierType,
		arg.Quantity,
		arg.UnitPrice,
	)
	var m OrderItemModifier
	err := row.Scan(&m.ID, &m.OrderItemID, &m.ModifierID, &m.ModifierName, &m.ModifierType, &m.Quantity, &m.UnitPrice)
	return m, err
}

const listOrderItemModifiersByOrderItem = `-- name: ListOrderItemModifiersByOrderItem :many
SELECT id, order_item_id, modifier_id, modifier_name, modifier_type, quantity, unit_price
FROM order_item_modifiers
WHERE order_item_id = $1
ORDER BY id
`

func (q *Queries) ListOrderItemModifiersByOrderItem(ctx context.Context, orderItemID int64) ([]OrderItemModifier, error) {
	rows, err := q.db.Query(ctx, listOrderItemModifiersByOrderItem, orderItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItemModifier
	for rows.Next() {
		var m OrderItemModifier
		if err := rows.Scan(&m.ID, &m.OrderItemID, &m.ModifierID, &m.ModifierName, &m.ModifierType, &m.Quantity, &m.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const deleteOrderItemModifiers = `-- name: DeleteOrderItemModifiers :exec
DELETE FROM order_item_modifiers
WHERE order_item_id = $1
`

func (q *Queries) DeleteOrderItemModifiers(ctx context.Context, orderItemID int64) error {
	_, err := q.db.Exec(ctx, deleteOrderItemModifiers, orderItemID)
	return err
}
