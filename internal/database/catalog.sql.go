package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (business_id, name, name_ar, price)
VALUES ($1, $2, $3, $4)
RETURNING id, business_id, name, name_ar, price, is_active, created_at
`

type CreateProductParams struct {
	BusinessID uuid.UUID
	Name       string
	NameAr     pgtype.Text
	Price      pgtype.Numeric
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct, arg.BusinessID, arg.Name, arg.NameAr, arg.Price)
	var p Product
	err := row.Scan(&p.ID, &p.BusinessID, &p.Name, &p.NameAr, &p.Price, &p.IsActive, &p.CreatedAt)
	return p, err
}

const getProductForOrder = `-- name: GetProductForOrder :one
SELECT id, business_id, name, name_ar, price, is_active, created_at
FROM products
WHERE id = $1 AND business_id = $2 AND is_active
`

type GetProductForOrderParams struct {
	ID         int64
	BusinessID uuid.UUID
}

func (q *Queries) GetProductForOrder(ctx context.Context, arg GetProductForOrderParams) (Product, error) {
	row := q.db.QueryRow(ctx, getProductForOrder, arg.ID, arg.BusinessID)
	var p Product
	err := row.Scan(&p.ID, &p.BusinessID, &p.Name, &p.NameAr, &p.Price, &p.IsActive, &p.CreatedAt)
	return p, err
}

const listProducts = `-- name: ListProducts :many
SELECT id, business_id, name, name_ar, price, is_active, created_at
FROM products
WHERE business_id = $1 AND is_active
ORDER BY name
`

func (q *Queries) ListProducts(ctx context.Context, businessID uuid.UUID) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.BusinessID, &p.Name, &p.NameAr, &p.Price, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const createProductIngredient = `-- name: CreateProductIngredient :one
INSERT INTO product_ingredients (product_id, stock_item_id, quantity)
VALUES ($1, $2, $3)
RETURNING id, product_id, stock_item_id, quantity
`

type CreateProductIngredientParams struct {
	ProductID   int64
	StockItemID int64
	Quantity    pgtype.Numeric
}

func (q *Queries) CreateProductIngredient(ctx context.Context, arg CreateProductIngredientParams) (ProductIngredient, error) {
	row := q.db.QueryRow(ctx, createProductIngredient, arg.ProductID, arg.StockItemID, arg.Quantity)
	var pi ProductIngredient
	err := row.Scan(&pi.ID, &pi.ProductID, &pi.StockItemID, &pi.Quantity)
	return pi, err
}

const listProductIngredients = `-- name: ListProductIngredients :many
SELECT id, product_id, stock_item_id, quantity
FROM product_ingredients
WHERE product_id = $1
ORDER BY id
`

func (q *Queries) ListProductIngredients(ctx context.Context, productID int64) ([]ProductIngredient, error) {
	rows, err := q.db.Query(ctx, listProductIngredients, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ProductIngredient
	for rows.Next() {
		var pi ProductIngredient
		if err := rows.Scan(&pi.ID, &pi.ProductID, &pi.StockItemID, &pi.Quantity); err != nil {
			return nil, err
		}
		items = append(items, pi)
	}
	return items, rows.Err()
}

const createProductVariant = `-- name: CreateProductVariant :one
INSERT INTO product_variants (product_id, name, name_ar, price_adjustment)
VALUES ($1, $2, $3, $4)
RETURNING id, product_id, name, name_ar, price_adjustment, is_active
`

type CreateProductVariantParams struct {
	ProductID       int64
	Name            string
	NameAr          pgtype.Text
	PriceAdjustment pgtype.Numeric
}

func (q *Queries) CreateProductVariant(ctx context.Context, arg CreateProductVariantParams) (ProductVariant, error) {
	row := q.db.QueryRow(ctx, createProductVariant, arg.ProductID, arg.Name, arg.NameAr, arg.PriceAdjustment)
	var v ProductVariant
	err := row.Scan(&v.ID, &v.ProductID, &v.Name, &v.NameAr, &v.PriceAdjustment, &v.IsActive)
	return v, err
}

const getVariantForOrder = `-- name: GetVariantForOrder :one
SELECT id, product_id, name, name_ar, price_adjustment, is_active
FROM product_variants
WHERE id = $1 AND is_active
`

func (q *Queries) GetVariantForOrder(ctx context.Context, id int64) (ProductVariant, error) {
	row := q.db.QueryRow(ctx, getVariantForOrder, id)
	var v ProductVariant
	err := row.Scan(&v.ID, &v.ProductID, &v.Name, &v.NameAr, &v.PriceAdjustment, &v.IsActive)
	return v, err
}

const createVariantIngredient = `-- name: CreateVariantIngredient :one
INSERT INTO variant_ingredients (variant_id, stock_item_id, quantity)
VALUES ($1, $2, $3)
RETURNING id, variant_id, stock_item_id, quantity
`

type CreateVariantIngredientParams struct {
	VariantID   int64
	StockItemID int64
	Quantity    pgtype.Numeric
}

func (q *Queries) CreateVariantIngredient(ctx context.Context, arg CreateVariantIngredientParams) (VariantIngredient, error) {
	row := q.db.QueryRow(ctx, createVariantIngredient, arg.VariantID, arg.StockItemID, arg.Quantity)
	var vi VariantIngredient
	err := row.Scan(&vi.ID, &vi.VariantID, &vi.StockItemID, &vi.Quantity)
	return vi, err
}

const listVariantIngredients = `-- name: ListVariantIngredients :many
SELECT id, variant_id, stock_item_id, quantity
FROM variant_ingredients
WHERE variant_id = $1
ORDER BY id
`

func (q *Queries) ListVariantIngredients(ctx context.Context, variantID int64) ([]VariantIngredient, error) {
	rows, err := q.db.Query(ctx, listVariantIngredients, variantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []VariantIngredient
	for rows.Next() {
		var vi VariantIngredient
		if err := rows.Scan(&vi.ID, &vi.VariantID, &vi.StockItemID, &vi.Quantity); err != nil {
			return nil, err
		}
		items = append(items, vi)
	}
	return items, rows.Err()
}

const createModifier = `-- name: CreateModifier :one
INSERT INTO modifiers (product_id, name, name_ar, modifier_type, price, stock_item_id, stock_quantity)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, product_id, name, name_ar, modifier_type, price, stock_item_id, stock_quantity, is_active
`

type CreateModifierParams struct {
	ProductID     int64
	Name          string
	NameAr        pgtype.Text
	ModifierType  string
	Price         pgtype.Numeric
	StockItemID   pgtype.Int8
	StockQuantity pgtype.Numeric
}

func (q *Queries) CreateModifier(ctx context.Context, arg CreateModifierParams) (Modifier, error) {
	row := q.db.QueryRow(ctx, createModifier,
		arg.ProductID,
		arg.Name,
		arg.NameAr,
		arg.ModifierType,
		arg.Price,
		arg.StockItemID,
		arg.StockQuantity,
	)
	var m Modifier
	err := row.Scan(&m.ID, &m.ProductID, &m.Name, &m.NameAr, &m.ModifierType, &m.Price, &m.StockItemID, &m.StockQuantity, &m.IsActive)
	return m, err
}

const getModifierForOrder = `-- name: GetModifierForOrder :one
SELECT id, product_id, name, name_ar, modifier_type, price, stock_item_id, stock_quantity, is_active
FROM modifiers
WHERE id = $1 AND is_active
`

func (q *Queries) GetModifierForOrder(ctx context.Context, id int64) (Modifier, error) {
	row := q.db.QueryRow(ctx, getModifierForOrder, id)
	var m Modifier
	err := row.Scan(&m.ID, &m.ProductID, &m.Name, &m.NameAr, &m.ModifierType, &m.Price, &m.StockItemID, &m.StockQuantity, &m.IsActive)
	return m, err
}

const listModifiersByProduct = `-- name: ListModifiersByProduct :many
SELECT id, product_id, name, name_ar, modifier_type, price, stock_item_id, stock_quantity, is_active
FROM modifiers
WHERE product_id = $1 AND is_active
ORDER BY id
`

func (q *Queries) ListModifiersByProduct(ctx context.Context, productID int64) ([]Modifier, error) {
	rows, err := q.db.Query(ctx, listModifiersByProduct, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Modifier
	for rows.Next() {
		var m Modifier
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Name, &m.NameAr, &m.ModifierType, &m.Price, &m.StockItemID, &m.StockQuantity, &m.IsActive); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
