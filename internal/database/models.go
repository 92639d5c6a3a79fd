package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Business struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

type User struct {
	ID           uuid.UUID
	BusinessID   uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// StockItem is one ledger row: on-hand quantity is kept in the storage
// unit; recipes are written in the serving unit. The two units always
// share a category (validated at configuration time).
type StockItem struct {
	ID          int64
	BusinessID  uuid.UUID
	Name        string
	StorageUnit string
	ServingUnit string
	Quantity    pgtype.Numeric
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Product struct {
	ID         int64
	BusinessID uuid.UUID
	Name       string
	NameAr     pgtype.Text
	Price      pgtype.Numeric
	IsActive   bool
	CreatedAt  time.Time
}

// ProductIngredient quantity is per unit sold, in the stock item's
// serving unit.
type ProductIngredient struct {
	ID          int64
	ProductID   int64
	StockItemID int64
	Quantity    pgtype.Numeric
}

type ProductVariant struct {
	ID              int64
	ProductID       int64
	Name            string
	NameAr          pgtype.Text
	PriceAdjustment pgtype.Numeric
	IsActive        bool
}

// VariantIngredient rows, when any exist for a variant, fully replace
// the product's ingredient list.
type VariantIngredient struct {
	ID          int64
	VariantID   int64
	StockItemID int64
	Quantity    pgtype.Numeric
}

// Modifier is a named extra or removal. Extras may be bound to a stock
// item, consuming StockQuantity (serving units) per modifier unit.
type Modifier struct {
	ID            int64
	ProductID     int64
	Name          string
	NameAr        pgtype.Text
	ModifierType  string
	Price         pgtype.Numeric
	StockItemID   pgtype.Int8
	StockQuantity pgtype.Numeric
	IsActive      bool
}

type Order struct {
	ID              int64
	BusinessID      uuid.UUID
	OrderNumber     string
	Status          string
	OrderType       string
	OrderSource     string
	TableNumber     pgtype.Text
	CustomerName    pgtype.Text
	Subtotal        pgtype.Numeric
	DiscountType    pgtype.Text
	DiscountValue   pgtype.Numeric
	DiscountAmount  pgtype.Numeric
	TaxAmount       pgtype.Numeric
	DeliveryFee     pgtype.Numeric
	TotalAmount     pgtype.Numeric
	CancelReason    pgtype.Text
	CreatedBy       uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StatusChangedAt time.Time
}

// OrderItem snapshots product name and unit price at add time; the
// catalog is never re-read for an existing line.
type OrderItem struct {
	ID            int64
	OrderID       int64
	ProductID     int64
	VariantID     pgtype.Int8
	ProductName   string
	ProductNameAr pgtype.Text
	Quantity      int32
	UnitPrice     pgtype.Numeric
	Subtotal      pgtype.Numeric
}

type OrderItemModifier struct {
	ID           int64
	OrderItemID  int64
	ModifierID   int64
	ModifierName string
	ModifierType string
	Quantity     int32
	UnitPrice    pgtype.Numeric
}

// CancelledItem is a quantity that left an order after creation,
// awaiting a kitchen waste/return decision.
type CancelledItem struct {
	ID                 int64
	BusinessID         uuid.UUID
	OrderID            int64
	OrderItemID        int64
	ProductID          int64
	ProductName        string
	Quantity           int32
	CancellationSource string
	Decision           string
	CreatedAt          time.Time
	DecidedAt          pgtype.Timestamptz
	DecidedBy          pgtype.UUID
}

// CancelledItemIngredient records the exact reserved ingredient lines
// (storage units) so a "return" decision releases precisely what the
// item had deducted.
type CancelledItemIngredient struct {
	ID              int64
	CancelledItemID int64
	StockItemID     int64
	Quantity        pgtype.Numeric
}
