package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/sufra-pos/api/internal/database"
	"github.com/sufra-pos/api/internal/enum"
	"github.com/sufra-pos/api/internal/inventory"
	"github.com/sufra-pos/api/internal/recipe"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems           = errors.New("items are required")
	ErrInvalidOrderType     = errors.New("invalid order_type")
	ErrInvalidOrderSource   = errors.New("invalid order_source")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrProductNotFound      = errors.New("product not found in business")
	ErrVariantNotFound      = errors.New("variant not found")
	ErrVariantMismatch      = errors.New("variant does not belong to product")
	ErrModifierNotFound     = errors.New("modifier not found")
	ErrModifierMismatch     = errors.New("modifier does not belong to product")
	ErrInvalidDiscount      = errors.New("invalid discount_type")
	ErrInvalidDiscountValue = errors.New("invalid discount_value")
	ErrInvalidDeliveryFee   = errors.New("invalid delivery_fee")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrOrderNotFound        = errors.New("order not found")

	// ErrOrderNotEditable covers both a terminal order and a missing
	// one. Edits and cancellations deliberately do not distinguish the
	// two cases; clients have always received a 400 for both.
	ErrOrderNotEditable = errors.New("order not found or not editable")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store defines the DB methods needed by the order service.
// Satisfied by *database.Queries (and its WithTx variant).
type Store interface {
	recipe.Store
	inventory.Store

	GetNextOrderNumber(ctx context.Context, businessID uuid.UUID) (int64, error)
	GetProductForOrder(ctx context.Context, arg database.GetProductForOrderParams) (database.Product, error)
	GetModifierForOrder(ctx context.Context, id int64) (database.Modifier, error)

	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)
	UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error)

	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	ListOrderItemsByOrder(ctx context.Context, orderID int64) ([]database.OrderItem, error)
	UpdateOrderItem(ctx context.Context, arg database.UpdateOrderItemParams) (database.OrderItem, error)
	DeleteOrderItem(ctx context.Context, id int64) error

	CreateOrderItemModifier(ctx context.Context, arg database.CreateOrderItemModifierParams) (database.OrderItemModifier, error)
	ListOrderItemModifiersByOrderItem(ctx context.Context, orderItemID int64) ([]database.OrderItemModifier, error)
	DeleteOrderItemModifiers(ctx context.Context, orderItemID int64) error

	CreateCancelledItem(ctx context.Context, arg database.CreateCancelledItemParams) (database.CancelledItem, error)
	CreateCancelledItemIngredient(ctx context.Context, arg database.CreateCancelledItemIngredientParams) (database.CancelledItemIngredient, error)
	GetCancelledItemForUpdate(ctx context.Context, arg database.GetCancelledItemParams) (database.CancelledItem, error)
	ListCancelledItemIngredients(ctx context.Context, cancelledItemID int64) ([]database.CancelledItemIngredient, error)
	DecideCancelledItem(ctx context.Context, arg database.DecideCancelledItemParams) (database.CancelledItem, error)
	ExpirePendingCancelledItems(ctx context.Context, arg database.ExpirePendingCancelledItemsParams) ([]database.CancelledItem, error)
}

// NewStore creates a Store from a DBTX (pool or tx). This allows the
// service to create store instances from transactions.
type NewStore func(db database.DBTX) Store

// Options tune order behavior that is configured per deployment.
type Options struct {
	// TaxRate is a percentage applied to the discounted subtotal.
	TaxRate decimal.Decimal
	// TrackPendingRemovals makes removals from still-pending orders
	// create waste/return decisions instead of releasing stock
	// immediately.
	TrackPendingRemovals bool
}

// OrderService handles order business logic.
type OrderService struct {
	pool     TxBeginner
	newStore NewStore
	opts     Options
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewStore, opts Options) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, opts: opts}
}

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	BusinessID    uuid.UUID
	CreatedBy     uuid.UUID
	OrderType     string
	OrderSource   string
	TableNumber   string
	CustomerName  string
	DiscountType  string
	DiscountValue string
	DeliveryFee   string
	Items         []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single item in the order.
type CreateOrderItemRequest struct {
	ProductID int64
	VariantID *int64
	Quantity  int32
	Modifiers []ItemModifierRequest
}

// ItemModifierRequest is a modifier on an order item.
type ItemModifierRequest struct {
	ModifierID int64
	Quantity   int32
}

// OrderResult is an order with its full item set.
type OrderResult struct {
	Order database.Order
	Items []OrderItemResult
}

// OrderItemResult is an item with its modifiers.
type OrderItemResult struct {
	Item      database.OrderItem
	Modifiers []database.OrderItemModifier
}

// preparedModifier holds a snapshotted modifier to insert.
type preparedModifier struct {
	params database.CreateOrderItemModifierParams
	lines  []recipe.Line
}

// preparedItem holds a prepared order item, its modifiers, and the
// ingredient lines it reserves.
type preparedItem struct {
	params    database.CreateOrderItemParams
	modifiers []preparedModifier
	lines     []recipe.Line
}

// CreateOrder validates, prices, reserves inventory, and creates an
// order atomically. Retries on order_number unique constraint
// violations (race where concurrent transactions count the same rows).
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	if err := validateOrderType(req.OrderType); err != nil {
		return nil, err
	}
	if err := validateOrderSource(req.OrderSource); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if req.DiscountType != "" && !isValidDiscountType(req.DiscountType) {
		return nil, ErrInvalidDiscount
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isOrderNumberConflict checks if the error is a unique constraint
// violation on the order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_business_id_order_number_key"
	}
	return false
}

// createOrderTx executes the full order creation in a single transaction.
func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	nextNum, err := store.GetNextOrderNumber(ctx, req.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}
	orderNumber := fmt.Sprintf("SFR-%04d", nextNum)

	// --- Process items: validate, price, resolve recipes ---
	orderSubtotal := decimal.Zero
	var items []preparedItem
	var reserveLines []recipe.Line

	for i, item := range req.Items {
		prepared, err := s.prepareItem(ctx, store, req.BusinessID, item)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		orderSubtotal = orderSubtotal.Add(numericToDecimal(prepared.params.Subtotal))
		reserveLines = append(reserveLines, prepared.lines...)
		for _, mod := range prepared.modifiers {
			reserveLines = append(reserveLines, mod.lines...)
		}
		items = append(items, prepared)
	}

	// --- Reserve inventory for the whole order, all-or-nothing ---
	if err := inventory.Reserve(ctx, store, toInventoryLines(reserveLines)); err != nil {
		return nil, err
	}

	// --- Order-level amounts ---
	discountType := pgtype.Text{}
	discountValue := pgtype.Numeric{}
	discountAmount := decimal.Zero
	if req.DiscountType != "" {
		dv, err := decimal.NewFromString(req.DiscountValue)
		if err != nil || dv.IsNegative() {
			return nil, ErrInvalidDiscountValue
		}
		discountType = pgtype.Text{String: req.DiscountType, Valid: true}
		discountValue = decimalToNumeric(dv)
		discountAmount = discountFor(orderSubtotal, req.DiscountType, dv)
	}

	deliveryFee := decimal.Zero
	if req.DeliveryFee != "" {
		if req.OrderType != enum.OrderTypeDelivery {
			return nil, ErrInvalidDeliveryFee
		}
		deliveryFee, err = decimal.NewFromString(req.DeliveryFee)
		if err != nil || deliveryFee.IsNegative() {
			return nil, ErrInvalidDeliveryFee
		}
	}

	taxAmount, totalAmount := finishTotals(orderSubtotal, discountAmount, s.opts.TaxRate, deliveryFee)

	tableNumber := pgtype.Text{}
	if req.TableNumber != "" {
		tableNumber = pgtype.Text{String: req.TableNumber, Valid: true}
	}
	customerName := pgtype.Text{}
	if req.CustomerName != "" {
		customerName = pgtype.Text{String: req.CustomerName, Valid: true}
	}

	// POS orders are taken by staff already facing the kitchen, so
	// they skip the acceptance step.
	status := enum.OrderStatusPending
	if req.OrderSource == enum.OrderSourcePOS {
		status = enum.OrderStatusInProgress
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		BusinessID:     req.BusinessID,
		OrderNumber:    orderNumber,
		Status:         status,
		OrderType:      req.OrderType,
		OrderSource:    req.OrderSource,
		TableNumber:    tableNumber,
		CustomerName:   customerName,
		Subtotal:       decimalToNumeric(orderSubtotal),
		DiscountType:   discountType,
		DiscountValue:  discountValue,
		DiscountAmount: decimalToNumeric(discountAmount),
		TaxAmount:      decimalToNumeric(taxAmount),
		DeliveryFee:    decimalToNumeric(deliveryFee),
		TotalAmount:    decimalToNumeric(totalAmount),
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var itemResults []OrderItemResult
	for _, pi := range items {
		pi.params.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, pi.params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}

		var modResults []database.OrderItemModifier
		for _, mod := range pi.modifiers {
			mod.params.OrderItemID = item.ID
			oim, err := store.CreateOrderItemModifier(ctx, mod.params)
			if err != nil {
				return nil, fmt.Errorf("create order item modifier: %w", err)
			}
			modResults = append(modResults, oim)
		}

		itemResults = append(itemResults, OrderItemResult{Item: item, Modifiers: modResults})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderResult{Order: order, Items: itemResults}, nil
}

// prepareItem validates one requested item against the catalog,
// snapshots prices and names, and resolves its ingredient lines.
func (s *OrderService) prepareItem(ctx context.Context, store Store, businessID uuid.UUID, item CreateOrderItemRequest) (preparedItem, error) {
	if item.Quantity <= 0 {
		return preparedItem{}, ErrInvalidQuantity
	}

	product, err := store.GetProductForOrder(ctx, database.GetProductForOrderParams{
		ID:         item.ProductID,
		BusinessID: businessID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return preparedItem{}, ErrProductNotFound
		}
		return preparedItem{}, fmt.Errorf("get product: %w", err)
	}

	unitPrice := numericToDecimal(product.Price)
	variantID := pgtype.Int8{}
	if item.VariantID != nil {
		variant, err := store.GetVariantForOrder(ctx, *item.VariantID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return preparedItem{}, ErrVariantNotFound
			}
			return preparedItem{}, fmt.Errorf("get variant: %w", err)
		}
		if variant.ProductID != product.ID {
			return preparedItem{}, ErrVariantMismatch
		}
		variantID = pgtype.Int8{Int64: variant.ID, Valid: true}
		unitPrice = unitPrice.Add(numericToDecimal(variant.PriceAdjustment))
	}

	lines, err := recipe.ResolveProduct(ctx, store, product.ID, item.VariantID)
	if err != nil {
		return preparedItem{}, err
	}
	lines = recipe.Scale(lines, item.Quantity)

	// Modifiers price and reserve per line, not per item quantity.
	modifiersTotal := decimal.Zero
	var mods []preparedModifier
	for j, mod := range item.Modifiers {
		if mod.Quantity <= 0 {
			return preparedItem{}, fmt.Errorf("modifiers[%d]: %w", j, ErrInvalidQuantity)
		}
		modifier, err := store.GetModifierForOrder(ctx, mod.ModifierID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return preparedItem{}, fmt.Errorf("modifiers[%d]: %w", j, ErrModifierNotFound)
			}
			return preparedItem{}, fmt.Errorf("modifiers[%d]: get modifier: %w", j, err)
		}
		if modifier.ProductID != product.ID {
			return preparedItem{}, fmt.Errorf("modifiers[%d]: %w", j, ErrModifierMismatch)
		}

		modPrice := numericToDecimal(modifier.Price)
		modifiersTotal = modifiersTotal.Add(modPrice.Mul(decimal.NewFromInt32(mod.Quantity)))

		modLines, err := recipe.ResolveModifier(ctx, store, modifier)
		if err != nil {
			return preparedItem{}, err
		}
		mods = append(mods, preparedModifier{
			params: database.CreateOrderItemModifierParams{
				ModifierID:   modifier.ID,
				ModifierName: modifier.Name,
				ModifierType: modifier.ModifierType,
				Quantity:     mod.Quantity,
				UnitPrice:    decimalToNumeric(modPrice),
			},
			lines: recipe.Scale(modLines, mod.Quantity),
		})
	}

	itemSubtotal := unitPrice.Mul(decimal.NewFromInt32(item.Quantity)).Add(modifiersTotal)

	return preparedItem{
		params: database.CreateOrderItemParams{
			ProductID:     product.ID,
			VariantID:     variantID,
			ProductName:   product.Name,
			ProductNameAr: product.NameAr,
			Quantity:      item.Quantity,
			UnitPrice:     decimalToNumeric(unitPrice),
			Subtotal:      decimalToNumeric(itemSubtotal),
		},
		modifiers: mods,
		lines:     lines,
	}, nil
}

// --- Status state machine ---

// allowedTransitions defines valid status transitions. completed and
// cancelled are terminal.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPending:    {enum.OrderStatusInProgress, enum.OrderStatusCancelled},
	enum.OrderStatusInProgress: {enum.OrderStatusCompleted, enum.OrderStatusCancelled},
}

func isTerminalStatus(status string) bool {
	return status == enum.OrderStatusCompleted || status == enum.OrderStatusCancelled
}

func validateStatusTransition(current, next string) error {
	if isTerminalStatus(current) {
		return ErrOrderNotEditable
	}
	for _, s := range allowedTransitions[current] {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current, next)
}

// UpdateStatus moves an order through the state machine. It is the
// bare transition: unlike Cancel it records no reason and creates no
// waste/return decisions.
func (s *OrderService) UpdateStatus(ctx context.Context, businessID uuid.UUID, orderID int64, status string) (*database.Order, error) {
	if !isValidOrderStatus(status) {
		return nil, ErrInvalidStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{ID: orderID, BusinessID: businessID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := validateStatusTransition(order.Status, status); err != nil {
		return nil, err
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:         orderID,
		BusinessID: businessID,
		Status:     status,
	})
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &updated, nil
}

// --- Helpers ---

func validateOrderType(s string) error {
	switch s {
	case enum.OrderTypeDineIn, enum.OrderTypeTakeaway, enum.OrderTypeDelivery:
		return nil
	}
	return ErrInvalidOrderType
}

func validateOrderSource(s string) error {
	switch s {
	case enum.OrderSourcePOS, enum.OrderSourceDeliveryApp, enum.OrderSourceQRScan:
		return nil
	}
	return ErrInvalidOrderSource
}

func isValidOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusInProgress,
		enum.OrderStatusCompleted, enum.OrderStatusCancelled:
		return true
	}
	return false
}

func isValidDiscountType(s string) bool {
	switch s {
	case enum.DiscountTypePercentage, enum.DiscountTypeFixed:
		return true
	}
	return false
}

func discountFor(subtotal decimal.Decimal, discountType string, value decimal.Decimal) decimal.Decimal {
	if discountType == enum.DiscountTypePercentage {
		return subtotal.Mul(value).Div(decimal.NewFromInt(100))
	}
	return value
}

// finishTotals derives tax and grand total from a subtotal and
// discount. Totals never go negative.
func finishTotals(subtotal, discountAmount, taxRate, deliveryFee decimal.Decimal) (tax, total decimal.Decimal) {
	taxed := subtotal.Sub(discountAmount)
	if taxed.IsNegative() {
		taxed = decimal.Zero
	}
	tax = taxed.Mul(taxRate).Div(decimal.NewFromInt(100))
	total = taxed.Add(tax).Add(deliveryFee)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return tax, total
}

// recomputeTotals rebuilds the order's money columns from its current
// item rows. Called after every mutation; totals are never trusted
// from the client or carried forward stale.
func recomputeTotals(ctx context.Context, store Store, order database.Order, taxRate decimal.Decimal) (database.Order, error) {
	items, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return database.Order{}, fmt.Errorf("list order items: %w", err)
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(numericToDecimal(item.Subtotal))
	}

	discountAmount := decimal.Zero
	if order.DiscountType.Valid {
		discountAmount = discountFor(subtotal, order.DiscountType.String, numericToDecimal(order.DiscountValue))
	}
	tax, total := finishTotals(subtotal, discountAmount, taxRate, numericToDecimal(order.DeliveryFee))

	updated, err := store.UpdateOrderTotals(ctx, database.UpdateOrderTotalsParams{
		ID:             order.ID,
		Subtotal:       decimalToNumeric(subtotal),
		DiscountAmount: decimalToNumeric(discountAmount),
		TaxAmount:      decimalToNumeric(tax),
		TotalAmount:    decimalToNumeric(total),
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("update order totals: %w", err)
	}
	return updated, nil
}

// loadItems reads an order's items with their modifiers.
func loadItems(ctx context.Context, store Store, orderID int64) ([]OrderItemResult, error) {
	items, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	results := make([]OrderItemResult, len(items))
	for i, item := range items {
		mods, err := store.ListOrderItemModifiersByOrderItem(ctx, item.ID)
		if err != nil {
			return nil, fmt.Errorf("list order item modifiers: %w", err)
		}
		results[i] = OrderItemResult{Item: item, Modifiers: mods}
	}
	return results, nil
}

func toInventoryLines(lines []recipe.Line) []inventory.Line {
	out := make([]inventory.Line, len(lines))
	for i, l := range lines {
		out[i] = inventory.Line{StockItemID: l.StockItemID, Quantity: l.Quantity}
	}
	return out
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
