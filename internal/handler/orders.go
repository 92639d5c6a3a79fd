package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/sufra-pos/api/internal/database"
	"github.com/sufra-pos/api/internal/inventory"
	"github.com/sufra-pos/api/internal/middleware"
	"github.com/sufra-pos/api/internal/service"
	"github.com/sufra-pos/api/internal/ws"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error)
	EditOrder(ctx context.Context, req service.EditOrderRequest) (*service.OrderResult, error)
	UpdateStatus(ctx context.Context, businessID uuid.UUID, orderID int64, status string) (*database.Order, error)
	Cancel(ctx context.Context, businessID uuid.UUID, orderID int64, reason string) (*database.Order, error)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID int64) ([]database.OrderItem, error)
	ListOrderItemModifiersByOrderItem(ctx context.Context, orderItemID int64) ([]database.OrderItemModifier, error)
}

// Notifier pushes events to connected POS and kitchen screens.
// Satisfied by *ws.Hub.
type Notifier interface {
	Notify(businessID uuid.UUID, eventType string, payload any)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc      OrderServicer
	store    OrderStore
	notifier Notifier
}

// NewOrderHandler creates a new OrderHandler. notifier may be nil.
func NewOrderHandler(svc OrderServicer, store OrderStore, notifier Notifier) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, notifier: notifier}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a business-scoped subrouter:
// /businesses/{bid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Patch("/{id}/edit", h.Edit)
	r.Post("/{id}/cancel", h.Cancel)
}

// --- Request / Response types ---

type createOrderRequest struct {
	OrderType     string                   `json:"order_type"`
	OrderSource   string                   `json:"order_source"`
	TableNumber   string                   `json:"table_number"`
	CustomerName  string                   `json:"customer_name"`
	DiscountType  string                   `json:"discount_type"`
	DiscountValue string                   `json:"discount_value"`
	DeliveryFee   string                   `json:"delivery_fee"`
	Items         []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductID int64                   `json:"product_id"`
	VariantID *int64                  `json:"variant_id"`
	Quantity  int32                   `json:"quantity"`
	Modifiers []itemModifierRequest   `json:"modifiers"`
}

type itemModifierRequest struct {
	ModifierID int64 `json:"modifier_id"`
	Quantity   int32 `json:"quantity"`
}

// editOrderRequest carries the three edit sets. Older clients send the
// items_to_* field names; normalize() folds them into the current ones
// so nothing past the decoder ever sees the aliases.
type editOrderRequest struct {
	Add    []createOrderItemRequest `json:"products_to_add"`
	Modify []modifyOrderItemRequest `json:"products_to_modify"`
	Remove []removeOrderItemRequest `json:"products_to_remove"`

	LegacyAdd    []createOrderItemRequest `json:"items_to_add"`
	LegacyModify []modifyOrderItemRequest `json:"items_to_modify"`
	LegacyRemove []removeOrderItemRequest `json:"items_to_remove"`
}

func (req *editOrderRequest) normalize() {
	if len(req.Add) == 0 {
		req.Add = req.LegacyAdd
	}
	if len(req.Modify) == 0 {
		req.Modify = req.LegacyModify
	}
	if len(req.Remove) == 0 {
		req.Remove = req.LegacyRemove
	}
	req.LegacyAdd, req.LegacyModify, req.LegacyRemove = nil, nil, nil
}

type modifyOrderItemRequest struct {
	OrderItemID int64                  `json:"order_item_id"`
	Quantity    *int32                 `json:"quantity"`
	VariantID   *int64                 `json:"variant_id"`
	Modifiers   *[]itemModifierRequest `json:"modifiers"`
}

type removeOrderItemRequest struct {
	OrderItemID int64 `json:"order_item_id"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderResponse struct {
	ID              int64               `json:"id"`
	BusinessID      uuid.UUID           `json:"business_id"`
	OrderNumber     string              `json:"order_number"`
	Status          string              `json:"status"`
	OrderType       string              `json:"order_type"`
	OrderSource     string              `json:"order_source"`
	TableNumber     *string             `json:"table_number"`
	CustomerName    *string             `json:"customer_name"`
	Subtotal        string              `json:"subtotal"`
	DiscountType    *string             `json:"discount_type"`
	DiscountValue   *string             `json:"discount_value"`
	DiscountAmount  string              `json:"discount_amount"`
	TaxAmount       string              `json:"tax_amount"`
	DeliveryFee     string              `json:"delivery_fee"`
	TotalAmount     string              `json:"total_amount"`
	CancelReason    *string             `json:"cancel_reason"`
	CreatedBy       uuid.UUID           `json:"created_by"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	StatusChangedAt time.Time           `json:"status_changed_at"`
	Items           []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	ID          int64                       `json:"id"`
	ProductID   int64                       `json:"product_id"`
	VariantID   *int64                      `json:"variant_id"`
	ProductName string                      `json:"product_name"`
	Quantity    int32                       `json:"quantity"`
	UnitPrice   string                      `json:"unit_price"`
	Subtotal    string                      `json:"subtotal"`
	Modifiers   []orderItemModifierResponse `json:"modifiers"`
}

type orderItemModifierResponse struct {
	ID           int64  `json:"id"`
	ModifierID   int64  `json:"modifier_id"`
	ModifierName string `json:"modifier_name"`
	ModifierType string `json:"modifier_type"`
	Quantity     int32  `json:"quantity"`
	UnitPrice    string `json:"unit_price"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// --- Handlers ---

// Create handles POST /businesses/{bid}/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid business ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}
	for i, item := range req.Items {
		if item.ProductID == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "product_id is required"),
			})
			return
		}
		if item.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "quantity must be > 0"),
			})
			return
		}
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		BusinessID:    businessID,
		CreatedBy:     claims.UserID,
		OrderType:     req.OrderType,
		OrderSource:   req.OrderSource,
		TableNumber:   req.TableNumber,
		CustomerName:  req.CustomerName,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		DeliveryFee:   req.DeliveryFee,
		Items:         toServiceItems(req.Items),
	})
	if err != nil {
		if isValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: create order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toOrderResponse(result)
	h.notify(businessID, ws.EventOrderCreated, resp)
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /businesses/{bid}/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid business ID"})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{
		BusinessID: businessID,
		Status:     r.URL.Query().Get("status"),
		OrderType:  r.URL.Query().Get("type"),
		Limit:      int32(limit),
		Offset:     int32(offset),
	})
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /businesses/{bid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid business ID"})
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{
		ID:         orderID,
		BusinessID: businessID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	itemResponses := make([]orderItemResponse, len(items))
	for i, item := range items {
		mods, err := h.store.ListOrderItemModifiersByOrderItem(r.Context(), item.ID)
		if err != nil {
			log.Printf("ERROR: list order item modifiers: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		itemResponses[i] = dbOrderItemToResponse(item, mods)
	}

	resp := dbOrderToResponse(order)
	resp.Items = itemResponses
	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus handles PATCH /businesses/{bid}/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid business ID"})
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	updated, err := h.svc.UpdateStatus(r.Context(), businessID, orderID, req.Status)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		if isValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: update order status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbOrderToResponse(*updated)
	h.notify(businessID, ws.EventOrderStatusChanged, resp)
	writeJSON(w, http.StatusOK, resp)
}

// Edit handles PATCH /businesses/{bid}/orders/{id}/edit.
// The three sets apply atomically; a failed reserve rejects the whole
// edit and leaves the order untouched.
func (h *OrderHandler) Edit(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid business ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req editOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	req.normalize()

	for i, item := range req.Add {
		if item.ProductID == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "product_id is required"),
			})
			return
		}
		if item.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "quantity must be > 0"),
			})
			return
		}
	}

	svcReq := service.EditOrderRequest{
		BusinessID: businessID,
		OrderID:    orderID,
		EditedBy:   claims.UserID,
		Add:        toServiceItems(req.Add),
	}
	for _, m := range req.Modify {
		svcMod := service.ModifyOrderItemRequest{
			OrderItemID: m.OrderItemID,
			Quantity:    m.Quantity,
			VariantID:   m.VariantID,
		}
		if m.Modifiers != nil {
			mods := make([]service.ItemModifierRequest, len(*m.Modifiers))
			for j, mod := range *m.Modifiers {
				mods[j] = service.ItemModifierRequest{ModifierID: mod.ModifierID, Quantity: mod.Quantity}
			}
			svcMod.Modifiers = &mods
		}
		svcReq.Modify = append(svcReq.Modify, svcMod)
	}
	for _, rm := range req.Remove {
		svcReq.Remove = append(svcReq.Remove, service.RemoveOrderItemRequest{OrderItemID: rm.OrderItemID})
	}

	result, err := h.svc.EditOrder(r.Context(), svcReq)
	if err != nil {
		if isValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: edit order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toOrderResponse(result)
	h.notify(businessID, ws.EventOrderEdited, resp)
	writeJSON(w, http.StatusOK, resp)
}

// Cancel handles POST /businesses/{bid}/orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid business ID"})
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req cancelOrderRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	cancelled, err := h.svc.Cancel(r.Context(), businessID, orderID, req.Reason)
	if err != nil {
		if isValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: cancel order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbOrderToResponse(*cancelled)
	h.notify(businessID, ws.EventOrderCancelled, resp)
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func (h *OrderHandler) notify(businessID uuid.UUID, eventType string, payload any) {
	if h.notifier != nil {
		h.notifier.Notify(businessID, eventType, payload)
	}
}

func formatItemError(idx int, msg string) string {
	return "items[" + strconv.Itoa(idx) + "]: " + msg
}

func toServiceItems(items []createOrderItemRequest) []service.CreateOrderItemRequest {
	out := make([]service.CreateOrderItemRequest, len(items))
	for i, item := range items {
		mods := make([]service.ItemModifierRequest, len(item.Modifiers))
		for j, mod := range item.Modifiers {
			mods[j] = service.ItemModifierRequest{ModifierID: mod.ModifierID, Quantity: mod.Quantity}
		}
		out[i] = service.CreateOrderItemRequest{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			Modifiers: mods,
		}
	}
	return out
}

// isValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isValidationError(err error) bool {
	var insufficient *inventory.InsufficientInventoryError
	if errors.As(err, &insufficient) {
		return true
	}
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidOrderType) ||
		errors.Is(err, service.ErrInvalidOrderSource) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrProductNotFound) ||
		errors.Is(err, service.ErrVariantNotFound) ||
		errors.Is(err, service.ErrVariantMismatch) ||
		errors.Is(err, service.ErrModifierNotFound) ||
		errors.Is(err, service.ErrModifierMismatch) ||
		errors.Is(err, service.ErrInvalidDiscount) ||
		errors.Is(err, service.ErrInvalidDiscountValue) ||
		errors.Is(err, service.ErrInvalidDeliveryFee) ||
		errors.Is(err, service.ErrInvalidStatus) ||
		errors.Is(err, service.ErrInvalidTransition) ||
		errors.Is(err, service.ErrOrderNotEditable) ||
		errors.Is(err, service.ErrEmptyEdit)
}

func toOrderResponse(result *service.OrderResult) orderResponse {
	resp := dbOrderToResponse(result.Order)
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, ir := range result.Items {
		resp.Items[i] = dbOrderItemToResponse(ir.Item, ir.Modifiers)
	}
	return resp
}

func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		BusinessID:      o.BusinessID,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		OrderType:       o.OrderType,
		OrderSource:     o.OrderSource,
		Subtotal:        numericToString(o.Subtotal),
		DiscountAmount:  numericToString(o.DiscountAmount),
		TaxAmount:       numericToString(o.TaxAmount),
		DeliveryFee:     numericToString(o.DeliveryFee),
		TotalAmount:     numericToString(o.TotalAmount),
		CreatedBy:       o.CreatedBy,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		StatusChangedAt: o.StatusChangedAt,
		Items:           []orderItemResponse{},
	}

	if o.TableNumber.Valid {
		resp.TableNumber = &o.TableNumber.String
	}
	if o.CustomerName.Valid {
		resp.CustomerName = &o.CustomerName.String
	}
	if o.DiscountType.Valid {
		resp.DiscountType = &o.DiscountType.String
	}
	if o.DiscountValue.Valid {
		s := numericToString(o.DiscountValue)
		resp.DiscountValue = &s
	}
	if o.CancelReason.Valid {
		resp.CancelReason = &o.CancelReason.String
	}

	return resp
}

func dbOrderItemToResponse(item database.OrderItem, mods []database.OrderItemModifier) orderItemResponse {
	resp := orderItemResponse{
		ID:          item.ID,
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		Quantity:    item.Quantity,
		UnitPrice:   numericToString(item.UnitPrice),
		Subtotal:    numericToString(item.Subtotal),
	}

	if item.VariantID.Valid {
		v := item.VariantID.Int64
		resp.VariantID = &v
	}

	resp.Modifiers = make([]orderItemModifierResponse, len(mods))
	for j, mod := range mods {
		resp.Modifiers[j] = orderItemModifierResponse{
			ID:           mod.ID,
			ModifierID:   mod.ModifierID,
			ModifierName: mod.ModifierName,
			ModifierType: mod.ModifierType,
			Quantity:     mod.Quantity,
			UnitPrice:    numericToString(mod.UnitPrice),
		}
	}

	return resp
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
