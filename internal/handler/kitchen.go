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
	"github.com/sufra-pos/api/internal/database"
	"github.com/sufra-pos/api/internal/middleware"
	"github.com/sufra-pos/api/internal/service"
	"github.com/sufra-pos/api/internal/ws"
)

// KitchenServicer defines the service methods needed by the kitchen
// decision handlers. Satisfied by *service.OrderService.
type KitchenServicer interface {
	ProcessDecisions(ctx context.Context, businessID, decidedBy uuid.UUID, decisions []service.Decision) ([]service.DecisionResult, error)
	AutoExpire(ctx context.Context, businessID uuid.UUID, ttl time.Duration) ([]database.CancelledItem, error)
}

// KitchenStore defines the database methods needed by the kitchen
// read handlers. Satisfied by *database.Queries.
type KitchenStore interface {
	ListCancelledItems(ctx context.Context, arg database.ListCancelledItemsParams) ([]database.CancelledItem, error)
	ListCancelledItemIngredients(ctx context.Context, cancelledItemID int64) ([]database.CancelledItemIngredient, error)
}

// KitchenHandler handles the waste/return decision queue.
type KitchenHandler struct {
	svc      KitchenServicer
	store    KitchenStore
	notifier Notifier
	ttl      time.Duration
}

// NewKitchenHandler creates a new KitchenHandler. notifier may be nil.
func NewKitchenHandler(svc KitchenServicer, store KitchenStore, notifier Notifier, ttl time.Duration) *KitchenHandler {
	return &KitchenHandler{svc: svc, store: store, notifier: notifier, ttl: ttl}
}

// RegisterRoutes registers kitchen endpoints on the given Chi router.
// Expected to be mounted inside a business-scoped subrouter:
// /businesses/{bid}/kitchen
func (h *KitchenHandler) RegisterRoutes(r chi.Router) {
	r.Get("/cancelled-items", h.List)
	r.Get("/cancelled-items/{id}/ingredients", h.ListIngredients)
	r.Post("/process-waste", h.ProcessDecisions)
	r.Post("/auto-expire", h.Expire)
}

// --- Request / Response types ---

type decisionRequest struct {
	Decisions []decisionEntry `json:"decisions"`
}

type decisionEntry struct {
	CancelledItemID int64  `json:"cancelled_item_id"`
	Decision        string `json:"decision"`
}

type cancelledItemResponse struct {
	ID                 int64      `json:"id"`
	OrderID            int64      `json:"order_id"`
	OrderItemID        int64      `json:"order_item_id"`
	ProductID          int64      `json:"product_id"`
	ProductName        string     `json:"product_name"`
	Quantity           int32      `json:"quantity"`
	CancellationSource string     `json:"cancellation_source"`
	Decision           string     `json:"decision"`
	CreatedAt          time.Time  `json:"created_at"`
	DecidedAt          *time.Time `json:"decided_at"`
	DecidedBy          *uuid.UUID `json:"decided_by"`
}

type cancelledItemIngredientResponse struct {
	StockItemID int64  `json:"stock_item_id"`
	Quantity    string `json:"quantity"`
}

type decisionResultResponse struct {
	CancelledItemID int64                  `json:"cancelled_item_id"`
	Status          string                 `json:"status"`
	Error           string                 `json:"error,omitempty"`
	Item            *cancelledItemResponse `json:"item,omitempty"`
}

// --- Handlers ---

// List handles GET /businesses/{bid}/kitchen/cancelled-items.
// Supports ?source= and ?decision= filters for the kitchen queue view.
func (h *KitchenHandler) List(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid business ID"})
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 200 {
		limit = 200
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	items, err := h.store.ListCancelledItems(r.Context(), database.ListCancelledItemsParams{
		BusinessID:         businessID,
		CancellationSource: r.URL.Query().Get("source"),
		Decision:           r.URL.Query().Get("decision"),
		Limit:              int32(limit),
		Offset:             int32(offset),
	})
	if err != nil {
		log.Printf("ERROR: list cancelled items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]cancelledItemResponse, len(items))
	for i, ci := range items {
		resp[i] = toCancelledItemResponse(ci)
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled_items": resp})
}

// ListIngredients handles GET /businesses/{bid}/kitchen/cancelled-items/{id}/ingredients.
// Returns the reserved ingredient snapshot a "return" decision would
// put back, in storage units.
func (h *KitchenHandler) ListIngredients(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cancelled item ID"})
		return
	}

	lines, err := h.store.ListCancelledItemIngredients(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list cancelled item ingredients: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]cancelledItemIngredientResponse, len(lines))
	for i, l := range lines {
		resp[i] = cancelledItemIngredientResponse{
			StockItemID: l.StockItemID,
			Quantity:    numericToQuantity(l.Quantity),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ingredients": resp})
}

// ProcessDecisions handles POST /businesses/{bid}/kitchen/process-waste.
// Each entry succeeds or fails on its own; the response reports both.
func (h *KitchenHandler) ProcessDecisions(w http.ResponseWriter, r *http.Request) {
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

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	decisions := make([]service.Decision, len(req.Decisions))
	for i, d := range req.Decisions {
		decisions[i] = service.Decision{CancelledItemID: d.CancelledItemID, Decision: d.Decision}
	}

	results, err := h.svc.ProcessDecisions(r.Context(), businessID, claims.UserID, decisions)
	if err != nil {
		if errors.Is(err, service.ErrEmptyDecisions) || errors.Is(err, service.ErrInvalidDecision) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: process decisions: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]decisionResultResponse, len(results))
	for i, res := range results {
		rr := decisionResultResponse{
			CancelledItemID: res.CancelledItemID,
			Status:          res.Status,
			Error:           res.Error,
		}
		if res.Item != nil {
			item := toCancelledItemResponse(*res.Item)
			rr.Item = &item
			h.notify(businessID, ws.EventCancelledItemDecided, item)
		}
		resp[i] = rr
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": resp})
}

// Expire handles POST /businesses/{bid}/kitchen/auto-expire.
// Force-wastes pending decisions older than the configured TTL.
func (h *KitchenHandler) Expire(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid business ID"})
		return
	}

	expired, err := h.svc.AutoExpire(r.Context(), businessID, h.ttl)
	if err != nil {
		log.Printf("ERROR: expire cancelled items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]cancelledItemResponse, len(expired))
	for i, ci := range expired {
		resp[i] = toCancelledItemResponse(ci)
		h.notify(businessID, ws.EventCancelledItemDecided, resp[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"expired": resp})
}

// --- Helpers ---

func (h *KitchenHandler) notify(businessID uuid.UUID, eventType string, payload any) {
	if h.notifier != nil {
		h.notifier.Notify(businessID, eventType, payload)
	}
}

func toCancelledItemResponse(ci database.CancelledItem) cancelledItemResponse {
	resp := cancelledItemResponse{
		ID:                 ci.ID,
		OrderID:            ci.OrderID,
		OrderItemID:        ci.OrderItemID,
		ProductID:          ci.ProductID,
		ProductName:        ci.ProductName,
		Quantity:           ci.Quantity,
		CancellationSource: ci.CancellationSource,
		Decision:           ci.Decision,
		CreatedAt:          ci.CreatedAt,
	}
	if ci.DecidedAt.Valid {
		resp.DecidedAt = &ci.DecidedAt.Time
	}
	if ci.DecidedBy.Valid {
		id := uuid.UUID(ci.DecidedBy.Bytes)
		resp.DecidedBy = &id
	}
	return resp
}
