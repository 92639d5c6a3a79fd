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
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/sufra-pos/api/internal/database"
	"github.com/sufra-pos/api/internal/unit"
)

// StockStore defines the database methods needed by stock handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type StockStore interface {
	CreateStockItem(ctx context.Context, arg database.CreateStockItemParams) (database.StockItem, error)
	GetStockItem(ctx context.Context, id int64) (database.StockItem, error)
	ListStockItems(ctx context.Context, businessID uuid.UUID) ([]database.StockItem, error)
	AdjustStockQuantity(ctx context.Context, arg database.AdjustStockQuantityParams) (pgtype.Numeric, error)
}

// StockHandler handles stock item endpoints.
type StockHandler struct {
	store StockStore
}

// NewStockHandler creates a new StockHandler.
func NewStockHandler(store StockStore) *StockHandler {
	return &StockHandler{store: store}
}

// RegisterRoutes registers stock endpoints on the given Chi router.
// Expected to be mounted inside a business-scoped subrouter:
// /businesses/{bid}/stock-items
func (h *StockHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/adjust", h.Adjust)
}

// --- Request / Response types ---

type createStockItemRequest struct {
	Name        string `json:"name"`
	StorageUnit string `json:"storage_unit"`
	ServingUnit string `json:"serving_unit"`
	Quantity    string `json:"quantity"`
}

type adjustStockRequest struct {
	Delta string `json:"delta"`
}

type stockItemResponse struct {
	ID          int64     `json:"id"`
	BusinessID  uuid.UUID `json:"business_id"`
	Name        string    `json:"name"`
	StorageUnit string    `json:"storage_unit"`
	ServingUnit string    `json:"serving_unit"`
	Quantity    string    `json:"quantity"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// --- Handlers ---

// Create handles POST /businesses/{bid}/stock-items.
// The storage/serving unit pairing is validated here, once, so the
// ledger never has to worry about unit categories again.
func (h *StockHandler) Create(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid business ID"})
		return
	}

	var req createStockItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if err := unit.ValidatePair(req.StorageUnit, req.ServingUnit); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	qty := decimal.Zero
	if req.Quantity != "" {
		qty, err = decimal.NewFromString(req.Quantity)
		if err != nil || qty.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quantity"})
			return
		}
	}

	item, err := h.store.CreateStockItem(r.Context(), database.CreateStockItemParams{
		BusinessID:  businessID,
		Name:        req.Name,
		StorageUnit: req.StorageUnit,
		ServingUnit: req.ServingUnit,
		Quantity:    decimalToNumeric(qty),
	})
	if err != nil {
		log.Printf("ERROR: create stock item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toStockItemResponse(item))
}

// List handles GET /businesses/{bid}/stock-items.
func (h *StockHandler) List(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid business ID"})
		return
	}

	items, err := h.store.ListStockItems(r.Context(), businessID)
	if err != nil {
		log.Printf("ERROR: list stock items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]stockItemResponse, len(items))
	for i, item := range items {
		resp[i] = toStockItemResponse(item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"stock_items": resp})
}

// Get handles GET /businesses/{bid}/stock-items/{id}.
func (h *StockHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, ok := h.fetchBusinessItem(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toStockItemResponse(item))
}

// Adjust handles POST /businesses/{bid}/stock-items/{id}/adjust.
// Used for restocks (positive delta) and manual corrections (negative
// delta). A correction that would take the ledger negative is rejected.
func (h *StockHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	item, ok := h.fetchBusinessItem(w, r)
	if !ok {
		return
	}

	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	delta, err := decimal.NewFromString(req.Delta)
	if err != nil || delta.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid delta"})
		return
	}

	newQty, err := h.store.AdjustStockQuantity(r.Context(), database.AdjustStockQuantityParams{
		ID:    item.ID,
		Delta: decimalToNumeric(delta),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "stock quantity cannot go negative"})
			return
		}
		log.Printf("ERROR: adjust stock quantity: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	item.Quantity = newQty
	writeJSON(w, http.StatusOK, toStockItemResponse(item))
}

// --- Helpers ---

// fetchBusinessItem loads the stock item from the path and verifies it
// belongs to the business in the path. Writes the error response and
// returns ok=false on failure.
func (h *StockHandler) fetchBusinessItem(w http.ResponseWriter, r *http.Request) (database.StockItem, bool) {
	businessID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid business ID"})
		return database.StockItem{}, false
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid stock item ID"})
		return database.StockItem{}, false
	}

	item, err := h.store.GetStockItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "stock item not found"})
			return database.StockItem{}, false
		}
		log.Printf("ERROR: get stock item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return database.StockItem{}, false
	}
	if item.BusinessID != businessID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "stock item not found"})
		return database.StockItem{}, false
	}
	return item, true
}

func toStockItemResponse(item database.StockItem) stockItemResponse {
	return stockItemResponse{
		ID:          item.ID,
		BusinessID:  item.BusinessID,
		Name:        item.Name,
		StorageUnit: item.StorageUnit,
		ServingUnit: item.ServingUnit,
		Quantity:    numericToQuantity(item.Quantity),
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

// numericToQuantity renders a ledger quantity at full precision.
// Money uses numericToString's two decimal places; stock does not.
func numericToQuantity(n pgtype.Numeric) string {
	if !n.Valid {
		return "0"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0"
	}
	return d.String()
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return pgtype.Numeric{}
	}
	return n
}
