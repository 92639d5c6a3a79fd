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
	"github.com/sufra-pos/api/internal/enum"
)

// ProductStore defines the database methods needed by catalog handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProductStore interface {
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	GetProductForOrder(ctx context.Context, arg database.GetProductForOrderParams) (database.Product, error)
	ListProducts(ctx context.Context, businessID uuid.UUID) ([]database.Product, error)
	CreateProductIngredient(ctx context.Context, arg database.CreateProductIngredientParams) (database.ProductIngredient, error)
	ListProductIngredients(ctx context.Context, productID int64) ([]database.ProductIngredient, error)
	CreateProductVariant(ctx context.Context, arg database.CreateProductVariantParams) (database.ProductVariant, error)
	CreateVariantIngredient(ctx context.Context, arg database.CreateVariantIngredientParams) (database.VariantIngredient, error)
	CreateModifier(ctx context.Context, arg database.CreateModifierParams) (database.Modifier, error)
	ListModifiersByProduct(ctx context.Context, productID int64) ([]database.Modifier, error)
	GetStockItem(ctx context.Context, id int64) (database.StockItem, error)
}

// ProductHandler handles catalog endpoints.
type ProductHandler struct {
	store ProductStore
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(store ProductStore) *ProductHandler {
	return &ProductHandler{store: store}
}

// RegisterRoutes registers catalog endpoints on the given Chi router.
// Expected to be mounted inside a business-scoped subrouter:
// /businesses/{bid}/products
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Post("/{pid}/variants", h.CreateVariant)
	r.Post("/{pid}/modifiers", h.CreateModifier)
	r.Get("/{pid}/modifiers", h.ListModifiers)
}

// --- Request / Response types ---

type ingredientRequest struct {
	StockItemID int64  `json:"stock_item_id"`
	Quantity    string `json:"quantity"`
}

type createProductRequest struct {
	Name        string              `json:"name"`
	NameAr      string              `json:"name_ar"`
	Price       string              `json:"price"`
	Ingredients []ingredientRequest `json:"ingredients"`
}

type createVariantRequest struct {
	Name            string              `json:"name"`
	NameAr          string              `json:"name_ar"`
	PriceAdjustment string              `json:"price_adjustment"`
	Ingredients     []ingredientRequest `json:"ingredients"`
}

type createModifierRequest struct {
	Name          string `json:"name"`
	NameAr        string `json:"name_ar"`
	ModifierType  string `json:"modifier_type"`
	Price         string `json:"price"`
	StockItemID   *int64 `json:"stock_item_id"`
	StockQuantity string `json:"stock_quantity"`
}

type ingredientResponse struct {
	StockItemID int64  `json:"stock_item_id"`
	Quantity    string `json:"quantity"`
}

type productResponse struct {
	ID          int64                `json:"id"`
	BusinessID  uuid.UUID            `json:"business_id"`
	Name        string               `json:"name"`
	NameAr      *string              `json:"name_ar"`
	Price       string               `json:"price"`
	IsActive    bool                 `json:"is_active"`
	CreatedAt   time.Time            `json:"created_at"`
	Ingredients []ingredientResponse `json:"ingredients"`
}

type variantResponse struct {
	ID              int64                `json:"id"`
	ProductID       int64                `json:"product_id"`
	Name            string               `json:"name"`
	NameAr          *string              `json:"name_ar"`
	PriceAdjustment string               `json:"price_adjustment"`
	IsActive        bool                 `json:"is_active"`
	Ingredients     []ingredientResponse `json:"ingredients"`
}

type modifierResponse struct {
	ID            int64   `json:"id"`
	ProductID     int64   `json:"product_id"`
	Name          string  `json:"name"`
	NameAr        *string `json:"name_ar"`
	ModifierType  string  `json:"modifier_type"`
	Price         string  `json:"price"`
	StockItemID   *int64  `json:"stock_item_id"`
	StockQuantity *string `json:"stock_quantity"`
	IsActive      bool    `json:"is_active"`
}

// --- Handlers ---

// Create handles POST /businesses/{bid}/products.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid business ID"})
		return
	}

	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}
	lines, errMsg := h.parseIngredients(r.Context(), businessID, req.Ingredients)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	product, err := h.store.CreateProduct(r.Context(), database.CreateProductParams{
		BusinessID: businessID,
		Name:       req.Name,
		NameAr:     textOrNull(req.NameAr),
		Price:      decimalToNumeric(price),
	})
	if err != nil {
		log.Printf("ERROR: create product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toProductResponse(product)
	for _, line := range lines {
		pi, err := h.store.CreateProductIngredient(r.Context(), database.CreateProductIngredientParams{
			ProductID:   product.ID,
			StockItemID: line.StockItemID,
			Quantity:    line.Quantity,
		})
		if err != nil {
			log.Printf("ERROR: create product ingredient: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp.Ingredients = append(resp.Ingredients, ingredientResponse{
			StockItemID: pi.StockItemID,
			Quantity:    numericToQuantity(pi.Quantity),
		})
	}

	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /businesses/{bid}/products.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid business ID"})
		return
	}

	products, err := h.store.ListProducts(r.Context(), businessID)
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
		ingredients, err := h.store.ListProductIngredients(r.Context(), p.ID)
		if err != nil {
			log.Printf("ERROR: list product ingredients: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		for _, pi := range ingredients {
			resp[i].Ingredients = append(resp[i].Ingredients, ingredientResponse{
				StockItemID: pi.StockItemID,
				Quantity:    numericToQuantity(pi.Quantity),
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": resp})
}

// CreateVariant handles POST /businesses/{bid}/products/{pid}/variants.
// An empty ingredient list means the variant inherits the product's
// recipe; a non-empty one replaces it entirely.
func (h *ProductHandler) CreateVariant(w http.ResponseWriter, r *http.Request) {
	businessID, product, ok := h.fetchBusinessProduct(w, r)
	if !ok {
		return
	}

	var req createVariantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	adjustment := decimal.Zero
	if req.PriceAdjustment != "" {
		var err error
		adjustment, err = decimal.NewFromString(req.PriceAdjustment)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price_adjustment"})
			return
		}
	}
	lines, errMsg := h.parseIngredients(r.Context(), businessID, req.Ingredients)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	variant, err := h.store.CreateProductVariant(r.Context(), database.CreateProductVariantParams{
		ProductID:       product.ID,
		Name:            req.Name,
		NameAr:          textOrNull(req.NameAr),
		PriceAdjustment: decimalToNumeric(adjustment),
	})
	if err != nil {
		log.Printf("ERROR: create variant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toVariantResponse(variant)
	for _, line := range lines {
		vi, err := h.store.CreateVariantIngredient(r.Context(), database.CreateVariantIngredientParams{
			VariantID:   variant.ID,
			StockItemID: line.StockItemID,
			Quantity:    line.Quantity,
		})
		if err != nil {
			log.Printf("ERROR: create variant ingredient: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp.Ingredients = append(resp.Ingredients, ingredientResponse{
			StockItemID: vi.StockItemID,
			Quantity:    numericToQuantity(vi.Quantity),
		})
	}

	writeJSON(w, http.StatusCreated, resp)
}

// CreateModifier handles POST /businesses/{bid}/products/{pid}/modifiers.
func (h *ProductHandler) CreateModifier(w http.ResponseWriter, r *http.Request) {
	businessID, product, ok := h.fetchBusinessProduct(w, r)
	if !ok {
		return
	}

	var req createModifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.ModifierType != enum.ModifierTypeExtra && req.ModifierType != enum.ModifierTypeRemoval {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "modifier_type must be extra or removal"})
		return
	}

	price := decimal.Zero
	if req.Price != "" {
		var err error
		price, err = decimal.NewFromString(req.Price)
		if err != nil || price.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
			return
		}
	}

	// Removals never charge or consume stock.
	if req.ModifierType == enum.ModifierTypeRemoval && (!price.IsZero() || req.StockItemID != nil) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "removal modifiers cannot have a price or stock binding"})
		return
	}

	params := database.CreateModifierParams{
		ProductID:    product.ID,
		Name:         req.Name,
		NameAr:       textOrNull(req.NameAr),
		ModifierType: req.ModifierType,
		Price:        decimalToNumeric(price),
	}

	if req.StockItemID != nil {
		stock, err := h.store.GetStockItem(r.Context(), *req.StockItemID)
		if err != nil || stock.BusinessID != businessID {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "stock item not found in business"})
			return
		}
		qty, err := decimal.NewFromString(req.StockQuantity)
		if err != nil || !qty.IsPositive() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "stock_quantity must be > 0 when stock_item_id is set"})
			return
		}
		params.StockItemID = pgtype.Int8{Int64: *req.StockItemID, Valid: true}
		params.StockQuantity = decimalToNumeric(qty)
	}

	modifier, err := h.store.CreateModifier(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: create modifier: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toModifierResponse(modifier))
}

// ListModifiers handles GET /businesses/{bid}/products/{pid}/modifiers.
func (h *ProductHandler) ListModifiers(w http.ResponseWriter, r *http.Request) {
	_, product, ok := h.fetchBusinessProduct(w, r)
	if !ok {
		return
	}

	modifiers, err := h.store.ListModifiersByProduct(r.Context(), product.ID)
	if err != nil {
		log.Printf("ERROR: list modifiers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]modifierResponse, len(modifiers))
	for i, m := range modifiers {
		resp[i] = toModifierResponse(m)
	}
	writeJSON(w, http.StatusOK, map[string]any{"modifiers": resp})
}

// --- Helpers ---

// parsedIngredient is an ingredient line validated against the business.
type parsedIngredient struct {
	StockItemID int64
	Quantity    pgtype.Numeric
}

// parseIngredients validates recipe lines: quantities must be positive
// decimals and each stock item must belong to the business. Returns a
// non-empty message on failure.
func (h *ProductHandler) parseIngredients(ctx context.Context, businessID uuid.UUID, ingredients []ingredientRequest) ([]parsedIngredient, string) {
	lines := make([]parsedIngredient, 0, len(ingredients))
	for i, ing := range ingredients {
		qty, err := decimal.NewFromString(ing.Quantity)
		if err != nil || !qty.IsPositive() {
			return nil, "ingredients[" + strconv.Itoa(i) + "]: quantity must be > 0"
		}
		stock, err := h.store.GetStockItem(ctx, ing.StockItemID)
		if err != nil || stock.BusinessID != businessID {
			return nil, "ingredients[" + strconv.Itoa(i) + "]: stock item not found in business"
		}
		lines = append(lines, parsedIngredient{StockItemID: ing.StockItemID, Quantity: decimalToNumeric(qty)})
	}
	return lines, ""
}

// fetchBusinessProduct loads the product from the path, scoped to the
// business in the path. Writes the error response and returns ok=false
// on failure.
func (h *ProductHandler) fetchBusinessProduct(w http.ResponseWriter, r *http.Request) (uuid.UUID, database.Product, bool) {
	businessID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid business ID"})
		return uuid.Nil, database.Product{}, false
	}

	productID, err := strconv.ParseInt(chi.URLParam(r, "pid"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return uuid.Nil, database.Product{}, false
	}

	product, err := h.store.GetProductForOrder(r.Context(), database.GetProductForOrderParams{
		ID:         productID,
		BusinessID: businessID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return uuid.Nil, database.Product{}, false
		}
		log.Printf("ERROR: get product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return uuid.Nil, database.Product{}, false
	}
	return businessID, product, true
}

func toProductResponse(p database.Product) productResponse {
	resp := productResponse{
		ID:          p.ID,
		BusinessID:  p.BusinessID,
		Name:        p.Name,
		Price:       numericToString(p.Price),
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		Ingredients: []ingredientResponse{},
	}
	if p.NameAr.Valid {
		resp.NameAr = &p.NameAr.String
	}
	return resp
}

func toVariantResponse(v database.ProductVariant) variantResponse {
	resp := variantResponse{
		ID:              v.ID,
		ProductID:       v.ProductID,
		Name:            v.Name,
		PriceAdjustment: numericToString(v.PriceAdjustment),
		IsActive:        v.IsActive,
		Ingredients:     []ingredientResponse{},
	}
	if v.NameAr.Valid {
		resp.NameAr = &v.NameAr.String
	}
	return resp
}

func toModifierResponse(m database.Modifier) modifierResponse {
	resp := modifierResponse{
		ID:           m.ID,
		ProductID:    m.ProductID,
		Name:         m.Name,
		ModifierType: m.ModifierType,
		Price:        numericToString(m.Price),
		IsActive:     m.IsActive,
	}
	if m.NameAr.Valid {
		resp.NameAr = &m.NameAr.String
	}
	if m.StockItemID.Valid {
		v := m.StockItemID.Int64
		resp.StockItemID = &v
	}
	if m.StockQuantity.Valid {
		s := numericToQuantity(m.StockQuantity)
		resp.StockQuantity = &s
	}
	return resp
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
