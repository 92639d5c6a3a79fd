package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sufra-pos/api/internal/database"
	"github.com/sufra-pos/api/internal/enum"
	"github.com/sufra-pos/api/internal/handler"
	"github.com/sufra-pos/api/internal/middleware"
)

// --- Mock ProductStore ---

type mockProductStore struct {
	createProductFn    func(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	getProductFn       func(ctx context.Context, arg database.GetProductForOrderParams) (database.Product, error)
	listProductsFn     func(ctx context.Context, businessID uuid.UUID) ([]database.Product, error)
	createIngredientFn func(ctx context.Context, arg database.CreateProductIngredientParams) (database.ProductIngredient, error)
	listIngredientsFn  func(ctx context.Context, productID int64) ([]database.ProductIngredient, error)
	createVariantFn    func(ctx context.Context, arg database.CreateProductVariantParams) (database.ProductVariant, error)
	createVariantIngFn func(ctx context.Context, arg database.CreateVariantIngredientParams) (database.VariantIngredient, error)
	createModifierFn   func(ctx context.Context, arg database.CreateModifierParams) (database.Modifier, error)
	listModifiersFn    func(ctx context.Context, productID int64) ([]database.Modifier, error)
	getStockItemFn     func(ctx context.Context, id int64) (database.StockItem, error)
}

func (m *mockProductStore) CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error) {
	return m.createProductFn(ctx, arg)
}

func (m *mockProductStore) GetProductForOrder(ctx context.Context, arg database.GetProductForOrderParams) (database.Product, error) {
	if m.getProductFn != nil {
		return m.getProductFn(ctx, arg)
	}
	return database.Product{}, pgx.ErrNoRows
}

func (m *mockProductStore) ListProducts(ctx context.Context, businessID uuid.UUID) ([]database.Product, error) {
	if m.listProductsFn != nil {
		return m.listProductsFn(ctx, businessID)
	}
	return []database.Product{}, nil
}

func (m *mockProductStore) CreateProductIngredient(ctx context.Context, arg database.CreateProductIngredientParams) (database.ProductIngredient, error) {
	return m.createIngredientFn(ctx, arg)
}

func (m *mockProductStore) ListProductIngredients(ctx context.Context, productID int64) ([]database.ProductIngredient, error) {
	if m.listIngredientsFn != nil {
		return m.listIngredientsFn(ctx, productID)
	}
	return []database.ProductIngredient{}, nil
}

func (m *mockProductStore) CreateProductVariant(ctx context.Context, arg database.CreateProductVariantParams) (database.ProductVariant, error) {
	return m.createVariantFn(ctx, arg)
}

func (m *mockProductStore) CreateVariantIngredient(ctx context.Context, arg database.CreateVariantIngredientParams) (database.VariantIngredient, error) {
	return m.createVariantIngFn(ctx, arg)
}

func (m *mockProductStore) CreateModifier(ctx context.Context, arg database.CreateModifierParams) (database.Modifier, error) {
	return m.createModifierFn(ctx, arg)
}

func (m *mockProductStore) ListModifiersByProduct(ctx context.Context, productID int64) ([]database.Modifier, error) {
	if m.listModifiersFn != nil {
		return m.listModifiersFn(ctx, productID)
	}
	return []database.Modifier{}, nil
}

func (m *mockProductStore) GetStockItem(ctx context.Context, id int64) (database.StockItem, error) {
	if m.getStockItemFn != nil {
		return m.getStockItemFn(ctx, id)
	}
	return database.StockItem{}, pgx.ErrNoRows
}

func setupProductRouter(store *mockProductStore) *chi.Mux {
	h := handler.NewProductHandler(store)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/businesses/{bid}/products", h.RegisterRoutes)
	return r
}

func sampleProduct(t *testing.T, businessID uuid.UUID) database.Product {
	t.Helper()
	return database.Product{
		ID:         3,
		BusinessID: businessID,
		Name:       "Manakish",
		Price:      mustNumeric(t, "12.00"),
		IsActive:   true,
	}
}

// --- Tests ---

func TestCreateProduct_WithIngredients(t *testing.T) {
	businessID := uuid.New()
	store := &mockProductStore{
		createProductFn: func(ctx context.Context, arg database.CreateProductParams) (database.Product, error) {
			return sampleProduct(t, businessID), nil
		},
		getStockItemFn: func(ctx context.Context, id int64) (database.StockItem, error) {
			return sampleStockItem(t, businessID), nil
		},
		createIngredientFn: func(ctx context.Context, arg database.CreateProductIngredientParams) (database.ProductIngredient, error) {
			return database.ProductIngredient{
				ID:          1,
				ProductID:   arg.ProductID,
				StockItemID: arg.StockItemID,
				Quantity:    arg.Quantity,
			}, nil
		},
	}
	router := setupProductRouter(store)

	rr := doAuthRequest(t, router, http.MethodPost, "/businesses/"+businessID.String()+"/products",
		map[string]any{
			"name":  "Manakish",
			"price": "12.00",
			"ingredients": []map[string]any{
				{"stock_item_id": 5, "quantity": "180"},
			},
		}, ownerClaims(businessID))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decodeBody(t, rr)
	ingredients := resp["ingredients"].([]interface{})
	if len(ingredients) != 1 {
		t.Fatalf("ingredients: got %d", len(ingredients))
	}
	if ingredients[0].(map[string]interface{})["quantity"] != "180" {
		t.Errorf("ingredient quantity: %+v", ingredients[0])
	}
}

func TestCreateProduct_IngredientFromOtherBusiness(t *testing.T) {
	businessID := uuid.New()
	store := &mockProductStore{
		createProductFn: func(ctx context.Context, arg database.CreateProductParams) (database.Product, error) {
			t.Error("product must not be created when an ingredient is invalid")
			return database.Product{}, nil
		},
		getStockItemFn: func(ctx context.Context, id int64) (database.StockItem, error) {
			return sampleStockItem(t, uuid.New()), nil
		},
	}
	router := setupProductRouter(store)

	rr := doAuthRequest(t, router, http.MethodPost, "/businesses/"+businessID.String()+"/products",
		map[string]any{
			"name":        "Manakish",
			"price":       "12.00",
			"ingredients": []map[string]any{{"stock_item_id": 5, "quantity": "180"}},
		}, ownerClaims(businessID))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rr.Code)
	}
}

func TestCreateProduct_InvalidPrice(t *testing.T) {
	businessID := uuid.New()
	router := setupProductRouter(&mockProductStore{})

	rr := doAuthRequest(t, router, http.MethodPost, "/businesses/"+businessID.String()+"/products",
		map[string]any{"name": "Manakish", "price": "-1"}, ownerClaims(businessID))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rr.Code)
	}
}

func TestCreateVariant_Success(t *testing.T) {
	businessID := uuid.New()
	var captured database.CreateProductVariantParams
	store := &mockProductStore{
		getProductFn: func(ctx context.Context, arg database.GetProductForOrderParams) (database.Product, error) {
			return sampleProduct(t, businessID), nil
		},
		createVariantFn: func(ctx context.Context, arg database.CreateProductVariantParams) (database.ProductVariant, error) {
			captured = arg
			return database.ProductVariant{
				ID:              7,
				ProductID:       arg.ProductID,
				Name:            arg.Name,
				PriceAdjustment: arg.PriceAdjustment,
				IsActive:        true,
			}, nil
		},
		getStockItemFn: func(ctx context.Context, id int64) (database.StockItem, error) {
			return sampleStockItem(t, businessID), nil
		},
		createVariantIngFn: func(ctx context.Context, arg database.CreateVariantIngredientParams) (database.VariantIngredient, error) {
			return database.VariantIngredient{
				ID:          1,
				VariantID:   arg.VariantID,
				StockItemID: arg.StockItemID,
				Quantity:    arg.Quantity,
			}, nil
		},
	}
	router := setupProductRouter(store)

	rr := doAuthRequest(t, router, http.MethodPost, "/businesses/"+businessID.String()+"/products/3/variants",
		map[string]any{
			"name":             "Large",
			"price_adjustment": "4.00",
			"ingredients":      []map[string]any{{"stock_item_id": 5, "quantity": "400"}},
		}, ownerClaims(businessID))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if captured.ProductID != 3 || captured.Name != "Large" {
		t.Errorf("variant params: %+v", captured)
	}
	resp := decodeBody(t, rr)
	if resp["price_adjustment"] != "4.00" {
		t.Errorf("price_adjustment: got %v", resp["price_adjustment"])
	}
	if len(resp["ingredients"].([]interface{})) != 1 {
		t.Errorf("ingredients: %+v", resp["ingredients"])
	}
}

func TestCreateVariant_ProductNotFound(t *testing.T) {
	businessID := uuid.New()
	router := setupProductRouter(&mockProductStore{})

	rr := doAuthRequest(t, router, http.MethodPost, "/businesses/"+businessID.String()+"/products/404/variants",
		map[string]any{"name": "Large"}, ownerClaims(businessID))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d", rr.Code)
	}
}

func TestCreateModifier_ExtraWithStockBinding(t *testing.T) {
	businessID := uuid.New()
	var captured database.CreateModifierParams
	store := &mockProductStore{
		getProductFn: func(ctx context.Context, arg database.GetProductForOrderParams) (database.Product, error) {
			return sampleProduct(t, businessID), nil
		},
		getStockItemFn: func(ctx context.Context, id int64) (database.StockItem, error) {
			return sampleStockItem(t, businessID), nil
		},
		createModifierFn: func(ctx context.Context, arg database.CreateModifierParams) (database.Modifier, error) {
			captured = arg
			return database.Modifier{
				ID:            9,
				ProductID:     arg.ProductID,
				Name:          arg.Name,
				ModifierType:  arg.ModifierType,
				Price:         arg.Price,
				StockItemID:   arg.StockItemID,
				StockQuantity: arg.StockQuantity,
				IsActive:      true,
			}, nil
		},
	}
	router := setupProductRouter(store)

	rr := doAuthRequest(t, router, http.MethodPost, "/businesses/"+businessID.String()+"/products/3/modifiers",
		map[string]any{
			"name":           "Extra Cheese",
			"modifier_type":  "extra",
			"price":          "1.50",
			"stock_item_id":  5,
			"stock_quantity": "30",
		}, ownerClaims(businessID))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if !captured.StockItemID.Valid || captured.StockItemID.Int64 != 5 {
		t.Errorf("stock binding not passed: %+v", captured)
	}
	resp := decodeBody(t, rr)
	if resp["modifier_type"] != enum.ModifierTypeExtra {
		t.Errorf("modifier_type: got %v", resp["modifier_type"])
	}
}

func TestCreateModifier_RemovalWithPriceRejected(t *testing.T) {
	businessID := uuid.New()
	store := &mockProductStore{
		getProductFn: func(ctx context.Context, arg database.GetProductForOrderParams) (database.Product, error) {
			return sampleProduct(t, businessID), nil
		},
		createModifierFn: func(ctx context.Context, arg database.CreateModifierParams) (database.Modifier, error) {
			t.Error("removal with price must not reach the store")
			return database.Modifier{}, nil
		},
	}
	router := setupProductRouter(store)

	rr := doAuthRequest(t, router, http.MethodPost, "/businesses/"+businessID.String()+"/products/3/modifiers",
		map[string]any{"name": "No Onions", "modifier_type": "removal", "price": "1.00"},
		ownerClaims(businessID))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rr.Code)
	}
}

func TestCreateModifier_StockBindingNeedsQuantity(t *testing.T) {
	businessID := uuid.New()
	store := &mockProductStore{
		getProductFn: func(ctx context.Context, arg database.GetProductForOrderParams) (database.Product, error) {
			return sampleProduct(t, businessID), nil
		},
		getStockItemFn: func(ctx context.Context, id int64) (database.StockItem, error) {
			return sampleStockItem(t, businessID), nil
		},
	}
	router := setupProductRouter(store)

	rr := doAuthRequest(t, router, http.MethodPost, "/businesses/"+businessID.String()+"/products/3/modifiers",
		map[string]any{"name": "Extra Cheese", "modifier_type": "extra", "stock_item_id": 5},
		ownerClaims(businessID))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rr.Code)
	}
}

func TestCreateModifier_InvalidType(t *testing.T) {
	businessID := uuid.New()
	store := &mockProductStore{
		getProductFn: func(ctx context.Context, arg database.GetProductForOrderParams) (database.Product, error) {
			return sampleProduct(t, businessID), nil
		},
	}
	router := setupProductRouter(store)

	rr := doAuthRequest(t, router, http.MethodPost, "/businesses/"+businessID.String()+"/products/3/modifiers",
		map[string]any{"name": "Extra Cheese", "modifier_type": "topping"},
		ownerClaims(businessID))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rr.Code)
	}
}

func TestListProducts_IncludesIngredients(t *testing.T) {
	businessID := uuid.New()
	store := &mockProductStore{
		listProductsFn: func(ctx context.Context, bid uuid.UUID) ([]database.Product, error) {
			return []database.Product{sampleProduct(t, businessID)}, nil
		},
		listIngredientsFn: func(ctx context.Context, productID int64) ([]database.ProductIngredient, error) {
			return []database.ProductIngredient{
				{ID: 1, ProductID: productID, StockItemID: 5, Quantity: mustNumeric(t, "180")},
			}, nil
		},
	}
	router := setupProductRouter(store)

	rr := doAuthRequest(t, router, http.MethodGet, "/businesses/"+businessID.String()+"/products",
		nil, ownerClaims(businessID))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	resp := decodeBody(t, rr)
	products := resp["products"].([]interface{})
	if len(products) != 1 {
		t.Fatalf("products: got %d", len(products))
	}
	p := products[0].(map[string]interface{})
	if len(p["ingredients"].([]interface{})) != 1 {
		t.Errorf("ingredients: %+v", p["ingredients"])
	}
}
