package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sufra-pos/api/internal/database"
	"github.com/sufra-pos/api/internal/handler"
	"github.com/sufra-pos/api/internal/middleware"
)

// --- Mock StockStore ---

type mockStockStore struct {
	createFn func(ctx context.Context, arg database.CreateStockItemParams) (database.StockItem, error)
	getFn    func(ctx context.Context, id int64) (database.StockItem, error)
	listFn   func(ctx context.Context, businessID uuid.UUID) ([]database.StockItem, error)
	adjustFn func(ctx context.Context, arg database.AdjustStockQuantityParams) (pgtype.Numeric, error)
}

func (m *mockStockStore) CreateStockItem(ctx context.Context, arg database.CreateStockItemParams) (database.StockItem, error) {
	return m.createFn(ctx, arg)
}

func (m *mockStockStore) GetStockItem(ctx context.Context, id int64) (database.StockItem, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return database.StockItem{}, pgx.ErrNoRows
}

func (m *mockStockStore) ListStockItems(ctx context.Context, businessID uuid.UUID) ([]database.StockItem, error) {
	if m.listFn != nil {
		return m.listFn(ctx, businessID)
	}
	return []database.StockItem{}, nil
}

func (m *mockStockStore) AdjustStockQuantity(ctx context.Context, arg database.AdjustStockQuantityParams) (pgtype.Numeric, error) {
	return m.adjustFn(ctx, arg)
}

func setupStockRouter(store *mockStockStore) *chi.Mux {
	h := handler.NewStockHandler(store)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/businesses/{bid}/stock-items", h.RegisterRoutes)
	return r
}

func sampleStockItem(t *testing.T, businessID uuid.UUID) database.StockItem {
	t.Helper()
	return database.StockItem{
		ID:          5,
		BusinessID:  businessID,
		Name:        "Flour",
		StorageUnit: "kg",
		ServingUnit: "g",
		Quantity:    mustNumeric(t, "25"),
	}
}

// --- Tests ---

func TestCreateStockItem_Success(t *testing.T) {
	businessID := uuid.New()
	var captured database.CreateStockItemParams
	store := &mockStockStore{
		createFn: func(ctx context.Context, arg database.CreateStockItemParams) (database.StockItem, error) {
			captured = arg
			item := sampleStockItem(t, businessID)
			item.Quantity = arg.Quantity
			return item, nil
		},
	}
	router := setupStockRouter(store)

	rr := doAuthRequest(t, router, http.MethodPost, "/businesses/"+businessID.String()+"/stock-items",
		map[string]string{"name": "Flour", "storage_unit": "kg", "serving_unit": "g", "quantity": "25"},
		ownerClaims(businessID))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if captured.StorageUnit != "kg" || captured.ServingUnit != "g" {
		t.Errorf("units not passed: %+v", captured)
	}
	resp := decodeBody(t, rr)
	if resp["quantity"] != "25" {
		t.Errorf("quantity: got %v", resp["quantity"])
	}
}

func TestCreateStockItem_CrossCategoryUnits(t *testing.T) {
	businessID := uuid.New()
	called := false
	store := &mockStockStore{
		createFn: func(ctx context.Context, arg database.CreateStockItemParams) (database.StockItem, error) {
			called = true
			return database.StockItem{}, nil
		},
	}
	router := setupStockRouter(store)

	rr := doAuthRequest(t, router, http.MethodPost, "/businesses/"+businessID.String()+"/stock-items",
		map[string]string{"name": "Milk", "storage_unit": "l", "serving_unit": "g"},
		ownerClaims(businessID))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rr.Code)
	}
	if called {
		t.Error("store must not be called for a bad unit pairing")
	}
}

func TestCreateStockItem_UnknownUnit(t *testing.T) {
	businessID := uuid.New()
	router := setupStockRouter(&mockStockStore{})

	rr := doAuthRequest(t, router, http.MethodPost, "/businesses/"+businessID.String()+"/stock-items",
		map[string]string{"name": "Flour", "storage_unit": "sack", "serving_unit": "g"},
		ownerClaims(businessID))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rr.Code)
	}
}

func TestCreateStockItem_NegativeQuantity(t *testing.T) {
	businessID := uuid.New()
	router := setupStockRouter(&mockStockStore{})

	rr := doAuthRequest(t, router, http.MethodPost, "/businesses/"+businessID.String()+"/stock-items",
		map[string]string{"name": "Flour", "storage_unit": "kg", "serving_unit": "g", "quantity": "-1"},
		ownerClaims(businessID))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rr.Code)
	}
}

func TestGetStockItem_WrongBusiness(t *testing.T) {
	businessID := uuid.New()
	otherBusiness := uuid.New()
	store := &mockStockStore{
		getFn: func(ctx context.Context, id int64) (database.StockItem, error) {
			return sampleStockItem(t, otherBusiness), nil
		},
	}
	router := setupStockRouter(store)

	rr := doAuthRequest(t, router, http.MethodGet, "/businesses/"+businessID.String()+"/stock-items/5",
		nil, ownerClaims(businessID))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("cross-business read must 404: got %d", rr.Code)
	}
}

func TestAdjustStock_Restock(t *testing.T) {
	businessID := uuid.New()
	store := &mockStockStore{
		getFn: func(ctx context.Context, id int64) (database.StockItem, error) {
			return sampleStockItem(t, businessID), nil
		},
		adjustFn: func(ctx context.Context, arg database.AdjustStockQuantityParams) (pgtype.Numeric, error) {
			return mustNumeric(t, "35"), nil
		},
	}
	router := setupStockRouter(store)

	rr := doAuthRequest(t, router, http.MethodPost, "/businesses/"+businessID.String()+"/stock-items/5/adjust",
		map[string]string{"delta": "10"}, ownerClaims(businessID))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decodeBody(t, rr)
	if resp["quantity"] != "35" {
		t.Errorf("quantity: got %v", resp["quantity"])
	}
}

func TestAdjustStock_NegativeLedgerRejected(t *testing.T) {
	businessID := uuid.New()
	store := &mockStockStore{
		getFn: func(ctx context.Context, id int64) (database.StockItem, error) {
			return sampleStockItem(t, businessID), nil
		},
		adjustFn: func(ctx context.Context, arg database.AdjustStockQuantityParams) (pgtype.Numeric, error) {
			return pgtype.Numeric{}, &pgconn.PgError{Code: "23514", ConstraintName: "stock_items_quantity_check"}
		},
	}
	router := setupStockRouter(store)

	rr := doAuthRequest(t, router, http.MethodPost, "/businesses/"+businessID.String()+"/stock-items/5/adjust",
		map[string]string{"delta": "-100"}, ownerClaims(businessID))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rr.Code)
	}
}

func TestAdjustStock_ZeroDelta(t *testing.T) {
	businessID := uuid.New()
	store := &mockStockStore{
		getFn: func(ctx context.Context, id int64) (database.StockItem, error) {
			return sampleStockItem(t, businessID), nil
		},
	}
	router := setupStockRouter(store)

	rr := doAuthRequest(t, router, http.MethodPost, "/businesses/"+businessID.String()+"/stock-items/5/adjust",
		map[string]string{"delta": "0"}, ownerClaims(businessID))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rr.Code)
	}
}

func TestListStockItems(t *testing.T) {
	businessID := uuid.New()
	store := &mockStockStore{
		listFn: func(ctx context.Context, bid uuid.UUID) ([]database.StockItem, error) {
			if bid != businessID {
				t.Errorf("business id: got %v", bid)
			}
			return []database.StockItem{sampleStockItem(t, businessID)}, nil
		},
	}
	router := setupStockRouter(store)

	rr := doAuthRequest(t, router, http.MethodGet, "/businesses/"+businessID.String()+"/stock-items",
		nil, ownerClaims(businessID))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	resp := decodeBody(t, rr)
	items := resp["stock_items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("items: got %d", len(items))
	}
}
