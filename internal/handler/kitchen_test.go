package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sufra-pos/api/internal/database"
	"github.com/sufra-pos/api/internal/enum"
	"github.com/sufra-pos/api/internal/handler"
	"github.com/sufra-pos/api/internal/middleware"
	"github.com/sufra-pos/api/internal/service"
)

// --- Mocks ---

type mockKitchenService struct {
	processFn func(ctx context.Context, businessID, decidedBy uuid.UUID, decisions []service.Decision) ([]service.DecisionResult, error)
	expireFn  func(ctx context.Context, businessID uuid.UUID, ttl time.Duration) ([]database.CancelledItem, error)
}

func (m *mockKitchenService) ProcessDecisions(ctx context.Context, businessID, decidedBy uuid.UUID, decisions []service.Decision) ([]service.DecisionResult, error) {
	return m.processFn(ctx, businessID, decidedBy, decisions)
}

func (m *mockKitchenService) AutoExpire(ctx context.Context, businessID uuid.UUID, ttl time.Duration) ([]database.CancelledItem, error) {
	return m.expireFn(ctx, businessID, ttl)
}

type mockKitchenStore struct {
	listFn            func(ctx context.Context, arg database.ListCancelledItemsParams) ([]database.CancelledItem, error)
	listIngredientsFn func(ctx context.Context, cancelledItemID int64) ([]database.CancelledItemIngredient, error)
}

func (m *mockKitchenStore) ListCancelledItems(ctx context.Context, arg database.ListCancelledItemsParams) ([]database.CancelledItem, error) {
	if m.listFn != nil {
		return m.listFn(ctx, arg)
	}
	return []database.CancelledItem{}, nil
}

func (m *mockKitchenStore) ListCancelledItemIngredients(ctx context.Context, cancelledItemID int64) ([]database.CancelledItemIngredient, error) {
	if m.listIngredientsFn != nil {
		return m.listIngredientsFn(ctx, cancelledItemID)
	}
	return []database.CancelledItemIngredient{}, nil
}

func setupKitchenRouter(svc *mockKitchenService, store *mockKitchenStore, notifier *mockNotifier) *chi.Mux {
	h := handler.NewKitchenHandler(svc, store, notifier, time.Hour)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/businesses/{bid}/kitchen", h.RegisterRoutes)
	return r
}

func sampleCancelledItem(businessID uuid.UUID, decision string) database.CancelledItem {
	return database.CancelledItem{
		ID:                 7,
		BusinessID:         businessID,
		OrderID:            42,
		OrderItemID:        1,
		ProductID:          3,
		ProductName:        "Manakish",
		Quantity:           2,
		CancellationSource: enum.CancellationSourceOrderCancelled,
		Decision:           decision,
		CreatedAt:          time.Now(),
	}
}

// --- Tests ---

func TestListCancelledItems_Filters(t *testing.T) {
	businessID := uuid.New()
	var captured database.ListCancelledItemsParams
	store := &mockKitchenStore{
		listFn: func(ctx context.Context, arg database.ListCancelledItemsParams) ([]database.CancelledItem, error) {
			captured = arg
			return []database.CancelledItem{sampleCancelledItem(businessID, enum.CancelDecisionPending)}, nil
		},
	}
	router := setupKitchenRouter(&mockKitchenService{}, store, nil)

	rr := doAuthRequest(t, router, http.MethodGet,
		"/businesses/"+businessID.String()+"/kitchen/cancelled-items?source=order_edited&decision=pending",
		nil, ownerClaims(businessID))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if captured.CancellationSource != "order_edited" || captured.Decision != "pending" {
		t.Errorf("filters not passed: %+v", captured)
	}

	resp := decodeBody(t, rr)
	items := resp["cancelled_items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("items: got %d", len(items))
	}
	item := items[0].(map[string]interface{})
	if item["product_name"] != "Manakish" || item["decision"] != "pending" {
		t.Errorf("item fields: %+v", item)
	}
}

func TestListCancelledItemIngredients(t *testing.T) {
	businessID := uuid.New()
	store := &mockKitchenStore{
		listIngredientsFn: func(ctx context.Context, cancelledItemID int64) ([]database.CancelledItemIngredient, error) {
			if cancelledItemID != 7 {
				t.Errorf("cancelled item id: got %d", cancelledItemID)
			}
			return []database.CancelledItemIngredient{
				{ID: 1, CancelledItemID: 7, StockItemID: 5, Quantity: mustNumeric(t, "0.4")},
			}, nil
		},
	}
	router := setupKitchenRouter(&mockKitchenService{}, store, nil)

	rr := doAuthRequest(t, router, http.MethodGet,
		"/businesses/"+businessID.String()+"/kitchen/cancelled-items/7/ingredients", nil, ownerClaims(businessID))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	resp := decodeBody(t, rr)
	lines := resp["ingredients"].([]interface{})
	if len(lines) != 1 {
		t.Fatalf("lines: got %d", len(lines))
	}
	line := lines[0].(map[string]interface{})
	if line["quantity"] != "0.4" {
		t.Errorf("quantity must keep full precision: got %v", line["quantity"])
	}
}

func TestProcessDecisions_MapsAndNotifies(t *testing.T) {
	businessID := uuid.New()
	claims := ownerClaims(businessID)
	notifier := &mockNotifier{}

	var capturedBy uuid.UUID
	var captured []service.Decision
	svc := &mockKitchenService{
		processFn: func(ctx context.Context, bid, decidedBy uuid.UUID, decisions []service.Decision) ([]service.DecisionResult, error) {
			capturedBy = decidedBy
			captured = decisions
			item := sampleCancelledItem(businessID, enum.CancelDecisionWaste)
			return []service.DecisionResult{
				{CancelledItemID: 7, Status: "ok", Item: &item},
				{CancelledItemID: 8, Status: "failed", Error: service.ErrCancelledItemNotFound.Error()},
			}, nil
		},
	}
	router := setupKitchenRouter(svc, &mockKitchenStore{}, notifier)

	rr := doAuthRequest(t, router, http.MethodPost, "/businesses/"+businessID.String()+"/kitchen/process-waste",
		map[string]any{"decisions": []map[string]any{
			{"cancelled_item_id": 7, "decision": "waste"},
			{"cancelled_item_id": 8, "decision": "return"},
		}}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if capturedBy != claims.UserID {
		t.Errorf("decided_by: got %v, want %v", capturedBy, claims.UserID)
	}
	if len(captured) != 2 || captured[0].Decision != "waste" || captured[1].Decision != "return" {
		t.Errorf("decisions not mapped: %+v", captured)
	}

	resp := decodeBody(t, rr)
	results := resp["results"].([]interface{})
	if len(results) != 2 {
		t.Fatalf("results: got %d", len(results))
	}
	first := results[0].(map[string]interface{})
	if first["status"] != "ok" || first["item"] == nil {
		t.Errorf("ok result: %+v", first)
	}
	second := results[1].(map[string]interface{})
	if second["status"] != "failed" || second["error"] == "" {
		t.Errorf("failed result: %+v", second)
	}

	// Only decided items push events.
	events := notifier.types()
	if len(events) != 1 || events[0] != "cancelled_item.decided" {
		t.Errorf("expected one cancelled_item.decided event, got %v", events)
	}
}

func TestProcessDecisions_InvalidValue(t *testing.T) {
	businessID := uuid.New()
	svc := &mockKitchenService{
		processFn: func(ctx context.Context, bid, decidedBy uuid.UUID, decisions []service.Decision) ([]service.DecisionResult, error) {
			return nil, service.ErrInvalidDecision
		},
	}
	router := setupKitchenRouter(svc, &mockKitchenStore{}, nil)

	rr := doAuthRequest(t, router, http.MethodPost, "/businesses/"+businessID.String()+"/kitchen/process-waste",
		map[string]any{"decisions": []map[string]any{{"cancelled_item_id": 7, "decision": "eat_it"}}},
		ownerClaims(businessID))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rr.Code)
	}
}

func TestProcessDecisions_EmptyBatch(t *testing.T) {
	businessID := uuid.New()
	svc := &mockKitchenService{
		processFn: func(ctx context.Context, bid, decidedBy uuid.UUID, decisions []service.Decision) ([]service.DecisionResult, error) {
			return nil, service.ErrEmptyDecisions
		},
	}
	router := setupKitchenRouter(svc, &mockKitchenStore{}, nil)

	rr := doAuthRequest(t, router, http.MethodPost, "/businesses/"+businessID.String()+"/kitchen/process-waste",
		map[string]any{"decisions": []map[string]any{}}, ownerClaims(businessID))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rr.Code)
	}
}

func TestExpire_ReturnsWastedItems(t *testing.T) {
	businessID := uuid.New()
	notifier := &mockNotifier{}
	svc := &mockKitchenService{
		expireFn: func(ctx context.Context, bid uuid.UUID, ttl time.Duration) ([]database.CancelledItem, error) {
			if ttl != time.Hour {
				t.Errorf("ttl: got %v, want 1h", ttl)
			}
			return []database.CancelledItem{sampleCancelledItem(businessID, enum.CancelDecisionWaste)}, nil
		},
	}
	router := setupKitchenRouter(svc, &mockKitchenStore{}, notifier)

	rr := doAuthRequest(t, router, http.MethodPost, "/businesses/"+businessID.String()+"/kitchen/auto-expire",
		nil, ownerClaims(businessID))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	resp := decodeBody(t, rr)
	expired := resp["expired"].([]interface{})
	if len(expired) != 1 {
		t.Fatalf("expired: got %d", len(expired))
	}
	if expired[0].(map[string]interface{})["decision"] != "waste" {
		t.Errorf("decision: %+v", expired[0])
	}
	events := notifier.types()
	if len(events) != 1 || events[0] != "cancelled_item.decided" {
		t.Errorf("expected cancelled_item.decided event, got %v", events)
	}
}
