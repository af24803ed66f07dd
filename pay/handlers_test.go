package pay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"trattoria/globals"
	"trattoria/models"
	"trattoria/mq"
	"trattoria/orders"

	"github.com/julienschmidt/httprouter"
)

type memOrders struct {
	mu   sync.Mutex
	byID map[string]*models.Order
}

func (m *memOrders) Get(_ context.Context, id, userID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok || o.UserID != userID {
		return nil, orders.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) ByPayPalID(_ context.Context, paypalID, userID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.PayPalOrderID == paypalID && o.UserID == userID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, orders.ErrNotFound
}

func (m *memOrders) AttachPayment(_ context.Context, id, paypalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].PayPalOrderID = paypalID
	return nil
}

func (m *memOrders) MarkPaid(_ context.Context, id, _ string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].Status = models.OrderPaid
	cp := *m.byID[id]
	return &cp, nil
}

type stubGateway struct {
	captureStatus string
	captured      int
}

func (g *stubGateway) CreateOrder(_ context.Context, amount int64, _, ref string) (string, string, error) {
	return "PP-" + ref, "https://paypal.test/approve", nil
}

func (g *stubGateway) CaptureOrder(context.Context, string) (string, error) {
	g.captured++
	return g.captureStatus, nil
}

func asUser(r *http.Request, id string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), globals.UserIDKey, id))
}

func newPayRouter(gw Gateway, book OrderBook, events mq.Publisher) *httprouter.Router {
	h := &Handler{gw: gw, orders: book, currency: "USD", events: events}
	r := httprouter.New()
	r.POST("/api/paypal/create-order", h.CreateOrder)
	r.POST("/api/paypal/capture/:paypalOrderId", h.Capture)
	return r
}

func TestPayPalFlow(t *testing.T) {
	book := &memOrders{byID: map[string]*models.Order{
		"o1": {ID: "o1", UserID: "u1", Total: 42.5, Status: models.OrderPending},
		"o2": {ID: "o2", UserID: "u1", Total: 10, Status: models.OrderCompleted},
	}}
	gw := &stubGateway{captureStatus: "COMPLETED"}
	events := mq.NewRecorder(nil)
	router := newPayRouter(gw, book, events)

	do := func(method, path, body, user string) *httptest.ResponseRecorder {
		req := asUser(httptest.NewRequest(method, path, strings.NewReader(body)), user)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	if rec := do(http.MethodPost, "/api/paypal/create-order", `{"orderId":"o1"}`, "u2"); rec.Code != http.StatusNotFound {
		t.Fatalf("other user's order: expected 404, got %d", rec.Code)
	}
	if rec := do(http.MethodPost, "/api/paypal/create-order", `{"orderId":"o2"}`, "u1"); rec.Code != http.StatusBadRequest {
		t.Fatalf("completed order: expected 400, got %d", rec.Code)
	}
	if rec := do(http.MethodPost, "/api/paypal/create-order", `{}`, "u1"); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing orderId: expected 400, got %d", rec.Code)
	}

	rec := do(http.MethodPost, "/api/paypal/create-order", `{"orderId":"o1"}`, "u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var created map[string]string
	json.Unmarshal(rec.Body.Bytes(), &created)
	if created["id"] != "PP-o1" || created["approveUrl"] == "" {
		t.Fatalf("unexpected create body %v", created)
	}

	rec = do(http.MethodPost, "/api/paypal/capture/PP-o1", "", "u1")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"paid"`) {
		t.Fatalf("capture: %d %s", rec.Code, rec.Body.String())
	}
	if evs := events.Events(); len(evs) != 1 || evs[0].Type != mq.OrderStatus {
		t.Fatalf("expected one status event, got %+v", evs)
	}

	// a second capture of a paid order answers without calling PayPal
	rec = do(http.MethodPost, "/api/paypal/capture/PP-o1", "", "u1")
	if rec.Code != http.StatusOK || gw.captured != 1 {
		t.Fatalf("repeat capture: %d, provider calls %d", rec.Code, gw.captured)
	}
}

func TestCaptureNotCompleted(t *testing.T) {
	book := &memOrders{byID: map[string]*models.Order{
		"o1": {ID: "o1", UserID: "u1", Total: 5, Status: models.OrderPending, PayPalOrderID: "PP-o1"},
	}}
	router := newPayRouter(&stubGateway{captureStatus: "PAYER_ACTION_REQUIRED"}, book, mq.NewRecorder(nil))

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/paypal/capture/PP-o1", nil), "u1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
	if book.byID["o1"].Status != models.OrderPending {
		t.Fatal("order must stay pending")
	}
}

func TestGatewayNotConfigured(t *testing.T) {
	book := &memOrders{byID: map[string]*models.Order{
		"o1": {ID: "o1", UserID: "u1", Total: 5, Status: models.OrderPending},
	}}
	router := newPayRouter(NewClient("", "", ""), book, mq.NewRecorder(nil))

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/paypal/create-order", strings.NewReader(`{"orderId":"o1"}`)), "u1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
