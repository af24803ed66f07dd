package pay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

type fakePayPal struct {
	tokenCalls   atomic.Int32
	tokenFails   atomic.Int32
	captureCalls atomic.Int32
	captureCode  int
	lastAmount   string
}

func (f *fakePayPal) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		if f.tokenFails.Load() > 0 {
			f.tokenFails.Add(-1)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if u, p, ok := r.BasicAuth(); !ok || u != "id" || p != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			PurchaseUnits []struct {
				Amount struct {
					Value string `json:"value"`
				} `json:"amount"`
			} `json:"purchase_units"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.PurchaseUnits) == 1 {
			f.lastAmount = body.PurchaseUnits[0].Amount.Value
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "PP-1",
			"status": "CREATED",
			"links": []map[string]string{
				{"rel": "self", "href": "https://paypal.test/self"},
				{"rel": "approve", "href": "https://paypal.test/approve"},
			},
		})
	})
	mux.HandleFunc("/v2/checkout/orders/PP-1/capture", func(w http.ResponseWriter, r *http.Request) {
		f.captureCalls.Add(1)
		if f.captureCode != 0 {
			w.WriteHeader(f.captureCode)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "PP-1", "status": "COMPLETED"})
	})
	return mux
}

func newFake(t *testing.T) (*fakePayPal, *Client) {
	t.Helper()
	f := &fakePayPal{}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return f, NewClient(srv.URL, "id", "secret")
}

func TestCreateAndCapture(t *testing.T) {
	f, c := newFake(t)
	ctx := context.Background()

	id, approve, err := c.CreateOrder(ctx, 2350, "USD", "order-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "PP-1" || approve != "https://paypal.test/approve" {
		t.Fatalf("unexpected id %q approve %q", id, approve)
	}
	if f.lastAmount != "23.50" {
		t.Fatalf("expected amount 23.50, got %q", f.lastAmount)
	}

	status, err := c.CaptureOrder(ctx, "PP-1")
	if err != nil || status != "COMPLETED" {
		t.Fatalf("capture: %q %v", status, err)
	}
	if n := f.tokenCalls.Load(); n != 1 {
		t.Fatalf("token should be cached, fetched %d times", n)
	}
}

func TestTokenFetchRetries(t *testing.T) {
	f, c := newFake(t)
	f.tokenFails.Store(2)

	if _, _, err := c.CreateOrder(context.Background(), 100, "USD", "o"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if n := f.tokenCalls.Load(); n != 3 {
		t.Fatalf("expected 3 token attempts, got %d", n)
	}
}

func TestBadCredentialsAreNotRetried(t *testing.T) {
	f, c := newFake(t)
	c.Secret = "wrong"

	_, _, err := c.CreateOrder(context.Background(), 100, "USD", "o")
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 provider error, got %v", err)
	}
	if n := f.tokenCalls.Load(); n != 1 {
		t.Fatalf("expected a single attempt, got %d", n)
	}
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	f, c := newFake(t)
	f.captureCode = http.StatusInternalServerError
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := c.CaptureOrder(ctx, "PP-1"); err == nil {
			t.Fatal("expected failure")
		}
	}
	if _, err := c.CaptureOrder(ctx, "PP-1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if n := f.captureCalls.Load(); n != 5 {
		t.Fatalf("open breaker should not reach PayPal, got %d calls", n)
	}
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	f, c := newFake(t)
	f.captureCode = http.StatusUnprocessableEntity
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := c.CaptureOrder(ctx, "PP-1")
		if errors.Is(err, ErrUnavailable) {
			t.Fatalf("breaker opened on client error at attempt %d", i)
		}
	}
}

func TestNotConfigured(t *testing.T) {
	c := NewClient("", "", "")
	_, _, err := c.CreateOrder(context.Background(), 1, "USD", "o")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("got %v", err)
	}
}
