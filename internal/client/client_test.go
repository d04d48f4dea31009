package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/promoshop/promoshop/internal/models"
	"github.com/promoshop/promoshop/internal/orders"
)

func serverOrder(id string) models.Order {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	return models.Order{
		ID:            id,
		CustomerName:  "Rahim",
		UnitPrice:     decimal.RequireFromString("1290"),
		OriginalPrice: decimal.RequireFromString("1890"),
		Quantity:      2,
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, PageSize: 2}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestListOrders_PagesUntilTotal(t *testing.T) {
	t.Parallel()

	all := []models.Order{serverOrder("ord-1"), serverOrder("ord-2"), serverOrder("ord-3")}
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/admin/api/orders" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		end := min(offset+limit, len(all))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"orders":     all[offset:end],
			"pagination": map[string]int{"total": len(all), "limit": limit, "offset": offset},
			"sort":       "date-desc",
		})
	}))

	got, err := c.ListOrders(t.Context())
	if err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if len(got) != 3 || calls.Load() != 2 {
		t.Fatalf("expected 3 orders over 2 calls, got %d over %d", len(got), calls.Load())
	}
	if !got[0].UnitPrice.Equal(decimal.RequireFromString("1290")) || got[0].Quantity != 2 {
		t.Fatalf("order did not round-trip: %+v", got[0])
	}
}

func TestUpdateStatus_SendsJSONAndDecodesErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
		wantErr    error
	}{
		{name: "ok", statusCode: http.StatusOK},
		{name: "invalid transition", statusCode: http.StatusUnprocessableEntity, wantErr: orders.ErrInvalidTransition},
		{name: "unknown order", statusCode: http.StatusNotFound, wantErr: ErrNotFound},
		{name: "lost race", statusCode: http.StatusConflict, wantErr: ErrConflict},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPatch || r.URL.Path != "/admin/api/orders/ord-1/status" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("missing JSON content type")
				}
				var body map[string]string
				_ = json.NewDecoder(r.Body).Decode(&body)

				w.Header().Set("Content-Type", "application/json")
				if tt.statusCode != http.StatusOK {
					w.WriteHeader(tt.statusCode)
					_ = json.NewEncoder(w).Encode(map[string]string{"message": "nope"})
					return
				}
				order := serverOrder("ord-1")
				order.Status = models.OrderStatus(body["status"])
				_ = json.NewEncoder(w).Encode(order)
			}))

			got, err := c.UpdateStatus(t.Context(), "ord-1", models.StatusConfirmed)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				var apiErr *APIError
				if !errors.As(err, &apiErr) || apiErr.Message != "nope" {
					t.Fatalf("expected decoded message, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateStatus() error = %v", err)
			}
			if got.Status != models.StatusConfirmed {
				t.Fatalf("status = %s", got.Status)
			}
		})
	}
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{BaseURL: "ftp://example.com"}, nil); err == nil {
		t.Fatalf("expected error for non-http base URL")
	}
}
