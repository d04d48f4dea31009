package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/promoshop/promoshop/internal/config"
	"github.com/promoshop/promoshop/internal/handlers"
	"github.com/promoshop/promoshop/internal/models"
	"github.com/promoshop/promoshop/internal/orders"
	"github.com/promoshop/promoshop/internal/services"
)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type emptyCatalog struct{}

func (emptyCatalog) Campaigns(context.Context) []models.Campaign { return nil }

func (emptyCatalog) CampaignBySlug(context.Context, string) (*models.Campaign, error) {
	return nil, services.ErrOrderNotFound
}

type noopPlacer struct{}

func (noopPlacer) PlaceOrder(context.Context, models.OrderInput, string) (*services.PlaceOrderResult, error) {
	return nil, services.ErrServiceUnavailable
}

type stubAdmin struct {
	exported orders.ExportFormat
	statusID string
}

func (a *stubAdmin) ListOrders(context.Context, int, int) (*services.OrderPage, error) {
	return &services.OrderPage{Limit: 500}, nil
}

func (a *stubAdmin) Dashboard(_ context.Context, filter orders.Filter) (*services.Dashboard, error) {
	return &services.Dashboard{Filter: filter}, nil
}

func (a *stubAdmin) Export(_ context.Context, format orders.ExportFormat, _ orders.Filter) (*services.ExportFile, error) {
	a.exported = format
	return &services.ExportFile{
		Filename:    "orders-2026-10-01." + string(format),
		ContentType: format.ContentType(),
		Body:        []byte("x"),
	}, nil
}

func (a *stubAdmin) UpdateStatus(_ context.Context, orderID, _ string) (*models.Order, error) {
	a.statusID = orderID
	return &models.Order{ID: orderID, Status: models.StatusConfirmed}, nil
}

func (a *stubAdmin) UpdatePaymentStatus(_ context.Context, orderID, _ string) (*models.Order, error) {
	return &models.Order{ID: orderID}, nil
}

func newTestServer(t *testing.T) (*Server, *stubAdmin) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	admin := &stubAdmin{}
	cfg := &config.Config{Port: "0"}
	h, err := handlers.New(handlers.Dependencies{
		Config:       cfg,
		DB:           okPinger{},
		Campaigns:    emptyCatalog{},
		OrderService: noopPlacer{},
		AdminService: admin,
		Logger:       logger,
	})
	if err != nil {
		t.Fatalf("handlers.New() error = %v", err)
	}
	srv, err := New(cfg, logger, h)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, admin
}

func TestRouter_Routes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		body        string
		wantStatus  int
	}{
		{name: "health", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK},
		{name: "campaign list", method: http.MethodGet, path: "/api/campaigns", wantStatus: http.StatusOK},
		{name: "order list", method: http.MethodGet, path: "/admin/api/orders", wantStatus: http.StatusOK},
		{name: "dashboard", method: http.MethodGet, path: "/admin/api/dashboard?status=pending", wantStatus: http.StatusOK},
		{name: "csv export", method: http.MethodGet, path: "/admin/orders/export.csv", wantStatus: http.StatusOK},
		{name: "xls export", method: http.MethodGet, path: "/admin/orders/export.xls", wantStatus: http.StatusOK},
		{name: "unknown export format", method: http.MethodGet, path: "/admin/orders/export.pdf", wantStatus: http.StatusNotFound},
		{name: "json status change", method: http.MethodPatch, path: "/admin/api/orders/ord-1/status", contentType: "application/json", body: `{"status":"confirmed"}`, wantStatus: http.StatusOK},
		{name: "form status change without origin", method: http.MethodPatch, path: "/admin/api/orders/ord-1/status", contentType: "application/x-www-form-urlencoded", body: "status=confirmed", wantStatus: http.StatusForbidden},
		{name: "wrong method", method: http.MethodDelete, path: "/admin/api/orders/ord-1/status", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv, _ := newTestServer(t)
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRouter_PassesRouteVars(t *testing.T) {
	t.Parallel()

	srv, admin := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/orders/export.xls", nil)
	srv.Handler().ServeHTTP(httptest.NewRecorder(), req)
	if admin.exported != orders.FormatXLS {
		t.Fatalf("expected xls export, got %q", admin.exported)
	}

	req = httptest.NewRequest(http.MethodPatch, "/admin/api/orders/ord-42/status", strings.NewReader(`{"status":"confirmed"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(httptest.NewRecorder(), req)
	if admin.statusID != "ord-42" {
		t.Fatalf("expected order id from path, got %q", admin.statusID)
	}
}

func TestRouter_MissesAreJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{name: "unknown path", method: http.MethodGet, path: "/nope", wantStatus: http.StatusNotFound},
		{name: "admin method mismatch", method: http.MethodPost, path: "/admin/api/dashboard", wantStatus: http.StatusMethodNotAllowed},
		{name: "storefront method mismatch", method: http.MethodGet, path: "/api/orders", wantStatus: http.StatusMethodNotAllowed},
		{name: "root method mismatch", method: http.MethodPost, path: "/health", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv, _ := newTestServer(t)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if got := rec.Header().Get("Content-Type"); got != "application/json" {
				t.Fatalf("expected JSON content type, got %q", got)
			}
		})
	}
}
