package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/promoshop/promoshop/internal/config"
	"github.com/promoshop/promoshop/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	router := s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.MetricsContext)
	r.Use(h.SecurityHeaders)
	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")

	r.NotFoundHandler = jsonStatus(http.StatusNotFound, "not found")
	r.MethodNotAllowedHandler = jsonStatus(http.StatusMethodNotAllowed, "method not allowed")

	// Storefront
	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.RequireSameOrigin)
	api.MethodNotAllowedHandler = r.MethodNotAllowedHandler
	api.HandleFunc("/campaigns", h.ListCampaigns).Methods("GET").Name("api.campaigns")
	api.HandleFunc("/campaigns/{slug}", h.GetCampaign).Methods("GET").Name("api.campaigns.show")
	api.HandleFunc("/orders", h.PlaceOrder).Methods("POST").Name("api.orders.create")

	// Operator dashboard
	adminRouter := r.PathPrefix("/admin").Subrouter()
	adminRouter.Use(h.RequireSameOrigin)
	adminRouter.MethodNotAllowedHandler = r.MethodNotAllowedHandler
	adminRouter.HandleFunc("/api/orders", h.ListOrders).Methods("GET").Name("admin.orders")
	adminRouter.HandleFunc("/api/dashboard", h.Dashboard).Methods("GET").Name("admin.dashboard")
	adminRouter.HandleFunc("/api/orders/{id}/status", h.UpdateOrderStatus).Methods("PATCH").Name("admin.orders.status")
	adminRouter.HandleFunc("/api/orders/{id}/payment", h.UpdatePaymentStatus).Methods("PATCH").Name("admin.orders.payment")
	adminRouter.HandleFunc("/orders/export.{format:csv|xls}", h.ExportOrders).Methods("GET").Name("admin.orders.export")

	return r
}

// jsonStatus answers router misses. Each subrouter needs its own 405 handler
// because the root's is not consulted for routes registered below it.
func jsonStatus(status int, message string) http.Handler {
	body := []byte(`{"message":"` + message + `"}` + "\n")
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	})
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
