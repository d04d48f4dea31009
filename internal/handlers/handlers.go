package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/promoshop/promoshop/internal/config"
	"github.com/promoshop/promoshop/internal/logging"
	"github.com/promoshop/promoshop/internal/models"
	"github.com/promoshop/promoshop/internal/orders"
	"github.com/promoshop/promoshop/internal/services"
)

const maxJSONBodyBytes = 64 << 10 // 64 KB

type pinger interface {
	Ping(ctx context.Context) error
}

type campaignCatalog interface {
	Campaigns(ctx context.Context) []models.Campaign
	CampaignBySlug(ctx context.Context, slug string) (*models.Campaign, error)
}

type orderPlacer interface {
	PlaceOrder(ctx context.Context, input models.OrderInput, idempotencyKey string) (*services.PlaceOrderResult, error)
}

type orderAdmin interface {
	ListOrders(ctx context.Context, limit, offset int) (*services.OrderPage, error)
	Dashboard(ctx context.Context, filter orders.Filter) (*services.Dashboard, error)
	Export(ctx context.Context, format orders.ExportFormat, filter orders.Filter) (*services.ExportFile, error)
	UpdateStatus(ctx context.Context, orderID, status string) (*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID, status string) (*models.Order, error)
}

// Handlers provides HTTP request handlers for the storefront and operator API.
type Handlers struct {
	config       *config.Config
	db           pinger
	cache        pinger
	campaigns    campaignCatalog
	orderService orderPlacer
	adminService orderAdmin
	now          func() time.Time
	logger       *slog.Logger
}

type Dependencies struct {
	Config *config.Config
	DB     pinger
	// Cache is optional; when set, health checks include it.
	Cache        pinger
	Campaigns    campaignCatalog
	OrderService orderPlacer
	AdminService orderAdmin
	Logger       *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.Campaigns == nil {
		return nil, fmt.Errorf("handlers dependencies: campaigns is required")
	}
	if deps.OrderService == nil {
		return nil, fmt.Errorf("handlers dependencies: orderService is required")
	}
	if deps.AdminService == nil {
		return nil, fmt.Errorf("handlers dependencies: adminService is required")
	}

	return &Handlers{
		config:       deps.Config,
		db:           deps.DB,
		cache:        deps.Cache,
		campaigns:    deps.Campaigns,
		orderService: deps.OrderService,
		adminService: deps.AdminService,
		now:          time.Now,
		logger:       logger.With("component", "handlers"),
	}, nil
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health pings the database and, when configured, the idempotency cache.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	logger := h.loggerFromContext(ctx)

	checks := map[string]pinger{"database": h.db}
	if h.cache != nil {
		checks["cache"] = h.cache
	}

	resp := healthResponse{Status: "healthy", Checks: make(map[string]string, len(checks))}
	status := http.StatusOK
	for name, check := range checks {
		if err := check.Ping(ctx); err != nil {
			logger.Error("health check failed", "check", name, "error", err)
			resp.Checks[name] = "unhealthy"
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, status, resp, logger)
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil && logger != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message}, nil)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusForError maps service errors onto HTTP status codes and a message
// safe to return to the caller.
func statusForError(err error) (int, string) {
	var userErr services.UserError
	switch {
	case errors.Is(err, models.ErrCampaignUnavailable):
		return http.StatusConflict, userMessage(err, "this offer is no longer available")
	case errors.Is(err, models.ErrInvalidOrderInput):
		return http.StatusBadRequest, userMessage(err, "invalid order")
	case errors.Is(err, orders.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, services.ErrOrderNotFound):
		return http.StatusNotFound, "order not found"
	case errors.Is(err, services.ErrStatusConflict):
		return http.StatusConflict, "order status changed, reload and try again"
	case errors.Is(err, services.ErrDuplicateSubmission):
		return http.StatusConflict, "this order is already being submitted"
	case errors.Is(err, services.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "service unavailable"
	case errors.As(err, &userErr):
		return http.StatusBadRequest, userErr.Message
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func userMessage(err error, fallback string) string {
	var userErr services.UserError
	if errors.As(err, &userErr) && userErr.Message != "" {
		return userErr.Message
	}
	return fallback
}

func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status, message := statusForError(err)
	logger := h.loggerFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error(msg, "error", err)
	} else {
		logger.Warn(msg, "error", err, "status", status)
	}
	writeError(w, status, message)
}
