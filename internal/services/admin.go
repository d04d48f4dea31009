package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/promoshop/promoshop/internal/db"
	"github.com/promoshop/promoshop/internal/logging"
	"github.com/promoshop/promoshop/internal/models"
	"github.com/promoshop/promoshop/internal/observability"
	"github.com/promoshop/promoshop/internal/orders"
)

type orderStore interface {
	GetByID(ctx context.Context, orderID string) (*models.Order, error)
	List(ctx context.Context, limit, offset int) ([]*models.Order, int, error)
	UpdateStatus(ctx context.Context, orderID string, from, to models.OrderStatus, now time.Time) (*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID string, status models.PaymentStatus, now time.Time) (*models.Order, error)
}

type statusChecker interface {
	Check(ctx context.Context, orderID string, from, to models.OrderStatus) error
}

// AdminService backs the operator dashboard.
type AdminService struct {
	orderStore orderStore
	machine    statusChecker
	listLimit  int
	exportLoc  *time.Location
	now        func() time.Time
	logger     *slog.Logger
}

func NewAdminService(orderStore orderStore, machine statusChecker, listLimit int, exportLoc *time.Location, logger *slog.Logger) *AdminService {
	if listLimit <= 0 {
		listLimit = 500
	}
	if exportLoc == nil {
		exportLoc = time.UTC
	}

	return &AdminService{
		orderStore: orderStore,
		machine:    machine,
		listLimit:  listLimit,
		exportLoc:  exportLoc,
		now:        time.Now,
		logger:     logger,
	}
}

func (s *AdminService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

func (s *AdminService) available() error {
	if s == nil || s.orderStore == nil || s.machine == nil {
		return fmt.Errorf("%w: order store unavailable", ErrServiceUnavailable)
	}
	return nil
}

type OrderPage struct {
	Orders []models.Order
	Total  int
	Limit  int
	Offset int
}

// ListOrders returns a page of orders, newest first. Limits outside
// (0, listLimit] are clamped.
func (s *AdminService) ListOrders(ctx context.Context, limit, offset int) (*OrderPage, error) {
	if err := s.available(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.listLimit {
		limit = s.listLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, total, err := s.orderStore.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return &OrderPage{
		Orders: derefOrders(rows),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

type Dashboard struct {
	Stats  orders.Stats
	Orders []models.Order
	Filter orders.Filter
}

// Dashboard computes stats over every stored order and the visible rows
// for filter.
func (s *AdminService) Dashboard(ctx context.Context, filter orders.Filter) (*Dashboard, error) {
	ctx, span := observability.StartSpan(ctx, "service.admin.dashboard", "service.admin", "Dashboard")
	defer span.Finish()

	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	filter = filter.Normalized()
	return &Dashboard{
		Stats:  orders.Aggregate(all),
		Orders: orders.Query(all, filter),
		Filter: filter,
	}, nil
}

type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// Export renders the filtered view in format.
func (s *AdminService) Export(ctx context.Context, format orders.ExportFormat, filter orders.Filter) (*ExportFile, error) {
	ctx, span := observability.StartSpan(ctx, "service.admin.export", "service.admin", "Export")
	defer span.Finish()

	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("format", string(format)))

	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	rows := orders.Query(all, filter.Normalized())

	var buf bytes.Buffer
	if err := orders.WriteExport(ctx, &buf, format, rows, s.exportLoc); err != nil {
		return nil, fmt.Errorf("failed to render export: %w", err)
	}

	meter.Distribution("orders.export.rows", float64(len(rows)))
	s.loggerFromContext(ctx).Info("orders exported", "format", format, "rows", len(rows))
	return &ExportFile{
		Filename:    orders.ExportFilename(format, s.now().In(s.exportLoc)),
		ContentType: format.ContentType(),
		Body:        buf.Bytes(),
		Rows:        len(rows),
	}, nil
}

// UpdateStatus applies a fulfillment status change. The write only lands if
// the order still has the status that was checked.
func (s *AdminService) UpdateStatus(ctx context.Context, orderID, status string) (*models.Order, error) {
	if err := s.available(); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "service.admin.update_status", "service.admin", "UpdateStatus")
	defer span.Finish()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	recordFailure := observability.FailureCounter(meter, "order.status.failed")

	target, ok := models.ParseOrderStatus(status)
	if !ok {
		recordFailure("unknown_status")
		return nil, fmt.Errorf("%w: unknown status %q", orders.ErrInvalidTransition, status)
	}

	order, err := s.orderStore.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, db.ErrOrderNotFound) {
			recordFailure("order_not_found")
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		recordFailure("order_lookup_failed")
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	from := order.Status
	if err := s.machine.Check(ctx, orderID, from, target); err != nil {
		recordFailure("invalid_transition")
		return nil, err
	}
	if from == target {
		return order, nil
	}

	updated, err := s.orderStore.UpdateStatus(ctx, orderID, from, target, s.now())
	if err != nil {
		switch {
		case errors.Is(err, db.ErrInvalidStatusTransition):
			recordFailure("status_conflict")
			return nil, fmt.Errorf("%w: %w", ErrStatusConflict, err)
		case errors.Is(err, db.ErrOrderNotFound):
			recordFailure("order_not_found")
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		default:
			recordFailure("store_failed")
			return nil, fmt.Errorf("failed to update order status: %w", err)
		}
	}

	meter.Count("order.status.updated", 1, sentry.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(target)),
	))
	logger.Info("order status updated", "order_id", orderID, "from", from, "to", target)
	return updated, nil
}

func (s *AdminService) UpdatePaymentStatus(ctx context.Context, orderID, status string) (*models.Order, error) {
	if err := s.available(); err != nil {
		return nil, err
	}

	paymentStatus, ok := models.ParsePaymentStatus(status)
	if !ok {
		return nil, UserError{Message: fmt.Sprintf("unknown payment status %q", status)}
	}

	updated, err := s.orderStore.UpdatePaymentStatus(ctx, orderID, paymentStatus, s.now())
	if err != nil {
		if errors.Is(err, db.ErrOrderNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}

	s.loggerFromContext(ctx).Info("order payment status updated", "order_id", orderID, "payment_status", paymentStatus)
	return updated, nil
}

// loadAll pages through the store until every order is loaded. listLimit is
// the page size.
func (s *AdminService) loadAll(ctx context.Context) ([]models.Order, error) {
	if err := s.available(); err != nil {
		return nil, err
	}

	var all []models.Order
	for offset := 0; ; {
		rows, total, err := s.orderStore.List(ctx, s.listLimit, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to load orders: %w", err)
		}
		all = append(all, derefOrders(rows)...)
		offset += len(rows)
		if len(rows) == 0 || offset >= total {
			return all, nil
		}
	}
}

func derefOrders(rows []*models.Order) []models.Order {
	out := make([]models.Order, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			out = append(out, *row)
		}
	}
	return out
}
