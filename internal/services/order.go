package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go/attribute"

	"github.com/promoshop/promoshop/internal/cache"
	"github.com/promoshop/promoshop/internal/catalog"
	"github.com/promoshop/promoshop/internal/logging"
	"github.com/promoshop/promoshop/internal/models"
	"github.com/promoshop/promoshop/internal/observability"
)

const idempotencyPending = "pending"

// idempotencyReservationTTL bounds how long a key stays reserved by a
// submission that never finished. Completed submissions keep the key for
// the full idempotency TTL.
const idempotencyReservationTTL = 2 * time.Minute

type orderCreator interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, orderID string) (*models.Order, error)
}

type campaignSource interface {
	CampaignByID(ctx context.Context, id string) (*models.Campaign, error)
}

// OrderService accepts storefront submissions.
type OrderService struct {
	orderStore     orderCreator
	campaigns      campaignSource
	cache          cache.Provider
	idempotencyTTL time.Duration
	reservationTTL time.Duration
	now            func() time.Time
	logger         *slog.Logger
}

func NewOrderService(orderStore orderCreator, campaigns campaignSource, cacheProvider cache.Provider, idempotencyTTL time.Duration, logger *slog.Logger) *OrderService {
	if idempotencyTTL <= 0 {
		idempotencyTTL = 24 * time.Hour
	}

	return &OrderService{
		orderStore:     orderStore,
		campaigns:      campaigns,
		cache:          cacheProvider,
		idempotencyTTL: idempotencyTTL,
		reservationTTL: min(idempotencyReservationTTL, idempotencyTTL),
		now:            time.Now,
		logger:         logger,
	}
}

func (s *OrderService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// PlaceOrderResult reports the stored order and whether this call created it.
// A retried submission with a known idempotency key returns the original
// order with Created false.
type PlaceOrderResult struct {
	Order   *models.Order
	Created bool
}

func (s *OrderService) PlaceOrder(ctx context.Context, input models.OrderInput, idempotencyKey string) (*PlaceOrderResult, error) {
	if s == nil || s.orderStore == nil || s.campaigns == nil {
		return nil, fmt.Errorf("%w: order store unavailable", ErrServiceUnavailable)
	}

	ctx, span := observability.StartSpan(ctx, "service.order.place_order", "service.order", "PlaceOrder")
	defer span.Finish()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	recordFailure := observability.FailureCounter(meter, "order.placement.failed")
	meter.Count("order.placement.received", 1)

	input = input.Normalized()
	if err := input.Validate(); err != nil {
		recordFailure("invalid_input")
		return nil, inputError(err)
	}

	campaign, err := s.campaigns.CampaignByID(ctx, input.CampaignID)
	if err != nil {
		if errors.Is(err, catalog.ErrCampaignNotFound) {
			recordFailure("unknown_campaign")
			return nil, UserError{
				Message: "campaign not found",
				Err:     fmt.Errorf("%w: %w", models.ErrInvalidOrderInput, err),
			}
		}
		recordFailure("campaign_lookup_failed")
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	meter.SetAttributes(attribute.String("campaign", campaign.Slug))

	order, err := models.NewOrder(input, *campaign, s.now())
	if err != nil {
		if errors.Is(err, models.ErrCampaignUnavailable) {
			recordFailure("campaign_unavailable")
			return nil, UserError{Message: "this offer is no longer available", Err: err}
		}
		recordFailure("invalid_input")
		return nil, inputError(err)
	}

	key := strings.TrimSpace(idempotencyKey)
	cacheKey := ""
	if key != "" && s.cache != nil {
		cacheKey = cache.IdempotencyKey("orders", key)
		reserved, err := s.cache.SetIfAbsent(ctx, cacheKey, idempotencyPending, s.reservationTTL)
		if err != nil {
			logger.Warn("idempotency reservation failed, continuing without it", "error", err)
			cacheKey = ""
		} else if !reserved {
			existing, err := s.existingSubmission(ctx, cacheKey)
			if err != nil {
				recordFailure("duplicate_submission")
				return nil, err
			}
			meter.Count("order.placement.deduplicated", 1)
			return &PlaceOrderResult{Order: existing, Created: false}, nil
		}
	}

	if err := s.orderStore.Create(ctx, &order); err != nil {
		if cacheKey != "" {
			if delErr := s.cache.Delete(ctx, cacheKey); delErr != nil {
				logger.Warn("failed to release idempotency key", "error", delErr)
			}
		}
		recordFailure("store_failed")
		return nil, fmt.Errorf("failed to store order: %w", err)
	}
	if cacheKey != "" {
		if err := s.cache.Set(ctx, cacheKey, order.ID, s.idempotencyTTL); err != nil {
			logger.Warn("failed to record idempotency key", "error", err, "order_id", order.ID)
		}
	}

	meter.Count("order.placement.created", 1)
	logger.Info("order placed",
		"order_id", order.ID,
		"campaign_id", order.CampaignID,
		"quantity", order.Quantity,
		"total", order.TotalPrice().StringFixed(2),
	)
	return &PlaceOrderResult{Order: &order, Created: true}, nil
}

func (s *OrderService) existingSubmission(ctx context.Context, cacheKey string) (*models.Order, error) {
	value, err := s.cache.Get(ctx, cacheKey)
	if err != nil || value == idempotencyPending {
		return nil, ErrDuplicateSubmission
	}

	order, err := s.orderStore.GetByID(ctx, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDuplicateSubmission, err)
	}
	return order, nil
}

// inputError turns a validation failure into a UserError whose message omits
// the sentinel prefix.
func inputError(err error) error {
	message := strings.TrimPrefix(err.Error(), models.ErrInvalidOrderInput.Error()+": ")
	return UserError{Message: message, Err: err}
}
