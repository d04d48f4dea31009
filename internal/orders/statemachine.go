package orders

// Package orders holds the order engine: status transitions, dashboard
// aggregates, search/filter/sort and tabular export.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/promoshop/promoshop/internal/logging"
	"github.com/promoshop/promoshop/internal/models"
	"github.com/promoshop/promoshop/internal/observability"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// Policy decides whether status writes must follow the fulfillment graph.
type Policy string

const (
	PolicyStrict     Policy = "strict"
	PolicyPermissive Policy = "permissive"
)

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPending:    {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed:  {models.StatusProcessing, models.StatusCancelled},
	models.StatusProcessing: {models.StatusShipped, models.StatusCancelled},
	models.StatusShipped:    {models.StatusDelivered},
	models.StatusDelivered:  nil,
	models.StatusCancelled:  nil,
}

// Next returns the statuses reachable from status in one step.
func Next(status models.OrderStatus) []models.OrderStatus {
	next := transitions[status]
	out := make([]models.OrderStatus, len(next))
	copy(out, next)
	return out
}

func CanTransition(from, to models.OrderStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func IsTerminal(status models.OrderStatus) bool {
	next, known := transitions[status]
	return known && len(next) == 0
}

type Machine struct {
	policy Policy
	logger *slog.Logger
}

func NewMachine(policy Policy, logger *slog.Logger) (*Machine, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(string(policy)))) {
	case PolicyStrict, "":
		policy = PolicyStrict
	case PolicyPermissive:
		policy = PolicyPermissive
	default:
		return nil, fmt.Errorf("unsupported status policy: %s", policy)
	}
	return &Machine{policy: policy, logger: logger}, nil
}

func (m *Machine) Policy() Policy {
	if m == nil {
		return PolicyStrict
	}
	return m.policy
}

// Check reports whether an order in status from may be moved to to.
func (m *Machine) Check(ctx context.Context, orderID string, from, to models.OrderStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if CanTransition(from, to) {
		return nil
	}

	if m.Policy() == PolicyStrict {
		if IsTerminal(from) {
			return fmt.Errorf("%w: %s is a terminal status", ErrInvalidTransition, from)
		}
		return fmt.Errorf("%w: %s cannot move to %s", ErrInvalidTransition, from, to)
	}

	if from != to {
		logging.FromContext(ctx, m.logger).Warn("unusual status change",
			"order_id", orderID,
			"from", from,
			"to", to,
			"policy", m.Policy(),
		)
		observability.MeterFromContext(ctx).Count("order.status.unusual", 1, sentry.WithAttributes(
			attribute.String("from", string(from)),
			attribute.String("to", string(to)),
		))
	}
	return nil
}

// Transition returns order moved to target with UpdatedAt set to now. The
// input is not modified and nothing is persisted.
func (m *Machine) Transition(ctx context.Context, order models.Order, target models.OrderStatus, now time.Time) (models.Order, error) {
	if err := m.Check(ctx, order.ID, order.Status, target); err != nil {
		return order, err
	}
	order.Status = target
	order.UpdatedAt = now.UTC()
	return order, nil
}
