package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/promoshop/promoshop/internal/cache"
	"github.com/promoshop/promoshop/internal/logging"
	"github.com/promoshop/promoshop/internal/models"
)

func newTestOrderService(t *testing.T, store *memoryOrderStore) *OrderService {
	t.Helper()

	provider, err := cache.NewMemoryProvider()
	if err != nil {
		t.Fatalf("NewMemoryProvider() error = %v", err)
	}
	svc := NewOrderService(store, staticCampaigns{"cmp_winter": winterCampaign()}, provider, time.Hour, logging.Discard())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func validOrderInput() models.OrderInput {
	return models.OrderInput{
		CampaignID:   "cmp_winter",
		CustomerName: "Rahim",
		Phone:        "01700000000",
		Address:      "House 4, Road 2",
		Quantity:     2,
	}
}

func TestPlaceOrder_CreatesPendingOrder(t *testing.T) {
	t.Parallel()

	store := newMemoryOrderStore()
	svc := newTestOrderService(t, store)

	result, err := svc.PlaceOrder(t.Context(), validOrderInput(), "")
	if err != nil {
		t.Fatalf("PlaceOrder() error = %v", err)
	}
	if !result.Created {
		t.Fatalf("expected a new order")
	}

	order := result.Order
	if order.Status != models.StatusPending || order.PaymentStatus != models.PaymentUnpaid {
		t.Fatalf("unexpected initial status %s/%s", order.Status, order.PaymentStatus)
	}
	if order.TotalPrice().String() != "2580" || order.Savings().String() != "1200" {
		t.Fatalf("unexpected derived amounts total=%s savings=%s", order.TotalPrice(), order.Savings())
	}
	if store.count() != 1 {
		t.Fatalf("expected 1 stored order, got %d", store.count())
	}
}

func TestPlaceOrder_RejectsInvalidInputWithoutWriting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mutate      func(*models.OrderInput)
		wantMessage string
	}{
		{
			name:        "empty name",
			mutate:      func(in *models.OrderInput) { in.CustomerName = "   " },
			wantMessage: "name is required",
		},
		{
			name:        "zero quantity",
			mutate:      func(in *models.OrderInput) { in.Quantity = 0 },
			wantMessage: "quantity must be at least 1",
		},
		{
			name:        "unknown campaign",
			mutate:      func(in *models.OrderInput) { in.CampaignID = "cmp_missing" },
			wantMessage: "campaign not found",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newMemoryOrderStore()
			svc := newTestOrderService(t, store)

			input := validOrderInput()
			tt.mutate(&input)

			_, err := svc.PlaceOrder(t.Context(), input, "")
			if !errors.Is(err, models.ErrInvalidOrderInput) {
				t.Fatalf("expected ErrInvalidOrderInput, got %v", err)
			}
			var userErr UserError
			if !errors.As(err, &userErr) || !strings.Contains(userErr.Message, tt.wantMessage) {
				t.Fatalf("expected user message containing %q, got %v", tt.wantMessage, err)
			}
			if store.count() != 0 {
				t.Fatalf("no order should be stored, got %d", store.count())
			}
		})
	}
}

func TestPlaceOrder_RejectsEndedCampaign(t *testing.T) {
	t.Parallel()

	store := newMemoryOrderStore()
	svc := newTestOrderService(t, store)
	svc.now = func() time.Time { return fixedNow.Add(72 * time.Hour) }

	_, err := svc.PlaceOrder(t.Context(), validOrderInput(), "")
	if !errors.Is(err, models.ErrCampaignUnavailable) {
		t.Fatalf("expected ErrCampaignUnavailable, got %v", err)
	}
	if store.count() != 0 {
		t.Fatalf("no order should be stored")
	}
}

func TestPlaceOrder_IdempotencyKeyReturnsOriginalOrder(t *testing.T) {
	t.Parallel()

	store := newMemoryOrderStore()
	svc := newTestOrderService(t, store)

	first, err := svc.PlaceOrder(t.Context(), validOrderInput(), "retry-1")
	if err != nil {
		t.Fatalf("first PlaceOrder() error = %v", err)
	}
	second, err := svc.PlaceOrder(t.Context(), validOrderInput(), "retry-1")
	if err != nil {
		t.Fatalf("second PlaceOrder() error = %v", err)
	}

	if second.Created {
		t.Fatalf("retry should not create a new order")
	}
	if second.Order.ID != first.Order.ID {
		t.Fatalf("expected original order %s, got %s", first.Order.ID, second.Order.ID)
	}
	if store.count() != 1 {
		t.Fatalf("expected exactly one stored order, got %d", store.count())
	}

	third, err := svc.PlaceOrder(t.Context(), validOrderInput(), "retry-2")
	if err != nil || !third.Created {
		t.Fatalf("a different key should create a new order, got %+v, %v", third, err)
	}
}

func TestPlaceOrder_StoreFailureReleasesIdempotencyKey(t *testing.T) {
	t.Parallel()

	store := newMemoryOrderStore()
	store.createErr = errStoreDown
	svc := newTestOrderService(t, store)

	if _, err := svc.PlaceOrder(t.Context(), validOrderInput(), "retry-1"); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}

	store.createErr = nil
	result, err := svc.PlaceOrder(t.Context(), validOrderInput(), "retry-1")
	if err != nil {
		t.Fatalf("retry after failure error = %v", err)
	}
	if !result.Created {
		t.Fatalf("retry after a failed write should create the order")
	}
}

func TestPlaceOrder_InFlightDuplicateIsRejected(t *testing.T) {
	t.Parallel()

	store := newMemoryOrderStore()
	svc := newTestOrderService(t, store)

	key := cache.IdempotencyKey("orders", "retry-1")
	if _, err := svc.cache.SetIfAbsent(t.Context(), key, idempotencyPending, time.Hour); err != nil {
		t.Fatalf("SetIfAbsent() error = %v", err)
	}

	_, err := svc.PlaceOrder(t.Context(), validOrderInput(), "retry-1")
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}
}

// ttlRecorder records the TTL of every write to the wrapped provider.
type ttlRecorder struct {
	cache.Provider

	mu          sync.Mutex
	reserveTTLs []time.Duration
	setTTLs     []time.Duration
}

func (r *ttlRecorder) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	r.reserveTTLs = append(r.reserveTTLs, ttl)
	r.mu.Unlock()
	return r.Provider.SetIfAbsent(ctx, key, value, ttl)
}

func (r *ttlRecorder) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	r.mu.Lock()
	r.setTTLs = append(r.setTTLs, ttl)
	r.mu.Unlock()
	return r.Provider.Set(ctx, key, value, ttl)
}

func TestPlaceOrder_ReservationIsShortLived(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		idempotencyTTL time.Duration
		wantReserve    time.Duration
	}{
		{name: "long idempotency window", idempotencyTTL: 24 * time.Hour, wantReserve: idempotencyReservationTTL},
		{name: "window shorter than reservation", idempotencyTTL: 30 * time.Second, wantReserve: 30 * time.Second},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			provider, err := cache.NewMemoryProvider()
			if err != nil {
				t.Fatalf("NewMemoryProvider() error = %v", err)
			}
			recorder := &ttlRecorder{Provider: provider}
			svc := NewOrderService(newMemoryOrderStore(), staticCampaigns{"cmp_winter": winterCampaign()}, recorder, tt.idempotencyTTL, logging.Discard())
			svc.now = func() time.Time { return fixedNow }

			if _, err := svc.PlaceOrder(t.Context(), validOrderInput(), "retry-1"); err != nil {
				t.Fatalf("PlaceOrder() error = %v", err)
			}

			recorder.mu.Lock()
			defer recorder.mu.Unlock()
			if len(recorder.reserveTTLs) != 1 || recorder.reserveTTLs[0] != tt.wantReserve {
				t.Fatalf("reservation TTLs = %v, want [%v]", recorder.reserveTTLs, tt.wantReserve)
			}
			if len(recorder.setTTLs) != 1 || recorder.setTTLs[0] != tt.idempotencyTTL {
				t.Fatalf("completion TTLs = %v, want [%v]", recorder.setTTLs, tt.idempotencyTTL)
			}
		})
	}
}

func TestPlaceOrder_NilServiceIsUnavailable(t *testing.T) {
	t.Parallel()

	var svc *OrderService
	if _, err := svc.PlaceOrder(t.Context(), validOrderInput(), ""); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}
