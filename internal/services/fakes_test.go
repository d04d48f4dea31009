package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/promoshop/promoshop/internal/catalog"
	"github.com/promoshop/promoshop/internal/db"
	"github.com/promoshop/promoshop/internal/models"
)

var fixedNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

type memoryOrderStore struct {
	mu        sync.Mutex
	orders    map[string]models.Order
	createErr error
	creates   int
	// beforeUpdate runs inside UpdateStatus before the compare-and-set.
	beforeUpdate func(store *memoryOrderStore, orderID string)
}

func newMemoryOrderStore(list ...models.Order) *memoryOrderStore {
	s := &memoryOrderStore{orders: map[string]models.Order{}}
	for _, order := range list {
		s.orders[order.ID] = order
	}
	return s
}

func (s *memoryOrderStore) Create(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.creates++
	s.orders[order.ID] = *order
	return nil
}

func (s *memoryOrderStore) GetByID(_ context.Context, orderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", db.ErrOrderNotFound, orderID)
	}
	return &order, nil
}

func (s *memoryOrderStore) List(_ context.Context, limit, offset int) ([]*models.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]models.Order, 0, len(s.orders))
	for _, order := range s.orders {
		all = append(all, order)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	out := []*models.Order{}
	for i := offset; i < len(all) && len(out) < limit; i++ {
		order := all[i]
		out = append(out, &order)
	}
	return out, len(all), nil
}

func (s *memoryOrderStore) UpdateStatus(_ context.Context, orderID string, from, to models.OrderStatus, now time.Time) (*models.Order, error) {
	if s.beforeUpdate != nil {
		s.beforeUpdate(s, orderID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, db.ErrOrderNotFound
	}
	if order.Status != from {
		return nil, fmt.Errorf("%w: expected %s, found %s", db.ErrInvalidStatusTransition, from, order.Status)
	}
	order.Status = to
	order.UpdatedAt = now
	s.orders[orderID] = order
	return &order, nil
}

func (s *memoryOrderStore) UpdatePaymentStatus(_ context.Context, orderID string, status models.PaymentStatus, now time.Time) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, db.ErrOrderNotFound
	}
	order.PaymentStatus = status
	order.UpdatedAt = now
	s.orders[orderID] = order
	return &order, nil
}

func (s *memoryOrderStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

type staticCampaigns map[string]models.Campaign

func (c staticCampaigns) CampaignByID(_ context.Context, id string) (*models.Campaign, error) {
	campaign, ok := c[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", catalog.ErrCampaignNotFound, id)
	}
	return &campaign, nil
}

func winterCampaign() models.Campaign {
	return models.Campaign{
		ID:            "cmp_winter",
		Title:         "Winter Jacket",
		Slug:          "winter-jacket",
		Price:         decimal.RequireFromString("1290"),
		OriginalPrice: decimal.RequireFromString("1890"),
		OfferEndTime:  fixedNow.Add(48 * time.Hour),
		Active:        true,
	}
}

func storedOrder(id string, status models.OrderStatus, age time.Duration) models.Order {
	created := fixedNow.Add(-age)
	return models.Order{
		ID:            id,
		CustomerName:  "Customer " + id,
		Phone:         "0170000" + id,
		Address:       "Dhaka",
		CampaignID:    "cmp_winter",
		CampaignTitle: "Winter Jacket",
		CampaignSlug:  "winter-jacket",
		UnitPrice:     decimal.RequireFromString("100"),
		OriginalPrice: decimal.RequireFromString("150"),
		Quantity:      1,
		Status:        status,
		PaymentStatus: models.PaymentUnpaid,
		PaymentMethod: models.PaymentMethodCashOnDelivery,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

var errStoreDown = errors.New("store down")
