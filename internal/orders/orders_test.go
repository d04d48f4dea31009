package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/promoshop/promoshop/internal/models"
)

var baseTime = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func testOrder(id string, price int64, status models.OrderStatus, age time.Duration) models.Order {
	return models.Order{
		ID:            id,
		CustomerName:  "Customer " + id,
		Phone:         "0170000" + id,
		Address:       "Dhaka",
		CampaignID:    "cmp_1",
		CampaignTitle: "Flash Sale",
		CampaignSlug:  "flash-sale",
		UnitPrice:     decimal.NewFromInt(price),
		OriginalPrice: decimal.NewFromInt(price),
		Quantity:      1,
		Status:        status,
		PaymentStatus: models.PaymentUnpaid,
		PaymentMethod: models.PaymentMethodCashOnDelivery,
		CreatedAt:     baseTime.Add(-age),
		UpdatedAt:     baseTime.Add(-age),
	}
}

func orderIDs(list []models.Order) []string {
	ids := make([]string, len(list))
	for i, order := range list {
		ids[i] = order.ID
	}
	return ids
}
