package orders

import (
	"github.com/shopspring/decimal"

	"github.com/promoshop/promoshop/internal/models"
)

type Stats struct {
	Total          int                        `json:"total"`
	TotalRevenue   decimal.Decimal            `json:"totalRevenue"`
	TotalSavings   decimal.Decimal            `json:"totalSavings"`
	PendingCount   int                        `json:"pendingCount"`
	DeliveredCount int                        `json:"deliveredCount"`
	ByStatus       map[models.OrderStatus]int `json:"byStatus"`
}

// Aggregate summarizes the full, unfiltered order set in one pass. Revenue
// counts every order regardless of status, cancelled ones included.
func Aggregate(list []models.Order) Stats {
	stats := Stats{
		TotalRevenue: decimal.Zero,
		TotalSavings: decimal.Zero,
		ByStatus:     make(map[models.OrderStatus]int, len(models.OrderStatuses())),
	}
	for _, status := range models.OrderStatuses() {
		stats.ByStatus[status] = 0
	}

	for _, order := range list {
		stats.Total++
		stats.TotalRevenue = stats.TotalRevenue.Add(order.TotalPrice())
		stats.TotalSavings = stats.TotalSavings.Add(order.Savings())
		stats.ByStatus[order.Status]++

		switch order.Status {
		case models.StatusPending:
			stats.PendingCount++
		case models.StatusDelivered:
			stats.DeliveredCount++
		}
	}

	return stats
}
