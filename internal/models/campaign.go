package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Campaign is the promotional content an order is placed against. It is
// owned by the content catalog and only read here.
type Campaign struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Slug          string          `json:"slug"`
	Price         decimal.Decimal `json:"price"`
	OriginalPrice decimal.Decimal `json:"originalPrice"`
	OfferEndTime  time.Time       `json:"offerEndTime"`
	Active        bool            `json:"active"`
}

// HasEnded reports whether the offer window closed before now. A zero end
// time means the offer never expires.
func (c *Campaign) HasEnded(now time.Time) bool {
	return c != nil && !c.OfferEndTime.IsZero() && !now.Before(c.OfferEndTime)
}

func (c *Campaign) AvailableAt(now time.Time) bool {
	return c != nil && c.Active && !c.HasEnded(now)
}
