package catalog

// Package catalog provides campaign catalog validation.

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// IsValidSlug validates a lowercase, hyphen separated URL slug.
func IsValidSlug(slug string) bool {
	return slugRegex.MatchString(slug)
}

func (v *Validator) Validate(config *CatalogConfig) error {
	if config == nil || len(config.Campaigns) == 0 {
		return fmt.Errorf("at least one campaign is required")
	}

	ids := make(map[string]bool)
	slugs := make(map[string]bool)
	for i, campaign := range config.Campaigns {
		if err := v.validateCampaign(&campaign); err != nil {
			return fmt.Errorf("campaign %d validation failed: %w", i, err)
		}

		if ids[campaign.ID] {
			return fmt.Errorf("duplicate campaign id: %s", campaign.ID)
		}
		ids[campaign.ID] = true

		if slugs[campaign.Slug] {
			return fmt.Errorf("duplicate campaign slug: %s", campaign.Slug)
		}
		slugs[campaign.Slug] = true
	}

	return nil
}

func (v *Validator) validateCampaign(campaign *CampaignConfig) error {
	if strings.TrimSpace(campaign.ID) == "" {
		return fmt.Errorf("campaign id is required")
	}

	if strings.TrimSpace(campaign.Title) == "" {
		return fmt.Errorf("campaign title is required")
	}

	if !IsValidSlug(campaign.Slug) {
		return fmt.Errorf("campaign slug must be lowercase words separated by hyphens")
	}

	price, err := parsePrice(campaign.Price)
	if err != nil {
		return fmt.Errorf("campaign price: %w", err)
	}

	if strings.TrimSpace(campaign.OriginalPrice) != "" {
		originalPrice, err := parsePrice(campaign.OriginalPrice)
		if err != nil {
			return fmt.Errorf("campaign original price: %w", err)
		}
		if originalPrice.LessThan(price) {
			return fmt.Errorf("campaign original price must not be below the offer price")
		}
	}

	if _, err := parseOfferEnd(campaign.OfferEndTime); err != nil {
		return fmt.Errorf("campaign offer end time: %w", err)
	}

	return nil
}

// Prices are stored as NUMERIC(12, 2).
var maxPrice = decimal.New(1, 10)

func parsePrice(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, fmt.Errorf("price is required")
	}
	price, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q", value)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("price must be zero or positive")
	}
	if !price.Equal(price.Truncate(2)) {
		return decimal.Zero, fmt.Errorf("price %q has more than two decimal places", value)
	}
	if price.GreaterThanOrEqual(maxPrice) {
		return decimal.Zero, fmt.Errorf("price %q is too large", value)
	}
	return price, nil
}

func parseOfferEnd(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	end, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be an RFC 3339 timestamp")
	}
	return end, nil
}
