package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/promoshop/promoshop/internal/models"
)

var ErrCampaignNotFound = errors.New("campaign not found")

// Catalog is an immutable, in-memory view of the campaign content. Lookups
// return copies.
type Catalog struct {
	campaigns []models.Campaign
	byID      map[string]int
	bySlug    map[string]int
}

// Load reads, parses and validates a campaigns file.
func Load(path string) (*Catalog, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read campaigns file: %w", err)
	}

	config, err := NewParser().Parse(content)
	if err != nil {
		return nil, fmt.Errorf("invalid campaigns file: %w", err)
	}

	return New(config)
}

func New(config *CatalogConfig) (*Catalog, error) {
	if err := NewValidator().Validate(config); err != nil {
		return nil, fmt.Errorf("invalid campaigns file: %w", err)
	}

	c := &Catalog{
		campaigns: make([]models.Campaign, 0, len(config.Campaigns)),
		byID:      make(map[string]int, len(config.Campaigns)),
		bySlug:    make(map[string]int, len(config.Campaigns)),
	}
	for _, entry := range config.Campaigns {
		campaign, err := toCampaign(entry)
		if err != nil {
			return nil, err
		}
		c.byID[campaign.ID] = len(c.campaigns)
		c.bySlug[campaign.Slug] = len(c.campaigns)
		c.campaigns = append(c.campaigns, campaign)
	}

	return c, nil
}

func toCampaign(entry CampaignConfig) (models.Campaign, error) {
	price, err := parsePrice(entry.Price)
	if err != nil {
		return models.Campaign{}, err
	}
	originalPrice := price
	if strings.TrimSpace(entry.OriginalPrice) != "" {
		originalPrice, err = parsePrice(entry.OriginalPrice)
		if err != nil {
			return models.Campaign{}, err
		}
	}
	offerEnd, err := parseOfferEnd(entry.OfferEndTime)
	if err != nil {
		return models.Campaign{}, err
	}

	return models.Campaign{
		ID:            strings.TrimSpace(entry.ID),
		Title:         strings.TrimSpace(entry.Title),
		Slug:          entry.Slug,
		Price:         price,
		OriginalPrice: originalPrice,
		OfferEndTime:  offerEnd,
		Active:        entry.Active,
	}, nil
}

func (c *Catalog) CampaignByID(ctx context.Context, id string) (*models.Campaign, error) {
	_ = ctx
	idx, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, id)
	}
	campaign := c.campaigns[idx]
	return &campaign, nil
}

func (c *Catalog) CampaignBySlug(ctx context.Context, slug string) (*models.Campaign, error) {
	_ = ctx
	idx, ok := c.bySlug[strings.ToLower(strings.TrimSpace(slug))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, slug)
	}
	campaign := c.campaigns[idx]
	return &campaign, nil
}

// Campaigns lists every campaign in file order.
func (c *Catalog) Campaigns(ctx context.Context) []models.Campaign {
	_ = ctx
	out := make([]models.Campaign, len(c.campaigns))
	copy(out, c.campaigns)
	return out
}
