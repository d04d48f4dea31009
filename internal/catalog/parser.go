package catalog

// Package catalog provides campaigns.yaml parsing functionality.

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type CatalogConfig struct {
	Campaigns []CampaignConfig `yaml:"campaigns"`
}

// CampaignConfig keeps prices and times as text so the validator can report
// malformed values with the campaign they belong to.
type CampaignConfig struct {
	ID            string `yaml:"id"`
	Title         string `yaml:"title"`
	Slug          string `yaml:"slug"`
	Price         string `yaml:"price"`
	OriginalPrice string `yaml:"original_price"`
	OfferEndTime  string `yaml:"offer_end_time"`
	Active        bool   `yaml:"active"`
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(content []byte) (*CatalogConfig, error) {
	var config CatalogConfig
	if err := yaml.Unmarshal(content, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &config, nil
}
