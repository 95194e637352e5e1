package main

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mmynk/grouporder/internal/models"
)

type catalog struct {
	Restaurants []*models.Restaurant `yaml:"restaurants"`
}

// parseCatalog reads a YAML restaurant catalog and checks every entry.
func parseCatalog(r io.Reader, now time.Time) ([]*models.Restaurant, error) {
	var c catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	seen := make(map[string]bool, len(c.Restaurants))
	for i, rest := range c.Restaurants {
		if rest == nil || rest.ID == "" || rest.Name == "" {
			return nil, fmt.Errorf("restaurant %d: id and name are required", i)
		}
		if seen[rest.ID] {
			return nil, fmt.Errorf("restaurant %s: duplicate id", rest.ID)
		}
		seen[rest.ID] = true

		if rest.DeliveryFee.IsNegative() || !models.IsMinorUnits(rest.DeliveryFee) || rest.DeliveryFee.GreaterThan(models.MaxAmount) {
			return nil, fmt.Errorf("restaurant %s: delivery_fee must be a non-negative amount in cents", rest.ID)
		}
		for _, item := range rest.Menu {
			if item.Name == "" || item.Price.IsNegative() || !models.IsMinorUnits(item.Price) || item.Price.GreaterThan(models.MaxAmount) {
				return nil, fmt.Errorf("restaurant %s: menu item %q is invalid", rest.ID, item.Name)
			}
		}
		if rest.Menu == nil {
			rest.Menu = []models.MenuItem{}
		}
		rest.CreatedAt = now
	}
	return c.Restaurants, nil
}
