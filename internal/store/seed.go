package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dealbot/internal/domain"
)

// SeedFile is the YAML fixture format consumed by the `seed` command.
// Deals reference brands by name; IDs are assigned on insert.
type SeedFile struct {
	Brands []SeedBrand `yaml:"brands"`
	Deals  []SeedDeal  `yaml:"deals"`
}

type SeedBrand struct {
	Name string `yaml:"name"`
}

type SeedDeal struct {
	Brand       string    `yaml:"brand"`
	Kind        string    `yaml:"kind"`
	CouponCode  string    `yaml:"coupon_code,omitempty"`
	DealURL     string    `yaml:"deal_url,omitempty"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description,omitempty"`
	StartTime   time.Time `yaml:"start_time"`
	ExpiryTime  time.Time `yaml:"expiry_time"`
	DiscountPct *float64  `yaml:"discount_pct,omitempty"`
}

// SeedTarget is the store surface needed to apply a seed file.
type SeedTarget interface {
	InsertBrand(ctx context.Context, brand domain.Brand) error
	ListBrands(ctx context.Context) ([]domain.Brand, error)
	InsertDeal(ctx context.Context, deal domain.Deal) error
}

// LoadSeedFile parses a YAML fixture file.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var sf SeedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return &sf, nil
}

// ApplySeed inserts the fixture's brands, then its deals with brand
// references resolved by name. Individual deal failures are logged and
// skipped so one bad fixture entry does not abort the rest. Returns the
// number of deals inserted and skipped.
func ApplySeed(ctx context.Context, target SeedTarget, sf *SeedFile, logger *slog.Logger) (int, int, error) {
	for _, sb := range sf.Brands {
		if strings.TrimSpace(sb.Name) == "" {
			continue
		}
		if err := target.InsertBrand(ctx, domain.Brand{Name: sb.Name}); err != nil {
			return 0, 0, fmt.Errorf("seed brand %q: %w", sb.Name, err)
		}
	}

	brands, err := target.ListBrands(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve brands: %w", err)
	}
	byName := make(map[string]string, len(brands))
	for _, b := range brands {
		byName[strings.ToLower(b.Name)] = b.ID
	}

	inserted := 0
	for _, sd := range sf.Deals {
		brandID, ok := byName[strings.ToLower(sd.Brand)]
		if !ok {
			logger.Warn("seed deal references unknown brand, skipping", "brand", sd.Brand, "title", sd.Title)
			continue
		}
		deal := domain.Deal{
			BrandID:     brandID,
			Kind:        domain.DealKind(sd.Kind),
			CouponCode:  sd.CouponCode,
			DealURL:     sd.DealURL,
			Title:       sd.Title,
			Description: sd.Description,
			StartTime:   sd.StartTime,
			ExpiryTime:  sd.ExpiryTime,
			DiscountPct: sd.DiscountPct,
		}
		if err := target.InsertDeal(ctx, deal); err != nil {
			logger.Warn("seed deal rejected, skipping", "title", sd.Title, "err", err)
			continue
		}
		inserted++
	}

	skipped := len(sf.Deals) - inserted
	logger.Info("seed applied", "brands", len(sf.Brands), "deals", inserted, "skipped", skipped)
	return inserted, skipped, nil
}
