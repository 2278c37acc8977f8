package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const seedYAML = `brands:
  - name: Acme
  - name: Globex
deals:
  - brand: Acme
    kind: coupon
    coupon_code: ACME20
    title: 20% off everything
    discount_pct: 20
    start_time: 2026-01-01T00:00:00Z
    expiry_time: 2030-01-01T00:00:00Z
  - brand: Globex
    kind: deal
    deal_url: https://globex.example/clearance
    title: Clearance event
    start_time: 2026-01-01T00:00:00Z
    expiry_time: 2030-06-01T00:00:00Z
  - brand: Initech
    kind: coupon
    coupon_code: ORPHAN
    title: No such brand
    start_time: 2026-01-01T00:00:00Z
    expiry_time: 2030-01-01T00:00:00Z
`

func TestApplySeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(seedYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	seed, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	if len(seed.Brands) != 2 || len(seed.Deals) != 3 {
		t.Fatalf("unexpected seed shape: %d brands, %d deals", len(seed.Brands), len(seed.Deals))
	}

	s := newTestStore(t)
	ctx := context.Background()
	applied, skipped, err := ApplySeed(ctx, s, seed, testLogger())
	if err != nil {
		t.Fatalf("apply seed: %v", err)
	}
	if applied != 2 {
		t.Fatalf("expected 2 applied deals, got %d", applied)
	}
	if skipped != 1 {
		t.Fatalf("expected 1 skipped deal (unknown brand), got %d", skipped)
	}

	brands, err := s.ListBrands(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(brands) != 2 {
		t.Fatalf("expected 2 brands, got %d", len(brands))
	}
}

func TestLoadSeedFile_Missing(t *testing.T) {
	if _, err := LoadSeedFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplySeed_BrandNameCaseInsensitive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := `brands:
  - name: Acme
deals:
  - brand: ACME
    kind: coupon
    coupon_code: SHOUT
    title: Loud coupon
    start_time: 2026-01-01T00:00:00Z
    expiry_time: 2030-01-01T00:00:00Z
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	seed, err := LoadSeedFile(path)
	if err != nil {
		t.Fatal(err)
	}

	s := newTestStore(t)
	applied, skipped, err := ApplySeed(context.Background(), s, seed, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if applied != 1 || skipped != 0 {
		t.Fatalf("expected 1 applied, 0 skipped; got %d/%d", applied, skipped)
	}
}
