package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dealbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "deals.db"), testLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func pct(v float64) *float64 { return &v }

func seedBrand(t *testing.T, s *SQLiteStore, name string) domain.Brand {
	t.Helper()
	ctx := context.Background()
	if err := s.InsertBrand(ctx, domain.Brand{Name: name}); err != nil {
		t.Fatalf("insert brand: %v", err)
	}
	brands, err := s.ListBrands(ctx)
	if err != nil {
		t.Fatalf("list brands: %v", err)
	}
	for _, b := range brands {
		if b.Name == name {
			return b
		}
	}
	t.Fatalf("brand %q not found after insert", name)
	return domain.Brand{}
}

func couponDeal(brandID, code string, discount *float64, expiresIn time.Duration) domain.Deal {
	now := time.Now()
	return domain.Deal{
		BrandID:     brandID,
		Kind:        domain.KindCoupon,
		CouponCode:  code,
		Title:       code + " coupon",
		Description: "test coupon",
		StartTime:   now.Add(-time.Hour),
		ExpiryTime:  now.Add(expiresIn),
		DiscountPct: discount,
	}
}

func TestListBrands_Empty(t *testing.T) {
	s := newTestStore(t)
	brands, err := s.ListBrands(context.Background())
	if err != nil {
		t.Fatalf("list brands: %v", err)
	}
	if len(brands) != 0 {
		t.Fatalf("expected no brands, got %d", len(brands))
	}
}

func TestActiveDeals_SortOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acme := seedBrand(t, s, "Acme")

	// Insert out of order: 20% expiring late, 25%, nil discount, 20% expiring soon.
	for _, d := range []domain.Deal{
		couponDeal(acme.ID, "TWENTY-LATE", pct(20), 96*time.Hour),
		couponDeal(acme.ID, "TWENTYFIVE", pct(25), 72*time.Hour),
		couponDeal(acme.ID, "MYSTERY", nil, 24*time.Hour),
		couponDeal(acme.ID, "TWENTY-SOON", pct(20), 12*time.Hour),
	} {
		if err := s.InsertDeal(ctx, d); err != nil {
			t.Fatalf("insert deal: %v", err)
		}
	}

	deals, err := s.ActiveDeals(ctx, domain.DealFilter{})
	if err != nil {
		t.Fatalf("active deals: %v", err)
	}
	if len(deals) != 4 {
		t.Fatalf("expected 4 deals, got %d", len(deals))
	}

	want := []string{"TWENTYFIVE", "TWENTY-SOON", "TWENTY-LATE", "MYSTERY"}
	for i, code := range want {
		if deals[i].CouponCode != code {
			t.Fatalf("position %d: expected %s, got %s", i, code, deals[i].CouponCode)
		}
	}
	if deals[0].Brand.Name != "Acme" {
		t.Fatalf("expected brand enrichment, got %+v", deals[0].Brand)
	}
}

func TestActiveDeals_ExcludesExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acme := seedBrand(t, s, "Acme")

	if err := s.InsertDeal(ctx, couponDeal(acme.ID, "LIVE", pct(10), time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertDeal(ctx, couponDeal(acme.ID, "DEAD", pct(50), -time.Minute)); err != nil {
		t.Fatal(err)
	}

	deals, err := s.ActiveDeals(ctx, domain.DealFilter{})
	if err != nil {
		t.Fatalf("active deals: %v", err)
	}
	if len(deals) != 1 || deals[0].CouponCode != "LIVE" {
		t.Fatalf("expected only LIVE, got %+v", deals)
	}
}

func TestActiveDeals_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acme := seedBrand(t, s, "Acme")
	globex := seedBrand(t, s, "Globex")

	if err := s.InsertDeal(ctx, couponDeal(acme.ID, "ACME15", pct(15), time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertDeal(ctx, couponDeal(globex.ID, "GLOBEX30", pct(30), time.Hour)); err != nil {
		t.Fatal(err)
	}
	promo := domain.Deal{
		BrandID:     acme.ID,
		Kind:        domain.KindDeal,
		DealURL:     "https://acme.example/sale",
		Title:       "Acme sale",
		StartTime:   time.Now().Add(-time.Hour),
		ExpiryTime:  time.Now().Add(time.Hour),
		DiscountPct: pct(40),
	}
	if err := s.InsertDeal(ctx, promo); err != nil {
		t.Fatal(err)
	}

	byBrand, err := s.ActiveDeals(ctx, domain.DealFilter{BrandID: globex.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(byBrand) != 1 || byBrand[0].CouponCode != "GLOBEX30" {
		t.Fatalf("brand filter failed: %+v", byBrand)
	}

	byKind, err := s.ActiveDeals(ctx, domain.DealFilter{Kind: domain.KindDeal})
	if err != nil {
		t.Fatal(err)
	}
	if len(byKind) != 1 || byKind[0].DealURL == "" {
		t.Fatalf("kind filter failed: %+v", byKind)
	}

	byDiscount, err := s.ActiveDeals(ctx, domain.DealFilter{MinDiscount: 25, HasDiscount: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(byDiscount) != 2 {
		t.Fatalf("discount filter: expected 2 deals >= 25%%, got %d", len(byDiscount))
	}
}

func TestInsertDeal_Invariants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acme := seedBrand(t, s, "Acme")
	now := time.Now()

	cases := []struct {
		name string
		deal domain.Deal
	}{
		{"coupon without code", domain.Deal{
			BrandID: acme.ID, Kind: domain.KindCoupon, Title: "x",
			StartTime: now, ExpiryTime: now.Add(time.Hour),
		}},
		{"promo without url", domain.Deal{
			BrandID: acme.ID, Kind: domain.KindDeal, Title: "x",
			StartTime: now, ExpiryTime: now.Add(time.Hour),
		}},
		{"unknown kind", domain.Deal{
			BrandID: acme.ID, Kind: "raffle", CouponCode: "C", Title: "x",
			StartTime: now, ExpiryTime: now.Add(time.Hour),
		}},
		{"expiry before start", domain.Deal{
			BrandID: acme.ID, Kind: domain.KindCoupon, CouponCode: "C", Title: "x",
			StartTime: now, ExpiryTime: now.Add(-time.Hour),
		}},
		{"discount out of range", domain.Deal{
			BrandID: acme.ID, Kind: domain.KindCoupon, CouponCode: "C", Title: "x",
			StartTime: now, ExpiryTime: now.Add(time.Hour), DiscountPct: pct(150),
		}},
	}

	for _, tc := range cases {
		err := s.InsertDeal(ctx, tc.deal)
		if err == nil {
			t.Errorf("%s: expected validation error", tc.name)
			continue
		}
		if !errors.Is(err, domain.ErrInvalidDeal) {
			t.Errorf("%s: rejection should wrap ErrInvalidDeal, got %v", tc.name, err)
		}
	}
}

func TestInsertDeal_ClearsMismatchedPayload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acme := seedBrand(t, s, "Acme")

	d := couponDeal(acme.ID, "CODE1", pct(10), time.Hour)
	d.DealURL = "https://should-be-dropped.example"
	if err := s.InsertDeal(ctx, d); err != nil {
		t.Fatalf("insert: %v", err)
	}

	deals, err := s.ActiveDeals(ctx, domain.DealFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if deals[0].DealURL != "" {
		t.Fatalf("coupon deal kept a URL: %q", deals[0].DealURL)
	}
	if deals[0].CouponCode != "CODE1" {
		t.Fatalf("coupon code lost: %+v", deals[0])
	}
}

func TestInsertMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.InsertMessage(ctx, domain.MessageRecord{Content: "any deals?", IsAI: false}); err != nil {
		t.Fatalf("insert user message: %v", err)
	}
	if err := s.InsertMessage(ctx, domain.MessageRecord{Content: "here you go", IsAI: true}); err != nil {
		t.Fatalf("insert assistant message: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected 2 message rows, got %d", count)
	}
}

func TestInsertBrand_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.InsertBrand(ctx, domain.Brand{Name: "Acme"}); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertBrand(ctx, domain.Brand{Name: "Acme"}); err != nil {
		t.Fatalf("second insert should be ignored: %v", err)
	}

	brands, err := s.ListBrands(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(brands) != 1 {
		t.Fatalf("expected 1 brand, got %d", len(brands))
	}
}
