package agent

import (
	"testing"

	"dealbot/internal/domain"
)

func TestParseIntent(t *testing.T) {
	cases := []struct {
		name        string
		message     string
		wantKind    domain.DealKind
		wantMin     float64
		wantHasDisc bool
	}{
		{"coupon keyword", "any coupon codes for shoes?", domain.KindCoupon, 0, false},
		{"deal keyword", "best deals on laptops", domain.KindDeal, 0, false},
		{"coupon wins over deal", "coupon deals please", domain.KindCoupon, 0, false},
		{"no keyword", "what do you have for nike?", "", 0, false},
		{"minimum discount", "show me deals with at least 20% off", domain.KindDeal, 20, true},
		{"discount with space", "anything 30 % off?", "", 30, true},
		{"zero percent ignored", "0% interest deals", domain.KindDeal, 0, false},
		{"over hundred ignored", "200% juice coupons", domain.KindCoupon, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseIntent(tc.message)
			if got.Kind != tc.wantKind {
				t.Errorf("kind = %q, want %q", got.Kind, tc.wantKind)
			}
			if got.MinDiscount != tc.wantMin {
				t.Errorf("minDiscount = %v, want %v", got.MinDiscount, tc.wantMin)
			}
			if got.HasDiscount != tc.wantHasDisc {
				t.Errorf("hasDiscount = %v, want %v", got.HasDiscount, tc.wantHasDisc)
			}
		})
	}
}

func TestQueryIntentFilter(t *testing.T) {
	brand := &domain.Brand{ID: "b1", Name: "Nike"}
	intent := domain.QueryIntent{Brand: brand, Kind: domain.KindCoupon, MinDiscount: 15, HasDiscount: true}

	f := intent.Filter()
	if f.BrandID != "b1" || f.Kind != domain.KindCoupon || f.MinDiscount != 15 || !f.HasDiscount {
		t.Fatalf("unexpected filter: %+v", f)
	}

	empty := domain.QueryIntent{}.Filter()
	if empty.BrandID != "" || empty.Kind != "" || empty.HasDiscount {
		t.Fatalf("zero intent should produce zero filter: %+v", empty)
	}
}
