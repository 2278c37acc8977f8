package domain

import (
	"errors"
	"time"
)

// ErrInvalidDeal marks deal rejections caused by the caller's input, as
// opposed to store faults. Wrapped by the store drivers' validation.
var ErrInvalidDeal = errors.New("invalid deal")

// DealKind distinguishes how a deal is redeemed.
type DealKind string

const (
	KindCoupon DealKind = "coupon" // redeemed with a code string
	KindDeal   DealKind = "deal"   // redeemed by visiting a URL
)

// Valid reports whether k is a known deal kind.
func (k DealKind) Valid() bool {
	return k == KindCoupon || k == KindDeal
}

// Brand is a read-only reference entity owned by the external store.
type Brand struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Deal is a coupon or promotional offer tied to a brand.
// Exactly one of CouponCode / DealURL is populated, determined by Kind.
type Deal struct {
	ID          string    `json:"id"`
	BrandID     string    `json:"brand_id"`
	Brand       Brand     `json:"brand"`
	Kind        DealKind  `json:"kind"`
	CouponCode  string    `json:"coupon_code,omitempty"`
	DealURL     string    `json:"deal_url,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	ExpiryTime  time.Time `json:"expiry_time"`
	DiscountPct *float64  `json:"discount_pct,omitempty"` // 0-100, nil when unknown
	CreatedAt   time.Time `json:"created_at"`
}

// Active reports whether the deal has not yet expired at the given time.
func (d Deal) Active(now time.Time) bool {
	return now.Before(d.ExpiryTime)
}

// DealFilter narrows an active-deals query. Zero values mean "no filter".
type DealFilter struct {
	BrandID     string
	Kind        DealKind
	MinDiscount float64
	HasDiscount bool // true when MinDiscount should be applied (0% is a valid threshold)
}

// QueryIntent is the transient per-turn interpretation of a user message.
// It is derived from the message text and discarded after the store query.
type QueryIntent struct {
	Brand       *Brand
	Kind        DealKind // empty = both kinds
	MinDiscount float64
	HasDiscount bool
}

// Filter converts the intent into a store-level filter.
func (qi QueryIntent) Filter() DealFilter {
	f := DealFilter{
		Kind:        qi.Kind,
		MinDiscount: qi.MinDiscount,
		HasDiscount: qi.HasDiscount,
	}
	if qi.Brand != nil {
		f.BrandID = qi.Brand.ID
	}
	return f
}
