package agent

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"dealbot/internal/domain"
)

const (
	expiryDateLayout = "Jan 2, 2006"
	urgencyMarker    = "⚡ Ending Soon!"
)

// DealFormatter renders deals as single text lines, both for the model
// prompt and for the deterministic fallback reply. UrgencyWindow controls
// how close to expiry a deal gets the ending-soon marker.
type DealFormatter struct {
	UrgencyWindow time.Duration
}

func NewDealFormatter(urgencyWindow time.Duration) *DealFormatter {
	return &DealFormatter{UrgencyWindow: urgencyWindow}
}

// Line formats one deal as
// "Brand - 20% off - Code: SAVE20 (Expires: Jan 2, 2030)".
// Promos without a coupon code show their URL instead, and deals with no
// recorded discount read "Special offer".
func (f *DealFormatter) Line(d domain.Deal, now time.Time) string {
	var b strings.Builder
	b.WriteString(d.Brand.Name)
	b.WriteString(" - ")
	b.WriteString(formatDiscount(d.DiscountPct))
	b.WriteString(" - ")

	if d.CouponCode != "" {
		b.WriteString("Code: ")
		b.WriteString(d.CouponCode)
	} else if d.DealURL != "" {
		b.WriteString(d.DealURL)
	} else {
		b.WriteString("Available online")
	}

	b.WriteString(" (Expires: ")
	b.WriteString(d.ExpiryTime.Format(expiryDateLayout))
	b.WriteString(")")

	if f.endingSoon(d, now) {
		b.WriteString(" ")
		b.WriteString(urgencyMarker)
	}
	return b.String()
}

// Lines formats every deal, one per entry, preserving input order.
func (f *DealFormatter) Lines(deals []domain.Deal, now time.Time) []string {
	lines := make([]string, len(deals))
	for i, d := range deals {
		lines[i] = f.Line(d, now)
	}
	return lines
}

// PromptLine is the variant embedded in the model prompt. It always names
// a discount field so the model does not invent one: deals without a
// recorded percentage read "N/A".
func (f *DealFormatter) PromptLine(d domain.Deal, now time.Time) string {
	discount := "N/A"
	if d.DiscountPct != nil {
		discount = formatPct(*d.DiscountPct) + "%"
	}

	payload := "Available online"
	if d.CouponCode != "" {
		payload = "Code: " + d.CouponCode
	} else if d.DealURL != "" {
		payload = d.DealURL
	}

	line := fmt.Sprintf("%s - Discount: %s - %s (Expires: %s)",
		d.Brand.Name, discount, payload, d.ExpiryTime.Format(expiryDateLayout))
	if f.endingSoon(d, now) {
		line += " " + urgencyMarker
	}
	return line
}

func (f *DealFormatter) endingSoon(d domain.Deal, now time.Time) bool {
	if f.UrgencyWindow <= 0 {
		return false
	}
	remaining := d.ExpiryTime.Sub(now)
	return remaining > 0 && remaining <= f.UrgencyWindow
}

func formatDiscount(pct *float64) string {
	if pct == nil {
		return "Special offer"
	}
	return formatPct(*pct) + "% off"
}

// formatPct drops the trailing .0 on whole percentages.
func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
