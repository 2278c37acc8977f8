package agent

import (
	"regexp"
	"strconv"
	"strings"

	"dealbot/internal/domain"
)

var discountPattern = regexp.MustCompile(`(\d+)\s*%`)

// ParseIntent extracts what the user is asking for from free text: an
// optional deal kind ("coupon codes" vs "deals") and an optional minimum
// discount ("at least 20% off"). Brand resolution happens separately in
// BrandMatcher; the caller combines both into a DealFilter.
func ParseIntent(message string) domain.QueryIntent {
	lower := strings.ToLower(message)

	var intent domain.QueryIntent
	if strings.Contains(lower, "coupon") {
		intent.Kind = domain.KindCoupon
	} else if strings.Contains(lower, "deal") {
		intent.Kind = domain.KindDeal
	}

	if m := discountPattern.FindStringSubmatch(lower); m != nil {
		if pct, err := strconv.ParseFloat(m[1], 64); err == nil && pct > 0 && pct <= 100 {
			intent.MinDiscount = pct
			intent.HasDiscount = true
		}
	}
	return intent
}
