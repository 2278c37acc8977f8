package agent

import (
	"strings"

	"dealbot/internal/domain"
)

// minTokenLen filters out stopword-sized fragments when fuzzy matching.
const minTokenLen = 3

// BrandMatcher finds which known brand, if any, a chat message refers to.
// Matching is two-phase: exact substring first, then per-token substring
// containment in either direction ("sports" matching "Acme Sportswear").
type BrandMatcher struct{}

func NewBrandMatcher() *BrandMatcher {
	return &BrandMatcher{}
}

// Match returns the first brand mentioned in the message, or nil when no
// brand matches. Brands are checked in the order given; the first hit wins.
func (m *BrandMatcher) Match(message string, brands []domain.Brand) *domain.Brand {
	lower := strings.ToLower(message)

	for i := range brands {
		name := strings.ToLower(brands[i].Name)
		if name == "" {
			continue
		}
		if strings.Contains(lower, name) {
			return &brands[i]
		}
	}

	msgTokens := tokenize(lower)
	if len(msgTokens) == 0 {
		return nil
	}

	// Containment runs both ways: "sports" in the message matches the
	// brand token "sportswear", and vice versa.
	for i := range brands {
		for _, bt := range tokenize(strings.ToLower(brands[i].Name)) {
			for _, mt := range msgTokens {
				if strings.Contains(mt, bt) || strings.Contains(bt, mt) {
					return &brands[i]
				}
			}
		}
	}
	return nil
}

// tokenize splits on whitespace and hyphens and drops short fragments.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '-'
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) >= minTokenLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
