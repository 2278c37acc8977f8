package domain

import "context"

// DealStore reads brands and deal records from the relational backend.
// ActiveDeals always restricts to deals whose expiry is in the future at
// call time, applies the filter, and returns results sorted by discount
// percentage descending (missing discount last) then expiry ascending.
type DealStore interface {
	ListBrands(ctx context.Context) ([]Brand, error)
	ActiveDeals(ctx context.Context, filter DealFilter) ([]Deal, error)
	InsertDeal(ctx context.Context, deal Deal) error
}

// MessageStore appends rows to the message log. Writes are best-effort
// from the orchestrator's point of view; a failed insert never aborts a turn.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg MessageRecord) error
}

// Store is the combined persistence surface, plus lifecycle.
type Store interface {
	DealStore
	MessageStore
	Close() error
}
