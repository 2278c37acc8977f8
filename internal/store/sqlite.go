package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"dealbot/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.Store using SQLite. Intended for local and
// single-node deployments; the Postgres store covers hosted backends.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS brands (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS coupons_deals (
		id            TEXT PRIMARY KEY,
		kind          TEXT NOT NULL,
		brand_id      TEXT NOT NULL REFERENCES brands(id),
		coupon_code   TEXT,
		deal_url      TEXT,
		title         TEXT NOT NULL,
		description   TEXT,
		start_time    DATETIME NOT NULL,
		expiry_time   DATETIME NOT NULL,
		discount_pct  REAL,
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_deals_brand ON coupons_deals(brand_id);
	CREATE INDEX IF NOT EXISTS idx_deals_expiry ON coupons_deals(expiry_time);

	CREATE TABLE IF NOT EXISTS messages (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		content     TEXT NOT NULL,
		is_ai       INTEGER NOT NULL DEFAULT 0,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) ListBrands(ctx context.Context) ([]domain.Brand, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM brands ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	defer rows.Close()

	var brands []domain.Brand
	for rows.Next() {
		var b domain.Brand
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, err
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

// ActiveDeals returns non-expired deals matching the filter, best deals
// first: discount descending with unknown discounts last, then soonest
// expiry among equal discounts.
func (s *SQLiteStore) ActiveDeals(ctx context.Context, filter domain.DealFilter) ([]domain.Deal, error) {
	query := `
		SELECT d.id, d.kind, d.brand_id, d.coupon_code, d.deal_url, d.title, d.description,
		       d.start_time, d.expiry_time, d.discount_pct, d.created_at, b.name
		FROM coupons_deals d
		JOIN brands b ON b.id = d.brand_id
		WHERE d.expiry_time > ?`
	args := []any{time.Now()}

	if filter.BrandID != "" {
		query += ` AND d.brand_id = ?`
		args = append(args, filter.BrandID)
	}
	if filter.Kind != "" {
		query += ` AND d.kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.HasDiscount {
		query += ` AND d.discount_pct >= ?`
		args = append(args, filter.MinDiscount)
	}

	query += ` ORDER BY d.discount_pct DESC NULLS LAST, d.expiry_time ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query active deals: %w", err)
	}
	defer rows.Close()

	return scanDeals(rows)
}

func (s *SQLiteStore) InsertDeal(ctx context.Context, deal domain.Deal) error {
	if err := validateDeal(&deal); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO coupons_deals (id, kind, brand_id, coupon_code, deal_url, title, description, start_time, expiry_time, discount_pct, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		deal.ID, string(deal.Kind), deal.BrandID,
		nullString(deal.CouponCode), nullString(deal.DealURL),
		deal.Title, deal.Description, deal.StartTime, deal.ExpiryTime,
		nullFloat(deal.DiscountPct), deal.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert deal: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertBrand(ctx context.Context, brand domain.Brand) error {
	if brand.ID == "" {
		brand.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO brands (id, name) VALUES (?, ?)`,
		brand.ID, brand.Name,
	)
	if err != nil {
		return fmt.Errorf("insert brand: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertMessage(ctx context.Context, msg domain.MessageRecord) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (content, is_ai, created_at) VALUES (?, ?, ?)`,
		msg.Content, msg.IsAI, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanDeals reads joined deal+brand rows. Shared by both store drivers;
// column order must match the ActiveDeals SELECT.
func scanDeals(rows *sql.Rows) ([]domain.Deal, error) {
	var deals []domain.Deal
	for rows.Next() {
		var d domain.Deal
		var kind string
		var code, url, desc sql.NullString
		var discount sql.NullFloat64
		if err := rows.Scan(&d.ID, &kind, &d.BrandID, &code, &url, &d.Title, &desc,
			&d.StartTime, &d.ExpiryTime, &discount, &d.CreatedAt, &d.Brand.Name); err != nil {
			return nil, err
		}
		d.Kind = domain.DealKind(kind)
		d.CouponCode = code.String
		d.DealURL = url.String
		d.Description = desc.String
		if discount.Valid {
			v := discount.Float64
			d.DiscountPct = &v
		}
		d.Brand.ID = d.BrandID
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

// validateDeal enforces the redemption-payload invariant and fills defaults.
// Rejections wrap domain.ErrInvalidDeal so transports can tell bad input
// apart from store faults.
func validateDeal(deal *domain.Deal) error {
	if !deal.Kind.Valid() {
		return fmt.Errorf("%w: kind must be %q or %q", domain.ErrInvalidDeal, domain.KindCoupon, domain.KindDeal)
	}
	if deal.Kind == domain.KindCoupon {
		if strings.TrimSpace(deal.CouponCode) == "" {
			return fmt.Errorf("%w: coupon deals require a coupon code", domain.ErrInvalidDeal)
		}
		deal.DealURL = ""
	} else {
		if strings.TrimSpace(deal.DealURL) == "" {
			return fmt.Errorf("%w: promotional deals require a deal URL", domain.ErrInvalidDeal)
		}
		deal.CouponCode = ""
	}
	if deal.Title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidDeal)
	}
	if deal.BrandID == "" {
		return fmt.Errorf("%w: brand_id is required", domain.ErrInvalidDeal)
	}
	if !deal.ExpiryTime.After(deal.StartTime) {
		return fmt.Errorf("%w: expiry must be after the start time", domain.ErrInvalidDeal)
	}
	if deal.DiscountPct != nil && (*deal.DiscountPct < 0 || *deal.DiscountPct > 100) {
		return fmt.Errorf("%w: discount percentage must be between 0 and 100", domain.ErrInvalidDeal)
	}
	if deal.ID == "" {
		deal.ID = uuid.NewString()
	}
	if deal.CreatedAt.IsZero() {
		deal.CreatedAt = time.Now()
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
