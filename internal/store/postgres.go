package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dealbot/internal/config"
	"dealbot/internal/domain"

	_ "github.com/lib/pq"
)

// PostgresStore implements domain.Store against a hosted Postgres backend.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPostgresStore(cfg config.PostgresConfig, logger *slog.Logger) (*PostgresStore, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping failed: %w", err)
	}

	store := &PostgresStore{db: db, logger: logger}

	if err := store.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS brands (
			id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name        TEXT NOT NULL UNIQUE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS coupons_deals (
			id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			kind          TEXT NOT NULL CHECK (kind IN ('coupon', 'deal')),
			brand_id      UUID NOT NULL REFERENCES brands(id),
			coupon_code   TEXT,
			deal_url      TEXT,
			title         TEXT NOT NULL,
			description   TEXT,
			start_time    TIMESTAMPTZ NOT NULL,
			expiry_time   TIMESTAMPTZ NOT NULL,
			discount_pct  NUMERIC(5,2),
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deals_brand ON coupons_deals(brand_id)`,
		`CREATE INDEX IF NOT EXISTS idx_deals_expiry ON coupons_deals(expiry_time)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id          BIGSERIAL PRIMARY KEY,
			content     TEXT NOT NULL,
			is_ai       BOOLEAN NOT NULL DEFAULT FALSE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) ListBrands(ctx context.Context) ([]domain.Brand, error) {
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

// ActiveDeals returns non-expired deals matching the filter, using the same
// ordering contract as the SQLite store.
func (s *PostgresStore) ActiveDeals(ctx context.Context, filter domain.DealFilter) ([]domain.Deal, error) {
	query := `
		SELECT d.id, d.kind, d.brand_id, d.coupon_code, d.deal_url, d.title, d.description,
		       d.start_time, d.expiry_time, d.discount_pct, d.created_at, b.name
		FROM coupons_deals d
		JOIN brands b ON b.id = d.brand_id
		WHERE d.expiry_time > NOW()`
	var args []any

	if filter.BrandID != "" {
		args = append(args, filter.BrandID)
		query += fmt.Sprintf(` AND d.brand_id = $%d`, len(args))
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		query += fmt.Sprintf(` AND d.kind = $%d`, len(args))
	}
	if filter.HasDiscount {
		args = append(args, filter.MinDiscount)
		query += fmt.Sprintf(` AND d.discount_pct >= $%d`, len(args))
	}

	query += ` ORDER BY d.discount_pct DESC NULLS LAST, d.expiry_time ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query active deals: %w", err)
	}
	defer rows.Close()

	return scanDeals(rows)
}

func (s *PostgresStore) InsertDeal(ctx context.Context, deal domain.Deal) error {
	if err := validateDeal(&deal); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO coupons_deals (id, kind, brand_id, coupon_code, deal_url, title, description, start_time, expiry_time, discount_pct, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
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

func (s *PostgresStore) InsertBrand(ctx context.Context, brand domain.Brand) error {
	if brand.ID == "" {
		brand.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO brands (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		brand.ID, brand.Name,
	)
	if err != nil {
		return fmt.Errorf("insert brand: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertMessage(ctx context.Context, msg domain.MessageRecord) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (content, is_ai, created_at) VALUES ($1, $2, $3)`,
		msg.Content, msg.IsAI, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
