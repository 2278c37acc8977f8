package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"dealbot/internal/agent"
	"dealbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type stubStore struct {
	mu        sync.Mutex
	brands    []domain.Brand
	deals     []domain.Deal
	inserted  []domain.Deal
	insertErr error
}

func (s *stubStore) ListBrands(ctx context.Context) ([]domain.Brand, error) { return s.brands, nil }

func (s *stubStore) ActiveDeals(ctx context.Context, filter domain.DealFilter) ([]domain.Deal, error) {
	return s.deals, nil
}

func (s *stubStore) InsertDeal(ctx context.Context, deal domain.Deal) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	if !deal.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind", domain.ErrInvalidDeal)
	}
	s.mu.Lock()
	s.inserted = append(s.inserted, deal)
	s.mu.Unlock()
	return nil
}

func (s *stubStore) InsertMessage(ctx context.Context, msg domain.MessageRecord) error { return nil }
func (s *stubStore) Close() error                                                     { return nil }

type stubGenerator struct {
	reply string
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	return g.reply, nil
}
func (g *stubGenerator) Name() string                      { return "stub" }
func (g *stubGenerator) Models() []string                  { return nil }
func (g *stubGenerator) Healthy(ctx context.Context) error { return nil }

func newTestWeb(store *stubStore, reply string) *Web {
	composer := agent.NewComposer(agent.ComposerConfig{
		Generator: &stubGenerator{reply: reply},
		Formatter: agent.NewDealFormatter(48 * time.Hour),
		Logger:    testLogger(),
	})
	responder := agent.NewResponder(agent.ResponderConfig{
		Store:    store,
		Composer: composer,
		Logger:   testLogger(),
	})
	return NewWeb(WebConfig{
		Responder: responder,
		Store:     store,
		Logger:    testLogger(),
		Version:   "test",
	})
}

func discount(v float64) *float64 { return &v }

func storeWithNikeDeal() *stubStore {
	return &stubStore{
		brands: []domain.Brand{{ID: "b1", Name: "Nike"}},
		deals: []domain.Deal{{
			ID:          "d1",
			BrandID:     "b1",
			Brand:       domain.Brand{ID: "b1", Name: "Nike"},
			Kind:        domain.KindCoupon,
			CouponCode:  "RUN20",
			Title:       "20% off running shoes",
			ExpiryTime:  time.Now().Add(72 * time.Hour),
			DiscountPct: discount(20),
		}},
	}
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleChat(t *testing.T) {
	w := newTestWeb(storeWithNikeDeal(), "Nike - 20% off - Code: RUN20")

	rec := postJSON(t, w.Handler(), "/chat", `{"message":"any nike coupons?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Response   string `json:"response"`
		DealsCount int    `json:"dealsCount"`
		Brand      string `json:"brand"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Response == "" || resp.DealsCount != 1 || resp.Brand != "Nike" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHandleChat_EmptyMessage(t *testing.T) {
	w := newTestWeb(storeWithNikeDeal(), "unused")

	rec := postJSON(t, w.Handler(), "/chat", `{"message":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "message is required") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandleChat_InvalidJSON(t *testing.T) {
	w := newTestWeb(storeWithNikeDeal(), "unused")

	rec := postJSON(t, w.Handler(), "/chat", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleListDeals(t *testing.T) {
	w := newTestWeb(storeWithNikeDeal(), "unused")

	req := httptest.NewRequest(http.MethodGet, "/api/coupons-deals?brand_id=b1&kind=coupon", nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var deals []domain.Deal
	if err := json.Unmarshal(rec.Body.Bytes(), &deals); err != nil {
		t.Fatal(err)
	}
	if len(deals) != 1 || deals[0].CouponCode != "RUN20" {
		t.Fatalf("unexpected deals: %+v", deals)
	}
}

func TestHandleListDeals_BadParams(t *testing.T) {
	w := newTestWeb(storeWithNikeDeal(), "unused")

	for _, path := range []string{
		"/api/coupons-deals?kind=raffle",
		"/api/coupons-deals?min_discount=abc",
		"/api/coupons-deals?min_discount=150",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		w.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}

func TestHandleInsertDeal(t *testing.T) {
	store := storeWithNikeDeal()
	w := newTestWeb(store, "unused")

	body := `{"brand_id":"b1","kind":"coupon","coupon_code":"NEW10","title":"10% off","start_time":"2026-01-01T00:00:00Z","expiry_time":"2030-01-01T00:00:00Z","discount_pct":10}`
	rec := postJSON(t, w.Handler(), "/api/coupons-deals", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.inserted) != 1 || store.inserted[0].CouponCode != "NEW10" {
		t.Fatalf("deal not stored: %+v", store.inserted)
	}
}

func TestHandleInsertDeal_Invalid(t *testing.T) {
	w := newTestWeb(storeWithNikeDeal(), "unused")

	rec := postJSON(t, w.Handler(), "/api/coupons-deals", `{"brand_id":"b1","kind":"raffle","title":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleInsertDeal_StoreFault(t *testing.T) {
	store := storeWithNikeDeal()
	store.insertErr = errors.New("connection reset")
	w := newTestWeb(store, "unused")

	body := `{"brand_id":"b1","kind":"coupon","coupon_code":"NEW10","title":"10% off","start_time":"2026-01-01T00:00:00Z","expiry_time":"2030-01-01T00:00:00Z"}`
	rec := postJSON(t, w.Handler(), "/api/coupons-deals", body)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("store fault is not the client's fault: expected 500, got %d", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	w := newTestWeb(storeWithNikeDeal(), "unused")

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
