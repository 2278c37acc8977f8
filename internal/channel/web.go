package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dealbot/internal/agent"
	"dealbot/internal/domain"
)

const maxBodySize = 1 << 20 // 1MB

// Web serves the HTTP API: the chat endpoint plus the administrative
// deals endpoints. Chat requests are answered synchronously through the
// responder rather than the bus, so each HTTP request maps to one turn.
type Web struct {
	host      string
	port      int
	responder *agent.Responder
	store     domain.DealStore
	logger    *slog.Logger
	server    *http.Server
	version   string
	metrics   bool
}

type WebConfig struct {
	Host         string
	Port         int
	Responder    *agent.Responder
	Store        domain.DealStore
	Logger       *slog.Logger
	Version      string
	ServeMetrics bool
}

func NewWeb(cfg WebConfig) *Web {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 3000
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Web{
		host:      cfg.Host,
		port:      cfg.Port,
		responder: cfg.Responder,
		store:     cfg.Store,
		logger:    cfg.Logger,
		version:   cfg.Version,
		metrics:   cfg.ServeMetrics,
	}
}

func (w *Web) Name() string { return "web" }

// Handler builds the route table. Exposed for tests.
func (w *Web) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", w.handleChat)
	mux.HandleFunc("GET /api/coupons-deals", w.handleListDeals)
	mux.HandleFunc("POST /api/coupons-deals", w.handleInsertDeal)
	mux.HandleFunc("GET /api/brands", w.handleListBrands)
	mux.HandleFunc("GET /status", w.handleStatus)
	if w.metrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	return mux
}

// Start runs the HTTP server and blocks until the context is cancelled.
func (w *Web) Start(ctx context.Context, bus domain.MessageBus) error {
	addr := fmt.Sprintf("%s:%d", w.host, w.port)
	w.server = &http.Server{
		Addr:              addr,
		Handler:           w.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	w.logger.Info("http api started", "addr", "http://"+addr, "metrics", w.metrics)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		w.server.Shutdown(shutdownCtx)
	}()

	if err := w.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (w *Web) Stop() error {
	if w.server != nil {
		return w.server.Close()
	}
	return nil
}

type chatRequest struct {
	Message string `json:"message"`
	ChatID  string `json:"chat_id,omitempty"`
}

type chatResponse struct {
	Response   string `json:"response"`
	DealsCount int    `json:"dealsCount"`
	Brand      string `json:"brand,omitempty"`
}

func (w *Web) handleChat(rw http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(rw, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ChatID == "" {
		req.ChatID = "http-" + uuid.NewString()
	}

	reply, err := w.responder.HandleDirect(r.Context(), domain.InboundMessage{
		Channel:   w.Name(),
		ChatID:    req.ChatID,
		SenderID:  "http_user",
		Content:   req.Message,
		Timestamp: time.Now(),
	})
	if err != nil {
		if errors.Is(err, agent.ErrEmptyMessage) {
			writeError(rw, http.StatusBadRequest, "message is required")
			return
		}
		w.logger.Error("chat request failed", "error", err)
		writeError(rw, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(rw, http.StatusOK, chatResponse{
		Response:   reply.Content,
		DealsCount: reply.DealsCount,
		Brand:      reply.Brand,
	})
}

func (w *Web) handleListDeals(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.DealFilter{
		BrandID: q.Get("brand_id"),
		Kind:    domain.DealKind(q.Get("kind")),
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		writeError(rw, http.StatusBadRequest, "kind must be \"coupon\" or \"deal\"")
		return
	}
	if raw := q.Get("min_discount"); raw != "" {
		pct, err := strconv.ParseFloat(raw, 64)
		if err != nil || pct < 0 || pct > 100 {
			writeError(rw, http.StatusBadRequest, "min_discount must be a number between 0 and 100")
			return
		}
		filter.MinDiscount = pct
		filter.HasDiscount = true
	}

	deals, err := w.store.ActiveDeals(r.Context(), filter)
	if err != nil {
		w.logger.Error("deal listing failed", "error", err)
		writeError(rw, http.StatusInternalServerError, "internal error")
		return
	}
	if deals == nil {
		deals = []domain.Deal{}
	}
	writeJSON(rw, http.StatusOK, deals)
}

func (w *Web) handleInsertDeal(rw http.ResponseWriter, r *http.Request) {
	var deal domain.Deal
	if err := decodeJSON(r, &deal); err != nil {
		writeError(rw, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := w.store.InsertDeal(r.Context(), deal); err != nil {
		if errors.Is(err, domain.ErrInvalidDeal) {
			w.logger.Warn("deal insert rejected", "title", deal.Title, "error", err)
			writeError(rw, http.StatusBadRequest, err.Error())
			return
		}
		w.logger.Error("deal insert failed", "title", deal.Title, "error", err)
		writeError(rw, http.StatusInternalServerError, "internal error")
		return
	}

	w.logger.Info("deal inserted", "brand_id", deal.BrandID, "kind", deal.Kind, "title", deal.Title)
	writeJSON(rw, http.StatusCreated, map[string]string{"status": "created"})
}

func (w *Web) handleListBrands(rw http.ResponseWriter, r *http.Request) {
	brands, err := w.store.ListBrands(r.Context())
	if err != nil {
		w.logger.Error("brand listing failed", "error", err)
		writeError(rw, http.StatusInternalServerError, "internal error")
		return
	}
	if brands == nil {
		brands = []domain.Brand{}
	}
	writeJSON(rw, http.StatusOK, brands)
}

func (w *Web) handleStatus(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": w.version,
		"time":    time.Now().Format(time.RFC3339),
	})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	return dec.Decode(v)
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, msg string) {
	writeJSON(rw, status, map[string]string{"error": msg})
}
