package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"dealbot/internal/domain"
	"dealbot/internal/metrics"
)

const defaultConcurrency = 4

// ErrEmptyMessage is returned for messages with no text content.
var ErrEmptyMessage = errors.New("message is empty")

// Reply is the outcome of one conversation turn.
type Reply struct {
	Content    string
	Brand      string
	DealsCount int
	Source     ReplySource
	IsError    bool
}

// Responder is the conversation engine: receive message, look up deals,
// compose reply, respond. Every accepted message produces exactly one reply.
type Responder struct {
	store       domain.Store
	matcher     *BrandMatcher
	composer    *Composer
	bus         domain.MessageBus
	logger      *slog.Logger
	metrics     *metrics.Metrics
	concurrency int
}

// ResponderConfig holds all dependencies for the conversation engine.
type ResponderConfig struct {
	Store       domain.Store
	Matcher     *BrandMatcher
	Composer    *Composer
	Bus         domain.MessageBus
	Logger      *slog.Logger
	Metrics     *metrics.Metrics // optional
	Concurrency int              // max parallel turns (default 4)
}

func NewResponder(cfg ResponderConfig) *Responder {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Matcher == nil {
		cfg.Matcher = NewBrandMatcher()
	}
	return &Responder{
		store:       cfg.Store,
		matcher:     cfg.Matcher,
		composer:    cfg.Composer,
		bus:         cfg.Bus,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		concurrency: cfg.Concurrency,
	}
}

// Run consumes inbound messages from the bus and processes them with
// bounded concurrency until the context is cancelled.
func (r *Responder) Run(ctx context.Context) {
	r.logger.Info("responder started", "concurrency", r.concurrency)

	sem := make(chan struct{}, r.concurrency)
	inbound := r.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("responder stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				r.logger.Info("inbound channel closed, responder stopping")
				return
			}
			sem <- struct{}{}
			go func(m domain.InboundMessage) {
				defer func() { <-sem }()
				r.processMessage(ctx, m)
			}(msg)
		}
	}
}

// processMessage handles one inbound message and sends exactly one reply
// back through the bus.
func (r *Responder) processMessage(ctx context.Context, msg domain.InboundMessage) {
	reply, err := r.HandleDirect(ctx, msg)
	if err != nil {
		r.bus.SendOutbound(domain.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			Content: "Please type a message so I can look for deals.",
			IsError: true,
		})
		return
	}

	r.bus.SendOutbound(domain.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: reply.Content,
		IsError: reply.IsError,
	})
}

// HandleDirect processes a message synchronously and returns the reply.
// Used by the HTTP transport and the CLI, which need a blocking answer.
// It returns an error only for invalid input; infrastructure faults
// degrade to an apology reply instead.
func (r *Responder) HandleDirect(ctx context.Context, msg domain.InboundMessage) (Reply, error) {
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return Reply{}, ErrEmptyMessage
	}

	start := time.Now()
	r.logger.Info("processing message",
		"channel", msg.Channel,
		"sender", msg.SenderID,
		"content_len", len(content),
	)

	// History writes never block or fail the turn.
	r.saveMessage(ctx, content, false)

	reply := r.respond(ctx, msg.Channel, content)

	r.saveMessage(ctx, reply.Content, true)
	r.metrics.RecordTurn(msg.Channel, reply.Source.String(), time.Since(start))
	return reply, nil
}

func (r *Responder) respond(ctx context.Context, channel, content string) Reply {
	brands, err := r.listBrands(ctx)
	if err != nil {
		r.logger.Error("brand lookup failed", "error", err)
		return Reply{Content: ApologyReply, Source: SourceApology, IsError: true}
	}

	brand := r.matcher.Match(content, brands)
	intent := ParseIntent(content)
	intent.Brand = brand

	deals, err := r.activeDeals(ctx, intent.Filter())
	if err != nil {
		// Degrade to the no-results path rather than dropping the turn.
		r.logger.Error("deal lookup failed, continuing with empty set", "error", err)
		deals = nil
	}

	composeStart := time.Now()
	text, source := r.composer.Compose(ctx, content, deals, brands)
	if source == SourceModel {
		r.metrics.RecordGenerate(time.Since(composeStart))
	}

	reply := Reply{
		Content:    text,
		DealsCount: len(deals),
		Source:     source,
		IsError:    source == SourceApology,
	}
	if brand != nil {
		reply.Brand = brand.Name
	}

	r.logger.Info("reply composed",
		"channel", channel,
		"brand", reply.Brand,
		"deals", reply.DealsCount,
		"source", source.String(),
	)
	return reply
}

func (r *Responder) listBrands(ctx context.Context) ([]domain.Brand, error) {
	start := time.Now()
	brands, err := r.store.ListBrands(ctx)
	r.metrics.RecordStoreQuery("list_brands", time.Since(start))
	return brands, err
}

func (r *Responder) activeDeals(ctx context.Context, filter domain.DealFilter) ([]domain.Deal, error) {
	start := time.Now()
	deals, err := r.store.ActiveDeals(ctx, filter)
	r.metrics.RecordStoreQuery("active_deals", time.Since(start))
	return deals, err
}

func (r *Responder) saveMessage(ctx context.Context, content string, isAI bool) {
	if err := r.store.InsertMessage(ctx, domain.MessageRecord{
		Content:   content,
		IsAI:      isAI,
		CreatedAt: time.Now(),
	}); err != nil {
		r.logger.Warn("failed to save message", "is_ai", isAI, "error", err)
	}
}
