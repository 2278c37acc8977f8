package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"dealbot/internal/domain"
)

// ApologyReply is the fixed response sent when a reply cannot be produced.
const ApologyReply = "I apologize, but I'm having trouble processing your request at the moment. Please try again."

const maxFallbackBrands = 3

// ReplySource records how a reply was produced.
type ReplySource int

const (
	// SourceModel means the generative model wrote the reply.
	SourceModel ReplySource = iota
	// SourceFallback means a deterministic local reply was used and the
	// model was never called.
	SourceFallback
	// SourceApology means the model failed and the fixed apology was sent.
	SourceApology
)

func (s ReplySource) String() string {
	switch s {
	case SourceModel:
		return "model"
	case SourceFallback:
		return "fallback"
	case SourceApology:
		return "apology"
	default:
		return "unknown"
	}
}

// Composer turns a user message plus the matching deals into a reply.
// When deals exist it prompts the generative model; when none match it
// answers locally without a model call.
type Composer struct {
	generator domain.Generator
	formatter *DealFormatter
	logger    *slog.Logger

	temperature     float64
	maxOutputTokens int
	timeout         time.Duration
}

// ComposerConfig holds the Composer's dependencies and tuning parameters.
type ComposerConfig struct {
	Generator       domain.Generator
	Formatter       *DealFormatter
	Logger          *slog.Logger
	Temperature     float64
	MaxOutputTokens int
	Timeout         time.Duration
}

func NewComposer(cfg ComposerConfig) *Composer {
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Composer{
		generator:       cfg.Generator,
		formatter:       cfg.Formatter,
		logger:          cfg.Logger,
		temperature:     cfg.Temperature,
		maxOutputTokens: cfg.MaxOutputTokens,
		timeout:         cfg.Timeout,
	}
}

// Compose produces the reply for a user message. The brands slice is only
// consulted for the no-results suggestion; deals drive everything else.
func (c *Composer) Compose(ctx context.Context, message string, deals []domain.Deal, brands []domain.Brand) (string, ReplySource) {
	if len(deals) == 0 {
		return c.noResultsReply(brands), SourceFallback
	}

	prompt := c.buildPrompt(message, deals)

	genCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	reply, err := c.generator.Generate(genCtx, prompt, domain.GenerateOptions{
		Temperature:     c.temperature,
		MaxOutputTokens: c.maxOutputTokens,
	})
	if err != nil {
		c.logger.Error("reply generation failed",
			"provider", c.generator.Name(),
			"deals", len(deals),
			"error", err,
		)
		return ApologyReply, SourceApology
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		c.logger.Warn("model returned empty reply, sending apology", "provider", c.generator.Name())
		return ApologyReply, SourceApology
	}

	c.logger.Debug("reply generated",
		"provider", c.generator.Name(),
		"deals", len(deals),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return reply, SourceModel
}

// buildPrompt embeds the user's message verbatim along with one formatted
// line per deal and fixed formatting instructions.
func (c *Composer) buildPrompt(message string, deals []domain.Deal) string {
	now := time.Now()

	var b strings.Builder
	b.WriteString("You are a friendly shopping assistant that helps users find coupon codes and deals.\n\n")
	b.WriteString("User message: \"")
	b.WriteString(message)
	b.WriteString("\"\n\nActive deals matching the request:\n")
	for _, d := range deals {
		b.WriteString("- ")
		b.WriteString(c.formatter.PromptLine(d, now))
		b.WriteString("\n")
	}
	b.WriteString("\nWrite a short, helpful reply recommending these deals. ")
	b.WriteString("Present each deal as: [Brand Name] - [Discount]% off - Code: [COUPON] (Expires: [Date]). ")
	b.WriteString("For deals without a coupon code, share the link instead. ")
	b.WriteString("Keep any \"" + urgencyMarker + "\" markers next to their deal. ")
	b.WriteString("Only mention the deals listed above; never invent codes or discounts.")
	return b.String()
}

// noResultsReply answers locally when no deals match, suggesting a few
// known brands the user could ask about instead.
func (c *Composer) noResultsReply(brands []domain.Brand) string {
	if len(brands) == 0 {
		return "I couldn't find any active coupons or deals right now. Please check back soon!"
	}

	names := make([]string, 0, maxFallbackBrands)
	for _, br := range brands {
		if br.Name == "" {
			continue
		}
		names = append(names, br.Name)
		if len(names) == maxFallbackBrands {
			break
		}
	}

	var list string
	switch len(names) {
	case 0:
		// Brand rows can carry empty names; nothing usable to suggest.
		return "I couldn't find any active coupons or deals right now. Please check back soon!"
	case 1:
		list = names[0]
	case 2:
		list = names[0] + " or " + names[1]
	default:
		list = strings.Join(names[:len(names)-1], ", ") + ", or " + names[len(names)-1]
	}
	return "I couldn't find any active deals matching your request. Try asking about brands like " + list + "!"
}
