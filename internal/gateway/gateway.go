// Package gateway turns ledger data into prompts for a text generator and
// its replies into advice text or category suggestions. Generator failures
// never reach the caller: they become fixed fallback values.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ledgerly/internal/core"
	"ledgerly/internal/log"
)

const (
	// AdvicePlaceholder is shown for an empty ledger; no generator call is made.
	AdvicePlaceholder = "Start tracking your spends to get smart AI insights!"
	// AdviceFallback replaces any failed or empty advice reply.
	AdviceFallback = "AI Advisor is currently unavailable. Please check back later."

	DefaultTimeout = 20 * time.Second
)

// ErrNoGenerator is returned by the disabled generator.
var ErrNoGenerator = errors.New("text generator not configured")

// Generator produces free text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Disabled is the generator used when no API key is configured. Every call
// fails, so callers see the fallback values.
type Disabled struct{}

func (Disabled) Generate(context.Context, string) (string, error) { return "", ErrNoGenerator }

type Gateway struct {
	gen     Generator
	timeout time.Duration
	schema  core.Schema
	logger  *log.Logger
}

type Option func(*Gateway)

func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithSchema(s core.Schema) Option {
	return func(g *Gateway) { g.schema = s }
}

func WithLogger(l *log.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

func New(gen Generator, opts ...Option) *Gateway {
	if gen == nil {
		gen = Disabled{}
	}
	g := &Gateway{
		gen:     gen,
		timeout: DefaultTimeout,
		schema:  core.SchemaV1,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = log.Default(log.ComponentGateway)
	}
	return g
}

// GetAdvice returns commentary on txs. It never fails: an empty ledger gives
// AdvicePlaceholder and any generator problem gives AdviceFallback.
func (g *Gateway) GetAdvice(ctx context.Context, txs []core.Transaction) string {
	if len(txs) == 0 {
		return AdvicePlaceholder
	}

	prompt, err := buildAdvicePrompt(txs)
	if err != nil {
		g.logger.Op(ctx, slog.LevelWarn, log.OpAdvise, "Advice prompt not built", log.FieldError, err)
		return AdviceFallback
	}

	text, err := g.generate(ctx, prompt)
	if err != nil {
		g.logger.Op(ctx, slog.LevelWarn, log.OpAdvise, "Advice generation failed, using fallback",
			log.FieldCount, len(txs), log.FieldError, err)
		return AdviceFallback
	}
	text = strings.TrimSpace(text)
	if text == "" {
		g.logger.Op(ctx, slog.LevelWarn, log.OpAdvise, "Advice generation returned no text, using fallback")
		return AdviceFallback
	}
	return text
}

// SuggestCategory asks the generator to pick a category for description.
// Callers are expected to gate on core.CanSuggestCategory first.
func (g *Gateway) SuggestCategory(ctx context.Context, description string) Suggestion {
	text, err := g.generate(ctx, buildCategorizePrompt(description, g.schema))
	if err != nil {
		g.logger.Op(ctx, slog.LevelWarn, log.OpCategorize, "Categorization failed, using fallback", log.FieldError, err)
		return Suggestion{Category: core.CategoryOther, Source: SourceFallback}
	}

	if c, ok := g.schema.ParseCategory(text); ok {
		return Suggestion{Category: c, Source: SourceModel, Raw: text}
	}
	g.logger.Op(ctx, slog.LevelWarn, log.OpCategorize, "Categorization reply outside the category set",
		"reply", truncate(text, 80))
	return Suggestion{Source: SourceRejected, Raw: text}
}

func (g *Gateway) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.gen.Generate(ctx, prompt)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
