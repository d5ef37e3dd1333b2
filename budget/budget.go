// Package budget turns an output-token ceiling into a USD spend ceiling for
// backends that are capped by cost rather than by tokens.
package budget

import (
	"sort"
	"strings"
)

const (
	// DefaultPricePerMillion is the output price used for unknown models.
	DefaultPricePerMillion = 15.0
	// DefaultMultiplier covers input-token cost, which is not budgeted separately.
	DefaultMultiplier = 1.5
	// DefaultCeiling bounds the spend of any single request.
	DefaultCeiling = 10.0
)

// DefaultPrices holds output-token prices in USD per million tokens, keyed by
// model id or model id prefix.
var DefaultPrices = map[string]float64{
	"claude-opus-4":     75,
	"claude-sonnet-4":   15,
	"claude-3-7-sonnet": 15,
	"claude-3-5-sonnet": 15,
	"claude-3-5-haiku":  4,
	"claude-3-opus":     75,
	"claude-3-haiku":    1.25,
	"opus":              75,
	"sonnet":            15,
	"haiku":             4,
}

// Translator converts token ceilings to dollar ceilings. The zero value is not
// usable; construct with New.
type Translator struct {
	prices       map[string]float64
	prefixes     []string
	defaultPrice float64
	multiplier   float64
	ceiling      float64
}

type Option func(*Translator)

// WithPrices replaces the price table.
func WithPrices(prices map[string]float64) Option {
	return func(t *Translator) {
		t.prices = make(map[string]float64, len(prices))
		for k, v := range prices {
			t.prices[k] = v
		}
	}
}

// WithModelPrices adds to the price table, replacing entries with the same key.
func WithModelPrices(prices map[string]float64) Option {
	return func(t *Translator) {
		for k, v := range prices {
			if v > 0 {
				t.prices[k] = v
			}
		}
	}
}

func WithDefaultPrice(price float64) Option {
	return func(t *Translator) {
		if price > 0 {
			t.defaultPrice = price
		}
	}
}

func WithMultiplier(m float64) Option {
	return func(t *Translator) {
		if m > 0 {
			t.multiplier = m
		}
	}
}

func WithCeiling(c float64) Option {
	return func(t *Translator) {
		if c > 0 {
			t.ceiling = c
		}
	}
}

// New returns a Translator using the default table and constants, adjusted by opts.
func New(opts ...Option) *Translator {
	t := &Translator{
		defaultPrice: DefaultPricePerMillion,
		multiplier:   DefaultMultiplier,
		ceiling:      DefaultCeiling,
	}
	WithPrices(DefaultPrices)(t)
	for _, opt := range opts {
		opt(t)
	}

	t.prefixes = make([]string, 0, len(t.prices))
	for k := range t.prices {
		t.prefixes = append(t.prefixes, k)
	}
	// Longest first, so the most specific prefix wins.
	sort.Slice(t.prefixes, func(i, j int) bool {
		if len(t.prefixes[i]) != len(t.prefixes[j]) {
			return len(t.prefixes[i]) > len(t.prefixes[j])
		}
		return t.prefixes[i] < t.prefixes[j]
	})
	return t
}

// Price returns the output price per million tokens for model.
func (t *Translator) Price(model string) float64 {
	if model == "" {
		return t.defaultPrice
	}
	if p, ok := t.prices[model]; ok {
		return p
	}
	for _, prefix := range t.prefixes {
		if strings.HasPrefix(model, prefix) {
			return t.prices[prefix]
		}
	}
	return t.defaultPrice
}

// Budget returns the USD ceiling for a request allowed to produce maxTokens
// output tokens. Non-positive maxTokens yields 0.
func (t *Translator) Budget(maxTokens int, model string) float64 {
	if maxTokens <= 0 {
		return 0
	}
	cost := float64(maxTokens) / 1e6 * t.Price(model) * t.multiplier
	if cost > t.ceiling {
		return t.ceiling
	}
	return cost
}

// Ceiling returns the configured per-request maximum.
func (t *Translator) Ceiling() float64 {
	return t.ceiling
}
