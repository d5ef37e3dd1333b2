package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBudget(t *testing.T) {
	tr := New(WithCeiling(100))

	assert.InDelta(t, 22.5, tr.Budget(1_000_000, ""), 1e-9, "default tier pre-clamp")
	assert.InDelta(t, 22.5, tr.Budget(1_000_000, "unknown-model"), 1e-9)
	assert.InDelta(t, 0.0225, tr.Budget(1000, "claude-sonnet-4-20250514"), 1e-9)
}

func TestBudget_ClampedToCeiling(t *testing.T) {
	tr := New()
	assert.Equal(t, DefaultCeiling, tr.Budget(1_000_000, ""))
	assert.Equal(t, DefaultCeiling, tr.Budget(1<<30, "claude-opus-4"))
}

func TestBudget_NonPositive(t *testing.T) {
	tr := New()
	assert.Zero(t, tr.Budget(0, "sonnet"))
	assert.Zero(t, tr.Budget(-5, "sonnet"))
}

func TestPrice_Lookup(t *testing.T) {
	tr := New(WithPrices(map[string]float64{
		"gpt":         8,
		"gpt-4o":      10,
		"gpt-4o-mini": 0.6,
	}), WithDefaultPrice(3))

	tests := []struct {
		model string
		want  float64
	}{
		{"gpt-4o-mini", 0.6},
		{"gpt-4o-mini-2024-07-18", 0.6},
		{"gpt-4o-2024-08-06", 10},
		{"gpt-3.5-turbo", 8},
		{"claude-sonnet-4", 3},
		{"", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tr.Price(tt.model), tt.model)
	}
}

func TestOptions_IgnoreNonPositive(t *testing.T) {
	tr := New(WithDefaultPrice(0), WithMultiplier(-1), WithCeiling(0))
	assert.Equal(t, DefaultPricePerMillion, tr.Price("nope"))
	assert.Equal(t, DefaultCeiling, tr.Ceiling())
	assert.InDelta(t, 0.0225, tr.Budget(1000, "nope"), 1e-9)
}

func TestWithModelPrices_Extends(t *testing.T) {
	tr := New(WithModelPrices(map[string]float64{"my-model": 2, "sonnet": 20, "bad": -1}))
	assert.Equal(t, 2.0, tr.Price("my-model-v2"))
	assert.Equal(t, 20.0, tr.Price("sonnet"))
	assert.Equal(t, 75.0, tr.Price("opus"), "defaults survive")
	assert.Equal(t, DefaultPricePerMillion, tr.Price("bad"))
}
