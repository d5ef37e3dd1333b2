// Package balancer picks the upstream for an outbound model call by
// weighted round-robin, skipping upstreams that failed repeatedly until
// their cooldown expires.
package balancer

import (
	"sync"
	"time"

	"github.com/missdeer/agentbridge/config"
	"github.com/missdeer/agentbridge/message"
)

const (
	DefaultMaxFailures = 3
	DefaultCooldown    = 30 * time.Minute
)

type upstreamState struct {
	failures      int
	unavailable   bool
	unavailableAt time.Time
}

type WeightedRoundRobin struct {
	mu          sync.Mutex
	upstreams   []config.Upstream
	weights     []int
	states      map[string]*upstreamState
	current     int
	cw          int
	gcd         int
	maxWeight   int
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

type Option func(*WeightedRoundRobin)

// WithCircuitBreaker sets how many consecutive failures take an upstream out
// of rotation, and for how long.
func WithCircuitBreaker(maxFailures int, cooldown time.Duration) Option {
	return func(w *WeightedRoundRobin) {
		if maxFailures > 0 {
			w.maxFailures = maxFailures
		}
		if cooldown > 0 {
			w.cooldown = cooldown
		}
	}
}

func NewWeightedRoundRobin(upstreams []config.Upstream, opts ...Option) *WeightedRoundRobin {
	w := &WeightedRoundRobin{
		states:      make(map[string]*upstreamState),
		maxFailures: DefaultMaxFailures,
		cooldown:    DefaultCooldown,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.rebuild(upstreams)
	return w
}

// Update replaces the upstream set, keeping circuit breaker state for
// upstreams that survive by name.
func (w *WeightedRoundRobin) Update(upstreams []config.Upstream) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rebuild(upstreams)
}

func (w *WeightedRoundRobin) rebuild(upstreams []config.Upstream) {
	var enabled []config.Upstream
	for _, u := range upstreams {
		if u.IsEnabled() {
			enabled = append(enabled, u)
		}
	}

	states := make(map[string]*upstreamState, len(enabled))
	weights := make([]int, len(enabled))
	maxWeight, gcd := 0, 0
	for i, u := range enabled {
		if old, ok := w.states[u.Name]; ok {
			states[u.Name] = old
		} else {
			states[u.Name] = &upstreamState{}
		}
		weights[i] = u.Weight
		if u.Weight > maxWeight {
			maxWeight = u.Weight
		}
		gcd = gcdFunc(gcd, u.Weight)
	}

	w.upstreams = enabled
	w.weights = weights
	w.states = states
	w.current = -1
	w.cw = 0
	w.gcd = gcd
	w.maxWeight = maxWeight
}

func gcdFunc(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func (w *WeightedRoundRobin) IsAvailable(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isAvailableLocked(name)
}

func (w *WeightedRoundRobin) isAvailableLocked(name string) bool {
	state, ok := w.states[name]
	if !ok || !state.unavailable {
		return true
	}
	if w.now().Sub(state.unavailableAt) >= w.cooldown {
		state.unavailable = false
		state.failures = 0
		return true
	}
	return false
}

// RecordSuccess clears the failure count and readmits a tripped upstream.
func (w *WeightedRoundRobin) RecordSuccess(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if state, ok := w.states[name]; ok {
		state.failures = 0
		state.unavailable = false
	}
}

// RecordFailure counts a failed call and reports whether the upstream has
// just been taken out of rotation.
func (w *WeightedRoundRobin) RecordFailure(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	state, ok := w.states[name]
	if !ok || state.unavailable {
		return false
	}

	state.failures++
	if state.failures >= w.maxFailures {
		state.unavailable = true
		state.unavailableAt = w.now()
		return true
	}
	return false
}

// nextLocked advances the weighted cycle by one step.
func (w *WeightedRoundRobin) nextLocked() *config.Upstream {
	if len(w.upstreams) == 0 {
		return nil
	}
	if len(w.upstreams) == 1 {
		return &w.upstreams[0]
	}

	for {
		w.current = (w.current + 1) % len(w.upstreams)
		if w.current == 0 {
			w.cw -= w.gcd
			if w.cw <= 0 {
				w.cw = w.maxWeight
			}
		}
		if w.weights[w.current] >= w.cw {
			return &w.upstreams[w.current]
		}
	}
}

// Next returns the next available upstream that speaks vendor and serves
// model, or nil when none does. The returned value is a copy.
func (w *WeightedRoundRobin) Next(vendor message.Vendor, model string) *config.Upstream {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.upstreams) == 0 {
		return nil
	}

	// One full weighted cycle visits every upstream at least once.
	iterations := 0
	for _, wt := range w.weights {
		iterations += wt
	}
	if iterations < len(w.upstreams) {
		iterations = len(w.upstreams)
	}

	for i := 0; i < iterations; i++ {
		next := w.nextLocked()
		if next == nil {
			return nil
		}
		if next.GetVendor() == vendor && next.SupportsModel(model) && w.isAvailableLocked(next.Name) {
			u := *next
			return &u
		}
	}
	return nil
}

func (w *WeightedRoundRobin) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.upstreams)
}
