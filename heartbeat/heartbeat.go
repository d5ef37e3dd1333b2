// Package heartbeat periodically sends a minimal turn to each upstream that
// asks for it and reports the outcome, so a tripped upstream is readmitted
// once it answers again.
package heartbeat

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/missdeer/agentbridge/config"
	"github.com/missdeer/agentbridge/message"
)

// probeTimeout bounds a single heartbeat request.
const probeTimeout = 30 * time.Second

// Probe sends one minimal request for model to the upstream.
type Probe func(ctx context.Context, upstream config.Upstream, model string) error

// Reporter receives heartbeat outcomes. balancer.WeightedRoundRobin
// satisfies it.
type Reporter interface {
	RecordSuccess(name string)
	RecordFailure(name string) bool
}

// Manager manages heartbeat goroutines for all upstreams
type Manager struct {
	probe   Probe
	report  Reporter
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
}

func NewManager(probe Probe, report Reporter) *Manager {
	return &Manager{
		probe:   probe,
		report:  report,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Update stops every running heartbeat and starts one per enabled upstream
// with a positive interval.
func (m *Manager) Update(upstreams []config.Upstream) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	for _, u := range upstreams {
		if u.HeartbeatInterval <= 0 || !u.IsEnabled() {
			continue
		}
		ctx, cancel := context.WithCancel(context.Background())
		m.cancels[u.Name] = cancel
		log.Printf("[HEARTBEAT] Starting heartbeat for upstream %s (interval: %s)", u.Name, u.HeartbeatInterval)
		m.wg.Add(1)
		go m.run(ctx, u)
	}
}

// Stop stops all heartbeat goroutines and waits for them to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopLocked()
	m.mu.Unlock()
	m.wg.Wait()
}

// Running returns the number of active heartbeats.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cancels)
}

func (m *Manager) stopLocked() {
	for name, cancel := range m.cancels {
		cancel()
		delete(m.cancels, name)
	}
}

func (m *Manager) run(ctx context.Context, upstream config.Upstream) {
	defer m.wg.Done()
	ticker := time.NewTicker(upstream.HeartbeatInterval)
	defer ticker.Stop()

	m.beat(ctx, upstream)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[HEARTBEAT] Heartbeat stopped for upstream: %s", upstream.Name)
			return
		case <-ticker.C:
			m.beat(ctx, upstream)
		}
	}
}

func (m *Manager) beat(ctx context.Context, upstream config.Upstream) {
	model := SelectModel(upstream)
	if model == "" {
		log.Printf("[HEARTBEAT] No suitable model found for upstream: %s", upstream.Name)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	err := m.probe(ctx, upstream, model)
	if ctx.Err() == context.Canceled {
		return
	}
	if err != nil {
		log.Printf("[HEARTBEAT] Heartbeat to %s (model: %s) failed: %v", upstream.Name, model, err)
		m.report.RecordFailure(upstream.Name)
		return
	}
	log.Printf("[HEARTBEAT] Heartbeat to %s (model: %s) successful", upstream.Name, model)
	m.report.RecordSuccess(upstream.Name)
}

// SelectModel picks the client-facing model a heartbeat asks for: a random
// entry of available_models, then a random model_mappings key, then a cheap
// default for the vendor.
func SelectModel(upstream config.Upstream) string {
	if len(upstream.AvailableModels) > 0 {
		return upstream.AvailableModels[rand.Intn(len(upstream.AvailableModels))]
	}

	if len(upstream.ModelMappings) > 0 {
		keys := make([]string, 0, len(upstream.ModelMappings))
		for k := range upstream.ModelMappings {
			keys = append(keys, k)
		}
		return keys[rand.Intn(len(keys))]
	}

	switch upstream.GetVendor() {
	case message.VendorAnthropic:
		return "claude-3-haiku-20240307"
	case message.VendorOpenAI:
		return "gpt-4o-mini"
	case message.VendorOllama:
		return "llama3.2"
	case message.VendorGemini:
		return "gemini-1.5-flash"
	default:
		return ""
	}
}
