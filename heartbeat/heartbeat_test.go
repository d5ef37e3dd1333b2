package heartbeat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/missdeer/agentbridge/config"
)

type recorder struct {
	mu        sync.Mutex
	successes map[string]int
	failures  map[string]int
}

func newRecorder() *recorder {
	return &recorder{successes: map[string]int{}, failures: map[string]int{}}
}

func (r *recorder) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes[name]++
}

func (r *recorder) RecordFailure(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[name]++
	return false
}

func (r *recorder) counts(name string) (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.successes[name], r.failures[name]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestManagerReportsOutcomes(t *testing.T) {
	rec := newRecorder()
	var (
		mu     sync.Mutex
		models = map[string]string{}
	)
	check := func(ctx context.Context, u config.Upstream, model string) error {
		mu.Lock()
		models[u.Name] = model
		mu.Unlock()
		if u.Name == "down" {
			return errors.New("connection refused")
		}
		return nil
	}

	disabled := false
	mgr := NewManager(check, rec)
	mgr.Update([]config.Upstream{
		{Name: "up", HeartbeatInterval: 20 * time.Millisecond, AvailableModels: []string{"m1"}},
		{Name: "down", HeartbeatInterval: 20 * time.Millisecond, Vendor: "gemini"},
		{Name: "quiet"},
		{Name: "off", HeartbeatInterval: 20 * time.Millisecond, Enabled: &disabled},
	})
	defer mgr.Stop()

	if got := mgr.Running(); got != 2 {
		t.Fatalf("Running() = %d, want 2", got)
	}

	waitFor(t, func() bool {
		s, _ := rec.counts("up")
		_, f := rec.counts("down")
		return s >= 2 && f >= 2
	})

	mu.Lock()
	defer mu.Unlock()
	if models["up"] != "m1" {
		t.Errorf("model for up = %q, want m1", models["up"])
	}
	if models["down"] != "gemini-1.5-flash" {
		t.Errorf("model for down = %q, want gemini default", models["down"])
	}
	if _, ok := models["quiet"]; ok {
		t.Error("upstream without interval was checked")
	}
	if _, ok := models["off"]; ok {
		t.Error("disabled upstream was checked")
	}
}

func TestManagerUpdateAndStop(t *testing.T) {
	rec := newRecorder()
	mgr := NewManager(func(context.Context, config.Upstream, string) error { return nil }, rec)

	mgr.Update([]config.Upstream{{Name: "a", HeartbeatInterval: time.Hour}})
	if got := mgr.Running(); got != 1 {
		t.Fatalf("Running() = %d, want 1", got)
	}

	mgr.Update([]config.Upstream{{Name: "a"}, {Name: "b", HeartbeatInterval: time.Hour}, {Name: "c", HeartbeatInterval: time.Hour}})
	if got := mgr.Running(); got != 2 {
		t.Fatalf("Running() after update = %d, want 2", got)
	}

	mgr.Stop()
	if got := mgr.Running(); got != 0 {
		t.Fatalf("Running() after stop = %d, want 0", got)
	}
}

func TestSelectModel(t *testing.T) {
	tests := []struct {
		name     string
		upstream config.Upstream
		want     []string
	}{
		{"available models", config.Upstream{AvailableModels: []string{"x", "y"}}, []string{"x", "y"}},
		{"mapping keys", config.Upstream{ModelMappings: config.ModelMapping{"sonnet": "claude-sonnet-4"}}, []string{"sonnet"}},
		{"anthropic default", config.Upstream{}, []string{"claude-3-haiku-20240307"}},
		{"openai default", config.Upstream{Vendor: "openai"}, []string{"gpt-4o-mini"}},
		{"ollama default", config.Upstream{Vendor: "ollama"}, []string{"llama3.2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectModel(tt.upstream)
			for _, w := range tt.want {
				if got == w {
					return
				}
			}
			t.Errorf("SelectModel() = %q, want one of %v", got, tt.want)
		})
	}
}
