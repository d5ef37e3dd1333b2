package config

import (
	"os"
	"testing"
	"time"
)

func TestManagerReload(t *testing.T) {
	path := writeConfig(t, "listen: \":9000\"\n")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	var got *Config
	m.OnReload(func(*Config) { panic("listener bug") })
	m.OnReload(func(c *Config) { got = c })

	if err := os.WriteFile(path, []byte("listen: \":9100\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := m.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if m.Get().Listen != ":9100" {
		t.Errorf("Listen after reload = %q", m.Get().Listen)
	}
	if got == nil || got.Listen != ":9100" {
		t.Errorf("listener after a panicking one was not called with the new config")
	}
}

func TestManagerReloadKeepsConfigOnError(t *testing.T) {
	path := writeConfig(t, "listen: \":9000\"\n")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	called := false
	m.OnReload(func(*Config) { called = true })

	if err := os.WriteFile(path, []byte("upstreams: ["), 0644); err != nil {
		t.Fatal(err)
	}
	if err := m.Reload(); err == nil {
		t.Fatal("Reload() with broken yaml should fail")
	}
	if m.Get().Listen != ":9000" {
		t.Errorf("config replaced despite reload error")
	}
	if called {
		t.Errorf("listener called for a failed reload")
	}
}

func TestManagerWatchesFile(t *testing.T) {
	path := writeConfig(t, "listen: \":9000\"\n")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	reloaded := make(chan *Config, 4)
	m.OnReload(func(c *Config) { reloaded <- c })

	if err := m.StartWatching(); err != nil {
		t.Fatalf("StartWatching() error = %v", err)
	}
	defer m.StopWatching()

	if err := os.WriteFile(path, []byte("listen: \":9200\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-reloaded:
		if c.Listen != ":9200" {
			t.Errorf("reloaded Listen = %q", c.Listen)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not picked up")
	}
}
