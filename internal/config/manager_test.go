package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestManagerLoadAndReload(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path, zerolog.Nop())
	cfg, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Broadcast.Workers != 2 {
		t.Fatalf("workers = %d, want 2", cfg.Broadcast.Workers)
	}

	var published *Config
	m.Subscribe(func(c *Config) { published = c })

	// A committed edit updates Current and notifies subscribers.
	edited := strings.Replace(validYAML, "workers: 2", "workers: 8", 1)
	if err := os.WriteFile(path, []byte(edited), 0o600); err != nil {
		t.Fatal(err)
	}
	m.reload()
	if published == nil || published.Broadcast.Workers != 8 {
		t.Fatalf("published = %+v, want workers 8", published)
	}
	if m.Current().Broadcast.Workers != 8 {
		t.Fatal("Current not updated after reload")
	}

	// An invalid edit is dropped; the previous config stays committed.
	published = nil
	broken := strings.Replace(validYAML, `token: "123:abc"`, `token: ""`, 1)
	if err := os.WriteFile(path, []byte(broken), 0o600); err != nil {
		t.Fatal(err)
	}
	m.reload()
	if published != nil {
		t.Fatal("invalid config was published")
	}
	if m.Current().Broadcast.Workers != 8 {
		t.Fatal("invalid reload clobbered committed config")
	}
}

func TestManagerReloadUnchangedContent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	m := NewManager(path, zerolog.Nop())
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}

	calls := 0
	m.Subscribe(func(*Config) { calls++ })
	// Same bytes: editors often emit several write events per save.
	m.reload()
	m.reload()
	if calls != 0 {
		t.Fatalf("unchanged content published %d times", calls)
	}
}
