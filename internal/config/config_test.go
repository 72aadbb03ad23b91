package config

import (
	"strings"
	"testing"
	"time"
)

const validYAML = `
telegram:
  token: "123:abc"
  admin_id: 42
  poll_timeout: 15s
timezone: Asia/Almaty
policy: sequential
catalog: ./chapters.txt
triggers:
  - at: "08:00"
    action: send
  - at: "21:30"
    action: remind
storage:
  driver: sqlite
  path: ./bot.db
  busy_timeout: 5s
broadcast:
  workers: 2
  rate_per_sec: 5
logging:
  level: debug
  console: true
`

func TestParseValid(t *testing.T) {
	t.Parallel()
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Telegram.AdminID != 42 {
		t.Fatalf("admin_id = %d, want 42", cfg.Telegram.AdminID)
	}
	if cfg.Telegram.PollTimeout.Std() != 15*time.Second {
		t.Fatalf("poll_timeout = %v, want 15s", cfg.Telegram.PollTimeout.Std())
	}
	if len(cfg.Triggers) != 2 || cfg.Triggers[1].Action != "remind" {
		t.Fatalf("triggers = %+v", cfg.Triggers)
	}
	if cfg.Location().String() != "Asia/Almaty" {
		t.Fatalf("location = %v", cfg.Location())
	}
}

func TestParseDefaults(t *testing.T) {
	t.Parallel()
	minimal := `
telegram:
  token: "123:abc"
  admin_id: 42
catalog: ./chapters.txt
`
	cfg, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Policy != "sequential" {
		t.Fatalf("policy default = %q", cfg.Policy)
	}
	if len(cfg.Triggers) != 2 {
		t.Fatalf("trigger defaults = %+v", cfg.Triggers)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path == "" {
		t.Fatalf("storage defaults = %+v", cfg.Storage)
	}
	if cfg.Broadcast.Workers != 4 || cfg.Broadcast.RatePerSec != 10 {
		t.Fatalf("broadcast defaults = %+v", cfg.Broadcast)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("logging default = %+v", cfg.Logging)
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		edit func(string) string
	}{
		{name: "missing token", edit: func(s string) string {
			return strings.Replace(s, `token: "123:abc"`, `token: ""`, 1)
		}},
		{name: "missing admin", edit: func(s string) string {
			return strings.Replace(s, "admin_id: 42", "admin_id: 0", 1)
		}},
		{name: "missing catalog", edit: func(s string) string {
			return strings.Replace(s, "catalog: ./chapters.txt", `catalog: ""`, 1)
		}},
		{name: "bad policy", edit: func(s string) string {
			return strings.Replace(s, "policy: sequential", "policy: psychic", 1)
		}},
		{name: "bad timezone", edit: func(s string) string {
			return strings.Replace(s, "timezone: Asia/Almaty", "timezone: Mars/Olympus", 1)
		}},
		{name: "bad trigger action", edit: func(s string) string {
			return strings.Replace(s, "action: remind", "action: explode", 1)
		}},
		{name: "unknown key", edit: func(s string) string {
			return s + "\nmystery: true\n"
		}},
		{name: "bad duration", edit: func(s string) string {
			return strings.Replace(s, "poll_timeout: 15s", "poll_timeout: soon", 1)
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Parse([]byte(tt.edit(validYAML))); err == nil {
				t.Fatal("Parse succeeded, want error")
			}
		})
	}
}
