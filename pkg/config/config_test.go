package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dobrevit/tarpitd/pkg/config"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := config.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if len(cfg.Server.Listen) != 1 || cfg.Server.Listen[0] != "0.0.0.0:2222" {
		t.Errorf("unexpected default listen: %v", cfg.Server.Listen)
	}
	if cfg.Tarpit.MaxClients != 4096 || cfg.Tarpit.DelaySeconds != 10 || cfg.Tarpit.TimeoutSeconds != 30 {
		t.Errorf("unexpected tarpit defaults: %+v", cfg.Tarpit)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tarpitd.toml")
	data := `
[server]
listen = ["127.0.0.1:2222", "[::1]:2222"]
threads = 4

[tarpit]
maxClients = 128
delay = 2
timeout = 5
banner = "random"
drain = true

[privdrop]
user = "nobody"
chroot = "/var/empty"

[status]
addr = "127.0.0.1:9090"

[logging]
format = "json"
disableTimestamps = true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if len(cfg.Server.Listen) != 2 {
		t.Errorf("listen = %v, want two addresses", cfg.Server.Listen)
	}
	if cfg.Server.Threads != 4 {
		t.Errorf("threads = %d, want 4", cfg.Server.Threads)
	}
	if cfg.Tarpit.MaxClients != 128 || cfg.Tarpit.DelaySeconds != 2 || cfg.Tarpit.TimeoutSeconds != 5 {
		t.Errorf("tarpit = %+v", cfg.Tarpit)
	}
	if cfg.Tarpit.Banner != "random" || !cfg.Tarpit.Drain {
		t.Errorf("tarpit = %+v", cfg.Tarpit)
	}
	if cfg.PrivDrop.User != "nobody" || cfg.PrivDrop.Chroot != "/var/empty" {
		t.Errorf("privdrop = %+v", cfg.PrivDrop)
	}
	if cfg.Status.Addr != "127.0.0.1:9090" {
		t.Errorf("status = %+v", cfg.Status)
	}
	if cfg.Logging.Format != "json" || !cfg.Logging.DisableTimestamps {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"no listeners", func(c *config.Config) { c.Server.Listen = nil }},
		{"zero ceiling", func(c *config.Config) { c.Tarpit.MaxClients = 0 }},
		{"negative delay", func(c *config.Config) { c.Tarpit.DelaySeconds = -1 }},
		{"zero timeout", func(c *config.Config) { c.Tarpit.TimeoutSeconds = 0 }},
		{"unknown banner", func(c *config.Config) { c.Tarpit.Banner = "sonnet" }},
		{"unknown log format", func(c *config.Config) { c.Logging.Format = "xml" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted a bad config")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("Load of a missing file did not fail")
	}
}
