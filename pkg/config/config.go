// Package config defines the daemon configuration and its TOML file format.
// Command line flags override file values; see cmd/tarpitd.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the top level daemon configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Tarpit   TarpitConfig   `toml:"tarpit"`
	PrivDrop PrivDropConfig `toml:"privdrop"`
	Status   StatusConfig   `toml:"status"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig contains the listening surface.
type ServerConfig struct {
	// Listen is the set of addresses to bind; at least one is required.
	Listen []string `toml:"listen"`
	// Threads optionally caps GOMAXPROCS. Zero leaves the runtime alone.
	Threads int `toml:"threads"`
}

// TarpitConfig tunes the engine.
type TarpitConfig struct {
	MaxClients     int64 `toml:"maxClients"`
	DelaySeconds   int   `toml:"delay"`
	TimeoutSeconds int   `toml:"timeout"`
	// Banner selects the noise source: "verse" or "random".
	Banner string `toml:"banner"`
	// Drain lets sessions end naturally on shutdown instead of
	// cancelling them.
	Drain bool `toml:"drain"`
}

// PrivDropConfig is forwarded verbatim to the privilege drop step.
type PrivDropConfig struct {
	User   string `toml:"user"`
	Group  string `toml:"group"`
	Chroot string `toml:"chroot"`
}

// StatusConfig configures the optional HTTP status/metrics listener.
type StatusConfig struct {
	Addr string `toml:"addr"`
	// GeoIPDatabase optionally enriches peer events with country data.
	GeoIPDatabase string `toml:"geoipDatabase"`
}

// LoggingConfig contains log output configuration.
type LoggingConfig struct {
	// Format is "text" or "json".
	Format string `toml:"format"`
	// DisableTimestamps strips timestamps, for journald-style collectors
	// that stamp lines themselves.
	DisableTimestamps bool `toml:"disableTimestamps"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen: []string{"0.0.0.0:2222"},
		},
		Tarpit: TarpitConfig{
			MaxClients:     4096,
			DelaySeconds:   10,
			TimeoutSeconds: 30,
			Banner:         "verse",
		},
		Logging: LoggingConfig{
			Format: "text",
		},
	}
}

// Load reads a TOML file over the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot serve.
func (c *Config) Validate() error {
	if len(c.Server.Listen) == 0 {
		return fmt.Errorf("at least one listen address is required")
	}
	if c.Tarpit.MaxClients <= 0 {
		return fmt.Errorf("maxClients must be positive")
	}
	if c.Tarpit.DelaySeconds <= 0 {
		return fmt.Errorf("delay must be positive")
	}
	if c.Tarpit.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	switch c.Tarpit.Banner {
	case "verse", "random":
	default:
		return fmt.Errorf("unknown banner source %q", c.Tarpit.Banner)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}
