// Package config provides configuration loading for focusd.
//
// Configuration is layered: hardcoded defaults, then an optional YAML file,
// then FOCUSD_* environment variables. Sections owned by other packages
// (logging, telemetry) are decoded on demand through Config.Section.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/knadh/koanf/v2"
)

// Config holds the complete focusd configuration.
type Config struct {
	Server ServerConfig `koanf:"server"`
	MCP    MCPConfig    `koanf:"mcp"`
	Bridge BridgeConfig `koanf:"bridge"`
	Batch  BatchConfig  `koanf:"batch"`
	Events EventsConfig `koanf:"events"`

	// k retains the merged tree so other packages can decode their sections.
	k *koanf.Koanf
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	HTTPEnabled     bool          `koanf:"http_enabled"`
	Host            string        `koanf:"http_host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MCPConfig holds the MCP server identity.
type MCPConfig struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
}

// BridgeConfig selects and tunes the automation bridge.
type BridgeConfig struct {
	// Kind is "osascript" (OmniFocus via JXA) or "memory" (in-process fake).
	Kind          string        `koanf:"kind"`
	OSAScriptPath string        `koanf:"osascript_path"`
	Application   string        `koanf:"application"`
	CallTimeout   time.Duration `koanf:"call_timeout"`
	// MinInterval is the minimum gap between two bridge calls.
	MinInterval time.Duration `koanf:"min_interval"`
	// Serialize forces one bridge call at a time across concurrent batches.
	Serialize bool `koanf:"serialize"`
}

// BatchConfig bounds batch requests.
type BatchConfig struct {
	MaxOperations  int           `koanf:"max_operations"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// EventsConfig configures batch lifecycle events on NATS.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	Token         Secret `koanf:"token"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// Default returns configuration with every field set to its default.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPEnabled:     false,
			Host:            "localhost",
			Port:            9191,
			ShutdownTimeout: 10 * time.Second,
		},
		MCP: MCPConfig{
			Name:    "focusd",
			Version: "0.1.0",
		},
		Bridge: BridgeConfig{
			Kind:          "osascript",
			OSAScriptPath: "/usr/bin/osascript",
			Application:   "OmniFocus",
			CallTimeout:   60 * time.Second,
			MinInterval:   50 * time.Millisecond,
			Serialize:     true,
		},
		Batch: BatchConfig{
			MaxOperations:  200,
			RequestTimeout: 10 * time.Minute,
		},
		Events: EventsConfig{
			Enabled:       false,
			URL:           "nats://localhost:4222",
			SubjectPrefix: "focusd.batches",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.HTTPEnabled {
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port))
		}
		if c.Server.ShutdownTimeout <= 0 {
			errs = append(errs, errors.New("shutdown timeout must be positive"))
		}
	}

	if c.MCP.Name == "" {
		errs = append(errs, errors.New("mcp name is required"))
	}

	switch c.Bridge.Kind {
	case "osascript":
		if c.Bridge.OSAScriptPath == "" {
			errs = append(errs, errors.New("bridge osascript_path is required for the osascript bridge"))
		}
		if c.Bridge.Application == "" {
			errs = append(errs, errors.New("bridge application is required for the osascript bridge"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown bridge kind %q (want osascript or memory)", c.Bridge.Kind))
	}
	if c.Bridge.CallTimeout <= 0 {
		errs = append(errs, errors.New("bridge call_timeout must be positive"))
	}
	if c.Bridge.MinInterval < 0 {
		errs = append(errs, errors.New("bridge min_interval cannot be negative"))
	}

	if c.Batch.MaxOperations < 1 {
		errs = append(errs, fmt.Errorf("batch max_operations must be >= 1, got %d", c.Batch.MaxOperations))
	}
	if c.Batch.RequestTimeout <= 0 {
		errs = append(errs, errors.New("batch request_timeout must be positive"))
	}

	if c.Events.Enabled {
		if c.Events.URL == "" {
			errs = append(errs, errors.New("events url is required when events are enabled"))
		}
		if c.Events.SubjectPrefix == "" {
			errs = append(errs, errors.New("events subject_prefix is required when events are enabled"))
		}
	}

	return errors.Join(errs...)
}

// Section decodes the named subtree of the merged configuration into out.
// Fields absent from the file and environment keep the values already in out,
// so callers pass a struct pre-filled with their own defaults.
func (c *Config) Section(path string, out interface{}) error {
	if c.k == nil || !c.k.Exists(path) {
		return nil
	}
	if err := c.k.Unmarshal(path, out); err != nil {
		return fmt.Errorf("decode %s config: %w", path, err)
	}
	return nil
}
