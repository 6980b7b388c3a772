// Package telemetry provides OpenTelemetry instrumentation for focusd.
package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/focusd/internal/config"
)

// Exporter names accepted by Config.Exporter.
const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
)

// Config holds telemetry configuration. It is decoded from the "telemetry"
// section of the focusd config file.
type Config struct {
	// Enabled turns on trace and push-metric export.
	Enabled bool `koanf:"enabled"`
	// Exporter is "otlp" (collector) or "stdout" (pretty JSON on stderr).
	Exporter string `koanf:"exporter"`
	Endpoint string `koanf:"endpoint"`
	// Protocol is "grpc" or "http/protobuf" for the otlp exporter.
	Protocol       string         `koanf:"protocol"`
	ServiceName    string         `koanf:"service_name"`
	ServiceVersion string         `koanf:"service_version"`
	Insecure       bool           `koanf:"insecure"`
	TLSSkipVerify  bool           `koanf:"tls_skip_verify"`
	Sampling       SamplingConfig `koanf:"sampling"`
	Metrics        MetricsConfig  `koanf:"metrics"`
	Shutdown       ShutdownConfig `koanf:"shutdown"`
}

// SamplingConfig controls trace sampling behavior.
type SamplingConfig struct {
	Rate float64 `koanf:"rate"`
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	Enabled        bool            `koanf:"enabled"`
	ExportInterval config.Duration `koanf:"export_interval"`
	// Prometheus registers a pull reader served on the HTTP /metrics
	// endpoint. It works even when Enabled is false.
	Prometheus bool `koanf:"prometheus"`
}

// ShutdownConfig controls graceful shutdown behavior.
type ShutdownConfig struct {
	Timeout config.Duration `koanf:"timeout"`
}

// NewDefaultConfig returns telemetry defaults. Export is off until a
// collector is configured; the Prometheus reader is on.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		Exporter:       ExporterOTLP,
		Endpoint:       "localhost:4317",
		Protocol:       "grpc",
		ServiceName:    "focusd",
		ServiceVersion: "0.1.0",
		Insecure:       true,
		Sampling: SamplingConfig{
			Rate: 1.0,
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			ExportInterval: config.Duration(15 * time.Second),
			Prometheus:     true,
		},
		Shutdown: ShutdownConfig{
			Timeout: config.Duration(5 * time.Second),
		},
	}
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.Shutdown.Timeout.Duration() <= 0 {
		return fmt.Errorf("shutdown.timeout must be positive")
	}
	if !c.Enabled {
		return nil
	}

	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required when telemetry is enabled")
	}
	if c.ServiceVersion == "" {
		return fmt.Errorf("service_version is required when telemetry is enabled")
	}

	switch c.Exporter {
	case ExporterStdout:
	case ExporterOTLP:
		if c.Endpoint == "" {
			return fmt.Errorf("endpoint is required for the otlp exporter")
		}
		if c.Protocol != "grpc" && c.Protocol != "http/protobuf" {
			return fmt.Errorf("protocol must be 'grpc' or 'http/protobuf', got %q", c.Protocol)
		}
		if c.Insecure && !c.isLocalEndpoint() {
			return fmt.Errorf("insecure connections to remote endpoints are not allowed; set insecure=false or use a local endpoint")
		}
	default:
		return fmt.Errorf("unknown exporter %q (want otlp or stdout)", c.Exporter)
	}

	if c.Sampling.Rate < 0 || c.Sampling.Rate > 1 {
		return fmt.Errorf("sampling.rate must be between 0 and 1, got %f", c.Sampling.Rate)
	}
	if c.Metrics.Enabled && c.Metrics.ExportInterval.Duration() <= 0 {
		return fmt.Errorf("metrics.export_interval must be positive when metrics enabled")
	}

	return nil
}

// isLocalEndpoint reports whether the endpoint host is a loopback address.
func (c *Config) isLocalEndpoint() bool {
	host := stripScheme(c.Endpoint)

	if strings.HasPrefix(host, "[") {
		if idx := strings.Index(host, "]"); idx != -1 {
			host = host[1:idx]
		}
	} else if strings.Count(host, ":") == 1 {
		host = host[:strings.LastIndex(host, ":")]
	}

	return host == "localhost" ||
		host == "::1" ||
		strings.HasPrefix(host, "127.")
}
