package telemetry

import "github.com/felixgeelhaar/genpod/internal/version"

// Config holds configuration for the tracer
type Config struct {
	// ServiceName is the name of the service
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Environment is the deployment environment (dev, ci, production)
	Environment string

	// Enabled determines whether tracing is enabled.
	// When false, a noop tracer is used
	Enabled bool

	// Endpoint is the OTLP/HTTP collector endpoint (host:port).
	// If empty, spans are recorded but not exported
	Endpoint string

	// SampleRate is the fraction of runs to sample (0.0 to 1.0)
	SampleRate float64
}

// DefaultConfig returns tracing disabled, which is what a CLI run wants unless asked.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "genpod",
		ServiceVersion: version.Version,
		Environment:    "development",
		Enabled:        false,
		SampleRate:     1.0,
	}
}

// FromSettings builds a config from the telemetry.* configuration keys.
func FromSettings(enabled bool, endpoint string) Config {
	cfg := DefaultConfig()
	cfg.Enabled = enabled
	cfg.Endpoint = endpoint
	return cfg
}
