// Package config holds the optional configuration surface for the
// fetch engine. The engine's Go API (root package) is fully usable
// without ever touching this package — every Engine option here is a
// New parameter or has a Set* method on Engine, except MaxBodySize,
// which only NewFromConfig applies — but a deployment that wants to
// configure a crawl from a file or environment variables can load a
// Config here and apply it in one call, grounded on the teacher's
// internal/config/config.go.
package config

import "time"

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for a fetch engine instance.
type Config struct {
	Engine  EngineConfig  `mapstructure:"engine"  yaml:"engine"`
	Pool    PoolConfig    `mapstructure:"pool"    yaml:"pool"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// EngineConfig controls the crawl engine's concurrency and timing,
// mirroring the constructor parameters of original_source's Async
// class (total_connection, total_host_connection, buffer size,
// timeout) plus the shutdown grace period.
type EngineConfig struct {
	TotalConnections int           `mapstructure:"total_connections" yaml:"total_connections"`
	HostConnections  int           `mapstructure:"host_connections"  yaml:"host_connections"`
	BufferSize       int           `mapstructure:"buffer_size"       yaml:"buffer_size"`
	Timeout          time.Duration `mapstructure:"timeout"           yaml:"timeout"`
	DelayExit        time.Duration `mapstructure:"delay_exit"        yaml:"delay_exit"`
	MaxBodySize      int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	UserAgent        string        `mapstructure:"user_agent"        yaml:"user_agent"`
	VerifyTLS        bool          `mapstructure:"verify_tls"        yaml:"verify_tls"`
	FollowRedirects  bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects     int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	Multiplexing     bool          `mapstructure:"multiplexing"      yaml:"multiplexing"`
	ShowRequestInfo  bool          `mapstructure:"show_request_info" yaml:"show_request_info"`
}

// PoolConfig describes the request handle pool. Validate checks
// Capacity, but NewFromConfig does not read it: the pool is sized by
// Engine.TotalConnections.
type PoolConfig struct {
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
}

// LoggingConfig describes slog output settings. Validate checks them,
// but NewFromConfig does not read them: the engine logs through the
// *slog.Logger passed to it.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns a Config matching original_source's Async
// default constructor arguments (tc=10, hc=10, bz=1024, tm=50000) and
// CurlEasyHandle's defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			TotalConnections: 10,
			HostConnections:  10,
			BufferSize:       1024,
			Timeout:          50 * time.Second,
			DelayExit:        0,
			MaxBodySize:      2 * 1024 * 1024,
			UserAgent:        "Scraper / 1.1",
			VerifyTLS:        false,
			FollowRedirects:  true,
			MaxRedirects:     1,
			Multiplexing:     true,
			ShowRequestInfo:  true,
		},
		Pool: PoolConfig{
			Capacity: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
