package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Engine.TotalConnections < 1 {
		return fmt.Errorf("engine.total_connections must be >= 1, got %d", cfg.Engine.TotalConnections)
	}
	if cfg.Engine.TotalConnections > 1000 {
		return fmt.Errorf("engine.total_connections must be <= 1000, got %d", cfg.Engine.TotalConnections)
	}
	if cfg.Engine.HostConnections < 1 {
		return fmt.Errorf("engine.host_connections must be >= 1, got %d", cfg.Engine.HostConnections)
	}
	if cfg.Engine.BufferSize <= 0 {
		return fmt.Errorf("engine.buffer_size must be > 0")
	}
	if cfg.Engine.DelayExit < 0 {
		return fmt.Errorf("engine.delay_exit must be >= 0")
	}
	if cfg.Engine.MaxBodySize <= 0 {
		return fmt.Errorf("engine.max_body_size must be > 0")
	}
	if cfg.Engine.MaxRedirects < 0 {
		return fmt.Errorf("engine.max_redirects must be >= 0")
	}

	if cfg.Pool.Capacity < 1 {
		return fmt.Errorf("pool.capacity must be >= 1, got %d", cfg.Pool.Capacity)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

// ValidateURL checks if a URL string is valid for crawling, mirroring
// the teacher's ValidateURL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
