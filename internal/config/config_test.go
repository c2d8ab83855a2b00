package config

import "testing"

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestDefaultConfigMatchesSourceConstructorDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Engine.TotalConnections != 10 {
		t.Errorf("expected 10 total connections, got %d", cfg.Engine.TotalConnections)
	}
	if cfg.Engine.HostConnections != 10 {
		t.Errorf("expected 10 host connections, got %d", cfg.Engine.HostConnections)
	}
	if cfg.Engine.BufferSize != 1024 {
		t.Errorf("expected buffer size 1024, got %d", cfg.Engine.BufferSize)
	}
	if cfg.Engine.MaxRedirects != 1 {
		t.Errorf("expected max redirects 1, got %d", cfg.Engine.MaxRedirects)
	}
	if cfg.Engine.VerifyTLS {
		t.Error("expected TLS verification off by default")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"zero total connections", func(c *Config) { c.Engine.TotalConnections = 0 }, true},
		{"too many total connections", func(c *Config) { c.Engine.TotalConnections = 5000 }, true},
		{"zero host connections", func(c *Config) { c.Engine.HostConnections = 0 }, true},
		{"zero buffer size", func(c *Config) { c.Engine.BufferSize = 0 }, true},
		{"negative delay exit", func(c *Config) { c.Engine.DelayExit = -1 }, true},
		{"zero max body size", func(c *Config) { c.Engine.MaxBodySize = 0 }, true},
		{"negative max redirects", func(c *Config) { c.Engine.MaxRedirects = -1 }, true},
		{"zero pool capacity", func(c *Config) { c.Pool.Capacity = 0 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"all defaults", func(c *Config) {}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := Validate(cfg)
			if tc.wantErr && err == nil {
				t.Fatal("expected a validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected no validation error, got %v", err)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	cases := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com", false},
		{"http://example.com/page", false},
		{"ftp://example.com", true},
		{"/just/a/path", true},
		{"https://", true},
	}

	for _, tc := range cases {
		t.Run(tc.url, func(t *testing.T) {
			err := ValidateURL(tc.url)
			if tc.wantErr && err == nil {
				t.Fatalf("expected an error for %q", tc.url)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected no error for %q, got %v", tc.url, err)
			}
		})
	}
}

func TestLoadWithNoConfigFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.TotalConnections != 10 {
		t.Errorf("expected default total connections, got %d", cfg.Engine.TotalConnections)
	}
}
