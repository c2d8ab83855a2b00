package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment variables.
// Priority (highest to lowest): env vars > config file > defaults.
// This is an ambient convenience for deployments that want file/env
// driven config; calling Engine's Set* methods directly works without
// it.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("REACTORCRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("reactorcrawl")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".reactorcrawl"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	return Load(path)
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("engine.total_connections", cfg.Engine.TotalConnections)
	v.SetDefault("engine.host_connections", cfg.Engine.HostConnections)
	v.SetDefault("engine.buffer_size", cfg.Engine.BufferSize)
	v.SetDefault("engine.timeout", cfg.Engine.Timeout)
	v.SetDefault("engine.delay_exit", cfg.Engine.DelayExit)
	v.SetDefault("engine.max_body_size", cfg.Engine.MaxBodySize)
	v.SetDefault("engine.user_agent", cfg.Engine.UserAgent)
	v.SetDefault("engine.verify_tls", cfg.Engine.VerifyTLS)
	v.SetDefault("engine.follow_redirects", cfg.Engine.FollowRedirects)
	v.SetDefault("engine.max_redirects", cfg.Engine.MaxRedirects)
	v.SetDefault("engine.multiplexing", cfg.Engine.Multiplexing)
	v.SetDefault("engine.show_request_info", cfg.Engine.ShowRequestInfo)

	v.SetDefault("pool.capacity", cfg.Pool.Capacity)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}
