// Package config loads launcher-wide configuration with viper into a
// nested mapstructure-tagged tree.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// HTTPConfig controls the HTTP & I/O fabric (spec §4.B).
type HTTPConfig struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	HTTPConcurrency   int           `mapstructure:"http_concurrency"`
	IOConcurrency     int           `mapstructure:"io_concurrency"`
	KeepAliveTimeout  time.Duration `mapstructure:"keep_alive_timeout"`
	UserAgentProduct  string        `mapstructure:"user_agent_product"`
	UserAgentVersion  string        `mapstructure:"user_agent_version"`
}

// ProvidersConfig holds provider adapter credentials (spec §4.E).
type ProvidersConfig struct {
	CurseForgeAPIKey string `mapstructure:"curseforge_api_key"`
}

// TelemetryConfig holds the telemetry opt-in fields; the telemetry
// pipeline itself is out of scope (spec §1 Non-goals), but the opt-in
// flag is ambient configuration state the core must not lose.
type TelemetryConfig struct {
	Enabled *bool `mapstructure:"enabled"`
	Asked   bool  `mapstructure:"asked"`
}

// AuthConfig holds MSA auth settings (spec §4.J). Only ClientID is read
// (by cmd/onelauncher); RetryCount and RetryDelay are loaded but nothing
// reads them, and the auth client uses its own fixed retry count and
// delay.
type AuthConfig struct {
	ClientID    string        `mapstructure:"client_id"`
	RetryCount  int           `mapstructure:"retry_count"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

// IngressConfig holds the shutdown draining timeout (spec §4.L, §5).
// It is loaded but no caller passes it to Bus.Shutdown.
type IngressConfig struct {
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Ingress   IngressConfig   `mapstructure:"ingress"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.request_timeout", 30*time.Second)
	v.SetDefault("http.http_concurrency", 7)
	v.SetDefault("http.io_concurrency", 0)
	v.SetDefault("http.keep_alive_timeout", 15*time.Second)
	v.SetDefault("http.user_agent_product", "OneLauncher")
	v.SetDefault("http.user_agent_version", "dev")

	v.SetDefault("auth.client_id", "00000000-0000-0000-0000-000000000000")
	v.SetDefault("auth.retry_count", 5)
	v.SetDefault("auth.retry_delay", 250*time.Millisecond)

	v.SetDefault("ingress.shutdown_timeout", 10*time.Second)

	v.SetDefault("telemetry.asked", false)
}

// Load reads configuration from <configDir>/config.yaml, environment
// variables prefixed ONELAUNCHER_, and falls back to built-in defaults
// for anything unset — it never errors for a missing file.
func Load(configDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("ONELAUNCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config back to <configDir>/config.yaml.
func Save(configDir string, cfg *Config) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}
	v := viper.New()
	v.SetConfigFile(filepath.Join(configDir, "config.yaml"))
	v.Set("http", cfg.HTTP)
	v.Set("providers", cfg.Providers)
	v.Set("telemetry", cfg.Telemetry)
	v.Set("auth", cfg.Auth)
	v.Set("ingress", cfg.Ingress)
	return v.WriteConfig()
}

func (c *Config) IsTelemetryEnabled() bool {
	if c.Telemetry.Enabled == nil {
		return false
	}
	return *c.Telemetry.Enabled
}
