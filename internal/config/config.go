// Package config loads client configuration from the environment, with
// an optional YAML overlay.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the client and CLI.
type Config struct {
	// APIURL is the backend base URL.
	APIURL string `env:"TIERDASH_API_URL,default=http://localhost:8000" yaml:"api_url"`
	// Timeout bounds each request attempt.
	Timeout time.Duration `env:"TIERDASH_TIMEOUT,default=30s" yaml:"timeout"`

	// CredentialsFile is the path of the file-backed session store.
	// Empty selects ~/.tierdash/credentials.json.
	CredentialsFile string `env:"TIERDASH_CREDENTIALS_FILE,default=" yaml:"credentials_file"`

	// RedisAddr, when set, selects the redis-backed session store.
	RedisAddr     string `env:"TIERDASH_REDIS_ADDR,default=" yaml:"redis_addr"`
	RedisPassword string `env:"TIERDASH_REDIS_PASSWORD,default=" yaml:"redis_password"`
	RedisDB       int    `env:"TIERDASH_REDIS_DB,default=0" yaml:"redis_db"`

	// MaxRetries is the retry budget for transient failures.
	MaxRetries int `env:"TIERDASH_MAX_RETRIES,default=2" yaml:"max_retries"`
	// BreakerThreshold, when positive, enables the circuit breaker and
	// sets its consecutive-failure threshold.
	BreakerThreshold int `env:"TIERDASH_BREAKER_THRESHOLD,default=0" yaml:"breaker_threshold"`
	// RequestsPerSecond enables client-side rate limiting when positive.
	RequestsPerSecond float64 `env:"TIERDASH_REQUESTS_PER_SECOND,default=0" yaml:"requests_per_second"`

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `env:"TIERDASH_LOG_LEVEL,default=info" yaml:"log_level"`
}

// FromEnv reads configuration from environment variables.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return &cfg, nil
}

// Load reads configuration from the environment, then overlays values
// set in the YAML file at path (when non-empty). File values win for the
// fields they set.
func Load(path string) (*Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// CredentialsPath resolves the credentials file, defaulting under the
// user's home directory.
func (c *Config) CredentialsPath() (string, error) {
	if c.CredentialsFile != "" {
		return c.CredentialsFile, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".tierdash", "credentials.json"), nil
}
