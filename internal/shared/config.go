package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Client      ClientConfig      `toml:"client"`
	Backend     BackendConfig     `toml:"backend"`
	Store       StoreConfig       `toml:"store"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify application credentials.
//
// The client secret is only read by the backend proxy; the client side only needs the id,
// the registered redirect URI and the scope.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id" env:"ISOCA_SPOTIFY_CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"ISOCA_SPOTIFY_CLIENT_SECRET"`
	RedirectURI  string `toml:"redirect_uri" env:"ISOCA_SPOTIFY_REDIRECT_URI"`
	Scope        string `toml:"scope" env:"ISOCA_SPOTIFY_SCOPE"`
}

// Scopes splits the configured scope string on whitespace.
func (s SpotifyConfig) Scopes() []string {
	return strings.Fields(s.Scope)
}

// ClientConfig contains settings for the web client, CLI and TUI.
type ClientConfig struct {
	BackendURL string        `toml:"backend_url" env:"ISOCA_CLIENT_BACKEND_URL"`
	Host       string        `toml:"host" env:"ISOCA_CLIENT_HOST"`
	Port       int           `toml:"port" env:"ISOCA_CLIENT_PORT"`
	TokenKey   string        `toml:"token_key" env:"ISOCA_CLIENT_TOKEN_KEY"`
	Timeout    time.Duration `toml:"timeout" env:"ISOCA_CLIENT_TIMEOUT"`
}

// Addr returns the host:port the web client listens on.
func (c ClientConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BackendConfig contains settings for the backend proxy.
type BackendConfig struct {
	Host          string  `toml:"host" env:"ISOCA_BACKEND_HOST"`
	Port          int     `toml:"port" env:"ISOCA_BACKEND_PORT"`
	AllowedOrigin string  `toml:"allowed_origin" env:"ISOCA_BACKEND_ALLOWED_ORIGIN"`
	RateLimit     float64 `toml:"rate_limit" env:"ISOCA_BACKEND_RATE_LIMIT"`
	TopLimit      int     `toml:"top_limit" env:"ISOCA_BACKEND_TOP_LIMIT"`
}

// Addr returns the host:port the backend proxy listens on.
func (b BackendConfig) Addr() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

// StoreConfig selects and configures the shared token storage.
type StoreConfig struct {
	Driver       string        `toml:"driver" env:"ISOCA_STORE_DRIVER"`
	Path         string        `toml:"path" env:"ISOCA_STORE_PATH"`
	RedisURL     string        `toml:"redis_url" env:"ISOCA_STORE_REDIS_URL"`
	RedisPrefix  string        `toml:"redis_prefix" env:"ISOCA_STORE_REDIS_PREFIX"`
	PollInterval time.Duration `toml:"poll_interval" env:"ISOCA_STORE_POLL_INTERVAL"`
	MaxOpenConns int           `toml:"max_open_conns" env:"ISOCA_STORE_MAX_OPEN_CONNS"`
	MaxIdleConns int           `toml:"max_idle_conns" env:"ISOCA_STORE_MAX_IDLE_CONNS"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level" env:"ISOCA_LOG_LEVEL"`
}

// ParseLevel returns the configured [log.Level], defaulting to info.
func (l LogConfig) ParseLevel() log.Level {
	level, err := log.ParseLevel(l.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrMissingConfig, err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// ResolveConfig loads path when it exists and falls back to the defaults otherwise,
// then applies environment overrides.
func ResolveConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides configuration values with any ISOCA_* variables set in the environment.
func ApplyEnv(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("%w: parse env: %v", ErrInvalidConfig, err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
