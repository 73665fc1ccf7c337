package shared

import (
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// EncryptionKeyEnv overrides [SecurityConfig.EncryptionKey] when set.
const EncryptionKeyEnv = "TUNELINK_ENCRYPTION_KEY"

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Security    SecurityConfig    `toml:"security"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Providers   ProvidersConfig   `toml:"providers"`
}

// CredentialsConfig contains provider OAuth client credentials.
type CredentialsConfig struct {
	Spotify    OAuthClientConfig `toml:"spotify"`
	SoundCloud OAuthClientConfig `toml:"soundcloud"`
}

// OAuthClientConfig contains one provider's OAuth client registration.
type OAuthClientConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// Configured reports whether both client id and secret are present.
func (c OAuthClientConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// SecurityConfig holds the token encryption key and OAuth state settings.
type SecurityConfig struct {
	EncryptionKey string        `toml:"encryption_key"`
	StateTTL      time.Duration `toml:"state_ttl"`
	StateStore    string        `toml:"state_store"` // memory or sqlite
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ProvidersConfig tunes outbound provider HTTP clients and token refresh.
type ProvidersConfig struct {
	RequestTimeout time.Duration `toml:"request_timeout"`
	RateLimit      float64       `toml:"rate_limit"`
	RefreshBuffer  time.Duration `toml:"refresh_buffer"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyEnv()
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.applyEnv()
	return &config
}

func (c *Config) applyEnv() {
	if key := os.Getenv(EncryptionKeyEnv); key != "" {
		c.Security.EncryptionKey = key
	}
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ParseEncryptionKey decodes a 64 character hex key into its 32 raw bytes.
//
// An empty key or an all-zero key is rejected so the vault never runs unkeyed.
func ParseEncryptionKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrMissingEncryptionKey
	}
	if len(s) != 64 {
		return nil, fmt.Errorf("%w: got %d characters", ErrInvalidEncryptionKey, len(s))
	}

	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncryptionKey, err)
	}

	for _, b := range key {
		if b != 0 {
			return key, nil
		}
	}
	return nil, fmt.Errorf("%w: key is all zeros", ErrInvalidEncryptionKey)
}
