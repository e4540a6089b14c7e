// Package config loads the keygate YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the top-level keygate configuration file.
type YAMLConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host               string     `yaml:"host"`
	Port               int        `yaml:"port"`
	ShutdownTimeout    string     `yaml:"shutdown_timeout"`
	LoginRatePerMinute int        `yaml:"login_rate_per_minute"`
	CORS               CORSConfig `yaml:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// AuthConfig controls credential settings: the JWT signing secret and
// algorithm, token lifetimes, the API key header and prefix, and the scrypt
// cost parameters for new password hashes.
type AuthConfig struct {
	JWTSecret       string `yaml:"jwt_secret"`
	JWTAlgorithm    string `yaml:"jwt_algorithm"`
	AccessTokenTTL  string `yaml:"access_token_ttl"`
	RefreshTokenTTL string `yaml:"refresh_token_ttl"`
	APIKeyHeader    string `yaml:"api_key_header"`
	APIKeyPrefix    string `yaml:"api_key_prefix"`
	ScryptN         int    `yaml:"scrypt_n"`
	ScryptR         int    `yaml:"scrypt_r"`
	ScryptP         int    `yaml:"scrypt_p"`
	ScryptKeyLen    int    `yaml:"scrypt_dklen"`
}

// StoreConfig selects the credential store backend.
type StoreConfig struct {
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
	DataDir string `yaml:"data_dir"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses a YAML configuration file. Environment variables
// referenced as ${VAR_NAME} in the file are expanded before parsing, which
// keeps secrets like the JWT signing key out of the file itself.
func Load(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Default returns a YAMLConfig pre-filled with sensible defaults. The JWT
// secret has no default: it must come from the file or the environment.
func Default() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			ShutdownTimeout:    "30s",
			LoginRatePerMinute: 30,
			CORS: CORSConfig{
				Origins: []string{"*"},
			},
		},
		Auth: AuthConfig{
			JWTAlgorithm:    "HS256",
			AccessTokenTTL:  "30m",
			RefreshTokenTTL: "168h",
			APIKeyHeader:    "X-API-Key",
			APIKeyPrefix:    "kg",
			ScryptN:         1 << 14,
			ScryptR:         8,
			ScryptP:         1,
			ScryptKeyLen:    32,
		},
		Store: StoreConfig{
			Driver:  "sqlite",
			DataDir: "./data",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefault writes the default configuration to a YAML file.
func WriteDefault(path string) error {
	cfg := Default()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Duration parses a duration field, falling back to def when the field is
// empty or malformed.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
