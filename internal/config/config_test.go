package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8080 {
		t.Errorf("Port: got %d", cfg.Server.Port)
	}
	if cfg.Auth.JWTSecret != "" {
		t.Error("JWT secret must have no default")
	}
	if cfg.Auth.JWTAlgorithm != "HS256" {
		t.Errorf("JWTAlgorithm: got %q", cfg.Auth.JWTAlgorithm)
	}
	if cfg.Auth.APIKeyPrefix != "kg" {
		t.Errorf("APIKeyPrefix: got %q", cfg.Auth.APIKeyPrefix)
	}
	if cfg.Auth.ScryptN != 1<<14 {
		t.Errorf("ScryptN: got %d", cfg.Auth.ScryptN)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("Store.Driver: got %q", cfg.Store.Driver)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("KEYGATE_TEST_SECRET", "from-the-environment")

	path := filepath.Join(t.TempDir(), "keygate.yaml")
	content := `
server:
  port: 9999
auth:
  jwt_secret: ${KEYGATE_TEST_SECRET}
  access_token_ttl: 15m
store:
  driver: postgres
  dsn: postgres://localhost/keygate
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Port: got %d", cfg.Server.Port)
	}
	if cfg.Auth.JWTSecret != "from-the-environment" {
		t.Errorf("JWTSecret: got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.AccessTokenTTL != "15m" {
		t.Errorf("AccessTokenTTL: got %q", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Store.Driver != "postgres" {
		t.Errorf("Store.Driver: got %q", cfg.Store.Driver)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Auth.APIKeyHeader != "X-API-Key" {
		t.Errorf("APIKeyHeader: got %q", cfg.Auth.APIKeyHeader)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keygate.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Auth.APIKeyPrefix != "kg" {
		t.Errorf("round-trip lost defaults: %+v", cfg)
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("15m", time.Hour); got != 15*time.Minute {
		t.Errorf("got %v", got)
	}
	if got := Duration("", time.Hour); got != time.Hour {
		t.Errorf("empty: got %v", got)
	}
	if got := Duration("bogus", time.Hour); got != time.Hour {
		t.Errorf("malformed: got %v", got)
	}
}
