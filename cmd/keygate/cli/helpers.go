package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/keygate/keygate/internal/auth"
	"github.com/keygate/keygate/internal/config"
	"github.com/keygate/keygate/internal/service"
	"github.com/keygate/keygate/internal/store"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from the --data-dir flag,
// the KEYGATE_DATA_DIR env var, or ~/.keygate as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("KEYGATE_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.keygate"
}

// loadConfig loads the effective configuration: the YAML file when one is
// found, defaults otherwise, with env overrides (KEYGATE_AUTH_JWT_SECRET and
// friends) applied on top via viper.
func loadConfig() (*config.YAMLConfig, error) {
	cfg := config.Default()

	if path := viper.ConfigFileUsed(); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if secret := viper.GetString("auth.jwt_secret"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if driver := viper.GetString("store.driver"); driver != "" {
		cfg.Store.Driver = driver
	}
	if dsn := viper.GetString("store.dsn"); dsn != "" {
		cfg.Store.DSN = dsn
	}
	if cfg.Store.Driver == "sqlite" && cfg.Store.DataDir == "" {
		cfg.Store.DataDir = resolveDataDir()
	}

	return cfg, nil
}

// app bundles the wired components behind the CLI commands.
type app struct {
	cfg      *config.YAMLConfig
	store    *store.Store
	auth     *service.AuthService
	keys     *service.APIKeyService
	resolver *service.Resolver
	logger   *slog.Logger
}

// buildApp wires the store, hasher, token issuer, and services from config.
// Callers must Close the returned app.
func buildApp(logger *slog.Logger) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	st, err := store.New(store.Config{
		Driver:  cfg.Store.Driver,
		DSN:     cfg.Store.DSN,
		DataDir: cfg.Store.DataDir,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	hasher, err := auth.NewPasswordHasher(auth.ScryptParams{
		N:      cfg.Auth.ScryptN,
		R:      cfg.Auth.ScryptR,
		P:      cfg.Auth.ScryptP,
		KeyLen: cfg.Auth.ScryptKeyLen,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("configure password hasher: %w", err)
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		logger.Warn("no JWT secret configured, using an insecure development default; set KEYGATE_AUTH_JWT_SECRET")
		secret = "keygate-dev-secret-change-me"
	}

	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:    secret,
		Algorithm: cfg.Auth.JWTAlgorithm,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("configure token issuer: %w", err)
	}

	authSvc := service.NewAuthService(st, hasher, issuer, service.AuthConfig{
		AccessTokenTTL:  config.Duration(cfg.Auth.AccessTokenTTL, 0),
		RefreshTokenTTL: config.Duration(cfg.Auth.RefreshTokenTTL, 0),
	}, logger)
	keySvc := service.NewAPIKeyService(st, cfg.Auth.APIKeyPrefix, logger)
	resolver := service.NewResolver(issuer, keySvc, st, logger)

	return &app{
		cfg:      cfg,
		store:    st,
		auth:     authSvc,
		keys:     keySvc,
		resolver: resolver,
		logger:   logger,
	}, nil
}

// Close releases the app's store connection.
func (a *app) Close() {
	a.store.Close()
}

// newLogger builds the process logger from the logging config.
func newLogger(level, format string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
