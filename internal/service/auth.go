// Package service implements the credential orchestration layer: user
// registration and login, refresh-token rotation, the API key lifecycle,
// and the resolution of inbound credentials into principals.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/keygate/keygate/internal/auth"
	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/store"
)

const minPasswordLen = 8

// AuthConfig carries the token lifetimes used when minting pairs.
type AuthConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// RegisterInput is the payload for AuthService.Register.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     model.Role // defaults to RoleUser
}

// LoginResult bundles the authenticated principal with its freshly minted
// token pair.
type LoginResult struct {
	User   model.Principal `json:"user"`
	Tokens model.TokenPair `json:"tokens"`
}

// AuthService orchestrates registration, login, and refresh rotation on top
// of the password hasher, the token issuer, and the credential store.
type AuthService struct {
	store  CredentialStore
	hasher *auth.PasswordHasher
	tokens *auth.TokenIssuer
	cfg    AuthConfig
	logger *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(cs CredentialStore, hasher *auth.PasswordHasher, tokens *auth.TokenIssuer, cfg AuthConfig, logger *slog.Logger) *AuthService {
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = 30 * time.Minute
	}
	if cfg.RefreshTokenTTL == 0 {
		cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	return &AuthService{
		store:  cs,
		hasher: hasher,
		tokens: tokens,
		cfg:    cfg,
		logger: logger,
	}
}

// Register creates a new user account. It fails with ErrConflict when the
// username or email is already taken, and ErrValidation for malformed input.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.Principal, error) {
	if err := validateRegister(in); err != nil {
		return nil, err
	}

	if _, err := s.store.GetUserByUsername(ctx, in.Username); err == nil {
		return nil, fmt.Errorf("%w: username already registered", ErrConflict)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check username: %w", err)
	}

	if _, err := s.store.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", ErrConflict)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := in.Role
	if role == "" {
		role = model.RoleUser
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	principal := user.Principal()
	return &principal, nil
}

// Login authenticates a username/password pair and mints a token pair. An
// unknown username and a wrong password both fail with the same generic
// ErrUnauthorized: the caller must not be able to tell which check failed.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("login failed: unknown username", "username", username)
			return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logger.Warn("login failed: password mismatch", "user_id", user.ID)
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	tokens, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("login succeeded", "user_id", user.ID)
	return &LoginResult{User: user.Principal(), Tokens: *tokens}, nil
}

// Refresh verifies a refresh token and rotates it: a successful call always
// issues both a new access token and a new refresh token. Verification is
// stateless, so the presented token is not recorded as spent; it remains
// replayable until its own expiry. That is a deliberate tradeoff for
// keeping no server-side token state.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		s.logger.Warn("refresh failed: token verification", "reason", err)
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	if claims.TokenType != auth.RefreshTokenType {
		s.logger.Warn("refresh failed: wrong token type", "token_type", claims.TokenType)
		return nil, fmt.Errorf("%w: invalid token type", ErrUnauthorized)
	}

	userID, err := auth.Subject(claims.Subject)
	if err != nil {
		s.logger.Warn("refresh failed: bad subject claim", "reason", err)
		return nil, fmt.Errorf("%w: invalid token payload", ErrUnauthorized)
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("refresh failed: user not found", "user_id", userID)
			return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		s.logger.Warn("refresh failed: inactive user", "user_id", userID)
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	tokens, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("token pair rotated", "user_id", user.ID)
	return tokens, nil
}

func (s *AuthService) issuePair(user *model.User) (*model.TokenPair, error) {
	access, err := s.tokens.CreateAccessToken(user.Principal(), s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}
	refresh, err := s.tokens.CreateRefreshToken(user.ID, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}
	return &model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

func validateRegister(in RegisterInput) error {
	if strings.TrimSpace(in.Username) == "" {
		return fmt.Errorf("%w: username must not be empty", ErrValidation)
	}
	if !strings.Contains(in.Email, "@") {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if len(in.Password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}
	return nil
}
