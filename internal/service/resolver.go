package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/keygate/keygate/internal/auth"
	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/store"
)

// Resolver turns an inbound credential — a bearer token or a raw API key —
// into an authenticated principal. Both paths produce the identical
// Principal shape and apply the same inactive-user rejection.
type Resolver struct {
	tokens *auth.TokenIssuer
	keys   *APIKeyService
	store  CredentialStore
	logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(tokens *auth.TokenIssuer, keys *APIKeyService, cs CredentialStore, logger *slog.Logger) *Resolver {
	return &Resolver{
		tokens: tokens,
		keys:   keys,
		store:  cs,
		logger: logger,
	}
}

// ResolveBearer authenticates a bearer access token.
func (r *Resolver) ResolveBearer(ctx context.Context, token string) (*model.Principal, error) {
	claims, err := r.tokens.VerifyAccess(token)
	if err != nil {
		r.logger.Warn("bearer resolution failed: token verification", "reason", err)
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	userID, err := auth.Subject(claims.Subject)
	if err != nil {
		r.logger.Warn("bearer resolution failed: bad subject claim", "reason", err)
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	return r.loadActiveUser(ctx, userID)
}

// ResolveAPIKey authenticates a raw API key.
func (r *Resolver) ResolveAPIKey(ctx context.Context, rawKey string) (*model.Principal, error) {
	key, err := r.keys.Validate(ctx, rawKey)
	if err != nil {
		return nil, err
	}
	return r.loadActiveUser(ctx, key.UserID)
}

// loadActiveUser is the shared tail of both credential paths: the user must
// exist and be active, or the credential is rejected.
func (r *Resolver) loadActiveUser(ctx context.Context, userID int64) (*model.Principal, error) {
	user, err := r.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.logger.Warn("credential resolution failed: user not found", "user_id", userID)
			return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		r.logger.Warn("credential resolution failed: inactive user", "user_id", userID)
		return nil, fmt.Errorf("%w: inactive user", ErrUnauthorized)
	}

	principal := user.Principal()
	return &principal, nil
}
