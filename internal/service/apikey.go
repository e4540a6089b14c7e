package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/keygate/keygate/internal/auth"
	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/store"
)

// CreatedAPIKey is returned by Create. Key holds the raw value; this is the
// only place it ever appears, and it cannot be retrieved again afterwards.
type CreatedAPIKey struct {
	ID        int64      `json:"id"`
	Key       string     `json:"key"`
	Name      string     `json:"name"`
	UserID    int64      `json:"user_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// APIKeyService manages the API key lifecycle: creation, listing,
// validation, revocation, and deletion.
type APIKeyService struct {
	store  CredentialStore
	prefix string
	logger *slog.Logger

	// now is the clock used for expiry decisions; tests override it.
	now func() time.Time
}

// NewAPIKeyService creates an APIKeyService. prefix is the literal prepended
// to every generated key (e.g. "kg" yields keys like "kg_...").
func NewAPIKeyService(cs CredentialStore, prefix string, logger *slog.Logger) *APIKeyService {
	return &APIKeyService{
		store:  cs,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

// Create generates a new API key for a user. A nil expiresInDays (or a
// non-positive value) produces a never-expiring key.
func (s *APIKeyService) Create(ctx context.Context, userID int64, name string, expiresInDays *int) (*CreatedAPIKey, error) {
	rawKey, keyHash, err := auth.GenerateAPIKey(s.prefix)
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}

	var expiresAt *time.Time
	if expiresInDays != nil && *expiresInDays > 0 {
		t := s.now().UTC().Add(time.Duration(*expiresInDays) * 24 * time.Hour)
		expiresAt = &t
	}

	key := &model.APIKey{
		KeyHash:   keyHash,
		UserID:    userID,
		Name:      name,
		IsActive:  true,
		ExpiresAt: expiresAt,
	}
	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}

	s.logger.Info("api key created", "key_id", key.ID, "user_id", userID, "name", name)
	return &CreatedAPIKey{
		ID:        key.ID,
		Key:       rawKey,
		Name:      key.Name,
		UserID:    key.UserID,
		ExpiresAt: key.ExpiresAt,
		CreatedAt: key.CreatedAt,
	}, nil
}

// List returns the active keys owned by a user, without hashes or raw
// values.
func (s *APIKeyService) List(ctx context.Context, userID int64) ([]model.APIKeyPublic, error) {
	keys, err := s.store.ListActiveAPIKeysForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	public := make([]model.APIKeyPublic, len(keys))
	for i := range keys {
		public[i] = keys[i].Public()
	}
	return public, nil
}

// Validate checks a raw API key and returns the matching record. The caller
// sees a single generic ErrUnauthorized whether the key is unknown, revoked,
// or expired; the distinction exists only in the logs. On success the
// last-used timestamp is updated best-effort in the background: a lost
// update under concurrent validation is acceptable and never blocks or
// fails the validation decision.
func (s *APIKeyService) Validate(ctx context.Context, rawKey string) (*model.APIKey, error) {
	keyHash := auth.HashAPIKey(rawKey)

	key, err := s.store.GetAPIKeyByHash(ctx, keyHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("api key validation failed: unknown key")
			return nil, fmt.Errorf("%w: invalid api key", ErrUnauthorized)
		}
		return nil, fmt.Errorf("lookup api key: %w", err)
	}

	if !key.IsActive {
		s.logger.Warn("api key validation failed: key revoked", "key_id", key.ID)
		return nil, fmt.Errorf("%w: invalid api key", ErrUnauthorized)
	}

	if auth.KeyExpiredAt(key.ExpiresAt, s.now()) {
		s.logger.Warn("api key validation failed: key expired", "key_id", key.ID)
		return nil, fmt.Errorf("%w: invalid api key", ErrUnauthorized)
	}

	// Touch last-used in the background (fire and forget). Only the
	// timestamp is written, so a revoke that lands concurrently is never
	// overwritten by the stale row read above.
	go func(id int64, usedAt time.Time) {
		if err := s.store.TouchAPIKey(context.Background(), id, usedAt); err != nil {
			s.logger.Debug("last-used update failed", "key_id", id, "error", err)
		}
	}(key.ID, s.now().UTC())

	return key, nil
}

// Revoke deactivates a key identified by its raw value. It fails with
// ErrNotFound for an unknown key and ErrForbidden when the key belongs to a
// different user. Revoking an already-inactive key succeeds: the operation
// is idempotent in effect, and revocation is irreversible.
func (s *APIKeyService) Revoke(ctx context.Context, rawKey string, userID int64) (bool, error) {
	key, err := s.getKeyByHash(ctx, auth.HashAPIKey(rawKey))
	if err != nil {
		return false, err
	}
	return s.revoke(ctx, key, userID)
}

// RevokeByID deactivates a key by ID, with the same ownership and
// idempotency semantics as Revoke.
func (s *APIKeyService) RevokeByID(ctx context.Context, keyID, userID int64) (bool, error) {
	key, err := s.getKeyByID(ctx, keyID)
	if err != nil {
		return false, err
	}
	return s.revoke(ctx, key, userID)
}

func (s *APIKeyService) revoke(ctx context.Context, key *model.APIKey, userID int64) (bool, error) {
	if key.UserID != userID {
		s.logger.Warn("revoke denied: ownership mismatch", "key_id", key.ID, "owner_id", key.UserID, "caller_id", userID)
		return false, fmt.Errorf("%w: not authorized to revoke this api key", ErrForbidden)
	}

	if !key.IsActive {
		return true, nil
	}

	key.IsActive = false
	if err := s.store.UpdateAPIKey(ctx, key); err != nil {
		return false, fmt.Errorf("revoke api key: %w", err)
	}

	s.logger.Info("api key revoked", "key_id", key.ID, "user_id", userID)
	return true, nil
}

// Delete permanently removes a key record. Same ownership check as Revoke;
// unlike revocation this is a hard delete.
func (s *APIKeyService) Delete(ctx context.Context, keyID, userID int64) (bool, error) {
	key, err := s.getKeyByID(ctx, keyID)
	if err != nil {
		return false, err
	}
	if key.UserID != userID {
		s.logger.Warn("delete denied: ownership mismatch", "key_id", key.ID, "owner_id", key.UserID, "caller_id", userID)
		return false, fmt.Errorf("%w: not authorized to delete this api key", ErrForbidden)
	}

	if err := s.store.DeleteAPIKey(ctx, keyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, fmt.Errorf("%w: api key not found", ErrNotFound)
		}
		return false, fmt.Errorf("delete api key: %w", err)
	}

	s.logger.Info("api key deleted", "key_id", keyID, "user_id", userID)
	return true, nil
}

func (s *APIKeyService) getKeyByHash(ctx context.Context, hash string) (*model.APIKey, error) {
	key, err := s.store.GetAPIKeyByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: api key not found", ErrNotFound)
		}
		return nil, fmt.Errorf("lookup api key: %w", err)
	}
	return key, nil
}

func (s *APIKeyService) getKeyByID(ctx context.Context, id int64) (*model.APIKey, error) {
	key, err := s.store.GetAPIKeyByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: api key not found", ErrNotFound)
		}
		return nil, fmt.Errorf("lookup api key: %w", err)
	}
	return key, nil
}
