package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/store"
)

func newTestKeys(t *testing.T) (*APIKeyService, *store.Store, *model.User) {
	t.Helper()
	st, _, _ := newTestDeps(t)
	svc := NewAPIKeyService(st, "kg", testLogger())

	user := &model.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "blob",
		Role:         model.RoleUser,
		IsActive:     true,
	}
	if err := st.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return svc, st, user
}

func TestCreateAndValidateKey(t *testing.T) {
	svc, _, user := newTestKeys(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, user.ID, "ci-key", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(created.Key, "kg_") {
		t.Errorf("key %q missing prefix", created.Key)
	}
	if created.ExpiresAt != nil {
		t.Error("nil expiresInDays must produce a never-expiring key")
	}

	key, err := svc.Validate(ctx, created.Key)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if key.UserID != user.ID {
		t.Errorf("UserID: got %d, want %d", key.UserID, user.ID)
	}
	if key.Name != "ci-key" {
		t.Errorf("Name: got %q", key.Name)
	}
}

func TestValidateUnknownKey(t *testing.T) {
	svc, _, _ := newTestKeys(t)

	_, err := svc.Validate(context.Background(), "kg_definitely-not-issued")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestValidateRevokedKey(t *testing.T) {
	svc, _, user := newTestKeys(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, user.ID, "to-revoke", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := svc.Revoke(ctx, created.Key, user.ID)
	if err != nil || !ok {
		t.Fatalf("Revoke: %v", err)
	}

	_, err = svc.Validate(ctx, created.Key)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for revoked key, got %v", err)
	}
}

func TestValidateExpiredKey(t *testing.T) {
	svc, _, user := newTestKeys(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	days := 1
	created, err := svc.Create(ctx, user.ID, "short-lived", &days)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ExpiresAt == nil {
		t.Fatal("expected an expiry")
	}

	// Still valid inside the window.
	if _, err := svc.Validate(ctx, created.Key); err != nil {
		t.Fatalf("Validate before expiry: %v", err)
	}

	// Two days later the key is expired.
	svc.now = func() time.Time { return base.Add(48 * time.Hour) }
	_, err = svc.Validate(ctx, created.Key)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for expired key, got %v", err)
	}
}

func TestRevokeSurvivesConcurrentValidate(t *testing.T) {
	svc, st, user := newTestKeys(t)
	ctx := context.Background()

	// Validate touches last-used in a background goroutine. That write must
	// never carry the active flag from the row it read before a revoke
	// landed, or the revoked key comes back to life.
	for i := 0; i < 200; i++ {
		created, err := svc.Create(ctx, user.ID, "racy", nil)
		if err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
		if _, err := svc.Validate(ctx, created.Key); err != nil {
			t.Fatalf("Validate #%d: %v", i, err)
		}
		if _, err := svc.Revoke(ctx, created.Key, user.ID); err != nil {
			t.Fatalf("Revoke #%d: %v", i, err)
		}

		key, err := st.GetAPIKeyByID(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetAPIKeyByID #%d: %v", i, err)
		}
		if key.IsActive {
			t.Fatalf("iteration %d: revoked key reactivated by last-used touch", i)
		}
		if _, err := svc.Validate(ctx, created.Key); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("iteration %d: revoked key still validates: %v", i, err)
		}
	}
}

func TestRevokeIdempotent(t *testing.T) {
	svc, _, user := newTestKeys(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, user.ID, "twice", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 0; i < 2; i++ {
		ok, err := svc.Revoke(ctx, created.Key, user.ID)
		if err != nil {
			t.Fatalf("Revoke #%d: %v", i+1, err)
		}
		if !ok {
			t.Errorf("Revoke #%d: expected success", i+1)
		}
	}
}

func TestRevokeOwnership(t *testing.T) {
	svc, st, user := newTestKeys(t)
	ctx := context.Background()

	other := &model.User{
		Username:     "mallory",
		Email:        "mallory@example.com",
		PasswordHash: "blob",
		Role:         model.RoleUser,
		IsActive:     true,
	}
	if err := st.CreateUser(ctx, other); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	created, err := svc.Create(ctx, user.ID, "mine", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Revoke(ctx, created.Key, other.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.RevokeByID(ctx, created.ID, other.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("RevokeByID: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Delete(ctx, created.ID, other.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Delete: expected ErrForbidden, got %v", err)
	}

	// The key still works for its owner.
	if _, err := svc.Validate(ctx, created.Key); err != nil {
		t.Errorf("key must remain valid after failed foreign revocation: %v", err)
	}
}

func TestRevokeUnknownKey(t *testing.T) {
	svc, _, user := newTestKeys(t)

	if _, err := svc.Revoke(context.Background(), "kg_missing", user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.RevokeByID(context.Background(), 999, user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("RevokeByID: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteKey(t *testing.T) {
	svc, _, user := newTestKeys(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, user.ID, "doomed", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := svc.Delete(ctx, created.ID, user.ID)
	if err != nil || !ok {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := svc.Validate(ctx, created.Key); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized after delete, got %v", err)
	}
	if _, err := svc.Delete(ctx, created.ID, user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestListExcludesRevoked(t *testing.T) {
	svc, _, user := newTestKeys(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, user.ID, "keep", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := svc.Create(ctx, user.ID, "drop", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Revoke(ctx, second.Key, user.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	keys, err := svc.List(ctx, user.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected 1 active key, got %d", len(keys))
	}
	if keys[0].ID != first.ID || keys[0].Name != "keep" {
		t.Errorf("unexpected listed key: %+v", keys[0])
	}
}
