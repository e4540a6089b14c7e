package service

import (
	"context"
	"time"

	"github.com/keygate/keygate/internal/model"
)

// CredentialStore is the persistence interface consumed by the auth
// services. Each call is transactional: a failed write leaves no partial
// state behind. internal/store provides the SQL implementation; the store's
// not-found sentinel is store.ErrNotFound.
type CredentialStore interface {
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	UpdateUser(ctx context.Context, user *model.User) error

	GetAPIKeyByHash(ctx context.Context, hash string) (*model.APIKey, error)
	GetAPIKeyByID(ctx context.Context, id int64) (*model.APIKey, error)
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	UpdateAPIKey(ctx context.Context, key *model.APIKey) error
	TouchAPIKey(ctx context.Context, id int64, usedAt time.Time) error
	DeleteAPIKey(ctx context.Context, id int64) error
	ListActiveAPIKeysForUser(ctx context.Context, userID int64) ([]model.APIKey, error)
}
