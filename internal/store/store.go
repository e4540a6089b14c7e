// Package store persists user accounts and API key records. SQLite is the
// default backend; Postgres and MySQL are supported for deployments that
// already run one.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/keygate/keygate/internal/model"
)

// Config selects the store backend. With an empty Driver the store uses
// SQLite under DataDir, or in-memory when DataDir is also empty.
type Config struct {
	Driver  string // "sqlite" (default), "postgres", or "mysql"
	DSN     string // ignored for sqlite
	DataDir string // sqlite only
}

// Store is the credential store consumed by the auth services. Every
// operation is a single statement or transaction: partial writes are never
// observable.
type Store struct {
	db     *sqlx.DB
	driver string
}

// New opens a store for the given config and runs migrations.
func New(cfg Config) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}

	var db *sqlx.DB
	var err error

	switch driver {
	case "sqlite":
		var dsn string
		if cfg.DataDir == "" {
			dsn = ":memory:?_journal_mode=WAL"
		} else {
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
			dsn = filepath.Join(cfg.DataDir, "keygate.db") + "?_journal_mode=WAL&_busy_timeout=5000"
		}
		db, err = sqlx.Connect("sqlite", dsn)
		if err == nil {
			db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
			_, err = db.Exec("PRAGMA foreign_keys = ON")
		}
	case "postgres":
		db, err = sqlx.Connect("pgx", cfg.DSN)
	case "mysql":
		db, err = sqlx.Connect("mysql", cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate credential store: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// insert runs a named INSERT and returns the generated row ID. Postgres has
// no LastInsertId, so it takes the RETURNING path instead.
func (s *Store) insert(ctx context.Context, query string, arg interface{}) (int64, error) {
	if s.driver == "postgres" {
		rows, err := s.db.NamedQueryContext(ctx, query+" RETURNING id", arg)
		if err != nil {
			return 0, err
		}
		defer rows.Close()
		if !rows.Next() {
			return 0, sql.ErrNoRows
		}
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		return id, rows.Err()
	}

	result, err := s.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// CreateUser inserts a new user. The ID, CreatedAt, and UpdatedAt fields on
// user are populated after a successful insert.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	const q = `INSERT INTO users
		(username, email, password_hash, role, is_active, created_at, updated_at)
		VALUES
		(:username, :email, :password_hash, :role, :is_active, :created_at, :updated_at)`

	id, err := s.insert(ctx, q, user)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	user.ID = id
	return nil
}

// GetUserByID returns a user by ID.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.getUser(ctx, "SELECT * FROM users WHERE id = ?", id)
}

// GetUserByUsername returns a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.getUser(ctx, "SELECT * FROM users WHERE username = ?", username)
}

// GetUserByEmail returns a user by email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, "SELECT * FROM users WHERE email = ?", email)
}

func (s *Store) getUser(ctx context.Context, query string, arg interface{}) (*model.User, error) {
	var user model.User
	if err := s.db.GetContext(ctx, &user, s.db.Rebind(query), arg); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// UpdateUser updates an existing user. The UpdatedAt field is refreshed
// automatically.
func (s *Store) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	const q = `UPDATE users SET
		username = :username, email = :email, password_hash = :password_hash,
		role = :role, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`

	result, err := s.db.NamedExecContext(ctx, q, user)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsers returns all user accounts.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.SelectContext(ctx, &users, "SELECT * FROM users ORDER BY username"); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// HasAnyUser reports whether at least one user account exists. Used for
// first-run detection.
func (s *Store) HasAnyUser(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM users"); err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return count > 0, nil
}

// ---------------------------------------------------------------------------
// API keys
// ---------------------------------------------------------------------------

// CreateAPIKey inserts a new API key record. The key_hash must already be
// set; the raw key never reaches the store. The ID, CreatedAt, and UpdatedAt
// fields are populated after insert.
func (s *Store) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	now := time.Now().UTC()
	key.CreatedAt = now
	key.UpdatedAt = now

	const q = `INSERT INTO api_keys
		(key_hash, user_id, name, is_active, expires_at, last_used_at, created_at, updated_at)
		VALUES
		(:key_hash, :user_id, :name, :is_active, :expires_at, :last_used_at, :created_at, :updated_at)`

	id, err := s.insert(ctx, q, key)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	key.ID = id
	return nil
}

// GetAPIKeyByHash looks up an API key by its SHA-256 hash.
func (s *Store) GetAPIKeyByHash(ctx context.Context, hash string) (*model.APIKey, error) {
	return s.getAPIKey(ctx, "SELECT * FROM api_keys WHERE key_hash = ?", hash)
}

// GetAPIKeyByID returns an API key by ID.
func (s *Store) GetAPIKeyByID(ctx context.Context, id int64) (*model.APIKey, error) {
	return s.getAPIKey(ctx, "SELECT * FROM api_keys WHERE id = ?", id)
}

func (s *Store) getAPIKey(ctx context.Context, query string, arg interface{}) (*model.APIKey, error) {
	var key model.APIKey
	if err := s.db.GetContext(ctx, &key, s.db.Rebind(query), arg); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return &key, nil
}

// UpdateAPIKey updates a key's mutable fields (name, active flag, expiry,
// last-used timestamp). The UpdatedAt field is refreshed automatically.
func (s *Store) UpdateAPIKey(ctx context.Context, key *model.APIKey) error {
	key.UpdatedAt = time.Now().UTC()

	const q = `UPDATE api_keys SET
		name = :name, is_active = :is_active, expires_at = :expires_at,
		last_used_at = :last_used_at, updated_at = :updated_at
		WHERE id = :id`

	result, err := s.db.NamedExecContext(ctx, q, key)
	if err != nil {
		return fmt.Errorf("update api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update api key rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchAPIKey records a use of the key. It writes only the last-used and
// updated timestamps: a concurrent revoke or expiry change is never
// overwritten by a touch.
func (s *Store) TouchAPIKey(ctx context.Context, id int64, usedAt time.Time) error {
	q := s.db.Rebind("UPDATE api_keys SET last_used_at = ?, updated_at = ? WHERE id = ?")
	result, err := s.db.ExecContext(ctx, q, usedAt, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch api key rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAPIKey permanently removes an API key record.
func (s *Store) DeleteAPIKey(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM api_keys WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete api key rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActiveAPIKeysForUser returns all active keys owned by a user, newest
// first.
func (s *Store) ListActiveAPIKeysForUser(ctx context.Context, userID int64) ([]model.APIKey, error) {
	var keys []model.APIKey
	q := s.db.Rebind("SELECT * FROM api_keys WHERE user_id = ? AND is_active = ? ORDER BY created_at DESC")
	if err := s.db.SelectContext(ctx, &keys, q, userID, true); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}
