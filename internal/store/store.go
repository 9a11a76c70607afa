// Package store persists account and universe snapshots. The engine never
// talks to a database directly: both deployment forms hand flat snapshots to
// a Store and get them back, so the snapshot format is the only persistence
// contract.
package store

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"fortuna/internal/engine"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicateIdempotency = errors.New("duplicate idempotency key")
	ErrEmailTaken           = errors.New("email already registered")
	ErrInvalidToken         = errors.New("invalid or expired token")
)

// User is an authentication record for the networked form. The password
// hash is opaque to the store; internal/auth owns hashing.
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash []byte
}

// MigrationRecord is the audit entry written when a snapshot moves between
// stores (and therefore between deployment forms).
type MigrationRecord struct {
	ID        string
	AccountID string
	Source    string
	Target    string
	At        time.Time
}

// Store is implemented by postgres (networked), sqlite (embedded/fallback)
// and memory (tests). Update methods are read-modify-write under whatever
// exclusion the backend provides: a row lock in postgres, a writer mutex in
// sqlite and memory. Save methods overwrite, so repeating a migration
// replaces rather than duplicates.
type Store interface {
	// Name identifies the store in migration audit records and logs.
	Name() string
	Init(ctx context.Context) error

	LoadUniverse(ctx context.Context) (engine.Snapshot, error)
	SaveUniverse(ctx context.Context, snap engine.Snapshot) error
	UpdateUniverse(ctx context.Context, fn func(engine.Snapshot) (engine.Snapshot, error)) error

	AccountIDs(ctx context.Context) ([]string, error)
	LoadAccount(ctx context.Context, id string) (engine.Snapshot, error)
	SaveAccount(ctx context.Context, id string, snap engine.Snapshot) error
	UpdateAccount(ctx context.Context, id string, fn func(engine.Snapshot) (engine.Snapshot, error)) error

	ClaimIdempotency(ctx context.Context, accountID, key, action string) error
	RecordMigration(ctx context.Context, rec MigrationRecord) error

	CreateUser(ctx context.Context, email, username string, passwordHash []byte) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	CreateToken(ctx context.Context, userID string) (string, error)
	UserForToken(ctx context.Context, token string) (User, error)

	Close() error
}

// Open builds a store from a DSN: postgres://… for the networked store,
// "memory" for the in-memory store, anything else is a sqlite file path.
func Open(ctx context.Context, dsn string, log *slog.Logger) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, dsn, log)
	case dsn == "" || dsn == "memory" || dsn == ":memory:":
		return NewMemory(), nil
	default:
		return OpenSQLite(dsn, log)
	}
}

// domainError reports whether err is a business outcome rather than a store
// failure; the fallback wrapper must surface these instead of degrading.
func domainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicateIdempotency) ||
		errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrInvalidToken)
}
