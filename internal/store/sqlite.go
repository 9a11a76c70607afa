package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"fortuna/internal/engine"
)

// SQLite backs the embedded form and the networked form's offline fallback.
// A writer mutex serializes mutations; sqlite allows one writer anyway and
// the embedded driving loop is single-threaded.
type SQLite struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
	log  *slog.Logger
}

func OpenSQLite(path string, log *slog.Logger) (*SQLite, error) {
	if log == nil {
		log = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	s := &SQLite{db: db, path: path, log: log}
	if err := s.Init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Name() string { return "sqlite:" + s.path }

func (s *SQLite) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS universe (
			id         INTEGER PRIMARY KEY CHECK (id = 1),
			snapshot   TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id         TEXT PRIMARY KEY,
			snapshot   TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			account_id TEXT NOT NULL,
			key        TEXT NOT NULL,
			action     TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (account_id, key)
		)`,
		`CREATE TABLE IF NOT EXISTS migrations (
			id         TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			source     TEXT NOT NULL,
			target     TEXT NOT NULL,
			at         INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			username      TEXT NOT NULL,
			password_hash BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tokens (
			token      TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) LoadUniverse(ctx context.Context) (engine.Snapshot, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM universe WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}
	return engine.UnmarshalSnapshot([]byte(raw))
}

func (s *SQLite) SaveUniverse(ctx context.Context, snap engine.Snapshot) error {
	raw, err := engine.MarshalSnapshot(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO universe (id, snapshot, updated_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at
	`, string(raw), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save universe: %w", err)
	}
	return nil
}

func (s *SQLite) UpdateUniverse(ctx context.Context, fn func(engine.Snapshot) (engine.Snapshot, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM universe WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}
	snap, err := engine.UnmarshalSnapshot([]byte(raw))
	if err != nil {
		return err
	}
	next, err := fn(snap)
	if err != nil {
		return err
	}
	out, err := engine.MarshalSnapshot(next)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE universe SET snapshot = ?, updated_at = ? WHERE id = 1
	`, string(out), time.Now().Unix()); err != nil {
		return fmt.Errorf("update universe: %w", err)
	}
	return nil
}

func (s *SQLite) AccountIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLite) LoadAccount(ctx context.Context, id string) (engine.Snapshot, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM accounts WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	return engine.UnmarshalSnapshot([]byte(raw))
}

func (s *SQLite) SaveAccount(ctx context.Context, id string, snap engine.Snapshot) error {
	raw, err := engine.MarshalSnapshot(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, snapshot, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at
	`, id, string(raw), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

func (s *SQLite) UpdateAccount(ctx context.Context, id string, fn func(engine.Snapshot) (engine.Snapshot, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM accounts WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	snap, err := engine.UnmarshalSnapshot([]byte(raw))
	if err != nil {
		return err
	}
	next, err := fn(snap)
	if err != nil {
		return err
	}
	out, err := engine.MarshalSnapshot(next)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET snapshot = ?, updated_at = ? WHERE id = ?
	`, string(out), time.Now().Unix(), id); err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

func (s *SQLite) ClaimIdempotency(ctx context.Context, accountID, key, action string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("idempotency key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO idempotency_keys (account_id, key, action, created_at)
		VALUES (?, ?, ?, ?)
	`, accountID, key, action, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("claim idempotency: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicateIdempotency
	}
	return nil
}

func (s *SQLite) RecordMigration(ctx context.Context, rec MigrationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO migrations (id, account_id, source, target, at) VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.AccountID, rec.Source, rec.Target, rec.At.Unix())
	if err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return nil
}

func (s *SQLite) CreateUser(ctx context.Context, email, username string, passwordHash []byte) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u := User{ID: uuid.NewString(), Email: email, Username: username, PasswordHash: passwordHash}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO users (id, email, username, password_hash) VALUES (?, ?, ?, ?)
	`, u.ID, u.Email, u.Username, u.PasswordHash)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return User{}, err
	}
	if n == 0 {
		return User{}, ErrEmailTaken
	}
	return u, nil
}

func (s *SQLite) UserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, username, password_hash FROM users WHERE email = ?
	`, strings.ToLower(strings.TrimSpace(email))).Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("user by email: %w", err)
	}
	return u, nil
}

func (s *SQLite) CreateToken(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (token, user_id, created_at) VALUES (?, ?, ?)
	`, token, userID, time.Now().Unix()); err != nil {
		return "", fmt.Errorf("create token: %w", err)
	}
	return token, nil
}

func (s *SQLite) UserForToken(ctx context.Context, token string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.username, u.password_hash
		FROM tokens t JOIN users u ON u.id = t.user_id
		WHERE t.token = ?
	`, token).Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidToken
	}
	if err != nil {
		return User{}, fmt.Errorf("user for token: %w", err)
	}
	return u, nil
}
