package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fortuna/internal/engine"
)

// Postgres is the networked form's shared store. Read-modify-write goes
// through SELECT ... FOR UPDATE inside a transaction, so two API instances
// cannot interleave updates to the same account or to the universe row.
type Postgres struct {
	pool *pgxpool.Pool
	log  *slog.Logger
	name string
}

func OpenPostgres(ctx context.Context, databaseURL string, log *slog.Logger) (*Postgres, error) {
	if log == nil {
		log = slog.Default()
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	p := &Postgres{pool: pool, log: log, name: "postgres:" + cfg.ConnConfig.Host}
	if err := p.Init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Name() string { return p.name }

func (p *Postgres) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS fortuna`,
		`CREATE TABLE IF NOT EXISTS fortuna.universe (
			id         INT PRIMARY KEY CHECK (id = 1),
			snapshot   JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS fortuna.accounts (
			id         TEXT PRIMARY KEY,
			snapshot   JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS fortuna.idempotency_keys (
			account_id TEXT NOT NULL,
			key        TEXT NOT NULL,
			action     TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (account_id, key)
		)`,
		`CREATE TABLE IF NOT EXISTS fortuna.migrations (
			id         UUID PRIMARY KEY,
			account_id TEXT NOT NULL,
			source     TEXT NOT NULL,
			target     TEXT NOT NULL,
			at         TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS fortuna.users (
			id            UUID PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			username      TEXT NOT NULL,
			password_hash BYTEA NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS fortuna.tokens (
			token      UUID PRIMARY KEY,
			user_id    UUID NOT NULL REFERENCES fortuna.users (id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) LoadUniverse(ctx context.Context) (engine.Snapshot, error) {
	var snap engine.Snapshot
	err := p.pool.QueryRow(ctx, `SELECT snapshot FROM fortuna.universe WHERE id = 1`).Scan(&snap)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}
	return snap, nil
}

func (p *Postgres) SaveUniverse(ctx context.Context, snap engine.Snapshot) error {
	raw, err := engine.MarshalSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO fortuna.universe (id, snapshot, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = now()
	`, raw)
	if err != nil {
		return fmt.Errorf("save universe: %w", err)
	}
	return nil
}

func (p *Postgres) UpdateUniverse(ctx context.Context, fn func(engine.Snapshot) (engine.Snapshot, error)) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var snap engine.Snapshot
	err = tx.QueryRow(ctx, `SELECT snapshot FROM fortuna.universe WHERE id = 1 FOR UPDATE`).Scan(&snap)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock universe: %w", err)
	}
	next, err := fn(snap)
	if err != nil {
		return err
	}
	raw, err := engine.MarshalSnapshot(next)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE fortuna.universe SET snapshot = $1, updated_at = now() WHERE id = 1
	`, raw); err != nil {
		return fmt.Errorf("update universe: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *Postgres) AccountIDs(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT id FROM fortuna.accounts ORDER BY id`)
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

func (p *Postgres) LoadAccount(ctx context.Context, id string) (engine.Snapshot, error) {
	var snap engine.Snapshot
	err := p.pool.QueryRow(ctx, `SELECT snapshot FROM fortuna.accounts WHERE id = $1`, id).Scan(&snap)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	return snap, nil
}

func (p *Postgres) SaveAccount(ctx context.Context, id string, snap engine.Snapshot) error {
	raw, err := engine.MarshalSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO fortuna.accounts (id, snapshot, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = now()
	`, id, raw)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

func (p *Postgres) UpdateAccount(ctx context.Context, id string, fn func(engine.Snapshot) (engine.Snapshot, error)) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var snap engine.Snapshot
	err = tx.QueryRow(ctx, `SELECT snapshot FROM fortuna.accounts WHERE id = $1 FOR UPDATE`, id).Scan(&snap)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock account: %w", err)
	}
	next, err := fn(snap)
	if err != nil {
		return err
	}
	raw, err := engine.MarshalSnapshot(next)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE fortuna.accounts SET snapshot = $1, updated_at = now() WHERE id = $2
	`, raw, id); err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *Postgres) ClaimIdempotency(ctx context.Context, accountID, key, action string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("idempotency key is required")
	}
	cmd, err := p.pool.Exec(ctx, `
		INSERT INTO fortuna.idempotency_keys (account_id, key, action)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, key) DO NOTHING
	`, accountID, key, action)
	if err != nil {
		return fmt.Errorf("claim idempotency: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrDuplicateIdempotency
	}
	return nil
}

func (p *Postgres) RecordMigration(ctx context.Context, rec MigrationRecord) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO fortuna.migrations (id, account_id, source, target, at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID, rec.AccountID, rec.Source, rec.Target, rec.At)
	if err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return nil
}

func (p *Postgres) CreateUser(ctx context.Context, email, username string, passwordHash []byte) (User, error) {
	u := User{ID: uuid.NewString(), Email: strings.ToLower(strings.TrimSpace(email)), Username: username, PasswordHash: passwordHash}
	cmd, err := p.pool.Exec(ctx, `
		INSERT INTO fortuna.users (id, email, username, password_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING
	`, u.ID, u.Email, u.Username, u.PasswordHash)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return User{}, ErrEmailTaken
	}
	return u, nil
}

func (p *Postgres) UserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := p.pool.QueryRow(ctx, `
		SELECT id, email, username, password_hash FROM fortuna.users WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email))).Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("user by email: %w", err)
	}
	return u, nil
}

func (p *Postgres) CreateToken(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	if _, err := p.pool.Exec(ctx, `
		INSERT INTO fortuna.tokens (token, user_id) VALUES ($1, $2)
	`, token, userID); err != nil {
		return "", fmt.Errorf("create token: %w", err)
	}
	return token, nil
}

func (p *Postgres) UserForToken(ctx context.Context, token string) (User, error) {
	if _, err := uuid.Parse(token); err != nil {
		return User{}, ErrInvalidToken
	}
	var u User
	err := p.pool.QueryRow(ctx, `
		SELECT u.id, u.email, u.username, u.password_hash
		FROM fortuna.tokens t JOIN fortuna.users u ON u.id = t.user_id
		WHERE t.token = $1
	`, token).Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrInvalidToken
	}
	if err != nil {
		return User{}, fmt.Errorf("user for token: %w", err)
	}
	return u, nil
}
