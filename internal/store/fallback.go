package store

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"fortuna/internal/engine"
)

// Fallback degrades to a local store when the primary is unreachable,
// logging a warning rather than failing the operation. Business rejections
// (insufficient funds, duplicate keys, not-found) pass through untouched;
// only infrastructure failures trigger the fallback. While degraded, writes
// land in the local store only; reconciliation is a later migration.
type Fallback struct {
	primary  Store
	local    Store
	log      *slog.Logger
	degraded atomic.Bool
}

func NewFallback(primary, local Store, log *slog.Logger) *Fallback {
	if log == nil {
		log = slog.Default()
	}
	return &Fallback{primary: primary, local: local, log: log}
}

// Name identifies the store currently taking writes, so audit records (for
// example a migration target) name the store the rows actually landed in.
func (f *Fallback) Name() string {
	if f.degraded.Load() {
		return f.local.Name()
	}
	return f.primary.Name()
}

func (f *Fallback) Close() error {
	err := f.primary.Close()
	if lerr := f.local.Close(); lerr != nil && err == nil {
		err = lerr
	}
	return err
}

func (f *Fallback) Init(ctx context.Context) error {
	if err := f.primary.Init(ctx); err != nil {
		f.warn("init", err)
		return f.local.Init(ctx)
	}
	return f.local.Init(ctx)
}

// degradable reports whether an error is an infrastructure failure worth
// retrying against the local store, as opposed to a business outcome the
// caller must see.
func degradable(err error) bool {
	if err == nil || domainError(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	for _, sentinel := range []error{
		engine.ErrInvalidQuantity,
		engine.ErrUnknownAsset,
		engine.ErrInsufficientFunds,
		engine.ErrInsufficientHoldings,
		engine.ErrInvalidAmount,
		engine.ErrLoanLimitExceeded,
	} {
		if errors.Is(err, sentinel) {
			return false
		}
	}
	return true
}

func (f *Fallback) warn(op string, err error) {
	f.degraded.Store(true)
	f.log.Warn("primary store unavailable, using local fallback", "op", op, "err", err)
}

func (f *Fallback) LoadUniverse(ctx context.Context) (engine.Snapshot, error) {
	snap, err := f.primary.LoadUniverse(ctx)
	if degradable(err) {
		f.warn("load_universe", err)
		return f.local.LoadUniverse(ctx)
	}
	return snap, err
}

func (f *Fallback) SaveUniverse(ctx context.Context, snap engine.Snapshot) error {
	if err := f.primary.SaveUniverse(ctx, snap); degradable(err) {
		f.warn("save_universe", err)
		return f.local.SaveUniverse(ctx, snap)
	} else if err != nil {
		return err
	}
	return nil
}

func (f *Fallback) UpdateUniverse(ctx context.Context, fn func(engine.Snapshot) (engine.Snapshot, error)) error {
	if err := f.primary.UpdateUniverse(ctx, fn); degradable(err) {
		f.warn("update_universe", err)
		return f.local.UpdateUniverse(ctx, fn)
	} else if err != nil {
		return err
	}
	return nil
}

func (f *Fallback) AccountIDs(ctx context.Context) ([]string, error) {
	ids, err := f.primary.AccountIDs(ctx)
	if degradable(err) {
		f.warn("account_ids", err)
		return f.local.AccountIDs(ctx)
	}
	return ids, err
}

func (f *Fallback) LoadAccount(ctx context.Context, id string) (engine.Snapshot, error) {
	snap, err := f.primary.LoadAccount(ctx, id)
	if degradable(err) {
		f.warn("load_account", err)
		return f.local.LoadAccount(ctx, id)
	}
	return snap, err
}

func (f *Fallback) SaveAccount(ctx context.Context, id string, snap engine.Snapshot) error {
	if err := f.primary.SaveAccount(ctx, id, snap); degradable(err) {
		f.warn("save_account", err)
		return f.local.SaveAccount(ctx, id, snap)
	} else if err != nil {
		return err
	}
	return nil
}

func (f *Fallback) UpdateAccount(ctx context.Context, id string, fn func(engine.Snapshot) (engine.Snapshot, error)) error {
	if err := f.primary.UpdateAccount(ctx, id, fn); degradable(err) {
		f.warn("update_account", err)
		return f.local.UpdateAccount(ctx, id, fn)
	} else if err != nil {
		return err
	}
	return nil
}

func (f *Fallback) ClaimIdempotency(ctx context.Context, accountID, key, action string) error {
	if err := f.primary.ClaimIdempotency(ctx, accountID, key, action); degradable(err) {
		f.warn("claim_idempotency", err)
		return f.local.ClaimIdempotency(ctx, accountID, key, action)
	} else if err != nil {
		return err
	}
	return nil
}

func (f *Fallback) RecordMigration(ctx context.Context, rec MigrationRecord) error {
	if err := f.primary.RecordMigration(ctx, rec); degradable(err) {
		f.warn("record_migration", err)
		return f.local.RecordMigration(ctx, rec)
	} else if err != nil {
		return err
	}
	return nil
}

func (f *Fallback) CreateUser(ctx context.Context, email, username string, passwordHash []byte) (User, error) {
	u, err := f.primary.CreateUser(ctx, email, username, passwordHash)
	if degradable(err) {
		f.warn("create_user", err)
		return f.local.CreateUser(ctx, email, username, passwordHash)
	}
	return u, err
}

func (f *Fallback) UserByEmail(ctx context.Context, email string) (User, error) {
	u, err := f.primary.UserByEmail(ctx, email)
	if degradable(err) {
		f.warn("user_by_email", err)
		return f.local.UserByEmail(ctx, email)
	}
	return u, err
}

func (f *Fallback) CreateToken(ctx context.Context, userID string) (string, error) {
	token, err := f.primary.CreateToken(ctx, userID)
	if degradable(err) {
		f.warn("create_token", err)
		return f.local.CreateToken(ctx, userID)
	}
	return token, err
}

func (f *Fallback) UserForToken(ctx context.Context, token string) (User, error) {
	u, err := f.primary.UserForToken(ctx, token)
	if degradable(err) {
		f.warn("user_for_token", err)
		return f.local.UserForToken(ctx, token)
	}
	return u, err
}
