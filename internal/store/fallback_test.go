package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"fortuna/internal/engine"
)

func discard(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// brokenStore fails every operation with an infrastructure error, standing in
// for an unreachable database.
type brokenStore struct {
	*Memory
	err error
}

func newBrokenStore() *brokenStore {
	return &brokenStore{Memory: NewMemory(), err: errors.New("connection refused")}
}

func (b *brokenStore) Name() string { return "broken" }

func (b *brokenStore) LoadAccount(context.Context, string) (engine.Snapshot, error) {
	return nil, b.err
}

func (b *brokenStore) SaveAccount(context.Context, string, engine.Snapshot) error {
	return b.err
}

func (b *brokenStore) LoadUniverse(context.Context) (engine.Snapshot, error) {
	return nil, b.err
}

func (b *brokenStore) ClaimIdempotency(context.Context, string, string, string) error {
	return b.err
}

func TestFallbackDegradesOnInfrastructureError(t *testing.T) {
	ctx := context.Background()
	local := NewMemory()
	f := NewFallback(newBrokenStore(), local, discard(t))

	snap := engine.Snapshot{"id": "alice", "cash": int64(100)}
	if err := f.SaveAccount(ctx, "alice", snap); err != nil {
		t.Fatalf("save should fall back: %v", err)
	}
	got, err := f.LoadAccount(ctx, "alice")
	if err != nil {
		t.Fatalf("load should fall back: %v", err)
	}
	if got["cash"] != int64(100) {
		t.Fatalf("fallback lost the write: %v", got)
	}
	// The write landed in the local store, not the broken primary.
	if _, err := local.LoadAccount(ctx, "alice"); err != nil {
		t.Fatalf("local store missing account: %v", err)
	}
}

func TestFallbackNameReflectsDegradedState(t *testing.T) {
	ctx := context.Background()
	f := NewFallback(newBrokenStore(), NewMemory(), discard(t))

	if got := f.Name(); got != "broken" {
		t.Fatalf("healthy name got %q want %q", got, "broken")
	}
	if err := f.SaveAccount(ctx, "alice", engine.Snapshot{"id": "alice"}); err != nil {
		t.Fatalf("save should fall back: %v", err)
	}
	// Once degraded, audit records must name the store the rows landed in.
	if got := f.Name(); got != "memory" {
		t.Fatalf("degraded name got %q want %q", got, "memory")
	}
}

func TestFallbackPassesBusinessErrorsThrough(t *testing.T) {
	ctx := context.Background()
	primary := NewMemory()
	local := NewMemory()
	f := NewFallback(primary, local, discard(t))

	// Not-found from a healthy primary is an answer, not an outage.
	if _, err := f.LoadAccount(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v want ErrNotFound", err)
	}

	if err := f.ClaimIdempotency(ctx, "alice", "k", "order"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := f.ClaimIdempotency(ctx, "alice", "k", "order"); !errors.Is(err, ErrDuplicateIdempotency) {
		t.Fatalf("duplicate claim got %v, must not retry against local", err)
	}
}

func TestDegradable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "not found", err: ErrNotFound, want: false},
		{name: "duplicate key", err: ErrDuplicateIdempotency, want: false},
		{name: "insufficient funds", err: engine.ErrInsufficientFunds, want: false},
		{name: "context canceled", err: context.Canceled, want: false},
		{name: "infrastructure", err: errors.New("dial tcp: connection refused"), want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := degradable(tc.err); got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}
