package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"fortuna/internal/engine"
)

// Memory is an in-process store used by tests and as a last-resort fallback.
// A single mutex serializes writers, which is the same exclusion guarantee
// the durable stores give per row.
type Memory struct {
	mu         sync.RWMutex
	universe   engine.Snapshot
	accounts   map[string]engine.Snapshot
	idem       map[string]string // accountID+"\x00"+key -> action
	migrations []MigrationRecord
	users      map[string]User // by email
	tokens     map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]engine.Snapshot),
		idem:     make(map[string]string),
		users:    make(map[string]User),
		tokens:   make(map[string]string),
	}
}

func (m *Memory) Name() string               { return "memory" }
func (m *Memory) Init(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }

func (m *Memory) LoadUniverse(context.Context) (engine.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.universe == nil {
		return nil, ErrNotFound
	}
	return copySnapshot(m.universe), nil
}

func (m *Memory) SaveUniverse(_ context.Context, snap engine.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.universe = copySnapshot(snap)
	return nil
}

func (m *Memory) UpdateUniverse(_ context.Context, fn func(engine.Snapshot) (engine.Snapshot, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.universe == nil {
		return ErrNotFound
	}
	next, err := fn(copySnapshot(m.universe))
	if err != nil {
		return err
	}
	m.universe = copySnapshot(next)
	return nil
}

func (m *Memory) AccountIDs(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) LoadAccount(_ context.Context, id string) (engine.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySnapshot(snap), nil
}

func (m *Memory) SaveAccount(_ context.Context, id string, snap engine.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[id] = copySnapshot(snap)
	return nil
}

func (m *Memory) UpdateAccount(_ context.Context, id string, fn func(engine.Snapshot) (engine.Snapshot, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	next, err := fn(copySnapshot(snap))
	if err != nil {
		return err
	}
	m.accounts[id] = copySnapshot(next)
	return nil
}

func (m *Memory) ClaimIdempotency(_ context.Context, accountID, key, action string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := accountID + "\x00" + key
	if _, seen := m.idem[k]; seen {
		return ErrDuplicateIdempotency
	}
	m.idem[k] = action
	return nil
}

func (m *Memory) RecordMigration(_ context.Context, rec MigrationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.migrations = append(m.migrations, rec)
	return nil
}

func (m *Memory) CreateUser(_ context.Context, email, username string, passwordHash []byte) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	if _, exists := m.users[email]; exists {
		return User{}, ErrEmailTaken
	}
	u := User{ID: uuid.NewString(), Email: email, Username: username, PasswordHash: passwordHash}
	m.users[email] = u
	return u, nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) CreateToken(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token := uuid.NewString()
	m.tokens[token] = userID
	return token, nil
}

func (m *Memory) UserForToken(_ context.Context, token string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	userID, ok := m.tokens[token]
	if !ok {
		return User{}, ErrInvalidToken
	}
	for _, u := range m.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return User{}, ErrInvalidToken
}

func copySnapshot(s engine.Snapshot) engine.Snapshot {
	out := make(engine.Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
