// Package sink publishes engine events to external consumers. Sinks are
// best-effort: the caller logs a failed publish and moves on, and an unlock
// already applied in-memory is never rolled back because a sink was down.
package sink

import (
	"context"
	"log/slog"

	"fortuna/internal/engine"
)

// Sink receives achievement unlocks as they happen.
type Sink interface {
	AchievementUnlocked(ctx context.Context, accountID string, ach engine.Achievement) error
	Close() error
}

// Noop is used when no external sink is configured.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (n *Noop) AchievementUnlocked(context.Context, string, engine.Achievement) error { return nil }
func (n *Noop) Close() error                                                          { return nil }

// Log writes unlocks to the structured log, the embedded form's default.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	if log == nil {
		log = slog.Default()
	}
	return &Log{log: log}
}

func (l *Log) AchievementUnlocked(_ context.Context, accountID string, ach engine.Achievement) error {
	l.log.Info("achievement unlocked", "account_id", accountID, "key", ach.Key, "name", ach.Name, "points", ach.Points)
	return nil
}

func (l *Log) Close() error { return nil }

// Multi fans out to several sinks, keeping the first error but publishing to
// every sink regardless.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi { return &Multi{sinks: sinks} }

func (m *Multi) AchievementUnlocked(ctx context.Context, accountID string, ach engine.Achievement) error {
	var first error
	for _, s := range m.sinks {
		if err := s.AchievementUnlocked(ctx, accountID, ach); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *Multi) Close() error {
	var first error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
