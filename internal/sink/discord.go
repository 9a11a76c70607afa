package sink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"fortuna/internal/engine"
)

// Discord announces unlocks to a channel. The session connects lazily on the
// first publish so a dead bot token degrades to warnings instead of failing
// startup.
type Discord struct {
	session *discordgo.Session
	channel string
	log     *slog.Logger

	mu     sync.Mutex
	opened bool
}

func NewDiscord(token, channelID string, log *slog.Logger) (*Discord, error) {
	if log == nil {
		log = slog.Default()
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &Discord{session: session, channel: channelID, log: log}, nil
}

func (d *Discord) AchievementUnlocked(_ context.Context, accountID string, ach engine.Achievement) error {
	if err := d.connect(); err != nil {
		return err
	}
	msg := fmt.Sprintf("🏆 **%s** unlocked *%s* (%d pts): %s", accountID, ach.Name, ach.Points, ach.Description)
	if _, err := d.session.ChannelMessageSend(d.channel, msg); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

func (d *Discord) connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opened {
		return nil
	}
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	d.opened = true
	return nil
}

func (d *Discord) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return nil
	}
	return d.session.Close()
}
