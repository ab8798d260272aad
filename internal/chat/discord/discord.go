// Package discord implements chat.Surface on top of discordgo.
//
// One Client owns the gateway session. Incoming messages are fed to a
// chat.Waiters hub so any number of sign-up conversations can wait for
// replies concurrently; slash commands are handled by internal/bot through
// the same Session.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sakif/shamebot/internal/apperror"
	"github.com/sakif/shamebot/internal/chat"
)

// Intents the bot needs: guild metadata for slash commands, guild and DM
// messages for replies, and message content to read the email a member types.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentMessageContent

// threadArchiveMinutes auto-archives the daily thread after a day of inactivity.
const threadArchiveMinutes = 1440

// Client is a connected Discord bot.
type Client struct {
	session *discordgo.Session
	waiters *chat.Waiters
	logger  *slog.Logger
}

// New creates a Client for a bot token. Call Open to connect.
func New(token string, logger *slog.Logger) (*Client, error) {
	if token == "" {
		return nil, errors.New("discord: bot token is required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: creating session: %w", err)
	}
	session.Identify.Intents = Intents

	c := &Client{
		session: session,
		waiters: chat.NewWaiters(),
		logger:  logger,
	}
	session.AddHandler(c.onMessageCreate)
	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		logger.Info("discord connected",
			slog.String("user", r.User.Username),
			slog.Int("guilds", len(r.Guilds)),
		)
	})
	return c, nil
}

// Session exposes the underlying session for command registration.
func (c *Client) Session() *discordgo.Session {
	return c.session
}

// Open connects to the gateway.
func (c *Client) Open() error {
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("discord: opening gateway: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (c *Client) Close() error {
	return c.session.Close()
}

// onMessageCreate hands every non-bot message to whoever is waiting for it.
func (c *Client) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	delivered := c.waiters.Dispatch(chat.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		AuthorID:  m.Author.ID,
		Content:   m.Content,
	})
	if delivered > 0 {
		c.logger.Debug("message delivered to waiter",
			slog.String("channel_id", m.ChannelID),
			slog.String("author_id", m.Author.ID),
			slog.Int("waiters", delivered),
		)
	}
}

// Send posts content to a channel, clipped to Discord's message limit.
func (c *Client) Send(ctx context.Context, channelID, content string) (*chat.Message, error) {
	msg, err := c.session.ChannelMessageSend(channelID,
		chat.Clip(content, chat.MessageLimit), discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord: sending to %s: %w", channelID, err)
	}
	return toMessage(msg), nil
}

// OpenDM returns the direct-message channel with userID, creating it if needed.
func (c *Client) OpenDM(ctx context.Context, userID string) (string, error) {
	ch, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord: opening DM with %s: %w", userID, err)
	}
	return ch.ID, nil
}

// WaitForMessage blocks until a gateway message matches or timeout elapses.
func (c *Client) WaitForMessage(ctx context.Context, match func(chat.Message) bool, timeout time.Duration) (*chat.Message, error) {
	return c.waiters.Wait(ctx, match, timeout)
}

// FetchUser looks up a Discord account.
func (c *Client) FetchUser(ctx context.Context, userID string) (*chat.User, error) {
	u, err := c.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord: fetching user %s: %w", userID, err)
	}
	return &chat.User{ID: u.ID, Username: u.Username, Bot: u.Bot}, nil
}

// ResolveChannel checks that channelID exists and the bot can see it.
// A missing or hidden channel is apperror.ErrChannelNotFound.
func (c *Client) ResolveChannel(ctx context.Context, channelID string) error {
	if channelID == "" {
		return apperror.ChannelNotFound("(unset)")
	}
	if _, err := c.session.Channel(channelID, discordgo.WithContext(ctx)); err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil &&
			(restErr.Response.StatusCode == http.StatusNotFound || restErr.Response.StatusCode == http.StatusForbidden) {
			return apperror.ChannelNotFound(channelID)
		}
		return fmt.Errorf("discord: resolving channel %s: %w", channelID, err)
	}
	return nil
}

// CreateThread starts a thread on anchor.
func (c *Client) CreateThread(ctx context.Context, anchor *chat.Message, name string) error {
	_, err := c.session.MessageThreadStart(anchor.ChannelID, anchor.ID, name,
		threadArchiveMinutes, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: starting thread %q: %w", name, err)
	}
	return nil
}

func toMessage(m *discordgo.Message) *chat.Message {
	out := &chat.Message{ID: m.ID, ChannelID: m.ChannelID, Content: m.Content}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
	}
	return out
}

var _ chat.Surface = (*Client)(nil)
