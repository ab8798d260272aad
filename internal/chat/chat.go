// Package chat is the narrow slice of a chat platform the bot depends on:
// sending messages, opening DMs, waiting for a reply, looking up members, and
// starting threads. internal/chat/discord implements it on discordgo; tests
// use in-memory fakes.
package chat

import (
	"context"
	"errors"
	"time"
)

// MessageLimit is the longest message the platform accepts, in characters.
const MessageLimit = 2000

// ErrTimeout is returned by WaitForMessage when no matching message arrived in time.
var ErrTimeout = errors.New("chat: timed out waiting for message")

// Message is a posted message.
type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	Content   string
}

// User is a platform account.
type User struct {
	ID       string
	Username string
	Bot      bool
}

// Mention renders the user as a ping.
func (u User) Mention() string {
	return "<@" + u.ID + ">"
}

// Surface is what the sign-up flow, the readout job and the commands need
// from the chat platform.
type Surface interface {
	// Send posts content to a channel. Content over MessageLimit is clipped.
	Send(ctx context.Context, channelID, content string) (*Message, error)

	// OpenDM returns the direct-message channel with a user.
	OpenDM(ctx context.Context, userID string) (string, error)

	// WaitForMessage blocks until a message satisfying match arrives, the
	// timeout passes (ErrTimeout) or ctx is done.
	WaitForMessage(ctx context.Context, match func(Message) bool, timeout time.Duration) (*Message, error)

	// FetchUser looks a user up by id.
	FetchUser(ctx context.Context, userID string) (*User, error)

	// ResolveChannel checks that a channel exists and is reachable. A missing
	// channel yields an error wrapping apperror.ErrChannelNotFound.
	ResolveChannel(ctx context.Context, channelID string) error

	// CreateThread starts a thread anchored on a message.
	CreateThread(ctx context.Context, anchor *Message, name string) error
}

// FromUserIn matches messages posted by userID in channelID.
func FromUserIn(userID, channelID string) func(Message) bool {
	return func(m Message) bool {
		return m.AuthorID == userID && m.ChannelID == channelID
	}
}
