// Package chattest provides an in-memory chat.Surface for tests.
package chattest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sakif/shamebot/internal/apperror"
	"github.com/sakif/shamebot/internal/chat"
)

// Thread records a CreateThread call.
type Thread struct {
	AnchorID  string
	ChannelID string
	Name      string
}

// Fake is a scripted chat surface.
//
// WaitForMessage never blocks: it returns the first queued reply that matches,
// or chat.ErrTimeout if none does. OnWait, when set, runs before each wait
// with the 1-based wait count, which lets a test change the world (insert a
// user, queue a reply) at a precise step of a conversation.
type Fake struct {
	mu sync.Mutex

	Sent     []chat.Message
	Threads  []Thread
	Users    map[string]chat.User
	Channels map[string]bool // nil: every channel resolves

	SendErr error
	OnWait  func(n int)

	replies []chat.Message
	waits   int
	nextID  int
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{Users: map[string]chat.User{}}
}

// QueueReply schedules a message to be returned by a later WaitForMessage.
func (f *Fake) QueueReply(m chat.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, m)
}

// Waits returns how many times WaitForMessage was called.
func (f *Fake) Waits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waits
}

// SentTo returns the contents sent to channelID, in order.
func (f *Fake) SentTo(channelID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.Sent {
		if m.ChannelID == channelID {
			out = append(out, m.Content)
		}
	}
	return out
}

// Transcript joins everything sent to channelID with newlines.
func (f *Fake) Transcript(channelID string) string {
	return strings.Join(f.SentTo(channelID), "\n")
}

func (f *Fake) Send(_ context.Context, channelID, content string) (*chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return nil, f.SendErr
	}
	f.nextID++
	m := chat.Message{
		ID:        fmt.Sprintf("m%d", f.nextID),
		ChannelID: channelID,
		AuthorID:  "bot",
		Content:   chat.Clip(content, chat.MessageLimit),
	}
	f.Sent = append(f.Sent, m)
	return &m, nil
}

func (f *Fake) OpenDM(_ context.Context, userID string) (string, error) {
	return DMChannel(userID), nil
}

// DMChannel is the channel id OpenDM returns for userID.
func DMChannel(userID string) string {
	return "dm-" + userID
}

func (f *Fake) WaitForMessage(_ context.Context, match func(chat.Message) bool, _ time.Duration) (*chat.Message, error) {
	f.mu.Lock()
	f.waits++
	n := f.waits
	hook := f.OnWait
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.replies {
		if match(m) {
			f.replies = append(f.replies[:i], f.replies[i+1:]...)
			return &m, nil
		}
	}
	return nil, chat.ErrTimeout
}

func (f *Fake) FetchUser(_ context.Context, userID string) (*chat.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.Users[userID]; ok {
		return &u, nil
	}
	return &chat.User{ID: userID, Username: "user" + userID}, nil
}

func (f *Fake) ResolveChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Channels == nil || f.Channels[channelID] {
		return nil
	}
	return apperror.ChannelNotFound(channelID)
}

func (f *Fake) CreateThread(_ context.Context, anchor *chat.Message, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Threads = append(f.Threads, Thread{AnchorID: anchor.ID, ChannelID: anchor.ChannelID, Name: name})
	return nil
}

var _ chat.Surface = (*Fake)(nil)
