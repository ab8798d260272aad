package discord

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/shamebot/internal/chat"
	"github.com/sakif/shamebot/internal/logging"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New("test-token", logging.Discard())
	require.NoError(t, err)
	return c
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New("", logging.Discard())
	assert.Error(t, err)
}

func TestNew_SetsIntents(t *testing.T) {
	c := newTestClient(t)
	assert.Equal(t, discordgo.Intent(Intents), c.Session().Identify.Intents)
	assert.NotZero(t, Intents&discordgo.IntentMessageContent)
}

func TestOnMessageCreate_DeliversToWaiter(t *testing.T) {
	c := newTestClient(t)
	got := make(chan *chat.Message, 1)

	go func() {
		m, _ := c.WaitForMessage(context.Background(), chat.FromUserIn("42", "dm"), time.Second)
		got <- m
	}()
	require.Eventually(t, func() bool { return c.waiters.Len() == 1 }, time.Second, time.Millisecond)

	// Bot messages are ignored.
	c.onMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "1", ChannelID: "dm", Content: "beep", Author: &discordgo.User{ID: "42", Bot: true},
	}})
	assert.Equal(t, 1, c.waiters.Len())

	c.onMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "2", ChannelID: "dm", Content: "a@example.com", Author: &discordgo.User{ID: "42"},
	}})

	m := <-got
	require.NotNil(t, m)
	assert.Equal(t, "a@example.com", m.Content)
	assert.Equal(t, "2", m.ID)
}

func TestResolveChannel_Unset(t *testing.T) {
	c := newTestClient(t)
	err := c.ResolveChannel(context.Background(), "")
	assert.Error(t, err)
}
