// Package signup runs the direct-message conversation that binds a Discord
// member to the Todoist account they authorize.
//
// STATE MACHINE:
//
//	Idle ──start──▶ AwaitingEmail ──one valid email──▶ AwaitingLink ──bound──▶ Linked
//	                  ▲    │                              │
//	                  │    └──zero or several emails──┐   │
//	                  │         (re-prompt)           │   │
//	                  └───────────────────────────────┘   │
//	                  └──────────email already claimed────┘
//
//	any non-terminal state ──cancel token / timeout / no authorization──▶ Cancelled
//
// Every wait is bounded: one EmailTimeout per email prompt, and PollAttempts
// waits of PollInterval while the member authorizes. Each wait also listens
// for the cancel token. Conversations for different members run in their own
// goroutines and share nothing but the store.
package signup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/sakif/shamebot/internal/apperror"
	"github.com/sakif/shamebot/internal/chat"
	"github.com/sakif/shamebot/internal/repository"
)

// State is a sign-up conversation state.
type State int

const (
	Idle State = iota
	AwaitingEmail
	AwaitingLink
	Linked
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingEmail:
		return "awaiting_email"
	case AwaitingLink:
		return "awaiting_link"
	case Linked:
		return "linked"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether the conversation is over.
func (s State) Terminal() bool {
	return s == Linked || s == Cancelled
}

// ErrAlreadySignedUp is returned when the target member is already bound.
var ErrAlreadySignedUp = errors.New("signup: member is already signed up")

// emailPattern is deliberately loose; Todoist's own account email is the real check.
var emailPattern = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)

// Messages sent to the member.
const (
	msgWelcome       = "Welcome to task shaming! Please reply with the email address of your Todoist account. Reply '%s' at any time to cancel."
	msgNoEmail       = "No valid email provided, please try again"
	msgManyEmails    = "Please provide only one email address"
	msgTimedOut      = "User signup timed out, please try again later"
	msgCancelled     = "User signup cancelled"
	msgClaimed       = "%s is already registered, please try another email"
	msgLink          = "Please authorize task shaming to access your Todoist account: %s\nI'll keep checking for the next %.0f minutes."
	msgNoAuth        = "No authorization found for given email, please try again later"
	msgLinked        = "Todoist linking complete!"
	msgInternalError = "Something went wrong during signup, please try again later"
)

// Config bounds a conversation.
type Config struct {
	EmailTimeout time.Duration
	PollInterval time.Duration
	PollAttempts int
	CancelToken  string
}

// LinkIssuer hands out Todoist authorize URLs.
type LinkIssuer interface {
	ConnectURL() (string, error)
}

// Flow starts sign-up conversations.
type Flow struct {
	chat   chat.Surface
	users  repository.UserRepository
	links  LinkIssuer
	cfg    Config
	logger *slog.Logger
}

// NewFlow creates a Flow.
func NewFlow(surface chat.Surface, users repository.UserRepository, links LinkIssuer, cfg Config, logger *slog.Logger) *Flow {
	if cfg.CancelToken == "" {
		cfg.CancelToken = "q"
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 1
	}
	return &Flow{chat: surface, users: users, links: links, cfg: cfg, logger: logger}
}

// Registered reports whether a Discord account is already bound.
func (f *Flow) Registered(ctx context.Context, discordID string) (bool, error) {
	_, err := f.users.GetUserByDiscordID(ctx, discordID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, apperror.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("signup: checking %s: %w", discordID, err)
}

// Run converses with target until the conversation ends and returns the final state.
// A member who is already bound gets ErrAlreadySignedUp and no conversation.
func (f *Flow) Run(ctx context.Context, target chat.User) (State, error) {
	registered, err := f.Registered(ctx, target.ID)
	if err != nil {
		return Idle, err
	}
	if registered {
		return Idle, ErrAlreadySignedUp
	}

	dm, err := f.chat.OpenDM(ctx, target.ID)
	if err != nil {
		return Idle, fmt.Errorf("signup: opening DM: %w", err)
	}

	c := &conversation{
		flow:   f,
		target: target,
		dm:     dm,
		state:  AwaitingEmail,
		logger: f.logger.With(slog.String("discord_id", target.ID)),
	}
	if err := c.say(ctx, fmt.Sprintf(msgWelcome, f.cfg.CancelToken)); err != nil {
		return Cancelled, err
	}

	for !c.state.Terminal() {
		prev := c.state
		switch c.state {
		case AwaitingEmail:
			c.awaitEmail(ctx)
		case AwaitingLink:
			c.awaitLink(ctx)
		}
		if c.state != prev {
			c.logger.Debug("signup transition", slog.String("from", prev.String()), slog.String("to", c.state.String()))
		}
	}

	c.logger.Info("signup finished", slog.String("state", c.state.String()))
	return c.state, c.err
}

// conversation is the mutable state of one Run.
type conversation struct {
	flow   *Flow
	target chat.User
	dm     string
	state  State
	email  string
	err    error
	logger *slog.Logger
}

func (c *conversation) say(ctx context.Context, text string) error {
	if _, err := c.flow.chat.Send(ctx, c.dm, text); err != nil {
		return fmt.Errorf("signup: sending DM: %w", err)
	}
	return nil
}

// fail ends the conversation on an unexpected error.
func (c *conversation) fail(ctx context.Context, err error) {
	c.logger.Error("signup failed", slog.String("error", err.Error()))
	_ = c.say(ctx, msgInternalError)
	c.state = Cancelled
	c.err = err
}

// cancel ends the conversation with a notice.
func (c *conversation) cancel(ctx context.Context, notice string) {
	if err := c.say(ctx, notice); err != nil {
		c.err = err
	}
	c.state = Cancelled
}

func (c *conversation) isCancel(m *chat.Message) bool {
	return strings.EqualFold(strings.TrimSpace(m.Content), c.flow.cfg.CancelToken)
}

// awaitEmail waits for one reply and validates it.
func (c *conversation) awaitEmail(ctx context.Context) {
	msg, err := c.flow.chat.WaitForMessage(ctx, chat.FromUserIn(c.target.ID, c.dm), c.flow.cfg.EmailTimeout)
	switch {
	case errors.Is(err, chat.ErrTimeout):
		c.cancel(ctx, msgTimedOut)
		return
	case err != nil:
		c.state = Cancelled
		c.err = err
		return
	}

	if c.isCancel(msg) {
		c.cancel(ctx, msgCancelled)
		return
	}

	emails := emailPattern.FindAllString(msg.Content, -1)
	switch len(emails) {
	case 0:
		c.reprompt(ctx, msgNoEmail)
	case 1:
		c.email = emails[0]
		c.state = AwaitingLink
	default:
		c.reprompt(ctx, msgManyEmails)
	}
}

func (c *conversation) reprompt(ctx context.Context, text string) {
	if err := c.say(ctx, text); err != nil {
		c.state = Cancelled
		c.err = err
	}
}

// bind tries to attach the member to c.email. It reports whether the
// conversation should keep polling.
func (c *conversation) bind(ctx context.Context) (pending bool) {
	ok, err := c.flow.users.BindDiscordID(ctx, c.email, c.target.ID)
	switch {
	case errors.Is(err, apperror.ErrIdentityClaimed):
		c.state = AwaitingEmail
		c.reprompt(ctx, fmt.Sprintf(msgClaimed, c.email))
		return false
	case err != nil:
		c.fail(ctx, err)
		return false
	case ok:
		c.state = Linked
		if err := c.say(ctx, msgLinked); err != nil {
			c.err = err
		}
		return false
	}
	return true
}

// awaitLink binds immediately if the account is already known, otherwise
// sends the authorize link and polls until the OAuth callback stores it.
func (c *conversation) awaitLink(ctx context.Context) {
	if !c.bind(ctx) {
		return
	}

	url, err := c.flow.links.ConnectURL()
	if err != nil {
		c.fail(ctx, err)
		return
	}
	window := time.Duration(c.flow.cfg.PollAttempts) * c.flow.cfg.PollInterval
	if err := c.say(ctx, fmt.Sprintf(msgLink, url, window.Minutes())); err != nil {
		c.state = Cancelled
		c.err = err
		return
	}

	for attempt := 1; attempt <= c.flow.cfg.PollAttempts; attempt++ {
		msg, err := c.flow.chat.WaitForMessage(ctx, chat.FromUserIn(c.target.ID, c.dm), c.flow.cfg.PollInterval)
		switch {
		case err == nil && c.isCancel(msg):
			c.cancel(ctx, msgCancelled)
			return
		case err != nil && !errors.Is(err, chat.ErrTimeout):
			c.state = Cancelled
			c.err = err
			return
		}

		c.logger.Debug("polling for authorization", slog.Int("attempt", attempt))
		if !c.bind(ctx) {
			return
		}
	}

	c.cancel(ctx, msgNoAuth)
}
