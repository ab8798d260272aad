// Package bot registers the slash commands and routes them to the sign-up
// flow and the shame report.
//
// REQUEST FLOW:
//
//	InteractionCreate → defer response → Dispatch → followup message(s)
//
// Discord wants an answer within three seconds, so every command is deferred
// first and answered with followups. /signup answers right away and leaves
// the conversation running in its own goroutine; it can take minutes.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/sakif/shamebot/internal/chat"
	"github.com/sakif/shamebot/internal/signup"
)

// Command names and their member option.
const (
	CommandSignup = "signup"
	CommandShame  = "shame"

	optionSignupTarget = "user_to_signup"
	optionShameTarget  = "user_to_shame"
)

// Replies shown in the channel.
const (
	msgSent          = "Sent %s dm to register"
	msgAlreadyLinked = "User %s already signed up"
	msgNoBots        = "Bots can't be signed up"
	msgSignupFailed  = "An error occurred while processing the signup command."
	msgShameFailed   = "An error occurred while processing the shame command."
)

// Commands is what gets registered with Discord.
var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        CommandSignup,
		Description: "Sign a member up for task shaming",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        optionSignupTarget,
			Description: "Mention of user",
			Required:    true,
		}},
	},
	{
		Name:        CommandShame,
		Description: "List a member's shamed tasks",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        optionShameTarget,
			Description: "Mention of user",
			Required:    true,
		}},
	},
}

// Signup is the part of signup.Flow the bot uses.
type Signup interface {
	Registered(ctx context.Context, discordID string) (bool, error)
	Run(ctx context.Context, target chat.User) (signup.State, error)
}

// Shamer is the part of service.ShameService the bot uses.
type Shamer interface {
	Report(ctx context.Context, discordID, mention string) ([]string, error)
}

// Reply posts a followup to the command being handled.
type Reply func(ctx context.Context, content string) error

// Bot dispatches slash commands.
type Bot struct {
	signup Signup
	shame  Shamer
	logger *slog.Logger

	// base outlives any single interaction; sign-up conversations run on it.
	base context.Context
	wg   sync.WaitGroup
}

// New creates a Bot. Conversations started by /signup stop when base is done.
func New(base context.Context, flow Signup, shame Shamer, logger *slog.Logger) *Bot {
	return &Bot{signup: flow, shame: shame, logger: logger, base: base}
}

// Register overwrites the application's commands in guildID (global when empty)
// and starts handling interactions. The session must be open.
func (b *Bot) Register(s *discordgo.Session, guildID string) error {
	appID := ""
	if s.State != nil && s.State.User != nil {
		appID = s.State.User.ID
	} else {
		me, err := s.User("@me")
		if err != nil {
			return fmt.Errorf("bot: looking up application id: %w", err)
		}
		appID = me.ID
	}

	registered, err := s.ApplicationCommandBulkOverwrite(appID, guildID, Commands)
	if err != nil {
		return fmt.Errorf("bot: registering commands: %w", err)
	}
	for _, cmd := range registered {
		b.logger.Info("command registered", slog.String("name", cmd.Name))
	}
	s.AddHandler(b.onInteraction)
	return nil
}

// Wait blocks until every running sign-up conversation has returned.
func (b *Bot) Wait() {
	b.wg.Wait()
}

func (b *Bot) onInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := ic.ApplicationCommandData()
	target, err := Target(data)
	if err != nil {
		b.logger.Warn("ignoring command", slog.String("command", data.Name), slog.String("error", err.Error()))
		return
	}

	var flags discordgo.MessageFlags
	if data.Name == CommandSignup {
		flags = discordgo.MessageFlagsEphemeral
	}

	ctx := b.base
	if err := s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	}, discordgo.WithContext(ctx)); err != nil {
		b.logger.Error("deferring interaction failed", slog.String("command", data.Name), slog.String("error", err.Error()))
		return
	}

	reply := func(ctx context.Context, content string) error {
		_, err := s.FollowupMessageCreate(ic.Interaction, true, &discordgo.WebhookParams{
			Content: chat.Clip(content, chat.MessageLimit),
			Flags:   flags,
		}, discordgo.WithContext(ctx))
		return err
	}

	if err := b.Dispatch(ctx, data.Name, target, reply); err != nil {
		b.logger.Error("command failed", slog.String("command", data.Name), slog.String("error", err.Error()))
	}
}

// Target reads the member option of a command.
func Target(data discordgo.ApplicationCommandInteractionData) (chat.User, error) {
	want := ""
	switch data.Name {
	case CommandSignup:
		want = optionSignupTarget
	case CommandShame:
		want = optionShameTarget
	default:
		return chat.User{}, fmt.Errorf("bot: unknown command %q", data.Name)
	}

	for _, opt := range data.Options {
		if opt.Name != want || opt.Type != discordgo.ApplicationCommandOptionUser {
			continue
		}
		id, ok := opt.Value.(string)
		if !ok || id == "" {
			break
		}
		user := chat.User{ID: id}
		if data.Resolved != nil {
			if u, ok := data.Resolved.Users[id]; ok {
				user.Username = u.Username
				user.Bot = u.Bot
			}
		}
		return user, nil
	}
	return chat.User{}, fmt.Errorf("bot: %s: missing option %s", data.Name, want)
}

// Dispatch runs a command. The error, if any, has already been turned into a
// user-facing reply; it is returned for logging. Panics are recovered.
func (b *Bot) Dispatch(ctx context.Context, command string, target chat.User, reply Reply) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bot: %s panicked: %v", command, r)
		}
	}()

	b.logger.Info("command received", slog.String("command", command), slog.String("target", target.ID))

	switch command {
	case CommandSignup:
		return b.handleSignup(ctx, target, reply)
	case CommandShame:
		return b.handleShame(ctx, target, reply)
	}
	return fmt.Errorf("bot: unknown command %q", command)
}

func (b *Bot) handleSignup(ctx context.Context, target chat.User, reply Reply) error {
	if target.Bot {
		return reply(ctx, msgNoBots)
	}

	registered, err := b.signup.Registered(ctx, target.ID)
	if err != nil {
		_ = reply(ctx, msgSignupFailed)
		return err
	}
	if registered {
		return reply(ctx, fmt.Sprintf(msgAlreadyLinked, target.Mention()))
	}

	if err := reply(ctx, fmt.Sprintf(msgSent, target.Mention())); err != nil {
		b.logger.Warn("signup followup failed", slog.String("error", err.Error()))
	}

	b.wg.Add(1)
	go b.converse(target)
	return nil
}

// converse runs one sign-up conversation to completion.
func (b *Bot) converse(target chat.User) {
	defer b.wg.Done()
	logger := b.logger.With(slog.String("discord_id", target.ID))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("signup panicked", slog.Any("panic", r))
		}
	}()

	state, err := b.signup.Run(b.base, target)
	switch {
	case errors.Is(err, signup.ErrAlreadySignedUp):
		logger.Info("signup skipped, already linked")
	case err != nil:
		logger.Error("signup failed", slog.String("state", state.String()), slog.String("error", err.Error()))
	default:
		logger.Info("signup ended", slog.String("state", state.String()))
	}
}

func (b *Bot) handleShame(ctx context.Context, target chat.User, reply Reply) error {
	lines, err := b.shame.Report(ctx, target.ID, target.Mention())
	if err != nil {
		_ = reply(ctx, msgShameFailed)
		return err
	}
	for _, page := range chat.Paginate(lines, chat.MessageLimit) {
		if err := reply(ctx, page); err != nil {
			return fmt.Errorf("bot: sending shame report: %w", err)
		}
	}
	return nil
}
