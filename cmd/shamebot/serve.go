package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sakif/shamebot/internal/bot"
	"github.com/sakif/shamebot/internal/chat/discord"
	"github.com/sakif/shamebot/internal/readout"
	"github.com/sakif/shamebot/internal/scheduler"
	"github.com/sakif/shamebot/internal/server"
	"github.com/sakif/shamebot/internal/service"
	"github.com/sakif/shamebot/internal/signup"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the HTTP server and the daily readout",
		Long: `Connect to Discord, register the /signup and /shame commands, serve the
Todoist OAuth callback and webhook, and post the readout every day at
schedule.post_time (UTC). Stops cleanly on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			return serve(ctx, a)
		},
	}
}

// serve is the composition root of the long-running process.
//
// DEPENDENCY CHAIN:
//
//	sqlite.DB ─────────────┬─▶ LinkService ──▶ server (/auth, /webhook, /connect)
//	auth.Provider ─────────┤        │
//	todoist.Client ────────┤        └──▶ signup.Flow ──▶ bot (/signup)
//	discord.Client ────────┼─▶ ShameService ──────────▶ bot (/shame)
//	                       └─▶ readout.Job ──▶ scheduler.Daily
func serve(ctx context.Context, a *app) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	hour, minute, err := a.cfg.Schedule.Clock()
	if err != nil {
		return err
	}

	db, err := a.openStore()
	if err != nil {
		return err
	}
	provider, err := a.newProvider()
	if err != nil {
		return err
	}
	td, err := a.newTodoist()
	if err != nil {
		return err
	}

	dc, err := discord.New(a.cfg.Discord.Token, a.logger.With(slog.String("component", "discord")))
	if err != nil {
		return err
	}
	if err := dc.Open(); err != nil {
		return err
	}
	a.closers = append(a.closers, dc)

	links := service.NewLinkService(db, provider, td, a.logger.With(slog.String("component", "link")))
	shame := service.NewShameService(db, td, a.logger.With(slog.String("component", "shame")))

	flow := signup.NewFlow(dc, db, links, signup.Config{
		EmailTimeout: a.cfg.Signup.EmailTimeout,
		PollInterval: a.cfg.Signup.PollInterval,
		PollAttempts: a.cfg.Signup.PollAttempts,
		CancelToken:  a.cfg.Signup.CancelToken,
	}, a.logger.With(slog.String("component", "signup")))

	commands := bot.New(ctx, flow, shame, a.logger.With(slog.String("component", "bot")))
	if err := commands.Register(dc.Session(), a.cfg.Discord.GuildID); err != nil {
		return err
	}

	job := readout.NewJob(dc, db, td, a.cfg.Discord.ChannelID, a.logger.With(slog.String("component", "readout")))
	daily, err := scheduler.NewDaily(hour, minute, func(ctx context.Context) error {
		_, err := job.Run(ctx)
		return err
	}, a.logger.With(slog.String("component", "scheduler")))
	if err != nil {
		return err
	}
	daily.Start(ctx)

	srvCfg := server.Config{Port: a.cfg.HTTP.Port}
	if a.cfg.Security.VerifyWebhooks {
		srvCfg.WebhookSecret = a.cfg.Todoist.ClientSecret
	}
	srv := server.New(srvCfg, links, a.logger.With(slog.String("component", "http")))
	err = srv.Start(ctx)

	// Shutdown order: no new runs, then let conversations see the cancelled
	// context and return, then main closes Discord and the database.
	daily.Stop()
	commands.Wait()
	a.logger.Info("shamebot stopped")
	return err
}
