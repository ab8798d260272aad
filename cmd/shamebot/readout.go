package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sakif/shamebot/internal/chat/discord"
	"github.com/sakif/shamebot/internal/readout"
)

func newReadoutCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "readout",
		Short: "Post the daily readout now",
		Long: `Run the daily readout once, outside the schedule: fetch every linked
member's open tasks, label them, update streaks and post the report and
discussion thread to discord.channel_id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.cfg.Validate(); err != nil {
				return err
			}
			db, err := a.openStore()
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

			job := readout.NewJob(dc, db, td, a.cfg.Discord.ChannelID, a.logger.With(slog.String("component", "readout")))
			report, err := job.Run(ctx)
			if err != nil {
				return err
			}

			summary := tablewriter.NewWriter(cmd.OutOrStdout())
			summary.SetHeader([]string{"Completed", "Shamed", "Failed", "Skipped", "Messages"})
			summary.Append([]string{
				fmt.Sprint(report.Completed),
				fmt.Sprint(report.Shamed),
				fmt.Sprint(report.Failed),
				fmt.Sprint(report.Skipped),
				fmt.Sprint(report.Messages),
			})
			summary.Render()
			return nil
		},
	}
}
