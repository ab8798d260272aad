package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConnectURLCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "connect-url",
		Short: "Print a Todoist authorize URL",
		Long: `Print the URL a member opens to let shamebot access their Todoist account.
When security.state_secret is set the URL carries a signed state that
expires after 15 minutes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			provider, err := a.newProvider()
			if err != nil {
				return err
			}
			url, err := provider.ConnectURL()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
}
