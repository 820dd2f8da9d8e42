package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the token-queue CLI. Running it without a
// subcommand starts the server.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "token-queue",
		Short:        "Token queue for service counters: kiosk, counters and display board",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newLayoutCommand())
	root.AddCommand(newHashPasswordCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newOutboxCommand())
	return root
}
