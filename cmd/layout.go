package cmd

import (
	"github.com/spf13/cobra"

	"qms/token-queue/internal/config"
)

func newLayoutCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Validate a layout file and print it as YAML (the built-in layout without --file)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = config.Load().LayoutFile
			}
			layout, err := config.LoadLayout(file)
			if err != nil {
				return err
			}
			out, err := layout.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "layout YAML file (defaults to LAYOUT_FILE)")
	return cmd
}
