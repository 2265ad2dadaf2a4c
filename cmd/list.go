package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every rule of the firewall backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.manager.List(cmd.Context(), cmd.OutOrStdout()); err != nil {
				color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "✗ %s\n", err)
			}
			return nil
		},
	}
}
