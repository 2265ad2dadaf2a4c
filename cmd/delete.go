package cmd

import (
	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/priyxstudio/portwall/firewall"
)

func newDeleteCommand(a *app) *cobra.Command {
	var source string

	command := &cobra.Command{
		Use:   "delete <allow|drop> <tcp|udp> <port>",
		Short: "Delete a rule previously added with allow or drop",
		Long: `Delete a rule previously added with allow or drop. The rule must be given
exactly as it was added, including --source. The established/related rule
added alongside it is kept.`,
		Args: ruleArgs(true),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := firewall.ParseAction(args[0])
			if err != nil {
				return err
			}
			spec, err := parseRule(action, args[1:], source)
			if err != nil {
				return err
			}
			if err := a.manager.Delete(cmd.Context(), spec); err != nil {
				log.WithError(err).WithField("rule", spec.String()).Debug("firewall rule was not deleted")
			}
			return nil
		},
	}

	command.Flags().StringVar(&source, "source", "", "the source the rule was added with")

	return command
}
