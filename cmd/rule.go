package cmd

import (
	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/priyxstudio/portwall/firewall"
)

func newRuleCommand(a *app, action firewall.Action) *cobra.Command {
	var source string
	short := "Allow inbound traffic to a port"
	if action == firewall.ActionDrop {
		short = "Drop inbound traffic to a port"
	}

	command := &cobra.Command{
		Use:       string(action) + " <tcp|udp> <port>",
		Short:     short,
		Args:      ruleArgs(false),
		ValidArgs: []string{"tcp", "udp"},
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := parseRule(action, args, source)
			if err != nil {
				return err
			}
			if err := a.manager.Apply(cmd.Context(), spec); err != nil {
				log.WithError(err).WithField("rule", spec.String()).Debug("firewall rule was not fully applied")
			}
			return nil
		},
	}

	command.Flags().StringVar(&source, "source", "", "only match traffic from this IP address or CIDR block")

	return command
}

// ruleArgs validates "[allow|drop] <tcp|udp> <port>" positional arguments
// before the backend is detected.
func ruleArgs(withAction bool) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		n := 2
		if withAction {
			n = 3
		}
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return err
		}
		if withAction {
			if _, err := firewall.ParseAction(args[0]); err != nil {
				return err
			}
			args = args[1:]
		}
		_, err := parseRule(firewall.ActionAllow, args, "")
		return err
	}
}

// parseRule coerces "<tcp|udp> <port>" into a rule for action.
func parseRule(action firewall.Action, args []string, source string) (firewall.RuleSpec, error) {
	protocol, err := firewall.ParseProtocol(args[0])
	if err != nil {
		return firewall.RuleSpec{}, err
	}
	port, err := firewall.ParsePort(args[1])
	if err != nil {
		return firewall.RuleSpec{}, err
	}
	return firewall.RuleSpec{Action: action, Protocol: protocol, Port: port, Source: source}, nil
}
