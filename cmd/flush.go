package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/apex/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newFlushCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Remove every firewall rule after confirmation",
		Long: `Remove every firewall rule. On iptables all chains are flushed, counters are
zeroed, the INPUT, FORWARD and OUTPUT policies are reset to ACCEPT and the nat
table is flushed. On nftables the whole ruleset is flushed.

The command asks for confirmation and only proceeds when the answer is "s".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			color.New(color.FgYellow, color.Bold).Fprintf(out, "This removes ALL %s rules and may leave the host unprotected.\n", a.manager.Backend())
			fmt.Fprint(out, "Type 's' to confirm: ")

			if !confirmed(cmd.InOrStdin()) {
				fmt.Fprintln(out, "Flush cancelled.")
				return nil
			}

			if err := a.manager.Flush(cmd.Context()); err != nil {
				log.WithError(err).Debug("firewall was not fully flushed")
				return nil
			}
			color.New(color.FgGreen).Fprintln(out, "All firewall rules were removed.")
			return nil
		},
	}
}

// confirmed reads a single line and reports whether it is exactly "s" or "S".
func confirmed(r io.Reader) bool {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return false
	}
	answer := strings.TrimRight(line, "\r\n")
	return answer == "s" || answer == "S"
}
