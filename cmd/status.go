package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/priyxstudio/portwall/config"
	"github.com/priyxstudio/portwall/system"
)

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the detected firewall backend and host information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := system.GetSystemInformation()
			cfg := config.Get()

			source := "detected"
			if cfg.Backend != "" {
				source = "configured"
			}
			path := cfg.GetPath()
			if path == "" {
				path = "(defaults)"
			}

			privilege := strings.Join(a.executor.Privilege(), " ")
			if privilege == "" {
				privilege = "(none)"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %s (%s)\n", "Backend:", a.manager.Backend(), source)
			fmt.Fprintf(out, "%-10s %s\n", "Config:", path)
			fmt.Fprintf(out, "%-10s %s\n", "Privilege:", privilege)
			fmt.Fprintf(out, "%-10s %s\n", "OS:", info.OS)
			fmt.Fprintf(out, "%-10s %s (%s/%s)\n", "Kernel:", info.KernelVersion, info.OSType, info.Architecture)
			fmt.Fprintf(out, "%-10s %s\n", "Version:", info.Version)
		},
	}
}
