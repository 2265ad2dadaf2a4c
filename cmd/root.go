package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/priyxstudio/portwall/config"
	"github.com/priyxstudio/portwall/firewall"
	"github.com/priyxstudio/portwall/loggers/cli"
	"github.com/priyxstudio/portwall/system"
)

// app holds what the subcommands share for one process run. The manager is
// created once, after backend detection, before any subcommand runs.
type app struct {
	configPath string
	debug      bool
	sudo       string
	backend    string

	runner   firewall.Runner
	executor *firewall.Executor
	manager  *firewall.Manager
}

// Execute runs the command line and exits non-zero on detection or argument
// errors. Failed firewall commands are reported but do not change the exit
// status.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := newRootCommand(&app{runner: firewall.ExecRunner{}})
	if err := command.ExecuteContext(ctx); err != nil {
		reportError(command.ErrOrStderr(), err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand(a *app) *cobra.Command {
	command := &cobra.Command{
		Use:   "portwall",
		Short: "Allow, drop and delete port rules on nftables or iptables",
		Long: `portwall manages simple port-based firewall rules without the backend syntax.

It detects whether the host is administered with nftables or iptables, then
builds and runs the matching commands through sudo.

Examples:
  portwall allow tcp 443
  portwall drop udp 53 --source 10.0.0.0/24
  portwall delete allow tcp 443
  portwall list`,
		Version:           system.Version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Printing usage must not probe the firewall through sudo.
			if cmd.Name() == "help" {
				return nil
			}
			return a.initialize(cmd)
		},
	}

	command.PersistentFlags().StringVar(&a.configPath, "config", "", "optional YAML configuration file")
	command.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")
	command.PersistentFlags().StringVar(&a.sudo, "sudo", "sudo", "privilege command prefixed to firewall commands (empty to run directly)")
	command.PersistentFlags().StringVar(&a.backend, "backend", "", "use this backend (nftables or iptables) instead of detecting one")

	command.AddCommand(
		newRuleCommand(a, firewall.ActionAllow),
		newRuleCommand(a, firewall.ActionDrop),
		newDeleteCommand(a),
		newListCommand(a),
		newFlushCommand(a),
		newStatusCommand(a),
	)

	return command
}

// initialize loads the configuration, configures logging and selects the
// firewall backend.
func (a *app) initialize(cmd *cobra.Command) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	config.Set(cfg)

	log.SetHandler(cli.New(cmd.ErrOrStderr(), true))
	log.SetLevel(log.InfoLevel)
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	a.executor = firewall.NewExecutor(
		firewall.WithRunner(a.runner),
		firewall.WithPrivilege(cfg.Privilege.Command, cfg.Privilege.Args...),
		firewall.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()),
	)

	var backend firewall.Backend
	if cfg.Backend != "" {
		if backend, err = firewall.ParseBackend(cfg.Backend); err != nil {
			return err
		}
		log.WithField("backend", backend).Debug("using configured firewall backend")
	} else if backend, err = firewall.Detect(cmd.Context(), a.executor, cfg.Layout()); err != nil {
		return err
	}

	a.manager = firewall.NewManager(&firewall.Builder{Backend: backend, Layout: cfg.Layout()}, a.executor)
	return nil
}

// loadConfig reads the configuration file if one was given and applies the
// flags that were set explicitly on top of it.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Configuration, error) {
	var cfg *config.Configuration
	var err error
	if a.configPath != "" {
		cfg, err = config.FromFile(a.configPath)
	} else {
		cfg, err = config.NewAtPath("")
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("debug") {
		cfg.Debug = a.debug
	}
	if flags.Changed("sudo") {
		cfg.Privilege.Command = a.sudo
		cfg.Privilege.Args = nil
	}
	if flags.Changed("backend") {
		if _, err := firewall.ParseBackend(a.backend); err != nil {
			return nil, err
		}
		cfg.Backend = a.backend
	}
	return cfg, nil
}

func reportError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	if errors.Is(err, firewall.ErrNoBackend) {
		red.Fprintln(w, "PERMISSION/DETECTION ERROR:")
		fmt.Fprintln(w, "Could not find or run 'nft' or 'iptables'.")
		fmt.Fprintln(w, "Make sure one of them is installed and that portwall runs as a user with sudo rights.")
		return
	}
	red.Fprintf(w, "Error: %s\n", err)
	fmt.Fprintln(w, "Run 'portwall --help' for usage.")
}
