package firewall

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/fatih/color"
)

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
)

// Runner starts a process from an argument vector and waits for it to exit.
type Runner interface {
	Run(ctx context.Context, argv []string, stdout, stderr io.Writer) error
}

// ExecRunner runs processes on the host with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, argv []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// Executor runs firewall command lines with elevated privileges.
type Executor struct {
	privilege []string
	runner    Runner
	stdout    io.Writer
	stderr    io.Writer
}

type ExecutorOption func(e *Executor)

// WithPrivilege sets the command prefixed to every command line. An empty
// command runs command lines directly.
func WithPrivilege(command string, args ...string) ExecutorOption {
	return func(e *Executor) {
		if command == "" {
			e.privilege = nil
			return
		}
		e.privilege = append([]string{command}, args...)
	}
}

// WithRunner replaces the process runner.
func WithRunner(r Runner) ExecutorOption {
	return func(e *Executor) {
		e.runner = r
	}
}

// WithOutput sets where confirmations and failures are written.
func WithOutput(stdout, stderr io.Writer) ExecutorOption {
	return func(e *Executor) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// NewExecutor returns an executor that runs commands through sudo.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		privilege: []string{"sudo"},
		runner:    ExecRunner{},
		stdout:    os.Stdout,
		stderr:    os.Stderr,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Privilege returns the privilege prefix, or nil if commands run directly.
func (e *Executor) Privilege() []string {
	return e.privilege
}

func (e *Executor) argv(line CommandLine) []string {
	argv := make([]string, 0, len(e.privilege)+len(line))
	argv = append(argv, e.privilege...)
	return append(argv, line...)
}

// Execute runs line and reports the outcome. On failure the captured stderr
// is written to the error stream and returned in the error.
func (e *Executor) Execute(ctx context.Context, line CommandLine) error {
	var stderr bytes.Buffer
	log.WithField("command", line.String()).Debug("executing firewall command")

	if err := e.runner.Run(ctx, e.argv(line), e.stdout, &stderr); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		failColor.Fprintf(e.stderr, "✗ %s\n", line)
		failColor.Fprintf(e.stderr, "  %s\n", strings.ReplaceAll(detail, "\n", "\n  "))
		return commandError(ctx, line, err, strings.TrimSpace(stderr.String()))
	}

	okColor.Fprintf(e.stdout, "✓ %s\n", line)
	return nil
}

// Probe runs line discarding all of its output.
func (e *Executor) Probe(ctx context.Context, line CommandLine) error {
	if err := e.runner.Run(ctx, e.argv(line), io.Discard, io.Discard); err != nil {
		return errors.Wrapf(err, "firewall: %s", line)
	}
	return nil
}

// Quiet runs line without reporting anything to the user. Failures are only
// logged at debug level.
func (e *Executor) Quiet(ctx context.Context, line CommandLine) error {
	var stderr bytes.Buffer
	if err := e.runner.Run(ctx, e.argv(line), io.Discard, &stderr); err != nil {
		err = commandError(ctx, line, err, strings.TrimSpace(stderr.String()))
		log.WithField("command", line.String()).WithError(err).Debug("ignoring firewall command failure")
		return err
	}
	return nil
}

// Capture runs line and returns what it wrote to stdout.
func (e *Executor) Capture(ctx context.Context, line CommandLine) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	log.WithField("command", line.String()).Debug("executing firewall command")

	if err := e.runner.Run(ctx, e.argv(line), &stdout, &stderr); err != nil {
		return nil, commandError(ctx, line, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func commandError(ctx context.Context, line CommandLine, err error, stderr string) error {
	if ctx.Err() != nil {
		return errors.Wrapf(ctx.Err(), "%s was cancelled", line)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ProcessState != nil && exitErr.Exited() {
		if stderr != "" {
			return errors.Wrapf(err, "%s failed (exit code: %d): %s", line, exitErr.ExitCode(), stderr)
		}
		return errors.Wrapf(err, "%s failed (exit code: %d)", line, exitErr.ExitCode())
	}

	if stderr != "" {
		return errors.Wrapf(err, "%s failed: %s", line, stderr)
	}
	return errors.Wrapf(err, "%s failed", line)
}
