package firewall

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/netip"
	"strings"

	"emperror.dev/errors"
	"github.com/apex/log"
)

// Manager applies rule changes to the detected backend. A failing command
// never stops the commands queued after it; the failures are collected and
// returned together once everything has run.
type Manager struct {
	builder  *Builder
	executor *Executor
}

// NewManager creates a manager writing rules with b and running them with e.
func NewManager(b *Builder, e *Executor) *Manager {
	return &Manager{builder: b, executor: e}
}

// Backend returns the backend this manager administers.
func (m *Manager) Backend() Backend {
	return m.builder.Backend
}

// Apply adds an allow or drop rule, preceded by the established/related
// acceptance rule.
func (m *Manager) Apply(ctx context.Context, spec RuleSpec) error {
	// Fails harmlessly when the table or chain already exists.
	for _, line := range m.builder.Bootstrap() {
		_ = m.executor.Quiet(ctx, line)
	}

	var errs error
	for _, line := range m.builder.Rule(spec) {
		if err := m.executor.Execute(ctx, line); err != nil {
			errs = errors.Append(errs, err)
		}
	}

	log.WithFields(log.Fields{
		"backend": m.builder.Backend,
		"rule":    spec.String(),
		"failed":  len(errors.GetErrors(errs)),
	}).Debug("applied firewall rule")

	return errs
}

// Delete removes the rule Apply added for spec. The established/related rule
// is left in place.
func (m *Manager) Delete(ctx context.Context, spec RuleSpec) error {
	if m.builder.Backend != BackendNftables {
		return m.executor.Execute(ctx, m.builder.Delete(spec))
	}

	// nft only deletes rules by handle, so look the rule up in the chain.
	// The listing shows sources the way nft normalized them when the rule was
	// added.
	listed := spec
	listed.Source = listedSource(spec.Source)
	handle, err := m.findHandle(ctx, m.builder.Expression(listed))
	if err != nil {
		log.WithError(err).WithField("rule", spec.String()).Debug("failed to look up nftables rule handle")
	}
	if handle == "" {
		return m.executor.Execute(ctx, m.builder.Delete(spec))
	}
	return m.executor.Execute(ctx, m.builder.DeleteHandle(handle))
}

// findHandle returns the handle of the first rule in the inbound chain whose
// expression is expr, or an empty string if there is none.
func (m *Manager) findHandle(ctx context.Context, expr []string) (string, error) {
	out, err := m.executor.Capture(ctx, m.builder.ListChain())
	if err != nil {
		return "", err
	}

	want := strings.Join(expr, " ")
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		rule, handle, ok := strings.Cut(scanner.Text(), " # handle ")
		if !ok {
			continue
		}
		if strings.TrimSpace(rule) == want {
			return strings.TrimSpace(handle), nil
		}
	}
	return "", errors.Wrap(scanner.Err(), "firewall: failed to read chain listing")
}

// listedSource returns source in the form nft prints it: host bits masked,
// full-length prefixes reduced to the address, IPv6 lower-cased and
// compressed. Unparsable sources are returned unchanged.
func listedSource(source string) string {
	if source == "" {
		return source
	}
	if strings.Contains(source, "/") {
		p, err := netip.ParsePrefix(source)
		if err != nil {
			return source
		}
		p = p.Masked()
		if p.IsSingleIP() {
			return p.Addr().String()
		}
		return p.String()
	}
	a, err := netip.ParseAddr(source)
	if err != nil {
		return source
	}
	return a.String()
}

// List writes the backend's full rule listing to w.
func (m *Manager) List(ctx context.Context, w io.Writer) error {
	out, err := m.executor.Capture(ctx, m.builder.List())
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return errors.WithStack(err)
}

// Flush removes every rule and resets the backend to accept all traffic.
func (m *Manager) Flush(ctx context.Context) error {
	var errs error
	for _, line := range m.builder.Flush() {
		if err := m.executor.Execute(ctx, line); err != nil {
			errs = errors.Append(errs, err)
		}
	}
	return errs
}
