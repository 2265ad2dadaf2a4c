package firewall

import (
	"context"

	"emperror.dev/errors"
	"github.com/apex/log"
)

// ErrNoBackend is returned by Detect when neither backend can be queried.
var ErrNoBackend = errors.Sentinel("firewall: no usable nftables or iptables backend")

// Prober runs a command line silently and reports whether it succeeded.
type Prober interface {
	Probe(ctx context.Context, line CommandLine) error
}

// Detect returns the first backend whose read-only probe succeeds. The
// ruleset backend is tried before the legacy one.
func Detect(ctx context.Context, p Prober, layout Layout) (Backend, error) {
	for _, backend := range []Backend{BackendNftables, BackendIptables} {
		b := &Builder{Backend: backend, Layout: layout}
		if err := p.Probe(ctx, b.Probe()); err != nil {
			log.WithField("backend", backend).WithError(err).Debug("firewall backend probe failed")
			continue
		}
		log.WithField("backend", backend).Debug("detected firewall backend")
		return backend, nil
	}
	return "", ErrNoBackend
}
