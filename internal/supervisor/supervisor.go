// Package supervisor constructs the shared bind-status registry and metrics
// aggregator, spawns one session driver per configured bind, and joins them
// on shutdown.
package supervisor

import (
	"context"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/smpp-tools/smpploadgen/internal/bindstatus"
	"github.com/smpp-tools/smpploadgen/internal/metrics"
	"github.com/smpp-tools/smpploadgen/internal/session"
	"github.com/smpp-tools/smpploadgen/internal/smppcodec"
)

// Supervisor owns the shared read surfaces (Registry, Metrics) and the set
// of session drivers running against them.
type Supervisor struct {
	Registry *bindstatus.Registry
	Metrics  *metrics.Metrics

	connect smppcodec.Connector
	drivers []*session.Driver
}

// New builds a Supervisor for the given per-bind configs, all sharing one
// Connector implementation (production callers pass smppwire.Connect).
func New(connect smppcodec.Connector, configs []session.Config) *Supervisor {
	var registry = bindstatus.New(len(configs))
	var m = metrics.New(len(configs))

	var drivers = make([]*session.Driver, len(configs))
	for i, cfg := range configs {
		drivers[i] = session.New(cfg, connect, registry, m)
	}

	return &Supervisor{Registry: registry, Metrics: m, connect: connect, drivers: drivers}
}

// Run launches every session driver concurrently and blocks until every
// driver has returned; with no drivers it blocks until ctx is cancelled.
// Drivers return on cancellation or on a fatal connect/bind error, so Run
// also returns without cancellation once every bind has failed. A session's fatal error is
// logged but never cancels its peers or propagates past Run; the exit code
// at the process boundary is always clean on a normal shutdown.
func (s *Supervisor) Run(ctx context.Context) {
	if len(s.drivers) == 0 {
		<-ctx.Done()
		return
	}

	var g, gctx = errgroup.WithContext(ctx)
	for i, d := range s.drivers {
		var idx, driver = i, d
		g.Go(func() error {
			if err := driver.Run(gctx); err != nil {
				log.WithFields(log.Fields{"bind": idx}).WithError(err).Warn("session ended with error")
			}
			return nil
		})
	}

	// errgroup cancels its derived context only when a Go func returns a
	// non-nil error or Wait returns; every func here returns nil, so a
	// driver that fails early never cancels its peers and gctx is
	// effectively just ctx. Wait blocks until every driver has joined.
	_ = g.Wait()
}
