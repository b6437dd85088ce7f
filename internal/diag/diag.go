// Package diag exposes an optional live diagnostics HTTP surface: per-bind
// execution traces (golang.org/x/net/trace) alongside the standard runtime
// profiler endpoints, for operators who need to see what one bind is doing
// right now without restarting the run.
package diag

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on http.DefaultServeMux

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/trace"
)

func init() {
	// trace.AuthRequest defaults to localhost-only; it is replaced here so
	// /debug/requests and /debug/events answer any client that can reach
	// --diag-addr. No server runs unless --diag-addr is set.
	trace.AuthRequest = func(req *http.Request) (any, sensitive bool) {
		return true, true
	}
}

// Family is the x/net/trace family every bind's traces are grouped under.
const Family = "smpploadgen.bind"

// BindTracer emits lazily-formatted trace events for one bind's lifecycle,
// visible at /debug/requests while the process is running.
type BindTracer struct {
	tr trace.Trace
}

// NewBindTracer starts a new trace for bindIdx. Callers must call Finish
// when the bind's session ends.
func NewBindTracer(bindIdx int) *BindTracer {
	return &BindTracer{tr: trace.New(Family, fmt.Sprintf("bind-%d", bindIdx))}
}

// Printf adds a lazily-formatted event to the trace.
func (b *BindTracer) Printf(format string, args ...interface{}) {
	if b.tr != nil {
		b.tr.LazyPrintf(format, args...)
	}
}

// Errorf adds an event marked as an error, which x/net/trace highlights.
func (b *BindTracer) Errorf(format string, args ...interface{}) {
	if b.tr != nil {
		b.tr.LazyPrintf(format, args...)
		b.tr.SetError()
	}
}

// Finish ends the trace. Calling it again is a no-op.
func (b *BindTracer) Finish() {
	if b.tr != nil {
		b.tr.Finish()
		b.tr = nil
	}
}

// Server serves /debug/requests, /debug/events and /debug/pprof/* on addr
// until ctx is cancelled. Errors other than the expected shutdown are
// logged; Server never blocks process exit on a slow listener.
func Server(ctx context.Context, addr string) {
	if addr == "" {
		return
	}

	var srv = &http.Server{Addr: addr, Handler: http.DefaultServeMux}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	log.WithField("addr", addr).Info("diagnostics server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Warn("diagnostics server exited")
	}
}
