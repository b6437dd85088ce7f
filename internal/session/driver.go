// Package session drives one SMPP bind end to end: connect, bind, run the
// submit loop and event dispatcher concurrently, unbind, close. One Driver
// owns exactly one codec Client and one correlation map.
package session

import (
	"context"
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/smpp-tools/smpploadgen/internal/bindstatus"
	"github.com/smpp-tools/smpploadgen/internal/correlation"
	"github.com/smpp-tools/smpploadgen/internal/diag"
	"github.com/smpp-tools/smpploadgen/internal/metrics"
	"github.com/smpp-tools/smpploadgen/internal/smppcodec"
)

// BindKind selects which bind RPC the driver issues once connected.
type BindKind int

const (
	BindTransmitter BindKind = iota
	BindTransceiver
)

// Config parametrizes a single bind's lifetime.
type Config struct {
	BindIndex int
	Connect   smppcodec.ConnectConfig
	Bind      smppcodec.BindRequest
	Kind      BindKind
	Template  smppcodec.SubmitTemplate

	MaxTPS      uint32 // 0 selects the unthrottled loop
	MaxInflight int

	// MessagesRemaining, if non-nil, is a process-wide submission budget
	// shared across every bind; each grant (throttled or unthrottled)
	// decrements it and the loop stops issuing new submissions at zero.
	// Nil means unbounded.
	MessagesRemaining *int64
}

type driverState string

const (
	statePending     driverState = "pending"
	stateConnecting  driverState = "connecting"
	stateBound       driverState = "bound"
	stateTerminating driverState = "terminating"
	stateClosed      driverState = "closed"
	stateError       driverState = "error"
)

// Driver runs the Pending -> Connecting -> Bound -> Terminating -> Closed
// lifecycle for one bind, with a fatal Error(msg) path reachable from any
// non-terminal state.
type Driver struct {
	cfg      Config
	connect  smppcodec.Connector
	registry *bindstatus.Registry
	metrics  *metrics.Metrics
	corr     *correlation.Map

	state  driverState
	client smppcodec.Client
	events smppcodec.EventStream
	trace  *diag.BindTracer
}

// New constructs a Driver. connect is the transport connector (production
// code passes smppwire.Connect); registry and metrics are shared across all
// binds and indexed by cfg.BindIndex.
func New(cfg Config, connect smppcodec.Connector, registry *bindstatus.Registry, m *metrics.Metrics) *Driver {
	return &Driver{
		cfg:      cfg,
		connect:  connect,
		registry: registry,
		metrics:  m,
		corr:     correlation.New(),
		state:    statePending,
	}
}

// Run executes the full bind lifecycle until ctx is cancelled or a fatal
// error occurs. It always returns after attempting Close, never leaking the
// underlying connection. The returned error is nil on cooperative
// cancellation and non-nil only for a fatal connect/bind failure.
func (d *Driver) Run(ctx context.Context) error {
	var log = log.WithFields(log.Fields{"bind": d.cfg.BindIndex})

	d.trace = diag.NewBindTracer(d.cfg.BindIndex)
	defer d.trace.Finish()

	if err := d.onConnect(ctx); err != nil {
		d.trace.Errorf("connect failed: %s", err)
		d.onFatal(err)
		return err
	}
	if err := d.onBind(ctx); err != nil {
		log.WithError(err).Warn("bind failed")
		d.trace.Errorf("bind failed: %s", err)
		d.onFatal(err)
		_ = d.client.Close()
		return err
	}

	d.mustState(stateBound)
	log.Info("bound")
	d.trace.Printf("bound")

	var dispatcherDone = make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		runDispatcher(ctx, d.cfg.BindIndex, d.client, d.events, d.metrics, d.corr)
	}()

	runSubmitLoop(ctx, submitLoopConfig{
		bindIndex:         d.cfg.BindIndex,
		client:            d.client,
		template:          d.cfg.Template,
		maxTPS:            d.cfg.MaxTPS,
		maxInflight:       d.cfg.MaxInflight,
		metrics:           d.metrics,
		registry:          d.registry,
		corr:              d.corr,
		messagesRemaining: d.cfg.MessagesRemaining,
	})

	d.state = stateTerminating
	d.trace.Printf("terminating")
	<-dispatcherDone

	if err := d.client.Unbind(context.Background()); err != nil {
		log.WithError(err).Debug("unbind failed, closing anyway")
	}
	if err := d.client.Close(); err != nil {
		log.WithError(err).Debug("close failed")
	}

	d.state = stateClosed
	d.trace.Printf("closed")
	return nil
}

func (d *Driver) onConnect(ctx context.Context) error {
	d.mustState(statePending)
	d.state = stateConnecting
	d.registry.SetState(d.cfg.BindIndex, bindstatus.Connecting)

	client, events, err := d.connect(ctx, d.cfg.Connect)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	d.client, d.events = client, events
	return nil
}

func (d *Driver) onBind(ctx context.Context) error {
	d.mustState(stateConnecting)

	var err error
	switch d.cfg.Kind {
	case BindTransceiver:
		err = d.client.BindTransceiver(ctx, d.cfg.Bind)
	default:
		err = d.client.BindTransmitter(ctx, d.cfg.Bind)
	}
	if err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	d.state = stateBound
	d.registry.SetState(d.cfg.BindIndex, bindstatus.Bound)
	return nil
}

func (d *Driver) onFatal(err error) {
	d.state = stateError
	d.registry.SetError(d.cfg.BindIndex, err.Error())
}

func (d *Driver) mustState(s driverState) {
	if d.state != s {
		log.WithFields(log.Fields{"expect": s, "actual": d.state, "bind": d.cfg.BindIndex}).
			Panic("unexpected session driver state")
	}
}

// decrementMessagesRemaining reports whether a submission may proceed under
// a shared process-wide budget. A nil budget always permits submission.
func decrementMessagesRemaining(budget *int64) bool {
	if budget == nil {
		return true
	}
	for {
		var cur = atomic.LoadInt64(budget)
		if cur <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt64(budget, cur, cur-1) {
			return true
		}
	}
}
