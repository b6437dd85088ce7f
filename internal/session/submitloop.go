package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/smpp-tools/smpploadgen/internal/bindstatus"
	"github.com/smpp-tools/smpploadgen/internal/correlation"
	"github.com/smpp-tools/smpploadgen/internal/metrics"
	"github.com/smpp-tools/smpploadgen/internal/smppcodec"
)

// tickMillis is the token-bucket's fixed tick period: 100 ticks/second.
const tickMillis = 10 * time.Millisecond

const ticksPerSecond = uint32(time.Second / tickMillis)

type submitLoopConfig struct {
	bindIndex   int
	client      smppcodec.Client
	template    smppcodec.SubmitTemplate
	maxTPS      uint32
	maxInflight int

	metrics           *metrics.Metrics
	registry          *bindstatus.Registry
	corr              *correlation.Map
	messagesRemaining *int64
}

type submissionOutcome struct {
	messageID string
	err       error
	latency   time.Duration
}

// runSubmitLoop issues submit_sm at the configured rate and concurrency
// until ctx is cancelled, then drains every in-flight submission before
// returning. It never issues a new submission after ctx is done.
func runSubmitLoop(ctx context.Context, cfg submitLoopConfig) {
	var inflight = newInflightSet()

	if cfg.maxTPS == 0 {
		runUnthrottled(ctx, cfg, inflight)
	} else {
		runThrottled(ctx, cfg, inflight)
	}

	inflight.drain(func(o submissionOutcome) { handleOutcome(cfg, o) })
}

func runUnthrottled(ctx context.Context, cfg submitLoopConfig, inflight *inflightSet) {
	for inflight.len() < cfg.maxInflight {
		if !inflight.tryLaunch(ctx, cfg) {
			break
		}
	}
	if budgetExhausted(cfg) && inflight.len() == 0 {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case o := <-inflight.completions():
			inflight.received()
			handleOutcome(cfg, o)
			if ctx.Err() != nil {
				return
			}
			if budgetExhausted(cfg) && inflight.len() == 0 {
				return
			}
			inflight.tryLaunch(ctx, cfg)
		}
	}
}

// budgetExhausted reports whether the shared process-wide message budget,
// if configured, has been fully spent.
func budgetExhausted(cfg submitLoopConfig) bool {
	return cfg.messagesRemaining != nil && atomic.LoadInt64(cfg.messagesRemaining) <= 0
}

func runThrottled(ctx context.Context, cfg submitLoopConfig, inflight *inflightSet) {
	var (
		ticker    = time.NewTicker(tickMillis)
		allowance uint32
		remainder uint32
	)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case o := <-inflight.completions():
			inflight.received()
			handleOutcome(cfg, o)

		case <-ticker.C:
			allowance += cfg.maxTPS / ticksPerSecond
			remainder += cfg.maxTPS % ticksPerSecond
			if remainder >= ticksPerSecond {
				allowance++
				remainder -= ticksPerSecond
			}

			for allowance > 0 && inflight.len() < cfg.maxInflight {
				if !inflight.tryLaunch(ctx, cfg) {
					break
				}
				allowance--
			}

			if budgetExhausted(cfg) && inflight.len() == 0 {
				return
			}
		}
	}
}

func handleOutcome(cfg submitLoopConfig, o submissionOutcome) {
	var log = log.WithFields(log.Fields{"bind": cfg.bindIndex})

	if o.err != nil {
		log.WithError(o.err).Debug("submit_sm failed")
		cfg.metrics.RecordError(cfg.bindIndex, o.latency)
		return
	}

	cfg.metrics.RecordSuccess(cfg.bindIndex, o.latency)
	cfg.registry.SetLastMessageID(cfg.bindIndex, o.messageID)
	if o.messageID != "" {
		cfg.corr.Insert(o.messageID, time.Now().Add(-o.latency))
	}
}

// inflightSet bounds concurrent in-flight submissions and fans their
// completions into a single channel, mirroring a bounded FuturesUnordered.
type inflightSet struct {
	mu   sync.Mutex
	n    int
	done chan submissionOutcome
}

func newInflightSet() *inflightSet {
	return &inflightSet{done: make(chan submissionOutcome, 256)}
}

func (s *inflightSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func (s *inflightSet) completions() <-chan submissionOutcome {
	return s.done
}

// tryLaunch starts one submission unless budget exhaustion or cancellation
// forbids it, reporting whether a submission was actually launched.
func (s *inflightSet) tryLaunch(ctx context.Context, cfg submitLoopConfig) bool {
	if ctx.Err() != nil {
		return false
	}
	if !decrementMessagesRemaining(cfg.messagesRemaining) {
		return false
	}

	s.mu.Lock()
	s.n++
	s.mu.Unlock()

	go func() {
		var start = time.Now()
		res, err := cfg.client.SubmitSM(ctx, cfg.template)
		var latency = time.Since(start)

		s.done <- submissionOutcome{messageID: res.MessageID, err: err, latency: latency}
	}()
	return true
}

// received marks one outcome as taken off completions(). A submission
// counts as in flight until its outcome has been received, so len() never
// reaches zero while an outcome is still waiting in the channel.
func (s *inflightSet) received() {
	s.mu.Lock()
	s.n--
	s.mu.Unlock()
}

// drain waits for every currently in-flight submission to complete and
// applies fn to each outcome, without launching any new submission.
func (s *inflightSet) drain(fn func(submissionOutcome)) {
	for s.len() > 0 {
		var o = <-s.done
		s.received()
		fn(o)
	}
}
