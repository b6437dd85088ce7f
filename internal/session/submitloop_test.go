package session

import (
	"context"
	"testing"
	"time"

	gc "github.com/go-check/check"
	"github.com/stretchr/testify/assert"

	"github.com/smpp-tools/smpploadgen/internal/bindstatus"
	"github.com/smpp-tools/smpploadgen/internal/correlation"
	"github.com/smpp-tools/smpploadgen/internal/metrics"
)

func Test(t *testing.T) { gc.TestingT(t) }

type SubmitLoopSuite struct{}

func init() { gc.Suite(&SubmitLoopSuite{}) }

func (s *SubmitLoopSuite) TestUnthrottledRespectsMaxInflight(c *gc.C) {
	var registry = bindstatus.New(1)
	var m = metrics.New(1)
	var corr = correlation.New()

	var maxObserved int
	var client = &fakeClient{}
	var inflightNow int

	// Wrap onSubmit to track peak concurrency observed by the fake client.
	client.onSubmit = func(id string) {
		inflightNow++
		if inflightNow > maxObserved {
			maxObserved = inflightNow
		}
		time.Sleep(time.Millisecond)
		inflightNow--
	}

	var ctx, cancel = context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	runSubmitLoop(ctx, submitLoopConfig{
		bindIndex:   0,
		client:      client,
		maxTPS:      0,
		maxInflight: 4,
		metrics:     m,
		registry:    registry,
		corr:        corr,
	})

	c.Check(maxObserved <= 4, gc.Equals, true)
	var snap = m.Snapshot().PerBind[0]
	c.Check(snap.Attempts > 0, gc.Equals, true)
	c.Check(snap.Success, gc.Equals, snap.Attempts)
}

func (s *SubmitLoopSuite) TestThrottledStaysNearConfiguredRate(c *gc.C) {
	var registry = bindstatus.New(1)
	var m = metrics.New(1)
	var corr = correlation.New()
	var client = &fakeClient{}

	var ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	runSubmitLoop(ctx, submitLoopConfig{
		bindIndex:   0,
		client:      client,
		maxTPS:      50,
		maxInflight: 16,
		metrics:     m,
		registry:    registry,
		corr:        corr,
	})

	var attempts = m.Snapshot().PerBind[0].Attempts
	c.Check(attempts >= 80 && attempts <= 120, gc.Equals, true)
}

func TestSubmitLoopStopsAtMessageBudget(t *testing.T) {
	var registry = bindstatus.New(1)
	var m = metrics.New(1)
	var corr = correlation.New()
	var client = &fakeClient{}
	var budget = int64(5)

	var ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	runSubmitLoop(ctx, submitLoopConfig{
		bindIndex:         0,
		client:            client,
		maxTPS:            0,
		maxInflight:       2,
		metrics:           m,
		registry:          registry,
		corr:              corr,
		messagesRemaining: &budget,
	})

	assert.Equal(t, uint64(5), m.Snapshot().PerBind[0].Attempts)
}

func TestSubmitLoopDrainsOnCancellationWithoutNewSubmissions(t *testing.T) {
	var registry = bindstatus.New(1)
	var m = metrics.New(1)
	var corr = correlation.New()
	var client = &fakeClient{}
	client.onSubmit = func(id string) { time.Sleep(30 * time.Millisecond) }

	var ctx, cancel = context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	runSubmitLoop(ctx, submitLoopConfig{
		bindIndex:   0,
		client:      client,
		maxTPS:      0,
		maxInflight: 4,
		metrics:     m,
		registry:    registry,
		corr:        corr,
	})

	var snap = m.Snapshot().PerBind[0]
	assert.Equal(t, snap.Attempts, snap.Success+snap.Error)
	// The fake client serialises submissions at 30ms each, so cancellation at
	// 10ms comes before any completion: only the initial 4 are issued, and
	// all 4 are recorded by the drain.
	assert.Equal(t, uint64(4), snap.Attempts)
}
