package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/smpp-tools/smpploadgen/internal/session"
	"github.com/smpp-tools/smpploadgen/internal/smppcodec"
)

type countingClient struct {
	mu     sync.Mutex
	closed bool
}

func (c *countingClient) BindTransceiver(ctx context.Context, req smppcodec.BindRequest) error {
	return nil
}
func (c *countingClient) BindTransmitter(ctx context.Context, req smppcodec.BindRequest) error {
	return nil
}
func (c *countingClient) SubmitSM(ctx context.Context, tmpl smppcodec.SubmitTemplate) (smppcodec.SubmitResult, error) {
	return smppcodec.SubmitResult{MessageID: "m"}, nil
}
func (c *countingClient) DeliverSMResp(ctx context.Context, seq uint32) error { return nil }
func (c *countingClient) Unbind(ctx context.Context) error                   { return nil }
func (c *countingClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type blockingEventStream struct{}

func (blockingEventStream) Next(ctx context.Context) (smppcodec.Event, bool) {
	<-ctx.Done()
	return smppcodec.Event{}, false
}

func TestSupervisorRunsAllBindsAndJoinsOnCancel(t *testing.T) {
	var clients = []*countingClient{{}, {}, {}}
	var connect smppcodec.Connector = func(ctx context.Context, cfg smppcodec.ConnectConfig) (smppcodec.Client, smppcodec.EventStream, error) {
		return clients[0], blockingEventStream{}, nil
	}

	var configs = make([]session.Config, 3)
	for i := range configs {
		configs[i] = session.Config{BindIndex: i, MaxInflight: 1}
	}

	var sup = New(connect, configs)
	assert.Equal(t, 3, sup.Registry.Len())

	var ctx, cancel = context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	var done = make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("supervisor did not join its drivers in time")
	}
}

func TestSupervisorZeroBindsExitsOnCancellation(t *testing.T) {
	var connect smppcodec.Connector = func(ctx context.Context, cfg smppcodec.ConnectConfig) (smppcodec.Client, smppcodec.EventStream, error) {
		t.Fatal("connect should never be called for zero binds")
		return nil, nil, nil
	}

	var sup = New(connect, nil)
	assert.Zero(t, sup.Registry.Len())

	var ctx, cancel = context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	var done = make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("zero-bind run should exit promptly on cancellation")
	}

	var snap = sup.Metrics.Snapshot()
	assert.Zero(t, snap.Attempts)
}
