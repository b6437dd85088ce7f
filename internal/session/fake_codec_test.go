package session

import (
	"context"
	"strconv"
	"sync"

	"github.com/smpp-tools/smpploadgen/internal/smppcodec"
)

// fakeClient is a minimal smppcodec.Client used across this package's tests.
// Submissions always succeed with a caller-assigned message_id unless
// submitErr is set.
type fakeClient struct {
	mu        sync.Mutex
	nextID    int
	submitErr error
	bindErr   error
	closed    bool

	onSubmit func(id string) // optional hook, invoked after assigning an id
}

func (c *fakeClient) BindTransceiver(ctx context.Context, req smppcodec.BindRequest) error {
	return c.bindErr
}

func (c *fakeClient) BindTransmitter(ctx context.Context, req smppcodec.BindRequest) error {
	return c.bindErr
}

func (c *fakeClient) SubmitSM(ctx context.Context, tmpl smppcodec.SubmitTemplate) (smppcodec.SubmitResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitErr != nil {
		return smppcodec.SubmitResult{}, c.submitErr
	}
	c.nextID++
	var id = strconv.Itoa(c.nextID)
	if c.onSubmit != nil {
		c.onSubmit(id)
	}
	return smppcodec.SubmitResult{MessageID: id}, nil
}

func (c *fakeClient) DeliverSMResp(ctx context.Context, sequenceNumber uint32) error {
	return nil
}

func (c *fakeClient) Unbind(ctx context.Context) error {
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeEventStream lets tests push deliver_sm/error events for the
// dispatcher to consume.
type fakeEventStream struct {
	ch chan smppcodec.Event
}

func newFakeEventStream() *fakeEventStream {
	return &fakeEventStream{ch: make(chan smppcodec.Event, 16)}
}

func (f *fakeEventStream) push(ev smppcodec.Event) {
	f.ch <- ev
}

func (f *fakeEventStream) Next(ctx context.Context) (smppcodec.Event, bool) {
	select {
	case ev := <-f.ch:
		return ev, true
	case <-ctx.Done():
		return smppcodec.Event{}, false
	}
}
