package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smpp-tools/smpploadgen/internal/correlation"
	"github.com/smpp-tools/smpploadgen/internal/metrics"
	"github.com/smpp-tools/smpploadgen/internal/smppcodec"
)

func TestDispatcherTLVDeliveryReceipt(t *testing.T) {
	var m = metrics.New(1)
	var corr = correlation.New()
	corr.Insert("abc", time.Now().Add(-5*time.Millisecond))

	var client = &fakeClient{}
	var events = newFakeEventStream()
	events.push(smppcodec.Event{DeliverSM: &smppcodec.DeliverSM{
		SequenceNumber:     7,
		ReceiptedMessageID: "abc",
		HasMessageState:    true,
		MessageState:       smppcodec.StateDelivered,
	}})

	var ctx, cancel = context.WithCancel(context.Background())
	go runDispatcher(ctx, 0, client, events, m, corr)
	time.Sleep(20 * time.Millisecond)
	cancel()

	var snap = m.Snapshot().PerBind[0]
	assert.Equal(t, uint64(1), snap.DLRReceived)
	assert.Equal(t, uint64(1), snap.DLRDelivered)
	assert.Greater(t, snap.AvgDLRDelayMs, 0.0)
	assert.Zero(t, corr.Len())
}

func TestDispatcherTextualFallback(t *testing.T) {
	var m = metrics.New(1)
	var corr = correlation.New()
	corr.Insert("X1", time.Now())

	var client = &fakeClient{}
	var events = newFakeEventStream()
	events.push(smppcodec.Event{DeliverSM: &smppcodec.DeliverSM{
		SequenceNumber: 3,
		ShortMessage:   "id:X1 sub:001 dlvrd:001 stat:DELIVRD err:000 text:",
	}})

	var ctx, cancel = context.WithCancel(context.Background())
	go runDispatcher(ctx, 0, client, events, m, corr)
	time.Sleep(20 * time.Millisecond)
	cancel()

	var snap = m.Snapshot().PerBind[0]
	assert.Equal(t, uint64(1), snap.DLRReceived)
	assert.Equal(t, uint64(1), snap.DLRDelivered)
}

func TestDispatcherSkipsTextualWhenTLVStatePresent(t *testing.T) {
	var m = metrics.New(1)
	var corr = correlation.New()

	var client = &fakeClient{}
	var events = newFakeEventStream()
	events.push(smppcodec.Event{DeliverSM: &smppcodec.DeliverSM{
		SequenceNumber:  3,
		HasMessageState: true,
		MessageState:    smppcodec.StateDelivered,
		ShortMessage:    "stat:EXPIRED",
	}})

	var ctx, cancel = context.WithCancel(context.Background())
	go runDispatcher(ctx, 0, client, events, m, corr)
	time.Sleep(20 * time.Millisecond)
	cancel()

	var snap = m.Snapshot().PerBind[0]
	require.Equal(t, uint64(1), snap.DLRDelivered)
	assert.Zero(t, snap.DLRExpired)
}

func TestDispatcherIgnoresOtherPDUsAndErrors(t *testing.T) {
	var m = metrics.New(1)
	var corr = correlation.New()
	var client = &fakeClient{}
	var events = newFakeEventStream()
	events.push(smppcodec.Event{Other: true})
	events.push(smppcodec.Event{Err: assertErr{}})

	var ctx, cancel = context.WithCancel(context.Background())
	go runDispatcher(ctx, 0, client, events, m, corr)
	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.Zero(t, m.Snapshot().PerBind[0].DLRReceived)
}

type assertErr struct{}

func (assertErr) Error() string { return "background error" }
