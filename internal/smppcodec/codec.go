// Package smppcodec is the narrow contract the core depends on for SMPP
// wire behavior: connecting, binding, submitting, acknowledging deliver_sm,
// and unbinding/closing. Everything here is an interface or plain data type
// — the production implementation lives in internal/smppwire, and tests
// supply a fake satisfying the same contract.
package smppcodec

import (
	"context"
	"time"
)

// MessageState is the SMPP message_state value carried by a delivery
// receipt, either via the message_state TLV or decoded from a textual
// "stat:" token.
type MessageState int

const (
	StateUnknown MessageState = iota
	StateEnroute
	StateDelivered
	StateExpired
	StateDeleted
	StateUndeliverable
	StateAccepted
	StateRejected
)

// ConnectConfig parametrizes opening the transport connection, before any
// bind PDU is sent.
type ConnectConfig struct {
	URI                 string
	EnquireLinkInterval time.Duration
	ResponseTimeout     time.Duration
}

// BindRequest parametrizes a bind_transceiver or bind_transmitter call.
type BindRequest struct {
	SystemID   string
	Password   string
	SystemType string
	AddrTON    uint8
	AddrNPI    uint8
}

// SubmitTemplate is the immutable submit_sm skeleton cloned into each
// submission. Construction and cloning are the caller's responsibility;
// the codec just encodes whatever values are set here.
type SubmitTemplate struct {
	ServiceType        string
	SourceAddr         string
	SourceTON          uint8
	SourceNPI          uint8
	DestAddr           string
	DestTON            uint8
	DestNPI            uint8
	EsmClass           uint8
	DataCoding         uint8
	RegisteredDelivery uint8
	ShortMessage       string
}

// SubmitResult is the application-visible content of a submit_sm_resp.
type SubmitResult struct {
	MessageID string
}

// Client is the request/response surface of a connected SMPP session, bound
// or not yet bound. A Client may be safely used concurrently by the submit
// loop and the event dispatcher once bound; the underlying transport
// serializes writes internally.
type Client interface {
	BindTransceiver(ctx context.Context, req BindRequest) error
	BindTransmitter(ctx context.Context, req BindRequest) error
	SubmitSM(ctx context.Context, tmpl SubmitTemplate) (SubmitResult, error)
	DeliverSMResp(ctx context.Context, sequenceNumber uint32) error
	Unbind(ctx context.Context) error
	Close() error
}

// DeliverSM is a parsed inbound deliver_sm PDU, with the fields the event
// dispatcher cares about already extracted.
type DeliverSM struct {
	SequenceNumber     uint32
	ReceiptedMessageID string // from the receipted_message_id TLV; empty if absent
	HasMessageState    bool   // true if a message_state TLV was present
	MessageState       MessageState
	ShortMessage       string // textual body, for the key:value DLR fallback
}

// Event is either an inbound PDU or a background transport error.
type Event struct {
	DeliverSM *DeliverSM // non-nil when an inbound deliver_sm was received
	Other     bool       // true when a non-deliver_sm PDU was received
	Err       error      // non-nil for a background error
}

// EventStream is a lazy, asynchronous sequence of incoming PDUs and
// background errors. Next blocks until an event is available, the stream
// ends (ok=false), or ctx is cancelled.
type EventStream interface {
	Next(ctx context.Context) (Event, bool)
}

// Connector opens a transport connection, returning a Client that must
// still be bound via BindTransceiver/BindTransmitter, and its EventStream.
// A production Connector wraps a concrete SMPP client library;
// internal/smppwire provides one backed by github.com/fiorix/go-smpp.
type Connector func(ctx context.Context, cfg ConnectConfig) (Client, EventStream, error)
