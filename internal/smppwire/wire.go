// Package smppwire adapts github.com/fiorix/go-smpp to the smppcodec
// contract. It is the one place the core's dependency on a concrete SMPP
// library is resolved.
package smppwire

import (
	"context"
	"time"

	"github.com/fiorix/go-smpp/smpp"
	"github.com/fiorix/go-smpp/smpp/pdu"
	"github.com/fiorix/go-smpp/smpp/pdu/pdufield"
	"github.com/fiorix/go-smpp/smpp/pdu/pdutext"
	"github.com/fiorix/go-smpp/smpp/pdu/pdutlv"
	"github.com/pkg/errors"

	"github.com/smpp-tools/smpploadgen/internal/smppcodec"
)

// Connect implements smppcodec.Connector. It does not bind: the returned
// Client is ready for BindTransceiver or BindTransmitter, whichever the
// caller's configuration calls for.
func Connect(ctx context.Context, cfg smppcodec.ConnectConfig) (smppcodec.Client, smppcodec.EventStream, error) {
	var events = newEventQueue()
	return &client{
		addr:        cfg.URI,
		enquire:     cfg.EnquireLinkInterval,
		respTimeout: cfg.ResponseTimeout,
		handler:     func(p pdu.Body) { events.push(convertInbound(p)) },
	}, events, nil
}

func awaitBind(ctx context.Context, status <-chan smpp.ConnStatus) error {
	select {
	case st := <-status:
		return st.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// client holds the Transmitter of whichever bind succeeded (for a
// transceiver bind, the Transceiver's embedded Transmitter). tx is nil
// until a bind succeeds and is what Submit/Write/Close operate against.
type client struct {
	addr        string
	enquire     time.Duration
	respTimeout time.Duration
	handler     func(pdu.Body)

	tx *smpp.Transmitter
}

func (c *client) BindTransceiver(ctx context.Context, req smppcodec.BindRequest) error {
	var trx = &smpp.Transceiver{
		Addr:        c.addr,
		User:        req.SystemID,
		Passwd:      req.Password,
		SystemType:  req.SystemType,
		EnquireLink: c.enquire,
		RespTimeout: c.respTimeout,
		Handler:     c.handler,
	}
	if err := awaitBind(ctx, trx.Bind()); err != nil {
		return errors.WithMessage(err, "bind_transceiver")
	}
	c.tx = &trx.Transmitter
	return nil
}

func (c *client) BindTransmitter(ctx context.Context, req smppcodec.BindRequest) error {
	var tx = &smpp.Transmitter{
		Addr:        c.addr,
		User:        req.SystemID,
		Passwd:      req.Password,
		SystemType:  req.SystemType,
		EnquireLink: c.enquire,
		RespTimeout: c.respTimeout,
	}
	if err := awaitBind(ctx, tx.Bind()); err != nil {
		return errors.WithMessage(err, "bind_transmitter")
	}
	c.tx = tx
	return nil
}

func (c *client) SubmitSM(ctx context.Context, tmpl smppcodec.SubmitTemplate) (smppcodec.SubmitResult, error) {
	var sm = &smpp.ShortMessage{
		Src:           tmpl.SourceAddr,
		Dst:           tmpl.DestAddr,
		Text:          textCodec(tmpl.DataCoding, tmpl.ShortMessage),
		Register:      pdufield.DeliverySetting(tmpl.RegisteredDelivery),
		ServiceType:   tmpl.ServiceType,
		SourceAddrTON: tmpl.SourceTON,
		SourceAddrNPI: tmpl.SourceNPI,
		DestAddrTON:   tmpl.DestTON,
		DestAddrNPI:   tmpl.DestNPI,
		ESMClass:      tmpl.EsmClass,
	}
	resp, err := c.tx.Submit(sm)
	if err != nil {
		return smppcodec.SubmitResult{}, err
	}
	return smppcodec.SubmitResult{MessageID: resp.RespID()}, nil
}

// textCodec selects the pdutext.Codec matching an SMPP data_coding byte so
// the PDU's own data_coding field (set from Codec.Type(), not threaded
// separately) reflects what the template configured. The four values
// covered are the ones SMSCs in the wild actually send: 0x00 (SMSC default
// alphabet, GSM 7-bit), 0x01 (IA5/ASCII), 0x03 (Latin-1/ISO-8859-1) and
// 0x08 (UCS-2). Any other byte falls back to an uninterpreted byte-for-byte
// encoding rather than silently reinterpreting the payload under a coding
// scheme it was never written in.
func textCodec(dataCoding uint8, msg string) pdutext.Codec {
	switch dataCoding {
	case 0x00:
		return pdutext.GSM7(msg)
	case 0x01:
		return pdutext.Raw(msg)
	case 0x03:
		return pdutext.Latin1(msg)
	case 0x08:
		return pdutext.UCS2(msg)
	default:
		return pdutext.Raw(msg)
	}
}

func (c *client) DeliverSMResp(ctx context.Context, sequenceNumber uint32) error {
	var resp = pdu.NewDeliverSMRespSeq(sequenceNumber)
	return c.tx.Write(resp)
}

func (c *client) Unbind(ctx context.Context) error {
	// fiorix/go-smpp has no explicit unbind RPC distinct from Close; closing
	// the transport is sufficient and Close is always called right after.
	return nil
}

func (c *client) Close() error {
	return c.tx.Close()
}

// eventQueue is a FIFO, buffered to 64 events, bridging the synchronous
// Handler callback fiorix/go-smpp invokes on its own read goroutine to the
// pull-based smppcodec.EventStream the core consumes. push blocks while the
// buffer is full.
type eventQueue struct {
	ch     chan smppcodec.Event
	closed chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{ch: make(chan smppcodec.Event, 64), closed: make(chan struct{})}
}

func (q *eventQueue) push(ev smppcodec.Event) {
	select {
	case q.ch <- ev:
	case <-q.closed:
	}
}

func (q *eventQueue) Next(ctx context.Context) (smppcodec.Event, bool) {
	select {
	case ev := <-q.ch:
		return ev, true
	case <-ctx.Done():
		return smppcodec.Event{}, false
	}
}

func convertInbound(p pdu.Body) smppcodec.Event {
	if p.Header().ID != pdu.DeliverSMID {
		return smppcodec.Event{Other: true}
	}

	var d = &smppcodec.DeliverSM{SequenceNumber: p.Header().Seq}

	if f := p.Fields()[pdufield.ShortMessage]; f != nil {
		d.ShortMessage = f.String()
	}

	if tlv := p.TLVFields()[pdutlv.TagReceiptedMessageID]; tlv != nil {
		d.ReceiptedMessageID = tlv.String()
	}

	if tlv := p.TLVFields()[pdutlv.TagMessageStateTLV]; tlv != nil {
		d.HasMessageState = true
		d.MessageState = convertMessageState(tlv.Bytes())
	}

	return smppcodec.Event{DeliverSM: d}
}

func convertMessageState(raw []byte) smppcodec.MessageState {
	if len(raw) == 0 {
		return smppcodec.StateUnknown
	}
	switch raw[0] {
	case 1:
		return smppcodec.StateEnroute
	case 2:
		return smppcodec.StateDelivered
	case 3:
		return smppcodec.StateExpired
	case 4:
		return smppcodec.StateDeleted
	case 5:
		return smppcodec.StateUndeliverable
	case 6:
		return smppcodec.StateAccepted
	case 8:
		return smppcodec.StateRejected
	default:
		return smppcodec.StateUnknown
	}
}
