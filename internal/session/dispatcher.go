package session

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/smpp-tools/smpploadgen/internal/correlation"
	"github.com/smpp-tools/smpploadgen/internal/metrics"
	"github.com/smpp-tools/smpploadgen/internal/smppcodec"
)

// runDispatcher drains client's event stream for the session's lifetime:
// it ACKs every deliver_sm immediately, extracts whatever delivery-receipt
// information is present, and records it to m/corr. It returns when the
// stream ends or ctx is cancelled between events — never mid-event.
func runDispatcher(ctx context.Context, bindIdx int, client smppcodec.Client, events smppcodec.EventStream, m *metrics.Metrics, corr *correlation.Map) {
	var log = log.WithFields(log.Fields{"bind": bindIdx})

	for {
		ev, ok := events.Next(ctx)
		if !ok {
			return
		}

		switch {
		case ev.Err != nil:
			log.WithError(ev.Err).Warn("background stream error")

		case ev.DeliverSM != nil:
			if err := client.DeliverSMResp(ctx, ev.DeliverSM.SequenceNumber); err != nil {
				log.WithError(err).Debug("deliver_sm_resp failed")
			}
			handleDeliverSM(bindIdx, ev.DeliverSM, m, corr)

		case ev.Other:
			log.Debug("ignored non-deliver_sm PDU")
		}
	}
}

// handleDeliverSM implements the three-path DLR extraction, preferring TLVs
// over the textual body and never double-counting a single receipt across
// both paths.
func handleDeliverSM(bindIdx int, d *smppcodec.DeliverSM, m *metrics.Metrics, corr *correlation.Map) {
	if d.ReceiptedMessageID != "" {
		if start, ok := corr.Remove(d.ReceiptedMessageID); ok {
			m.RecordDLR(bindIdx, time.Since(start))
		}
	}

	if d.HasMessageState {
		recordState(bindIdx, d.MessageState, m)
		return
	}

	var parsed = parseTextualDLR(d.ShortMessage)
	if !parsed.hasState && !parsed.hasID {
		return
	}
	if parsed.hasID && d.ReceiptedMessageID == "" {
		if start, ok := corr.Remove(parsed.id); ok {
			m.RecordDLR(bindIdx, time.Since(start))
		}
	}
	if parsed.hasState {
		recordState(bindIdx, parsed.state, m)
	}
}

func recordState(bindIdx int, state smppcodec.MessageState, m *metrics.Metrics) {
	m.RecordDLRState(bindIdx, toDLRState(state))
}

func toDLRState(s smppcodec.MessageState) metrics.DLRState {
	switch s {
	case smppcodec.StateEnroute:
		return metrics.DLREnroute
	case smppcodec.StateDelivered:
		return metrics.DLRDelivered
	case smppcodec.StateExpired:
		return metrics.DLRExpired
	case smppcodec.StateDeleted:
		return metrics.DLRDeleted
	case smppcodec.StateUndeliverable:
		return metrics.DLRUndeliverable
	case smppcodec.StateAccepted:
		return metrics.DLRAccepted
	case smppcodec.StateRejected:
		return metrics.DLRRejected
	default:
		return metrics.DLRUnknown
	}
}
