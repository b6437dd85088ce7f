package session

import (
	"strings"

	"github.com/smpp-tools/smpploadgen/internal/smppcodec"
)

// parsedDLR is the result of scanning a deliver_sm's textual short_message
// body for the conventional SMSC delivery-receipt key:value tokens.
type parsedDLR struct {
	id       string
	hasID    bool
	state    smppcodec.MessageState
	hasState bool
}

// parseTextualDLR scans body for whitespace-separated key:value tokens,
// taking the first id: and first stat: occurrence of each (case-sensitive
// key prefix). It is idempotent and tolerant of leading/trailing whitespace;
// token order does not matter.
func parseTextualDLR(body string) parsedDLR {
	var out parsedDLR
	for _, tok := range strings.Fields(body) {
		key, value, ok := strings.Cut(tok, ":")
		if !ok {
			continue
		}
		switch key {
		case "id":
			if !out.hasID {
				out.id, out.hasID = value, true
			}
		case "stat":
			if !out.hasState {
				out.state, out.hasState = statFromToken(value), true
			}
		}
	}
	return out
}

func statFromToken(raw string) smppcodec.MessageState {
	switch strings.ToUpper(raw) {
	case "DELIVRD", "DELIVERED":
		return smppcodec.StateDelivered
	case "ENROUTE":
		return smppcodec.StateEnroute
	case "EXPIRED":
		return smppcodec.StateExpired
	case "DELETED":
		return smppcodec.StateDeleted
	case "UNDELIV", "UNDELIVERABLE":
		return smppcodec.StateUndeliverable
	case "ACCEPTD", "ACCEPTED":
		return smppcodec.StateAccepted
	case "REJECTD", "REJECTED":
		return smppcodec.StateRejected
	default:
		return smppcodec.StateUnknown
	}
}

// isDeliveredState / isFailedState give the coarse delivered/failed
// classification of a message state. The dispatcher does not use them: it
// counts each receipt once, through metrics.RecordDLRState.
func isDeliveredState(s smppcodec.MessageState) bool {
	return s == smppcodec.StateDelivered
}

func isFailedState(s smppcodec.MessageState) bool {
	switch s {
	case smppcodec.StateUndeliverable, smppcodec.StateRejected, smppcodec.StateExpired, smppcodec.StateDeleted:
		return true
	default:
		return false
	}
}
