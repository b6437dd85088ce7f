package smppwire

import (
	"testing"

	"github.com/fiorix/go-smpp/smpp/pdu/pdutext"
	"github.com/stretchr/testify/assert"

	"github.com/smpp-tools/smpploadgen/internal/smppcodec"
)

func TestConvertMessageStateMapsKnownCodes(t *testing.T) {
	cases := map[byte]smppcodec.MessageState{
		1: smppcodec.StateEnroute,
		2: smppcodec.StateDelivered,
		3: smppcodec.StateExpired,
		4: smppcodec.StateDeleted,
		5: smppcodec.StateUndeliverable,
		6: smppcodec.StateAccepted,
		8: smppcodec.StateRejected,
		9: smppcodec.StateUnknown,
	}
	for code, want := range cases {
		assert.Equal(t, want, convertMessageState([]byte{code}))
	}
}

func TestConvertMessageStateEmptyIsUnknown(t *testing.T) {
	assert.Equal(t, smppcodec.StateUnknown, convertMessageState(nil))
	assert.Equal(t, smppcodec.StateUnknown, convertMessageState([]byte{}))
}

func TestClientSatisfiesCodecInterface(t *testing.T) {
	var _ smppcodec.Client = (*client)(nil)
	var _ smppcodec.Connector = Connect
}

func TestTextCodecSelectsByDataCoding(t *testing.T) {
	assert.Equal(t, pdutext.GSM7("hi"), textCodec(0x00, "hi"))
	assert.Equal(t, pdutext.Raw("hi"), textCodec(0x01, "hi"))
	assert.Equal(t, pdutext.Latin1("hi"), textCodec(0x03, "hi"))
	assert.Equal(t, pdutext.UCS2("hi"), textCodec(0x08, "hi"))
	assert.Equal(t, pdutext.Raw("hi"), textCodec(0xFF, "hi"))
}
