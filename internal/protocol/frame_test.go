package protocol_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamtap-project/streamtap/internal/protocol"
	"github.com/streamtap-project/streamtap/internal/protocol/prototest"
)

func TestEncodeHeartbeat(t *testing.T) {
	assert.Equal(t, []byte{0x3a, 0x02, 0x68, 0x62}, protocol.EncodeHeartbeat())
}

func TestAckRoundTrip(t *testing.T) {
	for _, id := range []uint64{1, 42, 1 << 40, ^uint64(0)} {
		frame, err := protocol.DecodePushFrame(protocol.EncodeAck(id))
		require.NoError(t, err)
		assert.Equal(t, id, frame.ID)
		assert.Equal(t, protocol.FrameTypeAck, frame.Type)
		assert.Empty(t, frame.Binary)
	}
}

func TestDecodePushFramePlain(t *testing.T) {
	payload := prototest.Response{Cursor: "c1"}.Encode()
	frame, err := protocol.DecodePushFrame(prototest.PushFrame(7, protocol.FrameTypeMessage, payload))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), frame.ID)
	assert.Equal(t, payload, frame.Binary)
}

func TestDecodePushFrameInflatesGzip(t *testing.T) {
	payload := prototest.Response{Cursor: "gz-cursor"}.Encode()
	compressed, err := protocol.Deflate(payload)
	require.NoError(t, err)
	require.True(t, protocol.IsGzip(compressed))

	frame, err := protocol.DecodePushFrame(prototest.PushFrame(9, protocol.FrameTypeMessage, compressed))
	require.NoError(t, err)
	assert.Equal(t, payload, frame.Binary)

	resp, err := protocol.DecodeBatchResponse(frame.Binary, nil)
	require.NoError(t, err)
	assert.Equal(t, "gz-cursor", resp.Cursor)
}

func TestDecodePushFrameCorruptGzipKeepsID(t *testing.T) {
	corrupt := []byte{0x1f, 0x8b, 0x08, 0x00, 0xde, 0xad, 0xbe, 0xef}
	frame, err := protocol.DecodePushFrame(prototest.PushFrame(11, protocol.FrameTypeMessage, corrupt))
	require.Error(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, uint64(11), frame.ID)

	var decodeErr *protocol.DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, protocol.SchemaPushFrame, decodeErr.Schema)
}

func TestDecodePushFrameGarbage(t *testing.T) {
	_, err := protocol.DecodePushFrame([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)
}

func TestIsGzip(t *testing.T) {
	assert.False(t, protocol.IsGzip(nil))
	assert.False(t, protocol.IsGzip([]byte{0x1f, 0x8b}))
	assert.True(t, protocol.IsGzip([]byte{0x1f, 0x8b, 0x08, 0x00}))
}
