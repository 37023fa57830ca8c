package protocol_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamtap-project/streamtap/internal/protocol"
	"github.com/streamtap-project/streamtap/internal/protocol/prototest"
)

func TestDecodeUnknownSchema(t *testing.T) {
	_, err := protocol.Decode("WebcastNopeMessage", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, protocol.ErrInvalidSchemaName))
}

func TestDecodeChatMessage(t *testing.T) {
	raw := prototest.Chat(55, prototest.UserSpec{ID: 1001, UniqueID: "alice", Nickname: "Alice"}, "hello")
	v, err := protocol.Decode(protocol.SchemaChat, raw)
	require.NoError(t, err)

	chat, ok := v.(*protocol.ChatMessage)
	require.True(t, ok)
	assert.Equal(t, "hello", chat.Comment)
	require.NotNil(t, chat.Event)
	assert.Equal(t, uint64(55), chat.Event.MsgID)
	require.NotNil(t, chat.User)
	assert.Equal(t, uint64(1001), chat.User.UserID)
	assert.Equal(t, "alice", chat.User.UniqueID)
	assert.Equal(t, "Alice", chat.User.Nickname)
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	raw := protocol.NewFrameBuilder().
		String(900, "future field").
		Int32(2, 3).
		Uint64(901, 12).
		Build()
	v, err := protocol.Decode(protocol.SchemaControl, raw)
	require.NoError(t, err)
	assert.Equal(t, int32(3), v.(*protocol.ControlMessage).Action)
}

func TestDecodeBatchResponse(t *testing.T) {
	raw := prototest.Response{
		Cursor:        "cursor-1",
		InternalExt:   "ext-1",
		FetchInterval: 1000,
		WSURL:         "wss://push.example/ws",
		WSParams:      map[string]string{"imprp": "token"},
		Messages: []prototest.Msg{
			{Type: protocol.SchemaChat, Binary: prototest.Chat(1, prototest.UserSpec{ID: 1}, "hi")},
			{Type: "WebcastMysteryMessage", Binary: []byte{0x08, 0x01}},
			{Type: protocol.SchemaLike, Binary: prototest.Like(2, 5, 50, prototest.UserSpec{ID: 2})},
		},
	}.Encode()

	resp, err := protocol.DecodeBatchResponse(raw, map[string]bool{protocol.SchemaLike: true})
	require.NoError(t, err)

	assert.Equal(t, "cursor-1", resp.Cursor)
	assert.Equal(t, "ext-1", resp.InternalExt)
	assert.Equal(t, int32(1000), resp.FetchInterval)
	assert.Equal(t, "wss://push.example/ws", resp.WSURL)
	assert.Equal(t, map[string]string{"imprp": "token"}, resp.WSParams)
	require.Len(t, resp.Messages, 3)

	assert.IsType(t, &protocol.ChatMessage{}, resp.Messages[0].Payload)
	assert.Nil(t, resp.Messages[1].Payload, "unknown type keeps raw bytes only")
	assert.Equal(t, []byte{0x08, 0x01}, resp.Messages[1].Binary)
	assert.Nil(t, resp.Messages[2].Payload, "skipped type keeps raw bytes only")
	assert.NotEmpty(t, resp.Messages[2].Binary)
}

func TestDecodeBatchResponseBadInnerMessage(t *testing.T) {
	raw := prototest.Response{
		Cursor: "c",
		Messages: []prototest.Msg{
			{Type: protocol.SchemaChat, Binary: []byte{0x0a, 0x05, 0x01}},
		},
	}.Encode()

	resp, err := protocol.DecodeBatchResponse(raw, nil)
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)
	assert.Nil(t, resp.Messages[0].Payload)

	var decodeErr *protocol.DecodeError
	require.True(t, errors.As(resp.Messages[0].Err, &decodeErr))
	assert.Equal(t, protocol.SchemaChat, decodeErr.Schema)
}

func TestDecodeGiftDetails(t *testing.T) {
	raw := prototest.Gift(prototest.GiftSpec{
		MsgID: 3, GiftID: 5655, RepeatCount: 4, RepeatEnd: true,
		GiftType: 1, GiftName: "Rose", Diamonds: 1,
		User: prototest.UserSpec{ID: 77, UniqueID: "bob"},
	})
	v, err := protocol.Decode(protocol.SchemaGift, raw)
	require.NoError(t, err)

	gift := v.(*protocol.GiftMessage)
	assert.Equal(t, int32(5655), gift.GiftID)
	assert.Equal(t, int32(4), gift.RepeatCount)
	assert.Equal(t, int32(1), gift.RepeatEnd)
	require.NotNil(t, gift.Details)
	assert.Equal(t, "Rose", gift.Details.GiftName)
	assert.Equal(t, int32(1), gift.Details.GiftType)
	assert.Equal(t, "bob", gift.User.UniqueID)
}

func TestDecodeEveryKnownSchemaAcceptsEmpty(t *testing.T) {
	for _, schema := range []string{
		protocol.SchemaChat, protocol.SchemaMember, protocol.SchemaGift, protocol.SchemaLike,
		protocol.SchemaSocial, protocol.SchemaRoomUserSeq, protocol.SchemaControl,
		protocol.SchemaLinkMicBattle, protocol.SchemaLinkMicArmies, protocol.SchemaLiveIntro,
		protocol.SchemaEmoteChat, protocol.SchemaEnvelope, protocol.SchemaSubNotify,
		protocol.SchemaQuestionNew,
	} {
		assert.True(t, protocol.Known(schema), schema)
		v, err := protocol.Decode(schema, nil)
		require.NoError(t, err, schema)
		assert.Equal(t, schema, v.(protocol.Payload).Schema())
	}
}
