package protocol

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Schema names understood by Decode.
const (
	SchemaPushFrame     = "WebcastPushFrame"
	SchemaResponse      = "WebcastResponse"
	SchemaChat          = "WebcastChatMessage"
	SchemaMember        = "WebcastMemberMessage"
	SchemaGift          = "WebcastGiftMessage"
	SchemaLike          = "WebcastLikeMessage"
	SchemaSocial        = "WebcastSocialMessage"
	SchemaRoomUserSeq   = "WebcastRoomUserSeqMessage"
	SchemaControl       = "WebcastControlMessage"
	SchemaLinkMicBattle = "WebcastLinkMicBattle"
	SchemaLinkMicArmies = "WebcastLinkMicArmies"
	SchemaLiveIntro     = "WebcastLiveIntroMessage"
	SchemaEmoteChat     = "WebcastEmoteChatMessage"
	SchemaEnvelope      = "WebcastEnvelopeMessage"
	SchemaSubNotify     = "WebcastSubNotifyMessage"
	SchemaQuestionNew   = "WebcastQuestionNewMessage"
)

// ErrInvalidSchemaName is returned by Decode for a schema it does not know.
var ErrInvalidSchemaName = errors.New("invalid schema name")

// Payload is a decoded inner message.
type Payload interface {
	Schema() string
}

type decodeFunc func([]byte) (Payload, error)

// as adapts a typed field decoder to the registry signature.
func as[T any, P interface {
	*T
	Payload
}](decode func([]byte, P) error) decodeFunc {
	return func(b []byte) (Payload, error) {
		p := P(new(T))
		if err := decode(b, p); err != nil {
			return nil, err
		}
		return p, nil
	}
}

var messageSchemas = map[string]decodeFunc{
	SchemaChat:          as[ChatMessage](decodeChat),
	SchemaMember:        as[MemberMessage](decodeMember),
	SchemaGift:          as[GiftMessage](decodeGift),
	SchemaLike:          as[LikeMessage](decodeLike),
	SchemaSocial:        as[SocialMessage](decodeSocial),
	SchemaRoomUserSeq:   as[RoomUserSeqMessage](decodeRoomUserSeq),
	SchemaControl:       as[ControlMessage](decodeControl),
	SchemaLinkMicBattle: as[LinkMicBattleMessage](decodeLinkMicBattle),
	SchemaLinkMicArmies: as[LinkMicArmiesMessage](decodeLinkMicArmies),
	SchemaLiveIntro:     as[LiveIntroMessage](decodeLiveIntro),
	SchemaEmoteChat:     as[EmoteChatMessage](decodeEmoteChat),
	SchemaEnvelope:      as[EnvelopeMessage](decodeEnvelope),
	SchemaSubNotify:     as[SubNotifyMessage](decodeSubNotify),
	SchemaQuestionNew:   as[QuestionNewMessage](decodeQuestionNew),
}

// Known reports whether schema names a decodable inner message type.
func Known(schema string) bool {
	_, ok := messageSchemas[schema]
	return ok
}

// Decode decodes b under the named schema.
// The result is *PushFrame, *BatchResponse or one of the inner message types.
func Decode(schema string, b []byte) (any, error) {
	switch schema {
	case SchemaPushFrame:
		return DecodePushFrame(b)
	case SchemaResponse:
		return DecodeBatchResponse(b, nil)
	}

	decode, ok := messageSchemas[schema]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSchemaName, schema)
	}
	p, err := decode(b)
	if err != nil {
		return nil, &DecodeError{Schema: schema, Err: err}
	}
	return p, nil
}

// WebcastResponse field numbers.
const (
	fieldRespMessages          protowire.Number = 1
	fieldRespCursor            protowire.Number = 2
	fieldRespFetchInterval     protowire.Number = 3
	fieldRespServerTimestamp   protowire.Number = 4
	fieldRespInternalExt       protowire.Number = 5
	fieldRespFetchType         protowire.Number = 6
	fieldRespWSParams          protowire.Number = 7
	fieldRespHeartbeatDuration protowire.Number = 8
	fieldRespNeedAck           protowire.Number = 9
	fieldRespWSURL             protowire.Number = 10
)

// WireMessage is one inner message of a batch.
// Payload is nil for unknown or skipped types; Err is set when a known type failed to decode.
type WireMessage struct {
	Type    string
	Binary  []byte
	Payload Payload
	Err     error
}

// BatchResponse is the decoded WebcastResponse carried by both transports.
type BatchResponse struct {
	Messages          []WireMessage
	Cursor            string
	FetchInterval     int32
	ServerTimestamp   uint64
	InternalExt       string
	FetchType         int32
	WSParams          map[string]string
	HeartbeatDuration int32
	NeedAck           bool
	WSURL             string

	// RoomID is not part of the wire message. The HTTP layer fills it
	// when the fetch endpoint reports the room it resolved.
	RoomID string
}

// DecodeBatchResponse decodes a batch and each inner message it carries.
// Types listed in skip keep only their raw bytes.
func DecodeBatchResponse(b []byte, skip map[string]bool) (*BatchResponse, error) {
	resp := &BatchResponse{}
	err := walk(b, func(f field) error {
		switch f.num {
		case fieldRespMessages:
			m, err := decodeWireMessage(f.b)
			if err != nil {
				return err
			}
			resp.Messages = append(resp.Messages, m)
		case fieldRespCursor:
			resp.Cursor = f.str()
		case fieldRespFetchInterval:
			resp.FetchInterval = f.i32()
		case fieldRespServerTimestamp:
			resp.ServerTimestamp = f.u
		case fieldRespInternalExt:
			resp.InternalExt = f.str()
		case fieldRespFetchType:
			resp.FetchType = f.i32()
		case fieldRespWSParams:
			name, value, err := decodeWSParam(f.b)
			if err != nil {
				return err
			}
			if resp.WSParams == nil {
				resp.WSParams = make(map[string]string)
			}
			resp.WSParams[name] = value
		case fieldRespHeartbeatDuration:
			resp.HeartbeatDuration = f.i32()
		case fieldRespNeedAck:
			resp.NeedAck = f.boolean()
		case fieldRespWSURL:
			resp.WSURL = f.str()
		}
		return nil
	})
	if err != nil {
		return nil, &DecodeError{Schema: SchemaResponse, Err: err}
	}

	for i := range resp.Messages {
		m := &resp.Messages[i]
		if skip[m.Type] {
			continue
		}
		decode, ok := messageSchemas[m.Type]
		if !ok {
			continue
		}
		p, err := decode(m.Binary)
		if err != nil {
			m.Err = &DecodeError{Schema: m.Type, Err: err}
			continue
		}
		m.Payload = p
	}
	return resp, nil
}

func decodeWireMessage(b []byte) (WireMessage, error) {
	var m WireMessage
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Type = f.str()
		case 2:
			m.Binary = f.b
		}
		return nil
	})
	return m, err
}

func decodeWSParam(b []byte) (name, value string, err error) {
	err = walk(b, func(f field) error {
		switch f.num {
		case 1:
			name = f.str()
		case 2:
			value = f.str()
		}
		return nil
	})
	return name, value, err
}
