// Package events defines the signals a connection emits and the bus that
// delivers them.
package events

import (
	"encoding/json"
	"time"
)

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Lifecycle
	EventConnected          EventType = "connected"
	EventDisconnected       EventType = "disconnected"
	EventError              EventType = "error"
	EventStreamEnd          EventType = "streamEnd"
	EventWebsocketConnected EventType = "websocketConnected"

	// Raw and decoded data
	EventRawData     EventType = "rawData"
	EventDecodedData EventType = "decodedData"

	// Per-type signals
	EventChat          EventType = "chat"
	EventMember        EventType = "member"
	EventGift          EventType = "gift"
	EventLike          EventType = "like"
	EventSocial        EventType = "social"
	EventFollow        EventType = "follow"
	EventShare         EventType = "share"
	EventRoomUser      EventType = "roomUser"
	EventControl       EventType = "control"
	EventLinkMicBattle EventType = "linkMicBattle"
	EventLinkMicArmies EventType = "linkMicArmies"
	EventLiveIntro     EventType = "liveIntro"
	EventEmote         EventType = "emote"
	EventEnvelope      EventType = "envelope"
	EventSubscribe     EventType = "subscribe"
	EventQuestionNew   EventType = "questionNew"

	// Process
	EventShutdown EventType = "shutdown"

	// EventAny subscribes a handler to every event type.
	EventAny EventType = "*"
)

// Event represents a single event in the system.
type Event struct {
	Type    EventType
	Source  string
	Time    time.Time
	Payload interface{}
}

// ErrorPayload accompanies EventError.
type ErrorPayload struct {
	Info string
	Err  error
}

// MarshalJSON renders the error as its message.
func (p ErrorPayload) MarshalJSON() ([]byte, error) {
	msg := ""
	if p.Err != nil {
		msg = p.Err.Error()
	}
	return json.Marshal(struct {
		Info  string `json:"info"`
		Error string `json:"error"`
	}{p.Info, msg})
}

// RawDataPayload accompanies EventRawData.
type RawDataPayload struct {
	Type   string `json:"type"`
	Binary []byte `json:"binary"`
}

// DecodedDataPayload accompanies EventDecodedData.
type DecodedDataPayload struct {
	Type   string      `json:"type"`
	RoomID string      `json:"roomId,omitempty"`
	Event  interface{} `json:"event"`
	Binary []byte      `json:"-"`
}

// StreamEndPayload accompanies EventStreamEnd.
type StreamEndPayload struct {
	Action int32 `json:"action"`
}

// DisconnectedPayload accompanies EventDisconnected.
type DisconnectedPayload struct {
	Reason string `json:"reason"`
}

// WebsocketConnectedPayload accompanies EventWebsocketConnected.
type WebsocketConnectedPayload struct {
	URL string `json:"url"`
}
