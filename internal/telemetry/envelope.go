// Package telemetry forwards emitted events to MQTT and Redis.
package telemetry

import (
	"errors"
	"sync"
	"time"

	"github.com/streamtap-project/streamtap/internal/events"
	"github.com/streamtap-project/streamtap/internal/live"
)

// ErrDisabled is returned when constructing a forwarder whose sink is off.
var ErrDisabled = errors.New("forwarder is disabled")

const unknownRoom = "unknown"

// ForwardedEvents lists the signals the forwarders publish. Raw and
// decoded data are left out; the per-type signals carry the same content.
var ForwardedEvents = []events.EventType{
	events.EventConnected,
	events.EventDisconnected,
	events.EventError,
	events.EventStreamEnd,
	events.EventWebsocketConnected,
	events.EventChat,
	events.EventMember,
	events.EventGift,
	events.EventLike,
	events.EventSocial,
	events.EventFollow,
	events.EventShare,
	events.EventRoomUser,
	events.EventControl,
	events.EventLinkMicBattle,
	events.EventLinkMicArmies,
	events.EventLiveIntro,
	events.EventEmote,
	events.EventEnvelope,
	events.EventSubscribe,
	events.EventQuestionNew,
}

// Envelope is the JSON document published for one event.
type Envelope struct {
	Event     string                 `json:"event"`
	Source    string                 `json:"source"`
	RoomID    string                 `json:"room_id"`
	Timestamp string                 `json:"timestamp"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
	Payload   interface{}            `json:"payload"`
}

func newEnvelope(event events.Event, roomID string, meta map[string]interface{}) Envelope {
	at := event.Time
	if at.IsZero() {
		at = time.Now()
	}
	return Envelope{
		Event:     string(event.Type),
		Source:    event.Source,
		RoomID:    roomID,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
		Meta:      meta,
		Payload:   event.Payload,
	}
}

// roomTracker remembers the room of each connection from its connected
// signal so per-type events can be routed by room.
type roomTracker struct {
	mu    sync.Mutex
	rooms map[string]string
}

func newRoomTracker() *roomTracker {
	return &roomTracker{rooms: make(map[string]string)}
}

func (t *roomTracker) observe(event events.Event) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch p := event.Payload.(type) {
	case live.State:
		if p.RoomID != "" {
			t.rooms[event.Source] = p.RoomID
		}
	case events.DecodedDataPayload:
		if p.RoomID != "" {
			t.rooms[event.Source] = p.RoomID
		}
	}
	if room, ok := t.rooms[event.Source]; ok {
		return room
	}
	return unknownRoom
}
