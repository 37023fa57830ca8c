package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamtap-project/streamtap/internal/events"
	"github.com/streamtap-project/streamtap/internal/message"
)

func emit(bus *events.EventBus, t events.EventType, payload interface{}) {
	bus.Emit(context.Background(), events.Event{Type: t, Source: "conn-1", Payload: payload})
}

func TestCollectorCountsEvents(t *testing.T) {
	c := NewCollector()
	bus := events.NewEventBus()
	c.Attach(bus)

	emit(bus, events.EventConnected, nil)
	emit(bus, events.EventWebsocketConnected, nil)
	emit(bus, events.EventRawData, events.RawDataPayload{Binary: make([]byte, 10)})
	emit(bus, events.EventChat, &message.ChatEvent{})
	emit(bus, events.EventChat, &message.ChatEvent{})
	emit(bus, events.EventRoomUser, &message.RoomUserEvent{ViewerCount: 321})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.events.WithLabelValues("chat")))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.rawBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.connected))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.websocket))
	assert.Equal(t, 321.0, testutil.ToFloat64(c.viewers))

	emit(bus, events.EventDisconnected, events.DisconnectedPayload{Reason: "requested"})
	assert.Equal(t, 0.0, testutil.ToFloat64(c.connected))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.websocket))
}

func TestCollectorCountsCompletedGifts(t *testing.T) {
	c := NewCollector()
	bus := events.NewEventBus()
	c.Attach(bus)

	// A streak in progress, its end, then a one-off gift.
	emit(bus, events.EventGift, &message.GiftEvent{GiftType: 1, DiamondCount: 1, RepeatCount: 3})
	emit(bus, events.EventGift, &message.GiftEvent{GiftType: 1, DiamondCount: 1, RepeatCount: 5, RepeatEnd: true})
	emit(bus, events.EventGift, &message.GiftEvent{GiftType: 2, DiamondCount: 100, RepeatCount: 1})

	assert.Equal(t, 105.0, testutil.ToFloat64(c.diamonds))
}

func TestHandlerServesMetrics(t *testing.T) {
	c := NewCollector()
	bus := events.NewEventBus()
	c.Attach(bus)
	emit(bus, events.EventLike, &message.LikeEvent{})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `streamtap_events_total{type="like"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
