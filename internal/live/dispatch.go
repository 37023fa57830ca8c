package live

import (
	"context"
	"strings"

	"github.com/streamtap-project/streamtap/internal/events"
	"github.com/streamtap-project/streamtap/internal/message"
	"github.com/streamtap-project/streamtap/internal/protocol"
)

// processBatch emits the signals for each message in order. It reports
// whether a control message ended the broadcast.
func (c *Connection) processBatch(ctx context.Context, gen uint64, resp *protocol.BatchResponse) bool {
	roomID := resp.RoomID
	if roomID == "" {
		roomID = c.currentRoom()
	}
	catalog := c.catalog()

	for i := range resp.Messages {
		if !c.accepts(gen) {
			return false
		}
		m := &resp.Messages[i]
		c.emit(ctx, events.EventRawData, events.RawDataPayload{Type: m.Type, Binary: m.Binary})

		if m.Err != nil {
			c.emitError(ctx, "failed to decode "+m.Type, m.Err)
			continue
		}
		ev, err := message.Normalize(m, catalog)
		if err != nil {
			c.emitError(ctx, "failed to normalize "+m.Type, err)
			continue
		}
		if ev == nil {
			continue
		}
		c.emit(ctx, events.EventDecodedData, events.DecodedDataPayload{
			Type:   m.Type,
			RoomID: roomID,
			Event:  ev,
			Binary: m.Binary,
		})
		if c.dispatch(ctx, gen, ev) {
			return true
		}
	}
	return false
}

func (c *Connection) dispatch(ctx context.Context, gen uint64, ev message.Event) bool {
	switch e := ev.(type) {
	case *message.ControlEvent:
		c.emit(ctx, events.EventControl, e)
		if e.StreamEnded() {
			c.emit(ctx, events.EventStreamEnd, events.StreamEndPayload{Action: e.Action})
			c.terminate(ctx, gen, "stream ended", ErrStreamEnded)
			return true
		}
	case *message.SocialEvent:
		c.emit(ctx, events.EventSocial, e)
		displayType := strings.ToLower(e.DisplayType)
		if strings.Contains(displayType, "follow") {
			c.emit(ctx, events.EventFollow, e)
		}
		if strings.Contains(displayType, "share") {
			c.emit(ctx, events.EventShare, e)
		}
	default:
		c.emit(ctx, events.EventType(ev.Kind()), ev)
	}
	return false
}
