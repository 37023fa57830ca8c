package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitDeliversInOrder(t *testing.T) {
	bus := NewEventBus()
	var got []string
	bus.Subscribe(EventChat, "first", func(ctx context.Context, e Event) error {
		got = append(got, "first:"+e.Payload.(string))
		return nil
	})
	bus.Subscribe(EventChat, "second", func(ctx context.Context, e Event) error {
		got = append(got, "second:"+e.Payload.(string))
		return nil
	})
	bus.Subscribe(EventAny, "tap", func(ctx context.Context, e Event) error {
		got = append(got, "tap:"+string(e.Type))
		return nil
	})

	for _, p := range []string{"a", "b"} {
		bus.Emit(context.Background(), Event{Type: EventChat, Payload: p})
	}
	assert.Equal(t, []string{"first:a", "second:a", "tap:chat", "first:b", "second:b", "tap:chat"}, got)
}

func TestEmitSurvivesPanicAndError(t *testing.T) {
	bus := NewEventBus()
	var calls atomic.Int32
	bus.Subscribe(EventGift, "panics", func(context.Context, Event) error { panic("boom") })
	bus.Subscribe(EventGift, "fails", func(context.Context, Event) error { return errors.New("nope") })
	bus.Subscribe(EventGift, "counts", func(context.Context, Event) error {
		calls.Add(1)
		return nil
	})

	bus.Emit(context.Background(), Event{Type: EventGift})
	assert.Equal(t, int32(1), calls.Load())
}

func TestUnsubscribeAndCount(t *testing.T) {
	bus := NewEventBus()
	noop := func(context.Context, Event) error { return nil }
	bus.Subscribe(EventError, "a", noop)
	bus.Subscribe(EventError, "b", noop)
	bus.Subscribe(EventAny, "tap", noop)
	assert.Equal(t, 2, bus.HandlerCount(EventError), "wildcard subscribers are not counted")

	bus.Unsubscribe(EventError, "a")
	assert.Equal(t, 1, bus.HandlerCount(EventError))
}

func TestHandlerMayEmit(t *testing.T) {
	bus := NewEventBus()
	var secondary atomic.Int32
	bus.Subscribe(EventControl, "relay", func(ctx context.Context, e Event) error {
		bus.Emit(ctx, Event{Type: EventStreamEnd})
		return nil
	})
	bus.Subscribe(EventStreamEnd, "count", func(context.Context, Event) error {
		secondary.Add(1)
		return nil
	})
	bus.Emit(context.Background(), Event{Type: EventControl})
	assert.Equal(t, int32(1), secondary.Load())
}

func TestStop(t *testing.T) {
	bus := NewEventBus()
	var calls atomic.Int32
	bus.Subscribe(EventShutdown, "count", func(context.Context, Event) error {
		calls.Add(1)
		return nil
	})

	bus.Emit(context.Background(), Event{Type: EventShutdown})
	bus.Stop()
	bus.Stop()

	bus.Emit(context.Background(), Event{Type: EventShutdown})
	assert.Equal(t, int32(1), calls.Load(), "a stopped bus delivers nothing")
}

func TestErrorPayloadJSON(t *testing.T) {
	data, err := json.Marshal(ErrorPayload{Info: "fetch", Err: errors.New("timeout")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"info":"fetch","error":"timeout"}`, string(data))
}
