package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/streamtap-project/streamtap/internal/config"
	"github.com/streamtap-project/streamtap/internal/events"
)

const defaultRedisPublishTimeout = 2 * time.Second

// RedisForwarder publishes event envelopes to one Redis pub/sub channel.
type RedisForwarder struct {
	client  *redis.Client
	channel string
	timeout time.Duration
	rooms   *roomTracker
	logger  zerolog.Logger
}

// NewRedisForwarder parses the connection URL and creates a forwarder.
func NewRedisForwarder(cfg config.RedisConfig) (*RedisForwarder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	timeout := time.Duration(cfg.PublishTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultRedisPublishTimeout
	}
	channel := cfg.Channel
	if channel == "" {
		channel = "streamtap:events"
	}

	return &RedisForwarder{
		client:  redis.NewClient(opts),
		channel: channel,
		timeout: timeout,
		rooms:   newRoomTracker(),
		logger:  log.With().Str("component", "redis").Logger(),
	}, nil
}

// Channel returns the pub/sub channel events are published to.
func (f *RedisForwarder) Channel() string { return f.channel }

// Ping checks the server is reachable.
func (f *RedisForwarder) Ping(ctx context.Context) error {
	if err := f.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Attach subscribes the forwarder to every forwarded signal.
func (f *RedisForwarder) Attach(bus *events.EventBus) {
	for _, t := range ForwardedEvents {
		bus.Subscribe(t, "redis."+string(t), f.Forward)
	}
}

// Forward publishes one event. It returns the publish error so the bus
// logs it; delivery of later events is unaffected.
func (f *RedisForwarder) Forward(ctx context.Context, event events.Event) error {
	room := f.rooms.observe(event)
	data, err := json.Marshal(newEnvelope(event, room, nil))
	if err != nil {
		return fmt.Errorf("failed to marshal %s envelope: %w", event.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := f.client.Publish(ctx, f.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	f.logger.Trace().Str("event", string(event.Type)).Msg("published")
	return nil
}

// Close releases the connection pool.
func (f *RedisForwarder) Close() error {
	return f.client.Close()
}
