package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/streamtap-project/streamtap/internal/config"
	"github.com/streamtap-project/streamtap/internal/events"
	"github.com/streamtap-project/streamtap/internal/util"
)

const (
	mqttQoS             = 1
	mqttDisconnectQuiet = 5000
	mqttPublishTimeout  = 5 * time.Second
)

// Publisher is the part of an MQTT client the forwarder publishes through.
type Publisher interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTForwarder publishes events to topics of the form
// <prefix>/<room id>/<event>.
type MQTTForwarder struct {
	cfg    config.MQTTConfig
	client mqtt.Client
	pub    Publisher
	rooms  *roomTracker
	logger zerolog.Logger

	// Included in every message
	metadata map[string]interface{}
}

// NewMQTTForwarder creates a forwarder. Nothing connects until Start.
func NewMQTTForwarder(cfg config.MQTTConfig) (*MQTTForwarder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	sysInfo := util.GetSystemInfo("")
	f := newMQTTForwarder(cfg, nil)
	f.metadata = map[string]interface{}{
		"hostname": sysInfo.Hostname,
		"os":       sysInfo.OS,
	}

	scheme := "tcp"
	if cfg.UseTLS {
		scheme = "ssl"
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.BrokerURL, cfg.Port))

	if cfg.ClientID != "" {
		opts.SetClientID(cfg.ClientID)
	} else {
		opts.SetClientID("streamtap-" + uuid.NewString())
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(true)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		f.logger.Info().Msg("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		f.logger.Warn().Err(err).Msg("MQTT connection lost")
	})

	f.client = mqtt.NewClient(opts)
	f.pub = f.client
	return f, nil
}

func newMQTTForwarder(cfg config.MQTTConfig, pub Publisher) *MQTTForwarder {
	prefix := strings.Trim(cfg.TopicPrefix, "/")
	if prefix == "" {
		prefix = "streamtap"
	}
	cfg.TopicPrefix = prefix
	return &MQTTForwarder{
		cfg:    cfg,
		pub:    pub,
		rooms:  newRoomTracker(),
		logger: log.With().Str("component", "mqtt").Logger(),
	}
}

// Start connects to the broker and blocks until ctx is done.
func (f *MQTTForwarder) Start(ctx context.Context) error {
	f.logger.Info().
		Str("broker", f.cfg.BrokerURL).
		Int("port", f.cfg.Port).
		Msg("connecting to MQTT broker")

	token := f.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	<-ctx.Done()

	f.client.Disconnect(mqttDisconnectQuiet)
	f.logger.Info().Msg("MQTT disconnected")
	return nil
}

// Attach subscribes the forwarder to every forwarded signal.
func (f *MQTTForwarder) Attach(bus *events.EventBus) {
	for _, t := range ForwardedEvents {
		bus.Subscribe(t, "mqtt."+string(t), f.forward)
	}
}

// Topic returns the topic an event of the given type in room is sent to.
func (f *MQTTForwarder) Topic(roomID string, t events.EventType) string {
	return f.cfg.TopicPrefix + "/" + roomID + "/" + string(t)
}

func (f *MQTTForwarder) forward(ctx context.Context, event events.Event) error {
	room := f.rooms.observe(event)
	f.publish(f.Topic(room, event.Type), newEnvelope(event, room, f.metadata))
	return nil
}

// publish sends a JSON message to an MQTT topic.
func (f *MQTTForwarder) publish(topic string, msg Envelope) {
	if f.pub == nil || !f.pub.IsConnected() {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		f.logger.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := f.pub.Publish(topic, mqttQoS, false, data)
	go func() {
		if !token.WaitTimeout(mqttPublishTimeout) {
			f.logger.Warn().Str("topic", topic).Msg("MQTT publish timed out")
			return
		}
		if token.Error() != nil {
			f.logger.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}
