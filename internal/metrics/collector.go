// Package metrics exposes Prometheus metrics derived from emitted events.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamtap-project/streamtap/internal/events"
	"github.com/streamtap-project/streamtap/internal/message"
)

const namespace = "streamtap"

// Collector turns bus events into metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	events    *prometheus.CounterVec
	rawBytes  prometheus.Counter
	diamonds  prometheus.Counter
	connected prometheus.Gauge
	viewers   prometheus.Gauge
	websocket prometheus.Gauge
}

// NewCollector creates the metrics and registers them with Go runtime and
// process collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Emitted signals by type.",
		}, []string{"type"}),
		rawBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "raw_bytes_total",
			Help:      "Bytes of inner message payloads received.",
		}),
		diamonds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gift_diamonds_total",
			Help:      "Diamond value of completed gifts.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while a connection is established.",
		}),
		viewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "viewer_count",
			Help:      "Viewer count from the latest room user update.",
		}),
		websocket: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_upgraded",
			Help:      "1 while events arrive over the push socket.",
		}),
	}

	c.registry.MustRegister(
		c.events,
		c.rawBytes,
		c.diamonds,
		c.connected,
		c.viewers,
		c.websocket,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Attach subscribes the collector to every event.
func (c *Collector) Attach(bus *events.EventBus) {
	bus.Subscribe(events.EventAny, "metrics", c.observe)
}

func (c *Collector) observe(ctx context.Context, event events.Event) error {
	c.events.WithLabelValues(string(event.Type)).Inc()

	switch event.Type {
	case events.EventConnected:
		c.connected.Set(1)
	case events.EventDisconnected:
		c.connected.Set(0)
		c.websocket.Set(0)
	case events.EventWebsocketConnected:
		c.websocket.Set(1)
	case events.EventRawData:
		if p, ok := event.Payload.(events.RawDataPayload); ok {
			c.rawBytes.Add(float64(len(p.Binary)))
		}
	case events.EventRoomUser:
		if p, ok := event.Payload.(*message.RoomUserEvent); ok {
			c.viewers.Set(float64(p.ViewerCount))
		}
	case events.EventGift:
		if p, ok := event.Payload.(*message.GiftEvent); ok && (!p.Streakable() || p.RepeatEnd) {
			c.diamonds.Add(float64(p.DiamondCount) * float64(max(p.RepeatCount, 1)))
		}
	}
	return nil
}
