package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/streamtap-project/streamtap/internal/protocol"
)

const (
	defaultHeartbeatInterval = 10 * time.Second
	pushWriteTimeout         = 5 * time.Second
	pushCloseGrace           = time.Second
)

// PushConfig describes the push socket to open.
type PushConfig struct {
	URL               string
	Params            map[string]string
	Header            http.Header
	HeartbeatInterval time.Duration
	HandshakeTimeout  time.Duration
	SkipTypes         map[string]bool
}

// Push delivers batches over the binary push socket. It acknowledges every
// frame carrying an id and sends a heartbeat frame on a fixed interval.
type Push struct {
	mu   sync.Mutex
	conn *websocket.Conn

	// Serializes heartbeat and ack writes.
	writeMu sync.Mutex

	cfg    PushConfig
	params *ClientParams
	cb     Callbacks

	stopOnce sync.Once
	stopCh   chan struct{}
	stopped  atomic.Bool
	wg       sync.WaitGroup
	delivery context.Context

	logger zerolog.Logger
}

// NewPush creates a push transport. Nothing is dialed until Start.
func NewPush(cfg PushConfig, params *ClientParams, cb Callbacks) *Push {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	p := &Push{
		cfg:    cfg,
		params: params,
		cb:     cb,
		stopCh: make(chan struct{}),
		logger: log.With().Str("component", "push").Logger(),
	}
	p.delivery = deliveryContext(p)
	return p
}

// Name implements Transport.
func (p *Push) Name() string { return "websocket" }

// Endpoint returns the socket URL with client and socket parameters applied.
func (p *Push) Endpoint() (string, error) {
	u, err := url.Parse(p.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid push URL %q: %w", p.cfg.URL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("invalid push URL scheme %q", u.Scheme)
	}

	merged := p.params.Snapshot()
	for k, v := range p.cfg.Params {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := u.Query()
	for _, k := range keys {
		q.Set(k, merged[k])
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Start dials the socket and starts the read and heartbeat loops.
func (p *Push) Start(ctx context.Context) error {
	endpoint, err := p.Endpoint()
	if err != nil {
		return err
	}

	dialer := *websocket.DefaultDialer
	if p.cfg.HandshakeTimeout > 0 {
		dialer.HandshakeTimeout = p.cfg.HandshakeTimeout
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, p.cfg.Header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	p.mu.Lock()
	if p.stopped.Load() {
		p.mu.Unlock()
		conn.Close()
		return errors.New("push transport stopped during handshake")
	}
	p.conn = conn
	p.mu.Unlock()

	p.logger.Info().Str("host", conn.RemoteAddr().String()).Msg("push socket connected")

	p.wg.Add(2)
	go p.readLoop(conn)
	go p.keepAlive(conn)
	return nil
}

// Stop implements Transport.
func (p *Push) Stop() {
	p.stopOnce.Do(func() {
		p.stopped.Store(true)
		close(p.stopCh)

		p.mu.Lock()
		conn := p.conn
		p.mu.Unlock()
		if conn == nil {
			return
		}
		// WriteControl may run concurrently with the other writers.
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(pushCloseGrace))
		conn.Close()
		p.logger.Info().Msg("push socket closed")
	})
}

// Close implements Transport.
func (p *Push) Close(ctx context.Context) error {
	p.Stop()
	if !inDelivery(ctx, p) {
		p.wg.Wait()
	}
	return nil
}

// keepAlive sends the heartbeat frame until the transport stops.
func (p *Push) keepAlive(conn *websocket.Conn) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.HeartbeatInterval)
	defer ticker.Stop()

	heartbeat := protocol.EncodeHeartbeat()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.write(conn, heartbeat); err != nil {
				if !p.stopped.Load() {
					p.logger.Warn().Err(err).Msg("failed to send heartbeat")
				}
				return
			}
			p.logger.Trace().Msg("heartbeat sent")
		}
	}
}

// readLoop decodes frames until the socket fails or the transport stops.
func (p *Push) readLoop(conn *websocket.Conn) {
	defer p.wg.Done()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if p.stopped.Load() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.logger.Info().Msg("upstream closed push socket")
			} else {
				p.logger.Error().Err(err).Msg("error reading from push socket")
			}
			p.Stop()
			p.cb.closed(p.delivery, &ClosedError{Transport: p.Name(), Err: err})
			return
		}

		if msgType != websocket.BinaryMessage {
			continue
		}
		p.handleFrame(conn, data)

		if p.stopped.Load() {
			return
		}
	}
}

func (p *Push) handleFrame(conn *websocket.Conn, data []byte) {
	frame, err := protocol.DecodePushFrame(data)
	if frame != nil && frame.ID != 0 {
		if ackErr := p.write(conn, protocol.EncodeAck(frame.ID)); ackErr != nil && !p.stopped.Load() {
			p.logger.Warn().Err(ackErr).Uint64("id", frame.ID).Msg("failed to send ack")
		}
	}
	if err != nil {
		p.dispatch(func(ctx context.Context) { p.cb.decodeFailed(ctx, err) })
		return
	}

	if frame.Type != protocol.FrameTypeMessage {
		p.logger.Trace().Str("type", frame.Type).Msg("ignoring push frame")
		return
	}

	resp, err := protocol.DecodeBatchResponse(frame.Binary, p.cfg.SkipTypes)
	if err != nil {
		p.dispatch(func(ctx context.Context) { p.cb.decodeFailed(ctx, err) })
		return
	}

	p.params.Apply(resp.Cursor, resp.InternalExt)
	p.dispatch(func(ctx context.Context) { p.cb.batch(ctx, resp) })
}

func (p *Push) write(conn *websocket.Conn, frame []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(pushWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, frame)
}

// dispatch drops output once the transport is stopping.
func (p *Push) dispatch(fn func(ctx context.Context)) {
	if p.stopped.Load() {
		return
	}
	fn(p.delivery)
}
