package live

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/streamtap-project/streamtap/internal/config"
	"github.com/streamtap-project/streamtap/internal/connector"
	"github.com/streamtap-project/streamtap/internal/cookie"
	"github.com/streamtap-project/streamtap/internal/events"
	"github.com/streamtap-project/streamtap/internal/message"
	"github.com/streamtap-project/streamtap/internal/protocol"
	"github.com/streamtap-project/streamtap/internal/transport"
)

// WebcastAPI is the upstream surface a Connection needs.
type WebcastAPI interface {
	Strategies() []connector.Strategy
	FetchRoomInfo(ctx context.Context, params map[string]string) (*connector.RoomInfo, error)
	FetchGiftCatalog(ctx context.Context, params map[string]string) (message.Catalog, error)
	FetchBatch(ctx context.Context, params map[string]string) (*protocol.BatchResponse, error)
}

// ConnectGate serializes bring-ups per unique id.
type ConnectGate interface {
	BeginConnect(uniqueID string) error
	EndConnect(uniqueID string)
}

// PushFactory builds the push transport used for the websocket upgrade.
type PushFactory func(cfg transport.PushConfig, params *transport.ClientParams, cb transport.Callbacks) transport.Transport

func defaultPush(cfg transport.PushConfig, params *transport.ClientParams, cb transport.Callbacks) transport.Transport {
	return transport.NewPush(cfg, params, cb)
}

// Option configures a Connection.
type Option func(*Connection)

// WithConnectGate registers the gate consulted around each bring-up.
func WithConnectGate(g ConnectGate) Option {
	return func(c *Connection) { c.gate = g }
}

// WithPushFactory replaces the push transport constructor.
func WithPushFactory(f PushFactory) Option {
	return func(c *Connection) { c.newPush = f }
}

// Connection is a client for one broadcast. It is safe for concurrent use.
type Connection struct {
	id       string
	uniqueID string
	cfg      config.ClientConfig
	api      WebcastAPI
	bus      *events.EventBus
	jar      *cookie.Jar
	params   *transport.ClientParams
	gate     ConnectGate
	newPush  PushFactory
	logger   zerolog.Logger

	mu            sync.Mutex
	status        ConnectState
	gen           uint64
	cancelConnect context.CancelFunc
	transport     transport.Transport
	upgraded      bool
	roomID        string
	roomInfo      *connector.RoomInfo
	gifts         message.Catalog
	connectedAt   time.Time
	// aborted holds why the transport ended before bring-up published it.
	aborted error

	stats *Stats
}

// NewConnection creates a disconnected client. uniqueID may be empty when
// the caller always connects with an explicit room id.
func NewConnection(uniqueID string, cfg config.ClientConfig, api WebcastAPI, bus *events.EventBus, jar *cookie.Jar, opts ...Option) (*Connection, error) {
	if uniqueID != "" {
		normalized, err := NormalizeUniqueID(uniqueID)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, uniqueID)
		}
		uniqueID = normalized
	}
	if jar == nil {
		jar = cookie.NewJar()
	}
	if cfg.SessionID != "" {
		jar.SetSession(cfg.SessionID, cfg.TTTargetIDC)
	}

	c := &Connection{
		id:       uuid.New().String(),
		uniqueID: uniqueID,
		cfg:      cfg,
		api:      api,
		bus:      bus,
		jar:      jar,
		params:   transport.NewClientParams(cfg.ClientParams),
		newPush:  defaultPush,
		stats:    newStats(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = log.With().Str("component", "live").Str("unique_id", uniqueID).Logger()
	return c, nil
}

// ID returns the connection's identifier.
func (c *Connection) ID() string { return c.id }

// UniqueID returns the normalized unique id.
func (c *Connection) UniqueID() string { return c.uniqueID }

// Params exposes the mutable client parameters.
func (c *Connection) Params() *transport.ClientParams { return c.params }

// SetSession installs session credentials used by later requests.
func (c *Connection) SetSession(sessionID, ttTargetIDC string) {
	c.jar.SetSession(sessionID, ttTargetIDC)
}

// Connect resolves the room, performs the initial fetch and starts a
// transport. roomID skips resolution when non-empty.
func (c *Connection) Connect(ctx context.Context, roomID string) (State, error) {
	c.mu.Lock()
	switch c.status {
	case StateConnecting:
		c.mu.Unlock()
		return State{}, ErrAlreadyConnecting
	case StateConnected:
		c.mu.Unlock()
		return State{}, ErrAlreadyConnected
	}
	c.status = StateConnecting
	c.aborted = nil
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(ctx)
	c.cancelConnect = cancel
	c.mu.Unlock()
	defer cancel()

	c.logger.Info().Str("room_id", roomID).Msg("connecting")

	if err := c.bringUp(ctx, gen, roomID); err != nil {
		c.mu.Lock()
		c.status = StateDisconnected
		c.cancelConnect = nil
		c.upgraded = false
		c.mu.Unlock()
		c.params.Reset()

		c.logger.Warn().Err(err).Msg("connect failed")
		c.emitError(context.Background(), "failed to connect", err)
		return State{}, err
	}

	state := c.State()
	c.logger.Info().
		Str("room_id", state.RoomID).
		Str("transport", state.Transport).
		Msg("connected")
	c.emit(context.Background(), events.EventConnected, state)
	return state, nil
}

func (c *Connection) bringUp(ctx context.Context, gen uint64, roomID string) error {
	if c.gate != nil && c.uniqueID != "" {
		if err := c.gate.BeginConnect(c.uniqueID); err != nil {
			return err
		}
		defer c.gate.EndConnect(c.uniqueID)
	}

	deferred := false
	switch {
	case roomID != "":
	case c.uniqueID == "":
		return ErrInvalidIdentifier
	case c.cfg.ConnectWithUniqueID:
		deferred = true
		c.params.Set(transport.ParamUniqueID, c.uniqueID)
	default:
		resolved, err := connector.Resolve(ctx, c.uniqueID, c.api.Strategies())
		if err != nil {
			return err
		}
		roomID = resolved
	}
	if roomID != "" {
		c.setRoom(roomID)
	}

	if c.cfg.FetchRoomInfoOnConnect && !deferred {
		info, err := c.api.FetchRoomInfo(ctx, c.params.Snapshot())
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.roomInfo = info
		c.mu.Unlock()
		if info.Ended() {
			return ErrStreamEnded
		}
	}

	if c.cfg.EnableExtendedGiftInfo && !deferred {
		gifts, err := c.api.FetchGiftCatalog(ctx, c.params.Snapshot())
		if err != nil {
			c.emitError(context.Background(), "failed to fetch gift catalog", err)
		} else {
			c.mu.Lock()
			c.gifts = gifts
			c.mu.Unlock()
		}
	}

	hctx, hcancel := context.WithTimeout(ctx, c.handshakeTimeout())
	defer hcancel()

	resp, err := c.api.FetchBatch(hctx, c.params.Snapshot())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: %v", ErrHandshakeTimeout, err)
		}
		return fmt.Errorf("initial fetch failed: %w", err)
	}
	if resp.Cursor == "" {
		return ErrMissingCursor
	}
	if deferred {
		if resp.RoomID == "" {
			return fmt.Errorf("initial fetch returned no room id for %q", c.uniqueID)
		}
		c.setRoom(resp.RoomID)
	}
	c.params.Apply(resp.Cursor, resp.InternalExt)

	if c.cfg.ProcessInitialData && c.processBatch(context.Background(), gen, resp) {
		return ErrStreamEnded
	}

	t, upgraded, err := c.openTransport(hctx, gen, resp)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil || c.gen != gen {
		t.Stop()
		if err == nil {
			err = context.Canceled
		}
		return fmt.Errorf("connect aborted: %w", err)
	}
	if c.aborted != nil {
		t.Stop()
		return fmt.Errorf("connect aborted: %w", c.aborted)
	}
	c.status = StateConnected
	c.cancelConnect = nil
	c.transport = t
	c.upgraded = upgraded
	c.connectedAt = time.Now()
	return nil
}

func (c *Connection) openTransport(ctx context.Context, gen uint64, resp *protocol.BatchResponse) (transport.Transport, bool, error) {
	cb := c.callbacks(gen)

	if c.cfg.EnableWebsocketUpgrade && resp.WSURL != "" && len(resp.WSParams) > 0 {
		push := c.newPush(transport.PushConfig{
			URL:               resp.WSURL,
			Params:            resp.WSParams,
			Header:            c.pushHeader(),
			HeartbeatInterval: c.cfg.HeartbeatInterval(),
			HandshakeTimeout:  c.handshakeTimeout(),
			SkipTypes:         c.cfg.SkipSet(),
		}, c.params, cb)
		err := push.Start(ctx)
		if err == nil {
			c.emit(context.Background(), events.EventWebsocketConnected, events.WebsocketConnectedPayload{URL: resp.WSURL})
			return push, true, nil
		}
		if ctx.Err() != nil {
			return nil, false, err
		}
		c.logger.Warn().Err(err).Msg("websocket upgrade failed, falling back to polling")
		c.emitError(context.Background(), "websocket upgrade failed", err)
	}

	if c.jar.SessionID() == "" {
		return nil, false, ErrNoTransport
	}
	if err := c.jar.CheckSession(); err != nil {
		return nil, false, err
	}
	poll := transport.NewPolling(c.api, c.params, c.cfg.PollingInterval(), cb)
	if err := poll.Start(ctx); err != nil {
		return nil, false, err
	}
	return poll, false, nil
}

func (c *Connection) pushHeader() http.Header {
	header := http.Header{}
	for k, v := range c.cfg.RequestHeaders {
		header.Set(k, v)
	}
	ua := c.cfg.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	header.Set("User-Agent", ua)
	if cookies := c.jar.Header(); cookies != "" {
		header.Set("Cookie", cookies)
	}
	return header
}

func (c *Connection) handshakeTimeout() time.Duration {
	if d := c.cfg.HandshakeTimeout(); d > 0 {
		return d
	}
	return 30 * time.Second
}

func (c *Connection) setRoom(roomID string) {
	c.params.Set(transport.ParamRoomID, roomID)
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()
}

func (c *Connection) callbacks(gen uint64) transport.Callbacks {
	return transport.Callbacks{
		OnBatch: func(ctx context.Context, resp *protocol.BatchResponse) {
			c.processBatch(ctx, gen, resp)
		},
		OnDecodeError: func(ctx context.Context, err error) {
			if c.accepts(gen) {
				c.emitError(ctx, "websocket message decoding failed", err)
			}
		},
		OnError: func(ctx context.Context, err error) {
			if c.accepts(gen) {
				c.emitError(ctx, "polling request failed", err)
			}
		},
		OnClose: func(ctx context.Context, err error) {
			if !c.accepts(gen) {
				return
			}
			c.logger.Warn().Err(err).Msg("transport closed")
			c.emitError(ctx, "transport closed", err)
			c.terminate(ctx, gen, "transport closed", err)
		},
	}
}

// Disconnect stops the active transport and waits for the signals of the
// message being delivered. During a bring-up it cancels the bring-up
// instead. It is a no-op when already disconnected. Event handlers must
// use DisconnectContext with their own context.
func (c *Connection) Disconnect() {
	c.DisconnectContext(context.Background())
}

// DisconnectContext is Disconnect for callers holding a handler context.
// Called with the context of one of this connection's signals, it returns
// without waiting for that delivery to finish.
func (c *Connection) DisconnectContext(ctx context.Context) {
	c.mu.Lock()
	switch c.status {
	case StateDisconnected:
		c.mu.Unlock()
		return
	case StateConnecting:
		cancel := c.cancelConnect
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return
	}
	t := c.transport
	c.transport = nil
	c.status = StateDisconnected
	c.upgraded = false
	c.gen++
	c.mu.Unlock()

	if t != nil {
		if err := t.Close(ctx); err != nil {
			c.logger.Debug().Err(err).Msg("transport close")
		}
	}
	c.params.Reset()
	c.logger.Info().Msg("disconnected")
	c.emit(ctx, events.EventDisconnected, events.DisconnectedPayload{Reason: "requested"})
}

// terminate ends a connection from inside a transport callback. Before
// bring-up has published the transport it records cause, and Connect
// fails with it.
func (c *Connection) terminate(ctx context.Context, gen uint64, reason string, cause error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	switch c.status {
	case StateDisconnected:
		c.mu.Unlock()
		return
	case StateConnecting:
		if c.aborted == nil {
			c.aborted = cause
		}
		c.mu.Unlock()
		c.logger.Warn().Err(cause).Msg("transport ended during connect")
		return
	}
	t := c.transport
	c.transport = nil
	c.status = StateDisconnected
	c.upgraded = false
	c.mu.Unlock()

	if t != nil {
		t.Stop()
	}
	c.params.Reset()
	c.logger.Info().Str("reason", reason).Msg("disconnected")
	c.emit(ctx, events.EventDisconnected, events.DisconnectedPayload{Reason: reason})
}

func (c *Connection) accepts(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen && c.status != StateDisconnected && c.aborted == nil
}

// State returns a snapshot of the connection.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		ConnectionID:        c.id,
		Status:              c.status,
		IsConnected:         c.status == StateConnected,
		UpgradedToWebsocket: c.upgraded,
		UniqueID:            c.uniqueID,
		RoomID:              c.roomID,
		AvailableGifts:      c.gifts,
	}
	if c.transport != nil {
		s.Transport = c.transport.Name()
	}
	if c.roomInfo != nil {
		s.RoomInfo = c.roomInfo.Raw
	}
	if c.status == StateConnected {
		at := c.connectedAt
		s.ConnectedAt = &at
	}
	return s
}

// Stats returns a copy of the per-signal counters.
func (c *Connection) Stats() map[events.EventType]uint64 {
	return c.stats.Snapshot()
}

func (c *Connection) catalog() message.Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gifts
}

func (c *Connection) currentRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

// emit delivers a signal. ctx reaches the handlers, so a handler can pass
// it to DisconnectContext.
func (c *Connection) emit(ctx context.Context, t events.EventType, payload interface{}) {
	c.stats.add(t)
	c.bus.Emit(ctx, events.Event{
		Type:    t,
		Source:  c.id,
		Payload: payload,
	})
}

// emitError delivers an error signal. Errors nobody listens for are logged.
func (c *Connection) emitError(ctx context.Context, info string, err error) {
	if c.bus.HandlerCount(events.EventError) == 0 {
		c.logger.Warn().Err(err).Str("info", info).Msg("unhandled connection error")
	}
	c.emit(ctx, events.EventError, events.ErrorPayload{Info: info, Err: err})
}
