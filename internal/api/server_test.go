package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamtap-project/streamtap/internal/config"
	"github.com/streamtap-project/streamtap/internal/connector"
	"github.com/streamtap-project/streamtap/internal/db"
	"github.com/streamtap-project/streamtap/internal/events"
	"github.com/streamtap-project/streamtap/internal/live"
	"github.com/streamtap-project/streamtap/internal/signer"
)

type fakeController struct {
	mu          sync.Mutex
	state       live.State
	connectErr  error
	connectedTo string
	disconnects int
}

func (f *fakeController) State() live.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeController) Stats() map[events.EventType]uint64 {
	return map[events.EventType]uint64{events.EventChat: 4}
}

func (f *fakeController) Connect(ctx context.Context, roomID string) (live.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return live.State{}, f.connectErr
	}
	f.connectedTo = roomID
	f.state = live.State{Status: live.StateConnected, IsConnected: true, RoomID: roomID}
	return f.state, nil
}

func (f *fakeController) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.state = live.State{Status: live.StateDisconnected}
}

type fakeStore struct {
	kind  string
	limit int
}

func (s *fakeStore) Recent(kind string, limit int) ([]db.Record, error) {
	s.kind, s.limit = kind, limit
	return []db.Record{{ID: 1, Type: "chat", Body: json.RawMessage(`{"comment":"hi"}`), CreatedAt: time.Now()}}, nil
}

func (s *fakeStore) CountByType() (map[string]int64, error) {
	return map[string]int64{"chat": 1}, nil
}

func newTestServer(cfg config.APIConfig, conn Controller) *Server {
	return NewServer(cfg, conn, false)
}

func do(t *testing.T, s *Server, method, path, body string, header http.Header) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var out map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestPing(t *testing.T) {
	s := newTestServer(config.APIConfig{Token: "secret"}, &fakeController{})
	rec, body := do(t, s, http.MethodGet, "/api/public/ping", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "streamtap", rec.Header().Get("Server"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestTokenRequired(t *testing.T) {
	s := newTestServer(config.APIConfig{Token: "secret"}, &fakeController{})

	rec, _ := do(t, s, http.MethodGet, "/api/state", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/state", "", http.Header{"Authorization": {"Bearer wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := do(t, s, http.MethodGet, "/api/state", "", http.Header{"Authorization": {"Bearer secret"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disconnected", body["status"])
}

func TestConnectAndDisconnect(t *testing.T) {
	conn := &fakeController{}
	s := newTestServer(config.APIConfig{}, conn)

	rec, body := do(t, s, http.MethodPost, "/api/connect", `{"room_id":"7001"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7001", conn.connectedTo)
	assert.Equal(t, true, body["isConnected"])

	rec, body = do(t, s, http.MethodPost, "/api/disconnect", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, conn.disconnects)
	assert.Equal(t, false, body["isConnected"])
}

func TestConnectWithoutBody(t *testing.T) {
	conn := &fakeController{}
	s := newTestServer(config.APIConfig{}, conn)

	rec, _ := do(t, s, http.MethodPost, "/api/connect", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, conn.connectedTo)
}

func TestConnectErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{live.ErrAlreadyConnected, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", live.ErrAlreadyConnecting), http.StatusConflict},
		{signer.ErrConnectInProgress, http.StatusConflict},
		{live.ErrInvalidIdentifier, http.StatusBadRequest},
		{live.ErrStreamEnded, http.StatusNotFound},
		{&connector.OfflineError{UniqueID: "x"}, http.StatusNotFound},
		{&signer.RateLimitedError{Host: "h"}, http.StatusTooManyRequests},
		{live.ErrHandshakeTimeout, http.StatusGatewayTimeout},
		{errors.New("upstream"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		s := newTestServer(config.APIConfig{}, &fakeController{connectErr: tt.err})
		rec, body := do(t, s, http.MethodPost, "/api/connect", "", nil)
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())
		assert.Equal(t, tt.err.Error(), body["error"])
	}
}

func TestStatsAndRecent(t *testing.T) {
	s := newTestServer(config.APIConfig{}, &fakeController{})

	rec, _ := do(t, s, http.MethodGet, "/api/events/recent", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	store := &fakeStore{}
	s = newTestServer(config.APIConfig{}, &fakeController{})
	s.SetDependencies(store, nil, "")

	rec, body := do(t, s, http.MethodGet, "/api/stats", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4.0, body["signals"].(map[string]interface{})["chat"])
	assert.Equal(t, 1.0, body["recorded"].(map[string]interface{})["chat"])

	rec, body = do(t, s, http.MethodGet, "/api/events/recent?type=chat&limit=5", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["total"])
	assert.Equal(t, "chat", store.kind)
	assert.Equal(t, 5, store.limit)

	rec, _ = do(t, s, http.MethodGet, "/api/events/recent?limit=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("streamtap_connected 1\n"))
	})

	s := newTestServer(config.APIConfig{EnableMetrics: true}, &fakeController{})
	s.SetDependencies(nil, metrics, "")
	rec, _ := do(t, s, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "streamtap_connected 1")

	s = newTestServer(config.APIConfig{}, &fakeController{})
	s.SetDependencies(nil, metrics, "")
	rec, _ = do(t, s, http.MethodGet, "/metrics", "", nil)
	assert.NotContains(t, rec.Body.String(), "streamtap_connected")
}

func TestUnknownAPIRoute(t *testing.T) {
	s := newTestServer(config.APIConfig{}, &fakeController{})
	rec, body := do(t, s, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "endpoint not found", body["error"])
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1)
	now := time.Now()
	assert.True(t, rl.allow("1.2.3.4", now))
	assert.True(t, rl.allow("1.2.3.4", now))
	assert.False(t, rl.allow("1.2.3.4", now))
	assert.True(t, rl.allow("5.6.7.8", now))
	assert.True(t, rl.allow("1.2.3.4", now.Add(time.Second)))
}
