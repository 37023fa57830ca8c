// Package live implements the connection to one broadcast: bring-up,
// transport selection, signal dispatch, and teardown.
package live

import (
	"errors"
	"strings"
	"time"

	"github.com/streamtap-project/streamtap/internal/message"
)

var (
	ErrAlreadyConnecting = errors.New("already connecting")
	ErrAlreadyConnected  = errors.New("already connected")
	ErrInvalidIdentifier = errors.New("invalid unique id")
	ErrNoTransport       = errors.New("no transport available: websocket upgrade unavailable and no session id for polling")
	ErrMissingCursor     = errors.New("initial fetch returned no cursor")
	ErrStreamEnded       = errors.New("broadcast has ended")
	ErrHandshakeTimeout  = errors.New("handshake timed out")
)

// ConnectState is the lifecycle position of a Connection.
type ConnectState int

const (
	StateDisconnected ConnectState = iota
	StateConnecting
	StateConnected
)

var connectStateStrings = map[ConnectState]string{
	StateDisconnected: "disconnected",
	StateConnecting:   "connecting",
	StateConnected:    "connected",
}

// String returns the string representation of ConnectState.
func (s ConnectState) String() string {
	if str, ok := connectStateStrings[s]; ok {
		return str
	}
	return "disconnected"
}

// MarshalJSON serializes ConnectState as a JSON string (e.g. "connected").
func (s ConnectState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// State is a snapshot of a Connection.
type State struct {
	ConnectionID        string          `json:"connectionId"`
	Status              ConnectState    `json:"status"`
	IsConnected         bool            `json:"isConnected"`
	UpgradedToWebsocket bool            `json:"upgradedToWebsocket"`
	UniqueID            string          `json:"uniqueId,omitempty"`
	RoomID              string          `json:"roomId,omitempty"`
	Transport           string          `json:"transport,omitempty"`
	RoomInfo            map[string]any  `json:"roomInfo,omitempty"`
	AvailableGifts      message.Catalog `json:"availableGifts,omitempty"`
	ConnectedAt         *time.Time      `json:"connectedAt,omitempty"`
}

// NormalizeUniqueID accepts "name", "@name" or a live page URL and
// returns the bare unique id.
func NormalizeUniqueID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	for _, prefix := range []string{"https://", "http://", "www.", "m.", "tiktok.com/"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, "/live")
	s = strings.TrimPrefix(s, "@")
	if s == "" || strings.ContainsAny(s, "/?# ") {
		return "", ErrInvalidIdentifier
	}
	return s, nil
}
