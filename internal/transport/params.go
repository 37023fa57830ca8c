// Package transport carries batch responses from the upstream to a
// connection over either a push socket or a polling loop.
package transport

import (
	"sync"
)

// Well-known client parameter names.
const (
	ParamCursor      = "cursor"
	ParamInternalExt = "internal_ext"
	ParamRoomID      = "room_id"
	ParamUniqueID    = "unique_id"
)

// DefaultClientParams returns the browser fingerprint sent with every webcast request.
func DefaultClientParams() map[string]string {
	return map[string]string{
		"aid":               "1988",
		"app_language":      "en-US",
		"app_name":          "tiktok_web",
		"browser_language":  "en",
		"browser_name":      "Mozilla",
		"browser_online":    "true",
		"browser_platform":  "Win32",
		"cookie_enabled":    "true",
		"device_platform":   "web_pc",
		"did_rule":          "3",
		"fetch_rule":        "1",
		"focus_state":       "true",
		"from_page":         "user",
		"history_len":       "4",
		"identity":          "audience",
		"is_fullscreen":     "false",
		"is_page_visible":   "true",
		"live_id":           "12",
		"resp_content_type": "protobuf",
		"screen_height":     "1152",
		"screen_width":      "2048",
		"tz_name":           "Europe/Berlin",
		"version_code":      "180800",
		ParamCursor:         "",
		ParamInternalExt:    "",
	}
}

// ClientParams is the mutable request parameter map of one connection.
// Transports advance cursor and internal_ext; the connection sets the room.
type ClientParams struct {
	mu      sync.RWMutex
	initial map[string]string
	values  map[string]string
}

// NewClientParams starts from DefaultClientParams with overrides applied.
func NewClientParams(overrides map[string]string) *ClientParams {
	initial := DefaultClientParams()
	for k, v := range overrides {
		initial[k] = v
	}
	p := &ClientParams{initial: initial}
	p.values = p.copyInitial()
	return p
}

func (p *ClientParams) copyInitial() map[string]string {
	out := make(map[string]string, len(p.initial))
	for k, v := range p.initial {
		out[k] = v
	}
	return out
}

// Get returns one parameter.
func (p *ClientParams) Get(name string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.values[name]
}

// Set stores one parameter.
func (p *ClientParams) Set(name, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[name] = value
}

// Delete removes one parameter.
func (p *ClientParams) Delete(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.values, name)
}

// Apply advances the cursor and internal_ext from a batch response.
// Empty values leave the current ones in place.
func (p *ClientParams) Apply(cursor, internalExt string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cursor != "" {
		p.values[ParamCursor] = cursor
	}
	if internalExt != "" {
		p.values[ParamInternalExt] = internalExt
	}
}

// Snapshot returns a copy of the current parameters.
func (p *ClientParams) Snapshot() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Reset restores the parameters the connection started with.
func (p *ClientParams) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = p.copyInitial()
}
