// Package cookie holds the session cookie jar shared by every HTTP
// exchange of a connection.
package cookie

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// Cookie names with special handling.
const (
	SessionID     = "sessionid"
	SessionIDSS   = "sessionid_ss"
	SIDTT         = "sid_tt"
	TTTargetIDC   = "tt-target-idc"
	CookieHeader  = "Cookie"
	sessionPrefix = "session"
)

// ErrMissingTargetIDC is returned when a session id is set without its data-center tag.
var ErrMissingTargetIDC = errors.New("session id requires tt-target-idc")

var sessionAliases = []string{SessionID, SessionIDSS, SIDTT}

func isSessionName(name string) bool {
	for _, alias := range sessionAliases {
		if name == alias {
			return true
		}
	}
	return false
}

// Jar is a concurrency-safe name/value cookie store.
type Jar struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewJar creates an empty jar.
func NewJar() *Jar {
	return &Jar{values: make(map[string]string)}
}

// Get returns the value stored under name.
func (j *Jar) Get(name string) (string, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	v, ok := j.values[name]
	return v, ok
}

// Set stores a cookie. Setting any session alias updates all of them.
func (j *Jar) Set(name, value string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.setLocked(name, value)
}

func (j *Jar) setLocked(name, value string) {
	if isSessionName(name) {
		for _, alias := range sessionAliases {
			j.values[alias] = value
		}
		return
	}
	j.values[name] = value
}

// Delete removes a cookie. Deleting any session alias removes all of them.
func (j *Jar) Delete(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if isSessionName(name) {
		for _, alias := range sessionAliases {
			delete(j.values, alias)
		}
		return
	}
	delete(j.values, name)
}

// SetSession installs session credentials. An empty sessionID clears the session.
func (j *Jar) SetSession(sessionID, ttTargetIDC string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if sessionID == "" {
		for _, alias := range sessionAliases {
			delete(j.values, alias)
		}
	} else {
		j.setLocked(SessionID, sessionID)
	}
	if ttTargetIDC == "" {
		delete(j.values, TTTargetIDC)
	} else {
		j.values[TTTargetIDC] = ttTargetIDC
	}
}

// SessionID returns the current session id, or "".
func (j *Jar) SessionID() string {
	v, _ := j.Get(SessionID)
	return v
}

// TTTargetIDC returns the session's data-center tag, or "".
func (j *Jar) TTTargetIDC() string {
	v, _ := j.Get(TTTargetIDC)
	return v
}

// CheckSession fails when a session id is present without tt-target-idc.
func (j *Jar) CheckSession() error {
	if j.SessionID() != "" && j.TTTargetIDC() == "" {
		return ErrMissingTargetIDC
	}
	return nil
}

// Merge stores every pair of values.
func (j *Jar) Merge(values map[string]string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for name, value := range values {
		j.setLocked(name, value)
	}
}

// Snapshot returns a copy of all cookies.
func (j *Jar) Snapshot() map[string]string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make(map[string]string, len(j.values))
	for k, v := range j.values {
		out[k] = v
	}
	return out
}

// Len returns the number of stored cookies.
func (j *Jar) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.values)
}

// Header renders the jar as a Cookie header value, sorted by name.
func (j *Jar) Header() string {
	values := j.Snapshot()
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+values[name])
	}
	return strings.Join(parts, "; ")
}

// Apply writes the jar into the request's Cookie header, keeping cookies
// the request already carries.
func (j *Jar) Apply(req *http.Request) {
	header := j.Header()
	if header == "" {
		return
	}
	if existing := req.Header.Get(CookieHeader); existing != "" {
		header = existing + "; " + header
	}
	req.Header.Set(CookieHeader, header)
}

// Store records cookies from a response. Session cookies are ignored so
// that only explicit session calls and the signer can change them.
func (j *Jar) Store(resp *http.Response) int {
	stored := 0
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, c := range resp.Cookies() {
		if isSessionName(c.Name) || strings.HasPrefix(c.Name, sessionPrefix) || c.Name == TTTargetIDC {
			continue
		}
		if c.MaxAge < 0 {
			delete(j.values, c.Name)
			continue
		}
		j.values[c.Name] = c.Value
		stored++
	}
	return stored
}
