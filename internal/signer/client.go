// Package signer talks to the external signing service that adds the
// authentication parameters the webcast endpoints require.
package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/streamtap-project/streamtap/internal/config"
	"github.com/streamtap-project/streamtap/internal/cookie"
)

const (
	signPath     = "/webcast/sign_url"
	roomIDPath   = "/webcast/room_id"
	apiKeyHeader = "x-api-key"
	maxBodySize  = 1 << 20
)

// Request is a URL to sign.
type Request struct {
	URL       string
	Method    string
	UserAgent string
}

// Result is a signed URL together with the headers it must be sent with.
type Result struct {
	SignedURL string
	UserAgent string
	Headers   map[string]string
	Host      string

	// Unsigned is true when signing failed and the original URL is used
	// on the strength of the session cookie alone.
	Unsigned bool
}

type signBody struct {
	URL         string `json:"url"`
	Method      string `json:"method"`
	UserAgent   string `json:"userAgent"`
	SessionID   string `json:"sessionId,omitempty"`
	TTTargetIDC string `json:"ttTargetIdc,omitempty"`
}

type envelope[T any] struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Response *T     `json:"response"`
}

type signResponse struct {
	SignedURL      string            `json:"signedUrl"`
	UserAgent      string            `json:"userAgent"`
	RequestHeaders map[string]string `json:"requestHeaders"`
	Cookies        map[string]string `json:"cookies"`
}

type roomIDResponse struct {
	RoomID string `json:"roomId"`
}

// Client signs URLs against an ordered list of hosts, falling through on failure.
type Client struct {
	hosts    []string
	apiKey   string
	client   *http.Client
	jar      *cookie.Jar
	registry *Registry
	logger   zerolog.Logger
}

// NewClient creates a signing client. The jar receives cookies the service hands back.
func NewClient(cfg config.SignerConfig, jar *cookie.Jar) *Client {
	return &Client{
		hosts:    cfg.Hosts(),
		apiKey:   cfg.APIKey,
		jar:      jar,
		registry: NewRegistry(cfg.ConnectingWindow()),
		client: &http.Client{
			Timeout: cfg.Timeout(),
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		logger: log.With().Str("component", "signer").Logger(),
	}
}

// BeginConnect reserves uniqueID for a bring-up.
func (c *Client) BeginConnect(uniqueID string) error {
	if uniqueID == "" {
		return nil
	}
	if !c.registry.Acquire(uniqueID) {
		return fmt.Errorf("%s: %w", uniqueID, ErrConnectInProgress)
	}
	return nil
}

// EndConnect releases a reservation taken by BeginConnect.
func (c *Client) EndConnect(uniqueID string) {
	if uniqueID != "" {
		c.registry.Release(uniqueID)
	}
}

// Sign asks each host in turn to sign req. The first well-formed answer wins.
// When every host fails, the returned error joins each host's typed failure.
func (c *Client) Sign(ctx context.Context, req Request) (*Result, error) {
	if len(c.hosts) == 0 {
		return nil, ErrNoHosts
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	body, err := json.Marshal(signBody{
		URL:         req.URL,
		Method:      req.Method,
		UserAgent:   req.UserAgent,
		SessionID:   c.jar.SessionID(),
		TTTargetIDC: c.jar.TTTargetIDC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode sign request: %w", err)
	}

	var errs []error
	for _, host := range c.hosts {
		var resp signResponse
		if err := exchange(ctx, c, host, http.MethodPost, host+signPath, body, &resp); err != nil {
			c.logger.Debug().Err(err).Str("host", host).Msg("signing host failed")
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if resp.SignedURL == "" {
			errs = append(errs, &SignError{Host: host, Status: http.StatusOK, Message: "response has no signed URL"})
			continue
		}

		if len(resp.Cookies) > 0 {
			c.jar.Merge(resp.Cookies)
		}
		ua := resp.UserAgent
		if ua == "" {
			ua = req.UserAgent
		}
		return &Result{SignedURL: resp.SignedURL, UserAgent: ua, Headers: resp.RequestHeaders, Host: host}, nil
	}

	return nil, fmt.Errorf("sign %s: all %d hosts failed: %w", req.Method, len(c.hosts), errors.Join(errs...))
}

// SignOrDegrade signs req, falling back to the unsigned URL when signing
// fails and a session cookie is present to authenticate the request.
func (c *Client) SignOrDegrade(ctx context.Context, req Request) (*Result, error) {
	res, err := c.Sign(ctx, req)
	if err == nil {
		return res, nil
	}
	if c.jar.SessionID() == "" || ctx.Err() != nil {
		return nil, err
	}
	c.logger.Warn().Err(err).Msg("signing failed, continuing unsigned with session cookie")
	return &Result{SignedURL: req.URL, UserAgent: req.UserAgent, Unsigned: true}, nil
}

// FetchRoomID asks the signing service to resolve a unique id to a room id.
func (c *Client) FetchRoomID(ctx context.Context, uniqueID string) (string, error) {
	if len(c.hosts) == 0 {
		return "", ErrNoHosts
	}
	var errs []error
	for _, host := range c.hosts {
		target := host + roomIDPath + "?uniqueId=" + url.QueryEscape(uniqueID)
		var resp roomIDResponse
		if err := exchange(ctx, c, host, http.MethodGet, target, nil, &resp); err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if resp.RoomID == "" {
			errs = append(errs, &SignError{Host: host, Status: http.StatusOK, Message: "response has no room id"})
			continue
		}
		return resp.RoomID, nil
	}
	return "", errors.Join(errs...)
}

// exchange performs one request against host and maps failures to typed errors.
func exchange[T any](ctx context.Context, c *Client, host, method, target string, body []byte, out *T) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return &SignError{Host: host, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &SignError{Host: host, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &SignError{Host: host, Status: resp.StatusCode, Err: err}
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return &RateLimitedError{Host: host, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case http.StatusPaymentRequired:
		return fmt.Errorf("signing host %s: %w", host, ErrPremiumRequired)
	default:
		return &SignError{Host: host, Status: resp.StatusCode, Message: messageOf(data)}
	}

	var env envelope[T]
	if err := json.Unmarshal(data, &env); err != nil {
		return &SignError{Host: host, Status: resp.StatusCode, Message: "malformed response", Err: err}
	}
	if env.Code != 0 && env.Code != http.StatusOK {
		return &SignError{Host: host, Status: env.Code, Message: env.Message}
	}
	if env.Response == nil {
		return &SignError{Host: host, Status: resp.StatusCode, Message: "response body is empty"}
	}
	*out = *env.Response
	return nil
}

func messageOf(data []byte) string {
	var env struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &env) == nil && env.Message != "" {
		return env.Message
	}
	if len(data) > 200 {
		data = data[:200]
	}
	return string(data)
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
