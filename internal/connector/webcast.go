// Package connector implements the HTTP side of the webcast protocol:
// room resolution, room metadata, the gift catalog, and batch fetches.
package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/streamtap-project/streamtap/internal/config"
	"github.com/streamtap-project/streamtap/internal/cookie"
	"github.com/streamtap-project/streamtap/internal/message"
	"github.com/streamtap-project/streamtap/internal/protocol"
	"github.com/streamtap-project/streamtap/internal/signer"
)

const (
	roomInfoPath   = "/room/info/"
	giftListPath   = "/gift/list/"
	fetchPath      = "/im/fetch/"
	userRoomPath   = "/api-live/user/room/"
	roomIDHeader   = "X-Room-Id"
	maxPageSize    = 8 << 20
	requestTimeout = 30 * time.Second
)

// RoomStatusEnded is the room info status of a finished broadcast.
const RoomStatusEnded = 4

var roomIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`room_id=(\d+)`),
	regexp.MustCompile(`"roomId":"(\d+)"`),
}

// StatusError reports an unexpected HTTP status from the upstream.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.URL, e.Status)
}

// RoomInfo is the room metadata returned by the room info endpoint.
type RoomInfo struct {
	Status int            `json:"status"`
	Title  string         `json:"title"`
	Raw    map[string]any `json:"-"`
}

// Ended reports whether the room info describes a finished broadcast.
func (r *RoomInfo) Ended() bool { return r.Status == RoomStatusEnded }

// WebcastClient performs the webcast HTTP exchanges for a connection.
type WebcastClient struct {
	cfg    config.ClientConfig
	jar    *cookie.Jar
	signer *signer.Client
	client *http.Client
	skip   map[string]bool
	logger zerolog.Logger
}

// NewWebcastClient creates a client. Every request carries the jar's cookies
// and responses feed their cookies back into it.
func NewWebcastClient(cfg config.ClientConfig, jar *cookie.Jar, sign *signer.Client) *WebcastClient {
	return &WebcastClient{
		cfg:    cfg,
		jar:    jar,
		signer: sign,
		skip:   cfg.SkipSet(),
		client: &http.Client{
			Timeout: requestTimeout,
			Transport: cookie.NewTransport(jar, &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			}),
		},
		logger: log.With().Str("component", "webcast").Logger(),
	}
}

// Strategies returns the room id resolution chain: page scrape, user API,
// then the signing service.
func (c *WebcastClient) Strategies() []Strategy {
	strategies := []Strategy{
		{Name: "html", Resolve: c.RoomIDFromHTML},
		{Name: "api", Resolve: c.RoomIDFromAPI},
	}
	if c.signer != nil {
		strategies = append(strategies, Strategy{Name: "signer", Resolve: c.signer.FetchRoomID})
	}
	return strategies
}

// RoomIDFromHTML scrapes the room id from the broadcaster's live page.
func (c *WebcastClient) RoomIDFromHTML(ctx context.Context, uniqueID string) (string, error) {
	target := strings.TrimRight(c.cfg.WebBaseURL, "/") + "/@" + url.PathEscape(uniqueID) + "/live"
	body, _, err := c.get(ctx, target, maxPageSize)
	if err != nil {
		return "", err
	}

	for _, re := range roomIDPatterns {
		if m := re.FindSubmatch(body); m != nil {
			return string(m[1]), nil
		}
	}
	if strings.Contains(string(body), `"og:url"`) {
		return "", &OfflineError{UniqueID: uniqueID, Reason: "live page has no room"}
	}
	return "", errors.New("live page did not contain a room id, the request may have been blocked")
}

// RoomIDFromAPI resolves the room id through the user room API.
func (c *WebcastClient) RoomIDFromAPI(ctx context.Context, uniqueID string) (string, error) {
	q := url.Values{}
	q.Set("aid", "1988")
	q.Set("sourceType", "54")
	q.Set("uniqueId", uniqueID)
	target := strings.TrimRight(c.cfg.WebBaseURL, "/") + userRoomPath + "?" + q.Encode()

	body, _, err := c.get(ctx, target, maxPageSize)
	if err != nil {
		return "", err
	}

	var resp struct {
		StatusCode int    `json:"statusCode"`
		Message    string `json:"message"`
		Data       struct {
			User struct {
				RoomID string `json:"roomId"`
			} `json:"user"`
			LiveRoom struct {
				Status int `json:"status"`
			} `json:"liveRoom"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse user room response: %w", err)
	}
	if resp.StatusCode != 0 {
		return "", fmt.Errorf("user room API returned status %d: %s", resp.StatusCode, resp.Message)
	}
	if resp.Data.LiveRoom.Status == RoomStatusEnded {
		return "", &OfflineError{UniqueID: uniqueID, Reason: "live room has ended"}
	}
	if resp.Data.User.RoomID == "" {
		return "", errors.New("user room API returned no room id")
	}
	return resp.Data.User.RoomID, nil
}

// FetchRoomInfo retrieves the room metadata.
func (c *WebcastClient) FetchRoomInfo(ctx context.Context, params map[string]string) (*RoomInfo, error) {
	data, err := c.getData(ctx, roomInfoPath, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch room info: %w", err)
	}
	info := &RoomInfo{}
	if err := json.Unmarshal(data, info); err != nil {
		return nil, fmt.Errorf("failed to parse room info: %w", err)
	}
	if err := json.Unmarshal(data, &info.Raw); err != nil {
		return nil, fmt.Errorf("failed to parse room info: %w", err)
	}
	return info, nil
}

// FetchGiftCatalog retrieves the room's available gifts.
func (c *WebcastClient) FetchGiftCatalog(ctx context.Context, params map[string]string) (message.Catalog, error) {
	data, err := c.getData(ctx, giftListPath, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gift catalog: %w", err)
	}
	var list struct {
		Gifts message.Catalog `json:"gifts"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse gift catalog: %w", err)
	}
	return list.Gifts, nil
}

// FetchBatch performs one signed batch fetch and decodes the response.
func (c *WebcastClient) FetchBatch(ctx context.Context, params map[string]string) (*protocol.BatchResponse, error) {
	if err := c.jar.CheckSession(); err != nil {
		return nil, err
	}

	target := c.webcastURL(fetchPath, params)
	signed := target
	ua := c.cfg.UserAgent
	var headers map[string]string
	if c.signer != nil {
		res, err := c.signer.SignOrDegrade(ctx, signer.Request{URL: target, Method: http.MethodGet, UserAgent: ua})
		if err != nil {
			return nil, fmt.Errorf("failed to sign fetch request: %w", err)
		}
		signed, ua, headers = res.SignedURL, res.UserAgent, res.Headers
	}

	req, err := c.newRequest(ctx, signed, ua)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	body, header, err := c.do(req, protocol.MaxPayloadSize)
	if err != nil {
		return nil, err
	}

	if protocol.IsGzip(body) {
		if body, err = protocol.Inflate(body); err != nil {
			return nil, err
		}
	}
	resp, err := protocol.DecodeBatchResponse(body, c.skip)
	if err != nil {
		return nil, err
	}
	resp.RoomID = header.Get(roomIDHeader)
	return resp, nil
}

func (c *WebcastClient) webcastURL(path string, params map[string]string) string {
	q := url.Values{}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, params[k])
	}
	return strings.TrimRight(c.cfg.WebcastBaseURL, "/") + path + "?" + q.Encode()
}

// getData fetches a webcast JSON endpoint and returns its data member.
func (c *WebcastClient) getData(ctx context.Context, path string, params map[string]string) (json.RawMessage, error) {
	body, _, err := c.get(ctx, c.webcastURL(path, params), maxPageSize)
	if err != nil {
		return nil, err
	}
	var env struct {
		StatusCode int             `json:"status_code"`
		Data       json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	if env.StatusCode != 0 {
		return nil, fmt.Errorf("upstream status_code %d", env.StatusCode)
	}
	if len(env.Data) == 0 {
		return nil, errors.New("response has no data")
	}
	return env.Data, nil
}

func (c *WebcastClient) get(ctx context.Context, target string, limit int64) ([]byte, http.Header, error) {
	req, err := c.newRequest(ctx, target, c.cfg.UserAgent)
	if err != nil {
		return nil, nil, err
	}
	return c.do(req, limit)
}

func (c *WebcastClient) newRequest(ctx context.Context, target, ua string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.cfg.RequestHeaders {
		req.Header.Set(k, v)
	}
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	return req, nil
}

func (c *WebcastClient) do(req *http.Request, limit int64) ([]byte, http.Header, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, &StatusError{URL: req.URL.Path, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", req.URL.Path, err)
	}
	c.logger.Debug().Str("path", req.URL.Path).Int("bytes", len(body)).Msg("webcast response")
	return body, resp.Header, nil
}
