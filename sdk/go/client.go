package sdk

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
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"boardkit/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the boardkit HTTP + WebSocket API.
type Client struct {
	baseURL     string
	wsURL       string
	httpClient  *http.Client
	headers     http.Header
	masterToken string
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithMasterToken sends token with board creation requests.
func WithMasterToken(token string) Option {
	return func(c *Client) { c.masterToken = strings.TrimSpace(token) }
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// CreateBoard creates a board and returns it with its token. The token is
// never shown again; keep it to submit scores.
func (c *Client) CreateBoard(ctx context.Context, name string, order core.SortingOrder) (core.Created, error) {
	body := map[string]any{"name": name, "order": order}
	var auth string
	if c.masterToken != "" {
		auth = "Master " + c.masterToken
	}
	var created core.Created
	if _, err := c.do(ctx, http.MethodPost, "/board", nil, body, auth, &created); err != nil {
		return core.Created{}, err
	}
	return created, nil
}

// ListScores fetches one page of a board in rank order. Page.Offset is 0 once
// the last page has been read.
func (c *Client) ListScores(ctx context.Context, board string, offset, size int) (core.Page, error) {
	if strings.TrimSpace(board) == "" {
		return core.Page{}, ErrEmptyName
	}
	q := url.Values{}
	q.Set("board", board)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("size", strconv.Itoa(size))
	var page core.Page
	if _, err := c.do(ctx, http.MethodGet, "/board", q, nil, "", &page); err != nil {
		return core.Page{}, err
	}
	return page, nil
}

// GetScore returns a player's best score and zero-based rank.
func (c *Client) GetScore(ctx context.Context, board, player string) (core.Standing, error) {
	q, err := pairQuery(board, player)
	if err != nil {
		return core.Standing{}, err
	}
	var st core.Standing
	if _, err := c.do(ctx, http.MethodGet, "/score", q, nil, "", &st); err != nil {
		return core.Standing{}, err
	}
	return st, nil
}

// SubmitScore submits score with the board's token. It returns the player's
// current standing and whether the submission improved it.
func (c *Client) SubmitScore(ctx context.Context, board, player string, score float64, token string) (core.Standing, bool, error) {
	q, err := pairQuery(board, player)
	if err != nil {
		return core.Standing{}, false, err
	}
	var st core.Standing
	status, err := c.do(ctx, http.MethodPut, "/score", q, score, "Bearer "+token, &st)
	if err != nil {
		return core.Standing{}, false, err
	}
	return st, status == http.StatusCreated, nil
}

// Ping asks the server to round-trip its store.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/", nil, nil, "", nil)
	return err
}

// Health probes /healthz and returns status + storage check. An unhealthy
// server answers 503 with a body, which is returned along with an error.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return HealthStatus{}, err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return HealthStatus{}, err
	}
	defer resp.Body.Close()

	var hs HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return HealthStatus{}, fmt.Errorf("decode health: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return hs, &APIError{StatusCode: resp.StatusCode, Message: hs.Status}
	}
	return hs, nil
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values
// for board, or for every board when board is empty.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, board string) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	target := c.wsURL
	if board != "" {
		target += "?board=" + url.QueryEscape(board)
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, target, c.headers)
	if err != nil {
		return nil, err
	}

	// unblock ReadJSON when ctx ends
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	out := make(chan core.Event, 32)
	go func() {
		defer close(out)
		defer stop()
		defer conn.Close()
		for {
			var evt core.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			default:
				// drop if consumer is slow
			}
		}
	}()
	return out, nil
}

// do sends a JSON request and decodes the envelope into target. It returns the
// HTTP status on success.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body any, auth string, target any) (int, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return 0, err
	}
	c.applyHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if err := decodeEnvelope(resp, target); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}

func pairQuery(board, player string) (url.Values, error) {
	if strings.TrimSpace(board) == "" || strings.TrimSpace(player) == "" {
		return nil, ErrEmptyName
	}
	q := url.Values{}
	q.Set("board", board)
	q.Set("player", player)
	return q, nil
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
