package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/stillcap/pkg/logger"
)

// Client talks to the station's HTTP API and websocket feeds.
type Client struct {
	baseURL string
	client  *http.Client
	dialer  *websocket.Dialer
}

// NewClient creates a client with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		dialer:  &websocket.Dialer{HandshakeTimeout: timeout},
	}
}

// APIError is a non-2xx answer from the station.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("station answered %d %s: %s", e.Status, e.Code, e.Message)
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// StartSession issues POST /session/start. The station answers once its
// startup checks finished, so the feeds must already be streaming.
func (c *Client) StartSession(ctx context.Context) (*SessionStatus, error) {
	var st SessionStatus
	if err := c.getJSON(ctx, http.MethodPost, "/session/start", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// StopSession issues POST /session/stop.
func (c *Client) StopSession(ctx context.Context) (*SessionStatus, error) {
	var st SessionStatus
	if err := c.getJSON(ctx, http.MethodPost, "/session/stop", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Session fetches GET /session.
func (c *Client) Session(ctx context.Context) (*SessionStatus, error) {
	var st SessionStatus
	if err := c.getJSON(ctx, http.MethodGet, "/session", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Captures fetches GET /captures.
func (c *Client) Captures(ctx context.Context) (*CaptureList, error) {
	var list CaptureList
	if err := c.getJSON(ctx, http.MethodGet, "/captures", &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Dial opens a websocket feed such as /ws/sensors.
func (c *Client) Dial(ctx context.Context, path string) (*websocket.Conn, error) {
	u := "ws" + strings.TrimPrefix(c.baseURL, "http") + path
	conn, resp, err := c.dialer.DialContext(ctx, u, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return conn, nil
}

func (c *Client) getJSON(ctx context.Context, method, path string, v any) error {
	resp, err := c.do(ctx, method, path, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// do performs a request and turns non-2xx answers into an *APIError.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return resp, nil
	}
	defer resp.Body.Close()
	apiErr := &APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if json.Unmarshal(data, apiErr) != nil {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return nil, apiErr
}
