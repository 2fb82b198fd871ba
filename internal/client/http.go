package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 10 * time.Second

// maxFrameBytes bounds a single polled screen frame.
const maxFrameBytes = 8 << 20

// ErrHistoryUnavailable is returned when the history endpoint answers with
// success=false.
var ErrHistoryUnavailable = errors.New("chat history unavailable")

// HTTPClient makes REST calls to the dashboard API.
type HTTPClient struct {
	origin Origin
	token  string
	client *http.Client
}

// NewHTTPClient creates a client for origin. A non-positive timeout uses the
// default of 10s.
func NewHTTPClient(origin Origin, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTPClient{
		origin: origin,
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

// Origin returns the origin the client talks to.
func (c *HTTPClient) Origin() Origin {
	return c.origin
}

// ChatHistory fetches /api/chat/history, oldest message first.
func (c *HTTPClient) ChatHistory(ctx context.Context) ([]ChatFrame, error) {
	var resp HistoryResponse
	if err := c.get(ctx, c.origin.ChatHistory(), &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, ErrHistoryUnavailable
	}
	return resp.Messages, nil
}

// ScreenFrame fetches the latest frame for target. It returns nil, nil when
// the API has no frame yet (204).
func (c *HTTPClient) ScreenFrame(ctx context.Context, target string) ([]byte, error) {
	return c.FrameAt(ctx, c.origin.ScreenFrame(target))
}

// FrameAt is ScreenFrame for an already resolved frame URL.
func (c *HTTPClient) FrameAt(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("GET %s: %d %s", url, resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
	if err != nil {
		return nil, fmt.Errorf("reading frame: %w", err)
	}
	return data, nil
}

func (c *HTTPClient) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: %d %s", url, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
