package chatrace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Upstream abstracts the chat-platform RPC endpoint, enabling test fakes.
// The platform exposes a single POST endpoint; the operation is selected by
// op/op1 fields in the JSON body.
type Upstream interface {
	Call(ctx context.Context, payload map[string]any) (*Response, error)
}

// Response is the platform's uniform response envelope.
type Response struct {
	Status string            `json:"status"`
	Data   []json.RawMessage `json:"data"`
}

// OK reports whether the platform accepted the operation.
func (r *Response) OK() bool { return r != nil && r.Status == "OK" }

// Client is the real HTTP Upstream.
type Client struct {
	apiURL string
	token  string
	http   *http.Client
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	APIURL  string        // platform RPC endpoint (required)
	Token   string        // access token sent as X-ACCESS-TOKEN
	Timeout time.Duration // per-call timeout (default 15s)
}

// NewClient creates an upstream Client.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.APIURL == "" {
		return nil, fmt.Errorf("chatrace: api url is required")
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiURL: opts.APIURL,
		token:  opts.Token,
		http:   &http.Client{Timeout: timeout},
	}, nil
}

// Call posts one operation to the platform and decodes the envelope.
func (c *Client) Call(ctx context.Context, payload map[string]any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("chatrace: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("chatrace: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "mobile-app")
	req.Header.Set("X-ACCESS-TOKEN", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chatrace: call upstream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chatrace: upstream status %d", resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("chatrace: decode response: %w", err)
	}
	return &out, nil
}
