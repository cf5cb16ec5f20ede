package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Doer func(*http.Request) (*http.Response, error)

// Client posts JSON bodies to a single endpoint.
type Client struct {
	endpoint string
	headers  map[string]string
	do       Doer
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	return &Client{
		endpoint: endpoint,
		headers:  map[string]string{},
		do:       hc.Do,
	}
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// SetDoer swaps the transport; used by tests.
func (c *Client) SetDoer(do Doer) {
	c.do = do
}

func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Post sends body and returns the raw response payload of a 2xx answer. Before is
// called with the encoded body so callers can add per-request headers such as signatures.
func (c *Client) Post(ctx context.Context, body any, before func(req *http.Request, payload []byte) error) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Endpoint: c.endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if before != nil {
		if err := before(req, payload); err != nil {
			return nil, err
		}
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: c.endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &RejectionError{
			Endpoint: c.endpoint,
			Status:   resp.StatusCode,
			Message:  strings.TrimSpace(string(slurp)),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &TransportError{Endpoint: c.endpoint, Err: err}
	}
	return data, nil
}
