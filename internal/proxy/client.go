// Package proxy forwards JSON requests to the backend job/config service.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUpstream marks failures to reach the backend or read its reply.
var ErrUpstream = errors.New("backend unreachable")

const maxResponseBytes = 16 << 20

// Response is the backend reply relayed to the caller.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client performs pass-through calls against a fixed base URL.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a Client for baseURL. A non-positive timeout disables the client timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

// NewWithHTTPClient creates a Client using the provided HTTP client.
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

// BaseURL returns the backend address requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Forward sends body unmodified to the backend path using method and returns
// the backend status and body. Exactly one outbound call is made.
func (c *Client) Forward(ctx context.Context, method, path string, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUpstream, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %v", ErrUpstream, path, err)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}
