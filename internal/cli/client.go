package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oremus-labs/ol-repo-gateway/internal/litellm"
	"github.com/oremus-labs/ol-repo-gateway/internal/modelform"
	"github.com/oremus-labs/ol-repo-gateway/internal/validator"
)

// Client wraps gateway API calls.
type Client struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// APIError is a non-2xx gateway answer. Body holds the raw response, which
// for relayed routes is the backend's own payload.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("%s %s failed: %d %s", e.Method, e.Path, e.Status, msg)
	}
	return fmt.Sprintf("%s %s failed: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// Message extracts a human-readable message from common error envelopes.
func (e *APIError) Message() string {
	var envelope map[string]interface{}
	if err := json.Unmarshal(e.Body, &envelope); err != nil {
		return strings.TrimSpace(string(e.Body))
	}
	for _, key := range []string{"message", "error", "detail"} {
		if s, ok := envelope[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	base := strings.TrimRight(c.BaseURL, "/")
	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request, target interface{}) error {
	httpClient := &http.Client{Timeout: c.Timeout}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", req.URL.Path, err)
	}
	if resp.StatusCode >= 300 {
		return &APIError{Method: req.Method, Path: req.URL.Path, Status: resp.StatusCode, Body: data}
	}
	if target == nil || len(data) == 0 {
		return nil
	}
	if raw, ok := target.(*[]byte); ok {
		*raw = data
		return nil
	}
	return json.Unmarshal(data, target)
}

func (c *Client) GetJSON(ctx context.Context, path string, target interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, target)
}

func (c *Client) PostJSON(ctx context.Context, path string, payload interface{}, target interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	return c.do(req, target)
}

// ModelConfig fetches the provider catalog and checks it against the
// ModelConfig schema before decoding.
func (c *Client) ModelConfig(ctx context.Context) (*modelform.ModelConfig, error) {
	var raw []byte
	if err := c.GetJSON(ctx, "/models/config", &raw); err != nil {
		return nil, err
	}
	v, err := validator.New()
	if err != nil {
		return nil, err
	}
	if err := v.ValidateModelConfig(raw).Err(); err != nil {
		return nil, fmt.Errorf("model config rejected: %w", err)
	}
	var cfg modelform.ModelConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// TestConnection asks the gateway to test LiteLLM credentials. Relayed
// backend failures become an unsuccessful result rather than an error.
func (c *Client) TestConnection(ctx context.Context, creds litellm.Credentials) (modelform.ConnectionTestResult, error) {
	var result modelform.ConnectionTestResult
	err := c.PostJSON(ctx, "/litellm/test-connection", creds, &result)
	if err == nil {
		return result, nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message()
		if msg == "" {
			msg = fmt.Sprintf("connection test failed with status %d", apiErr.Status)
		}
		return modelform.ConnectionTestResult{Success: false, Message: msg}, nil
	}
	return modelform.ConnectionTestResult{}, err
}

// StreamEvents opens the SSE feed and invokes handler for each event. Returning false stops the stream.
func (c *Client) StreamEvents(ctx context.Context, handler func(EventEnvelope) bool) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s failed: %s", "/events", resp.Status)
	}

	reader := bufio.NewReader(resp.Body)
	var (
		eventType string
		dataLines []string
	)

	dispatch := func() bool {
		if len(dataLines) == 0 {
			return true
		}
		raw := strings.Join(dataLines, "\n")
		dataLines = dataLines[:0]

		var envelope EventEnvelope
		if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
			envelope = EventEnvelope{Data: json.RawMessage(raw)}
		}
		if envelope.Type == "" {
			envelope.Type = eventType
		}
		if handler != nil {
			return handler(envelope)
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if !dispatch() {
				return nil
			}
			eventType = ""
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(line[len("data:"):]))
		}
	}
}
