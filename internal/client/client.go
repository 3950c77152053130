// Package client talks to the profrag chat endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"profrag/internal/domain"
	"profrag/internal/relay"
)

const readChunk = 4096

// APIError is returned when the server answers with a non-200 status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type Config struct {
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	url  string
	http *http.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("client: url is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{url: cfg.URL, http: hc}, nil
}

// Stream posts the conversation and returns a feed over the streamed answer.
// A body that ends without the terminating chunk surfaces as an error from
// Next rather than io.EOF.
func (c *Client) Stream(ctx context.Context, conversation []domain.Message) (relay.Feed, error) {
	payload, err := json.Marshal(conversation)
	if err != nil {
		return nil, fmt.Errorf("client: encode conversation: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: post: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		apiErr := &APIError{Status: resp.StatusCode}
		var body struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body) == nil {
			apiErr.Message = body.Error
		}
		return nil, apiErr
	}
	return &bodyFeed{body: resp.Body, buf: make([]byte, readChunk)}, nil
}

type bodyFeed struct {
	body io.ReadCloser
	buf  []byte
}

func (f *bodyFeed) Next(ctx context.Context) (relay.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	n, err := f.body.Read(f.buf)
	if n > 0 {
		return relay.Fragment(f.buf[:n]), nil
	}
	if err == nil {
		return "", nil
	}
	if errors.Is(err, io.EOF) {
		return "", io.EOF
	}
	return "", fmt.Errorf("client: read stream: %w", err)
}

func (f *bodyFeed) Close() error {
	return f.body.Close()
}
