package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nikoraes/formalink/internal/coordinator"
)

// Client talks to a running bridge.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the bridge at baseURL, e.g. http://127.0.0.1:8011.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Status fetches the coordinator snapshot.
func (c *Client) Status(ctx context.Context) (coordinator.Status, error) {
	return c.status(ctx, http.MethodGet, StatusPath)
}

// Reset clears the bridge's queues and returns the resulting snapshot.
func (c *Client) Reset(ctx context.Context) (coordinator.Status, error) {
	return c.status(ctx, http.MethodPost, ResetPath)
}

func (c *Client) status(ctx context.Context, method, path string) (coordinator.Status, error) {
	var status coordinator.Status

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return status, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return status, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return status, fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, fmt.Errorf("decode status: %w", err)
	}
	return status, nil
}
