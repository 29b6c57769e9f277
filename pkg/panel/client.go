// Package panel talks to a Pterodactyl-compatible application API.
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

var ErrServerNotFound = errors.New("server not found")

// APIError is returned for unexpected panel responses. These are treated as
// transient by callers.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("panel %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Limits are the build limits the panel enforces: memory and disk in MB, CPU in percent.
type Limits struct {
	Memory  int64   `json:"memory"`
	Swap    int64   `json:"swap"`
	Disk    int64   `json:"disk"`
	IO      int64   `json:"io"`
	CPU     int64   `json:"cpu"`
	Threads *string `json:"threads"`
}

type FeatureLimits struct {
	Databases   int64 `json:"databases"`
	Allocations int64 `json:"allocations"`
	Backups     int64 `json:"backups"`
}

type Server struct {
	ID            int64         `json:"id"`
	Identifier    string        `json:"identifier"`
	Name          string        `json:"name"`
	User          uint          `json:"user"`
	Suspended     bool          `json:"suspended"`
	Allocation    int64         `json:"allocation"`
	Limits        Limits        `json:"limits"`
	FeatureLimits FeatureLimits `json:"feature_limits"`
}

type serverResponse struct {
	Attributes Server `json:"attributes"`
}

type buildRequest struct {
	Allocation    int64         `json:"allocation"`
	Memory        int64         `json:"memory"`
	Swap          int64         `json:"swap"`
	Disk          int64         `json:"disk"`
	IO            int64         `json:"io"`
	CPU           int64         `json:"cpu"`
	Threads       *string       `json:"threads"`
	FeatureLimits FeatureLimits `json:"feature_limits"`
}

type Client struct {
	BaseURL  string
	AdminKey string
	client   *http.Client
	logger   *slog.Logger
}

func NewClient(baseURL, adminKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// GetServer fetches a server by its panel id.
func (c *Client) GetServer(ctx context.Context, serverID string) (*Server, error) {
	path := "/api/application/servers/" + url.PathEscape(serverID)
	var out serverResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out.Attributes, nil
}

// SetLimits changes memory, CPU and disk of a server, keeping every other
// build setting as the panel currently reports it.
func (c *Client) SetLimits(ctx context.Context, serverID string, memory, cpu, disk int64) error {
	srv, err := c.GetServer(ctx, serverID)
	if err != nil {
		return err
	}
	req := buildRequest{
		Allocation:    srv.Allocation,
		Memory:        memory,
		Swap:          srv.Limits.Swap,
		Disk:          disk,
		IO:            srv.Limits.IO,
		CPU:           cpu,
		Threads:       srv.Limits.Threads,
		FeatureLimits: srv.FeatureLimits,
	}
	path := "/api/application/servers/" + url.PathEscape(serverID) + "/build"
	if err := c.do(ctx, http.MethodPatch, path, req, nil); err != nil {
		return err
	}
	c.logger.Info("panel build updated", "server_id", serverID, "memory", memory, "cpu", cpu, "disk", disk)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.AdminKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("panel %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode == http.StatusNotFound {
		return ErrServerNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("panel request failed", "method", method, "path", path, "status", resp.StatusCode)
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("panel %s %s: decode: %w", method, path, err)
	}
	return nil
}
