package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnavailable is returned when no status server answers at the address.
var ErrUnavailable = errors.New("status API unavailable")

// ErrNoRun is returned when the server is up but no run is in progress.
var ErrNoRun = errors.New("no run in progress")

// Client queries a running status server.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient builds a client for bind ("host:port" or a full URL). An empty
// bind returns a nil client.
func NewClient(bind string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base: base,
		http: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Run fetches the current run status.
func (c *Client) Run(ctx context.Context) (RunStatus, error) {
	var out RunStatus
	err := c.do(ctx, http.MethodGet, "/v1/run", nil, &out)
	return out, err
}

// Results fetches finished files, optionally filtered by status.
func (c *Client) Results(ctx context.Context, statuses ...string) ([]ResultView, error) {
	values := url.Values{}
	for _, status := range statuses {
		if s := strings.TrimSpace(status); s != "" {
			values.Add("status", s)
		}
	}
	var out ResultListResponse
	if err := c.do(ctx, http.MethodGet, "/v1/run/results", values, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Cancelled lists files that were never dispatched.
func (c *Client) Cancelled(ctx context.Context) ([]string, error) {
	var out CancelledListResponse
	if err := c.do(ctx, http.MethodGet, "/v1/run/cancelled", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Cancel asks the server to stop dispatching new files.
func (c *Client) Cancel(ctx context.Context) (CancelResponse, error) {
	var out CancelResponse
	err := c.do(ctx, http.MethodPost, "/v1/run/cancel", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, dst any) error {
	if c == nil {
		return ErrUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if IsUnavailable(err) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if resp.StatusCode == http.StatusNotFound && apiErr.Error == "no run in progress" {
			return ErrNoRun
		}
		if apiErr.Error != "" {
			return fmt.Errorf("status api %s: %d %s", path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("status api %s returned status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

// IsUnavailable reports whether err means nothing is listening.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrUnavailable) || errors.As(err, &opErr)
}
