package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// ErrNotFound is returned when the requested record does not exist. The
// database reports missing paths as a 200 with a null body, so the client
// detects this itself.
var ErrNotFound = errors.New("storage: not found")

// StatusError reports a non-2xx response from the database.
type StatusError struct {
	Path   string
	Status int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("storage: %s returned status %d", e.Path, e.Status)
}

// retry policy for idempotent verbs
const (
	maxRetries    = 3
	retryDelay    = time.Second
	maxRetryDelay = 15 * time.Second
)

var retryStatusCodes = map[int]bool{408: true, 429: true, 500: true, 502: true, 503: true, 504: true}

// Client issues REST calls against a hosted Realtime Database. Every path
// maps to <base>/<path>.json with JSON request and response bodies.
type Client struct {
	baseURL    string
	http       *http.Client
	retryDelay time.Duration
	maxDelay   time.Duration
}

// NewClient creates a Client for the given database base URL.
func NewClient(baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("storage: invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("storage: invalid base url %q", baseURL)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: 30 * time.Second},
		retryDelay: retryDelay,
		maxDelay:   maxRetryDelay,
	}, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + "/" + strings.Trim(path, "/") + ".json"
}

// do runs one request attempt and returns the raw response body.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, StatusError{Path: path, Status: resp.StatusCode}
	}
	return data, nil
}

// doRetry retries transient failures for idempotent verbs. POST is never
// passed through here: retrying it would mint duplicate push ids.
func (c *Client) doRetry(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	delay := c.retryDelay
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}
		data, err := c.do(ctx, method, path, body)
		if err == nil {
			return data, nil
		}
		lastErr = err
		var se StatusError
		if errors.As(err, &se) && !retryStatusCodes[se.Status] {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// GetData fetches the record at path into v. A null body leaves v
// untouched and returns ErrNotFound.
func (c *Client) GetData(ctx context.Context, path string, v any) error {
	data, err := c.doRetry(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if isNull(data) {
		return ErrNotFound
	}
	return sonic.ConfigStd.Unmarshal(data, v)
}

// PutData writes v as the full record at path.
func (c *Client) PutData(ctx context.Context, path string, v any) error {
	body, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return err
	}
	_, err = c.doRetry(ctx, http.MethodPut, path, body)
	return err
}

// PostData appends v under path and returns the push id the store
// assigned to it.
func (c *Client) PostData(ctx context.Context, path string, v any) (string, error) {
	body, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return "", err
	}
	data, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return "", err
	}
	var resp struct {
		Name string `json:"name"`
	}
	if err := sonic.ConfigStd.Unmarshal(data, &resp); err != nil {
		return "", err
	}
	if resp.Name == "" {
		return "", fmt.Errorf("storage: post to %s returned no id", path)
	}
	return resp.Name, nil
}

// PatchData merges v into the record at path, leaving absent fields alone.
func (c *Client) PatchData(ctx context.Context, path string, v any) error {
	body, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return err
	}
	_, err = c.doRetry(ctx, http.MethodPatch, path, body)
	return err
}

// DeleteData removes the record at path. Deleting a missing record is not
// an error, matching the store's semantics.
func (c *Client) DeleteData(ctx context.Context, path string) error {
	_, err := c.doRetry(ctx, http.MethodDelete, path, nil)
	return err
}

func isNull(data []byte) bool {
	return len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
