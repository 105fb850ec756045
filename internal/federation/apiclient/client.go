// Package apiclient talks to an emojifed server's federation endpoints.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"emojifed/internal/federation/handler"
	"emojifed/pkg/platform/httputil"
)

// DefaultTimeout bounds a single API call. Resolve may walk several
// neighbours on the server, so this is well above the neighbour timeout.
const DefaultTimeout = 30 * time.Second

// APIError is a non-2xx answer carrying the server's error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	if e.Code == "" {
		return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("%s (%s, status %d)", e.Message, e.Code, e.Status)
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// New creates a client for the server at serverURL, e.g. "http://localhost:3000".
func New(serverURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", serverURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Register appends url to the identifier's entry. A rejected registration
// (duplicate or full) is not an error; inspect Added and Reason.
func (c *Client) Register(ctx context.Context, identifier, rawURL string) (handler.RegisterResponse, error) {
	var out handler.RegisterResponse
	err := c.do(ctx, http.MethodPost, handler.BasePath+"/register",
		handler.RegisterRequest{LocationIdentifier: identifier, URL: rawURL}, &out)
	return out, err
}

// Lookup returns the server's local entry for identifier.
func (c *Client) Lookup(ctx context.Context, identifier string) (handler.LocationResponse, error) {
	var out handler.LocationResponse
	err := c.do(ctx, http.MethodGet, handler.BasePath+"/location/"+url.PathEscape(identifier), nil, &out)
	return out, err
}

// List returns every local entry keyed by identifier.
func (c *Client) List(ctx context.Context) (map[string][]string, error) {
	out := map[string][]string{}
	err := c.do(ctx, http.MethodGet, handler.BasePath+"/locations", nil, &out)
	return out, err
}

// Resolve asks the server to resolve an address, starting discovery at site
// when it is non-empty.
func (c *Client) Resolve(ctx context.Context, shortcode, site string) (handler.ResolveResponse, error) {
	var out handler.ResolveResponse
	err := c.do(ctx, http.MethodPost, handler.BasePath+"/resolve",
		handler.ResolveRequest{Shortcode: shortcode, CurrentWikiURL: site}, &out)
	return out, err
}

// Parse asks the server to split an address into its parts.
func (c *Client) Parse(ctx context.Context, shortcode string) (handler.ParseResponse, error) {
	var out handler.ParseResponse
	err := c.do(ctx, http.MethodPost, handler.BasePath+"/parse", handler.ParseRequest{Shortcode: shortcode}, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope httputil.ErrorResponse
		if json.Unmarshal(data, &envelope) == nil {
			apiErr.Code = envelope.Code
			apiErr.Message = envelope.Error
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
