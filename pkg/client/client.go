// Package client is the Go toolkit for the quotedesk REST and event API. It
// speaks the same JSON envelopes the server writes and surfaces failures as
// *APIError.
package client

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

	"github.com/angelmondragon/quotedesk-backend/pkg/client/session"
	"github.com/angelmondragon/quotedesk-backend/pkg/types"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL *url.URL
	http    *http.Client
	session session.Provider
	agent   string
}

type Option func(*Client)

// WithHTTPClient swaps the transport, e.g. for httptest servers.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithSession sets where the bearer token comes from. Every request reads
// the provider, so a fresh login is picked up without rebuilding the client.
func WithSession(p session.Provider) Option {
	return func(c *Client) { c.session = p }
}

func WithUserAgent(agent string) Option {
	return func(c *Client) { c.agent = agent }
}

// New builds a client rooted at baseURL (scheme and host, optionally a path
// prefix in front of /api).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: defaultTimeout},
		session: session.NewStatic(session.Session{}),
		agent:   "quotedesk-client",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.baseURL.String() }

func (c *Client) token() string {
	if c.session == nil {
		return ""
	}
	return c.session.Current().Token
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	headers map[string]string
}

// do sends req and returns the raw response with a 2xx status. Non-2xx
// responses are drained and converted into *APIError.
func (c *Client) do(ctx context.Context, req request) (*http.Response, error) {
	var body io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", req.method, req.path, err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.endpoint(req.path, req.query), body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", req.method, req.path, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.agent)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

// doJSON sends req and unwraps the {"data": ...} envelope into out.
func (c *Client) doJSON(ctx context.Context, req request, out any) (*http.Response, error) {
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp, nil
	}
	env := types.SuccessEnvelope{Data: out}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", req.method, req.path, err)
	}
	return resp, nil
}

// Identity is what the API resolved the bearer token to.
type Identity struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}

// Whoami checks the current token against the API.
func (c *Client) Whoami(ctx context.Context) (*Identity, error) {
	var id Identity
	if _, err := c.doJSON(ctx, request{method: http.MethodGet, path: "/api/ping"}, &id); err != nil {
		return nil, err
	}
	return &id, nil
}
