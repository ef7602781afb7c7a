// Package client talks to the fulfilment REST API. Every response wraps its
// payload in a "data" envelope which the client strips.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/saturnines/ants-tap/pkg/auth"
	"github.com/saturnines/ants-tap/pkg/config"
	"github.com/saturnines/ants-tap/pkg/errors"
	"github.com/saturnines/ants-tap/pkg/transport/rest"
)

// Record is one decoded JSON entity.
type Record = map[string]interface{}

// maxErrorBody caps how much of a failed response is kept.
const maxErrorBody = 4096

// Client fetches resources relative to a base URL, authorizing every
// request through an auth.Handler.
type Client struct {
	baseURL    string
	auth       auth.Handler
	doer       rest.HTTPDoer
	timeout    time.Duration
	headers    map[string]string
	pagination *config.Pagination
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPDoer replaces the default *http.Client.
func WithHTTPDoer(doer rest.HTTPDoer) Option {
	return func(c *Client) { c.doer = doer }
}

// WithTimeout sets the timeout of the default *http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithPagination pages through list endpoints. nil disables paging.
func WithPagination(p *config.Pagination) Option {
	return func(c *Client) { c.pagination = p }
}

// WithHeader adds a header to all requests
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// WithLogger sets the logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Client for baseURL.
func New(baseURL string, h auth.Handler, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.WrapError(fmt.Errorf("base url is empty"), errors.ErrConfiguration, "create client")
	}
	c := &Client{
		baseURL: baseURL,
		auth:    h,
		timeout: 30 * time.Second,
		headers: map[string]string{"Accept": "application/json"},
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := rest.ValidatePagination(c.pagination); err != nil {
		return nil, err
	}
	if c.doer == nil {
		c.doer = &http.Client{Timeout: c.timeout}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// Fetch GETs a collection and returns the records under "data". An absent
// or null data yields an empty list and a single object a one-element list.
// With pagination configured every page is requested and concatenated.
func (c *Client) Fetch(ctx context.Context, path string) ([]Record, error) {
	builder := rest.NewBuilder(rest.JoinURL(c.baseURL, path), http.MethodGet, c.headers, nil, c.auth)

	pager, err := rest.NewPager(ctx, builder, c.pagination)
	if err != nil {
		return nil, err
	}
	if pager == nil {
		req, err := builder.Build(ctx)
		if err != nil {
			return nil, err
		}
		body, _, err := c.do(req)
		if err != nil {
			return nil, err
		}
		return unwrapList(body)
	}

	var all []Record
	for page := 1; ; page++ {
		req, err := pager.NextRequest()
		if err != nil {
			return nil, err
		}
		if req == nil {
			break
		}
		if err := builder.Authorize(req); err != nil {
			return nil, err
		}

		body, header, err := c.do(req)
		if err != nil {
			return nil, err
		}
		records, err := unwrapList(body)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
		c.logger.Debug("fetched page", "path", path, "page", page, "records", len(records))

		// the pager reads its own copy of the body
		resp := &http.Response{
			StatusCode: http.StatusOK,
			Header:     header,
			Body:       io.NopCloser(bytes.NewReader(body)),
		}
		if err := pager.UpdateState(resp); err != nil {
			return nil, err
		}
	}
	if all == nil {
		all = []Record{}
	}
	return all, nil
}

// FetchOne GETs a single entity. An absent or null data yields an empty
// record; a list is an extraction error.
func (c *Client) FetchOne(ctx context.Context, path string) (Record, error) {
	builder := rest.NewBuilder(rest.JoinURL(c.baseURL, path), http.MethodGet, c.headers, nil, c.auth)
	req, err := builder.Build(ctx)
	if err != nil {
		return nil, err
	}
	body, _, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return unwrapOne(body)
}

func (c *Client) do(req *http.Request) ([]byte, http.Header, error) {
	start := time.Now()
	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, nil, errors.WrapError(err, errors.ErrHTTPRequest, req.Method+" "+req.URL.String())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errors.WrapError(err, errors.ErrHTTPResponse, "read response body")
	}
	c.logger.Debug("http request",
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, nil, &errors.HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        req.URL.String(),
			Body:       string(body),
		}
	}
	return body, resp.Header, nil
}
