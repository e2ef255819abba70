// Package billing is a read-only client of the external billing platform.
// Every list endpoint is cursor paginated; the client follows next_cursor
// until has_more is false.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrUpstreamAPI wraps every network, auth or decoding failure.
var ErrUpstreamAPI = errors.New("billing api failure")

// Client talks to one cabinet account of the billing platform.
type Client struct {
	baseURL    string
	token      string
	pageSize   int
	maxRetries int
	backoff    time.Duration
	http       *http.Client
	log        *zap.Logger
}

type Option func(*Client)

func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithRetry sets how many times a 429 or 5xx response is retried and the
// base delay between attempts.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.backoff = backoff
	}
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		pageSize:   100,
		maxRetries: 3,
		backoff:    time.Second,
		http:       &http.Client{Timeout: 30 * time.Second},
		log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Customers lists every customer of the account.
func (c *Client) Customers(ctx context.Context) ([]Customer, error) {
	return fetchAll[Customer](ctx, c, "/customers")
}

// Subscriptions lists every billing subscription of the account.
func (c *Client) Subscriptions(ctx context.Context) ([]Subscription, error) {
	return fetchAll[Subscription](ctx, c, "/billing_subscriptions")
}

// SubscriptionLines lists the invoice lines of one subscription.
func (c *Client) SubscriptionLines(ctx context.Context, subscriptionID int64) ([]Line, error) {
	return fetchAll[Line](ctx, c, fmt.Sprintf("/billing_subscriptions/%d/invoice_lines", subscriptionID))
}

func fetchAll[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var all []T
	cursor := ""
	for {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(c.pageSize))
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		var p page[T]
		if err := c.get(ctx, path, q, &p); err != nil {
			return all, err
		}
		all = append(all, p.Items...)
		c.log.Debug("fetched page",
			zap.String("path", path), zap.Int("items", len(p.Items)), zap.Bool("has_more", p.HasMore))
		if !p.HasMore {
			return all, nil
		}
		if p.NextCursor == "" || p.NextCursor == cursor {
			return all, fmt.Errorf("%w: GET %s: has_more without a new cursor", ErrUpstreamAPI, path)
		}
		cursor = p.NextCursor
	}
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path + "?" + q.Encode()
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUpstreamAPI, err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: GET %s: %v", ErrUpstreamAPI, path, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("%w: GET %s: read body: %v", ErrUpstreamAPI, path, err)
		}

		if retryable(resp.StatusCode) && attempt < c.maxRetries {
			wait := retryAfter(resp.Header.Get("Retry-After"), c.backoff*time.Duration(attempt+1))
			c.log.Warn("billing api throttled, retrying",
				zap.String("path", path), zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1), zap.Duration("wait", wait))
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: GET %s: %v", ErrUpstreamAPI, path, ctx.Err())
			case <-time.After(wait):
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: GET %s: status %d: %s", ErrUpstreamAPI, path, resp.StatusCode, snippet(body))
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: GET %s: decode: %v", ErrUpstreamAPI, path, err)
		}
		return nil
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func retryAfter(header string, fallback time.Duration) time.Duration {
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
