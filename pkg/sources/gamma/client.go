package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Gamma API base URL.
	DefaultBaseURL = "https://gamma-api.polymarket.com"

	defaultRateLimit = 10.0 // requests per second
	defaultBurst     = 5

	pageSize = 100
	maxPages = 20
)

// StatusError is a non-200 answer from the API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gamma api status %d: %s", e.Code, e.Body)
}

// Client reads game markets from the Gamma API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL points the client at another host.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRateLimit caps outgoing requests.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a Gamma client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListMarkets fetches one page of markets matching filter, which may be nil.
func (c *Client) ListMarkets(ctx context.Context, filter *MarketsFilter) ([]Market, error) {
	var markets []Market
	if err := c.fetchJSON(ctx, "/markets", filter.values(), &markets); err != nil {
		return nil, err
	}
	return markets, nil
}

// ListGameMarkets pages through the open markets under a sport tag, highest
// volume first. Paging stops at a short page or after maxPages. Markets that
// shift between pages while paging are returned once.
func (c *Client) ListGameMarkets(ctx context.Context, tagID string) ([]Market, error) {
	open := false
	seen := make(map[string]bool)
	var out []Market

	for page := 0; page < maxPages; page++ {
		batch, err := c.ListMarkets(ctx, &MarketsFilter{
			Closed: &open,
			TagID:  tagID,
			Order:  "volume",
			Limit:  pageSize,
			Offset: page * pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("listing markets page %d: %w", page, err)
		}

		for _, m := range batch {
			if m.Closed || seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			out = append(out, m)
		}
		if len(batch) < pageSize {
			break
		}
	}
	return out, nil
}

func (c *Client) fetchJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("building url: %w", err)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "sportsboard/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
