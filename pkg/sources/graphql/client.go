// Package graphql fetches the primary odds provider's open events over its
// GraphQL endpoint and maps them onto the board model.
package graphql

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/machinebox/graphql"
	"golang.org/x/time/rate"

	"github.com/phenomenon0/sportsboard/pkg/board"
)

const (
	defaultRateLimit = 2.0 // requests per second
	defaultBurst     = 2
)

// ErrUnauthorized is returned when the provider rejects the bearer token.
var ErrUnauthorized = errors.New("odds provider rejected credentials")

// StatusError is a non-200 answer that was not an auth failure.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("odds provider status %d: %s", e.Code, e.Body)
}

// EventsQuery selects open events with their full market tree.
const EventsQuery = `query OpenEvents($statuses: [EventStatus!]) {
  events(statuses: $statuses) {
    id
    description
    league
    status
    scheduledStart
    markets {
      id
      description
      outcomes {
        id
        description
        last
        available
        orders {
          id
          status
          qty
          price
          currency
        }
      }
    }
  }
}`

// Client is a GraphQL client for the odds provider.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	gql        *graphql.Client
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client requests are sent through. Its
// transport is wrapped to add the bearer token.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRateLimit sets custom rate limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a client for the endpoint at url, authenticating with a
// bearer token when token is non-empty.
func NewClient(url, token string, opts ...ClientOption) *Client {
	c := &Client{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := *c.httpClient
	hc.Transport = &authTransport{token: c.token, next: hc.Transport}
	c.gql = graphql.NewClient(c.url, graphql.WithHTTPClient(&hc))
	return c
}

// authTransport adds the bearer token and turns non-200 answers into errors
// before the GraphQL layer tries to decode them.
type authTransport struct {
	token string
	next  http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	if t.token != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp, nil
}

// Wire shapes. Optional numerics are pointers so absence survives decoding.
type wireOrder struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Qty      *int64   `json:"qty"`
	Price    *float64 `json:"price"`
	Currency string   `json:"currency"`
}

type wireOutcome struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Last        *float64    `json:"last"`
	Available   *float64    `json:"available"`
	Orders      []wireOrder `json:"orders"`
}

type wireMarket struct {
	ID          string        `json:"id"`
	Description string        `json:"description"`
	Outcomes    []wireOutcome `json:"outcomes"`
}

type wireEvent struct {
	ID             string       `json:"id"`
	Description    string       `json:"description"`
	League         string       `json:"league"`
	Status         string       `json:"status"`
	ScheduledStart string       `json:"scheduledStart"`
	Markets        []wireMarket `json:"markets"`
}

// OpenEvents fetches pregame and in-game events.
func (c *Client) OpenEvents(ctx context.Context) ([]board.Event, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req := graphql.NewRequest(EventsQuery)
	req.Var("statuses", []board.EventStatus{board.StatusOpenPregame, board.StatusOpenIngame})

	var data struct {
		Events []wireEvent `json:"events"`
	}
	if err := c.gql.Run(ctx, req, &data); err != nil {
		return nil, fmt.Errorf("querying open events: %w", err)
	}

	events := make([]board.Event, 0, len(data.Events))
	for _, we := range data.Events {
		events = append(events, toEvent(we))
	}
	return events, nil
}

func toEvent(we wireEvent) board.Event {
	e := board.Event{
		ID:          we.ID,
		Description: we.Description,
		League:      board.League(strings.ToUpper(we.League)),
		Status:      board.EventStatus(we.Status),
		Markets:     make([]board.Market, 0, len(we.Markets)),
	}
	if t, err := time.Parse(time.RFC3339, we.ScheduledStart); err == nil {
		e.ScheduledStart = t
	}

	for _, wm := range we.Markets {
		m := board.Market{
			ID:          wm.ID,
			Description: wm.Description,
			Outcomes:    make([]board.Outcome, 0, len(wm.Outcomes)),
		}
		for _, wo := range wm.Outcomes {
			o := board.Outcome{
				ID:          wo.ID,
				Description: wo.Description,
				Last:        wo.Last,
				Available:   wo.Available,
				Orders:      make([]board.Order, 0, len(wo.Orders)),
			}
			for _, ord := range wo.Orders {
				bo := board.Order{
					ID:       ord.ID,
					Status:   board.OrderStatus(ord.Status),
					Qty:      ord.Qty,
					Currency: board.Currency(ord.Currency),
				}
				if ord.Price != nil {
					bo.Price = *ord.Price
				}
				o.Orders = append(o.Orders, bo)
			}
			m.Outcomes = append(m.Outcomes, o)
		}
		e.Markets = append(e.Markets, m)
	}
	return e
}
