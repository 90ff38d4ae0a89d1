package trends

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Provider fetches interest-over-time data for a keyword.
type Provider interface {
	FetchInterestOverTime(ctx context.Context, keyword, geo, timeframe string) (*Payload, error)
}

// Client talks to a trends proxy exposing a JSON interest-over-time
// endpoint. Requests are spaced out by a minimum delay because the
// upstream rate-limits aggressively.
type Client struct {
	baseURL string
	client  *http.Client

	mu       sync.Mutex
	lastCall time.Time
	minDelay time.Duration
}

// NewClient creates a provider client. A zero timeout defaults to 30s,
// a zero minDelay to 1s.
func NewClient(baseURL string, timeout, minDelay time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if minDelay <= 0 {
		minDelay = time.Second
	}
	return &Client{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		minDelay: minDelay,
	}
}

// FetchInterestOverTime fetches the weekly series for one keyword.
func (c *Client) FetchInterestOverTime(ctx context.Context, keyword, geo, timeframe string) (*Payload, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", keyword)
	q.Set("geo", geo)
	q.Set("timeframe", timeframe)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/interest-over-time?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create trends request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch trends for %q: %w", keyword, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trends %q status %d", keyword, resp.StatusCode)
	}

	var payload Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode trends for %q: %w", keyword, err)
	}

	if payload.Keyword == "" {
		payload.Keyword = keyword
	}
	payload.Geo = geo
	payload.Timeframe = timeframe
	if payload.FetchedAt.IsZero() {
		payload.FetchedAt = time.Now().UTC()
	}
	return &payload, nil
}

// throttle enforces the minimum inter-request delay.
func (c *Client) throttle(ctx context.Context) error {
	c.mu.Lock()
	now := time.Now()
	wait := c.minDelay - now.Sub(c.lastCall)
	if wait <= 0 {
		c.lastCall = now
		c.mu.Unlock()
		return nil
	}
	c.lastCall = now.Add(wait)
	c.mu.Unlock()

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
