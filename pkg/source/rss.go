package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// RSSFeed is a named RSS/Atom feed URL.
type RSSFeed struct {
	Name string
	URL  string
}

// RSS collects keyword candidates from trend-watching RSS/Atom feeds.
// Entry titles become candidates; normalization downstream decides
// what survives.
type RSS struct {
	client *http.Client
	parser *gofeed.Parser
	feeds  []RSSFeed
}

// NewRSS creates a new RSS collector.
func NewRSS(feeds []RSSFeed) *RSS {
	return &RSS{
		client: &http.Client{Timeout: 30 * time.Second},
		parser: gofeed.NewParser(),
		feeds:  feeds,
	}
}

func (r *RSS) Name() SourceType { return SourceRSS }

// Collect parses every configured feed. Individual feed failures are
// reported only when no feed produced anything.
func (r *RSS) Collect(ctx context.Context) ([]Candidate, error) {
	var (
		candidates []Candidate
		lastErr    error
	)

	for _, feed := range r.feeds {
		items, err := r.collectFeed(ctx, feed)
		if err != nil {
			lastErr = err
			continue
		}
		candidates = append(candidates, items...)
	}

	if len(candidates) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return candidates, nil
}

func (r *RSS) collectFeed(ctx context.Context, feed RSSFeed) ([]Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create rss request %s: %w", feed.Name, err)
	}
	req.Header.Set("User-Agent", "trendscore/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rss %s: %w", feed.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rss %s status %d", feed.Name, resp.StatusCode)
	}

	parsed, err := r.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse rss %s: %w", feed.Name, err)
	}

	var candidates []Candidate
	for _, item := range parsed.Items {
		if item == nil || item.Title == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			Text:   item.Title,
			Source: SourceRSS,
		})
	}
	return candidates, nil
}
