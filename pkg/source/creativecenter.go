package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultCreativeCenterURL = "https://ads.tiktok.com/creative_radar_api/v1/popular_trend"

// CreativeCenter collects trending keywords, hashtags and sound names
// from the TikTok Creative Center trend endpoints.
type CreativeCenter struct {
	client  *http.Client
	baseURL string
	limit   int
	period  string
}

// NewCreativeCenter creates a Creative Center collector. An empty
// baseURL uses the public endpoint; limit caps each of the three
// feeds.
func NewCreativeCenter(baseURL string, limit int) *CreativeCenter {
	if baseURL == "" {
		baseURL = defaultCreativeCenterURL
	}
	if limit <= 0 {
		limit = 100
	}
	return &CreativeCenter{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		limit:   limit,
		period:  "7d",
	}
}

func (c *CreativeCenter) Name() SourceType { return SourceCreativeCenter }

// Collect gathers candidates from the keyword, hashtag and sound
// feeds. A single failing feed is skipped; Collect fails only when all
// three do.
func (c *CreativeCenter) Collect(ctx context.Context) ([]Candidate, error) {
	feeds := []struct {
		path   string
		fields []string
	}{
		{"keyword/list", []string{"keyword", "name", "text"}},
		{"hashtag/list", []string{"hashtag", "name", "text"}},
		{"sound/list", []string{"sound_name", "name", "title"}},
	}

	var (
		candidates []Candidate
		failures   []string
	)
	for _, feed := range feeds {
		texts, err := c.fetchList(ctx, feed.path, feed.fields)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", feed.path, err))
			continue
		}
		for _, text := range texts {
			candidates = append(candidates, Candidate{
				Text:   strings.TrimPrefix(text, "#"),
				Source: SourceCreativeCenter,
			})
		}
	}

	if len(candidates) == 0 && len(failures) > 0 {
		return nil, fmt.Errorf("creative center: %s", strings.Join(failures, "; "))
	}
	return candidates, nil
}

// trendList mirrors the feed envelope: items live under data.list or
// a top-level list.
type trendList struct {
	Data struct {
		List []json.RawMessage `json:"list"`
	} `json:"data"`
	List []json.RawMessage `json:"list"`
}

func (c *CreativeCenter) fetchList(ctx context.Context, path string, fields []string) ([]string, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", c.limit))
	q.Set("period", c.period)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/"+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "trendscore/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var envelope trendList
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	items := envelope.Data.List
	if len(items) == 0 {
		items = envelope.List
	}

	var texts []string
	for _, raw := range items {
		if text := itemText(raw, fields); text != "" {
			texts = append(texts, text)
		}
	}
	return texts, nil
}

// itemText extracts a display string from one list item, which can be
// a bare string or an object carrying one of the given fields.
func itemText(raw json.RawMessage, fields []string) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	for _, field := range fields {
		if v, ok := obj[field].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
