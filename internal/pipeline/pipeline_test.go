package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lebred/tiktok-trending-keywords/internal/store"
	"github.com/lebred/tiktok-trending-keywords/pkg/trends"
)

// stubProvider serves canned payloads or errors per keyword and counts
// calls.
type stubProvider struct {
	mu       sync.Mutex
	calls    map[string]int
	payloads map[string]*trends.Payload
	errs     map[string]error
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		calls:    map[string]int{},
		payloads: map[string]*trends.Payload{},
		errs:     map[string]error{},
	}
}

func (s *stubProvider) FetchInterestOverTime(_ context.Context, keyword, geo, timeframe string) (*trends.Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[keyword]++
	if err := s.errs[keyword]; err != nil {
		return nil, err
	}
	p := s.payloads[keyword]
	if p == nil {
		return nil, fmt.Errorf("no payload for %q", keyword)
	}
	p.Geo = geo
	p.Timeframe = timeframe
	return p, nil
}

func (s *stubProvider) callCount(keyword string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[keyword]
}

// weeklyPayload builds a payload whose records run oldest first, so
// extraction yields the weeks slice reversed.
func weeklyPayload(keyword string, oldestFirst []float64) *trends.Payload {
	p := &trends.Payload{Keyword: keyword, FetchedAt: time.Now().UTC()}
	for _, v := range oldestFirst {
		p.Data = append(p.Data, map[string]any{keyword: v, "isPartial": false})
	}
	return p
}

// healthySeries is 118 weeks: 90 at 30, then 21 at 40, then 7 at 50.
func healthySeries() []float64 {
	var s []float64
	for i := 0; i < 90; i++ {
		s = append(s, 30)
	}
	for i := 0; i < 21; i++ {
		s = append(s, 40)
	}
	for i := 0; i < 7; i++ {
		s = append(s, 50)
	}
	return s
}

func newTestPipeline(t *testing.T, provider trends.Provider) (*Pipeline, *store.SQLiteStore) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	p := New(st, provider, Config{
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
		Workers:        2,
	}, zerolog.Nop())
	return p, st
}

func addKeyword(t *testing.T, st *store.SQLiteStore, text string) store.Keyword {
	t.Helper()
	kw := store.Keyword{Keyword: text}
	require.NoError(t, st.UpsertKeyword(context.Background(), &kw))
	return kw
}

func TestRunMixedBatch(t *testing.T) {
	provider := newStubProvider()
	provider.payloads["healthy"] = weeklyPayload("healthy", healthySeries())
	provider.payloads["short"] = weeklyPayload("short", []float64{1, 2, 3, 4, 5})
	provider.errs["broken"] = errors.New("upstream unreachable")

	p, st := newTestPipeline(t, provider)
	ctx := context.Background()
	keywords := []store.Keyword{
		addKeyword(t, st, "healthy"),
		addKeyword(t, st, "short"),
		addKeyword(t, st, "broken"),
	}
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	report := p.Run(ctx, keywords, day)

	assert.Equal(t, 1, report.Scored)
	assert.Equal(t, 2, report.Failed)
	assert.False(t, report.Success)
	require.Len(t, report.Errors, 2)

	// The healthy keyword's snapshot is persisted despite the others.
	top, err := st.TopByDate(ctx, day, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "healthy", top[0].Keyword)
	assert.Equal(t, 56, top[0].MomentumScore)

	// Fetch failures are retried; insufficient data is not.
	assert.Equal(t, 2, provider.callCount("broken"))
	assert.Equal(t, 1, provider.callCount("short"))
}

func TestRunInsufficientDataIsNotAFetchError(t *testing.T) {
	provider := newStubProvider()
	provider.payloads["short"] = weeklyPayload("short", []float64{9, 9, 9})

	p, st := newTestPipeline(t, provider)
	keywords := []store.Keyword{addKeyword(t, st, "short")}
	report := p.Run(context.Background(), keywords, time.Now().UTC())

	assert.Equal(t, 0, report.Scored)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "insufficient data")
	// The fetched series is still cached for later runs.
	assert.Equal(t, 1, report.Fetched)
}

func TestRunUsesCacheOnSecondRun(t *testing.T) {
	provider := newStubProvider()
	provider.payloads["healthy"] = weeklyPayload("healthy", healthySeries())

	p, st := newTestPipeline(t, provider)
	ctx := context.Background()
	keywords := []store.Keyword{addKeyword(t, st, "healthy")}
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	first := p.Run(ctx, keywords, day)
	assert.Equal(t, 1, first.Fetched)
	assert.Equal(t, 0, first.Cached)
	assert.True(t, first.Success)

	second := p.Run(ctx, keywords, day)
	assert.Equal(t, 0, second.Fetched)
	assert.Equal(t, 1, second.Cached)
	assert.True(t, second.Success)

	// Only one provider call total, and still one snapshot row.
	assert.Equal(t, 1, provider.callCount("healthy"))
	hist, err := st.History(ctx, keywords[0].ID, 10)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestRunPrefersCachedSeriesOverProvider(t *testing.T) {
	provider := newStubProvider()
	provider.errs["cached-kw"] = errors.New("provider should not be called")

	p, st := newTestPipeline(t, provider)
	ctx := context.Background()
	kw := addKeyword(t, st, "cached-kw")
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	require.NoError(t, st.PutCachedSeries(ctx, kw.ID, day,
		weeklyPayload("cached-kw", healthySeries())))

	report := p.Run(ctx, []store.Keyword{kw}, day)
	assert.Equal(t, 1, report.Scored)
	assert.Equal(t, 1, report.Cached)
	assert.Equal(t, 0, provider.callCount("cached-kw"))
	assert.True(t, report.Success)
}

func TestRunCancelledContext(t *testing.T) {
	provider := newStubProvider()
	provider.payloads["healthy"] = weeklyPayload("healthy", healthySeries())

	p, st := newTestPipeline(t, provider)
	keywords := []store.Keyword{
		addKeyword(t, st, "healthy"),
		addKeyword(t, st, "other"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	report := p.Run(ctx, keywords, day)
	assert.Equal(t, 0, report.Scored)
	assert.Equal(t, len(keywords), report.Failed)
	assert.False(t, report.Success)

	// Nothing was written for the cancelled batch.
	top, err := st.TopByDate(context.Background(), day, 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}
