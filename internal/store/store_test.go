package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lebred/tiktok-trending-keywords/pkg/trends"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestKeyword(t *testing.T, s *SQLiteStore, text string) *Keyword {
	t.Helper()
	kw := &Keyword{Keyword: text, Source: "test"}
	require.NoError(t, s.UpsertKeyword(context.Background(), kw))
	return kw
}

func testPayload(keyword string, fetchedAt time.Time) *trends.Payload {
	return &trends.Payload{
		Keyword:   keyword,
		Geo:       "",
		Timeframe: "today 12-m",
		FetchedAt: fetchedAt,
		Data: []map[string]any{
			{keyword: 10.0, "isPartial": false},
			{keyword: 20.0, "isPartial": false},
		},
	}
}

func TestUpsertKeywordMintsIdentityOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &Keyword{Keyword: "glass skin", Source: "creative-center"}
	require.NoError(t, s.UpsertKeyword(ctx, first))
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.FirstSeen.IsZero())

	// A second observation keeps the original identity.
	second := &Keyword{Keyword: "glass skin", Source: "rss"}
	require.NoError(t, s.UpsertKeyword(ctx, second))
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "creative-center", second.Source)

	kws, err := s.ListKeywords(ctx, KeywordListOpts{})
	require.NoError(t, err)
	assert.Len(t, kws, 1)
}

func TestCacheRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	kw := newTestKeyword(t, s, "glass skin")

	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	payload := testPayload("glass skin", day)
	require.NoError(t, s.PutCachedSeries(ctx, kw.ID, day, payload))

	got, err := s.GetCachedSeries(ctx, kw.ID, 0, &day)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "glass skin", got.Payload.Keyword)
	assert.Equal(t, trends.Extract(payload, "glass skin"), trends.Extract(got.Payload, "glass skin"))

	// An as-of lookup for a different date is a miss.
	other := day.AddDate(0, 0, -1)
	got, err = s.GetCachedSeries(ctx, kw.ID, 0, &other)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheFreshnessWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	kw := newTestKeyword(t, s, "glass skin")

	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.PutCachedSeries(ctx, kw.ID, day, testPayload("glass skin", day)))

	// Six days later the entry is still fresh.
	s.now = func() time.Time { return day.AddDate(0, 0, 6) }
	got, err := s.GetCachedSeries(ctx, kw.ID, 7, nil)
	require.NoError(t, err)
	assert.NotNil(t, got)

	// Eight days later it has aged out.
	s.now = func() time.Time { return day.AddDate(0, 0, 8) }
	got, err = s.GetCachedSeries(ctx, kw.ID, 7, nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	// An explicit as-of date ignores age entirely.
	got, err = s.GetCachedSeries(ctx, kw.ID, 7, &day)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestCacheRefetchReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	kw := newTestKeyword(t, s, "glass skin")

	d1 := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 3)
	require.NoError(t, s.PutCachedSeries(ctx, kw.ID, d1, testPayload("glass skin", d1)))
	require.NoError(t, s.PutCachedSeries(ctx, kw.ID, d2, testPayload("glass skin", d2)))

	// One row per (keyword, geo, timeframe): the refetch replaced it.
	n, err := s.InvalidateCache(ctx, kw.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.GetCachedSeries(ctx, kw.ID, 365, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertMomentumOverwritesSameDay(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	kw := newTestKeyword(t, s, "glass skin")

	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertMomentum(ctx, &MomentumSnapshot{
		KeywordID: kw.ID, SnapshotDate: day, MomentumScore: 40, RawScore: -0.4,
	}))
	require.NoError(t, s.UpsertMomentum(ctx, &MomentumSnapshot{
		KeywordID: kw.ID, SnapshotDate: day, MomentumScore: 72, RawScore: 0.9,
	}))

	hist, err := s.History(ctx, kw.ID, 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, 72, hist[0].MomentumScore)
	assert.InDelta(t, 0.9, hist[0].RawScore, 1e-9)
	assert.Equal(t, "glass skin", hist[0].Keyword)
}

func TestTopByDateOrdersByScoreDescending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	scores := map[string]int{"alpha": 55, "bravo": 91, "charlie": 12}
	for text, score := range scores {
		kw := newTestKeyword(t, s, text)
		require.NoError(t, s.UpsertMomentum(ctx, &MomentumSnapshot{
			KeywordID: kw.ID, SnapshotDate: day, MomentumScore: score,
		}))
	}

	// A snapshot on another day must not leak into the ranking.
	other := newTestKeyword(t, s, "delta")
	require.NoError(t, s.UpsertMomentum(ctx, &MomentumSnapshot{
		KeywordID: other.ID, SnapshotDate: day.AddDate(0, 0, -1), MomentumScore: 99,
	}))

	top, err := s.TopByDate(ctx, day, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "bravo", top[0].Keyword)
	assert.Equal(t, "alpha", top[1].Keyword)
	assert.Equal(t, "charlie", top[2].Keyword)
}

func TestHistoryMostRecentFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	kw := newTestKeyword(t, s, "glass skin")

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.UpsertMomentum(ctx, &MomentumSnapshot{
			KeywordID: kw.ID, SnapshotDate: base.AddDate(0, 0, i), MomentumScore: 50 + i,
		}))
	}

	hist, err := s.History(ctx, kw.ID, 3)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, 54, hist[0].MomentumScore)
	assert.True(t, hist[0].SnapshotDate.After(hist[1].SnapshotDate))
	assert.True(t, hist[1].SnapshotDate.After(hist[2].SnapshotDate))
}
