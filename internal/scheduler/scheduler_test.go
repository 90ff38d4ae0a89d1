package scheduler

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

	"github.com/lebred/tiktok-trending-keywords/internal/pipeline"
	"github.com/lebred/tiktok-trending-keywords/internal/store"
	"github.com/lebred/tiktok-trending-keywords/pkg/alert"
	"github.com/lebred/tiktok-trending-keywords/pkg/source"
	"github.com/lebred/tiktok-trending-keywords/pkg/trends"
)

// stubSource serves a fixed candidate list.
type stubSource struct {
	candidates []source.Candidate
	err        error
}

func (s *stubSource) Name() source.SourceType { return source.SourceRSS }

func (s *stubSource) Collect(context.Context) ([]source.Candidate, error) {
	return s.candidates, s.err
}

// stubProvider serves the same healthy payload for every keyword.
type stubProvider struct {
	mu    sync.Mutex
	calls int
}

func (s *stubProvider) FetchInterestOverTime(_ context.Context, keyword, geo, timeframe string) (*trends.Payload, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	p := &trends.Payload{
		Keyword:   keyword,
		Geo:       geo,
		Timeframe: timeframe,
		FetchedAt: time.Now().UTC(),
	}
	for i := 0; i < 90; i++ {
		p.Data = append(p.Data, map[string]any{keyword: 30.0})
	}
	for i := 0; i < 21; i++ {
		p.Data = append(p.Data, map[string]any{keyword: 40.0})
	}
	for i := 0; i < 7; i++ {
		p.Data = append(p.Data, map[string]any{keyword: 50.0})
	}
	return p, nil
}

// recordingNotifier captures every notification it is asked to send.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []*alert.Notification
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Send(_ context.Context, n *alert.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func newTestScheduler(t *testing.T, sources []source.Source, notifier alert.Notifier, minScore int) (*Scheduler, *store.SQLiteStore) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	pipe := pipeline.New(st, &stubProvider{}, pipeline.Config{
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
		Workers:        2,
	}, zerolog.Nop())

	var notifiers []alert.Notifier
	if notifier != nil {
		notifiers = append(notifiers, notifier)
	}
	mgr := alert.NewManager(notifiers)

	filter := source.NewFilter([]string{"spam"})
	sched := New(st, sources, filter, pipe, mgr, time.Hour, time.Hour, minScore, 0, zerolog.Nop())
	return sched, st
}

func TestIngestDedupesAcrossSources(t *testing.T) {
	sources := []source.Source{
		&stubSource{candidates: []source.Candidate{
			{Text: "Glass Skin", Source: source.SourceCreativeCenter},
			{Text: "#GlassSkin ", Source: source.SourceCreativeCenter},
		}},
		&stubSource{candidates: []source.Candidate{
			{Text: "glass skin", Source: source.SourceRSS},
			{Text: "spam giveaway", Source: source.SourceRSS},
			{Text: "retro bob", Source: source.SourceRSS},
		}},
	}

	sched, st := newTestScheduler(t, sources, nil, 80)
	sched.Ingest(context.Background())

	kws, err := st.ListKeywords(context.Background(), store.KeywordListOpts{})
	require.NoError(t, err)

	var texts []string
	for _, kw := range kws {
		texts = append(texts, kw.Keyword)
	}
	assert.ElementsMatch(t, []string{"glass skin", "glassskin", "retro bob"}, texts)
}

func TestIngestSurvivesFailingSource(t *testing.T) {
	sources := []source.Source{
		&stubSource{err: errors.New("feed unreachable")},
		&stubSource{candidates: []source.Candidate{
			{Text: "retro bob", Source: source.SourceRSS},
		}},
	}

	sched, st := newTestScheduler(t, sources, nil, 80)
	sched.Ingest(context.Background())

	kws, err := st.ListKeywords(context.Background(), store.KeywordListOpts{})
	require.NoError(t, err)
	require.Len(t, kws, 1)
	assert.Equal(t, "retro bob", kws[0].Keyword)
}

func TestScoreAndAlertOncePerDay(t *testing.T) {
	notifier := &recordingNotifier{}
	sched, st := newTestScheduler(t, nil, notifier, 50)

	kw := store.Keyword{Keyword: "glass skin"}
	require.NoError(t, st.UpsertKeyword(context.Background(), &kw))

	sched.scoreAndAlert(context.Background())
	require.Equal(t, 1, notifier.count())
	assert.Equal(t, "glass skin", notifier.sent[0].Keyword)
	assert.GreaterOrEqual(t, notifier.sent[0].MomentumScore, 50)

	// Rerunning the same day must not alert the same keyword again.
	sched.scoreAndAlert(context.Background())
	assert.Equal(t, 1, notifier.count())
}

func TestScoreAndAlertWholeBatch(t *testing.T) {
	notifier := &recordingNotifier{}
	sched, st := newTestScheduler(t, nil, notifier, 50)

	// More qualifying keywords than the store's default ranking page;
	// every one of them must alert, not just the first page.
	const total = 60
	for i := 0; i < total; i++ {
		kw := store.Keyword{Keyword: fmt.Sprintf("keyword %02d", i)}
		require.NoError(t, st.UpsertKeyword(context.Background(), &kw))
	}

	sched.scoreAndAlert(context.Background())
	assert.Equal(t, total, notifier.count())
}

func TestScoreAndAlertBelowThreshold(t *testing.T) {
	notifier := &recordingNotifier{}
	sched, st := newTestScheduler(t, nil, notifier, 90)

	kw := store.Keyword{Keyword: "glass skin"}
	require.NoError(t, st.UpsertKeyword(context.Background(), &kw))

	sched.scoreAndAlert(context.Background())
	assert.Equal(t, 0, notifier.count())
}
