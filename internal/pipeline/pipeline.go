// Package pipeline drives the daily batch: for each keyword, resolve a
// trends series from cache or the provider, score it, and persist one
// momentum snapshot per keyword per day. One keyword's failure never
// aborts the batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lebred/tiktok-trending-keywords/internal/store"
	"github.com/lebred/tiktok-trending-keywords/pkg/scoring"
	"github.com/lebred/tiktok-trending-keywords/pkg/trends"
)

// ErrInsufficientData marks a keyword whose series is too short to
// score. It is a data-availability fact, never retried.
var ErrInsufficientData = errors.New("insufficient data for scoring")

// Config tunes a pipeline run.
type Config struct {
	Geo             string
	Timeframe       string
	CacheMaxAgeDays int
	MaxRetries      int
	RetryBaseDelay  time.Duration
	Workers         int
}

func (c Config) withDefaults() Config {
	if c.Timeframe == "" {
		c.Timeframe = "today 12-m"
	}
	if c.CacheMaxAgeDays <= 0 {
		c.CacheMaxAgeDays = 7
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	return c
}

// Report is the aggregate outcome of one batch run. Partial success is
// expected; the run succeeded only if no keyword failed.
type Report struct {
	SnapshotDate time.Time `json:"snapshot_date"`
	Fetched      int       `json:"fetched"`
	Cached       int       `json:"cached"`
	Scored       int       `json:"scored"`
	Failed       int       `json:"failed"`
	Errors       []string  `json:"errors,omitempty"`
	Success      bool      `json:"success"`
	Started      time.Time `json:"started"`
	Finished     time.Time `json:"finished"`
}

// Pipeline orchestrates scoring runs over a keyword batch.
type Pipeline struct {
	store    store.Store
	provider trends.Provider
	cfg      Config
	log      zerolog.Logger
}

// New creates a pipeline. The store and provider are injected; their
// lifecycle belongs to the caller.
func New(s store.Store, p trends.Provider, cfg Config, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:    s,
		provider: p,
		cfg:      cfg.withDefaults(),
		log:      log,
	}
}

// Run scores every keyword for the given date. Keywords are processed
// by a bounded worker pool; per-keyword failures are collected into the
// report and the rest of the batch continues. Cancelling ctx stops the
// run after the in-flight keywords; snapshots already written stay.
func (p *Pipeline) Run(ctx context.Context, keywords []store.Keyword, date time.Time) *Report {
	report := &Report{
		SnapshotDate: date,
		Started:      time.Now().UTC(),
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, p.cfg.Workers)
	)

	for i := range keywords {
		if ctx.Err() != nil {
			mu.Lock()
			report.Failed++
			report.Errors = append(report.Errors,
				fmt.Sprintf("keyword %q: run cancelled", keywords[i].Keyword))
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(kw store.Keyword) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcome := p.processKeyword(ctx, kw, date)

			mu.Lock()
			defer mu.Unlock()
			if outcome.fromCache {
				report.Cached++
			}
			if outcome.fetched {
				report.Fetched++
			}
			if outcome.err != nil {
				report.Failed++
				report.Errors = append(report.Errors,
					fmt.Sprintf("keyword %q: %v", kw.Keyword, outcome.err))
				return
			}
			report.Scored++
		}(keywords[i])
	}

	wg.Wait()

	report.Finished = time.Now().UTC()
	report.Success = len(report.Errors) == 0

	p.log.Info().
		Int("scored", report.Scored).
		Int("failed", report.Failed).
		Int("fetched", report.Fetched).
		Int("cached", report.Cached).
		Str("date", date.Format("2006-01-02")).
		Dur("took", report.Finished.Sub(report.Started)).
		Msg("pipeline run complete")

	return report
}

type outcome struct {
	fromCache bool
	fetched   bool
	err       error
}

// processKeyword resolves a series for one keyword, scores it, and
// persists the snapshot.
func (p *Pipeline) processKeyword(ctx context.Context, kw store.Keyword, date time.Time) outcome {
	payload, out := p.resolveSeries(ctx, kw, date)
	if out.err != nil {
		return out
	}

	values := trends.Extract(payload, kw.Keyword)
	result := scoring.Calculate(values)
	if result == nil {
		p.log.Debug().
			Str("keyword", kw.Keyword).
			Int("weeks", len(values)).
			Msg("series too short to score")
		out.err = fmt.Errorf("%w (%d weeks)", ErrInsufficientData, len(values))
		return out
	}

	snap := &store.MomentumSnapshot{
		KeywordID:     kw.ID,
		SnapshotDate:  date,
		MomentumScore: result.MomentumScore,
		RawScore:      result.RawScore,
		Lift:          result.Lift,
		Acceleration:  result.Acceleration,
		Novelty:       result.Novelty,
		Noise:         result.Noise,
	}
	if err := p.store.UpsertMomentum(ctx, snap); err != nil {
		out.err = fmt.Errorf("persist snapshot: %w", err)
		return out
	}

	p.log.Debug().
		Str("keyword", kw.Keyword).
		Int("score", result.MomentumScore).
		Float64("lift", result.Lift).
		Float64("acceleration", result.Acceleration).
		Float64("novelty", result.Novelty).
		Float64("noise", result.Noise).
		Msg("scored keyword")
	return out
}

// resolveSeries finds a usable payload: first an entry cached for the
// target date (same-day reruns stay idempotent), then any entry within
// the freshness window, then a provider fetch with retries.
func (p *Pipeline) resolveSeries(ctx context.Context, kw store.Keyword, date time.Time) (*trends.Payload, outcome) {
	var out outcome

	cached, err := p.store.GetCachedSeries(ctx, kw.ID, p.cfg.CacheMaxAgeDays, &date)
	if err == nil && cached == nil {
		cached, err = p.store.GetCachedSeries(ctx, kw.ID, p.cfg.CacheMaxAgeDays, nil)
	}
	if err != nil {
		out.err = fmt.Errorf("read cache: %w", err)
		return nil, out
	}
	if cached != nil {
		out.fromCache = true
		return cached.Payload, out
	}

	payload, err := p.fetchWithRetry(ctx, kw.Keyword)
	if err != nil {
		out.err = fmt.Errorf("fetch trends: %w", err)
		return nil, out
	}
	out.fetched = true

	if err := p.store.PutCachedSeries(ctx, kw.ID, date, payload); err != nil {
		// The fetched payload is still good; cache write failure only
		// costs a refetch next run.
		p.log.Warn().Err(err).Str("keyword", kw.Keyword).Msg("cache write failed")
	}
	return payload, out
}

// fetchWithRetry calls the provider with bounded exponential backoff.
func (p *Pipeline) fetchWithRetry(ctx context.Context, keyword string) (*trends.Payload, error) {
	var lastErr error
	delay := p.cfg.RetryBaseDelay

	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		payload, err := p.provider.FetchInterestOverTime(ctx, keyword, p.cfg.Geo, p.cfg.Timeframe)
		if err == nil {
			return payload, nil
		}
		lastErr = err

		if attempt == p.cfg.MaxRetries {
			break
		}
		p.log.Debug().Err(err).
			Str("keyword", keyword).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("fetch failed, retrying")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}

	return nil, fmt.Errorf("after %d attempts: %w", p.cfg.MaxRetries, lastErr)
}
