// Package scheduler runs periodic keyword ingestion and daily scoring.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lebred/tiktok-trending-keywords/internal/pipeline"
	"github.com/lebred/tiktok-trending-keywords/internal/store"
	"github.com/lebred/tiktok-trending-keywords/pkg/alert"
	"github.com/lebred/tiktok-trending-keywords/pkg/source"
)

// Scheduler runs periodic ingestion and scoring.
type Scheduler struct {
	store       store.Store
	sources     []source.Source
	filter      *source.Filter
	pipe        *pipeline.Pipeline
	alertMgr    *alert.Manager
	ingestInt   time.Duration
	scoreInt    time.Duration
	minScore    int
	maxKeywords int
	log         zerolog.Logger
}

// New creates a new scheduler.
func New(
	s store.Store,
	sources []source.Source,
	filter *source.Filter,
	pipe *pipeline.Pipeline,
	alertMgr *alert.Manager,
	ingestInt, scoreInt time.Duration,
	minScore, maxKeywords int,
	log zerolog.Logger,
) *Scheduler {
	if ingestInt == 0 {
		ingestInt = 6 * time.Hour
	}
	if scoreInt == 0 {
		scoreInt = 24 * time.Hour
	}
	if minScore == 0 {
		minScore = 80
	}
	return &Scheduler{
		store:       s,
		sources:     sources,
		filter:      filter,
		pipe:        pipe,
		alertMgr:    alertMgr,
		ingestInt:   ingestInt,
		scoreInt:    scoreInt,
		minScore:    minScore,
		maxKeywords: maxKeywords,
		log:         log,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ingestTicker := time.NewTicker(s.ingestInt)
	scoreTicker := time.NewTicker(s.scoreInt)
	defer ingestTicker.Stop()
	defer scoreTicker.Stop()

	// Run both immediately on start.
	s.log.Info().Msg("scheduler: initial ingestion")
	s.Ingest(ctx)
	s.log.Info().Msg("scheduler: initial scoring run")
	s.scoreAndAlert(ctx)

	s.log.Info().
		Dur("ingest_every", s.ingestInt).
		Dur("score_every", s.scoreInt).
		Msg("scheduler running")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-ingestTicker.C:
			s.Ingest(ctx)
		case <-scoreTicker.C:
			s.scoreAndAlert(ctx)
		}
	}
}

// Ingest collects keyword candidates from every source and upserts the
// normalized survivors.
func (s *Scheduler) Ingest(ctx context.Context) {
	var candidates []source.Candidate
	for _, src := range s.sources {
		got, err := src.Collect(ctx)
		if err != nil {
			s.log.Warn().Err(err).Str("source", string(src.Name())).Msg("source collect failed")
			continue
		}
		s.log.Info().Str("source", string(src.Name())).Int("candidates", len(got)).Msg("collected")
		candidates = append(candidates, got...)
	}

	saved := 0
	for _, c := range source.Dedupe(candidates, s.filter) {
		kw := store.Keyword{Keyword: c.Text, Source: string(c.Source)}
		if err := s.store.UpsertKeyword(ctx, &kw); err != nil {
			s.log.Warn().Err(err).Str("keyword", c.Text).Msg("keyword upsert failed")
			continue
		}
		saved++
	}
	s.log.Info().Int("keywords", saved).Msg("ingestion complete")
}

func (s *Scheduler) scoreAndAlert(ctx context.Context) {
	keywords, err := s.store.ListKeywords(ctx, store.KeywordListOpts{Limit: s.maxKeywords})
	if err != nil {
		s.log.Error().Err(err).Msg("list keywords failed")
		return
	}
	if len(keywords) == 0 {
		s.log.Info().Msg("no keywords to score")
		return
	}

	date := time.Now().UTC()
	report := s.pipe.Run(ctx, keywords, date)
	if !report.Success {
		s.log.Warn().Int("failed", report.Failed).Msg("scoring run had failures")
	}

	if s.alertMgr == nil || !s.alertMgr.HasNotifiers() {
		return
	}
	s.alertHighMomentum(ctx, date, len(keywords))
}

// alertHighMomentum notifies for unalerted snapshots at or above the
// score threshold. The limit must cover the whole scored batch, or
// qualifying keywords past the ranking cutoff would never alert.
func (s *Scheduler) alertHighMomentum(ctx context.Context, date time.Time, limit int) {
	top, err := s.store.TopByDate(ctx, date, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("ranking lookup failed")
		return
	}

	for _, snap := range top {
		if snap.MomentumScore < s.minScore {
			break // ranked descending, nothing further qualifies
		}
		if snap.Alerted {
			continue
		}

		n := &alert.Notification{
			Keyword:       snap.Keyword,
			SnapshotDate:  snap.SnapshotDate,
			MomentumScore: snap.MomentumScore,
			Lift:          snap.Lift,
			Acceleration:  snap.Acceleration,
			Novelty:       snap.Novelty,
			Noise:         snap.Noise,
			Body:          fmt.Sprintf("%q is gaining momentum", snap.Keyword),
		}
		if err := s.alertMgr.Broadcast(ctx, n); err != nil {
			s.log.Warn().Err(err).Str("keyword", snap.Keyword).Msg("alert failed")
			continue
		}

		if err := s.store.MarkAlerted(ctx, snap.ID); err != nil {
			s.log.Warn().Err(err).Str("keyword", snap.Keyword).Msg("mark alerted failed")
			continue
		}
		s.log.Info().Str("keyword", snap.Keyword).Int("score", snap.MomentumScore).Msg("alerted")
	}
}
