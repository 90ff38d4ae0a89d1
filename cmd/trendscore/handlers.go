package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/lebred/tiktok-trending-keywords/internal/config"
	"github.com/lebred/tiktok-trending-keywords/internal/pipeline"
	"github.com/lebred/tiktok-trending-keywords/internal/scheduler"
	"github.com/lebred/tiktok-trending-keywords/internal/store"
	"github.com/lebred/tiktok-trending-keywords/pkg/alert"
	"github.com/lebred/tiktok-trending-keywords/pkg/server"
	"github.com/lebred/tiktok-trending-keywords/pkg/source"
	"github.com/lebred/tiktok-trending-keywords/pkg/trends"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func buildSources(cfg *config.Config) []source.Source {
	var sources []source.Source

	if cfg.Sources.CreativeCenter.Enabled {
		sources = append(sources, source.NewCreativeCenter(
			cfg.Sources.CreativeCenter.BaseURL,
			cfg.Sources.CreativeCenter.Limit,
		))
	}
	if cfg.Sources.RSS.Enabled {
		feeds := make([]source.RSSFeed, len(cfg.Sources.RSS.Feeds))
		for i, f := range cfg.Sources.RSS.Feeds {
			feeds[i] = source.RSSFeed{Name: f.Name, URL: f.URL}
		}
		sources = append(sources, source.NewRSS(feeds))
	}

	return sources
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func buildPipeline(cfg *config.Config, db store.Store, log zerolog.Logger) *pipeline.Pipeline {
	client := trends.NewClient(
		cfg.Provider.BaseURL,
		cfg.Provider.ParseTimeout(),
		cfg.Provider.ParseMinDelay(),
	)
	return pipeline.New(db, client, pipeline.Config{
		Geo:             cfg.Provider.Geo,
		Timeframe:       cfg.Provider.Timeframe,
		CacheMaxAgeDays: cfg.Pipeline.CacheMaxAgeDays,
		MaxRetries:      cfg.Pipeline.MaxRetries,
		RetryBaseDelay:  cfg.Pipeline.ParseRetryBaseDelay(),
		Workers:         cfg.Pipeline.Workers,
	}, log)
}

func runIngest() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	sources := buildSources(cfg)
	if len(sources) == 0 {
		return fmt.Errorf("no sources enabled (check config)")
	}

	ctx := context.Background()
	filter := source.NewFilter(cfg.Sources.ExcludeKeywords)

	var candidates []source.Candidate
	for _, src := range sources {
		fmt.Fprintf(os.Stderr, "collecting from %s...\n", src.Name())
		got, err := src.Collect(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  error: %v\n", err)
			continue
		}
		fmt.Fprintf(os.Stderr, "  %d candidates\n", len(got))
		candidates = append(candidates, got...)
	}

	saved := 0
	for _, c := range source.Dedupe(candidates, filter) {
		kw := store.Keyword{Keyword: c.Text, Source: string(c.Source)}
		if err := db.UpsertKeyword(ctx, &kw); err != nil {
			fmt.Fprintf(os.Stderr, "  store error for %q: %v\n", c.Text, err)
			continue
		}
		saved++
	}

	fmt.Fprintf(os.Stderr, "\ntotal: %d keywords from %d sources\n", saved, len(sources))
	return nil
}

func runScore(dateArg string, maxKeywords int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	date := time.Now().UTC()
	if dateArg != "" {
		date, err = time.Parse("2006-01-02", dateArg)
		if err != nil {
			return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", dateArg)
		}
	}

	if maxKeywords <= 0 {
		maxKeywords = cfg.Pipeline.MaxKeywords
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	keywords, err := db.ListKeywords(context.Background(), store.KeywordListOpts{Limit: maxKeywords})
	if err != nil {
		return fmt.Errorf("list keywords: %w", err)
	}
	if len(keywords) == 0 {
		fmt.Println("no keywords to score (try ingesting first: trendscore ingest)")
		return nil
	}

	log := newLogger(cfg.Logging)
	pipe := buildPipeline(cfg, db, log)

	report := pipe.Run(context.Background(), keywords, date)

	fmt.Fprintf(os.Stderr, "scored %d of %d keywords (%d fetched, %d cached)\n",
		report.Scored, len(keywords), report.Fetched, report.Cached)
	for _, e := range report.Errors {
		fmt.Fprintf(os.Stderr, "  %s\n", e)
	}
	return nil
}

func runTop(jsonOutput bool, dateArg string, limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	date := time.Now().UTC()
	if dateArg != "" {
		date, err = time.Parse("2006-01-02", dateArg)
		if err != nil {
			return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", dateArg)
		}
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	snaps, err := db.TopByDate(context.Background(), date, limit)
	if err != nil {
		return fmt.Errorf("top by date: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snaps)
	}

	if len(snaps) == 0 {
		fmt.Printf("no snapshots for %s (try scoring first: trendscore score)\n",
			date.Format("2006-01-02"))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tKEYWORD\tLIFT\tACCEL\tNOVELTY\tNOISE")
	for _, s := range snaps {
		fmt.Fprintf(w, "%d\t%s\t%.2f\t%.2f\t%.2f\t%.2f\n",
			s.MomentumScore, s.Keyword, s.Lift, s.Acceleration, s.Novelty, s.Noise)
	}
	return w.Flush()
}

func runHistory(keyword string, jsonOutput bool, limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	kw, err := db.GetKeyword(ctx, source.Normalize(keyword))
	if err != nil {
		return fmt.Errorf("keyword %q is not tracked", keyword)
	}

	snaps, err := db.History(ctx, kw.ID, limit)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snaps)
	}

	if len(snaps) == 0 {
		fmt.Printf("no snapshots for %q\n", kw.Keyword)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tSCORE\tRAW")
	for _, s := range snaps {
		fmt.Fprintf(w, "%s\t%d\t%.4f\n",
			s.SnapshotDate.Format("2006-01-02"), s.MomentumScore, s.RawScore)
	}
	return w.Flush()
}

func runInvalidate(keyword string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	kw, err := db.GetKeyword(ctx, source.Normalize(keyword))
	if err != nil {
		return fmt.Errorf("keyword %q is not tracked", keyword)
	}

	removed, err := db.InvalidateCache(ctx, kw.ID)
	if err != nil {
		return fmt.Errorf("invalidate cache: %w", err)
	}

	fmt.Fprintf(os.Stderr, "removed %d cached series for %q\n", removed, kw.Keyword)
	return nil
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	log := newLogger(cfg.Logging)
	pipe := buildPipeline(cfg, db, log)

	srv := server.New(db, pipe, port, log)
	return srv.ListenAndServe()
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	log := newLogger(cfg.Logging)
	pipe := buildPipeline(cfg, db, log)
	sources := buildSources(cfg)
	filter := source.NewFilter(cfg.Sources.ExcludeKeywords)
	alertMgr := buildAlertManager(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(db, sources, filter, pipe, alertMgr,
		cfg.Schedule.ParseIngestInterval(),
		cfg.Schedule.ParseScoreInterval(),
		cfg.Alerts.MinScore,
		cfg.Pipeline.MaxKeywords,
		log,
	)

	// Scheduler in the background, HTTP server in the foreground.
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("scheduler error")
		}
	}()

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
	}()

	srv := server.New(db, pipe, port, log)
	return srv.ListenAndServe()
}
