// Package store persists keywords, cached trends series and daily
// momentum snapshots in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/lebred/tiktok-trending-keywords/pkg/trends"
)

// Keyword is one tracked keyword identity, minted on first observation.
type Keyword struct {
	ID        string    `db:"id" json:"id"`
	Keyword   string    `db:"keyword" json:"keyword"`
	Display   string    `db:"display" json:"display"`
	Source    string    `db:"source" json:"source"`
	FirstSeen time.Time `db:"first_seen" json:"first_seen"`
}

// CachedSeries is one cached raw trends response for a keyword. At most
// one row exists per (keyword, geo, timeframe); refetching replaces it.
type CachedSeries struct {
	ID           int64           `db:"id"`
	KeywordID    string          `db:"keyword_id"`
	Geo          string          `db:"geo"`
	Timeframe    string          `db:"timeframe"`
	SnapshotDate time.Time       `db:"snapshot_date"`
	PayloadJSON  string          `db:"payload"`
	FetchedAt    time.Time       `db:"fetched_at"`
	Payload      *trends.Payload `db:"-"`
}

// MomentumSnapshot is one keyword's score for one day. At most one row
// exists per (keyword, date); recomputation overwrites in place.
type MomentumSnapshot struct {
	ID            int64     `db:"id" json:"id"`
	KeywordID     string    `db:"keyword_id" json:"keyword_id"`
	Keyword       string    `db:"keyword" json:"keyword,omitempty"`
	SnapshotDate  time.Time `db:"snapshot_date" json:"snapshot_date"`
	MomentumScore int       `db:"momentum_score" json:"momentum_score"`
	RawScore      float64   `db:"raw_score" json:"raw_score"`
	Lift          float64   `db:"lift" json:"lift"`
	Acceleration  float64   `db:"acceleration" json:"acceleration"`
	Novelty       float64   `db:"novelty" json:"novelty"`
	Noise         float64   `db:"noise" json:"noise"`
	Alerted       bool      `db:"alerted" json:"alerted"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// KeywordListOpts controls keyword listing.
type KeywordListOpts struct {
	Source string
	Limit  int
}

// Store is the persistence interface.
type Store interface {
	UpsertKeyword(ctx context.Context, kw *Keyword) error
	GetKeyword(ctx context.Context, text string) (*Keyword, error)
	ListKeywords(ctx context.Context, opts KeywordListOpts) ([]Keyword, error)

	GetCachedSeries(ctx context.Context, keywordID string, maxAgeDays int, asOf *time.Time) (*CachedSeries, error)
	PutCachedSeries(ctx context.Context, keywordID string, date time.Time, payload *trends.Payload) error
	InvalidateCache(ctx context.Context, keywordID string) (int64, error)

	UpsertMomentum(ctx context.Context, snap *MomentumSnapshot) error
	TopByDate(ctx context.Context, date time.Time, limit int) ([]MomentumSnapshot, error)
	History(ctx context.Context, keywordID string, limit int) ([]MomentumSnapshot, error)
	MarkAlerted(ctx context.Context, snapshotID int64) error

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time // overridable in tests
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertKeyword creates a keyword on first observation. An existing
// keyword keeps its identity and first-seen time; the struct is filled
// with the stored row either way.
func (s *SQLiteStore) UpsertKeyword(ctx context.Context, kw *Keyword) error {
	if kw.ID == "" {
		kw.ID = uuid.NewString()
	}
	if kw.FirstSeen.IsZero() {
		kw.FirstSeen = s.now().UTC()
	}
	if kw.Display == "" {
		kw.Display = kw.Keyword
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO keywords (id, keyword, display, source, first_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(keyword) DO NOTHING
	`, kw.ID, kw.Keyword, kw.Display, kw.Source, kw.FirstSeen)
	if err != nil {
		return fmt.Errorf("upsert keyword %q: %w", kw.Keyword, err)
	}

	stored, err := s.GetKeyword(ctx, kw.Keyword)
	if err != nil {
		return err
	}
	*kw = *stored
	return nil
}

func (s *SQLiteStore) GetKeyword(ctx context.Context, text string) (*Keyword, error) {
	var kw Keyword
	err := s.db.GetContext(ctx, &kw, "SELECT * FROM keywords WHERE keyword = ?", text)
	if err != nil {
		return nil, fmt.Errorf("get keyword %q: %w", text, err)
	}
	return &kw, nil
}

func (s *SQLiteStore) ListKeywords(ctx context.Context, opts KeywordListOpts) ([]Keyword, error) {
	query := "SELECT * FROM keywords WHERE 1=1"
	var args []any

	if opts.Source != "" {
		query += " AND source = ?"
		args = append(args, opts.Source)
	}

	query += " ORDER BY first_seen DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var kws []Keyword
	if err := s.db.SelectContext(ctx, &kws, query, args...); err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	return kws, nil
}

// GetCachedSeries returns the cached series for a keyword, or nil on a
// miss. With asOf set, only an entry stamped exactly that date counts,
// regardless of age. Without it, the most recent entry counts if it is
// no older than maxAgeDays.
func (s *SQLiteStore) GetCachedSeries(ctx context.Context, keywordID string, maxAgeDays int, asOf *time.Time) (*CachedSeries, error) {
	query := "SELECT * FROM trends_cache WHERE keyword_id = ?"
	args := []any{keywordID}

	if asOf != nil {
		query += " AND snapshot_date = ?"
		args = append(args, dateOnly(*asOf))
	}
	query += " ORDER BY snapshot_date DESC LIMIT 1"

	var entry CachedSeries
	err := s.db.GetContext(ctx, &entry, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached series %s: %w", keywordID, err)
	}

	if asOf == nil {
		age := int(dateOnly(s.now()).Sub(dateOnly(entry.SnapshotDate)).Hours() / 24)
		if age > maxAgeDays {
			return nil, nil
		}
	}

	var payload trends.Payload
	if err := json.Unmarshal([]byte(entry.PayloadJSON), &payload); err != nil {
		return nil, fmt.Errorf("decode cached payload %s: %w", keywordID, err)
	}
	entry.Payload = &payload
	return &entry, nil
}

// PutCachedSeries upserts the cached series for a keyword. The single
// ON CONFLICT statement keeps the write atomic per key: concurrent
// writers for the same key resolve last-writer-wins, never a torn row.
func (s *SQLiteStore) PutCachedSeries(ctx context.Context, keywordID string, date time.Time, payload *trends.Payload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload %s: %w", keywordID, err)
	}

	fetchedAt := payload.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = s.now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trends_cache (keyword_id, geo, timeframe, snapshot_date, payload, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(keyword_id, geo, timeframe) DO UPDATE SET
			snapshot_date = excluded.snapshot_date,
			payload = excluded.payload,
			fetched_at = excluded.fetched_at
	`, keywordID, payload.Geo, payload.Timeframe, dateOnly(date), string(raw), fetchedAt)
	if err != nil {
		return fmt.Errorf("put cached series %s: %w", keywordID, err)
	}
	return nil
}

// InvalidateCache clears all cached series for a keyword and returns
// the number of entries removed.
func (s *SQLiteStore) InvalidateCache(ctx context.Context, keywordID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM trends_cache WHERE keyword_id = ?", keywordID)
	if err != nil {
		return 0, fmt.Errorf("invalidate cache %s: %w", keywordID, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// UpsertMomentum writes one keyword's snapshot for one day. Same-day
// recomputation overwrites in place; the single statement makes the
// write all-or-nothing.
func (s *SQLiteStore) UpsertMomentum(ctx context.Context, snap *MomentumSnapshot) error {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = s.now().UTC()
	}
	snap.SnapshotDate = dateOnly(snap.SnapshotDate)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO momentum_snapshots
			(keyword_id, snapshot_date, momentum_score, raw_score, lift, acceleration, novelty, noise, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(keyword_id, snapshot_date) DO UPDATE SET
			momentum_score = excluded.momentum_score,
			raw_score = excluded.raw_score,
			lift = excluded.lift,
			acceleration = excluded.acceleration,
			novelty = excluded.novelty,
			noise = excluded.noise,
			created_at = excluded.created_at
	`, snap.KeywordID, snap.SnapshotDate, snap.MomentumScore, snap.RawScore,
		snap.Lift, snap.Acceleration, snap.Novelty, snap.Noise, snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert momentum %s@%s: %w",
			snap.KeywordID, snap.SnapshotDate.Format("2006-01-02"), err)
	}
	return nil
}

// TopByDate ranks one day's snapshots by momentum score descending.
func (s *SQLiteStore) TopByDate(ctx context.Context, date time.Time, limit int) ([]MomentumSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}

	var snaps []MomentumSnapshot
	err := s.db.SelectContext(ctx, &snaps, `
		SELECT m.*, k.keyword AS keyword
		FROM momentum_snapshots m
		JOIN keywords k ON k.id = m.keyword_id
		WHERE m.snapshot_date = ?
		ORDER BY m.momentum_score DESC, k.keyword ASC
		LIMIT ?
	`, dateOnly(date), limit)
	if err != nil {
		return nil, fmt.Errorf("top by date: %w", err)
	}
	return snaps, nil
}

// History returns a keyword's snapshots, most recent day first.
func (s *SQLiteStore) History(ctx context.Context, keywordID string, limit int) ([]MomentumSnapshot, error) {
	if limit <= 0 {
		limit = 90
	}

	var snaps []MomentumSnapshot
	err := s.db.SelectContext(ctx, &snaps, `
		SELECT m.*, k.keyword AS keyword
		FROM momentum_snapshots m
		JOIN keywords k ON k.id = m.keyword_id
		WHERE m.keyword_id = ?
		ORDER BY m.snapshot_date DESC
		LIMIT ?
	`, keywordID, limit)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", keywordID, err)
	}
	return snaps, nil
}

// MarkAlerted flags one snapshot as already alerted. Same-day
// recomputation keeps the flag, so a keyword alerts at most once per
// day.
func (s *SQLiteStore) MarkAlerted(ctx context.Context, snapshotID int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE momentum_snapshots SET alerted = 1 WHERE id = ?", snapshotID)
	if err != nil {
		return fmt.Errorf("mark alerted %d: %w", snapshotID, err)
	}
	return nil
}

// dateOnly truncates to a UTC calendar date so date equality behaves
// across writes and queries.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
