package store

const schema = `
CREATE TABLE IF NOT EXISTS keywords (
    id         TEXT PRIMARY KEY,
    keyword    TEXT NOT NULL UNIQUE,
    display    TEXT NOT NULL DEFAULT '',
    source     TEXT NOT NULL DEFAULT '',
    first_seen DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_keywords_first_seen ON keywords(first_seen);

CREATE TABLE IF NOT EXISTS trends_cache (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    keyword_id    TEXT NOT NULL REFERENCES keywords(id),
    geo           TEXT NOT NULL DEFAULT '',
    timeframe     TEXT NOT NULL DEFAULT '',
    snapshot_date DATETIME NOT NULL,
    payload       TEXT NOT NULL DEFAULT '{}',
    fetched_at    DATETIME NOT NULL,
    UNIQUE(keyword_id, geo, timeframe)
);

CREATE INDEX IF NOT EXISTS idx_trends_cache_keyword ON trends_cache(keyword_id);
CREATE INDEX IF NOT EXISTS idx_trends_cache_date ON trends_cache(snapshot_date);

CREATE TABLE IF NOT EXISTS momentum_snapshots (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    keyword_id     TEXT NOT NULL REFERENCES keywords(id),
    snapshot_date  DATETIME NOT NULL,
    momentum_score INTEGER NOT NULL,
    raw_score      REAL NOT NULL DEFAULT 0,
    lift           REAL NOT NULL DEFAULT 0,
    acceleration   REAL NOT NULL DEFAULT 0,
    novelty        REAL NOT NULL DEFAULT 0,
    noise          REAL NOT NULL DEFAULT 0,
    alerted        BOOLEAN NOT NULL DEFAULT 0,
    created_at     DATETIME NOT NULL,
    UNIQUE(keyword_id, snapshot_date)
);

CREATE INDEX IF NOT EXISTS idx_momentum_date ON momentum_snapshots(snapshot_date);
CREATE INDEX IF NOT EXISTS idx_momentum_score ON momentum_snapshots(momentum_score);
CREATE INDEX IF NOT EXISTS idx_momentum_keyword ON momentum_snapshots(keyword_id);
`
