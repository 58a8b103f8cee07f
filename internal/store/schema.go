package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    file_path            TEXT PRIMARY KEY,
    name                 TEXT NOT NULL,
    kind                 TEXT NOT NULL,
    task                 TEXT,
    trigger_ts           REAL,
    trigger_source       TEXT,
    dropped              INTEGER,
    parse_errors         INTEGER,
    decimals             INTEGER NOT NULL,
    has_value            INTEGER NOT NULL DEFAULT 0,
    file_mtime_ns        INTEGER NOT NULL,
    file_size            INTEGER NOT NULL,
    parsed_at            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
    file_path            TEXT NOT NULL REFERENCES sessions(file_path) ON DELETE CASCADE,
    row_idx              INTEGER NOT NULL,
    onset                REAL NOT NULL,
    duration             REAL NOT NULL,
    trial_type           TEXT NOT NULL,
    value                TEXT,
    PRIMARY KEY (file_path, row_idx)
);

CREATE TABLE IF NOT EXISTS file_tracker (
    file_path            TEXT PRIMARY KEY,
    mtime_ns             INTEGER NOT NULL,
    size_bytes           INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
    run_id               TEXT PRIMARY KEY,
    dir                  TEXT NOT NULL,
    started_at           TEXT NOT NULL,
    finished_at          TEXT,
    sessions             INTEGER,
    failed               INTEGER,
    written              INTEGER
);

CREATE INDEX IF NOT EXISTS idx_sessions_task ON sessions(task);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`
