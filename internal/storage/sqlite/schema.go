package sqlite

// Timestamps are fixed-width RFC 3339 text in UTC.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id         TEXT PRIMARY KEY,
    status     TEXT NOT NULL DEFAULT 'created'
               CHECK (status IN ('created', 'running', 'success', 'failed')),
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_step_logs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    name        TEXT NOT NULL,
    started_at  TEXT,
    ended_at    TEXT,
    input_data  TEXT,
    output_data TEXT,
    error       TEXT
);
CREATE INDEX IF NOT EXISTS idx_run_step_logs_run_id ON run_step_logs(run_id);

CREATE TABLE IF NOT EXISTS artifacts (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    type         TEXT NOT NULL,
    ref_id       TEXT,
    preview_text TEXT,
    created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_artifacts_run_id ON artifacts(run_id);

CREATE TABLE IF NOT EXISTS drafts (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    dsl_type   TEXT NOT NULL CHECK (dsl_type IN ('mermaid', 'graphviz', 'svg')),
    code       TEXT NOT NULL,
    meta_json  TEXT NOT NULL DEFAULT '{}',
    run_id     TEXT REFERENCES runs(id) ON DELETE SET NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_drafts_created_at ON drafts(created_at DESC);

CREATE TABLE IF NOT EXISTS input_submissions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    text        TEXT,
    image_url   TEXT,
    params_json TEXT NOT NULL DEFAULT '{}',
    run_id      TEXT REFERENCES runs(id) ON DELETE SET NULL,
    created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS svg_draw (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL,
    svg_content TEXT NOT NULL,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
`
