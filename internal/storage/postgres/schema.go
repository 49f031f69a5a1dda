package postgres

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id         TEXT PRIMARY KEY,
		status     TEXT NOT NULL DEFAULT 'created'
		           CHECK (status IN ('created', 'running', 'success', 'failed')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);

	CREATE TABLE IF NOT EXISTS run_step_logs (
		id          BIGSERIAL PRIMARY KEY,
		run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		name        TEXT NOT NULL,
		started_at  TIMESTAMPTZ,
		ended_at    TIMESTAMPTZ,
		input_data  JSONB,
		output_data JSONB,
		error       TEXT,
		CHECK (ended_at IS NULL OR (started_at IS NOT NULL AND started_at <= ended_at))
	);
	CREATE INDEX IF NOT EXISTS idx_run_step_logs_run_id ON run_step_logs(run_id);

	CREATE TABLE IF NOT EXISTS artifacts (
		id           BIGSERIAL PRIMARY KEY,
		run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		type         TEXT NOT NULL,
		ref_id       TEXT,
		preview_text TEXT,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_run_id ON artifacts(run_id);

	CREATE TABLE IF NOT EXISTS drafts (
		id         BIGSERIAL PRIMARY KEY,
		dsl_type   TEXT NOT NULL CHECK (dsl_type IN ('mermaid', 'graphviz', 'svg')),
		code       TEXT NOT NULL,
		meta_json  JSONB NOT NULL DEFAULT '{}',
		run_id     TEXT REFERENCES runs(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_drafts_created_at ON drafts(created_at DESC);

	CREATE TABLE IF NOT EXISTS input_submissions (
		id          BIGSERIAL PRIMARY KEY,
		text        TEXT,
		image_url   TEXT,
		params_json JSONB NOT NULL DEFAULT '{}',
		run_id      TEXT REFERENCES runs(id) ON DELETE SET NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS svg_draw (
		id          BIGSERIAL PRIMARY KEY,
		name        VARCHAR(200) NOT NULL,
		svg_content TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);
`
