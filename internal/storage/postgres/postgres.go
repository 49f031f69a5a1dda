package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	_ "github.com/lib/pq"

	"github.com/AaronLay10/DiagramEngine/internal/model"
	"github.com/AaronLay10/DiagramEngine/internal/storage"
)

// Client stores runs, steps, artifacts, drafts, submissions and legacy
// drawings in Postgres.
type Client struct {
	db *sql.DB
}

var _ storage.Store = (*Client)(nil)

// DSNFromEnv builds a connection string from the PG* environment variables.
func DSNFromEnv() string {
	host := getEnv("PGHOST", "127.0.0.1")
	port := getEnv("PGPORT", "5432")
	user := getEnv("PGUSER", "diagram")
	dbname := getEnv("PGDATABASE", "diagram")
	password := os.Getenv("PGPASSWORD")

	if password != "" {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname)
	}
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		host, port, user, dbname)
}

// New opens dsn (or the PG* environment when dsn is empty), checks the
// connection and creates the schema if needed.
func New(ctx context.Context, dsn string) (*Client, error) {
	if dsn == "" {
		dsn = DSNFromEnv()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{db: db}
	if err := client.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return client, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (c *Client) createTables(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, schema)
	return err
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// --- runs ---

func (c *Client) InsertRun(ctx context.Context, id string, status model.RunStatus) (storage.Run, error) {
	r := storage.Run{ID: id, Status: status}
	err := c.db.QueryRowContext(ctx,
		`INSERT INTO runs (id, status) VALUES ($1, $2) RETURNING created_at, updated_at`,
		id, string(status),
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return storage.Run{}, fmt.Errorf("insert run: %w", err)
	}
	return r, nil
}

func (c *Client) UpdateRunStatus(ctx context.Context, id string, status model.RunStatus) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE runs SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return requireRow(res)
}

func (c *Client) GetRun(ctx context.Context, id string) (storage.Run, error) {
	var r storage.Run
	var status string
	err := c.db.QueryRowContext(ctx,
		`SELECT id, status, created_at, updated_at FROM runs WHERE id = $1`, id,
	).Scan(&r.ID, &status, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Run{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Run{}, fmt.Errorf("get run: %w", err)
	}
	r.Status = model.RunStatus(status)
	return r, nil
}

func (c *Client) InsertStep(ctx context.Context, step *storage.Step) error {
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO run_step_logs (run_id, name, started_at, ended_at, input_data, output_data, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		step.RunID, step.Name, step.StartedAt, step.EndedAt,
		nullJSON(step.Input), nullJSON(step.Output), step.Error,
	).Scan(&step.ID)
	if err != nil {
		return fmt.Errorf("insert step %s: %w", step.Name, err)
	}
	return nil
}

func (c *Client) UpdateStep(ctx context.Context, step *storage.Step) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE run_step_logs
		SET started_at = $2, ended_at = $3, input_data = $4, output_data = $5, error = $6
		WHERE id = $1`,
		step.ID, step.StartedAt, step.EndedAt,
		nullJSON(step.Input), nullJSON(step.Output), step.Error,
	)
	if err != nil {
		return fmt.Errorf("update step %s: %w", step.Name, err)
	}
	return requireRow(res)
}

func (c *Client) ListSteps(ctx context.Context, runID string) ([]storage.Step, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, run_id, name, started_at, ended_at, input_data, output_data, error
		FROM run_step_logs
		WHERE run_id = $1
		ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []storage.Step
	for rows.Next() {
		var s storage.Step
		var started, ended sql.NullTime
		var input, output []byte
		var stepErr sql.NullString

		if err := rows.Scan(&s.ID, &s.RunID, &s.Name, &started, &ended, &input, &output, &stepErr); err != nil {
			return nil, err
		}
		if started.Valid {
			t := started.Time
			s.StartedAt = &t
		}
		if ended.Valid {
			t := ended.Time
			s.EndedAt = &t
		}
		if len(input) > 0 {
			s.Input = json.RawMessage(input)
		}
		if len(output) > 0 {
			s.Output = json.RawMessage(output)
		}
		if stepErr.Valid {
			msg := stepErr.String
			s.Error = &msg
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

func (c *Client) InsertArtifact(ctx context.Context, a *storage.Artifact) error {
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO artifacts (run_id, type, ref_id, preview_text)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		a.RunID, a.Type, nullString(a.RefID), nullString(a.PreviewText),
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert artifact %s: %w", a.Type, err)
	}
	return nil
}

func (c *Client) ListArtifacts(ctx context.Context, runID string) ([]storage.Artifact, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, run_id, type, ref_id, preview_text, created_at
		FROM artifacts
		WHERE run_id = $1
		ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []storage.Artifact
	for rows.Next() {
		var a storage.Artifact
		var ref, preview sql.NullString
		if err := rows.Scan(&a.ID, &a.RunID, &a.Type, &ref, &preview, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.RefID = ref.String
		a.PreviewText = preview.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- drafts ---

func (c *Client) InsertDraft(ctx context.Context, d *model.Draft) error {
	meta, err := json.Marshal(d.Meta)
	if err != nil {
		return fmt.Errorf("failed to marshal draft meta: %w", err)
	}
	err = c.db.QueryRowContext(ctx, `
		INSERT INTO drafts (dsl_type, code, meta_json, run_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		string(d.DslType), d.Code, meta, nullString(d.RunID),
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert draft: %w", err)
	}
	return nil
}

func (c *Client) UpdateDraft(ctx context.Context, d *model.Draft) error {
	meta, err := json.Marshal(d.Meta)
	if err != nil {
		return fmt.Errorf("failed to marshal draft meta: %w", err)
	}
	err = c.db.QueryRowContext(ctx, `
		UPDATE drafts SET dsl_type = $2, code = $3, meta_json = $4, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		d.ID, string(d.DslType), d.Code, meta,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	return nil
}

func (c *Client) GetDraft(ctx context.Context, id int64) (model.Draft, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, dsl_type, code, meta_json, run_id, created_at, updated_at
		FROM drafts WHERE id = $1`, id)
	d, err := scanDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Draft{}, storage.ErrNotFound
	}
	return d, err
}

func (c *Client) ListDrafts(ctx context.Context, limit int) ([]model.Draft, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, dsl_type, code, meta_json, run_id, created_at, updated_at
		FROM drafts
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, storage.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	var out []model.Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDraft(row scanner) (model.Draft, error) {
	var d model.Draft
	var dslType string
	var meta []byte
	var runID sql.NullString
	if err := row.Scan(&d.ID, &dslType, &d.Code, &meta, &runID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return model.Draft{}, err
	}
	d.DslType = model.DslType(dslType)
	d.RunID = runID.String
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &d.Meta); err != nil {
			return model.Draft{}, fmt.Errorf("failed to unmarshal draft meta: %w", err)
		}
	}
	return d, nil
}

// --- submissions ---

func (c *Client) InsertSubmission(ctx context.Context, s *model.InputSubmission) error {
	params, err := json.Marshal(s.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	err = c.db.QueryRowContext(ctx, `
		INSERT INTO input_submissions (text, image_url, params_json)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		nullString(s.Text), nullString(s.ImageURL), params,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (c *Client) GetSubmission(ctx context.Context, id int64) (model.InputSubmission, error) {
	var s model.InputSubmission
	var text, imageURL, runID sql.NullString
	var params []byte
	err := c.db.QueryRowContext(ctx, `
		SELECT id, text, image_url, params_json, run_id, created_at
		FROM input_submissions WHERE id = $1`, id,
	).Scan(&s.ID, &text, &imageURL, &params, &runID, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.InputSubmission{}, storage.ErrNotFound
	}
	if err != nil {
		return model.InputSubmission{}, fmt.Errorf("get submission: %w", err)
	}
	s.Text, s.ImageURL, s.RunID = text.String, imageURL.String, runID.String
	if len(params) > 0 {
		if err := json.Unmarshal(params, &s.Params); err != nil {
			return model.InputSubmission{}, fmt.Errorf("failed to unmarshal params: %w", err)
		}
	}
	return s, nil
}

func (c *Client) AttachSubmissionRun(ctx context.Context, id int64, runID string) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE input_submissions SET run_id = $2 WHERE id = $1`, id, runID)
	if err != nil {
		return fmt.Errorf("attach submission run: %w", err)
	}
	return requireRow(res)
}

// --- svg draws ---

func (c *Client) InsertSvgDraw(ctx context.Context, d *model.SvgDraw) error {
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO svg_draw (name, svg_content) VALUES ($1, $2)
		RETURNING id, created_at, updated_at`,
		d.Name, d.SvgContent,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert svg draw: %w", err)
	}
	return nil
}

func (c *Client) UpdateSvgDraw(ctx context.Context, d *model.SvgDraw) error {
	err := c.db.QueryRowContext(ctx, `
		UPDATE svg_draw SET name = $2, svg_content = $3, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		d.ID, d.Name, d.SvgContent,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update svg draw: %w", err)
	}
	return nil
}

func (c *Client) GetSvgDraw(ctx context.Context, id int64) (model.SvgDraw, error) {
	var d model.SvgDraw
	err := c.db.QueryRowContext(ctx, `
		SELECT id, name, svg_content, created_at, updated_at FROM svg_draw WHERE id = $1`, id,
	).Scan(&d.ID, &d.Name, &d.SvgContent, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SvgDraw{}, storage.ErrNotFound
	}
	if err != nil {
		return model.SvgDraw{}, fmt.Errorf("get svg draw: %w", err)
	}
	return d, nil
}

func (c *Client) ListSvgDraws(ctx context.Context) ([]model.SvgDraw, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, svg_content, created_at, updated_at
		FROM svg_draw ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list svg draws: %w", err)
	}
	defer rows.Close()

	var out []model.SvgDraw
	for rows.Next() {
		var d model.SvgDraw
		if err := rows.Scan(&d.ID, &d.Name, &d.SvgContent, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *Client) DeleteSvgDraw(ctx context.Context, id int64) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM svg_draw WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete svg draw: %w", err)
	}
	return requireRow(res)
}

// --- helpers ---

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
