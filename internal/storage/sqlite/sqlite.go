// Package sqlite is a single-file storage backend for local deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/AaronLay10/DiagramEngine/internal/model"
	"github.com/AaronLay10/DiagramEngine/internal/storage"
)

// Fixed-width layout so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store keeps every table in one SQLite database file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite db: %w", err)
	}

	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// --- runs ---

func (s *Store) InsertRun(ctx context.Context, id string, status model.RunStatus) (storage.Run, error) {
	now := s.now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, string(status), formatTime(now), formatTime(now))
	if err != nil {
		return storage.Run{}, fmt.Errorf("insert run: %w", err)
	}
	return storage.Run{ID: id, Status: status, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *Store) UpdateRunStatus(ctx context.Context, id string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return requireRow(res)
}

func (s *Store) GetRun(ctx context.Context, id string) (storage.Run, error) {
	var r storage.Run
	var status, created, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, created_at, updated_at FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &status, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Run{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Run{}, fmt.Errorf("get run: %w", err)
	}
	r.Status = model.RunStatus(status)
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	return r, nil
}

func (s *Store) InsertStep(ctx context.Context, step *storage.Step) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO run_step_logs (run_id, name, started_at, ended_at, input_data, output_data, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		step.RunID, step.Name, nullTime(step.StartedAt), nullTime(step.EndedAt),
		nullJSON(step.Input), nullJSON(step.Output), step.Error)
	if err != nil {
		return fmt.Errorf("insert step %s: %w", step.Name, err)
	}
	step.ID, err = res.LastInsertId()
	return err
}

func (s *Store) UpdateStep(ctx context.Context, step *storage.Step) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE run_step_logs
		SET started_at = ?, ended_at = ?, input_data = ?, output_data = ?, error = ?
		WHERE id = ?`,
		nullTime(step.StartedAt), nullTime(step.EndedAt),
		nullJSON(step.Input), nullJSON(step.Output), step.Error, step.ID)
	if err != nil {
		return fmt.Errorf("update step %s: %w", step.Name, err)
	}
	return requireRow(res)
}

func (s *Store) ListSteps(ctx context.Context, runID string) ([]storage.Step, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, name, started_at, ended_at, input_data, output_data, error
		FROM run_step_logs WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []storage.Step
	for rows.Next() {
		var st storage.Step
		var started, ended, input, output, stepErr sql.NullString
		if err := rows.Scan(&st.ID, &st.RunID, &st.Name, &started, &ended, &input, &output, &stepErr); err != nil {
			return nil, err
		}
		st.StartedAt = timePtr(started)
		st.EndedAt = timePtr(ended)
		if input.Valid {
			st.Input = json.RawMessage(input.String)
		}
		if output.Valid {
			st.Output = json.RawMessage(output.String)
		}
		if stepErr.Valid {
			msg := stepErr.String
			st.Error = &msg
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

func (s *Store) InsertArtifact(ctx context.Context, a *storage.Artifact) error {
	a.CreatedAt = s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (run_id, type, ref_id, preview_text, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.RunID, a.Type, nullString(a.RefID), nullString(a.PreviewText), formatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert artifact %s: %w", a.Type, err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

func (s *Store) ListArtifacts(ctx context.Context, runID string) ([]storage.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, type, ref_id, preview_text, created_at
		FROM artifacts WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []storage.Artifact
	for rows.Next() {
		var a storage.Artifact
		var ref, preview sql.NullString
		var created string
		if err := rows.Scan(&a.ID, &a.RunID, &a.Type, &ref, &preview, &created); err != nil {
			return nil, err
		}
		a.RefID = ref.String
		a.PreviewText = preview.String
		a.CreatedAt = parseTime(created)
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- drafts ---

func (s *Store) InsertDraft(ctx context.Context, d *model.Draft) error {
	meta, err := json.Marshal(d.Meta)
	if err != nil {
		return fmt.Errorf("marshal draft meta: %w", err)
	}
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (dsl_type, code, meta_json, run_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(d.DslType), d.Code, string(meta), nullString(d.RunID), formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("insert draft: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID, d.CreatedAt, d.UpdatedAt = id, now, now
	return nil
}

func (s *Store) UpdateDraft(ctx context.Context, d *model.Draft) error {
	meta, err := json.Marshal(d.Meta)
	if err != nil {
		return fmt.Errorf("marshal draft meta: %w", err)
	}
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE drafts SET dsl_type = ?, code = ?, meta_json = ?, updated_at = ? WHERE id = ?`,
		string(d.DslType), d.Code, string(meta), formatTime(now), d.ID)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	d.UpdatedAt = now
	return nil
}

func (s *Store) GetDraft(ctx context.Context, id int64) (model.Draft, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, dsl_type, code, meta_json, run_id, created_at, updated_at
		FROM drafts WHERE id = ?`, id)
	d, err := scanDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Draft{}, storage.ErrNotFound
	}
	return d, err
}

func (s *Store) ListDrafts(ctx context.Context, limit int) ([]model.Draft, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dsl_type, code, meta_json, run_id, created_at, updated_at
		FROM drafts ORDER BY created_at DESC, id DESC LIMIT ?`, storage.ClampLimit(limit))
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
	var dslType, meta, created, updated string
	var runID sql.NullString
	if err := row.Scan(&d.ID, &dslType, &d.Code, &meta, &runID, &created, &updated); err != nil {
		return model.Draft{}, err
	}
	d.DslType = model.DslType(dslType)
	d.RunID = runID.String
	d.CreatedAt = parseTime(created)
	d.UpdatedAt = parseTime(updated)
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &d.Meta); err != nil {
			return model.Draft{}, fmt.Errorf("unmarshal draft meta: %w", err)
		}
	}
	return d, nil
}

// --- submissions ---

func (s *Store) InsertSubmission(ctx context.Context, sub *model.InputSubmission) error {
	params, err := json.Marshal(sub.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO input_submissions (text, image_url, params_json, created_at)
		VALUES (?, ?, ?, ?)`,
		nullString(sub.Text), nullString(sub.ImageURL), string(params), formatTime(now))
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	sub.ID, sub.CreatedAt = id, now
	return nil
}

func (s *Store) GetSubmission(ctx context.Context, id int64) (model.InputSubmission, error) {
	var sub model.InputSubmission
	var text, imageURL, runID sql.NullString
	var params, created string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, text, image_url, params_json, run_id, created_at
		FROM input_submissions WHERE id = ?`, id,
	).Scan(&sub.ID, &text, &imageURL, &params, &runID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.InputSubmission{}, storage.ErrNotFound
	}
	if err != nil {
		return model.InputSubmission{}, fmt.Errorf("get submission: %w", err)
	}
	sub.Text, sub.ImageURL, sub.RunID = text.String, imageURL.String, runID.String
	sub.CreatedAt = parseTime(created)
	if err := json.Unmarshal([]byte(params), &sub.Params); err != nil {
		return model.InputSubmission{}, fmt.Errorf("unmarshal params: %w", err)
	}
	return sub, nil
}

func (s *Store) AttachSubmissionRun(ctx context.Context, id int64, runID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE input_submissions SET run_id = ? WHERE id = ?`, runID, id)
	if err != nil {
		return fmt.Errorf("attach submission run: %w", err)
	}
	return requireRow(res)
}

// --- svg draws ---

func (s *Store) InsertSvgDraw(ctx context.Context, d *model.SvgDraw) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO svg_draw (name, svg_content, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		d.Name, d.SvgContent, formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("insert svg draw: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID, d.CreatedAt, d.UpdatedAt = id, now, now
	return nil
}

func (s *Store) UpdateSvgDraw(ctx context.Context, d *model.SvgDraw) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE svg_draw SET name = ?, svg_content = ?, updated_at = ? WHERE id = ?`,
		d.Name, d.SvgContent, formatTime(now), d.ID)
	if err != nil {
		return fmt.Errorf("update svg draw: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	existing, err := s.GetSvgDraw(ctx, d.ID)
	if err != nil {
		return err
	}
	d.CreatedAt, d.UpdatedAt = existing.CreatedAt, existing.UpdatedAt
	return nil
}

func (s *Store) GetSvgDraw(ctx context.Context, id int64) (model.SvgDraw, error) {
	var d model.SvgDraw
	var created, updated string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, svg_content, created_at, updated_at FROM svg_draw WHERE id = ?`, id,
	).Scan(&d.ID, &d.Name, &d.SvgContent, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SvgDraw{}, storage.ErrNotFound
	}
	if err != nil {
		return model.SvgDraw{}, fmt.Errorf("get svg draw: %w", err)
	}
	d.CreatedAt, d.UpdatedAt = parseTime(created), parseTime(updated)
	return d, nil
}

func (s *Store) ListSvgDraws(ctx context.Context) ([]model.SvgDraw, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, svg_content, created_at, updated_at
		FROM svg_draw ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list svg draws: %w", err)
	}
	defer rows.Close()

	var out []model.SvgDraw
	for rows.Next() {
		var d model.SvgDraw
		var created, updated string
		if err := rows.Scan(&d.ID, &d.Name, &d.SvgContent, &created, &updated); err != nil {
			return nil, err
		}
		d.CreatedAt, d.UpdatedAt = parseTime(created), parseTime(updated)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) DeleteSvgDraw(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM svg_draw WHERE id = ?`, id)
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

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func timePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
