// Package storage defines the persistence contracts used by the pipeline
// and the HTTP boundary. Backends live in the memory, postgres and sqlite
// subpackages.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/AaronLay10/DiagramEngine/internal/model"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("storage: not found")

// Run is the stored header of a run.
type Run struct {
	ID        string
	Status    model.RunStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Step is a stored step log row. ID is assigned by the store and gives
// the insertion order.
type Step struct {
	ID        int64
	RunID     string
	Name      string
	StartedAt *time.Time
	EndedAt   *time.Time
	Input     json.RawMessage
	Output    json.RawMessage
	Error     *string
}

// Artifact is a stored artifact row.
type Artifact struct {
	ID          int64
	RunID       string
	Type        string
	RefID       string
	PreviewText string
	CreatedAt   time.Time
}

// RunStore persists runs, their steps and their artifacts.
type RunStore interface {
	InsertRun(ctx context.Context, id string, status model.RunStatus) (Run, error)
	UpdateRunStatus(ctx context.Context, id string, status model.RunStatus) error
	GetRun(ctx context.Context, id string) (Run, error)
	InsertStep(ctx context.Context, step *Step) error
	UpdateStep(ctx context.Context, step *Step) error
	ListSteps(ctx context.Context, runID string) ([]Step, error)
	InsertArtifact(ctx context.Context, a *Artifact) error
	ListArtifacts(ctx context.Context, runID string) ([]Artifact, error)
}

// DraftStore persists generated drafts.
type DraftStore interface {
	InsertDraft(ctx context.Context, d *model.Draft) error
	UpdateDraft(ctx context.Context, d *model.Draft) error
	GetDraft(ctx context.Context, id int64) (model.Draft, error)
	ListDrafts(ctx context.Context, limit int) ([]model.Draft, error)
}

// SubmissionStore persists input submissions.
type SubmissionStore interface {
	InsertSubmission(ctx context.Context, s *model.InputSubmission) error
	GetSubmission(ctx context.Context, id int64) (model.InputSubmission, error)
	AttachSubmissionRun(ctx context.Context, id int64, runID string) error
}

// SvgDrawStore persists drawings of the legacy CRUD surface.
type SvgDrawStore interface {
	InsertSvgDraw(ctx context.Context, d *model.SvgDraw) error
	UpdateSvgDraw(ctx context.Context, d *model.SvgDraw) error
	GetSvgDraw(ctx context.Context, id int64) (model.SvgDraw, error)
	ListSvgDraws(ctx context.Context) ([]model.SvgDraw, error)
	DeleteSvgDraw(ctx context.Context, id int64) error
}

// Store is implemented by every backend.
type Store interface {
	RunStore
	DraftStore
	SubmissionStore
	SvgDrawStore
	Ping(ctx context.Context) error
	Close() error
}

// DefaultDraftListLimit caps draft listings.
const DefaultDraftListLimit = 50

// ClampLimit applies the default and upper bound to a listing limit.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > DefaultDraftListLimit {
		return DefaultDraftListLimit
	}
	return limit
}
