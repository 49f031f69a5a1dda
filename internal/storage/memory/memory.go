// Package memory is an in-process storage backend. It is used by tests, the
// CLI and development servers that do not need durability.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AaronLay10/DiagramEngine/internal/model"
	"github.com/AaronLay10/DiagramEngine/internal/storage"
)

// Store keeps every record in maps guarded by a single mutex.
type Store struct {
	mu sync.RWMutex

	runs      map[string]*storage.Run
	steps     map[string][]*storage.Step
	artifacts map[string][]*storage.Artifact

	drafts      map[int64]*model.Draft
	submissions map[int64]*model.InputSubmission
	svgDraws    map[int64]*model.SvgDraw

	nextStepID       int64
	nextArtifactID   int64
	nextDraftID      int64
	nextSubmissionID int64
	nextSvgDrawID    int64

	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		runs:        make(map[string]*storage.Run),
		steps:       make(map[string][]*storage.Step),
		artifacts:   make(map[string][]*storage.Artifact),
		drafts:      make(map[int64]*model.Draft),
		submissions: make(map[int64]*model.InputSubmission),
		svgDraws:    make(map[int64]*model.SvgDraw),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

var _ storage.Store = (*Store)(nil)

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close() error                   { return nil }

// --- runs ---

func (s *Store) InsertRun(ctx context.Context, id string, status model.RunStatus) (storage.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	r := &storage.Run{ID: id, Status: status, CreatedAt: now, UpdatedAt: now}
	s.runs[id] = r
	return *r, nil
}

func (s *Store) UpdateRunStatus(ctx context.Context, id string, status model.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return storage.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = s.now()
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (storage.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return storage.Run{}, storage.ErrNotFound
	}
	return *r, nil
}

func (s *Store) InsertStep(ctx context.Context, step *storage.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[step.RunID]; !ok {
		return storage.ErrNotFound
	}
	s.nextStepID++
	step.ID = s.nextStepID
	cpy := *step
	s.steps[step.RunID] = append(s.steps[step.RunID], &cpy)
	return nil
}

func (s *Store) UpdateStep(ctx context.Context, step *storage.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.steps[step.RunID] {
		if existing.ID == step.ID {
			*existing = *step
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *Store) ListSteps(ctx context.Context, runID string) ([]storage.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.Step, 0, len(s.steps[runID]))
	for _, st := range s.steps[runID] {
		out = append(out, *st)
	}
	return out, nil
}

func (s *Store) InsertArtifact(ctx context.Context, a *storage.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[a.RunID]; !ok {
		return storage.ErrNotFound
	}
	s.nextArtifactID++
	a.ID = s.nextArtifactID
	a.CreatedAt = s.now()
	cpy := *a
	s.artifacts[a.RunID] = append(s.artifacts[a.RunID], &cpy)
	return nil
}

func (s *Store) ListArtifacts(ctx context.Context, runID string) ([]storage.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.Artifact, 0, len(s.artifacts[runID]))
	for _, a := range s.artifacts[runID] {
		out = append(out, *a)
	}
	return out, nil
}

// --- drafts ---

func (s *Store) InsertDraft(ctx context.Context, d *model.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextDraftID++
	now := s.now()
	d.ID = s.nextDraftID
	d.CreatedAt, d.UpdatedAt = now, now
	cpy := *d
	s.drafts[d.ID] = &cpy
	return nil
}

func (s *Store) UpdateDraft(ctx context.Context, d *model.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.drafts[d.ID]
	if !ok {
		return storage.ErrNotFound
	}
	d.CreatedAt = existing.CreatedAt
	d.UpdatedAt = s.now()
	cpy := *d
	s.drafts[d.ID] = &cpy
	return nil
}

func (s *Store) GetDraft(ctx context.Context, id int64) (model.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[id]
	if !ok {
		return model.Draft{}, storage.ErrNotFound
	}
	return *d, nil
}

func (s *Store) ListDrafts(ctx context.Context, limit int) ([]model.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Draft, 0, len(s.drafts))
	for _, d := range s.drafts {
		out = append(out, *d)
	}
	// Newest first; ids are monotonic so they break timestamp ties.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit = storage.ClampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- submissions ---

func (s *Store) InsertSubmission(ctx context.Context, sub *model.InputSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubmissionID++
	sub.ID = s.nextSubmissionID
	sub.CreatedAt = s.now()
	cpy := *sub
	s.submissions[sub.ID] = &cpy
	return nil
}

func (s *Store) GetSubmission(ctx context.Context, id int64) (model.InputSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[id]
	if !ok {
		return model.InputSubmission{}, storage.ErrNotFound
	}
	return *sub, nil
}

func (s *Store) AttachSubmissionRun(ctx context.Context, id int64, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return storage.ErrNotFound
	}
	sub.RunID = runID
	return nil
}

// --- svg draws ---

func (s *Store) InsertSvgDraw(ctx context.Context, d *model.SvgDraw) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSvgDrawID++
	now := s.now()
	d.ID = s.nextSvgDrawID
	d.CreatedAt, d.UpdatedAt = now, now
	cpy := *d
	s.svgDraws[d.ID] = &cpy
	return nil
}

func (s *Store) UpdateSvgDraw(ctx context.Context, d *model.SvgDraw) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.svgDraws[d.ID]
	if !ok {
		return storage.ErrNotFound
	}
	d.CreatedAt = existing.CreatedAt
	d.UpdatedAt = s.now()
	cpy := *d
	s.svgDraws[d.ID] = &cpy
	return nil
}

func (s *Store) GetSvgDraw(ctx context.Context, id int64) (model.SvgDraw, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.svgDraws[id]
	if !ok {
		return model.SvgDraw{}, storage.ErrNotFound
	}
	return *d, nil
}

func (s *Store) ListSvgDraws(ctx context.Context) ([]model.SvgDraw, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.SvgDraw, 0, len(s.svgDraws))
	for _, d := range s.svgDraws {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) DeleteSvgDraw(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.svgDraws[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.svgDraws, id)
	return nil
}
