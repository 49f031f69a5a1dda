// Package ledger records the lifecycle of orchestrator runs: their status,
// the ordered step log and the artifacts each run produced.
//
// Every write goes to a storage.RunStore and is mirrored as a structured
// event. Storage failures are returned to the caller, never swallowed.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AaronLay10/DiagramEngine/internal/events"
	"github.com/AaronLay10/DiagramEngine/internal/model"
	"github.com/AaronLay10/DiagramEngine/internal/storage"
)

var (
	// ErrRunClosed is returned for writes against a run in a terminal status.
	ErrRunClosed = errors.New("ledger: run is closed")
	// ErrStepNotStarted is returned when ending a step that was never started.
	ErrStepNotStarted = errors.New("ledger: step not started")
	// ErrInvalidTransition is returned for status changes outside the run state machine.
	ErrInvalidTransition = errors.New("ledger: invalid status transition")
)

// Ledger writes run records to a store.
type Ledger struct {
	store  storage.RunStore
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// New returns a ledger backed by store. A nil logger discards logs.
func New(store storage.RunStore, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Run is a handle on a run being recorded.
type Run struct {
	ID string

	mu     sync.Mutex
	status model.RunStatus
}

// Status returns the last status written for the run.
func (r *Run) Status() model.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Run) closed() bool {
	return r.Status().Terminal()
}

// Step is a handle on one step log entry.
type Step struct {
	run *Run
	row storage.Step
}

// Name is the step name as logged.
func (s *Step) Name() string { return s.row.Name }

// Started reports whether StartStep has been recorded.
func (s *Step) Started() bool { return s.row.StartedAt != nil }

// CreateRun records a new run in status created.
func (l *Ledger) CreateRun(ctx context.Context) (*Run, error) {
	id := l.newID()
	if _, err := l.store.InsertRun(ctx, id, model.RunCreated); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	l.logger.Info("run created", zap.String("run_id", id))
	emit("info", "run.created", "", map[string]interface{}{"run_id": id})
	return &Run{ID: id, status: model.RunCreated}, nil
}

// LogStep appends a step entry with its input snapshot. The step is not
// started; call StartStep before EndStep.
func (l *Ledger) LogStep(ctx context.Context, run *Run, name string, input any) (*Step, error) {
	if run.closed() {
		return nil, ErrRunClosed
	}
	snap, err := model.Snapshot(input)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s input: %w", name, err)
	}
	step := &Step{run: run, row: storage.Step{RunID: run.ID, Name: name, Input: snap}}
	if err := l.store.InsertStep(ctx, &step.row); err != nil {
		return nil, fmt.Errorf("log step %s: %w", name, err)
	}
	return step, nil
}

// StartStep stamps the step's start time.
func (l *Ledger) StartStep(ctx context.Context, step *Step) error {
	if step.run.closed() {
		return ErrRunClosed
	}
	now := l.now()
	step.row.StartedAt = &now
	if err := l.store.UpdateStep(ctx, &step.row); err != nil {
		step.row.StartedAt = nil
		return fmt.Errorf("start step %s: %w", step.Name(), err)
	}
	l.logger.Debug("step started", zap.String("run_id", step.run.ID), zap.String("step", step.Name()))
	emit("info", "step.started", "", map[string]interface{}{
		"run_id": step.run.ID,
		"step":   step.Name(),
	})
	return nil
}

// EndStep stamps the end time and records output and/or the step error.
// A nil output keeps whatever output was already recorded.
func (l *Ledger) EndStep(ctx context.Context, step *Step, output any, stepErr error) error {
	if step.run.closed() {
		return ErrRunClosed
	}
	if !step.Started() {
		return fmt.Errorf("end step %s: %w", step.Name(), ErrStepNotStarted)
	}

	ended := l.now()
	if ended.Before(*step.row.StartedAt) {
		ended = *step.row.StartedAt
	}
	row := step.row
	row.EndedAt = &ended
	if output != nil {
		snap, err := model.Snapshot(output)
		if err != nil {
			return fmt.Errorf("snapshot %s output: %w", row.Name, err)
		}
		row.Output = snap
	}
	if stepErr != nil {
		msg := stepErr.Error()
		row.Error = &msg
	}
	if err := l.store.UpdateStep(ctx, &row); err != nil {
		return fmt.Errorf("end step %s: %w", row.Name, err)
	}
	step.row = row

	fields := map[string]interface{}{
		"run_id":      step.run.ID,
		"step":        row.Name,
		"duration_ms": ended.Sub(*row.StartedAt).Milliseconds(),
	}
	if stepErr != nil {
		fields["error"] = stepErr.Error()
		l.logger.Warn("step failed", zap.String("run_id", step.run.ID), zap.String("step", row.Name), zap.Error(stepErr))
		emit("error", "step.failed", "", fields)
		return nil
	}
	l.logger.Debug("step completed", zap.String("run_id", step.run.ID), zap.String("step", row.Name))
	emit("info", "step.completed", "", fields)
	return nil
}

// AddArtifact records an artifact produced by the run.
func (l *Ledger) AddArtifact(ctx context.Context, run *Run, typ, refID, preview string) error {
	if run.closed() {
		return ErrRunClosed
	}
	a := &storage.Artifact{RunID: run.ID, Type: typ, RefID: refID, PreviewText: preview}
	if err := l.store.InsertArtifact(ctx, a); err != nil {
		return fmt.Errorf("add artifact %s: %w", typ, err)
	}
	l.logger.Debug("artifact added", zap.String("run_id", run.ID), zap.String("type", typ))
	emit("info", "artifact.added", "", map[string]interface{}{
		"run_id": run.ID,
		"type":   typ,
		"ref_id": refID,
	})
	return nil
}

// UpdateStatus moves the run to status. Terminal runs are immutable.
func (l *Ledger) UpdateStatus(ctx context.Context, run *Run, status model.RunStatus) error {
	run.mu.Lock()
	defer run.mu.Unlock()

	if run.status.Terminal() {
		return ErrRunClosed
	}
	if !model.CanTransition(run.status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, run.status, status)
	}
	if err := l.store.UpdateRunStatus(ctx, run.ID, status); err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	run.status = status

	l.logger.Info("run status updated", zap.String("run_id", run.ID), zap.String("status", string(status)))
	name, level := statusEvent(status)
	emit(level, name, "", map[string]interface{}{"run_id": run.ID, "status": string(status)})
	return nil
}

// LogFailure appends the terminal "error" step carrying err's message.
func (l *Ledger) LogFailure(ctx context.Context, run *Run, runErr error) error {
	if run.closed() {
		return ErrRunClosed
	}
	msg := runErr.Error()
	row := storage.Step{RunID: run.ID, Name: StepError, Error: &msg}
	if err := l.store.InsertStep(ctx, &row); err != nil {
		return fmt.Errorf("log failure: %w", err)
	}
	return nil
}

// StepError names the step recorded when a run fails.
const StepError = "error"

// Record loads the full record of a run.
func (l *Ledger) Record(ctx context.Context, runID string) (*model.RunRecord, error) {
	run, err := l.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	steps, err := l.store.ListSteps(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	artifacts, err := l.Artifacts(ctx, runID)
	if err != nil {
		return nil, err
	}

	rec := &model.RunRecord{
		RunID:     run.ID,
		Status:    run.Status,
		Steps:     make([]model.StepLog, 0, len(steps)),
		Artifacts: artifacts,
	}
	for _, s := range steps {
		rec.Steps = append(rec.Steps, model.StepLog{
			Name:      s.Name,
			StartedAt: s.StartedAt,
			EndedAt:   s.EndedAt,
			Input:     s.Input,
			Output:    s.Output,
			Error:     s.Error,
		})
	}
	return rec, nil
}

// Artifacts lists a run's artifacts in creation order.
func (l *Ledger) Artifacts(ctx context.Context, runID string) ([]model.ArtifactInfo, error) {
	rows, err := l.store.ListArtifacts(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	out := make([]model.ArtifactInfo, 0, len(rows))
	for _, a := range rows {
		out = append(out, model.ArtifactInfo{Type: a.Type, RefID: a.RefID, PreviewText: a.PreviewText})
	}
	return out, nil
}

func statusEvent(s model.RunStatus) (name, level string) {
	switch s {
	case model.RunRunning:
		return "run.running", "info"
	case model.RunSuccess:
		return "run.succeeded", "info"
	case model.RunFailed:
		return "run.failed", "error"
	default:
		return "run.created", "info"
	}
}

func emit(level, name, msg string, fields map[string]interface{}) {
	// Names are fixed in this package and registered.
	_, _ = events.Emit(level, name, msg, fields)
}
