package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// RunStatus represents the lifecycle state of a run.
type RunStatus string

const (
	RunCreated RunStatus = "created"
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// Terminal returns true once the run can no longer change.
func (s RunStatus) Terminal() bool {
	return s == RunSuccess || s == RunFailed
}

// CanTransition reports whether from -> to is allowed. Status only moves
// forward; nothing re-enters created and terminal states are final.
func CanTransition(from, to RunStatus) bool {
	switch from {
	case RunCreated:
		return to == RunRunning || to == RunFailed
	case RunRunning:
		return to == RunSuccess || to == RunFailed
	}
	return false
}

// Artifact type tags.
const (
	ArtifactSceneSpec = "scene_spec"
	ArtifactFinalSpec = "final_spec"
	ArtifactDslDraft  = "dsl_draft"
	ArtifactCode      = "code"
)

// StepLog is one recorded pipeline step. Input and Output hold the JSON
// snapshot exactly as it was written.
type StepLog struct {
	Name      string          `json:"name"`
	StartedAt *time.Time      `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at"`
	Input     json.RawMessage `json:"input"`
	Output    json.RawMessage `json:"output"`
	Error     *string         `json:"error"`
}

// UnmarshalJSON keeps a null snapshot as nil so records round-trip.
func (s *StepLog) UnmarshalJSON(b []byte) error {
	type plain StepLog
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if string(p.Input) == "null" {
		p.Input = nil
	}
	if string(p.Output) == "null" {
		p.Output = nil
	}
	*s = StepLog(p)
	return nil
}

// ArtifactInfo is a logged pointer to an intermediate or final output.
type ArtifactInfo struct {
	Type        string `json:"type"`
	RefID       string `json:"ref_id"`
	PreviewText string `json:"preview_text"`
}

// RunRecord is the full inspectable log of one run.
type RunRecord struct {
	RunID     string         `json:"run_id"`
	Status    RunStatus      `json:"status"`
	Steps     []StepLog      `json:"steps"`
	Artifacts []ArtifactInfo `json:"artifacts"`
}

// LastStep returns the most recently logged step, or nil.
func (r *RunRecord) LastStep() *StepLog {
	if len(r.Steps) == 0 {
		return nil
	}
	return &r.Steps[len(r.Steps)-1]
}

// Snapshot encodes v for storage in a step log. A nil value stays nil so
// the column is stored as NULL.
func Snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return b, nil
}

// Preview shortens s to at most limit runes, marking the cut with "...".
func Preview(s string, limit int) string {
	if cut := Clip(s, limit); cut != s {
		return cut + "..."
	}
	return s
}

// Clip shortens s to at most limit runes without a marker.
func Clip(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
