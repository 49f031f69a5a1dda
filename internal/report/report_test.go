package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/AaronLay10/DiagramEngine/internal/model"
)

func sampleRecord() *model.RunRecord {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(1500 * time.Millisecond)
	msg := "LLM credentials | missing"
	return &model.RunRecord{
		RunID:  "run-1",
		Status: model.RunFailed,
		Steps: []model.StepLog{
			{Name: "perception", StartedAt: &start, EndedAt: &end},
			{Name: "error", Error: &msg},
		},
		Artifacts: []model.ArtifactInfo{
			{Type: model.ArtifactSceneSpec, PreviewText: "Intent: network_graph"},
		},
	}
}

func TestMarkdown(t *testing.T) {
	out := Markdown(sampleRecord(), nil)

	for _, want := range []string{
		"# Run run-1",
		"Status: **failed**",
		"Failed at step `error`: LLM credentials | missing",
		"| 1 | perception | 2026-03-01T12:00:00Z | 1.5s |  |",
		`LLM credentials \| missing`,
		"| scene_spec |  | Intent: network_graph |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "## Draft") {
		t.Error("no draft section expected")
	}
}

func TestMarkdown_Empty(t *testing.T) {
	out := Markdown(&model.RunRecord{RunID: "r", Status: model.RunCreated}, nil)
	if !strings.Contains(out, "No steps recorded.") || !strings.Contains(out, "No artifacts recorded.") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "Failed at step") {
		t.Error("no failure line expected for a run that has not failed")
	}
}

func TestHTML(t *testing.T) {
	draft := &model.Draft{ID: 7, DslType: model.DslGraphviz, Code: "digraph G { A -> B; }"}
	out, err := HTML(sampleRecord(), draft)
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	for _, want := range []string{
		"<h1>Run run-1</h1>",
		"<table>",
		"<td>perception</td>",
		`<code class="language-graphviz">digraph G { A -&gt; B; }`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("html missing %q:\n%s", want, out)
		}
	}
}

type draftMap map[int64]model.Draft

func (m draftMap) GetDraft(ctx context.Context, id int64) (model.Draft, error) {
	d, ok := m[id]
	if !ok {
		return model.Draft{}, errors.New("not found")
	}
	return d, nil
}

func TestRunDraft(t *testing.T) {
	drafts := draftMap{7: {ID: 7, DslType: model.DslMermaid, Code: "graph TD; A-->B"}}
	rec := sampleRecord()

	d, err := RunDraft(context.Background(), rec, drafts)
	if err != nil || d != nil {
		t.Fatalf("run without code artifact: got %v, %v", d, err)
	}

	rec.Artifacts = append(rec.Artifacts, model.ArtifactInfo{Type: model.ArtifactCode, RefID: "7"})
	d, err = RunDraft(context.Background(), rec, drafts)
	if err != nil || d == nil || d.Code != "graph TD; A-->B" {
		t.Fatalf("unexpected draft: %v, %v", d, err)
	}

	rec.Artifacts[len(rec.Artifacts)-1].RefID = "8"
	if _, err := RunDraft(context.Background(), rec, drafts); err == nil {
		t.Error("expected error for a missing draft")
	}
}
