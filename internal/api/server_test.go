package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AaronLay10/DiagramEngine/internal/codegen"
	"github.com/AaronLay10/DiagramEngine/internal/ledger"
	"github.com/AaronLay10/DiagramEngine/internal/llm"
	"github.com/AaronLay10/DiagramEngine/internal/model"
	"github.com/AaronLay10/DiagramEngine/internal/orchestrator"
	"github.com/AaronLay10/DiagramEngine/internal/storage"
	"github.com/AaronLay10/DiagramEngine/internal/storage/memory"
)

type testEnv struct {
	store  *memory.Store
	server *Server
}

func newTestEnv(t *testing.T, debug bool, gen *codegen.Generator) *testEnv {
	t.Helper()
	store := memory.New()
	l := ledger.New(store, nil)
	orch, err := orchestrator.New(orchestrator.Deps{Ledger: l, Drafts: store, Generator: gen})
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	s := New(Deps{Runner: orch, Ledger: l, Store: store, Debug: debug})
	return &testEnv{store: store, server: s}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

// apiResponse is the decoded {ok,data,error} envelope.
type apiResponse struct {
	OK       bool
	Error    string
	HasError bool
}

// envelope decodes an {ok,data,error} response, decoding data into v.
func envelope(t *testing.T, w *httptest.ResponseRecorder, v any) apiResponse {
	t.Helper()
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	for _, key := range []string{"ok", "data", "error"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("envelope is missing %q: %v", key, raw)
		}
	}
	var resp apiResponse
	_ = json.Unmarshal(raw["ok"], &resp.OK)
	if string(raw["error"]) != "null" {
		resp.HasError = true
		_ = json.Unmarshal(raw["error"], &resp.Error)
	}
	if v != nil && string(raw["data"]) != "null" {
		if err := json.Unmarshal(raw["data"], v); err != nil {
			t.Fatalf("failed to decode data: %v", err)
		}
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, false, nil)
	w := env.do(t, "GET", "/health", "")

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Service != "diagram-engine" {
		t.Errorf("unexpected health: %+v", resp)
	}
}

type downStore struct{ *memory.Store }

func (downStore) Ping(ctx context.Context) error { return errors.New("connection refused") }

func TestReadyEndpoint(t *testing.T) {
	env := newTestEnv(t, false, nil)
	w := env.do(t, "GET", "/ready", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp ReadinessResponse
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if !resp.Ready || resp.Checks["storage"].Status != "ok" || resp.Checks["mqtt"].Status != "disabled" {
		t.Errorf("unexpected readiness: %+v", resp)
	}
}

func TestReadyEndpoint_StorageDown(t *testing.T) {
	store := downStore{memory.New()}
	s := New(Deps{Ledger: ledger.New(store, nil), Store: store})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
	var resp ReadinessResponse
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if resp.Ready || resp.NotReadyMsg == "" {
		t.Errorf("unexpected readiness: %+v", resp)
	}
}

func TestReadyEndpoint_OptionalMQTTUnavailable(t *testing.T) {
	store := memory.New()
	s := New(Deps{Ledger: ledger.New(store, nil), Store: store, MQTT: func() (bool, bool) { return true, false }})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/ready", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 (optional dependency), got %d", w.Code)
	}
	var resp ReadinessResponse
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if resp.Checks["mqtt"].Status != "optional_unavailable" {
		t.Errorf("unexpected mqtt check: %+v", resp.Checks["mqtt"])
	}
}

func TestRunEndpoint_Inline(t *testing.T) {
	env := newTestEnv(t, false, nil)
	w := env.do(t, "POST", "/api/orchestrator/run", `{"text":"draw a network topology","output_mode":"auto"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res orchestrator.Result
	if e := envelope(t, w, &res); !e.OK || e.HasError {
		t.Fatalf("expected ok with a null error, got %+v", e)
	}
	if res.Status != model.RunSuccess || res.Draft.Code != "digraph G { A -> B; }" || res.DraftID == nil {
		t.Errorf("unexpected result: %+v", res)
	}

	w = env.do(t, "GET", "/api/runs/"+res.RunID, "")
	var rec model.RunRecord
	if e := envelope(t, w, &rec); !e.OK || rec.Status != model.RunSuccess || len(rec.Steps) != 3 {
		t.Errorf("unexpected run record: %+v", rec)
	}

	w = env.do(t, "GET", "/api/runs/"+res.RunID+"/artifacts", "")
	var arts []model.ArtifactInfo
	if e := envelope(t, w, &arts); !e.OK || len(arts) != 4 {
		t.Errorf("expected 4 artifacts, got %+v", arts)
	}
}

func TestRunEndpoint_Submission(t *testing.T) {
	env := newTestEnv(t, false, nil)
	w := env.do(t, "POST", "/api/inputs/submit", `{"text":"approval workflow","enable_kg":true,"output_mode":"preview-only"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var sub submitResponse
	envelope(t, w, &sub)
	if sub.SubmissionID == 0 || !sub.Payload.Options.EnableKG {
		t.Fatalf("unexpected submission: %+v", sub)
	}

	w = env.do(t, "POST", "/api/orchestrator/run", `{"submission_id":1}`)
	var res orchestrator.Result
	if e := envelope(t, w, &res); !e.OK {
		t.Fatalf("run failed: %s", e.Error)
	}
	if res.DraftID != nil {
		t.Error("preview-only submission must not persist a draft")
	}
	stored, _ := env.store.GetSubmission(context.Background(), sub.SubmissionID)
	if stored.RunID != res.RunID {
		t.Errorf("submission not linked to run: %+v", stored)
	}
}

func TestRunEndpoint_Errors(t *testing.T) {
	env := newTestEnv(t, false, nil)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"bad json", `{"text":`, http.StatusBadRequest},
		{"bad mode", `{"text":"x","output_mode":"plantuml"}`, http.StatusBadRequest},
		{"unknown submission", `{"submission_id":99}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/orchestrator/run", tt.body)
			if w.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, w.Code)
			}
			if e := envelope(t, w, nil); e.OK || e.Error == "" {
				t.Errorf("expected error envelope, got %+v", e)
			}
		})
	}
}

func TestRunEndpoint_FailedRun(t *testing.T) {
	chat := llm.NewOpenAI(llm.Settings{})

	for _, debug := range []bool{false, true} {
		env := newTestEnv(t, debug, codegen.New(codegen.WithChat(chat)))
		w := env.do(t, "POST", "/api/orchestrator/run", `{"text":"x","output_mode":"svg"}`)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", w.Code)
		}
		var data map[string]string
		e := envelope(t, w, &data)
		if data["run_id"] == "" {
			t.Error("failed run must report its run_id")
		}
		if debug && !strings.Contains(e.Error, "api_key") {
			t.Errorf("debug mode should expose the error, got %q", e.Error)
		}
		if !debug && e.Error != genericError {
			t.Errorf("production mode should hide the error, got %q", e.Error)
		}

		rec := env.do(t, "GET", "/api/runs/"+data["run_id"], "")
		var record model.RunRecord
		envelope(t, rec, &record)
		if record.Status != model.RunFailed || record.LastStep().Name != "error" {
			t.Errorf("unexpected record: %+v", record)
		}
	}
}

func TestGetRun_NotFound(t *testing.T) {
	env := newTestEnv(t, false, nil)
	for _, path := range []string{"/api/runs/nope", "/api/runs/nope/artifacts", "/api/runs/nope/report"} {
		if w := env.do(t, "GET", path, ""); w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
	}
}

func TestRunReport(t *testing.T) {
	env := newTestEnv(t, false, nil)
	w := env.do(t, "POST", "/api/orchestrator/run", `{"text":"network"}`)
	var res orchestrator.Result
	envelope(t, w, &res)

	w = env.do(t, "GET", "/api/runs/"+res.RunID+"/report", "")
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("unexpected content type %q", ct)
	}
	if !strings.Contains(w.Body.String(), "digraph G { A -&gt; B; }") {
		t.Errorf("report should include the draft:\n%s", w.Body.String())
	}

	w = env.do(t, "GET", "/api/runs/"+res.RunID+"/report?format=md", "")
	if !strings.HasPrefix(w.Body.String(), "# Run "+res.RunID) {
		t.Errorf("unexpected markdown:\n%s", w.Body.String())
	}
}

func TestDraftEndpoints(t *testing.T) {
	env := newTestEnv(t, false, nil)

	w := env.do(t, "POST", "/api/editors/drafts", `{"dsl_type":"mermaid","code":"graph TD; A-->B","meta":{"title":"t"}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created model.Draft
	envelope(t, w, &created)

	w = env.do(t, "PUT", "/api/editors/drafts/1", `{"code":"graph TD; A-->C"}`)
	var updated model.Draft
	if e := envelope(t, w, &updated); !e.OK || updated.Code != "graph TD; A-->C" || updated.Meta.Title != "t" {
		t.Errorf("unexpected update: %+v", updated)
	}

	w = env.do(t, "GET", "/api/editors/drafts/1", "")
	var got model.Draft
	if envelope(t, w, &got); got.Code != "graph TD; A-->C" {
		t.Errorf("unexpected detail: %+v", got)
	}

	w = env.do(t, "GET", "/api/editors/drafts?limit=500", "")
	var list []map[string]any
	envelope(t, w, &list)
	if len(list) != 1 {
		t.Fatalf("expected 1 draft, got %d", len(list))
	}
	if _, hasCode := list[0]["code"]; hasCode {
		t.Error("list entries must not carry code")
	}
}

func TestDraftEndpoints_Errors(t *testing.T) {
	env := newTestEnv(t, false, nil)
	tests := []struct {
		method, path, body string
		status             int
	}{
		{"POST", "/api/editors/drafts", `{"dsl_type":"mermaid"}`, http.StatusBadRequest},
		{"POST", "/api/editors/drafts/create", `{"dsl_type":"plantuml","code":"x"}`, http.StatusBadRequest},
		{"GET", "/api/editors/drafts/42", "", http.StatusNotFound},
		{"GET", "/api/editors/drafts/abc", "", http.StatusNotFound},
		{"PUT", "/api/editors/drafts/42", `{"code":"x"}`, http.StatusNotFound},
		{"GET", "/api/editors/drafts?limit=ten", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := env.do(t, tt.method, tt.path, tt.body); w.Code != tt.status {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.status, w.Code)
		}
	}
}

func TestSvgDrawCRUD(t *testing.T) {
	env := newTestEnv(t, false, nil)

	decode := func(w *httptest.ResponseRecorder) legacyEnvelope {
		var e legacyEnvelope
		if err := json.NewDecoder(w.Body).Decode(&e); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return e
	}

	w := env.do(t, "POST", "/api/svg-draws/", `{"name":"logo","svg_content":"<svg></svg>"}`)
	if e := decode(w); e.Code != 0 || e.Message != "创建成功" {
		t.Fatalf("unexpected create: %+v", e)
	}

	w = env.do(t, "PUT", "/api/svg-draws/1/", `{"name":"logo2","svg_content":"<svg/>"}`)
	if e := decode(w); e.Code != 0 || e.Message != "更新成功" {
		t.Errorf("unexpected update: %+v", e)
	}

	w = env.do(t, "GET", "/api/svg-draws", "")
	if e := decode(w); e.Code != 0 || len(e.Data.([]any)) != 1 {
		t.Errorf("unexpected list: %+v", e)
	}

	w = env.do(t, "DELETE", "/api/svg-draws/1/", "")
	if e := decode(w); e.Code != 0 || e.Message != "删除成功" {
		t.Errorf("unexpected delete: %+v", e)
	}

	w = env.do(t, "GET", "/api/svg-draws/1/", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if e := decode(w); e.Code != 404 || e.Message != "资源不存在" {
		t.Errorf("unexpected missing: %+v", e)
	}

	w = env.do(t, "POST", "/api/svg-draws/", `{"name":""}`)
	if e := decode(w); w.Code != http.StatusBadRequest || e.Code != 1 {
		t.Errorf("expected validation failure, got %d %+v", w.Code, e)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, false, nil)
	env.do(t, "POST", "/api/orchestrator/run", `{"text":"network"}`)

	w := env.do(t, "GET", "/metrics", "")
	body := w.Body.String()
	for _, want := range []string{
		"# TYPE diagram_uptime_seconds gauge",
		`status="success"} 1`,
		`status="failed"} 0`,
		"diagram_storage_up{",
		"diagram_ws_clients{",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestEventsEndpoint_FilterByRun(t *testing.T) {
	env := newTestEnv(t, false, nil)
	w := env.do(t, "POST", "/api/orchestrator/run", `{"text":"network"}`)
	var res orchestrator.Result
	envelope(t, w, &res)

	w = env.do(t, "GET", "/events?run_id="+res.RunID, "")
	var list []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) == 0 {
		t.Fatal("expected events for the run")
	}
	for _, e := range list {
		fields, _ := e["fields"].(map[string]any)
		if fields["run_id"] != res.RunID {
			t.Errorf("event from another run: %v", e)
		}
	}
}

func TestConsoleUI(t *testing.T) {
	env := newTestEnv(t, false, nil)
	w := env.do(t, "GET", "/", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/ws/events") {
		t.Errorf("unexpected console response %d", w.Code)
	}
	if w := env.do(t, "GET", "/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown path, got %d", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &model.ValidationError{Field: "text", Reason: "x"}, http.StatusBadRequest},
		{"not found", storage.ErrNotFound, http.StatusNotFound},
		{"unsupported dsl", fmt.Errorf("generate: %w", codegen.ErrUnsupportedDSL), http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
