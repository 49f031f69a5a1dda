// Package api is the HTTP boundary of the engine: submissions, runs, run
// records, draft editing, the legacy SVG drawing CRUD, and the operational
// endpoints (health, readiness, metrics, live events).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AaronLay10/DiagramEngine/internal/events"
	"github.com/AaronLay10/DiagramEngine/internal/ledger"
	"github.com/AaronLay10/DiagramEngine/internal/model"
	"github.com/AaronLay10/DiagramEngine/internal/orchestrator"
	"github.com/AaronLay10/DiagramEngine/internal/storage"
	"github.com/AaronLay10/DiagramEngine/internal/version"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, payload model.InputPayload) (*orchestrator.Result, error)
}

// Deps are the collaborators of a Server. Runner, Ledger and Store are
// required.
type Deps struct {
	Runner  Runner
	Ledger  *ledger.Ledger
	Store   storage.Store
	Logger  *zap.Logger
	Alerter *Alerter
	Service string
	// Debug exposes raw error text in 5xx responses.
	Debug bool
	// MQTT reports whether a broker is configured and connected.
	MQTT func() (enabled, connected bool)
}

// Server serves the HTTP API.
type Server struct {
	runner  Runner
	ledger  *ledger.Ledger
	store   storage.Store
	logger  *zap.Logger
	alerter *Alerter
	service string
	debug   bool
	mqtt    func() (bool, bool)

	started time.Time
	mux     *http.ServeMux
	metrics runMetrics

	mu     sync.Mutex
	http   *http.Server
	closed bool
}

func New(d Deps) *Server {
	s := &Server{
		runner:  d.Runner,
		ledger:  d.Ledger,
		store:   d.Store,
		logger:  d.Logger,
		alerter: d.Alerter,
		service: d.Service,
		debug:   d.Debug,
		mqtt:    d.MQTT,
		started: time.Now(),
		mux:     http.NewServeMux(),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.service == "" {
		s.service = "diagram-engine"
	}
	if s.mqtt == nil {
		s.mqtt = func() (bool, bool) { return false, false }
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
	s.mux.HandleFunc("GET /events", s.handleEvents)
	s.mux.HandleFunc("GET /ws/events", s.handleWSEvents)
	s.mux.HandleFunc("GET /{$}", handleUI)

	s.mux.HandleFunc("POST /api/inputs/submit", s.handleSubmitInput)
	s.mux.HandleFunc("POST /api/orchestrator/run", s.handleRun)
	s.mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	s.mux.HandleFunc("GET /api/runs/{id}/artifacts", s.handleRunArtifacts)
	s.mux.HandleFunc("GET /api/runs/{id}/report", s.handleRunReport)

	s.mux.HandleFunc("GET /api/editors/drafts", s.handleListDrafts)
	s.mux.HandleFunc("POST /api/editors/drafts", s.handleCreateDraft)
	s.mux.HandleFunc("POST /api/editors/drafts/create", s.handleCreateDraft)
	s.mux.HandleFunc("GET /api/editors/drafts/{id}", s.handleGetDraft)
	s.mux.HandleFunc("PUT /api/editors/drafts/{id}", s.handleUpdateDraft)

	// Legacy paths end in a slash; the bare form is accepted too.
	for _, suffix := range []string{"", "/{$}"} {
		s.mux.HandleFunc("GET /api/svg-draws"+suffix, s.handleListSvgDraws)
		s.mux.HandleFunc("POST /api/svg-draws"+suffix, s.handleCreateSvgDraw)
		s.mux.HandleFunc("GET /api/svg-draws/{id}"+suffix, s.handleGetSvgDraw)
		s.mux.HandleFunc("PUT /api/svg-draws/{id}"+suffix, s.handleUpdateSvgDraw)
		s.mux.HandleFunc("DELETE /api/svg-draws/{id}"+suffix, s.handleDeleteSvgDraw)
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves on addr, over TLS when tlsCfg is non-nil. It
// blocks until Shutdown; a clean shutdown returns nil.
func (s *Server) ListenAndServe(addr string, tlsCfg *TLSConfig) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.http = srv
	s.mu.Unlock()

	var err error
	if tlsCfg != nil {
		cfg, loadErr := tlsCfg.Load()
		if loadErr != nil {
			return loadErr
		}
		srv.TLSConfig = cfg
		s.logger.Info("api listening", zap.String("addr", addr), zap.Bool("tls", true))
		err = srv.ListenAndServeTLS("", "")
	} else {
		s.logger.Info("api listening", zap.String("addr", addr), zap.Bool("tls", false))
		err = srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener and closes live event streams.
func (s *Server) Shutdown(ctx context.Context) error {
	events.CloseAllSubscribers()
	s.mu.Lock()
	s.closed = true
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   s.service,
		Version:   version.Version,
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

type CheckStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type ReadinessResponse struct {
	Ready       bool                   `json:"ready"`
	Checks      map[string]CheckStatus `json:"checks"`
	NotReadyMsg string                 `json:"message,omitempty"`
}

// handleReady fails when the store is unreachable. MQTT is reported but
// optional.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := ReadinessResponse{Ready: true, Checks: map[string]CheckStatus{}}
	storeErr := s.store.Ping(ctx)
	if storeErr != nil {
		resp.Ready = false
		resp.Checks["storage"] = CheckStatus{Status: "unavailable", Error: storeErr.Error()}
		resp.NotReadyMsg = "storage unavailable"
	} else {
		resp.Checks["storage"] = CheckStatus{Status: "ok"}
	}
	if s.alerter != nil {
		s.alerter.CheckStorage(storeErr == nil)
	}

	if enabled, connected := s.mqtt(); enabled {
		st := CheckStatus{Status: "ok"}
		if !connected {
			st = CheckStatus{Status: "optional_unavailable"}
		}
		resp.Checks["mqtt"] = st
		if s.alerter != nil {
			s.alerter.CheckMQTT(connected)
		}
	} else {
		resp.Checks["mqtt"] = CheckStatus{Status: "disabled"}
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleEvents returns the buffered events, optionally for one run.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if runID := r.URL.Query().Get("run_id"); runID != "" {
		_ = json.NewEncoder(w).Encode(events.ForRun(runID))
		return
	}
	_ = json.NewEncoder(w).Encode(events.Snapshot())
}
