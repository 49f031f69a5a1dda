package api

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/AaronLay10/DiagramEngine/internal/events"
	"github.com/AaronLay10/DiagramEngine/internal/model"
	"github.com/AaronLay10/DiagramEngine/internal/report"
	"github.com/AaronLay10/DiagramEngine/internal/storage"
)

// inputRequest carries the fields shared by submit and inline run requests.
type inputRequest struct {
	Text       string           `json:"text"`
	ImageURL   string           `json:"image_url"`
	Images     []model.ImageRef `json:"images"`
	EnableKG   bool             `json:"enable_kg"`
	EnableRAG  bool             `json:"enable_rag"`
	OutputMode string           `json:"output_mode"`
}

func (in inputRequest) options() (model.Options, error) {
	return model.NewOptions(in.EnableKG, in.EnableRAG, in.OutputMode)
}

func (in inputRequest) images() []model.ImageRef {
	images := append([]model.ImageRef(nil), in.Images...)
	if in.ImageURL != "" {
		images = append(images, model.ImageRef{URL: in.ImageURL})
	}
	return images
}

type submitResponse struct {
	SubmissionID int64              `json:"submission_id"`
	Payload      model.InputPayload `json:"payload"`
}

func (s *Server) handleSubmitInput(w http.ResponseWriter, r *http.Request) {
	var in inputRequest
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	opts, err := in.options()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	sub := &model.InputSubmission{Text: in.Text, ImageURL: in.ImageURL, Params: opts}
	if err := s.store.InsertSubmission(r.Context(), sub); err != nil {
		s.writeError(w, r, fmt.Errorf("save submission: %w", err))
		return
	}
	payload, err := sub.Payload()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("input submitted", zap.Int64("submission_id", sub.ID))
	writeOK(w, http.StatusOK, submitResponse{SubmissionID: sub.ID, Payload: payload})
}

type runRequest struct {
	SubmissionID *int64 `json:"submission_id"`
	inputRequest
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var payload model.InputPayload
	var err error
	if req.SubmissionID != nil {
		sub, getErr := s.store.GetSubmission(r.Context(), *req.SubmissionID)
		if errors.Is(getErr, storage.ErrNotFound) {
			writeFail(w, http.StatusNotFound, fmt.Sprintf("submission %d not found", *req.SubmissionID), nil)
			return
		}
		if getErr != nil {
			s.writeError(w, r, getErr)
			return
		}
		payload, err = sub.Payload()
	} else {
		var opts model.Options
		if opts, err = req.options(); err == nil {
			payload, err = model.NewInputPayload(req.Text, req.images(), opts)
		}
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	_, _ = events.Emit("info", "run.request", "", map[string]interface{}{"source": "http"})
	start := time.Now()
	res, err := s.runner.Run(r.Context(), payload)
	s.metrics.observe(err, time.Since(start))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if req.SubmissionID != nil {
		if err := s.store.AttachSubmissionRun(r.Context(), *req.SubmissionID, res.RunID); err != nil {
			s.logger.Warn("attach run to submission", zap.Int64("submission_id", *req.SubmissionID), zap.Error(err))
		}
	}
	writeOK(w, http.StatusOK, res)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.ledger.Record(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, rec)
}

func (s *Server) handleRunArtifacts(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetRun(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	arts, err := s.ledger.Artifacts(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, arts)
}

// handleRunReport renders the run record as HTML, or as Markdown with
// ?format=md.
func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	rec, err := s.ledger.Record(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	draft, err := report.RunDraft(r.Context(), rec, s.store)
	if err != nil {
		s.logger.Warn("load report draft", zap.String("run_id", rec.RunID), zap.Error(err))
	}

	if r.URL.Query().Get("format") == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(report.Markdown(rec, draft)))
		return
	}
	body, err := report.HTML(rec, draft)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Run %s</title></head><body>\n%s</body></html>\n", html.EscapeString(rec.RunID), body)
}
