package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AaronLay10/DiagramEngine/internal/events"
	"github.com/AaronLay10/DiagramEngine/internal/model"
	"github.com/AaronLay10/DiagramEngine/internal/storage"
)

// draftSummary is a list entry; code is only returned by the detail view.
type draftSummary struct {
	ID        int64           `json:"id"`
	DslType   model.DslType   `json:"dsl_type"`
	Meta      model.DraftMeta `json:"meta"`
	RunID     string          `json:"run_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type draftRequest struct {
	DslType string           `json:"dsl_type"`
	Code    string           `json:"code"`
	Meta    *model.DraftMeta `json:"meta"`
}

// pathID parses the {id} wildcard. Non-numeric ids are reported as not
// found, like an unknown numeric id.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, storage.ErrNotFound
	}
	return id, nil
}

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, &model.ValidationError{Field: "limit", Reason: "must be an integer"})
			return
		}
		limit = n
	}
	drafts, err := s.store.ListDrafts(r.Context(), storage.ClampLimit(limit))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]draftSummary, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, draftSummary{
			ID:        d.ID,
			DslType:   d.DslType,
			Meta:      d.Meta,
			RunID:     d.RunID,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		})
	}
	writeOK(w, http.StatusOK, out)
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.store.GetDraft(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, d)
}

func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.DslType == "" || strings.TrimSpace(req.Code) == "" {
		s.writeError(w, r, &model.ValidationError{Field: "draft", Reason: "dsl_type and code are required"})
		return
	}
	dsl, err := model.ParseDslType(req.DslType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	d := &model.Draft{DslType: dsl, Code: req.Code}
	if req.Meta != nil {
		d.Meta = *req.Meta
	}
	if err := s.store.InsertDraft(r.Context(), d); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("draft created", zap.Int64("draft_id", d.ID))
	_, _ = events.Emit("info", "draft.saved", "", map[string]interface{}{
		"draft_id": d.ID,
		"dsl_type": string(d.DslType),
	})
	writeOK(w, http.StatusCreated, d)
}

// handleUpdateDraft replaces code and, when given, dsl_type and meta.
func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req draftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		s.writeError(w, r, &model.ValidationError{Field: "code", Reason: "required"})
		return
	}

	d, err := s.store.GetDraft(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.DslType != "" {
		if d.DslType, err = model.ParseDslType(req.DslType); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	d.Code = req.Code
	if req.Meta != nil {
		d.Meta = *req.Meta
	}
	if err := s.store.UpdateDraft(r.Context(), &d); err != nil {
		s.writeError(w, r, err)
		return
	}
	_, _ = events.Emit("info", "draft.updated", "", map[string]interface{}{
		"draft_id": d.ID,
		"run_id":   d.RunID,
	})
	writeOK(w, http.StatusOK, d)
}
