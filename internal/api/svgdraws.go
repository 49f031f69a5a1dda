package api

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/AaronLay10/DiagramEngine/internal/model"
	"github.com/AaronLay10/DiagramEngine/internal/storage"
)

// The drawing CRUD keeps its own envelope and messages for existing
// clients: code 0 on success, 1 for a rejected request, 404 when missing.
const (
	legacyCodeOK       = 0
	legacyCodeInvalid  = 1
	legacyCodeNotFound = 404

	maxDrawNameLen = 200
)

type legacyEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type svgDrawRequest struct {
	Name       string `json:"name"`
	SvgContent string `json:"svg_content"`
}

func (req svgDrawRequest) valid() bool {
	name := strings.TrimSpace(req.Name)
	return name != "" && utf8.RuneCountInString(name) <= maxDrawNameLen && strings.TrimSpace(req.SvgContent) != ""
}

func writeLegacy(w http.ResponseWriter, status, code int, msg string, data any) {
	writeJSON(w, status, legacyEnvelope{Code: code, Message: msg, Data: data})
}

// legacyFailure reports err with a fixed message, appending the raw error
// text only in debug mode.
func (s *Server) legacyFailure(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeLegacy(w, http.StatusNotFound, legacyCodeNotFound, "资源不存在", nil)
		return
	}
	if s.debug {
		msg += ": " + err.Error()
	}
	writeLegacy(w, http.StatusBadRequest, legacyCodeInvalid, msg, nil)
}

func (s *Server) handleListSvgDraws(w http.ResponseWriter, r *http.Request) {
	draws, err := s.store.ListSvgDraws(r.Context())
	if err != nil {
		s.legacyFailure(w, "获取列表失败", err)
		return
	}
	if draws == nil {
		draws = []model.SvgDraw{}
	}
	writeLegacy(w, http.StatusOK, legacyCodeOK, "ok", draws)
}

func (s *Server) handleCreateSvgDraw(w http.ResponseWriter, r *http.Request) {
	var req svgDrawRequest
	if err := decodeJSON(w, r, &req); err != nil || !req.valid() {
		writeLegacy(w, http.StatusBadRequest, legacyCodeInvalid, "参数验证失败", nil)
		return
	}
	d := &model.SvgDraw{Name: strings.TrimSpace(req.Name), SvgContent: req.SvgContent}
	if err := s.store.InsertSvgDraw(r.Context(), d); err != nil {
		s.legacyFailure(w, "创建失败", err)
		return
	}
	writeLegacy(w, http.StatusOK, legacyCodeOK, "创建成功", d)
}

func (s *Server) handleGetSvgDraw(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.legacyFailure(w, "", err)
		return
	}
	d, err := s.store.GetSvgDraw(r.Context(), id)
	if err != nil {
		s.legacyFailure(w, "获取失败", err)
		return
	}
	writeLegacy(w, http.StatusOK, legacyCodeOK, "ok", d)
}

func (s *Server) handleUpdateSvgDraw(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.legacyFailure(w, "", err)
		return
	}
	var req svgDrawRequest
	if err := decodeJSON(w, r, &req); err != nil || !req.valid() {
		writeLegacy(w, http.StatusBadRequest, legacyCodeInvalid, "参数验证失败", nil)
		return
	}
	d := &model.SvgDraw{ID: id, Name: strings.TrimSpace(req.Name), SvgContent: req.SvgContent}
	if err := s.store.UpdateSvgDraw(r.Context(), d); err != nil {
		s.legacyFailure(w, "更新失败", err)
		return
	}
	writeLegacy(w, http.StatusOK, legacyCodeOK, "更新成功", d)
}

func (s *Server) handleDeleteSvgDraw(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.legacyFailure(w, "", err)
		return
	}
	if err := s.store.DeleteSvgDraw(r.Context(), id); err != nil {
		s.legacyFailure(w, "删除失败", err)
		return
	}
	writeLegacy(w, http.StatusOK, legacyCodeOK, "删除成功", nil)
}
