package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/AaronLay10/DiagramEngine/internal/codegen"
	"github.com/AaronLay10/DiagramEngine/internal/model"
	"github.com/AaronLay10/DiagramEngine/internal/orchestrator"
	"github.com/AaronLay10/DiagramEngine/internal/storage"
)

const genericError = "internal server error"

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Envelope wraps every /api response.
type Envelope struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data"`
	Error *string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{OK: true, Data: data})
}

func writeFail(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, Envelope{OK: false, Data: data, Error: &msg})
}

// statusFor maps an error to its HTTP status. An unsupported DSL reaching
// the generator is an internal contract violation, not a client error.
func statusFor(err error) int {
	var verr *model.ValidationError
	switch {
	case errors.Is(err, codegen.ErrUnsupportedDSL):
		return http.StatusInternalServerError
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// writeError reports err. Client errors always carry their message; server
// errors expose it only in debug mode. A failed run keeps its run_id in data.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		if !s.debug {
			msg = genericError
		}
	}

	var data any
	var runErr *orchestrator.RunError
	if errors.As(err, &runErr) {
		data = map[string]string{"run_id": runErr.RunID}
	}
	writeFail(w, status, msg, data)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &model.ValidationError{Field: "body", Reason: "invalid JSON"}
	}
	return nil
}
