package server

import (
	"encoding/json"
	"net/http"

	"github.com/m-aliabbas/birthday-wisher/pkg/types"
	"github.com/pkg/errors"
)

type ErrorEnvelope struct {
	Error struct {
		Code      string         `json:"code"`
		Message   string         `json:"message"`
		RequestID string         `json:"request_id,omitempty"`
		Details   map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErr(w http.ResponseWriter, r *http.Request, status int, code, msg string, details map[string]any) {
	var env ErrorEnvelope
	env.Error.Code = code
	env.Error.Message = msg
	env.Error.RequestID = RequestID(r.Context())
	env.Error.Details = details
	writeJSON(w, status, env)
}

// errorStatus maps render error kinds to HTTP status and code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, types.ErrConfigNotFound):
		return http.StatusNotFound, "TEMPLATE_NOT_FOUND"
	case errors.Is(err, types.ErrConfigParse):
		return http.StatusUnprocessableEntity, "TEMPLATE_PARSE_ERROR"
	case errors.Is(err, types.ErrInvalidTemplate):
		return http.StatusUnprocessableEntity, "INVALID_TEMPLATE"
	case errors.Is(err, types.ErrInputNotFound):
		return http.StatusBadRequest, "INPUT_NOT_FOUND"
	case errors.Is(err, types.ErrMediaProbe):
		return http.StatusUnprocessableEntity, "MEDIA_PROBE_FAILED"
	case errors.Is(err, types.ErrIncompatibleSegments):
		return http.StatusInternalServerError, "INCOMPATIBLE_SEGMENTS"
	case errors.Is(err, types.ErrRenderFailed):
		return http.StatusInternalServerError, "RENDER_FAILED"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}
