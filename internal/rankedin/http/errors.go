package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	stdhttp "net/http"

	"rankedin.shikanime.studio/internal/rankedin"
)

// errorResponse is the body of every failed API call.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	codeBadRequest = "bad_request"
	codeNotFound   = "not_found"
	codeConflict   = "conflict"
	codeInternal   = "internal_error"
)

func writeJSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w stdhttp.ResponseWriter, status int, code, msg string) {
	if msg == "" {
		msg = stdhttp.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// classify maps an error to its HTTP status and envelope code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, rankedin.ErrBadRequest):
		return stdhttp.StatusBadRequest, codeBadRequest
	case errors.Is(err, rankedin.ErrNotFound):
		return stdhttp.StatusNotFound, codeNotFound
	case errors.Is(err, rankedin.ErrConflict):
		return stdhttp.StatusConflict, codeConflict
	default:
		return stdhttp.StatusInternalServerError, codeInternal
	}
}

// writeDomainError writes err in the error envelope. Internal failures are
// logged and answered with a generic message.
func writeDomainError(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	status, code := classify(err)
	if status == stdhttp.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, code, "Internal server error")
		return
	}
	writeError(w, status, code, rankedin.Message(err))
}
