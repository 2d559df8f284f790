package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/starford/adcanvas/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusFor maps a domain error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrAlreadyExists),
		errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrHasDownstreamDependents):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrMissingCredential):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrInvalidInput),
		errors.Is(err, apperr.ErrLoadFormat):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrSessionActive):
		return http.StatusLocked
	case errors.Is(err, apperr.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, apperr.ErrUpstreamFailure):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError writes err with its mapped status. Unmapped errors are logged
// and hidden behind a generic message.
func writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, status, errorBody("internal error"))
		return
	}
	if status >= http.StatusBadGateway {
		slog.Warn(op+" upstream error", slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorBody(err.Error()))
}

// decodeJSON reads a JSON body of at most limit bytes. An empty body leaves
// v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
