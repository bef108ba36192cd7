package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"boardkit/auth"
	"boardkit/core"
)

type envelope struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{OK: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{OK: false, Error: msg})
}

func writeErr(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	writeError(w, status, msg)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "route not found")
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// statusFor maps service errors onto HTTP statuses. Client errors echo the
// error text; server errors only name their class.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrMissingCredential), errors.Is(err, auth.ErrMalformedCredential):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, core.ErrBoardNotFound), errors.Is(err, core.ErrPlayerNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, core.ErrBoardExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, core.ErrInvalidArgument), errors.Is(err, core.ErrInvalidOrder):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrUnavailable):
		return http.StatusGatewayTimeout, core.ErrUnavailable.Error()
	case errors.Is(err, core.ErrBackend):
		return http.StatusBadGateway, core.ErrBackend.Error()
	case errors.Is(err, core.ErrUnexpectedState):
		return http.StatusInternalServerError, core.ErrUnexpectedState.Error()
	case errors.Is(err, core.ErrTokenGeneration):
		return http.StatusInternalServerError, core.ErrTokenGeneration.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
