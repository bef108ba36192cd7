package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"boardkit/auth"
	"boardkit/core"
	"boardkit/engine"
)

// maxBodyBytes bounds request bodies; every body this API accepts is tiny.
const maxBodyBytes = 1 << 16

type handlers struct {
	svc *engine.BoardService
}

type createBoardRequest struct {
	Name  string            `json:"name"`
	Order core.SortingOrder `json:"order"`
}

func (h *handlers) root(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// ping answers 204 once the store has replied to a PING.
func (h *handlers) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// healthCheck verifies the store is reachable
func (h *handlers) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"storage": "ok",
		},
	}
	code := http.StatusOK
	if err := h.svc.Ping(r.Context()); err != nil {
		code = http.StatusServiceUnavailable
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
	}
	writeJSON(w, code, status)
}

func (h *handlers) createBoard(w http.ResponseWriter, r *http.Request) {
	cred := auth.FromHeader(r.Header, auth.MasterScheme)
	var req createBoardRequest
	if err := decodeBody(w, r, &req); err != nil {
		// credential problems outrank a malformed body
		if aerr := h.svc.AuthorizeCreation(cred); aerr != nil {
			writeErr(w, aerr)
			return
		}
		writeErr(w, err)
		return
	}
	created, err := h.svc.CreateBoard(r.Context(), req.Name, req.Order, cred)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusCreated, created)
}

func (h *handlers) listScores(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, err := intParam(q.Get("offset"), "offset", 0)
	if err != nil {
		writeErr(w, err)
		return
	}
	size, err := intParam(q.Get("size"), "size", -1)
	if err != nil {
		writeErr(w, err)
		return
	}
	page, err := h.svc.ListScores(r.Context(), q.Get("board"), offset, size)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, page)
}

func (h *handlers) getScore(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	standing, err := h.svc.GetScore(r.Context(), q.Get("board"), q.Get("player"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, standing)
}

// submitScore answers 201 when the submission improved the stored best and
// 200 when it was ignored. Both carry the current best and rank.
func (h *handlers) submitScore(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cred := auth.FromHeader(r.Header, auth.BoardScheme)
	var score float64
	if err := decodeBody(w, r, &score); err != nil {
		// a missing board and credential problems outrank a malformed body
		if aerr := h.svc.AuthorizeSubmission(r.Context(), q.Get("board"), cred); aerr != nil {
			writeErr(w, aerr)
			return
		}
		writeErr(w, err)
		return
	}
	sub, err := h.svc.SubmitScore(r.Context(), q.Get("board"), q.Get("player"), score, cred)
	if err != nil {
		writeErr(w, err)
		return
	}
	status := http.StatusOK
	if sub.Improved {
		status = http.StatusCreated
	}
	writeData(w, status, sub)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, core.ErrInvalidOrder) {
			return err
		}
		return fmt.Errorf("%w: malformed request body", core.ErrInvalidArgument)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected data after request body", core.ErrInvalidArgument)
	}
	return nil
}

// intParam parses an integer query parameter. A negative def makes it required.
func intParam(raw, name string, def int) (int, error) {
	if raw == "" {
		if def < 0 {
			return 0, fmt.Errorf("%w: %s is required", core.ErrInvalidArgument, name)
		}
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", core.ErrInvalidArgument, name)
	}
	return n, nil
}
