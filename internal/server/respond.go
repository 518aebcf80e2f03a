package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/filestodata/filestodata/internal/common"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps the error taxonomy to HTTP statuses: invalid input 400,
// not found 404, everything else 500 with the message exposed. This API is
// internal-facing; diagnostic messages in responses are acceptable.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
