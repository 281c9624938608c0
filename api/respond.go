package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/garnizeh/wildspot/internal/apperr"
	"github.com/garnizeh/wildspot/pkg/repository"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

// writeError maps err onto a status code. Storage and unknown errors are logged and
// reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case apperr.IsValidation(err):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, repository.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case apperr.IsProvider(err):
		status, msg = http.StatusBadGateway, "upstream service unavailable, try again later"
	}
	if status >= 500 {
		logger.Error("request failed", slog.String("path", r.URL.Path), slog.Int("status", status), slog.Any("err", err))
	}
	writeJSON(w, errorResponse{Error: msg}, status)
}
