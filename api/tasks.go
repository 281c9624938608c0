package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/garnizeh/wildspot/internal/apperr"
	"github.com/garnizeh/wildspot/internal/tasks"
)

type TasksHandler struct {
	svc *tasks.Service
	now func() time.Time
}

func NewTasksHandler(svc *tasks.Service) *TasksHandler {
	return &TasksHandler{svc: svc, now: time.Now}
}

type createTasksRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// CreateTasks proposes and stores tasks for the caller's coordinates.
func (h *TasksHandler) CreateTasks(w http.ResponseWriter, r *http.Request) {
	var req createTasksRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, r, apperr.Validation("body", "invalid JSON"))
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeError(w, r, apperr.Validation("location", "latitude and longitude are required"))
		return
	}
	out, err := h.svc.Generate(r.Context(), *req.Latitude, *req.Longitude)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, out, http.StatusOK)
}

func (h *TasksHandler) CurrentTasks(w http.ResponseWriter, r *http.Request) {
	cur, err := h.svc.Current(r.Context(), h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cur == nil {
		cur = []tasks.CurrentTask{}
	}
	writeJSON(w, cur, http.StatusOK)
}
