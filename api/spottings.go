package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/garnizeh/wildspot/internal/apperr"
	"github.com/garnizeh/wildspot/internal/blob"
	"github.com/garnizeh/wildspot/internal/models"
	"github.com/garnizeh/wildspot/pkg/repository"
	"github.com/gorilla/mux"
)

type SpottingsHandler struct {
	store   repository.GameStore
	blobs   blob.Store
	baseURL string
}

func NewSpottingsHandler(store repository.GameStore, blobs blob.Store, publicBaseURL string) *SpottingsHandler {
	return &SpottingsHandler{store: store, blobs: blobs, baseURL: publicBaseURL}
}

type spottingView struct {
	models.Spotting
	ImageURL string `json:"image_url"`
	ShareURL string `json:"share_url"`
}

type shareView struct {
	Spotting spottingView   `json:"spotting"`
	Task     *models.Task   `json:"task,omitempty"`
	Badges   []models.Badge `json:"badges"`
}

func (h *SpottingsHandler) view(s models.Spotting) spottingView {
	return spottingView{
		Spotting: s,
		ImageURL: h.baseURL + "/uploads/" + s.ImageHandle,
		ShareURL: h.baseURL + "/share/" + s.ShareToken,
	}
}

// Badges lists the badge catalog.
func (h *SpottingsHandler) Badges(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.AllBadges(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Badge{}
	}
	writeJSON(w, list, http.StatusOK)
}

func (h *SpottingsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v <= 0 || v > 100 {
			writeError(w, r, apperr.Validation("limit", "must be between 1 and 100"))
			return
		}
		limit = v
	}
	list, err := h.store.ListRecentSpottings(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]spottingView, 0, len(list))
	for _, s := range list {
		out = append(out, h.view(s))
	}
	writeJSON(w, out, http.StatusOK)
}

// Share is the public view of one spotting, addressed by its share token.
func (h *SpottingsHandler) Share(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.store.GetSpottingByShareToken(ctx, mux.Vars(r)["token"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s == nil {
		writeError(w, r, repository.ErrNotFound)
		return
	}
	out := shareView{Spotting: h.view(*s)}
	if s.TaskID != nil {
		if out.Task, err = h.store.GetTask(ctx, *s.TaskID); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if out.Badges, err = h.store.ListBadgesForSpotting(ctx, s.ID); err != nil {
		writeError(w, r, err)
		return
	}
	if out.Badges == nil {
		out.Badges = []models.Badge{}
	}
	writeJSON(w, out, http.StatusOK)
}

// Upload streams a stored image.
func (h *SpottingsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	rc, contentType, err := h.blobs.Open(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			err = repository.ErrNotFound
		}
		writeError(w, r, err)
		return
	}
	defer rc.Close()
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, rc); err != nil {
		logger.Warn("stream upload", "err", err)
	}
}
