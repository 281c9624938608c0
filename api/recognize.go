package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/garnizeh/wildspot/internal/apperr"
	"github.com/garnizeh/wildspot/internal/intake"
)

// multipart overhead allowed on top of the image itself
const formSlack = 1 << 20

type RecognizeHandler struct {
	svc      *intake.Service
	maxBytes int64
}

func NewRecognizeHandler(svc *intake.Service, maxBytes int64) *RecognizeHandler {
	return &RecognizeHandler{svc: svc, maxBytes: maxBytes}
}

// Recognize accepts a photo in the image or camera_image field, classifies it and
// records the spotting.
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+formSlack)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, apperr.Validation("image", fmt.Sprintf("upload exceeds %d bytes", h.maxBytes)))
			return
		}
		writeError(w, r, apperr.Validation("body", "expected multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := formImage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		writeError(w, r, apperr.Validation("image", "unreadable upload"))
		return
	}

	up := intake.Upload{
		Filename: header.Filename,
		Data:     data,
		Location: strings.TrimSpace(r.FormValue("location")),
	}
	if raw := strings.TrimSpace(r.FormValue("task_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, r, apperr.Validation("task_id", "must be a positive integer"))
			return
		}
		up.TaskID = &id
	}

	res, err := h.svc.Submit(r.Context(), up)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}

// formImage returns the uploaded photo, preferring the file picker field over the
// camera capture field.
func formImage(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	for _, field := range []string{"image", "camera_image"} {
		f, hdr, err := r.FormFile(field)
		if err == nil {
			if hdr.Size == 0 {
				_ = f.Close()
				continue
			}
			return f, hdr, nil
		}
		if !errors.Is(err, http.ErrMissingFile) {
			return nil, nil, apperr.Validation(field, "unreadable upload")
		}
	}
	return nil, nil, apperr.Validation("image", "no image provided")
}
