package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gyeh/eraload/internal/feeschedule"
	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/store"
)

// CreateUpload accepts a multipart 835 upload with practiceId, month and
// year form fields.
func (h *Handler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		respondWithError(w, http.StatusBadRequest, "malformed multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid file: a file part is required")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "could not read file part")
		return
	}

	period, err := parsePeriod(r.FormValue("month"), r.FormValue("year"))
	if respondValidation(w, err) {
		return
	}

	f := model.RemittanceFile{
		Content:    content,
		PracticeID: r.FormValue("practiceId"),
		Period:     period,
		Filename:   header.Filename,
	}
	u, err := h.uploads.CreateUpload(r.Context(), f)
	if err != nil {
		if respondValidation(w, err) {
			return
		}
		if u != nil {
			h.respondUnfinished(w, u, err)
			return
		}
		h.log.Error().Err(err).Str("practice_id", f.PracticeID).Msg("upload failed")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respondWithJSON(w, http.StatusCreated, newCreateResponse(u))
}

// respondUnfinished reports an upload that was registered but whose run
// returned an error. An unavailable oracle leaves it pending (202); an
// abandoned run has already been recorded as parse_errors.
func (h *Handler) respondUnfinished(w http.ResponseWriter, u *model.EraUpload, err error) {
	switch {
	case errors.Is(err, feeschedule.ErrUnavailable):
		respondWithJSON(w, http.StatusAccepted, newCreateResponse(u))
	case u.Status == model.StatusParseErrors:
		respondWithJSON(w, http.StatusCreated, newCreateResponse(u))
	default:
		h.log.Error().Err(err).Str("upload_id", u.ID.String()).Msg("upload processing failed")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) GetUpload(w http.ResponseWriter, r *http.Request) {
	id, err := uploadID(r)
	if respondValidation(w, err) {
		return
	}
	u, items, err := h.uploads.GetUpload(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"upload":    newUploadView(u),
		"lineItems": newLineItemViews(items),
	})
}

func (h *Handler) ListUploads(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if respondValidation(w, err) {
		return
	}
	uploads, err := h.uploads.ListUploads(r.Context(), f)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	out := make([]uploadView, len(uploads))
	for i := range uploads {
		out[i] = newUploadView(&uploads[i])
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (h *Handler) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	id, err := uploadID(r)
	if respondValidation(w, err) {
		return
	}
	if err := h.uploads.DeleteUpload(r.Context(), id); err != nil {
		h.respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RetryUpload re-runs a pending upload from its stored content.
func (h *Handler) RetryUpload(w http.ResponseWriter, r *http.Request) {
	id, err := uploadID(r)
	if respondValidation(w, err) {
		return
	}
	u, err := h.uploads.RetryUpload(r.Context(), id)
	if err != nil {
		if u != nil {
			h.respondUnfinished(w, u, err)
			return
		}
		h.respondStoreError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newCreateResponse(u))
}

func (h *Handler) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "upload not found")
	case errors.Is(err, store.ErrNotPending):
		respondWithError(w, http.StatusConflict, "upload is not pending")
	default:
		h.log.Error().Err(err).Msg("store request failed")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
