package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gyeh/eraload/internal/export"
	"github.com/gyeh/eraload/internal/reconcile"
)

const (
	contentTypeXLSX    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeParquet = "application/vnd.apache.parquet"
)

func (h *Handler) Reconciliation(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if respondValidation(w, err) {
		return
	}
	s, err := h.reconciler.Reconcile(r.Context(), f)
	if err != nil {
		h.log.Error().Err(err).Msg("reconciliation failed")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, newReconciliationView(s))
}

// Export renders the reconciliation scope as xlsx (default) or parquet.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if respondValidation(w, err) {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}
	if format != "xlsx" && format != "parquet" {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid format: %q, want xlsx or parquet", format))
		return
	}

	items, err := h.reconciler.Items(r.Context(), f)
	if err != nil {
		h.log.Error().Err(err).Msg("export query failed")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var buf bytes.Buffer
	contentType := contentTypeXLSX
	switch format {
	case "parquet":
		contentType = contentTypeParquet
		_, err = export.WriteParquet(&buf, items)
	default:
		scope := export.Scope{Period: f.Period}
		if f.PracticeID != nil {
			scope.PracticeID = *f.PracticeID
		}
		err = export.WriteXLSX(&buf, scope, reconcile.Summarize(items), items)
	}
	if err != nil {
		h.log.Error().Err(err).Str("format", format).Msg("export failed")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="reconciliation.%s"`, format))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.log.Warn().Err(err).Str("format", format).Int("bytes", buf.Len()).Msg("export write failed")
	}
}
