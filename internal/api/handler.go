// Package api exposes uploads and reconciliation over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gyeh/eraload/internal/ingest"
	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/reconcile"
	"github.com/gyeh/eraload/internal/store"
)

// Uploads is the upload lifecycle. *ingest.Service implements it.
type Uploads interface {
	CreateUpload(ctx context.Context, f model.RemittanceFile) (*model.EraUpload, error)
	RetryUpload(ctx context.Context, id uuid.UUID) (*model.EraUpload, error)
	GetUpload(ctx context.Context, id uuid.UUID) (*model.EraUpload, []model.LineItem, error)
	ListUploads(ctx context.Context, f store.Filter) ([]model.EraUpload, error)
	DeleteUpload(ctx context.Context, id uuid.UUID) error
}

// Reconciler reads processed line items in scope. *reconcile.Aggregator
// implements it.
type Reconciler interface {
	Reconcile(ctx context.Context, f store.Filter) (model.Summary, error)
	Items(ctx context.Context, f store.Filter) ([]model.LineItem, error)
}

// Pinger reports database reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	_ Uploads    = (*ingest.Service)(nil)
	_ Reconciler = (*reconcile.Aggregator)(nil)
	_ Pinger     = (*store.Store)(nil)
)

const defaultMaxUploadBytes = 32 << 20

type Handler struct {
	uploads        Uploads
	reconciler     Reconciler
	db             Pinger
	log            zerolog.Logger
	maxUploadBytes int64
}

// NewHandler wires the HTTP handlers. db may be nil, in which case /health
// only reports that the process is up.
func NewHandler(uploads Uploads, rec Reconciler, db Pinger, log zerolog.Logger, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		uploads:        uploads,
		reconciler:     rec,
		db:             db,
		log:            log.With().Str("component", "api").Logger(),
		maxUploadBytes: maxUploadBytes,
	}
}

// Router returns the routed handler with metrics and access logging.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.instrument)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	r.HandleFunc("/uploads", h.CreateUpload).Methods(http.MethodPost)
	r.HandleFunc("/uploads", h.ListUploads).Methods(http.MethodGet)
	r.HandleFunc("/uploads/{id}", h.GetUpload).Methods(http.MethodGet)
	r.HandleFunc("/uploads/{id}", h.DeleteUpload).Methods(http.MethodDelete)
	r.HandleFunc("/uploads/{id}/retry", h.RetryUpload).Methods(http.MethodPost)

	r.HandleFunc("/reconciliation", h.Reconciliation).Methods(http.MethodGet)
	r.HandleFunc("/reconciliation/export", h.Export).Methods(http.MethodGet)
	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("health check failed")
			respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
