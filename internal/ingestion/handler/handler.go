package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/ingestion/importer"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/drc-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// maxRequestBytes leaves room for JSON escaping around the largest document.
const maxRequestBytes = 2*validator.MaxDocumentLength + 4096

type Handler struct {
	importer *importer.Importer
	logger   *slog.Logger
}

func New(im *importer.Importer) *Handler {
	return &Handler{
		importer: im,
		logger:   slog.Default().With("component", "ingestion-handler"),
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/v1/collections/{collection}/documents", h.Ingest)
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	collection := chi.URLParam(r, "collection")

	var req ingestion.IngestRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := h.importer.Ingest(ctx, collection, &req)
	if err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed",
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, "ingestion failed")
		return
	}
	log.Info("document ingested",
		"collection", resp.Collection,
		"doc_id", resp.DocumentID,
		"kind", resp.Kind,
	)
	h.writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
