// Package handler exposes the ad engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/ingest"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/errors"
)

// maxQueryLength bounds the q parameter.
const maxQueryLength = 1024

// Engine is the subset of *engine.Engine the handlers use.
type Engine interface {
	SelectAds(ctx context.Context, q string) []ads.Advertisement
	Lookup(ctx context.Context, adID int64) (*ads.Advertisement, error)
	Report() *ingest.Report
	Ready() bool
}

type Handler struct {
	engine Engine
	logger *slog.Logger
}

func New(engine Engine) *Handler {
	return &Handler{
		engine: engine,
		logger: slog.Default().With("component", "ads-handler"),
	}
}

// SelectResponse is the body of GET /api/v1/ads.
type SelectResponse struct {
	Query    string              `json:"query"`
	Keywords []string            `json:"keywords"`
	Count    int                 `json:"count"`
	Ads      []ads.Advertisement `json:"ads"`
}

// SelectAds handles GET /api/v1/ads?q=...
func (h *Handler) SelectAds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if len(q) > maxQueryLength {
		h.writeError(w, http.StatusBadRequest, "query too long")
		return
	}
	if !h.engine.Ready() {
		h.writeError(w, http.StatusServiceUnavailable, apperrors.ErrNotInitialized.Error())
		return
	}

	result := h.engine.SelectAds(r.Context(), q)
	h.writeJSON(w, http.StatusOK, SelectResponse{
		Query:    q,
		Keywords: tokenizer.Tokenize(q),
		Count:    len(result),
		Ads:      result,
	})
}

// GetAd handles GET /api/v1/ads/{adID}.
func (h *Handler) GetAd(w http.ResponseWriter, r *http.Request) {
	adID, err := strconv.ParseInt(chi.URLParam(r, "adID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "ad id must be an integer")
		return
	}

	ad, err := h.engine.Lookup(r.Context(), adID)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("ad lookup failed", "ad_id", adID, "error", err)
		}
		h.writeError(w, status, apperrors.PublicMessage(err))
		return
	}
	h.writeJSON(w, http.StatusOK, ad)
}

// IngestionReport handles GET /api/v1/ingestion/report.
func (h *Handler) IngestionReport(w http.ResponseWriter, r *http.Request) {
	report := h.engine.Report()
	if report == nil {
		h.writeError(w, http.StatusNotFound, "ingestion has not run")
		return
	}
	h.writeJSON(w, http.StatusOK, report)
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
