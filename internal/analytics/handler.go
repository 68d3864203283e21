package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

const maxTop = 100

// StatsResponse is the body of the stats endpoint. EventsDropped is only
// present when the handler was given the collector feeding the aggregator.
type StatsResponse struct {
	AggregatedStats
	EventsDropped *int64 `json:"events_dropped,omitempty"`
}

type Handler struct {
	aggregator *Aggregator
	collector  *Collector
	logger     *slog.Logger
}

// NewHandler serves stats from aggregator. collector may be nil.
func NewHandler(aggregator *Aggregator, collector *Collector) *Handler {
	return &Handler{
		aggregator: aggregator,
		collector:  collector,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Stats serves GET /api/v1/analytics/stats?top=N, where N ranges over
// 1..100 and defaults to DefaultTop.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	top := DefaultTop
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxTop {
			h.write(w, http.StatusBadRequest, map[string]string{"error": "top must be an integer between 1 and 100"})
			return
		}
		top = n
	}

	resp := StatsResponse{AggregatedStats: h.aggregator.StatsTop(top)}
	if h.collector != nil {
		dropped := h.collector.Dropped()
		resp.EventsDropped = &dropped
	}
	h.write(w, http.StatusOK, resp)
}

func (h *Handler) write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
