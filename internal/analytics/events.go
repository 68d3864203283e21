// Package analytics records what the ad engine served: one event per query
// and one per ingestion run. Events go through a buffered Collector to one
// or more Publishers (Kafka, the in-process Aggregator).
package analytics

import "time"

type EventType string

const (
	EventAdQuery    EventType = "ad_query"
	EventZeroResult EventType = "zero_result"
	EventIngestion  EventType = "ingestion"
)

// AdQueryEvent describes one selectAds call.
type AdQueryEvent struct {
	Type       EventType `json:"type"`
	Query      string    `json:"query"`
	Keywords   []string  `json:"keywords"`
	Candidates int       `json:"candidates"`
	Returned   int       `json:"returned"`
	AdIDs      []int64   `json:"ad_ids"`
	LatencyMs  int64     `json:"latency_ms"`
	Degraded   bool      `json:"degraded"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

// IngestionEvent summarises one ingestion run.
type IngestionEvent struct {
	Type       EventType `json:"type"`
	RunID      string    `json:"run_id"`
	Accepted   int       `json:"accepted"`
	Skipped    int       `json:"skipped"`
	Postings   int       `json:"postings"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// key picks the Kafka partition key for an event.
func key(event any) string {
	switch e := event.(type) {
	case AdQueryEvent:
		return string(e.Type)
	case IngestionEvent:
		return e.RunID
	default:
		return "analytics"
	}
}
