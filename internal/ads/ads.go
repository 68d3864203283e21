// Package ads defines the advertisement entity, the raw record shape read
// from ingestion sources, and the ports through which the engine reaches
// its two stores.
package ads

import (
	"context"
	"encoding/json"
	"strconv"
)

// DefaultPrice is applied to Price and BidPrice when a record omits them.
const DefaultPrice = 100.0

// Advertisement is one ad listing. Keywords are derived from Title once,
// at parse time, and never change afterwards.
type Advertisement struct {
	AdID       int64    `json:"ad_id"`
	CampaignID int64    `json:"campaign_id"`
	Title      string   `json:"title"`
	Brand      string   `json:"brand"`
	Thumbnail  string   `json:"thumbnail"`
	DetailURL  string   `json:"detail_url"`
	Category   string   `json:"category"`
	Price      float64  `json:"price"`
	BidPrice   float64  `json:"bid_price"`
	Keywords   []string `json:"keywords"`
}

// RawRecord is one decoded JSON object from the ingestion source. Field
// values are kept raw so the parser can apply the array-wrapping rules.
type RawRecord map[string]json.RawMessage

// RecordSource yields raw records in source order. Next returns io.EOF once
// the source is exhausted. A *RecordError return describes a single bad
// record; the caller may keep reading after it.
type RecordSource interface {
	Next(ctx context.Context) (RawRecord, error)
	Close() error
}

// RecordError reports a record the source could not decode.
type RecordError struct {
	Position int
	Err      error
}

func (e *RecordError) Error() string {
	return "record " + strconv.Itoa(e.Position) + ": " + e.Err.Error()
}

func (e *RecordError) Unwrap() error { return e.Err }

