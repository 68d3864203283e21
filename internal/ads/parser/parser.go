// Package parser validates raw ad records and turns them into
// Advertisements. Every field in the feed is wrapped in a single-element
// array; a missing key, a null, an empty array, and a null first element all
// mean "absent". ad_id, campaign_id and title are required. Optional strings
// default to "" and price/bid_price default to ads.DefaultPrice.
package parser

import (
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/errors"
)

// Feed field names.
const (
	FieldAdID       = "ad_id"
	FieldCampaignID = "campaign_id"
	FieldTitle      = "title"
	FieldBrand      = "brand"
	FieldThumbnail  = "thumbnail"
	FieldDetailURL  = "detail_url"
	FieldCategory   = "category"
	FieldPrice      = "price"
	FieldBidPrice   = "bid_price"
)

// ValidationError explains why a record was rejected.
type ValidationError struct {
	Position int
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record %d: %s: %s", e.Position, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidRecord
}

// Parse converts rec into an Advertisement. position is the record's index
// in its source and is only used for error reporting. Parsing stops at the
// first missing or malformed required field.
func Parse(rec ads.RawRecord, position int) (*ads.Advertisement, error) {
	adID, err := int64Field(rec, FieldAdID)
	if err != nil {
		return nil, fieldError(position, FieldAdID, err)
	}
	campaignID, err := int64Field(rec, FieldCampaignID)
	if err != nil {
		return nil, fieldError(position, FieldCampaignID, err)
	}
	title, err := stringField(rec, FieldTitle)
	if err != nil {
		return nil, fieldError(position, FieldTitle, err)
	}

	return &ads.Advertisement{
		AdID:       adID,
		CampaignID: campaignID,
		Title:      title,
		Brand:      optString(rec, FieldBrand),
		Thumbnail:  optString(rec, FieldThumbnail),
		DetailURL:  optString(rec, FieldDetailURL),
		Category:   optString(rec, FieldCategory),
		Price:      optFloat(rec, FieldPrice, ads.DefaultPrice),
		BidPrice:   optFloat(rec, FieldBidPrice, ads.DefaultPrice),
		Keywords:   tokenizer.KeywordSet(title),
	}, nil
}

func fieldError(position int, field string, err error) *ValidationError {
	reason := err.Error()
	if errors.Is(err, errAbsent) {
		reason = "missing"
	}
	return &ValidationError{Position: position, Field: field, Reason: reason}
}
