package parser

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads"
	apperrors "github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/errors"
)

func record(t *testing.T, body string) ads.RawRecord {
	t.Helper()
	var rec ads.RawRecord
	require.NoError(t, json.Unmarshal([]byte(body), &rec))
	return rec
}

func TestParseFullRecord(t *testing.T) {
	rec := record(t, `{
		"ad_id": [7], "campaign_id": [3], "title": ["Red Shoes"],
		"brand": ["Acme"], "thumbnail": ["http://img/7.jpg"],
		"detail_url": ["http://shop/7"], "category": ["Shoes"],
		"price": [59.99], "bid_price": [1.25]
	}`)

	ad, err := Parse(rec, 0)
	require.NoError(t, err)
	assert.Equal(t, &ads.Advertisement{
		AdID:       7,
		CampaignID: 3,
		Title:      "Red Shoes",
		Brand:      "Acme",
		Thumbnail:  "http://img/7.jpg",
		DetailURL:  "http://shop/7",
		Category:   "Shoes",
		Price:      59.99,
		BidPrice:   1.25,
		Keywords:   []string{"red", "shoes"},
	}, ad)
}

func TestParseDefaults(t *testing.T) {
	ad, err := Parse(record(t, `{"ad_id": [1], "campaign_id": [2], "title": ["Blue Hat"]}`), 4)
	require.NoError(t, err)

	assert.Equal(t, ads.DefaultPrice, ad.Price)
	assert.Equal(t, ads.DefaultPrice, ad.BidPrice)
	assert.Empty(t, ad.Brand)
	assert.Empty(t, ad.Thumbnail)
	assert.Empty(t, ad.DetailURL)
	assert.Empty(t, ad.Category)
}

func TestParseAbsentForms(t *testing.T) {
	// Each form of "absent" for price must yield the default.
	for _, body := range []string{
		`{"ad_id": [1], "campaign_id": [2], "title": ["x"], "price": null}`,
		`{"ad_id": [1], "campaign_id": [2], "title": ["x"], "price": []}`,
		`{"ad_id": [1], "campaign_id": [2], "title": ["x"], "price": [null]}`,
		`{"ad_id": [1], "campaign_id": [2], "title": ["x"], "price": ["cheap"]}`,
	} {
		ad, err := Parse(record(t, body), 0)
		require.NoError(t, err, body)
		assert.Equal(t, ads.DefaultPrice, ad.Price, body)
	}
}

func TestParseKeepsPriceVerbatim(t *testing.T) {
	ad, err := Parse(record(t, `{"ad_id": [1], "campaign_id": [2], "title": ["x"], "price": [-3.5], "bid_price": [0]}`), 0)
	require.NoError(t, err)
	assert.Equal(t, -3.5, ad.Price)
	assert.Equal(t, 0.0, ad.BidPrice)
}

func TestParseMissingRequired(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"no ad_id", `{"campaign_id": [2], "title": ["x"]}`, FieldAdID},
		{"null ad_id", `{"ad_id": null, "campaign_id": [2], "title": ["x"]}`, FieldAdID},
		{"null element ad_id", `{"ad_id": [null], "campaign_id": [2], "title": ["x"]}`, FieldAdID},
		{"empty campaign_id", `{"ad_id": [1], "campaign_id": [], "title": ["x"]}`, FieldCampaignID},
		{"no title", `{"ad_id": [1], "campaign_id": [2]}`, FieldTitle},
		{"null title element", `{"ad_id": [1], "campaign_id": [2], "title": [null]}`, FieldTitle},
		{"all missing reports ad_id first", `{}`, FieldAdID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ad, err := Parse(record(t, tc.body), 12)
			require.Error(t, err)
			assert.Nil(t, ad)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.Equal(t, 12, verr.Position)
			assert.Equal(t, "missing", verr.Reason)
			assert.ErrorIs(t, err, apperrors.ErrInvalidRecord)
		})
	}
}

func TestParseMalformedRequired(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"bare scalar", `{"ad_id": 7, "campaign_id": [2], "title": ["x"]}`, FieldAdID},
		{"fractional id", `{"ad_id": [7.5], "campaign_id": [2], "title": ["x"]}`, FieldAdID},
		{"id just past int64", `{"ad_id": [9223372036854775808], "campaign_id": [2], "title": ["x"]}`, FieldAdID},
		{"id as float past int64", `{"ad_id": [9.3e18], "campaign_id": [2], "title": ["x"]}`, FieldAdID},
		{"id as float below int64", `{"ad_id": [-9.3e18], "campaign_id": [2], "title": ["x"]}`, FieldAdID},
		{"word id", `{"ad_id": [1], "campaign_id": ["abc"], "title": ["x"]}`, FieldCampaignID},
		{"numeric title", `{"ad_id": [1], "campaign_id": [2], "title": [42]}`, FieldTitle},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(record(t, tc.body), 0)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.NotEqual(t, "missing", verr.Reason)
		})
	}
}

func TestParseInt64Bounds(t *testing.T) {
	ad, err := Parse(record(t, `{"ad_id": [9223372036854775807], "campaign_id": [-9223372036854775808], "title": ["x"]}`), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), ad.AdID)
	assert.Equal(t, int64(math.MinInt64), ad.CampaignID)

	ad, err = Parse(record(t, `{"ad_id": [12.0], "campaign_id": [2], "title": ["x"]}`), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(12), ad.AdID)
}

func TestParseLenientScalars(t *testing.T) {
	ad, err := Parse(record(t, `{
		"ad_id": ["17"], "campaign_id": [4.0], "title": ["Red red shoes"],
		"brand": [3], "category": [{"nested": true}], "price": ["12.5"]
	}`), 0)
	require.NoError(t, err)

	assert.Equal(t, int64(17), ad.AdID)
	assert.Equal(t, int64(4), ad.CampaignID)
	assert.Equal(t, "3", ad.Brand)
	assert.Empty(t, ad.Category)
	assert.Equal(t, 12.5, ad.Price)
	assert.Equal(t, []string{"red", "shoes"}, ad.Keywords, "keywords are a set")
}
