package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCampaignFromRow(t *testing.T) {
	row := map[string]any{
		"campaign_id":     "01K4QVNYM1QKSK61X7PXR019DF",
		"campaign_name":   "Summer Sale",
		"channel":         "email",
		"conversion_rate": "5.2%",
		"revenue":         "1,250.00",
	}

	rec := CampaignFromRow(row)
	assert.Equal(t, "01K4QVNYM1QKSK61X7PXR019DF", rec.CampaignID)
	assert.Equal(t, "Summer Sale", rec.Name)
	assert.Equal(t, "email", rec.Channel)
	assert.Equal(t, 5.2, rec.ConversionRate())
	assert.Equal(t, 1250.00, rec.Revenue())
}

func TestCampaignFromRow_AliasedColumns(t *testing.T) {
	rec := CampaignFromRow(map[string]any{
		"id":      "abc",
		"subject": "Flash deal",
	})
	assert.Equal(t, "abc", rec.CampaignID)
	assert.Equal(t, "Flash deal", rec.Name)
}

func TestCampaignRecord_MetricDefaults(t *testing.T) {
	rec := CampaignRecord{}
	assert.Equal(t, 0.0, rec.ConversionRate())
	assert.Equal(t, 0.0, rec.Revenue())
	assert.Equal(t, 0.0, rec.OpenRate())

	rec = CampaignFromRow(map[string]any{"open_rate": "not a number"})
	assert.Equal(t, 0.0, rec.OpenRate())
}

func TestCampaignRecord_SummaryDeterministic(t *testing.T) {
	rec := CampaignFromRow(map[string]any{
		"campaign_id":     "c1",
		"campaign_name":   "Winter Promo",
		"channel":         "sms",
		"revenue":         100,
		"conversion_rate": 0.05,
		"open_rate":       0.4,
	})

	first := rec.Summary()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, rec.Summary())
	}
	assert.Contains(t, first, "Winter Promo")
	assert.Contains(t, first, "sms")
}

func TestCampaignRecord_Product(t *testing.T) {
	rec := CampaignFromRow(map[string]any{"products_promoted": "Widget Pro"})
	assert.Equal(t, "Widget Pro", rec.Product())

	rec = CampaignFromRow(map[string]any{"revenue": 10})
	assert.Equal(t, "", rec.Product())
}
