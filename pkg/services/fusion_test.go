package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpulse-io/insight-engine/pkg/models"
	"github.com/adpulse-io/insight-engine/pkg/vector"
)

func campaign(id string, conversionRate, revenue, openRate any) models.CampaignRecord {
	return models.CampaignRecord{
		CampaignID: id,
		Metrics: map[string]any{
			"conversion_rate": conversionRate,
			"revenue":         revenue,
			"open_rate":       openRate,
		},
	}
}

func TestMergeCandidates(t *testing.T) {
	sqlRows := []models.CampaignRecord{
		campaign("C1", 0.05, 100, 0.4),
		campaign("C2", 0.02, 200, 0.3),
	}
	hits := []vector.Hit{
		{ID: "C2", Text: "dup of sql row", Metadata: map[string]any{"campaign_id": "C2"}},
		{ID: "C3", Text: "vector only", Metadata: map[string]any{"campaign_id": "C3", "conversion_rate": 0.01}},
		{ID: "", Text: "no id", Metadata: map[string]any{}},
	}

	merged := MergeCandidates(sqlRows, hits)

	require.Len(t, merged, 3)
	// SQL rows keep precedence and order; the duplicate hit is dropped.
	assert.Equal(t, "C1", merged[0].CampaignID)
	assert.Equal(t, "C2", merged[1].CampaignID)
	assert.Equal(t, "C3", merged[2].CampaignID)
	assert.InDelta(t, 0.02, merged[1].ConversionRate(), 1e-9)
}

func TestRankCampaigns_TupleOrder(t *testing.T) {
	campaigns := []models.CampaignRecord{
		campaign("low", 0.01, 500, 0.9),
		campaign("high", 0.05, 10, 0.1),
		campaign("mid-rich", 0.03, 900, 0.2),
		campaign("mid-poor", 0.03, 100, 0.8),
	}

	ranked := RankCampaigns(campaigns)

	ids := make([]string, len(ranked))
	for i, c := range ranked {
		ids[i] = c.CampaignID
	}
	assert.Equal(t, []string{"high", "mid-rich", "mid-poor", "low"}, ids)
}

func TestRankCampaigns_TolerantParsing(t *testing.T) {
	campaigns := []models.CampaignRecord{
		campaign("plain", 0.02, 100, 0.3),
		campaign("percent", "5%", "1,000", "40%"),
		campaign("junk", "n/a", nil, "oops"),
	}

	ranked := RankCampaigns(campaigns)

	assert.Equal(t, "percent", ranked[0].CampaignID)
	assert.Equal(t, "plain", ranked[1].CampaignID)
	assert.Equal(t, "junk", ranked[2].CampaignID)
}

func TestRankCampaigns_TotalOrder(t *testing.T) {
	campaigns := []models.CampaignRecord{
		campaign("a", 0.02, 100, 0.3),
		campaign("b", "2%", 100, "30%"),
		campaign("c", 0.05, nil, nil),
		campaign("d", nil, "50", "10%"),
	}

	ranked := RankCampaigns(campaigns)

	key := func(c models.CampaignRecord) [3]float64 {
		return [3]float64{c.ConversionRate(), c.Revenue(), c.OpenRate()}
	}
	for i := 1; i < len(ranked); i++ {
		prev, cur := key(ranked[i-1]), key(ranked[i])
		assert.True(t, prev[0] > cur[0] ||
			(prev[0] == cur[0] && prev[1] > cur[1]) ||
			(prev[0] == cur[0] && prev[1] == cur[1] && prev[2] >= cur[2]),
			"ranking violated between %d and %d", i-1, i)
	}
}

func TestTopCampaigns_Truncates(t *testing.T) {
	campaigns := []models.CampaignRecord{
		campaign("a", 0.01, 0, 0),
		campaign("b", 0.03, 0, 0),
		campaign("c", 0.02, 0, 0),
	}

	top := TopCampaigns(campaigns, 2)

	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].CampaignID)
	assert.Equal(t, "c", top[1].CampaignID)
}

func TestRankCampaigns_Stable(t *testing.T) {
	campaigns := []models.CampaignRecord{
		campaign("first", 0.02, 100, 0.3),
		campaign("second", 0.02, 100, 0.3),
	}

	ranked := RankCampaigns(campaigns)

	assert.Equal(t, "first", ranked[0].CampaignID)
	assert.Equal(t, "second", ranked[1].CampaignID)
}
