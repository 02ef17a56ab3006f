package services

import (
	"sort"

	"github.com/adpulse-io/insight-engine/pkg/models"
	"github.com/adpulse-io/insight-engine/pkg/vector"
)

// MergeCandidates fuses SQL-selected campaigns with vector retrieval hits.
// SQL results win: a hit whose campaign id is already present (or that has no
// campaign id in its metadata) is dropped, and SQL rows keep their original
// relative order ahead of vector-only additions.
func MergeCandidates(sqlCampaigns []models.CampaignRecord, hits []vector.Hit) []models.CampaignRecord {
	merged := make([]models.CampaignRecord, 0, len(sqlCampaigns)+len(hits))
	seen := make(map[string]struct{}, len(sqlCampaigns))

	for _, c := range sqlCampaigns {
		if c.CampaignID != "" {
			seen[c.CampaignID] = struct{}{}
		}
		merged = append(merged, c)
	}

	for _, h := range hits {
		c := campaignFromHit(h)
		if c.CampaignID == "" {
			continue
		}
		if _, dup := seen[c.CampaignID]; dup {
			continue
		}
		seen[c.CampaignID] = struct{}{}
		merged = append(merged, c)
	}

	return merged
}

// campaignFromHit rebuilds a campaign record from indexed metadata. The
// indexed summary stands in for the name when none was stored.
func campaignFromHit(h vector.Hit) models.CampaignRecord {
	c := models.CampaignFromRow(h.Metadata)
	if c.CampaignID == "" {
		c.CampaignID = h.ID
	}
	if c.Name == "" {
		c.Name = h.Text
	}
	return c
}

// RankCampaigns orders campaigns best first by conversion rate, then
// revenue, then open rate. Metric values are normalized through the tolerant
// parser, so "42.5%" and 42.5 compare equal and junk compares as zero. The
// sort is stable: fully tied campaigns keep their merged order.
func RankCampaigns(campaigns []models.CampaignRecord) []models.CampaignRecord {
	ranked := make([]models.CampaignRecord, len(campaigns))
	copy(ranked, campaigns)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.ConversionRate() != b.ConversionRate() {
			return a.ConversionRate() > b.ConversionRate()
		}
		if a.Revenue() != b.Revenue() {
			return a.Revenue() > b.Revenue()
		}
		return a.OpenRate() > b.OpenRate()
	})

	return ranked
}

// TopCampaigns returns the best n campaigns after ranking.
func TopCampaigns(campaigns []models.CampaignRecord, n int) []models.CampaignRecord {
	ranked := RankCampaigns(campaigns)
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
