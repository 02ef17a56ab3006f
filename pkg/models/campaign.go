package models

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adpulse-io/insight-engine/pkg/jsonutil"
)

// CampaignRecord is one campaign row produced by candidate selection. The
// metrics bag carries whatever columns the resolved dataset had; numeric
// fields may arrive as plain numbers or percent-suffixed strings and are
// normalized lazily through the metric accessors.
type CampaignRecord struct {
	CampaignID string         `json:"campaign_id"`
	Name       string         `json:"name"`
	Channel    string         `json:"channel"`
	Metrics    map[string]any `json:"metrics"`
}

// Column aliases checked, in order, when lifting identity fields out of a raw
// SQL row. Ingested spreadsheets are not consistent about naming.
var (
	campaignIDColumns   = []string{"campaign_id", "campaign id", "id"}
	campaignNameColumns = []string{"campaign_name", "campaign name", "name", "subject"}
	channelColumns      = []string{"channel", "medium", "campaign_channel"}
)

// CampaignFromRow lifts a raw SQL result row into a CampaignRecord. The full
// row is retained as the metrics bag; identity fields are best-effort.
func CampaignFromRow(row map[string]any) CampaignRecord {
	rec := CampaignRecord{Metrics: row}
	rec.CampaignID = firstString(row, campaignIDColumns)
	rec.Name = firstString(row, campaignNameColumns)
	rec.Channel = firstString(row, channelColumns)
	return rec
}

func firstString(row map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

// Metric returns the named metric as a float64, tolerating percent-suffixed
// and comma-grouped string values. Missing or unparsable values are 0.0.
func (c CampaignRecord) Metric(name string) float64 {
	if c.Metrics == nil {
		return 0.0
	}
	return jsonutil.FlexibleFloat(c.Metrics[name])
}

// ConversionRate returns the normalized conversion rate metric.
func (c CampaignRecord) ConversionRate() float64 { return c.Metric("conversion_rate") }

// Revenue returns the normalized revenue metric.
func (c CampaignRecord) Revenue() float64 { return c.Metric("revenue") }

// OpenRate returns the normalized open rate metric.
func (c CampaignRecord) OpenRate() float64 { return c.Metric("open_rate") }

// ClickRate returns the normalized click rate metric.
func (c CampaignRecord) ClickRate() float64 { return c.Metric("click_rate") }

// Summary builds a one-line text summary of the campaign for embedding into
// the vector index. Deterministic: metric keys are emitted in sorted order.
func (c CampaignRecord) Summary() string {
	var sb strings.Builder

	if c.Name != "" {
		sb.WriteString("Campaign " + c.Name)
	} else {
		sb.WriteString("Campaign " + c.CampaignID)
	}
	if c.Channel != "" {
		sb.WriteString(" on " + c.Channel)
	}

	keys := make([]string, 0, len(c.Metrics))
	for k := range c.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := c.Metrics[k]
		if v == nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("; %s=%v", k, v))
	}

	return sb.String()
}

// Product returns the promoted product named on the row, if any column
// carries one.
func (c CampaignRecord) Product() string {
	return firstString(c.Metrics, []string{"product", "products_promoted", "product_name", "promoted_product"})
}
