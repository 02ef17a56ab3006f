package models

import (
	"time"

	"github.com/google/uuid"
)

// Correlation links one visual element type to aggregate campaign
// performance within a single experiment run. Created once per
// (run, element type); never updated.
type Correlation struct {
	ID             uuid.UUID          `json:"id"`
	RunID          uuid.UUID          `json:"run_id"`
	ElementType    ElementType        `json:"element_type"`
	Description    string             `json:"description"`
	AvgPerformance map[string]float64 `json:"avg_performance"`
	Impact         string             `json:"impact"` // qualitative assessment
	Recommendation string             `json:"recommendation"`
	CampaignCount  int                `json:"campaign_count"` // size of the element group
	CreatedAt      time.Time          `json:"created_at"`
}
