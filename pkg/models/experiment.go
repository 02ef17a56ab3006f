package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of an experiment run.
// pending → completed or pending → failed; both end states are terminal and
// re-attempts always get a fresh run id.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ExperimentRun is one complete, timestamped execution of the insight
// pipeline, independently retrievable later.
type ExperimentRun struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	SQLQuery       string         `json:"sql_query,omitempty"`
	Status         RunStatus      `json:"status"`
	Config         map[string]any `json:"config,omitempty"`          // inputs
	ResultsSummary map[string]any `json:"results_summary,omitempty"` // outcome counts + ids
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// RunDetail is an experiment run with its persisted children attached.
type RunDetail struct {
	Run          ExperimentRun    `json:"run"`
	Campaigns    []CampaignRecord `json:"campaigns"`
	Analyses     []ImageAnalysis  `json:"image_analyses"`
	Correlations []Correlation    `json:"correlations"`
}

// RunSummary is the caller-facing result of one pipeline invocation.
type RunSummary struct {
	RunID               uuid.UUID        `json:"run_id"`
	Status              RunStatus        `json:"status"`
	CampaignsAnalyzed   int              `json:"campaigns_analyzed"`
	ImagesAnalyzed      int              `json:"images_analyzed"`
	VisualElementsFound int              `json:"visual_elements_found"`
	CampaignIDs         []string         `json:"campaign_ids"`
	ProductsPromoted    []string         `json:"products_promoted"`
	QuerySummary        string           `json:"query_summary"`
	QueryResults        []CampaignRecord `json:"query_results"`
}
