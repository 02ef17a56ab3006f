package services

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adpulse-io/insight-engine/pkg/logging"
	"github.com/adpulse-io/insight-engine/pkg/models"
	"github.com/adpulse-io/insight-engine/pkg/prompts"
	"github.com/adpulse-io/insight-engine/pkg/repositories"
)

// performanceMetrics are the campaign metrics averaged per element group.
var performanceMetrics = []string{"conversion_rate", "revenue", "open_rate", "click_rate"}

// CorrelationEngine groups detected visual elements by type and produces one
// persisted Correlation per (run, element type).
type CorrelationEngine interface {
	// Correlate computes and persists correlations. MinCampaigns is advisory:
	// it is recorded in results but does not filter groups. A failure on one
	// element type is logged and skipped, never aborting the rest.
	Correlate(ctx context.Context, runID uuid.UUID, campaigns []models.CampaignRecord, analyses []models.ImageAnalysis) []models.Correlation
}

type correlationEngine struct {
	intelligence Intelligence
	experiments  repositories.ExperimentRepository
	logger       *zap.Logger
}

// NewCorrelationEngine creates a new CorrelationEngine.
func NewCorrelationEngine(intelligence Intelligence, experiments repositories.ExperimentRepository, logger *zap.Logger) CorrelationEngine {
	return &correlationEngine{intelligence: intelligence, experiments: experiments, logger: logger}
}

var _ CorrelationEngine = (*correlationEngine)(nil)

// elementGroup collects every occurrence of one element type across a run,
// with the campaigns those occurrences came from.
type elementGroup struct {
	descriptions []string
	campaignIDs  map[string]struct{}
	count        int
}

func (s *correlationEngine) Correlate(ctx context.Context, runID uuid.UUID, campaigns []models.CampaignRecord, analyses []models.ImageAnalysis) []models.Correlation {
	groups := groupElements(analyses)
	if len(groups) == 0 {
		return nil
	}

	campaignsByID := make(map[string]models.CampaignRecord, len(campaigns))
	for _, c := range campaigns {
		if c.CampaignID != "" {
			campaignsByID[c.CampaignID] = c
		}
	}

	// Sorted type keys keep output order deterministic run to run.
	types := make([]models.ElementType, 0, len(groups))
	for t := range groups {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	var correlations []models.Correlation
	for _, elementType := range types {
		group := groups[elementType]

		correlation, err := s.correlateGroup(ctx, runID, elementType, group, campaignsByID)
		if err != nil {
			s.logger.Warn("correlation failed for element type, skipping",
				zap.String("element_type", elementType.String()),
				zap.String("error", logging.SanitizeError(err)))
			continue
		}
		correlations = append(correlations, *correlation)
	}

	return correlations
}

func (s *correlationEngine) correlateGroup(
	ctx context.Context,
	runID uuid.UUID,
	elementType models.ElementType,
	group *elementGroup,
	campaignsByID map[string]models.CampaignRecord,
) (*models.Correlation, error) {
	avgPerformance := averagePerformance(group.campaignIDs, campaignsByID)
	description := summarizeDescriptions(group.descriptions)

	assessment := s.intelligence.AssessImpact(ctx, prompts.ElementGroupContext{
		ElementType:    elementType,
		Description:    description,
		CampaignCount:  group.count,
		AvgPerformance: avgPerformance,
	})

	correlation := &models.Correlation{
		RunID:          runID,
		ElementType:    elementType,
		Description:    description,
		AvgPerformance: avgPerformance,
		Impact:         assessment.Impact,
		Recommendation: assessment.Recommendation,
		CampaignCount:  group.count,
	}

	if err := s.experiments.RecordCorrelation(ctx, correlation); err != nil {
		return nil, err
	}
	return correlation, nil
}

// groupElements buckets every element occurrence by type.
func groupElements(analyses []models.ImageAnalysis) map[models.ElementType]*elementGroup {
	groups := map[models.ElementType]*elementGroup{}

	for _, analysis := range analyses {
		for _, element := range analysis.Elements {
			g, ok := groups[element.Type]
			if !ok {
				g = &elementGroup{campaignIDs: map[string]struct{}{}}
				groups[element.Type] = g
			}
			g.count++
			if element.Description != "" {
				g.descriptions = append(g.descriptions, element.Description)
			}
			if analysis.CampaignID != "" {
				g.campaignIDs[analysis.CampaignID] = struct{}{}
			}
		}
	}

	return groups
}

// averagePerformance averages the standard metrics over the campaigns that
// contain an element. Metrics missing on a campaign count as zero, matching
// the tolerant parser everywhere else.
func averagePerformance(campaignIDs map[string]struct{}, campaignsByID map[string]models.CampaignRecord) map[string]float64 {
	avg := make(map[string]float64, len(performanceMetrics))
	n := 0
	for id := range campaignIDs {
		c, ok := campaignsByID[id]
		if !ok {
			continue
		}
		n++
		for _, metric := range performanceMetrics {
			avg[metric] += c.Metric(metric)
		}
	}

	if n == 0 {
		for _, metric := range performanceMetrics {
			avg[metric] = 0
		}
		return avg
	}

	for _, metric := range performanceMetrics {
		avg[metric] /= float64(n)
	}
	return avg
}

// summarizeDescriptions joins up to three distinct descriptions for the
// group's human-readable summary.
func summarizeDescriptions(descriptions []string) string {
	seen := map[string]struct{}{}
	var distinct []string
	for _, d := range descriptions {
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		distinct = append(distinct, d)
		if len(distinct) == 3 {
			break
		}
	}
	return strings.Join(distinct, "; ")
}
