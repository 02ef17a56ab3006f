package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adpulse-io/insight-engine/pkg/llm"
	"github.com/adpulse-io/insight-engine/pkg/logging"
	"github.com/adpulse-io/insight-engine/pkg/models"
	"github.com/adpulse-io/insight-engine/pkg/repositories"
	"github.com/adpulse-io/insight-engine/pkg/vector"
)

// ExperimentRequest is one pipeline invocation.
type ExperimentRequest struct {
	Prompt      string `json:"prompt"`
	ExplicitSQL string `json:"explicit_sql,omitempty"`
	ImageDir    string `json:"image_directory,omitempty"`
	Name        string `json:"experiment_name,omitempty"`
	Description string `json:"description,omitempty"`
	// TopCampaigns caps how many ranked campaigns flow into image analysis.
	TopCampaigns int `json:"top_campaigns,omitempty"`
	// MinCampaigns is advisory only. It is recorded with the run but does not
	// filter correlation groups.
	MinCampaigns int `json:"min_campaigns,omitempty"`
}

// ExperimentService orchestrates the full pipeline and is the surface the
// HTTP layer calls.
type ExperimentService interface {
	RunExperiment(ctx context.Context, req ExperimentRequest) (*models.RunSummary, error)
	GetRun(ctx context.Context, runID uuid.UUID) (*models.RunDetail, error)
	ListRuns(ctx context.Context, limit int) ([]*models.ExperimentRun, error)
	// IndexCampaigns embeds campaign summaries into the vector index so later
	// runs can fuse them. Returns how many were indexed.
	IndexCampaigns(ctx context.Context, campaigns []models.CampaignRecord) int
}

type experimentService struct {
	experiments repositories.ExperimentRepository
	analyses    repositories.ImageAnalysisRepository
	tabular     repositories.TabularRepository
	selector    SQLSelector
	associator  ImageAssociator
	correlator  CorrelationEngine
	store       vector.Store
	embedder    llm.LLMClient
	topDefault  int
	imageDir    string
	logger      *zap.Logger
}

// NewExperimentService creates a new ExperimentService. store and embedder
// may be nil; fusion and indexing are then skipped. imageDir is the directory
// scanned when a request does not name one.
func NewExperimentService(
	experiments repositories.ExperimentRepository,
	analyses repositories.ImageAnalysisRepository,
	tabular repositories.TabularRepository,
	selector SQLSelector,
	associator ImageAssociator,
	correlator CorrelationEngine,
	store vector.Store,
	embedder llm.LLMClient,
	topDefault int,
	imageDir string,
	logger *zap.Logger,
) ExperimentService {
	if topDefault <= 0 {
		topDefault = 5
	}
	return &experimentService{
		experiments: experiments,
		analyses:    analyses,
		tabular:     tabular,
		selector:    selector,
		associator:  associator,
		correlator:  correlator,
		store:       store,
		embedder:    embedder,
		topDefault:  topDefault,
		imageDir:    imageDir,
		logger:      logger,
	}
}

var _ ExperimentService = (*experimentService)(nil)

func (s *experimentService) RunExperiment(ctx context.Context, req ExperimentRequest) (*models.RunSummary, error) {
	if req.ImageDir == "" {
		req.ImageDir = s.imageDir
	}

	run := &models.ExperimentRun{
		Name:        req.Name,
		Description: req.Description,
		Status:      models.RunStatusPending,
		Config: map[string]any{
			"prompt":          req.Prompt,
			"explicit_sql":    req.ExplicitSQL,
			"image_directory": req.ImageDir,
			"top_campaigns":   s.topN(req),
			"min_campaigns":   req.MinCampaigns,
		},
	}
	if run.Name == "" {
		run.Name = "campaign-insight"
	}

	if err := s.experiments.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	s.logger.Info("experiment run started",
		zap.String("run_id", run.ID.String()),
		zap.String("prompt", logging.TruncateString(req.Prompt, 120)))

	selection, err := s.selectCampaignData(ctx, req)
	if err != nil {
		// Selection is the only stage allowed to fail a run.
		s.failRun(ctx, run.ID, err)
		return &models.RunSummary{RunID: run.ID, Status: models.RunStatusFailed}, err
	}

	campaigns := make([]models.CampaignRecord, 0, len(selection.Result.Rows))
	for _, row := range selection.Result.Rows {
		campaigns = append(campaigns, models.CampaignFromRow(row))
	}

	campaigns = s.fuse(ctx, req.Prompt, campaigns)
	campaigns = TopCampaigns(campaigns, s.topN(req))

	for _, c := range campaigns {
		if err := s.experiments.RecordCampaign(ctx, run.ID, c); err != nil {
			s.logger.Warn("campaign record write failed",
				zap.String("campaign_id", c.CampaignID),
				zap.String("error", logging.SanitizeError(err)))
		}
	}

	s.IndexCampaigns(ctx, campaigns)

	campaignIDs := collectCampaignIDs(campaigns)

	var imageAnalyses []models.ImageAnalysis
	if len(campaigns) > 0 {
		imageAnalyses, _ = s.associator.ResolveImages(ctx, run.ID, campaignIDs, req.ImageDir)
	}

	var correlations []models.Correlation
	if len(imageAnalyses) > 0 {
		correlations = s.correlator.Correlate(ctx, run.ID, campaigns, imageAnalyses)
	}

	summary := buildRunSummary(run.ID, campaigns, imageAnalyses, selection)
	summaryMap := map[string]any{
		"campaigns_analyzed":    summary.CampaignsAnalyzed,
		"images_analyzed":       summary.ImagesAnalyzed,
		"visual_elements_found": summary.VisualElementsFound,
		"correlations":          len(correlations),
		"campaign_ids":          summary.CampaignIDs,
		"products_promoted":     summary.ProductsPromoted,
		"query_summary":         summary.QuerySummary,
	}

	if err := s.experiments.SetRunOutcome(ctx, run.ID, models.RunStatusCompleted, selection.Result.SQL, summaryMap); err != nil {
		s.logger.Error("run completion write failed",
			zap.String("run_id", run.ID.String()),
			zap.String("error", logging.SanitizeError(err)))
	}

	s.logger.Info("experiment run completed",
		zap.String("run_id", run.ID.String()),
		zap.Int("campaigns", summary.CampaignsAnalyzed),
		zap.Int("images", summary.ImagesAnalyzed),
		zap.Int("correlations", len(correlations)))

	return summary, nil
}

func (s *experimentService) GetRun(ctx context.Context, runID uuid.UUID) (*models.RunDetail, error) {
	run, err := s.experiments.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	campaigns, err := s.experiments.ListCampaigns(ctx, runID)
	if err != nil {
		return nil, err
	}
	analyses, err := s.analyses.ListByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	correlations, err := s.experiments.ListCorrelations(ctx, runID)
	if err != nil {
		return nil, err
	}

	return &models.RunDetail{
		Run:          *run,
		Campaigns:    campaigns,
		Analyses:     analyses,
		Correlations: correlations,
	}, nil
}

func (s *experimentService) ListRuns(ctx context.Context, limit int) ([]*models.ExperimentRun, error) {
	return s.experiments.ListRuns(ctx, limit)
}

func (s *experimentService) IndexCampaigns(ctx context.Context, campaigns []models.CampaignRecord) int {
	if s.store == nil || s.embedder == nil {
		return 0
	}

	indexed := 0
	for _, c := range campaigns {
		if c.CampaignID == "" {
			continue
		}

		summary := c.Summary()
		embedding, err := s.embedder.CreateEmbedding(ctx, summary)
		if err != nil {
			s.logger.Warn("campaign embedding failed",
				zap.String("campaign_id", c.CampaignID),
				zap.String("error", logging.SanitizeError(err)))
			continue
		}

		metadata := make(map[string]any, len(c.Metrics)+3)
		for k, v := range c.Metrics {
			metadata[k] = v
		}
		metadata["campaign_id"] = c.CampaignID
		metadata["name"] = c.Name
		metadata["channel"] = c.Channel

		if err := s.store.Upsert(ctx, c.CampaignID, embedding, summary, metadata); err != nil {
			s.logger.Warn("campaign vector upsert failed",
				zap.String("campaign_id", c.CampaignID),
				zap.String("error", logging.SanitizeError(err)))
			continue
		}
		indexed++
	}

	return indexed
}

// selectCampaignData resolves rows either from caller-supplied SQL or via
// the prompt selector. Explicit SQL still passes the full safety pipeline.
func (s *experimentService) selectCampaignData(ctx context.Context, req ExperimentRequest) (*SQLSelection, error) {
	if req.ExplicitSQL == "" {
		return s.selector.SelectCampaignData(ctx, req.Prompt)
	}

	sqlText, err := validateStatement(req.ExplicitSQL)
	if err != nil {
		return nil, err
	}
	result, err := s.tabular.ExecuteQuery(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	return &SQLSelection{
		Result: result,
		Entry:  &models.SQLCacheEntry{SQLQuery: sqlText, GeneratedBy: "explicit"},
	}, nil
}

// fuse merges vector-retrieved campaigns into the SQL rows. SQL rows keep
// precedence; without a store or embedder this is the identity.
func (s *experimentService) fuse(ctx context.Context, prompt string, campaigns []models.CampaignRecord) []models.CampaignRecord {
	if s.store == nil || s.embedder == nil || prompt == "" {
		return campaigns
	}

	embedding, err := s.embedder.CreateEmbedding(ctx, prompt)
	if err != nil {
		s.logger.Warn("prompt embedding failed, skipping fusion",
			zap.String("error", logging.SanitizeError(err)))
		return campaigns
	}

	hits, err := s.store.Query(ctx, embedding, s.topDefault*2)
	if err != nil {
		s.logger.Warn("vector query failed, skipping fusion",
			zap.String("error", logging.SanitizeError(err)))
		return campaigns
	}

	return MergeCandidates(campaigns, hits)
}

func (s *experimentService) failRun(ctx context.Context, runID uuid.UUID, cause error) {
	summary := map[string]any{"error": logging.SanitizeError(cause)}
	if err := s.experiments.SetRunOutcome(ctx, runID, models.RunStatusFailed, "", summary); err != nil {
		s.logger.Error("run failure write failed",
			zap.String("run_id", runID.String()),
			zap.String("error", logging.SanitizeError(err)))
	}
}

func (s *experimentService) topN(req ExperimentRequest) int {
	if req.TopCampaigns > 0 {
		return req.TopCampaigns
	}
	return s.topDefault
}

func collectCampaignIDs(campaigns []models.CampaignRecord) []string {
	ids := make([]string, 0, len(campaigns))
	for _, c := range campaigns {
		if c.CampaignID != "" {
			ids = append(ids, c.CampaignID)
		}
	}
	return ids
}

func buildRunSummary(runID uuid.UUID, campaigns []models.CampaignRecord, analyses []models.ImageAnalysis, selection *SQLSelection) *models.RunSummary {
	elements := 0
	for _, a := range analyses {
		elements += len(a.Elements)
	}

	products := map[string]struct{}{}
	for _, c := range campaigns {
		if p := c.Product(); p != "" {
			products[p] = struct{}{}
		}
	}
	productList := make([]string, 0, len(products))
	for p := range products {
		productList = append(productList, p)
	}
	sort.Strings(productList)

	return &models.RunSummary{
		RunID:               runID,
		Status:              models.RunStatusCompleted,
		CampaignsAnalyzed:   len(campaigns),
		ImagesAnalyzed:      len(analyses),
		VisualElementsFound: elements,
		CampaignIDs:         collectCampaignIDs(campaigns),
		ProductsPromoted:    productList,
		QuerySummary:        describeSelection(campaigns, selection),
		QueryResults:        campaigns,
	}
}

// describeSelection renders the one-line provenance string stored with the
// run summary.
func describeSelection(campaigns []models.CampaignRecord, selection *SQLSelection) string {
	source := selection.Entry.GeneratedBy
	if selection.FromCache {
		source += " (cached)"
	}
	if selection.Entry.TableName != "" {
		return fmt.Sprintf("%d campaign(s) selected from %s via %s",
			len(campaigns), selection.Entry.TableName, source)
	}
	return fmt.Sprintf("%d campaign(s) selected via %s", len(campaigns), source)
}
