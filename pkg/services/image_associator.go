package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adpulse-io/insight-engine/pkg/apperrors"
	"github.com/adpulse-io/insight-engine/pkg/logging"
	"github.com/adpulse-io/insight-engine/pkg/models"
	"github.com/adpulse-io/insight-engine/pkg/repositories"
	"github.com/adpulse-io/insight-engine/pkg/vector"
)

// Filename extraction ladder, most specific first. Campaign ids are 26-char
// alphanumeric runs (ULID-shaped); exported screenshots usually carry them as
// "...._campaign_<id>_web-view.png".
var (
	webviewIDPattern  = regexp.MustCompile(`(?i)(?:sms_)?campaign_([0-9a-z]{26}).*web[-_]?view`)
	campaignIDPattern = regexp.MustCompile(`(?i)_campaign_([0-9a-z]{26})`)
	prefixIDPattern   = regexp.MustCompile(`(?i)campaign_([0-9a-z]{26})`)
	bareIDPattern     = regexp.MustCompile(`(?i)(?:^|[^0-9a-z])([0-9a-z]{26})(?:[^0-9a-z]|$)`)
)

var imageExtensions = map[string]struct{}{".jpg": {}, ".jpeg": {}, ".png": {}}

// ExtractCampaignID pulls a campaign identifier out of an image filename.
// Patterns are tried most specific first; ok is false when no 26-character
// alphanumeric run exists anywhere in the name.
func ExtractCampaignID(filename string) (string, bool) {
	base := filepath.Base(filename)
	for _, pattern := range []*regexp.Regexp{webviewIDPattern, campaignIDPattern, prefixIDPattern, bareIDPattern} {
		if m := pattern.FindStringSubmatch(base); len(m) >= 2 {
			return strings.ToUpper(m[1]), true
		}
	}
	return "", false
}

// ImageAnalyzer is the visual feature detector collaborator.
type ImageAnalyzer interface {
	Analyze(ctx context.Context, path string) (map[string]any, error)
}

// disabledAnalyzer is the shipped detector: it always reports zero features.
// The pipeline is expected to tolerate an empty feature stream end to end.
type disabledAnalyzer struct{}

// NewDisabledAnalyzer creates the no-op ImageAnalyzer.
func NewDisabledAnalyzer() ImageAnalyzer {
	return &disabledAnalyzer{}
}

func (disabledAnalyzer) Analyze(context.Context, string) (map[string]any, error) {
	return map[string]any{}, nil
}

// ImageAssociator maps creative images to campaigns and produces normalized
// analyses for correlation.
type ImageAssociator interface {
	// ResolveImages resolves analyses for a run: stored vector records are
	// reused per campaign, then imageDir (if set) is scanned for files not
	// covered. Per-image failures are logged and skipped, never fatal.
	ResolveImages(ctx context.Context, runID uuid.UUID, campaignIDs []string, imageDir string) ([]models.ImageAnalysis, error)
}

type imageAssociator struct {
	store      vector.Store
	analyses   repositories.ImageAnalysisRepository
	aggregator VisualAggregator
	analyzer   ImageAnalyzer
	logger     *zap.Logger
}

// NewImageAssociator creates a new ImageAssociator. store may be nil, which
// skips the reuse path.
func NewImageAssociator(
	store vector.Store,
	analyses repositories.ImageAnalysisRepository,
	aggregator VisualAggregator,
	analyzer ImageAnalyzer,
	logger *zap.Logger,
) ImageAssociator {
	if analyzer == nil {
		analyzer = NewDisabledAnalyzer()
	}
	return &imageAssociator{
		store:      store,
		analyses:   analyses,
		aggregator: aggregator,
		analyzer:   analyzer,
		logger:     logger,
	}
}

var _ ImageAssociator = (*imageAssociator)(nil)

func (s *imageAssociator) ResolveImages(ctx context.Context, runID uuid.UUID, campaignIDs []string, imageDir string) ([]models.ImageAnalysis, error) {
	var results []models.ImageAnalysis

	for _, campaignID := range campaignIDs {
		reused := s.reuseStored(ctx, runID, campaignID)
		results = append(results, reused...)
	}

	if imageDir != "" {
		scanned := s.scanDirectory(ctx, runID, campaignIDs, imageDir)
		results = append(results, scanned...)
	}

	return results, nil
}

// reuseStored normalizes image entries attached to the campaign's stored
// vector record, skipping recomputation entirely.
func (s *imageAssociator) reuseStored(ctx context.Context, runID uuid.UUID, campaignID string) []models.ImageAnalysis {
	if s.store == nil {
		return nil
	}

	_, metadata, err := s.store.Get(ctx, campaignID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("vector record lookup failed",
				zap.String("campaign_id", campaignID),
				zap.String("error", logging.SanitizeError(err)))
		}
		return nil
	}

	entries, ok := metadata["image_analyses"].([]any)
	if !ok {
		return nil
	}

	var results []models.ImageAnalysis
	for i, entry := range entries {
		raw, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		analysis := s.aggregator.Normalize(raw, campaignID, i)
		s.persist(ctx, runID, analysis)
		results = append(results, *analysis)
	}
	return results
}

// scanDirectory analyzes image files on disk. Association to a campaign is
// best effort: an exact id match wins, then a partial substring match in
// either direction, and an unmatched image is still analyzed with an empty
// campaign id.
func (s *imageAssociator) scanDirectory(ctx context.Context, runID uuid.UUID, campaignIDs []string, imageDir string) []models.ImageAnalysis {
	entries, err := os.ReadDir(imageDir)
	if err != nil {
		s.logger.Warn("image directory unreadable",
			zap.String("dir", imageDir),
			zap.String("error", logging.SanitizeError(err)))
		return nil
	}

	var results []models.ImageAnalysis
	index := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
			continue
		}

		path := filepath.Join(imageDir, entry.Name())
		analysis := s.resolveFile(ctx, runID, campaignIDs, path, index)
		if analysis != nil {
			results = append(results, *analysis)
			index++
		}
	}
	return results
}

func (s *imageAssociator) resolveFile(ctx context.Context, runID uuid.UUID, campaignIDs []string, path string, index int) *models.ImageAnalysis {
	// A stored analysis for this exact path short-circuits re-analysis. It is
	// still recorded under the current run so the run's ledger lists every
	// analysis its summary counts.
	if stored, err := s.analyses.GetByPath(ctx, path); err == nil {
		s.persist(ctx, runID, stored)
		return stored
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		s.logger.Warn("stored analysis lookup failed",
			zap.String("path", path),
			zap.String("error", logging.SanitizeError(err)))
	}

	campaignID := ""
	if extracted, ok := ExtractCampaignID(path); ok {
		campaignID = matchCampaignID(extracted, campaignIDs)
	}

	raw, err := s.analyzer.Analyze(ctx, path)
	if err != nil {
		s.logger.Warn("image analysis failed, skipping",
			zap.String("path", path),
			zap.String("error", logging.SanitizeError(err)))
		return nil
	}

	analysis := s.aggregator.Normalize(raw, campaignID, index)
	analysis.SourcePath = path
	analysis.ImageID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	s.persist(ctx, runID, analysis)
	return analysis
}

func (s *imageAssociator) persist(ctx context.Context, runID uuid.UUID, analysis *models.ImageAnalysis) {
	if err := s.analyses.Create(ctx, runID, analysis); err != nil {
		s.logger.Warn("image analysis write failed",
			zap.String("image_id", analysis.ImageID),
			zap.String("error", logging.SanitizeError(err)))
	}
}

// matchCampaignID resolves an extracted id against the known set. Partial
// substring matches are accepted when no exact match exists, which can
// over-associate ids sharing suffixes; an id with no match at all is kept
// as extracted so the association is inspectable later.
func matchCampaignID(extracted string, campaignIDs []string) string {
	for _, id := range campaignIDs {
		if strings.EqualFold(id, extracted) {
			return id
		}
	}
	for _, id := range campaignIDs {
		upper := strings.ToUpper(id)
		if strings.Contains(upper, extracted) || strings.Contains(extracted, upper) {
			return id
		}
	}
	return extracted
}
