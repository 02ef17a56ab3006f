package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/adpulse-io/insight-engine/pkg/apperrors"
	"github.com/adpulse-io/insight-engine/pkg/models"
)

// ImageAnalysisRepository persists per-image analyses. Analyses are also an
// index keyed by source path so a previously analyzed file is reused verbatim
// instead of re-analyzed.
type ImageAnalysisRepository interface {
	Create(ctx context.Context, runID uuid.UUID, analysis *models.ImageAnalysis) error
	// GetByPath returns the most recent stored analysis for an exact file
	// path, or apperrors.ErrNotFound.
	GetByPath(ctx context.Context, sourcePath string) (*models.ImageAnalysis, error)
	ListByRun(ctx context.Context, runID uuid.UUID) ([]models.ImageAnalysis, error)
}

type imageAnalysisRepository struct {
	db Querier
}

// NewImageAnalysisRepository creates a new ImageAnalysisRepository.
func NewImageAnalysisRepository(db Querier) ImageAnalysisRepository {
	return &imageAnalysisRepository{db: db}
}

var _ ImageAnalysisRepository = (*imageAnalysisRepository)(nil)

func (r *imageAnalysisRepository) Create(ctx context.Context, runID uuid.UUID, analysis *models.ImageAnalysis) error {
	analysis.EnsureDefaults()

	elementsJSON, err := json.Marshal(analysis.Elements)
	if err != nil {
		return fmt.Errorf("marshal elements: %w", err)
	}
	colorsJSON, err := json.Marshal(analysis.DominantColors)
	if err != nil {
		return fmt.Errorf("marshal colors: %w", err)
	}

	sql := `
		INSERT INTO image_analyses (id, run_id, campaign_id, image_id, source_path,
		                            visual_elements, dominant_colors, composition_analysis,
		                            overall_description, text_content, marketing_relevance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = r.db.Exec(ctx, sql,
		uuid.New(), runID, analysis.CampaignID, analysis.ImageID, analysis.SourcePath,
		elementsJSON, colorsJSON, analysis.CompositionAnalysis,
		analysis.OverallDescription, analysis.TextContent, analysis.MarketingRelevance,
	)
	if err != nil {
		return fmt.Errorf("failed to create image analysis: %w", err)
	}

	return nil
}

func (r *imageAnalysisRepository) GetByPath(ctx context.Context, sourcePath string) (*models.ImageAnalysis, error) {
	sql := selectImageAnalysis + `
		WHERE source_path = $1
		ORDER BY created_at DESC
		LIMIT 1`

	row := r.db.QueryRow(ctx, sql, sourcePath)
	analysis, err := scanImageAnalysis(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get image analysis: %w", err)
	}

	return analysis, nil
}

func (r *imageAnalysisRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]models.ImageAnalysis, error) {
	sql := selectImageAnalysis + `
		WHERE run_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, sql, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list image analyses: %w", err)
	}
	defer rows.Close()

	var analyses []models.ImageAnalysis
	for rows.Next() {
		analysis, err := scanImageAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image analysis: %w", err)
		}
		analyses = append(analyses, *analysis)
	}

	return analyses, rows.Err()
}

const selectImageAnalysis = `
		SELECT campaign_id, image_id, source_path, visual_elements, dominant_colors,
		       composition_analysis, overall_description, text_content, marketing_relevance
		FROM image_analyses`

func scanImageAnalysis(row pgx.Row) (*models.ImageAnalysis, error) {
	var analysis models.ImageAnalysis
	var elementsJSON, colorsJSON []byte

	err := row.Scan(&analysis.CampaignID, &analysis.ImageID, &analysis.SourcePath,
		&elementsJSON, &colorsJSON, &analysis.CompositionAnalysis,
		&analysis.OverallDescription, &analysis.TextContent, &analysis.MarketingRelevance)
	if err != nil {
		return nil, err
	}

	if len(elementsJSON) > 0 {
		if err := json.Unmarshal(elementsJSON, &analysis.Elements); err != nil {
			return nil, fmt.Errorf("unmarshal elements: %w", err)
		}
	}
	if len(colorsJSON) > 0 {
		if err := json.Unmarshal(colorsJSON, &analysis.DominantColors); err != nil {
			return nil, fmt.Errorf("unmarshal colors: %w", err)
		}
	}

	analysis.EnsureDefaults()
	return &analysis, nil
}
