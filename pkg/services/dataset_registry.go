// Package services contains the insight pipeline's business logic: candidate
// selection, retrieval fusion, image association, visual aggregation,
// correlation, and run orchestration.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/adpulse-io/insight-engine/pkg/apperrors"
	"github.com/adpulse-io/insight-engine/pkg/models"
	"github.com/adpulse-io/insight-engine/pkg/repositories"
)

// DatasetRegistry tracks which tabular datasets are available for querying
// and resolves free-text prompts to the best matching dataset.
type DatasetRegistry interface {
	Register(ctx context.Context, dataset *models.Dataset) error
	Get(ctx context.Context, tableName string) (*models.Dataset, error)
	List(ctx context.Context) ([]*models.Dataset, error)
	// Resolve picks the registered dataset whose names best overlap the
	// prompt. With no overlap at all it falls back to the oldest registered
	// dataset; with no datasets it returns apperrors.ErrNoDatasets.
	Resolve(ctx context.Context, prompt string) (*models.Dataset, error)
}

type datasetRegistry struct {
	repo   repositories.DatasetRepository
	logger *zap.Logger
}

// NewDatasetRegistry creates a new DatasetRegistry.
func NewDatasetRegistry(repo repositories.DatasetRepository, logger *zap.Logger) DatasetRegistry {
	return &datasetRegistry{repo: repo, logger: logger}
}

var _ DatasetRegistry = (*datasetRegistry)(nil)

func (s *datasetRegistry) Register(ctx context.Context, dataset *models.Dataset) error {
	if dataset.TableName == "" {
		return fmt.Errorf("dataset table name is required")
	}
	if err := s.repo.Upsert(ctx, dataset); err != nil {
		return err
	}

	s.logger.Info("dataset registered",
		zap.String("table", dataset.TableName),
		zap.String("business", dataset.Business),
		zap.Int("rows", dataset.RowCount))
	return nil
}

func (s *datasetRegistry) Get(ctx context.Context, tableName string) (*models.Dataset, error) {
	return s.repo.GetByTable(ctx, tableName)
}

func (s *datasetRegistry) List(ctx context.Context) ([]*models.Dataset, error) {
	return s.repo.List(ctx)
}

func (s *datasetRegistry) Resolve(ctx context.Context, prompt string) (*models.Dataset, error) {
	datasets, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(datasets) == 0 {
		return nil, apperrors.ErrNoDatasets
	}

	promptTokens := tokenSet(prompt)

	best := datasets[0]
	bestScore := 0
	for _, ds := range datasets {
		score := matchScore(promptTokens, ds)
		if score > bestScore {
			best, bestScore = ds, score
		}
	}

	s.logger.Debug("resolved dataset for prompt",
		zap.String("table", best.TableName),
		zap.Int("score", bestScore))
	return best, nil
}

// matchScore counts prompt tokens that appear in any of the dataset's name
// variants. Each variant is scored independently and the best one wins, so a
// prompt naming the business or the dataset scores the same.
func matchScore(promptTokens map[string]struct{}, ds *models.Dataset) int {
	variants := []string{
		ds.TableName,
		ds.DatasetName,
		ds.Business + " " + ds.DatasetName,
	}

	best := 0
	for _, v := range variants {
		score := 0
		for tok := range tokenSet(v) {
			if _, ok := promptTokens[tok]; ok {
				score++
			}
		}
		if score > best {
			best = score
		}
	}
	return best
}

// tokenSet lowercases, splits on non-alphanumerics, and singularizes each
// token so "campaigns" in a prompt matches a "campaign" table.
func tokenSet(text string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(tok) < 2 {
			continue
		}
		tokens[inflection.Singular(tok)] = struct{}{}
	}
	return tokens
}
