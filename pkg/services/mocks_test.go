package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adpulse-io/insight-engine/pkg/apperrors"
	"github.com/adpulse-io/insight-engine/pkg/models"
	"github.com/adpulse-io/insight-engine/pkg/repositories"
)

// mockDatasetRepo is an in-memory DatasetRepository preserving insertion
// order like the real List.
type mockDatasetRepo struct {
	datasets []*models.Dataset
	listErr  error
}

func (m *mockDatasetRepo) Upsert(_ context.Context, dataset *models.Dataset) error {
	for i, ds := range m.datasets {
		if ds.TableName == dataset.TableName {
			m.datasets[i] = dataset
			return nil
		}
	}
	m.datasets = append(m.datasets, dataset)
	return nil
}

func (m *mockDatasetRepo) GetByTable(_ context.Context, tableName string) (*models.Dataset, error) {
	for _, ds := range m.datasets {
		if ds.TableName == tableName {
			return ds, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockDatasetRepo) List(_ context.Context) ([]*models.Dataset, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.datasets, nil
}

func (m *mockDatasetRepo) Count(_ context.Context) (int, error) {
	return len(m.datasets), nil
}

var _ repositories.DatasetRepository = (*mockDatasetRepo)(nil)

// mockSQLCacheRepo is an in-memory SQLCacheRepository.
type mockSQLCacheRepo struct {
	entries map[string]*models.SQLCacheEntry
	putErr  error
}

func newMockSQLCacheRepo() *mockSQLCacheRepo {
	return &mockSQLCacheRepo{entries: map[string]*models.SQLCacheEntry{}}
}

func (m *mockSQLCacheRepo) Get(_ context.Context, promptHash string) (*models.SQLCacheEntry, error) {
	entry, ok := m.entries[promptHash]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return entry, nil
}

func (m *mockSQLCacheRepo) Put(_ context.Context, entry *models.SQLCacheEntry) error {
	if m.putErr != nil {
		return m.putErr
	}
	entry.UpdatedAt = time.Now()
	m.entries[entry.PromptHash] = entry
	return nil
}

func (m *mockSQLCacheRepo) Delete(_ context.Context, promptHash string) error {
	delete(m.entries, promptHash)
	return nil
}

func (m *mockSQLCacheRepo) IncrementUsage(_ context.Context, promptHash string) error {
	if entry, ok := m.entries[promptHash]; ok {
		entry.UsageCount++
	}
	return nil
}

func (m *mockSQLCacheRepo) List(_ context.Context, _ int) ([]*models.SQLCacheEntry, error) {
	out := make([]*models.SQLCacheEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

var _ repositories.SQLCacheRepository = (*mockSQLCacheRepo)(nil)

// mockTabularRepo routes execution through a configurable function so tests
// control the "database" per statement.
type mockTabularRepo struct {
	executeFunc func(sqlQuery string) (*repositories.QueryResult, error)
	executed    []string
}

func (m *mockTabularRepo) ExecuteQuery(_ context.Context, sqlQuery string) (*repositories.QueryResult, error) {
	m.executed = append(m.executed, sqlQuery)
	if m.executeFunc != nil {
		return m.executeFunc(sqlQuery)
	}
	return &repositories.QueryResult{SQL: sqlQuery, Columns: []string{}, Rows: []map[string]any{}}, nil
}

func (m *mockTabularRepo) SampleRows(ctx context.Context, tableName string, n int) (*repositories.QueryResult, error) {
	return m.ExecuteQuery(ctx, fmt.Sprintf(`SELECT * FROM %q LIMIT %d`, tableName, n))
}

var _ repositories.TabularRepository = (*mockTabularRepo)(nil)

// mockImageAnalysisRepo stores analyses in memory, indexed by source path.
type mockImageAnalysisRepo struct {
	byPath map[string]*models.ImageAnalysis
	byRun  map[uuid.UUID][]models.ImageAnalysis
}

func newMockImageAnalysisRepo() *mockImageAnalysisRepo {
	return &mockImageAnalysisRepo{
		byPath: map[string]*models.ImageAnalysis{},
		byRun:  map[uuid.UUID][]models.ImageAnalysis{},
	}
}

func (m *mockImageAnalysisRepo) Create(_ context.Context, runID uuid.UUID, analysis *models.ImageAnalysis) error {
	analysis.EnsureDefaults()
	if analysis.SourcePath != "" {
		m.byPath[analysis.SourcePath] = analysis
	}
	m.byRun[runID] = append(m.byRun[runID], *analysis)
	return nil
}

func (m *mockImageAnalysisRepo) GetByPath(_ context.Context, sourcePath string) (*models.ImageAnalysis, error) {
	if a, ok := m.byPath[sourcePath]; ok {
		return a, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockImageAnalysisRepo) ListByRun(_ context.Context, runID uuid.UUID) ([]models.ImageAnalysis, error) {
	return m.byRun[runID], nil
}

var _ repositories.ImageAnalysisRepository = (*mockImageAnalysisRepo)(nil)

// mockExperimentRepo is an in-memory ExperimentRepository enforcing the
// terminal-state rule like the real one.
type mockExperimentRepo struct {
	runs         map[uuid.UUID]*models.ExperimentRun
	campaigns    map[uuid.UUID][]models.CampaignRecord
	correlations map[uuid.UUID][]models.Correlation

	recordCorrelationErr error
}

func newMockExperimentRepo() *mockExperimentRepo {
	return &mockExperimentRepo{
		runs:         map[uuid.UUID]*models.ExperimentRun{},
		campaigns:    map[uuid.UUID][]models.CampaignRecord{},
		correlations: map[uuid.UUID][]models.Correlation{},
	}
}

func (m *mockExperimentRepo) CreateRun(_ context.Context, run *models.ExperimentRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = models.RunStatusPending
	}
	run.CreatedAt = time.Now()
	m.runs[run.ID] = run
	return nil
}

func (m *mockExperimentRepo) SetRunOutcome(_ context.Context, runID uuid.UUID, status models.RunStatus, sqlQuery string, summary map[string]any) error {
	run, ok := m.runs[runID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if run.Status != models.RunStatusPending {
		return apperrors.ErrConflict
	}
	now := time.Now()
	run.Status = status
	run.SQLQuery = sqlQuery
	run.ResultsSummary = summary
	run.CompletedAt = &now
	return nil
}

func (m *mockExperimentRepo) RecordCampaign(_ context.Context, runID uuid.UUID, campaign models.CampaignRecord) error {
	m.campaigns[runID] = append(m.campaigns[runID], campaign)
	return nil
}

func (m *mockExperimentRepo) RecordCorrelation(_ context.Context, correlation *models.Correlation) error {
	if m.recordCorrelationErr != nil && correlation.ElementType == models.ElementHeroImage {
		return m.recordCorrelationErr
	}
	if correlation.ID == uuid.Nil {
		correlation.ID = uuid.New()
	}
	correlation.CreatedAt = time.Now()
	m.correlations[correlation.RunID] = append(m.correlations[correlation.RunID], *correlation)
	return nil
}

func (m *mockExperimentRepo) GetRun(_ context.Context, runID uuid.UUID) (*models.ExperimentRun, error) {
	run, ok := m.runs[runID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return run, nil
}

func (m *mockExperimentRepo) ListCampaigns(_ context.Context, runID uuid.UUID) ([]models.CampaignRecord, error) {
	return m.campaigns[runID], nil
}

func (m *mockExperimentRepo) ListCorrelations(_ context.Context, runID uuid.UUID) ([]models.Correlation, error) {
	return m.correlations[runID], nil
}

func (m *mockExperimentRepo) ListRuns(_ context.Context, limit int) ([]*models.ExperimentRun, error) {
	out := make([]*models.ExperimentRun, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ repositories.ExperimentRepository = (*mockExperimentRepo)(nil)

// containsKeyword reports whether the statement carries one of the forbidden
// mutation keywords, for safety property assertions.
func containsKeyword(sqlQuery string) bool {
	upper := strings.ToUpper(sqlQuery)
	for _, kw := range []string{"DROP", "DELETE", "INSERT", "UPDATE", "ALTER", "TRUNCATE", "CREATE", "EXEC"} {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}
