package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/adpulse-io/insight-engine/pkg/apperrors"
	"github.com/adpulse-io/insight-engine/pkg/models"
)

// ExperimentRepository persists experiment runs and their campaign and
// correlation children. Every write is its own commit: there is no
// all-or-nothing transaction across a run, so a crash mid-run leaves
// partial, inspectable state.
type ExperimentRepository interface {
	CreateRun(ctx context.Context, run *models.ExperimentRun) error
	// SetRunOutcome moves a run to its terminal status and stores the results
	// summary. Terminal states never transition back.
	SetRunOutcome(ctx context.Context, runID uuid.UUID, status models.RunStatus, sqlQuery string, summary map[string]any) error
	RecordCampaign(ctx context.Context, runID uuid.UUID, campaign models.CampaignRecord) error
	RecordCorrelation(ctx context.Context, correlation *models.Correlation) error
	GetRun(ctx context.Context, runID uuid.UUID) (*models.ExperimentRun, error)
	ListCampaigns(ctx context.Context, runID uuid.UUID) ([]models.CampaignRecord, error)
	ListCorrelations(ctx context.Context, runID uuid.UUID) ([]models.Correlation, error)
	ListRuns(ctx context.Context, limit int) ([]*models.ExperimentRun, error)
}

type experimentRepository struct {
	db Querier
}

// NewExperimentRepository creates a new ExperimentRepository.
func NewExperimentRepository(db Querier) ExperimentRepository {
	return &experimentRepository{db: db}
}

var _ ExperimentRepository = (*experimentRepository)(nil)

func (r *experimentRepository) CreateRun(ctx context.Context, run *models.ExperimentRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = models.RunStatusPending
	}
	run.CreatedAt = time.Now()

	configJSON, err := json.Marshal(orEmptyMap(run.Config))
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	sql := `
		INSERT INTO experiment_runs (id, name, description, sql_query, status, config, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.Exec(ctx, sql,
		run.ID, run.Name, run.Description, run.SQLQuery, run.Status, configJSON, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

func (r *experimentRepository) SetRunOutcome(ctx context.Context, runID uuid.UUID, status models.RunStatus, sqlQuery string, summary map[string]any) error {
	summaryJSON, err := json.Marshal(orEmptyMap(summary))
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	sql := `
		UPDATE experiment_runs
		SET status = $2, sql_query = $3, results_summary = $4, completed_at = now()
		WHERE id = $1 AND status = 'pending'`

	tag, err := r.db.Exec(ctx, sql, runID, status, sqlQuery, summaryJSON)
	if err != nil {
		return fmt.Errorf("failed to set run outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s is not pending: %w", runID, apperrors.ErrConflict)
	}

	return nil
}

func (r *experimentRepository) RecordCampaign(ctx context.Context, runID uuid.UUID, campaign models.CampaignRecord) error {
	metricsJSON, err := json.Marshal(orEmptyMap(campaign.Metrics))
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	sql := `
		INSERT INTO run_campaigns (id, run_id, campaign_id, name, channel, metrics)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.db.Exec(ctx, sql, uuid.New(), runID, campaign.CampaignID, campaign.Name, campaign.Channel, metricsJSON)
	if err != nil {
		return fmt.Errorf("failed to record campaign: %w", err)
	}

	return nil
}

func (r *experimentRepository) RecordCorrelation(ctx context.Context, correlation *models.Correlation) error {
	if correlation.ID == uuid.Nil {
		correlation.ID = uuid.New()
	}
	correlation.CreatedAt = time.Now()

	perfJSON, err := json.Marshal(correlation.AvgPerformance)
	if err != nil {
		return fmt.Errorf("marshal avg performance: %w", err)
	}

	sql := `
		INSERT INTO correlations (id, run_id, element_type, description, avg_performance,
		                          impact, recommendation, campaign_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.Exec(ctx, sql,
		correlation.ID, correlation.RunID, correlation.ElementType, correlation.Description,
		perfJSON, correlation.Impact, correlation.Recommendation, correlation.CampaignCount,
		correlation.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record correlation: %w", err)
	}

	return nil
}

func (r *experimentRepository) GetRun(ctx context.Context, runID uuid.UUID) (*models.ExperimentRun, error) {
	sql := selectRun + ` WHERE id = $1`

	row := r.db.QueryRow(ctx, sql, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

func (r *experimentRepository) ListCampaigns(ctx context.Context, runID uuid.UUID) ([]models.CampaignRecord, error) {
	sql := `
		SELECT campaign_id, name, channel, metrics
		FROM run_campaigns
		WHERE run_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, sql, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []models.CampaignRecord
	for rows.Next() {
		var c models.CampaignRecord
		var metricsJSON []byte
		if err := rows.Scan(&c.CampaignID, &c.Name, &c.Channel, &metricsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run campaign: %w", err)
		}
		if len(metricsJSON) > 0 {
			if err := json.Unmarshal(metricsJSON, &c.Metrics); err != nil {
				return nil, fmt.Errorf("unmarshal metrics: %w", err)
			}
		}
		campaigns = append(campaigns, c)
	}

	return campaigns, rows.Err()
}

func (r *experimentRepository) ListCorrelations(ctx context.Context, runID uuid.UUID) ([]models.Correlation, error) {
	sql := `
		SELECT id, run_id, element_type, description, avg_performance, impact,
		       recommendation, campaign_count, created_at
		FROM correlations
		WHERE run_id = $1
		ORDER BY campaign_count DESC, element_type ASC`

	rows, err := r.db.Query(ctx, sql, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list correlations: %w", err)
	}
	defer rows.Close()

	var correlations []models.Correlation
	for rows.Next() {
		var c models.Correlation
		var perfJSON []byte
		if err := rows.Scan(&c.ID, &c.RunID, &c.ElementType, &c.Description, &perfJSON,
			&c.Impact, &c.Recommendation, &c.CampaignCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan correlation: %w", err)
		}
		if len(perfJSON) > 0 {
			if err := json.Unmarshal(perfJSON, &c.AvgPerformance); err != nil {
				return nil, fmt.Errorf("unmarshal avg performance: %w", err)
			}
		}
		correlations = append(correlations, c)
	}

	return correlations, rows.Err()
}

func (r *experimentRepository) ListRuns(ctx context.Context, limit int) ([]*models.ExperimentRun, error) {
	if limit <= 0 {
		limit = 20
	}

	sql := selectRun + `
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ExperimentRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

const selectRun = `
		SELECT id, name, description, sql_query, status, config, results_summary, created_at, completed_at
		FROM experiment_runs`

func scanRun(row pgx.Row) (*models.ExperimentRun, error) {
	var run models.ExperimentRun
	var configJSON, summaryJSON []byte

	err := row.Scan(&run.ID, &run.Name, &run.Description, &run.SQLQuery, &run.Status,
		&configJSON, &summaryJSON, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		return nil, err
	}

	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &run.Config); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &run.ResultsSummary); err != nil {
			return nil, fmt.Errorf("unmarshal results summary: %w", err)
		}
	}

	return &run, nil
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
