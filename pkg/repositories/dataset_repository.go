package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/adpulse-io/insight-engine/pkg/apperrors"
	"github.com/adpulse-io/insight-engine/pkg/models"
)

// DatasetRepository provides data access for the dataset registry.
type DatasetRepository interface {
	// Upsert registers a dataset, overwriting any previous registration for
	// the same table name.
	Upsert(ctx context.Context, dataset *models.Dataset) error
	GetByTable(ctx context.Context, tableName string) (*models.Dataset, error)
	// List returns all registered datasets ordered by ingestion time, oldest
	// first, so "the first known dataset" is stable.
	List(ctx context.Context) ([]*models.Dataset, error)
	Count(ctx context.Context) (int, error)
}

type datasetRepository struct {
	db Querier
}

// NewDatasetRepository creates a new DatasetRepository.
func NewDatasetRepository(db Querier) DatasetRepository {
	return &datasetRepository{db: db}
}

var _ DatasetRepository = (*datasetRepository)(nil)

func (r *datasetRepository) Upsert(ctx context.Context, dataset *models.Dataset) error {
	columnsJSON, err := json.Marshal(dataset.Columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}

	if dataset.IngestedAt.IsZero() {
		dataset.IngestedAt = time.Now()
	}

	sql := `
		INSERT INTO datasets (table_name, business, category, dataset_name, source_file, row_count, columns, ingested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (table_name) DO UPDATE SET
			business = EXCLUDED.business,
			category = EXCLUDED.category,
			dataset_name = EXCLUDED.dataset_name,
			source_file = EXCLUDED.source_file,
			row_count = EXCLUDED.row_count,
			columns = EXCLUDED.columns,
			ingested_at = EXCLUDED.ingested_at`

	_, err = r.db.Exec(ctx, sql,
		dataset.TableName, dataset.Business, dataset.Category, dataset.DatasetName,
		dataset.SourceFile, dataset.RowCount, columnsJSON, dataset.IngestedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert dataset: %w", err)
	}

	return nil
}

func (r *datasetRepository) GetByTable(ctx context.Context, tableName string) (*models.Dataset, error) {
	sql := `
		SELECT table_name, business, category, dataset_name, source_file, row_count, columns, ingested_at
		FROM datasets
		WHERE table_name = $1`

	row := r.db.QueryRow(ctx, sql, tableName)
	ds, err := scanDataset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}

	return ds, nil
}

func (r *datasetRepository) List(ctx context.Context) ([]*models.Dataset, error) {
	sql := `
		SELECT table_name, business, category, dataset_name, source_file, row_count, columns, ingested_at
		FROM datasets
		ORDER BY ingested_at ASC, table_name ASC`

	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var datasets []*models.Dataset
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		datasets = append(datasets, ds)
	}

	return datasets, rows.Err()
}

func (r *datasetRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM datasets`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count datasets: %w", err)
	}
	return count, nil
}

func scanDataset(row pgx.Row) (*models.Dataset, error) {
	var ds models.Dataset
	var columnsJSON []byte

	err := row.Scan(&ds.TableName, &ds.Business, &ds.Category, &ds.DatasetName,
		&ds.SourceFile, &ds.RowCount, &columnsJSON, &ds.IngestedAt)
	if err != nil {
		return nil, err
	}

	if len(columnsJSON) > 0 {
		if err := json.Unmarshal(columnsJSON, &ds.Columns); err != nil {
			return nil, fmt.Errorf("unmarshal columns: %w", err)
		}
	}

	return &ds, nil
}
