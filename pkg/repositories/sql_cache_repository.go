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

// SQLCacheRepository persists the prompt-to-SQL cache. The cache survives
// process restarts and is injected into the selector rather than held as
// process-global state.
type SQLCacheRepository interface {
	Get(ctx context.Context, promptHash string) (*models.SQLCacheEntry, error)
	// Put upserts the entry keyed by its prompt hash.
	Put(ctx context.Context, entry *models.SQLCacheEntry) error
	// Delete drops a stale entry whose SQL no longer executes.
	Delete(ctx context.Context, promptHash string) error
	IncrementUsage(ctx context.Context, promptHash string) error
	List(ctx context.Context, limit int) ([]*models.SQLCacheEntry, error)
}

type sqlCacheRepository struct {
	db Querier
}

// NewSQLCacheRepository creates a new SQLCacheRepository.
func NewSQLCacheRepository(db Querier) SQLCacheRepository {
	return &sqlCacheRepository{db: db}
}

var _ SQLCacheRepository = (*sqlCacheRepository)(nil)

func (r *sqlCacheRepository) Get(ctx context.Context, promptHash string) (*models.SQLCacheEntry, error) {
	sql := `
		SELECT prompt_hash, prompt, sql_query, table_name, business, dataset_name,
		       columns, generated_by, usage_count, created_at, updated_at
		FROM sql_cache
		WHERE prompt_hash = $1`

	row := r.db.QueryRow(ctx, sql, promptHash)
	entry, err := scanCacheEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	return entry, nil
}

func (r *sqlCacheRepository) Put(ctx context.Context, entry *models.SQLCacheEntry) error {
	columnsJSON, err := json.Marshal(entry.Columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}

	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	sql := `
		INSERT INTO sql_cache (prompt_hash, prompt, sql_query, table_name, business,
		                       dataset_name, columns, generated_by, usage_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (prompt_hash) DO UPDATE SET
			sql_query = EXCLUDED.sql_query,
			table_name = EXCLUDED.table_name,
			business = EXCLUDED.business,
			dataset_name = EXCLUDED.dataset_name,
			columns = EXCLUDED.columns,
			generated_by = EXCLUDED.generated_by,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(ctx, sql,
		entry.PromptHash, entry.Prompt, entry.SQLQuery, entry.TableName, entry.Business,
		entry.DatasetName, columnsJSON, entry.GeneratedBy, entry.UsageCount,
		entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put cache entry: %w", err)
	}

	return nil
}

func (r *sqlCacheRepository) Delete(ctx context.Context, promptHash string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sql_cache WHERE prompt_hash = $1`, promptHash); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

func (r *sqlCacheRepository) IncrementUsage(ctx context.Context, promptHash string) error {
	sql := `UPDATE sql_cache SET usage_count = usage_count + 1, updated_at = now() WHERE prompt_hash = $1`
	if _, err := r.db.Exec(ctx, sql, promptHash); err != nil {
		return fmt.Errorf("failed to increment usage: %w", err)
	}
	return nil
}

func (r *sqlCacheRepository) List(ctx context.Context, limit int) ([]*models.SQLCacheEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	sql := `
		SELECT prompt_hash, prompt, sql_query, table_name, business, dataset_name,
		       columns, generated_by, usage_count, created_at, updated_at
		FROM sql_cache
		ORDER BY updated_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.SQLCacheEntry
	for rows.Next() {
		entry, err := scanCacheEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func scanCacheEntry(row pgx.Row) (*models.SQLCacheEntry, error) {
	var entry models.SQLCacheEntry
	var columnsJSON []byte

	err := row.Scan(&entry.PromptHash, &entry.Prompt, &entry.SQLQuery, &entry.TableName,
		&entry.Business, &entry.DatasetName, &columnsJSON, &entry.GeneratedBy,
		&entry.UsageCount, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(columnsJSON) > 0 {
		if err := json.Unmarshal(columnsJSON, &entry.Columns); err != nil {
			return nil, fmt.Errorf("unmarshal columns: %w", err)
		}
	}

	return &entry, nil
}
