package repositories

import (
	"context"
	"fmt"
)

// QueryResult is the outcome of executing one read-only statement: the SQL
// that ran, the ordered column names, and rows as column-keyed maps.
type QueryResult struct {
	SQL     string           `json:"sql"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// TabularRepository executes validated read-only SQL against the ingested
// dataset tables.
type TabularRepository interface {
	// ExecuteQuery runs a statement already cleared by sqlcheck and returns
	// ordered columns plus rows as field maps.
	ExecuteQuery(ctx context.Context, sqlQuery string) (*QueryResult, error)
	// SampleRows fetches up to n rows from a table, used to ground the LLM in
	// real column names and value shapes.
	SampleRows(ctx context.Context, tableName string, n int) (*QueryResult, error)
}

type tabularRepository struct {
	db Querier
}

// NewTabularRepository creates a new TabularRepository.
func NewTabularRepository(db Querier) TabularRepository {
	return &tabularRepository{db: db}
}

var _ TabularRepository = (*tabularRepository)(nil)

func (r *tabularRepository) ExecuteQuery(ctx context.Context, sqlQuery string) (*QueryResult, error) {
	rows, err := r.db.Query(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = string(fd.Name)
	}

	result := &QueryResult{SQL: sqlQuery, Columns: columns, Rows: []map[string]any{}}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	return result, nil
}

func (r *tabularRepository) SampleRows(ctx context.Context, tableName string, n int) (*QueryResult, error) {
	if n <= 0 {
		n = 3
	}
	// Table names come from the registry, not from user input, but quote
	// them anyway since ingested names may need it.
	return r.ExecuteQuery(ctx, fmt.Sprintf(`SELECT * FROM %q LIMIT %d`, tableName, n))
}
