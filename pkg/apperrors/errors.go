package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrNoDatasets indicates the dataset registry is empty; nothing can be
	// queried and the run is marked failed.
	ErrNoDatasets = errors.New("no datasets registered")

	// ErrNoCampaigns indicates candidate selection produced zero rows. This is
	// a valid outcome, not a failure; runs complete with zero campaigns.
	ErrNoCampaigns = errors.New("no campaigns matched the request")
)

// UnsafeSQLError indicates generated SQL failed the read-only safety check.
type UnsafeSQLError struct {
	SQL    string
	Reason string
}

func (e *UnsafeSQLError) Error() string {
	return fmt.Sprintf("unsafe SQL rejected: %s", e.Reason)
}

// SQLExecutionError wraps a query execution failure with the column list of
// the resolved table so callers can retry with corrected intent.
type SQLExecutionError struct {
	Table   string
	Columns []string
	Cause   error
}

func (e *SQLExecutionError) Error() string {
	if len(e.Columns) > 0 {
		return fmt.Sprintf("SQL execution failed on %s (available columns: %s): %v",
			e.Table, strings.Join(e.Columns, ", "), e.Cause)
	}
	return fmt.Sprintf("SQL execution failed on %s: %v", e.Table, e.Cause)
}

func (e *SQLExecutionError) Unwrap() error {
	return e.Cause
}
