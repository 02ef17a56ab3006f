package models

import (
	"time"
)

// Dataset describes one ingested tabular dataset. Datasets are registered by
// the ingestion subsystem and read by the SQL candidate selector to know what
// can be queried. Identity is the table name; re-ingestion upserts.
type Dataset struct {
	TableName   string    `json:"table_name"`
	Business    string    `json:"business"`
	Category    string    `json:"category"`
	DatasetName string    `json:"dataset_name"`
	SourceFile  string    `json:"source_file"`
	RowCount    int       `json:"row_count"`
	Columns     []string  `json:"columns"` // ordered as ingested
	IngestedAt  time.Time `json:"ingested_at"`
}
