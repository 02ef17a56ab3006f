// Package prompts builds the LLM prompts used by the pipeline. Builders are
// pure functions over context structs so they stay unit testable.
package prompts

import (
	"fmt"
	"strings"

	"github.com/adpulse-io/insight-engine/pkg/models"
)

// SQLGenerationSystemMessage frames the model as a read-only SQL author.
const SQLGenerationSystemMessage = `You are a careful data analyst who writes PostgreSQL SELECT statements.
You only ever produce a single read-only statement. You never modify data.`

// DatasetContext is the schema plus sample evidence handed to the model for
// one registered dataset.
type DatasetContext struct {
	Dataset    models.Dataset
	SampleRows []map[string]any
}

// BuildSQLGenerationPrompt creates the prompt asking the model to translate a
// natural language request into one SELECT statement over the registered
// datasets. Sample rows ground the model in real column names and value
// shapes so it stops inventing columns.
func BuildSQLGenerationPrompt(request string, datasets []DatasetContext) string {
	var prompt strings.Builder

	prompt.WriteString("# SQL Generation\n\n")
	prompt.WriteString("Translate the analyst request into exactly one PostgreSQL SELECT statement.\n\n")

	prompt.WriteString("## Available Tables\n\n")
	for _, dc := range datasets {
		d := dc.Dataset
		prompt.WriteString(fmt.Sprintf("### %s\n", d.TableName))
		if d.Business != "" || d.DatasetName != "" {
			prompt.WriteString(fmt.Sprintf("Dataset: %s %s (%s)\n", d.Business, d.DatasetName, d.Category))
		}
		if d.RowCount > 0 {
			prompt.WriteString(fmt.Sprintf("Row count: %d\n", d.RowCount))
		}
		prompt.WriteString(fmt.Sprintf("Columns: %s\n", strings.Join(d.Columns, ", ")))

		if len(dc.SampleRows) > 0 {
			prompt.WriteString("Sample rows:\n")
			for _, row := range dc.SampleRows {
				prompt.WriteString("- " + formatSampleRow(d.Columns, row) + "\n")
			}
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Request\n\n")
	prompt.WriteString(request + "\n\n")

	prompt.WriteString("## Rules\n\n")
	prompt.WriteString("1. Return exactly one SELECT (or WITH ... SELECT) statement.\n")
	prompt.WriteString("2. Only reference tables and columns listed above.\n")
	prompt.WriteString("3. Never write data: no DDL, no DML, no multiple statements.\n")
	prompt.WriteString("4. Include a LIMIT clause; keep result sets under a few hundred rows.\n")
	prompt.WriteString("5. Respond with the SQL inside a ```sql fenced block and nothing else.\n")

	return prompt.String()
}

// formatSampleRow renders a row with columns in table order so prompts are
// stable across runs.
func formatSampleRow(columns []string, row map[string]any) string {
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		v, ok := row[col]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", col, v))
	}
	if len(parts) == 0 {
		// Columns may be unregistered for ad hoc samples; fall back to any order.
		for k, v := range row {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	return strings.Join(parts, ", ")
}
