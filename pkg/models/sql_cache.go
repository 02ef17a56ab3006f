package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// SQLCacheEntry maps a normalized prompt to the SQL generated for it. Only
// the SQL text and provenance metadata are cached, never rows: underlying
// data mutates between runs, so cached SQL is always re-executed.
type SQLCacheEntry struct {
	PromptHash  string    `json:"prompt_hash"` // identity
	Prompt      string    `json:"prompt"`
	SQLQuery    string    `json:"sql_query"`
	TableName   string    `json:"table_name"`
	Business    string    `json:"business"`
	DatasetName string    `json:"dataset_name"`
	Columns     []string  `json:"columns"`
	GeneratedBy string    `json:"generated_by"` // "heuristic" or the model name
	UsageCount  int       `json:"usage_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GeneratorHeuristic is the provenance value for fallback-generated SQL.
const GeneratorHeuristic = "heuristic"

// NormalizePrompt canonicalizes a prompt for cache keying.
func NormalizePrompt(prompt string) string {
	return strings.ToLower(strings.TrimSpace(prompt))
}

// HashPrompt returns the cache key for a prompt: SHA-256 hex of the
// normalized text.
func HashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(NormalizePrompt(prompt)))
	return hex.EncodeToString(sum[:])
}
