package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adpulse-io/insight-engine/pkg/apperrors"
	"github.com/adpulse-io/insight-engine/pkg/llm"
	"github.com/adpulse-io/insight-engine/pkg/models"
	"github.com/adpulse-io/insight-engine/pkg/repositories"
)

func acmeDataset() *models.Dataset {
	return &models.Dataset{
		TableName:   "acme_sales",
		Business:    "acme",
		DatasetName: "sales",
		Columns:     []string{"campaign_id", "campaign_name", "conversion_rate", "revenue", "sent_date", "created_at"},
	}
}

func acmeRows() []map[string]any {
	return []map[string]any{
		{"campaign_id": "C1", "campaign_name": "Spring", "conversion_rate": 0.05, "revenue": 1000.0},
		{"campaign_id": "C2", "campaign_name": "Fall", "conversion_rate": 0.02, "revenue": 2000.0},
	}
}

func newSelectorFixture(client llm.LLMClient, useLLM bool) (SQLSelector, *mockSQLCacheRepo, *mockTabularRepo) {
	registry := NewDatasetRegistry(&mockDatasetRepo{datasets: []*models.Dataset{acmeDataset()}}, zap.NewNop())
	cache := newMockSQLCacheRepo()
	tabular := &mockTabularRepo{executeFunc: func(sqlQuery string) (*repositories.QueryResult, error) {
		return &repositories.QueryResult{
			SQL:     sqlQuery,
			Columns: []string{"campaign_id", "campaign_name", "conversion_rate", "revenue"},
			Rows:    acmeRows(),
		}, nil
	}}
	selector := NewSQLSelector(registry, cache, tabular, client, SQLSelectorConfig{UseLLM: useLLM}, zap.NewNop())
	return selector, cache, tabular
}

func TestSQLSelector_HeuristicPath(t *testing.T) {
	ctx := context.Background()
	selector, cache, _ := newSelectorFixture(nil, false)

	sel, err := selector.SelectCampaignData(ctx, "top campaigns")
	require.NoError(t, err)

	assert.Equal(t, `SELECT * FROM "acme_sales" ORDER BY "sent_date" DESC LIMIT 50`, sel.Result.SQL)
	assert.False(t, sel.FromCache)
	assert.Equal(t, models.GeneratorHeuristic, sel.Entry.GeneratedBy)
	assert.Len(t, sel.Result.Rows, 2)
	assert.False(t, containsKeyword(sel.Result.SQL))

	stored, err := cache.Get(ctx, models.HashPrompt("top campaigns"))
	require.NoError(t, err)
	assert.Equal(t, sel.Result.SQL, stored.SQLQuery)
	assert.Equal(t, "acme_sales", stored.TableName)
}

func TestSQLSelector_HeuristicSkipsBookkeepingColumns(t *testing.T) {
	sqlText := buildHeuristicSQL(&models.Dataset{
		TableName: "t",
		Columns:   []string{"created_at", "sent_date", "name"},
	}, 50)

	assert.Equal(t, `SELECT * FROM "t" ORDER BY "sent_date" DESC LIMIT 50`, sqlText)
	assert.False(t, containsKeyword(sqlText))
}

func TestSQLSelector_NoDatasets(t *testing.T) {
	registry := NewDatasetRegistry(&mockDatasetRepo{}, zap.NewNop())
	selector := NewSQLSelector(registry, newMockSQLCacheRepo(), &mockTabularRepo{}, nil, SQLSelectorConfig{}, zap.NewNop())

	_, err := selector.SelectCampaignData(context.Background(), "anything")
	assert.ErrorIs(t, err, apperrors.ErrNoDatasets)
}

func TestSQLSelector_CacheHitReexecutes(t *testing.T) {
	ctx := context.Background()
	selector, cache, tabular := newSelectorFixture(nil, false)

	first, err := selector.SelectCampaignData(ctx, "Top Campaigns ")
	require.NoError(t, err)

	// Same prompt modulo case and whitespace hits the same entry.
	second, err := selector.SelectCampaignData(ctx, "top campaigns")
	require.NoError(t, err)

	assert.True(t, second.FromCache)
	assert.Equal(t, first.Result.SQL, second.Result.SQL)

	entry, err := cache.Get(ctx, models.HashPrompt("top campaigns"))
	require.NoError(t, err)
	assert.Equal(t, 2, entry.UsageCount)

	// Cached SQL was executed again, not served from stored rows.
	assert.Equal(t, first.Result.SQL, tabular.executed[len(tabular.executed)-1])
}

func TestSQLSelector_StaleCacheRegenerates(t *testing.T) {
	ctx := context.Background()
	registry := NewDatasetRegistry(&mockDatasetRepo{datasets: []*models.Dataset{acmeDataset()}}, zap.NewNop())
	cache := newMockSQLCacheRepo()

	hash := models.HashPrompt("top campaigns")
	staleSQL := `SELECT * FROM "dropped_table" LIMIT 50`
	require.NoError(t, cache.Put(ctx, &models.SQLCacheEntry{
		PromptHash: hash, Prompt: "top campaigns", SQLQuery: staleSQL, GeneratedBy: models.GeneratorHeuristic,
	}))

	tabular := &mockTabularRepo{executeFunc: func(sqlQuery string) (*repositories.QueryResult, error) {
		if strings.Contains(sqlQuery, "dropped_table") {
			return nil, errors.New(`relation "dropped_table" does not exist`)
		}
		return &repositories.QueryResult{SQL: sqlQuery, Columns: []string{"campaign_id"}, Rows: acmeRows()}, nil
	}}
	selector := NewSQLSelector(registry, cache, tabular, nil, SQLSelectorConfig{}, zap.NewNop())

	sel, err := selector.SelectCampaignData(ctx, "top campaigns")
	require.NoError(t, err)

	assert.NotEqual(t, staleSQL, sel.Result.SQL)
	assert.False(t, sel.FromCache)

	entry, err := cache.Get(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, sel.Result.SQL, entry.SQLQuery)
}

func TestSQLSelector_LLMPath(t *testing.T) {
	ctx := context.Background()
	client := llm.NewMockLLMClient()
	client.Model = "test-model"
	client.GenerateResponseFunc = func(context.Context, string, string, float64) (string, error) {
		return "Here you go:\n```sql\nSELECT campaign_id, conversion_rate FROM acme_sales LIMIT 10;\n```", nil
	}

	selector, _, _ := newSelectorFixture(client, true)

	sel, err := selector.SelectCampaignData(ctx, "best converting campaigns")
	require.NoError(t, err)

	assert.Equal(t, "SELECT campaign_id, conversion_rate FROM acme_sales LIMIT 10", sel.Result.SQL)
	assert.Equal(t, "test-model", sel.Entry.GeneratedBy)
	assert.False(t, containsKeyword(sel.Result.SQL))
	assert.Equal(t, 1, client.GenerateResponseCalls)
}

func TestSQLSelector_SQLTextStableAcrossCalls(t *testing.T) {
	ctx := context.Background()
	client := llm.NewMockLLMClient()
	calls := 0
	client.GenerateResponseFunc = func(context.Context, string, string, float64) (string, error) {
		calls++
		// A drifting model response must not change cached SQL.
		return fmt.Sprintf("```sql\nSELECT * FROM acme_sales LIMIT %d\n```", 10+calls), nil
	}

	selector, _, _ := newSelectorFixture(client, true)

	first, err := selector.SelectCampaignData(ctx, "weekly recap")
	require.NoError(t, err)
	second, err := selector.SelectCampaignData(ctx, "weekly recap")
	require.NoError(t, err)

	assert.Equal(t, first.Result.SQL, second.Result.SQL)
	assert.True(t, second.FromCache)
	assert.Equal(t, 1, client.GenerateResponseCalls)
}

func TestSQLSelector_UnsafeLLMSQLSurfaces(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		response string
	}{
		{"mutation keyword", "```sql\nDROP TABLE acme_sales\n```"},
		{"multiple statements", "```sql\nSELECT 1; SELECT 2\n```"},
		{"injection literal", "```sql\nSELECT * FROM acme_sales WHERE name = ''' OR 1=1 --'\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := llm.NewMockLLMClient()
			client.GenerateResponseFunc = func(context.Context, string, string, float64) (string, error) {
				return tt.response, nil
			}
			selector, _, _ := newSelectorFixture(client, true)

			_, err := selector.SelectCampaignData(ctx, "top campaigns "+tt.name)

			var unsafeErr *apperrors.UnsafeSQLError
			require.ErrorAs(t, err, &unsafeErr)
		})
	}
}

func TestSQLSelector_UnsafeFallbackWhenConfigured(t *testing.T) {
	ctx := context.Background()
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(context.Context, string, string, float64) (string, error) {
		return "DROP TABLE acme_sales", nil
	}

	registry := NewDatasetRegistry(&mockDatasetRepo{datasets: []*models.Dataset{acmeDataset()}}, zap.NewNop())
	tabular := &mockTabularRepo{executeFunc: func(sqlQuery string) (*repositories.QueryResult, error) {
		return &repositories.QueryResult{SQL: sqlQuery, Columns: []string{"campaign_id"}, Rows: acmeRows()}, nil
	}}
	selector := NewSQLSelector(registry, newMockSQLCacheRepo(), tabular, client,
		SQLSelectorConfig{UseLLM: true, FallbackOnUnsafeSQL: true}, zap.NewNop())

	sel, err := selector.SelectCampaignData(ctx, "top campaigns")
	require.NoError(t, err)

	assert.Equal(t, models.GeneratorHeuristic, sel.Entry.GeneratedBy)
	assert.False(t, containsKeyword(sel.Result.SQL))
}

func TestSQLSelector_ProviderErrorFallsBackToHeuristic(t *testing.T) {
	ctx := context.Background()
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(context.Context, string, string, float64) (string, error) {
		return "", errors.New("connection refused")
	}

	selector, _, _ := newSelectorFixture(client, true)

	sel, err := selector.SelectCampaignData(ctx, "top campaigns")
	require.NoError(t, err)

	assert.Equal(t, models.GeneratorHeuristic, sel.Entry.GeneratedBy)
	assert.False(t, containsKeyword(sel.Result.SQL))
}

func TestSQLSelector_LLMExecutionErrorSurfaces(t *testing.T) {
	ctx := context.Background()
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(context.Context, string, string, float64) (string, error) {
		return "```sql\nSELECT missing_col FROM acme_sales LIMIT 10\n```", nil
	}

	registry := NewDatasetRegistry(&mockDatasetRepo{datasets: []*models.Dataset{acmeDataset()}}, zap.NewNop())
	tabular := &mockTabularRepo{executeFunc: func(sqlQuery string) (*repositories.QueryResult, error) {
		if strings.Contains(sqlQuery, "missing_col") {
			return nil, errors.New(`column "missing_col" does not exist`)
		}
		return &repositories.QueryResult{SQL: sqlQuery, Columns: []string{"campaign_id"}, Rows: acmeRows()}, nil
	}}
	selector := NewSQLSelector(registry, newMockSQLCacheRepo(), tabular, client,
		SQLSelectorConfig{UseLLM: true}, zap.NewNop())

	_, err := selector.SelectCampaignData(ctx, "top campaigns")
	require.Error(t, err)

	var execErr *apperrors.SQLExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "acme_sales", execErr.Table)
	assert.Equal(t, acmeDataset().Columns, execErr.Columns)

	// The failure surfaced instead of routing to the heuristic builder.
	assert.Equal(t, "SELECT missing_col FROM acme_sales LIMIT 10", tabular.executed[len(tabular.executed)-1])
}

func TestSQLSelector_HeuristicExecutionErrorCarriesColumns(t *testing.T) {
	ctx := context.Background()
	registry := NewDatasetRegistry(&mockDatasetRepo{datasets: []*models.Dataset{acmeDataset()}}, zap.NewNop())
	tabular := &mockTabularRepo{executeFunc: func(string) (*repositories.QueryResult, error) {
		return nil, errors.New("permission denied")
	}}
	selector := NewSQLSelector(registry, newMockSQLCacheRepo(), tabular, nil, SQLSelectorConfig{}, zap.NewNop())

	_, err := selector.SelectCampaignData(ctx, "top campaigns")
	require.Error(t, err)

	var execErr *apperrors.SQLExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "acme_sales", execErr.Table)
	assert.Contains(t, execErr.Columns, "conversion_rate")
}
