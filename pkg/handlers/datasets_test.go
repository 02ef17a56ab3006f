package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/adpulse-io/insight-engine/pkg/models"
	"github.com/adpulse-io/insight-engine/pkg/repositories"
	"github.com/adpulse-io/insight-engine/pkg/services"
)

type mockRegistry struct {
	registered []*models.Dataset
	datasets   []*models.Dataset
}

var _ services.DatasetRegistry = (*mockRegistry)(nil)

func (m *mockRegistry) Register(ctx context.Context, dataset *models.Dataset) error {
	m.registered = append(m.registered, dataset)
	return nil
}

func (m *mockRegistry) Get(ctx context.Context, tableName string) (*models.Dataset, error) {
	return nil, nil
}

func (m *mockRegistry) List(ctx context.Context) ([]*models.Dataset, error) {
	return m.datasets, nil
}

func (m *mockRegistry) Resolve(ctx context.Context, prompt string) (*models.Dataset, error) {
	return nil, nil
}

type mockCache struct {
	entries []*models.SQLCacheEntry
}

var _ repositories.SQLCacheRepository = (*mockCache)(nil)

func (m *mockCache) Get(ctx context.Context, promptHash string) (*models.SQLCacheEntry, error) {
	return nil, nil
}
func (m *mockCache) Put(ctx context.Context, entry *models.SQLCacheEntry) error { return nil }
func (m *mockCache) Delete(ctx context.Context, promptHash string) error        { return nil }
func (m *mockCache) IncrementUsage(ctx context.Context, promptHash string) error {
	return nil
}
func (m *mockCache) List(ctx context.Context, limit int) ([]*models.SQLCacheEntry, error) {
	return m.entries, nil
}

func newDatasetMux(registry services.DatasetRegistry, cache repositories.SQLCacheRepository) *http.ServeMux {
	mux := http.NewServeMux()
	NewDatasetHandler(registry, cache, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestDatasetHandler_Register(t *testing.T) {
	registry := &mockRegistry{}
	mux := newDatasetMux(registry, &mockCache{})

	body := `{"table_name": "acme_sales", "business": "acme", "columns": ["campaign_id"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/datasets", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	if len(registry.registered) != 1 {
		t.Fatalf("expected 1 registration, got %d", len(registry.registered))
	}
	if registry.registered[0].TableName != "acme_sales" {
		t.Errorf("expected table 'acme_sales', got '%s'", registry.registered[0].TableName)
	}
}

func TestDatasetHandler_Register_RequiresTableName(t *testing.T) {
	registry := &mockRegistry{}
	mux := newDatasetMux(registry, &mockCache{})

	req := httptest.NewRequest(http.MethodPost, "/api/datasets", strings.NewReader(`{"business": "acme"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if len(registry.registered) != 0 {
		t.Errorf("expected no registrations, got %d", len(registry.registered))
	}
}

func TestDatasetHandler_List(t *testing.T) {
	registry := &mockRegistry{datasets: []*models.Dataset{
		{TableName: "acme_sales", IngestedAt: time.Now()},
		{TableName: "globex_sms", IngestedAt: time.Now()},
	}}
	mux := newDatasetMux(registry, &mockCache{})

	req := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var resp struct {
		Datasets []models.Dataset `json:"datasets"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Datasets) != 2 {
		t.Errorf("expected 2 datasets, got %d", len(resp.Datasets))
	}
}

func TestDatasetHandler_ListCache(t *testing.T) {
	cache := &mockCache{entries: []*models.SQLCacheEntry{
		{PromptHash: "abc", SQLQuery: `SELECT * FROM "acme_sales" LIMIT 50`, UsageCount: 3},
	}}
	mux := newDatasetMux(&mockRegistry{}, cache)

	req := httptest.NewRequest(http.MethodGet, "/api/sql-cache", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var resp struct {
		Entries []models.SQLCacheEntry `json:"entries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Entries) != 1 {
		t.Errorf("expected 1 cache entry, got %d", len(resp.Entries))
	}
	if resp.Entries[0].UsageCount != 3 {
		t.Errorf("expected usage count 3, got %d", resp.Entries[0].UsageCount)
	}
}
