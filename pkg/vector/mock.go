package vector

import (
	"context"
	"math"
	"sort"

	"github.com/adpulse-io/insight-engine/pkg/apperrors"
)

type mockEntry struct {
	embedding []float32
	text      string
	metadata  map[string]any
}

// MockStore is an in-memory Store for tests. Query ranks by cosine
// distance like the real store.
type MockStore struct {
	entries map[string]mockEntry

	UpsertErr error
	QueryErr  error
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{entries: map[string]mockEntry{}}
}

var _ Store = (*MockStore)(nil)

func (m *MockStore) Upsert(_ context.Context, id string, embedding []float32, text string, metadata map[string]any) error {
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.entries[id] = mockEntry{embedding: embedding, text: text, metadata: metadata}
	return nil
}

func (m *MockStore) Query(_ context.Context, embedding []float32, k int) ([]Hit, error) {
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	if k <= 0 {
		k = 10
	}

	var hits []Hit
	for id, e := range m.entries {
		d := cosineDistance(embedding, e.embedding)
		hits = append(hits, Hit{
			ID:         id,
			Text:       e.text,
			Metadata:   e.metadata,
			Distance:   d,
			Similarity: NormalizeDistance(MetricCosine, d),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MockStore) Get(_ context.Context, id string) (string, map[string]any, error) {
	e, ok := m.entries[id]
	if !ok {
		return "", nil, apperrors.ErrNotFound
	}
	return e.text, e.metadata, nil
}

// Len reports how many vectors the store holds.
func (m *MockStore) Len() int {
	return len(m.entries)
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 2.0
	}
	return 1.0 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
