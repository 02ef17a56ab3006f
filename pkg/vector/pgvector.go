package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/adpulse-io/insight-engine/pkg/apperrors"
	"github.com/adpulse-io/insight-engine/pkg/repositories"
)

const campaignVectorsTable = "campaign_vectors"

// pgStore backs Store with a pgvector table. Embedding vectors are passed
// as text and cast server-side, which keeps the pool free of custom type
// registration.
type pgStore struct {
	db     repositories.Querier
	logger *zap.Logger
}

// NewPgStore creates a Store over the campaign_vectors table.
func NewPgStore(db repositories.Querier, logger *zap.Logger) Store {
	return &pgStore{db: db, logger: logger}
}

var _ Store = (*pgStore)(nil)

func (s *pgStore) Upsert(ctx context.Context, id string, embedding []float32, text string, metadata map[string]any) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if metadata == nil {
		metaJSON = []byte("{}")
	}

	sql := fmt.Sprintf(`
		INSERT INTO %s (id, embedding, content, metadata, updated_at)
		VALUES ($1, $2::vector, $3, $4, now())
		ON CONFLICT (id) DO UPDATE
		SET embedding = EXCLUDED.embedding,
		    content = EXCLUDED.content,
		    metadata = EXCLUDED.metadata,
		    updated_at = now()`, campaignVectorsTable)

	vec := pgvector.NewVector(embedding).String()

	_, err = s.db.Exec(ctx, sql, id, vec, text, metaJSON)
	if err != nil && isDimensionMismatch(err) {
		// The embedding provider changed dimension. The index is a derived
		// cache, so rebuild it at the new dimension and retry once.
		s.logger.Warn("embedding dimension changed, recreating vector table",
			zap.Int("dimension", len(embedding)))
		if rerr := s.recreate(ctx, len(embedding)); rerr != nil {
			return rerr
		}
		_, err = s.db.Exec(ctx, sql, id, vec, text, metaJSON)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert vector %s: %w", id, err)
	}

	return nil
}

func (s *pgStore) Query(ctx context.Context, embedding []float32, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}

	sql := fmt.Sprintf(`
		SELECT id, content, metadata, embedding <=> $1::vector AS distance
		FROM %s
		ORDER BY distance ASC
		LIMIT $2`, campaignVectorsTable)

	rows, err := s.db.Query(ctx, sql, pgvector.NewVector(embedding).String(), k)
	if err != nil {
		if isDimensionMismatch(err) {
			// Stored vectors predate a provider change; nothing comparable yet.
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var metaJSON []byte
		if err := rows.Scan(&h.ID, &h.Text, &metaJSON, &h.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan vector hit: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &h.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		h.Similarity = NormalizeDistance(MetricCosine, h.Distance)
		hits = append(hits, h)
	}

	return hits, rows.Err()
}

func (s *pgStore) Get(ctx context.Context, id string) (string, map[string]any, error) {
	sql := fmt.Sprintf(`SELECT content, metadata FROM %s WHERE id = $1`, campaignVectorsTable)

	var content string
	var metaJSON []byte
	err := s.db.QueryRow(ctx, sql, id).Scan(&content, &metaJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, apperrors.ErrNotFound
		}
		return "", nil, fmt.Errorf("failed to get vector %s: %w", id, err)
	}

	var metadata map[string]any
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &metadata); err != nil {
			return "", nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return content, metadata, nil
}

func (s *pgStore) recreate(ctx context.Context, dimension int) error {
	drop := fmt.Sprintf(`DROP TABLE IF EXISTS %s`, campaignVectorsTable)
	if _, err := s.db.Exec(ctx, drop); err != nil {
		return fmt.Errorf("failed to drop vector table: %w", err)
	}

	create := fmt.Sprintf(`
		CREATE TABLE %s (
			id         TEXT PRIMARY KEY,
			embedding  vector(%d),
			content    TEXT NOT NULL DEFAULT '',
			metadata   JSONB NOT NULL DEFAULT '{}',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, campaignVectorsTable, dimension)
	if _, err := s.db.Exec(ctx, create); err != nil {
		return fmt.Errorf("failed to recreate vector table: %w", err)
	}

	return nil
}

func isDimensionMismatch(err error) bool {
	if err == nil {
		return false
	}
	// pgvector reports "expected N dimensions, not M".
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "dimensions")
}
