package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/adpulse-io/insight-engine/pkg/apperrors"
	"github.com/adpulse-io/insight-engine/pkg/llm"
	"github.com/adpulse-io/insight-engine/pkg/logging"
	"github.com/adpulse-io/insight-engine/pkg/models"
	"github.com/adpulse-io/insight-engine/pkg/prompts"
	"github.com/adpulse-io/insight-engine/pkg/repositories"
	"github.com/adpulse-io/insight-engine/pkg/retry"
	"github.com/adpulse-io/insight-engine/pkg/sqlcheck"
)

// SQLSelection is the outcome of candidate selection: the executed rows plus
// the cache entry that produced them.
type SQLSelection struct {
	Result    *repositories.QueryResult
	Entry     *models.SQLCacheEntry
	FromCache bool
}

// SQLSelector turns a natural language request into executed, validated SQL
// over the registered datasets. Generated SQL is cached by normalized prompt
// hash; cached SQL is always re-executed because the underlying data moves.
type SQLSelector interface {
	SelectCampaignData(ctx context.Context, prompt string) (*SQLSelection, error)
}

// SQLSelectorConfig tunes selection behavior.
type SQLSelectorConfig struct {
	// UseLLM enables LLM generation; when false (or no client is wired) the
	// heuristic path is used directly.
	UseLLM bool
	// HeuristicRowLimit caps rows returned by heuristic-built SQL.
	HeuristicRowLimit int
	// SampleRowCount is how many sample rows per table ground the LLM prompt.
	SampleRowCount int
	// FallbackOnUnsafeSQL also routes safety rejections to the heuristic
	// path. Off by default: a model emitting mutations is worth surfacing,
	// unlike a provider outage.
	FallbackOnUnsafeSQL bool
}

type sqlSelector struct {
	registry DatasetRegistry
	cache    repositories.SQLCacheRepository
	tabular  repositories.TabularRepository
	client   llm.LLMClient
	retryCfg *retry.Config
	cfg      SQLSelectorConfig
	logger   *zap.Logger
}

// NewSQLSelector creates a new SQLSelector. client may be nil, which forces
// the heuristic path.
func NewSQLSelector(
	registry DatasetRegistry,
	cache repositories.SQLCacheRepository,
	tabular repositories.TabularRepository,
	client llm.LLMClient,
	cfg SQLSelectorConfig,
	logger *zap.Logger,
) SQLSelector {
	if cfg.HeuristicRowLimit <= 0 {
		cfg.HeuristicRowLimit = 50
	}
	if cfg.SampleRowCount <= 0 {
		cfg.SampleRowCount = 3
	}
	return &sqlSelector{
		registry: registry,
		cache:    cache,
		tabular:  tabular,
		client:   client,
		retryCfg: retry.DefaultConfig(),
		cfg:      cfg,
		logger:   logger,
	}
}

var _ SQLSelector = (*sqlSelector)(nil)

func (s *sqlSelector) SelectCampaignData(ctx context.Context, prompt string) (*SQLSelection, error) {
	hash := models.HashPrompt(prompt)

	if sel := s.tryCache(ctx, hash); sel != nil {
		return sel, nil
	}

	datasets, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(datasets) == 0 {
		return nil, apperrors.ErrNoDatasets
	}

	if s.cfg.UseLLM && s.client != nil {
		sel, err := s.generateWithLLM(ctx, prompt, hash, datasets)
		if err == nil {
			return sel, nil
		}

		var unsafeErr *apperrors.UnsafeSQLError
		if errors.As(err, &unsafeErr) && !s.cfg.FallbackOnUnsafeSQL {
			return nil, err
		}
		// Execution failures carry the resolved table's columns so the caller
		// can correct the request; only provider errors fall back.
		var execErr *apperrors.SQLExecutionError
		if errors.As(err, &execErr) {
			return nil, err
		}
		s.logger.Warn("LLM SQL generation failed, falling back to heuristic",
			zap.String("error", logging.SanitizeError(err)))
	}

	return s.generateHeuristic(ctx, prompt, hash)
}

// tryCache executes a cached statement if one exists. A cache entry whose SQL
// no longer executes (schema drift, dropped table) is evicted so the next
// attempt regenerates; the failure never surfaces to the caller.
func (s *sqlSelector) tryCache(ctx context.Context, hash string) *SQLSelection {
	entry, err := s.cache.Get(ctx, hash)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("cache lookup failed", zap.String("error", logging.SanitizeError(err)))
		}
		return nil
	}

	result, err := s.tabular.ExecuteQuery(ctx, entry.SQLQuery)
	if err != nil {
		s.logger.Warn("cached SQL no longer executes, evicting",
			zap.String("prompt_hash", hash),
			zap.String("sql", logging.SanitizeQuery(entry.SQLQuery)),
			zap.String("error", logging.SanitizeError(err)))
		if delErr := s.cache.Delete(ctx, hash); delErr != nil {
			s.logger.Warn("cache eviction failed", zap.String("error", logging.SanitizeError(delErr)))
		}
		return nil
	}

	if err := s.cache.IncrementUsage(ctx, hash); err != nil {
		s.logger.Warn("cache usage increment failed", zap.String("error", logging.SanitizeError(err)))
	}

	s.logger.Info("cache hit", zap.String("prompt_hash", hash), zap.Int("rows", len(result.Rows)))
	return &SQLSelection{Result: result, Entry: entry, FromCache: true}
}

func (s *sqlSelector) generateWithLLM(ctx context.Context, prompt, hash string, datasets []*models.Dataset) (*SQLSelection, error) {
	contexts := make([]prompts.DatasetContext, 0, len(datasets))
	for _, ds := range datasets {
		dc := prompts.DatasetContext{Dataset: *ds}
		// Samples are best effort; an unsampleable table still gets listed.
		if sample, err := s.tabular.SampleRows(ctx, ds.TableName, s.cfg.SampleRowCount); err == nil {
			dc.SampleRows = sample.Rows
		}
		contexts = append(contexts, dc)
	}

	generationPrompt := prompts.BuildSQLGenerationPrompt(prompt, contexts)

	response, err := retry.DoWithResult(ctx, s.retryCfg, func() (string, error) {
		return s.client.GenerateResponse(ctx, generationPrompt, prompts.SQLGenerationSystemMessage, 0.0)
	})
	if err != nil {
		return nil, fmt.Errorf("generate SQL: %w", err)
	}

	sqlText, err := s.validate(llm.ExtractSQL(response))
	if err != nil {
		return nil, err
	}

	// Provenance only; generated SQL may join several tables.
	var resolved *models.Dataset
	if ds, rerr := s.registry.Resolve(ctx, prompt); rerr == nil {
		resolved = ds
	}

	result, err := s.tabular.ExecuteQuery(ctx, sqlText)
	if err != nil {
		execErr := &apperrors.SQLExecutionError{Cause: err}
		if resolved != nil {
			execErr.Table = resolved.TableName
			execErr.Columns = resolved.Columns
		}
		return nil, execErr
	}

	entry := &models.SQLCacheEntry{
		PromptHash:  hash,
		Prompt:      models.NormalizePrompt(prompt),
		SQLQuery:    sqlText,
		Columns:     result.Columns,
		GeneratedBy: s.client.GetModel(),
		UsageCount:  1,
	}
	if resolved != nil {
		entry.TableName = resolved.TableName
		entry.Business = resolved.Business
		entry.DatasetName = resolved.DatasetName
	}
	s.storeEntry(ctx, entry)

	s.logger.Info("SQL generated by model",
		zap.String("model", s.client.GetModel()),
		zap.String("sql", logging.SanitizeQuery(sqlText)),
		zap.Int("rows", len(result.Rows)))
	return &SQLSelection{Result: result, Entry: entry}, nil
}

func (s *sqlSelector) generateHeuristic(ctx context.Context, prompt, hash string) (*SQLSelection, error) {
	ds, err := s.registry.Resolve(ctx, prompt)
	if err != nil {
		return nil, err
	}

	sqlText, err := s.validate(buildHeuristicSQL(ds, s.cfg.HeuristicRowLimit))
	if err != nil {
		return nil, err
	}

	result, err := s.tabular.ExecuteQuery(ctx, sqlText)
	if err != nil {
		return nil, &apperrors.SQLExecutionError{Table: ds.TableName, Columns: ds.Columns, Cause: err}
	}

	entry := &models.SQLCacheEntry{
		PromptHash:  hash,
		Prompt:      models.NormalizePrompt(prompt),
		SQLQuery:    sqlText,
		TableName:   ds.TableName,
		Business:    ds.Business,
		DatasetName: ds.DatasetName,
		Columns:     result.Columns,
		GeneratedBy: models.GeneratorHeuristic,
		UsageCount:  1,
	}
	s.storeEntry(ctx, entry)

	s.logger.Info("SQL built heuristically",
		zap.String("table", ds.TableName),
		zap.String("sql", logging.SanitizeQuery(sqlText)),
		zap.Int("rows", len(result.Rows)))
	return &SQLSelection{Result: result, Entry: entry}, nil
}

func (s *sqlSelector) validate(sqlText string) (string, error) {
	return validateStatement(sqlText)
}

// validateStatement runs the full safety pipeline on a candidate statement:
// single read-only statement, then injection screening of its literals.
func validateStatement(sqlText string) (string, error) {
	normalized, err := sqlcheck.ValidateReadOnly(sqlText)
	if err != nil {
		return "", &apperrors.UnsafeSQLError{SQL: sqlText, Reason: err.Error()}
	}
	if inj := sqlcheck.ScreenLiterals(normalized); inj != nil {
		return "", &apperrors.UnsafeSQLError{
			SQL:    sqlText,
			Reason: fmt.Sprintf("injection pattern %s in literal", inj.Fingerprint),
		}
	}
	return normalized, nil
}

// storeEntry persists a cache entry; a failed write degrades to a cache miss
// next time and is not worth failing the selection over.
func (s *sqlSelector) storeEntry(ctx context.Context, entry *models.SQLCacheEntry) {
	if err := s.cache.Put(ctx, entry); err != nil {
		s.logger.Warn("cache write failed", zap.String("error", logging.SanitizeError(err)))
	}
}

// buildHeuristicSQL synthesizes the fallback statement for a dataset: all
// columns, newest rows first when an event-date column exists, capped.
func buildHeuristicSQL(ds *models.Dataset, limit int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `SELECT * FROM %q`, ds.TableName)
	if col := dateLikeColumn(ds.Columns); col != "" {
		fmt.Fprintf(&sb, ` ORDER BY %q DESC`, col)
	}
	fmt.Fprintf(&sb, ` LIMIT %d`, limit)
	return sb.String()
}

// dateLikeColumn picks the first column whose name suggests an event date.
// Bookkeeping timestamps like created_at are deliberately skipped: they order
// by ingestion, not by when the campaign ran.
func dateLikeColumn(columns []string) string {
	for _, col := range columns {
		lower := strings.ToLower(col)
		if strings.Contains(lower, "created") {
			continue
		}
		for _, marker := range []string{"date", "time", "sent", "timestamp"} {
			if strings.Contains(lower, marker) {
				return col
			}
		}
	}
	return ""
}
