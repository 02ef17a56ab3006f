// Package config loads engine configuration from YAML and the environment.
package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for insight-engine.
// Configuration can come from a YAML file (config.yaml) or environment
// variables; environment variables override YAML values. Secrets (API keys,
// passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8090"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// AI model endpoints
	AI AIConfig `yaml:"ai"`

	// Pipeline behavior knobs
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"insight"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"insight_engine"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// URL builds a connection URL for pgx.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// AIConfig holds LLM and embedding endpoint configuration.
type AIConfig struct {
	// Provider selects the chat backend: "openai", "ollama", or "anthropic".
	Provider string `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"`

	// OpenAI-compatible endpoint settings. Also used for embeddings when the
	// anthropic provider is selected.
	LLMBaseURL     string `yaml:"llm_base_url" env:"AI_LLM_BASE_URL" env-default:"https://api.openai.com/v1"`
	LLMModel       string `yaml:"llm_model" env:"AI_LLM_MODEL" env-default:"gpt-4o-mini"`
	EmbeddingModel string `yaml:"embedding_model" env:"AI_EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	APIKey         string `yaml:"-" env:"AI_API_KEY"` // Secret - not in YAML

	// Anthropic settings.
	AnthropicModel  string `yaml:"anthropic_model" env:"ANTHROPIC_MODEL" env-default:"claude-sonnet-4-20250514"`
	AnthropicAPIKey string `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML
}

// PipelineConfig holds insight-pipeline behavior settings.
type PipelineConfig struct {
	// UseLLM enables LLM SQL generation; when false the heuristic dataset
	// selector is used for every request.
	UseLLM bool `yaml:"use_llm" env:"PIPELINE_USE_LLM" env-default:"true"`

	// TopCampaigns caps how many ranked campaigns proceed to image analysis.
	TopCampaigns int `yaml:"top_campaigns" env:"PIPELINE_TOP_CAMPAIGNS" env-default:"5"`

	// HeuristicRowLimit is the LIMIT applied to synthesized fallback queries.
	HeuristicRowLimit int `yaml:"heuristic_row_limit" env:"PIPELINE_HEURISTIC_ROW_LIMIT" env-default:"50"`

	// FallbackOnUnsafeSQL routes safety-rejected model SQL to the heuristic
	// path instead of failing the attempt.
	FallbackOnUnsafeSQL bool `yaml:"fallback_on_unsafe_sql" env:"PIPELINE_FALLBACK_ON_UNSAFE_SQL" env-default:"false"`

	// ImageDir is the default directory scanned for creative images when a
	// request does not name one.
	ImageDir string `yaml:"image_dir" env:"PIPELINE_IMAGE_DIR" env-default:""`
}

// Load reads configuration from config.yaml (if present) and the environment.
func Load(version string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", &cfg); err != nil {
			return nil, fmt.Errorf("read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("read environment: %w", err)
		}
	}

	cfg.Version = version
	return &cfg, nil
}
