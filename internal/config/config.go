package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StoreConfig locates the persisted document store.
type StoreConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// QdrantConfig contains connection details for a Qdrant collection.
type QdrantConfig struct {
	URL         string `yaml:"url" validate:"omitempty,url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"gte=0"`
}

// PgVectorConfig contains connection details for a Postgres table with pgvector.
type PgVectorConfig struct {
	DSNEnv string `yaml:"dsn_env"`
	Table  string `yaml:"table"`
}

// RetrievalConfig selects the similarity retriever and the number of records per question.
type RetrievalConfig struct {
	TopK     int            `yaml:"top_k" validate:"gte=1"`
	Backend  string         `yaml:"backend" validate:"oneof=memory qdrant pgvector"`
	Qdrant   QdrantConfig   `yaml:"qdrant"`
	PgVector PgVectorConfig `yaml:"pgvector"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// OllamaEmbedderConfig points at a local Ollama server.
type OllamaEmbedderConfig struct {
	BaseURL string `yaml:"base_url"`
}

// GeminiConfig names the env var holding the Google AI key.
type GeminiConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type        string               `yaml:"type" validate:"oneof=hashing openai ollama gemini"`
	Model       string               `yaml:"model"`
	Dimension   int                  `yaml:"dimension" validate:"gte=0"`
	BatchSize   int                  `yaml:"batch_size" validate:"gte=1"`
	TimeoutSecs int                  `yaml:"timeout_secs" validate:"gte=0"`
	OpenAI      OpenAIEmbedderConfig `yaml:"openai"`
	Ollama      OllamaEmbedderConfig `yaml:"ollama"`
	Gemini      GeminiConfig         `yaml:"gemini"`
}

// OpenAIGeneratorConfig configures the OpenAI chat backend.
type OpenAIGeneratorConfig struct {
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// OllamaGeneratorConfig configures the local Ollama backend.
type OllamaGeneratorConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
}

// HuggingFaceConfig configures a self-hosted Text Generation Inference endpoint.
type HuggingFaceConfig struct {
	Model     string `yaml:"model"`
	URL       string `yaml:"url" validate:"omitempty,url"`
	APIKeyEnv string `yaml:"api_key_env"`
	// MaxRetries enables retrying 429 and 5xx replies. Zero means no retry.
	MaxRetries int `yaml:"max_retries" validate:"gte=0"`
}

// AnthropicConfig configures the Anthropic backend.
type AnthropicConfig struct {
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// GeminiGeneratorConfig configures the Gemini backend.
type GeminiGeneratorConfig struct {
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// GeneratorConfig selects the generation backend. Only the selected
// provider's section is used.
type GeneratorConfig struct {
	Provider    string                `yaml:"provider" validate:"oneof=openai ollama huggingface anthropic gemini"`
	Temperature float32               `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int                   `yaml:"max_tokens" validate:"gte=0"`
	TimeoutSecs int                   `yaml:"timeout_secs" validate:"gte=0"`
	OpenAI      OpenAIGeneratorConfig `yaml:"openai"`
	Ollama      OllamaGeneratorConfig `yaml:"ollama"`
	HuggingFace HuggingFaceConfig     `yaml:"huggingface"`
	Anthropic   AnthropicConfig       `yaml:"anthropic"`
	Gemini      GeminiGeneratorConfig `yaml:"gemini"`
}

// PromptConfig bounds the assembled prompt.
type PromptConfig struct {
	MaxContextChars int `yaml:"max_context_chars" validate:"gte=0"`
}

// ChunkerConfig configures how documents are split into chunks at ingestion.
type ChunkerConfig struct {
	Type              string `yaml:"type" validate:"oneof=none sentence"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk" validate:"gte=0"`
	OverlapSentences  int    `yaml:"overlap_sentences" validate:"gte=0"`
}

// IngestConfig configures the ingestion command.
type IngestConfig struct {
	DocumentsDir string        `yaml:"documents_dir"`
	Concurrency  int           `yaml:"concurrency" validate:"gte=1"`
	Chunker      ChunkerConfig `yaml:"chunker"`
}

// HistoryConfig configures the conversation log.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr               string   `yaml:"addr" validate:"required"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" validate:"gte=1"`
	CORSOrigins        []string `yaml:"cors_origins"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
	File   string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Store     StoreConfig     `yaml:"store"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Generator GeneratorConfig `yaml:"generator"`
	Prompt    PromptConfig    `yaml:"prompt"`
	Ingest    IngestConfig    `yaml:"ingest"`
	History   HistoryConfig   `yaml:"history"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied on top of the file.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyEnv(cfg, os.LookupEnv)
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragbot/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragbot/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, Default()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragbot", "config.yaml"), nil
}

// Default returns the built-in configuration. Embeddings are computed
// locally so ingestion works without credentials.
func Default() *AppConfig {
	cfg := &AppConfig{
		Store: StoreConfig{Path: "data/document_store.json"},
		Retrieval: RetrievalConfig{
			TopK:     3,
			Backend:  "memory",
			Qdrant:   QdrantConfig{URL: "http://localhost:6333", APIKeyEnv: "QDRANT_API_KEY", Collection: "ragbot", TimeoutSecs: 15},
			PgVector: PgVectorConfig{DSNEnv: "DATABASE_URL", Table: "ragbot_records"},
		},
		Embedder: EmbedderConfig{
			Type:        "hashing",
			Dimension:   384,
			BatchSize:   32,
			TimeoutSecs: 30,
			OpenAI:      OpenAIEmbedderConfig{APIKeyEnv: "OPENAI_API_KEY"},
			Ollama:      OllamaEmbedderConfig{BaseURL: "http://localhost:11434"},
			Gemini:      GeminiConfig{APIKeyEnv: "GEMINI_API_KEY"},
		},
		Generator: GeneratorConfig{
			Provider:    "openai",
			Temperature: 0.2,
			MaxTokens:   1024,
			TimeoutSecs: 120,
			OpenAI:      OpenAIGeneratorConfig{Model: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY"},
			Ollama:      OllamaGeneratorConfig{Model: "llama3.2", BaseURL: "http://localhost:11434"},
			HuggingFace: HuggingFaceConfig{Model: "HuggingFaceH4/zephyr-7b-beta", URL: "http://localhost:8080", APIKeyEnv: "HF_API_TOKEN"},
			Anthropic:   AnthropicConfig{Model: "claude-3-5-haiku-latest", APIKeyEnv: "ANTHROPIC_API_KEY"},
			Gemini:      GeminiGeneratorConfig{Model: "gemini-1.5-flash", APIKeyEnv: "GEMINI_API_KEY"},
		},
		Prompt: PromptConfig{MaxContextChars: 12000},
		Ingest: IngestConfig{
			DocumentsDir: "data/documents",
			Concurrency:  4,
			Chunker:      ChunkerConfig{Type: "none", SentencesPerChunk: 5, OverlapSentences: 1},
		},
		History: HistoryConfig{Enabled: true, Path: "data/history.db"},
		Server:  ServerConfig{Addr: ":8080", RequestTimeoutSecs: 120, CORSOrigins: []string{"*"}},
		Log:     LogConfig{Level: "info", Format: "console"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "hashing" && cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = 384
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 32
	}
	if cfg.Ingest.Concurrency == 0 {
		cfg.Ingest.Concurrency = 4
	}
	if cfg.Ingest.Chunker.Type == "" {
		cfg.Ingest.Chunker.Type = "none"
	}
	if cfg.Ingest.Chunker.SentencesPerChunk == 0 {
		cfg.Ingest.Chunker.SentencesPerChunk = 5
	}
	if cfg.Server.RequestTimeoutSecs == 0 {
		cfg.Server.RequestTimeoutSecs = 120
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}
