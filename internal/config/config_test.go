package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, "memory", cfg.Retrieval.Backend)
	assert.Equal(t, "hashing", cfg.Embedder.Type)
	assert.Equal(t, 384, cfg.Embedder.Dimension)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
retrieval:
  top_k: 7
generator:
  provider: ollama
  ollama:
    model: mistral
embedder:
  type: hashing
  dimension: 0
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Retrieval.TopK)
	assert.Equal(t, "ollama", cfg.Generator.Provider)
	assert.Equal(t, "mistral", cfg.Generator.Ollama.Model)
	assert.Equal(t, "http://localhost:11434", cfg.Generator.Ollama.BaseURL)
	assert.Equal(t, 384, cfg.Embedder.Dimension)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	applyEnv(cfg, envMap(map[string]string{
		"LLM_PROVIDER":        "huggingface",
		"HUGGINGFACE_URL":     "http://tgi:80",
		"EMBEDDING_TYPE":      "ollama",
		"EMBEDDING_MODEL":     "nomic-embed-text",
		"TOP_K_RETRIEVAL":     "5",
		"DOCUMENT_STORE_PATH": "/tmp/store.json",
		"OLLAMA_BASE_URL":     "http://ollama:11434",
		"LOG_LEVEL":           "debug",
		"SERVER_ADDR":         "",
	}))

	assert.Equal(t, "huggingface", cfg.Generator.Provider)
	assert.Equal(t, "http://tgi:80", cfg.Generator.HuggingFace.URL)
	assert.Equal(t, "ollama", cfg.Embedder.Type)
	assert.Equal(t, "nomic-embed-text", cfg.Embedder.Model)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, "/tmp/store.json", cfg.Store.Path)
	assert.Equal(t, "http://ollama:11434", cfg.Generator.Ollama.BaseURL)
	assert.Equal(t, "http://ollama:11434", cfg.Embedder.Ollama.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.Server.Addr, "empty values are ignored")
}

func TestApplyEnv_IgnoresUnparsableTopK(t *testing.T) {
	cfg := Default()
	applyEnv(cfg, envMap(map[string]string{"TOP_K_RETRIEVAL": "many"}))
	assert.Equal(t, 3, cfg.Retrieval.TopK)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		env     map[string]string
		wantErr string
	}{
		{
			name: "defaults with key",
			env:  map[string]string{"OPENAI_API_KEY": "sk-test"},
		},
		{
			name:    "openai without key",
			wantErr: "OPENAI_API_KEY",
		},
		{
			name:   "ollama needs no key",
			mutate: func(c *AppConfig) { c.Generator.Provider = "ollama" },
		},
		{
			name:    "anthropic without key",
			mutate:  func(c *AppConfig) { c.Generator.Provider = "anthropic" },
			wantErr: "ANTHROPIC_API_KEY",
		},
		{
			name: "gemini embedder without key",
			mutate: func(c *AppConfig) {
				c.Generator.Provider = "ollama"
				c.Embedder.Type = "gemini"
			},
			wantErr: "GEMINI_API_KEY",
		},
		{
			name: "top k below one",
			mutate: func(c *AppConfig) {
				c.Generator.Provider = "ollama"
				c.Retrieval.TopK = 0
			},
			wantErr: "TopK",
		},
		{
			name: "unknown provider",
			mutate: func(c *AppConfig) {
				c.Generator.Provider = "cohere"
			},
			wantErr: "Provider",
		},
		{
			name: "pgvector without dsn",
			mutate: func(c *AppConfig) {
				c.Generator.Provider = "ollama"
				c.Retrieval.Backend = "pgvector"
			},
			wantErr: "DATABASE_URL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.validate(envMap(tt.env), true)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_IngestSkipsGenerator(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.validate(envMap(nil), true))
	assert.NoError(t, cfg.validate(envMap(nil), false))

	cfg.Embedder.Type = "openai"
	assert.ErrorContains(t, cfg.validate(envMap(nil), false), "OPENAI_API_KEY")
}

func TestDisplay_OmitsSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-very-secret")
	cfg := Default()

	var buf bytes.Buffer
	require.NoError(t, cfg.Display(&buf))
	out := buf.String()
	assert.Contains(t, out, "openai")
	assert.Contains(t, out, "gpt-4o-mini")
	assert.Contains(t, out, "hashing (384 dims)")
	assert.NotContains(t, out, "sk-very-secret")
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Retrieval.TopK = 9
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, loaded.Retrieval.TopK)
}
