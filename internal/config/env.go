package config

import "strconv"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// applyEnv overrides file values with the environment variables a .env file
// usually carries.
func applyEnv(cfg *AppConfig, lookup LookupFunc) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("LLM_PROVIDER", &cfg.Generator.Provider)
	str("OPENAI_MODEL", &cfg.Generator.OpenAI.Model)
	str("OPENAI_BASE_URL", &cfg.Generator.OpenAI.BaseURL)
	str("OLLAMA_MODEL", &cfg.Generator.Ollama.Model)
	str("OLLAMA_BASE_URL", &cfg.Generator.Ollama.BaseURL)
	str("OLLAMA_BASE_URL", &cfg.Embedder.Ollama.BaseURL)
	str("HUGGINGFACE_MODEL", &cfg.Generator.HuggingFace.Model)
	str("HUGGINGFACE_URL", &cfg.Generator.HuggingFace.URL)
	str("ANTHROPIC_MODEL", &cfg.Generator.Anthropic.Model)
	str("GEMINI_MODEL", &cfg.Generator.Gemini.Model)

	str("EMBEDDING_TYPE", &cfg.Embedder.Type)
	str("EMBEDDING_MODEL", &cfg.Embedder.Model)

	num("TOP_K_RETRIEVAL", &cfg.Retrieval.TopK)
	str("RETRIEVAL_BACKEND", &cfg.Retrieval.Backend)
	str("DOCUMENT_STORE_PATH", &cfg.Store.Path)

	str("LOG_LEVEL", &cfg.Log.Level)
	str("SERVER_ADDR", &cfg.Server.Addr)
}
