package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks field constraints and that the selected backends have
// their credentials available.
func (c *AppConfig) Validate() error {
	return c.validate(os.LookupEnv, true)
}

// ValidateIngest is Validate without the generation backend, which
// ingestion never calls.
func (c *AppConfig) ValidateIngest() error {
	return c.validate(os.LookupEnv, false)
}

func (c *AppConfig) validate(lookup LookupFunc, withGenerator bool) error {
	var errs []error
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	requireEnv := func(what, key string) {
		if key == "" {
			errs = append(errs, fmt.Errorf("%s: api_key_env is not set", what))
			return
		}
		if v, ok := lookup(key); !ok || v == "" {
			errs = append(errs, fmt.Errorf("%s requires %s to be set", what, key))
		}
	}

	provider := c.Generator.Provider
	if !withGenerator {
		provider = ""
	}
	switch provider {
	case "openai":
		requireEnv("generator openai", c.Generator.OpenAI.APIKeyEnv)
	case "anthropic":
		requireEnv("generator anthropic", c.Generator.Anthropic.APIKeyEnv)
	case "gemini":
		requireEnv("generator gemini", c.Generator.Gemini.APIKeyEnv)
	}
	switch c.Embedder.Type {
	case "openai":
		requireEnv("embedder openai", c.Embedder.OpenAI.APIKeyEnv)
	case "gemini":
		requireEnv("embedder gemini", c.Embedder.Gemini.APIKeyEnv)
	case "hashing":
		if c.Embedder.Dimension < 1 {
			errs = append(errs, errors.New("embedder hashing: dimension must be at least 1"))
		}
	}
	switch c.Retrieval.Backend {
	case "qdrant":
		if c.Retrieval.Qdrant.URL == "" || c.Retrieval.Qdrant.Collection == "" {
			errs = append(errs, errors.New("retrieval qdrant: url and collection are required"))
		}
	case "pgvector":
		requireEnv("retrieval pgvector", c.Retrieval.PgVector.DSNEnv)
	}
	return errors.Join(errs...)
}

// Display writes the effective configuration without secrets.
func (c *AppConfig) Display(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(k, v string) { fmt.Fprintf(tw, "%s\t%s\n", k, v) }

	row("LLM provider", c.Generator.Provider)
	model, endpoint := c.GeneratorTarget()
	row("Model", model)
	if endpoint != "" {
		row("Endpoint", endpoint)
	}
	row("Embedder", c.EmbedderLabel())
	row("Top K", fmt.Sprint(c.Retrieval.TopK))
	row("Retrieval backend", c.Retrieval.Backend)
	row("Document store", c.Store.Path)
	if c.History.Enabled {
		row("History", c.History.Path)
	} else {
		row("History", "disabled")
	}
	if c.Ingest.Chunker.Type == "sentence" {
		row("Chunking", fmt.Sprintf("sentence (%d per chunk, %d overlap)", c.Ingest.Chunker.SentencesPerChunk, c.Ingest.Chunker.OverlapSentences))
	}
	return tw.Flush()
}

// GeneratorTarget returns the model and endpoint of the selected provider.
func (c *AppConfig) GeneratorTarget() (model, endpoint string) {
	g := c.Generator
	switch g.Provider {
	case "openai":
		return g.OpenAI.Model, g.OpenAI.BaseURL
	case "ollama":
		return g.Ollama.Model, g.Ollama.BaseURL
	case "huggingface":
		return g.HuggingFace.Model, g.HuggingFace.URL
	case "anthropic":
		return g.Anthropic.Model, ""
	case "gemini":
		return g.Gemini.Model, ""
	}
	return "", ""
}

// EmbedderLabel describes the embedder for status output.
func (c *AppConfig) EmbedderLabel() string {
	e := c.Embedder
	if e.Type == "hashing" {
		return fmt.Sprintf("hashing (%d dims)", e.Dimension)
	}
	if e.Model == "" {
		return e.Type
	}
	return strings.Join([]string{e.Type, e.Model}, " / ")
}
