package llm

import "context"

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// Embedder computes vector embeddings for retrieval.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder extends Embedder with a multi-text call. The document
// ingestion path uses it to embed all chunks of a document at once.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ModelConfig is one named generation configuration. The pipeline runs
// two of them: a fast high-temperature model for question condensing and
// a slow low-temperature model for answer synthesis.
type ModelConfig struct {
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Params converts the config into per-call GenerationParams.
func (c ModelConfig) Params() GenerationParams {
	temp := c.Temperature
	p := GenerationParams{Temperature: &temp}
	if c.MaxTokens > 0 {
		maxTokens := c.MaxTokens
		p.MaxTokens = &maxTokens
	}
	return p
}
