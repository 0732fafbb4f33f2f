// Package embedder provides text embedding adapters behind eino's Embedder interface.
package embedder

import (
	"context"
	"fmt"

	"RiskApprove/pkg/config"

	"github.com/cloudwego/eino/components/embedding"
)

const defaultBatchSize = 64

// New picks the adapter named by cfg.
func New(cfg config.Embedding) (embedding.Embedder, error) {
	switch cfg.ResolvedProvider() {
	case "openai":
		return NewOpenAI(OpenAIConfig{
			APIKey:    cfg.OpenAIAPIKey,
			BaseURL:   cfg.OpenAIBaseURL,
			Model:     cfg.OpenAIModel,
			Timeout:   cfg.Timeout,
			BatchSize: cfg.BatchSize,
		})
	case "ollama":
		return NewOllama(OllamaConfig{
			BaseURL:   cfg.OllamaBaseURL,
			Model:     cfg.OllamaModel,
			Timeout:   cfg.Timeout,
			BatchSize: cfg.BatchSize,
		}), nil
	default:
		return nil, fmt.Errorf("embedder: unknown provider %q", cfg.Provider)
	}
}

// inBatches calls fn for consecutive slices of at most size texts and
// concatenates the vectors, checking each batch returns one vector per text.
func inBatches(ctx context.Context, texts []string, size int, fn func(context.Context, []string) ([][]float64, error)) ([][]float64, error) {
	if size <= 0 {
		size = defaultBatchSize
	}
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vecs, err := fn(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedder: got %d vectors for %d texts", len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}
