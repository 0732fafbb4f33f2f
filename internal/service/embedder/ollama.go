package embedder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/go-resty/resty/v2"
)

var _ embedding.Embedder = (*Ollama)(nil)

type OllamaConfig struct {
	BaseURL   string
	Model     string
	Timeout   time.Duration
	BatchSize int
}

// Ollama embeds with a locally served model through /api/embed.
type Ollama struct {
	client    *resty.Client
	model     string
	batchSize int
}

type ollamaRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

type ollamaError struct {
	Error string `json:"error"`
}

func NewOllama(cfg OllamaConfig) *Ollama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "all-minilm"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)

	return &Ollama{client: client, model: cfg.Model, batchSize: cfg.BatchSize}
}

func (o *Ollama) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	return inBatches(ctx, texts, o.batchSize, o.embed)
}

func (o *Ollama) embed(ctx context.Context, texts []string) ([][]float64, error) {
	var result ollamaResponse
	var apiErr ollamaError

	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(ollamaRequest{Model: o.model, Input: texts}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/api/embed")
	if err != nil {
		return nil, fmt.Errorf("ollama: request failed: %w", err)
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = resp.String()
		}
		return nil, fmt.Errorf("ollama: status %d: %s", resp.StatusCode(), msg)
	}
	return result.Embeddings, nil
}
