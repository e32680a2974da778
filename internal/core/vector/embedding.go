package vector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
)

// EmbeddingProvider defines the interface for text embedding generation
type EmbeddingProvider interface {
	// GenerateEmbedding generates an embedding vector for a single text
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// GenerateBatchEmbeddings generates embeddings for multiple texts
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)

	// GetDimensions returns the dimension size of the embeddings
	GetDimensions() int

	// GetProviderName returns the provider name
	GetProviderName() string
}

const (
	embedMaxAttempts  = 2
	embedRetryBackoff = 500 * time.Millisecond
)

// OpenAIEmbeddingProvider implements EmbeddingProvider using OpenAI.
// Calls are bounded by a per-request timeout and retried at most once on
// transient failures; errors surface as ErrProviderTimeout or
// ErrProviderUnavailable rather than being retried unboundedly.
type OpenAIEmbeddingProvider struct {
	client  *openai.Client
	model   string
	dims    int
	timeout time.Duration
}

// NewOpenAIEmbeddingProvider creates a new OpenAI embedding provider
// Default model: text-embedding-3-small (1536 dimensions)
func NewOpenAIEmbeddingProvider(apiKey string, model string, timeout time.Duration) (*OpenAIEmbeddingProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	if model == "" {
		model = "text-embedding-3-small"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	// Determine dimensions based on model
	dims := 1536
	switch model {
	case "text-embedding-3-small":
		dims = 1536
	case "text-embedding-3-large":
		dims = 3072
	case "text-embedding-ada-002":
		dims = 1536
	}

	return &OpenAIEmbeddingProvider{
		client:  openai.NewClient(apiKey),
		model:   model,
		dims:    dims,
		timeout: timeout,
	}, nil
}

// GenerateEmbedding generates an embedding for a single text
func (p *OpenAIEmbeddingProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	vectors, err := p.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// GenerateBatchEmbeddings generates embeddings for multiple texts
func (p *OpenAIEmbeddingProvider) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyText
	}
	return p.embed(ctx, texts)
}

func (p *OpenAIEmbeddingProvider) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	for attempt := 1; attempt <= embedMaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		resp, err := p.client.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(p.model),
		})
		cancel()

		if err == nil {
			if len(resp.Data) != len(texts) {
				return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
					ErrProviderUnavailable, len(resp.Data), len(texts))
			}
			vectors := make([][]float32, len(resp.Data))
			for i, data := range resp.Data {
				if len(data.Embedding) != p.dims {
					return nil, fmt.Errorf("%w: provider returned %d dims, expected %d",
						ErrDimensionMismatch, len(data.Embedding), p.dims)
				}
				vectors[i] = data.Embedding
			}
			return vectors, nil
		}

		// Caller cancellation is not retried
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if errors.Is(err, context.DeadlineExceeded) {
			lastErr = fmt.Errorf("%w: %v", ErrProviderTimeout, err)
		} else {
			lastErr = fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}

		if attempt < embedMaxAttempts {
			time.Sleep(embedRetryBackoff * time.Duration(attempt))
		}
	}

	return nil, lastErr
}

// GetDimensions returns the dimension size
func (p *OpenAIEmbeddingProvider) GetDimensions() int {
	return p.dims
}

// GetProviderName returns the provider name
func (p *OpenAIEmbeddingProvider) GetProviderName() string {
	return fmt.Sprintf("openai_%s", p.model)
}
