package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// openAIModel calls any OpenAI-compatible /v1/embeddings endpoint
type openAIModel struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	dim        int
}

// LoadOpenAI is the Loader for OpenAI-compatible endpoints. It probes the
// endpoint once to learn the vector dimension.
func LoadOpenAI(ctx context.Context, cfg Config) (Model, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: set OPENAI_API_KEY or an embedding base URL", ErrNoAPIKey)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	m := &openAIModel{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.ModelName),
		dimensions: cfg.Dimensions,
	}

	probe, err := m.Embed(ctx, []string{"probe"})
	if err != nil {
		return nil, fmt.Errorf("probe endpoint: %w", err)
	}
	if len(probe) != 1 || len(probe[0]) == 0 {
		return nil, errors.New("probe returned no embedding")
	}
	m.dim = len(probe[0])
	return m, nil
}

func (o *openAIModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          o.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if o.dimensions > 0 {
		req.Dimensions = o.dimensions
	}

	resp, err := o.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, describeAPIError(err)
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
	}
	return out, nil
}

func (o *openAIModel) Dimension() int       { return o.dim }
func (o *openAIModel) Name() string         { return string(o.model) }
func (o *openAIModel) ConcurrentSafe() bool { return true }
func (o *openAIModel) Close() error         { return nil }

func describeAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("embedding API error %d: %w", reqErr.HTTPStatusCode, err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	return fmt.Errorf("embedding request failed: %w", err)
}

// isRetryable treats client errors other than rate limiting as permanent
func isRetryable(err error) bool {
	if errors.Is(err, ErrEmptyText) || errors.Is(err, ErrNoAPIKey) {
		return false
	}
	status := 0
	var reqErr *openai.RequestError
	var apiErr *openai.APIError
	switch {
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	}
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
		return false
	}
	return true
}
