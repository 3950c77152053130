package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"profrag/internal/embedding"
)

var _ embedding.Embedder = (*Client)(nil)

// Client is an OpenAI-compatible embeddings client implementing the Embedder interface.
type Client struct {
	client     *openai.Client
	model      string
	requestDim int
	dimension  atomic.Int64
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	// Dimensions requests shortened vectors from models that support it.
	// Zero keeps the model's native size.
	Dimensions int
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: t}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithHTTPClient(hc),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	client := openai.NewClient(opts...)
	c := &Client{
		client:     &client,
		model:      cfg.Model,
		requestDim: cfg.Dimensions,
	}
	c.dimension.Store(int64(cfg.Dimensions))
	return c, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Dimension returns the dimensionality of the produced embedding vectors.
// It is zero until the first successful Embed when no dimension was configured.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, embedding.ErrEmptyInput
	}
	params := openai.EmbeddingNewParams{
		Model:          c.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if c.requestDim > 0 {
		params.Dimensions = openai.Int(int64(c.requestDim))
	}
	resp, err := c.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding returned")
	}
	v := resp.Data[0].Embedding
	if len(v) == 0 {
		return nil, errors.New("empty embedding")
	}
	c.dimension.CompareAndSwap(0, int64(len(v)))
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out, nil
}
