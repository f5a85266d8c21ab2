package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions is the native dimension of text-embedding-3-small
	DefaultEmbeddingDimensions = 1536
	// DefaultRequestsPerSecond bounds embedding calls shared by all callers.
	DefaultRequestsPerSecond = 5
	defaultBurst             = 2
)

var (
	// ErrEmptyText is returned when one of the inputs is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has an unexpected length
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrBadResponse is returned when the provider's result cannot be mapped back to the inputs
	ErrBadResponse = errors.New("embedding response does not match request")
	// ErrNoAPIKey is returned when no API key is configured
	ErrNoAPIKey = errors.New("openai api key not set")
)

// Embedding is one vector tagged with the position of its input.
type Embedding struct {
	Index  int
	Vector []float32
}

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([]Embedding, error)
}

// OpenAIAdapter calls the embeddings endpoint of any OpenAI-compatible API.
type OpenAIAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIAdapter(apiKey, baseURL string, model openai.EmbeddingModel) *OpenAIAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// CreateEmbeddings sends one batched request.
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([]Embedding, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.model,
	})
	if err != nil {
		return nil, err
	}

	out := make([]Embedding, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = Embedding{Index: d.Index, Vector: d.Embedding}
	}
	return out, nil
}

type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      string
	EmbeddingDimensions int
	RequestsPerSecond   float64
}

// Client validates and orders embedding responses and rate limits requests.
type Client struct {
	api        EmbeddingAPI
	model      string
	dimensions int
	limiter    *rate.Limiter
}

// NewClient creates a client from configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = string(DefaultEmbeddingModel)
	}
	return NewClientWithAPI(
		NewOpenAIAdapter(cfg.APIKey, cfg.BaseURL, openai.EmbeddingModel(model)),
		model, cfg.EmbeddingDimensions, cfg.RequestsPerSecond,
	), nil
}

// NewClientWithAPI wires a client around any EmbeddingAPI.
func NewClientWithAPI(api EmbeddingAPI, model string, dimensions int, rps float64) *Client {
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		api:        api,
		model:      model,
		dimensions: dimensions,
		limiter:    rate.NewLimiter(limit, defaultBurst),
	}
}

// Model returns the embedding model name.
func (c *Client) Model() string { return c.model }

// Dimensions returns the expected vector length.
func (c *Client) Dimensions() int { return c.dimensions }

// Embed returns one vector per input, in input order. The provider may
// return results in any order; each result's index puts it back in place.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, t := range texts {
		if t == "" {
			return nil, ErrEmptyText
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	data, err := c.api.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrBadResponse, len(data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range data {
		if d.Index < 0 || d.Index >= len(texts) || out[d.Index] != nil {
			return nil, fmt.Errorf("%w: invalid or duplicate index %d", ErrBadResponse, d.Index)
		}
		if len(d.Vector) != c.dimensions {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(d.Vector))
		}
		out[d.Index] = d.Vector
	}
	return out, nil
}
