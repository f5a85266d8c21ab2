package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOpenAIAPI is a mock for the OpenAI API
type MockOpenAIAPI struct {
	mock.Mock
}

func (m *MockOpenAIAPI) CreateEmbeddings(ctx context.Context, texts []string) ([]Embedding, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Embedding), args.Error(1)
}

func vec(dims int, v float32) []float32 {
	out := make([]float32, dims)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestClient_Embed_RestoresOrderByIndex(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := NewClientWithAPI(mockAPI, "test-model", 3, 0)

	ctx := context.Background()
	texts := []string{"первый", "второй", "третий"}
	mockAPI.On("CreateEmbeddings", ctx, texts).Return([]Embedding{
		{Index: 2, Vector: vec(3, 2)},
		{Index: 0, Vector: vec(3, 0)},
		{Index: 1, Vector: vec(3, 1)},
	}, nil)

	got, err := client.Embed(ctx, texts)

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, vec(3, 0), got[0])
	assert.Equal(t, vec(3, 1), got[1])
	assert.Equal(t, vec(3, 2), got[2])
	mockAPI.AssertExpectations(t)
}

func TestClient_Embed_Empty(t *testing.T) {
	client := NewClientWithAPI(new(MockOpenAIAPI), "m", 3, 0)

	got, err := client.Embed(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, got)

	_, err = client.Embed(context.Background(), []string{"ok", ""})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestClient_Embed_APIError(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := NewClientWithAPI(mockAPI, "m", 3, 0)

	ctx := context.Background()
	mockAPI.On("CreateEmbeddings", ctx, []string{"x"}).Return(nil, errors.New("API rate limit exceeded"))

	got, err := client.Embed(ctx, []string{"x"})

	assert.Nil(t, got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create embeddings")
	assert.Contains(t, err.Error(), "rate limit")
	mockAPI.AssertExpectations(t)
}

func TestClient_Embed_BadResponses(t *testing.T) {
	tests := []struct {
		name    string
		data    []Embedding
		wantErr error
	}{
		{"too few", []Embedding{{Index: 0, Vector: vec(3, 0)}}, ErrBadResponse},
		{"duplicate index", []Embedding{{Index: 0, Vector: vec(3, 0)}, {Index: 0, Vector: vec(3, 0)}}, ErrBadResponse},
		{"index out of range", []Embedding{{Index: 0, Vector: vec(3, 0)}, {Index: 2, Vector: vec(3, 0)}}, ErrBadResponse},
		{"wrong dimensions", []Embedding{{Index: 0, Vector: vec(3, 0)}, {Index: 1, Vector: vec(2, 0)}}, ErrWrongDimensions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockAPI := new(MockOpenAIAPI)
			client := NewClientWithAPI(mockAPI, "m", 3, 0)
			ctx := context.Background()
			texts := []string{"a", "b"}
			mockAPI.On("CreateEmbeddings", ctx, texts).Return(tt.data, nil)

			_, err := client.Embed(ctx, texts)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_Embed_RateLimiterHonoursContext(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := NewClientWithAPI(mockAPI, "m", 3, 0.001)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Embed(ctx, []string{"x"})
	assert.Error(t, err)
	mockAPI.AssertNotCalled(t, "CreateEmbeddings", mock.Anything, mock.Anything)
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(Config{APIKey: "test-api-key"})
	require.NoError(t, err)

	assert.NotNil(t, client.api)
	assert.Equal(t, string(DefaultEmbeddingModel), client.Model())
	assert.Equal(t, DefaultEmbeddingDimensions, client.Dimensions())
}

func TestNewClient_NoAPIKey(t *testing.T) {
	client, err := NewClient(Config{})

	assert.Nil(t, client)
	assert.Equal(t, ErrNoAPIKey, err)
}
