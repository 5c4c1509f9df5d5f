package embedder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaEmbedder_Embed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-minilm", req.Model)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{0.1, 0.2}}})
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "all-minilm"})
	vecs, err := emb.Embed(context.Background(), []string{"wheat rust"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}}, vecs)
}

func TestOllamaEmbedder_ErrorBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "missing"})
	_, err := emb.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestOpenAIEmbedder_ReordersByIndex(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req openaiEmbedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 384, req.Dimensions)
		_, _ = w.Write([]byte(`{"data":[{"embedding":[2],"index":1},{"embedding":[1],"index":0}]}`))
	}))
	defer srv.Close()

	emb := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "m", Dimensions: 384})
	vecs, err := emb.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, vecs)
}

func TestOpenAIEmbedder_AzureHeaders(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/emb/embeddings", r.URL.Path)
		assert.Equal(t, "2025-04-01-preview", r.URL.Query().Get("api-version"))
		assert.Equal(t, "az-key", r.Header.Get("api-key"))
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1],"index":0}]}`))
	}))
	defer srv.Close()

	emb := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL: srv.URL + "/openai", APIKey: "az-key", Model: "emb",
		Azure: true, APIVersion: "2025-04-01-preview",
	})
	_, err := emb.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
}

func TestNewFromEnv(t *testing.T) {
	for _, k := range []string{"EMBEDDING_PROVIDER", "MODEL_PROVIDER", "EMBEDDING_API_KEY", "OPENAI_API_KEY"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	emb, err := NewFromEnv()
	require.NoError(t, err)
	assert.IsType(t, &OllamaEmbedder{}, emb)

	t.Setenv("EMBEDDING_PROVIDER", "openai")
	_, err = NewFromEnv()
	require.Error(t, err, "openai without a key must fail")

	t.Setenv("OPENAI_API_KEY", "sk-test")
	emb, err = NewFromEnv()
	require.NoError(t, err)
	assert.IsType(t, &OpenAIEmbedder{}, emb)

	t.Setenv("EMBEDDING_PROVIDER", "bedrock")
	_, err = NewFromEnv()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "azure")
	t.Setenv("EMBEDDING_API_KEY", "k")
	t.Setenv("EMBEDDING_ENDPOINT", "")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "")

	require.Error(t, Validate(slog.Default()))

	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://x.openai.azure.com")
	require.NoError(t, Validate(slog.Default()))
}

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()
	assert.True(t, looksLikeChatModel("gpt-4o-mini"))
	assert.True(t, looksLikeChatModel("llama3.1:8b"))
	assert.False(t, looksLikeChatModel("all-minilm"))
	assert.False(t, looksLikeChatModel("text-embedding-3-small"))
}
