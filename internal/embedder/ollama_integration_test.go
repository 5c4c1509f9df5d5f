//go:build integration

package embedder

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestOllamaEmbedder_Integration calls a locally running Ollama.
//
//	ollama pull all-minilm
//	go test -tags=integration -run TestOllamaEmbedder_Integration ./internal/embedder/
func TestOllamaEmbedder_Integration(t *testing.T) {
	host := getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = defaultOllamaModel
	}

	emb := NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	texts := []string{
		"PM-KISAN provides income support of Rs 6000 per year to landholding farmers.",
		"Drip irrigation reduces water use for sugarcane.",
	}
	vectors, err := emb.Embed(ctx, texts)
	if err != nil {
		t.Fatalf("Embed() failed: %v (is %q pulled?)", err, model)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vectors))
	}
	if len(vectors[0]) == 0 {
		t.Fatal("empty vector")
	}
}
