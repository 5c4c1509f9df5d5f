package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// chatModelFragments identify chat models that are commonly pasted into
// EMBEDDING_MODEL by mistake.
var chatModelFragments = []string{
	"gpt-4", "gpt-3.5", "gpt-35", "o1", "o3",
	"llama", "mistral", "mixtral", "gemma", "phi3",
	"claude", "deepseek", "qwen", "gemini",
}

func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, f := range chatModelFragments {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// Validate is a startup check for the embedding configuration. It returns an
// error for a configuration that cannot work and logs warnings for one that
// probably will not retrieve well.
func Validate(log *slog.Logger) error {
	backend := Backend()
	switch backend {
	case "ollama":
	case "openai":
		if firstEnv("EMBEDDING_API_KEY", "OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: no OpenAI API key found, set OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
	case "azure":
		if firstEnv("EMBEDDING_API_KEY", "AZURE_OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: no Azure API key found, set AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if firstEnv("EMBEDDING_ENDPOINT", "AZURE_OPENAI_ENDPOINT") == "" {
			return fmt.Errorf("embedder: no Azure endpoint found, set AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
	default:
		return fmt.Errorf("embedder: unknown backend %q (valid: ollama, openai, azure)", backend)
	}

	if model := os.Getenv("EMBEDDING_MODEL"); model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, retrieval quality will suffer",
			slog.String("model", model),
			slog.String("hint", "use an embedding model such as all-minilm or text-embedding-3-small"),
		)
	}
	if d := Dimensions(); d != DefaultDimension {
		log.Info("embedder: non-default vector dimension, the index must match",
			slog.Int("dimensions", d),
		)
	}
	return nil
}
