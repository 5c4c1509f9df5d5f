// Package audit records which configuration a kisan command started with.
// Secret values are reduced to "set" or "unset" before they reach the log.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// entry is one env var included in the audit record.
type entry struct {
	key    string
	secret bool
}

// keys is the ordered list of env vars included in every audit record.
var keys = []entry{
	{"MODEL_PROVIDER", false},
	{"OLLAMA_HOST", false},
	{"OLLAMA_MODEL", false},
	{"OPENAI_API_KEY", true},
	{"OPENAI_MODEL", false},
	{"AZURE_OPENAI_API_KEY", true},
	{"AZURE_OPENAI_ENDPOINT", false},
	{"AZURE_OPENAI_DEPLOYMENT", false},
	{"ARK_API_KEY", true},
	{"ARK_MODEL", false},
	{"GOOGLE_API_KEY", true},
	{"GEMINI_MODEL", false},
	{"EMBEDDING_PROVIDER", false},
	{"EMBEDDING_MODEL", false},
	{"EMBEDDING_API_KEY", true},
	{"KISAN_INDEX", false},
	{"QDRANT_HOST", false},
	{"QDRANT_COLLECTION", false},
	{"QDRANT_API_KEY", true},
	{"KISAN_TOP_K", false},
	{"KISAN_CONTEXT_BUDGET", false},
	{"KISAN_BUDGET_UNIT", false},
	{"KISAN_API_KEY", true},
	{"KISAN_HISTORY_DB", false},
	{"LOG_LEVEL", false},
	{"LOG_FORMAT", false},
	{"LANGFUSE_PUBLIC_KEY", true},
	{"LANGFUSE_SECRET_KEY", true},
}

var secret = func() map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, e := range keys {
		if e.secret {
			m[e.key] = true
		}
	}
	return m
}()

// LogCommandStart emits one audit record when a CLI command begins.
func LogCommandStart(ctx context.Context, log *slog.Logger, command, configPath string) {
	attrs := make([]slog.Attr, 0, len(keys)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	)
	for _, e := range keys {
		attrs = append(attrs, slog.String(e.key, SanitiseKey(e.key, os.Getenv(e.key))))
	}
	log.LogAttrs(ctx, slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey returns "set"/"unset" for secret keys and the value (or
// "unset") for everything else.
func SanitiseKey(key, value string) string {
	if secret[key] {
		return presence(value)
	}
	if value == "" {
		return "unset"
	}
	return value
}

func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

// sanitiseConfigPath returns "none" for an empty path and replaces the home
// directory prefix with "~".
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	home, err := os.UserHomeDir()
	if err == nil && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
