package audit

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestSanitiseKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key, value, want string
	}{
		{"OPENAI_API_KEY", "sk-abc123", "set"},
		{"OPENAI_API_KEY", "", "unset"},
		{"KISAN_API_KEY", "token", "set"},
		{"MODEL_PROVIDER", "ollama", "ollama"},
		{"MODEL_PROVIDER", "", "unset"},
	}
	for _, tc := range tests {
		if got := SanitiseKey(tc.key, tc.value); got != tc.want {
			t.Errorf("SanitiseKey(%q, %q) = %q, want %q", tc.key, tc.value, got, tc.want)
		}
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/kisan.yaml"); got != "/tmp/kisan.yaml" {
		t.Errorf("expected '/tmp/kisan.yaml', got %q", got)
	}
	if home, err := os.UserHomeDir(); err == nil {
		if got := sanitiseConfigPath(home + "/.kisan/config.yaml"); got != "~/.kisan/config.yaml" {
			t.Errorf("expected '~/.kisan/config.yaml', got %q", got)
		}
	}
}

func TestLogCommandStart_RedactsSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-very-secret")
	t.Setenv("MODEL_PROVIDER", "openai")

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	LogCommandStart(context.Background(), log, "ask", "")

	out := buf.String()
	if strings.Contains(out, "sk-very-secret") {
		t.Fatalf("secret leaked into audit log: %s", out)
	}
	if !strings.Contains(out, "OPENAI_API_KEY=set") {
		t.Errorf("expected OPENAI_API_KEY=set in %s", out)
	}
	if !strings.Contains(out, "MODEL_PROVIDER=openai") {
		t.Errorf("expected MODEL_PROVIDER=openai in %s", out)
	}
}
