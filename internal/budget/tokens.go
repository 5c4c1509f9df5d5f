package budget

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

func init() {
	// Ship the BPE ranks in the binary; no network access at runtime.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

const encodingName = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

// Tokens counts cl100k_base tokens. The encoding is loaded once per process.
type Tokens struct {
	enc *tiktoken.Tiktoken
}

// NewTokens returns a token counter.
func NewTokens() (*Tokens, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding(encodingName)
	})
	if encErr != nil {
		return nil, fmt.Errorf("budget: load %s: %w", encodingName, encErr)
	}
	return &Tokens{enc: enc}, nil
}

// Count returns the number of tokens in s.
func (t *Tokens) Count(s string) int {
	if s == "" {
		return 0
	}
	return len(t.enc.Encode(s, nil, nil))
}

// Cut returns the decoded prefix of the first n tokens, trimmed to valid
// UTF-8 and re-checked against the count.
func (t *Tokens) Cut(s string, n int) string {
	if n <= 0 {
		return ""
	}
	toks := t.enc.Encode(s, nil, nil)
	if len(toks) <= n {
		return s
	}
	for k := n; k > 0; k-- {
		p := t.enc.Decode(toks[:k])
		for len(p) > 0 && !utf8.ValidString(p) {
			p = p[:len(p)-1]
		}
		if t.Count(p) <= n {
			return p
		}
	}
	return ""
}

// Unit returns "tokens".
func (t *Tokens) Unit() string { return "tokens" }
