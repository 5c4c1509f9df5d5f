package advisor

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/assembler"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/confidence"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/generator"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/rag"
)

// Defaults for Config.
const (
	DefaultHistoryTurns      = 10
	DefaultRetryBackoff      = 500 * time.Millisecond
	DefaultGenerationRetries = 1
)

// Config tunes the pipeline. Zero values take the defaults.
type Config struct {
	// TopK is the number of hits requested per question.
	TopK int
	// MaxK caps TopK in the retriever.
	MaxK int
	// HistoryTurns is the history window read per request.
	HistoryTurns int
	// BudgetUnit is "chars" or "tokens".
	BudgetUnit string
	Assembler  assembler.Config
	Thresholds confidence.Thresholds

	RetrievalTimeout  time.Duration
	GenerationTimeout time.Duration
	RetryBackoff      time.Duration
	GenerationRetries int
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = rag.DefaultK
	}
	if c.MaxK <= 0 {
		c.MaxK = rag.DefaultMaxK
	}
	if c.HistoryTurns <= 0 {
		c.HistoryTurns = DefaultHistoryTurns
	}
	if c.Thresholds == (confidence.Thresholds{}) {
		c.Thresholds = confidence.DefaultThresholds
	}
	if c.RetrievalTimeout <= 0 {
		c.RetrievalTimeout = rag.DefaultTimeout
	}
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = generator.DefaultTimeout
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.GenerationRetries <= 0 {
		c.GenerationRetries = DefaultGenerationRetries
	}
	return c
}

// requestSlack covers the history read and the exchange write.
const requestSlack = 5 * time.Second

// RequestBudget is the longest Answer can run with every stage at its
// timeout: retrieval, each generation attempt and its backoff, then one
// generation timeout each for simplification and follow-ups.
func (c Config) RequestBudget() time.Duration {
	c = c.withDefaults()
	retries := time.Duration(c.GenerationRetries)
	return c.RetrievalTimeout +
		(retries+1)*c.GenerationTimeout +
		retries*c.RetryBackoff +
		2*c.GenerationTimeout +
		requestSlack
}

// ConfigFromEnv reads the pipeline settings.
//
// Environment variables:
//
//	KISAN_TOP_K               hits per question (default: 5)
//	KISAN_MAX_K               cap on hits (default: 20)
//	KISAN_HISTORY_TURNS       history window (default: 10)
//	KISAN_CONTEXT_BUDGET      context size (default: 12000)
//	KISAN_BUDGET_UNIT         chars | tokens (default: chars)
//	KISAN_DOCUMENT_SHARE      budget share for an upload (default: 0.25)
//	KISAN_HISTORY_SHARE       budget share for history (default: 0.30)
//	KISAN_CONFIDENCE_HIGH     High tier threshold (default: 70)
//	KISAN_CONFIDENCE_MEDIUM   Medium tier threshold (default: 40)
//	KISAN_RETRIEVAL_TIMEOUT   e.g. 10s
//	KISAN_GENERATION_TIMEOUT  e.g. 30s
//	KISAN_RETRY_BACKOFF       e.g. 500ms
func ConfigFromEnv() (Config, error) {
	var (
		c   Config
		err error
	)
	ints := []struct {
		key string
		dst *int
	}{
		{"KISAN_TOP_K", &c.TopK},
		{"KISAN_MAX_K", &c.MaxK},
		{"KISAN_HISTORY_TURNS", &c.HistoryTurns},
		{"KISAN_CONTEXT_BUDGET", &c.Assembler.Budget},
		{"KISAN_CONFIDENCE_HIGH", &c.Thresholds.High},
		{"KISAN_CONFIDENCE_MEDIUM", &c.Thresholds.Medium},
	}
	for _, e := range ints {
		if *e.dst, err = envInt(e.key); err != nil {
			return Config{}, err
		}
	}
	if c.Thresholds.High == 0 {
		c.Thresholds.High = confidence.DefaultThresholds.High
	}
	if c.Thresholds.Medium == 0 {
		c.Thresholds.Medium = confidence.DefaultThresholds.Medium
	}
	if t := c.Thresholds; t.Medium < 0 || t.High > 100 || t.Medium > t.High {
		return Config{}, fmt.Errorf("advisor: KISAN_CONFIDENCE_MEDIUM (%d) must be between 0 and KISAN_CONFIDENCE_HIGH (%d), at most 100",
			t.Medium, t.High)
	}

	if c.Assembler.DocumentShare, err = envFloat("KISAN_DOCUMENT_SHARE"); err != nil {
		return Config{}, err
	}
	if c.Assembler.HistoryShare, err = envFloat("KISAN_HISTORY_SHARE"); err != nil {
		return Config{}, err
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"KISAN_RETRIEVAL_TIMEOUT", &c.RetrievalTimeout},
		{"KISAN_GENERATION_TIMEOUT", &c.GenerationTimeout},
		{"KISAN_RETRY_BACKOFF", &c.RetryBackoff},
	}
	for _, e := range durations {
		if *e.dst, err = envDuration(e.key); err != nil {
			return Config{}, err
		}
	}

	c.BudgetUnit = os.Getenv("KISAN_BUDGET_UNIT")
	return c.withDefaults(), nil
}

func envInt(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("advisor: %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("advisor: %s: %w", key, err)
	}
	return f, nil
}

func envDuration(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("advisor: %s: %w", key, err)
	}
	return d, nil
}
