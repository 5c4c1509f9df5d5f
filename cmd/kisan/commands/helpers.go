package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/advisor"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/budget"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/embedder"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/generator"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/provider"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/rag"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/server"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/store"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/tracing"
)

// runtime is everything a command needs to talk to the advisor.
type runtime struct {
	advisor *advisor.Advisor
	pingers []server.Pinger
	closers []func()
	// budget is the longest one answer can take with every stage at its
	// timeout.
	budget time.Duration
}

// Close releases the store, the index and the tracer in reverse order.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// buildRuntime wires the store, retriever, chat model and advisor from env.
// reg receives the pipeline metrics and may be nil for one-shot commands.
func buildRuntime(ctx context.Context, log *slog.Logger, reg prometheus.Registerer) (_ *runtime, err error) {
	rt := &runtime{}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	if flush, ok := tracing.Setup(); ok {
		rt.closers = append(rt.closers, flush)
		log.Info("langfuse tracing enabled")
	} else {
		log.Debug("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
	}

	st, err := openStore(log)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func() { _ = st.Close() })
	rt.pingers = append(rt.pingers, server.NewDependencyPinger("store", st))

	providerCfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised",
		slog.String("provider", string(providerCfg.Backend)),
		slog.String("model", providerCfg.ModelName()),
	)
	if p := llmPinger(providerCfg); p != nil {
		rt.pingers = append(rt.pingers, p)
	}

	cfg, err := advisor.ConfigFromEnv()
	if err != nil {
		return nil, err
	}

	retriever, err := buildRetriever(ctx, log, cfg)
	if err != nil {
		return nil, err
	}

	counter, err := budget.New(cfg.BudgetUnit)
	if err != nil {
		return nil, err
	}

	gen, err := generator.New(chatModel, cfg.GenerationTimeout)
	if err != nil {
		return nil, err
	}

	deps := advisor.Deps{Store: st, Generator: gen, Counter: counter, Registerer: reg}
	if retriever != nil {
		deps.Retriever = retriever
		rt.closers = append(rt.closers, func() { _ = retriever.Close() })
		if p, ok := retriever.Index().(interface{ Ping(context.Context) error }); ok {
			rt.pingers = append(rt.pingers, server.NewDependencyPinger("qdrant", p))
		}
	}

	rt.advisor, err = advisor.New(deps, cfg)
	if err != nil {
		return nil, err
	}
	rt.budget = cfg.RequestBudget()
	return rt, nil
}

// openStore opens the conversation database. KISAN_HISTORY_DB overrides the
// default path (~/.kisan/conversations.db).
func openStore(log *slog.Logger) (*store.SQLiteStore, error) {
	path := os.Getenv("KISAN_HISTORY_DB")
	if path == "" {
		var err error
		if path, err = store.DefaultDBPath(); err != nil {
			return nil, err
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	log.Info("history: store opened", slog.String("path", path))
	return st, nil
}

// buildRetriever constructs the retriever selected by KISAN_INDEX:
//
//	qdrant  (default) Qdrant collection
//	memory  JSONL snapshot from KISAN_INDEX_SNAPSHOT
//	none    no knowledge base, every answer is history-only
//
// An unreachable Qdrant is not fatal: the advisor answers in degraded mode
// and the index reconnects on a later question or readiness check.
func buildRetriever(ctx context.Context, log *slog.Logger, cfg advisor.Config) (*rag.Retriever, error) {
	backend := strings.ToLower(os.Getenv("KISAN_INDEX"))
	if backend == "none" {
		log.Warn("retrieval disabled via KISAN_INDEX=none")
		return nil, nil
	}

	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, err
	}

	var index rag.VectorIndex
	switch backend {
	case "", "qdrant":
		port, _ := strconv.Atoi(os.Getenv("QDRANT_PORT"))
		tls, _ := strconv.ParseBool(os.Getenv("QDRANT_TLS"))
		qcfg := rag.QdrantConfig{
			Host:       os.Getenv("QDRANT_HOST"),
			Port:       port,
			Collection: os.Getenv("QDRANT_COLLECTION"),
			VectorSize: uint64(embedder.Dimensions()),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     tls,
		}
		lazy := rag.NewLazyIndex(func(ctx context.Context) (rag.VectorIndex, error) {
			idx, err := rag.NewQdrantIndex(ctx, qcfg)
			if err != nil {
				return nil, err
			}
			log.Info("qdrant connected", slog.String("collection", qcfg.Collection))
			return idx, nil
		}, 0)
		if qErr := lazy.Connect(ctx); qErr != nil {
			log.Warn("qdrant unavailable, answering without the knowledge base until it is reachable",
				slog.Any("error", qErr),
				slog.Duration("retry_interval", rag.DefaultReconnectInterval),
			)
		}
		index = lazy
	case "memory":
		path := os.Getenv("KISAN_INDEX_SNAPSHOT")
		if path == "" {
			return nil, errors.New("KISAN_INDEX=memory requires KISAN_INDEX_SNAPSHOT")
		}
		idx, mErr := rag.LoadSnapshot(path, embedder.Dimensions())
		if mErr != nil {
			return nil, mErr
		}
		log.Info("memory index loaded", slog.String("path", path), slog.Int("chunks", idx.Len()))
		index = idx
	default:
		return nil, fmt.Errorf("unknown KISAN_INDEX %q (valid: qdrant, memory, none)", backend)
	}

	r, err := rag.NewRetriever(emb, index, rag.RetrieverConfig{
		DefaultK: cfg.TopK,
		MaxK:     cfg.MaxK,
		Timeout:  cfg.RetrievalTimeout,
	})
	if err != nil {
		_ = index.Close()
		return nil, err
	}
	return r, nil
}

// llmPinger returns a token-free readiness probe for backends that expose
// one. Ark and Gemini have no cheap listing endpoint and are not probed.
func llmPinger(cfg *provider.Config) server.Pinger {
	switch cfg.Backend {
	case provider.BackendOllama:
		return server.NewHTTPPinger("llm", strings.TrimRight(cfg.Ollama.Host, "/")+"/api/tags", nil)
	case provider.BackendOpenAI:
		base := cfg.OpenAI.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		hdr := http.Header{"Authorization": []string{"Bearer " + cfg.OpenAI.APIKey}}
		return server.NewHTTPPinger("llm", strings.TrimRight(base, "/")+"/models", hdr)
	default:
		return nil
	}
}
