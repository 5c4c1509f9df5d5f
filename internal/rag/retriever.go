package rag

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/apperr"
)

const (
	// DefaultK is the hit count used when the caller passes k <= 0.
	DefaultK = 5
	// DefaultMaxK caps k to bound cost.
	DefaultMaxK = 20
	// DefaultTimeout bounds embedding plus index lookup.
	DefaultTimeout = 10 * time.Second

	// tieEpsilon is the similarity difference below which hits count as tied.
	tieEpsilon = 1e-6
	// tieMargin is the extra matches fetched beyond k.
	tieMargin = 5
)

// RetrieverConfig tunes a [Retriever]. Zero values take the defaults above.
type RetrieverConfig struct {
	DefaultK int
	MaxK     int
	Timeout  time.Duration
}

// Retriever embeds a query and fetches the nearest chunks. It owns its index
// handle: Close releases it.
type Retriever struct {
	embedder Embedder
	index    VectorIndex
	cfg      RetrieverConfig
}

// NewRetriever constructs a Retriever over the given embedder and index.
func NewRetriever(embedder Embedder, index VectorIndex, cfg RetrieverConfig) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("rag: index must not be nil")
	}
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = DefaultK
	}
	if cfg.MaxK <= 0 {
		cfg.MaxK = DefaultMaxK
	}
	if cfg.DefaultK > cfg.MaxK {
		cfg.DefaultK = cfg.MaxK
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Retriever{embedder: embedder, index: index, cfg: cfg}, nil
}

// Index returns the underlying index.
func (r *Retriever) Index() VectorIndex { return r.index }

// ClampK applies the default and the cap to a requested hit count.
func (r *Retriever) ClampK(k int) int {
	if k <= 0 {
		return r.cfg.DefaultK
	}
	return min(k, r.cfg.MaxK)
}

// Retrieve returns up to k hits for query ordered by descending similarity.
// Hits tied within 1e-6 are ordered by source ID then sequence index.
// Embedder or index failures, including timeouts, are reported as
// [apperr.KindRetrievalUnavailable].
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Hit, error) {
	const op = "rag.Retrieve"

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Newf(apperr.KindInvalidInput, op, "query is empty")
	}
	k = r.ClampK(k)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, apperr.New(apperr.KindRetrievalUnavailable, op, fmt.Errorf("embed query: %w", err))
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, apperr.New(apperr.KindRetrievalUnavailable, op, errors.New("embedder returned no vector"))
	}

	// Backends pick arbitrarily among points tied at the cut, so ask for a
	// few more and let RankMatches cut to k.
	matches, err := r.index.Query(ctx, vectors[0], r.fetchK(k))
	if err != nil {
		return nil, apperr.New(apperr.KindRetrievalUnavailable, op, fmt.Errorf("query index: %w", err))
	}

	return RankMatches(matches, k), nil
}

// fetchK is the number of matches requested from the index for k hits.
func (r *Retriever) fetchK(k int) int {
	return min(k+tieMargin, 2*r.cfg.MaxK)
}

// RankMatches orders matches deterministically, keeps the best k and assigns
// 1-based ranks.
func RankMatches(matches []Match, k int) []Hit {
	sorted := slices.Clone(matches)
	slices.SortStableFunc(sorted, compareMatches)
	if k > 0 && len(sorted) > k {
		sorted = sorted[:k]
	}

	hits := make([]Hit, len(sorted))
	for i, m := range sorted {
		hits[i] = Hit{Chunk: m.Chunk, Similarity: clamp01(m.Similarity), Rank: i + 1}
	}
	return hits
}

func compareMatches(a, b Match) int {
	if d := a.Similarity - b.Similarity; math.Abs(d) > tieEpsilon {
		if d > 0 {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(a.Chunk.SourceID, b.Chunk.SourceID); c != 0 {
		return c
	}
	return cmp.Compare(a.Chunk.SequenceIndex, b.Chunk.SequenceIndex)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Close releases the index handle.
func (r *Retriever) Close() error {
	return r.index.Close()
}
