package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/apperr"
)

// fakeEmbedder returns a fixed vector or error.
type fakeEmbedder struct {
	vec   []float32
	err   error
	delay time.Duration
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

// fakeIndex returns canned matches and records the requested k. With
// truncate set it returns only the first k, in canned order, the way a
// backend that ignores the tie rule would.
type fakeIndex struct {
	matches  []Match
	err      error
	truncate bool
	gotK     int
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, k int) ([]Match, error) {
	f.gotK = k
	if f.truncate && k < len(f.matches) {
		return f.matches[:k], f.err
	}
	return f.matches, f.err
}

func (f *fakeIndex) Close() error { return nil }

func chunk(source string, seq int) DocumentChunk {
	return DocumentChunk{ID: source + "-" + string(rune('a'+seq)), SourceID: source, SequenceIndex: seq, Text: "text"}
}

func TestRetriever_KDefaultAndCap(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{}
	r, err := NewRetriever(&fakeEmbedder{vec: []float32{1}}, idx, RetrieverConfig{})
	require.NoError(t, err)

	assert.Equal(t, DefaultK, r.ClampK(0))
	assert.Equal(t, DefaultMaxK, r.ClampK(500))
	assert.Equal(t, 3, r.ClampK(3))

	// The index is asked for a margin beyond k.
	_, err = r.Retrieve(context.Background(), "pm kisan", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultK+tieMargin, idx.gotK)

	_, err = r.Retrieve(context.Background(), "pm kisan", 500)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxK+tieMargin, idx.gotK)

	_, err = r.Retrieve(context.Background(), "pm kisan", 3)
	require.NoError(t, err)
	assert.Equal(t, 3+tieMargin, idx.gotK)
}

func TestRetriever_EmptyQuery(t *testing.T) {
	t.Parallel()

	r, err := NewRetriever(&fakeEmbedder{vec: []float32{1}}, &fakeIndex{}, RetrieverConfig{})
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestRetriever_TieBreakIsDeterministic(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{matches: []Match{
		{Chunk: chunk("b", 0), Similarity: 0.8},
		{Chunk: chunk("a", 2), Similarity: 0.8000001},
		{Chunk: chunk("a", 1), Similarity: 0.8},
		{Chunk: chunk("z", 0), Similarity: 0.95},
		{Chunk: chunk("c", 0), Similarity: 0.1},
	}}
	r, err := NewRetriever(&fakeEmbedder{vec: []float32{1}}, idx, RetrieverConfig{})
	require.NoError(t, err)

	hits, err := r.Retrieve(context.Background(), "irrigation subsidy", 4)
	require.NoError(t, err)
	require.Len(t, hits, 4)

	got := make([]Key, len(hits))
	for i, h := range hits {
		got[i] = h.Chunk.Key()
		assert.Equal(t, i+1, h.Rank)
	}
	assert.Equal(t, []Key{{"z", 0}, {"a", 1}, {"a", 2}, {"b", 0}}, got)
}

func TestRetriever_Unavailable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		emb  *fakeEmbedder
		idx  *fakeIndex
		cfg  RetrieverConfig
	}{
		{"embedder error", &fakeEmbedder{err: errors.New("connection refused")}, &fakeIndex{}, RetrieverConfig{}},
		{"index error", &fakeEmbedder{vec: []float32{1}}, &fakeIndex{err: errors.New("qdrant down")}, RetrieverConfig{}},
		{"empty vector", &fakeEmbedder{vec: nil}, &fakeIndex{}, RetrieverConfig{}},
		{"timeout", &fakeEmbedder{vec: []float32{1}, delay: time.Second}, &fakeIndex{}, RetrieverConfig{Timeout: 10 * time.Millisecond}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r, err := NewRetriever(tc.emb, tc.idx, tc.cfg)
			require.NoError(t, err)

			_, err = r.Retrieve(context.Background(), "soil health card", 5)
			assert.ErrorIs(t, err, apperr.ErrRetrievalUnavailable)
		})
	}
}

func TestRankMatches_ClampsSimilarity(t *testing.T) {
	t.Parallel()

	hits := RankMatches([]Match{
		{Chunk: chunk("a", 0), Similarity: 1.2},
		{Chunk: chunk("b", 0), Similarity: -0.3},
	}, 0)
	require.Len(t, hits, 2)
	assert.Equal(t, 1.0, hits[0].Similarity)
	assert.Equal(t, 0.0, hits[1].Similarity)
}

func TestMemoryIndex_QueryOrdersByCosine(t *testing.T) {
	t.Parallel()

	idx, err := NewMemoryIndex(2)
	require.NoError(t, err)

	a := chunk("a", 0)
	a.Embedding = []float32{1, 0}
	b := chunk("b", 0)
	b.Embedding = []float32{0.7, 0.7}
	c := chunk("c", 0)
	c.Embedding = []float32{0, 1}
	require.NoError(t, idx.Add(a, b, c))
	assert.Equal(t, 3, idx.Len())

	matches, err := idx.Query(context.Background(), []float32{2, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].Chunk.SourceID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-9)
	assert.Equal(t, "b", matches[1].Chunk.SourceID)

	_, err = idx.Query(context.Background(), []float32{1, 2, 3}, 1)
	assert.Error(t, err)
}

func TestMemoryIndex_TieAtCutoffPrefersSourceID(t *testing.T) {
	t.Parallel()

	idx, err := NewMemoryIndex(2)
	require.NoError(t, err)

	zeta := chunk("zeta", 0)
	zeta.Embedding = []float32{1, 1}
	alpha := chunk("alpha", 0)
	alpha.Embedding = []float32{1, 1}
	require.NoError(t, idx.Add(zeta, alpha))

	matches, err := idx.Query(context.Background(), []float32{1, 1}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "alpha", matches[0].Chunk.SourceID)

	r, err := NewRetriever(&fakeEmbedder{vec: []float32{1, 1}}, idx, RetrieverConfig{})
	require.NoError(t, err)
	hits, err := r.Retrieve(context.Background(), "soil health card", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "alpha", hits[0].Chunk.SourceID)
}

func TestRetriever_TieAtCutoffAcrossBackends(t *testing.T) {
	t.Parallel()

	// Insertion order puts the later source first, as an arbitrary backend might.
	idx := &fakeIndex{truncate: true, matches: []Match{
		{Chunk: chunk("zeta", 2), Similarity: 0.8},
		{Chunk: chunk("zeta", 1), Similarity: 0.8},
		{Chunk: chunk("alpha", 4), Similarity: 0.8 + 1e-9},
	}}
	r, err := NewRetriever(&fakeEmbedder{vec: []float32{1}}, idx, RetrieverConfig{})
	require.NoError(t, err)

	hits, err := r.Retrieve(context.Background(), "crop insurance", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "alpha", hits[0].Chunk.SourceID)
	assert.Equal(t, "zeta", hits[1].Chunk.SourceID)
	assert.Equal(t, 1, hits[1].Chunk.SequenceIndex)
	assert.Equal(t, []int{1, 2}, []int{hits[0].Rank, hits[1].Rank})
}

func TestMemoryIndex_RejectsWrongDimension(t *testing.T) {
	t.Parallel()

	idx, err := NewMemoryIndex(3)
	require.NoError(t, err)
	c := chunk("a", 0)
	c.Embedding = []float32{1}
	assert.Error(t, idx.Add(c))

	_, err = NewMemoryIndex(0)
	assert.Error(t, err)
}

func TestLoadSnapshot(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kb.jsonl")
	data := `{"id":"1","text":"PM-KISAN gives Rs 6000 a year","source_id":"pmkisan","sequence_index":0,"embedding":[1,0],"metadata":{"title":"PM-KISAN","source":"pmkisan.gov.in"}}

{"id":"2","text":"Drip irrigation","source_id":"irrigation","sequence_index":3,"embedding":[0,1]}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	idx, err := LoadSnapshot(path, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())

	matches, err := idx.Query(context.Background(), []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.True(t, matches[0].Chunk.Metadata.Complete())
	assert.Equal(t, "PM-KISAN", matches[0].Chunk.Metadata.Title)
}

func TestLoadSnapshot_BadLine(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kb.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{not json}\n"), 0o644))

	_, err := LoadSnapshot(path, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestMetadata_Complete(t *testing.T) {
	t.Parallel()
	assert.True(t, Metadata{Title: "t", Source: "s"}.Complete())
	assert.False(t, Metadata{Title: "t"}.Complete())
	assert.False(t, Metadata{Source: "s"}.Complete())
}
