package rag

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"slices"
	"sync"
)

var _ VectorIndex = (*MemoryIndex)(nil)

// MemoryIndex is a brute-force cosine index held in process memory.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	chunks    []DocumentChunk
	norms     []float64
}

// NewMemoryIndex returns an empty index for vectors of the given dimension.
func NewMemoryIndex(dimension int) (*MemoryIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("rag: invalid dimension %d", dimension)
	}
	return &MemoryIndex{dimension: dimension}, nil
}

// Add inserts pre-embedded chunks. Every chunk must carry an embedding of
// the index dimension.
func (m *MemoryIndex) Add(chunks ...DocumentChunk) error {
	norms := make([]float64, len(chunks))
	for i, c := range chunks {
		if len(c.Embedding) != m.dimension {
			return fmt.Errorf("rag: chunk %q has dimension %d, index expects %d", c.ID, len(c.Embedding), m.dimension)
		}
		norms[i] = norm(c.Embedding)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, chunks...)
	m.norms = append(m.norms, norms...)
	return nil
}

// Len returns the number of indexed chunks.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// Query scores every chunk against vector and returns the best k, ties
// broken the same way as [RankMatches].
func (m *MemoryIndex) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if len(vector) != m.dimension {
		return nil, fmt.Errorf("rag: query dimension %d, index expects %d", len(vector), m.dimension)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	qn := norm(vector)
	matches := make([]Match, 0, len(m.chunks))
	for i, c := range m.chunks {
		sim := 0.0
		if qn > 0 && m.norms[i] > 0 {
			sim = dot(c.Embedding, vector) / (qn * m.norms[i])
		}
		matches = append(matches, Match{Chunk: c, Similarity: sim})
	}
	slices.SortStableFunc(matches, compareMatches)
	if k > 0 && k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// Close drops the indexed chunks.
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks, m.norms = nil, nil
	return nil
}

// LoadSnapshot reads pre-embedded chunks from a JSON Lines file, one
// [DocumentChunk] per line, into a new MemoryIndex.
func LoadSnapshot(path string, dimension int) (*MemoryIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rag: open snapshot: %w", err)
	}
	defer f.Close()

	idx, err := NewMemoryIndex(dimension)
	if err != nil {
		return nil, err
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64<<10), 16<<20)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var c DocumentChunk
		if err := json.Unmarshal(sc.Bytes(), &c); err != nil {
			return nil, fmt.Errorf("rag: snapshot line %d: %w", line, err)
		}
		if err := idx.Add(c); err != nil {
			return nil, fmt.Errorf("rag: snapshot line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("rag: read snapshot: %w", err)
	}
	return idx, nil
}

func dot(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
