// Package rag retrieves knowledge-base chunks for a farmer's question.
// A [Retriever] embeds the question with an [Embedder] and asks a
// [VectorIndex] for the nearest chunks. Indexes are populated out of band;
// nothing in this package writes to Qdrant.
package rag

import (
	"context"
)

// Metadata describes where a chunk came from.
type Metadata struct {
	// Title is the human-readable document title.
	Title string `json:"title,omitempty"`
	// Category groups documents (scheme, crop, insurance, legal...).
	Category string `json:"category,omitempty"`
	// Source is the document reference: a URL or a file name.
	Source string `json:"source,omitempty"`
}

// Complete reports whether both a title and a source reference are present.
func (m Metadata) Complete() bool {
	return m.Title != "" && m.Source != ""
}

// DocumentChunk is an immutable unit of retrievable text.
type DocumentChunk struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	SourceID      string    `json:"source_id"`
	SequenceIndex int       `json:"sequence_index"`
	Embedding     []float32 `json:"embedding,omitempty"`
	Metadata      Metadata  `json:"metadata"`
}

// Key identifies a chunk by its position in its source document.
type Key struct {
	SourceID      string
	SequenceIndex int
}

// Key returns the chunk's dedup key.
func (c DocumentChunk) Key() Key {
	return Key{SourceID: c.SourceID, SequenceIndex: c.SequenceIndex}
}

// Match is a raw nearest-neighbour result from a [VectorIndex].
type Match struct {
	Chunk      DocumentChunk
	Similarity float64
}

// Hit is a ranked retrieval result for a single query.
type Hit struct {
	Chunk DocumentChunk
	// Similarity is the cosine similarity clamped to [0, 1].
	Similarity float64
	// Rank is the 1-based position among the returned hits.
	Rank int
}

// Embedder converts texts into dense vectors. Implementations must be safe
// for concurrent use.
type Embedder interface {
	// Embed returns one vector per text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex answers nearest-neighbour queries over chunk embeddings.
// Implementations must be safe for concurrent reads.
type VectorIndex interface {
	// Query returns up to k matches for vector, best first.
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)
	// Close releases the index handle.
	Close() error
}
