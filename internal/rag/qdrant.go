package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// Payload keys written by the knowledge-base loader.
const (
	payloadChunkID  = "chunk_id"
	payloadText     = "text"
	payloadSourceID = "source_id"
	payloadSequence = "sequence_index"
	payloadTitle    = "title"
	payloadCategory = "category"
	payloadSource   = "source"
)

// QdrantConfig holds connection parameters for a Qdrant collection.
type QdrantConfig struct {
	// Host defaults to localhost.
	Host string
	// Port is the gRPC port, default 6334.
	Port       int
	Collection string
	// VectorSize is used when the collection has to be created.
	VectorSize uint64
	APIKey     string
	UseTLS     bool
}

var _ VectorIndex = (*QdrantIndex)(nil)

// QdrantIndex is a [VectorIndex] backed by a Qdrant collection.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantIndex connects to Qdrant and makes sure the collection exists so
// that a fresh deployment answers with empty results instead of errors.
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "farmer_knowledge"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	idx := &QdrantIndex{client: client, collection: cfg.Collection}
	if err := idx.ensureCollection(ctx, cfg.VectorSize); err != nil {
		_ = client.Close()
		return nil, err
	}
	return idx, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context, size uint64) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     size,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", q.collection, err)
	}
	return nil
}

// Query runs a cosine nearest-neighbour search with payloads.
func (q *QdrantIndex) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	limit := uint64(k)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: query failed: %w", err)
	}

	matches := make([]Match, 0, len(points))
	for _, p := range points {
		matches = append(matches, Match{
			Chunk:      chunkFromPayload(p.GetId(), p.GetPayload()),
			Similarity: float64(p.GetScore()),
		})
	}
	return matches, nil
}

// Ping checks that the Qdrant server answers health checks.
func (q *QdrantIndex) Ping(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

func chunkFromPayload(id *qdrant.PointId, p map[string]*qdrant.Value) DocumentChunk {
	c := DocumentChunk{
		ID:            p[payloadChunkID].GetStringValue(),
		Text:          p[payloadText].GetStringValue(),
		SourceID:      p[payloadSourceID].GetStringValue(),
		SequenceIndex: int(p[payloadSequence].GetIntegerValue()),
		Metadata: Metadata{
			Title:    p[payloadTitle].GetStringValue(),
			Category: p[payloadCategory].GetStringValue(),
			Source:   p[payloadSource].GetStringValue(),
		},
	}
	if c.ID == "" && id != nil {
		if u := id.GetUuid(); u != "" {
			c.ID = u
		} else {
			c.ID = fmt.Sprintf("%d", id.GetNum())
		}
	}
	return c
}
