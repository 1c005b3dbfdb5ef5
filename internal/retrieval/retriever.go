// Package retrieval finds the transcript segments most relevant to a query.
package retrieval

import (
	"context"
	"fmt"

	"github.com/sinahosseinzadeh97/clipqa/internal/engine"
	"github.com/sinahosseinzadeh97/clipqa/internal/vectorindex"
)

// Hit is one retrieved segment with its squared-L2 distance to the query.
// Lower distance means higher relevance; hits arrive in index-search order
// and are never re-ranked downstream.
type Hit struct {
	vectorindex.Metadata
	Distance float32
}

// Retriever combines query embedding and index search.
type Retriever struct {
	embedder engine.Embedder
	index    *vectorindex.Index
}

// NewRetriever creates a Retriever over the given embedder and index.
func NewRetriever(embedder engine.Embedder, index *vectorindex.Index) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// Retrieve embeds the query and returns the topK nearest segments in the
// index's own result order. Searching an index that holds no vectors
// surfaces vectorindex.ErrNotBuilt unchanged.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]Hit, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := r.index.Search(vec, topK)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, len(results))
	for i, res := range results {
		hits[i] = Hit{Metadata: res.Meta, Distance: res.Distance}
	}
	return hits, nil
}
