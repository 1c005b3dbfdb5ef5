// Package vectorindex stores embedding vectors with 1:1 segment metadata and
// answers k-nearest-neighbor queries by squared-L2 distance. Three backends
// share one add/search contract: a brute-force exact scan (Flat), a k-means
// clustered approximate index (IVF), and a navigable small-world graph
// (HNSW). The backend is picked at construction and rows are append-only;
// rebuilding means constructing a new index.
package vectorindex

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotBuilt is returned when searching an index that holds no vectors.
	ErrNotBuilt = errors.New("vector index not built")

	// ErrDimensionMismatch is returned when a vector's width differs from the
	// index dimension. This is a programmer error, not a recoverable state.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrNotTrained is returned when vectors are added to an IVF backend that
	// has not completed its training pass.
	ErrNotTrained = errors.New("IVF index not trained")
)

// Kind selects the index backend.
type Kind string

const (
	KindFlat Kind = "flat"
	KindIVF  Kind = "ivf"
	KindHNSW Kind = "hnsw"
)

// ParseKind validates a backend name from configuration.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindFlat, KindIVF, KindHNSW:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown index kind %q (want flat, ivf, or hnsw)", s)
}

// Metadata is the per-row segment record kept in lockstep with the vectors.
type Metadata struct {
	VideoID    string  `json:"video_id"`
	VideoTitle string  `json:"video_title"`
	Text       string  `json:"text"`
	StartTime  float64 `json:"start_time"`
	Duration   float64 `json:"duration"`
}

// Result is one search hit: the stored row, its squared-L2 distance to the
// query, and the row's metadata.
type Result struct {
	Row      int
	Distance float32
	Meta     Metadata
}

// Options tunes the approximate backends. Zero values pick the defaults.
type Options struct {
	// NProbe is how many clusters an IVF search scans. Default 8.
	NProbe int

	// EFSearch is the HNSW beam width at query time; recall grows with it.
	// Default 64.
	EFSearch int
}

const (
	defaultNProbe   = 8
	defaultEFSearch = 64
)

func (o Options) withDefaults() Options {
	if o.NProbe <= 0 {
		o.NProbe = defaultNProbe
	}
	if o.EFSearch <= 0 {
		o.EFSearch = defaultEFSearch
	}
	return o
}

// backend is the internal add/search contract shared by the three variants.
type backend interface {
	add(vectors [][]float32)
	search(query []float32, k int) []hit
	size() int
}

// hit is a backend-level search result.
type hit struct {
	row  int
	dist float32
}

// Index pairs a backend with its metadata list. Add and Search are safe for
// concurrent use: Add holds the write lock, Search the read lock, so the
// served ingest and ask paths can share one index.
type Index struct {
	mu      sync.RWMutex
	kind    Kind
	opts    Options
	dim     int
	meta    []Metadata
	backend backend
}

// New creates an empty index of the given kind. The backend is built lazily
// on the first Add, training the IVF variant on that initial batch.
func New(kind Kind, opts Options) *Index {
	return &Index{kind: kind, opts: opts.withDefaults()}
}

// Build constructs a ready index of the given kind from an initial embedding
// batch, running the IVF training pass when required. The batch is used for
// training only; vectors enter the index through Add.
func Build(kind Kind, vectors [][]float32, opts Options) (*Index, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("building %s index: empty training batch", kind)
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("building %s index: vector %d has dimension %d, want %d: %w",
				kind, i, len(v), dim, ErrDimensionMismatch)
		}
	}

	x := New(kind, opts)
	x.dim = dim
	switch kind {
	case KindFlat:
		x.backend = newFlat(dim)
	case KindIVF:
		x.backend = trainIVF(vectors, x.opts.NProbe)
	case KindHNSW:
		x.backend = newHNSW(dim, x.opts.EFSearch)
	default:
		return nil, fmt.Errorf("unknown index kind %q", kind)
	}
	return x, nil
}

// Add appends vectors and their metadata in lockstep. The backend is built
// (and trained, for IVF) from the first batch when none exists yet. Rows are
// append-only; there is no update or delete.
func (x *Index) Add(vectors [][]float32, meta []Metadata) error {
	if len(vectors) == 0 {
		return nil
	}
	if len(vectors) != len(meta) {
		return fmt.Errorf("adding embeddings: %d vectors but %d metadata records", len(vectors), len(meta))
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.backend == nil {
		built, err := Build(x.kind, vectors, x.opts)
		if err != nil {
			return err
		}
		x.dim = built.dim
		x.backend = built.backend
	}

	if ivf, ok := x.backend.(*ivfIndex); ok && !ivf.trained() {
		return ErrNotTrained
	}

	for i, v := range vectors {
		if len(v) != x.dim {
			return fmt.Errorf("adding vector %d: got dimension %d, index holds %d: %w",
				i, len(v), x.dim, ErrDimensionMismatch)
		}
	}

	x.backend.add(vectors)
	x.meta = append(x.meta, meta...)
	return nil
}

// Search returns the top-k rows nearest to query in ascending distance
// order. Rows with identical distances keep insertion order. A defensively
// out-of-range row carries zero-value metadata, which should never occur in
// correct operation.
func (x *Index) Search(query []float32, k int) ([]Result, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.backend == nil || x.backend.size() == 0 {
		return nil, ErrNotBuilt
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("searching: query has dimension %d, index holds %d: %w",
			len(query), x.dim, ErrDimensionMismatch)
	}
	if k <= 0 {
		return nil, fmt.Errorf("searching: k must be positive, got %d", k)
	}

	hits := x.backend.search(query, k)
	results := make([]Result, len(hits))
	for i, h := range hits {
		r := Result{Row: h.row, Distance: h.dist}
		if h.row >= 0 && h.row < len(x.meta) {
			r.Meta = x.meta[h.row]
		}
		results[i] = r
	}
	return results, nil
}

// Len returns the number of stored vectors.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.backend == nil {
		return 0
	}
	return x.backend.size()
}

// Dim returns the vector dimension, or 0 before the index is built.
func (x *Index) Dim() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dim
}

// Kind returns the backend variant.
func (x *Index) Kind() Kind { return x.kind }
