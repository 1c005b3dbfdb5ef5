package vectorindex

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// indexState is the on-disk form of an index. Only the fields relevant to
// the stored kind are populated. The trained IVF centroids and the HNSW
// graph are persisted verbatim rather than rebuilt, so a loaded index
// answers queries identically to the one that was saved.
type indexState struct {
	Kind    Kind
	Dim     int
	Opts    Options
	Vectors [][]float32

	// IVF
	Centroids [][]float32
	Lists     [][]int

	// HNSW
	Links [][]int
}

// Save writes the vector structure to indexPath (gob) and the metadata list
// to metaPath (JSON). Both writes go through a temp file + rename so a crash
// never leaves a truncated artifact behind. An index holding no vectors is
// not saveable; Load rejects empty artifacts, so none are ever written.
func (x *Index) Save(indexPath, metaPath string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.backend == nil || x.backend.size() == 0 {
		return ErrNotBuilt
	}

	state := indexState{Kind: x.kind, Dim: x.dim, Opts: x.opts}
	switch b := x.backend.(type) {
	case *flatIndex:
		state.Vectors = b.vecs
	case *ivfIndex:
		state.Vectors = b.vecs
		state.Centroids = b.centroids
		state.Lists = b.lists
	case *hnswIndex:
		state.Vectors = b.vecs
		state.Links = b.links
	default:
		return fmt.Errorf("saving: unknown backend %T", x.backend)
	}

	if err := writeAtomic(indexPath, func(f *os.File) error {
		return gob.NewEncoder(f).Encode(state)
	}); err != nil {
		return fmt.Errorf("writing index file: %w", err)
	}

	if err := writeAtomic(metaPath, func(f *os.File) error {
		return json.NewEncoder(f).Encode(x.meta)
	}); err != nil {
		return fmt.Errorf("writing metadata file: %w", err)
	}
	return nil
}

// Load restores an index from its two artifact files. The dimension is
// re-derived from the stored vectors; mismatched vector/metadata counts are
// rejected, since the row pairing would be meaningless.
func Load(indexPath, metaPath string) (*Index, error) {
	f, err := os.Open(indexPath)
	if err != nil {
		return nil, fmt.Errorf("opening index file: %w", err)
	}
	defer f.Close()

	var state indexState
	if err := gob.NewDecoder(f).Decode(&state); err != nil {
		return nil, fmt.Errorf("decoding index file: %w", err)
	}
	if len(state.Vectors) == 0 {
		return nil, fmt.Errorf("loading %s: %w", indexPath, ErrNotBuilt)
	}

	dim := len(state.Vectors[0])
	x := New(state.Kind, state.Opts)
	x.dim = dim

	switch state.Kind {
	case KindFlat:
		x.backend = &flatIndex{dim: dim, vecs: state.Vectors}
	case KindIVF:
		if len(state.Centroids) == 0 {
			return nil, fmt.Errorf("loading %s: %w", indexPath, ErrNotTrained)
		}
		x.backend = &ivfIndex{
			dim:       dim,
			nprobe:    x.opts.NProbe,
			centroids: state.Centroids,
			lists:     state.Lists,
			vecs:      state.Vectors,
		}
	case KindHNSW:
		x.backend = &hnswIndex{
			dim:      dim,
			efSearch: x.opts.EFSearch,
			vecs:     state.Vectors,
			links:    state.Links,
		}
	default:
		return nil, fmt.Errorf("loading %s: unknown index kind %q", indexPath, state.Kind)
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("reading metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &x.meta); err != nil {
		return nil, fmt.Errorf("decoding metadata file: %w", err)
	}
	if len(x.meta) != len(state.Vectors) {
		return nil, fmt.Errorf("loading %s: %d metadata records for %d vectors",
			metaPath, len(x.meta), len(state.Vectors))
	}
	return x, nil
}

// writeAtomic writes via a sibling temp file and renames it into place.
func writeAtomic(path string, write func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
