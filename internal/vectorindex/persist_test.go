package vectorindex

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func roundTrip(t *testing.T, x *Index) *Index {
	t.Helper()
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "segments.index")
	metaPath := filepath.Join(dir, "segments.meta.json")
	if err := x.Save(indexPath, metaPath); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(indexPath, metaPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return loaded
}

func TestSaveLoad_IdenticalResults(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	vectors, centers := clusteredVectors(rng, 10, 30, 12, 18, 0.5)

	for _, kind := range []Kind{KindFlat, KindIVF, KindHNSW} {
		t.Run(string(kind), func(t *testing.T) {
			x, err := Build(kind, vectors, Options{})
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if err := x.Add(vectors, testMeta(len(vectors))); err != nil {
				t.Fatalf("Add: %v", err)
			}

			loaded := roundTrip(t, x)
			if loaded.Kind() != kind {
				t.Fatalf("loaded kind = %q, want %q", loaded.Kind(), kind)
			}
			if loaded.Dim() != x.Dim() {
				t.Fatalf("loaded dim = %d, want %d (re-derived from vectors)", loaded.Dim(), x.Dim())
			}
			if loaded.Len() != x.Len() {
				t.Fatalf("loaded %d vectors, want %d", loaded.Len(), x.Len())
			}

			for qi := 0; qi < 10; qi++ {
				q := make([]float32, 12)
				for j := range q {
					q[j] = centers[qi%10][j] + float32(rng.NormFloat64()*0.5)
				}
				before, err := x.Search(q, 7)
				if err != nil {
					t.Fatalf("Search before save: %v", err)
				}
				after, err := loaded.Search(q, 7)
				if err != nil {
					t.Fatalf("Search after load: %v", err)
				}
				if len(before) != len(after) {
					t.Fatalf("result count changed: %d vs %d", len(before), len(after))
				}
				for i := range before {
					if before[i].Row != after[i].Row || before[i].Distance != after[i].Distance {
						t.Fatalf("query %d result %d differs: %+v vs %+v", qi, i, before[i], after[i])
					}
					if before[i].Meta != after[i].Meta {
						t.Fatalf("query %d metadata differs at %d", qi, i)
					}
				}
			}
		})
	}
}

func TestSave_NotBuilt(t *testing.T) {
	x := New(KindFlat, Options{})
	dir := t.TempDir()
	err := x.Save(filepath.Join(dir, "a"), filepath.Join(dir, "b"))
	if err == nil {
		t.Fatal("expected error saving an unbuilt index")
	}
}

func TestSave_BuiltButEmpty(t *testing.T) {
	x, err := Build(KindFlat, [][]float32{{1, 2}, {3, 4}}, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	dir := t.TempDir()
	indexPath := filepath.Join(dir, "a")
	err = x.Save(indexPath, filepath.Join(dir, "b"))
	if !errors.Is(err, ErrNotBuilt) {
		t.Fatalf("Save err = %v, want ErrNotBuilt", err)
	}
	// No artifact may exist: Load would reject it anyway.
	if _, statErr := os.Stat(indexPath); statErr == nil {
		t.Fatal("Save wrote an index file for an empty index")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/index", "/nonexistent/meta"); err == nil {
		t.Fatal("expected error for missing index file")
	}
}

func TestLoad_RejectsMisalignedMetadata(t *testing.T) {
	x := New(KindFlat, Options{})
	if err := x.Add([][]float32{{1, 2}, {3, 4}}, testMeta(2)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	dir := t.TempDir()
	indexPath := filepath.Join(dir, "segments.index")
	metaPath := filepath.Join(dir, "segments.meta.json")
	if err := x.Save(indexPath, metaPath); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Save a second, shorter metadata file over the first.
	y := New(KindFlat, Options{})
	if err := y.Add([][]float32{{1, 2}}, testMeta(1)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	otherIndex := filepath.Join(dir, "other.index")
	if err := y.Save(otherIndex, metaPath); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := Load(indexPath, metaPath); err == nil {
		t.Fatal("expected error for metadata shorter than vector count")
	}
}
