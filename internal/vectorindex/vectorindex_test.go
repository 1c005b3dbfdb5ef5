package vectorindex

import (
	"errors"
	"fmt"
	"sort"
	"testing"
)

func testMeta(n int) []Metadata {
	meta := make([]Metadata, n)
	for i := range meta {
		meta[i] = Metadata{
			VideoID:    fmt.Sprintf("vid-%d", i),
			VideoTitle: fmt.Sprintf("Video %d", i),
			Text:       fmt.Sprintf("segment %d", i),
			StartTime:  float64(i) * 10,
			Duration:   10,
		}
	}
	return meta
}

// bruteForce is the reference nearest-neighbor result used to check backends.
func bruteForce(vectors [][]float32, query []float32, k int) []int {
	type scored struct {
		row  int
		dist float32
	}
	all := make([]scored, len(vectors))
	for i, v := range vectors {
		all[i] = scored{row: i, dist: squaredL2(query, v)}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].dist != all[j].dist {
			return all[i].dist < all[j].dist
		}
		return all[i].row < all[j].row
	})
	if k > len(all) {
		k = len(all)
	}
	rows := make([]int, k)
	for i := range rows {
		rows[i] = all[i].row
	}
	return rows
}

func TestFlat_ExactSearch(t *testing.T) {
	vectors := [][]float32{
		{0, 0}, {1, 0}, {0, 1}, {5, 5}, {1, 1}, {-2, 0},
	}
	x := New(KindFlat, Options{})
	if err := x.Add(vectors, testMeta(len(vectors))); err != nil {
		t.Fatalf("Add: %v", err)
	}

	query := []float32{0.4, 0.1}
	results, err := x.Search(query, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := bruteForce(vectors, query, 3)
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i, r := range results {
		if r.Row != want[i] {
			t.Errorf("result %d row = %d, want %d", i, r.Row, want[i])
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Errorf("distances not ascending at %d: %v < %v", i, results[i].Distance, results[i-1].Distance)
		}
	}
	if results[0].Meta.VideoID != fmt.Sprintf("vid-%d", want[0]) {
		t.Errorf("metadata not aligned: got %q for row %d", results[0].Meta.VideoID, want[0])
	}
}

func TestFlat_TieBreakIsInsertionOrder(t *testing.T) {
	// Rows 1 and 2 are equidistant from the query; the earlier row must rank
	// first.
	vectors := [][]float32{
		{10, 10}, {1, 0}, {-1, 0}, {0, 3},
	}
	x := New(KindFlat, Options{})
	if err := x.Add(vectors, testMeta(len(vectors))); err != nil {
		t.Fatalf("Add: %v", err)
	}
	results, err := x.Search([]float32{0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results[0].Row != 1 || results[1].Row != 2 {
		t.Fatalf("tie-break rows = %d,%d, want 1,2", results[0].Row, results[1].Row)
	}
}

func TestSearch_NotBuilt(t *testing.T) {
	for _, kind := range []Kind{KindFlat, KindIVF, KindHNSW} {
		x := New(kind, Options{})
		if _, err := x.Search([]float32{1, 2}, 3); !errors.Is(err, ErrNotBuilt) {
			t.Errorf("%s: err = %v, want ErrNotBuilt", kind, err)
		}
	}
}

func TestAdd_DimensionMismatch(t *testing.T) {
	x := New(KindFlat, Options{})
	if err := x.Add([][]float32{{1, 2, 3}}, testMeta(1)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	err := x.Add([][]float32{{1, 2}}, testMeta(1))
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	x := New(KindFlat, Options{})
	if err := x.Add([][]float32{{1, 2, 3}}, testMeta(1)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := x.Search([]float32{1, 2}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestAdd_MetadataLockstep(t *testing.T) {
	x := New(KindFlat, Options{})
	if err := x.Add([][]float32{{1}, {2}}, testMeta(1)); err == nil {
		t.Fatal("expected error for vector/metadata count mismatch")
	}

	if err := x.Add([][]float32{{1}, {2}}, testMeta(2)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := x.Add([][]float32{{3}}, testMeta(1)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := len(x.meta); got != x.Len() {
		t.Fatalf("metadata count %d != vector count %d", got, x.Len())
	}
}

func TestSearch_KLargerThanIndex(t *testing.T) {
	x := New(KindFlat, Options{})
	if err := x.Add([][]float32{{1, 0}, {0, 1}}, testMeta(2)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	results, err := x.Search([]float32{0, 0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want all 2", len(results))
	}
}

func TestAdd_UntrainedIVF(t *testing.T) {
	x := &Index{kind: KindIVF, opts: Options{}.withDefaults(), dim: 2}
	x.backend = &ivfIndex{dim: 2, nprobe: defaultNProbe}
	err := x.Add([][]float32{{1, 2}}, testMeta(1))
	if !errors.Is(err, ErrNotTrained) {
		t.Fatalf("err = %v, want ErrNotTrained", err)
	}
}

func TestBuild_TrainsWithoutAdding(t *testing.T) {
	vectors := make([][]float32, 40)
	for i := range vectors {
		vectors[i] = []float32{float32(i), float32(i % 7)}
	}
	x, err := Build(KindIVF, vectors, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if x.Len() != 0 {
		t.Fatalf("Build added %d vectors, want training only", x.Len())
	}
	if err := x.Add(vectors, testMeta(len(vectors))); err != nil {
		t.Fatalf("Add after Build: %v", err)
	}
	if x.Len() != len(vectors) {
		t.Fatalf("Len = %d, want %d", x.Len(), len(vectors))
	}
}

// Run with -race: ingest and ask share one index in the server, so Add must
// not tear the vectors or metadata out from under a concurrent Search.
func TestConcurrentAddAndSearch(t *testing.T) {
	x := New(KindFlat, Options{})
	if err := x.Add([][]float32{{0, 0}, {1, 1}}, testMeta(2)); err != nil {
		t.Fatalf("seeding index: %v", err)
	}

	const rounds = 200
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < rounds; i++ {
			v := float32(i + 2)
			if err := x.Add([][]float32{{v, v}}, testMeta(1)); err != nil {
				t.Errorf("concurrent Add: %v", err)
				return
			}
		}
	}()

	for i := 0; i < rounds; i++ {
		results, err := x.Search([]float32{0.1, 0.1}, 2)
		if err != nil {
			t.Fatalf("concurrent Search: %v", err)
		}
		for _, r := range results {
			if r.Meta.VideoID == "" {
				t.Fatalf("row %d surfaced without metadata", r.Row)
			}
		}
		_ = x.Len()
	}
	<-done
}

func TestParseKind(t *testing.T) {
	for _, name := range []string{"flat", "ivf", "hnsw"} {
		if _, err := ParseKind(name); err != nil {
			t.Errorf("ParseKind(%q): %v", name, err)
		}
	}
	if _, err := ParseKind("annoy"); err == nil {
		t.Error("ParseKind accepted an unknown kind")
	}
}
