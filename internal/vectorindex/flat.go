package vectorindex

import (
	"container/heap"
	"sort"
)

// squaredL2 returns the squared Euclidean distance between two equal-width
// vectors. Callers guarantee the widths match.
func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// hitHeap is a max-heap by distance, so the worst kept candidate sits on top
// and is evicted first.
type hitHeap []hit

func (h hitHeap) Len() int            { return len(h) }
func (h hitHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h hitHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x interface{}) { *h = append(*h, x.(hit)) }
func (h *hitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// topK keeps the k nearest hits seen so far. Replacement requires a strictly
// smaller distance, so earlier rows win ties (stable insertion-order
// tie-break).
type topK struct {
	k int
	h hitHeap
}

func newTopK(k int) *topK {
	return &topK{k: k, h: make(hitHeap, 0, k)}
}

func (t *topK) offer(row int, dist float32) {
	if t.h.Len() < t.k {
		heap.Push(&t.h, hit{row: row, dist: dist})
		return
	}
	if dist < t.h[0].dist {
		t.h[0] = hit{row: row, dist: dist}
		heap.Fix(&t.h, 0)
	}
}

// results drains the heap into ascending-distance order, breaking distance
// ties by row.
func (t *topK) results() []hit {
	out := make([]hit, len(t.h))
	copy(out, t.h)
	sort.Slice(out, func(i, j int) bool {
		if out[i].dist != out[j].dist {
			return out[i].dist < out[j].dist
		}
		return out[i].row < out[j].row
	})
	return out
}

// flatIndex is the exact backend: a brute-force squared-L2 scan over every
// stored vector, O(N·d) per query.
type flatIndex struct {
	dim  int
	vecs [][]float32
}

var _ backend = (*flatIndex)(nil)

func newFlat(dim int) *flatIndex {
	return &flatIndex{dim: dim}
}

func (f *flatIndex) add(vectors [][]float32) {
	f.vecs = append(f.vecs, vectors...)
}

func (f *flatIndex) search(query []float32, k int) []hit {
	t := newTopK(k)
	for row, v := range f.vecs {
		t.offer(row, squaredL2(query, v))
	}
	return t.results()
}

func (f *flatIndex) size() int { return len(f.vecs) }
