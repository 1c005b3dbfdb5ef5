package vectorindex

import "container/heap"

const (
	// hnswDegree is the fixed out-degree per graph node.
	hnswDegree = 32

	// hnswEFConstruction is the beam width used while inserting nodes.
	hnswEFConstruction = 128
)

// hnswIndex is the graph approximate backend: a navigable small-world graph
// with a fixed out-degree per node. Insertion is incremental with no
// training step; query recall is tuned by the efSearch beam width.
type hnswIndex struct {
	dim      int
	efSearch int
	vecs     [][]float32
	links    [][]int
}

var _ backend = (*hnswIndex)(nil)

func newHNSW(dim, efSearch int) *hnswIndex {
	return &hnswIndex{dim: dim, efSearch: efSearch}
}

func (x *hnswIndex) add(vectors [][]float32) {
	for _, v := range vectors {
		x.insert(v)
	}
}

func (x *hnswIndex) insert(v []float32) {
	row := len(x.vecs)
	x.vecs = append(x.vecs, v)
	x.links = append(x.links, nil)
	if row == 0 {
		return
	}

	// Find candidate neighbors with a construction-width beam search and
	// connect bidirectionally, pruning any node that outgrows the fixed
	// degree back to its closest neighbors.
	candidates := x.beamSearch(v, hnswEFConstruction, row)
	n := len(candidates)
	if n > hnswDegree {
		n = hnswDegree
	}
	for _, c := range candidates[:n] {
		x.links[row] = append(x.links[row], c.row)
		x.links[c.row] = append(x.links[c.row], row)
		if len(x.links[c.row]) > hnswDegree {
			x.prune(c.row)
		}
	}
}

// prune trims a node's neighbor list back to its hnswDegree closest links.
func (x *hnswIndex) prune(row int) {
	t := newTopK(hnswDegree)
	for _, nb := range x.links[row] {
		t.offer(nb, squaredL2(x.vecs[row], x.vecs[nb]))
	}
	kept := t.results()
	links := x.links[row][:0]
	for _, h := range kept {
		links = append(links, h.row)
	}
	x.links[row] = links
}

func (x *hnswIndex) search(query []float32, k int) []hit {
	ef := x.efSearch
	if ef < k {
		ef = k
	}
	found := x.beamSearch(query, ef, len(x.vecs))
	if len(found) > k {
		found = found[:k]
	}
	return found
}

// minHitHeap orders candidate expansion by ascending distance.
type minHitHeap []hit

func (h minHitHeap) Len() int            { return len(h) }
func (h minHitHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minHitHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHitHeap) Push(x interface{}) { *h = append(*h, x.(hit)) }
func (h *minHitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// beamSearch runs a best-first graph walk over the first limit rows, keeping
// an ef-wide result set. The walk starts from evenly spaced seed rows rather
// than a single entry point, so regions whose long-range links were pruned
// away stay reachable. Returns up to ef hits in ascending distance order.
func (x *hnswIndex) beamSearch(query []float32, ef, limit int) []hit {
	if limit == 0 {
		return nil
	}

	seeds := ef
	if seeds > limit {
		seeds = limit
	}
	visited := make(map[int]bool, ef*4)
	candidates := make(minHitHeap, 0, seeds)
	best := newTopK(ef)
	for i := 0; i < seeds; i++ {
		row := i * limit / seeds
		if visited[row] {
			continue
		}
		visited[row] = true
		d := squaredL2(query, x.vecs[row])
		candidates = append(candidates, hit{row: row, dist: d})
		best.offer(row, d)
	}
	heap.Init(&candidates)

	for candidates.Len() > 0 {
		cur := heap.Pop(&candidates).(hit)
		// The frontier is farther than the worst kept result and the result
		// set is full: the walk cannot improve any further.
		if best.h.Len() == ef && cur.dist > best.h[0].dist {
			break
		}
		for _, nb := range x.links[cur.row] {
			if nb >= limit || visited[nb] {
				continue
			}
			visited[nb] = true
			d := squaredL2(query, x.vecs[nb])
			if best.h.Len() < ef || d < best.h[0].dist {
				heap.Push(&candidates, hit{row: nb, dist: d})
				best.offer(nb, d)
			}
		}
	}
	return best.results()
}

func (x *hnswIndex) size() int { return len(x.vecs) }
