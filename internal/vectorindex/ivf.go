package vectorindex

const (
	maxNlist         = 100
	kmeansIterations = 15
)

// ivfIndex is the clustered approximate backend. A training pass partitions
// the space into nlist k-means cells; each stored vector lands in the
// inverted list of its nearest centroid and queries scan only the nprobe
// closest cells, trading recall for speed.
type ivfIndex struct {
	dim       int
	nprobe    int
	centroids [][]float32
	lists     [][]int
	vecs      [][]float32
}

var _ backend = (*ivfIndex)(nil)

// trainIVF runs the k-means training pass over the initial batch and returns
// an empty (but ready) IVF backend. nlist is min(N/10, 100), at least 1.
func trainIVF(training [][]float32, nprobe int) *ivfIndex {
	nlist := len(training) / 10
	if nlist > maxNlist {
		nlist = maxNlist
	}
	if nlist < 1 {
		nlist = 1
	}
	centroids := kmeans(training, nlist)
	return &ivfIndex{
		dim:       len(training[0]),
		nprobe:    nprobe,
		centroids: centroids,
		lists:     make([][]int, len(centroids)),
	}
}

func (x *ivfIndex) trained() bool { return len(x.centroids) > 0 }

func (x *ivfIndex) add(vectors [][]float32) {
	for _, v := range vectors {
		row := len(x.vecs)
		x.vecs = append(x.vecs, v)
		c := x.nearestCentroid(v)
		x.lists[c] = append(x.lists[c], row)
	}
}

func (x *ivfIndex) search(query []float32, k int) []hit {
	probes := x.nprobe
	if probes > len(x.centroids) {
		probes = len(x.centroids)
	}

	// Rank cells by centroid distance, then scan the closest nprobe lists.
	cells := newTopK(probes)
	for c, centroid := range x.centroids {
		cells.offer(c, squaredL2(query, centroid))
	}

	t := newTopK(k)
	for _, cell := range cells.results() {
		for _, row := range x.lists[cell.row] {
			t.offer(row, squaredL2(query, x.vecs[row]))
		}
	}
	return t.results()
}

func (x *ivfIndex) size() int { return len(x.vecs) }

func (x *ivfIndex) nearestCentroid(v []float32) int {
	best := 0
	bestDist := squaredL2(v, x.centroids[0])
	for c := 1; c < len(x.centroids); c++ {
		if d := squaredL2(v, x.centroids[c]); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

// kmeans clusters points into k cells with Lloyd iterations. Initial
// centroids are evenly spaced samples of the training batch, which keeps
// training deterministic for a fixed input.
func kmeans(points [][]float32, k int) [][]float32 {
	dim := len(points[0])
	if k > len(points) {
		k = len(points)
	}

	centroids := make([][]float32, k)
	for i := range centroids {
		src := points[i*len(points)/k]
		centroids[i] = append(make([]float32, 0, dim), src...)
	}

	assignment := make([]int, len(points))
	for iter := 0; iter < kmeansIterations; iter++ {
		changed := false
		for p, v := range points {
			best := 0
			bestDist := squaredL2(v, centroids[0])
			for c := 1; c < k; c++ {
				if d := squaredL2(v, centroids[c]); d < bestDist {
					best = c
					bestDist = d
				}
			}
			if assignment[p] != best {
				assignment[p] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for p, v := range points {
			c := assignment[p]
			counts[c]++
			for i, f := range v {
				sums[c][i] += float64(f)
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue // Empty cell keeps its previous centroid.
			}
			for i := range centroids[c] {
				centroids[c][i] = float32(sums[c][i] / float64(counts[c]))
			}
		}
	}
	return centroids
}
