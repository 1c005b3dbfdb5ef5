package vectorindex

import (
	"math/rand"
	"testing"
)

// clusteredVectors samples well-separated Gaussian clusters, interleaving
// cluster membership across rows the way interleaved video ingestion would.
func clusteredVectors(rng *rand.Rand, clusters, perCluster, dim int, spread, sigma float64) (vectors [][]float32, centers [][]float32) {
	centers = make([][]float32, clusters)
	for c := range centers {
		center := make([]float32, dim)
		for j := range center {
			center[j] = float32(rng.NormFloat64() * spread)
		}
		centers[c] = center
	}
	n := clusters * perCluster
	vectors = make([][]float32, n)
	for i := range vectors {
		center := centers[i%clusters]
		v := make([]float32, dim)
		for j := range v {
			v[j] = center[j] + float32(rng.NormFloat64()*sigma)
		}
		vectors[i] = v
	}
	return vectors, centers
}

// recallAt measures the overlap between a backend's top-k rows and the flat
// ground truth.
func recallAt(t *testing.T, x *Index, vectors [][]float32, queries [][]float32, k int) float64 {
	t.Helper()
	var found, total int
	for _, q := range queries {
		truth := bruteForce(vectors, q, k)
		truthSet := make(map[int]bool, len(truth))
		for _, row := range truth {
			truthSet[row] = true
		}
		results, err := x.Search(q, k)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		for _, r := range results {
			if truthSet[r.Row] {
				found++
			}
		}
		total += len(truth)
	}
	return float64(found) / float64(total)
}

func approxRecallCase(t *testing.T, kind Kind) {
	const (
		clusters   = 16
		perCluster = 50
		dim        = 16
		k          = 10
		numQueries = 30
	)
	rng := rand.New(rand.NewSource(42))
	vectors, centers := clusteredVectors(rng, clusters, perCluster, dim, 20, 0.5)

	x, err := Build(kind, vectors, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := x.Add(vectors, testMeta(len(vectors))); err != nil {
		t.Fatalf("Add: %v", err)
	}

	queries := make([][]float32, numQueries)
	for i := range queries {
		center := centers[i%clusters]
		q := make([]float32, dim)
		for j := range q {
			q[j] = center[j] + float32(rng.NormFloat64()*0.5)
		}
		queries[i] = q
	}

	recall := recallAt(t, x, vectors, queries, k)
	if recall < 0.9 {
		t.Fatalf("%s recall@%d = %.3f, want >= 0.9", kind, k, recall)
	}
}

func TestIVF_Recall(t *testing.T) {
	approxRecallCase(t, KindIVF)
}

func TestHNSW_Recall(t *testing.T) {
	approxRecallCase(t, KindHNSW)
}

func TestFlat_MatchesBruteForceOnClusters(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vectors, centers := clusteredVectors(rng, 8, 25, 8, 15, 1)

	x, err := Build(KindFlat, vectors, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := x.Add(vectors, testMeta(len(vectors))); err != nil {
		t.Fatalf("Add: %v", err)
	}

	queries := make([][]float32, 10)
	for i := range queries {
		q := make([]float32, 8)
		for j := range q {
			q[j] = centers[i%8][j] + float32(rng.NormFloat64())
		}
		queries[i] = q
	}
	if recall := recallAt(t, x, vectors, queries, 5); recall != 1.0 {
		t.Fatalf("flat recall@5 = %.3f, want exactly 1.0", recall)
	}
}
