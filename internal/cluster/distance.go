package cluster

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// pairwiseDistances computes the full N x N Euclidean distance matrix.
func pairwiseDistances(vectors [][]float64) [][]float64 {
	n := len(vectors)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := floats.Distance(vectors[i], vectors[j], 2)
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

// coreDistances returns, for every point, the distance to its k-th nearest
// neighbor (k = minSamples), excluding itself.
func coreDistances(dist [][]float64, k int) []float64 {
	n := len(dist)
	core := make([]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, 0, n-1)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			row = append(row, dist[i][j])
		}
		sort.Float64s(row)
		idx := k - 1
		if idx >= len(row) {
			idx = len(row) - 1
		}
		if idx < 0 {
			core[i] = 0
		} else {
			core[i] = row[idx]
		}
	}
	return core
}

// mutualReachability implements d_mreach(a,b) = max(core(a), core(b), d(a,b)).
func mutualReachability(dist [][]float64, core []float64) [][]float64 {
	n := len(dist)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			m := math.Max(core[i], core[j])
			m = math.Max(m, dist[i][j])
			out[i][j] = m
			out[j][i] = m
		}
	}
	return out
}

type edge struct {
	a, b int
	dist float64
}

// primMST builds a minimum spanning tree over the complete graph defined
// by dist using a dense O(n^2) Prim's algorithm, returning its n-1 edges in
// no particular order (callers sort by weight for single-linkage use).
func primMST(dist [][]float64) []edge {
	n := len(dist)
	if n < 2 {
		return nil
	}
	inTree := make([]bool, n)
	minEdge := make([]float64, n)
	nearest := make([]int, n)
	for i := range minEdge {
		minEdge[i] = math.Inf(1)
		nearest[i] = -1
	}

	inTree[0] = true
	for j := 1; j < n; j++ {
		minEdge[j] = dist[0][j]
		nearest[j] = 0
	}

	edges := make([]edge, 0, n-1)
	for k := 1; k < n; k++ {
		u := -1
		best := math.Inf(1)
		for v := 0; v < n; v++ {
			if !inTree[v] && minEdge[v] < best {
				best = minEdge[v]
				u = v
			}
		}
		if u == -1 {
			break
		}
		inTree[u] = true
		edges = append(edges, edge{a: nearest[u], b: u, dist: minEdge[u]})
		for v := 0; v < n; v++ {
			if !inTree[v] && dist[u][v] < minEdge[v] {
				minEdge[v] = dist[u][v]
				nearest[v] = u
			}
		}
	}
	return edges
}
