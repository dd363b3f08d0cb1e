// Package cluster groups sidecar embeddings into density-based clusters
// using HDBSCAN over (optionally UMAP-reduced) vectors.
package cluster

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/Hyphonical/Scout/internal/embedding"
	"github.com/Hyphonical/Scout/internal/filehash"
)

// Params configures one clustering run.
type Params struct {
	MinClusterSize int
	MinSamples     int // default: MinClusterSize
	UseUMAP        bool
	UMAPDim        int // default: 512
}

func (p Params) normalized() Params {
	if p.MinClusterSize <= 0 {
		p.MinClusterSize = 5
	}
	if p.MinSamples <= 0 {
		p.MinSamples = p.MinClusterSize
	}
	if p.UMAPDim <= 0 {
		p.UMAPDim = 512
	}
	return p
}

// Point is one input to clustering: a sidecar's identity and its (possibly
// mean-of-frames) embedding.
type Point struct {
	Hash   filehash.Hash
	Vector embedding.Vector
}

// Cluster is one density-based group found by HDBSCAN.
type Cluster struct {
	ID             int
	Members        []filehash.Hash
	Representative filehash.Hash
	Cohesion       float64
}

// Result is the full output of one clustering run.
type Result struct {
	Clusters []Cluster
	Noise    []filehash.Hash
}

// Run clusters points according to params. Order of points does not affect
// the result beyond floating point summation order.
func Run(points []Point, params Params) (Result, error) {
	params = params.normalized()
	n := len(points)
	if n == 0 {
		return Result{}, nil
	}
	if n == 1 {
		if params.MinClusterSize <= 1 {
			return buildResult(points, map[int]int{0: 0}), nil
		}
		return Result{Noise: []filehash.Hash{points[0].Hash}}, nil
	}
	if params.MinClusterSize > n {
		noise := make([]filehash.Hash, n)
		for i, p := range points {
			noise[i] = p.Hash
		}
		return Result{Noise: noise}, nil
	}

	vectors := make([][]float64, n)
	for i, p := range points {
		raw := p.Vector.Slice()
		v := make([]float64, len(raw))
		for j, f := range raw {
			v[j] = float64(f)
		}
		vectors[i] = v
	}

	if params.UseUMAP {
		reduced, err := reduceUMAP(vectors, params.UMAPDim)
		if err != nil {
			return Result{}, fmt.Errorf("cluster: umap reduction: %w", err)
		}
		vectors = reduced
	}

	dist := pairwiseDistances(vectors)
	core := coreDistances(dist, params.MinSamples)
	mreach := mutualReachability(dist, core)

	edges := primMST(mreach)
	sort.Slice(edges, func(i, j int) bool { return edges[i].dist < edges[j].dist })

	nodes := buildDendrogram(n, edges)
	assignment := condense(n, nodes, params.MinClusterSize)

	return buildResult(points, assignment), nil
}

// buildResult turns a point -> final cluster label assignment (label -1
// means noise) into grouped Clusters with representative/cohesion computed
// in the original embedding space, ordered by descending size then
// lexicographic representative hash.
func buildResult(points []Point, assignment map[int]int) Result {
	groups := make(map[int][]int) // clusterLabel -> point indices
	var noise []filehash.Hash
	for i, p := range points {
		label, ok := assignment[i]
		if !ok || label < 0 {
			noise = append(noise, p.Hash)
			continue
		}
		groups[label] = append(groups[label], i)
	}

	clusters := make([]Cluster, 0, len(groups))
	for _, idxs := range groups {
		members := make([]filehash.Hash, len(idxs))
		vecs := make([]embedding.Vector, len(idxs))
		for i, idx := range idxs {
			members[i] = points[idx].Hash
			vecs[i] = points[idx].Vector
		}

		mean, err := meanVector(vecs)
		var representative filehash.Hash
		if err == nil {
			best := float32(-2)
			for i, v := range vecs {
				sim := v.Similarity(mean)
				if sim > best {
					best = sim
					representative = members[i]
				}
			}
		} else if len(members) > 0 {
			representative = members[0]
		}

		clusters = append(clusters, Cluster{
			Members:        members,
			Representative: representative,
			Cohesion:       cohesion(vecs),
		})
	}

	sort.Slice(clusters, func(i, j int) bool {
		if len(clusters[i].Members) != len(clusters[j].Members) {
			return len(clusters[i].Members) > len(clusters[j].Members)
		}
		return clusters[i].Representative.String() < clusters[j].Representative.String()
	})
	for i := range clusters {
		clusters[i].ID = i
	}

	sort.Slice(noise, func(i, j int) bool { return noise[i].String() < noise[j].String() })

	return Result{Clusters: clusters, Noise: noise}
}

func meanVector(vecs []embedding.Vector) (embedding.Vector, error) {
	if len(vecs) == 0 {
		return embedding.Vector{}, fmt.Errorf("cluster: empty cluster has no mean")
	}
	weights := make([]float32, len(vecs))
	for i := range weights {
		weights[i] = 1.0 / float32(len(vecs))
	}
	return embedding.Blend(vecs, weights)
}

// cohesion is the average pairwise cosine similarity over distinct member
// pairs, clamped into [0, 1].
func cohesion(vecs []embedding.Vector) float64 {
	if len(vecs) < 2 {
		return 1.0
	}
	var sum float64
	var count int
	for i := 0; i < len(vecs); i++ {
		for j := i + 1; j < len(vecs); j++ {
			sim := float64(vecs[i].Similarity(vecs[j]))
			if sim < 0 {
				sim = 0
			}
			sum += sim
			count++
		}
	}
	if count == 0 {
		return 1.0
	}
	avg := sum / float64(count)
	return floats.Round(avg, 6)
}
