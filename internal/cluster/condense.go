package cluster

import "math"

// condense walks the single-linkage dendrogram from its root down to the
// leaves, implementing the documented condensation rule: at each split, a
// branch with fewer than minClusterSize members sheds its points onto the
// still-current cluster rather than becoming a new cluster. A genuine
// two-way split (both branches >= minClusterSize) spawns two new clusters.
//
// Per-point "falls out" are recorded with the lambda (1/distance) at which
// they left their cluster; cluster stability is Σ(λ_fall − λ_birth) over a
// cluster's own members (descendant clusters accrue their own stability
// separately). Clusters are then selected top-down: a cluster is kept
// whenever its own stability is at least the sum of its (recursively
// selected) descendants' stability, in which case its descendants are
// folded back into it.
//
// condense returns a map from original point index to final cluster label
// (absent or -1 meaning noise).
func condense(n int, nodes []dendroNode, minClusterSize int) map[int]int {
	type fall struct {
		cluster int
		lambda  float64
	}

	fallen := make(map[int]fall, n)
	birth := map[int]float64{0: 0}
	stability := map[int]float64{}
	children := map[int][]int{}
	parent := map[int]int{}
	birthNode := map[int]int{}
	nextCluster := 1

	nodeLambda := func(id int) float64 {
		if id < n {
			return math.Inf(1)
		}
		d := nodes[id-n].dist
		if d <= 0 {
			return math.Inf(1)
		}
		return 1.0 / d
	}
	sizeOf := func(id int) int {
		if id < n {
			return 1
		}
		return nodes[id-n].size
	}
	var collectLeaves func(id int, out *[]int)
	collectLeaves = func(id int, out *[]int) {
		if id < n {
			*out = append(*out, id)
			return
		}
		node := nodes[id-n]
		collectLeaves(node.left, out)
		collectLeaves(node.right, out)
	}
	shed := func(id, cluster int, lam float64) {
		var leaves []int
		collectLeaves(id, &leaves)
		for _, p := range leaves {
			fallen[p] = fall{cluster: cluster, lambda: lam}
			b := birth[cluster]
			if !math.IsInf(b, 1) || !math.IsInf(lam, 1) {
				stability[cluster] += lam - b
			}
		}
	}

	var walk func(nodeID, cluster int)
	walk = func(nodeID, cluster int) {
		if nodeID < n {
			fallen[nodeID] = fall{cluster: cluster, lambda: birth[cluster]}
			return
		}
		node := nodes[nodeID-n]
		lam := nodeLambda(nodeID)
		leftBig := sizeOf(node.left) >= minClusterSize
		rightBig := sizeOf(node.right) >= minClusterSize

		switch {
		case leftBig && rightBig:
			leftID := nextCluster
			nextCluster++
			rightID := nextCluster
			nextCluster++
			birth[leftID] = lam
			birth[rightID] = lam
			birthNode[leftID] = node.left
			birthNode[rightID] = node.right
			parent[leftID] = cluster
			parent[rightID] = cluster
			children[cluster] = []int{leftID, rightID}
			walk(node.left, leftID)
			walk(node.right, rightID)
		case leftBig:
			shed(node.right, cluster, lam)
			walk(node.left, cluster)
		case rightBig:
			shed(node.left, cluster, lam)
			walk(node.right, cluster)
		default:
			shed(node.left, cluster, lam)
			shed(node.right, cluster, lam)
		}
	}

	if len(nodes) == 0 {
		// n == 1, handled by caller before reaching here in practice; for
		// safety treat the single point as cluster 0.
		return map[int]int{0: 0}
	}

	root := n + len(nodes) - 1
	birth[0] = nodeLambda(root)
	birthNode[0] = root
	walk(root, 0)

	// Select clusters top-down: a cluster is kept (and its descendants
	// folded into it) when its own stability is at least the sum of its
	// children's effective stability; otherwise its own directly-shed
	// points become noise and each child is decided independently.
	effCache := map[int]float64{}
	var effStability func(c int) float64
	effStability = func(c int) float64 {
		if v, ok := effCache[c]; ok {
			return v
		}
		kids := children[c]
		v := stability[c]
		if len(kids) > 0 {
			var sum float64
			for _, k := range kids {
				sum += effStability(k)
			}
			if sum > v {
				v = sum
			}
		}
		effCache[c] = v
		return v
	}

	labelFor := map[int]int{}
	var assign func(cluster int, foldedInto int, folded bool)
	assign = func(cluster int, foldedInto int, folded bool) {
		if folded {
			labelFor[cluster] = foldedInto
			for _, k := range children[cluster] {
				assign(k, foldedInto, true)
			}
			return
		}
		kids := children[cluster]
		if len(kids) == 0 {
			labelFor[cluster] = cluster
			return
		}
		var childSum float64
		for _, k := range kids {
			childSum += effStability(k)
		}
		if stability[cluster] >= childSum {
			labelFor[cluster] = cluster
			for _, k := range kids {
				assign(k, cluster, true)
			}
		} else {
			labelFor[cluster] = -1
			for _, k := range kids {
				assign(k, -1, false)
			}
		}
	}
	assign(0, -1, false)

	// A root kept as the single cluster retains only points that left it at
	// its densest level; points that fell out of it earlier are noise.
	rootMax := math.Inf(-1)
	if labelFor[0] == 0 {
		for _, f := range fallen {
			if f.cluster == 0 && f.lambda > rootMax {
				rootMax = f.lambda
			}
		}
		for _, k := range children[0] {
			if birth[k] > rootMax {
				rootMax = birth[k]
			}
		}
	}

	out := make(map[int]int, n)
	for p, f := range fallen {
		label, ok := labelFor[f.cluster]
		if !ok {
			label = f.cluster
		}
		if label == 0 && f.cluster == 0 && labelFor[0] == 0 && f.lambda < rootMax {
			label = -1
		}
		out[p] = label
	}
	return out
}
