package cluster

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// umapK is the default neighbor count used to compute local connectivity
// and bandwidth, per the documented formulation.
const umapK = 15

// umapSpread and umapMinDist parameterize the low-dimensional similarity
// kernel q_ij = 1 / (1 + a*||y_i-y_j||^(2b)).
const (
	umapSpread  = 1.0
	umapMinDist = 0.1
)

const (
	umapEpochs       = 200
	umapLearningRate = 1.0
	umapNegSamples   = 5
)

// reduceUMAP implements a compact version of the UMAP formulation: k-NN
// fuzzy simplicial sets, symmetrization, and a low-dimensional embedding
// fit by gradient descent against the fuzzy membership graph. The initial
// low-dimensional layout is a deterministic random projection (not a true
// spectral layout), traded for determinism and simplicity.
func reduceUMAP(vectors [][]float64, targetDim int) ([][]float64, error) {
	n := len(vectors)
	if n == 0 {
		return vectors, nil
	}
	if targetDim >= len(vectors[0]) {
		return vectors, nil
	}

	dist := pairwiseDistances(vectors)
	a, b := fitAB(umapSpread, umapMinDist)

	weights := fuzzyMembership(dist, umapK)

	embedding := randomProjection(vectors, targetDim)
	optimizeLayout(embedding, weights, a, b, umapEpochs, umapLearningRate, umapNegSamples)

	return embedding, nil
}

// fuzzyMembership computes symmetric fuzzy-set membership strengths
// p_ij = p_{j|i} + p_{i|j} - p_{j|i}*p_{i|j} from each point's k nearest
// neighbors, local connectivity rho_i, and bandwidth sigma_i solved so
// that Σ_j exp(-max(0, d(i,j)-rho_i)/sigma_i) = log2(k).
func fuzzyMembership(dist [][]float64, k int) [][]float64 {
	n := len(dist)
	if k > n-1 {
		k = n - 1
	}
	p := make([][]float64, n)
	for i := range p {
		p[i] = make([]float64, n)
	}

	target := math.Log2(float64(k))
	if target <= 0 {
		target = 1
	}

	for i := 0; i < n; i++ {
		neighbors := nearestIndices(dist[i], i, k)
		if len(neighbors) == 0 {
			continue
		}
		rho := dist[i][neighbors[0]]
		sigma := solveSigma(dist[i], neighbors, rho, target)
		for _, j := range neighbors {
			d := dist[i][j] - rho
			if d < 0 {
				d = 0
			}
			p[i][j] = math.Exp(-d / sigma)
		}
	}

	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			pij := p[i][j]
			pji := p[j][i]
			out[i][j] = pij + pji - pij*pji
		}
	}
	return out
}

func nearestIndices(row []float64, self, k int) []int {
	type pair struct {
		idx int
		d   float64
	}
	pairs := make([]pair, 0, len(row)-1)
	for j, d := range row {
		if j == self {
			continue
		}
		pairs = append(pairs, pair{j, d})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].d < pairs[j].d })
	if k > len(pairs) {
		k = len(pairs)
	}
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = pairs[i].idx
	}
	return out
}

// solveSigma binary-searches for sigma satisfying the target sum, matching
// the reference implementation's per-point bandwidth search.
func solveSigma(row []float64, neighbors []int, rho, target float64) float64 {
	lo, hi := 1e-6, 1e6
	sigma := 1.0
	for iter := 0; iter < 64; iter++ {
		sigma = (lo + hi) / 2
		var sum float64
		for _, j := range neighbors {
			d := row[j] - rho
			if d < 0 {
				d = 0
			}
			sum += math.Exp(-d / sigma)
		}
		if sum > target {
			hi = sigma
		} else {
			lo = sigma
		}
	}
	return sigma
}

// fitAB derives the a, b constants of the low-dimensional similarity
// kernel from spread and min_dist by fitting q(d) = 1/(1+a*d^(2b)) against
// the reference piecewise curve (1 for d<=min_dist, exp(-(d-min_dist)/spread)
// beyond it) via least squares on a log-log sample, as the reference
// implementation does.
func fitAB(spread, minDist float64) (float64, float64) {
	const samples = 300
	xs := make([]float64, 0, samples)
	ys := make([]float64, 0, samples)
	for i := 0; i < samples; i++ {
		d := float64(i) / float64(samples) * spread * 3
		var target float64
		if d <= minDist {
			target = 1
		} else {
			target = math.Exp(-(d - minDist) / spread)
		}
		if target <= 0 || target >= 1 || d == 0 {
			continue
		}
		xs = append(xs, math.Log(d))
		ys = append(ys, math.Log(1/target-1))
	}
	if len(xs) < 2 {
		return 1.577, 0.895 // UMAP's own published defaults for spread=1, min_dist=0.1
	}
	n := float64(len(xs))
	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}
	bSlope := (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)
	logA := (sumY - bSlope*sumX) / n
	return math.Exp(logA), bSlope / 2
}

// randomProjection produces a deterministic initial low-dimensional layout
// via a fixed pseudo-random projection matrix (seeded with a fixed constant, not
// the runtime clock, so repeated runs over the same input are identical).
func randomProjection(vectors [][]float64, targetDim int) [][]float64 {
	n := len(vectors)
	d := len(vectors[0])
	proj := mat.NewDense(d, targetDim, nil)
	state := uint64(0x9E3779B97F4A7C15)
	next := func() float64 {
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		return (float64(state%1000000) / 1000000.0) - 0.5
	}
	for i := 0; i < d; i++ {
		for j := 0; j < targetDim; j++ {
			proj.Set(i, j, next())
		}
	}

	out := make([][]float64, n)
	for i, v := range vectors {
		row := mat.NewDense(1, d, v)
		var result mat.Dense
		result.Mul(row, proj)
		out[i] = mat.Row(nil, 0, &result)
	}
	return out
}

// optimizeLayout runs a simplified SGD pass with negative sampling,
// minimizing cross-entropy between the fuzzy graph weights and the
// low-dimensional similarity kernel q_ij = 1/(1+a*||y_i-y_j||^(2b)).
func optimizeLayout(embedding [][]float64, weights [][]float64, a, b float64, epochs int, lr float64, negSamples int) {
	n := len(embedding)
	if n == 0 {
		return
	}
	state := uint64(0xD1B54A32D192ED03)
	nextInt := func(bound int) int {
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		return int(state % uint64(bound))
	}

	for epoch := 0; epoch < epochs; epoch++ {
		rate := lr * (1 - float64(epoch)/float64(epochs))
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j || weights[i][j] <= 0 {
					continue
				}
				attractiveStep(embedding, i, j, a, b, rate)
				for s := 0; s < negSamples; s++ {
					k := nextInt(n)
					if k == i {
						continue
					}
					repulsiveStep(embedding, i, k, a, b, rate)
				}
			}
		}
	}
}

func sqDist(i, j int, emb [][]float64) float64 {
	var sum float64
	for d := range emb[i] {
		diff := emb[i][d] - emb[j][d]
		sum += diff * diff
	}
	return sum
}

func attractiveStep(emb [][]float64, i, j int, a, b, rate float64) {
	distSq := sqDist(i, j, emb)
	if distSq <= 0 {
		return
	}
	grad := (-2 * a * b * math.Pow(distSq, b-1)) / (a*math.Pow(distSq, b) + 1)
	applyGradient(emb, i, j, grad, rate, true)
}

func repulsiveStep(emb [][]float64, i, k int, a, b, rate float64) {
	distSq := sqDist(i, k, emb)
	if distSq <= 0 {
		return
	}
	grad := 2 * b / ((0.001 + distSq) * (a*math.Pow(distSq, b) + 1))
	applyGradient(emb, i, k, grad, rate, false)
}

func applyGradient(emb [][]float64, i, j int, grad, rate float64, attractive bool) {
	if grad > 4 {
		grad = 4
	} else if grad < -4 {
		grad = -4
	}
	sign := 1.0
	if !attractive {
		sign = -1.0
	}
	for d := range emb[i] {
		diff := emb[i][d] - emb[j][d]
		delta := sign * grad * diff * rate
		emb[i][d] += delta
		emb[j][d] -= delta
	}
}
