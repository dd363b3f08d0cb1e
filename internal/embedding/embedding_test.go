package embedding_test

import (
	"math"
	"testing"

	"github.com/Hyphonical/Scout/internal/embedding"
)

func raw(fill func(i int) float32) []float32 {
	v := make([]float32, embedding.Dim)
	for i := range v {
		v[i] = fill(i)
	}
	return v
}

func TestNewNormalizes(t *testing.T) {
	v, err := embedding.New(raw(func(i int) float32 {
		if i == 0 {
			return 3
		}
		if i == 1 {
			return 4
		}
		return 0
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if math.Abs(sumSq-1.0) > 1e-4 {
		t.Errorf("expected unit norm, got sumSq=%.6f", sumSq)
	}
	if math.Abs(float64(v[0])-0.6) > 1e-4 || math.Abs(float64(v[1])-0.8) > 1e-4 {
		t.Errorf("expected [0.6, 0.8, ...], got [%.4f, %.4f, ...]", v[0], v[1])
	}
}

func TestNewWrongLength(t *testing.T) {
	if _, err := embedding.New(make([]float32, embedding.Dim-1)); err == nil {
		t.Error("expected error for wrong-length input")
	}
}

func TestNewZeroVector(t *testing.T) {
	if _, err := embedding.New(raw(func(i int) float32 { return 0 })); err == nil {
		t.Error("expected error for zero vector")
	}
}

func TestSimilaritySelf(t *testing.T) {
	v, _ := embedding.New(raw(func(i int) float32 {
		if i == 0 {
			return 1
		}
		return 0
	}))
	if s := v.Similarity(v); math.Abs(float64(s)-1.0) > 1e-5 {
		t.Errorf("self-similarity = %.6f, want ~1.0", s)
	}
}

func TestSimilarityOrthogonal(t *testing.T) {
	a, _ := embedding.New(raw(func(i int) float32 {
		if i == 0 {
			return 1
		}
		return 0
	}))
	b, _ := embedding.New(raw(func(i int) float32 {
		if i == 1 {
			return 1
		}
		return 0
	}))
	if s := a.Similarity(b); math.Abs(float64(s)) > 1e-5 {
		t.Errorf("orthogonal similarity = %.6f, want ~0", s)
	}
}

func TestBlendEqualWeights(t *testing.T) {
	a, _ := embedding.New(raw(func(i int) float32 {
		if i == 0 {
			return 1
		}
		return 0
	}))
	b, _ := embedding.New(raw(func(i int) float32 {
		if i == 1 {
			return 1
		}
		return 0
	}))
	blended, err := embedding.Blend([]embedding.Vector{a, b}, []float32{0.5, 0.5})
	if err != nil {
		t.Fatalf("Blend: %v", err)
	}
	want := float32(1.0 / math.Sqrt2)
	if math.Abs(float64(blended[0]-want)) > 1e-4 || math.Abs(float64(blended[1]-want)) > 1e-4 {
		t.Errorf("blend = [%.4f, %.4f, ...], want [%.4f, %.4f, ...]", blended[0], blended[1], want, want)
	}
}

func TestBlendMismatchedLengths(t *testing.T) {
	a, _ := embedding.New(raw(func(i int) float32 { return 1 }))
	if _, err := embedding.Blend([]embedding.Vector{a}, []float32{0.5, 0.5}); err == nil {
		t.Error("expected error for mismatched vectors/weights lengths")
	}
}

func TestBlendOpposingCancel(t *testing.T) {
	a, _ := embedding.New(raw(func(i int) float32 {
		if i == 0 {
			return 1
		}
		return 0
	}))
	negA := a
	for i := range negA {
		negA[i] = -negA[i]
	}
	if _, err := embedding.Blend([]embedding.Vector{a, negA}, []float32{0.5, 0.5}); err == nil {
		t.Error("expected error when blend weights cancel to the zero vector")
	}
}
