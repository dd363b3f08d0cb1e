package encoder

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/Hyphonical/Scout/internal/embedding"
)

func TestPreprocessIntoShapeAndRange(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{128, 64, 200, 255})
		}
	}

	dst := make([]float32, 3*imageSize*imageSize)
	preprocessInto(dst, img)

	plane := imageSize * imageSize
	// A uniformly colored source image should preprocess to a (near)
	// uniform plane per channel after resize.
	first := dst[0]
	for i := 0; i < plane; i++ {
		if math.Abs(float64(dst[i]-first)) > 1e-3 {
			t.Fatalf("expected uniform R channel, got divergence at %d: %.4f vs %.4f", i, dst[i], first)
		}
	}
	// Normalized value should be finite and within a sane band for any
	// valid [0,1] input under ImageNet mean/std.
	if first < -3 || first > 3 {
		t.Errorf("normalized channel value out of expected band: %.4f", first)
	}
}

func TestToEmbeddingsDimensionMismatch(t *testing.T) {
	if _, err := toEmbeddings(make([]float32, 10), 5); err == nil {
		t.Error("expected error when output dim does not match embedding.Dim")
	}
}

func TestToEmbeddingsProducesUnitVectors(t *testing.T) {
	flat := make([]float32, embedding.Dim*2)
	flat[0] = 1
	flat[embedding.Dim] = 2
	vecs, err := toEmbeddings(flat, embedding.Dim)
	if err != nil {
		t.Fatalf("toEmbeddings: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vecs))
	}
	for i, v := range vecs {
		var sumSq float64
		for _, x := range v {
			sumSq += float64(x) * float64(x)
		}
		if math.Abs(sumSq-1.0) > 1e-4 {
			t.Errorf("vector %d not unit norm: sumSq=%.6f", i, sumSq)
		}
	}
}
