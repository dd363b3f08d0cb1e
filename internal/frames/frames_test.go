package frames

import (
	"math"
	"testing"
)

func TestUniformTimestampsSpacing(t *testing.T) {
	ts := uniformTimestamps(10.0, 5)
	if len(ts) != 5 {
		t.Fatalf("got %d timestamps, want 5", len(ts))
	}
	want := []float64{1.0, 3.0, 5.0, 7.0, 9.0}
	for i, w := range want {
		if math.Abs(ts[i]-w) > 1e-9 {
			t.Errorf("ts[%d] = %.4f, want %.4f", i, ts[i], w)
		}
	}
}

func TestUniformTimestampsWithinDuration(t *testing.T) {
	duration := 7.3
	ts := uniformTimestamps(duration, 10)
	for i, v := range ts {
		if v < 0 || v > duration {
			t.Errorf("ts[%d] = %.4f out of [0, %.4f]", i, v, duration)
		}
		if i > 0 && v <= ts[i-1] {
			t.Errorf("timestamps not strictly increasing at index %d: %v", i, ts)
		}
	}
}

func TestUniformTimestampsZeroK(t *testing.T) {
	if ts := uniformTimestamps(10.0, 0); ts != nil {
		t.Errorf("expected nil for k=0, got %v", ts)
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.MaxFrames != 10 {
		t.Errorf("MaxFrames = %d, want 10", opts.MaxFrames)
	}
	if opts.Strategy != Uniform {
		t.Errorf("Strategy = %v, want Uniform", opts.Strategy)
	}
	if opts.SceneThreshold != 0.3 {
		t.Errorf("SceneThreshold = %.2f, want 0.3", opts.SceneThreshold)
	}
}
