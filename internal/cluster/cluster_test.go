package cluster

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Hyphonical/Scout/internal/embedding"
	"github.com/Hyphonical/Scout/internal/filehash"
)

func unitVector(t *testing.T, lead int, dim int) embedding.Vector {
	t.Helper()
	raw := make([]float32, embedding.Dim)
	raw[lead%embedding.Dim] = 1
	v, err := embedding.New(raw)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestRunIdenticalPointsOneCluster(t *testing.T) {
	vec := unitVector(t, 0, embedding.Dim)
	points := make([]Point, 6)
	for i := range points {
		points[i] = Point{Hash: filehash.Hash(i + 1), Vector: vec}
	}

	result, err := Run(points, Params{MinClusterSize: len(points)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Noise) != 0 {
		t.Errorf("expected no noise, got %d", len(result.Noise))
	}
	if len(result.Clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(result.Clusters))
	}
	if len(result.Clusters[0].Members) != len(points) {
		t.Errorf("expected cluster of %d members, got %d", len(points), len(result.Clusters[0].Members))
	}
}

func TestRunMinClusterSizeExceedsInputIsAllNoise(t *testing.T) {
	vec := unitVector(t, 0, embedding.Dim)
	points := []Point{
		{Hash: filehash.Hash(1), Vector: vec},
		{Hash: filehash.Hash(2), Vector: vec},
	}
	result, err := Run(points, Params{MinClusterSize: 10})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Clusters) != 0 {
		t.Errorf("expected no clusters, got %d", len(result.Clusters))
	}
	if len(result.Noise) != 2 {
		t.Errorf("expected 2 noise points, got %d", len(result.Noise))
	}
}

func TestRunOutlierAmongTightGroupBecomesNoise(t *testing.T) {
	tight := unitVector(t, 0, embedding.Dim)
	var points []Point
	for i := 0; i < 6; i++ {
		points = append(points, Point{Hash: filehash.Hash(i + 1), Vector: tight})
	}
	outlier := unitVector(t, 500, embedding.Dim)
	points = append(points, Point{Hash: filehash.Hash(999), Vector: outlier})

	result, err := Run(points, Params{MinClusterSize: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d: %+v", len(result.Clusters), result.Clusters)
	}
	if len(result.Clusters[0].Members) != 6 {
		t.Errorf("expected 6 members in the tight cluster, got %d", len(result.Clusters[0].Members))
	}
	if len(result.Noise) != 1 || result.Noise[0] != filehash.Hash(999) {
		t.Errorf("expected the outlier as the sole noise point, got %+v", result.Noise)
	}
}

func TestRunEmptyInput(t *testing.T) {
	result, err := Run(nil, Params{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Clusters) != 0 || len(result.Noise) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestCacheMatchesAndSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	inputs := []filehash.Hash{1, 2, 3}
	params := Params{MinClusterSize: 3, MinSamples: 3}
	result := Result{
		Clusters: []Cluster{{ID: 0, Members: inputs, Representative: filehash.Hash(1), Cohesion: 0.9}},
	}
	cache := ToCache(result, params, inputs, time.Now().UTC())

	if !cache.Matches(params, inputs) {
		t.Error("expected cache to match identical parameters and inputs")
	}
	if cache.Matches(params, []filehash.Hash{1, 2}) {
		t.Error("expected cache to be invalidated when the input set shrinks")
	}
	if cache.Matches(Params{MinClusterSize: 5, MinSamples: 5}, inputs) {
		t.Error("expected cache to be invalidated when parameters change")
	}

	if err := SaveCache(dir, cache); err != nil {
		t.Fatalf("SaveCache: %v", err)
	}
	loaded, ok, err := LoadCache(dir)
	if err != nil {
		t.Fatalf("LoadCache: %v", err)
	}
	if !ok {
		t.Fatal("expected cache to exist")
	}
	if loaded.MinClusterSize != cache.MinClusterSize || len(loaded.Clusters) != len(cache.Clusters) {
		t.Errorf("round-tripped cache mismatch: %+v vs %+v", loaded, cache)
	}

	if _, err := os.Stat(filepath.Join(dir, ".scout", CacheFileName)); err != nil {
		t.Errorf("expected cache file on disk: %v", err)
	}
}

func TestLoadCacheMissingReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := LoadCache(dir)
	if err != nil {
		t.Fatalf("LoadCache: %v", err)
	}
	if ok {
		t.Error("expected no cache present")
	}
}
