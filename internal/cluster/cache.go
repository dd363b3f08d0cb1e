package cluster

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Hyphonical/Scout/internal/filehash"
)

// CacheFileName is the directory-scoped cluster cache, sibling to sidecar
// files under .scout.
const CacheFileName = "clusters.msgpack"

// CachedCluster is one cluster entry persisted to disk.
type CachedCluster struct {
	ID                int      `msgpack:"id"`
	MemberHashes      []string `msgpack:"member_hashes"`
	RepresentativeHash string  `msgpack:"representative_hash"`
	Cohesion          float64  `msgpack:"cohesion"`
}

// Cache is the directory-scoped record of a clustering run, keyed by its
// algorithm parameters and the set of input hashes.
type Cache struct {
	MinClusterSize int             `msgpack:"min_cluster_size"`
	MinSamples     int             `msgpack:"min_samples"`
	UsedUMAP       bool            `msgpack:"used_umap"`
	TotalInputs    int             `msgpack:"total_inputs"`
	InputHashes    []string        `msgpack:"input_hashes"`
	Clusters       []CachedCluster `msgpack:"clusters"`
	Noise          []string        `msgpack:"noise"`
	GeneratedAt    time.Time       `msgpack:"generated_at"`
}

// ToCache converts a Result plus the parameters and input set used to
// produce it into its persisted form.
func ToCache(result Result, params Params, inputs []filehash.Hash, generatedAt time.Time) Cache {
	params = params.normalized()
	hashes := make([]string, len(inputs))
	for i, h := range inputs {
		hashes[i] = h.String()
	}
	sort.Strings(hashes)

	clusters := make([]CachedCluster, len(result.Clusters))
	for i, c := range result.Clusters {
		members := make([]string, len(c.Members))
		for j, m := range c.Members {
			members[j] = m.String()
		}
		clusters[i] = CachedCluster{
			ID:                 c.ID,
			MemberHashes:       members,
			RepresentativeHash: c.Representative.String(),
			Cohesion:           c.Cohesion,
		}
	}

	noise := make([]string, len(result.Noise))
	for i, h := range result.Noise {
		noise[i] = h.String()
	}

	return Cache{
		MinClusterSize: params.MinClusterSize,
		MinSamples:     params.MinSamples,
		UsedUMAP:       params.UseUMAP,
		TotalInputs:    len(inputs),
		InputHashes:    hashes,
		Clusters:       clusters,
		Noise:          noise,
		GeneratedAt:    generatedAt,
	}
}

// Matches reports whether this cache is still valid for params run over
// inputs: same algorithm parameters and the same set of input hashes.
func (c Cache) Matches(params Params, inputs []filehash.Hash) bool {
	params = params.normalized()
	if c.MinClusterSize != params.MinClusterSize || c.MinSamples != params.MinSamples || c.UsedUMAP != params.UseUMAP {
		return false
	}
	if len(inputs) != len(c.InputHashes) {
		return false
	}
	hashes := make([]string, len(inputs))
	for i, h := range inputs {
		hashes[i] = h.String()
	}
	sort.Strings(hashes)
	for i, h := range hashes {
		if h != c.InputHashes[i] {
			return false
		}
	}
	return true
}

func cachePath(dir string) string {
	return filepath.Join(dir, ".scout", CacheFileName)
}

// LoadCache reads the cluster cache for dir, if present.
func LoadCache(dir string) (Cache, bool, error) {
	data, err := os.ReadFile(cachePath(dir))
	if os.IsNotExist(err) {
		return Cache{}, false, nil
	}
	if err != nil {
		return Cache{}, false, fmt.Errorf("cluster: read cache: %w", err)
	}
	var c Cache
	if err := msgpack.Unmarshal(data, &c); err != nil {
		return Cache{}, false, fmt.Errorf("cluster: decode cache: %w", err)
	}
	return c, true, nil
}

// SaveCache writes the cluster cache for dir atomically (temp file, fsync,
// rename), matching the sidecar store's durability convention.
func SaveCache(dir string, c Cache) error {
	scoutDir := filepath.Join(dir, ".scout")
	if err := os.MkdirAll(scoutDir, 0o755); err != nil {
		return fmt.Errorf("cluster: mkdir %s: %w", scoutDir, err)
	}

	data, err := msgpack.Marshal(c)
	if err != nil {
		return fmt.Errorf("cluster: marshal cache: %w", err)
	}

	target := cachePath(dir)
	tmp, err := os.CreateTemp(scoutDir, ".tmp-clusters-*")
	if err != nil {
		return fmt.Errorf("cluster: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("cluster: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("cluster: fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cluster: close temp: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("cluster: rename into place: %w", err)
	}
	return nil
}
