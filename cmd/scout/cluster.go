package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Hyphonical/Scout/internal/cluster"
	"github.com/Hyphonical/Scout/internal/embedding"
	"github.com/Hyphonical/Scout/internal/filehash"
	"github.com/Hyphonical/Scout/internal/sidecar"
)

type clusterExportParams struct {
	MinClusterSize int  `json:"min_cluster_size"`
	MinSamples     int  `json:"min_samples"`
	UsedUMAP       bool `json:"used_umap"`
}

type clusterExportCluster struct {
	ID             int      `json:"id"`
	Size           int      `json:"size"`
	Cohesion       float64  `json:"cohesion"`
	Representative string   `json:"representative"`
	Members        []string `json:"members"`
}

type clusterExport struct {
	Parameters  clusterExportParams    `json:"parameters"`
	TotalInputs int                    `json:"total_inputs"`
	Clusters    []clusterExportCluster `json:"clusters"`
	Noise       []string               `json:"noise"`
}

func newClusterCmd() *cobra.Command {
	var (
		dir            string
		force          bool
		minClusterSize int
		minSamples     int
		useUMAP        bool
		exportPath     string
	)

	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Group indexed media into visually similar clusters",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := cluster.Params{
				MinClusterSize: minClusterSize,
				MinSamples:     minSamples,
				UseUMAP:        useUMAP,
			}

			points, paths, err := loadClusterPoints(dir)
			if err != nil {
				return fmt.Errorf("scout: %w", err)
			}
			inputs := make([]filehash.Hash, len(points))
			for i, p := range points {
				inputs[i] = p.Hash
			}

			var result cluster.Result
			if !force {
				if cached, ok, err := cluster.LoadCache(dir); err == nil && ok && cached.Matches(params, inputs) {
					result = fromCache(cached)
					return printClusterResult(result, params, paths, exportPath)
				}
			}

			result, err = cluster.Run(points, params)
			if err != nil {
				return fmt.Errorf("scout: cluster: %w", err)
			}
			cache := cluster.ToCache(result, params, inputs, time.Now().UTC())
			if err := cluster.SaveCache(dir, cache); err != nil {
				fmt.Fprintf(os.Stderr, "scout: save cluster cache: %v\n", err)
			}

			return printClusterResult(result, params, paths, exportPath)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "directory whose indexed media to cluster")
	cmd.Flags().BoolVar(&force, "force", false, "ignore the cluster cache and recompute")
	cmd.Flags().IntVar(&minClusterSize, "min-cluster-size", 0, "HDBSCAN min_cluster_size (0 = default 5)")
	cmd.Flags().IntVar(&minSamples, "min-samples", 0, "HDBSCAN min_samples (0 = min-cluster-size)")
	cmd.Flags().BoolVar(&useUMAP, "use-umap", false, "reduce dimensionality with UMAP before clustering")
	cmd.Flags().StringVar(&exportPath, "export", "", "write JSON cluster results to PATH, or - for stdout")

	return cmd
}

// loadClusterPoints enumerates every sidecar under dir and reduces each to
// one embedding point: an image's own embedding, or a video's mean frame
// embedding.
func loadClusterPoints(dir string) ([]cluster.Point, map[filehash.Hash]string, error) {
	entries, err := sidecar.Enumerate(dir, true)
	if err != nil {
		return nil, nil, fmt.Errorf("enumerate sidecars: %w", err)
	}

	var points []cluster.Point
	paths := make(map[filehash.Hash]string, len(entries))
	for _, entry := range entries {
		sc, err := sidecar.Load(entry.SidecarPath)
		if err != nil {
			continue
		}

		var vec embedding.Vector
		switch v := sc.(type) {
		case *sidecar.Image:
			vec = v.Embedding
			paths[v.Hash()] = filepath.Join(entry.MediaDir, v.OriginalFilename)
		case *sidecar.Video:
			vec, err = v.MeanEmbedding()
			if err != nil {
				continue
			}
			paths[v.Hash()] = filepath.Join(entry.MediaDir, v.OriginalFilename)
		default:
			continue
		}
		points = append(points, cluster.Point{Hash: sc.Hash(), Vector: vec})
	}
	return points, paths, nil
}

func fromCache(c cluster.Cache) cluster.Result {
	result := cluster.Result{Clusters: make([]cluster.Cluster, len(c.Clusters))}
	for i, cc := range c.Clusters {
		members := make([]filehash.Hash, len(cc.MemberHashes))
		for j, m := range cc.MemberHashes {
			h, _ := filehash.Parse(m)
			members[j] = h
		}
		rep, _ := filehash.Parse(cc.RepresentativeHash)
		result.Clusters[i] = cluster.Cluster{
			ID:             cc.ID,
			Members:        members,
			Representative: rep,
			Cohesion:       cc.Cohesion,
		}
	}
	result.Noise = make([]filehash.Hash, len(c.Noise))
	for i, n := range c.Noise {
		h, _ := filehash.Parse(n)
		result.Noise[i] = h
	}
	return result
}

func printClusterResult(result cluster.Result, params cluster.Params, paths map[filehash.Hash]string, exportPath string) error {
	pathOf := func(h filehash.Hash) string {
		if p, ok := paths[h]; ok {
			return p
		}
		return h.String()
	}

	if exportPath != "" {
		exp := clusterExport{
			Parameters: clusterExportParams{
				MinClusterSize: params.MinClusterSize,
				MinSamples:     params.MinSamples,
				UsedUMAP:       params.UseUMAP,
			},
			TotalInputs: len(paths),
			Clusters:    make([]clusterExportCluster, len(result.Clusters)),
			Noise:       make([]string, len(result.Noise)),
		}
		for i, c := range result.Clusters {
			members := make([]string, len(c.Members))
			for j, m := range c.Members {
				members[j] = pathOf(m)
			}
			exp.Clusters[i] = clusterExportCluster{
				ID:             c.ID,
				Size:           len(c.Members),
				Cohesion:       c.Cohesion,
				Representative: pathOf(c.Representative),
				Members:        members,
			}
		}
		for i, n := range result.Noise {
			exp.Noise[i] = pathOf(n)
		}
		data, err := json.MarshalIndent(exp, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal cluster export: %w", err)
		}
		if exportPath == "-" {
			fmt.Println(string(data))
			return nil
		}
		return os.WriteFile(exportPath, append(data, '\n'), 0o644)
	}

	for _, c := range result.Clusters {
		fmt.Printf("cluster %d  (%d files, cohesion %.2f)  representative: %s\n",
			c.ID, len(c.Members), c.Cohesion, pathOf(c.Representative))
		for _, m := range c.Members {
			fmt.Printf("    %s\n", pathOf(m))
		}
	}
	if len(result.Noise) > 0 {
		fmt.Printf("noise (%d files):\n", len(result.Noise))
		for _, n := range result.Noise {
			fmt.Printf("    %s\n", pathOf(n))
		}
	}
	return nil
}
