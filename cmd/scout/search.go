package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Hyphonical/Scout/internal/media"
	"github.com/Hyphonical/Scout/internal/retrieval"
)

// searchExportQuery mirrors the JSON export schema's "query" object.
type searchExportQuery struct {
	Text     string  `json:"text,omitempty"`
	Image    string  `json:"image,omitempty"`
	Weight   float32 `json:"weight,omitempty"`
	Negative string  `json:"negative,omitempty"`
}

type searchExportResult struct {
	Path             string   `json:"path"`
	Score            float32  `json:"score"`
	ContentHash      string   `json:"content_hash"`
	Kind             string   `json:"kind"`
	TimestampSeconds *float64 `json:"timestamp_seconds,omitempty"`
}

type searchExport struct {
	Query   searchExportQuery    `json:"query"`
	Results []searchExportResult `json:"results"`
}

func newSearchCmd() *cobra.Command {
	var (
		imagePath     string
		weight        float32
		negative      string
		dir           string
		limit         int
		minScore      float32
		openTop       bool
		includeRef    bool
		excludeVideos bool
		pathsOnly     bool
		exportPath    string
		format        string
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search indexed media by text, image, and negative prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			text := strings.Join(args, " ")
			if text == "" && imagePath == "" {
				return fmt.Errorf("scout: search requires a query or --image")
			}
			if imagePath != "" && (weight < 0 || weight > 1) {
				return fmt.Errorf("scout: --weight must be in [0,1]")
			}

			enc := newEncoder(cfg)
			defer enc.Close()
			engine := retrieval.New(enc)

			q := retrieval.Query{
				Text:          text,
				ImagePath:     imagePath,
				TextWeight:    weight,
				Negative:      negative,
				Dir:           dir,
				Recursive:     true,
				ExcludeVideos: excludeVideos || cfg.DisableVideo,
				IncludeRef:    includeRef,
				MinScore:      minScore,
				Limit:         limit,
			}
			if q.TextWeight == 0 && imagePath != "" && text != "" {
				q.TextWeight = 0.5
			}

			results, err := engine.Search(q)
			if err != nil {
				return fmt.Errorf("scout: %w", err)
			}

			if openTop && len(results) > 0 {
				openPath(results[0].Path)
			}

			if exportPath != "" {
				return writeSearchExport(exportPath, q, results)
			}
			printSearchResults(os.Stdout, q, results, format, pathsOnly)
			return nil
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "positive image query path")
	cmd.Flags().Float32Var(&weight, "weight", 0, "text weight in [0,1] when combining --image with a text query (default 0.5)")
	cmd.Flags().StringVar(&negative, "not", "", "negative text prompt to suppress")
	cmd.Flags().StringVar(&dir, "dir", ".", "directory to search")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results")
	cmd.Flags().Float32Var(&minScore, "score", 0, "minimum score threshold")
	cmd.Flags().BoolVar(&openTop, "open", false, "open the top result with the system file opener")
	cmd.Flags().BoolVar(&includeRef, "include-ref", false, "include the --image reference file itself in results")
	cmd.Flags().BoolVar(&excludeVideos, "exclude-videos", false, "exclude video results")
	cmd.Flags().BoolVar(&pathsOnly, "paths", false, "print only matched paths, one per line")
	cmd.Flags().StringVar(&exportPath, "export", "", "write JSON results to PATH, or - for stdout")
	cmd.Flags().StringVar(&format, "format", "pretty", "output format: pretty|json|plain")

	return cmd
}

func printSearchResults(w io.Writer, q retrieval.Query, results []retrieval.Result, format string, pathsOnly bool) {
	if pathsOnly {
		for _, r := range results {
			fmt.Fprintln(w, r.Path)
		}
		return
	}

	switch format {
	case "json":
		exp := toSearchExport(q, results)
		data, _ := json.MarshalIndent(exp, "", "  ")
		fmt.Fprintln(w, string(data))
	case "plain":
		for _, r := range results {
			fmt.Fprintf(w, "%.3f\t%s\n", r.Score, r.Path)
		}
	default:
		if len(results) == 0 {
			fmt.Fprintln(w, "no results")
			return
		}
		for i, r := range results {
			stale := ""
			if r.Stale {
				stale = "  (stale)"
			}
			if r.Kind == media.Video {
				fmt.Fprintf(w, "%2d  %.3f  %s  [%s @ %.1fs]%s\n", i+1, r.Score, r.Path, r.Kind, r.TimestampSeconds, stale)
			} else {
				fmt.Fprintf(w, "%2d  %.3f  %s  [%s]%s\n", i+1, r.Score, r.Path, r.Kind, stale)
			}
		}
	}
}

func toSearchExport(q retrieval.Query, results []retrieval.Result) searchExport {
	exp := searchExport{
		Query: searchExportQuery{
			Text:     q.Text,
			Image:    q.ImagePath,
			Weight:   q.TextWeight,
			Negative: q.Negative,
		},
		Results: make([]searchExportResult, len(results)),
	}
	for i, r := range results {
		er := searchExportResult{
			Path:        r.Path,
			Score:       r.Score,
			ContentHash: r.ContentHash.String(),
			Kind:        r.Kind.String(),
		}
		if r.Kind == media.Video {
			ts := r.TimestampSeconds
			er.TimestampSeconds = &ts
		}
		exp.Results[i] = er
	}
	return exp
}

func writeSearchExport(path string, q retrieval.Query, results []retrieval.Result) error {
	exp := toSearchExport(q, results)
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return fmt.Errorf("scout: marshal export: %w", err)
	}
	if path == "-" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("scout: write export %s: %w", path, err)
	}
	return nil
}

// openPath opens path with the platform's default file opener, the way
// cmd/sift's openInEditor shells out to an editor for a search hit.
func openPath(path string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "scout: open %s: %v\n", path, err)
	}
}
