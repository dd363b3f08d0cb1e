package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Hyphonical/Scout/internal/config"
	"github.com/Hyphonical/Scout/internal/frames"
	"github.com/Hyphonical/Scout/internal/scanner"
	"github.com/Hyphonical/Scout/internal/scouterr"
)

func newScanCmd() *cobra.Command {
	var (
		dir            string
		recursive      bool
		force          bool
		threads        int
		excludeVideos  bool
		minResolution  int
		maxSizeMB      int64
		minSizeKB      int64
		exclude        string
		maxFrames      int
		sceneThreshold float64
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Walk a directory and write sidecar embeddings for new or changed media",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			opts := scanner.Options{
				Recursive:       recursive,
				Force:           force,
				ExcludeVideos:   excludeVideos || cfg.DisableVideo,
				MinResolutionPx: minResolution,
				MaxSizeBytes:    maxSizeMB * 1024 * 1024,
				MinSizeBytes:    minSizeKB * 1024,
			}
			if exclude != "" {
				opts.ExcludePatterns = strings.Split(exclude, ",")
			}

			frameOpts := frames.DefaultOptions()
			if maxFrames > 0 {
				frameOpts.MaxFrames = maxFrames
			}
			if sceneThreshold > 0 {
				frameOpts.Strategy = frames.SceneDetection
				frameOpts.SceneThreshold = sceneThreshold
			}

			workers := threads
			if workers <= 0 {
				workers = cfg.Threads
			}
			if workers <= 0 {
				workers = runtime.NumCPU()
				if workers > 4 {
					workers = 4
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s := scanner.New(dir, opts)
			err = withHardExit(ctx, func() error {
				return runScan(ctx, s, cfg, frameOpts, workers, &videoAvailability{})
			})
			if ctx.Err() != nil && err == nil {
				return scouterr.ErrCancelled
			}
			return err
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "directory to scan")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "descend into subdirectories")
	cmd.Flags().BoolVar(&force, "force", false, "re-index files whose sidecar format is outdated")
	cmd.Flags().IntVar(&threads, "threads", 0, "number of concurrent encoder workers (0 = auto, capped at 4)")
	cmd.Flags().BoolVar(&excludeVideos, "exclude-videos", false, "skip video files")
	cmd.Flags().IntVar(&minResolution, "min-resolution", 0, "skip images with shortest side below this many pixels")
	cmd.Flags().Int64Var(&maxSizeMB, "max-size", 0, "skip files larger than this many megabytes")
	cmd.Flags().Int64Var(&minSizeKB, "min-size", 0, "skip files smaller than this many kilobytes")
	cmd.Flags().StringVar(&exclude, "exclude", "", "comma-separated gitignore-style patterns to exclude, on top of .scoutignore")
	cmd.Flags().IntVar(&maxFrames, "max-frames", 0, "video frame budget K (0 = default 10)")
	cmd.Flags().Float64Var(&sceneThreshold, "scene-threshold", 0, "scene-change detection threshold; a positive value selects video frames by scene detection (0 = uniform sampling)")

	return cmd
}

// runScan fans the scanner's accepted paths out to workers concurrent
// fileWorkers, each owning its own encoder session for the run's duration.
// video is shared across every worker so a missing ffmpeg/ffprobe disables
// video indexing and warns exactly once for the whole run.
func runScan(ctx context.Context, s *scanner.Scanner, cfg config.Config, frameOpts frames.Options, workers int, video *videoAvailability) error {
	paths := make(chan string, 256)
	g, gctx := errgroup.WithContext(ctx)

	var counts scanner.Counts
	g.Go(func() error {
		defer close(paths)
		c, err := s.Walk(func(d scanner.Decision) {
			if !d.Accepted {
				return
			}
			select {
			case paths <- d.Path:
			case <-gctx.Done():
			}
		})
		counts = c
		return err
	})

	var processed int64
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			worker := newFileWorker(cfg, frameOpts, video)
			defer worker.Close()
			for {
				select {
				case path, ok := <-paths:
					if !ok {
						return nil
					}
					if err := worker.IndexFile(gctx, path); err != nil {
						fmt.Fprintf(os.Stderr, "\rscan: %s: %v\n", path, err)
						continue
					}
					n := atomic.AddInt64(&processed, 1)
					if cfg.Verbose {
						fmt.Fprintf(os.Stderr, "  [%d] %s\n", n, path)
					} else {
						fmt.Fprintf(os.Stderr, "\r  indexed %d…", n)
					}
				case <-gctx.Done():
					return nil
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("scout: scan: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\nDone. %d indexed, %d already indexed, %d outdated, %d filtered, %d errors.\n",
		processed, counts.AlreadyIndexed, counts.Outdated, counts.Filtered, counts.Errors)
	return nil
}
