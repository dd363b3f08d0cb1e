package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Hyphonical/Scout/internal/config"
	"github.com/Hyphonical/Scout/internal/encoder"
	"github.com/Hyphonical/Scout/internal/filehash"
	"github.com/Hyphonical/Scout/internal/frames"
	"github.com/Hyphonical/Scout/internal/media"
	"github.com/Hyphonical/Scout/internal/scouterr"
	"github.com/Hyphonical/Scout/internal/sidecar"
)

// videoAvailability is shared by every fileWorker in one scan or watch
// invocation so that once the video tool (ffmpeg/ffprobe) is found
// missing, every worker stops retrying it and the warning prints exactly
// once for the whole session, per spec.md's "video tool absence disables
// video indexing for the session and warns once."
type videoAvailability struct {
	disabled atomic.Bool
	warnOnce sync.Once
}

// fileWorker owns one encoder session and indexes individual files end to
// end: decode, embed, build a sidecar record, and write it beside the
// source file. Each concurrent scan worker and the watch subcommand's
// indexer owns one instance for its whole lifetime, never sharing a
// session across goroutines, per the core's per-worker model ownership.
type fileWorker struct {
	enc      *encoder.Orchestrator
	frameSel *frames.Selector
	cfg      config.Config
	video    *videoAvailability
}

func newFileWorker(cfg config.Config, frameOpts frames.Options, video *videoAvailability) *fileWorker {
	return &fileWorker{
		enc:      encoder.New(cfg),
		frameSel: frames.New(cfg.FFmpegPath, resolveFfprobePath(cfg.FFmpegPath), frameOpts),
		cfg:      cfg,
		video:    video,
	}
}

// Close releases the worker's encoder session.
func (w *fileWorker) Close() {
	w.enc.Close()
}

// IndexFile implements internal/watch.Indexer, and is also called directly
// by the scan command's worker pool.
func (w *fileWorker) IndexFile(ctx context.Context, path string) error {
	switch media.Classify(path) {
	case media.Image:
		return w.indexImage(path)
	case media.Video:
		if w.cfg.DisableVideo || w.video.disabled.Load() {
			return nil
		}
		err := w.indexVideo(path)
		if errors.Is(err, scouterr.ErrBackendUnavailable) {
			w.video.disabled.Store(true)
			w.video.warnOnce.Do(func() {
				fmt.Fprintf(os.Stderr, "scout: video tool unavailable (%v) — disabling video indexing for this session\n", err)
			})
			return nil
		}
		return err
	default:
		return nil
	}
}

func (w *fileWorker) indexImage(path string) error {
	start := time.Now()
	hash, err := filehash.OfFile(path)
	if err != nil {
		return fmt.Errorf("scout: hash %s: %w", path, err)
	}
	vecs, err := w.enc.EncodeImagePaths([]string{path})
	if err != nil {
		return fmt.Errorf("scout: encode %s: %w", path, err)
	}
	img := &sidecar.Image{
		OriginalFilename:     filepath.Base(path),
		ContentHash:          hash,
		CreatedAt:            time.Now().UTC(),
		Embedding:            vecs[0],
		ProcessingDurationMs: uint64(time.Since(start).Milliseconds()),
		FormatVersionField:   sidecar.FormatVersion,
	}
	if err := sidecar.Save(filepath.Dir(path), img); err != nil {
		return fmt.Errorf("scout: save sidecar for %s: %w", path, err)
	}
	return nil
}

func (w *fileWorker) indexVideo(path string) error {
	start := time.Now()
	hash, err := filehash.OfFile(path)
	if err != nil {
		return fmt.Errorf("scout: hash %s: %w", path, err)
	}

	selected, err := w.frameSel.Select(path)
	if err != nil {
		return fmt.Errorf("scout: select frames for %s: %w", path, err)
	}
	if len(selected) == 0 {
		return fmt.Errorf("scout: %s: %w: no frames selected", path, scouterr.ErrMediaUnreadable)
	}

	rasters := make([]image.Image, len(selected))
	for i, f := range selected {
		rasters[i] = f.Image
	}
	vecs, err := w.enc.EncodeImages(rasters)
	if err != nil {
		return fmt.Errorf("scout: encode frames for %s: %w", path, err)
	}

	frameRecords := make([]sidecar.Frame, len(selected))
	for i, f := range selected {
		frameRecords[i] = sidecar.Frame{TimestampSeconds: f.TimestampSeconds, Embedding: vecs[i]}
	}

	vid := &sidecar.Video{
		OriginalFilename:     filepath.Base(path),
		ContentHash:          hash,
		CreatedAt:            time.Now().UTC(),
		ProcessingDurationMs: uint64(time.Since(start).Milliseconds()),
		FormatVersionField:   sidecar.FormatVersion,
		Frames:               frameRecords,
	}
	if err := sidecar.Save(filepath.Dir(path), vid); err != nil {
		return fmt.Errorf("scout: save sidecar for %s: %w", path, err)
	}
	return nil
}

// resolveFfprobePath derives a sibling ffprobe binary path from the
// configured ffmpeg path, the way cmd/sift's resolveOrtLib derives a
// sibling library path from the executable's own directory.
func resolveFfprobePath(ffmpegPath string) string {
	dir := filepath.Dir(ffmpegPath)
	name := "ffprobe"
	if filepath.Ext(ffmpegPath) == ".exe" {
		name = "ffprobe.exe"
	}
	if dir == "." {
		return name
	}
	return filepath.Join(dir, name)
}
