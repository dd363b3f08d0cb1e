// Package frames selects representative timestamps within a video and
// decodes the corresponding frames to raster images for the vision
// encoder, using external ffprobe/ffmpeg tools.
package frames

import (
	"bytes"
	"fmt"
	"image"
	"os/exec"
	"sort"

	"github.com/Hyphonical/Scout/internal/ffprobe"
	"github.com/Hyphonical/Scout/internal/scouterr"
)

// Strategy selects how candidate timestamps are chosen within a clip.
type Strategy int

const (
	// Uniform picks K evenly spaced timestamps.
	Uniform Strategy = iota
	// SceneDetection defers to ffmpeg's scene-change filter, falling back
	// to Uniform to fill out to K frames if fewer scenes are detected.
	SceneDetection
)

// Options configures frame selection.
type Options struct {
	Strategy       Strategy
	MaxFrames      int     // K; default 10
	SceneThreshold float64 // default 0.3, only used by SceneDetection
}

// DefaultOptions returns the core's defaults: uniform sampling, K=10.
func DefaultOptions() Options {
	return Options{Strategy: Uniform, MaxFrames: 10, SceneThreshold: 0.3}
}

// Selector extracts frames from videos via ffprobe/ffmpeg.
type Selector struct {
	ffmpegPath string
	prober     *ffprobe.Prober
	opts       Options
}

// New returns a Selector invoking ffmpegPath (and a sibling ffprobe binary)
// with the given Options.
func New(ffmpegPath, ffprobePath string, opts Options) *Selector {
	return &Selector{ffmpegPath: ffmpegPath, prober: ffprobe.New(ffprobePath), opts: opts}
}

// Frame is a decoded raster at a chosen timestamp.
type Frame struct {
	TimestampSeconds float64
	Image            image.Image
}

// Select probes path, chooses timestamps, and decodes each frame. Frames
// are returned sorted by ascending timestamp. If ffprobe/ffmpeg cannot run
// at all, it returns scouterr.ErrBackendUnavailable.
func (s *Selector) Select(path string) ([]Frame, error) {
	info, err := s.prober.Probe(path)
	if err != nil {
		return nil, err
	}
	if info.DurationSeconds <= 0 {
		return nil, fmt.Errorf("frames: %s: non-positive duration", path)
	}

	timestamps, err := s.chooseTimestamps(path, info.DurationSeconds)
	if err != nil {
		return nil, err
	}

	out := make([]Frame, 0, len(timestamps))
	for _, ts := range timestamps {
		img, err := s.decodeFrameAt(path, ts)
		if err != nil {
			return nil, err
		}
		out = append(out, Frame{TimestampSeconds: ts, Image: img})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimestampSeconds < out[j].TimestampSeconds })
	return out, nil
}

// chooseTimestamps implements the two configured strategies.
func (s *Selector) chooseTimestamps(path string, duration float64) ([]float64, error) {
	k := s.opts.MaxFrames
	if k <= 0 {
		k = DefaultOptions().MaxFrames
	}

	if s.opts.Strategy == Uniform {
		return uniformTimestamps(duration, k), nil
	}

	scenes, err := s.detectScenes(path, duration)
	if err != nil {
		return nil, err
	}
	if len(scenes) >= k {
		sort.Sort(sort.Reverse(byScore(scenes)))
		scenes = scenes[:k]
		ts := make([]float64, len(scenes))
		for i, sc := range scenes {
			ts[i] = sc.timestamp
		}
		return ts, nil
	}

	// Fewer scenes than K: fall back to Uniform to fill the remainder. A
	// highly static video may legitimately return fewer than K frames if
	// Uniform itself would produce duplicates near existing scene marks;
	// here we simply prefer the detected scenes plus uniform fill.
	uniform := uniformTimestamps(duration, k-len(scenes))
	ts := make([]float64, 0, k)
	for _, sc := range scenes {
		ts = append(ts, sc.timestamp)
	}
	ts = append(ts, uniform...)
	sort.Float64s(ts)
	return ts, nil
}

// uniformTimestamps implements t_i = (i + 0.5) * duration / K.
func uniformTimestamps(duration float64, k int) []float64 {
	if k <= 0 {
		return nil
	}
	out := make([]float64, k)
	for i := 0; i < k; i++ {
		out[i] = (float64(i) + 0.5) * duration / float64(k)
	}
	return out
}

type scene struct {
	timestamp float64
	score     float64
}

type byScore []scene

func (b byScore) Len() int           { return len(b) }
func (b byScore) Less(i, j int) bool { return b[i].score < b[j].score }
func (b byScore) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }

// decodeFrameAt extracts a single JPEG frame at timestamp ts via ffmpeg and
// decodes it into an image.Image.
func (s *Selector) decodeFrameAt(path string, ts float64) (image.Image, error) {
	cmd := exec.Command(s.ffmpegPath,
		"-v", "quiet",
		"-ss", fmt.Sprintf("%.3f", ts),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.Error); ok {
			return nil, fmt.Errorf("frames: %w: %v", scouterr.ErrBackendUnavailable, err)
		}
		return nil, fmt.Errorf("frames: extract frame at %.3fs from %s: %w", ts, path, err)
	}
	img, _, err := image.Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("frames: decode extracted frame from %s: %w: %v", path, scouterr.ErrMediaUnreadable, err)
	}
	return img, nil
}
