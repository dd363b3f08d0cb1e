// Package ffprobe wraps the external ffprobe tool to extract video
// duration and dimensions via its JSON output.
package ffprobe

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/Hyphonical/Scout/internal/scouterr"
)

// Prober shells out to a configured ffprobe binary.
type Prober struct {
	Path string
}

// New returns a Prober invoking the binary at path (e.g. "ffprobe", or an
// absolute path from --ffmpeg-path's directory).
func New(path string) *Prober {
	return &Prober{Path: path}
}

type probeResult struct {
	Format  formatInfo   `json:"format"`
	Streams []streamInfo `json:"streams"`
}

type formatInfo struct {
	Duration string `json:"duration"`
}

type streamInfo struct {
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Info is the subset of a probe the frame selector needs.
type Info struct {
	DurationSeconds float64
	Width           int
	Height          int
}

// Probe runs ffprobe against path and extracts duration and video
// dimensions. If the ffprobe binary cannot be executed at all (not found,
// not executable), it returns ErrBackendUnavailable so callers can disable
// video indexing for the session rather than treat it as a per-file error.
func (p *Prober) Probe(path string) (Info, error) {
	cmd := exec.Command(p.Path, "-v", "quiet", "-print_format", "json",
		"-show_format", "-show_streams", path)
	output, err := cmd.Output()
	if err != nil {
		if _, ok := err.(*exec.Error); ok {
			return Info{}, fmt.Errorf("ffprobe: %w: %v", scouterr.ErrBackendUnavailable, err)
		}
		return Info{}, fmt.Errorf("ffprobe: probe %s: %w", path, err)
	}

	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return Info{}, fmt.Errorf("ffprobe: parse output for %s: %w", path, err)
	}

	duration, _ := strconv.ParseFloat(result.Format.Duration, 64)
	info := Info{DurationSeconds: duration}
	for _, s := range result.Streams {
		if s.CodecType == "video" {
			info.Width = s.Width
			info.Height = s.Height
			break
		}
	}
	return info, nil
}
