package frames

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/Hyphonical/Scout/internal/scouterr"
)

// sceneLogLine matches ffmpeg's showinfo filter output for frames selected
// by the scene-change filter, e.g.:
//
//	[Parsed_showinfo_1 @ 0x...] n:   3 pts: 123 pts_time:4.104 ... scene_score:0.412
var sceneLogLine = regexp.MustCompile(`pts_time:([0-9.]+).*?scene_score:([0-9.]+)`)

// detectScenes shells out to ffmpeg's scene-change filter and parses the
// reported timestamps and scores from stderr.
func (s *Selector) detectScenes(path string, duration float64) ([]scene, error) {
	threshold := s.opts.SceneThreshold
	if threshold <= 0 {
		threshold = DefaultOptions().SceneThreshold
	}

	cmd := exec.Command(s.ffmpegPath,
		"-i", path,
		"-filter:v", fmt.Sprintf("select='gte(scene,%.3f)',showinfo", threshold),
		"-f", "null", "-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.Error); ok {
			return nil, fmt.Errorf("frames: %w: %v", scouterr.ErrBackendUnavailable, err)
		}
		// A non-zero exit from the filtergraph itself is not fatal to scan;
		// callers fall back to Uniform when scenes come back empty.
	}

	var scenes []scene
	scanner := bufio.NewScanner(&stderr)
	for scanner.Scan() {
		m := sceneLogLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		ts, err1 := strconv.ParseFloat(m[1], 64)
		score, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if ts >= 0 && ts <= duration {
			scenes = append(scenes, scene{timestamp: ts, score: score})
		}
	}
	return scenes, nil
}
