// Package retrieval builds query vectors from text/image/negative inputs,
// scores sidecars against them, and returns a ranked, deduplicated,
// limited result set.
package retrieval

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/Hyphonical/Scout/internal/embedding"
	"github.com/Hyphonical/Scout/internal/filehash"
	"github.com/Hyphonical/Scout/internal/media"
	"github.com/Hyphonical/Scout/internal/scanner"
	"github.com/Hyphonical/Scout/internal/sidecar"
)

// Encoder is the subset of internal/encoder.Orchestrator the engine needs,
// kept narrow so tests can supply a fake.
type Encoder interface {
	EncodeQuery(text string) (embedding.Vector, error)
	EncodeImagePaths(paths []string) ([]embedding.Vector, error)
}

// Query describes one search request.
type Query struct {
	Text           string  // positive text query; "" if absent
	ImagePath      string  // positive image query path; "" if absent
	TextWeight     float32 // w in [0,1], used only when Text and ImagePath are both set
	Negative       string  // negative text query; "" if absent
	NegativeWeight float32 // λ, default 0.7

	Dir             string
	Recursive       bool
	ExcludeVideos   bool
	IncludeRef      bool
	MinScore        float32
	Limit           int
}

// DefaultNegativeWeight is λ's documented default.
const DefaultNegativeWeight = 0.7

// Result is one ranked hit.
type Result struct {
	Path             string
	Score            float32
	ContentHash      filehash.Hash
	Kind             media.Kind
	TimestampSeconds float64 // only meaningful for Kind == media.Video
	Stale            bool
}

// Engine is stateless between queries; the Encoder it wraps may own
// reusable model sessions.
type Engine struct {
	encoder Encoder
}

// New returns an Engine using encoder to embed query text/images.
func New(encoder Encoder) *Engine {
	return &Engine{encoder: encoder}
}

// Search runs q's pipeline: build Q+/Q-, enumerate sidecars, score, filter,
// sort, and truncate.
func (e *Engine) Search(q Query) ([]Result, error) {
	positive, err := e.buildPositive(q)
	if err != nil {
		return nil, err
	}

	var negative *embedding.Vector
	if q.Negative != "" {
		v, err := e.encoder.EncodeQuery(q.Negative)
		if err != nil {
			return nil, fmt.Errorf("retrieval: encode negative query: %w", err)
		}
		negative = &v
	}

	lambda := q.NegativeWeight
	if lambda == 0 {
		lambda = DefaultNegativeWeight
	}

	var refHash filehash.Hash
	hasRef := q.ImagePath != ""
	if hasRef {
		if h, err := filehash.OfFile(q.ImagePath); err == nil {
			refHash = h
		}
	}

	entries, err := sidecar.Enumerate(q.Dir, q.Recursive)
	if err != nil {
		return nil, fmt.Errorf("retrieval: enumerate sidecars: %w", err)
	}

	var results []Result
	for _, entry := range entries {
		sc, err := sidecar.Load(entry.SidecarPath)
		if err != nil {
			// Corrupt sidecars are excluded from the result set, never a
			// query-terminating error.
			continue
		}

		stale := sc.Version() != scanner.CurrentFormatVersion

		var kind media.Kind
		var score float32
		var timestamp float64
		var originalFilename string

		switch v := sc.(type) {
		case *sidecar.Image:
			kind = media.Image
			score = scoreOne(v.Embedding, positive, negative, lambda)
			originalFilename = v.OriginalFilename
		case *sidecar.Video:
			if q.ExcludeVideos {
				continue
			}
			kind = media.Video
			best := float32(-2)
			bestTS := 0.0
			for _, frame := range v.Frames {
				s := scoreOne(frame.Embedding, positive, negative, lambda)
				if s > best {
					best = s
					bestTS = frame.TimestampSeconds
				}
			}
			score = best
			timestamp = bestTS
			originalFilename = v.OriginalFilename
		default:
			continue
		}

		if score < q.MinScore {
			continue
		}
		if hasRef && !q.IncludeRef && sc.Hash() == refHash {
			continue
		}

		results = append(results, Result{
			Path:             filepath.Join(entry.MediaDir, originalFilename),
			Score:            score,
			ContentHash:      sc.Hash(),
			Kind:             kind,
			TimestampSeconds: timestamp,
			Stale:            stale,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ContentHash.String() < results[j].ContentHash.String()
	})

	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// buildPositive constructs Q+ per spec: text-only, image-only, or a
// weighted blend of both.
func (e *Engine) buildPositive(q Query) (embedding.Vector, error) {
	hasText := q.Text != ""
	hasImage := q.ImagePath != ""

	switch {
	case hasText && hasImage:
		textVec, err := e.encoder.EncodeQuery(q.Text)
		if err != nil {
			return embedding.Vector{}, fmt.Errorf("retrieval: encode text query: %w", err)
		}
		imgVecs, err := e.encoder.EncodeImagePaths([]string{q.ImagePath})
		if err != nil {
			return embedding.Vector{}, fmt.Errorf("retrieval: encode image query: %w", err)
		}
		w := q.TextWeight
		return embedding.Blend([]embedding.Vector{textVec, imgVecs[0]}, []float32{w, 1 - w})
	case hasText:
		return e.encoder.EncodeQuery(q.Text)
	case hasImage:
		imgVecs, err := e.encoder.EncodeImagePaths([]string{q.ImagePath})
		if err != nil {
			return embedding.Vector{}, fmt.Errorf("retrieval: encode image query: %w", err)
		}
		return imgVecs[0], nil
	default:
		return embedding.Vector{}, fmt.Errorf("retrieval: query requires a text or image input")
	}
}

// scoreOne computes dot(E, Q+) - λ·max(0, dot(E, Q-)).
func scoreOne(e embedding.Vector, positive embedding.Vector, negative *embedding.Vector, lambda float32) float32 {
	score := e.Similarity(positive)
	if negative != nil {
		neg := e.Similarity(*negative)
		if neg > 0 {
			score -= lambda * neg
		}
	}
	return score
}
