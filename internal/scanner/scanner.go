// Package scanner walks a directory tree, applying the core's fixed filter
// pipeline (hidden .scout dirs, extension whitelist, .scoutignore patterns,
// size/resolution limits, hash-and-sidecar reconciliation) and emitting a
// stream of accepted files plus aggregate skip-reason counts.
package scanner

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	_ "github.com/chai2010/webp"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/Hyphonical/Scout/internal/filehash"
	"github.com/Hyphonical/Scout/internal/ignore"
	"github.com/Hyphonical/Scout/internal/media"
	"github.com/Hyphonical/Scout/internal/sidecar"
)

// CurrentFormatVersion is compared against a sidecar's format_version to
// decide staleness. It mirrors sidecar.FormatVersion; kept distinct here so
// a caller constructing Options doesn't need to import sidecar directly.
const CurrentFormatVersion = sidecar.FormatVersion

// SkipReason classifies why an entry was not accepted.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipFiltered
	SkipAlreadyIndexed
	SkipOutdated
)

func (r SkipReason) String() string {
	switch r {
	case SkipFiltered:
		return "filtered"
	case SkipAlreadyIndexed:
		return "already_indexed"
	case SkipOutdated:
		return "outdated"
	default:
		return "none"
	}
}

// Decision is the per-entry outcome of the filter pipeline.
type Decision struct {
	Path      string
	Kind      media.Kind
	Hash      filehash.Hash
	Accepted  bool
	Reason    SkipReason
}

// Counts aggregates skip reasons across a walk.
type Counts struct {
	Filtered        int
	AlreadyIndexed  int
	Outdated        int
	Accepted        int
	Errors          int
}

// Options configures a scan. Zero values disable the corresponding filter
// except where noted.
type Options struct {
	Recursive        bool
	Force            bool
	ExcludeVideos    bool
	MinResolutionPx  int   // shortest-side pixels; 0 disables
	MaxSizeBytes     int64 // 0 disables
	MinSizeBytes     int64 // 0 disables

	// ExcludePatterns are additional gitignore-style patterns supplied
	// directly (the CLI's --exclude flag), applied on top of any
	// .scoutignore files rather than in place of them.
	ExcludePatterns []string
}

// Scanner walks one root directory applying Options.
type Scanner struct {
	root    string
	opts    Options
	ignores *ignore.Matcher
	extra   *gitignore.GitIgnore
}

// New creates a Scanner rooted at root.
func New(root string, opts Options) *Scanner {
	s := &Scanner{root: root, opts: opts, ignores: ignore.New(root)}
	if len(opts.ExcludePatterns) > 0 {
		s.extra = gitignore.CompileIgnoreLines(opts.ExcludePatterns...)
	}
	return s
}

// Walk runs the filter pipeline over every file under s.root and calls visit
// for each Decision. It returns aggregate Counts; errors reading individual
// files are folded into Counts.Errors and never abort the walk.
func (s *Scanner) Walk(visit func(Decision)) (Counts, error) {
	var counts Counts
	err := s.walkDir(s.root, func(path string, d os.DirEntry) error {
		decision, err := s.decide(path)
		if err != nil {
			counts.Errors++
			return nil
		}
		switch {
		case decision.Accepted:
			counts.Accepted++
		case decision.Reason == SkipFiltered:
			counts.Filtered++
		case decision.Reason == SkipAlreadyIndexed:
			counts.AlreadyIndexed++
		case decision.Reason == SkipOutdated:
			counts.Outdated++
		}
		visit(decision)
		return nil
	})
	return counts, err
}

// Decide runs the filter pipeline on a single path, for use by the watch
// component's single-file acceptance check.
func (s *Scanner) Decide(path string) (Decision, error) {
	if !s.opts.Recursive && filepath.Clean(filepath.Dir(path)) != filepath.Clean(s.root) {
		return Decision{Path: path, Kind: media.Classify(path), Reason: SkipFiltered}, nil
	}
	return s.decide(path)
}

func (s *Scanner) decide(path string) (Decision, error) {
	kind := media.Classify(path)
	if kind == media.Unsupported {
		return Decision{Path: path, Kind: kind, Reason: SkipFiltered}, nil
	}
	if s.opts.ExcludeVideos && kind == media.Video {
		return Decision{Path: path, Kind: kind, Reason: SkipFiltered}, nil
	}

	ignored, err := s.ignores.Match(path)
	if err != nil {
		return Decision{}, err
	}
	if ignored {
		return Decision{Path: path, Kind: kind, Reason: SkipFiltered}, nil
	}
	if s.extra != nil {
		rel, err := filepath.Rel(s.root, path)
		if err == nil && s.extra.MatchesPath(filepath.ToSlash(rel)) {
			return Decision{Path: path, Kind: kind, Reason: SkipFiltered}, nil
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return Decision{}, fmt.Errorf("scanner: stat %s: %w", path, err)
	}
	if s.opts.MaxSizeBytes > 0 && info.Size() > s.opts.MaxSizeBytes {
		return Decision{Path: path, Kind: kind, Reason: SkipFiltered}, nil
	}
	if s.opts.MinSizeBytes > 0 && info.Size() < s.opts.MinSizeBytes {
		return Decision{Path: path, Kind: kind, Reason: SkipFiltered}, nil
	}

	if kind == media.Image && s.opts.MinResolutionPx > 0 {
		ok, err := meetsMinResolution(path, s.opts.MinResolutionPx)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return Decision{Path: path, Kind: kind, Reason: SkipFiltered}, nil
		}
	}

	hash, err := filehash.OfFile(path)
	if err != nil {
		return Decision{}, fmt.Errorf("scanner: hash %s: %w", path, err)
	}

	mediaDir := filepath.Dir(path)
	sidecarPath := filepath.Join(mediaDir, sidecar.DirName, hash.String()+".msgpack")
	if sidecar.Exists(mediaDir, hash) {
		version, err := sidecar.VersionOf(sidecarPath)
		if err != nil {
			// Corrupt sidecar is treated as absent: accept for re-indexing.
			return Decision{Path: path, Kind: kind, Hash: hash, Accepted: true}, nil
		}
		if version == CurrentFormatVersion {
			return Decision{Path: path, Kind: kind, Hash: hash, Reason: SkipAlreadyIndexed}, nil
		}
		if !s.opts.Force {
			return Decision{Path: path, Kind: kind, Hash: hash, Reason: SkipOutdated}, nil
		}
		// Outdated and force=true falls through to Accept.
	}

	return Decision{Path: path, Kind: kind, Hash: hash, Accepted: true}, nil
}

// meetsMinResolution reports whether the image at path has a shortest side
// of at least minPx, reading only the image header.
func meetsMinResolution(path string, minPx int) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("scanner: open %s: %w", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		// Unreadable header: treat as filtered, not a fatal scan error.
		return false, nil
	}
	shortest := cfg.Width
	if cfg.Height < shortest {
		shortest = cfg.Height
	}
	return shortest >= minPx, nil
}

// walkDir recursively visits files under dir, skipping directories named
// exactly sidecar.DirName (".scout") and, if Recursive is false, not
// descending into any subdirectory at all.
func (s *Scanner) walkDir(dir string, fn func(path string, d os.DirEntry) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scanner: readdir %s: %w", dir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		full := filepath.Join(dir, name)
		if entry.IsDir() {
			if name == sidecar.DirName {
				continue
			}
			if !s.opts.Recursive {
				continue
			}
			if err := s.walkDir(full, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(full, entry); err != nil {
			return err
		}
	}
	return nil
}
