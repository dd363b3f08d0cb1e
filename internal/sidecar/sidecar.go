// Package sidecar persists per-file embedding records beside the media
// they describe. Records are written atomically (temp file + rename) and
// encoded with a self-describing binary format; unknown fields are ignored
// on decode and are not preserved.
package sidecar

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Hyphonical/Scout/internal/embedding"
	"github.com/Hyphonical/Scout/internal/filehash"
	"github.com/Hyphonical/Scout/internal/scouterr"
)

// FormatVersion is the current core's sidecar format version. A sidecar
// whose FormatVersion field differs is considered outdated.
const FormatVersion = "1.0.0"

// DirName is the hidden directory, sibling to indexed media, holding
// sidecar and cluster-cache files.
const DirName = ".scout"

// Frame is one sampled timestamp of a video and its embedding.
type Frame struct {
	TimestampSeconds float64           `msgpack:"timestamp_seconds"`
	Embedding        embedding.Vector  `msgpack:"embedding"`
}

// record is the on-disk shape shared by images and videos. Frames is nil
// (and omitted on encode) for images; its presence on decode is the tagged
// union discriminator.
type record struct {
	FormatVersion        string           `msgpack:"format_version"`
	OriginalFilename     string           `msgpack:"original_filename"`
	ContentHash          string           `msgpack:"content_hash"`
	CreatedAt            time.Time        `msgpack:"created_at"`
	Embedding            embedding.Vector `msgpack:"embedding,omitempty"`
	ProcessingDurationMs uint64           `msgpack:"processing_duration_ms"`
	Frames               []Frame          `msgpack:"frames,omitempty"`
}

// Sidecar is the common interface implemented by *Image and *Video,
// exposing the identity fields every caller needs regardless of kind.
type Sidecar interface {
	Hash() filehash.Hash
	Version() string
	Filename() string
}

// Image is the sidecar record for a still image.
type Image struct {
	OriginalFilename     string
	ContentHash          filehash.Hash
	CreatedAt            time.Time
	Embedding            embedding.Vector
	ProcessingDurationMs uint64
	FormatVersionField   string
}

func (s *Image) Hash() filehash.Hash { return s.ContentHash }
func (s *Image) Version() string     { return s.FormatVersionField }
func (s *Image) Filename() string    { return s.ContentHash.String() + ".msgpack" }

// Video is the sidecar record for a video: identity fields plus an ordered
// list of sampled frame embeddings.
type Video struct {
	OriginalFilename     string
	ContentHash          filehash.Hash
	CreatedAt            time.Time
	ProcessingDurationMs uint64
	FormatVersionField   string
	Frames               []Frame
}

func (s *Video) Hash() filehash.Hash { return s.ContentHash }
func (s *Video) Version() string     { return s.FormatVersionField }
func (s *Video) Filename() string    { return s.ContentHash.String() + ".msgpack" }

// MeanEmbedding returns the re-normalized mean of all frame embeddings, used
// by the clustering engine to reduce a video to a single point.
func (s *Video) MeanEmbedding() (embedding.Vector, error) {
	if len(s.Frames) == 0 {
		return embedding.Vector{}, fmt.Errorf("sidecar: video %s has no frames", s.ContentHash)
	}
	vecs := make([]embedding.Vector, len(s.Frames))
	weights := make([]float32, len(s.Frames))
	for i, f := range s.Frames {
		vecs[i] = f.Embedding
		weights[i] = 1.0 / float32(len(s.Frames))
	}
	return embedding.Blend(vecs, weights)
}

// dirFor returns the .scout directory sibling to mediaDir.
func dirFor(mediaDir string) string {
	return filepath.Join(mediaDir, DirName)
}

// Save writes s atomically into mediaDir/.scout/<hash>.msgpack, creating the
// directory if needed.
func Save(mediaDir string, s Sidecar) error {
	dir := dirFor(mediaDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("sidecar: mkdir %s: %w", dir, err)
	}

	rec := toRecord(s)
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("sidecar: marshal: %w", err)
	}

	target := filepath.Join(dir, s.Filename())
	tmp, err := os.CreateTemp(dir, ".tmp-sidecar-*")
	if err != nil {
		return fmt.Errorf("sidecar: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed away

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("sidecar: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sidecar: fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("sidecar: close temp: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("sidecar: rename into place: %w", err)
	}
	return nil
}

func toRecord(s Sidecar) record {
	switch v := s.(type) {
	case *Image:
		return record{
			FormatVersion:        v.FormatVersionField,
			OriginalFilename:     v.OriginalFilename,
			ContentHash:          v.ContentHash.String(),
			CreatedAt:            v.CreatedAt,
			Embedding:            v.Embedding,
			ProcessingDurationMs: v.ProcessingDurationMs,
		}
	case *Video:
		return record{
			FormatVersion:        v.FormatVersionField,
			OriginalFilename:     v.OriginalFilename,
			ContentHash:          v.ContentHash.String(),
			CreatedAt:            v.CreatedAt,
			ProcessingDurationMs: v.ProcessingDurationMs,
			Frames:               v.Frames,
		}
	default:
		panic(fmt.Sprintf("sidecar: unknown Sidecar implementation %T", s))
	}
}

// Load reads and decodes the sidecar at path. It distinguishes image vs.
// video by presence of the frames field, and validates the invariants named
// in the data model: embedding dimension (enforced by embedding.Vector's
// fixed array type), content_hash matching the filename, and (for video)
// frames sorted by ascending timestamp.
func Load(path string) (Sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sidecar: read %s: %w", path, err)
	}

	var rec record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("sidecar: decode %s: %w: %v", path, scouterr.ErrSidecarCorrupt, err)
	}

	wantHash := filehash.Hash(0)
	base := filepath.Base(path)
	if len(base) > len(".msgpack") {
		if h, err := filehash.Parse(base[:len(base)-len(".msgpack")]); err == nil {
			wantHash = h
		}
	}

	declHash, err := filehash.Parse(rec.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("sidecar: %s: bad content_hash %q: %w", path, rec.ContentHash, scouterr.ErrSidecarCorrupt)
	}
	if wantHash != 0 && declHash != wantHash {
		return nil, fmt.Errorf("sidecar: %s: content_hash %s does not match filename: %w", path, rec.ContentHash, scouterr.ErrSidecarCorrupt)
	}

	if len(rec.Frames) > 0 {
		if !sort.SliceIsSorted(rec.Frames, func(i, j int) bool {
			return rec.Frames[i].TimestampSeconds < rec.Frames[j].TimestampSeconds
		}) {
			return nil, fmt.Errorf("sidecar: %s: frames not sorted by timestamp: %w", path, scouterr.ErrSidecarCorrupt)
		}
		return &Video{
			OriginalFilename:     rec.OriginalFilename,
			ContentHash:          declHash,
			CreatedAt:            rec.CreatedAt,
			ProcessingDurationMs: rec.ProcessingDurationMs,
			FormatVersionField:   rec.FormatVersion,
			Frames:               rec.Frames,
		}, nil
	}

	return &Image{
		OriginalFilename:     rec.OriginalFilename,
		ContentHash:          declHash,
		CreatedAt:            rec.CreatedAt,
		Embedding:            rec.Embedding,
		ProcessingDurationMs: rec.ProcessingDurationMs,
		FormatVersionField:   rec.FormatVersion,
	}, nil
}

// Exists reports whether a sidecar for hash already exists under mediaDir.
func Exists(mediaDir string, hash filehash.Hash) bool {
	_, err := os.Stat(filepath.Join(dirFor(mediaDir), hash.String()+".msgpack"))
	return err == nil
}

// VersionOf returns the format_version recorded in the sidecar at path
// without fully validating its invariants.
func VersionOf(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("sidecar: read %s: %w", path, err)
	}
	var rec struct {
		FormatVersion string `msgpack:"format_version"`
	}
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("sidecar: decode %s: %w: %v", path, scouterr.ErrSidecarCorrupt, err)
	}
	return rec.FormatVersion, nil
}

// Delete removes the sidecar file at path.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("sidecar: delete %s: %w", path, err)
	}
	return nil
}

// Entry is one result of Enumerate: the path to a sidecar file and the
// media directory (the sidecar's parent's parent) it belongs to.
type Entry struct {
	SidecarPath string
	MediaDir    string
}

// Enumerate walks root (recursively if requested) and yields every sidecar
// file found under any .scout directory, paired with the media directory
// that owns it.
func Enumerate(root string, recursive bool) ([]Entry, error) {
	var out []Entry
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("sidecar: readdir %s: %w", dir, err)
		}
		for _, e := range entries {
			full := filepath.Join(dir, e.Name())
			if e.IsDir() {
				if e.Name() == DirName {
					scoutEntries, err := os.ReadDir(full)
					if err != nil {
						return fmt.Errorf("sidecar: readdir %s: %w", full, err)
					}
					for _, se := range scoutEntries {
						if se.IsDir() || filepath.Ext(se.Name()) != ".msgpack" {
							continue
						}
						out = append(out, Entry{
							SidecarPath: filepath.Join(full, se.Name()),
							MediaDir:    dir,
						})
					}
					continue
				}
				if recursive {
					if err := walk(full); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return out, nil
}
