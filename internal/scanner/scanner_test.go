package scanner_test

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Hyphonical/Scout/internal/embedding"
	"github.com/Hyphonical/Scout/internal/filehash"
	"github.com/Hyphonical/Scout/internal/scanner"
	"github.com/Hyphonical/Scout/internal/sidecar"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 0, 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestWalkSkipsOnlyScoutDir(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "visible.png"), 16, 16)

	// A hidden directory that isn't .scout must still be descended into;
	// only the sidecar directory itself is special-cased.
	hidden := filepath.Join(root, ".hidden")
	os.MkdirAll(hidden, 0o755)
	writePNG(t, filepath.Join(hidden, "secret.png"), 16, 16)

	scoutDir := filepath.Join(root, sidecar.DirName)
	os.MkdirAll(scoutDir, 0o755)
	os.WriteFile(filepath.Join(scoutDir, "notasidecar.msgpack"), []byte("x"), 0o644)

	s := scanner.New(root, scanner.Options{Recursive: true})
	var seen []string
	_, err := s.Walk(func(d scanner.Decision) {
		seen = append(seen, d.Path)
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	for _, p := range seen {
		if filepath.Dir(p) == scoutDir {
			t.Errorf("should not have visited %s", p)
		}
	}

	found := false
	for _, p := range seen {
		if p == filepath.Join(hidden, "secret.png") {
			found = true
		}
	}
	if !found {
		t.Error("expected to visit secret.png under a non-.scout hidden directory")
	}
}

func TestWalkFiltersUnsupportedExtension(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello"), 0o644)

	s := scanner.New(root, scanner.Options{Recursive: true})
	counts, err := s.Walk(func(scanner.Decision) {})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if counts.Filtered != 1 {
		t.Errorf("Filtered = %d, want 1", counts.Filtered)
	}
	if counts.Accepted != 0 {
		t.Errorf("Accepted = %d, want 0", counts.Accepted)
	}
}

func TestWalkAcceptsNewImage(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a.png"), 32, 32)

	s := scanner.New(root, scanner.Options{Recursive: true})
	counts, err := s.Walk(func(scanner.Decision) {})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if counts.Accepted != 1 {
		t.Errorf("Accepted = %d, want 1", counts.Accepted)
	}
}

func TestWalkMinResolutionFilter(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "small.png"), 8, 8)
	writePNG(t, filepath.Join(root, "big.png"), 64, 64)

	s := scanner.New(root, scanner.Options{Recursive: true, MinResolutionPx: 32})
	counts, err := s.Walk(func(scanner.Decision) {})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if counts.Accepted != 1 {
		t.Errorf("Accepted = %d, want 1 (only big.png)", counts.Accepted)
	}
	if counts.Filtered != 1 {
		t.Errorf("Filtered = %d, want 1 (small.png)", counts.Filtered)
	}
}

func TestWalkAlreadyIndexedAndOutdated(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.png")
	writePNG(t, path, 32, 32)

	hash, err := filehash.OfFile(path)
	if err != nil {
		t.Fatal(err)
	}

	raw := make([]float32, embedding.Dim)
	raw[0] = 1
	vec, _ := embedding.New(raw)

	img := &sidecar.Image{
		ContentHash:        hash,
		CreatedAt:          time.Now().UTC(),
		Embedding:          vec,
		FormatVersionField: sidecar.FormatVersion,
	}
	if err := sidecar.Save(root, img); err != nil {
		t.Fatal(err)
	}

	s := scanner.New(root, scanner.Options{Recursive: true})
	counts, err := s.Walk(func(scanner.Decision) {})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if counts.AlreadyIndexed != 1 {
		t.Errorf("AlreadyIndexed = %d, want 1", counts.AlreadyIndexed)
	}

	// Now mark the sidecar as outdated and re-scan without force.
	img.FormatVersionField = "0.0.0"
	if err := sidecar.Save(root, img); err != nil {
		t.Fatal(err)
	}
	s2 := scanner.New(root, scanner.Options{Recursive: true})
	counts2, err := s2.Walk(func(scanner.Decision) {})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if counts2.Outdated != 1 {
		t.Errorf("Outdated = %d, want 1", counts2.Outdated)
	}

	// With force=true, the outdated file is accepted.
	s3 := scanner.New(root, scanner.Options{Recursive: true, Force: true})
	counts3, err := s3.Walk(func(scanner.Decision) {})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if counts3.Accepted != 1 {
		t.Errorf("Accepted = %d, want 1 with force", counts3.Accepted)
	}
}

func TestWalkExcludeVideos(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "clip.mp4"), []byte("fake video bytes"), 0o644)

	s := scanner.New(root, scanner.Options{Recursive: true, ExcludeVideos: true})
	counts, err := s.Walk(func(scanner.Decision) {})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if counts.Filtered != 1 {
		t.Errorf("Filtered = %d, want 1", counts.Filtered)
	}
}

func TestWalkNonRecursiveSkipsSubdirs(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "top.png"), 32, 32)
	sub := filepath.Join(root, "sub")
	os.MkdirAll(sub, 0o755)
	writePNG(t, filepath.Join(sub, "nested.png"), 32, 32)

	s := scanner.New(root, scanner.Options{Recursive: false})
	counts, err := s.Walk(func(scanner.Decision) {})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if counts.Accepted != 1 {
		t.Errorf("Accepted = %d, want 1 (non-recursive should skip sub/)", counts.Accepted)
	}
}
