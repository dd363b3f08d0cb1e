package sidecar_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Hyphonical/Scout/internal/embedding"
	"github.com/Hyphonical/Scout/internal/filehash"
	"github.com/Hyphonical/Scout/internal/sidecar"
)

func unitVector(t *testing.T, lead int) embedding.Vector {
	t.Helper()
	raw := make([]float32, embedding.Dim)
	raw[lead] = 1
	v, err := embedding.New(raw)
	if err != nil {
		t.Fatalf("embedding.New: %v", err)
	}
	return v
}

func TestSaveLoadImageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	h := filehash.Hash(0x1122334455667788)
	img := &sidecar.Image{
		OriginalFilename:     "cat.jpg",
		ContentHash:          h,
		CreatedAt:            time.Now().UTC().Truncate(time.Second),
		Embedding:            unitVector(t, 3),
		ProcessingDurationMs: 42,
		FormatVersionField:   sidecar.FormatVersion,
	}
	if err := sidecar.Save(dir, img); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := filepath.Join(dir, sidecar.DirName, img.Filename())
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected sidecar file at %s: %v", path, err)
	}

	loaded, err := sidecar.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, ok := loaded.(*sidecar.Image)
	if !ok {
		t.Fatalf("Load returned %T, want *sidecar.Image", loaded)
	}
	if got.ContentHash != h {
		t.Errorf("ContentHash = %v, want %v", got.ContentHash, h)
	}
	if got.Embedding != img.Embedding {
		t.Errorf("Embedding mismatch after round trip")
	}
	if got.OriginalFilename != img.OriginalFilename {
		t.Errorf("OriginalFilename = %q, want %q", got.OriginalFilename, img.OriginalFilename)
	}
}

func TestSaveLoadVideoRoundTrip(t *testing.T) {
	dir := t.TempDir()
	h := filehash.Hash(0xAABBCCDD11223344)
	vid := &sidecar.Video{
		OriginalFilename:   "clip.mp4",
		ContentHash:        h,
		CreatedAt:          time.Now().UTC().Truncate(time.Second),
		FormatVersionField: sidecar.FormatVersion,
		Frames: []sidecar.Frame{
			{TimestampSeconds: 0.5, Embedding: unitVector(t, 0)},
			{TimestampSeconds: 1.5, Embedding: unitVector(t, 1)},
		},
	}
	if err := sidecar.Save(dir, vid); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := filepath.Join(dir, sidecar.DirName, vid.Filename())
	loaded, err := sidecar.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, ok := loaded.(*sidecar.Video)
	if !ok {
		t.Fatalf("Load returned %T, want *sidecar.Video", loaded)
	}
	if len(got.Frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(got.Frames))
	}
	if got.Frames[0].TimestampSeconds != 0.5 || got.Frames[1].TimestampSeconds != 1.5 {
		t.Errorf("frame timestamps not preserved: %+v", got.Frames)
	}
}

func TestLoadRejectsHashMismatch(t *testing.T) {
	dir := t.TempDir()
	h := filehash.Hash(111)
	img := &sidecar.Image{
		OriginalFilename:   "a.jpg",
		ContentHash:        h,
		CreatedAt:          time.Now().UTC(),
		Embedding:          unitVector(t, 0),
		FormatVersionField: sidecar.FormatVersion,
	}
	if err := sidecar.Save(dir, img); err != nil {
		t.Fatalf("Save: %v", err)
	}

	scoutDir := filepath.Join(dir, sidecar.DirName)
	oldPath := filepath.Join(scoutDir, img.Filename())
	newPath := filepath.Join(scoutDir, filehash.Hash(222).String()+".msgpack")
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}

	if _, err := sidecar.Load(newPath); err == nil {
		t.Error("expected error when filename hash does not match content_hash")
	}
}

func TestExistsAndDelete(t *testing.T) {
	dir := t.TempDir()
	h := filehash.Hash(999)
	img := &sidecar.Image{
		ContentHash:        h,
		CreatedAt:          time.Now().UTC(),
		Embedding:          unitVector(t, 5),
		FormatVersionField: sidecar.FormatVersion,
	}
	if sidecar.Exists(dir, h) {
		t.Fatal("should not exist before save")
	}
	if err := sidecar.Save(dir, img); err != nil {
		t.Fatal(err)
	}
	if !sidecar.Exists(dir, h) {
		t.Fatal("should exist after save")
	}

	path := filepath.Join(dir, sidecar.DirName, img.Filename())
	if err := sidecar.Delete(path); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if sidecar.Exists(dir, h) {
		t.Error("should not exist after delete")
	}
}

func TestEnumerate(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	os.MkdirAll(sub, 0o755)

	img1 := &sidecar.Image{ContentHash: filehash.Hash(1), CreatedAt: time.Now().UTC(), Embedding: unitVector(t, 0), FormatVersionField: sidecar.FormatVersion}
	img2 := &sidecar.Image{ContentHash: filehash.Hash(2), CreatedAt: time.Now().UTC(), Embedding: unitVector(t, 1), FormatVersionField: sidecar.FormatVersion}
	if err := sidecar.Save(root, img1); err != nil {
		t.Fatal(err)
	}
	if err := sidecar.Save(sub, img2); err != nil {
		t.Fatal(err)
	}

	entries, err := sidecar.Enumerate(root, true)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}

	nonRecursive, err := sidecar.Enumerate(root, false)
	if err != nil {
		t.Fatalf("Enumerate non-recursive: %v", err)
	}
	if len(nonRecursive) != 1 {
		t.Fatalf("got %d non-recursive entries, want 1", len(nonRecursive))
	}
}

func TestVideoMeanEmbedding(t *testing.T) {
	vid := &sidecar.Video{
		Frames: []sidecar.Frame{
			{TimestampSeconds: 0, Embedding: unitVector(t, 0)},
			{TimestampSeconds: 1, Embedding: unitVector(t, 0)},
		},
	}
	mean, err := vid.MeanEmbedding()
	if err != nil {
		t.Fatalf("MeanEmbedding: %v", err)
	}
	if mean.Similarity(unitVector(t, 0)) < 0.99 {
		t.Errorf("expected mean to align with constant frame direction, got similarity %.4f", mean.Similarity(unitVector(t, 0)))
	}
}
