package filehash_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Hyphonical/Scout/internal/filehash"
)

func TestOfFileDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}
	h1, err := filehash.OfFile(path)
	if err != nil {
		t.Fatalf("OfFile: %v", err)
	}
	h2, err := filehash.OfFile(path)
	if err != nil {
		t.Fatalf("OfFile: %v", err)
	}
	if h1 != h2 {
		t.Errorf("hash not deterministic: %v != %v", h1, h2)
	}
}

func TestOfFileDiffersOnContent(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.bin")
	p2 := filepath.Join(dir, "b.bin")
	os.WriteFile(p1, []byte("hello"), 0o644)
	os.WriteFile(p2, []byte("world"), 0o644)

	h1, _ := filehash.OfFile(p1)
	h2, _ := filehash.OfFile(p2)
	if h1 == h2 {
		t.Error("expected different hashes for different content")
	}
}

func TestOfFileShorterThanPrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.bin")
	os.WriteFile(path, []byte("x"), 0o644)
	if _, err := filehash.OfFile(path); err != nil {
		t.Errorf("unexpected error hashing short file: %v", err)
	}
}

func TestStringRoundTrip(t *testing.T) {
	h := filehash.Hash(0xDEADBEEFCAFEBABE)
	s := h.String()
	if s != strings.ToUpper(s) {
		t.Errorf("String() = %q, want uppercase", s)
	}
	got, err := filehash.Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != h {
		t.Errorf("round trip = %v, want %v", got, h)
	}
}

func TestParseCaseInsensitive(t *testing.T) {
	h := filehash.Hash(12345)
	s := h.String()
	got, err := filehash.Parse(strings.ToLower(s))
	if err != nil {
		t.Fatalf("Parse lowercase: %v", err)
	}
	if got != h {
		t.Errorf("case-insensitive parse = %v, want %v", got, h)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := filehash.Parse("not-valid-crockford!!"); err == nil {
		t.Error("expected error for invalid input")
	}
}
