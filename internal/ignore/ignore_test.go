package ignore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Hyphonical/Scout/internal/ignore"
)

func TestMatchRootPattern(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, ignore.FileName), []byte("*.tmp\n"), 0o644)

	m := ignore.New(root)
	ignored, err := m.Match(filepath.Join(root, "a.tmp"))
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !ignored {
		t.Error("expected a.tmp to be ignored")
	}

	ignored, err = m.Match(filepath.Join(root, "a.jpg"))
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if ignored {
		t.Error("expected a.jpg to not be ignored")
	}
}

func TestMatchNestedOverridesRoot(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "keep")
	os.MkdirAll(sub, 0o755)
	os.WriteFile(filepath.Join(root, ignore.FileName), []byte("*.jpg\n"), 0o644)
	os.WriteFile(filepath.Join(sub, ignore.FileName), []byte("!*.jpg\n"), 0o644)

	m := ignore.New(root)

	ignoredAtRoot, err := m.Match(filepath.Join(root, "a.jpg"))
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !ignoredAtRoot {
		t.Error("expected a.jpg at root to be ignored")
	}

	ignoredInSub, err := m.Match(filepath.Join(sub, "b.jpg"))
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if ignoredInSub {
		t.Error("expected nested .scoutignore negation to un-ignore b.jpg")
	}
}

func TestMatchNoPatternFile(t *testing.T) {
	root := t.TempDir()
	m := ignore.New(root)
	ignored, err := m.Match(filepath.Join(root, "anything.png"))
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if ignored {
		t.Error("expected no match when no .scoutignore exists")
	}
}

func TestMatchDirectoryOnlyPattern(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, ignore.FileName), []byte("build/\n"), 0o644)
	buildDir := filepath.Join(root, "build")
	os.MkdirAll(buildDir, 0o755)

	m := ignore.New(root)
	ignored, err := m.Match(filepath.Join(buildDir, "out.png"))
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !ignored {
		t.Error("expected files under build/ to be ignored by a directory-only pattern")
	}
}
