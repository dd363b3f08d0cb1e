package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Hyphonical/Scout/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := config.Default()
	if cfg.ModelDir != want.ModelDir || cfg.Provider != want.Provider {
		t.Errorf("Load with missing file = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadOverlaysTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scout.toml")
	os.WriteFile(path, []byte("model-dir = \"/custom/models\"\nthreads = 4\n"), 0o644)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ModelDir != "/custom/models" {
		t.Errorf("ModelDir = %q, want /custom/models", cfg.ModelDir)
	}
	if cfg.Threads != 4 {
		t.Errorf("Threads = %d, want 4", cfg.Threads)
	}
}

func TestLoadEnvOverridesModelDir(t *testing.T) {
	t.Setenv("SCOUT_MODELS_DIR", "/env/models")
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ModelDir != "/env/models" {
		t.Errorf("ModelDir = %q, want /env/models", cfg.ModelDir)
	}
}

func TestModelPaths(t *testing.T) {
	cfg := config.Default()
	cfg.ModelDir = "/models"
	if got := cfg.VisionModelPath(); got != "/models/vision_model_q4f16.onnx" {
		t.Errorf("VisionModelPath() = %q", got)
	}
	if got := cfg.TextModelPath(); got != "/models/text_model_q4f16.onnx" {
		t.Errorf("TextModelPath() = %q", got)
	}
	if got := cfg.TokenizerPath(); got != "/models/tokenizer.json" {
		t.Errorf("TokenizerPath() = %q", got)
	}
}
