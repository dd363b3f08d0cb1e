// Package config centralizes the process-wide settings the teacher repo
// kept as package-level defaults (model directory, inference backend,
// thread count). Here they live in one explicit struct built once at
// startup and passed to constructors, never read as global state.
package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Backend is the requested inference execution provider.
type Backend string

const (
	BackendAuto      Backend = "auto"
	BackendCPU       Backend = "cpu"
	BackendXNNPACK   Backend = "xnnpack"
	BackendCUDA      Backend = "cuda"
	BackendTensorRT  Backend = "tensorrt"
	BackendCoreML    Backend = "coreml"
)

// Config is every setting shared across subcommands.
type Config struct {
	ModelDir      string  `toml:"model-dir"`
	VisionModel   string  `toml:"vision-model"`
	TextModel     string  `toml:"text-model"`
	Tokenizer     string  `toml:"tokenizer"`
	FFmpegPath    string  `toml:"ffmpeg-path"`
	Provider      Backend `toml:"provider"`
	Threads       int     `toml:"threads"`
	DisableVideo  bool    `toml:"disable-video"`
	Verbose       bool    `toml:"verbose"`
}

// Default returns the built-in defaults, matching the teacher's
// package-level default vars but grouped into a value instead of globals.
func Default() Config {
	return Config{
		ModelDir:     "./models",
		VisionModel:  "vision_model_q4f16.onnx",
		TextModel:    "text_model_q4f16.onnx",
		Tokenizer:    "tokenizer.json",
		FFmpegPath:   "ffmpeg",
		Provider:     BackendAuto,
		Threads:      0,
		DisableVideo: false,
	}
}

// modelDirEnvVar overrides the default model directory, per the external
// interfaces contract.
const modelDirEnvVar = "SCOUT_MODELS_DIR"

// Load builds a Config starting from Default, overlaying tomlPath (if it
// exists; a missing file is not an error) and finally the SCOUT_MODELS_DIR
// environment variable, which overrides both. Command-line flags in
// cmd/scout are applied after Load and override all of these.
func Load(tomlPath string) (Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(tomlPath); err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	if dir := os.Getenv(modelDirEnvVar); dir != "" {
		cfg.ModelDir = dir
	}
	return cfg, nil
}

// VisionModelPath, TextModelPath, and TokenizerPath join ModelDir with the
// configured file names.
func (c Config) VisionModelPath() string  { return filepath.Join(c.ModelDir, c.VisionModel) }
func (c Config) TextModelPath() string    { return filepath.Join(c.ModelDir, c.TextModel) }
func (c Config) TokenizerPath() string    { return filepath.Join(c.ModelDir, c.Tokenizer) }
