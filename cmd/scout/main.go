// Command scout is the CLI for local semantic search and organization over
// an image and video collection: scan a directory into sidecar embeddings,
// search it with text/image/negative queries, cluster it into visual
// groups, or watch it for live changes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Hyphonical/Scout/internal/config"
	"github.com/Hyphonical/Scout/internal/scouterr"
)

const configFileName = ".scout.toml"

// globalFlags holds the persistent CLI flag destinations; loadConfig
// overlays only the ones the user actually set onto the TOML/env-derived
// config.Config, mirroring cmd/sift's .sift.toml-then-flags precedence.
var globalFlags struct {
	modelDir     string
	visionModel  string
	textModel    string
	tokenizer    string
	ffmpegPath   string
	provider     string
	verbose      bool
	disableVideo bool
}

func main() {
	root := &cobra.Command{
		Use:          "scout",
		Short:        "Local, privacy-preserving semantic search over your photo and video library",
		Long:         "scout — offline semantic search, clustering, and live indexing over image and video collections.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&globalFlags.modelDir, "model-dir", "", "directory containing ONNX model files")
	root.PersistentFlags().StringVar(&globalFlags.visionModel, "vision-model", "", "vision model filename within model-dir")
	root.PersistentFlags().StringVar(&globalFlags.textModel, "text-model", "", "text model filename within model-dir")
	root.PersistentFlags().StringVar(&globalFlags.tokenizer, "tokenizer", "", "tokenizer filename within model-dir")
	root.PersistentFlags().StringVar(&globalFlags.ffmpegPath, "ffmpeg-path", "", "path to the ffmpeg binary")
	root.PersistentFlags().StringVar(&globalFlags.provider, "provider", "", "inference backend: auto|cpu|cuda|tensorrt|coreml|xnnpack")
	root.PersistentFlags().BoolVar(&globalFlags.verbose, "verbose", false, "print per-file progress and diagnostics")
	root.PersistentFlags().BoolVar(&globalFlags.disableVideo, "disable-video", false, "never index or decode video files")

	root.AddCommand(newScanCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newClusterCmd())
	root.AddCommand(newCleanCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newBrowseCmd())

	err := root.Execute()
	os.Exit(scouterr.ExitCode(err))
}

// loadConfig builds the effective config.Config for one invocation:
// defaults, overlaid by .scout.toml, overlaid by SCOUT_MODELS_DIR,
// overlaid finally by any global flag the user explicitly set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configFileName)
	if err != nil {
		return cfg, fmt.Errorf("scout: %w: load %s: %v", scouterr.ErrInputInvalid, configFileName, err)
	}

	flags := cmd.Flags()
	if flags.Changed("model-dir") {
		cfg.ModelDir = globalFlags.modelDir
	}
	if flags.Changed("vision-model") {
		cfg.VisionModel = globalFlags.visionModel
	}
	if flags.Changed("text-model") {
		cfg.TextModel = globalFlags.textModel
	}
	if flags.Changed("tokenizer") {
		cfg.Tokenizer = globalFlags.tokenizer
	}
	if flags.Changed("ffmpeg-path") {
		cfg.FFmpegPath = globalFlags.ffmpegPath
	}
	if flags.Changed("provider") {
		cfg.Provider = config.Backend(globalFlags.provider)
	}
	if flags.Changed("verbose") {
		cfg.Verbose = globalFlags.verbose
	}
	if flags.Changed("disable-video") {
		cfg.DisableVideo = globalFlags.disableVideo
	}
	return cfg, nil
}
