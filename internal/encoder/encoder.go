// Package encoder wraps the vision/text dual-encoder model pair: lazy
// session construction, image and text preprocessing, backend selection
// with CPU fallback, and L2-normalized Embedding output.
package encoder

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/daulet/tokenizers"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/Hyphonical/Scout/internal/config"
	"github.com/Hyphonical/Scout/internal/embedding"
	"github.com/Hyphonical/Scout/internal/scouterr"
)

// maxTextTokens is the effective maximum token length for the text tower,
// typical for this model family.
const maxTextTokens = 64

// imageSize is the square side S the vision tower's preprocessing resizes
// to.
const imageSize = 512

// Orchestrator lazily loads the vision and text ONNX sessions on first use.
// Until then it holds only configured paths and a backend selector, per the
// design notes on lazy per-worker model ownership: each worker constructs
// its own Orchestrator so sessions are never shared across goroutines.
type Orchestrator struct {
	cfg config.Config

	mu            sync.Mutex
	visionSession *ort.DynamicAdvancedSession
	textSession   *ort.DynamicAdvancedSession
	tokenizer     *tokenizers.Tokenizer
	visionBackend config.Backend
	textBackend   config.Backend
}

// New returns an Orchestrator configured from cfg. No model is loaded yet.
func New(cfg config.Config) *Orchestrator {
	return &Orchestrator{cfg: cfg}
}

// Close releases any loaded sessions and the tokenizer.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.visionSession != nil {
		o.visionSession.Destroy()
		o.visionSession = nil
	}
	if o.textSession != nil {
		o.textSession.Destroy()
		o.textSession = nil
	}
	if o.tokenizer != nil {
		o.tokenizer.Close()
		o.tokenizer = nil
	}
}

// Backends reports which provider each tower fell back to (only meaningful
// once loaded), for diagnostics surfaced by the CLI.
func (o *Orchestrator) Backends() (vision, text config.Backend) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.visionBackend, o.textBackend
}

func resolvedThreads(threads int) int {
	if threads > 0 {
		return threads
	}
	n := runtime.NumCPU()
	if n > 4 {
		n = 4
	}
	return n
}

// ensureVision lazily initializes the vision tower session.
func (o *Orchestrator) ensureVision() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.visionSession != nil {
		return nil
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("encoder: init onnxruntime: %w", err)
	}
	opts, backend, err := newSessionOptionsFor(o.cfg.Provider, resolvedThreads(o.cfg.Threads))
	if err != nil {
		return fmt.Errorf("encoder: %w: %v", scouterr.ErrBackendUnavailable, err)
	}
	defer opts.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		o.cfg.VisionModelPath(),
		[]string{"pixel_values"},
		[]string{"image_embeds"},
		opts,
	)
	if err != nil {
		return fmt.Errorf("encoder: load vision model %s: %w: %v", o.cfg.VisionModelPath(), scouterr.ErrAssetMissing, err)
	}
	o.visionSession = session
	o.visionBackend = backend
	return nil
}

// ensureText lazily initializes the text tower session and tokenizer.
func (o *Orchestrator) ensureText() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.textSession != nil {
		return nil
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("encoder: init onnxruntime: %w", err)
	}
	opts, backend, err := newSessionOptionsFor(o.cfg.Provider, resolvedThreads(o.cfg.Threads))
	if err != nil {
		return fmt.Errorf("encoder: %w: %v", scouterr.ErrBackendUnavailable, err)
	}
	defer opts.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		o.cfg.TextModelPath(),
		[]string{"input_ids", "attention_mask"},
		[]string{"text_embeds"},
		opts,
	)
	if err != nil {
		return fmt.Errorf("encoder: load text model %s: %w: %v", o.cfg.TextModelPath(), scouterr.ErrAssetMissing, err)
	}

	tk, err := tokenizers.FromFile(o.cfg.TokenizerPath())
	if err != nil {
		session.Destroy()
		return fmt.Errorf("encoder: load tokenizer %s: %w: %v", o.cfg.TokenizerPath(), scouterr.ErrAssetMissing, err)
	}

	o.textSession = session
	o.tokenizer = tk
	o.textBackend = backend
	return nil
}

func toEmbeddings(flat []float32, dim int) ([]embedding.Vector, error) {
	if dim != embedding.Dim {
		return nil, fmt.Errorf("encoder: model output dim %d, want %d", dim, embedding.Dim)
	}
	n := len(flat) / dim
	out := make([]embedding.Vector, n)
	for i := 0; i < n; i++ {
		v, err := embedding.New(flat[i*dim : (i+1)*dim])
		if err != nil {
			return nil, fmt.Errorf("encoder: normalize output %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
