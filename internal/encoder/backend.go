package encoder

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Hyphonical/Scout/internal/config"
)

// autoOrder is the execution-provider preference order tried in Auto mode.
var autoOrder = []config.Backend{
	config.BackendTensorRT,
	config.BackendCUDA,
	config.BackendCoreML,
	config.BackendXNNPACK,
	config.BackendCPU,
}

// applyBackend appends the execution provider for backend to opts. CPU is
// the implicit default when no provider is appended, so applyBackend is a
// no-op (success) for BackendCPU.
func applyBackend(opts *ort.SessionOptions, backend config.Backend) error {
	switch backend {
	case config.BackendCPU, config.BackendAuto, "":
		return nil
	case config.BackendCUDA:
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return fmt.Errorf("encoder: cuda provider options: %w", err)
		}
		defer cudaOpts.Destroy()
		return opts.AppendExecutionProviderCUDA(cudaOpts)
	case config.BackendTensorRT:
		trtOpts, err := ort.NewTensorRTProviderOptions()
		if err != nil {
			return fmt.Errorf("encoder: tensorrt provider options: %w", err)
		}
		defer trtOpts.Destroy()
		return opts.AppendExecutionProviderTensorRT(trtOpts)
	case config.BackendCoreML:
		return opts.AppendExecutionProviderCoreML(0)
	case config.BackendXNNPACK:
		return opts.AppendExecutionProviderXNNPACK(map[string]string{})
	default:
		return fmt.Errorf("encoder: unknown backend %q", backend)
	}
}

// newSessionOptionsFor builds session options for backend, trying the
// requested provider and falling back to CPU (and recording that fallback)
// if appending the provider fails. In Auto mode every entry of autoOrder is
// tried in turn.
func newSessionOptionsFor(backend config.Backend, threads int) (*ort.SessionOptions, config.Backend, error) {
	candidates := []config.Backend{backend}
	if backend == config.BackendAuto || backend == "" {
		candidates = autoOrder
	}

	var lastErr error
	for _, cand := range candidates {
		opts, err := ort.NewSessionOptions()
		if err != nil {
			return nil, "", fmt.Errorf("encoder: session options: %w", err)
		}
		if threads > 0 {
			if err := opts.SetIntraOpNumThreads(threads); err != nil {
				opts.Destroy()
				return nil, "", fmt.Errorf("encoder: set intra threads: %w", err)
			}
		}
		if err := applyBackend(opts, cand); err != nil {
			lastErr = err
			opts.Destroy()
			continue
		}
		return opts, cand, nil
	}

	// Every candidate failed (or backend itself was an unknown non-CPU
	// value): fall back to plain CPU, matching the "falls back to CPU on
	// construction failure" contract.
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, "", fmt.Errorf("encoder: session options: %w", err)
	}
	if threads > 0 {
		if err := opts.SetIntraOpNumThreads(threads); err != nil {
			opts.Destroy()
			return nil, "", fmt.Errorf("encoder: set intra threads: %w", err)
		}
	}
	_ = lastErr
	return opts, config.BackendCPU, nil
}
