// Package scouterr defines the error taxonomy shared across the core:
// a small set of sentinel errors callers can match with errors.Is, plus
// the exit-code mapping the CLI uses.
package scouterr

import "errors"

// Sentinel errors corresponding to the core's error taxonomy. Package code
// wraps these with fmt.Errorf("...: %w", err) to attach context; callers
// classify failures with errors.Is against these values rather than string
// matching.
var (
	// ErrInputInvalid marks unparseable arguments, an out-of-range weight,
	// or a missing required query.
	ErrInputInvalid = errors.New("scout: invalid input")

	// ErrAssetMissing marks a missing model file, tokenizer, or reference
	// image.
	ErrAssetMissing = errors.New("scout: required asset missing")

	// ErrBackendUnavailable marks a requested inference backend or the
	// external video tool refusing to initialize.
	ErrBackendUnavailable = errors.New("scout: backend unavailable")

	// ErrMediaUnreadable marks a file that exists but cannot be decoded.
	ErrMediaUnreadable = errors.New("scout: media unreadable")

	// ErrSidecarCorrupt marks a sidecar that fails to deserialize or
	// violates its invariants.
	ErrSidecarCorrupt = errors.New("scout: sidecar corrupt")

	// ErrCancelled marks cooperative cancellation observed between units
	// of work.
	ErrCancelled = errors.New("scout: cancelled")

	// ErrFatal marks an unrecoverable condition (out of memory, disk
	// full on sidecar write).
	ErrFatal = errors.New("scout: fatal")
)

// ExitCode maps an error to the process exit code the CLI should use: 0 for
// nil or cancellation (partial progress is already durable), 1 for
// user-visible errors, 2 for unrecoverable internal errors.
func ExitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, ErrCancelled):
		return 0
	case errors.Is(err, ErrInputInvalid), errors.Is(err, ErrAssetMissing), errors.Is(err, ErrBackendUnavailable):
		return 1
	case errors.Is(err, ErrFatal):
		return 2
	default:
		return 1
	}
}
