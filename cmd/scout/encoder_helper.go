package main

import (
	"github.com/Hyphonical/Scout/internal/config"
	"github.com/Hyphonical/Scout/internal/encoder"
)

// newEncoder constructs a fresh Orchestrator for a single CLI invocation.
// Commands that only run one query (search, browse) don't need a pool of
// workers each owning a session — just the one.
func newEncoder(cfg config.Config) *encoder.Orchestrator {
	return encoder.New(cfg)
}
