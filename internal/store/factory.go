// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package store

import (
	"sync"

	deckderr "github.com/deckd-dev/deckd/pkg/errors"
)

// defaultVectorDimensions matches OpenAI text-embedding-3-small.
const defaultVectorDimensions = 1536

// StorageConfig selects and parameterizes a storage backend.
type StorageConfig struct {
	Backend          string
	VectorDimensions int
}

// Factory creates the deck store and vector index for a backend, given the
// data directory to place database files in.
type Factory func(dataDir string, vectorDims int) (DeckStore, VectorIndex, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg == nil || cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// NewStores creates the deck store and vector index for the configured
// backend. Both handles are safe for concurrent use by multiple requests
// and are opened once at process start (no implicit singletons).
func NewStores(cfg *StorageConfig, dataDir string) (DeckStore, VectorIndex, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, nil, deckderr.Errorf(deckderr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}

	dims := defaultVectorDimensions
	if cfg != nil && cfg.VectorDimensions > 0 {
		dims = cfg.VectorDimensions
	}

	return factory(dataDir, dims)
}
