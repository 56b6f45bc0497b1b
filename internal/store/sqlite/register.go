// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package sqlite

import (
	"os"
	"path/filepath"

	"github.com/deckd-dev/deckd/internal/store"
	deckderr "github.com/deckd-dev/deckd/pkg/errors"
)

func init() {
	store.RegisterBackend("sqlite", newStores)
}

// newStores creates the deck store and vector index under dataDir.
// The two live in separate database files so an index rebuild can drop the
// vector database without touching the authoritative records.
func newStores(dataDir string, vectorDims int) (store.DeckStore, store.VectorIndex, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "creating data directory %s: %w", dataDir, err)
	}

	decks, err := NewDeckStore(filepath.Join(dataDir, "decks.db"))
	if err != nil {
		return nil, nil, err
	}

	vectors, err := NewVectorIndex(filepath.Join(dataDir, "vectors.db"), vectorDims)
	if err != nil {
		_ = decks.Close()
		return nil, nil, err
	}

	return decks, vectors, nil
}
