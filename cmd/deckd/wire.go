// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package main

import (
	"errors"

	"github.com/deckd-dev/deckd/internal/config"
	"github.com/deckd-dev/deckd/internal/coordinator"
	"github.com/deckd-dev/deckd/internal/embedding"
	"github.com/deckd-dev/deckd/internal/index"
	"github.com/deckd-dev/deckd/internal/search"
	"github.com/deckd-dev/deckd/internal/server"
	"github.com/deckd-dev/deckd/internal/store"
	_ "github.com/deckd-dev/deckd/internal/store/sqlite" // register sqlite backend
	deckderr "github.com/deckd-dev/deckd/pkg/errors"
)

// App holds all wired subsystems and manages their lifecycle.
type App struct {
	Server      *server.Server
	Decks       store.DeckStore
	Vectors     store.VectorIndex
	Coordinator *coordinator.Coordinator
	Executor    *search.Executor
}

// WireApp creates all subsystems and wires them together. Store handles are
// opened once here and passed by reference to every component that needs
// them; Close releases them when the process shuts down.
func WireApp(cfg *config.Config) (*App, error) {
	dataDir := cfg.Storage.DataDir
	if dataDir == "" {
		var err error
		dataDir, err = config.DefaultDataDir()
		if err != nil {
			return nil, err
		}
	}

	// 1. Relational store and vector index.
	decks, vectors, err := store.NewStores(&store.StorageConfig{
		Backend:          cfg.Storage.Backend,
		VectorDimensions: cfg.Embedding.Dimensions,
	}, dataDir)
	if err != nil {
		return nil, deckderr.Wrapf(err, deckderr.CodeCLISetupFailure, "opening stores in %s", dataDir)
	}

	// 2. Embedder.
	embedder, err := embedding.NewOpenAI(embedding.Config{
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		BaseURL:    cfg.Embedding.BaseURL,
	})
	if err != nil {
		_ = closeStores(decks, vectors)
		return nil, deckderr.Wrapf(err, deckderr.CodeCLISetupFailure, "creating embedder")
	}

	// 3. Index adapter and consistency coordinator.
	idx := index.New(vectors, embedder)
	coord := coordinator.New(decks, idx, coordinator.RetryPolicy{
		Attempts: cfg.Index.RetryAttempts,
		Backoff:  cfg.Index.RetryBackoff,
	})

	// 4. Search executor.
	executor := search.NewExecutor(idx, decks, cfg.Search.DefaultK)

	// 5. HTTP server.
	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Networking.Listen,
		CORSOrigins: cfg.Networking.CORSOrigins,
	})
	if err != nil {
		_ = closeStores(decks, vectors)
		return nil, deckderr.Wrapf(err, deckderr.CodeCLISetupFailure, "creating server")
	}

	services, err := server.NewServices(decks, coord, executor)
	if err != nil {
		_ = closeStores(decks, vectors)
		return nil, err
	}
	srv.RegisterServices(services)

	return &App{
		Server:      srv,
		Decks:       decks,
		Vectors:     vectors,
		Coordinator: coord,
		Executor:    executor,
	}, nil
}

// Close releases the store handles held by the app.
func (a *App) Close() error {
	return closeStores(a.Decks, a.Vectors)
}

func closeStores(decks store.DeckStore, vectors store.VectorIndex) error {
	var errs []error
	if vectors != nil {
		if err := vectors.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if decks != nil {
		if err := decks.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
