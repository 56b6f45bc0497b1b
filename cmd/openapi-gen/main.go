// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/deckd-dev/deckd/internal/coordinator"
	"github.com/deckd-dev/deckd/internal/index"
	"github.com/deckd-dev/deckd/internal/search"
	"github.com/deckd-dev/deckd/internal/server"
	"github.com/deckd-dev/deckd/internal/store"
	deckderr "github.com/deckd-dev/deckd/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a server with all routes registered and extracts the
// OpenAPI spec that huma generates from the Go type annotations.
func generateSpec() ([]byte, error) {
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		return nil, deckderr.Errorf(deckderr.CodeCLISetupFailure, "creating server: %w", err)
	}

	// No-op service stubs so all routes are registered for schema
	// discovery. Handlers are never invoked during spec generation.
	srv.RegisterServices(server.NewServicesForTest(&stubReader{}, &stubWriter{}, &stubSearcher{}))

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

type stubReader struct{}

func (s *stubReader) CreateDeck(context.Context, string, *string) (*store.Deck, error) {
	return nil, nil
}
func (s *stubReader) GetDeck(context.Context, string) (*store.Deck, error) { return nil, nil }
func (s *stubReader) ListDecks(context.Context) ([]*store.Deck, error)     { return nil, nil }
func (s *stubReader) CountDecks(context.Context) (int64, error)            { return 0, nil }
func (s *stubReader) UpdateDeck(context.Context, string, store.DeckPatch) (*store.Deck, error) {
	return nil, nil
}

func (s *stubReader) ListCards(context.Context, string, store.CardQuery) ([]*store.Flashcard, error) {
	return nil, nil
}

type stubWriter struct{}

func (s *stubWriter) SaveDeck(context.Context, string, *string, []store.NewCard) (*coordinator.SaveResult, error) {
	return nil, nil
}

func (s *stubWriter) AddCards(context.Context, string, []store.NewCard) ([]*store.Flashcard, error) {
	return nil, nil
}
func (s *stubWriter) DeleteDeck(context.Context, string) error { return nil }
func (s *stubWriter) IndexCards(context.Context, string, string, []index.CardDoc) error {
	return nil
}
func (s *stubWriter) DropDeckIndex(context.Context, string) error { return nil }

type stubSearcher struct{}

func (s *stubSearcher) Search(context.Context, search.Request) ([]search.Card, error) {
	return nil, nil
}
