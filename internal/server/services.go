// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package server

import (
	"context"

	"github.com/deckd-dev/deckd/internal/coordinator"
	"github.com/deckd-dev/deckd/internal/index"
	"github.com/deckd-dev/deckd/internal/search"
	"github.com/deckd-dev/deckd/internal/store"
	deckderr "github.com/deckd-dev/deckd/pkg/errors"
)

// DeckReader provides the read-only deck operations handlers need.
// The relational deck store satisfies this directly.
type DeckReader interface {
	CreateDeck(ctx context.Context, title string, source *string) (*store.Deck, error)
	GetDeck(ctx context.Context, id string) (*store.Deck, error)
	ListDecks(ctx context.Context) ([]*store.Deck, error)
	UpdateDeck(ctx context.Context, id string, patch store.DeckPatch) (*store.Deck, error)
	CountDecks(ctx context.Context) (int64, error)
	ListCards(ctx context.Context, deckID string, q store.CardQuery) ([]*store.Flashcard, error)
}

// DeckWriter provides the cross-store mutation operations. The
// consistency coordinator satisfies this directly.
type DeckWriter interface {
	SaveDeck(ctx context.Context, title string, source *string, cards []store.NewCard) (*coordinator.SaveResult, error)
	AddCards(ctx context.Context, deckID string, cards []store.NewCard) ([]*store.Flashcard, error)
	DeleteDeck(ctx context.Context, id string) error
	IndexCards(ctx context.Context, deckID, source string, cards []index.CardDoc) error
	DropDeckIndex(ctx context.Context, deckID string) error
}

// Searcher executes interpreted semantic queries. The search executor
// satisfies this directly.
type Searcher interface {
	Search(ctx context.Context, req search.Request) ([]search.Card, error)
}

// Services holds dependencies injected into route handlers.
// Each field is an interface so subsystems can be mocked in tests.
// Use NewServices to ensure all required services are provided.
type Services struct {
	decks  DeckReader
	writer DeckWriter
	search Searcher
}

// NewServices creates a Services instance with validation.
func NewServices(decks DeckReader, writer DeckWriter, searcher Searcher) (*Services, error) {
	if decks == nil {
		return nil, deckderr.New(deckderr.CodeServerConfigInvalid, "deck reader is required")
	}
	if writer == nil {
		return nil, deckderr.New(deckderr.CodeServerConfigInvalid, "deck writer is required")
	}
	if searcher == nil {
		return nil, deckderr.New(deckderr.CodeServerConfigInvalid, "searcher is required")
	}
	return &Services{decks: decks, writer: writer, search: searcher}, nil
}

// NewServicesForTest creates a Services instance for testing. It delegates
// to NewServices to enforce the same validation as production code and
// panics when a required service is missing.
func NewServicesForTest(decks DeckReader, writer DeckWriter, searcher Searcher) *Services {
	svc, err := NewServices(decks, writer, searcher)
	if err != nil {
		panic(err)
	}
	return svc
}
