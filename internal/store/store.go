// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package store

import "context"

// DeckStore is the authoritative relational store for decks and flashcards.
// It owns identity, referential integrity, and transactional bulk insert.
type DeckStore interface {
	CreateDeck(ctx context.Context, title string, source *string) (*Deck, error)
	GetDeck(ctx context.Context, id string) (*Deck, error)
	ListDecks(ctx context.Context) ([]*Deck, error)
	UpdateDeck(ctx context.Context, id string, patch DeckPatch) (*Deck, error)
	DeleteDeck(ctx context.Context, id string) error
	DeckExists(ctx context.Context, id string) (bool, error)
	CountDecks(ctx context.Context) (int64, error)

	// CreateCards persists a batch of cards for an existing deck inside a
	// single transaction: either every card commits or none do.
	CreateCards(ctx context.Context, deckID string, cards []NewCard) ([]*Flashcard, error)

	// CreateDeckWithCards creates the deck and its cards in one transaction,
	// so a card validation failure rolls back the deck creation too.
	CreateDeckWithCards(ctx context.Context, title string, source *string, cards []NewCard) (*Deck, []*Flashcard, error)

	ListCards(ctx context.Context, deckID string, q CardQuery) ([]*Flashcard, error)

	// MarkCardsIndexed records that the given cards are present in the
	// vector index.
	MarkCardsIndexed(ctx context.Context, ids []string) error

	// ListUnindexedCards returns cards whose vector write has not been
	// confirmed, for the reconciliation/repair path.
	ListUnindexedCards(ctx context.Context) ([]*Flashcard, error)

	Close() error
}
