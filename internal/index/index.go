// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

// Package index adapts the semantic vector index for flashcards: it couples
// an embedder with a vector store so callers deal only in card text. It has
// no business logic of its own; the contract is nearest-neighbor lookup with
// optional exact-match metadata filtering.
package index

import (
	"context"
	"log/slog"

	"github.com/deckd-dev/deckd/internal/embedding"
	"github.com/deckd-dev/deckd/internal/store"
	deckderr "github.com/deckd-dev/deckd/pkg/errors"
)

// CardDoc is the card shape the index ingests: an already-persisted card
// identified by the id it shares with the relational store.
type CardDoc struct {
	ID       string
	Question string
	Answer   string
}

// Adapter embeds card text and talks to the vector index.
// All operations are idempotent: Add upserts by id and RemoveDeck deletes by
// filter, so the coordinator may retry either on transient failure.
type Adapter struct {
	vectors  store.VectorIndex
	embedder embedding.Embedder
	logger   *slog.Logger
}

// New creates an Adapter.
func New(vectors store.VectorIndex, embedder embedding.Embedder) *Adapter {
	return &Adapter{
		vectors:  vectors,
		embedder: embedder,
		logger:   slog.Default(),
	}
}

// Document returns the text that gets embedded for a card.
func Document(question, answer string) string {
	return question + "\n" + answer
}

// AddCards embeds and upserts the given cards, tagging each record with the
// deck id, question, answer, and deck source for filtering and projection.
func (a *Adapter) AddCards(ctx context.Context, deckID, source string, cards []CardDoc) error {
	if len(cards) == 0 {
		return nil
	}

	texts := make([]string, len(cards))
	for i, c := range cards {
		texts[i] = Document(c.Question, c.Answer)
	}

	embeddings, err := a.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return deckderr.Wrapf(err, deckderr.CodeIndexAddFailure, "embedding %d cards", len(cards))
	}
	if len(embeddings) != len(cards) {
		return deckderr.Errorf(deckderr.CodeIndexAddFailure,
			"embedder returned %d vectors for %d cards", len(embeddings), len(cards))
	}

	records := make([]store.VectorRecord, len(cards))
	for i, c := range cards {
		records[i] = store.VectorRecord{
			ID:        c.ID,
			Embedding: embeddings[i],
			Metadata: map[string]string{
				store.MetaCardID:   c.ID,
				store.MetaDeckID:   deckID,
				store.MetaQuestion: c.Question,
				store.MetaAnswer:   c.Answer,
				store.MetaSource:   source,
			},
		}
	}

	if err := a.vectors.Add(ctx, records); err != nil {
		return err
	}

	a.logger.DebugContext(ctx, "indexed cards", "deck_id", deckID, "count", len(cards))
	return nil
}

// RemoveDeck deletes every vector record belonging to a deck.
func (a *Adapter) RemoveDeck(ctx context.Context, deckID string) error {
	return a.vectors.RemoveWhere(ctx, map[string]string{store.MetaDeckID: deckID})
}

// Query embeds the search text and returns up to k nearest matches, ordered
// by ascending distance. A non-empty deckID restricts matches to that deck.
func (a *Adapter) Query(ctx context.Context, text string, k int, deckID string) ([]store.VectorMatch, error) {
	vec, err := a.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, deckderr.Wrapf(err, deckderr.CodeIndexQueryFailure, "embedding query")
	}

	var filter map[string]string
	if deckID != "" {
		filter = map[string]string{store.MetaDeckID: deckID}
	}

	return a.vectors.Query(ctx, vec, k, filter)
}

// DeckIDs returns the distinct deck ids present in the index.
func (a *Adapter) DeckIDs(ctx context.Context) ([]string, error) {
	return a.vectors.DeckIDs(ctx)
}
