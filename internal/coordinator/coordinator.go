// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

// Package coordinator sequences writes across the relational store and the
// vector index, which share no transaction. Both mutation paths go
// relational-first, keeping the relational store the conservative source of
// truth: a card can fail to become searchable, but a deleted card can never
// incorrectly remain searchable as real.
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/deckd-dev/deckd/internal/index"
	"github.com/deckd-dev/deckd/internal/store"
	deckderr "github.com/deckd-dev/deckd/pkg/errors"
)

// Coordinator orchestrates create/delete operations across both stores and
// repairs the cross-store invariant when partial failures leave it violated.
type Coordinator struct {
	decks  store.DeckStore
	idx    *index.Adapter
	locks  *deckLocks
	retry  RetryPolicy
	logger *slog.Logger
}

// New creates a Coordinator.
func New(decks store.DeckStore, idx *index.Adapter, retry RetryPolicy) *Coordinator {
	return &Coordinator{
		decks:  decks,
		idx:    idx,
		locks:  newDeckLocks(),
		retry:  retry.normalize(),
		logger: slog.Default(),
	}
}

// SaveResult reports the outcome of a deck save. Indexed is false when the
// relational transaction committed but the vector add failed: the deck and
// cards exist and are authoritative, yet are not searchable until reindexed.
type SaveResult struct {
	Deck    *store.Deck
	Cards   []*store.Flashcard
	Indexed bool
}

// SaveDeck runs the save path: one relational transaction creating the deck
// and all cards, then the vector add. A relational failure returns before
// anything is indexed; an index failure returns the committed result
// together with an index-lag error the caller can distinguish from a total
// failure.
func (c *Coordinator) SaveDeck(ctx context.Context, title string, source *string, cards []store.NewCard) (*SaveResult, error) {
	deck, created, err := c.decks.CreateDeckWithCards(ctx, title, source, cards)
	if err != nil {
		return nil, err
	}

	release := c.locks.acquire(deck.ID)
	defer release()

	if err := c.indexCards(ctx, deck.ID, sourceString(deck.Source), toDocs(created)); err != nil {
		c.logger.WarnContext(ctx, "deck saved but not indexed",
			"deck_id", deck.ID,
			"cards", len(created),
			"error", err,
		)
		return &SaveResult{Deck: deck, Cards: created, Indexed: false},
			deckderr.Wrap(err, deckderr.CodeIndexLag, "deck saved but not yet searchable", deckderr.FieldDeckID(deck.ID))
	}

	return &SaveResult{Deck: deck, Cards: created, Indexed: true}, nil
}

// AddCards appends a card batch to an existing deck and indexes it.
// Same contract as SaveDeck: relational commit first, then vector add, with
// an index-lag error when only the second step fails.
func (c *Coordinator) AddCards(ctx context.Context, deckID string, cards []store.NewCard) ([]*store.Flashcard, error) {
	deck, err := c.decks.GetDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}

	release := c.locks.acquire(deckID)
	defer release()

	created, err := c.decks.CreateCards(ctx, deckID, cards)
	if err != nil {
		return nil, err
	}

	if err := c.indexCards(ctx, deckID, sourceString(deck.Source), toDocs(created)); err != nil {
		return created, deckderr.Wrap(err, deckderr.CodeIndexLag, "cards saved but not yet searchable", deckderr.FieldDeckID(deckID))
	}

	return created, nil
}

// DeleteDeck runs the delete path: relational cascade delete first, which
// removes the deck from every authoritative listing, then vector removal.
// When only the vector removal fails, the deck is still gone; the stale
// records stay invisible (the search executor filters them) until the next
// reconciliation pass purges them, so no error is surfaced for that case.
func (c *Coordinator) DeleteDeck(ctx context.Context, id string) error {
	release := c.locks.acquire(id)
	defer release()

	if err := c.decks.DeleteDeck(ctx, id); err != nil {
		return err
	}

	err := withRetry(ctx, c.retry, "remove-deck", func(ctx context.Context) error {
		return c.idx.RemoveDeck(ctx, id)
	})
	if err != nil {
		c.logger.WarnContext(ctx, "deck deleted but vector records remain until reconciliation",
			"deck_id", id,
			"error", err,
		)
	}
	return nil
}

// IndexCards indexes already-persisted cards into the vector store (the raw
// maintenance operation behind POST /index). Cards that exist relationally
// are marked indexed on success.
func (c *Coordinator) IndexCards(ctx context.Context, deckID, source string, cards []index.CardDoc) error {
	if deckID == "" {
		return deckderr.New(deckderr.CodeServerRequestInvalid, "deckId is required")
	}
	if len(cards) == 0 {
		return deckderr.New(deckderr.CodeServerRequestInvalid, "cards must be a non-empty array")
	}

	release := c.locks.acquire(deckID)
	defer release()

	return c.indexCards(ctx, deckID, source, cards)
}

// DropDeckIndex removes all vector records for a deck (the raw maintenance
// operation behind DELETE /index/decks/{deckId}).
func (c *Coordinator) DropDeckIndex(ctx context.Context, deckID string) error {
	release := c.locks.acquire(deckID)
	defer release()

	return withRetry(ctx, c.retry, "remove-deck", func(ctx context.Context) error {
		return c.idx.RemoveDeck(ctx, deckID)
	})
}

// ReindexDeck re-adds every card of a deck to the vector index, repairing
// the invariant after a failed save-path index step.
func (c *Coordinator) ReindexDeck(ctx context.Context, deckID string) error {
	deck, err := c.decks.GetDeck(ctx, deckID)
	if err != nil {
		return err
	}

	release := c.locks.acquire(deckID)
	defer release()

	cards, err := c.listAllCards(ctx, deckID)
	if err != nil {
		return err
	}

	return c.indexCards(ctx, deckID, sourceString(deck.Source), toDocs(cards))
}

// Reconcile restores the cross-store invariant in both directions: it
// purges vector records whose deck no longer exists relationally, and
// re-indexes cards whose vector write was never confirmed.
func (c *Coordinator) Reconcile(ctx context.Context) error {
	var errs []error

	deckIDs, err := c.idx.DeckIDs(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	for _, deckID := range deckIDs {
		exists, err := c.decks.DeckExists(ctx, deckID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if exists {
			continue
		}

		release := c.locks.acquire(deckID)
		err = c.idx.RemoveDeck(ctx, deckID)
		release()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.logger.InfoContext(ctx, "purged orphaned vector records", "deck_id", deckID)
	}

	unindexed, err := c.decks.ListUnindexedCards(ctx)
	if err != nil {
		errs = append(errs, err)
		unindexed = nil
	}
	for deckID, cards := range groupByDeck(unindexed) {
		deck, err := c.decks.GetDeck(ctx, deckID)
		if err != nil {
			if deckderr.IsNotFound(err) {
				continue // deck deleted since listing
			}
			errs = append(errs, err)
			continue
		}

		release := c.locks.acquire(deckID)
		err = c.indexCards(ctx, deckID, sourceString(deck.Source), toDocs(cards))
		release()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.logger.InfoContext(ctx, "re-indexed unindexed cards", "deck_id", deckID, "cards", len(cards))
	}

	if len(errs) > 0 {
		return deckderr.Join(errs...)
	}
	return nil
}

// RunReconcileLoop runs Reconcile every interval until ctx is cancelled.
func (c *Coordinator) RunReconcileLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Reconcile(ctx); err != nil {
				c.logger.WarnContext(ctx, "reconciliation pass failed", "error", err)
			}
		}
	}
}

// indexCards performs the retried vector add and confirms the indexed state
// of cards that exist relationally. Callers hold the deck lock.
func (c *Coordinator) indexCards(ctx context.Context, deckID, source string, cards []index.CardDoc) error {
	err := withRetry(ctx, c.retry, "add-cards", func(ctx context.Context) error {
		return c.idx.AddCards(ctx, deckID, source, cards)
	})
	if err != nil {
		return err
	}

	ids := make([]string, len(cards))
	for i, card := range cards {
		ids[i] = card.ID
	}
	if err := c.decks.MarkCardsIndexed(ctx, ids); err != nil {
		// The vectors are in place; the state column lags and the next
		// reconciliation pass re-upserts them harmlessly.
		c.logger.WarnContext(ctx, "failed to mark cards indexed", "deck_id", deckID, "error", err)
	}
	return nil
}

func (c *Coordinator) listAllCards(ctx context.Context, deckID string) ([]*store.Flashcard, error) {
	var all []*store.Flashcard
	for offset := 0; ; offset += store.MaxCardLimit {
		page, err := c.decks.ListCards(ctx, deckID, store.CardQuery{Limit: store.MaxCardLimit, Offset: offset})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < store.MaxCardLimit {
			return all, nil
		}
	}
}

func toDocs(cards []*store.Flashcard) []index.CardDoc {
	docs := make([]index.CardDoc, len(cards))
	for i, card := range cards {
		docs[i] = index.CardDoc{ID: card.ID, Question: card.Question, Answer: card.Answer}
	}
	return docs
}

func groupByDeck(cards []*store.Flashcard) map[string][]*store.Flashcard {
	grouped := map[string][]*store.Flashcard{}
	for _, card := range cards {
		grouped[card.DeckID] = append(grouped[card.DeckID], card)
	}
	return grouped
}

func sourceString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
