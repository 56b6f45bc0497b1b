// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package sqlite_test

import (
	"context"
	"testing"

	"github.com/deckd-dev/deckd/internal/store"
	"github.com/deckd-dev/deckd/internal/store/sqlite"
	deckderr "github.com/deckd-dev/deckd/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDeckStore(t *testing.T) *sqlite.DeckStore {
	t.Helper()
	s, err := sqlite.NewDeckStore(testDBPath(t, "decks"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDeckStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newDeckStore(t)

	deck, err := s.CreateDeck(ctx, "Physics", strptr("textbook ch. 3"))
	require.NoError(t, err)
	assert.NotEmpty(t, deck.ID)
	assert.Equal(t, "Physics", deck.Title)
	require.NotNil(t, deck.Source)
	assert.Equal(t, "textbook ch. 3", *deck.Source)
	assert.False(t, deck.CreatedAt.IsZero())

	got, err := s.GetDeck(ctx, deck.ID)
	require.NoError(t, err)
	assert.Equal(t, deck.ID, got.ID)
	assert.Equal(t, "Physics", got.Title)
}

func TestDeckStore_CreateRejectsBlankTitle(t *testing.T) {
	ctx := context.Background()
	s := newDeckStore(t)

	_, err := s.CreateDeck(ctx, "   ", nil)
	require.Error(t, err)
	assert.True(t, deckderr.IsInvalidInput(err))
}

func TestDeckStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newDeckStore(t)

	first, err := s.CreateDeck(ctx, "first", nil)
	require.NoError(t, err)
	second, err := s.CreateDeck(ctx, "second", nil)
	require.NoError(t, err)

	decks, err := s.ListDecks(ctx)
	require.NoError(t, err)
	require.Len(t, decks, 2)
	assert.Equal(t, second.ID, decks[0].ID)
	assert.Equal(t, first.ID, decks[1].ID)
}

func TestDeckStore_Update(t *testing.T) {
	ctx := context.Background()
	s := newDeckStore(t)

	deck, err := s.CreateDeck(ctx, "old title", nil)
	require.NoError(t, err)

	updated, err := s.UpdateDeck(ctx, deck.ID, store.DeckPatch{Title: strptr("new title")})
	require.NoError(t, err)
	assert.Equal(t, "new title", updated.Title)
	assert.Nil(t, updated.Source)
	assert.Equal(t, deck.CreatedAt.UTC(), updated.CreatedAt.UTC())

	withSource, err := s.UpdateDeck(ctx, deck.ID, store.DeckPatch{Source: strptr("imported")})
	require.NoError(t, err)
	assert.Equal(t, "new title", withSource.Title)
	require.NotNil(t, withSource.Source)
	assert.Equal(t, "imported", *withSource.Source)
}

func TestDeckStore_UpdateUnknownDeck(t *testing.T) {
	ctx := context.Background()
	s := newDeckStore(t)

	_, err := s.UpdateDeck(ctx, "no-such-deck", store.DeckPatch{Title: strptr("x")})
	require.Error(t, err)
	assert.True(t, deckderr.IsNotFound(err))
}

func TestDeckStore_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := newDeckStore(t)

	deck, err := s.CreateDeck(ctx, "doomed", nil)
	require.NoError(t, err)
	_, err = s.CreateCards(ctx, deck.ID, []store.NewCard{
		{Question: "q1", Answer: "a1"},
		{Question: "q2", Answer: "a2"},
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteDeck(ctx, deck.ID))

	_, err = s.GetDeck(ctx, deck.ID)
	assert.True(t, deckderr.IsNotFound(err))

	// Cards must be gone with the deck.
	_, err = s.ListCards(ctx, deck.ID, store.CardQuery{})
	assert.True(t, deckderr.IsNotFound(err))

	unindexed, err := s.ListUnindexedCards(ctx)
	require.NoError(t, err)
	assert.Empty(t, unindexed)
}

func TestDeckStore_DeleteUnknownDeck(t *testing.T) {
	ctx := context.Background()
	s := newDeckStore(t)

	err := s.DeleteDeck(ctx, "no-such-deck")
	require.Error(t, err)
	assert.True(t, deckderr.IsNotFound(err))
}

func TestDeckStore_CreateCardsBatchAtomicity(t *testing.T) {
	ctx := context.Background()
	s := newDeckStore(t)

	deck, err := s.CreateDeck(ctx, "atomic", nil)
	require.NoError(t, err)

	_, err = s.CreateCards(ctx, deck.ID, []store.NewCard{
		{Question: "valid q", Answer: "valid a"},
		{Question: "also valid", Answer: "also valid"},
		{Question: "", Answer: "missing question"},
	})
	require.Error(t, err)
	assert.True(t, deckderr.IsInvalidInput(err))

	// No card from the rejected batch may be persisted.
	cards, err := s.ListCards(ctx, deck.ID, store.CardQuery{})
	require.NoError(t, err)
	assert.Empty(t, cards)
}

func TestDeckStore_CreateCardsUnknownDeck(t *testing.T) {
	ctx := context.Background()
	s := newDeckStore(t)

	_, err := s.CreateCards(ctx, "no-such-deck", []store.NewCard{{Question: "q", Answer: "a"}})
	require.Error(t, err)
	assert.True(t, deckderr.IsNotFound(err))
}

func TestDeckStore_CreateDeckWithCards(t *testing.T) {
	ctx := context.Background()
	s := newDeckStore(t)

	deck, cards, err := s.CreateDeckWithCards(ctx, "Geography", strptr("user input"), []store.NewCard{
		{Question: "What is a lake?", Answer: "An inland body of water"},
		{Question: "What is a sea?", Answer: "A large body of salt water", Metadata: map[string]string{"difficulty": "easy"}},
	})
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, deck.ID, cards[0].DeckID)
	assert.Equal(t, store.IndexStateUnindexed, cards[0].IndexState)

	listed, err := s.ListCards(ctx, deck.ID, store.CardQuery{})
	require.NoError(t, err)
	require.Len(t, listed, 2)

	var withMeta *store.Flashcard
	for _, c := range listed {
		if c.Question == "What is a sea?" {
			withMeta = c
		}
	}
	require.NotNil(t, withMeta)
	assert.Equal(t, "easy", withMeta.Metadata["difficulty"])
}

func TestDeckStore_CreateDeckWithCardsRollsBackDeck(t *testing.T) {
	ctx := context.Background()
	s := newDeckStore(t)

	_, _, err := s.CreateDeckWithCards(ctx, "half-saved", nil, []store.NewCard{
		{Question: "ok", Answer: "ok"},
		{Question: "bad", Answer: ""},
	})
	require.Error(t, err)
	assert.True(t, deckderr.IsInvalidInput(err))

	decks, err := s.ListDecks(ctx)
	require.NoError(t, err)
	assert.Empty(t, decks)
}

func TestDeckStore_ListCardsFilterAndPaging(t *testing.T) {
	ctx := context.Background()
	s := newDeckStore(t)

	deck, err := s.CreateDeck(ctx, "filtering", nil)
	require.NoError(t, err)
	_, err = s.CreateCards(ctx, deck.ID, []store.NewCard{
		{Question: "What is a lake?", Answer: "a"},
		{Question: "What is a LAKE monster?", Answer: "b"},
		{Question: "What is a river?", Answer: "c"},
	})
	require.NoError(t, err)

	// Substring filter is case-sensitive as stored.
	cards, err := s.ListCards(ctx, deck.ID, store.CardQuery{Text: "lake"})
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "What is a lake?", cards[0].Question)

	// Paging.
	page, err := s.ListCards(ctx, deck.ID, store.CardQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := s.ListCards(ctx, deck.ID, store.CardQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestDeckStore_IndexStateLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newDeckStore(t)

	deck, cards, err := s.CreateDeckWithCards(ctx, "states", nil, []store.NewCard{
		{Question: "q1", Answer: "a1"},
		{Question: "q2", Answer: "a2"},
	})
	require.NoError(t, err)

	unindexed, err := s.ListUnindexedCards(ctx)
	require.NoError(t, err)
	assert.Len(t, unindexed, 2)

	require.NoError(t, s.MarkCardsIndexed(ctx, []string{cards[0].ID, cards[1].ID}))

	unindexed, err = s.ListUnindexedCards(ctx)
	require.NoError(t, err)
	assert.Empty(t, unindexed)

	listed, err := s.ListCards(ctx, deck.ID, store.CardQuery{})
	require.NoError(t, err)
	for _, c := range listed {
		assert.Equal(t, store.IndexStateIndexed, c.IndexState)
	}
}

func TestDeckStore_CountDecks(t *testing.T) {
	ctx := context.Background()
	s := newDeckStore(t)

	n, err := s.CountDecks(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	_, err = s.CreateDeck(ctx, "one", nil)
	require.NoError(t, err)

	n, err = s.CountDecks(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
