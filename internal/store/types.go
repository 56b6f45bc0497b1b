// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package store

import (
	"strings"
	"time"

	deckderr "github.com/deckd-dev/deckd/pkg/errors"
)

// Deck is a named collection of flashcards with optional provenance.
type Deck struct {
	ID        string
	Title     string
	Source    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IndexState tracks a flashcard's lifecycle in the vector index. Cards are
// created unindexed and move to indexed once the vector write is confirmed.
// Deck deletion removes card rows physically, so no removal state exists.
// Reconciliation acts on this state rather than inferring it from the
// absence of errors.
type IndexState string

const (
	IndexStateUnindexed IndexState = "unindexed"
	IndexStateIndexed   IndexState = "indexed"
)

// Flashcard is a question/answer pair belonging to exactly one deck.
// Metadata is an optional string-keyed, string-valued map validated at the
// boundary; it is stored as JSON but never interpreted by the store.
type Flashcard struct {
	ID         string
	DeckID     string
	Question   string
	Answer     string
	Metadata   map[string]string
	IndexState IndexState
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewCard is the input shape for batch card creation.
type NewCard struct {
	Question string
	Answer   string
	Metadata map[string]string
}

// DeckPatch carries optional updates for a deck. Nil fields are left
// untouched.
type DeckPatch struct {
	Title  *string
	Source *string
}

// CardQuery filters and pages a card listing. Text, when non-empty,
// restricts results to cards whose question contains it as a substring.
type CardQuery struct {
	Text   string
	Limit  int
	Offset int
}

const (
	// DefaultCardLimit applies when CardQuery.Limit is unset or non-positive.
	DefaultCardLimit = 50
	// MaxCardLimit is the upper clamp for CardQuery.Limit.
	MaxCardLimit = 200
)

// Normalize clamps limit to (0, MaxCardLimit] and offset to >= 0.
func (q CardQuery) Normalize() CardQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultCardLimit
	}
	if q.Limit > MaxCardLimit {
		q.Limit = MaxCardLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// ValidateNewCards rejects the whole batch if it is empty or any entry lacks
// a non-empty question or answer. The batch is all-or-nothing: callers must
// not persist any card from a batch that fails validation.
func ValidateNewCards(cards []NewCard) error {
	if len(cards) == 0 {
		return deckderr.New(deckderr.CodeStoreCardInvalid, "cards must be a non-empty array")
	}
	for i, c := range cards {
		if strings.TrimSpace(c.Question) == "" {
			return deckderr.Errorf(deckderr.CodeStoreCardInvalid, "card %d: question must be a non-empty string", i)
		}
		if strings.TrimSpace(c.Answer) == "" {
			return deckderr.Errorf(deckderr.CodeStoreCardInvalid, "card %d: answer must be a non-empty string", i)
		}
	}
	return nil
}

// ValidateDeckTitle rejects missing or blank deck titles.
func ValidateDeckTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return deckderr.New(deckderr.CodeStoreDeckInvalid, "title is required (non-empty string)")
	}
	return nil
}
