// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/deckd-dev/deckd/internal/store"
)

// DefaultK is the result count used when the caller does not request one.
const DefaultK = 10

// Querier is the slice of the index adapter the executor needs.
type Querier interface {
	Query(ctx context.Context, query string, k int, deckID string) ([]store.VectorMatch, error)
}

// DeckResolver reports whether a deck still exists relationally. The
// relational store is authoritative, so matches whose deck no longer
// resolves are dropped even when their vector records linger.
type DeckResolver interface {
	DeckExists(ctx context.Context, id string) (bool, error)
}

// Card is the public projection of a search match.
type Card struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Request carries one search invocation. K falls back to the executor's
// configured default when not positive. Exclude terms must already be
// lowercased (ParseQuery output).
type Request struct {
	Query   string
	K       int
	DeckID  string
	Exclude []string
}

// Executor ranks and filters vector index candidates into public cards.
type Executor struct {
	idx      Querier
	decks    DeckResolver
	defaultK int
	logger   *slog.Logger
}

// NewExecutor creates an Executor. defaultK is the result count used for
// requests that do not ask for one; non-positive values fall back to
// DefaultK.
func NewExecutor(idx Querier, decks DeckResolver, defaultK int) *Executor {
	if defaultK <= 0 {
		defaultK = DefaultK
	}
	return &Executor{idx: idx, decks: decks, defaultK: defaultK, logger: slog.Default()}
}

// Search executes one interpreted query: index lookup, stable ascending
// sort by distance, exclusion filtering over the lowercased
// question + " " + answer text, a liveness check against the relational
// store, and projection to the public card shape. Zero matches is a valid
// result, not an error.
func (e *Executor) Search(ctx context.Context, req Request) ([]Card, error) {
	k := req.K
	if k <= 0 {
		k = e.defaultK
	}

	matches, err := e.idx.Query(ctx, req.Query, k, req.DeckID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	cards := make([]Card, 0, len(matches))
	liveDecks := map[string]bool{}
	for _, match := range matches {
		question := match.Metadata[store.MetaQuestion]
		answer := match.Metadata[store.MetaAnswer]

		if excluded(question, answer, req.Exclude) {
			continue
		}

		live, err := e.deckLive(ctx, liveDecks, match.Metadata[store.MetaDeckID])
		if err != nil {
			return nil, err
		}
		if !live {
			e.logger.DebugContext(ctx, "dropped match for deleted deck",
				"card_id", match.ID,
				"deck_id", match.Metadata[store.MetaDeckID],
			)
			continue
		}

		cards = append(cards, Card{ID: match.ID, Question: question, Answer: answer})
	}
	return cards, nil
}

// excluded reports whether any exclude term occurs as a substring of the
// lowercased "question answer" text.
func excluded(question, answer string, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	text := strings.ToLower(question + " " + answer)
	for _, term := range terms {
		if term != "" && strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// deckLive checks deck existence with a per-request cache so a result set
// of n cards from one deck costs one store round trip, not n.
func (e *Executor) deckLive(ctx context.Context, cache map[string]bool, deckID string) (bool, error) {
	if deckID == "" {
		return false, nil
	}
	if live, ok := cache[deckID]; ok {
		return live, nil
	}
	live, err := e.decks.DeckExists(ctx, deckID)
	if err != nil {
		return false, err
	}
	cache[deckID] = live
	return live, nil
}
