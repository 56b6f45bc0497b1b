// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package store

import "context"

// Metadata keys carried on every vector record.
const (
	MetaCardID   = "cardId"
	MetaDeckID   = "deckId"
	MetaQuestion = "question"
	MetaAnswer   = "answer"
	MetaSource   = "source"
)

// VectorRecord is the index-side projection of a flashcard: the embedding of
// its question+answer text plus filterable/returnable metadata. It shares the
// flashcard's id, which is the sole join key between the two stores.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Metadata  map[string]string
}

// VectorMatch is one ranked result from a nearest-neighbor query.
// Lower distance means more similar; 0.0 is an exact match.
type VectorMatch struct {
	ID       string
	Metadata map[string]string
	Distance float64
}

// VectorIndex is the semantic nearest-neighbor index. It carries no business
// logic: add upserts by id, RemoveWhere deletes by exact-match metadata
// filter, Query returns up to k nearest matches ordered by ascending
// distance. Add and RemoveWhere are idempotent, so callers may retry them.
type VectorIndex interface {
	Add(ctx context.Context, records []VectorRecord) error
	RemoveWhere(ctx context.Context, filter map[string]string) error
	Query(ctx context.Context, embedding []float32, k int, filter map[string]string) ([]VectorMatch, error)

	// DeckIDs returns the distinct deckId values present in the index,
	// for orphan reconciliation.
	DeckIDs(ctx context.Context) ([]string, error)

	Close() error
}
