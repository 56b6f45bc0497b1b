// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

// Package embedding turns text into vectors. The rest of the system treats
// the model as an opaque text-to-vector function behind the Embedder
// interface; only this package knows about providers.
package embedding

import "context"

// Embedder computes embeddings for documents and queries.
type Embedder interface {
	// EmbedDocuments embeds a batch of document texts, preserving order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the width of the vectors this embedder produces.
	Dimensions() int
}
