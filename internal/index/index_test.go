// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package index_test

import (
	"context"
	"testing"

	"github.com/deckd-dev/deckd/internal/index"
	"github.com/deckd-dev/deckd/internal/store"
	deckderr "github.com/deckd-dev/deckd/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder returns fixed-width vectors and records the texts it saw.
type stubEmbedder struct {
	texts []string
	fail  bool
}

func (s *stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if s.fail {
		return nil, deckderr.New(deckderr.CodeEmbedUpstreamFailure, "embedder down")
	}
	s.texts = append(s.texts, texts...)
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{float32(len(texts[i])), 1, 0}
	}
	return vecs, nil
}

func (s *stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *stubEmbedder) Dimensions() int { return 3 }

// memVectorIndex is an in-memory store.VectorIndex recording calls.
type memVectorIndex struct {
	added       []store.VectorRecord
	removed     []map[string]string
	queryCalls  int
	lastK       int
	lastFilter  map[string]string
	queryResult []store.VectorMatch
	failAdd     bool
}

func (m *memVectorIndex) Add(_ context.Context, records []store.VectorRecord) error {
	if m.failAdd {
		return deckderr.New(deckderr.CodeIndexAddFailure, "index down")
	}
	m.added = append(m.added, records...)
	return nil
}

func (m *memVectorIndex) RemoveWhere(_ context.Context, filter map[string]string) error {
	m.removed = append(m.removed, filter)
	return nil
}

func (m *memVectorIndex) Query(_ context.Context, _ []float32, k int, filter map[string]string) ([]store.VectorMatch, error) {
	m.queryCalls++
	m.lastK = k
	m.lastFilter = filter
	return m.queryResult, nil
}

func (m *memVectorIndex) DeckIDs(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	var ids []string
	for _, r := range m.added {
		id := r.Metadata[store.MetaDeckID]
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memVectorIndex) Close() error { return nil }

func TestAdapter_AddCards(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{}
	vec := &memVectorIndex{}
	a := index.New(vec, emb)

	err := a.AddCards(ctx, "deck-1", "imported", []index.CardDoc{
		{ID: "c1", Question: "What is a lake?", Answer: "An inland body of water"},
		{ID: "c2", Question: "What is a sea?", Answer: "A large body of salt water"},
	})
	require.NoError(t, err)

	// Documents are question + newline + answer.
	require.Len(t, emb.texts, 2)
	assert.Equal(t, "What is a lake?\nAn inland body of water", emb.texts[0])

	require.Len(t, vec.added, 2)
	rec := vec.added[0]
	assert.Equal(t, "c1", rec.ID)
	assert.Equal(t, "deck-1", rec.Metadata[store.MetaDeckID])
	assert.Equal(t, "What is a lake?", rec.Metadata[store.MetaQuestion])
	assert.Equal(t, "An inland body of water", rec.Metadata[store.MetaAnswer])
	assert.Equal(t, "imported", rec.Metadata[store.MetaSource])
}

func TestAdapter_AddCardsEmptyBatch(t *testing.T) {
	a := index.New(&memVectorIndex{}, &stubEmbedder{})
	assert.NoError(t, a.AddCards(context.Background(), "deck-1", "", nil))
}

func TestAdapter_AddCardsEmbedderFailure(t *testing.T) {
	vec := &memVectorIndex{}
	a := index.New(vec, &stubEmbedder{fail: true})

	err := a.AddCards(context.Background(), "deck-1", "", []index.CardDoc{{ID: "c1", Question: "q", Answer: "a"}})
	require.Error(t, err)
	assert.True(t, deckderr.IsUpstreamFailure(err))
	assert.Empty(t, vec.added)
}

func TestAdapter_RemoveDeck(t *testing.T) {
	vec := &memVectorIndex{}
	a := index.New(vec, &stubEmbedder{})

	require.NoError(t, a.RemoveDeck(context.Background(), "deck-9"))
	require.Len(t, vec.removed, 1)
	assert.Equal(t, map[string]string{store.MetaDeckID: "deck-9"}, vec.removed[0])
}

func TestAdapter_QueryScoping(t *testing.T) {
	ctx := context.Background()
	vec := &memVectorIndex{queryResult: []store.VectorMatch{{ID: "c1", Distance: 0.1}}}
	a := index.New(vec, &stubEmbedder{})

	matches, err := a.Query(ctx, "bodies of water", 5, "")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.Equal(t, 5, vec.lastK)
	assert.Nil(t, vec.lastFilter)

	_, err = a.Query(ctx, "bodies of water", 5, "deck-2")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{store.MetaDeckID: "deck-2"}, vec.lastFilter)
}
