// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package store_test

import (
	"testing"

	"github.com/deckd-dev/deckd/internal/store"
	deckderr "github.com/deckd-dev/deckd/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateNewCards(t *testing.T) {
	valid := store.NewCard{Question: "What is a lake?", Answer: "A body of water"}

	t.Run("accepts valid batch", func(t *testing.T) {
		assert.NoError(t, store.ValidateNewCards([]store.NewCard{valid, valid}))
	})

	t.Run("rejects empty batch", func(t *testing.T) {
		err := store.ValidateNewCards(nil)
		require.Error(t, err)
		assert.True(t, deckderr.IsInvalidInput(err))
	})

	t.Run("rejects batch with one invalid card", func(t *testing.T) {
		err := store.ValidateNewCards([]store.NewCard{valid, valid, {Question: "q"}})
		require.Error(t, err)
		assert.True(t, deckderr.IsInvalidInput(err))
	})

	t.Run("rejects whitespace-only question", func(t *testing.T) {
		err := store.ValidateNewCards([]store.NewCard{{Question: "   ", Answer: "a"}})
		require.Error(t, err)
	})
}

func TestCardQueryNormalize(t *testing.T) {
	tests := []struct {
		name       string
		in         store.CardQuery
		wantLimit  int
		wantOffset int
	}{
		{"defaults", store.CardQuery{}, 50, 0},
		{"negative limit", store.CardQuery{Limit: -5}, 50, 0},
		{"clamped limit", store.CardQuery{Limit: 1000}, 200, 0},
		{"max limit kept", store.CardQuery{Limit: 200}, 200, 0},
		{"negative offset", store.CardQuery{Offset: -1, Limit: 10}, 10, 0},
		{"passthrough", store.CardQuery{Limit: 25, Offset: 75}, 25, 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.Equal(t, tt.wantLimit, got.Limit)
			assert.Equal(t, tt.wantOffset, got.Offset)
		})
	}
}

func TestValidateDeckTitle(t *testing.T) {
	assert.NoError(t, store.ValidateDeckTitle("Physics"))
	assert.Error(t, store.ValidateDeckTitle(""))
	assert.Error(t, store.ValidateDeckTitle("  "))
}
