// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package errors_test

import (
	stderrors "errors"
	"net/http"
	"testing"

	deckderr "github.com/deckd-dev/deckd/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	err := deckderr.New(deckderr.CodeStoreDeckNotFound, "deck missing")
	assert.Equal(t, deckderr.CodeStoreDeckNotFound, deckderr.CodeOf(err))

	assert.Equal(t, deckderr.Code(""), deckderr.CodeOf(nil))
	assert.Equal(t, deckderr.Code(""), deckderr.CodeOf(stderrors.New("plain")))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, deckderr.Wrap(nil, deckderr.CodeStoreDatabaseFailure, "ignored"))
	assert.NoError(t, deckderr.Wrapf(nil, deckderr.CodeStoreDatabaseFailure, "ignored %d", 1))
	assert.NoError(t, deckderr.With(nil, deckderr.FieldDeckID("d1")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := deckderr.Wrap(cause, deckderr.CodeStoreDatabaseFailure, "inserting deck")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, deckderr.CodeStoreDatabaseFailure, deckderr.CodeOf(err))
}

func TestClassifiers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"not found", deckderr.New(deckderr.CodeStoreDeckNotFound, "x"), deckderr.IsNotFound, true},
		{"invalid input", deckderr.New(deckderr.CodeStoreCardInvalid, "x"), deckderr.IsInvalidInput, true},
		{"index lag", deckderr.New(deckderr.CodeIndexLag, "x"), deckderr.IsIndexLag, true},
		{"upstream", deckderr.New(deckderr.CodeIndexQueryFailure, "x"), deckderr.IsUpstreamFailure, true},
		{"lag is not upstream", deckderr.New(deckderr.CodeIndexLag, "x"), deckderr.IsUpstreamFailure, false},
		{"upstream is not lag", deckderr.New(deckderr.CodeIndexAddFailure, "x"), deckderr.IsIndexLag, false},
		{"nil", nil, deckderr.IsNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, deckderr.HTTPStatus(deckderr.New(deckderr.CodeStoreDeckNotFound, "x")))
	assert.Equal(t, http.StatusBadRequest, deckderr.HTTPStatus(deckderr.New(deckderr.CodeSearchQueryInvalid, "x")))
	assert.Equal(t, http.StatusBadGateway, deckderr.HTTPStatus(deckderr.New(deckderr.CodeIndexAddFailure, "x")))
	assert.Equal(t, http.StatusInternalServerError, deckderr.HTTPStatus(stderrors.New("plain")))
}

func TestFieldsOf(t *testing.T) {
	err := deckderr.New(deckderr.CodeStoreCardInvalid, "bad card",
		deckderr.FieldDeckID("d1"), deckderr.FieldCardID("c9"))
	fields := deckderr.FieldsOf(err)
	require.NotNil(t, fields)
	assert.Equal(t, "d1", fields["deck_id"])
	assert.Equal(t, "c9", fields["card_id"])
}
