// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package embedding_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deckd-dev/deckd/internal/embedding"
	deckderr "github.com/deckd-dev/deckd/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAI_RequiresAPIKey(t *testing.T) {
	_, err := embedding.NewOpenAI(embedding.Config{})
	require.Error(t, err)
	assert.True(t, deckderr.IsInvalidInput(err))
}

func TestNewOpenAI_Defaults(t *testing.T) {
	e, err := embedding.NewOpenAI(embedding.Config{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, embedding.DefaultDimensions, e.Dimensions())
}

func TestOpenAI_EmbedDocuments(t *testing.T) {
	type apiRequest struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}

	var gotReq apiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		type item struct {
			Embedding []float64 `json:"embedding"`
			Index     int       `json:"index"`
			Object    string    `json:"object"`
		}
		items := make([]item, len(gotReq.Input))
		for i := range gotReq.Input {
			items[i] = item{Embedding: []float64{float64(i), 1.0, 0.5}, Index: i, Object: "embedding"}
		}
		resp := map[string]any{
			"object": "list",
			"data":   items,
			"model":  gotReq.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	e, err := embedding.NewOpenAI(embedding.Config{
		APIKey:     "test-key",
		Dimensions: 3,
		BaseURL:    srv.URL + "/v1",
	})
	require.NoError(t, err)

	vecs, err := e.EmbedDocuments(context.Background(), []string{"first text", "second text"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0, 1.0, 0.5}, vecs[0])
	assert.Equal(t, []float32{1, 1.0, 0.5}, vecs[1])
	assert.Equal(t, []string{"first text", "second text"}, gotReq.Input)
	assert.Equal(t, embedding.DefaultModel, gotReq.Model)
}

func TestOpenAI_EmbedDocumentsEmpty(t *testing.T) {
	e, err := embedding.NewOpenAI(embedding.Config{APIKey: "test-key"})
	require.NoError(t, err)

	_, err = e.EmbedDocuments(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, deckderr.IsInvalidInput(err))
}

func TestOpenAI_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	e, err := embedding.NewOpenAI(embedding.Config{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v1",
	})
	require.NoError(t, err)

	_, err = e.EmbedQuery(context.Background(), "query")
	require.Error(t, err)
	assert.True(t, deckderr.IsUpstreamFailure(err))
}
