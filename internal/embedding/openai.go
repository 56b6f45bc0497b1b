// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package embedding

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	deckderr "github.com/deckd-dev/deckd/pkg/errors"
)

const (
	// DefaultModel is the embedding model used unless configured otherwise.
	DefaultModel = "text-embedding-3-small"

	// DefaultDimensions is the native width of text-embedding-3-small.
	DefaultDimensions = 1536

	// maxBatchSize is the OpenAI embeddings API input limit.
	maxBatchSize = 2048
)

// Compile-time interface check.
var _ Embedder = (*OpenAI)(nil)

// Config holds OpenAI embedder configuration.
type Config struct {
	APIKey     string
	Model      string
	Dimensions int
	BaseURL    string // optional, useful for testing against a mock server
}

// OpenAI implements Embedder using the OpenAI embeddings API.
type OpenAI struct {
	client     openaisdk.Client
	model      string
	dimensions int
}

// NewOpenAI creates a new OpenAI embedder. Returns an error if the API key
// is missing.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, deckderr.New(deckderr.CodeEmbedRequestInvalid, "openai: missing api_key in config")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAI{
		client:     openaisdk.NewClient(opts...),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Dimensions returns the configured vector width.
func (o *OpenAI) Dimensions() int {
	return o.dimensions
}

// EmbedDocuments embeds a batch of texts, splitting into API-sized chunks
// when needed. Results preserve input order.
func (o *OpenAI) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, deckderr.New(deckderr.CodeEmbedRequestInvalid, "no texts provided")
	}

	embeddings := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := o.embed(ctx, texts[start:end])
		if err != nil {
			return nil, deckderr.Wrapf(err, deckderr.CodeEmbedUpstreamFailure, "embedding batch %d-%d", start, end)
		}
		embeddings = append(embeddings, batch...)
	}

	return embeddings, nil
}

// EmbedQuery embeds a single search query.
func (o *OpenAI) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (o *OpenAI) embed(ctx context.Context, texts []string) ([][]float32, error) {
	params := openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model:      openaisdk.EmbeddingModel(o.model),
		Dimensions: openaisdk.Int(int64(o.dimensions)),
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, deckderr.Wrapf(err, deckderr.CodeEmbedUpstreamFailure, "calling embeddings API")
	}
	if len(resp.Data) != len(texts) {
		return nil, deckderr.Errorf(deckderr.CodeEmbedUpstreamFailure,
			"embeddings API returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		vec := make([]float32, len(item.Embedding))
		for i, f := range item.Embedding {
			vec[i] = float32(f)
		}
		out[item.Index] = vec
	}
	return out, nil
}
