// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/deckd-dev/deckd/internal/index"
	"github.com/deckd-dev/deckd/internal/search"
	"github.com/deckd-dev/deckd/internal/store"
	deckderr "github.com/deckd-dev/deckd/pkg/errors"
)

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	// Deck endpoints
	huma.Register(s.api, huma.Operation{
		OperationID:   "create-deck",
		Method:        http.MethodPost,
		Path:          "/decks",
		Summary:       "Create an empty deck",
		Tags:          []string{"decks"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateDeck)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-decks",
		Method:      http.MethodGet,
		Path:        "/decks",
		Summary:     "List decks, newest first",
		Tags:        []string{"decks"},
	}, s.handleListDecks)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-deck",
		Method:      http.MethodPatch,
		Path:        "/decks/{id}",
		Summary:     "Rename a deck or edit its source",
		Tags:        []string{"decks"},
	}, s.handleUpdateDeck)

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-deck",
		Method:        http.MethodDelete,
		Path:          "/decks/{id}",
		Summary:       "Delete a deck and its cards from both stores",
		Tags:          []string{"decks"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteDeck)

	huma.Register(s.api, huma.Operation{
		OperationID:   "save-deck",
		Method:        http.MethodPost,
		Path:          "/decks/save",
		Summary:       "Save a deck with its cards and index them",
		Tags:          []string{"decks"},
		DefaultStatus: http.StatusCreated,
	}, s.handleSaveDeck)

	// Card endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "list-cards",
		Method:      http.MethodGet,
		Path:        "/decks/{id}/cards",
		Summary:     "List cards in a deck, newest first",
		Tags:        []string{"cards"},
	}, s.handleListCards)

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-cards",
		Method:        http.MethodPost,
		Path:          "/decks/{id}/cards",
		Summary:       "Append a batch of cards to a deck",
		Tags:          []string{"cards"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateCards)

	// Index maintenance endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "index-cards",
		Method:      http.MethodPost,
		Path:        "/index",
		Summary:     "Index already-persisted cards into the vector store",
		Tags:        []string{"index"},
	}, s.handleIndexCards)

	huma.Register(s.api, huma.Operation{
		OperationID: "drop-deck-index",
		Method:      http.MethodDelete,
		Path:        "/index/decks/{deckId}",
		Summary:     "Remove all vector records for a deck",
		Tags:        []string{"index"},
	}, s.handleDropDeckIndex)

	// Search endpoint
	huma.Register(s.api, huma.Operation{
		OperationID: "search-cards",
		Method:      http.MethodGet,
		Path:        "/search",
		Summary:     "Semantic card search",
		Tags:        []string{"search"},
	}, s.handleSearch)
}

// --- Request/Response types for huma ---

// DeckView is the REST representation of a deck.
type DeckView struct {
	ID        string    `json:"id" doc:"Deck identifier"`
	Title     string    `json:"title" doc:"Deck title"`
	Source    *string   `json:"source" doc:"Provenance, null when unknown"`
	CreatedAt time.Time `json:"createdAt" doc:"Creation time"`
	UpdatedAt time.Time `json:"updatedAt" doc:"Last modification time"`
}

// CardView is the REST representation of a flashcard.
type CardView struct {
	ID        string            `json:"id" doc:"Card identifier"`
	DeckID    string            `json:"deckId" doc:"Owning deck"`
	Question  string            `json:"question" doc:"Question text"`
	Answer    string            `json:"answer" doc:"Answer text"`
	Metadata  map[string]string `json:"metadata,omitempty" doc:"Optional structured metadata"`
	CreatedAt time.Time         `json:"createdAt" doc:"Creation time"`
	UpdatedAt time.Time         `json:"updatedAt" doc:"Last modification time"`
}

// NewCardBody is the input shape for one card in a batch.
type NewCardBody struct {
	Question string            `json:"question" doc:"Question text"`
	Answer   string            `json:"answer" doc:"Answer text"`
	Metadata map[string]string `json:"metadata,omitempty" doc:"Optional structured metadata"`
}

type createDeckInput struct {
	Body struct {
		Title  string  `json:"title" doc:"Deck title"`
		Source *string `json:"source,omitempty" doc:"Optional provenance"`
	}
}
type createDeckOutput struct {
	Body DeckView
}

type listDecksOutput struct {
	Body struct {
		Decks []DeckView `json:"decks"`
	}
}

type updateDeckInput struct {
	ID   string `path:"id"`
	Body struct {
		Title  *string `json:"title,omitempty" doc:"New title"`
		Source *string `json:"source,omitempty" doc:"New provenance"`
	}
}
type updateDeckOutput struct {
	Body DeckView
}

type deleteDeckInput struct {
	ID string `path:"id"`
}

type saveDeckInput struct {
	Body struct {
		Title  string        `json:"title" doc:"Deck title"`
		Source *string       `json:"source,omitempty" doc:"Optional provenance"`
		Cards  []NewCardBody `json:"cards" doc:"Cards to create and index"`
	}
}
type saveDeckOutput struct {
	Body struct {
		Deck    DeckView   `json:"deck"`
		Cards   []CardView `json:"cards"`
		Indexed bool       `json:"indexed" doc:"False when the vector add failed; the deck is saved but not yet searchable"`
		Warning string     `json:"warning,omitempty" doc:"Present when indexed is false"`
	}
}

type listCardsInput struct {
	ID     string `path:"id"`
	Q      string `query:"q" doc:"Substring filter on the question"`
	Limit  int    `query:"limit" doc:"Page size, default 50, max 200"`
	Offset int    `query:"offset" doc:"Page offset"`
}
type listCardsOutput struct {
	Body struct {
		Cards []CardView `json:"cards"`
	}
}

type createCardsInput struct {
	ID   string `path:"id"`
	Body struct {
		Cards []NewCardBody `json:"cards" doc:"Cards to create"`
	}
}
type createCardsOutput struct {
	Body struct {
		Cards []CardView `json:"cards"`
	}
}

type indexCardsInput struct {
	Body struct {
		DeckID string `json:"deckId" doc:"Deck to tag records with"`
		Source string `json:"source,omitempty" doc:"Provenance tag"`
		Cards  []struct {
			ID       string `json:"id" doc:"Card identifier"`
			Question string `json:"question" doc:"Question text"`
			Answer   string `json:"answer" doc:"Answer text"`
		} `json:"cards" doc:"Cards to index"`
	}
}

type okOutput struct {
	Body struct {
		OK bool `json:"ok"`
	}
}

type searchInput struct {
	Q       string `query:"q" doc:"Free-text query, may end in ', excluding ...'"`
	K       int    `query:"k" doc:"Result count, default 10"`
	DeckID  string `query:"deckId" doc:"Restrict to one deck"`
	Exclude string `query:"exclude" doc:"Comma-separated exclusion terms"`
}
type searchOutput struct {
	Body struct {
		Cards []search.Card `json:"cards"`
	}
}

// --- Handlers ---

func (s *Server) handleCreateDeck(ctx context.Context, input *createDeckInput) (*createDeckOutput, error) {
	deck, err := s.services.decks.CreateDeck(ctx, input.Body.Title, input.Body.Source)
	if err != nil {
		return nil, apiError(err, "creating deck")
	}
	return &createDeckOutput{Body: deckView(deck)}, nil
}

func (s *Server) handleListDecks(ctx context.Context, _ *struct{}) (*listDecksOutput, error) {
	decks, err := s.services.decks.ListDecks(ctx)
	if err != nil {
		return nil, apiError(err, "listing decks")
	}
	out := &listDecksOutput{}
	out.Body.Decks = make([]DeckView, len(decks))
	for i, d := range decks {
		out.Body.Decks[i] = deckView(d)
	}
	return out, nil
}

func (s *Server) handleUpdateDeck(ctx context.Context, input *updateDeckInput) (*updateDeckOutput, error) {
	deck, err := s.services.decks.UpdateDeck(ctx, input.ID, store.DeckPatch{
		Title:  input.Body.Title,
		Source: input.Body.Source,
	})
	if err != nil {
		return nil, apiError(err, "updating deck")
	}
	return &updateDeckOutput{Body: deckView(deck)}, nil
}

func (s *Server) handleDeleteDeck(ctx context.Context, input *deleteDeckInput) (*struct{}, error) {
	if err := s.services.writer.DeleteDeck(ctx, input.ID); err != nil {
		return nil, apiError(err, "deleting deck")
	}
	return nil, nil
}

func (s *Server) handleSaveDeck(ctx context.Context, input *saveDeckInput) (*saveDeckOutput, error) {
	result, err := s.services.writer.SaveDeck(ctx, input.Body.Title, input.Body.Source, newCards(input.Body.Cards))
	if err != nil && !deckderr.IsIndexLag(err) {
		return nil, apiError(err, "saving deck")
	}

	out := &saveDeckOutput{}
	out.Body.Deck = deckView(result.Deck)
	out.Body.Cards = cardViews(result.Cards)
	out.Body.Indexed = result.Indexed
	if !result.Indexed {
		// The relational commit stands; indexing is repaired by
		// reconciliation or an explicit reindex.
		out.Body.Warning = "deck saved but not yet searchable"
	}
	return out, nil
}

func (s *Server) handleListCards(ctx context.Context, input *listCardsInput) (*listCardsOutput, error) {
	cards, err := s.services.decks.ListCards(ctx, input.ID, store.CardQuery{
		Text:   input.Q,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return nil, apiError(err, "listing cards")
	}
	out := &listCardsOutput{}
	out.Body.Cards = cardViews(cards)
	return out, nil
}

func (s *Server) handleCreateCards(ctx context.Context, input *createCardsInput) (*createCardsOutput, error) {
	created, err := s.services.writer.AddCards(ctx, input.ID, newCards(input.Body.Cards))
	if err != nil && !deckderr.IsIndexLag(err) {
		return nil, apiError(err, "creating cards")
	}
	out := &createCardsOutput{}
	out.Body.Cards = cardViews(created)
	return out, nil
}

func (s *Server) handleIndexCards(ctx context.Context, input *indexCardsInput) (*okOutput, error) {
	docs := make([]index.CardDoc, len(input.Body.Cards))
	for i, c := range input.Body.Cards {
		docs[i] = index.CardDoc{ID: c.ID, Question: c.Question, Answer: c.Answer}
	}
	if err := s.services.writer.IndexCards(ctx, input.Body.DeckID, input.Body.Source, docs); err != nil {
		return nil, apiError(err, "indexing cards")
	}
	out := &okOutput{}
	out.Body.OK = true
	return out, nil
}

func (s *Server) handleDropDeckIndex(ctx context.Context, input *struct {
	DeckID string `path:"deckId"`
}) (*okOutput, error) {
	if err := s.services.writer.DropDeckIndex(ctx, input.DeckID); err != nil {
		return nil, apiError(err, "dropping deck index")
	}
	out := &okOutput{}
	out.Body.OK = true
	return out, nil
}

func (s *Server) handleSearch(ctx context.Context, input *searchInput) (*searchOutput, error) {
	if strings.TrimSpace(input.Q) == "" {
		return nil, huma.Error400BadRequest("q must be a non-empty string")
	}

	parsed := search.ParseQuery(input.Q)
	exclude := parsed.Exclude
	for _, term := range strings.Split(input.Exclude, ",") {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			exclude = append(exclude, term)
		}
	}

	cards, err := s.services.search.Search(ctx, search.Request{
		Query:   parsed.Query,
		K:       input.K,
		DeckID:  input.DeckID,
		Exclude: exclude,
	})
	if err != nil {
		return nil, apiError(err, "searching cards")
	}

	out := &searchOutput{}
	out.Body.Cards = cards
	return out, nil
}

// --- Helpers ---

// apiError maps coded domain errors onto huma status errors.
func apiError(err error, msg string) error {
	return huma.NewError(deckderr.HTTPStatus(err), msg, err)
}

func deckView(d *store.Deck) DeckView {
	return DeckView{
		ID:        d.ID,
		Title:     d.Title,
		Source:    d.Source,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func cardViews(cards []*store.Flashcard) []CardView {
	views := make([]CardView, len(cards))
	for i, c := range cards {
		views[i] = CardView{
			ID:        c.ID,
			DeckID:    c.DeckID,
			Question:  c.Question,
			Answer:    c.Answer,
			Metadata:  c.Metadata,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		}
	}
	return views
}

func newCards(bodies []NewCardBody) []store.NewCard {
	cards := make([]store.NewCard, len(bodies))
	for i, b := range bodies {
		cards[i] = store.NewCard{Question: b.Question, Answer: b.Answer, Metadata: b.Metadata}
	}
	return cards
}
