// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/deckd-dev/deckd/internal/store"
	deckderr "github.com/deckd-dev/deckd/pkg/errors"
)

// Compile-time interface check.
var _ store.DeckStore = (*DeckStore)(nil)

// DeckStore implements store.DeckStore backed by SQLite. It is the
// authoritative record of decks and flashcards; the vector index only ever
// mirrors rows that exist here.
type DeckStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDeckStore opens (or creates) a SQLite database at dbPath and
// initialises the decks and flashcards tables.
func NewDeckStore(dbPath string) (*DeckStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "pinging sqlite db: %w", err)
	}

	if err := migrateDecks(db); err != nil {
		_ = db.Close()
		return nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "migrating deck tables: %w", err)
	}

	return &DeckStore{db: db, logger: slog.Default()}, nil
}

func migrateDecks(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS decks (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	source     TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS flashcards (
	id          TEXT PRIMARY KEY,
	deck_id     TEXT NOT NULL REFERENCES decks(id) ON DELETE CASCADE,
	question    TEXT NOT NULL,
	answer      TEXT NOT NULL,
	metadata    TEXT,
	index_state TEXT NOT NULL DEFAULT 'unindexed',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_flashcards_deck ON flashcards(deck_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_flashcards_index_state ON flashcards(index_state);
CREATE INDEX IF NOT EXISTS idx_decks_created ON decks(created_at DESC);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *DeckStore) Close() error {
	return s.db.Close()
}

// CreateDeck inserts a new deck with a fresh id and current timestamps.
func (s *DeckStore) CreateDeck(ctx context.Context, title string, source *string) (*store.Deck, error) {
	if err := store.ValidateDeckTitle(title); err != nil {
		return nil, err
	}

	deck := &store.Deck{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(title),
		Source:    source,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	const q = `INSERT INTO decks (id, title, source, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		deck.ID, deck.Title, nullString(deck.Source),
		formatTime(deck.CreatedAt), formatTime(deck.UpdatedAt),
	)
	if err != nil {
		return nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "inserting deck: %w", err)
	}
	return deck, nil
}

// GetDeck retrieves a deck by id.
func (s *DeckStore) GetDeck(ctx context.Context, id string) (*store.Deck, error) {
	const q = `SELECT id, title, source, created_at, updated_at FROM decks WHERE id = ?`
	deck, err := scanDeck(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, deckderr.Errorf(deckderr.CodeStoreDeckNotFound, "deck %s not found", id)
		}
		return nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "getting deck %s: %w", id, err)
	}
	return deck, nil
}

// ListDecks returns all decks, newest first.
func (s *DeckStore) ListDecks(ctx context.Context) ([]*store.Deck, error) {
	const q = `SELECT id, title, source, created_at, updated_at FROM decks ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "listing decks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	decks := []*store.Deck{}
	for rows.Next() {
		deck, err := scanDeck(rows)
		if err != nil {
			return nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "scanning deck: %w", err)
		}
		decks = append(decks, deck)
	}
	if err := rows.Err(); err != nil {
		return nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "iterating decks: %w", err)
	}

	return decks, nil
}

// UpdateDeck applies a patch to a deck. Only updated_at is stamped; nil
// patch fields leave the stored value untouched.
func (s *DeckStore) UpdateDeck(ctx context.Context, id string, patch store.DeckPatch) (*store.Deck, error) {
	if patch.Title == nil && patch.Source == nil {
		return s.GetDeck(ctx, id)
	}
	if patch.Title != nil {
		if err := store.ValidateDeckTitle(*patch.Title); err != nil {
			return nil, err
		}
	}

	var (
		sets []string
		args []any
	)
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, strings.TrimSpace(*patch.Title))
	}
	if patch.Source != nil {
		sets = append(sets, "source = ?")
		args = append(args, *patch.Source)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(time.Now()))
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, `UPDATE decks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "updating deck %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "checking deck update %s: %w", id, err)
	}
	if affected == 0 {
		return nil, deckderr.Errorf(deckderr.CodeStoreDeckNotFound, "deck %s not found", id)
	}

	return s.GetDeck(ctx, id)
}

// DeleteDeck removes a deck and, via ON DELETE CASCADE, every flashcard it
// owns. Returns a not-found error if the id is unknown.
func (s *DeckStore) DeleteDeck(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM decks WHERE id = ?`, id)
	if err != nil {
		return deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "deleting deck %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "checking deck delete %s: %w", id, err)
	}
	if affected == 0 {
		return deckderr.Errorf(deckderr.CodeStoreDeckNotFound, "deck %s not found", id)
	}
	return nil
}

// DeckExists reports whether a deck with the given id exists.
func (s *DeckStore) DeckExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM decks WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "checking deck %s: %w", id, err)
	}
	return true, nil
}

// CountDecks returns the number of decks.
func (s *DeckStore) CountDecks(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM decks`).Scan(&n); err != nil {
		return 0, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "counting decks: %w", err)
	}
	return n, nil
}

// CreateCards persists a batch of cards for an existing deck. The whole
// batch is rejected if any entry is invalid, and all inserts run in a single
// transaction: either every card commits or none do.
func (s *DeckStore) CreateCards(ctx context.Context, deckID string, cards []store.NewCard) ([]*store.Flashcard, error) {
	if err := store.ValidateNewCards(cards); err != nil {
		return nil, err
	}

	exists, err := s.DeckExists(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, deckderr.Errorf(deckderr.CodeStoreDeckNotFound, "deck %s not found", deckID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "beginning card transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	created, err := insertCardsTx(ctx, tx, deckID, cards)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "committing card batch: %w", err)
	}
	return created, nil
}

// CreateDeckWithCards creates a deck and its cards in one transaction, so a
// card validation or insert failure rolls back the deck creation too.
func (s *DeckStore) CreateDeckWithCards(ctx context.Context, title string, source *string, cards []store.NewCard) (*store.Deck, []*store.Flashcard, error) {
	if err := store.ValidateDeckTitle(title); err != nil {
		return nil, nil, err
	}
	if err := store.ValidateNewCards(cards); err != nil {
		return nil, nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "beginning save transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deck := &store.Deck{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(title),
		Source:    source,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	const q = `INSERT INTO decks (id, title, source, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q,
		deck.ID, deck.Title, nullString(deck.Source),
		formatTime(deck.CreatedAt), formatTime(deck.UpdatedAt),
	); err != nil {
		return nil, nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "inserting deck: %w", err)
	}

	created, err := insertCardsTx(ctx, tx, deck.ID, cards)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "committing deck save: %w", err)
	}
	return deck, created, nil
}

func insertCardsTx(ctx context.Context, tx *sql.Tx, deckID string, cards []store.NewCard) ([]*store.Flashcard, error) {
	const q = `INSERT INTO flashcards (id, deck_id, question, answer, metadata, index_state, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now()
	created := make([]*store.Flashcard, 0, len(cards))
	for _, c := range cards {
		card := &store.Flashcard{
			ID:         uuid.NewString(),
			DeckID:     deckID,
			Question:   c.Question,
			Answer:     c.Answer,
			Metadata:   c.Metadata,
			IndexState: store.IndexStateUnindexed,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		metaJSON, err := marshalMetadata(c.Metadata)
		if err != nil {
			return nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "marshalling card metadata: %w", err)
		}

		if _, err := tx.ExecContext(ctx, q,
			card.ID, card.DeckID, card.Question, card.Answer,
			metaJSON, string(card.IndexState),
			formatTime(card.CreatedAt), formatTime(card.UpdatedAt),
		); err != nil {
			return nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "inserting flashcard: %w", err)
		}
		created = append(created, card)
	}
	return created, nil
}

// ListCards returns a deck's cards, newest first. A non-empty query text
// restricts results to cards whose question contains it as a substring
// (case-sensitive, as stored).
func (s *DeckStore) ListCards(ctx context.Context, deckID string, q store.CardQuery) ([]*store.Flashcard, error) {
	exists, err := s.DeckExists(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, deckderr.Errorf(deckderr.CodeStoreDeckNotFound, "deck %s not found", deckID)
	}

	q = q.Normalize()

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT id, deck_id, question, answer, metadata, index_state, created_at, updated_at
FROM flashcards WHERE deck_id = ?`)
	args = append(args, deckID)

	if q.Text != "" {
		qb.WriteString(` AND instr(question, ?) > 0`)
		args = append(args, q.Text)
	}

	qb.WriteString(` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`)
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "listing cards for deck %s: %w", deckID, err)
	}
	defer func() { _ = rows.Close() }()

	return scanCards(rows)
}

// MarkCardsIndexed transitions the given cards to the indexed state.
func (s *DeckStore) MarkCardsIndexed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids)+2)
	args = append(args, string(store.IndexStateIndexed), formatTime(time.Now()))
	for _, id := range ids {
		args = append(args, id)
	}

	q := `UPDATE flashcards SET index_state = ?, updated_at = ? WHERE id IN (` + placeholders + `)`
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "marking cards indexed: %w", err)
	}
	return nil
}

// ListUnindexedCards returns cards whose vector write has not been
// confirmed, oldest first so reconciliation repairs in insertion order.
func (s *DeckStore) ListUnindexedCards(ctx context.Context) ([]*store.Flashcard, error) {
	const q = `SELECT id, deck_id, question, answer, metadata, index_state, created_at, updated_at
FROM flashcards WHERE index_state = ? ORDER BY created_at ASC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, q, string(store.IndexStateUnindexed))
	if err != nil {
		return nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "listing unindexed cards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanCards(rows)
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanDeck(row scanner) (*store.Deck, error) {
	var (
		deck               store.Deck
		source             sql.NullString
		createdAt, updated string
	)
	if err := row.Scan(&deck.ID, &deck.Title, &source, &createdAt, &updated); err != nil {
		return nil, err
	}
	if source.Valid {
		deck.Source = &source.String
	}
	deck.CreatedAt = parseTime(createdAt)
	deck.UpdatedAt = parseTime(updated)
	return &deck, nil
}

func scanCards(rows *sql.Rows) ([]*store.Flashcard, error) {
	cards := []*store.Flashcard{}
	for rows.Next() {
		var (
			card               store.Flashcard
			metaStr            sql.NullString
			state              string
			createdAt, updated string
		)
		if err := rows.Scan(&card.ID, &card.DeckID, &card.Question, &card.Answer, &metaStr, &state, &createdAt, &updated); err != nil {
			return nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "scanning flashcard: %w", err)
		}

		if metaStr.Valid && metaStr.String != "" {
			if err := json.Unmarshal([]byte(metaStr.String), &card.Metadata); err != nil {
				slog.Warn("skipping corrupt flashcard metadata",
					slog.String("card_id", card.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		card.IndexState = store.IndexState(state)
		card.CreatedAt = parseTime(createdAt)
		card.UpdatedAt = parseTime(updated)
		cards = append(cards, &card)
	}
	if err := rows.Err(); err != nil {
		return nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "iterating flashcards: %w", err)
	}
	return cards, nil
}

func marshalMetadata(m map[string]string) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// formatTime serialises a time for storage, normalised to UTC.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
