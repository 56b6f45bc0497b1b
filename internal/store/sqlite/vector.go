// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/deckd-dev/deckd/internal/store"
	deckderr "github.com/deckd-dev/deckd/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.VectorIndex = (*VectorIndex)(nil)

// filterOverfetch compensates for vec0's KNN running before the metadata
// join: a filtered query fetches this many times k nearest neighbors, then
// filters and truncates. A deck-scoped search over a large corpus may still
// return fewer than k matches; callers treat results as "up to k".
const filterOverfetch = 16

// maxKNNFetch bounds how many candidates a single KNN query pulls.
const maxKNNFetch = 4096

// VectorIndex implements store.VectorIndex backed by SQLite with sqlite-vec.
// It holds the single logical "flashcards" collection: a vec0 virtual table
// for embeddings and a companion table for filterable metadata.
type VectorIndex struct {
	db         *sql.DB
	dimensions int
}

// NewVectorIndex opens (or creates) a SQLite database at dbPath and
// initialises the vec0 virtual table and companion metadata table.
func NewVectorIndex(dbPath string, dimensions int) (*VectorIndex, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "pinging sqlite db: %w", err)
	}

	if err := migrateVectors(db, dimensions); err != nil {
		_ = db.Close()
		return nil, deckderr.Errorf(deckderr.CodeStoreDatabaseFailure, "migrating vector tables: %w", err)
	}

	return &VectorIndex{db: db, dimensions: dimensions}, nil
}

func migrateVectors(db *sql.DB, dimensions int) error {
	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS card_vectors USING vec0(id TEXT PRIMARY KEY, embedding float[%d])`,
		dimensions,
	)
	if _, err := db.Exec(vecDDL); err != nil {
		return err
	}

	const metaDDL = `
CREATE TABLE IF NOT EXISTS card_vector_metadata (
	id       TEXT PRIMARY KEY,
	metadata TEXT NOT NULL DEFAULT '{}'
)`
	_, err := db.Exec(metaDDL)
	return err
}

// Add upserts vector records by id. Safe to retry: re-adding a record
// replaces its embedding and metadata.
func (v *VectorIndex) Add(ctx context.Context, records []store.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return deckderr.Errorf(deckderr.CodeIndexAddFailure, "beginning vector transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, rec := range records {
		blob, err := sqlite_vec.SerializeFloat32(rec.Embedding)
		if err != nil {
			return deckderr.Errorf(deckderr.CodeIndexAddFailure, "serializing embedding %s: %w", rec.ID, err)
		}

		metaJSON := []byte("{}")
		if len(rec.Metadata) > 0 {
			metaJSON, err = json.Marshal(rec.Metadata)
			if err != nil {
				return deckderr.Errorf(deckderr.CodeIndexAddFailure, "marshalling metadata %s: %w", rec.ID, err)
			}
		}

		// vec0 does not support ON CONFLICT; delete first for upsert.
		if _, err := tx.ExecContext(ctx, `DELETE FROM card_vectors WHERE id = ?`, rec.ID); err != nil {
			return deckderr.Errorf(deckderr.CodeIndexAddFailure, "deleting existing vector %s: %w", rec.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO card_vectors(id, embedding) VALUES (?, ?)`, rec.ID, blob); err != nil {
			return deckderr.Errorf(deckderr.CodeIndexAddFailure, "inserting vector %s: %w", rec.ID, err)
		}

		const metaQ = `INSERT INTO card_vector_metadata(id, metadata) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET metadata = excluded.metadata`
		if _, err := tx.ExecContext(ctx, metaQ, rec.ID, string(metaJSON)); err != nil {
			return deckderr.Errorf(deckderr.CodeIndexAddFailure, "upserting vector metadata %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return deckderr.Errorf(deckderr.CodeIndexAddFailure, "committing vector add: %w", err)
	}
	return nil
}

// RemoveWhere deletes all records whose metadata matches every filter pair
// exactly. Deleting records that are already absent is a no-op, so the call
// is idempotent and safe to retry.
func (v *VectorIndex) RemoveWhere(ctx context.Context, filter map[string]string) error {
	if len(filter) == 0 {
		return deckderr.New(deckderr.CodeIndexRemoveFailure, "refusing to remove with empty filter")
	}

	where, args := buildMetadataFilter(filter)

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return deckderr.Errorf(deckderr.CodeIndexRemoveFailure, "beginning vector transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	delVectors := `DELETE FROM card_vectors WHERE id IN (SELECT id FROM card_vector_metadata WHERE ` + where + `)`
	if _, err := tx.ExecContext(ctx, delVectors, args...); err != nil {
		return deckderr.Errorf(deckderr.CodeIndexRemoveFailure, "deleting vectors: %w", err)
	}

	delMeta := `DELETE FROM card_vector_metadata WHERE ` + where
	if _, err := tx.ExecContext(ctx, delMeta, args...); err != nil {
		return deckderr.Errorf(deckderr.CodeIndexRemoveFailure, "deleting vector metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return deckderr.Errorf(deckderr.CodeIndexRemoveFailure, "committing vector remove: %w", err)
	}
	return nil
}

// Query performs a k-nearest-neighbor search, optionally restricted to an
// exact-match metadata filter, and returns up to k matches ordered by
// ascending distance (lower = more similar). Filtered results are best
// effort: the KNN pass runs before the metadata filter over an overfetched
// candidate window, so a narrow filter on a large corpus may yield fewer
// than k matches even when more exist.
func (v *VectorIndex) Query(ctx context.Context, embedding []float32, k int, filter map[string]string) ([]store.VectorMatch, error) {
	if k <= 0 {
		return []store.VectorMatch{}, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, deckderr.Errorf(deckderr.CodeIndexQueryFailure, "serializing query vector: %w", err)
	}

	fetch := k
	if len(filter) > 0 {
		fetch = k * filterOverfetch
	}
	if fetch > maxKNNFetch {
		fetch = maxKNNFetch
	}

	const q = `SELECT v.id, v.distance, COALESCE(m.metadata, '{}')
FROM card_vectors v
LEFT JOIN card_vector_metadata m ON m.id = v.id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`

	rows, err := v.db.QueryContext(ctx, q, blob, fetch)
	if err != nil {
		return nil, deckderr.Errorf(deckderr.CodeIndexQueryFailure, "searching vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	matches := []store.VectorMatch{}
	for rows.Next() {
		var (
			match   store.VectorMatch
			metaStr string
		)
		if err := rows.Scan(&match.ID, &match.Distance, &metaStr); err != nil {
			return nil, deckderr.Errorf(deckderr.CodeIndexQueryFailure, "scanning vector match: %w", err)
		}

		if metaStr != "" && metaStr != "{}" {
			if err := json.Unmarshal([]byte(metaStr), &match.Metadata); err != nil {
				return nil, deckderr.Errorf(deckderr.CodeIndexQueryFailure, "unmarshalling vector metadata: %w", err)
			}
		}

		if !metadataMatches(match.Metadata, filter) {
			continue
		}

		matches = append(matches, match)
		if len(matches) == k {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, deckderr.Errorf(deckderr.CodeIndexQueryFailure, "iterating vector matches: %w", err)
	}

	return matches, nil
}

// DeckIDs returns the distinct deckId metadata values present in the index.
func (v *VectorIndex) DeckIDs(ctx context.Context) ([]string, error) {
	const q = `SELECT DISTINCT json_extract(metadata, '$.deckId') FROM card_vector_metadata
WHERE json_extract(metadata, '$.deckId') IS NOT NULL`

	rows, err := v.db.QueryContext(ctx, q)
	if err != nil {
		return nil, deckderr.Errorf(deckderr.CodeIndexQueryFailure, "listing indexed deck ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, deckderr.Errorf(deckderr.CodeIndexQueryFailure, "scanning deck id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, deckderr.Errorf(deckderr.CodeIndexQueryFailure, "iterating deck ids: %w", err)
	}

	return ids, nil
}

// Close closes the underlying database connection.
func (v *VectorIndex) Close() error {
	return v.db.Close()
}

// buildMetadataFilter binds both the JSON path and the value so filter keys
// never reach the SQL text.
func buildMetadataFilter(filter map[string]string) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	for key, val := range filter {
		clauses = append(clauses, `json_extract(metadata, ?) = ?`)
		args = append(args, "$."+key, val)
	}
	return strings.Join(clauses, " AND "), args
}

func metadataMatches(metadata map[string]string, filter map[string]string) bool {
	for key, want := range filter {
		if metadata[key] != want {
			return false
		}
	}
	return true
}
