package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pharma-erp/backend/internal/store"
)

// DocumentStore implements store.Store on top of a single jsonb table:
//
//	CREATE TABLE documents (
//	    collection TEXT NOT NULL,
//	    id         TEXT NOT NULL,
//	    body       JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    PRIMARY KEY (collection, id)
//	);
//	CREATE INDEX documents_body_idx ON documents USING gin (body jsonb_path_ops);
type DocumentStore struct {
	db *DB
}

func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) GetByID(ctx context.Context, collection store.Collection, id string) (json.RawMessage, error) {
	query := `
		SELECT body
		FROM documents
		WHERE collection = $1 AND id = $2
	`

	var body []byte
	err := s.db.QueryRowContext(ctx, query, string(collection), id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}

	return body, nil
}

func (s *DocumentStore) QueryByField(ctx context.Context, collection store.Collection, fieldPath, value string) ([]json.RawMessage, error) {
	query := `
		SELECT body
		FROM documents
		WHERE collection = $1 AND body #>> string_to_array($2, '.') = $3
	`

	rows, err := s.db.QueryContext(ctx, query, string(collection), fieldPath, value)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", collection, fieldPath, err)
	}
	defer rows.Close()

	var docs []json.RawMessage
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan %s document: %w", collection, err)
		}
		docs = append(docs, body)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading %s query results: %w", collection, err)
	}

	return docs, nil
}

func (s *DocumentStore) UpdateByID(ctx context.Context, collection store.Collection, id string, fields map[string]any) error {
	if err := s.db.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer s.db.sem.Release(1)

	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode patch for %s/%s: %w", collection, id, err)
	}

	query := `
		UPDATE documents
		SET body = body || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND id = $2
	`

	res, err := s.db.ExecContext(ctx, query, string(collection), id, patch)
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result for %s/%s: %w", collection, id, err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	return nil
}

func (s *DocumentStore) Put(ctx context.Context, collection store.Collection, id string, doc any) error {
	if err := s.db.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer s.db.sem.Release(1)

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}

	query := `
		INSERT INTO documents (collection, id, body)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE
		SET body = EXCLUDED.body, updated_at = NOW()
	`

	if _, err := s.db.ExecContext(ctx, query, string(collection), id, body); err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", collection, id, err)
	}

	return nil
}

var _ store.Store = (*DocumentStore)(nil)
