// Package postgres keeps each document in one row of a documents table.
// Save upserts the whole document, so concurrent writers from separate
// processes resolve to last-writer-wins, same as the other backends.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ecogrove/market/internal/store"
)

type Store struct{ db *sql.DB }

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	var doc []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT doc
		FROM documents
		WHERE key = $1
	`, key).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoDocument
		}

		return nil, fmt.Errorf("load document: %w", err)
	}

	return doc, nil
}

func (s *Store) Save(ctx context.Context, key string, doc []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (key, doc)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
		SET doc = EXCLUDED.doc, updated_at = now()
	`, key, doc)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM documents
		WHERE key = $1
	`, key)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	return nil
}
