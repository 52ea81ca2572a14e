package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CreateCursor inserts a new indexer row. Direction is fixed for the
// lifetime of the cursor; there is no way to change it short of deleting
// and recreating the row.
func (s *Store) CreateCursor(ctx context.Context, c Cursor) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer.indexer (name, program_id, direction, signature, block, timestamp, finished, fetch_limit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.Name, c.ProgramID, string(c.Direction), c.Signature, c.Block, c.Timestamp, c.Finished, c.FetchLimit)
	if err != nil {
		return fmt.Errorf("store: create cursor %s: %w", c.Name, err)
	}
	return nil
}

// GetCursor reads a cursor by its name.
func (s *Store) GetCursor(ctx context.Context, name string) (Cursor, error) {
	var c Cursor
	var direction string
	err := s.pool.QueryRow(ctx, `
		SELECT name, program_id, direction, signature, block, timestamp, finished, fetch_limit
		FROM indexer.indexer WHERE name = $1
	`, name).Scan(&c.Name, &c.ProgramID, &direction, &c.Signature, &c.Block, &c.Timestamp, &c.Finished, &c.FetchLimit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cursor{}, ErrNotFound
		}
		return Cursor{}, fmt.Errorf("store: get cursor %s: %w", name, err)
	}
	c.Direction = Direction(direction)
	return c, nil
}

// UpdateCursor applies a partial patch and returns the updated row. Only
// non-nil fields of patch are written; COALESCE keeps the rest unchanged.
func (s *Store) UpdateCursor(ctx context.Context, name string, patch CursorPatch) (Cursor, error) {
	var c Cursor
	var direction string
	err := s.pool.QueryRow(ctx, `
		UPDATE indexer.indexer SET
			signature = COALESCE($2, signature),
			block     = COALESCE($3, block),
			timestamp = COALESCE($4, timestamp),
			finished  = COALESCE($5, finished)
		WHERE name = $1
		RETURNING name, program_id, direction, signature, block, timestamp, finished, fetch_limit
	`, name, patch.Signature, patch.Block, patch.Timestamp, patch.Finished).
		Scan(&c.Name, &c.ProgramID, &direction, &c.Signature, &c.Block, &c.Timestamp, &c.Finished, &c.FetchLimit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cursor{}, ErrNotFound
		}
		return Cursor{}, fmt.Errorf("store: update cursor %s: %w", name, err)
	}
	c.Direction = Direction(direction)
	return c, nil
}

// ListCursors returns every indexer row, used by the read API's /indexers.
func (s *Store) ListCursors(ctx context.Context) ([]Cursor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, program_id, direction, signature, block, timestamp, finished, fetch_limit
		FROM indexer.indexer ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list cursors: %w", err)
	}
	defer rows.Close()

	var out []Cursor
	for rows.Next() {
		var c Cursor
		var direction string
		if err := rows.Scan(&c.Name, &c.ProgramID, &direction, &c.Signature, &c.Block, &c.Timestamp, &c.Finished, &c.FetchLimit); err != nil {
			return nil, fmt.Errorf("store: scan cursor: %w", err)
		}
		c.Direction = Direction(direction)
		out = append(out, c)
	}
	return out, rows.Err()
}
