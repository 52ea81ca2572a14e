package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PutSignature inserts a signature row, absorbing duplicate inserts from a
// replayed gap fill or a restarted harvester.
func (s *Store) PutSignature(ctx context.Context, sig Signature) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer.signatures (signature, slot, timestamp)
		VALUES ($1, $2, $3)
		ON CONFLICT (signature) DO NOTHING
	`, sig.Signature, sig.Slot, sig.Timestamp)
	if err != nil {
		return fmt.Errorf("store: put signature %s: %w", sig.Signature, err)
	}
	return nil
}

// PutProgramSignature links a signature to a program, absorbing duplicate
// inserts the same way PutSignature does.
func (s *Store) PutProgramSignature(ctx context.Context, programID, signature string, processed bool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer.program_signatures (program_id, signature, processed)
		VALUES ($1, $2, $3)
		ON CONFLICT (program_id, signature) DO NOTHING
	`, programID, signature, processed)
	if err != nil {
		return fmt.Errorf("store: put program signature %s/%s: %w", programID, signature, err)
	}
	return nil
}

// ListUnprocessed returns up to limit program_signatures for programID that
// have not yet been processed, ordered oldest-first.
func (s *Store) ListUnprocessed(ctx context.Context, programID string, limit int) ([]ProgramSignature, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ps.program_id, ps.signature, ps.processed
		FROM indexer.program_signatures ps
		JOIN indexer.signatures s ON s.signature = ps.signature
		WHERE ps.program_id = $1 AND ps.processed = FALSE
		ORDER BY s.timestamp ASC
		LIMIT $2
	`, programID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list unprocessed for %s: %w", programID, err)
	}
	defer rows.Close()

	var out []ProgramSignature
	for rows.Next() {
		var ps ProgramSignature
		if err := rows.Scan(&ps.ProgramID, &ps.Signature, &ps.Processed); err != nil {
			return nil, fmt.Errorf("store: scan program signature: %w", err)
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

// MarkProcessed sets processed=true for a program/signature pair. It is a
// no-op (not an error) if the row is already marked, matching the
// at-least-once-then-marked-processed contract of the decoder loop.
func (s *Store) MarkProcessed(ctx context.Context, programID, signature string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE indexer.program_signatures SET processed = TRUE
		WHERE program_id = $1 AND signature = $2
	`, programID, signature)
	if err != nil {
		return fmt.Errorf("store: mark processed %s/%s: %w", programID, signature, err)
	}
	return nil
}

// OldestProgramSignature returns the program_signature with the smallest
// joined timestamp for programID. Used by a DOWN cursor to seed its
// starting point when it has never advanced.
func (s *Store) OldestProgramSignature(ctx context.Context, programID string) (ProgramSignature, error) {
	return s.programSignatureByOrder(ctx, programID, "ASC")
}

// NewestProgramSignature returns the program_signature with the largest
// joined timestamp for programID.
func (s *Store) NewestProgramSignature(ctx context.Context, programID string) (ProgramSignature, error) {
	return s.programSignatureByOrder(ctx, programID, "DESC")
}

func (s *Store) programSignatureByOrder(ctx context.Context, programID, order string) (ProgramSignature, error) {
	// order is a compile-time constant passed by the two exported wrappers
	// above, never user input, so string-building it in is safe.
	query := `
		SELECT ps.program_id, ps.signature, ps.processed
		FROM indexer.program_signatures ps
		JOIN indexer.signatures s ON s.signature = ps.signature
		WHERE ps.program_id = $1
		ORDER BY s.timestamp ` + order + `
		LIMIT 1
	`
	var ps ProgramSignature
	err := s.pool.QueryRow(ctx, query, programID).Scan(&ps.ProgramID, &ps.Signature, &ps.Processed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProgramSignature{}, ErrNotFound
		}
		return ProgramSignature{}, fmt.Errorf("store: program signature by order for %s: %w", programID, err)
	}
	return ps, nil
}
