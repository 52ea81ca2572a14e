// Package harvester walks a Solana program's signature history forward (UP)
// or backward (DOWN) from a resumable cursor, recording every signature it
// sees.
package harvester

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/rogue-hub/marketplace-indexer/internal/rpcclient"
	"github.com/rogue-hub/marketplace-indexer/internal/store"
	"github.com/rogue-hub/marketplace-indexer/pkg/logging"
)

const (
	defaultPollInterval    = 5 * time.Second
	defaultGapFillPageSize = 100
)

// Store is the subset of internal/store.Store the harvester needs.
type Store interface {
	GetCursor(ctx context.Context, name string) (store.Cursor, error)
	UpdateCursor(ctx context.Context, name string, patch store.CursorPatch) (store.Cursor, error)
	PutSignature(ctx context.Context, sig store.Signature) error
	PutProgramSignature(ctx context.Context, programID, signature string, processed bool) error
	OldestProgramSignature(ctx context.Context, programID string) (store.ProgramSignature, error)
}

// RPCClient is the subset of internal/rpcclient.Client the harvester needs.
type RPCClient interface {
	ListSignatures(ctx context.Context, program solana.PublicKey, before, until *solana.Signature, limit int, commitment rpc.CommitmentType) ([]rpcclient.SignatureInfo, error)
}

// Harvester drives one named cursor's fetch loop: indefinitely for UP,
// until the RPC returns an empty page for DOWN.
type Harvester struct {
	store     Store
	rpc       RPCClient
	name      string
	programID string
	program   solana.PublicKey
	log       *logging.Logger

	pollInterval    time.Duration
	gapFillPageSize int
}

// New creates a Harvester for the named cursor against program.
func New(st Store, rc RPCClient, name string, program solana.PublicKey) *Harvester {
	return &Harvester{
		store:           st,
		rpc:             rc,
		name:            name,
		programID:       program.String(),
		program:         program,
		log:             logging.GetDefault().Component("harvester").With("cursor", name),
		pollInterval:    defaultPollInterval,
		gapFillPageSize: defaultGapFillPageSize,
	}
}

// Run drives the cursor to completion. For direction=DOWN it returns nil
// once the RPC reports exhaustion (an empty page). For direction=UP it runs
// until ctx is cancelled.
func (h *Harvester) Run(ctx context.Context) error {
	cursor, err := h.store.GetCursor(ctx, h.name)
	if err != nil {
		return fmt.Errorf("harvester: load cursor %s: %w", h.name, err)
	}

	if cursor.Direction == store.DirectionUp && cursor.Signature != nil {
		if err := h.gapFill(ctx, cursor); err != nil {
			return fmt.Errorf("harvester: gap fill %s: %w", h.name, err)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cursor, err := h.store.GetCursor(ctx, h.name)
		if err != nil {
			return fmt.Errorf("harvester: reload cursor %s: %w", h.name, err)
		}

		done, err := h.step(ctx, cursor)
		if err != nil {
			return fmt.Errorf("harvester: step %s: %w", h.name, err)
		}
		if done {
			return nil
		}
	}
}

// gapFill replays the newest end of the program's signature history,
// inserting every descriptor, until it either re-encounters the cursor's
// current signature or the page comes back shorter than gapFillPageSize
// (the tail of available history). It then advances the cursor to the
// newest signature now on record, which is the first descriptor the fill
// actually inserted: pages arrive newest-first starting from the head.
func (h *Harvester) gapFill(ctx context.Context, cursor store.Cursor) error {
	target := *cursor.Signature
	var before *solana.Signature
	var newest *rpcclient.SignatureInfo

	for {
		page, err := h.rpc.ListSignatures(ctx, h.program, before, nil, h.gapFillPageSize, rpc.CommitmentFinalized)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}

		reachedTarget := false
		for i, entry := range page {
			if entry.Signature == target {
				reachedTarget = true
				break
			}
			inserted, err := h.insertSignature(ctx, entry)
			if err != nil {
				return err
			}
			if inserted && newest == nil {
				newest = &page[i]
			}
		}
		if reachedTarget {
			break
		}

		last := page[len(page)-1]
		sig, err := solana.SignatureFromBase58(last.Signature)
		if err != nil {
			return fmt.Errorf("gap fill: parse signature %s: %w", last.Signature, err)
		}
		before = &sig

		if len(page) < h.gapFillPageSize {
			break
		}
	}

	if newest == nil {
		return nil
	}

	block := int64(newest.Slot)
	_, err := h.store.UpdateCursor(ctx, h.name, store.CursorPatch{
		Signature: &newest.Signature,
		Block:     &block,
		Timestamp: newest.BlockTime,
	})
	return err
}

// step runs one iteration of the steady loop: compute bounds from the
// cursor, fetch one page, persist it, advance the cursor. The returned bool
// reports whether the cursor has finished (DOWN exhaustion).
func (h *Harvester) step(ctx context.Context, cursor store.Cursor) (bool, error) {
	before, until, err := h.bounds(ctx, cursor)
	if err != nil {
		return false, err
	}

	page, err := h.rpc.ListSignatures(ctx, h.program, before, until, cursor.FetchLimit, rpc.CommitmentFinalized)
	if err != nil {
		return false, err
	}

	if len(page) == 0 {
		if cursor.Direction == store.DirectionDown {
			h.log.Info("cursor exhausted")
			return true, nil
		}
		h.log.Debug("no new signatures, sleeping", "interval", h.pollInterval)
		return false, h.sleep(ctx)
	}

	for _, entry := range page {
		inserted, err := h.insertSignature(ctx, entry)
		if err != nil {
			return false, err
		}
		if inserted && cursor.Direction == store.DirectionDown {
			if err := h.advanceDown(ctx, entry); err != nil {
				return false, err
			}
		}
	}

	if cursor.Direction == store.DirectionUp {
		if err := h.advanceUp(ctx, cursor, page[0]); err != nil {
			return false, err
		}
	}

	return false, h.sleep(ctx)
}

// bounds computes the before/until pair to pass to ListSignatures for the
// cursor's direction, seeding a DOWN cursor's starting point on its first
// iteration.
func (h *Harvester) bounds(ctx context.Context, cursor store.Cursor) (before, until *solana.Signature, err error) {
	if cursor.Direction == store.DirectionUp {
		if cursor.Signature != nil {
			sig, err := solana.SignatureFromBase58(*cursor.Signature)
			if err != nil {
				return nil, nil, fmt.Errorf("parse cursor signature: %w", err)
			}
			until = &sig
		}
		return nil, until, nil
	}

	if cursor.Signature == nil {
		oldest, err := h.store.OldestProgramSignature(ctx, h.programID)
		if err != nil && err != store.ErrNotFound {
			return nil, nil, err
		}
		if err == nil {
			sig, err := solana.SignatureFromBase58(oldest.Signature)
			if err != nil {
				return nil, nil, fmt.Errorf("parse oldest signature: %w", err)
			}
			before = &sig
		}
		return before, nil, nil
	}

	sig, err := solana.SignatureFromBase58(*cursor.Signature)
	if err != nil {
		return nil, nil, fmt.Errorf("parse cursor signature: %w", err)
	}
	before = &sig
	return before, nil, nil
}

// insertSignature records one descriptor, reporting whether it was actually
// written: descriptors without a block_time are skipped, and the cursor is
// never set to a skipped signature. The cursor can still move past a skipped
// signature to a recorded entry of the same page, after which the skipped
// one is not fetched again.
func (h *Harvester) insertSignature(ctx context.Context, entry rpcclient.SignatureInfo) (bool, error) {
	if entry.BlockTime == nil {
		h.log.Warn("signature missing block_time, skipping", "signature", entry.Signature)
		return false, nil
	}

	if err := h.store.PutSignature(ctx, store.Signature{
		Signature: entry.Signature,
		Slot:      int64(entry.Slot),
		Timestamp: *entry.BlockTime,
	}); err != nil {
		return false, err
	}
	return true, h.store.PutProgramSignature(ctx, h.programID, entry.Signature, false)
}

// advanceUp applies the UP cursor update rule: only move forward, using the
// page's first (newest) entry, and only when it's actually newer than the
// cursor already has on record.
func (h *Harvester) advanceUp(ctx context.Context, cursor store.Cursor, newest rpcclient.SignatureInfo) error {
	if newest.BlockTime == nil {
		return nil
	}
	if cursor.Block != nil && *cursor.Block >= int64(newest.Slot) {
		return nil
	}

	block := int64(newest.Slot)
	signature := newest.Signature
	_, err := h.store.UpdateCursor(ctx, h.name, store.CursorPatch{
		Signature: &signature,
		Block:     &block,
		Timestamp: newest.BlockTime,
	})
	return err
}

// advanceDown applies the DOWN cursor update rule: unconditionally move to
// the current (older) entry on every row.
func (h *Harvester) advanceDown(ctx context.Context, entry rpcclient.SignatureInfo) error {
	if entry.BlockTime == nil {
		return nil
	}

	block := int64(entry.Slot)
	signature := entry.Signature
	_, err := h.store.UpdateCursor(ctx, h.name, store.CursorPatch{
		Signature: &signature,
		Block:     &block,
		Timestamp: entry.BlockTime,
	})
	return err
}

func (h *Harvester) sleep(ctx context.Context) error {
	timer := time.NewTimer(h.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
