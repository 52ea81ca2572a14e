// Package decoder fetches unprocessed marketplace-program signatures,
// decodes their instructions, and persists the resulting exchanges.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rogue-hub/marketplace-indexer/internal/marketplace"
	"github.com/rogue-hub/marketplace-indexer/internal/rpcclient"
	"github.com/rogue-hub/marketplace-indexer/internal/store"
	"github.com/rogue-hub/marketplace-indexer/pkg/logging"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultBatchSize    = 1000
)

// Store is the subset of internal/store.Store the decoder needs.
type Store interface {
	ListUnprocessed(ctx context.Context, programID string, limit int) ([]store.ProgramSignature, error)
	MarkProcessed(ctx context.Context, programID, signature string) error
	CreateExchangeWithDimensions(ctx context.Context, ex store.NewExchange) (store.Exchange, error)
}

// RPCClient is the subset of internal/rpcclient.Client the decoder needs.
type RPCClient interface {
	GetTransaction(ctx context.Context, signature string) (*rpcclient.TransactionResult, error)
}

// Decoder drains program_signatures for one program, decoding each into an
// exchange row or marking it processed as a no-op (failed transaction,
// non-exchange instruction).
type Decoder struct {
	store     Store
	rpc       RPCClient
	programID string
	log       *logging.Logger

	pollInterval time.Duration
	batchSize    int
}

// New creates a Decoder for the given marketplace program.
func New(st Store, rc RPCClient, programID string) *Decoder {
	return &Decoder{
		store:        st,
		rpc:          rc,
		programID:    programID,
		log:          logging.GetDefault().Component("decoder").With("program", programID),
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
	}
}

// Run polls for unprocessed signatures and decodes them until ctx is
// cancelled or processOne returns an error. An unrecognized instruction
// discriminator is deliberately fatal: it means a new on-chain instruction
// type this pipeline doesn't understand yet. Inner-transfer pattern faults
// are not fatal here; processOne leaves that signature unprocessed and the
// loop moves on.
func (d *Decoder) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := d.store.ListUnprocessed(ctx, d.programID, d.batchSize)
		if err != nil {
			return fmt.Errorf("decoder: list unprocessed: %w", err)
		}

		if len(batch) == 0 {
			if err := d.sleep(ctx); err != nil {
				return err
			}
			continue
		}

		for _, ps := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := d.processOne(ctx, ps.Signature); err != nil {
				return err
			}
		}
	}
}

// ProcessSignature decodes exactly one signature. Used by the CLI's
// one-shot --signature flag.
func (d *Decoder) ProcessSignature(ctx context.Context, signature string) error {
	return d.processOne(ctx, signature)
}

// processOne handles one signature end to end. An unrecognized instruction
// discriminator is a structurally new on-chain shape and propagates as a
// fatal error per the decoder's failure stance; an unrecognized
// inner-transfer pattern, malformed account list, or missing block_time
// (all *marketplace.DecodeError) is logged and leaves just this signature
// unprocessed, so one bad transaction doesn't block the rest of the batch.
// Any other persistence error is NOT a decode fault — database failures
// propagate to Run and kill the process for the supervisor to restart.
func (d *Decoder) processOne(ctx context.Context, signature string) error {
	tx, err := d.rpc.GetTransaction(ctx, signature)
	if err != nil {
		return fmt.Errorf("decoder: fetch transaction %s: %w", signature, err)
	}

	if tx.Failed {
		d.log.Debug("transaction failed on-chain, skipping", "signature", signature)
		return d.markProcessed(ctx, signature)
	}

	for idx, inst := range tx.Instructions {
		if inst.ProgramID != d.programID {
			continue
		}
		if inst.Parsed {
			return fmt.Errorf("decoder: marketplace instruction %s:%d came back parsed, expected partially-decoded", signature, idx)
		}

		decoded, err := marketplace.Decode(signature, inst.Data)
		if err != nil {
			return fmt.Errorf("decoder: %w", err)
		}
		if decoded.Kind != marketplace.KindProcessExchange {
			continue
		}

		if err := d.persistExchange(ctx, signature, idx, inst, tx); err != nil {
			var decodeErr *marketplace.DecodeError
			if errors.As(err, &decodeErr) {
				d.log.Warn("decode fault, leaving signature unprocessed", "signature", signature, "index", idx, "error", err)
				return nil
			}
			return fmt.Errorf("decoder: persist exchange %s:%d: %w", signature, idx, err)
		}
	}

	return d.markProcessed(ctx, signature)
}

func (d *Decoder) persistExchange(ctx context.Context, signature string, index int, inst rpcclient.Instruction, tx *rpcclient.TransactionResult) error {
	slots, err := marketplace.MapAccounts(signature, inst.Accounts)
	if err != nil {
		return err
	}

	transfers := marketplace.ToInnerTransfers(tx.InnerByOuterIdx[index])
	record, err := marketplace.BuildExchange(signature, slots, transfers)
	if err != nil {
		return err
	}

	if tx.BlockTime == nil {
		return &marketplace.DecodeError{Signature: signature, Detail: "transaction missing block_time"}
	}

	_, err = d.store.CreateExchangeWithDimensions(ctx, store.NewExchange{
		Slot:         int64(tx.Slot),
		Signature:    signature,
		Index:        index,
		Timestamp:    *tx.BlockTime,
		Side:         store.Side(record.Side),
		BuyerWallet:  record.BuyerWallet,
		SellerWallet: record.SellerWallet,
		AssetMint:    record.AssetMint,
		PairMint:     record.PairMint,
		Price:        record.Price,
		Size:         record.Size,
		Volume:       record.Volume,
		Fee:          record.Fee,
		Buddy:        record.Buddy,
	})
	return err
}

func (d *Decoder) markProcessed(ctx context.Context, signature string) error {
	if err := d.store.MarkProcessed(ctx, d.programID, signature); err != nil {
		return fmt.Errorf("decoder: mark processed %s: %w", signature, err)
	}
	return nil
}

func (d *Decoder) sleep(ctx context.Context) error {
	timer := time.NewTimer(d.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
