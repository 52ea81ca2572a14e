// Package rpcclient wraps the Solana JSON-RPC client with the two calls the
// harvester and decoder need, plus a shared retry policy.
package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/rogue-hub/marketplace-indexer/pkg/logging"
)

const (
	defaultMaxAttempts = 5
	defaultBackoffUnit = 3 * time.Second
	defaultMaxBackoff  = 30 * time.Second
	pageLimitCap       = 1000
)

// Client is a thin facade over rpc.Client adding retry-with-backoff and
// translating the raw jsonParsed wire shapes into this package's types.
type Client struct {
	rpc *rpc.Client
	log *logging.Logger

	// Retry knobs default to 5 attempts with min(30s, attempt*3s)
	// backoff and are only overridden by tests.
	maxAttempts int
	backoffUnit time.Duration
	maxBackoff  time.Duration
}

// New creates a Client against the given HTTP RPC endpoint.
func New(rpcURL string) *Client {
	return &Client{
		rpc:         rpc.New(rpcURL),
		log:         logging.GetDefault().Component("rpcclient"),
		maxAttempts: defaultMaxAttempts,
		backoffUnit: defaultBackoffUnit,
		maxBackoff:  defaultMaxBackoff,
	}
}

// ListSignatures returns one page of signatures for program, newest-first.
// before is an exclusive upper bound (paginate older by passing the last
// entry of the previous page); until is an exclusive lower bound. Either or
// both may be nil.
func (c *Client) ListSignatures(ctx context.Context, program solana.PublicKey, before, until *solana.Signature, limit int, commitment rpc.CommitmentType) ([]SignatureInfo, error) {
	if limit <= 0 || limit > pageLimitCap {
		limit = pageLimitCap
	}

	opts := &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: commitment,
	}
	if before != nil {
		opts.Before = *before
	}
	if until != nil {
		opts.Until = *until
	}

	var page []*rpc.TransactionSignature
	err := c.withRetry(ctx, "getSignaturesForAddress", func(ctx context.Context) error {
		out, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, program, opts)
		if err != nil {
			return err
		}
		page = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := make([]SignatureInfo, 0, len(page))
	for _, entry := range page {
		info := SignatureInfo{
			Signature: entry.Signature.String(),
			Slot:      entry.Slot,
			Err:       entry.Err != nil,
		}
		if entry.BlockTime != nil {
			t := entry.BlockTime.Time()
			info.BlockTime = &t
		}
		result = append(result, info)
	}
	return result, nil
}

// GetTransaction fetches a single transaction at finalized commitment with
// jsonParsed encoding and translates it into a TransactionResult.
//
// The call goes through RPCCallForInto rather than the typed GetTransaction
// helper: solana-go's transaction envelope models the json and binary
// encodings, not jsonParsed, and jsonParsed is the one encoding that hands
// us the validator-parsed SPL transfers plus the marketplace program's
// partially-decoded instructions in the shape internal/marketplace consumes.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*TransactionResult, error) {
	if _, err := solana.SignatureFromBase58(signature); err != nil {
		return nil, fmt.Errorf("rpcclient: invalid signature %q: %w", signature, err)
	}

	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"commitment":                     string(rpc.CommitmentFinalized),
			"maxSupportedTransactionVersion": 0,
		},
	}

	var raw *wireTransaction
	err := c.withRetry(ctx, "getTransaction", func(ctx context.Context) error {
		raw = nil
		return c.rpc.RPCCallForInto(ctx, &raw, "getTransaction", params)
	})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("rpcclient: transaction %s not found", signature)
	}

	return raw.toResult(), nil
}

// wireTransaction mirrors the jsonParsed getTransaction response envelope.
type wireTransaction struct {
	Slot      uint64 `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
	Meta      *struct {
		Err               interface{} `json:"err"`
		InnerInstructions []struct {
			Index        int               `json:"index"`
			Instructions []wireInstruction `json:"instructions"`
		} `json:"innerInstructions"`
	} `json:"meta"`
	Transaction struct {
		Message struct {
			Instructions []wireInstruction `json:"instructions"`
		} `json:"message"`
	} `json:"transaction"`
}

func (wt *wireTransaction) toResult() *TransactionResult {
	result := &TransactionResult{
		Slot:            wt.Slot,
		InnerByOuterIdx: make(map[int][]Instruction),
	}
	if wt.BlockTime != nil {
		t := time.Unix(*wt.BlockTime, 0).UTC()
		result.BlockTime = &t
	}
	for _, wi := range wt.Transaction.Message.Instructions {
		result.Instructions = append(result.Instructions, wi.toInstruction())
	}
	if wt.Meta != nil {
		if wt.Meta.Err != nil {
			result.Failed = true
		}
		for _, inner := range wt.Meta.InnerInstructions {
			converted := make([]Instruction, 0, len(inner.Instructions))
			for _, wi := range inner.Instructions {
				converted = append(converted, wi.toInstruction())
			}
			result.InnerByOuterIdx[inner.Index] = converted
		}
	}
	return result
}

// wireInstruction mirrors the union of "parsed" and "partiallyDecoded"
// jsonParsed instruction shapes on the wire.
type wireInstruction struct {
	ProgramID string          `json:"programId"`
	Program   string          `json:"program"`
	Parsed    json.RawMessage `json:"parsed"`
	Accounts  []string        `json:"accounts"`
	Data      string          `json:"data"`
}

func (wi wireInstruction) toInstruction() Instruction {
	if len(wi.Parsed) == 0 {
		return Instruction{
			ProgramID: wi.ProgramID,
			Parsed:    false,
			Accounts:  wi.Accounts,
			Data:      wi.Data,
		}
	}

	var body struct {
		Type string `json:"type"`
		Info struct {
			Mint        string `json:"mint"`
			Source      string `json:"source"`
			Amount      string `json:"amount"`
			TokenAmount struct {
				Amount   string `json:"amount"`
				Decimals uint8  `json:"decimals"`
			} `json:"tokenAmount"`
		} `json:"info"`
	}
	if err := json.Unmarshal(wi.Parsed, &body); err != nil {
		return Instruction{ProgramID: wi.ProgramID, Parsed: true, ParsedType: "unknown"}
	}

	inst := Instruction{
		ProgramID:  wi.ProgramID,
		Parsed:     true,
		ParsedType: body.Type,
		Source:     body.Info.Source,
	}
	switch body.Type {
	case "transferChecked":
		inst.Mint = body.Info.Mint
		decimals := body.Info.TokenAmount.Decimals
		inst.Decimals = &decimals
		amount, _ := parseUint64(body.Info.TokenAmount.Amount)
		inst.Amount = amount
	case "transfer":
		amount, _ := parseUint64(body.Info.Amount)
		inst.Amount = amount
	}
	return inst
}

func parseUint64(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

// withRetry runs fn up to maxAttempts times, sleeping min(maxBackoff,
// attempt*backoffUnit) between attempts. Context cancellation aborts
// immediately, whether observed before an attempt or during the sleep.
func (c *Client) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	maxAttempts := c.maxAttempts
	if maxAttempts == 0 {
		maxAttempts = defaultMaxAttempts
	}
	backoffUnit := c.backoffUnit
	if backoffUnit == 0 {
		backoffUnit = defaultBackoffUnit
	}
	maxBackoff := c.maxBackoff
	if maxBackoff == 0 {
		maxBackoff = defaultMaxBackoff
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		wait := time.Duration(attempt) * backoffUnit
		if wait > maxBackoff {
			wait = maxBackoff
		}
		c.log.Warn("rpc call failed, retrying", "op", op, "attempt", attempt, "wait", wait, "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("rpcclient: %s failed after %d attempts: %w", op, maxAttempts, lastErr)
}
