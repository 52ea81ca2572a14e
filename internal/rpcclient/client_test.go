package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rogue-hub/marketplace-indexer/pkg/logging"
)

func newTestClient() *Client {
	return &Client{
		log:         logging.GetDefault().Component("rpcclient-test"),
		maxAttempts: 5,
		backoffUnit: time.Millisecond,
		maxBackoff:  5 * time.Millisecond,
	}
}

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	c := newTestClient()
	attempts := 0

	err := c.withRetry(context.Background(), "test-op", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient failure")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestWithRetryExhausted(t *testing.T) {
	c := newTestClient()
	attempts := 0

	start := time.Now()
	err := c.withRetry(context.Background(), "test-op", func(ctx context.Context) error {
		attempts++
		return errors.New("permanent failure")
	})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 5 {
		t.Errorf("attempts = %d, want 5", attempts)
	}
	if elapsed <= 0 {
		t.Errorf("elapsed = %v, want > 0", elapsed)
	}
}

func TestWithRetryAbortsOnContextCancellation(t *testing.T) {
	c := newTestClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := c.withRetry(ctx, "test-op", func(ctx context.Context) error {
		attempts++
		return errors.New("should not be called")
	})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if attempts != 0 {
		t.Errorf("attempts = %d, want 0 (context already cancelled)", attempts)
	}
}

func TestWireInstructionParsedTransferChecked(t *testing.T) {
	wi := wireInstruction{
		ProgramID: "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
		Parsed: []byte(`{
			"type": "transferChecked",
			"info": {
				"mint": "So11111111111111111111111111111111111111112",
				"source": "source-wallet",
				"tokenAmount": {"amount": "1000000", "decimals": 9}
			}
		}`),
	}
	inst := wi.toInstruction()
	if !inst.Parsed || inst.ParsedType != "transferChecked" {
		t.Fatalf("unexpected instruction: %+v", inst)
	}
	if inst.Amount != 1000000 {
		t.Errorf("Amount = %d, want 1000000", inst.Amount)
	}
	if inst.Decimals == nil || *inst.Decimals != 9 {
		t.Errorf("Decimals = %v, want 9", inst.Decimals)
	}
}

func TestWireTransactionToResult(t *testing.T) {
	payload := `{
		"slot": 12345,
		"blockTime": 1700000000,
		"meta": {
			"err": null,
			"innerInstructions": [
				{
					"index": 2,
					"instructions": [
						{
							"programId": "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
							"program": "spl-token",
							"parsed": {
								"type": "transferChecked",
								"info": {
									"mint": "mint-a",
									"source": "src-a",
									"tokenAmount": {"amount": "42", "decimals": 6}
								}
							}
						}
					]
				}
			]
		},
		"transaction": {
			"message": {
				"instructions": [
					{"programId": "mkt111", "accounts": ["a", "b"], "data": "deadbeef"},
					{"programId": "other", "accounts": [], "data": ""},
					{"programId": "mkt111", "accounts": ["c"], "data": "cafe"}
				]
			}
		}
	}`

	var wt wireTransaction
	if err := json.Unmarshal([]byte(payload), &wt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	result := wt.toResult()

	if result.Failed {
		t.Error("expected Failed=false for err=null")
	}
	if result.Slot != 12345 {
		t.Errorf("Slot = %d, want 12345", result.Slot)
	}
	if result.BlockTime == nil || result.BlockTime.Unix() != 1700000000 {
		t.Errorf("BlockTime = %v, want 1700000000", result.BlockTime)
	}
	if len(result.Instructions) != 3 {
		t.Fatalf("len(Instructions) = %d, want 3", len(result.Instructions))
	}
	if result.Instructions[0].Parsed || result.Instructions[0].Data != "deadbeef" {
		t.Errorf("instruction 0 = %+v, want partially decoded with data deadbeef", result.Instructions[0])
	}

	inner := result.InnerByOuterIdx[2]
	if len(inner) != 1 {
		t.Fatalf("len(inner[2]) = %d, want 1", len(inner))
	}
	if inner[0].ParsedType != "transferChecked" || inner[0].Amount != 42 {
		t.Errorf("inner = %+v, want transferChecked amount 42", inner[0])
	}
	if inner[0].Decimals == nil || *inner[0].Decimals != 6 {
		t.Errorf("inner decimals = %v, want 6", inner[0].Decimals)
	}
}

func TestWireTransactionFailedMeta(t *testing.T) {
	payload := `{"slot": 1, "meta": {"err": {"InstructionError": [0, "Custom"]}}, "transaction": {"message": {"instructions": []}}}`

	var wt wireTransaction
	if err := json.Unmarshal([]byte(payload), &wt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !wt.toResult().Failed {
		t.Error("expected Failed=true for non-null meta.err")
	}
}

func TestWireInstructionPartiallyDecoded(t *testing.T) {
	wi := wireInstruction{
		ProgramID: "marketplaceProgram11111111111111111111111",
		Accounts:  []string{"a", "b"},
		Data:      "abc123",
	}
	inst := wi.toInstruction()
	if inst.Parsed {
		t.Fatalf("expected Parsed=false, got %+v", inst)
	}
	if inst.Data != "abc123" {
		t.Errorf("Data = %s, want abc123", inst.Data)
	}
}
