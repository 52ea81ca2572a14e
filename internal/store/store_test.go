package store

import (
	"context"
	"os"
	"testing"
	"time"
)

// newTestStore opens a real Store against DATABASE_URL when set. These
// tests exercise the thin SQL translation layer against a live PostgreSQL
// instance; the harvester/decoder/marketplace logic where the engineering
// lives is tested separately against a fake store.Store.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping store integration test")
	}
	ctx := context.Background()
	s, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestCursorCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	name := "test-cursor-" + time.Now().UTC().Format(time.RFC3339Nano)
	err := s.CreateCursor(ctx, Cursor{
		Name:       name,
		ProgramID:  "Gw5aJZRsPyuNKMTbMeyLbDVMgJkPHhz5AA7AfCpxhYNh",
		Direction:  DirectionUp,
		FetchLimit: 100,
	})
	if err != nil {
		t.Fatalf("CreateCursor: %v", err)
	}

	got, err := s.GetCursor(ctx, name)
	if err != nil {
		t.Fatalf("GetCursor: %v", err)
	}
	if got.Direction != DirectionUp {
		t.Errorf("Direction = %s, want UP", got.Direction)
	}

	sig := "5x1btCNm9VBZ3J9gFvVwcW6bpkpBoKY9SBDXnWpG6pmdavz8oo2YWHmU4KZ4rQ8iE"
	block := int64(12345)
	patched, err := s.UpdateCursor(ctx, name, CursorPatch{Signature: &sig, Block: &block})
	if err != nil {
		t.Fatalf("UpdateCursor: %v", err)
	}
	if patched.Signature == nil || *patched.Signature != sig {
		t.Errorf("Signature = %v, want %s", patched.Signature, sig)
	}
	if patched.Block == nil || *patched.Block != block {
		t.Errorf("Block = %v, want %d", patched.Block, block)
	}

	if _, err := s.GetCursor(ctx, "does-not-exist"); err != ErrNotFound {
		t.Errorf("GetCursor(missing) = %v, want ErrNotFound", err)
	}
}

func TestSignatureIdempotence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sig := Signature{Signature: "sig-idem-1", Slot: 1, Timestamp: time.Now().UTC()}
	if err := s.PutSignature(ctx, sig); err != nil {
		t.Fatalf("PutSignature: %v", err)
	}
	if err := s.PutSignature(ctx, sig); err != nil {
		t.Fatalf("PutSignature (second insert): %v", err)
	}

	const program = "program-under-test"
	if err := s.PutProgramSignature(ctx, program, sig.Signature, false); err != nil {
		t.Fatalf("PutProgramSignature: %v", err)
	}
	if err := s.PutProgramSignature(ctx, program, sig.Signature, false); err != nil {
		t.Fatalf("PutProgramSignature (second insert): %v", err)
	}

	unprocessed, err := s.ListUnprocessed(ctx, program, 10)
	if err != nil {
		t.Fatalf("ListUnprocessed: %v", err)
	}
	if len(unprocessed) != 1 {
		t.Fatalf("len(unprocessed) = %d, want 1", len(unprocessed))
	}

	if err := s.MarkProcessed(ctx, program, sig.Signature); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if err := s.MarkProcessed(ctx, program, sig.Signature); err != nil {
		t.Fatalf("MarkProcessed (already processed): %v", err)
	}

	unprocessed, err = s.ListUnprocessed(ctx, program, 10)
	if err != nil {
		t.Fatalf("ListUnprocessed after mark: %v", err)
	}
	if len(unprocessed) != 0 {
		t.Fatalf("len(unprocessed) = %d, want 0", len(unprocessed))
	}
}

func TestCreateExchangeWithDimensionsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sig := Signature{Signature: "sig-exchange-1", Slot: 1, Timestamp: time.Now().UTC()}
	if err := s.PutSignature(ctx, sig); err != nil {
		t.Fatalf("PutSignature: %v", err)
	}

	ex := NewExchange{
		Slot:         1,
		Signature:    sig.Signature,
		Index:        0,
		Timestamp:    sig.Timestamp,
		Side:         SideBuy,
		BuyerWallet:  "buyer-wallet-1",
		SellerWallet: "seller-wallet-1",
		AssetMint:    "asset-mint-1",
		PairMint:     "pair-mint-1",
		Price:        1.5,
		Size:         100,
		Volume:       150,
		Fee:          1,
	}

	first, err := s.CreateExchangeWithDimensions(ctx, ex)
	if err != nil {
		t.Fatalf("CreateExchangeWithDimensions: %v", err)
	}
	second, err := s.CreateExchangeWithDimensions(ctx, ex)
	if err != nil {
		t.Fatalf("CreateExchangeWithDimensions (retry): %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("retry produced a new row: %d != %d", first.ID, second.ID)
	}

	players, err := s.ListPlayers(ctx, "buyer-wallet-1")
	if err != nil {
		t.Fatalf("ListPlayers: %v", err)
	}
	if len(players) != 1 {
		t.Fatalf("len(players) = %d, want 1", len(players))
	}
}
