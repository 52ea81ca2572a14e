package harvester

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"

	"github.com/rogue-hub/marketplace-indexer/internal/rpcclient"
	"github.com/rogue-hub/marketplace-indexer/internal/store"
)

func testProgram() solana.PublicKey {
	var b [32]byte
	for i := range b {
		b[i] = 7
	}
	return solana.PublicKeyFromBytes(b[:])
}

// testSig builds a valid 64-byte base58 signature; the harvester parses
// cursor signatures back through solana.SignatureFromBase58, so fakes can't
// use arbitrary short strings.
func testSig(b byte) string {
	var raw [64]byte
	for i := range raw {
		raw[i] = b
	}
	return base58.Encode(raw[:])
}

var (
	sig1 = testSig(1)
	sig2 = testSig(2)
	sig3 = testSig(3)
	sig4 = testSig(4)
)

// fakeStore is a minimal in-memory stand-in for internal/store.Store, just
// enough of the harvester's Store interface to drive the scenarios below.
type fakeStore struct {
	cursor            store.Cursor
	signatures        map[string]store.Signature
	programSignatures map[string]store.ProgramSignature
}

func newFakeStore(cursor store.Cursor) *fakeStore {
	return &fakeStore{
		cursor:            cursor,
		signatures:        make(map[string]store.Signature),
		programSignatures: make(map[string]store.ProgramSignature),
	}
}

func (f *fakeStore) GetCursor(ctx context.Context, name string) (store.Cursor, error) {
	return f.cursor, nil
}

func (f *fakeStore) UpdateCursor(ctx context.Context, name string, patch store.CursorPatch) (store.Cursor, error) {
	if patch.Signature != nil {
		f.cursor.Signature = patch.Signature
	}
	if patch.Block != nil {
		f.cursor.Block = patch.Block
	}
	if patch.Timestamp != nil {
		f.cursor.Timestamp = patch.Timestamp
	}
	if patch.Finished != nil {
		f.cursor.Finished = patch.Finished
	}
	return f.cursor, nil
}

func (f *fakeStore) PutSignature(ctx context.Context, sig store.Signature) error {
	f.signatures[sig.Signature] = sig
	return nil
}

func (f *fakeStore) PutProgramSignature(ctx context.Context, programID, signature string, processed bool) error {
	key := programID + "/" + signature
	if _, exists := f.programSignatures[key]; exists {
		return nil
	}
	f.programSignatures[key] = store.ProgramSignature{ProgramID: programID, Signature: signature, Processed: processed}
	return nil
}

func (f *fakeStore) OldestProgramSignature(ctx context.Context, programID string) (store.ProgramSignature, error) {
	var oldest store.ProgramSignature
	var oldestTime time.Time
	found := false
	for _, ps := range f.programSignatures {
		if ps.ProgramID != programID {
			continue
		}
		sig := f.signatures[ps.Signature]
		if !found || sig.Timestamp.Before(oldestTime) {
			oldest = ps
			oldestTime = sig.Timestamp
			found = true
		}
	}
	if !found {
		return store.ProgramSignature{}, store.ErrNotFound
	}
	return oldest, nil
}

// fakeRPC returns queued pages in order, one per call to ListSignatures.
type fakeRPC struct {
	pages [][]rpcclient.SignatureInfo
	calls int
}

func (f *fakeRPC) ListSignatures(ctx context.Context, program solana.PublicKey, before, until *solana.Signature, limit int, commitment rpc.CommitmentType) ([]rpcclient.SignatureInfo, error) {
	f.calls++
	if len(f.pages) == 0 {
		return nil, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func blockTime(seconds int64) *time.Time {
	t := time.Unix(seconds, 0).UTC()
	return &t
}

func ptr(s string) *string { return &s }

func ptrInt64(v int64) *int64 { return &v }

func TestSeedUpCursor(t *testing.T) {
	program := testProgram()
	cursor := store.Cursor{Name: "m", ProgramID: program.String(), Direction: store.DirectionUp, FetchLimit: 3}
	st := newFakeStore(cursor)
	rc := &fakeRPC{pages: [][]rpcclient.SignatureInfo{
		{
			{Signature: sig3, Slot: 300, BlockTime: blockTime(30)},
			{Signature: sig2, Slot: 200, BlockTime: blockTime(20)},
			{Signature: sig1, Slot: 100, BlockTime: blockTime(10)},
		},
	}}
	h := New(st, rc, "m", program)
	h.pollInterval = time.Millisecond

	done, err := h.step(context.Background(), st.cursor)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if done {
		t.Fatal("UP cursor should never report done")
	}

	for _, sig := range []string{sig1, sig2, sig3} {
		if _, ok := st.signatures[sig]; !ok {
			t.Errorf("expected signature %s to be recorded", sig)
		}
	}

	if st.cursor.Signature == nil || *st.cursor.Signature != sig3 {
		t.Fatalf("cursor signature = %v, want %s", st.cursor.Signature, sig3)
	}
	if st.cursor.Block == nil || *st.cursor.Block != 300 {
		t.Fatalf("cursor block = %v, want 300", st.cursor.Block)
	}
	if st.cursor.Timestamp == nil || st.cursor.Timestamp.Unix() != 30 {
		t.Fatalf("cursor timestamp = %v, want 30", st.cursor.Timestamp)
	}
}

func TestGapFillWithOverlap(t *testing.T) {
	program := testProgram()
	cursor := store.Cursor{
		Name: "m", ProgramID: program.String(), Direction: store.DirectionUp,
		Signature: ptr(sig2), Block: ptrInt64(200), Timestamp: blockTime(20), FetchLimit: 3,
	}
	st := newFakeStore(cursor)
	st.signatures[sig2] = store.Signature{Signature: sig2, Slot: 200, Timestamp: *blockTime(20)}
	st.signatures[sig1] = store.Signature{Signature: sig1, Slot: 100, Timestamp: *blockTime(10)}
	st.programSignatures[program.String()+"/"+sig2] = store.ProgramSignature{ProgramID: program.String(), Signature: sig2}
	st.programSignatures[program.String()+"/"+sig1] = store.ProgramSignature{ProgramID: program.String(), Signature: sig1}

	rc := &fakeRPC{pages: [][]rpcclient.SignatureInfo{
		{
			{Signature: sig4, Slot: 400, BlockTime: blockTime(40)},
			{Signature: sig3, Slot: 300, BlockTime: blockTime(30)},
			{Signature: sig2, Slot: 200, BlockTime: blockTime(20)},
		},
	}}
	h := New(st, rc, "m", program)

	if err := h.gapFill(context.Background(), st.cursor); err != nil {
		t.Fatalf("gapFill: %v", err)
	}

	if rc.calls != 1 {
		t.Errorf("calls = %d, want 1 (fill halts on re-encountering the cursor signature)", rc.calls)
	}
	if _, ok := st.signatures[sig4]; !ok {
		t.Error("expected sig4 to be recorded")
	}
	if _, ok := st.signatures[sig3]; !ok {
		t.Error("expected sig3 to be recorded")
	}

	if st.cursor.Signature == nil || *st.cursor.Signature != sig4 {
		t.Fatalf("cursor signature = %v, want %s", st.cursor.Signature, sig4)
	}
	if st.cursor.Block == nil || *st.cursor.Block != 400 {
		t.Fatalf("cursor block = %v, want 400", st.cursor.Block)
	}
	if st.cursor.Timestamp == nil || st.cursor.Timestamp.Unix() != 40 {
		t.Fatalf("cursor timestamp = %v, want 40", st.cursor.Timestamp)
	}
}

// A gap fill that only re-encounters the cursor's signature inserts nothing
// and must leave the cursor untouched.
func TestGapFillNoNewSignatures(t *testing.T) {
	program := testProgram()
	cursor := store.Cursor{
		Name: "m", ProgramID: program.String(), Direction: store.DirectionUp,
		Signature: ptr(sig2), Block: ptrInt64(200), Timestamp: blockTime(20), FetchLimit: 3,
	}
	st := newFakeStore(cursor)
	rc := &fakeRPC{pages: [][]rpcclient.SignatureInfo{
		{
			{Signature: sig2, Slot: 200, BlockTime: blockTime(20)},
			{Signature: sig1, Slot: 100, BlockTime: blockTime(10)},
		},
	}}
	h := New(st, rc, "m", program)

	if err := h.gapFill(context.Background(), st.cursor); err != nil {
		t.Fatalf("gapFill: %v", err)
	}

	if *st.cursor.Signature != sig2 || *st.cursor.Block != 200 {
		t.Fatalf("cursor moved to %v/%v, want unchanged %s/200", st.cursor.Signature, st.cursor.Block, sig2)
	}
	if len(st.signatures) != 0 {
		t.Errorf("len(signatures) = %d, want 0", len(st.signatures))
	}
}

// An empty RPC page in UP mode just sleeps; it neither terminates the loop
// nor moves the cursor.
func TestUpEmptyPageDoesNotMutateCursor(t *testing.T) {
	program := testProgram()
	cursor := store.Cursor{
		Name: "m", ProgramID: program.String(), Direction: store.DirectionUp,
		Signature: ptr(sig3), Block: ptrInt64(300), Timestamp: blockTime(30), FetchLimit: 3,
	}
	st := newFakeStore(cursor)
	rc := &fakeRPC{}
	h := New(st, rc, "m", program)
	h.pollInterval = time.Millisecond

	done, err := h.step(context.Background(), st.cursor)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if done {
		t.Fatal("UP cursor must not finish on an empty page")
	}
	if *st.cursor.Signature != sig3 || *st.cursor.Block != 300 {
		t.Fatalf("cursor moved to %v/%v, want unchanged %s/300", st.cursor.Signature, st.cursor.Block, sig3)
	}
}

func TestDownTraversalToExhaustion(t *testing.T) {
	program := testProgram()
	cursor := store.Cursor{
		Name: "m", ProgramID: program.String(), Direction: store.DirectionDown,
		Signature: ptr(sig3), FetchLimit: 2,
	}
	st := newFakeStore(cursor)
	rc := &fakeRPC{pages: [][]rpcclient.SignatureInfo{
		{
			{Signature: sig2, Slot: 200, BlockTime: blockTime(20)},
			{Signature: sig1, Slot: 100, BlockTime: blockTime(10)},
		},
		{},
	}}
	h := New(st, rc, "m", program)
	h.pollInterval = time.Millisecond

	if err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rc.calls != 2 {
		t.Fatalf("calls = %d, want 2", rc.calls)
	}
	if st.cursor.Signature == nil || *st.cursor.Signature != sig1 {
		t.Fatalf("cursor signature = %v, want %s", st.cursor.Signature, sig1)
	}
}
