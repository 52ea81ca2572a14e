package marketplace

import (
	"fmt"

	"github.com/rogue-hub/marketplace-indexer/pkg/helpers"
)

// Side is which party in an exchange initiated the trade. Kept distinct
// from store.Side so this package has no dependency on internal/store; the
// decoder converts between the two.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Well-known program IDs that appear as inner-instruction invocations of a
// ProcessExchange instruction.
const (
	TokenProgramID       = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID   = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	TransferHookMarkerID = "HookSXxH3hr3Va3K4L9QoU6AhfnNjmv9q6MmDPJ9y8rz"
	BuddyProgramID       = "BUDDYtQp29xDrkU6Ayd2VKdBAR6wxTJCpZdq6xzNGi5"
)

// innerKind tags which shape an inner instruction took on the wire.
type innerKind int

const (
	innerUnknown innerKind = iota
	innerParsedTransfer
	innerParsedTransferChecked
	innerPartiallyDecodedHook
	innerPartiallyDecodedBuddy
)

// InnerTransfer is the normalized shape of one inner instruction underneath
// a ProcessExchange instruction: either a parsed SPL token movement
// (transfer or transferChecked) or a partially-decoded invocation this
// pipeline only needs to recognize by program ID (transfer-hook, buddy).
type InnerTransfer struct {
	kind      innerKind
	ProgramID string
	Mint      string // empty for the unchecked transfer variant
	Source    string
	Amount    uint64
	Decimals  uint8 // only meaningful when kind == innerParsedTransferChecked
}

// classifyInner maps a raw program ID + parsed-shape flag into an InnerTransfer
// tag. Instructions the pipeline doesn't need to look inside (the transfer
// hook) are tagged but carry no further data.
func classifyInner(programID string, parsed bool, parsedType, mint, source string, amount uint64, decimals *uint8) InnerTransfer {
	switch {
	case parsed && parsedType == "transferChecked":
		return InnerTransfer{kind: innerParsedTransferChecked, ProgramID: programID, Mint: mint, Source: source, Amount: amount, Decimals: derefDecimals(decimals)}
	case parsed && parsedType == "transfer":
		return InnerTransfer{kind: innerParsedTransfer, ProgramID: programID, Source: source, Amount: amount}
	case !parsed && programID == TransferHookMarkerID:
		return InnerTransfer{kind: innerPartiallyDecodedHook, ProgramID: programID}
	case !parsed && programID == BuddyProgramID:
		return InnerTransfer{kind: innerPartiallyDecodedBuddy, ProgramID: programID}
	default:
		return InnerTransfer{kind: innerUnknown, ProgramID: programID}
	}
}

func derefDecimals(d *uint8) uint8 {
	if d == nil {
		return 0
	}
	return *d
}

// patternLabel returns the single-character-ish tag used to build the
// pattern key for a sequence of inner transfers (T, T22, HOOK, BUDDY).
func patternLabel(t InnerTransfer) string {
	switch t.kind {
	case innerParsedTransfer, innerParsedTransferChecked:
		if t.ProgramID == Token2022ProgramID {
			return "T22"
		}
		return "T"
	case innerPartiallyDecodedHook:
		return "HOOK"
	case innerPartiallyDecodedBuddy:
		return "BUDDY"
	default:
		return "?"
	}
}

// Quantities holds the decimal-adjusted amounts pulled out of a classified
// inner-transfer sequence, ready for the price/volume/size math.
type Quantities struct {
	Fee      float64
	Asset    float64
	Currency float64
	Buddy    float64
}

// ClassifyExchange classifies the inner-transfer sequence of a
// ProcessExchange instruction per the recognized pattern table and returns
// the quantities needed to build an ExchangeRecord. currencyMint is used to
// determine BUY vs SELL by comparing it to the pivot inner's mint.
func ClassifyExchange(signature string, transfers []InnerTransfer, currencyMint string) (Quantities, Side, error) {
	labels := make([]string, len(transfers))
	for i, t := range transfers {
		labels[i] = patternLabel(t)
	}
	key := fmt.Sprint(labels)

	switch key {
	case fmt.Sprint([]string{"T", "T", "T"}),
		fmt.Sprint([]string{"T", "T", "T22"}),
		fmt.Sprint([]string{"T", "T22", "T"}):
		return classifyThreeSlot(signature, transfers, 1, currencyMint)

	case fmt.Sprint([]string{"T", "T", "T22", "HOOK"}):
		return classifyThreeSlot(signature, transfers[:3], 1, currencyMint)

	case fmt.Sprint([]string{"BUDDY", "T", "T", "T", "T"}):
		return classifyBuddyPattern(signature, transfers, currencyMint)

	default:
		return Quantities{}, "", &DecodeError{Signature: signature, Detail: fmt.Sprintf("unrecognized inner-transfer pattern %v", labels)}
	}
}

// classifyThreeSlot handles [T,T,T], [T,T,T22], [T,T22,T], and the HOOK
// variant with its trailing entry already trimmed off: slot 0 is the fee,
// the pivot (index pivotIdx) determines side, and the remaining slot is the
// other side of the trade.
func classifyThreeSlot(signature string, transfers []InnerTransfer, pivotIdx int, currencyMint string) (Quantities, Side, error) {
	if len(transfers) != 3 {
		return Quantities{}, "", &DecodeError{Signature: signature, Detail: "three-slot pattern requires exactly 3 inner transfers"}
	}

	fee := transfers[0]
	pivot := transfers[pivotIdx]
	var other InnerTransfer
	if pivotIdx == 1 {
		other = transfers[2]
	} else {
		other = transfers[1]
	}

	side := sideFromPivot(pivot, currencyMint)

	q := Quantities{Fee: amountOf(fee)}
	if side == SideSell {
		q.Currency = amountOf(pivot)
		q.Asset = amountOf(other)
	} else {
		q.Asset = amountOf(pivot)
		q.Currency = amountOf(other)
	}
	return q, side, nil
}

// classifyBuddyPattern handles [BUDDY, T, T, T, T]: slot 1 is the affiliate
// transfer (its decimals are looked up from any later inner with the same
// source, since the buddy leg itself may be the unchecked transfer
// variant), slot 2 is the fee, and slots 3-4 are asset/currency by side.
func classifyBuddyPattern(signature string, transfers []InnerTransfer, currencyMint string) (Quantities, Side, error) {
	if len(transfers) != 5 {
		return Quantities{}, "", &DecodeError{Signature: signature, Detail: "buddy pattern requires exactly 5 inner transfers"}
	}

	buddy := transfers[1]
	fee := transfers[2]
	pivot := transfers[3]
	other := transfers[4]

	if buddy.Decimals == 0 {
		for _, t := range transfers[2:] {
			if t.Source == buddy.Source && t.Decimals != 0 {
				buddy.Decimals = t.Decimals
				break
			}
		}
	}

	side := sideFromPivot(pivot, currencyMint)

	q := Quantities{Fee: amountOf(fee), Buddy: amountOf(buddy)}
	if side == SideSell {
		q.Currency = amountOf(pivot)
		q.Asset = amountOf(other)
	} else {
		q.Asset = amountOf(pivot)
		q.Currency = amountOf(other)
	}
	return q, side, nil
}

func sideFromPivot(pivot InnerTransfer, currencyMint string) Side {
	if pivot.Mint == currencyMint {
		return SideSell
	}
	return SideBuy
}

func amountOf(t InnerTransfer) float64 {
	return helpers.ToDecimal(t.Amount, t.Decimals)
}
