package rpcclient

import "time"

// SignatureInfo is one entry of a getSignaturesForAddress page.
type SignatureInfo struct {
	Signature string
	Slot      uint64
	BlockTime *time.Time
	Err       bool // true when this transaction failed on-chain
}

// Instruction is one instruction of a parsed transaction message, either a
// top-level instruction or a member of an inner-instruction set.
//
// The Solana jsonParsed encoding represents an instruction in one of two
// wire shapes: fully "parsed" (program-specific fields already decoded by
// the validator, used by well-known programs like the SPL token program)
// or "partially decoded" (raw base58 Data plus the raw account list, used
// for anything the validator's parser doesn't recognize — including this
// pipeline's own marketplace program). Both are folded into this one
// struct; callers branch on Parsed.
type Instruction struct {
	ProgramID string
	Parsed    bool

	// Populated when Parsed is true and the program/instruction type is a
	// recognized SPL token transfer.
	ParsedType string // "transfer" or "transferChecked"
	Mint       string // only present for transferChecked
	Source     string
	Amount     uint64
	Decimals   *uint8

	// Populated when Parsed is false (partially decoded).
	Accounts []string
	Data     string // base58
}

// TransactionResult is the subset of a getTransaction response the decoder
// needs: whether it failed, its top-level instructions in order, and the
// inner-instruction sets keyed by the index of the outer instruction that
// produced them.
type TransactionResult struct {
	Slot            uint64
	BlockTime       *time.Time
	Failed          bool
	Instructions    []Instruction
	InnerByOuterIdx map[int][]Instruction
}
