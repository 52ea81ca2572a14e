// Package marketplace decodes the on-chain marketplace program's
// instructions: which variant an instruction's discriminator selects, and
// for exchange instructions, how its inner token-transfer instructions
// classify into a normalized trade.
package marketplace

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/mr-tron/base58"

	"github.com/rogue-hub/marketplace-indexer/pkg/helpers"
)

// Discriminators are the first 8 bytes of an instruction's payload,
// identifying which variant it is. New on-chain instruction shapes must be
// added here explicitly; an unrecognized discriminator is a DecodeError.
var discriminators = map[uint64]string{
	0x5e9c5dfc0e3a2c1b: "ProcessExchange",
	0x1a2b3c4d5e6f7081: "ProcessInitializeBuy",
	0x8192a3b4c5d6e7f0: "ProcessInitializeSell",
	0x0f1e2d3c4b5a6978: "ProcessCancel",
	0xabcdef0123456789: "InitializeOpenOrdersCounter",
}

// DecodeError represents a decoding fault: an unrecognized instruction
// discriminator, or (from the classifier in transfers.go) an unrecognized
// inner-instruction pattern. Callers branch on this type rather than
// string-matching, per the pipeline's "new patterns require explicit code"
// stance.
type DecodeError struct {
	Signature string
	Detail    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("marketplace: decode fault for %s: %s", e.Signature, e.Detail)
}

// InstructionKind names which variant a decoded instruction is.
type InstructionKind string

const (
	KindProcessExchange             InstructionKind = "ProcessExchange"
	KindProcessInitializeBuy        InstructionKind = "ProcessInitializeBuy"
	KindProcessInitializeSell       InstructionKind = "ProcessInitializeSell"
	KindProcessCancel               InstructionKind = "ProcessCancel"
	KindInitializeOpenOrdersCounter InstructionKind = "InitializeOpenOrdersCounter"
)

// DecodedInstruction is the typed result of Decode: the variant only, with
// no payload for any kind. A ProcessExchange's wallets and mints come from
// MapAccounts; the remaining variants are accepted no-ops for this pipeline
// (no write path exists to act on them).
type DecodedInstruction struct {
	Kind InstructionKind
}

// Decode classifies a base58-encoded instruction payload by its leading
// 8-byte discriminator, mirroring the Rust decoder's
// decode_instruction/bs58::decode pairing.
func Decode(signature string, base58Data string) (DecodedInstruction, error) {
	raw, err := base58.Decode(base58Data)
	if err != nil {
		return DecodedInstruction{}, &DecodeError{Signature: signature, Detail: fmt.Sprintf("invalid base58 payload: %v", err)}
	}
	if len(raw) < 8 {
		return DecodedInstruction{}, &DecodeError{Signature: signature, Detail: fmt.Sprintf("payload too short: %d bytes", len(raw))}
	}

	var discriminator uint64
	if err := bin.NewBinDecoder(raw[:8]).Decode(&discriminator); err != nil {
		return DecodedInstruction{}, &DecodeError{Signature: signature, Detail: fmt.Sprintf("decode discriminator: %v", err)}
	}
	kind, ok := discriminators[discriminator]
	if !ok {
		return DecodedInstruction{}, &DecodeError{
			Signature: signature,
			Detail:    fmt.Sprintf("unrecognized discriminator 0x%x (raw=%s)", discriminator, helpers.BytesToHex(raw[:8])),
		}
	}

	return DecodedInstruction{Kind: InstructionKind(kind)}, nil
}

// AccountSlots is the well-known account map a ProcessExchange instruction
// references, by position in its account list.
type AccountSlots struct {
	OrderTaker       string // buyer wallet
	OrderInitializer string // seller wallet
	AssetMint        string
	CurrencyMint     string
}

// MapAccounts pulls the four named slots this pipeline cares about out of a
// ProcessExchange instruction's account list. The real instruction carries
// more accounts (order PDAs, token programs, etc); everything else is
// irrelevant to exchange normalization and is ignored. A short account list
// is a DecodeError: the signature is skipped, not the process killed.
func MapAccounts(signature string, accounts []string) (AccountSlots, error) {
	const (
		idxOrderTaker       = 0
		idxOrderInitializer = 1
		idxAssetMint        = 2
		idxCurrencyMint     = 3
	)
	if len(accounts) <= idxCurrencyMint {
		return AccountSlots{}, &DecodeError{
			Signature: signature,
			Detail:    fmt.Sprintf("expected at least %d accounts, got %d", idxCurrencyMint+1, len(accounts)),
		}
	}
	return AccountSlots{
		OrderTaker:       accounts[idxOrderTaker],
		OrderInitializer: accounts[idxOrderInitializer],
		AssetMint:        accounts[idxAssetMint],
		CurrencyMint:     accounts[idxCurrencyMint],
	}, nil
}
