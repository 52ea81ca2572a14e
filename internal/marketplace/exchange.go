package marketplace

import (
	"math"

	"github.com/rogue-hub/marketplace-indexer/internal/rpcclient"
)

// ExchangeRecord is the fully normalized trade ready for persistence,
// mirroring store.NewExchange but kept independent of internal/store.
type ExchangeRecord struct {
	Side         Side
	BuyerWallet  string
	SellerWallet string
	AssetMint    string
	PairMint     string
	Price        float64
	Size         int32
	Volume       float64
	Fee          float64
	Buddy        float64
}

// ToInnerTransfers converts a transaction's raw inner instructions (as
// returned by rpcclient) into the tagged InnerTransfer sequence this
// package's classifier consumes.
func ToInnerTransfers(raw []rpcclient.Instruction) []InnerTransfer {
	out := make([]InnerTransfer, 0, len(raw))
	for _, inst := range raw {
		out = append(out, classifyInner(inst.ProgramID, inst.Parsed, inst.ParsedType, inst.Mint, inst.Source, inst.Amount, inst.Decimals))
	}
	return out
}

// BuildExchange combines a ProcessExchange instruction's account slots with
// its already-converted inner-transfer sequence into a normalized
// ExchangeRecord.
//
// price = (fee + currency + buddy) / asset, or 0 when asset is 0.
// volume = fee + currency.
// size = floor(asset).
func BuildExchange(signature string, slots AccountSlots, transfers []InnerTransfer) (ExchangeRecord, error) {
	q, side, err := ClassifyExchange(signature, transfers, slots.CurrencyMint)
	if err != nil {
		return ExchangeRecord{}, err
	}

	var price float64
	if q.Asset != 0 {
		price = (q.Fee + q.Currency + q.Buddy) / q.Asset
	}

	return ExchangeRecord{
		Side:         side,
		BuyerWallet:  slots.OrderTaker,
		SellerWallet: slots.OrderInitializer,
		AssetMint:    slots.AssetMint,
		PairMint:     slots.CurrencyMint,
		Price:        price,
		Size:         int32(math.Floor(q.Asset)),
		Volume:       q.Fee + q.Currency,
		Fee:          q.Fee,
		Buddy:        q.Buddy,
	}, nil
}
